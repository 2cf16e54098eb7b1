// ABOUTME: iCalendar export of local event records
// ABOUTME: Writes one VEVENT per record with VALARM entries for reminder offsets
package calendar

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"

	"github.com/harperreed/leadbook/models"
)

const icsProductID = "-//leadbook//EN"

// ExportICS encodes records as a VCALENDAR. Times are written in UTC.
func ExportICS(records []models.EventRecord, stamp time.Time) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no event records to export")
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icsProductID)

	for i := range records {
		cal.Children = append(cal.Children, recordToICal(&records[i], stamp))
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

func recordToICal(record *models.EventRecord, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, record.ID+"@leadbook")
	ve.Props.SetText(ical.PropSummary, record.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, record.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, record.End.UTC())

	if record.Description != "" {
		ve.Props.SetText(ical.PropDescription, record.Description)
	}
	if record.Location != "" {
		ve.Props.SetText(ical.PropLocation, record.Location)
	}
	for _, attendee := range record.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.Value = "mailto:" + attendee
		ve.Props.Add(p)
	}

	for _, minutes := range record.Reminders {
		alarm := ical.NewComponent(ical.CompAlarm)
		alarm.Props.SetText(ical.PropAction, "DISPLAY")
		alarm.Props.SetText(ical.PropDescription, record.Title)
		trigger := ical.NewProp(ical.PropTrigger)
		trigger.Value = fmt.Sprintf("-PT%dM", minutes)
		alarm.Props.Set(trigger)
		ve.Children = append(ve.Children, alarm)
	}

	return ve
}
