// ABOUTME: Conversion between instants and the form's date and HH:MM fields
// ABOUTME: Seconds are dropped; recomposing depends on the zone used
package scheduling

import (
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// DecomposeTimes splits start/end into a date and two times of day in loc.
// The date is taken from start; ComposeWindow puts an earlier end on the next day.
func DecomposeTimes(start, end time.Time, loc *time.Location) (date, startHM, endHM string) {
	s := start.In(loc)
	e := end.In(loc)
	return s.Format(DateLayout), s.Format(TimeLayout), e.Format(TimeLayout)
}

// ComposeTime builds the instant for a date and HH:MM in loc.
func ComposeTime(date, hm string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+hm, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time %q %q: %w", date, hm, err)
	}
	return t, nil
}

// ComposeWindow builds start and end for one date. An end time of day before
// the start time belongs to the following day.
func ComposeWindow(date, startHM, endHM string, loc *time.Location) (start, end time.Time, err error) {
	start, err = ComposeTime(date, startHM, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = ComposeTime(date, endHM, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		end, err = ComposeTime(start.AddDate(0, 0, 1).Format(DateLayout), endHM, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, end, nil
}
