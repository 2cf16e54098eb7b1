// ABOUTME: Tests for lead database operations
// ABOUTME: Covers CRUD, contact tracking, and delete unlinking event records
package db

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadbook/models"
)

func TestLeadCRUD(t *testing.T) {
	database := setupTestDB(t)
	defer func() { _ = database.Close() }()

	lead := &models.Lead{
		Name:       "Maria Chen",
		Email:      "maria@example.com",
		Phone:      "555-0100",
		Source:     "zillow",
		Interest:   models.InterestBuy,
		Budget:     65000000,
		Area:       "Logan Square",
		AssignedTo: "agent-1",
		CreatedBy:  "agent-1",
	}
	require.NoError(t, CreateLead(database, lead))
	assert.NotEqual(t, uuid.Nil, lead.ID)
	assert.Equal(t, models.LeadStatusNew, lead.Status, "status defaults to new")

	got, err := GetLead(database, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Maria Chen", got.Name)
	assert.Equal(t, int64(65000000), got.Budget)
	assert.Equal(t, "Logan Square", got.Area)
	assert.Nil(t, got.LastContactedAt)

	got.Status = models.LeadStatusQualified
	got.Notes = "Pre-approved"
	require.NoError(t, UpdateLead(database, got.ID, got))

	updated, err := GetLead(database, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusQualified, updated.Status)
	assert.Equal(t, "Pre-approved", updated.Notes)

	leads, err := ListLeads(database, 10)
	require.NoError(t, err)
	assert.Len(t, leads, 1)

	require.NoError(t, DeleteLead(database, lead.ID))
	gone, err := GetLead(database, lead.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestGetLeadMissing(t *testing.T) {
	database := setupTestDB(t)
	defer func() { _ = database.Close() }()

	lead, err := GetLead(database, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, lead)
}

func TestUpdateLeadMissing(t *testing.T) {
	database := setupTestDB(t)
	defer func() { _ = database.Close() }()

	err := UpdateLead(database, uuid.New(), &models.Lead{Name: "Nobody", Status: models.LeadStatusNew})
	assert.Error(t, err)
}

func TestTouchLeadContacted(t *testing.T) {
	database := setupTestDB(t)
	defer func() { _ = database.Close() }()

	lead := &models.Lead{Name: "Sam Ortiz"}
	require.NoError(t, CreateLead(database, lead))

	contacted := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	require.NoError(t, TouchLeadContacted(database, lead.ID, contacted))

	got, err := GetLead(database, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastContactedAt)
	assert.True(t, got.LastContactedAt.Equal(contacted))
}

func TestDeleteLeadKeepsEventRecords(t *testing.T) {
	database := setupTestDB(t)
	defer func() { _ = database.Close() }()

	lead := &models.Lead{Name: "Priya Patel", Email: "priya@example.com"}
	require.NoError(t, CreateLead(database, lead))

	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	record := &models.EventRecord{
		ID:              "01HZX0000000000000000000AA",
		Title:           "Showing",
		Start:           start,
		End:             start.Add(time.Hour),
		LeadID:          &lead.ID,
		ProviderEventID: "evt123",
	}
	require.NoError(t, CreateEventRecord(database, record))
	require.NoError(t, LogActivity(database, &models.Activity{
		LeadID:     lead.ID,
		Actor:      "agent-1",
		Verb:       models.VerbScheduled,
		ObjectKind: models.KindEvent,
		ObjectID:   record.ID,
	}))

	require.NoError(t, DeleteLead(database, lead.ID))

	kept, err := GetEventRecord(database, record.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Nil(t, kept.LeadID)
	assert.Equal(t, "evt123", kept.ProviderEventID)

	activity, err := ListLeadActivity(database, lead.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, activity)
}
