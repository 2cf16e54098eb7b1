// ABOUTME: Tests for the calendar connector lifecycle and event CRUD
// ABOUTME: Drives the connector against the in-memory fake client
package calendar_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/harperreed/leadbook/calendar"
	"github.com/harperreed/leadbook/calendar/calendartest"
)

var fixedNow = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func newConnector(fake *calendartest.FakeClient) *calendar.Connector {
	return calendar.NewConnector(fake, calendar.Options{
		ClientID: "client-id",
		APIKey:   "api-key",
		Now:      func() time.Time { return fixedNow },
	})
}

func sampleEvent() calendar.ExternalEvent {
	start := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)
	return calendar.ExternalEvent{
		Title:     "Showing at 12 Elm St",
		Start:     calendar.EventTime{DateTime: start, TimeZone: "UTC"},
		End:       calendar.EventTime{DateTime: start.Add(time.Hour), TimeZone: "UTC"},
		Attendees: []string{"a@x.com"},
		Reminders: calendar.PopupReminders([]int{10}),
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	fake := calendartest.NewFakeClient()
	conn := newConnector(fake)
	ctx := context.Background()

	assert.Equal(t, calendar.StateUninitialized, conn.State())
	require.NoError(t, conn.Initialize(ctx))
	require.NoError(t, conn.Initialize(ctx))

	assert.Equal(t, calendar.StateReady, conn.State())
	assert.Equal(t, 1, fake.Calls("LoadLibrary"))
	assert.Equal(t, 1, fake.Calls("LoadAuth"))
	assert.Equal(t, []string{"client-id"}, fake.ClientIDs)
}

func TestInitializeConcurrentCallersShareOneAttempt(t *testing.T) {
	fake := calendartest.NewFakeClient()
	fake.Block = make(chan struct{})
	conn := newConnector(fake)
	ctx := context.Background()

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- conn.Initialize(ctx)
		}()
	}

	require.Eventually(t, func() bool {
		return conn.State() == calendar.StateInitializing
	}, time.Second, time.Millisecond)

	close(fake.Block)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, fake.Calls("LoadLibrary"))
	assert.Equal(t, calendar.StateReady, conn.State())
}

func TestInitializeFailureAllowsRetry(t *testing.T) {
	fake := calendartest.NewFakeClient()
	fake.LoadAuthErr = errors.New("auth module blocked")
	conn := newConnector(fake)
	ctx := context.Background()

	err := conn.Initialize(ctx)
	require.Error(t, err)

	var initErr *calendar.InitializationError
	require.True(t, errors.As(err, &initErr))
	assert.Equal(t, calendar.StageLoadAuth, initErr.Stage)
	assert.Equal(t, calendar.StateError, conn.State())
	assert.Equal(t, err, conn.LastError())

	fake.LoadAuthErr = nil
	require.NoError(t, conn.Initialize(ctx))
	assert.Equal(t, calendar.StateReady, conn.State())
	assert.Equal(t, 2, fake.Calls("LoadLibrary"))
	assert.NoError(t, conn.LastError())
}

func TestInitializeReportsEachStage(t *testing.T) {
	cases := []struct {
		name  string
		set   func(*calendartest.FakeClient)
		stage calendar.Stage
	}{
		{"library", func(f *calendartest.FakeClient) { f.LoadLibraryErr = errors.New("csp") }, calendar.StageLoadLibrary},
		{"auth init", func(f *calendartest.FakeClient) { f.InitAuthErr = errors.New("bad client id") }, calendar.StageInitAuth},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := calendartest.NewFakeClient()
			tc.set(fake)
			err := newConnector(fake).Initialize(context.Background())

			var initErr *calendar.InitializationError
			require.True(t, errors.As(err, &initErr))
			assert.Equal(t, tc.stage, initErr.Stage)
		})
	}
}

func TestIsSignedInFalseUntilReady(t *testing.T) {
	fake := calendartest.NewFakeClient()
	fake.SignedIn = true
	conn := newConnector(fake)

	assert.False(t, conn.IsSignedIn())
	assert.Equal(t, calendar.SignedOut, conn.AuthState())

	require.NoError(t, conn.Initialize(context.Background()))
	assert.True(t, conn.IsSignedIn())
	assert.Equal(t, calendar.SignedIn, conn.AuthState())
}

func TestSignInDenied(t *testing.T) {
	fake := calendartest.NewFakeClient()
	fake.DenySignIn = true
	conn := newConnector(fake)

	assert.False(t, conn.SignIn(context.Background()))
	assert.False(t, conn.IsSignedIn())
	assert.Equal(t, calendar.StateReady, conn.State())
}

func TestSignInInitializesFirst(t *testing.T) {
	fake := calendartest.NewFakeClient()
	conn := newConnector(fake)

	assert.True(t, conn.SignIn(context.Background()))
	assert.True(t, conn.IsSignedIn())
	assert.Equal(t, 1, fake.Calls("LoadLibrary"))
}

func TestSignInInitializationFailure(t *testing.T) {
	fake := calendartest.NewFakeClient()
	fake.LoadLibraryErr = errors.New("offline")
	conn := newConnector(fake)

	assert.False(t, conn.SignIn(context.Background()))
	assert.Equal(t, 0, fake.Calls("SignIn"))
}

func TestSignOutRequiresInitialization(t *testing.T) {
	fake := calendartest.NewFakeClient()
	conn := newConnector(fake)

	err := conn.SignOut(context.Background())
	assert.ErrorIs(t, err, calendar.ErrNotInitialized)
	assert.Equal(t, 0, fake.Calls("SignOut"))

	require.True(t, conn.SignIn(context.Background()))
	require.NoError(t, conn.SignOut(context.Background()))
	assert.False(t, conn.IsSignedIn())
}

func TestCreateEventBuildsPopupOverrides(t *testing.T) {
	fake := calendartest.NewFakeClient()
	fake.SignedIn = true
	conn := newConnector(fake)

	created, err := conn.CreateEvent(context.Background(), sampleEvent())
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.NotEmpty(t, created.ID)

	require.Len(t, fake.Payloads, 1)
	payload := fake.Payloads[0]
	require.NotNil(t, payload.Reminders)
	assert.False(t, payload.Reminders.UseDefault)
	assert.Contains(t, payload.Reminders.ForceSendFields, "UseDefault")
	require.Len(t, payload.Reminders.Overrides, 1)
	assert.Equal(t, "popup", payload.Reminders.Overrides[0].Method)
	assert.Equal(t, int64(10), payload.Reminders.Overrides[0].Minutes)
	require.Len(t, payload.Attendees, 1)
	assert.Equal(t, "a@x.com", payload.Attendees[0].Email)
	assert.Equal(t, "UTC", payload.Start.TimeZone)
	assert.Equal(t, "2024-06-03T14:00:00Z", payload.Start.DateTime)
}

func TestEventCallsReinitializeClient(t *testing.T) {
	fake := calendartest.NewFakeClient()
	fake.SignedIn = true
	conn := newConnector(fake)
	ctx := context.Background()

	_, err := conn.CreateEvent(ctx, sampleEvent())
	require.NoError(t, err)
	_, err = conn.CreateEvent(ctx, sampleEvent())
	require.NoError(t, err)

	assert.Equal(t, 2, fake.Calls("InitClient"))
	assert.Equal(t, []string{"api-key", "api-key"}, fake.APIKeys)
	assert.Equal(t, 1, fake.Calls("LoadLibrary"))
}

func TestCreateEventValidation(t *testing.T) {
	fake := calendartest.NewFakeClient()
	conn := newConnector(fake)

	missingZone := sampleEvent()
	missingZone.Start.TimeZone = ""
	_, err := conn.CreateEvent(context.Background(), missingZone)
	assert.ErrorIs(t, err, calendar.ErrInvalidEvent)

	backwards := sampleEvent()
	backwards.End.DateTime = backwards.Start.DateTime.Add(-time.Minute)
	_, err = conn.CreateEvent(context.Background(), backwards)
	assert.ErrorIs(t, err, calendar.ErrInvalidEvent)

	untitled := sampleEvent()
	untitled.Title = "  "
	_, err = conn.CreateEvent(context.Background(), untitled)
	assert.ErrorIs(t, err, calendar.ErrInvalidEvent)

	assert.Equal(t, 0, fake.Calls("Insert"))
	assert.Equal(t, 0, fake.Calls("LoadLibrary"))
}

func TestCreateEventProviderError(t *testing.T) {
	fake := calendartest.NewFakeClient()
	fake.InsertErr = &googleapi.Error{Code: 401, Message: "login required"}
	conn := newConnector(fake)

	_, err := conn.CreateEvent(context.Background(), sampleEvent())
	require.Error(t, err)

	var reqErr *calendar.ProviderRequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "insert", reqErr.Op)
	assert.Equal(t, 401, reqErr.StatusCode())
	assert.False(t, calendar.IsNotFound(err))
}

func TestCreateEventInitClientFailure(t *testing.T) {
	fake := calendartest.NewFakeClient()
	fake.InitClientErr = errors.New("client module failed")
	conn := newConnector(fake)

	_, err := conn.CreateEvent(context.Background(), sampleEvent())

	var initErr *calendar.InitializationError
	require.True(t, errors.As(err, &initErr))
	assert.Equal(t, calendar.StageInitClient, initErr.Stage)
	assert.Equal(t, 0, fake.Calls("Insert"))
}

func TestUpdateEvent(t *testing.T) {
	fake := calendartest.NewFakeClient()
	conn := newConnector(fake)
	ctx := context.Background()

	created, err := conn.CreateEvent(ctx, sampleEvent())
	require.NoError(t, err)

	changed := sampleEvent()
	changed.Title = "Showing moved"
	updated, err := conn.UpdateEvent(ctx, created.ID, changed)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Showing moved", fake.Event(created.ID).Summary)

	_, err = conn.UpdateEvent(ctx, "", changed)
	assert.ErrorIs(t, err, calendar.ErrInvalidEvent)

	_, err = conn.UpdateEvent(ctx, "stale-id", changed)
	require.Error(t, err)
	assert.True(t, calendar.IsNotFound(err))
}

func TestDeleteEvent(t *testing.T) {
	fake := calendartest.NewFakeClient()
	conn := newConnector(fake)
	ctx := context.Background()

	created, err := conn.CreateEvent(ctx, sampleEvent())
	require.NoError(t, err)

	require.NoError(t, conn.DeleteEvent(ctx, created.ID))
	assert.Equal(t, 0, fake.EventCount())

	err = conn.DeleteEvent(ctx, created.ID)
	assert.True(t, calendar.IsNotFound(err))

	assert.ErrorIs(t, conn.DeleteEvent(ctx, ""), calendar.ErrInvalidEvent)
}

func TestGetEventsDefaultsAndOrdering(t *testing.T) {
	fake := calendartest.NewFakeClient()
	fake.Reverse = true
	fake.IncludeCancelled = true

	cancelled := calendartest.Event("c", "Cancelled", fixedNow.Add(2*time.Hour), fixedNow.Add(3*time.Hour), "UTC")
	cancelled.Status = "cancelled"
	fake.Seed(
		calendartest.Event("past", "Yesterday", fixedNow.Add(-24*time.Hour), fixedNow.Add(-23*time.Hour), "UTC"),
		calendartest.Event("b", "Later", fixedNow.Add(5*time.Hour), fixedNow.Add(6*time.Hour), "UTC"),
		calendartest.Event("a", "Sooner", fixedNow.Add(time.Hour), fixedNow.Add(2*time.Hour), "UTC"),
		cancelled,
	)
	conn := newConnector(fake)

	events, err := conn.GetEvents(context.Background(), calendar.ListOptions{})
	require.NoError(t, err)

	require.Len(t, fake.Queries, 1)
	query := fake.Queries[0]
	assert.True(t, query.TimeMin.Equal(fixedNow))
	assert.True(t, query.TimeMax.IsZero())
	assert.True(t, query.SingleEvents)
	assert.False(t, query.ShowDeleted)
	assert.Equal(t, "startTime", query.OrderBy)

	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].ID)
	assert.Equal(t, "b", events[1].ID)
	for _, ev := range events {
		assert.NotEqual(t, calendar.StatusCancelled, ev.Status)
	}
}

func TestGetEventsFollowsPages(t *testing.T) {
	fake := calendartest.NewFakeClient()
	fake.PageSize = 2
	for i := 0; i < 5; i++ {
		start := fixedNow.Add(time.Duration(i+1) * time.Hour)
		fake.Seed(calendartest.Event("", "Visit", start, start.Add(30*time.Minute), "UTC"))
	}
	conn := newConnector(fake)

	events, err := conn.GetEvents(context.Background(), calendar.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, events, 5)
	assert.Equal(t, 3, fake.Calls("List"))
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Start.DateTime.Before(events[i-1].Start.DateTime))
	}
}

func TestGetEventsWindowAndEmpty(t *testing.T) {
	fake := calendartest.NewFakeClient()
	conn := newConnector(fake)
	ctx := context.Background()

	events, err := conn.GetEvents(ctx, calendar.ListOptions{TimeMin: fixedNow, TimeMax: fixedNow.Add(time.Hour)})
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)

	_, err = conn.GetEvents(ctx, calendar.ListOptions{TimeMin: fixedNow, TimeMax: fixedNow.Add(-time.Hour)})
	assert.ErrorIs(t, err, calendar.ErrInvalidEvent)
}

func TestGetEventsProviderError(t *testing.T) {
	fake := calendartest.NewFakeClient()
	fake.ListErr = &googleapi.Error{Code: 500}
	conn := newConnector(fake)

	_, err := conn.GetEvents(context.Background(), calendar.ListOptions{})
	var reqErr *calendar.ProviderRequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "list", reqErr.Op)
	assert.Equal(t, 500, reqErr.StatusCode())
}

func TestDisconnectRevokesAndSignsOut(t *testing.T) {
	fake := calendartest.NewFakeClient()
	fake.SignedIn = true
	conn := newConnector(fake)

	require.NoError(t, conn.Disconnect(context.Background()))
	assert.True(t, fake.Revoked)
	assert.False(t, conn.IsSignedIn())

	fake.RevokeErr = errors.New("revoke endpoint down")
	assert.Error(t, conn.Disconnect(context.Background()))
}

func TestAccountEmail(t *testing.T) {
	fake := calendartest.NewFakeClient()
	fake.Account = "agent@example.com"
	conn := newConnector(fake)
	ctx := context.Background()

	email, err := conn.AccountEmail(ctx)
	require.NoError(t, err)
	assert.Empty(t, email)

	require.True(t, conn.SignIn(ctx))
	email, err = conn.AccountEmail(ctx)
	require.NoError(t, err)
	assert.Equal(t, "agent@example.com", email)
}
