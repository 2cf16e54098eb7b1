// ABOUTME: In-memory CalendarClient for tests
// ABOUTME: Scripted failures, call counters, and an event store honouring list queries
package calendartest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/harperreed/leadbook/calendar"
)

// ErrDenied is what SignIn returns when DenySignIn is set.
var ErrDenied = errors.New("user denied consent")

type FakeClient struct {
	mu sync.Mutex

	LoadLibraryErr error
	LoadAuthErr    error
	InitAuthErr    error
	SignOutErr     error
	InitClientErr  error
	RevokeErr      error
	InsertErr      error
	UpdateErr      error
	DeleteErr      error
	ListErr        error

	// DenySignIn makes SignIn fail as if the user closed the consent screen.
	DenySignIn bool
	// SignedIn is the session flag; tests may preset it.
	SignedIn bool
	// Block, when non-nil, holds LoadLibrary until it is closed.
	Block chan struct{}
	// IncludeCancelled returns cancelled items even when ShowDeleted is false.
	IncludeCancelled bool
	// Reverse returns list pages in reverse start order.
	Reverse  bool
	PageSize int
	Account  string

	ClientIDs []string
	APIKeys   []string
	Queries   []calendar.ListQuery
	Payloads  []*gcal.Event
	Revoked   bool

	calls  map[string]int
	store  map[string]*gcal.Event
	nextID int
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		calls: make(map[string]int),
		store: make(map[string]*gcal.Event),
	}
}

func (f *FakeClient) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

// Calls returns how many times the named method ran.
func (f *FakeClient) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *FakeClient) LoadLibrary(ctx context.Context) error {
	f.record("LoadLibrary")
	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.LoadLibraryErr
}

func (f *FakeClient) LoadAuth(ctx context.Context) error {
	f.record("LoadAuth")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.LoadAuthErr
}

func (f *FakeClient) InitAuth(ctx context.Context, clientID string) error {
	f.record("InitAuth")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ClientIDs = append(f.ClientIDs, clientID)
	return f.InitAuthErr
}

func (f *FakeClient) SignIn(ctx context.Context) error {
	f.record("SignIn")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DenySignIn {
		return ErrDenied
	}
	f.SignedIn = true
	return nil
}

func (f *FakeClient) SignOut(ctx context.Context) error {
	f.record("SignOut")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SignOutErr != nil {
		return f.SignOutErr
	}
	f.SignedIn = false
	return nil
}

func (f *FakeClient) IsSignedIn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.SignedIn
}

func (f *FakeClient) InitClient(ctx context.Context, apiKey string) error {
	f.record("InitClient")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.APIKeys = append(f.APIKeys, apiKey)
	return f.InitClientErr
}

func (f *FakeClient) Events() calendar.EventsService {
	return &fakeEvents{f: f}
}

func (f *FakeClient) Revoke(ctx context.Context) error {
	f.record("Revoke")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RevokeErr != nil {
		return f.RevokeErr
	}
	f.Revoked = true
	return nil
}

func (f *FakeClient) AccountEmail(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Account, nil
}

// Seed stores provider events directly, bypassing Insert.
func (f *FakeClient) Seed(events ...*gcal.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range events {
		if ev.Id == "" {
			f.nextID++
			ev.Id = "seed-" + strconv.Itoa(f.nextID)
		}
		f.store[ev.Id] = ev
	}
}

// Event returns the stored provider event with the given id.
func (f *FakeClient) Event(id string) *gcal.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store[id]
}

// EventCount returns how many events are stored.
func (f *FakeClient) EventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.store)
}

// Event builds a provider event with RFC3339 times in the given zone.
func Event(id, title string, start, end time.Time, zone string) *gcal.Event {
	return &gcal.Event{
		Id:      id,
		Summary: title,
		Status:  "confirmed",
		Start:   &gcal.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: zone},
		End:     &gcal.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: zone},
	}
}

func notFound(id string) error {
	return &googleapi.Error{Code: 404, Message: fmt.Sprintf("event %s not found", id)}
}

type fakeEvents struct {
	f *FakeClient
}

func (e *fakeEvents) Insert(ctx context.Context, calendarID string, event *gcal.Event) (*gcal.Event, error) {
	f := e.f
	f.record("Insert")
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Payloads = append(f.Payloads, event)
	if f.InsertErr != nil {
		return nil, f.InsertErr
	}

	f.nextID++
	stored := *event
	stored.Id = "evt-" + strconv.Itoa(f.nextID)
	stored.Status = "confirmed"
	stored.HtmlLink = "https://calendar.example/" + stored.Id
	f.store[stored.Id] = &stored

	out := stored
	return &out, nil
}

func (e *fakeEvents) Update(ctx context.Context, calendarID, eventID string, event *gcal.Event) (*gcal.Event, error) {
	f := e.f
	f.record("Update")
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Payloads = append(f.Payloads, event)
	if f.UpdateErr != nil {
		return nil, f.UpdateErr
	}
	if _, ok := f.store[eventID]; !ok {
		return nil, notFound(eventID)
	}

	stored := *event
	stored.Id = eventID
	stored.Status = "confirmed"
	f.store[eventID] = &stored

	out := stored
	return &out, nil
}

func (e *fakeEvents) Delete(ctx context.Context, calendarID, eventID string) error {
	f := e.f
	f.record("Delete")
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if _, ok := f.store[eventID]; !ok {
		return notFound(eventID)
	}
	delete(f.store, eventID)
	return nil
}

func (e *fakeEvents) List(ctx context.Context, calendarID string, query calendar.ListQuery) (*gcal.Events, error) {
	f := e.f
	f.record("List")
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Queries = append(f.Queries, query)
	if f.ListErr != nil {
		return nil, f.ListErr
	}

	type item struct {
		ev    *gcal.Event
		start time.Time
	}
	var matched []item
	for _, ev := range f.store {
		if ev.Status == "cancelled" && !query.ShowDeleted && !f.IncludeCancelled {
			continue
		}
		start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, ev.End.DateTime)
		if err != nil {
			continue
		}
		if !end.After(query.TimeMin) {
			continue
		}
		if !query.TimeMax.IsZero() && !start.Before(query.TimeMax) {
			continue
		}
		matched = append(matched, item{ev: ev, start: start})
	}

	sort.Slice(matched, func(i, j int) bool {
		if f.Reverse {
			return matched[i].start.After(matched[j].start)
		}
		if matched[i].start.Equal(matched[j].start) {
			return matched[i].ev.Id < matched[j].ev.Id
		}
		return matched[i].start.Before(matched[j].start)
	})

	offset := 0
	if query.PageToken != "" {
		n, err := strconv.Atoi(query.PageToken)
		if err != nil {
			return nil, &googleapi.Error{Code: 400, Message: "bad page token"}
		}
		offset = n
	}

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = len(matched)
	}

	result := &gcal.Events{}
	for i := offset; i < len(matched) && i < offset+pageSize; i++ {
		copied := *matched[i].ev
		result.Items = append(result.Items, &copied)
	}
	if offset+pageSize < len(matched) {
		result.NextPageToken = strconv.Itoa(offset + pageSize)
	}
	return result, nil
}
