// ABOUTME: Connector manages the calendar client lifecycle and event CRUD on "primary"
// ABOUTME: Initialization is single-flight; concurrent callers wait on the same attempt
package calendar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// PrimaryCalendarID is the only calendar the connector touches.
const PrimaryCalendarID = "primary"

const listPageSize = 250

type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AuthState is orthogonal to State and only meaningful once Ready.
type AuthState int

const (
	SignedOut AuthState = iota
	SignedIn
)

func (a AuthState) String() string {
	if a == SignedIn {
		return "signed_in"
	}
	return "signed_out"
}

type Options struct {
	ClientID string
	APIKey   string
	Logger   *slog.Logger
	Now      func() time.Time
}

// ListOptions bounds GetEvents. A zero TimeMin means now; a zero TimeMax is open-ended.
type ListOptions struct {
	TimeMin time.Time
	TimeMax time.Time
}

type initCall struct {
	done chan struct{}
	err  error
}

type Connector struct {
	client   CalendarClient
	clientID string
	apiKey   string
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	state    State
	lastErr  error
	inflight *initCall
}

func NewConnector(client CalendarClient, opts Options) *Connector {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Connector{
		client:   client,
		clientID: opts.ClientID,
		apiKey:   opts.APIKey,
		logger:   logger,
		now:      now,
	}
}

func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the error that put the connector into StateError.
func (c *Connector) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Connector) AuthState() AuthState {
	if c.IsSignedIn() {
		return SignedIn
	}
	return SignedOut
}

// Initialize loads the library and auth module and initializes auth with the client id.
// It returns immediately once Ready. A failed attempt leaves the connector in StateError
// and the next call starts over.
func (c *Connector) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateReady {
		c.mu.Unlock()
		return nil
	}
	if call := c.inflight; call != nil {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	call := &initCall{done: make(chan struct{})}
	c.inflight = call
	c.state = StateInitializing
	c.mu.Unlock()

	err := c.bootstrap(ctx)

	c.mu.Lock()
	if err != nil {
		c.state = StateError
		c.lastErr = err
	} else {
		c.state = StateReady
		c.lastErr = nil
	}
	c.inflight = nil
	call.err = err
	close(call.done)
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("calendar initialization failed", "error", err)
	} else {
		c.logger.Debug("calendar connector ready")
	}
	return err
}

func (c *Connector) bootstrap(ctx context.Context) error {
	if err := c.client.LoadLibrary(ctx); err != nil {
		return &InitializationError{Stage: StageLoadLibrary, Err: err}
	}
	if err := c.client.LoadAuth(ctx); err != nil {
		return &InitializationError{Stage: StageLoadAuth, Err: err}
	}
	if err := c.client.InitAuth(ctx, c.clientID); err != nil {
		return &InitializationError{Stage: StageInitAuth, Err: err}
	}
	return nil
}

// SignIn runs the interactive consent flow. Failures are logged and reported as false.
func (c *Connector) SignIn(ctx context.Context) bool {
	if err := c.Initialize(ctx); err != nil {
		c.logger.Warn("calendar sign-in skipped", "error", err)
		return false
	}
	if err := c.client.SignIn(ctx); err != nil {
		c.logger.Warn("calendar sign-in failed", "error", err)
		return false
	}
	if !c.client.IsSignedIn() {
		c.logger.Warn("calendar sign-in finished without a session")
		return false
	}
	c.logger.Info("calendar signed in")
	return true
}

func (c *Connector) SignOut(ctx context.Context) error {
	if c.State() != StateReady {
		return ErrNotInitialized
	}
	if err := c.client.SignOut(ctx); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	c.logger.Info("calendar signed out")
	return nil
}

// IsSignedIn is false unless the connector is Ready, whatever the client has cached.
func (c *Connector) IsSignedIn() bool {
	if c.State() != StateReady {
		return false
	}
	return c.client.IsSignedIn()
}

// AccountEmail names the signed-in account when the client can resolve it.
func (c *Connector) AccountEmail(ctx context.Context) (string, error) {
	resolver, ok := c.client.(AccountResolver)
	if !ok || !c.IsSignedIn() {
		return "", nil
	}
	if err := c.client.InitClient(ctx, c.apiKey); err != nil {
		return "", &InitializationError{Stage: StageInitClient, Err: err}
	}
	return resolver.AccountEmail(ctx)
}

// Disconnect revokes provider tokens when supported and ends the session.
func (c *Connector) Disconnect(ctx context.Context) error {
	if err := c.Initialize(ctx); err != nil {
		return err
	}
	if revoker, ok := c.client.(Revoker); ok {
		if err := revoker.Revoke(ctx); err != nil {
			return fmt.Errorf("failed to revoke calendar access: %w", err)
		}
	}
	return c.SignOut(ctx)
}

func (c *Connector) events(ctx context.Context) (EventsService, error) {
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}
	if err := c.client.InitClient(ctx, c.apiKey); err != nil {
		return nil, &InitializationError{Stage: StageInitClient, Err: err}
	}
	return c.client.Events(), nil
}

func (c *Connector) CreateEvent(ctx context.Context, event ExternalEvent) (*ExternalEvent, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	svc, err := c.events(ctx)
	if err != nil {
		return nil, err
	}

	payload := event.ToProvider()
	payload.Id = ""
	created, err := svc.Insert(ctx, PrimaryCalendarID, payload)
	if err != nil {
		return nil, &ProviderRequestError{Op: "insert", Err: err}
	}

	result, err := FromProvider(created)
	if err != nil {
		return nil, &ProviderRequestError{Op: "insert", Err: err}
	}
	c.logger.Info("calendar event created", "event_id", result.ID, "title", result.Title)
	return &result, nil
}

// UpdateEvent replaces the fields of an event previously returned by CreateEvent.
func (c *Connector) UpdateEvent(ctx context.Context, eventID string, event ExternalEvent) (*ExternalEvent, error) {
	if eventID == "" {
		return nil, fmt.Errorf("%w: event id is required", ErrInvalidEvent)
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	svc, err := c.events(ctx)
	if err != nil {
		return nil, err
	}

	payload := event.ToProvider()
	payload.Id = eventID
	updated, err := svc.Update(ctx, PrimaryCalendarID, eventID, payload)
	if err != nil {
		return nil, &ProviderRequestError{Op: "update", EventID: eventID, Err: err}
	}

	result, err := FromProvider(updated)
	if err != nil {
		return nil, &ProviderRequestError{Op: "update", EventID: eventID, Err: err}
	}
	c.logger.Info("calendar event updated", "event_id", eventID)
	return &result, nil
}

// DeleteEvent removes the event from the provider only. Local records are left alone.
func (c *Connector) DeleteEvent(ctx context.Context, eventID string) error {
	if eventID == "" {
		return fmt.Errorf("%w: event id is required", ErrInvalidEvent)
	}
	svc, err := c.events(ctx)
	if err != nil {
		return err
	}
	if err := svc.Delete(ctx, PrimaryCalendarID, eventID); err != nil {
		return &ProviderRequestError{Op: "delete", EventID: eventID, Err: err}
	}
	c.logger.Info("calendar event deleted", "event_id", eventID)
	return nil
}

// GetEvents lists single instances in the window ordered by start, without cancelled items.
func (c *Connector) GetEvents(ctx context.Context, opts ListOptions) ([]ExternalEvent, error) {
	timeMin := opts.TimeMin
	if timeMin.IsZero() {
		timeMin = c.now()
	}
	if !opts.TimeMax.IsZero() && opts.TimeMax.Before(timeMin) {
		return nil, fmt.Errorf("%w: time max %s is before time min %s", ErrInvalidEvent,
			opts.TimeMax.Format(time.RFC3339), timeMin.Format(time.RFC3339))
	}

	svc, err := c.events(ctx)
	if err != nil {
		return nil, err
	}

	query := ListQuery{
		TimeMin:      timeMin,
		TimeMax:      opts.TimeMax,
		MaxResults:   listPageSize,
		SingleEvents: true,
		ShowDeleted:  false,
		OrderBy:      "startTime",
	}

	results := make([]ExternalEvent, 0)
	seen := make(map[string]bool)
	for {
		page, err := svc.List(ctx, PrimaryCalendarID, query)
		if err != nil {
			return nil, &ProviderRequestError{Op: "list", Err: err}
		}

		for _, item := range page.Items {
			if item == nil || item.Status == StatusCancelled {
				continue
			}
			ev, err := FromProvider(item)
			if err != nil {
				c.logger.Warn("skipping unreadable calendar event", "event_id", item.Id, "error", err)
				continue
			}
			results = append(results, ev)
		}

		if page.NextPageToken == "" || seen[page.NextPageToken] {
			break
		}
		seen[page.NextPageToken] = true
		query.PageToken = page.NextPageToken
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Start.DateTime.Before(results[j].Start.DateTime)
	})

	c.logger.Debug("calendar events listed", "count", len(results))
	return results, nil
}
