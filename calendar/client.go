// ABOUTME: Capability interfaces the connector drives
// ABOUTME: CalendarClient wraps the provider SDK so tests can supply a fake
package calendar

import (
	"context"
	"time"

	gcal "google.golang.org/api/calendar/v3"
)

// ListQuery mirrors the provider's events.list parameters the connector uses.
type ListQuery struct {
	TimeMin      time.Time
	TimeMax      time.Time
	PageToken    string
	MaxResults   int64
	SingleEvents bool
	ShowDeleted  bool
	OrderBy      string
}

type EventsService interface {
	Insert(ctx context.Context, calendarID string, event *gcal.Event) (*gcal.Event, error)
	Update(ctx context.Context, calendarID, eventID string, event *gcal.Event) (*gcal.Event, error)
	Delete(ctx context.Context, calendarID, eventID string) error
	List(ctx context.Context, calendarID string, query ListQuery) (*gcal.Events, error)
}

// CalendarClient is the provider library as the connector sees it. LoadLibrary, LoadAuth
// and InitAuth run once per successful bootstrap; InitClient runs before every event call.
type CalendarClient interface {
	LoadLibrary(ctx context.Context) error
	LoadAuth(ctx context.Context) error
	InitAuth(ctx context.Context, clientID string) error
	SignIn(ctx context.Context) error
	SignOut(ctx context.Context) error
	IsSignedIn() bool
	InitClient(ctx context.Context, apiKey string) error
	Events() EventsService
}

// Revoker is implemented by clients that can revoke provider tokens.
type Revoker interface {
	Revoke(ctx context.Context) error
}

// AccountResolver is implemented by clients that can name the signed-in account.
type AccountResolver interface {
	AccountEmail(ctx context.Context) (string, error)
}
