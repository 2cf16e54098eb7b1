// ABOUTME: Production CalendarClient backed by the Google Calendar API
// ABOUTME: Discovery check, OAuth config, token storage, revocation, and events calls
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// ProviderGoogle names the Google account in the calendar_accounts table.
const ProviderGoogle = "google"

const (
	DefaultDiscoveryURL = "https://www.googleapis.com/discovery/v1/apis/calendar/v3/rest"
	DefaultRevokeURL    = "https://oauth2.googleapis.com/revoke"
)

type GoogleClientOptions struct {
	ClientSecret string
	RedirectURL  string
	Tokens       *TokenStore
	Consent      ConsentFunc
	HTTPClient   *http.Client
	Logger       *slog.Logger

	// Overrides for tests and proxies.
	DiscoveryURL string
	RevokeURL    string
	Endpoint     string
	AuthEndpoint *oauth2.Endpoint
}

// GoogleClient implements CalendarClient, Revoker and AccountResolver.
type GoogleClient struct {
	opts GoogleClientOptions

	mu            sync.Mutex
	libraryLoaded bool
	oauthConfig   *oauth2.Config
	token         *oauth2.Token
	service       *gcal.Service
}

func NewGoogleClient(opts GoogleClientOptions) *GoogleClient {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.DiscoveryURL == "" {
		opts.DiscoveryURL = DefaultDiscoveryURL
	}
	if opts.RevokeURL == "" {
		opts.RevokeURL = DefaultRevokeURL
	}
	return &GoogleClient{opts: opts}
}

type discoveryDoc struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	RootURL string `json:"rootUrl"`
}

// LoadLibrary fetches the Calendar discovery document so an unreachable or blocked API
// fails here instead of on the first event call.
func (g *GoogleClient) LoadLibrary(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.opts.DiscoveryURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build discovery request: %w", err)
	}

	resp, err := g.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch calendar discovery document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("calendar discovery document returned %s", resp.Status)
	}

	var doc discoveryDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode calendar discovery document: %w", err)
	}
	if doc.Name != "calendar" {
		return fmt.Errorf("unexpected discovery document %q", doc.Name)
	}

	g.mu.Lock()
	g.libraryLoaded = true
	g.mu.Unlock()

	g.opts.Logger.Debug("calendar library loaded", "version", doc.Version)
	return nil
}

// LoadAuth restores a previously saved token, if any.
func (g *GoogleClient) LoadAuth(ctx context.Context) error {
	if g.opts.Tokens == nil {
		return nil
	}
	token, err := g.opts.Tokens.Load()
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.token = token
	g.mu.Unlock()
	return nil
}

// InitAuth builds the OAuth config. An empty clientID is passed through; the
// provider rejects it at consent.
func (g *GoogleClient) InitAuth(ctx context.Context, clientID string) error {
	endpoint := google.Endpoint
	if g.opts.AuthEndpoint != nil {
		endpoint = *g.opts.AuthEndpoint
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.oauthConfig = &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: g.opts.ClientSecret,
		RedirectURL:  g.opts.RedirectURL,
		Scopes:       []string{gcal.CalendarScope},
		Endpoint:     endpoint,
	}
	return nil
}

// OAuthConfig returns the config built by InitAuth.
func (g *GoogleClient) OAuthConfig() *oauth2.Config {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.oauthConfig
}

func (g *GoogleClient) SignIn(ctx context.Context) error {
	if g.IsSignedIn() {
		return nil
	}

	config := g.OAuthConfig()
	if config == nil {
		return ErrNotInitialized
	}
	if g.opts.Consent == nil {
		return fmt.Errorf("interactive consent is not available")
	}

	token, err := g.opts.Consent(context.WithValue(ctx, oauth2.HTTPClient, g.opts.HTTPClient), config)
	if err != nil {
		return err
	}

	if g.opts.Tokens != nil {
		if err := g.opts.Tokens.Save(token); err != nil {
			return err
		}
	}

	g.mu.Lock()
	g.token = token
	g.service = nil
	g.mu.Unlock()
	return nil
}

func (g *GoogleClient) SignOut(ctx context.Context) error {
	g.mu.Lock()
	g.token = nil
	g.service = nil
	g.mu.Unlock()

	if g.opts.Tokens != nil {
		return g.opts.Tokens.Delete()
	}
	return nil
}

// IsSignedIn reports a usable session: a valid access token or a refresh token.
func (g *GoogleClient) IsSignedIn() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.token == nil {
		return false
	}
	return g.token.Valid() || g.token.RefreshToken != ""
}

// InitClient builds the Calendar service. Signed-in sessions use the OAuth client;
// otherwise the API key is used and write calls are rejected by the provider.
func (g *GoogleClient) InitClient(ctx context.Context, apiKey string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.libraryLoaded {
		return ErrNotInitialized
	}

	opts := []option.ClientOption{}
	if g.opts.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.opts.Endpoint))
	}

	switch {
	case g.token != nil && g.oauthConfig != nil:
		httpCtx := context.WithValue(context.Background(), oauth2.HTTPClient, g.opts.HTTPClient)
		source := oauth2.ReuseTokenSource(g.token, g.oauthConfig.TokenSource(httpCtx, g.token))
		source = &persistingTokenSource{
			base:      source,
			store:     g.opts.Tokens,
			last:      g.token.AccessToken,
			logger:    g.opts.Logger,
			onRefresh: g.refreshed,
		}
		opts = append(opts, option.WithHTTPClient(oauth2.NewClient(httpCtx, source)))
	case apiKey != "":
		opts = append(opts, option.WithAPIKey(apiKey))
	default:
		opts = append(opts, option.WithHTTPClient(g.opts.HTTPClient))
	}

	service, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create calendar service: %w", err)
	}
	g.service = service
	return nil
}

// refreshed keeps the session token current after a refresh, unless the
// session was signed out meanwhile.
func (g *GoogleClient) refreshed(token *oauth2.Token) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.token != nil {
		g.token = token
	}
}

func (g *GoogleClient) Events() EventsService {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &googleEvents{service: g.service}
}

// Revoke invalidates the stored grant at the provider and forgets it locally.
func (g *GoogleClient) Revoke(ctx context.Context) error {
	g.mu.Lock()
	token := g.token
	g.mu.Unlock()

	if token == nil {
		return nil
	}

	value := token.RefreshToken
	if value == "" {
		value = token.AccessToken
	}

	form := url.Values{"token": {value}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.opts.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// 400 means the grant was already invalid.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return fmt.Errorf("token revocation returned %s", resp.Status)
	}

	g.opts.Logger.Info("calendar token revoked")
	return g.SignOut(ctx)
}

// AccountEmail returns the primary calendar id, which is the account's address.
func (g *GoogleClient) AccountEmail(ctx context.Context) (string, error) {
	g.mu.Lock()
	service := g.service
	g.mu.Unlock()

	if service == nil {
		return "", ErrNotInitialized
	}
	entry, err := service.CalendarList.Get(PrimaryCalendarID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get primary calendar: %w", err)
	}
	return entry.Id, nil
}

type googleEvents struct {
	service *gcal.Service
}

func (e *googleEvents) Insert(ctx context.Context, calendarID string, event *gcal.Event) (*gcal.Event, error) {
	if e.service == nil {
		return nil, ErrNotInitialized
	}
	return e.service.Events.Insert(calendarID, event).Context(ctx).Do()
}

func (e *googleEvents) Update(ctx context.Context, calendarID, eventID string, event *gcal.Event) (*gcal.Event, error) {
	if e.service == nil {
		return nil, ErrNotInitialized
	}
	return e.service.Events.Update(calendarID, eventID, event).Context(ctx).Do()
}

func (e *googleEvents) Delete(ctx context.Context, calendarID, eventID string) error {
	if e.service == nil {
		return ErrNotInitialized
	}
	return e.service.Events.Delete(calendarID, eventID).Context(ctx).Do()
}

func (e *googleEvents) List(ctx context.Context, calendarID string, query ListQuery) (*gcal.Events, error) {
	if e.service == nil {
		return nil, ErrNotInitialized
	}

	call := e.service.Events.List(calendarID).
		ShowDeleted(query.ShowDeleted).
		SingleEvents(query.SingleEvents).
		TimeMin(query.TimeMin.Format(time.RFC3339))

	if !query.TimeMax.IsZero() {
		call = call.TimeMax(query.TimeMax.Format(time.RFC3339))
	}
	if query.OrderBy != "" {
		call = call.OrderBy(query.OrderBy)
	}
	if query.MaxResults > 0 {
		call = call.MaxResults(query.MaxResults)
	}
	if query.PageToken != "" {
		call = call.PageToken(query.PageToken)
	}

	return call.Context(ctx).Do()
}
