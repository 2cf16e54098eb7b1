// ABOUTME: Tests for the Google-backed calendar client
// ABOUTME: Runs discovery, events listing, and revocation against httptest servers
package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeGoogle struct {
	mu          sync.Mutex
	revoked     []string
	apiKeys     []string
	listQueries []string
}

func newFakeGoogle(t *testing.T) (*httptest.Server, *fakeGoogle) {
	t.Helper()
	state := &fakeGoogle{}

	mux := http.NewServeMux()
	mux.HandleFunc("/discovery", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "calendar", "version": "v3"})
	})
	mux.HandleFunc("/discovery-broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	})
	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		state.mu.Lock()
		state.revoked = append(state.revoked, r.Form.Get("token"))
		state.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/calendar/v3/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		state.mu.Lock()
		state.apiKeys = append(state.apiKeys, r.URL.Query().Get("key"))
		state.listQueries = append(state.listQueries, r.URL.RawQuery)
		state.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"kind": "calendar#events",
			"items": []map[string]any{{
				"id":      "evt-1",
				"summary": "Listing appointment",
				"status":  "confirmed",
				"start":   map[string]string{"dateTime": "2024-06-01T09:00:00Z", "timeZone": "UTC"},
				"end":     map[string]string{"dateTime": "2024-06-01T10:00:00Z", "timeZone": "UTC"},
			}},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, state
}

func TestGoogleClientLoadLibrary(t *testing.T) {
	srv, _ := newFakeGoogle(t)
	ctx := context.Background()

	client := NewGoogleClient(GoogleClientOptions{DiscoveryURL: srv.URL + "/discovery"})
	require.NoError(t, client.LoadLibrary(ctx))

	broken := NewGoogleClient(GoogleClientOptions{DiscoveryURL: srv.URL + "/discovery-broken"})
	assert.Error(t, broken.LoadLibrary(ctx))
}

func TestGoogleClientInitAuth(t *testing.T) {
	client := NewGoogleClient(GoogleClientOptions{RedirectURL: "http://localhost:8085/oauth/callback"})
	ctx := context.Background()

	// A missing client id is left for the provider to reject.
	require.NoError(t, client.InitAuth(ctx, ""))
	require.NotNil(t, client.OAuthConfig())
	assert.Empty(t, client.OAuthConfig().ClientID)

	require.NoError(t, client.InitAuth(ctx, "client-id"))

	config := client.OAuthConfig()
	require.NotNil(t, config)
	assert.Equal(t, "client-id", config.ClientID)
	assert.Equal(t, []string{"https://www.googleapis.com/auth/calendar"}, config.Scopes)
}

func TestGoogleClientInitClientNeedsLibrary(t *testing.T) {
	client := NewGoogleClient(GoogleClientOptions{})
	assert.ErrorIs(t, client.InitClient(context.Background(), "key"), ErrNotInitialized)
}

func TestGoogleClientListWithAPIKey(t *testing.T) {
	srv, state := newFakeGoogle(t)
	ctx := context.Background()

	client := NewGoogleClient(GoogleClientOptions{
		DiscoveryURL: srv.URL + "/discovery",
		Endpoint:     srv.URL + "/calendar/v3/",
	})
	require.NoError(t, client.LoadLibrary(ctx))
	require.NoError(t, client.InitClient(ctx, "test-key"))

	events, err := client.Events().List(ctx, PrimaryCalendarID, ListQuery{
		TimeMin:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		SingleEvents: true,
		OrderBy:      "startTime",
	})
	require.NoError(t, err)
	require.Len(t, events.Items, 1)
	assert.Equal(t, "evt-1", events.Items[0].Id)

	state.mu.Lock()
	defer state.mu.Unlock()
	assert.Equal(t, []string{"test-key"}, state.apiKeys)
	assert.Contains(t, state.listQueries[0], "singleEvents=true")
	assert.Contains(t, state.listQueries[0], "orderBy=startTime")
}

func TestGoogleClientSessionAndRevoke(t *testing.T) {
	srv, state := newFakeGoogle(t)
	ctx := context.Background()

	store := NewTokenStore(filepath.Join(t.TempDir(), "token.json"))
	require.NoError(t, store.Save(&oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
	}))

	client := NewGoogleClient(GoogleClientOptions{
		Tokens:    store,
		RevokeURL: srv.URL + "/revoke",
	})
	assert.False(t, client.IsSignedIn())

	require.NoError(t, client.LoadAuth(ctx))
	assert.True(t, client.IsSignedIn())

	require.NoError(t, client.Revoke(ctx))
	assert.False(t, client.IsSignedIn())

	token, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, token)

	state.mu.Lock()
	assert.Equal(t, []string{"refresh"}, state.revoked)
	state.mu.Unlock()

	// Nothing left to revoke.
	require.NoError(t, client.Revoke(ctx))
}

func TestGoogleClientSignInUsesConsent(t *testing.T) {
	store := NewTokenStore(filepath.Join(t.TempDir(), "token.json"))
	httpClient := &http.Client{Timeout: time.Second}
	var seen *oauth2.Config
	var seenClient any

	client := NewGoogleClient(GoogleClientOptions{
		Tokens:     store,
		HTTPClient: httpClient,
		Consent: func(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
			seen = config
			seenClient = ctx.Value(oauth2.HTTPClient)
			return &oauth2.Token{AccessToken: "fresh", Expiry: time.Now().Add(time.Hour)}, nil
		},
	})
	ctx := context.Background()

	assert.ErrorIs(t, client.SignIn(ctx), ErrNotInitialized)

	require.NoError(t, client.InitAuth(ctx, "client-id"))
	require.NoError(t, client.SignIn(ctx))
	assert.True(t, client.IsSignedIn())
	require.NotNil(t, seen)
	assert.Equal(t, "client-id", seen.ClientID)
	assert.Same(t, httpClient, seenClient)

	saved, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "fresh", saved.AccessToken)

	require.NoError(t, client.SignOut(ctx))
	assert.False(t, client.IsSignedIn())
}
