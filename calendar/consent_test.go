// ABOUTME: Tests for the loopback OAuth consent flow
// ABOUTME: Simulates the browser redirect for granted and denied consent
package calendar

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func freeRedirectURL(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return fmt.Sprintf("http://%s/oauth/callback", addr)
}

// redirectWith simulates the provider sending the browser back with extra query values.
func redirectWith(t *testing.T, extra url.Values) func(string) error {
	return func(authURL string) error {
		parsed, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		redirect := parsed.Query().Get("redirect_uri")
		extra.Set("state", parsed.Query().Get("state"))

		go func() {
			resp, err := http.Get(redirect + "?" + extra.Encode())
			if err == nil {
				_ = resp.Body.Close()
			}
		}()
		return nil
	}
}

func TestLoopbackConsentGranted(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"granted","token_type":"Bearer","refresh_token":"r","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	config := &oauth2.Config{
		ClientID:    "client-id",
		RedirectURL: freeRedirectURL(t),
		Endpoint:    oauth2.Endpoint{AuthURL: tokenServer.URL + "/auth", TokenURL: tokenServer.URL + "/token"},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	consent := LoopbackConsent(redirectWith(t, url.Values{"code": {"abc"}}), nil)
	token, err := consent(ctx, config)
	require.NoError(t, err)
	assert.Equal(t, "granted", token.AccessToken)
	assert.Equal(t, "r", token.RefreshToken)
}

func TestLoopbackConsentDenied(t *testing.T) {
	config := &oauth2.Config{
		ClientID:    "client-id",
		RedirectURL: freeRedirectURL(t),
		Endpoint:    oauth2.Endpoint{AuthURL: "http://127.0.0.1:1/auth", TokenURL: "http://127.0.0.1:1/token"},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	consent := LoopbackConsent(redirectWith(t, url.Values{"error": {"access_denied"}}), nil)
	_, err := consent(ctx, config)
	assert.ErrorIs(t, err, ErrConsentDenied)
}

func TestLoopbackConsentCancelled(t *testing.T) {
	config := &oauth2.Config{
		ClientID:    "client-id",
		RedirectURL: freeRedirectURL(t),
		Endpoint:    oauth2.Endpoint{AuthURL: "http://127.0.0.1:1/auth", TokenURL: "http://127.0.0.1:1/token"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LoopbackConsent(nil, nil)(ctx, config)
	assert.ErrorIs(t, err, ErrConsentDenied)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestLoopbackConsentDuplicateCallback(t *testing.T) {
	// Both exchanges are held until the second arrives, so both handlers race to deliver.
	var mu sync.Mutex
	arrived := 0
	both := make(chan struct{})
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		mu.Lock()
		arrived++
		if arrived == 2 {
			close(both)
		}
		mu.Unlock()

		select {
		case <-both:
		case <-time.After(2 * time.Second):
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"access_token":"granted","token_type":"Bearer","expires_in":3600}`)),
			Request:    r,
		}, nil
	})

	config := &oauth2.Config{
		ClientID:    "client-id",
		RedirectURL: freeRedirectURL(t),
		Endpoint:    oauth2.Endpoint{AuthURL: "http://oauth.invalid/auth", TokenURL: "http://oauth.invalid/token"},
	}

	done := make(chan struct{}, 2)
	openURL := func(authURL string) error {
		parsed, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		callback := parsed.Query().Get("redirect_uri") + "?" + url.Values{
			"code":  {"abc"},
			"state": {parsed.Query().Get("state")},
		}.Encode()

		for i := 0; i < 2; i++ {
			go func() {
				resp, err := http.Get(callback)
				if err == nil {
					_, _ = io.Copy(io.Discard, resp.Body)
					_ = resp.Body.Close()
				}
				done <- struct{}{}
			}()
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: transport})

	started := time.Now()
	token, err := LoopbackConsent(openURL, nil)(ctx, config)
	require.NoError(t, err)
	assert.Equal(t, "granted", token.AccessToken)
	assert.Less(t, time.Since(started), 2*time.Second, "shutdown waited on a stuck callback handler")

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Fatal("callback request never completed")
		}
	}
}
