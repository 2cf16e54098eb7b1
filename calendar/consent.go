// ABOUTME: Interactive OAuth consent through a loopback callback server
// ABOUTME: Opens the browser, waits for the redirect, and exchanges the code
package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// ErrConsentDenied is returned when the user declines or closes the consent screen.
var ErrConsentDenied = errors.New("calendar consent denied")

// ConsentFunc obtains a token interactively for the given OAuth config.
type ConsentFunc func(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error)

// LoopbackConsent serves config.RedirectURL locally and sends the user to the consent page.
// openURL may be nil, in which case the URL is only printed to out. The code exchange
// uses the *http.Client stored in ctx under oauth2.HTTPClient, if any.
func LoopbackConsent(openURL func(string) error, out io.Writer) ConsentFunc {
	return func(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
		redirect, err := url.Parse(config.RedirectURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redirect URL: %w", err)
		}

		listener, err := net.Listen("tcp", redirect.Host)
		if err != nil {
			return nil, fmt.Errorf("failed to listen for OAuth callback: %w", err)
		}

		state := uuid.NewString()
		tokenChan := make(chan *oauth2.Token, 1)
		errChan := make(chan error, 1)

		fail := func(err error) {
			select {
			case errChan <- err:
			default:
			}
		}

		mux := http.NewServeMux()
		mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
			query := r.URL.Query()
			if reason := query.Get("error"); reason != "" {
				_, _ = fmt.Fprintf(w, "Authorization was not granted. You can close this window.")
				fail(fmt.Errorf("%w: %s", ErrConsentDenied, reason))
				return
			}
			if query.Get("state") != state {
				http.Error(w, "state mismatch", http.StatusBadRequest)
				fail(fmt.Errorf("oauth state mismatch"))
				return
			}
			code := query.Get("code")
			if code == "" {
				http.Error(w, "missing code", http.StatusBadRequest)
				fail(fmt.Errorf("no authorization code received"))
				return
			}

			exchangeCtx := r.Context()
			if client, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok {
				exchangeCtx = context.WithValue(exchangeCtx, oauth2.HTTPClient, client)
			}
			token, err := config.Exchange(exchangeCtx, code)
			if err != nil {
				fail(fmt.Errorf("failed to exchange code: %w", err))
				return
			}

			_, _ = fmt.Fprintf(w, "Authorization successful! You can close this window.")
			select {
			case tokenChan <- token:
			default:
			}
		})

		server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
				fail(err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
		if out != nil {
			_, _ = fmt.Fprintf(out, "Opening browser for Google Calendar consent...\n\nIf the browser doesn't open, visit this URL:\n%s\n\n", authURL)
		}
		if openURL != nil {
			_ = openURL(authURL)
		}

		select {
		case token := <-tokenChan:
			return token, nil
		case err := <-errChan:
			return nil, err
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrConsentDenied, ctx.Err())
		}
	}
}

// OpenBrowser attempts to open url in the default browser.
func OpenBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		cmd = "xdg-open"
		args = []string{url}
	}

	return exec.Command(cmd, args...).Start()
}
