// ABOUTME: Error taxonomy for the calendar connector
// ABOUTME: Initialization failures, provider request failures, and sentinels
package calendar

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

var (
	// ErrNotInitialized is returned by operations that need a Ready connector.
	ErrNotInitialized = errors.New("calendar connector not initialized")
	// ErrInvalidEvent wraps local validation failures before any provider call.
	ErrInvalidEvent = errors.New("invalid calendar event")
)

// Stage names the bootstrap step that failed.
type Stage string

const (
	StageLoadLibrary Stage = "load_library"
	StageLoadAuth    Stage = "load_auth"
	StageInitAuth    Stage = "init_auth"
	StageInitClient  Stage = "init_client"
)

type InitializationError struct {
	Stage Stage
	Err   error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("calendar initialization failed at %s: %v", e.Stage, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

// ProviderRequestError is returned when the provider rejects an event call.
type ProviderRequestError struct {
	Op      string
	EventID string
	Err     error
}

func (e *ProviderRequestError) Error() string {
	if e.EventID != "" {
		return fmt.Sprintf("calendar %s %s failed: %v", e.Op, e.EventID, e.Err)
	}
	return fmt.Sprintf("calendar %s failed: %v", e.Op, e.Err)
}

func (e *ProviderRequestError) Unwrap() error {
	return e.Err
}

// StatusCode returns the provider HTTP status, or 0 when the failure was not an API response.
func (e *ProviderRequestError) StatusCode() int {
	var apiErr *googleapi.Error
	if errors.As(e.Err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

// IsNotFound reports whether err is a provider 404/410 for a stale or foreign event id.
func IsNotFound(err error) bool {
	var reqErr *ProviderRequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	code := reqErr.StatusCode()
	return code == http.StatusNotFound || code == http.StatusGone
}
