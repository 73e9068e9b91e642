package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidScope is returned for a nil or unrecognized scope.
	ErrInvalidScope = errors.New("store: invalid scope")
	// ErrMissingFlowID is returned when a flow scoped key has no flow identity.
	ErrMissingFlowID = errors.New("store: flow id is required for flow scope")
	// ErrMissingAPIURL is returned when a client is built without an endpoint.
	ErrMissingAPIURL = errors.New("store: api url is required")
)

// StorageError reports that the remote store rejected a request.
type StorageError struct {
	Key        string
	StatusCode int
	Cause      string
}

func (e *StorageError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("store: storage error key=%q status=%d: %s", e.Key, e.StatusCode, e.Cause)
}

// FetchError reports that a request never completed.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("store: fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsRetryable reports whether a caller may reasonably retry the failed
// operation. The store itself never retries.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return true
	}
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return storageErr.StatusCode >= http.StatusInternalServerError ||
			storageErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}
