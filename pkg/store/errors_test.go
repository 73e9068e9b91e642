package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestStorageErrorMessage(t *testing.T) {
	err := &StorageError{Key: "acme_x", StatusCode: 500, Cause: "db down"}
	if !strings.Contains(err.Error(), "db down") || !strings.Contains(err.Error(), "acme_x") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestFetchErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("step: %w", &FetchError{URL: "http://localhost/v1/store-entries", Err: cause})
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to reach the cause")
	}
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.URL != "http://localhost/v1/store-entries" {
		t.Fatalf("expected FetchError with url, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "fetch", err: &FetchError{URL: "u", Err: errors.New("timeout")}, want: true},
		{name: "cancelled", err: &FetchError{URL: "u", Err: context.Canceled}, want: false},
		{name: "server error", err: &StorageError{StatusCode: 503}, want: true},
		{name: "throttled", err: &StorageError{StatusCode: 429}, want: true},
		{name: "bad request", err: &StorageError{StatusCode: 400}, want: false},
		{name: "scope", err: ErrInvalidScope, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestMaskTokenHidesMiddle(t *testing.T) {
	masked := MaskToken("engine-secret-token")
	if masked == "engine-secret-token" || strings.Contains(masked, "secret") {
		t.Fatalf("token not masked: %q", masked)
	}
	if MaskToken("") != "" {
		t.Fatalf("expected empty mask for empty token")
	}
}
