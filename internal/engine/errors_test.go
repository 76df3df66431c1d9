package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		kind      Kind
		retryable bool
	}{
		{"setup", SetupError(ErrCodeBrowserCrash, "launch", ErrBrowserNotFound), KindSetup, false},
		{"fetch", FetchError(ErrCodeNetworkError, "dial", ErrNetworkError), KindFetch, true},
		{"extraction", ExtractionError("generic", ErrParseError), KindExtraction, false},
		{"discovery", DiscoveryError("empty listing", ErrNoCandidates), KindDiscovery, false},
		{"timeout", TimeoutError("page", nil), KindTimeout, true},
		{"wrapped fetch", fmt.Errorf("attempt 2: %w", FetchError(ErrCodeNetworkError, "dial", nil)), KindFetch, true},
		{"deadline", context.DeadlineExceeded, KindTimeout, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.kind {
				t.Errorf("KindOf = %s, want %s", got, tc.kind)
			}
			if got := IsRetryable(tc.err); got != tc.retryable {
				t.Errorf("IsRetryable = %v, want %v", got, tc.retryable)
			}
		})
	}
}

func TestEngineErrorIs(t *testing.T) {
	err := FetchError(ErrCodeBlocked, "captcha", ErrBotChallenge)

	if !errors.Is(err, ErrBotChallenge) {
		t.Error("expected errors.Is to reach the underlying sentinel")
	}
	if !errors.Is(err, &EngineError{Kind: KindFetch}) {
		t.Error("expected kind-only match")
	}
	if errors.Is(err, &EngineError{Kind: KindFetch, Code: ErrCodeTimeout}) {
		t.Error("did not expect a match on a different code")
	}
	if !IsSetup(fmt.Errorf("wrap: %w", SetupError(ErrCodeSessionError, "x", nil))) {
		t.Error("expected wrapped setup error to be detected")
	}
}

func TestFetchErrorWithStatus(t *testing.T) {
	err := FetchError(ErrCodeHTTPStatus, "not found", nil).WithStatus(404)
	err.Retry = false

	if err.GetStatusCode() != 404 {
		t.Errorf("expected status 404, got %d", err.GetStatusCode())
	}
	if IsRetryable(err) {
		t.Error("404 should not be retryable")
	}
}
