// internal/engine/errors.go
package engine

import (
	"context"
	"errors"
	"fmt"
)

// Common engine errors
var (
	ErrBrowserNotFound = errors.New("chrome browser not found")
	ErrBrowserCrash    = errors.New("browser crashed")
	ErrTimeout         = errors.New("request timeout")
	ErrInvalidURL      = errors.New("invalid URL")
	ErrNetworkError    = errors.New("network error")
	ErrParseError      = errors.New("failed to parse response")
	ErrBotChallenge    = errors.New("bot challenge page")
	ErrNoCandidates    = errors.New("no candidate URLs found")
	ErrNoSource        = errors.New("no external data source configured")
	ErrSessionReleased = errors.New("browser session released")
	ErrRobotsDisallow  = errors.New("blocked by robots.txt")
)

// Kind is the failure class of an error. It decides how far the error
// travels: setup errors abort the job, all others stay on their target.
type Kind string

const (
	KindSetup      Kind = "SETUP"
	KindFetch      Kind = "FETCH"
	KindExtraction Kind = "EXTRACTION"
	KindDiscovery  Kind = "DISCOVERY"
	KindTimeout    Kind = "TIMEOUT"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"
	ErrCodeValidation   ErrorCode = "VALIDATION"
	ErrCodeBrowserCrash ErrorCode = "BROWSER_CRASH"
	ErrCodeNetworkError ErrorCode = "NETWORK_ERROR"
	ErrCodeHTTPStatus   ErrorCode = "HTTP_STATUS"
	ErrCodeBlocked      ErrorCode = "BLOCKED"
	ErrCodeParseError   ErrorCode = "PARSE_ERROR"
	ErrCodeSessionError ErrorCode = "SESSION_ERROR"
	ErrCodeCancelled    ErrorCode = "CANCELLED"
)

// EngineError wraps errors with additional context
type EngineError struct {
	Kind       Kind
	Code       ErrorCode
	Message    string
	Underlying error
	Retry      bool
	StatusCode int
	Details    map[string]interface{}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s(%s): %s: %v", e.Kind, e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s(%s): %s", e.Kind, e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// Is checks if the error matches the target
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		if t.Code == "" {
			return e.Kind == t.Kind
		}
		return e.Kind == t.Kind && e.Code == t.Code
	}
	return false
}

// Retryable is consulted by the retry package
func (e *EngineError) Retryable() bool {
	return e.Retry
}

// GetStatusCode exposes the HTTP status for retry decisions
func (e *EngineError) GetStatusCode() int {
	return e.StatusCode
}

// NewEngineError creates a new EngineError
func NewEngineError(kind Kind, code ErrorCode, message string, err error) *EngineError {
	return &EngineError{
		Kind:       kind,
		Code:       code,
		Message:    message,
		Underlying: err,
		Retry:      false,
		Details:    make(map[string]interface{}),
	}
}

// WithRetry marks the error as retryable
func (e *EngineError) WithRetry() *EngineError {
	e.Retry = true
	return e
}

// WithStatus records the HTTP status that caused the error
func (e *EngineError) WithStatus(status int) *EngineError {
	e.StatusCode = status
	return e
}

// WithDetail adds a detail to the error
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	e.Details[key] = value
	return e
}

// SetupError reports that the job cannot start (browser, source, store)
func SetupError(code ErrorCode, message string, err error) *EngineError {
	return NewEngineError(KindSetup, code, message, err)
}

// FetchError reports a navigation or network failure for one URL. Fetch
// errors are retryable unless the server answered with a definitive status.
func FetchError(code ErrorCode, message string, err error) *EngineError {
	return NewEngineError(KindFetch, code, message, err).WithRetry()
}

// ExtractionError reports a strategy that failed on a capture
func ExtractionError(strategy string, err error) *EngineError {
	return NewEngineError(KindExtraction, ErrCodeParseError, strategy+" extraction failed", err).
		WithDetail("strategy", strategy)
}

// DiscoveryError reports that a listing page produced no candidates
func DiscoveryError(message string, err error) *EngineError {
	return NewEngineError(KindDiscovery, ErrCodeNotFound, message, err)
}

// TimeoutError reports a per-page or whole-job timeout
func TimeoutError(message string, err error) *EngineError {
	if err == nil {
		err = ErrTimeout
	}
	return NewEngineError(KindTimeout, ErrCodeTimeout, message, err).WithRetry()
}

// KindOf returns the kind of err, classifying bare context errors as timeouts
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindFetch
}

// IsRetryable reports whether another attempt could succeed
func IsRetryable(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Retry
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsSetup reports whether err must abort the whole job
func IsSetup(err error) bool {
	return KindOf(err) == KindSetup
}
