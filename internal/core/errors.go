package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is the sentinel every "package/version doesn't exist"
// error wraps.
var ErrNotFound = errors.New("not found")

// HTTPError represents a non-2xx HTTP response from a registry.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// IsNotFound returns true if the error represents a 404 response.
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == 404
}

// NotFoundError wraps ErrNotFound with the ecosystem/name/version that
// triggered it.
type NotFoundError struct {
	Registry string
	Name     string
	Version  string
}

func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("%s: package %s version %s not found", e.Registry, e.Name, e.Version)
	}
	return fmt.Sprintf("%s: package %s not found", e.Registry, e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RateLimitError is returned when the registry rate limits requests.
// It is retriable: the client layer makes at least 3 attempts with
// exponential backoff capped at 4s, full jitter.
type RateLimitError struct {
	RetryAfter int // seconds, 0 if unspecified
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %d seconds", e.RetryAfter)
}

// MalformedError signals a response the registry returned successfully
// but that could not be parsed. Fatal for the current request: callers
// should not retry.
type MalformedError struct {
	Registry string
	Detail   string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", e.Registry, e.Detail)
}

// --- §7 error taxonomy -----------------------------------------------
//
// Every error the engine produces once a request is underway is one of
// these five kinds (or an *internal panic* caught at the orchestrator
// boundary, represented separately by InternalError). Config and
// Transport errors are fatal only during startup; once a request has
// begun, no error here may abort the process — see orchestrator.go.

// ConfigError reports a problem loading or validating configuration.
// Fatal only at startup.
type ConfigError struct {
	Path   string
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Path, e.Detail)
}

// TransportError reports a problem constructing the HTTP transport
// (bad proxy URL, unreadable CA cert). Fatal only at startup.
type TransportError struct {
	Detail string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s", e.Detail)
}

// UnsupportedError reports that a requested registry, or a requested
// capability of a registry, isn't available. Surfaces as a decision
// with allow=false, risk=critical, never as a process-level failure.
type UnsupportedError struct {
	Reason string
}

func (e *UnsupportedError) Error() string {
	return e.Reason
}

// ProviderError wraps any error a registry or advisory provider returns
// while a check is running. It never aborts sibling checks: the
// orchestrator turns it into a single high-severity finding tagged with
// the offending check ID.
type ProviderError struct {
	CheckID string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: provider error: %v", e.CheckID, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// LockfileError reports a malformed manifest/lockfile. Aborts only the
// expansion of that one file; the CLI/tool-server report it as a single
// decision carrying the parse reason.
type LockfileError struct {
	Path   string
	Detail string
}

func (e *LockfileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Detail)
}

// InternalError wraps a recovered panic. The orchestrator attaches a
// correlation ID so operators can cross-reference stderr diagnostics
// with the (deliberately generic) message the caller receives.
type InternalError struct {
	CorrelationID string
	Detail        string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error (%s): %s", e.CorrelationID, e.Detail)
}
