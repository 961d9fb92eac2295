// Package llm defines the uniform contract for vision-capable extraction
// backends and the shared pieces every adapter needs: prompt construction,
// lenient JSON recovery, schema checking, and error classification.
package llm

import (
	"context"
	"fmt"
	"sync/atomic"

	"ledgerscan/internal/document"
)

// Backend is one adapter per external vision-capable model provider.
// Implementations are stateless per call aside from usage counters.
type Backend interface {
	Name() string
	Extract(ctx context.Context, req document.ExtractionRequest) (document.ExtractionResponse, error)
	Usage() UsageSnapshot
}

// ErrorClass tags a backend failure as worth retrying or not.
type ErrorClass string

const (
	Retryable ErrorClass = "retryable" // timeouts, rate limiting, 5xx
	Terminal  ErrorClass = "terminal"  // auth failure, malformed request, unsupported content
)

// BackendError is the only error type backends return.
type BackendError struct {
	Provider string
	Class    ErrorClass
	Status   int // HTTP status when one was observed, else 0
	Err      error
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s backend (status %d): %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s backend: %v", e.Provider, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt has a chance of succeeding.
func (e *BackendError) Retryable() bool { return e.Class == Retryable }

// ClassifyStatus maps an HTTP status to an error class: request timeouts,
// rate limiting and server errors are transient, everything else is not.
func ClassifyStatus(status int) ErrorClass {
	if status == 408 || status == 429 || status >= 500 {
		return Retryable
	}
	return Terminal
}

// Usage counts calls per backend. Mutated concurrently by in-flight
// extractions, so increments are atomic.
type Usage struct {
	calls    atomic.Int64
	failures atomic.Int64
}

type UsageSnapshot struct {
	Calls    int64
	Failures int64
}

func (u *Usage) RecordCall()    { u.calls.Add(1) }
func (u *Usage) RecordFailure() { u.failures.Add(1) }

func (u *Usage) Snapshot() UsageSnapshot {
	return UsageSnapshot{Calls: u.calls.Load(), Failures: u.failures.Load()}
}
