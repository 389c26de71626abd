package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredentials is returned when the selected provider has no API key.
	ErrMissingCredentials = errors.New("missing LLM credentials")

	// ErrCircuitOpen is returned when the circuit breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrNoUsableResult is returned when every LLM call in a run failed.
	ErrNoUsableResult = errors.New("no usable LLM result")
)

// StatusError is a non-2xx HTTP response from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.Code, truncate(e.Body, 200))
}

// Retriable reports whether the status is worth retrying: 408, 429 and 5xx.
func (e *StatusError) Retriable() bool {
	return e.Code == 408 || e.Code == 429 || e.Code >= 500
}

// ShapeError is a response that arrived but could not be used: no recognized
// content path, or text in no recognized response format. Raw holds what was
// received so it can be dumped once retries run out.
type ShapeError struct {
	Reason string
	Raw    []byte
	// Dump is the diagnostics file kind Raw is written under.
	Dump string
}

func (e *ShapeError) Error() string {
	return "unusable response: " + e.Reason
}
