package metrics

import "time"

// Outcome labels the result of a store fetch.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	// OutcomeStale marks a response dropped because a newer fetch was issued
	// or the store was closed.
	OutcomeStale Outcome = "stale"
)

// Recorder defines observability hooks for the stores and the HTTP client.
type Recorder interface {
	ObserveFetch(store string, outcome Outcome, d time.Duration)
	IncCreate(success bool)
	ObserveTransport(method, route string, status int, d time.Duration)
	IncNotification(kind string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveFetch(string, Outcome, time.Duration) {}
func (NoopRecorder) IncCreate(bool) {}
func (NoopRecorder) ObserveTransport(string, string, int, time.Duration) {}
func (NoopRecorder) IncNotification(string) {}
