package domain

import "errors"

var (
	// ErrBusy is returned when a start request arrives while a run is
	// active. The request is rejected with no state change.
	ErrBusy = errors.New("a run is already active")

	// ErrScopeEmpty means validation left no allowed targets. Fatal for
	// the run; no tool is ever invoked.
	ErrScopeEmpty = errors.New("no allowed targets in requested scope")

	// ErrInferenceUnavailable marks a failed inference call. Absorbed by
	// the summarizer's deterministic fallback, never fatal.
	ErrInferenceUnavailable = errors.New("inference unavailable")

	// ErrUploadAuth is a collector 4xx. Not retried; the artifact is
	// persisted locally instead.
	ErrUploadAuth = errors.New("collector rejected credentials or request")
)
