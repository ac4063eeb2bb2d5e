package domain

import "errors"

// Error taxonomy. Out-of-coverage is deliberately not here: it is a valid
// outcome carried by ValidationResult / PredictionOutcome, never an error.
var (
	// ErrInvalidInput marks malformed coordinates or phone numbers. Rejected
	// before any collaborator is contacted, never silently coerced.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformedPrediction marks classifier output that violates the data
	// contract (missing required keys). Surfaced to the caller; no default
	// is substituted.
	ErrMalformedPrediction = errors.New("malformed prediction")

	// ErrAIUnavailable marks a failed or disabled AI analysis. Recovered
	// locally: the orchestrator degrades to an ML-only verdict.
	ErrAIUnavailable = errors.New("ai analysis unavailable")

	// ErrNotificationFailed marks a failed SMS dispatch. Non-fatal: the
	// already-computed assessment is never invalidated by it.
	ErrNotificationFailed = errors.New("notification failed")
)
