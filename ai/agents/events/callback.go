// Package events provides status callback types for the orchestration
// pipeline. Callbacks are advisory: a nil or failing callback must never
// affect the correctness of a running consultation.
package events

import (
	"log/slog"
	"runtime/debug"
)

// Phase names emitted over the status callback as a request moves
// through the pipeline.
const (
	PhaseClassifying = "classifying"
	PhaseRouting     = "routing"
	PhaseExecuting   = "executing"
	PhaseEvaluating  = "evaluating"
	PhaseRefining    = "refining"
	PhaseCompleted   = "completed"
)

// Callback is the unified status callback type.
// It receives a phase string and arbitrary event data.
type Callback func(phase string, detail any) error

// SafeCallback is a callback variant that does not propagate errors.
// Errors are logged internally instead of being returned to callers.
type SafeCallback func(phase string, detail any)

// NoopCallback is a callback that does nothing.
var NoopCallback Callback = func(string, any) error { return nil }

// WrapSafe converts a Callback to a SafeCallback.
// Errors from the original callback are logged but not propagated.
// A nil input yields a no-op SafeCallback so call sites never nil-check.
func WrapSafe(cb Callback) SafeCallback {
	if cb == nil {
		return func(string, any) {}
	}
	return func(phase string, detail any) {
		if err := cb(phase, detail); err != nil {
			slog.Warn("status callback error (swallowed)",
				"phase", phase,
				"error", err,
				"stack", string(debug.Stack()))
		}
	}
}
