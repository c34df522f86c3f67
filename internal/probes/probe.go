// Package probes defines the common shape every signal producer satisfies
// (§9 "Probe polymorphism"): {name, timeout, run(input, ctx) ->
// partial-signals-or-null}. The engine (internal/engine) holds an ordered
// collection of these instead of dispatching to named methods, so adding a
// probe never requires touching engine code beyond the construction list.
package probes

import (
	"context"
	"time"

	"signupguard/internal/models"
)

// Probe is satisfied by every C3-C9 signal producer. Run must never panic
// and must respect ctx cancellation — the engine cancels in-flight probes
// together on caller cancellation or overall-budget exhaustion (§5).
type Probe interface {
	// Name identifies the probe for logging and metrics tagging.
	Name() string

	// Timeout is this probe's own per-call deadline, applied by the
	// engine in addition to (never instead of) the overall budget.
	Timeout() time.Duration

	// Run executes the probe against parsed/input and merges whatever it
	// produces into signals. A probe that fails, times out, or is
	// disabled leaves its fields nil/zero on signals rather than
	// returning an error — callers read signals afterward, not the
	// return value, to decide what fired.
	Run(ctx context.Context, input models.EmailInput, parsed models.ParsedEmail, signals *models.Signals)
}

// WithTimeout derives a child context bounded by both ctx's existing
// deadline and d, whichever is sooner — the same pattern the teacher uses
// for its per-job valCtx in internal/worker.processTask.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
