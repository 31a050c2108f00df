// Package recorder accumulates workflow verdicts. Pure accumulation: no
// retry logic lives here, and every terminal outcome is recorded even when
// the underlying policy was "continue anyway", so a failed workflow never
// silently disappears.
package recorder

import (
	"sync"

	"go.uber.org/zap"

	"github.com/kv9x/dowser-cli/api/schemas"
)

// Recorder owns WorkflowResult values exclusively and exposes them read-only.
// Safe for use by concurrent workflow instances; entries keep arrival order.
type Recorder struct {
	mu      sync.Mutex
	results []schemas.WorkflowResult
	logger  *zap.Logger
}

// New creates an empty Recorder.
func New(logger *zap.Logger) *Recorder {
	return &Recorder{logger: logger.Named("recorder")}
}

// Record appends one terminal workflow outcome.
func (r *Recorder) Record(result schemas.WorkflowResult) {
	r.mu.Lock()
	r.results = append(r.results, result)
	r.mu.Unlock()

	r.logger.Info("Workflow recorded.",
		zap.String("workflow", result.Workflow),
		zap.String("route", result.Route),
		zap.String("status", string(result.Status)),
		zap.String("reason", result.Reason),
		zap.Duration("duration", result.Duration))
}

// Results returns a copy of the ordered result list.
func (r *Recorder) Results() []schemas.WorkflowResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schemas.WorkflowResult, len(r.results))
	copy(out, r.results)
	return out
}

// Summary tallies terminal statuses for reporting.
func (r *Recorder) Summary() map[schemas.WorkflowStatus]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[schemas.WorkflowStatus]int, 3)
	for _, res := range r.results {
		counts[res.Status]++
	}
	return counts
}
