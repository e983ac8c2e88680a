package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// EventWorker processes lifecycle event jobs from the River queue. For now
// it logs the event; webhook fan-out can hang off this later.
type EventWorker struct {
	river.WorkerDefaults[EventJobArgs]
}

// Work processes a single event job.
func (w *EventWorker) Work(ctx context.Context, job *river.Job[EventJobArgs]) error {
	slog.InfoContext(ctx, "processing lifecycle event",
		"event", job.Args.Event,
		"tenant_id", job.Args.TenantID,
		"module_id", job.Args.ModuleID,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}
