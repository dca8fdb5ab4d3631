package worker

import (
	"context"

	"tonearm/internal/logging"
)

// Summary represents lightweight worker diagnostics.
type Summary struct {
	Running      bool
	Paused       bool
	QueueSize    int
	PendingTasks int
	LastError    string
	Stats        Stats
}

// Status returns the latest worker information.
func (w *Worker) Status(ctx context.Context) Summary {
	w.mu.RLock()
	summary := Summary{
		Running:      w.running,
		Paused:       w.paused,
		PendingTasks: len(w.pending),
		Stats:        w.stats,
	}
	if w.lastErr != nil {
		summary.LastError = w.lastErr.Error()
	}
	w.mu.RUnlock()

	size, err := w.store.QueueSize(ctx)
	if err != nil {
		w.logger.Warn("failed to read queue size", logging.Error(err))
	} else {
		summary.QueueSize = size
	}
	return summary
}
