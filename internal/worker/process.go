package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tonearm/internal/logging"
	"tonearm/internal/store"
	"tonearm/internal/tags"
)

// requeueWriteTimeout bounds the queue restore that runs after the worker's
// own context has been canceled.
const requeueWriteTimeout = 5 * time.Second

func (w *Worker) processItem(ctx context.Context, item *store.QueueItem) {
	w.mu.Lock()
	w.stats.Processed++
	w.mu.Unlock()

	task, ok := w.takeTask(item.Key)
	if !ok {
		resolved, err := w.resolveTask(ctx, item)
		if err != nil || resolved == nil {
			if err == nil {
				err = errors.New("no content available for key")
			}
			w.failItem(ctx, item, nil, err)
			return
		}
		task = *resolved
	}

	w.telemetry.VerificationStart(item.Key)
	start := time.Now()

	itemCtx, cancel := context.WithTimeout(ctx, w.itemTimeout)
	defer cancel()

	meta, err := tags.Extract(task.Name, task.Content)
	if err != nil {
		// Tag-less content still has an identity. Verify with empty
		// metadata; the merge keeps whatever optimistic fields exist.
		w.logger.Debug("content carries no parseable tags, verifying identity only",
			logging.String(logging.FieldKey, item.Key),
			logging.Error(err),
		)
		meta = store.Metadata{}
	}

	result, err := w.store.Verify(itemCtx, item.Key, task.Name, task.Size, meta, task.Content)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: item exceeded %s budget", store.ErrVerificationTimeout, w.itemTimeout)
		}
		w.failItem(ctx, item, &task, err)
		return
	}

	duration := time.Since(start)
	w.telemetry.VerificationComplete(result.Key, duration)

	w.mu.Lock()
	w.stats.Succeeded++
	if result.Collision {
		w.stats.Collisions++
	}
	w.mu.Unlock()

	if result.Collision {
		w.logger.Warn("verification detected a key collision",
			logging.String(logging.FieldKey, item.Key),
			logging.String("superseding_key", result.Key),
			logging.String(logging.FieldEventType, "collision_detected"),
			logging.String(logging.FieldImpact, "optimistic metadata belonged to a different file"),
		)
		return
	}
	w.logger.Info("verification complete",
		logging.String(logging.FieldKey, result.Key),
		logging.Duration(logging.FieldDuration, duration),
		logging.String(logging.FieldEventType, "verification_complete"),
	)
}

// resolveTask recovers content for queue items without an in-memory payload.
// Items enqueued with a source path (the CLI ingest path, or anything that
// survived a daemon restart) are read back from disk; otherwise an optional
// Source gets a chance.
func (w *Worker) resolveTask(ctx context.Context, item *store.QueueItem) (*Task, error) {
	if item.SourcePath != "" {
		content, err := os.ReadFile(item.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("%w: read source %s: %w", store.ErrIO, item.SourcePath, err)
		}
		return &Task{
			Name:    filepath.Base(item.SourcePath),
			Size:    int64(len(content)),
			Content: content,
		}, nil
	}
	if w.source == nil {
		return nil, nil
	}
	return w.source.Resolve(ctx, item.Key)
}

// failItem requeues a failed item at decayed priority until the retry budget
// is exhausted, then drops it and records the terminal failure. The task
// payload, when present, goes back in the pending set so the retry has
// content to work with.
func (w *Worker) failItem(ctx context.Context, item *store.QueueItem, task *Task, cause error) {
	w.setLastError(cause)

	// A canceled context is shutdown, not failure. The row was already
	// consumed, so put it back exactly as popped for the next run.
	if errors.Is(cause, context.Canceled) {
		if task != nil {
			w.restoreTask(item.Key, *task)
		}
		w.requeueAsPopped(item)
		return
	}

	// Store errors carry their own retry policy; everything else (content
	// reads, missing payloads) gets the bounded retry.
	retryable := !store.IsStoreError(cause) || store.Retryable(cause)

	retries := item.RetryCount + 1
	if retryable && retries <= w.maxRetries {
		priority := item.Priority - 1
		if priority < 1 {
			priority = 1
		}
		if err := w.store.Requeue(ctx, item.Key, priority, retries, item.SourcePath, cause.Error()); err != nil {
			w.logger.Error("failed to requeue verification item",
				logging.Error(err),
				logging.String(logging.FieldKey, item.Key),
				logging.String(logging.FieldErrorHint, "check cache database access"),
			)
		} else {
			if task != nil {
				w.restoreTask(item.Key, *task)
			}
			w.mu.Lock()
			w.stats.Retries++
			w.mu.Unlock()
			w.logger.Warn("verification failed; item requeued",
				logging.Error(cause),
				logging.String(logging.FieldKey, item.Key),
				logging.Int("retry_count", retries),
				logging.Int("priority", priority),
			)
			return
		}
	}

	w.mu.Lock()
	w.stats.Failed++
	w.mu.Unlock()
	w.telemetry.VerificationFailed(item.Key, cause)
	w.logger.Error("verification failed permanently",
		logging.Error(cause),
		logging.String(logging.FieldKey, item.Key),
		logging.Int("retry_count", item.RetryCount),
		logging.String(logging.FieldEventType, "verification_failed"),
		logging.String(logging.FieldImpact, "cached metadata for this key stays unverified"),
	)
}

// requeueAsPopped restores a consumed queue row with its original priority
// and retry count. The run context is canceled by the time this is called,
// so the write runs under its own deadline.
func (w *Worker) requeueAsPopped(item *store.QueueItem) {
	ctx, cancel := context.WithTimeout(context.Background(), requeueWriteTimeout)
	defer cancel()

	if err := w.store.Requeue(ctx, item.Key, item.Priority, item.RetryCount, item.SourcePath, item.ErrorMessage); err != nil {
		w.logger.Error("failed to restore interrupted verification item",
			logging.Error(err),
			logging.String(logging.FieldKey, item.Key),
			logging.String(logging.FieldErrorHint, "check cache database access"),
		)
	}
}
