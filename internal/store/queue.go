package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tonearm/internal/logging"
)

// Enqueue upserts a verification queue entry for key. Enqueuing an existing
// key never duplicates the entry; its priority is raised to the maximum of
// the stored and requested values, never lowered.
func (s *Store) Enqueue(ctx context.Context, key string, priority int) error {
	return s.EnqueueFile(ctx, key, "", priority)
}

// EnqueueFile enqueues key with a source path the worker can read content
// from. Re-enqueuing never clears a previously recorded source path.
func (s *Store) EnqueueFile(ctx context.Context, key, sourcePath string, priority int) error {
	if key == "" {
		return fmt.Errorf("%w: enqueue requires a key", ErrConstraintViolation)
	}
	if priority < 0 {
		priority = 0
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verification_queue (key, priority, retry_count, source_path, created_at)
         VALUES (?, ?, 0, ?, ?)
         ON CONFLICT(key) DO UPDATE SET
            priority = MAX(priority, excluded.priority),
            source_path = COALESCE(excluded.source_path, source_path)`,
		key,
		priority,
		nullableString(sourcePath),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("%w: enqueue verification: %w", ErrTransactionFailure, err)
	}

	s.logger.Debug("queued for verification",
		logging.String(logging.FieldKey, key),
		logging.Int("priority", priority))
	return nil
}

// Requeue puts a failed item back on the queue with updated retry bookkeeping.
// Unlike Enqueue it records the attempt that just failed.
func (s *Store) Requeue(ctx context.Context, key string, priority, retryCount int, sourcePath, errorMessage string) error {
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verification_queue (key, priority, retry_count, source_path, created_at, last_attempt, error_message)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET
            priority = MAX(priority, excluded.priority),
            retry_count = excluded.retry_count,
            source_path = COALESCE(excluded.source_path, source_path),
            last_attempt = excluded.last_attempt,
            error_message = excluded.error_message`,
		key,
		priority,
		retryCount,
		nullableString(sourcePath),
		now,
		now,
		nullableString(errorMessage),
	)
	if err != nil {
		return fmt.Errorf("%w: requeue verification: %w", ErrTransactionFailure, err)
	}
	return nil
}

// NextVerification atomically pops the highest-priority, oldest-created queue
// item. The queue is consume-once: the item is deleted before it is returned,
// and the worker re-enqueues on failure if a retry is warranted. Returns nil
// when the queue is empty.
func (s *Store) NextVerification(ctx context.Context) (*QueueItem, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+queueColumns+` FROM verification_queue
         ORDER BY priority DESC, created_at ASC
         LIMIT 1`)
	item, err := scanQueueItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: pop verification item: %w", ErrTransactionFailure, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM verification_queue WHERE key = ?`, item.Key,
	); err != nil {
		return nil, fmt.Errorf("%w: consume verification item: %w", ErrTransactionFailure, err)
	}

	if err := commit(tx); err != nil {
		return nil, err
	}
	return item, nil
}

// QueueSize returns the number of pending verification items.
func (s *Store) QueueSize(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM verification_queue`,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count queue: %w", ErrTransactionFailure, err)
	}
	return count, nil
}
