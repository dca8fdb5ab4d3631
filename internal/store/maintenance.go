package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"tonearm/internal/logging"
)

// CleanupOldEntries runs the two-phase eviction sweep. Track index rows (and
// nothing else) go first: entries untouched for maxAge with access counts
// below retainCount are deleted. Artwork goes second under the same rule on
// use counts. Metadata rows are deliberately retained longer than artwork
// since metadata is small and artwork is not. Returns the total rows removed.
func (s *Store) CleanupOldEntries(ctx context.Context, maxAge time.Duration, retainCount int) (int64, error) {
	if retainCount < 1 {
		retainCount = 1
	}
	cutoff := formatTime(time.Now().Add(-maxAge))

	tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	trackRes, err := tx.ExecContext(ctx,
		`DELETE FROM track_index WHERE last_accessed < ? AND access_count < ?`,
		cutoff, retainCount,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: sweep track index: %w", ErrTransactionFailure, err)
	}
	trackDeleted, err := trackRes.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: track rows affected: %w", ErrTransactionFailure, err)
	}

	artworkRes, err := tx.ExecContext(ctx,
		`DELETE FROM artwork_cache WHERE last_used < ? AND use_count < ?`,
		cutoff, retainCount,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: sweep artwork: %w", ErrTransactionFailure, err)
	}
	artworkDeleted, err := artworkRes.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: artwork rows affected: %w", ErrTransactionFailure, err)
	}

	if err := commit(tx); err != nil {
		return 0, err
	}

	total := trackDeleted + artworkDeleted
	if total > 0 {
		s.logger.Info("cache sweep removed stale entries",
			logging.Int64("tracks_deleted", trackDeleted),
			logging.Int64("artwork_deleted", artworkDeleted),
			logging.Duration("max_age", maxAge))
	}
	return total, nil
}

// Stats returns record counts per table plus the verified/unverified split of
// the track index.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(1) FROM track_index`, &stats.TrackCount},
		{`SELECT COUNT(1) FROM metadata_cache`, &stats.MetadataCount},
		{`SELECT COUNT(1) FROM artwork_cache`, &stats.ArtworkCount},
		{`SELECT COUNT(1) FROM verification_queue`, &stats.QueueCount},
		{`SELECT COUNT(1) FROM track_index WHERE verified = 1`, &stats.VerifiedTracks},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return Stats{}, fmt.Errorf("%w: cache stats: %w", ErrTransactionFailure, err)
		}
	}
	stats.UnverifiedTracks = stats.TrackCount - stats.VerifiedTracks
	return stats, nil
}

// Clear removes all records from all four tables atomically. Used for cache
// resets, not steady-state operation.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"track_index", "metadata_cache", "artwork_cache", "verification_queue"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("%w: clear %s: %w", ErrTransactionFailure, table, err)
		}
	}

	if err := commit(tx); err != nil {
		return err
	}

	s.logger.Info("cache cleared")
	return nil
}

// CheckHealth returns diagnostic information about the cache database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{
		DBPath:        s.path,
		SchemaVersion: schemaVersion,
	}

	if s.path == "" {
		return health, errors.New("cache database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat cache database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("cache database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("cache database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping cache database: %w", err)
	}
	health.DatabaseReadable = true

	expected := map[string]struct{}{
		"track_index":        {},
		"metadata_cache":     {},
		"artwork_cache":      {},
		"verification_queue": {},
	}
	rows, err := s.db.QueryContext(connCtx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("query table info: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("scan table info: %w", err)
		}
		if _, ok := expected[name]; ok {
			health.TablesPresent = append(health.TablesPresent, name)
			delete(expected, name)
		}
	}
	if err := rows.Err(); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("iterate table info: %w", err)
	}
	for name := range expected {
		health.MissingTables = append(health.MissingTables, name)
	}

	if len(health.MissingTables) == 0 {
		row := s.db.QueryRowContext(connCtx, `SELECT COUNT(1) FROM track_index`)
		if err := row.Scan(&health.TotalTracks); err != nil && !errors.Is(err, sql.ErrNoRows) {
			health.Error = err.Error()
			return health, fmt.Errorf("count tracks: %w", err)
		}
	}

	row := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}
