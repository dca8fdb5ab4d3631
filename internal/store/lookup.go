package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tonearm/internal/identity"
	"tonearm/internal/logging"
)

// Lookup returns the cached records for a (name, size) pair, or nil on a miss.
//
// This is the latency-sensitive UI path: a hit bumps the track access stats
// and artwork use stats inside one transaction and records a cache_hit event
// with the observed latency. Store failures degrade to a miss, logged and
// counted but never surfaced to the caller, except for context cancellation
// which propagates.
func (s *Store) Lookup(ctx context.Context, name string, size int64) (*LookupResult, error) {
	key := identity.OptimisticKey(name, size)
	start := time.Now()

	result, err := s.lookupByKey(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("lookup degraded to miss",
			logging.String(logging.FieldKey, key),
			logging.String("file_name", name),
			logging.Error(err),
			logging.String(logging.FieldEventType, "lookup_degraded"),
			logging.String(logging.FieldImpact, "track displays without cached metadata until verification"))
		s.telemetry.CacheMiss(key)
		return nil, nil
	}
	if result == nil {
		s.telemetry.CacheMiss(key)
		return nil, nil
	}

	s.telemetry.CacheHit(key, time.Since(start))
	return result, nil
}

func (s *Store) lookupByKey(ctx context.Context, key string) (*LookupResult, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now())

	row := tx.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM track_index WHERE key = ?`, key)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load track index: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE track_index SET access_count = access_count + 1, last_accessed = ? WHERE key = ?`,
		now, key,
	); err != nil {
		return nil, fmt.Errorf("bump access stats: %w", err)
	}
	track.AccessCount++

	row = tx.QueryRowContext(ctx,
		`SELECT `+metadataColumns+` FROM metadata_cache WHERE key = ?`, track.MetadataCacheKey)
	metadata, err := scanMetadata(row)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	var artwork *ArtworkRecord
	if track.ArtworkCacheKey != "" {
		row = tx.QueryRowContext(ctx,
			`SELECT `+artworkColumns+` FROM artwork_cache WHERE key = ?`, track.ArtworkCacheKey)
		artwork, err = scanArtwork(row)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("load artwork: %w", err)
		}
		if artwork != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE artwork_cache SET use_count = use_count + 1, last_used = ? WHERE key = ?`,
				now, track.ArtworkCacheKey,
			); err != nil {
				return nil, fmt.Errorf("bump artwork stats: %w", err)
			}
			artwork.UseCount++
		}
	}

	if err := commit(tx); err != nil {
		return nil, err
	}

	return &LookupResult{Track: track, Metadata: metadata, Artwork: artwork}, nil
}

// TrackByKey fetches a single track index record without bumping access stats.
func (s *Store) TrackByKey(ctx context.Context, key string) (*TrackIndexRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM track_index WHERE key = ?`, key)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}
	return track, nil
}

// MetadataByKey fetches a single metadata record without side effects.
func (s *Store) MetadataByKey(ctx context.Context, key string) (*MetadataRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+metadataColumns+` FROM metadata_cache WHERE key = ?`, key)
	record, err := scanMetadata(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metadata: %w", err)
	}
	return record, nil
}

// ArtworkByKey fetches a single artwork record without side effects.
func (s *Store) ArtworkByKey(ctx context.Context, key string) (*ArtworkRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artworkColumns+` FROM artwork_cache WHERE key = ?`, key)
	record, err := scanArtwork(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get artwork: %w", err)
	}
	return record, nil
}
