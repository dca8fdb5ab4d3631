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

// Verify reconciles a cached entry against full file content. It computes the
// strong hash and content fingerprint from content, then takes one of three
// paths:
//
//   - No track exists for key: the verified records are created fresh.
//   - The stored fingerprint differs from the computed one: a collision. The
//     existing record is retired via superseded_by and a new record is stored
//     under a derived key holding the verified truth. The old record's
//     identity is never mutated in place.
//   - Fingerprints match (or no fingerprint was stored): the metadata record
//     is updated field by field, verified values overriding optimistic ones
//     only where present, and verified flags, hash, and timestamps are
//     stamped.
//
// A collision is a successful outcome reported in the result, not an error.
func (s *Store) Verify(ctx context.Context, key, name string, size int64, meta Metadata, content []byte) (*VerifyResult, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: verification requires file content", ErrIO)
	}

	hash := identity.VerificationHash(content)
	fingerprint := identity.ContentFingerprint(content)
	now := time.Now()

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM track_index WHERE key = ?`, key)
	track, err := scanTrack(row)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: load track: %w", ErrTransactionFailure, err)
	}

	switch {
	case track == nil:
		if err := s.createVerified(ctx, tx, key, name, size, meta, fingerprint, hash, now); err != nil {
			return nil, err
		}
		if err := commit(tx); err != nil {
			return nil, err
		}
		s.logger.Debug("verification created fresh records",
			logging.String(logging.FieldKey, key),
			logging.String("file_name", name))
		return &VerifyResult{Updated: true, Collision: false, Key: key}, nil

	case track.ContentFingerprint != "" && track.ContentFingerprint != fingerprint:
		derived := identity.DerivedKey(key, now)
		if _, err := tx.ExecContext(ctx,
			`UPDATE track_index SET superseded_by = ? WHERE key = ?`,
			derived, key,
		); err != nil {
			return nil, fmt.Errorf("%w: retire colliding track: %w", ErrTransactionFailure, err)
		}
		if err := s.createVerified(ctx, tx, derived, name, size, meta, fingerprint, hash, now); err != nil {
			return nil, err
		}
		if err := commit(tx); err != nil {
			return nil, err
		}
		s.telemetry.CollisionDetected(key)
		s.logger.Info("fast-key collision resolved by supersession",
			logging.String(logging.FieldKey, key),
			logging.String("derived_key", derived),
			logging.String("file_name", name),
			logging.String(logging.FieldEventType, "collision_detected"))
		return &VerifyResult{Updated: true, Collision: true, Key: derived}, nil

	default:
		if err := s.reconcileInPlace(ctx, tx, track, meta, fingerprint, hash, now); err != nil {
			return nil, err
		}
		if err := commit(tx); err != nil {
			return nil, err
		}
		s.logger.Debug("verification confirmed cached records",
			logging.String(logging.FieldKey, key))
		return &VerifyResult{Updated: true, Collision: false, Key: key}, nil
	}
}

// createVerified writes a full verified record set under the given key.
func (s *Store) createVerified(ctx context.Context, tx *sql.Tx, key, name string, size int64, meta Metadata, fingerprint, hash string, now time.Time) error {
	artworkKey := ""
	if len(meta.AlbumArt) > 0 {
		artworkKey = key
		if err := insertArtwork(ctx, tx, key, meta, now); err != nil {
			return err
		}
	}
	if err := insertMetadata(ctx, tx, key, meta, true, hash, now); err != nil {
		return err
	}
	return insertTrack(ctx, tx, trackInsert{
		key:         key,
		fileName:    name,
		fileSize:    size,
		fingerprint: fingerprint,
		metadataKey: key,
		artworkKey:  artworkKey,
		verified:    true,
		now:         now,
	})
}

// reconcileInPlace merges verified metadata into the existing records.
func (s *Store) reconcileInPlace(ctx context.Context, tx *sql.Tx, track *TrackIndexRecord, meta Metadata, fingerprint, hash string, now time.Time) error {
	timestamp := formatTime(now)

	if _, err := tx.ExecContext(ctx,
		`UPDATE track_index SET content_fingerprint = ?, verified = 1 WHERE key = ?`,
		fingerprint, track.Key,
	); err != nil {
		return fmt.Errorf("%w: update track: %w", ErrTransactionFailure, err)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+metadataColumns+` FROM metadata_cache WHERE key = ?`, track.MetadataCacheKey)
	existing, err := scanMetadata(row)
	if errors.Is(err, sql.ErrNoRows) {
		return insertMetadata(ctx, tx, track.MetadataCacheKey, meta, true, hash, now)
	}
	if err != nil {
		return fmt.Errorf("%w: load metadata: %w", ErrTransactionFailure, err)
	}

	merged := mergeMetadata(existing, meta)
	if _, err := tx.ExecContext(ctx,
		`UPDATE metadata_cache SET
            title = ?, artist = ?, album = ?, year = ?, genre = ?, duration = ?,
            sample_rate = ?, channels = ?, bit_depth = ?, bitrate = ?, format = ?,
            artwork_mime = ?, verified = 1, verification_hash = ?, updated_at = ?,
            verified_at = ?
         WHERE key = ?`,
		merged.Title,
		merged.Artist,
		merged.Album,
		nullableInt(merged.Year),
		nullableString(merged.Genre),
		merged.Duration,
		merged.SampleRate,
		merged.Channels,
		merged.BitDepth,
		merged.Bitrate,
		merged.Format,
		nullableString(merged.ArtworkMIME),
		hash,
		timestamp,
		timestamp,
		track.MetadataCacheKey,
	); err != nil {
		return fmt.Errorf("%w: update metadata: %w", ErrTransactionFailure, err)
	}

	if len(meta.AlbumArt) > 0 {
		artworkKey := track.ArtworkCacheKey
		if artworkKey == "" {
			artworkKey = track.Key
		}
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM artwork_cache WHERE key = ?`, artworkKey,
		).Scan(&count); err != nil {
			return fmt.Errorf("%w: check artwork: %w", ErrTransactionFailure, err)
		}
		if count > 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE artwork_cache SET data = ?, mime_type = ?, size = ?, album_artist = ? WHERE key = ?`,
				meta.AlbumArt,
				meta.AlbumArtMIME,
				int64(len(meta.AlbumArt)),
				nullableString(meta.AlbumArtist),
				artworkKey,
			); err != nil {
				return fmt.Errorf("%w: update artwork: %w", ErrTransactionFailure, err)
			}
		} else {
			if err := insertArtwork(ctx, tx, artworkKey, meta, now); err != nil {
				return err
			}
		}
		if track.ArtworkCacheKey == "" {
			if _, err := tx.ExecContext(ctx,
				`UPDATE track_index SET artwork_cache_key = ? WHERE key = ?`,
				artworkKey, track.Key,
			); err != nil {
				return fmt.Errorf("%w: link artwork: %w", ErrTransactionFailure, err)
			}
		}
	}

	return nil
}

// mergeMetadata applies verified fields over the cached record. Verified data
// always wins when present; zero values leave the optimistic value in place.
func mergeMetadata(existing *MetadataRecord, verified Metadata) MetadataRecord {
	merged := *existing
	if verified.Title != "" {
		merged.Title = verified.Title
	}
	if verified.Artist != "" {
		merged.Artist = verified.Artist
	}
	if verified.Album != "" {
		merged.Album = verified.Album
	}
	if verified.Year != 0 {
		merged.Year = verified.Year
	}
	if verified.Genre != "" {
		merged.Genre = verified.Genre
	}
	if verified.Duration != 0 {
		merged.Duration = verified.Duration
	}
	if verified.SampleRate != 0 {
		merged.SampleRate = verified.SampleRate
	}
	if verified.Channels != 0 {
		merged.Channels = verified.Channels
	}
	if verified.BitDepth != 0 {
		merged.BitDepth = verified.BitDepth
	}
	if verified.Bitrate != 0 {
		merged.Bitrate = verified.Bitrate
	}
	if verified.Format != "" {
		merged.Format = verified.Format
	}
	if verified.AlbumArtMIME != "" {
		merged.ArtworkMIME = verified.AlbumArtMIME
	}
	return merged
}
