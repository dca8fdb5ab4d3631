package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tonearm/internal/identity"
	"tonearm/internal/logging"
)

// Put stores optimistic metadata for a file that has no cache entry yet. The
// records are written unverified; a later verification pass confirms or
// reconciles them. Raw content bytes are optional; when present, a content
// fingerprint is computed so collisions can be detected later.
//
// Put fails with ErrConstraintViolation when a record already exists for the
// fast key: second stores for the same key must go through Verify.
func (s *Store) Put(ctx context.Context, name string, size int64, meta Metadata, raw []byte) (*PutResult, error) {
	key := identity.OptimisticKey(name, size)
	fingerprint := ""
	if len(raw) > 0 {
		fingerprint = identity.ContentFingerprint(raw)
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM track_index WHERE key = ?`, key,
	).Scan(&existing); err != nil {
		return nil, fmt.Errorf("%w: check existing track: %w", ErrTransactionFailure, err)
	}
	if existing > 0 {
		return nil, fmt.Errorf("%w: track %s already cached; route updates through verification", ErrConstraintViolation, key)
	}

	now := time.Now()
	artworkKey := ""
	if len(meta.AlbumArt) > 0 {
		artworkKey = key
		if err := insertArtwork(ctx, tx, key, meta, now); err != nil {
			return nil, err
		}
	}
	if err := insertMetadata(ctx, tx, key, meta, false, "", now); err != nil {
		return nil, err
	}
	if err := insertTrack(ctx, tx, trackInsert{
		key:         key,
		fileName:    name,
		fileSize:    size,
		fingerprint: fingerprint,
		metadataKey: key,
		artworkKey:  artworkKey,
		verified:    false,
		now:         now,
	}); err != nil {
		return nil, err
	}

	if err := commit(tx); err != nil {
		return nil, err
	}

	s.logger.Debug("stored optimistic metadata",
		logging.String(logging.FieldKey, key),
		logging.String("file_name", name),
		logging.Int64("file_size", size),
		logging.Bool("has_artwork", artworkKey != ""),
		logging.Bool("has_fingerprint", fingerprint != ""))

	return &PutResult{Key: key, MetadataKey: key, ArtworkKey: artworkKey}, nil
}

type trackInsert struct {
	key         string
	fileName    string
	fileSize    int64
	fingerprint string
	metadataKey string
	artworkKey  string
	verified    bool
	now         time.Time
}

func insertTrack(ctx context.Context, tx *sql.Tx, in trackInsert) error {
	timestamp := formatTime(in.now)
	_, err := tx.ExecContext(ctx,
		`INSERT INTO track_index (
            key, file_name, file_name_lower, file_size, content_fingerprint,
            metadata_cache_key, artwork_cache_key, created_at, last_accessed,
            access_count, verified, superseded_by
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, NULL)`,
		in.key,
		in.fileName,
		strings.ToLower(in.fileName),
		in.fileSize,
		nullableString(in.fingerprint),
		in.metadataKey,
		nullableString(in.artworkKey),
		timestamp,
		timestamp,
		boolToInt(in.verified),
	)
	if err != nil {
		return wrapInsertError("insert track", err)
	}
	return nil
}

func insertMetadata(ctx context.Context, tx *sql.Tx, key string, meta Metadata, verified bool, hash string, now time.Time) error {
	timestamp := formatTime(now)
	var verifiedAt any
	if verified {
		verifiedAt = timestamp
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO metadata_cache (
            key, title, artist, album, year, genre, duration, sample_rate,
            channels, bit_depth, bitrate, format, artwork_mime, verified,
            verification_hash, created_at, updated_at, verified_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key,
		meta.Title,
		meta.Artist,
		meta.Album,
		nullableInt(meta.Year),
		nullableString(meta.Genre),
		meta.Duration,
		meta.SampleRate,
		meta.Channels,
		meta.BitDepth,
		meta.Bitrate,
		meta.Format,
		nullableString(meta.AlbumArtMIME),
		boolToInt(verified),
		nullableString(hash),
		timestamp,
		timestamp,
		verifiedAt,
	)
	if err != nil {
		return wrapInsertError("insert metadata", err)
	}
	return nil
}

func insertArtwork(ctx context.Context, tx *sql.Tx, key string, meta Metadata, now time.Time) error {
	timestamp := formatTime(now)
	_, err := tx.ExecContext(ctx,
		`INSERT INTO artwork_cache (
            key, data, mime_type, size, album_artist, created_at, last_used, use_count
        ) VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		key,
		meta.AlbumArt,
		meta.AlbumArtMIME,
		int64(len(meta.AlbumArt)),
		nullableString(meta.AlbumArtist),
		timestamp,
		timestamp,
	)
	if err != nil {
		return wrapInsertError("insert artwork", err)
	}
	return nil
}

func wrapInsertError(operation string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s: %w", ErrConstraintViolation, operation, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrTransactionFailure, operation, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var target error = err
	for target != nil {
		if strings.Contains(target.Error(), "UNIQUE constraint failed") {
			return true
		}
		target = errors.Unwrap(target)
	}
	return false
}
