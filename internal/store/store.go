package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"tonearm/internal/config"
	"tonearm/internal/logging"
	"tonearm/internal/telemetry"
)

// Store manages the metadata cache tables backed by SQLite. Every operation
// that touches more than one table runs inside a single transaction so readers
// never observe a track index row pointing at uncommitted metadata.
type Store struct {
	db        *sql.DB
	path      string
	logger    *slog.Logger
	telemetry *telemetry.Recorder
}

// Open initializes or connects to the cache database and verifies the schema.
// Logger and recorder may be nil; the store then runs silently.
func Open(cfg *config.Config, logger *slog.Logger, rec *telemetry.Recorder) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("%w: ensure directories: %w", ErrStoreUnavailable, err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite db: %w", ErrStoreUnavailable, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: apply pragma %q: %w", ErrStoreUnavailable, pragma, execErr)
		}
	}

	store := &Store{
		db:        db,
		path:      dbPath,
		logger:    logging.NewComponentLogger(logger, "store"),
		telemetry: rec,
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the database file.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *Store) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", ErrTransactionFailure, err)
	}
	return tx, nil
}

func commit(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrTransactionFailure, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const trackColumns = "key, file_name, file_name_lower, file_size, content_fingerprint, metadata_cache_key, artwork_cache_key, created_at, last_accessed, access_count, verified, superseded_by"

func scanTrack(scanner rowScanner) (*TrackIndexRecord, error) {
	var (
		key           string
		fileName      string
		fileNameLower string
		fileSize      int64
		fingerprint   sql.NullString
		metadataKey   string
		artworkKey    sql.NullString
		createdRaw    string
		accessedRaw   string
		accessCount   int64
		verified      int
		supersededBy  sql.NullString
	)
	if err := scanner.Scan(
		&key,
		&fileName,
		&fileNameLower,
		&fileSize,
		&fingerprint,
		&metadataKey,
		&artworkKey,
		&createdRaw,
		&accessedRaw,
		&accessCount,
		&verified,
		&supersededBy,
	); err != nil {
		return nil, err
	}

	record := &TrackIndexRecord{
		Key:                key,
		FileName:           fileName,
		FileNameLower:      fileNameLower,
		FileSize:           fileSize,
		ContentFingerprint: fingerprint.String,
		MetadataCacheKey:   metadataKey,
		ArtworkCacheKey:    artworkKey.String,
		AccessCount:        accessCount,
		Verified:           verified != 0,
		SupersededBy:       supersededBy.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		record.CreatedAt = created
	}
	if accessed, err := parseTimeString(accessedRaw); err == nil {
		record.LastAccessed = accessed
	}
	return record, nil
}

const metadataColumns = "key, title, artist, album, year, genre, duration, sample_rate, channels, bit_depth, bitrate, format, artwork_mime, verified, verification_hash, created_at, updated_at, verified_at"

func scanMetadata(scanner rowScanner) (*MetadataRecord, error) {
	var (
		key         string
		title       string
		artist      string
		album       string
		year        sql.NullInt64
		genre       sql.NullString
		duration    float64
		sampleRate  int
		channels    int
		bitDepth    int
		bitrate     int
		format      string
		artworkMIME sql.NullString
		verified    int
		hash        sql.NullString
		createdRaw  string
		updatedRaw  string
		verifiedRaw sql.NullString
	)
	if err := scanner.Scan(
		&key,
		&title,
		&artist,
		&album,
		&year,
		&genre,
		&duration,
		&sampleRate,
		&channels,
		&bitDepth,
		&bitrate,
		&format,
		&artworkMIME,
		&verified,
		&hash,
		&createdRaw,
		&updatedRaw,
		&verifiedRaw,
	); err != nil {
		return nil, err
	}

	record := &MetadataRecord{
		Key:              key,
		Title:            title,
		Artist:           artist,
		Album:            album,
		Year:             int(year.Int64),
		Genre:            genre.String,
		Duration:         duration,
		SampleRate:       sampleRate,
		Channels:         channels,
		BitDepth:         bitDepth,
		Bitrate:          bitrate,
		Format:           format,
		ArtworkMIME:      artworkMIME.String,
		Verified:         verified != 0,
		VerificationHash: hash.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		record.UpdatedAt = updated
	}
	if verifiedRaw.Valid {
		if verifiedAt, err := parseTimeString(verifiedRaw.String); err == nil {
			record.VerifiedAt = &verifiedAt
		}
	}
	return record, nil
}

const artworkColumns = "key, data, mime_type, size, album_artist, created_at, last_used, use_count"

func scanArtwork(scanner rowScanner) (*ArtworkRecord, error) {
	var (
		key         string
		data        []byte
		mimeType    string
		size        int64
		albumArtist sql.NullString
		createdRaw  string
		usedRaw     string
		useCount    int64
	)
	if err := scanner.Scan(
		&key,
		&data,
		&mimeType,
		&size,
		&albumArtist,
		&createdRaw,
		&usedRaw,
		&useCount,
	); err != nil {
		return nil, err
	}

	record := &ArtworkRecord{
		Key:         key,
		Data:        data,
		MIMEType:    mimeType,
		Size:        size,
		AlbumArtist: albumArtist.String,
		UseCount:    useCount,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		record.CreatedAt = created
	}
	if used, err := parseTimeString(usedRaw); err == nil {
		record.LastUsed = used
	}
	return record, nil
}

const queueColumns = "key, priority, retry_count, source_path, created_at, last_attempt, error_message"

func scanQueueItem(scanner rowScanner) (*QueueItem, error) {
	var (
		key          string
		priority     int
		retryCount   int
		sourcePath   sql.NullString
		createdRaw   string
		attemptRaw   sql.NullString
		errorMessage sql.NullString
	)
	if err := scanner.Scan(
		&key,
		&priority,
		&retryCount,
		&sourcePath,
		&createdRaw,
		&attemptRaw,
		&errorMessage,
	); err != nil {
		return nil, err
	}

	item := &QueueItem{
		Key:          key,
		Priority:     priority,
		RetryCount:   retryCount,
		SourcePath:   sourcePath.String,
		ErrorMessage: errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if attemptRaw.Valid {
		if attempt, err := parseTimeString(attemptRaw.String); err == nil {
			item.LastAttempt = &attempt
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
