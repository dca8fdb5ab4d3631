package store

import "time"

// Metadata carries the descriptive fields a caller supplies when storing or
// verifying a track. Zero values mean "unknown" and never overwrite existing
// data during reconciliation.
type Metadata struct {
	Title        string
	Artist       string
	Album        string
	Year         int
	Genre        string
	Duration     float64 // seconds
	SampleRate   int
	Channels     int
	BitDepth     int
	Bitrate      int
	Format       string
	AlbumArt     []byte
	AlbumArtMIME string
	AlbumArtist  string
}

// TrackIndexRecord anchors one optimistic identity in the cache.
type TrackIndexRecord struct {
	Key                string
	FileName           string
	FileNameLower      string
	FileSize           int64
	ContentFingerprint string
	MetadataCacheKey   string
	ArtworkCacheKey    string
	CreatedAt          time.Time
	LastAccessed       time.Time
	AccessCount        int64
	Verified           bool
	SupersededBy       string
}

// Live reports whether the record has not been retired by a collision.
func (r *TrackIndexRecord) Live() bool {
	return r != nil && r.SupersededBy == ""
}

// MetadataRecord holds the denormalized descriptive fields for one track.
type MetadataRecord struct {
	Key              string
	Title            string
	Artist           string
	Album            string
	Year             int
	Genre            string
	Duration         float64
	SampleRate       int
	Channels         int
	BitDepth         int
	Bitrate          int
	Format           string
	ArtworkMIME      string
	Verified         bool
	VerificationHash string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	VerifiedAt       *time.Time
}

// ArtworkRecord holds cached album art. UseCount and LastUsed drive eviction.
type ArtworkRecord struct {
	Key         string
	Data        []byte
	MIMEType    string
	Size        int64
	AlbumArtist string
	CreatedAt   time.Time
	LastUsed    time.Time
	UseCount    int64
}

// QueueItem is one pending verification task.
type QueueItem struct {
	Key          string
	Priority     int
	RetryCount   int
	SourcePath   string
	CreatedAt    time.Time
	LastAttempt  *time.Time
	ErrorMessage string
}

// LookupResult bundles the three records returned by an optimistic lookup.
// All fields are nil on a miss.
type LookupResult struct {
	Track    *TrackIndexRecord
	Metadata *MetadataRecord
	Artwork  *ArtworkRecord
}

// PutResult reports the keys created by an optimistic store.
type PutResult struct {
	Key         string
	MetadataKey string
	ArtworkKey  string
}

// VerifyResult reports the outcome of a reconciliation pass. A collision is a
// successful outcome, not an error: the old record has been retired and Key
// names the fresh record holding the verified truth.
type VerifyResult struct {
	Updated   bool
	Collision bool
	Key       string
}

// Stats counts records per table with a verified split for the track index.
type Stats struct {
	TrackCount       int
	MetadataCount    int
	ArtworkCount     int
	QueueCount       int
	VerifiedTracks   int
	UnverifiedTracks int
}

// DatabaseHealth captures diagnostic information about the cache database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TablesPresent    []string
	MissingTables    []string
	IntegrityCheck   bool
	TotalTracks      int
	Error            string
}
