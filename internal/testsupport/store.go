package testsupport

import (
	"context"
	"testing"

	"tonearm/internal/config"
	"tonearm/internal/store"
	"tonearm/internal/telemetry"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	s, err := store.Open(cfg, nil, nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// MustOpenStoreWithTelemetry opens a store wired to a fresh recorder.
func MustOpenStoreWithTelemetry(t testing.TB, cfg *config.Config) (*store.Store, *telemetry.Recorder) {
	t.Helper()

	rec := telemetry.NewRecorder(cfg.Telemetry.EventCapacity)
	s, err := store.Open(cfg, nil, rec)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s, rec
}

// MustPut stores optimistic metadata for tests.
func MustPut(t testing.TB, s *store.Store, name string, size int64, meta store.Metadata, raw []byte) *store.PutResult {
	t.Helper()

	result, err := s.Put(context.Background(), name, size, meta, raw)
	if err != nil {
		t.Fatalf("store.Put(%q, %d): %v", name, size, err)
	}
	return result
}

// SampleMetadata returns a populated metadata struct for tests.
func SampleMetadata() store.Metadata {
	return store.Metadata{
		Title:      "Harvest Moon",
		Artist:     "Neil Young",
		Album:      "Harvest Moon",
		Year:       1992,
		Genre:      "Folk Rock",
		Duration:   305.2,
		SampleRate: 44100,
		Channels:   2,
		BitDepth:   16,
		Bitrate:    1411,
		Format:     "flac",
	}
}
