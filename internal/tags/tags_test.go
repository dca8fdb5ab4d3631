package tags_test

import (
	"bytes"
	"testing"

	"tonearm/internal/tags"
	"tonearm/internal/testsupport"
)

func TestExtractID3v1(t *testing.T) {
	content := testsupport.TaggedContent("Harvest Moon", "Neil Young", "Harvest Moon", "1992")

	meta, err := tags.Extract("harvest_moon.mp3", content)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if meta.Title != "Harvest Moon" {
		t.Fatalf("unexpected title %q", meta.Title)
	}
	if meta.Artist != "Neil Young" {
		t.Fatalf("unexpected artist %q", meta.Artist)
	}
	if meta.Year != 1992 {
		t.Fatalf("unexpected year %d", meta.Year)
	}
}

func TestExtractRejectsUntaggedContent(t *testing.T) {
	_, err := tags.Extract("noise.bin", bytes.Repeat([]byte{0x42}, 512))
	if err == nil {
		t.Fatal("expected error for untagged content")
	}
}

func TestExtractFormatFallsBackToExtension(t *testing.T) {
	content := testsupport.TaggedContent("T", "A", "B", "2000")

	meta, err := tags.Extract("track.mp3", content)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if meta.Format == "" {
		t.Fatal("expected a format")
	}
}
