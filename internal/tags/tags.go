package tags

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dhowden/tag"

	"tonearm/internal/store"
)

// Extract parses embedded tags out of raw audio content and maps them onto a
// metadata record. Audio properties (bitrate, sample rate, channel layout)
// are not carried in tag frames, so callers merging this result should expect
// those fields to stay zero.
func Extract(name string, content []byte) (store.Metadata, error) {
	m, err := tag.ReadFrom(bytes.NewReader(content))
	if err != nil {
		return store.Metadata{}, fmt.Errorf("read tags from %s: %w", name, err)
	}

	meta := store.Metadata{
		Title:       m.Title(),
		Artist:      m.Artist(),
		Album:       m.Album(),
		AlbumArtist: m.AlbumArtist(),
		Genre:       m.Genre(),
		Year:        m.Year(),
		Format:      formatName(name, m),
	}

	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		meta.AlbumArt = pic.Data
		meta.AlbumArtMIME = pic.MIMEType
	}

	return meta, nil
}

// formatName prefers the container reported by the tag parser and falls back
// to the file extension for formats the parser reports generically.
func formatName(name string, m tag.Metadata) string {
	if ft := string(m.FileType()); ft != "" && ft != string(tag.UnknownFileType) {
		return strings.ToLower(ft)
	}
	if idx := strings.LastIndex(name, "."); idx >= 0 && idx < len(name)-1 {
		return strings.ToLower(name[idx+1:])
	}
	return ""
}
