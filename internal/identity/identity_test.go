package identity_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"tonearm/internal/identity"
)

func TestOptimisticKeyCaseInsensitive(t *testing.T) {
	cases := []string{"song.mp3", "Song.MP3", "SONG.mp3", "sOnG.Mp3"}
	want := identity.OptimisticKey("song.mp3", 2048)
	for _, name := range cases {
		if got := identity.OptimisticKey(name, 2048); got != want {
			t.Fatalf("OptimisticKey(%q, 2048) = %q, want %q", name, got, want)
		}
	}
}

func TestOptimisticKeySizeSensitive(t *testing.T) {
	a := identity.OptimisticKey("song.mp3", 2048)
	b := identity.OptimisticKey("song.mp3", 2049)
	if a == b {
		t.Fatalf("expected different keys for different sizes, both %q", a)
	}
}

func TestOptimisticKeyDeterministic(t *testing.T) {
	first := identity.OptimisticKey("Artist - Title.flac", 104857600)
	for i := 0; i < 10; i++ {
		if got := identity.OptimisticKey("Artist - Title.flac", 104857600); got != first {
			t.Fatalf("key not deterministic: %q vs %q", got, first)
		}
	}
}

func TestContentFingerprintIdenticalBuffers(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB, 0xCD}, 4096)
	clone := append([]byte(nil), data...)
	if identity.ContentFingerprint(data) != identity.ContentFingerprint(clone) {
		t.Fatal("identical buffers produced different fingerprints")
	}
}

func TestContentFingerprintSensitivity(t *testing.T) {
	data := bytes.Repeat([]byte{0x11}, 8192)
	regions := map[string]int{
		"head":   10,
		"middle": len(data) / 2,
		"tail":   len(data) - 10,
	}
	base := identity.ContentFingerprint(data)
	for name, offset := range regions {
		mutated := append([]byte(nil), data...)
		mutated[offset] ^= 0xFF
		if identity.ContentFingerprint(mutated) == base {
			t.Fatalf("fingerprint unchanged after %s mutation", name)
		}
	}
}

func TestContentFingerprintLengthSensitive(t *testing.T) {
	short := bytes.Repeat([]byte{0x22}, 512)
	long := bytes.Repeat([]byte{0x22}, 513)
	if identity.ContentFingerprint(short) == identity.ContentFingerprint(long) {
		t.Fatal("fingerprints for different lengths should differ")
	}
}

func TestContentFingerprintSmallBuffers(t *testing.T) {
	if identity.ContentFingerprint(nil) == "" {
		t.Fatal("empty content should still produce a fingerprint")
	}
	if identity.ContentFingerprint([]byte("x")) == identity.ContentFingerprint([]byte("y")) {
		t.Fatal("single-byte buffers should fingerprint differently")
	}
}

func TestVerificationHashKnownValue(t *testing.T) {
	// SHA-256 of the empty string.
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := identity.VerificationHash(nil); got != empty {
		t.Fatalf("VerificationHash(nil) = %q, want %q", got, empty)
	}
	if identity.VerificationHash([]byte("a")) == identity.VerificationHash([]byte("b")) {
		t.Fatal("distinct contents hashed identically")
	}
}

func TestDerivedKeyFormat(t *testing.T) {
	at := time.UnixMilli(1712345678901)
	got := identity.DerivedKey("abc123", at)
	if !strings.HasPrefix(got, "abc123_") {
		t.Fatalf("derived key %q missing base prefix", got)
	}
	if got != "abc123_1712345678901" {
		t.Fatalf("derived key %q, want abc123_1712345678901", got)
	}
}
