package identity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultSampleSize is the number of bytes sampled from each region of the
// content when deriving a fingerprint.
const DefaultSampleSize = 1024

// OptimisticKey derives the fast lookup key for a file from its name and size.
// The key is case-insensitive on the name and sensitive to the size. It is a
// sharding key, not an identity: distinct contents can share a key.
func OptimisticKey(name string, size int64) string {
	digest := xxhash.New()
	digest.WriteString(strings.ToLower(name))
	digest.WriteString(":")
	digest.WriteString(strconv.FormatInt(size, 10))
	return strconv.FormatUint(digest.Sum64(), 16)
}

// ContentFingerprint samples the content with the default sample size.
func ContentFingerprint(data []byte) string {
	return ContentFingerprintN(data, DefaultSampleSize)
}

// ContentFingerprintN folds up to sampleSize bytes from the head, middle, and
// tail of the content into a single cheap hash. Fingerprint equality means
// "probably the same content"; only VerificationHash proves identity.
func ContentFingerprintN(data []byte, sampleSize int) string {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}

	digest := xxhash.New()
	var lengthPrefix [8]byte
	binary.LittleEndian.PutUint64(lengthPrefix[:], uint64(len(data)))
	digest.Write(lengthPrefix[:])

	digest.Write(sampleRegion(data, 0, sampleSize))
	if len(data) > sampleSize {
		middle := len(data)/2 - sampleSize/2
		if middle < 0 {
			middle = 0
		}
		digest.Write(sampleRegion(data, middle, sampleSize))
	}
	if len(data) > 2*sampleSize {
		digest.Write(sampleRegion(data, len(data)-sampleSize, sampleSize))
	}

	return strconv.FormatUint(digest.Sum64(), 16)
}

func sampleRegion(data []byte, offset, size int) []byte {
	if offset >= len(data) {
		return nil
	}
	end := offset + size
	if end > len(data) {
		end = len(data)
	}
	return data[offset:end]
}

// VerificationHash computes the strong full-content hash used to prove
// identity during background verification. It reads every byte; never call it
// on the lookup path.
func VerificationHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DerivedKey produces the supersession key recorded when a collision retires
// an existing record. Two collisions for the same key within the same
// millisecond would derive the same key; callers serialize collision handling
// through the store transaction, which rejects the duplicate insert.
func DerivedKey(key string, at time.Time) string {
	return key + "_" + strconv.FormatInt(at.UnixMilli(), 10)
}
