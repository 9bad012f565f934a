// Package hashutil provides the SHA256 digest accumulator and small digest helpers.
package hashutil

import (
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"strings"

	"github.com/minio/sha256-simd"
)

// DigestHexLen is the length of a hex-encoded SHA256 digest.
const DigestHexLen = sha256.Size * 2

// ErrFinalized is returned when an Accumulator is used after Finalize.
var ErrFinalized = errors.New("digest already finalized")

// Accumulator absorbs data in order and finalizes to a lowercase hex SHA256 digest.
// An Accumulator belongs to a single run and must not be shared.
type Accumulator struct {
	hasher hash.Hash
	n      uint64
	done   bool
}

// NewAccumulator creates an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{hasher: sha256.New()}
}

// Absorb feeds p into the running digest.
func (a *Accumulator) Absorb(p []byte) error {
	if a.done {
		return ErrFinalized
	}
	// hash.Hash.Write never returns an error
	a.hasher.Write(p)
	a.n += uint64(len(p))
	return nil
}

// Len returns the number of bytes absorbed so far.
func (a *Accumulator) Len() uint64 {
	return a.n
}

// Finalize returns the hex-encoded digest. It is the terminal operation:
// any further Absorb or Finalize returns ErrFinalized.
func (a *Accumulator) Finalize() (string, error) {
	if a.done {
		return "", ErrFinalized
	}
	a.done = true
	sum := hex.EncodeToString(a.hasher.Sum(nil))
	a.hasher = nil
	return sum, nil
}

// HashReader reads all data from r and returns the hex-encoded SHA256 hash.
func HashReader(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// HashBytes returns the hex-encoded SHA256 hash of the given byte slice.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// IsDigest reports whether s looks like a hex-encoded SHA256 digest.
// Upper-case hex is accepted.
func IsDigest(s string) bool {
	if len(s) != DigestHexLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Matches reports whether digest equals expected, ignoring case and
// surrounding whitespace in expected.
func Matches(digest, expected string) bool {
	expected = strings.TrimSpace(expected)
	if !IsDigest(expected) {
		return false
	}
	return strings.EqualFold(digest, expected)
}
