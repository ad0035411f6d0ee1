// Package cryptox computes the content checksums recorded for uploaded assets.
package cryptox

import (
	"encoding/hex"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
)

// NewChecksum returns an unkeyed BLAKE2b-256 hash.
func NewChecksum() hash.Hash {
	// New256 only fails for keys longer than 64 bytes.
	h, _ := blake2b.New256(nil)
	return h
}

// Hex renders the current digest of h.
func Hex(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// Checksum reads r to EOF and returns its hex BLAKE2b-256 digest.
func Checksum(r io.Reader) (string, error) {
	h := NewChecksum()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return Hex(h), nil
}

// Verify reports whether r hashes to want.
func Verify(r io.Reader, want string) (bool, error) {
	got, err := Checksum(r)
	if err != nil {
		return false, err
	}
	return got == want, nil
}
