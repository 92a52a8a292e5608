// Package digest implements the content-addressed hashing primitive used
// throughout the service: a pure function from a file's bytes to a 64-hex
// content digest (§4.1). It streams the file through an incremental
// hasher in ~1 MiB buffers so arbitrarily large files never need to be
// fully resident in memory, the same pattern the teacher uses for its
// hashing algorithms (pkg/synchronization/hashing.Algorithm.Factory).
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"

	"github.com/ddas/ddas/internal/ddaserrors"
)

// DefaultBufferSize is the default read buffer size (§4.1: "~1 MiB").
const DefaultBufferSize = 1 << 20

// NewHasher returns a new incremental hasher for the service's content
// digest algorithm. SHA-256 satisfies the specification's requirement of a
// 256-bit collision-resistant hash supporting incremental update; it is
// available directly from the standard library, exactly as the teacher
// selects crypto/sha256 as one of its pluggable hashing.Algorithm
// factories.
func NewHasher() hash.Hash {
	return sha256.New()
}

// File computes the 64-hex digest of a file's byte stream. It is a pure
// function of the file's contents: identical bytes always yield an
// identical digest (determinism required by §4.1).
func File(path string, bufferSize int) (string, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	f, err := os.Open(path)
	if err != nil {
		return "", ddaserrors.NewIoError(path, err)
	}
	defer f.Close()

	h := NewHasher()
	buffer := make([]byte, bufferSize)
	if _, err := io.CopyBuffer(h, f, buffer); err != nil {
		return "", ddaserrors.NewIoError(path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
