// Package hash computes file content digests with bounded memory.
//
// Content is read in fixed-size chunks and fed into an incremental digest
// accumulator, so peak memory stays capped regardless of file size. Chunking
// is purely a memory-management detail: the digest is byte-identical to
// hashing the whole input in a single call.
package hash

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"sort"

	"github.com/JesseWaas/fs-audit/internal/audit"
)

// DefaultChunkSize is the read size per iteration: 128 MiB.
const DefaultChunkSize = 128 * 1024 * 1024

// algorithms maps supported algorithm names to digest constructors.
var algorithms = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha224": sha256.New224,
	"sha256": sha256.New,
	"sha384": sha512.New384,
	"sha512": sha512.New,
}

// Algorithms returns the supported algorithm names, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Hasher computes hex digests for one algorithm using chunked reads.
type Hasher struct {
	algorithm string
	newDigest func() hash.Hash
	chunkSize int
}

var _ audit.Hasher = (*Hasher)(nil)

// New creates a Hasher for the named algorithm with the default chunk size.
// Unknown names fail with a configuration error.
func New(algorithm string) (*Hasher, error) {
	return NewWithChunkSize(algorithm, DefaultChunkSize)
}

// NewWithChunkSize creates a Hasher with an explicit chunk size.
// Intended for tests that exercise chunk-boundary behavior without
// allocating 128 MiB buffers.
func NewWithChunkSize(algorithm string, chunkSize int) (*Hasher, error) {
	newDigest, ok := algorithms[algorithm]
	if !ok {
		return nil, audit.NewConfigError("unsupported hash algorithm: %q", algorithm)
	}
	if chunkSize <= 0 {
		return nil, audit.NewConfigError("chunk size must be positive, got %d", chunkSize)
	}
	return &Hasher{
		algorithm: algorithm,
		newDigest: newDigest,
		chunkSize: chunkSize,
	}, nil
}

// Algorithm returns the algorithm name recorded alongside digests.
func (h *Hasher) Algorithm() string { return h.algorithm }

// Sum reads r to end-of-file and returns the hex-encoded digest.
//
// Cancellation is checked between chunks; each chunk's accumulation completes
// atomically, and a canceled Sum returns the context error with no digest.
// A zero-byte input yields the algorithm's empty-input digest.
func (h *Hasher) Sum(ctx context.Context, r io.Reader) (string, error) {
	digest := h.newDigest()

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		// Hash.Write never returns an error, so any copy error came from r.
		if _, err := io.CopyN(digest, r, int64(h.chunkSize)); err != nil {
			if err == io.EOF {
				return hex.EncodeToString(digest.Sum(nil)), nil
			}
			return "", fmt.Errorf("reading content: %w", err)
		}
	}
}

// Factory adapts New to the capture engine's HasherFactory contract.
func Factory(algorithm string) (audit.Hasher, error) {
	return New(algorithm)
}
