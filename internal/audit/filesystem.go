package audit

import (
	"context"
	"io"
)

// IgnorePredicate reports whether a file or directory base name should be
// excluded from a walk. Directories matched by the predicate are pruned:
// their contents are never visited.
type IgnorePredicate func(name string) bool

// WalkFunc is called once per candidate file during a walk. A non-nil err
// reports an entry that could not be read; path then carries the absolute
// path with no cached info. Returning an error from fn stops the walk and
// propagates the error to the caller.
type WalkFunc func(path *Path, err error) error

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access to enable testing without touching the real filesystem.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object.
	// It resolves the path to an absolute path and stats it.
	Resolve(rawPath string) (*Path, error)

	// Open opens a file for reading.
	Open(path *Path) (io.ReadCloser, error)

	// ExtractRecord reads the file-status attributes of path into a
	// FileRecord with no hash attached. The symlink policy (follow vs.
	// report the link itself) is fixed at manager construction and applied
	// uniformly.
	ExtractRecord(path *Path) (*FileRecord, error)

	// WalkFiles enumerates candidate files under root, calling fn once per
	// file in a deterministic order. A single forward pass: the sequence is
	// produced incrementally and is not restartable. If root is a file, fn
	// is called for exactly that file (subject to ignore). If root is a
	// directory, immediate children are visited, plus the full subtree when
	// recursive is set. Directories never reach fn.
	WalkFiles(ctx context.Context, root *Path, recursive bool, ignore IgnorePredicate, fn WalkFunc) error
}

// Hasher computes a content digest equal to single-pass hashing of the
// complete input, regardless of internal chunking.
type Hasher interface {
	// Algorithm returns the algorithm name recorded alongside digests.
	Algorithm() string

	// Sum consumes r to end-of-file and returns the hex-encoded digest.
	// Cancellation is honored between chunks; a canceled Sum never returns
	// a partial digest.
	Sum(ctx context.Context, r io.Reader) (string, error)
}

// HasherFactory builds a Hasher for the named algorithm, failing for names
// that are not supported.
type HasherFactory func(algorithm string) (Hasher, error)
