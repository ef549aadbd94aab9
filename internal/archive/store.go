// Package archive persists snapshots under caller-chosen names so that a
// capture taken on one day (or one host) can be diffed against another.
//
// Every backend guarantees round-trip fidelity: a loaded snapshot is
// field-for-field equal to the one saved, including skip entries and the
// absent/present state of each record's hash.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JesseWaas/fs-audit/internal/audit"
)

// ErrNotFound is returned when no archive exists under the requested name.
var ErrNotFound = errors.New("archive not found")

// Store persists named snapshots.
type Store interface {
	// Save stores snap under name, replacing any existing archive of that name.
	Save(ctx context.Context, name string, snap *audit.Snapshot) error

	// Load retrieves the snapshot stored under name.
	// Returns ErrNotFound if no such archive exists.
	Load(ctx context.Context, name string) (*audit.Snapshot, error)

	// List returns the stored archive names, sorted.
	List(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// ValidateName rejects archive names that could escape a backend's namespace.
func ValidateName(name string) error {
	if name == "" {
		return audit.NewConfigError("archive name must not be empty")
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return audit.NewConfigError("invalid archive name: %q", name)
	}
	return nil
}

// encodeSnapshot writes the canonical JSON document for a snapshot.
// The document is the interchange format shared by the filesystem and S3
// backends.
func encodeSnapshot(w io.Writer, snap *audit.Snapshot) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// decodeSnapshot reads a snapshot from its JSON document.
func decodeSnapshot(r io.Reader) (*audit.Snapshot, error) {
	var snap audit.Snapshot
	dec := json.NewDecoder(r)
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snap, nil
}
