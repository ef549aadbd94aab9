package audit

import "time"

// Field identifies a FileRecord attribute. Fields are the vocabulary shared by
// the diff engine (comparison keys) and the renderers (column names).
type Field string

const (
	FieldName  Field = "name"
	FieldPath  Field = "path"
	FieldMode  Field = "mode"
	FieldUID   Field = "uid"
	FieldGID   Field = "gid"
	FieldSize  Field = "size"
	FieldAtime Field = "atime"
	FieldMtime Field = "mtime"
	FieldCtime Field = "ctime"
	FieldHash  Field = "hash"
)

// Fields lists every FileRecord field in canonical output order.
var Fields = []Field{
	FieldName, FieldPath, FieldMode, FieldUID, FieldGID,
	FieldSize, FieldAtime, FieldMtime, FieldCtime, FieldHash,
}

// FileRecord holds the normalized metadata of one audited file.
// Records are immutable once produced by the capture engine.
//
// Ctime semantics are platform dependent: metadata change time on unix,
// creation time on windows. The value is reported as the platform gives it.
type FileRecord struct {
	Name  string    `json:"name"`
	Path  string    `json:"path"`
	Mode  uint32    `json:"mode"`
	UID   uint32    `json:"uid"`
	GID   uint32    `json:"gid"`
	Size  uint64    `json:"size"`
	Atime time.Time `json:"atime"`
	Mtime time.Time `json:"mtime"`
	Ctime time.Time `json:"ctime"`

	// Hash is empty unless hashing was requested for the capture.
	// Algorithm records which digest produced it, so snapshots hashed with
	// different algorithms are never silently compared as equal.
	Hash      string `json:"hash,omitempty"`
	Algorithm string `json:"algorithm,omitempty"`
}

// HasHash reports whether a content digest was captured for this record.
func (r *FileRecord) HasHash() bool {
	return r.Hash != ""
}

// SkipEntry records a path that failed extraction or hashing during capture.
// Skips are part of the snapshot so partial captures stay auditable.
type SkipEntry struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// CaptureOptions are the inputs that produced a snapshot. They travel with the
// snapshot so a later diff can tell how each side was captured.
type CaptureOptions struct {
	Roots     []string `json:"roots"`
	Recursive bool     `json:"recursive"`
	// Algorithm is the hash algorithm name, or empty when hashing was not requested.
	Algorithm string `json:"algorithm,omitempty"`
	// Ignore holds the raw ignore patterns in effect during the walk.
	Ignore []string `json:"ignore,omitempty"`
	// FollowSymlinks selects the symlink policy: true (the default) stats the
	// link target, false reports the link itself. Applied uniformly to a capture.
	FollowSymlinks bool `json:"follow_symlinks"`
}

// Snapshot is an ordered collection of FileRecords plus the skip list and the
// options used to produce it. A snapshot is built once by the capture engine
// and is read-only afterwards; a new audit always produces a new snapshot.
type Snapshot struct {
	ID        string    `json:"id"`
	HostID    string    `json:"host_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Options CaptureOptions `json:"options"`

	// Records are ordered by walk yield order.
	Records []FileRecord `json:"records"`
	Skips   []SkipEntry  `json:"skips,omitempty"`
}

// Hashed reports whether this snapshot was captured with content hashing.
func (s *Snapshot) Hashed() bool {
	return s.Options.Algorithm != ""
}

// FindByPath returns the record with the given path, or nil.
// Path is the stable identity key within a snapshot.
func (s *Snapshot) FindByPath(path string) *FileRecord {
	for i := range s.Records {
		if s.Records[i].Path == path {
			return &s.Records[i]
		}
	}
	return nil
}
