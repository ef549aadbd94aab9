package audit

import (
	"sort"
	"strconv"
	"time"
)

// Outcome classifies one path in a snapshot comparison.
type Outcome string

const (
	// Added: path present only in the second snapshot.
	Added Outcome = "added"
	// Removed: path present only in the first snapshot.
	Removed Outcome = "removed"
	// Changed: path present in both, at least one compared field differs.
	Changed Outcome = "changed"
	// Unchanged: path present in both, all compared fields equal.
	Unchanged Outcome = "unchanged"
)

// FieldChange carries both values of one differing comparison field.
type FieldChange struct {
	Field  Field  `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
	// Incomparable marks a hash compared across different algorithms:
	// the values are never equal, but "content differs" cannot be concluded.
	Incomparable bool `json:"incomparable,omitempty"`
}

// DiffResult is the comparison outcome for a single path.
type DiffResult struct {
	Path    string        `json:"path"`
	Outcome Outcome       `json:"outcome"`
	Changes []FieldChange `json:"changes,omitempty"`
}

// ParseFields converts raw field names into Fields, rejecting unknown names.
// Duplicates are dropped, keeping the first occurrence.
func ParseFields(names []string) ([]Field, error) {
	seen := make(map[Field]bool, len(names))
	var fields []Field
	for _, name := range names {
		f := Field(name)
		if !validField(f) {
			return nil, NewConfigError("unknown comparison key: %q", name)
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		fields = append(fields, f)
	}
	return fields, nil
}

func validField(f Field) bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

// Diff compares two snapshots under the given comparison keys and returns one
// DiffResult per path in the union of both snapshots, ordered lexicographically
// by path for reproducibility.
//
// Path is always the join key: two records describe the same file iff their
// paths match, independent of which fields are compared. Requesting the hash
// key against a snapshot captured without hashing fails before any comparison.
// Diff is a pure function of its immutable inputs.
func Diff(a, b *Snapshot, keys []Field) ([]DiffResult, error) {
	if len(keys) == 0 {
		return nil, NewConfigError("no comparison keys specified")
	}
	seen := make(map[Field]bool, len(keys))
	for _, k := range keys {
		if !validField(k) {
			return nil, NewConfigError("unknown comparison key: %q", k)
		}
		if seen[k] {
			return nil, NewConfigError("duplicate comparison key: %q", k)
		}
		seen[k] = true
		if k == FieldHash {
			if !a.Hashed() {
				return nil, NewConfigError("hash comparison requested but snapshot %s was captured without hashing", a.ID)
			}
			if !b.Hashed() {
				return nil, NewConfigError("hash comparison requested but snapshot %s was captured without hashing", b.ID)
			}
		}
	}

	left := recordsByPath(a)
	right := recordsByPath(b)

	paths := make([]string, 0, len(left)+len(right))
	for p := range left {
		paths = append(paths, p)
	}
	for p := range right {
		if _, ok := left[p]; !ok {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	results := make([]DiffResult, 0, len(paths))
	for _, p := range paths {
		lr, inLeft := left[p]
		rr, inRight := right[p]

		switch {
		case !inLeft:
			results = append(results, DiffResult{Path: p, Outcome: Added})
		case !inRight:
			results = append(results, DiffResult{Path: p, Outcome: Removed})
		default:
			changes := compareRecords(lr, rr, keys)
			if len(changes) == 0 {
				results = append(results, DiffResult{Path: p, Outcome: Unchanged})
			} else {
				results = append(results, DiffResult{Path: p, Outcome: Changed, Changes: changes})
			}
		}
	}
	return results, nil
}

// recordsByPath indexes a snapshot's records by path. The walker never yields
// the same resolved path twice, so the index is lossless.
func recordsByPath(s *Snapshot) map[string]*FileRecord {
	m := make(map[string]*FileRecord, len(s.Records))
	for i := range s.Records {
		m[s.Records[i].Path] = &s.Records[i]
	}
	return m
}

func compareRecords(a, b *FileRecord, keys []Field) []FieldChange {
	var changes []FieldChange
	for _, k := range keys {
		if k == FieldHash {
			if change, differs := compareHash(a, b); differs {
				changes = append(changes, change)
			}
			continue
		}
		if !fieldEqual(a, b, k) {
			changes = append(changes, FieldChange{
				Field:  k,
				Before: FieldValue(a, k),
				After:  FieldValue(b, k),
			})
		}
	}
	return changes
}

// compareHash handles the hash key. Digests from different algorithms are
// never comparable as equal; the change is flagged so callers can tell
// "content differs" from "not comparable". A record missing its hash on one
// side is a change, not an error.
func compareHash(a, b *FileRecord) (FieldChange, bool) {
	if a.Algorithm == b.Algorithm && a.Hash == b.Hash {
		return FieldChange{}, false
	}
	return FieldChange{
		Field:        FieldHash,
		Before:       FieldValue(a, FieldHash),
		After:        FieldValue(b, FieldHash),
		Incomparable: a.Algorithm != b.Algorithm,
	}, true
}

func fieldEqual(a, b *FileRecord, f Field) bool {
	switch f {
	case FieldName:
		return a.Name == b.Name
	case FieldPath:
		return a.Path == b.Path
	case FieldMode:
		return a.Mode == b.Mode
	case FieldUID:
		return a.UID == b.UID
	case FieldGID:
		return a.GID == b.GID
	case FieldSize:
		return a.Size == b.Size
	case FieldAtime:
		return a.Atime.Equal(b.Atime)
	case FieldMtime:
		return a.Mtime.Equal(b.Mtime)
	case FieldCtime:
		return a.Ctime.Equal(b.Ctime)
	default:
		return true
	}
}

// FieldValue renders one record field as a display string. Mode is octal,
// times are RFC 3339 with nanoseconds, and a hash is prefixed with its
// algorithm tag.
func FieldValue(r *FileRecord, f Field) string {
	switch f {
	case FieldName:
		return r.Name
	case FieldPath:
		return r.Path
	case FieldMode:
		return strconv.FormatUint(uint64(r.Mode), 8)
	case FieldUID:
		return strconv.FormatUint(uint64(r.UID), 10)
	case FieldGID:
		return strconv.FormatUint(uint64(r.GID), 10)
	case FieldSize:
		return strconv.FormatUint(r.Size, 10)
	case FieldAtime:
		return r.Atime.Format(time.RFC3339Nano)
	case FieldMtime:
		return r.Mtime.Format(time.RFC3339Nano)
	case FieldCtime:
		return r.Ctime.Format(time.RFC3339Nano)
	case FieldHash:
		if !r.HasHash() {
			return ""
		}
		return r.Algorithm + ":" + r.Hash
	default:
		return ""
	}
}
