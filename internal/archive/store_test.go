package archive_test

import (
	"testing"
	"time"

	"github.com/JesseWaas/fs-audit/internal/archive"
	"github.com/JesseWaas/fs-audit/internal/audit"
)

// sampleSnapshot builds a snapshot exercising the full document surface:
// hashed and skip entries included.
func sampleSnapshot() *audit.Snapshot {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &audit.Snapshot{
		ID:        "snap-1",
		HostID:    "host-1",
		CreatedAt: created,
		Options: audit.CaptureOptions{
			Roots:          []string{"/data"},
			Recursive:      true,
			Algorithm:      "sha256",
			Ignore:         []string{"*.log", ".git"},
			FollowSymlinks: true,
		},
		Records: []audit.FileRecord{
			{
				Name: "a.txt", Path: "/data/a.txt", Mode: 0644,
				UID: 1000, GID: 1000, Size: 5,
				Atime: created.Add(-time.Hour), Mtime: created.Add(-2 * time.Hour), Ctime: created.Add(-3 * time.Hour),
				Hash: "abc123", Algorithm: "sha256",
			},
			{
				Name: "b.txt", Path: "/data/sub/b.txt", Mode: 0600,
				UID: 1000, GID: 100, Size: 0,
				Atime: created, Mtime: created, Ctime: created,
			},
		},
		Skips: []audit.SkipEntry{
			{Path: "/data/locked.txt", Reason: "permission denied: open /data/locked.txt"},
		},
	}
}

// snapshotsEqual compares field by field, using time.Equal for timestamps so
// zone representation differences between backends do not matter.
func snapshotsEqual(t *testing.T, got, want *audit.Snapshot) {
	t.Helper()

	if got.ID != want.ID || got.HostID != want.HostID {
		t.Errorf("identity = %s/%s, want %s/%s", got.ID, got.HostID, want.ID, want.HostID)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}

	if len(got.Options.Roots) != len(want.Options.Roots) {
		t.Fatalf("Options.Roots = %v, want %v", got.Options.Roots, want.Options.Roots)
	}
	for i := range want.Options.Roots {
		if got.Options.Roots[i] != want.Options.Roots[i] {
			t.Errorf("Options.Roots[%d] = %q, want %q", i, got.Options.Roots[i], want.Options.Roots[i])
		}
	}
	if got.Options.Recursive != want.Options.Recursive ||
		got.Options.Algorithm != want.Options.Algorithm ||
		got.Options.FollowSymlinks != want.Options.FollowSymlinks {
		t.Errorf("Options = %+v, want %+v", got.Options, want.Options)
	}
	if len(got.Options.Ignore) != len(want.Options.Ignore) {
		t.Fatalf("Options.Ignore = %v, want %v", got.Options.Ignore, want.Options.Ignore)
	}

	if len(got.Records) != len(want.Records) {
		t.Fatalf("got %d records, want %d", len(got.Records), len(want.Records))
	}
	for i := range want.Records {
		g, w := got.Records[i], want.Records[i]
		if g.Name != w.Name || g.Path != w.Path || g.Mode != w.Mode ||
			g.UID != w.UID || g.GID != w.GID || g.Size != w.Size ||
			g.Hash != w.Hash || g.Algorithm != w.Algorithm {
			t.Errorf("record %d = %+v, want %+v", i, g, w)
		}
		if !g.Atime.Equal(w.Atime) || !g.Mtime.Equal(w.Mtime) || !g.Ctime.Equal(w.Ctime) {
			t.Errorf("record %d timestamps differ: %+v vs %+v", i, g, w)
		}
	}

	if len(got.Skips) != len(want.Skips) {
		t.Fatalf("got %d skips, want %d", len(got.Skips), len(want.Skips))
	}
	for i := range want.Skips {
		if got.Skips[i] != want.Skips[i] {
			t.Errorf("skip %d = %+v, want %+v", i, got.Skips[i], want.Skips[i])
		}
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"daily", "2025-03-01", "host_a.before", "snap 1"}
	for _, name := range valid {
		if err := archive.ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", ".", "..", "a/b", `a\b`, "/etc/passwd"}
	for _, name := range invalid {
		err := archive.ValidateName(name)
		if err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", name)
			continue
		}
		if !audit.IsConfigError(err) {
			t.Errorf("ValidateName(%q) = %v, want configuration error", name, err)
		}
	}
}
