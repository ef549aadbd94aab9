package audit_test

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/JesseWaas/fs-audit/internal/audit"
	"github.com/JesseWaas/fs-audit/internal/hash"
	"github.com/JesseWaas/fs-audit/internal/testutil"
)

func newTestService(fsmgr audit.FilesystemManager, workers int) *audit.Service {
	return audit.NewService(fsmgr, hash.Factory, audit.NewNopLogger(),
		testutil.FixedClock(), testutil.NewStubIDGenerator(), "host-1", workers)
}

func recordPaths(snap *audit.Snapshot) []string {
	paths := make([]string, len(snap.Records))
	for i := range snap.Records {
		paths[i] = snap.Records[i].Path
	}
	return paths
}

func TestService_Capture(t *testing.T) {
	t.Run("captures files with metadata and hashes", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddDirectory("/data")
		fsmgr.AddFile("/data/a.txt", []byte("alpha"))
		fsmgr.AddFile("/data/b.txt", []byte("beta content"))

		svc := newTestService(fsmgr, 1)
		snap, err := svc.Capture(context.Background(), []string{"/data"}, nil,
			audit.CaptureOptions{Algorithm: "sha256"})
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}

		if snap.ID != "id-1" {
			t.Errorf("snapshot ID = %q, want id-1", snap.ID)
		}
		if snap.HostID != "host-1" {
			t.Errorf("snapshot HostID = %q, want host-1", snap.HostID)
		}
		if !snap.CreatedAt.Equal(testutil.FixedClock().Now()) {
			t.Errorf("snapshot CreatedAt = %v, want fixed clock time", snap.CreatedAt)
		}
		if len(snap.Records) != 2 {
			t.Fatalf("got %d records, want 2", len(snap.Records))
		}

		a := snap.FindByPath("/data/a.txt")
		if a == nil {
			t.Fatal("record for /data/a.txt not found")
		}
		if a.Name != "a.txt" {
			t.Errorf("record Name = %q, want a.txt", a.Name)
		}
		if a.Size != 5 {
			t.Errorf("record Size = %d, want 5", a.Size)
		}
		if a.UID != 1000 || a.GID != 1000 {
			t.Errorf("record UID/GID = %d/%d, want 1000/1000", a.UID, a.GID)
		}
		if a.Hash != testutil.SHA256Hex([]byte("alpha")) {
			t.Errorf("record Hash = %q, want sha256 of content", a.Hash)
		}
		if a.Algorithm != "sha256" {
			t.Errorf("record Algorithm = %q, want sha256", a.Algorithm)
		}
	})

	t.Run("resolved roots recorded in options", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddDirectory("/data")
		fsmgr.AddFile("/data/a.txt", []byte("alpha"))

		svc := newTestService(fsmgr, 1)
		snap, err := svc.Capture(context.Background(), []string{"/data"}, nil, audit.CaptureOptions{})
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
		if len(snap.Options.Roots) != 1 || snap.Options.Roots[0] != "/data" {
			t.Errorf("Options.Roots = %v, want [/data]", snap.Options.Roots)
		}
	})

	t.Run("no hashing when algorithm is empty", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddDirectory("/data")
		fsmgr.AddFile("/data/a.txt", []byte("alpha"))

		svc := newTestService(fsmgr, 1)
		snap, err := svc.Capture(context.Background(), []string{"/data"}, nil, audit.CaptureOptions{})
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}

		if snap.Hashed() {
			t.Error("Hashed() = true, want false")
		}
		if snap.Records[0].HasHash() {
			t.Errorf("record has hash %q, want none", snap.Records[0].Hash)
		}
	})

	t.Run("empty root yields empty snapshot", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddDirectory("/data")

		svc := newTestService(fsmgr, 1)
		snap, err := svc.Capture(context.Background(), []string{"/data"}, nil,
			audit.CaptureOptions{Recursive: true, Algorithm: "sha256"})
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}

		if len(snap.Records) != 0 {
			t.Errorf("got %d records, want 0", len(snap.Records))
		}
		if len(snap.Skips) != 0 {
			t.Errorf("got %d skips, want 0", len(snap.Skips))
		}
	})

	t.Run("recursive includes subdirectory files", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddDirectory("/data")
		fsmgr.AddFile("/data/a.txt", []byte("a"))
		fsmgr.AddDirectory("/data/sub")
		fsmgr.AddFile("/data/sub/c.txt", []byte("c"))

		svc := newTestService(fsmgr, 1)

		snap, err := svc.Capture(context.Background(), []string{"/data"}, nil,
			audit.CaptureOptions{Recursive: true})
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
		want := []string{"/data/a.txt", "/data/sub/c.txt"}
		if got := recordPaths(snap); !equalStrings(got, want) {
			t.Errorf("record paths = %v, want %v", got, want)
		}

		flat, err := svc.Capture(context.Background(), []string{"/data"}, nil,
			audit.CaptureOptions{Recursive: false})
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
		if got := recordPaths(flat); !equalStrings(got, []string{"/data/a.txt"}) {
			t.Errorf("non-recursive record paths = %v, want [/data/a.txt]", got)
		}
	})

	t.Run("file root yields exactly that file", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/data.txt", []byte("data"))

		svc := newTestService(fsmgr, 1)
		snap, err := svc.Capture(context.Background(), []string{"/data.txt"}, nil, audit.CaptureOptions{})
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
		if got := recordPaths(snap); !equalStrings(got, []string{"/data.txt"}) {
			t.Errorf("record paths = %v, want [/data.txt]", got)
		}
	})

	t.Run("ignore excludes names and prunes directories", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddDirectory("/data")
		fsmgr.AddFile("/data/a.txt", []byte("a"))
		fsmgr.AddFile("/data/debug.log", []byte("log"))
		fsmgr.AddDirectory("/data/.git")
		fsmgr.AddFile("/data/.git/config", []byte("cfg"))

		ignore := func(name string) bool {
			return name == ".git" || strings.HasSuffix(name, ".log")
		}

		svc := newTestService(fsmgr, 1)
		snap, err := svc.Capture(context.Background(), []string{"/data"}, ignore,
			audit.CaptureOptions{Recursive: true})
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
		if got := recordPaths(snap); !equalStrings(got, []string{"/data/a.txt"}) {
			t.Errorf("record paths = %v, want [/data/a.txt]", got)
		}
	})

	t.Run("multiple roots preserve argument order", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddDirectory("/one")
		fsmgr.AddFile("/one/x.txt", []byte("x"))
		fsmgr.AddDirectory("/two")
		fsmgr.AddFile("/two/y.txt", []byte("y"))

		svc := newTestService(fsmgr, 1)
		snap, err := svc.Capture(context.Background(), []string{"/two", "/one"}, nil, audit.CaptureOptions{})
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
		want := []string{"/two/y.txt", "/one/x.txt"}
		if got := recordPaths(snap); !equalStrings(got, want) {
			t.Errorf("record paths = %v, want %v", got, want)
		}
	})
}

func TestService_Capture_Errors(t *testing.T) {
	t.Run("empty roots is a configuration error", func(t *testing.T) {
		svc := newTestService(testutil.NewMockFilesystemManager(), 1)
		_, err := svc.Capture(context.Background(), nil, nil, audit.CaptureOptions{})
		if !audit.IsConfigError(err) {
			t.Errorf("Capture() error = %v, want configuration error", err)
		}
	})

	t.Run("unknown algorithm fails before walking", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddDirectory("/data")

		svc := newTestService(fsmgr, 1)
		_, err := svc.Capture(context.Background(), []string{"/data"}, nil,
			audit.CaptureOptions{Algorithm: "sha999"})
		if !audit.IsConfigError(err) {
			t.Errorf("Capture() error = %v, want configuration error", err)
		}
	})

	t.Run("missing root is fatal", func(t *testing.T) {
		svc := newTestService(testutil.NewMockFilesystemManager(), 1)
		_, err := svc.Capture(context.Background(), []string{"/nope"}, nil, audit.CaptureOptions{})
		if err == nil {
			t.Fatal("Capture() expected error for missing root, got nil")
		}
	})

	t.Run("canceled context aborts the run", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddDirectory("/data")
		fsmgr.AddFile("/data/a.txt", []byte("a"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		svc := newTestService(fsmgr, 1)
		_, err := svc.Capture(ctx, []string{"/data"}, nil, audit.CaptureOptions{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Capture() error = %v, want context.Canceled", err)
		}
	})
}

func TestService_Capture_Skips(t *testing.T) {
	t.Run("stat failure becomes a skip entry", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddDirectory("/data")
		fsmgr.AddFile("/data/a.txt", []byte("a"))
		bad := fsmgr.AddFile("/data/b.txt", []byte("b"))
		bad.StatErr = fs.ErrPermission

		svc := newTestService(fsmgr, 1)
		snap, err := svc.Capture(context.Background(), []string{"/data"}, nil, audit.CaptureOptions{})
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}

		if got := recordPaths(snap); !equalStrings(got, []string{"/data/a.txt"}) {
			t.Errorf("record paths = %v, want [/data/a.txt]", got)
		}
		if len(snap.Skips) != 1 {
			t.Fatalf("got %d skips, want 1", len(snap.Skips))
		}
		if snap.Skips[0].Path != "/data/b.txt" {
			t.Errorf("skip path = %q, want /data/b.txt", snap.Skips[0].Path)
		}
		if !strings.Contains(snap.Skips[0].Reason, "permission denied") {
			t.Errorf("skip reason = %q, want permission classification", snap.Skips[0].Reason)
		}
	})

	t.Run("vanished file becomes a skip entry", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddDirectory("/data")
		gone := fsmgr.AddFile("/data/gone.txt", []byte("g"))
		gone.StatErr = fs.ErrNotExist

		svc := newTestService(fsmgr, 1)
		snap, err := svc.Capture(context.Background(), []string{"/data"}, nil, audit.CaptureOptions{})
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
		if len(snap.Skips) != 1 {
			t.Fatalf("got %d skips, want 1", len(snap.Skips))
		}
		if !strings.Contains(snap.Skips[0].Reason, "file not found") {
			t.Errorf("skip reason = %q, want not-found classification", snap.Skips[0].Reason)
		}
	})

	t.Run("hash read failure becomes a skip entry", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddDirectory("/data")
		bad := fsmgr.AddFile("/data/locked.txt", []byte("x"))
		bad.OpenErr = errors.New("device busy")

		svc := newTestService(fsmgr, 1)
		snap, err := svc.Capture(context.Background(), []string{"/data"}, nil,
			audit.CaptureOptions{Algorithm: "sha256"})
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
		if len(snap.Records) != 0 {
			t.Errorf("got %d records, want 0", len(snap.Records))
		}
		if len(snap.Skips) != 1 {
			t.Fatalf("got %d skips, want 1", len(snap.Skips))
		}
		if !strings.Contains(snap.Skips[0].Reason, "device busy") {
			t.Errorf("skip reason = %q, want original cause preserved", snap.Skips[0].Reason)
		}
	})

	t.Run("unreadable walk entry becomes a skip entry", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddDirectory("/data")
		fsmgr.AddFile("/data/a.txt", []byte("a"))
		bad := fsmgr.AddFile("/data/broken.txt", []byte(""))
		bad.WalkErr = fs.ErrPermission

		svc := newTestService(fsmgr, 1)
		snap, err := svc.Capture(context.Background(), []string{"/data"}, nil, audit.CaptureOptions{})
		if err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
		if len(snap.Records) != 1 || len(snap.Skips) != 1 {
			t.Fatalf("got %d records, %d skips, want 1 and 1", len(snap.Records), len(snap.Skips))
		}
	})
}

func TestService_Capture_Concurrent(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddDirectory("/data")
	contents := []string{"one", "two", "three", "four", "five", "six", "seven", "eight"}
	for i, c := range contents {
		fsmgr.AddFile("/data/f"+string(rune('a'+i))+".txt", []byte(c))
	}
	bad := fsmgr.AddFile("/data/zz.txt", []byte("z"))
	bad.StatErr = fs.ErrPermission

	sequential := newTestService(fsmgr, 1)
	wantSnap, err := sequential.Capture(context.Background(), []string{"/data"}, nil,
		audit.CaptureOptions{Recursive: true, Algorithm: "sha256"})
	if err != nil {
		t.Fatalf("sequential Capture() error = %v", err)
	}

	concurrent := newTestService(fsmgr, 4)
	gotSnap, err := concurrent.Capture(context.Background(), []string{"/data"}, nil,
		audit.CaptureOptions{Recursive: true, Algorithm: "sha256"})
	if err != nil {
		t.Fatalf("concurrent Capture() error = %v", err)
	}

	// The worker pool must restore walk order before assembly.
	if got, want := recordPaths(gotSnap), recordPaths(wantSnap); !equalStrings(got, want) {
		t.Errorf("concurrent record order = %v, want %v", got, want)
	}
	if len(gotSnap.Skips) != len(wantSnap.Skips) {
		t.Errorf("concurrent skips = %d, want %d", len(gotSnap.Skips), len(wantSnap.Skips))
	}
	for i := range gotSnap.Records {
		if gotSnap.Records[i].Hash != wantSnap.Records[i].Hash {
			t.Errorf("record %d hash mismatch between pipelines", i)
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
