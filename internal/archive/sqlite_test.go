package archive_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/JesseWaas/fs-audit/internal/archive"
	"github.com/JesseWaas/fs-audit/internal/archive/migrations"
)

func newSQLiteStore(t *testing.T) *archive.SQLiteStore {
	t.Helper()
	store, err := archive.NewSQLiteStore(filepath.Join(t.TempDir(), "archives.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := newSQLiteStore(t)

	want := sampleSnapshot()
	if err := store.Save(context.Background(), "daily", want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(context.Background(), "daily")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	snapshotsEqual(t, got, want)
}

func TestSQLiteStore_RoundTripUnhashed(t *testing.T) {
	store := newSQLiteStore(t)

	want := sampleSnapshot()
	want.Options.Algorithm = ""
	for i := range want.Records {
		want.Records[i].Hash = ""
		want.Records[i].Algorithm = ""
	}

	if err := store.Save(context.Background(), "plain", want); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load(context.Background(), "plain")
	if err != nil {
		t.Fatal(err)
	}

	snapshotsEqual(t, got, want)
	if got.Hashed() {
		t.Error("Hashed() = true after round trip of unhashed snapshot")
	}
	for i := range got.Records {
		if got.Records[i].HasHash() {
			t.Errorf("record %d has hash after unhashed round trip", i)
		}
	}
}

func TestSQLiteStore_ReopenExistingCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archives.db")

	first, err := archive.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	want := sampleSnapshot()
	if err := first.Save(context.Background(), "daily", want); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopening runs migrations and the schema check against an already
	// current catalog; both must pass and the data must still be there.
	second, err := archive.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() on existing catalog error = %v", err)
	}
	defer second.Close()

	got, err := second.Load(context.Background(), "daily")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	snapshotsEqual(t, got, want)
}

func TestMigrations_CheckStatus(t *testing.T) {
	db, err := archive.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("OpenConnection() error = %v", err)
	}
	defer db.Close()

	if err := migrations.CheckStatus(db); err == nil {
		t.Error("CheckStatus() on unmigrated database expected error, got nil")
	}
	if err := migrations.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	if err := migrations.CheckStatus(db); err != nil {
		t.Errorf("CheckStatus() after migration error = %v", err)
	}
}

func TestSQLiteStore_LoadMissing(t *testing.T) {
	store := newSQLiteStore(t)

	_, err := store.Load(context.Background(), "absent")
	if !errors.Is(err, archive.ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_SaveReplaces(t *testing.T) {
	store := newSQLiteStore(t)

	first := sampleSnapshot()
	if err := store.Save(context.Background(), "daily", first); err != nil {
		t.Fatal(err)
	}

	second := sampleSnapshot()
	second.ID = "snap-2"
	second.Records = second.Records[:1]
	second.Skips = nil
	if err := store.Save(context.Background(), "daily", second); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load(context.Background(), "daily")
	if err != nil {
		t.Fatal(err)
	}
	snapshotsEqual(t, got, second)

	names, err := store.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"daily"}) {
		t.Errorf("List() = %v, want [daily]", names)
	}
}

func TestSQLiteStore_List(t *testing.T) {
	store := newSQLiteStore(t)

	for _, name := range []string{"zeta", "alpha"} {
		snap := sampleSnapshot()
		snap.ID = "snap-" + name
		if err := store.Save(context.Background(), name, snap); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"alpha", "zeta"}) {
		t.Errorf("List() = %v, want [alpha zeta]", got)
	}
}

func TestSQLiteStore_RecordOrderPreserved(t *testing.T) {
	store := newSQLiteStore(t)

	snap := sampleSnapshot()
	// Records deliberately not in lexical path order: storage must keep
	// walk order, not re-sort.
	snap.Records[0], snap.Records[1] = snap.Records[1], snap.Records[0]

	if err := store.Save(context.Background(), "ordered", snap); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load(context.Background(), "ordered")
	if err != nil {
		t.Fatal(err)
	}

	if got.Records[0].Path != snap.Records[0].Path || got.Records[1].Path != snap.Records[1].Path {
		t.Errorf("record order changed: got %s,%s want %s,%s",
			got.Records[0].Path, got.Records[1].Path,
			snap.Records[0].Path, snap.Records[1].Path)
	}
}
