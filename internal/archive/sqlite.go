package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JesseWaas/fs-audit/internal/archive/migrations"
	"github.com/JesseWaas/fs-audit/internal/audit"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore keeps an archive catalog in a local SQLite database: one row
// per snapshot plus its records and skips in child tables. Unlike the
// document stores it allows replacing a snapshot atomically in a single
// transaction.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating and migrating if needed) the archive
// catalog at path. path can be ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating archive catalog: %w", err)
	}
	// Migration alone cannot fix a dirty catalog or one written by a newer
	// binary; refuse to operate on either.
	if err := migrations.CheckStatus(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("verifying archive catalog schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for an in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Save stores snap under name inside a single transaction, replacing any
// existing archive of that name.
func (s *SQLiteStore) Save(ctx context.Context, name string, snap *audit.Snapshot) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	roots, err := json.Marshal(snap.Options.Roots)
	if err != nil {
		return fmt.Errorf("encoding roots: %w", err)
	}
	ignorePatterns, err := json.Marshal(snap.Options.Ignore)
	if err != nil {
		return fmt.Errorf("encoding ignore patterns: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	// Replace semantics: drop any previous snapshot stored under this name.
	// Child rows go with it via ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name); err != nil {
		return fmt.Errorf("deleting previous archive: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, name, host_id, created_at_ns, recursive, algorithm, follow_symlinks, roots, ignore_patterns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, name, snap.HostID, snap.CreatedAt.UnixNano(),
		snap.Options.Recursive, snap.Options.Algorithm, snap.Options.FollowSymlinks,
		string(roots), string(ignorePatterns))
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}

	insertRecord, err := tx.PrepareContext(ctx, `
		INSERT INTO records (snapshot_id, idx, name, path, mode, uid, gid, size, atime_ns, mtime_ns, ctime_ns, hash, algorithm)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing record insert: %w", err)
	}
	defer insertRecord.Close()

	for i := range snap.Records {
		r := &snap.Records[i]
		_, err := insertRecord.ExecContext(ctx, snap.ID, i,
			r.Name, r.Path, int64(r.Mode), int64(r.UID), int64(r.GID), int64(r.Size),
			r.Atime.UnixNano(), r.Mtime.UnixNano(), r.Ctime.UnixNano(),
			r.Hash, r.Algorithm)
		if err != nil {
			return fmt.Errorf("inserting record %s: %w", r.Path, err)
		}
	}

	for i, skip := range snap.Skips {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO skips (snapshot_id, idx, path, reason) VALUES (?, ?, ?, ?)`,
			snap.ID, i, skip.Path, skip.Reason)
		if err != nil {
			return fmt.Errorf("inserting skip %s: %w", skip.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Load retrieves the snapshot stored under name.
func (s *SQLiteStore) Load(ctx context.Context, name string) (*audit.Snapshot, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, host_id, created_at_ns, recursive, algorithm, follow_symlinks, roots, ignore_patterns
		FROM snapshots WHERE name = ?`, name)

	var snap audit.Snapshot
	var createdNs int64
	var roots, ignorePatterns string
	err := row.Scan(&snap.ID, &snap.HostID, &createdNs,
		&snap.Options.Recursive, &snap.Options.Algorithm, &snap.Options.FollowSymlinks,
		&roots, &ignorePatterns)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	snap.CreatedAt = time.Unix(0, createdNs)
	if err := json.Unmarshal([]byte(roots), &snap.Options.Roots); err != nil {
		return nil, fmt.Errorf("decoding roots: %w", err)
	}
	if err := json.Unmarshal([]byte(ignorePatterns), &snap.Options.Ignore); err != nil {
		return nil, fmt.Errorf("decoding ignore patterns: %w", err)
	}

	if err := s.loadRecords(ctx, &snap); err != nil {
		return nil, err
	}
	if err := s.loadSkips(ctx, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *SQLiteStore) loadRecords(ctx context.Context, snap *audit.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, path, mode, uid, gid, size, atime_ns, mtime_ns, ctime_ns, hash, algorithm
		FROM records WHERE snapshot_id = ? ORDER BY idx`, snap.ID)
	if err != nil {
		return fmt.Errorf("loading records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r audit.FileRecord
		var mode, uid, gid, size, atimeNs, mtimeNs, ctimeNs int64
		err := rows.Scan(&r.Name, &r.Path, &mode, &uid, &gid, &size,
			&atimeNs, &mtimeNs, &ctimeNs, &r.Hash, &r.Algorithm)
		if err != nil {
			return fmt.Errorf("scanning record: %w", err)
		}
		r.Mode = uint32(mode)
		r.UID = uint32(uid)
		r.GID = uint32(gid)
		r.Size = uint64(size)
		r.Atime = time.Unix(0, atimeNs)
		r.Mtime = time.Unix(0, mtimeNs)
		r.Ctime = time.Unix(0, ctimeNs)
		snap.Records = append(snap.Records, r)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadSkips(ctx context.Context, snap *audit.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, reason FROM skips WHERE snapshot_id = ? ORDER BY idx`, snap.ID)
	if err != nil {
		return fmt.Errorf("loading skips: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var skip audit.SkipEntry
		if err := rows.Scan(&skip.Path, &skip.Reason); err != nil {
			return fmt.Errorf("scanning skip: %w", err)
		}
		snap.Skips = append(snap.Skips, skip)
	}
	return rows.Err()
}

// List returns the stored archive names, sorted.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM snapshots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing archives: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning archive name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
