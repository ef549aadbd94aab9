package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/JesseWaas/fs-audit/internal/archive"
	"github.com/JesseWaas/fs-audit/internal/audit"
	"github.com/JesseWaas/fs-audit/internal/config"
	"github.com/JesseWaas/fs-audit/internal/encryption"
	"github.com/JesseWaas/fs-audit/internal/fs"
	"github.com/JesseWaas/fs-audit/internal/hash"
)

// App is the application layer between the CLI and the capture and diff
// engines. It constructs all dependencies from config, exposes high-level
// operations that accept raw string arguments, and manages the archive
// store lifecycle on Close.
type App struct {
	cfg       *config.Config
	fsmgr     audit.FilesystemManager
	encryptor audit.Encryptor
	store     archive.Store
	service   *audit.Service
	logFile   *os.File

	// unlocked caches the decryption context so the passphrase is asked
	// for at most once per run.
	unlocked audit.DecryptionContext
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "capture", "diff").
// The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, operation string) (*App, error) {
	fsmgr := fs.NewOSFilesystemManager(!cfg.Capture.ReportSymlinks)

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, operation)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &App{
		cfg:       cfg,
		fsmgr:     fsmgr,
		encryptor: enc,
		logFile:   logFile,
	}

	store, err := archive.NewStoreFromConfig(ctx, cfg.Archive, enc, a.unlock)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating archive store: %w", err)
	}
	a.store = store

	a.service = audit.NewService(fsmgr, hash.Factory, &slogAdapter{l: logger},
		audit.RealClock{}, audit.UUIDGenerator{}, cfg.HostID, cfg.Capture.Workers)

	return a, nil
}

// CaptureRequest carries the per-run capture parameters from the CLI.
// Zero values fall back to configured defaults.
type CaptureRequest struct {
	Roots     []string
	Recursive bool
	// Algorithm selects the content hash; "none" disables hashing even
	// when the config sets a default.
	Algorithm string
	Ignore    []string
}

// Capture walks the requested roots and produces a snapshot. Configured
// ignore patterns apply in addition to the request's patterns.
func (a *App) Capture(ctx context.Context, req CaptureRequest) (*audit.Snapshot, error) {
	algorithm := req.Algorithm
	if algorithm == "" {
		algorithm = a.cfg.Capture.Algorithm
	}
	if algorithm == "none" {
		algorithm = ""
	}

	patterns := append(append([]string{}, a.cfg.Capture.Ignore...), req.Ignore...)
	matcher := fs.NewIgnoreMatcher(patterns)

	opts := audit.CaptureOptions{
		Recursive:      req.Recursive,
		Algorithm:      algorithm,
		Ignore:         matcher.Patterns(),
		FollowSymlinks: !a.cfg.Capture.ReportSymlinks,
	}
	return a.service.Capture(ctx, req.Roots, matcher.Predicate(), opts)
}

// SaveSnapshot stores snap in the archive store under name.
func (a *App) SaveSnapshot(ctx context.Context, name string, snap *audit.Snapshot) error {
	return a.store.Save(ctx, name, snap)
}

// LoadSnapshot retrieves the snapshot archived under name.
func (a *App) LoadSnapshot(ctx context.Context, name string) (*audit.Snapshot, error) {
	return a.store.Load(ctx, name)
}

// ListArchives returns the stored archive names, sorted.
func (a *App) ListArchives(ctx context.Context) ([]string, error) {
	return a.store.List(ctx)
}

// Diff loads two archived snapshots and compares them under the given keys.
func (a *App) Diff(ctx context.Context, nameA, nameB string, keyNames []string) ([]audit.DiffResult, error) {
	keys, err := audit.ParseFields(keyNames)
	if err != nil {
		return nil, err
	}

	snapA, err := a.store.Load(ctx, nameA)
	if err != nil {
		return nil, fmt.Errorf("loading archive %s: %w", nameA, err)
	}
	snapB, err := a.store.Load(ctx, nameB)
	if err != nil {
		return nil, fmt.Errorf("loading archive %s: %w", nameB, err)
	}

	return audit.Diff(snapA, snapB, keys)
}

// SetupEncryption generates the archive key pair, prompting for a passphrase.
// Called during `fsa config init`.
func (a *App) SetupEncryption() error {
	if a.encryptor.IsConfigured() {
		return nil
	}
	passphrase, err := promptPassphrase("Choose a passphrase for the archive key: ")
	if err != nil {
		return err
	}
	return a.encryptor.Setup(passphrase)
}

// unlock prompts for the key passphrase on first use and caches the
// resulting decryption context for the rest of the run.
func (a *App) unlock() (audit.DecryptionContext, error) {
	if a.unlocked != nil {
		return a.unlocked, nil
	}
	passphrase, err := promptPassphrase("Passphrase for archive key: ")
	if err != nil {
		return nil, err
	}
	dc, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return nil, fmt.Errorf("unlocking archive key: %w", err)
	}
	a.unlocked = dc
	return dc, nil
}

// Close releases the archive store and the log file.
func (a *App) Close() error {
	var firstErr error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			firstErr = fmt.Errorf("closing archive store: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// StdoutIsTerminal reports whether stdout is attached to a terminal.
// The CLI uses it to pick the human table output over plain JSON.
func StdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// promptPassphrase reads a passphrase from the terminal without echo.
func promptPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot prompt for passphrase: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}
