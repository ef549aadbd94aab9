package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JesseWaas/fs-audit/internal/audit"
)

const (
	plainSuffix     = ".json"
	encryptedSuffix = ".json.age"
)

// UnlockFunc produces a DecryptionContext on demand, typically by prompting
// the user for a passphrase. It is only invoked when an encrypted archive is
// actually loaded, and implementations are expected to cache the unlocked
// context for the session.
type UnlockFunc func() (audit.DecryptionContext, error)

// FileStore keeps one JSON document per archive in a local directory.
// When an encryptor is configured, new archives are written age-encrypted;
// loading transparently handles both plaintext and encrypted documents so a
// directory can hold a mix.
type FileStore struct {
	dir       string
	encryptor audit.Encryptor
	unlock    UnlockFunc
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a filesystem-backed archive store rooted at dir.
// encryptor and unlock may be nil for plaintext operation.
func NewFileStore(dir string, encryptor audit.Encryptor, unlock UnlockFunc) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &FileStore{dir: dir, encryptor: encryptor, unlock: unlock}, nil
}

// Save stores snap under name, replacing any existing archive of that name.
func (s *FileStore) Save(_ context.Context, name string, snap *audit.Snapshot) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	var doc bytes.Buffer
	if err := encodeSnapshot(&doc, snap); err != nil {
		return err
	}

	suffix := plainSuffix
	payload := doc.Bytes()
	if s.encryptor != nil {
		var sealed bytes.Buffer
		if err := s.encryptor.Encrypt(&doc, &sealed); err != nil {
			return fmt.Errorf("encrypting archive: %w", err)
		}
		suffix = encryptedSuffix
		payload = sealed.Bytes()
	}

	// Replace the other variant so a re-save after an encryption config
	// change does not leave two archives under one name.
	other := plainSuffix
	if suffix == plainSuffix {
		other = encryptedSuffix
	}
	os.Remove(filepath.Join(s.dir, name+other))

	return s.writeFile(filepath.Join(s.dir, name+suffix), bytes.NewReader(payload))
}

// Load retrieves the snapshot stored under name.
func (s *FileStore) Load(_ context.Context, name string) (*audit.Snapshot, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	if f, err := os.Open(filepath.Join(s.dir, name+plainSuffix)); err == nil {
		defer f.Close()
		return decodeSnapshot(f)
	}

	f, err := os.Open(filepath.Join(s.dir, name+encryptedSuffix))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	if s.unlock == nil {
		return nil, fmt.Errorf("archive %s is encrypted but no decryption is configured", name)
	}
	dctx, err := s.unlock()
	if err != nil {
		return nil, fmt.Errorf("unlocking archive decryption: %w", err)
	}

	var doc bytes.Buffer
	if err := dctx.Decrypt(f, &doc); err != nil {
		return nil, fmt.Errorf("decrypting archive %s: %w", name, err)
	}
	return decodeSnapshot(&doc)
}

// List returns the stored archive names, sorted.
func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading archive directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		n := entry.Name()
		switch {
		case strings.HasSuffix(n, encryptedSuffix):
			names = append(names, strings.TrimSuffix(n, encryptedSuffix))
		case strings.HasSuffix(n, plainSuffix):
			names = append(names, strings.TrimSuffix(n, plainSuffix))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op for the filesystem store.
func (s *FileStore) Close() error { return nil }

// writeFile writes data from r to destPath using atomic write (temp file + rename).
func (s *FileStore) writeFile(destPath string, r io.Reader) error {
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
