package fs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/JesseWaas/fs-audit/internal/audit"
)

// OSFilesystemManager is the real filesystem implementation of
// audit.FilesystemManager. It performs actual filesystem operations using
// the os package.
//
// Symlink policy: when followSymlinks is set (the default for captures),
// metadata is read from the link target, so a record describes the file the
// link points at. Otherwise the link itself is reported. The policy is fixed
// per manager and applied uniformly to every file in a capture. The walker
// never descends into directory symlinks in either mode.
type OSFilesystemManager struct {
	followSymlinks bool
}

// NewOSFilesystemManager creates a filesystem manager with the given
// symlink policy.
func NewOSFilesystemManager(followSymlinks bool) *OSFilesystemManager {
	return &OSFilesystemManager{followSymlinks: followSymlinks}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*audit.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := m.stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	// Check for special file types we don't audit.
	mode := info.Mode()
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return audit.NewPath(absPath, info.IsDir(), info), nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path *audit.Path) (io.ReadCloser, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", path.String())
	}
	return os.Open(path.String())
}

// ExtractRecord reads the file-status attributes of path into a FileRecord.
// The record carries no hash; hashing is the capture engine's concern.
// Attributes are read fresh, so a file that vanished since enumeration
// surfaces as a not-exist error here rather than stale data.
func (m *OSFilesystemManager) ExtractRecord(path *audit.Path) (*audit.FileRecord, error) {
	abs := path.String()

	info, err := m.stat(abs)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return nil, fmt.Errorf("not a file: %s", abs)
	}

	record := &audit.FileRecord{
		Name:  filepath.Base(abs),
		Path:  abs,
		Mode:  uint32(info.Mode().Perm()),
		Size:  uint64(info.Size()),
		Mtime: info.ModTime(),
	}

	if err := fillStatData(record, info); err != nil {
		return nil, err
	}
	return record, nil
}

// stat applies the manager's symlink policy.
func (m *OSFilesystemManager) stat(path string) (fs.FileInfo, error) {
	if m.followSymlinks {
		return os.Stat(path)
	}
	return os.Lstat(path)
}

// WalkFiles enumerates candidate files under root in lexical order, applying
// the ignore predicate to file and directory base names. Ignored directories
// are pruned: their contents are never visited. Directories never reach fn,
// so an empty directory contributes nothing to a capture.
func (m *OSFilesystemManager) WalkFiles(ctx context.Context, root *audit.Path, recursive bool, ignore audit.IgnorePredicate, fn audit.WalkFunc) error {
	if !root.IsDir() {
		if ignored(ignore, filepath.Base(root.String())) {
			return nil
		}
		if info := root.Info(); info != nil && directoryLink(info.Mode(), root.String()) {
			return nil
		}
		return fn(root, nil)
	}

	if recursive {
		return m.walkTree(ctx, root, ignore, fn)
	}
	return m.walkFlat(ctx, root, ignore, fn)
}

// walkFlat yields only the immediate file children of root.
func (m *OSFilesystemManager) walkFlat(ctx context.Context, root *audit.Path, ignore audit.IgnorePredicate, fn audit.WalkFunc) error {
	entries, err := os.ReadDir(root.String())
	if err != nil {
		return fmt.Errorf("reading directory: %w", err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || ignored(ignore, entry.Name()) {
			continue
		}
		fullPath := filepath.Join(root.String(), entry.Name())
		if !candidateType(entry.Type()) || directoryLink(entry.Type(), fullPath) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			if err := fn(audit.NewPath(fullPath, false, nil), err); err != nil {
				return err
			}
			continue
		}
		if err := fn(audit.NewPath(fullPath, false, info), nil); err != nil {
			return err
		}
	}
	return nil
}

// walkTree yields all files in the subtree rooted at root.
func (m *OSFilesystemManager) walkTree(ctx context.Context, root *audit.Path, ignore audit.IgnorePredicate, fn audit.WalkFunc) error {
	return filepath.WalkDir(root.String(), func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if walkErr != nil {
			// Unreadable entry: surface it to the caller as a per-path
			// failure and keep walking.
			return fn(audit.NewPath(p, false, nil), walkErr)
		}

		if d.IsDir() {
			if p != root.String() && ignored(ignore, d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if ignored(ignore, d.Name()) || !candidateType(d.Type()) {
			return nil
		}
		if directoryLink(d.Type(), p) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fn(audit.NewPath(p, false, nil), err)
		}
		return fn(audit.NewPath(p, false, info), nil)
	})
}

// candidateType reports whether a directory entry is auditable: regular
// files always, symlinks too since the stat policy decides what they mean.
// Devices, pipes, and sockets are not audited.
func candidateType(t fs.FileMode) bool {
	return t.IsRegular() || t&fs.ModeSymlink != 0
}

// directoryLink reports whether the entry is a symlink whose target is a
// directory. Such links classify as directories, so they never become file
// candidates under either symlink policy. A broken link is not a directory;
// it stays a candidate and its failure surfaces during extraction.
func directoryLink(t fs.FileMode, path string) bool {
	if t&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func ignored(ignore audit.IgnorePredicate, name string) bool {
	return ignore != nil && ignore(name)
}

// Compile-time check that OSFilesystemManager implements audit.FilesystemManager.
var _ audit.FilesystemManager = (*OSFilesystemManager)(nil)
