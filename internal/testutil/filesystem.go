package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/JesseWaas/fs-audit/internal/audit"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
	// Stat data - set once when file is created
	Atime time.Time
	Ctime time.Time
	UID   uint32
	GID   uint32
	// Injected failures
	StatErr error
	OpenErr error
	WalkErr error
}

// MockFilesystemManager is an in-memory filesystem for testing. Walks visit
// paths in sorted order, so test expectations are deterministic.
type MockFilesystemManager struct {
	files map[string]*MockFile
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files: make(map[string]*MockFile),
	}
}

// AddFile adds a regular file to the mock filesystem and returns it so tests
// can tweak its attributes.
func (m *MockFilesystemManager) AddFile(path string, content []byte) *MockFile {
	now := time.Now()
	f := &MockFile{
		Content:     content,
		Permissions: 0644,
		ModTime:     now,
		Atime:       now,
		Ctime:       now,
		UID:         1000,
		GID:         1000,
	}
	m.files[filepath.Clean(path)] = f
	return f
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) *MockFile {
	now := time.Now()
	f := &MockFile{
		Permissions: 0755,
		ModTime:     now,
		IsDirectory: true,
		Atime:       now,
		Ctime:       now,
		UID:         1000,
		GID:         1000,
	}
	m.files[filepath.Clean(path)] = f
	return f
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*audit.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}

	file, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", absPath)
	}

	return audit.NewPath(absPath, file.IsDirectory, m.infoFor(absPath, file)), nil
}

func (m *MockFilesystemManager) Open(path *audit.Path) (io.ReadCloser, error) {
	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path.String())
	}
	if file.OpenErr != nil {
		return nil, file.OpenErr
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path.String())
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

func (m *MockFilesystemManager) ExtractRecord(path *audit.Path) (*audit.FileRecord, error) {
	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path.String())
	}
	if file.StatErr != nil {
		return nil, file.StatErr
	}

	return &audit.FileRecord{
		Name:  filepath.Base(path.String()),
		Path:  path.String(),
		Mode:  uint32(file.Permissions.Perm()),
		UID:   file.UID,
		GID:   file.GID,
		Size:  uint64(len(file.Content)),
		Atime: file.Atime,
		Mtime: file.ModTime,
		Ctime: file.Ctime,
	}, nil
}

func (m *MockFilesystemManager) WalkFiles(ctx context.Context, root *audit.Path, recursive bool, ignore audit.IgnorePredicate, fn audit.WalkFunc) error {
	rootPath := root.String()

	if !root.IsDir() {
		if ignore != nil && ignore(filepath.Base(rootPath)) {
			return nil
		}
		return m.visit(rootPath, fn)
	}

	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !strings.HasPrefix(p, rootPath+string(filepath.Separator)) {
			continue
		}
		rel := strings.TrimPrefix(p, rootPath+string(filepath.Separator))
		parts := strings.Split(rel, string(filepath.Separator))
		if !recursive && len(parts) > 1 {
			continue
		}
		if m.files[p].IsDirectory {
			continue
		}
		if ignoredAlongPath(parts, ignore) {
			continue
		}
		if err := m.visit(p, fn); err != nil {
			return err
		}
	}
	return nil
}

func ignoredAlongPath(parts []string, ignore audit.IgnorePredicate) bool {
	if ignore == nil {
		return false
	}
	for _, part := range parts {
		if ignore(part) {
			return true
		}
	}
	return false
}

func (m *MockFilesystemManager) visit(path string, fn audit.WalkFunc) error {
	file := m.files[path]
	if file.WalkErr != nil {
		return fn(audit.NewPath(path, false, nil), file.WalkErr)
	}
	return fn(audit.NewPath(path, file.IsDirectory, m.infoFor(path, file)), nil)
}

func (m *MockFilesystemManager) infoFor(path string, file *MockFile) fs.FileInfo {
	return &mockFileInfo{
		name:     filepath.Base(path),
		size:     int64(len(file.Content)),
		mode:     file.Permissions,
		modTime:  file.ModTime,
		isDir:    file.IsDirectory,
		mockFile: file,
	}
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name     string
	size     int64
	mode     fs.FileMode
	modTime  time.Time
	isDir    bool
	mockFile *MockFile // reference to get stat data
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return m.mockFile }

// Compile-time check
var _ audit.FilesystemManager = (*MockFilesystemManager)(nil)
