package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sync"
	"time"

	"ustar-go/internal/ustar"
)

// DefaultModTime is the modification time given to mock entries: 1700000000.
var DefaultModTime = time.Unix(1700000000, 0).UTC()

// MockEntry represents a file, directory or special entry in the mock filesystem.
type MockEntry struct {
	Content    []byte
	Mode       fs.FileMode // type bits plus permissions
	ModTime    time.Time
	UID        int64
	GID        int64
	LinkTarget string

	// StatSize overrides the size reported by Lstat when non-negative, to
	// simulate a file changing between collection and assembly.
	StatSize int64

	children []string // names in insertion order
}

// MockFilesystem is an in-memory filesystem for testing. Directory listings
// are returned in insertion order.
type MockFilesystem struct {
	mu          sync.RWMutex
	entries     map[string]*MockEntry
	statErrs    map[string]error
	readDirErrs map[string]error
	openErrs    map[string]error
}

// NewMockFilesystem creates a new mock filesystem containing only "/".
func NewMockFilesystem() *MockFilesystem {
	m := &MockFilesystem{
		entries:     make(map[string]*MockEntry),
		statErrs:    make(map[string]error),
		readDirErrs: make(map[string]error),
		openErrs:    make(map[string]error),
	}
	m.entries["/"] = &MockEntry{Mode: fs.ModeDir | 0755, ModTime: DefaultModTime, StatSize: -1}
	return m
}

// AddDirectory adds a directory with mode 0755, creating missing parents.
func (m *MockFilesystem) AddDirectory(p string) *MockEntry {
	return m.add(p, &MockEntry{Mode: fs.ModeDir | 0755})
}

// AddFile adds a regular file with mode 0644, creating missing parents.
func (m *MockFilesystem) AddFile(p string, content []byte) *MockEntry {
	return m.add(p, &MockEntry{Mode: 0644, Content: content})
}

// AddSymlink adds a symlink pointing at target.
func (m *MockFilesystem) AddSymlink(p, target string) *MockEntry {
	return m.add(p, &MockEntry{Mode: fs.ModeSymlink | 0777, LinkTarget: target})
}

// AddSpecial adds an entry with the given type bits, such as fs.ModeNamedPipe.
func (m *MockFilesystem) AddSpecial(p string, typ fs.FileMode) *MockEntry {
	return m.add(p, &MockEntry{Mode: typ | 0644})
}

// SetStatError makes Lstat fail for p.
func (m *MockFilesystem) SetStatError(p string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statErrs[path.Clean(p)] = err
}

// SetReadDirError makes ReadDir fail for p.
func (m *MockFilesystem) SetReadDirError(p string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readDirErrs[path.Clean(p)] = err
}

// SetOpenError makes Open fail for p.
func (m *MockFilesystem) SetOpenError(p string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErrs[path.Clean(p)] = err
}

func (m *MockFilesystem) add(p string, e *MockEntry) *MockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	p = path.Clean(p)
	if e.ModTime.IsZero() {
		e.ModTime = DefaultModTime
	}
	e.UID, e.GID = 1000, 1000
	e.StatSize = -1
	m.ensureParents(p)
	if old, exists := m.entries[p]; exists {
		e.children = old.children
	} else {
		parent := m.entries[path.Dir(p)]
		parent.children = append(parent.children, path.Base(p))
	}
	m.entries[p] = e
	return e
}

func (m *MockFilesystem) ensureParents(p string) {
	dir := path.Dir(p)
	if _, ok := m.entries[dir]; ok {
		return
	}
	m.ensureParents(dir)
	parent := m.entries[path.Dir(dir)]
	parent.children = append(parent.children, path.Base(dir))
	m.entries[dir] = &MockEntry{Mode: fs.ModeDir | 0755, ModTime: DefaultModTime, UID: 1000, GID: 1000, StatSize: -1}
}

func (m *MockFilesystem) ReadDir(p string) ([]fs.DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p = path.Clean(p)
	if err := m.readDirErrs[p]; err != nil {
		return nil, err
	}
	e, ok := m.entries[p]
	if !ok {
		return nil, fmt.Errorf("directory not found: %s", p)
	}
	if !e.Mode.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", p)
	}

	out := make([]fs.DirEntry, 0, len(e.children))
	for _, name := range e.children {
		child := m.entries[path.Join(p, name)]
		out = append(out, fs.FileInfoToDirEntry(newMockFileInfo(name, child)))
	}
	return out, nil
}

func (m *MockFilesystem) Lstat(p string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p = path.Clean(p)
	if err := m.statErrs[p]; err != nil {
		return nil, err
	}
	e, ok := m.entries[p]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", p)
	}
	return newMockFileInfo(path.Base(p), e), nil
}

func (m *MockFilesystem) ExtractStatData(info fs.FileInfo) (*ustar.StatData, error) {
	e, ok := info.Sys().(*MockEntry)
	if !ok {
		return nil, fmt.Errorf("cannot extract stat data: expected *MockEntry, got %T", info.Sys())
	}
	return &ustar.StatData{UID: e.UID, GID: e.GID}, nil
}

func (m *MockFilesystem) Readlink(p string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[path.Clean(p)]
	if !ok || e.Mode&fs.ModeSymlink == 0 {
		return "", fmt.Errorf("not a symlink: %s", p)
	}
	return e.LinkTarget, nil
}

func (m *MockFilesystem) Open(p string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p = path.Clean(p)
	if err := m.openErrs[p]; err != nil {
		return nil, err
	}
	e, ok := m.entries[p]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", p)
	}
	if !e.Mode.IsRegular() {
		return nil, fmt.Errorf("cannot open non-regular file: %s", p)
	}
	return io.NopCloser(bytes.NewReader(e.Content)), nil
}

func (m *MockFilesystem) Join(elem ...string) string {
	return path.Join(elem...)
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name  string
	entry *MockEntry
}

func newMockFileInfo(name string, e *MockEntry) *mockFileInfo {
	return &mockFileInfo{name: name, entry: e}
}

func (i *mockFileInfo) Name() string       { return i.name }
func (i *mockFileInfo) Mode() fs.FileMode  { return i.entry.Mode }
func (i *mockFileInfo) ModTime() time.Time { return i.entry.ModTime }
func (i *mockFileInfo) IsDir() bool        { return i.entry.Mode.IsDir() }
func (i *mockFileInfo) Sys() any           { return i.entry }

func (i *mockFileInfo) Size() int64 {
	if i.entry.StatSize >= 0 {
		return i.entry.StatSize
	}
	return int64(len(i.entry.Content))
}

// Compile-time check
var _ ustar.Filesystem = (*MockFilesystem)(nil)
