package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"ustar-go/internal/ustar"
)

// OSFilesystem is the real filesystem implementation of ustar.Filesystem.
// It performs actual filesystem operations using the os package.
type OSFilesystem struct{}

// NewOSFilesystem creates a filesystem that operates on the real filesystem.
func NewOSFilesystem() *OSFilesystem {
	return &OSFilesystem{}
}

// ReadDir lists a directory in the order the operating system returns it.
// Unlike os.ReadDir, the result is not sorted by name.
func (m *OSFilesystem) ReadDir(path string) ([]fs.DirEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}
	return entries, nil
}

// Lstat returns info for path without following symlinks.
func (m *OSFilesystem) Lstat(path string) (fs.FileInfo, error) {
	return os.Lstat(path)
}

// Readlink returns the target of a symlink.
func (m *OSFilesystem) Readlink(path string) (string, error) {
	return os.Readlink(path)
}

// Open opens a file for reading.
func (m *OSFilesystem) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Join joins path elements with the host separator.
func (m *OSFilesystem) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// Compile-time check that OSFilesystem implements ustar.Filesystem interface
var _ ustar.Filesystem = (*OSFilesystem)(nil)
