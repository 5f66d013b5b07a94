package ustar

import (
	"io"
	"io/fs"
)

// Filesystem provides the read-only filesystem operations the collector and
// assembler need. It abstracts file access to enable testing without
// touching the real filesystem.
type Filesystem interface {
	// ReadDir lists the entries of a directory in the order the
	// filesystem yields them. No sorting is applied.
	ReadDir(path string) ([]fs.DirEntry, error)

	// Lstat returns info for path without following symlinks.
	Lstat(path string) (fs.FileInfo, error)

	// ExtractStatData extracts ownership from a FileInfo returned by Lstat.
	ExtractStatData(info fs.FileInfo) (*StatData, error)

	// Readlink returns the target of a symlink.
	Readlink(path string) (string, error)

	// Open opens a regular file for reading.
	Open(path string) (io.ReadCloser, error)

	// Join joins path elements with the filesystem's separator.
	Join(elem ...string) string
}

// StatData holds the ownership fields not exposed by fs.FileInfo.
type StatData struct {
	UID int64
	GID int64
}
