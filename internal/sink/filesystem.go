package sink

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"ustar-go/internal/ustar"
)

// FileSystemSink writes archives as files under a root directory.
// Archives are written to a hidden temp file in the same directory and
// renamed into place on commit, so a failed run never leaves a file under
// the final name.
type FileSystemSink struct {
	name string
	root string
}

// NewFileSystemSink creates a sink rooted at root, creating it if needed.
func NewFileSystemSink(name, root string) (*FileSystemSink, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileSystemSink{name: name, root: root}, nil
}

// Location returns the final path of an archive.
func (s *FileSystemSink) Location(name string) string {
	return filepath.Join(s.root, name)
}

// Begin creates the temp file that will become the archive.
func (s *FileSystemSink) Begin(_ context.Context, name string) (ustar.Destination, error) {
	destPath := s.Location(name)

	// Create temp file in the same directory to ensure atomic rename works
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	return &fileDestination{
		file:     tmpFile,
		buf:      bufio.NewWriterSize(tmpFile, 64*1024),
		tmpPath:  tmpFile.Name(),
		destPath: destPath,
	}, nil
}

type fileDestination struct {
	file     *os.File
	buf      *bufio.Writer
	tmpPath  string
	destPath string
	done     bool
}

func (d *fileDestination) Write(p []byte) (int, error) {
	if d.done {
		return 0, fmt.Errorf("write to finished archive %s", d.destPath)
	}
	return d.buf.Write(p)
}

// Commit flushes, syncs and renames the temp file into place.
func (d *fileDestination) Commit() error {
	if d.done {
		return fmt.Errorf("archive %s already finished", d.destPath)
	}
	if err := d.buf.Flush(); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := d.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := d.file.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	d.done = true

	// Atomic rename
	if err := os.Rename(d.tmpPath, d.destPath); err != nil {
		os.Remove(d.tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Abort removes the temp file.
func (d *fileDestination) Abort() error {
	if !d.done {
		d.file.Close()
		d.done = true
	}
	if err := os.Remove(d.tmpPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp file: %w", err)
	}
	return nil
}

// Compile-time check that FileSystemSink implements ustar.Sink interface
var _ ustar.Sink = (*FileSystemSink)(nil)
