package ustar

import (
	"errors"
	"fmt"
)

// Sentinel errors. Each concrete error type below matches one of these
// with errors.Is, and carries the offending path or field for errors.As.
var (
	// ErrDirectoryRead is returned when a directory cannot be opened or listed.
	ErrDirectoryRead = errors.New("cannot read directory")

	// ErrEntryRead is returned when a single entry cannot be stat'ed or read.
	ErrEntryRead = errors.New("cannot read entry")

	// ErrPathTooLong is returned when an archive path or link target
	// does not fit in its 100-byte field.
	ErrPathTooLong = errors.New("path too long")

	// ErrFieldOverflow is returned when a numeric value does not fit in
	// its octal field.
	ErrFieldOverflow = errors.New("field overflow")

	// ErrWrite is returned when the archive destination rejects a write.
	ErrWrite = errors.New("archive write failed")

	// ErrChecksumMismatch is returned when a header's stored checksum
	// does not match its contents.
	ErrChecksumMismatch = errors.New("header checksum mismatch")

	// ErrInvalidHeader is returned when a header field holds a value that
	// cannot be encoded or parsed.
	ErrInvalidHeader = errors.New("invalid header")

	// ErrTruncatedArchive is returned when an archive ends before its
	// end-of-archive marker.
	ErrTruncatedArchive = errors.New("truncated archive")
)

// DirectoryReadError reports a directory that could not be listed.
type DirectoryReadError struct {
	Path string
	Err  error
}

func (e *DirectoryReadError) Error() string {
	return fmt.Sprintf("reading directory %s: %v", e.Path, e.Err)
}

func (e *DirectoryReadError) Unwrap() error { return e.Err }

func (e *DirectoryReadError) Is(target error) bool { return target == ErrDirectoryRead }

// EntryReadError reports an entry whose metadata or content could not be read.
type EntryReadError struct {
	Path string
	Err  error
}

func (e *EntryReadError) Error() string {
	return fmt.Sprintf("reading entry %s: %v", e.Path, e.Err)
}

func (e *EntryReadError) Unwrap() error { return e.Err }

func (e *EntryReadError) Is(target error) bool { return target == ErrEntryRead }

// PathTooLongError reports a path-like field longer than its fixed width.
type PathTooLongError struct {
	Field string // "path" or "link_target"
	Path  string
	Limit int
}

func (e *PathTooLongError) Error() string {
	return fmt.Sprintf("%s %q is %d bytes, limit is %d", e.Field, e.Path, len(e.Path), e.Limit)
}

func (e *PathTooLongError) Is(target error) bool { return target == ErrPathTooLong }

// FieldOverflowError reports a numeric value that cannot be represented
// in its octal field.
type FieldOverflowError struct {
	Path  string
	Field string
	Value int64
	Max   int64
}

func (e *FieldOverflowError) Error() string {
	return fmt.Sprintf("%s: field %s value %d out of range [0, %d]", e.Path, e.Field, e.Value, e.Max)
}

func (e *FieldOverflowError) Is(target error) bool { return target == ErrFieldOverflow }

// InvalidFieldError reports a header field whose value is not allowed for
// the entry, such as an unknown type flag.
type InvalidFieldError struct {
	Path   string
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("%s: field %s: %s", e.Path, e.Field, e.Reason)
}

func (e *InvalidFieldError) Is(target error) bool { return target == ErrInvalidHeader }

// WriteError reports a failure of the archive destination.
type WriteError struct {
	Offset int64 // archive offset at which the write was attempted
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing archive at offset %d: %v", e.Offset, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrWrite }
