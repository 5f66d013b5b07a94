package ustar

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ParseHeader decodes a header block and verifies its checksum.
func ParseHeader(b []byte) (*Metadata, error) {
	if len(b) != BlockSize {
		return nil, fmt.Errorf("%w: block is %d bytes", ErrInvalidHeader, len(b))
	}
	var h HeaderBlock
	copy(h[:], b)

	stored, err := h.StoredChecksum()
	if err != nil {
		return nil, err
	}
	if computed := h.Checksum(); stored != computed {
		return nil, fmt.Errorf("%w: stored %o, computed %o", ErrChecksumMismatch, stored, computed)
	}

	m := &Metadata{
		Path:       parseString(h.slice(fieldPath)),
		Type:       h.Type(),
		LinkTarget: parseString(h.slice(fieldLinkTarget)),
	}
	numeric := []struct {
		f   field
		dst *int64
	}{
		{fieldMode, &m.Mode},
		{fieldUID, &m.UID},
		{fieldGID, &m.GID},
		{fieldSize, &m.Size},
		{fieldModTime, &m.ModTime},
	}
	for _, n := range numeric {
		v, err := parseOctal(n.f, h.slice(n.f))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Path, err)
		}
		*n.dst = v
	}
	return m, nil
}

// parseString returns the bytes of b up to the first NUL.
func parseString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// parseOctal reads an octal numeral, ignoring leading spaces and any
// trailing NUL or space terminators. An empty field is zero.
func parseOctal(f field, b []byte) (int64, error) {
	b = bytes.TrimLeft(b, " ")
	b = bytes.TrimRight(b, " \x00")
	var v int64
	for _, c := range b {
		if c < '0' || c > '7' {
			return 0, fmt.Errorf("%w: field %s holds %q", ErrInvalidHeader, f.name, b)
		}
		v = v<<3 | int64(c-'0')
	}
	return v, nil
}

func isZeroBlock(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// ReadArchive walks the headers of an archive stream in order, calling fn
// with each decoded header and the offset at which it starts. Content
// blocks are read and discarded. It stops at the end-of-archive marker and
// reports ErrTruncatedArchive if the stream ends first.
func ReadArchive(r io.Reader, fn func(m *Metadata, offset int64) error) error {
	block := make([]byte, BlockSize)
	var offset int64

	for {
		if _, err := io.ReadFull(r, block); err != nil {
			return truncated(err, offset)
		}
		if isZeroBlock(block) {
			if _, err := io.ReadFull(r, block); err != nil {
				return truncated(err, offset+BlockSize)
			}
			if !isZeroBlock(block) {
				return fmt.Errorf("%w: lone zero block at offset %d", ErrInvalidHeader, offset)
			}
			return nil
		}

		m, err := ParseHeader(block)
		if err != nil {
			return fmt.Errorf("header at offset %d: %w", offset, err)
		}
		if err := fn(m, offset); err != nil {
			return err
		}
		offset += BlockSize

		if hasContent(m.Type) && m.Size > 0 {
			skip := m.Size + padding(m.Size)
			n, err := io.CopyN(io.Discard, r, skip)
			if err != nil {
				return truncated(err, offset+n)
			}
			offset += skip
		}
	}
}

func truncated(err error, offset int64) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: stream ends at offset %d", ErrTruncatedArchive, offset)
	}
	return err
}

// hasContent reports whether entries of type t are followed by size bytes
// of content.
func hasContent(t TypeFlag) bool {
	switch t {
	case TypeReg, TypeCont:
		return true
	}
	return false
}

// padding returns the number of NUL bytes needed to round n up to the
// next block boundary.
func padding(n int64) int64 {
	return -n & (BlockSize - 1)
}
