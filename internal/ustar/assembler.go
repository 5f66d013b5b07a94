package ustar

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// HeaderObserver is called after each header block has been written.
// offset is the archive offset of the block.
type HeaderObserver func(m *Metadata, h *HeaderBlock, offset int64)

// Assembler serializes a collected tree into an archive stream.
type Assembler struct {
	fsys   Filesystem
	logger Logger
}

// NewAssembler creates an Assembler that reads file content from fsys.
func NewAssembler(fsys Filesystem, logger Logger) *Assembler {
	return &Assembler{fsys: fsys, logger: logger}
}

var zeroBlock [BlockSize]byte

// Assemble writes entries to w depth-first, each directory header before its
// children, followed by the end-of-archive marker. Regular file content
// follows its header, NUL-padded to the block boundary. It returns the
// number of bytes written. observe may be nil.
func (a *Assembler) Assemble(ctx context.Context, w io.Writer, entries []Entry, observe HeaderObserver) (int64, error) {
	cw := &countingWriter{w: w}

	err := Walk(entries, func(e Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return a.writeEntry(cw, e, observe)
	})
	if err != nil {
		return cw.n, err
	}

	// End of archive: two zero blocks.
	for i := 0; i < 2; i++ {
		if _, err := cw.Write(zeroBlock[:]); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

func (a *Assembler) writeEntry(cw *countingWriter, e Entry, observe HeaderObserver) error {
	m := e.Meta()
	h, err := Encode(m)
	if err != nil {
		return err
	}

	offset := cw.n
	if _, err := cw.Write(h[:]); err != nil {
		return err
	}
	if observe != nil {
		observe(m, &h, offset)
	}

	if m.Type != TypeReg || m.Size == 0 {
		return nil
	}
	if err := a.writeContent(cw, e.Source(), m.Size); err != nil {
		return err
	}
	a.logger.Debug("wrote entry", "path", m.Path, "size", m.Size)
	return nil
}

// writeContent copies exactly size bytes from the source file. A file that
// shrank since it was collected is an error; one that grew is cut at the
// collected size so the header stays correct.
func (a *Assembler) writeContent(cw *countingWriter, source string, size int64) error {
	f, err := a.fsys.Open(source)
	if err != nil {
		return &EntryReadError{Path: source, Err: err}
	}
	defer f.Close()

	n, err := io.CopyN(cw, f, size)
	if err != nil {
		var werr *WriteError
		if errors.As(err, &werr) {
			return err
		}
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("file shrank during archiving: read %d of %d bytes", n, size)
		}
		return &EntryReadError{Path: source, Err: err}
	}

	if pad := padding(size); pad > 0 {
		if _, err := cw.Write(zeroBlock[:pad]); err != nil {
			return err
		}
	}
	return nil
}

// countingWriter tracks the archive offset and tags sink failures as
// *WriteError.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil {
		return n, &WriteError{Offset: c.n, Err: err}
	}
	return n, nil
}
