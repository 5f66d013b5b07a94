package ustar

import (
	"context"
	"io"
)

// Sink provides an interface for archive destinations.
// An archive only becomes visible at its destination once it has been
// committed, so a failed run never leaves a file that looks complete.
type Sink interface {
	// Begin starts a new archive called name.
	Begin(ctx context.Context, name string) (Destination, error)

	// Location describes where an archive called name is (or will be) stored.
	Location(name string) string
}

// Destination receives the bytes of one archive.
type Destination interface {
	io.Writer

	// Commit makes the archive visible at its final location.
	Commit() error

	// Abort discards everything written so far. It is safe to call after
	// a failed Commit.
	Abort() error
}
