package ustar

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		wrapped  error
	}{
		{"directory read", &DirectoryReadError{Path: "/src", Err: fs.ErrPermission}, ErrDirectoryRead, fs.ErrPermission},
		{"entry read", &EntryReadError{Path: "/src/a", Err: fs.ErrNotExist}, ErrEntryRead, fs.ErrNotExist},
		{"path too long", &PathTooLongError{Field: "path", Path: "x", Limit: NameSize}, ErrPathTooLong, nil},
		{"field overflow", &FieldOverflowError{Path: "a", Field: "size", Value: -1, Max: MaxSize}, ErrFieldOverflow, nil},
		{"write", &WriteError{Offset: 512, Err: fs.ErrClosed}, ErrWrite, fs.ErrClosed},
		{"invalid field", &InvalidFieldError{Path: "a", Field: "type_flag", Reason: "unknown"}, ErrInvalidHeader, nil},
	}

	sentinels := []error{ErrDirectoryRead, ErrEntryRead, ErrPathTooLong, ErrFieldOverflow, ErrWrite, ErrInvalidHeader}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Context wrapping must not hide the kind.
			err := fmt.Errorf("creating archive: %w", tt.err)

			for _, s := range sentinels {
				if got, want := errors.Is(err, s), s == tt.sentinel; got != want {
					t.Errorf("errors.Is(err, %v) = %v, want %v", s, got, want)
				}
			}
			if tt.wrapped != nil && !errors.Is(err, tt.wrapped) {
				t.Errorf("errors.Is(err, %v) = false, want true", tt.wrapped)
			}
			if err.Error() == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestTypeFlag(t *testing.T) {
	if TypeReg.String() != "file" || TypeDir.String() != "dir" {
		t.Errorf("String() = %q, %q", TypeReg.String(), TypeDir.String())
	}
	if !TypeFifo.Valid() || TypeFlag('Z').Valid() || TypeFlag(0).Valid() {
		t.Error("Valid() misclassifies type flags")
	}
	if byte(TypeReg) != 0x30 {
		t.Errorf("TypeReg = %#x, want 0x30", byte(TypeReg))
	}
}

func TestWalkOrder(t *testing.T) {
	tree := []Entry{
		&File{Metadata: Metadata{Path: "a"}},
		&Directory{Metadata: Metadata{Path: "d"}, Children: []Entry{
			&Directory{Metadata: Metadata{Path: "d/e"}, Children: []Entry{
				&File{Metadata: Metadata{Path: "d/e/f"}},
			}},
			&File{Metadata: Metadata{Path: "d/g"}},
		}},
		&File{Metadata: Metadata{Path: "h"}},
	}

	var got []string
	err := Walk(tree, func(e Entry) error {
		got = append(got, e.Meta().Path)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	want := []string{"a", "d", "d/e", "d/e/f", "d/g", "h"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Walk() order = %v, want %v", got, want)
	}
	if Count(tree) != 6 {
		t.Errorf("Count() = %d, want 6", Count(tree))
	}

	stop := errors.New("stop")
	n := 0
	err = Walk(tree, func(Entry) error {
		n++
		if n == 3 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || n != 3 {
		t.Errorf("Walk() = %v after %d calls, want stop after 3", err, n)
	}
}
