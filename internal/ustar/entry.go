package ustar

import "fmt"

// TypeFlag is the single type byte stored at offset 156 of a header.
// Values are ASCII characters, not small integers.
type TypeFlag byte

const (
	TypeReg           TypeFlag = '0' // regular file
	TypeLink          TypeFlag = '1' // hard link
	TypeSymlink       TypeFlag = '2' // symbolic link
	TypeChar          TypeFlag = '3' // character device
	TypeBlock         TypeFlag = '4' // block device
	TypeDir           TypeFlag = '5' // directory
	TypeFifo          TypeFlag = '6' // named pipe
	TypeCont          TypeFlag = '7' // contiguous file
	TypeXGlobalHeader TypeFlag = 'g' // POSIX.1-2001 global extended header
	TypeXHeader       TypeFlag = 'x' // POSIX.1-2001 per-file extended header
)

var typeFlagNames = map[TypeFlag]string{
	TypeReg:           "file",
	TypeLink:          "hardlink",
	TypeSymlink:       "symlink",
	TypeChar:          "chardev",
	TypeBlock:         "blockdev",
	TypeDir:           "dir",
	TypeFifo:          "fifo",
	TypeCont:          "contiguous",
	TypeXGlobalHeader: "global-xheader",
	TypeXHeader:       "xheader",
}

func (t TypeFlag) String() string {
	if name, ok := typeFlagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%q)", byte(t))
}

// Valid reports whether t is one of the known type flags.
func (t TypeFlag) Valid() bool {
	_, ok := typeFlagNames[t]
	return ok
}

// Metadata is the pre-encoding form of a header. It is a snapshot taken
// when the entry was collected and is never mutated afterwards.
type Metadata struct {
	Path       string // path inside the archive, relative to the archive root
	Mode       int64  // permission bits, 0..07777
	UID        int64
	GID        int64
	Size       int64 // 0 for everything but regular files
	ModTime    int64 // seconds since the Unix epoch
	Type       TypeFlag
	LinkTarget string // only for TypeLink and TypeSymlink
}

// Entry is a node of the collected tree: either a *File or a *Directory.
type Entry interface {
	// Meta returns the entry's metadata.
	Meta() *Metadata
	// Source returns the host path the entry was collected from.
	Source() string

	isEntry()
}

// File is any non-directory entry: regular files, links, devices and fifos.
// It never has children.
type File struct {
	Metadata   Metadata
	SourcePath string
}

func (f *File) Meta() *Metadata { return &f.Metadata }
func (f *File) Source() string  { return f.SourcePath }
func (*File) isEntry()          {}

// Directory owns its children exclusively, in enumeration order.
type Directory struct {
	Metadata   Metadata
	SourcePath string
	Children   []Entry
}

func (d *Directory) Meta() *Metadata { return &d.Metadata }
func (d *Directory) Source() string  { return d.SourcePath }
func (*Directory) isEntry()          {}

// Walk visits entries depth-first, each directory before its children.
// Returning an error from fn stops the walk and returns that error.
func Walk(entries []Entry, fn func(Entry) error) error {
	for _, e := range entries {
		if err := fn(e); err != nil {
			return err
		}
		if dir, ok := e.(*Directory); ok {
			if err := Walk(dir.Children, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Count returns the number of entries in the tree, directories included.
func Count(entries []Entry) int {
	n := 0
	_ = Walk(entries, func(Entry) error {
		n++
		return nil
	})
	return n
}
