package ustar

import (
	"context"
	"errors"
	"io/fs"
	"path"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Matcher decides whether an archive path is excluded from collection.
type Matcher interface {
	Match(relativePath string) bool
}

// CollectorOptions tunes a Collector.
type CollectorOptions struct {
	// Ignore excludes matching entries (and, for directories, their subtree).
	Ignore Matcher

	// SkipUnreadable logs and skips entries that cannot be stat'ed instead of
	// failing the run. Unreadable directories are always fatal.
	SkipUnreadable bool

	// Parallelism is the number of sibling subdirectories collected
	// concurrently. Values below 2 collect sequentially.
	Parallelism int
}

// Collector walks a directory tree and snapshots per-entry metadata.
type Collector struct {
	fsys   Filesystem
	logger Logger
	opts   CollectorOptions
	sem    *semaphore.Weighted
}

// NewCollector creates a Collector reading from fsys.
func NewCollector(fsys Filesystem, logger Logger, opts CollectorOptions) *Collector {
	c := &Collector{fsys: fsys, logger: logger, opts: opts}
	if opts.Parallelism > 1 {
		c.sem = semaphore.NewWeighted(int64(opts.Parallelism - 1))
	}
	return c
}

// Collect returns the entries of dir in enumeration order, with every
// subdirectory's children populated. Archive paths are relative to dir and
// slash-separated.
func (c *Collector) Collect(ctx context.Context, dir string) ([]Entry, error) {
	return c.collectDir(ctx, dir, "")
}

func (c *Collector) collectDir(ctx context.Context, hostDir, archiveDir string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirEntries, err := c.fsys.ReadDir(hostDir)
	if err != nil {
		return nil, &DirectoryReadError{Path: hostDir, Err: err}
	}
	c.logger.Debug("reading directory", "path", hostDir, "entries", len(dirEntries))

	entries := make([]Entry, 0, len(dirEntries))
	var subdirs []*Directory
	for _, de := range dirEntries {
		archivePath := path.Join(archiveDir, de.Name())
		if c.opts.Ignore != nil && c.opts.Ignore.Match(archivePath) {
			c.logger.Debug("ignoring entry", "path", archivePath)
			continue
		}

		entry, err := c.collectEntry(c.fsys.Join(hostDir, de.Name()), archivePath)
		if err != nil {
			if c.opts.SkipUnreadable && errors.Is(err, ErrEntryRead) {
				c.logger.Warn("skipping unreadable entry", "path", archivePath, "error", err)
				continue
			}
			return nil, err
		}
		if entry == nil {
			continue
		}

		entries = append(entries, entry)
		if d, ok := entry.(*Directory); ok {
			subdirs = append(subdirs, d)
		}
	}

	if err := c.collectSubdirs(ctx, subdirs); err != nil {
		return nil, err
	}
	return entries, nil
}

// collectSubdirs populates the children of each directory. When a
// parallelism slot is free the subtree is collected in its own goroutine,
// otherwise inline, so nested levels can never wait on each other for slots.
// Each goroutine writes only to its own Directory.
func (c *Collector) collectSubdirs(ctx context.Context, dirs []*Directory) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for _, d := range dirs {
		fill := func() error {
			children, err := c.collectDir(gctx, d.SourcePath, d.Metadata.Path)
			if err != nil {
				return err
			}
			d.Children = children
			return nil
		}

		if c.sem != nil && c.sem.TryAcquire(1) {
			g.Go(func() error {
				defer c.sem.Release(1)
				return fill()
			})
			continue
		}
		if err := fill(); err != nil {
			cancel()
			return rootCause(err, g.Wait())
		}
	}
	return g.Wait()
}

// rootCause picks the error to report when an inline subtree stops early.
// A failed goroutine cancels the group, so an inline cancellation is only
// the echo of the group's error.
func rootCause(inline, group error) error {
	if group != nil && errors.Is(inline, context.Canceled) && !errors.Is(group, context.Canceled) {
		return group
	}
	return inline
}

// collectEntry snapshots a single entry. It returns nil for entry kinds that
// have no UStar representation (sockets).
func (c *Collector) collectEntry(hostPath, archivePath string) (Entry, error) {
	if len(archivePath) > NameSize {
		return nil, &PathTooLongError{Field: fieldPath.name, Path: archivePath, Limit: NameSize}
	}

	info, err := c.fsys.Lstat(hostPath)
	if err != nil {
		return nil, &EntryReadError{Path: hostPath, Err: err}
	}
	stat, err := c.fsys.ExtractStatData(info)
	if err != nil {
		return nil, &EntryReadError{Path: hostPath, Err: err}
	}

	mode := info.Mode()
	m := Metadata{
		Path:    archivePath,
		Mode:    permBits(mode),
		UID:     stat.UID,
		GID:     stat.GID,
		ModTime: info.ModTime().Unix(),
	}

	switch {
	case mode.IsDir():
		m.Type = TypeDir
		return &Directory{Metadata: m, SourcePath: hostPath}, nil
	case mode.IsRegular():
		m.Type = TypeReg
		m.Size = info.Size()
	case mode&fs.ModeSymlink != 0:
		target, err := c.fsys.Readlink(hostPath)
		if err != nil {
			return nil, &EntryReadError{Path: hostPath, Err: err}
		}
		if len(target) > NameSize {
			return nil, &PathTooLongError{Field: fieldLinkTarget.name, Path: target, Limit: NameSize}
		}
		m.Type = TypeSymlink
		m.LinkTarget = target
	case mode&fs.ModeNamedPipe != 0:
		m.Type = TypeFifo
	case mode&fs.ModeCharDevice != 0:
		m.Type = TypeChar
	case mode&fs.ModeDevice != 0:
		m.Type = TypeBlock
	default:
		c.logger.Warn("skipping unsupported entry", "path", archivePath, "mode", mode.String())
		return nil, nil
	}
	return &File{Metadata: m, SourcePath: hostPath}, nil
}

// permBits converts an fs.FileMode to the 12 POSIX permission bits.
func permBits(mode fs.FileMode) int64 {
	bits := int64(mode.Perm())
	if mode&fs.ModeSetuid != 0 {
		bits |= 04000
	}
	if mode&fs.ModeSetgid != 0 {
		bits |= 02000
	}
	if mode&fs.ModeSticky != 0 {
		bits |= 01000
	}
	return bits
}
