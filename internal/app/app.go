package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ustar-go/internal/config"
	"ustar-go/internal/database"
	"ustar-go/internal/encryption"
	"ustar-go/internal/fs"
	"ustar-go/internal/sink"
	"ustar-go/internal/ustar"
)

// App is the application layer between the CLI and ArchiveService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and releases resources on Close.
type App struct {
	cfg       *config.Config
	fsys      ustar.Filesystem
	sink      ustar.Sink
	encryptor ustar.Encryptor
	catalog   ustar.Catalog
	logger    ustar.Logger
	clock     ustar.Clock
	idgen     ustar.IDGenerator
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config.
// The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	s, err := sink.NewSinkFromConfig(ctx, cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("creating sink: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	catalog, err := database.NewCatalogFromConfig(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("creating catalog: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		catalog.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	return &App{
		cfg:       cfg,
		fsys:      fs.NewOSFilesystem(),
		sink:      s,
		encryptor: enc,
		catalog:   catalog,
		logger:    &slogAdapter{l: logger},
		clock:     ustar.RealClock{},
		idgen:     ustar.UUIDGenerator{},
		logFile:   logFile,
	}, nil
}

// newService builds an ArchiveService whose collector honours the ignore
// patterns configured for sourceDir.
func (a *App) newService(sourceDir string) (*ustar.ArchiveService, error) {
	opts := ustar.CollectorOptions{
		SkipUnreadable: a.cfg.Filesystem.SkipUnreadable,
		Parallelism:    a.cfg.Filesystem.Parallelism,
	}
	if sourceDir != "" {
		matcher, err := fs.LoadIgnoreMatcher(sourceDir, a.cfg.Filesystem.Ignore)
		if err != nil {
			return nil, fmt.Errorf("loading ignore patterns: %w", err)
		}
		opts.Ignore = matcher
	}
	return ustar.NewArchiveService(a.fsys, a.sink, a.encryptor, a.catalog, a.logger, a.clock, a.idgen, opts), nil
}

// CreateArchive resolves rawDir and archives it under name. An empty name
// defaults to the directory's base name with a ".tar" extension.
func (a *App) CreateArchive(ctx context.Context, rawDir, name string) (*ustar.RunSummary, error) {
	dir, err := filepath.Abs(rawDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	if name == "" {
		name = DefaultArchiveName(dir)
	}

	svc, err := a.newService(dir)
	if err != nil {
		return nil, err
	}
	return svc.CreateArchive(ctx, dir, name)
}

// DefaultArchiveName returns the archive name used when none is given.
func DefaultArchiveName(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	if base == string(filepath.Separator) || base == "." {
		base = "archive"
	}
	return base + ".tar"
}

// ArchiveEntry is one header read back from an archive.
type ArchiveEntry struct {
	Metadata *ustar.Metadata
	Offset   int64
}

// InspectArchive reads the headers of the archive at rawPath. When
// passphrase is non-nil the archive is decrypted first using the configured
// encryptor.
func (a *App) InspectArchive(rawPath string, passphrase *string) ([]ArchiveEntry, error) {
	f, err := os.Open(rawPath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if passphrase != nil {
		if a.encryptor == nil {
			return nil, fmt.Errorf("encryption is not configured")
		}
		dc, err := a.encryptor.Unlock(*passphrase)
		if err != nil {
			return nil, fmt.Errorf("unlocking private key: %w", err)
		}
		r, err = dc.DecryptReader(f)
		if err != nil {
			return nil, fmt.Errorf("decrypting archive: %w", err)
		}
	}

	var entries []ArchiveEntry
	err = ustar.ReadArchive(r, func(m *ustar.Metadata, offset int64) error {
		entries = append(entries, ArchiveEntry{Metadata: m, Offset: offset})
		return nil
	})
	if err != nil {
		return entries, fmt.Errorf("reading archive: %w", err)
	}
	return entries, nil
}

// EncryptionEnabled reports whether archives are encrypted.
func (a *App) EncryptionEnabled() bool {
	return a.encryptor != nil
}

// IsEncryptedArchive reports whether name carries the configured encryptor's suffix.
func (a *App) IsEncryptedArchive(name string) bool {
	return a.encryptor != nil && strings.HasSuffix(name, a.encryptor.Suffix())
}

// SetupKeys generates the encryption key pair, protecting the private key
// with passphrase.
func (a *App) SetupKeys(passphrase string) error {
	if a.encryptor == nil {
		return fmt.Errorf("encryption is not configured")
	}
	if a.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys already exist")
	}
	return a.encryptor.Setup(passphrase)
}

// ListRuns returns the most recent archive runs.
func (a *App) ListRuns(limit int) ([]*ustar.Run, error) {
	svc, err := a.newService("")
	if err != nil {
		return nil, err
	}
	return svc.ListRuns(limit)
}

// GetRun returns a run and the entries it wrote.
func (a *App) GetRun(id string) (*ustar.Run, []*ustar.RunEntry, error) {
	svc, err := a.newService("")
	if err != nil {
		return nil, nil, err
	}
	return svc.GetRun(id)
}

// Close closes the catalog and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.catalog.Close(); err != nil {
		firstErr = fmt.Errorf("closing catalog: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
