package ustar

import (
	"context"
	"fmt"
	"io"
)

// ArchiveService is the orchestration layer that coordinates collection,
// assembly, the destination and the run catalog for the CLI.
type ArchiveService struct {
	collector *Collector
	assembler *Assembler
	sink      Sink
	encryptor Encryptor
	catalog   Catalog
	logger    Logger
	clock     Clock
	idgen     IDGenerator
}

// NewArchiveService creates a new ArchiveService with the provided
// dependencies. encryptor may be nil, in which case archives are written in
// the clear.
func NewArchiveService(fsys Filesystem, sink Sink, encryptor Encryptor, catalog Catalog, logger Logger, clock Clock, idgen IDGenerator, opts CollectorOptions) *ArchiveService {
	return &ArchiveService{
		collector: NewCollector(fsys, logger, opts),
		assembler: NewAssembler(fsys, logger),
		sink:      sink,
		encryptor: encryptor,
		catalog:   catalog,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
	}
}

// RunSummary describes a completed archive run.
type RunSummary struct {
	RunID        string
	Name         string
	Location     string
	Entries      int
	BytesWritten int64 // archive bytes, before any encryption
}

// CreateArchive archives sourceDir under name at the configured sink.
// The archive is only committed when every entry has been written; on any
// failure the destination is aborted and the run is recorded as failed.
func (s *ArchiveService) CreateArchive(ctx context.Context, sourceDir, name string) (*RunSummary, error) {
	if name == "" {
		return nil, fmt.Errorf("archive name is required")
	}
	if s.encryptor != nil {
		name += s.encryptor.Suffix()
	}

	run := &Run{
		ID:          s.idgen.New(),
		SourceDir:   sourceDir,
		Destination: s.sink.Location(name),
		StartedAt:   s.clock.Now(),
		Status:      RunRunning,
	}
	if err := s.catalog.CreateRun(run); err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	s.logger.Info("archive run started", "run", run.ID, "source", sourceDir, "destination", run.Destination)

	runErr := s.createArchive(ctx, run, sourceDir, name)

	run.FinishedAt = s.clock.Now()
	if runErr != nil {
		run.Status = RunError
		run.Error = runErr.Error()
		s.logger.Error("archive run failed", "run", run.ID, "error", runErr)
	} else {
		run.Status = RunSuccess
		s.logger.Info("archive run finished", "run", run.ID, "entries", run.EntryCount, "bytes", run.BytesWritten)
	}
	if err := s.catalog.FinishRun(run); err != nil {
		if runErr != nil {
			s.logger.Warn("recording failed run", "run", run.ID, "error", err)
			return nil, runErr
		}
		return nil, fmt.Errorf("recording run: %w", err)
	}
	if runErr != nil {
		return nil, runErr
	}

	return &RunSummary{
		RunID:        run.ID,
		Name:         name,
		Location:     run.Destination,
		Entries:      int(run.EntryCount),
		BytesWritten: run.BytesWritten,
	}, nil
}

func (s *ArchiveService) createArchive(ctx context.Context, run *Run, sourceDir, name string) (err error) {
	entries, err := s.collector.Collect(ctx, sourceDir)
	if err != nil {
		return fmt.Errorf("collecting %s: %w", sourceDir, err)
	}
	s.logger.Debug("collected entries", "run", run.ID, "count", Count(entries))

	dest, err := s.sink.Begin(ctx, name)
	if err != nil {
		return fmt.Errorf("opening destination: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if abortErr := dest.Abort(); abortErr != nil {
			s.logger.Warn("aborting destination", "run", run.ID, "error", abortErr)
		}
	}()

	var w io.Writer = dest
	var enc io.WriteCloser
	if s.encryptor != nil {
		enc, err = s.encryptor.EncryptWriter(dest)
		if err != nil {
			return fmt.Errorf("starting encryption: %w", err)
		}
		w = enc
	}

	var records []*RunEntry
	observe := func(m *Metadata, h *HeaderBlock, offset int64) {
		records = append(records, &RunEntry{
			Seq:      int64(len(records)),
			Path:     m.Path,
			Type:     m.Type,
			Size:     m.Size,
			Mode:     m.Mode,
			UID:      m.UID,
			GID:      m.GID,
			ModTime:  m.ModTime,
			Offset:   offset,
			Checksum: h.Checksum(),
		})
	}

	n, err := s.assembler.Assemble(ctx, w, entries, observe)
	if err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	if enc != nil {
		if err = enc.Close(); err != nil {
			return fmt.Errorf("finishing encryption: %w", &WriteError{Offset: n, Err: err})
		}
	}

	if err = s.catalog.AddEntries(run.ID, records); err != nil {
		return fmt.Errorf("recording entries: %w", err)
	}
	if err = dest.Commit(); err != nil {
		return fmt.Errorf("committing archive: %w", &WriteError{Offset: n, Err: err})
	}

	run.EntryCount = int64(len(records))
	run.BytesWritten = n
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *ArchiveService) ListRuns(limit int) ([]*Run, error) {
	runs, err := s.catalog.ListRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a run and its entries.
func (s *ArchiveService) GetRun(id string) (*Run, []*RunEntry, error) {
	run, err := s.catalog.FindRun(id)
	if err != nil {
		return nil, nil, fmt.Errorf("finding run: %w", err)
	}
	if run == nil {
		return nil, nil, fmt.Errorf("run not found: %s", id)
	}
	entries, err := s.catalog.ListEntries(id)
	if err != nil {
		return nil, nil, fmt.Errorf("listing entries: %w", err)
	}
	return run, entries, nil
}
