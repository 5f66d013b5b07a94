package ustar

import "time"

// RunStatus is the state of an archive run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// Run records one invocation of CreateArchive.
type Run struct {
	ID           string
	SourceDir    string
	Destination  string
	StartedAt    time.Time
	FinishedAt   time.Time // zero while running
	Status       RunStatus
	EntryCount   int64
	BytesWritten int64
	Error        string
}

// RunEntry records one header emitted during a run.
type RunEntry struct {
	Seq      int64 // position of the header in the archive, from 0
	Path     string
	Type     TypeFlag
	Size     int64
	Mode     int64
	UID      int64
	GID      int64
	ModTime  int64
	Offset   int64 // byte offset of the header block
	Checksum int64
}

// Catalog provides an interface for storing the history of archive runs.
type Catalog interface {
	// CreateRun stores a new run.
	CreateRun(run *Run) error

	// FinishRun updates the status, counters and finish time of a run.
	FinishRun(run *Run) error

	// AddEntries stores the headers emitted by a run.
	AddEntries(runID string, entries []*RunEntry) error

	// FindRun returns a run by ID, or nil if it does not exist.
	FindRun(id string) (*Run, error)

	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]*Run, error)

	// ListEntries returns the entries of a run in archive order.
	ListEntries(runID string) ([]*RunEntry, error)

	// Close releases the catalog's resources.
	Close() error
}

// NopCatalog is a Catalog that records nothing.
type NopCatalog struct{}

func NewNopCatalog() *NopCatalog { return &NopCatalog{} }

func (*NopCatalog) CreateRun(*Run) error                    { return nil }
func (*NopCatalog) FinishRun(*Run) error                    { return nil }
func (*NopCatalog) AddEntries(string, []*RunEntry) error    { return nil }
func (*NopCatalog) FindRun(string) (*Run, error)            { return nil, nil }
func (*NopCatalog) ListRuns(int) ([]*Run, error)            { return nil, nil }
func (*NopCatalog) ListEntries(string) ([]*RunEntry, error) { return nil, nil }
func (*NopCatalog) Close() error                            { return nil }
