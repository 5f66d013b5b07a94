package sink

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"ustar-go/internal/ustar"
)

// MemorySink is an in-memory implementation of the Sink interface.
// Archives become visible only once committed, making it useful for testing.
// This implementation is safe for concurrent use.
type MemorySink struct {
	name     string
	archives map[string][]byte
	aborted  int
	mu       sync.RWMutex
}

// NewMemorySink creates a new in-memory sink with the given name.
func NewMemorySink(name string) *MemorySink {
	return &MemorySink{
		name:     name,
		archives: make(map[string][]byte),
	}
}

// Location returns a memory:// URL for the archive.
func (m *MemorySink) Location(name string) string {
	return "memory://" + m.name + "/" + name
}

// Begin starts buffering a new archive.
func (m *MemorySink) Begin(_ context.Context, name string) (ustar.Destination, error) {
	return &memoryDestination{sink: m, name: name}, nil
}

// Get returns a committed archive.
func (m *MemorySink) Get(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.archives[name]
	return data, ok
}

// Names returns the names of all committed archives, sorted.
func (m *MemorySink) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.archives))
	for name := range m.archives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Aborted returns the number of archives that were aborted.
func (m *MemorySink) Aborted() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.aborted
}

type memoryDestination struct {
	sink *MemorySink
	name string
	buf  bytes.Buffer
	done bool
}

func (d *memoryDestination) Write(p []byte) (int, error) {
	if d.done {
		return 0, fmt.Errorf("write to finished archive %s", d.name)
	}
	return d.buf.Write(p)
}

func (d *memoryDestination) Commit() error {
	if d.done {
		return fmt.Errorf("archive %s already finished", d.name)
	}
	d.done = true

	d.sink.mu.Lock()
	defer d.sink.mu.Unlock()
	d.sink.archives[d.name] = bytes.Clone(d.buf.Bytes())
	return nil
}

func (d *memoryDestination) Abort() error {
	d.done = true
	d.buf.Reset()

	d.sink.mu.Lock()
	defer d.sink.mu.Unlock()
	d.sink.aborted++
	return nil
}

// Compile-time check that MemorySink implements ustar.Sink interface
var _ ustar.Sink = (*MemorySink)(nil)
