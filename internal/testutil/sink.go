package testutil

import "ustar-go/internal/sink"

// NewTestSink creates a new in-memory sink for testing.
func NewTestSink() *sink.MemorySink {
	return sink.NewMemorySink("test-sink")
}
