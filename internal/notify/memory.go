package notify

import (
	"sync"

	"github.com/crescendoapp/crescendo/internal/service"
)

// MemorySource is an in-process change source for tests and single-process
// deployments where no broker is available.
type MemorySource struct {
	changes chan service.Change
	mu      sync.Mutex
	closed  bool
}

// NewMemorySource creates a buffered in-process change source.
func NewMemorySource(buffer int) *MemorySource {
	if buffer <= 0 {
		buffer = 16
	}
	return &MemorySource{changes: make(chan service.Change, buffer)}
}

// Publish enqueues a change signal. Signals published after Close, or while
// the buffer is full, are dropped; the polling fallback covers the gap.
func (m *MemorySource) Publish(change service.Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.changes <- change:
	default:
	}
}

// Changes returns the stream of subject change signals.
func (m *MemorySource) Changes() <-chan service.Change {
	return m.changes
}

// Close closes the change stream.
func (m *MemorySource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.changes)
	}
	return nil
}
