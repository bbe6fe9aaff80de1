// Package history keeps a bounded, linear undo/redo timeline of graph snapshots.
//
// The manager stores deep copies, so callers may keep mutating the model after Record
// without corrupting earlier entries. It is not safe for concurrent use.
package history

import (
	"log/slog"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/graph"
)

// DefaultCapacity is the number of snapshots kept when no capacity is configured.
const DefaultCapacity = 50

// Manager holds the snapshot timeline and the cursor into it.
type Manager struct {
	entries  []graph.Snapshot
	cursor   int
	capacity int
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithCapacity bounds the timeline. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// WithLogger sets the logger used to report evictions.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// New creates a manager whose timeline starts with initial.
func New(initial graph.Snapshot, opts ...Option) *Manager {
	m := &Manager{
		capacity: DefaultCapacity,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.entries = []graph.Snapshot{initial.Clone()}
	return m
}

// Record appends s after the cursor, discarding any redo tail.
// When the timeline is full the oldest entry is evicted.
func (m *Manager) Record(s graph.Snapshot) {
	m.entries = append(m.entries[:m.cursor+1], s.Clone())
	m.cursor = len(m.entries) - 1

	if over := len(m.entries) - m.capacity; over > 0 {
		m.logger.Debug("history full, evicting", "count", over, "capacity", m.capacity)
		m.entries = append([]graph.Snapshot(nil), m.entries[over:]...)
		m.cursor -= over
	}
}

// Undo moves the cursor back and returns the snapshot to restore.
func (m *Manager) Undo() (graph.Snapshot, bool) {
	if !m.CanUndo() {
		return graph.Snapshot{}, false
	}
	m.cursor--
	return m.entries[m.cursor].Clone(), true
}

// Redo moves the cursor forward and returns the snapshot to restore.
func (m *Manager) Redo() (graph.Snapshot, bool) {
	if !m.CanRedo() {
		return graph.Snapshot{}, false
	}
	m.cursor++
	return m.entries[m.cursor].Clone(), true
}

func (m *Manager) CanUndo() bool { return m.cursor > 0 }

func (m *Manager) CanRedo() bool { return m.cursor < len(m.entries)-1 }

// Current returns a copy of the snapshot under the cursor.
func (m *Manager) Current() graph.Snapshot { return m.entries[m.cursor].Clone() }

func (m *Manager) Len() int { return len(m.entries) }

func (m *Manager) Cursor() int { return m.cursor }

func (m *Manager) Capacity() int { return m.capacity }

// Labels lists the entry labels, oldest first.
func (m *Manager) Labels() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Label
	}
	return out
}
