package graph

import (
	"slices"
	"time"

	"github.com/aretw0/triage/pkg/domain"
)

// Snapshot is an immutable copy of the graph state at a point in time.
// Label and TakenAt describe the edit that produced it.
type Snapshot struct {
	Nodes       []domain.Node
	Edges       []domain.Edge
	NodeCounter int
	Label       string
	TakenAt     time.Time
}

// Clone returns a deep copy sharing no structure with s.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Nodes = make([]domain.Node, len(s.Nodes))
	for i, n := range s.Nodes {
		out.Nodes[i] = n.Clone()
	}
	out.Edges = slices.Clone(s.Edges)
	return out
}

// Snapshot captures the current state of the model.
func (m *Model) Snapshot(label string) Snapshot {
	return Snapshot{
		Nodes:       m.Nodes(),
		Edges:       m.Edges(),
		NodeCounter: m.counter,
		Label:       label,
		TakenAt:     time.Now(),
	}
}

// Restore replaces the model contents with a snapshot.
// The counter never moves backwards: restoring an older snapshot keeps ids minted
// after it unique.
func (m *Model) Restore(s Snapshot) {
	c := s.Clone()
	m.nodes = c.Nodes
	m.edges = c.Edges
	if c.NodeCounter > m.counter {
		m.counter = c.NodeCounter
	}
	m.reindex()
}
