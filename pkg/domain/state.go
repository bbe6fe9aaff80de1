package domain

import (
	"maps"
	"slices"
	"time"
)

// ExecutionStatus defines the current mode of an execution session.
type ExecutionStatus string

const (
	StatusIdle      ExecutionStatus = "idle"      // Created, not started
	StatusRunning   ExecutionStatus = "running"   // Waiting for the next answer
	StatusPaused    ExecutionStatus = "paused"    // Suspended by the operator
	StatusCompleted ExecutionStatus = "completed" // Sink state reached
	StatusFailed    ExecutionStatus = "failed"    // Unrecoverable structural problem
)

// Terminal reports whether no further transition is possible without a reset.
func (s ExecutionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AuditEntry is one line of the session report.
type AuditEntry struct {
	NodeID    string    `json:"nodeId"`
	Answer    Answer    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionState is the runtime snapshot of a guided session.
type ExecutionState struct {
	Status        ExecutionStatus   `json:"status"`
	CurrentNodeID string            `json:"currentNodeId,omitempty"`
	Visited       []string          `json:"visited"`
	Answers       map[string]Answer `json:"answers"`
	Trail         []AuditEntry      `json:"trail"`
	StartedAt     *time.Time        `json:"startedAt,omitempty"`
	EndedAt       *time.Time        `json:"endedAt,omitempty"`

	// Failure explains a failed status.
	Failure string `json:"failure,omitempty"`
}

// NewExecutionState creates a clean idle state.
func NewExecutionState() *ExecutionState {
	return &ExecutionState{
		Status:  StatusIdle,
		Visited: []string{},
		Answers: make(map[string]Answer),
		Trail:   []AuditEntry{},
	}
}

// Clone returns a deep copy of the state.
func (s *ExecutionState) Clone() *ExecutionState {
	if s == nil {
		return nil
	}
	out := *s
	out.Visited = slices.Clone(s.Visited)
	out.Trail = slices.Clone(s.Trail)
	out.Answers = maps.Clone(s.Answers)
	if out.Answers == nil {
		out.Answers = make(map[string]Answer)
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	return &out
}

// Session binds an execution state to the workflow it runs.
type Session struct {
	ID       string          `json:"id"`
	Workflow DocumentKey     `json:"workflow"`
	State    *ExecutionState `json:"state"`

	// Sealed carries the encrypted session when an encrypting store sits in front of the backend.
	// Only Status is kept readable in State while sealed.
	Sealed string `json:"sealed,omitempty"`
}
