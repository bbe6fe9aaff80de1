package domain

import "reflect"

// StateDiff represents the changes between two execution states.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"sessionId"`

	CurrentNodeID *string          `json:"currentNodeId,omitempty"`
	Status        *ExecutionStatus `json:"status,omitempty"`

	// Answers contains only changed or added entries. Removed entries (after a reset)
	// are present with a nil value.
	Answers map[string]*Answer `json:"answers,omitempty"`

	// Appended holds trail entries added since the old state.
	// Trails are append-only between resets; a shrunk trail is sent whole in Trail.
	Appended []AuditEntry `json:"appended,omitempty"`
	Trail    []AuditEntry `json:"trail,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
// It returns nil when nothing changed.
func Diff(sessionID string, oldState, newState *ExecutionState) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{SessionID: sessionID}

	if oldState == nil || oldState.CurrentNodeID != newState.CurrentNodeID {
		id := newState.CurrentNodeID
		diff.CurrentNodeID = &id
	}
	if oldState == nil || oldState.Status != newState.Status {
		status := newState.Status
		diff.Status = &status
	}

	diff.Answers = diffAnswers(oldState, newState)
	diffTrail(diff, oldState, newState)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffAnswers(old, new *ExecutionState) map[string]*Answer {
	delta := make(map[string]*Answer)

	for k, v := range new.Answers {
		if old != nil {
			if prev, ok := old.Answers[k]; ok && reflect.DeepEqual(prev, v) {
				continue
			}
		}
		a := v
		delta[k] = &a
	}
	if old != nil {
		for k := range old.Answers {
			if _, ok := new.Answers[k]; !ok {
				delta[k] = nil
			}
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

func diffTrail(diff *StateDiff, old, new *ExecutionState) {
	if old == nil {
		if len(new.Trail) > 0 {
			diff.Appended = new.Trail
		}
		return
	}
	oldLen, newLen := len(old.Trail), len(new.Trail)
	switch {
	case newLen > oldLen:
		diff.Appended = new.Trail[oldLen:]
	case newLen < oldLen:
		diff.Trail = new.Trail
		if diff.Trail == nil {
			diff.Trail = []AuditEntry{}
		}
	}
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.CurrentNodeID == nil &&
		d.Status == nil &&
		len(d.Answers) == 0 &&
		len(d.Appended) == 0 &&
		d.Trail == nil
}
