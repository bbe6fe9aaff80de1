package domain

import (
	"errors"
	"fmt"
)

// ErrNoStartNode is returned when no node without incoming edges exists.
var ErrNoStartNode = errors.New("no start node")

// ErrInvalidAnswer is returned when an answer matches none of the options of a choice step.
var ErrInvalidAnswer = errors.New("invalid answer")

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrNotExecutable is returned when a document has error-severity validation findings.
var ErrNotExecutable = errors.New("workflow is not executable")

// NotFoundError reports a mutation of a missing node or edge.
type NotFoundError struct {
	Kind string // "node" or "edge"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// InvalidConnectionError reports a rejected Connect call.
type InvalidConnectionError struct {
	Source string
	Target string
	Branch Branch
	Reason string
}

func (e *InvalidConnectionError) Error() string {
	if e.Branch.IsDefault() {
		return fmt.Sprintf("invalid connection %s -> %s: %s", e.Source, e.Target, e.Reason)
	}
	return fmt.Sprintf("invalid connection %s -[%s]-> %s: %s", e.Source, e.Branch, e.Target, e.Reason)
}

// InvalidStateError reports an operation called from a status that does not allow it.
type InvalidStateError struct {
	Op     string
	Status ExecutionStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.Status)
}

// MalformedDocumentError reports a document that cannot be imported as-is.
type MalformedDocumentError struct {
	Reason string
	Err    error
}

func (e *MalformedDocumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed document: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed document: %s", e.Reason)
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

// DanglingReferenceError reports a transition to a node that does not exist,
// discovered while traversing.
type DanglingReferenceError struct {
	From string
	To   string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("node %q references missing node %q", e.From, e.To)
}
