package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter    EventType = "node_enter"
	EventNodeLeave    EventType = "node_leave"
	EventAnswer       EventType = "answer"
	EventStatusChange EventType = "status_change"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID string   `json:"node_id"`
	Kind   NodeKind `json:"kind"`
}

// AnswerEvent represents an answer recorded at a node.
type AnswerEvent struct {
	EventBase
	NodeID string `json:"node_id"`
	Answer Answer `json:"answer"`
}

// StatusEvent represents a transition of the execution status.
type StatusEvent struct {
	EventBase
	From ExecutionStatus `json:"from"`
	To   ExecutionStatus `json:"to"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter    func(context.Context, *NodeEvent)
	OnNodeLeave    func(context.Context, *NodeEvent)
	OnAnswer       func(context.Context, *AnswerEvent)
	OnStatusChange func(context.Context, *StatusEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter:    chain(h.OnNodeEnter, other.OnNodeEnter),
		OnNodeLeave:    chain(h.OnNodeLeave, other.OnNodeLeave),
		OnAnswer:       chain(h.OnAnswer, other.OnAnswer),
		OnStatusChange: chain(h.OnStatusChange, other.OnStatusChange),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
