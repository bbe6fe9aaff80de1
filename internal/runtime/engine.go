// Package runtime walks a workflow graph one answer at a time.
//
// The Engine owns its ExecutionState and only reads the graph, so several engines may
// share one graph. An Engine itself is not safe for concurrent use; pkg/session
// serialises access per session.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/graph"
	"github.com/aretw0/triage/pkg/validator"
)

// Engine is the core state machine runner.
type Engine struct {
	graph  graph.Graph
	state  *domain.ExecutionState
	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observers for node, answer and status events.
// Calling it more than once chains the hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an idle engine over g.
func NewEngine(g graph.Graph, opts ...Option) *Engine {
	e := &Engine{
		graph:  g,
		state:  domain.NewExecutionState(),
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the graph the engine walks.
func (e *Engine) Graph() graph.Graph { return e.graph }

// State returns a copy of the execution state.
func (e *Engine) State() *domain.ExecutionState { return e.state.Clone() }

func (e *Engine) Status() domain.ExecutionStatus { return e.state.Status }

// Trail returns a copy of the audit trail in submission order.
func (e *Engine) Trail() []domain.AuditEntry { return e.State().Trail }

// CurrentNode returns the node awaiting an answer, if any.
func (e *Engine) CurrentNode() (domain.Node, bool) {
	if e.state.CurrentNodeID == "" {
		return domain.Node{}, false
	}
	return e.graph.Node(e.state.CurrentNodeID)
}

// Start enters the entry node. It requires an idle engine.
// Without an entry node the engine moves to failed and returns domain.ErrNoStartNode.
func (e *Engine) Start(ctx context.Context) error {
	if e.state.Status != domain.StatusIdle {
		return &domain.InvalidStateError{Op: "start", Status: e.state.Status}
	}

	startID, err := validator.FindStart(e.graph)
	if err != nil {
		e.fail(ctx, err)
		return err
	}

	now := e.now()
	e.state.StartedAt = &now
	e.setStatus(ctx, domain.StatusRunning)
	e.logger.Debug("execution started", "node", startID)
	return e.enter(ctx, "", startID)
}

// SubmitAnswer records the answer for the current node and advances.
// An answer that matches none of the node options returns domain.ErrInvalidAnswer
// and leaves the state untouched.
func (e *Engine) SubmitAnswer(ctx context.Context, answer domain.Answer) error {
	if e.state.Status != domain.StatusRunning || e.state.CurrentNodeID == "" {
		return &domain.InvalidStateError{Op: "submit answer", Status: e.state.Status}
	}

	node, ok := e.graph.Node(e.state.CurrentNodeID)
	if !ok {
		err := &domain.DanglingReferenceError{From: lastVisited(e.state), To: e.state.CurrentNodeID}
		e.fail(ctx, err)
		return err
	}

	step, err := resolveAnswer(node, answer, e.hasDefaultEdge(node.ID))
	if err != nil {
		return err
	}

	e.record(ctx, node.ID, answer)
	e.emitNodeLeave(ctx, node)

	next, found := e.resolveNext(node, step)
	if !found {
		e.complete(ctx)
		return nil
	}
	return e.enter(ctx, node.ID, next)
}

// Pause suspends a running execution.
func (e *Engine) Pause(ctx context.Context) error {
	if e.state.Status != domain.StatusRunning {
		return &domain.InvalidStateError{Op: "pause", Status: e.state.Status}
	}
	e.setStatus(ctx, domain.StatusPaused)
	return nil
}

// Resume continues a paused execution.
func (e *Engine) Resume(ctx context.Context) error {
	if e.state.Status != domain.StatusPaused {
		return &domain.InvalidStateError{Op: "resume", Status: e.state.Status}
	}
	e.setStatus(ctx, domain.StatusRunning)
	return nil
}

// Toggle flips between running and paused.
func (e *Engine) Toggle(ctx context.Context) error {
	if e.state.Status == domain.StatusPaused {
		return e.Resume(ctx)
	}
	if e.state.Status == domain.StatusRunning {
		return e.Pause(ctx)
	}
	return &domain.InvalidStateError{Op: "toggle", Status: e.state.Status}
}

// Reset discards progress and returns to idle. The graph is left as is.
func (e *Engine) Reset(ctx context.Context) {
	from := e.state.Status
	e.state = domain.NewExecutionState()
	if from != domain.StatusIdle {
		e.emitStatusChange(ctx, from, domain.StatusIdle)
	}
}

// Restore replaces the execution state, typically with one loaded from a session store.
func (e *Engine) Restore(state *domain.ExecutionState) error {
	if state == nil {
		return fmt.Errorf("restore: nil state")
	}
	s := state.Clone()
	if !s.Status.Terminal() && s.Status != domain.StatusIdle {
		if _, ok := e.graph.Node(s.CurrentNodeID); !ok {
			return fmt.Errorf("restore: %w", &domain.DanglingReferenceError{From: lastVisited(s), To: s.CurrentNodeID})
		}
	}
	e.state = s
	return nil
}

func (e *Engine) enter(ctx context.Context, from, id string) error {
	node, ok := e.graph.Node(id)
	if !ok {
		err := &domain.DanglingReferenceError{From: from, To: id}
		e.fail(ctx, err)
		return err
	}
	e.state.CurrentNodeID = id
	e.state.Visited = append(e.state.Visited, id)
	e.emitNodeEnter(ctx, node)
	return nil
}

func (e *Engine) record(ctx context.Context, nodeID string, answer domain.Answer) {
	ts := e.now()
	e.state.Answers[nodeID] = answer
	e.state.Trail = append(e.state.Trail, domain.AuditEntry{NodeID: nodeID, Answer: answer, Timestamp: ts})
	e.logger.Debug("answer recorded", "node", nodeID, "answer", answer.String())
	if e.hooks.OnAnswer != nil {
		e.hooks.OnAnswer(ctx, &domain.AnswerEvent{
			EventBase: domain.EventBase{Timestamp: ts, Type: domain.EventAnswer},
			NodeID:    nodeID,
			Answer:    answer,
		})
	}
}

func (e *Engine) complete(ctx context.Context) {
	now := e.now()
	e.state.EndedAt = &now
	e.logger.Debug("execution completed", "node", e.state.CurrentNodeID, "steps", len(e.state.Trail))
	e.setStatus(ctx, domain.StatusCompleted)
}

func (e *Engine) fail(ctx context.Context, err error) {
	now := e.now()
	e.state.EndedAt = &now
	e.state.Failure = err.Error()
	e.logger.Warn("execution failed", "node", e.state.CurrentNodeID, "error", err)
	e.setStatus(ctx, domain.StatusFailed)
}

func (e *Engine) setStatus(ctx context.Context, to domain.ExecutionStatus) {
	from := e.state.Status
	e.state.Status = to
	if from != to {
		e.emitStatusChange(ctx, from, to)
	}
}

func (e *Engine) emitNodeEnter(ctx context.Context, n domain.Node) {
	if e.hooks.OnNodeEnter != nil {
		e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
			EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventNodeEnter},
			NodeID:    n.ID,
			Kind:      n.Kind,
		})
	}
}

func (e *Engine) emitNodeLeave(ctx context.Context, n domain.Node) {
	if e.hooks.OnNodeLeave != nil {
		e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
			EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventNodeLeave},
			NodeID:    n.ID,
			Kind:      n.Kind,
		})
	}
}

func (e *Engine) emitStatusChange(ctx context.Context, from, to domain.ExecutionStatus) {
	if e.hooks.OnStatusChange != nil {
		e.hooks.OnStatusChange(ctx, &domain.StatusEvent{
			EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventStatusChange},
			From:      from,
			To:        to,
		})
	}
}

func lastVisited(s *domain.ExecutionState) string {
	if len(s.Visited) == 0 {
		return ""
	}
	return s.Visited[len(s.Visited)-1]
}
