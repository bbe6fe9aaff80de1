package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/internal/runtime"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/graph"
	"github.com/aretw0/triage/pkg/ports"
	"github.com/aretw0/triage/pkg/validator"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// Compiled is a workflow loaded into a graph together with its validation report.
type Compiled struct {
	Document *domain.Document
	Model    *graph.Model
	Report   *validator.Report
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	sessions  ports.SessionStore
	documents ports.DocumentStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration

	graphs   *gocache.Cache
	graphTTL time.Duration

	hooks  domain.LifecycleHooks
	logger *slog.Logger
	newID  func() string
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(m *Manager) {
		m.locker = locker
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager and the engines it drives.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithLifecycleHooks attaches hooks to every engine the manager runs.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = m.hooks.Merge(hooks)
	}
}

// WithGraphCacheTTL sets how long a compiled workflow is reused. Zero disables expiry.
func WithGraphCacheTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.graphTTL = ttl
	}
}

// WithIDGenerator replaces the uuid session id generator.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}

// NewManager creates a Session Manager over the given stores.
func NewManager(sessions ports.SessionStore, documents ports.DocumentStore, opts ...Option) *Manager {
	m := &Manager{
		sessions:  sessions,
		documents: documents,
		locks:     make(map[string]*lockEntry),
		lockTTL:   30 * time.Second,
		graphTTL:  5 * time.Minute,
		logger:    logging.NewNop(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	exp := m.graphTTL
	if exp == 0 {
		exp = gocache.NoExpiration
	}
	m.graphs = gocache.New(exp, 10*time.Minute)
	return m
}

// Compile loads a workflow and validates it, reusing a cached result when available.
func (m *Manager) Compile(ctx context.Context, key domain.DocumentKey) (*Compiled, error) {
	if c, ok := m.graphs.Get(key.String()); ok {
		return c.(*Compiled), nil
	}

	doc, err := m.documents.Load(ctx, key.Name, key.Folder)
	if err != nil {
		return nil, fmt.Errorf("load workflow %s: %w", key, err)
	}
	if doc == nil {
		return nil, &domain.NotFoundError{Kind: "workflow", ID: key.String()}
	}
	model, err := graph.FromDocument(doc)
	if err != nil {
		return nil, err
	}

	c := &Compiled{Document: doc, Model: model, Report: validator.Validate(model)}
	m.graphs.Set(key.String(), c, gocache.DefaultExpiration)
	m.logger.Debug("workflow compiled", "workflow", key.String(), "nodes", model.Len(), "executable", c.Report.Executable())
	return c, nil
}

// Invalidate drops the cached graph of a workflow, typically after it was saved or deleted.
func (m *Manager) Invalidate(key domain.DocumentKey) {
	m.graphs.Delete(key.String())
}

// Start creates a session for the workflow and enters its entry node.
// Workflows with error findings are refused with domain.ErrNotExecutable.
func (m *Manager) Start(ctx context.Context, key domain.DocumentKey) (*domain.Session, error) {
	c, err := m.Compile(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := c.Report.Err(); err != nil {
		return nil, err
	}

	s := &domain.Session{ID: m.newID(), Workflow: key}
	err = m.WithLock(ctx, s.ID, func(ctx context.Context) error {
		e := m.engine(c.Model)
		startErr := e.Start(ctx)
		s.State = e.State()
		if err := m.sessions.Save(ctx, s); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return startErr
	})
	if err != nil {
		return s, err
	}
	m.logger.Info("session started", "session_id", s.ID, "workflow", key.String())
	return s, nil
}

// Get loads a session.
func (m *Manager) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	var s *domain.Session
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		s, err = m.sessions.Load(ctx, sessionID)
		return err
	})
	return s, err
}

// Answer submits an answer and returns the updated session with the change set.
func (m *Manager) Answer(ctx context.Context, sessionID string, answer domain.Answer) (*domain.Session, *domain.StateDiff, error) {
	return m.apply(ctx, sessionID, func(ctx context.Context, e *runtime.Engine) error {
		return e.SubmitAnswer(ctx, answer)
	})
}

// Pause suspends a session.
func (m *Manager) Pause(ctx context.Context, sessionID string) (*domain.Session, error) {
	s, _, err := m.apply(ctx, sessionID, func(ctx context.Context, e *runtime.Engine) error {
		return e.Pause(ctx)
	})
	return s, err
}

// Resume continues a paused session.
func (m *Manager) Resume(ctx context.Context, sessionID string) (*domain.Session, error) {
	s, _, err := m.apply(ctx, sessionID, func(ctx context.Context, e *runtime.Engine) error {
		return e.Resume(ctx)
	})
	return s, err
}

// Reset discards the progress of a session and starts it over.
func (m *Manager) Reset(ctx context.Context, sessionID string) (*domain.Session, error) {
	s, _, err := m.apply(ctx, sessionID, func(ctx context.Context, e *runtime.Engine) error {
		e.Reset(ctx)
		return e.Start(ctx)
	})
	return s, err
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.sessions.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.sessions.List(ctx)
}

// apply runs op against a restored engine and persists the outcome.
// Rejected operations (invalid answers or wrong status) leave the stored session alone;
// structural failures are persisted so the failed status is visible.
func (m *Manager) apply(ctx context.Context, sessionID string, op func(context.Context, *runtime.Engine) error) (*domain.Session, *domain.StateDiff, error) {
	var (
		out  *domain.Session
		diff *domain.StateDiff
	)
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		s, err := m.sessions.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		c, err := m.Compile(ctx, s.Workflow)
		if err != nil {
			return err
		}

		e := m.engine(c.Model)
		if err := e.Restore(s.State); err != nil {
			return err
		}

		opErr := op(ctx, e)
		if rejected(opErr) {
			out = s
			return opErr
		}

		next := &domain.Session{ID: s.ID, Workflow: s.Workflow, State: e.State()}
		if err := m.sessions.Save(ctx, next); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		out = next
		diff = domain.Diff(s.ID, s.State, next.State)
		return opErr
	})
	return out, diff, err
}

func (m *Manager) engine(model *graph.Model) *runtime.Engine {
	return runtime.NewEngine(model,
		runtime.WithLogger(m.logger),
		runtime.WithLifecycleHooks(m.hooks),
	)
}

func rejected(err error) bool {
	var ise *domain.InvalidStateError
	return errors.Is(err, domain.ErrInvalidAnswer) || errors.As(err, &ise)
}
