package triage

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/triage/internal/logging"
	presentation "github.com/aretw0/triage/internal/presentation/graph"
	"github.com/aretw0/triage/internal/runtime"
	"github.com/aretw0/triage/pkg/codec"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/graph"
	"github.com/aretw0/triage/pkg/validator"
)

//go:embed VERSION
var version string

// Version is the release of the library and the CLI.
var Version = strings.TrimSpace(version)

// Engine is the high-level entry point for running a single procedure in process.
// It wraps the internal runtime together with the loaded document and its validation report.
type Engine struct {
	runtime *runtime.Engine
	doc     *domain.Document
	model   *graph.Model
	report  *validator.Report
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
	lenient bool
	Name    string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLenientValidation lets New accept graphs with error findings.
// The run still fails at Start when no entry point exists.
func WithLenientValidation() Option {
	return func(e *Engine) {
		e.lenient = true
	}
}

// New builds an engine for doc. Documents with error findings are refused with an
// error wrapping domain.ErrNotExecutable unless WithLenientValidation is set.
func New(doc *domain.Document, opts ...Option) (*Engine, error) {
	eng := &Engine{logger: logging.NewNop(), Name: doc.Metadata.Name}
	for _, opt := range opts {
		opt(eng)
	}

	model, err := graph.FromDocument(doc)
	if err != nil {
		return nil, err
	}
	eng.doc = doc.Clone()
	eng.model = model
	eng.report = validator.Validate(model)

	if err := eng.report.Err(); err != nil && !eng.lenient {
		return nil, err
	}
	for _, f := range eng.report.Warnings() {
		eng.logger.Warn("workflow warning", "code", f.Code, "node", f.NodeID, "msg", f.Message)
	}

	if eng.Name != "" {
		eng.logger = eng.logger.With("workflow", eng.Name)
	}
	eng.runtime = runtime.NewEngine(model,
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
	)
	return eng, nil
}

// Load reads a JSON or YAML document from path and builds an engine for it.
func Load(path string, opts ...Option) (*Engine, error) {
	format, err := codec.FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow: %w", err)
	}
	doc, err := codec.Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if doc.Metadata.Name == "" {
		doc.Metadata.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return New(doc, opts...)
}

// Start enters the entry node.
func (e *Engine) Start(ctx context.Context) error { return e.runtime.Start(ctx) }

// Answer submits the operator answer for the current step.
func (e *Engine) Answer(ctx context.Context, a domain.Answer) error {
	return e.runtime.SubmitAnswer(ctx, a)
}

// Pause suspends the run.
func (e *Engine) Pause(ctx context.Context) error { return e.runtime.Pause(ctx) }

// Resume continues a paused run.
func (e *Engine) Resume(ctx context.Context) error { return e.runtime.Resume(ctx) }

// Toggle switches between running and paused.
func (e *Engine) Toggle(ctx context.Context) error { return e.runtime.Toggle(ctx) }

// Reset discards all progress and returns to idle.
func (e *Engine) Reset(ctx context.Context) { e.runtime.Reset(ctx) }

// Restore continues from a previously saved state.
func (e *Engine) Restore(s *domain.ExecutionState) error { return e.runtime.Restore(s) }

// State returns a copy of the execution state.
func (e *Engine) State() *domain.ExecutionState { return e.runtime.State() }

// Status returns the execution status.
func (e *Engine) Status() domain.ExecutionStatus { return e.runtime.Status() }

// Current returns the node awaiting an answer.
func (e *Engine) Current() (domain.Node, bool) { return e.runtime.CurrentNode() }

// Trail returns the audit trail.
func (e *Engine) Trail() []domain.AuditEntry { return e.runtime.Trail() }

// Report returns the validation report computed when the engine was built.
func (e *Engine) Report() *validator.Report { return e.report }

// Graph exposes the read-only graph.
func (e *Engine) Graph() graph.Graph { return e.model }

// Document returns a copy of the loaded document.
func (e *Engine) Document() *domain.Document { return e.doc.Clone() }

// Mermaid renders the graph with the visited and current nodes highlighted.
func (e *Engine) Mermaid() string {
	return presentation.GenerateMermaid(e.model.Nodes(), e.model.Edges(), presentation.OverlayFromState(e.runtime.State()))
}
