package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/internal/presentation/tui"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/session"
)

// RunOptions configures an interactive run.
type RunOptions struct {
	Workflow domain.DocumentKey
	// SessionID resumes a stored session instead of starting a new one.
	SessionID string
	// JSON prints the finished session as JSON instead of a rendered report.
	JSON bool

	In  io.Reader
	Out io.Writer
	// Render turns markdown into terminal output. Nil prints markdown as is.
	Render func(string) (string, error)
	Logger *slog.Logger
}

const help = `Commands:
  :pause   save the session and leave (resume later with --session)
  :reset   start over
  :trail   show the answers so far
  :help    show this help
`

// Run walks a session step by step, reading answers from opts.In.
// Reaching the end of the input pauses the session so it can be resumed.
func Run(ctx context.Context, mgr *session.Manager, opts RunOptions) (*domain.Session, error) {
	if opts.Render == nil {
		opts.Render = func(s string) (string, error) { return s, nil }
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	r := &runner{mgr: mgr, opts: opts, in: bufio.NewScanner(opts.In)}

	s, err := r.open(ctx)
	if err != nil {
		return s, err
	}

	for !s.State.Status.Terminal() {
		if err := ctx.Err(); err != nil {
			return r.pause(ctx, s)
		}
		node, err := r.current(ctx, s)
		if err != nil {
			return s, err
		}
		r.print(tui.StepMarkdown(node))
		fmt.Fprintf(opts.Out, "%s\n> ", tui.Prompt(node))

		if !r.in.Scan() {
			fmt.Fprintln(opts.Out)
			return r.pause(ctx, s)
		}
		line := strings.TrimSpace(r.in.Text())

		switch line {
		case ":pause", ":quit", ":q":
			return r.pause(ctx, s)
		case ":reset":
			if s, err = mgr.Reset(ctx, s.ID); err != nil {
				return s, err
			}
			continue
		case ":trail":
			if err := r.trail(ctx, s); err != nil {
				return s, err
			}
			continue
		case ":help":
			fmt.Fprint(opts.Out, help)
			continue
		}

		next, _, err := mgr.Answer(ctx, s.ID, tui.ParseInput(node, line))
		switch {
		case errors.Is(err, domain.ErrInvalidAnswer):
			fmt.Fprintf(opts.Out, "Not a valid answer here: %v\n\n", err)
			continue
		case err != nil && next == nil:
			return s, err
		}
		s = next
		if err != nil {
			return s, err
		}
	}

	if s.State.Status == domain.StatusFailed {
		return s, fmt.Errorf("session %s failed: %s", s.ID, s.State.Failure)
	}
	return s, r.finish(ctx, s)
}

type runner struct {
	mgr  *session.Manager
	opts RunOptions
	in   *bufio.Scanner
}

func (r *runner) open(ctx context.Context) (*domain.Session, error) {
	if r.opts.SessionID == "" {
		s, err := r.mgr.Start(ctx, r.opts.Workflow)
		if err != nil {
			return s, err
		}
		r.opts.Logger.Info("session started", "session_id", s.ID, "workflow", s.Workflow.String())
		return s, nil
	}

	s, err := r.mgr.Get(ctx, r.opts.SessionID)
	if err != nil {
		return nil, err
	}
	if s.State.Status == domain.StatusPaused {
		if s, err = r.mgr.Resume(ctx, s.ID); err != nil {
			return s, err
		}
	}
	r.opts.Logger.Info("session resumed", "session_id", s.ID, "node_id", s.State.CurrentNodeID)
	return s, nil
}

func (r *runner) current(ctx context.Context, s *domain.Session) (domain.Node, error) {
	c, err := r.mgr.Compile(ctx, s.Workflow)
	if err != nil {
		return domain.Node{}, err
	}
	n, ok := c.Model.Node(s.State.CurrentNodeID)
	if !ok {
		return domain.Node{}, &domain.NotFoundError{Kind: "node", ID: s.State.CurrentNodeID}
	}
	return n, nil
}

func (r *runner) pause(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	if s.State.Status != domain.StatusRunning {
		return s, nil
	}
	// The caller's context may already be cancelled by a signal.
	paused, err := r.mgr.Pause(context.WithoutCancel(ctx), s.ID)
	if err != nil {
		return s, err
	}
	fmt.Fprintf(r.opts.Out, "Session %s paused. Resume with --session %s\n", paused.ID, paused.ID)
	return paused, nil
}

func (r *runner) trail(ctx context.Context, s *domain.Session) error {
	c, err := r.mgr.Compile(ctx, s.Workflow)
	if err != nil {
		return err
	}
	r.print(tui.TrailMarkdown(c.Model, s.State.Trail))
	return nil
}

func (r *runner) finish(ctx context.Context, s *domain.Session) error {
	if r.opts.JSON {
		enc := json.NewEncoder(r.opts.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	r.print("# Procedure complete\n")
	return r.trail(ctx, s)
}

func (r *runner) print(markdown string) {
	out, err := r.opts.Render(markdown)
	if err != nil {
		out = markdown
	}
	fmt.Fprint(r.opts.Out, out)
}
