package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/internal/presentation/graph"
	"github.com/aretw0/triage/internal/presentation/tui"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/editor"
	tgraph "github.com/aretw0/triage/pkg/graph"
	"github.com/aretw0/triage/pkg/ports"
	"github.com/aretw0/triage/pkg/session"
	"github.com/aretw0/triage/pkg/validator"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SessionView is what agents see after every session tool call.
type SessionView struct {
	Session *domain.Session   `json:"session" jsonschema_description:"The session with its execution state"`
	Step    string            `json:"step,omitempty" jsonschema_description:"Markdown description of the current step"`
	Prompt  string            `json:"prompt,omitempty" jsonschema_description:"What kind of answer the current step expects"`
	Diff    *domain.StateDiff `json:"diff,omitempty" jsonschema_description:"Changes caused by the call"`
}

// Server exposes workflows and guided sessions as MCP tools.
type Server struct {
	sessions  *session.Manager
	documents ports.DocumentStore
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions *session.Manager, documents ports.DocumentStore, version string, opts ...Option) *Server {
	s := &Server{
		sessions:  sessions,
		documents: documents,
		mcpServer: server.NewMCPServer("triage-mcp", version),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP protocol over SSE until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

type workflowArgs struct {
	Name   string `json:"name"`
	Folder string `json:"folder,omitempty"`
}

func (a workflowArgs) key() domain.DocumentKey {
	return domain.DocumentKey{Name: a.Name, Folder: a.Folder}
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

type answerArgs struct {
	SessionID string `json:"session_id"`
	Input     string `json:"input"`
}

type updateNodeArgs struct {
	Name   string         `json:"name"`
	Folder string         `json:"folder,omitempty"`
	NodeID string         `json:"node_id"`
	Fields map[string]any `json:"fields"`
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_workflows",
		mcp.WithDescription("List the stored diagnostic workflows of a folder."),
		mcp.WithString("folder", mcp.Description("Folder to list (optional)")),
	), s.handleListWorkflows)

	s.mcpServer.AddTool(mcp.NewTool("validate_workflow",
		mcp.WithDescription("Run the structural checks on a stored workflow and report errors and warnings."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Workflow name")),
		mcp.WithString("folder", mcp.Description("Workflow folder")),
		mcp.WithOutputSchema[validator.Report](),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("workflow_graph",
		mcp.WithDescription("Render a stored workflow as a Mermaid flowchart."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Workflow name")),
		mcp.WithString("folder", mcp.Description("Workflow folder")),
	), s.handleGraph)

	s.mcpServer.AddTool(mcp.NewTool("update_node",
		mcp.WithDescription("Patch the fields of one node of a stored workflow (title, content, options, warning, outcome...)."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Workflow name")),
		mcp.WithString("folder", mcp.Description("Workflow folder")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node to update")),
		mcp.WithObject("fields", mcp.Required(), mcp.Description("Fields to change, using the document field names")),
		mcp.WithOutputSchema[validator.Report](),
	), mcp.NewStructuredToolHandler(s.handleUpdateNode))

	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a guided troubleshooting session on a workflow."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Workflow name")),
		mcp.WithString("folder", mcp.Description("Workflow folder")),
		mcp.WithOutputSchema[SessionView](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("submit_answer",
		mcp.WithDescription("Answer the current step of a session. Empty input continues, yes/no confirms, anything else picks an option id."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("input", mcp.Description("Operator answer")),
		mcp.WithOutputSchema[SessionView](),
	), mcp.NewStructuredToolHandler(s.handleAnswer))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get a session with its current step and audit trail."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithOutputSchema[SessionView](),
	), mcp.NewStructuredToolHandler(s.handleGet))
}

func (s *Server) handleListWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.documents.List(ctx, request.GetString("folder", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	return marshalResult(list)
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}

func (s *Server) handleValidate(ctx context.Context, _ mcp.CallToolRequest, args workflowArgs) (*validator.Report, error) {
	c, err := s.sessions.Compile(ctx, args.key())
	if err != nil {
		return nil, err
	}
	return c.Report, nil
}

func (s *Server) handleGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.sessions.Compile(ctx, domain.DocumentKey{Name: name, Folder: request.GetString("folder", "")})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(graph.GenerateMermaid(c.Model.Nodes(), c.Model.Edges(), nil)), nil
}

func (s *Server) handleUpdateNode(ctx context.Context, _ mcp.CallToolRequest, args updateNodeArgs) (*validator.Report, error) {
	key := domain.DocumentKey{Name: args.Name, Folder: args.Folder}
	doc, err := s.documents.Load(ctx, key.Name, key.Folder)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &domain.NotFoundError{Kind: "workflow", ID: key.String()}
	}

	patch, err := tgraph.PatchFromMap(args.Fields)
	if err != nil {
		return nil, err
	}
	ed, err := editor.New(doc, editor.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	if _, err := ed.UpdateNode(args.NodeID, patch); err != nil {
		return nil, err
	}
	if _, err := s.documents.Save(ctx, ed.Document()); err != nil {
		return nil, err
	}
	s.sessions.Invalidate(key)
	return ed.Validate(), nil
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args workflowArgs) (SessionView, error) {
	sess, err := s.sessions.Start(ctx, args.key())
	if err != nil {
		return SessionView{}, err
	}
	return s.view(ctx, sess, nil)
}

func (s *Server) handleAnswer(ctx context.Context, _ mcp.CallToolRequest, args answerArgs) (SessionView, error) {
	sess, diff, err := s.sessions.Answer(ctx, args.SessionID, domain.ParseAnswer(args.Input))
	if err != nil {
		s.logger.Debug("MCP answer rejected", "session_id", args.SessionID, "err", err)
		return SessionView{}, err
	}
	return s.view(ctx, sess, diff)
}

func (s *Server) handleGet(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (SessionView, error) {
	sess, err := s.sessions.Get(ctx, args.SessionID)
	if err != nil {
		return SessionView{}, err
	}
	return s.view(ctx, sess, nil)
}

// view attaches the rendered current step to a session.
func (s *Server) view(ctx context.Context, sess *domain.Session, diff *domain.StateDiff) (SessionView, error) {
	v := SessionView{Session: sess, Diff: diff}
	if sess.State.Status.Terminal() {
		return v, nil
	}
	c, err := s.sessions.Compile(ctx, sess.Workflow)
	if err != nil {
		return SessionView{}, err
	}
	if n, ok := c.Model.Node(sess.State.CurrentNodeID); ok {
		v.Step = tui.StepMarkdown(n)
		v.Prompt = tui.Prompt(n)
	}
	return v, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("triage://workflows", "Stored workflows",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		list, err := s.documents.List(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list workflows: %w", err)
		}
		data, err := json.Marshal(list)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "triage://workflows",
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
