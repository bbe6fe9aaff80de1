package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/codec"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/observability"
	"github.com/aretw0/triage/pkg/ports"
	"github.com/aretw0/triage/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBody caps request bodies; workflow documents are the largest payload.
const maxBody = 4 << 20

// Server exposes workflows and guided sessions over HTTP.
type Server struct {
	Sessions  *session.Manager
	Documents ports.DocumentStore
	Streams   *StreamManager

	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics exposes gatherer on /metrics and records validation findings into m.
func WithMetrics(m *observability.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// NewServer creates a Server. Diffs produced by answers are broadcast on Streams.
func NewServer(sessions *session.Manager, documents ports.DocumentStore, opts ...Option) *Server {
	s := &Server{
		Sessions:  sessions,
		Documents: documents,
		gatherer:  prometheus.DefaultGatherer,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)
	return s
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/workflows", func(r chi.Router) {
		r.Get("/", s.listWorkflows)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.getWorkflow)
			r.Put("/", s.putWorkflow)
			r.Delete("/", s.deleteWorkflow)
			r.Post("/validate", s.validateWorkflow)
			r.Get("/graph", s.workflowGraph)

			r.Post("/nodes", s.addNode)
			r.Patch("/nodes/{id}", s.updateNode)
			r.Delete("/nodes/{id}", s.removeNode)
			r.Post("/nodes/duplicate", s.duplicateNodes)
			r.Post("/edges", s.connect)
			r.Delete("/edges/{id}", s.disconnect)
		})
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.startSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/answers", s.answer)
			r.Post("/pause", s.pause)
			r.Post("/resume", s.resume)
			r.Post("/reset", s.reset)
			r.Get("/trail", s.trail)
			r.Get("/graph", s.sessionGraph)
			r.Get("/events", s.subscribe)
		})
	})

	return r
}

// NewHandler is a shorthand for NewServer(...).Handler().
func NewHandler(sessions *session.Manager, documents ports.DocumentStore, opts ...Option) http.Handler {
	return NewServer(sessions, documents, opts...).Handler()
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// -- Helpers --

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	var (
		nf  *domain.NotFoundError
		ise *domain.InvalidStateError
		ice *domain.InvalidConnectionError
		mde *domain.MalformedDocumentError
		dre *domain.DanglingReferenceError
	)
	switch {
	case errors.As(err, &nf), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidAnswer):
		return http.StatusUnprocessableEntity, "invalid_answer"
	case errors.Is(err, domain.ErrNotExecutable), errors.Is(err, domain.ErrNoStartNode):
		return http.StatusUnprocessableEntity, "not_executable"
	case errors.As(err, &ise):
		return http.StatusConflict, "invalid_state"
	case errors.As(err, &ice):
		return http.StatusBadRequest, "invalid_connection"
	case errors.As(err, &mde), errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.As(err, &dre):
		return http.StatusConflict, "dangling_reference"
	}
	return http.StatusInternalServerError, "internal"
}

var errBadRequest = errors.New("bad request")

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	s.writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func badRequest(err error) error {
	return errors.Join(errBadRequest, err)
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return nil, badRequest(err)
	}
	return data, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest(err)
	}
	return nil
}

// formatOf picks the document encoding from ?format=, then the given header.
func formatOf(r *http.Request, header string) codec.Format {
	if f, err := codec.ParseFormat(r.URL.Query().Get("format")); err == nil {
		return f
	}
	if strings.Contains(r.Header.Get(header), "yaml") {
		return codec.FormatYAML
	}
	return codec.FormatJSON
}
