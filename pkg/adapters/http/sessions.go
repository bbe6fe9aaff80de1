package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aretw0/triage/internal/presentation/graph"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/go-chi/chi/v5"
)

type startRequest struct {
	Workflow string `json:"workflow"`
	Folder   string `json:"folder"`
}

// answerRequest carries either raw operator input or a structured answer.
type answerRequest struct {
	Input  *string        `json:"input,omitempty"`
	Answer *domain.Answer `json:"answer,omitempty"`
}

type answerResponse struct {
	Session *domain.Session   `json:"session"`
	Diff    *domain.StateDiff `json:"diff,omitempty"`
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Sessions.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ids)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Workflow == "" {
		s.writeError(w, r, badRequest(errors.New("workflow is required")))
		return
	}
	sess, err := s.Sessions.Start(r.Context(), domain.DocumentKey{Name: req.Workflow, Folder: req.Folder})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var answer domain.Answer
	switch {
	case req.Answer != nil:
		answer = *req.Answer
	case req.Input != nil:
		answer = domain.ParseAnswer(*req.Input)
	default:
		answer = domain.Acknowledge()
	}

	id := chi.URLParam(r, "id")
	sess, diff, err := s.Sessions.Answer(r.Context(), id, answer)
	s.broadcast(id, diff)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, answerResponse{Session: sess, Diff: diff})
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, s.Sessions.Pause)
}

func (s *Server) resume(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, s.Sessions.Resume)
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, s.Sessions.Reset)
}

func (s *Server) control(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*domain.Session, error)) {
	id := chi.URLParam(r, "id")
	before, err := s.Sessions.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := op(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.broadcast(id, domain.Diff(id, before.State, sess.State))
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) trail(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess.State.Trail)
}

func (s *Server) sessionGraph(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.Sessions.Compile(r.Context(), sess.Workflow)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(c.Model.Nodes(), c.Model.Edges(), graph.OverlayFromState(sess.State))))
}

func (s *Server) broadcast(sessionID string, diff *domain.StateDiff) {
	if diff == nil {
		return
	}
	data, err := json.Marshal(diff)
	if err != nil {
		s.logger.Error("diff encode failed", "session_id", sessionID, "err", err)
		return
	}
	s.Streams.Broadcast(sessionID, string(data))
}
