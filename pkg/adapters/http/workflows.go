package http

import (
	"context"
	"net/http"

	"github.com/aretw0/triage/internal/presentation/graph"
	"github.com/aretw0/triage/pkg/codec"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/editor"
	tgraph "github.com/aretw0/triage/pkg/graph"
	"github.com/aretw0/triage/pkg/validator"
	"github.com/go-chi/chi/v5"
)

// workflowResponse is returned by every write to a workflow.
type workflowResponse struct {
	Metadata domain.DocumentMetadata `json:"metadata"`
	Report   *validator.Report       `json:"report"`
	Result   any                     `json:"result,omitempty"`
}

func workflowKey(r *http.Request) domain.DocumentKey {
	return domain.DocumentKey{
		Name:   chi.URLParam(r, "name"),
		Folder: r.URL.Query().Get("folder"),
	}
}

func (s *Server) load(ctx context.Context, key domain.DocumentKey) (*domain.Document, error) {
	doc, err := s.Documents.Load(ctx, key.Name, key.Folder)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, &domain.NotFoundError{Kind: "workflow", ID: key.String()}
	}
	return doc, nil
}

func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	list, err := s.Documents.List(r.Context(), r.URL.Query().Get("folder"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) getWorkflow(w http.ResponseWriter, r *http.Request) {
	doc, err := s.load(r.Context(), workflowKey(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format := formatOf(r, "Accept")
	data, err := codec.Encode(doc, format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType(format))
	_, _ = w.Write(data)
}

func (s *Server) putWorkflow(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := codec.Decode(data, formatOf(r, "Content-Type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	key := workflowKey(r)
	doc.Metadata.Name, doc.Metadata.Folder = key.Name, key.Folder

	s.save(w, r, doc, nil)
}

func (s *Server) deleteWorkflow(w http.ResponseWriter, r *http.Request) {
	key := workflowKey(r)
	if err := s.Documents.Delete(r.Context(), key.Name, key.Folder); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Sessions.Invalidate(key)
	w.WriteHeader(http.StatusNoContent)
}

// validateWorkflow validates the request body when one is sent, otherwise the stored workflow.
func (s *Server) validateWorkflow(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var report *validator.Report
	if len(data) > 0 {
		model, _, err := codec.DecodeModel(data, formatOf(r, "Content-Type"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		report = validator.Validate(model)
	} else {
		c, err := s.Sessions.Compile(r.Context(), workflowKey(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		report = c.Report
	}

	if s.metrics != nil {
		s.metrics.ObserveReport(report)
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) workflowGraph(w http.ResponseWriter, r *http.Request) {
	c, err := s.Sessions.Compile(r.Context(), workflowKey(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(c.Model.Nodes(), c.Model.Edges(), nil)))
}

// save persists doc, drops the cached compilation and answers with the new report.
func (s *Server) save(w http.ResponseWriter, r *http.Request, doc *domain.Document, result any) {
	saved, err := s.Documents.Save(r.Context(), doc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Sessions.Invalidate(saved.Metadata.Key())

	model, err := tgraph.FromDocument(saved)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, workflowResponse{
		Metadata: saved.Metadata,
		Report:   validator.Validate(model),
		Result:   result,
	})
}

// edit opens the stored workflow in an editor, applies fn and saves the result.
func (s *Server) edit(w http.ResponseWriter, r *http.Request, fn func(*editor.Editor) (any, error)) {
	doc, err := s.load(r.Context(), workflowKey(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ed, err := editor.New(doc, editor.WithLogger(s.logger))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := fn(ed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.save(w, r, ed.Document(), result)
}

type addNodeRequest struct {
	Kind     domain.NodeKind `json:"kind"`
	Position domain.Position `json:"position"`
	Fields   map[string]any  `json:"fields"`
}

func (s *Server) addNode(w http.ResponseWriter, r *http.Request) {
	var req addNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.edit(w, r, func(ed *editor.Editor) (any, error) {
		patch, err := tgraph.PatchFromMap(req.Fields)
		if err != nil {
			return nil, badRequest(err)
		}
		n, err := ed.AddNode(req.Kind, req.Position, patch.Seed())
		if err != nil {
			return nil, badRequest(err)
		}
		return n, nil
	})
}

func (s *Server) updateNode(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := decodeJSON(r, &fields); err != nil {
		s.writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	s.edit(w, r, func(ed *editor.Editor) (any, error) {
		patch, err := tgraph.PatchFromMap(fields)
		if err != nil {
			return nil, badRequest(err)
		}
		n, err := ed.UpdateNode(id, patch)
		if err != nil {
			return nil, badRequest(err)
		}
		return n, nil
	})
}

func (s *Server) removeNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.edit(w, r, func(ed *editor.Editor) (any, error) {
		if _, ok := ed.Model().Node(id); !ok {
			return nil, &domain.NotFoundError{Kind: "node", ID: id}
		}
		ed.RemoveNode(id)
		return nil, nil
	})
}

type duplicateRequest struct {
	IDs    []string        `json:"ids"`
	Offset domain.Position `json:"offset"`
}

func (s *Server) duplicateNodes(w http.ResponseWriter, r *http.Request) {
	var req duplicateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.edit(w, r, func(ed *editor.Editor) (any, error) {
		return ed.Duplicate(req.IDs, req.Offset)
	})
}

type connectRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Handle string `json:"sourceHandle"`
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.edit(w, r, func(ed *editor.Editor) (any, error) {
		return ed.Connect(req.Source, req.Target, domain.ParseBranch(req.Handle))
	})
}

func (s *Server) disconnect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.edit(w, r, func(ed *editor.Editor) (any, error) {
		ed.Disconnect(id)
		return nil, nil
	})
}

func contentType(f codec.Format) string {
	if f == codec.FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}
