// Package editor is the authoring surface over a graph.Model.
// Every committed mutation goes through the Editor, which records one labelled snapshot
// per edit so the author can undo and redo.
package editor

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/graph"
	"github.com/aretw0/triage/pkg/history"
	"github.com/aretw0/triage/pkg/validator"
)

// Editor couples a model with its undo history.
type Editor struct {
	meta    domain.DocumentMetadata
	model   *graph.Model
	history *history.Manager
	logger  *slog.Logger
	hopts   []history.Option
}

// Option configures an Editor.
type Option func(*Editor)

// WithHistoryCapacity bounds the number of undo steps.
func WithHistoryCapacity(n int) Option {
	return func(e *Editor) {
		e.hopts = append(e.hopts, history.WithCapacity(n))
	}
}

// WithLogger sets the editor logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = l
	}
}

// New opens doc for editing. A nil doc starts an empty workflow.
func New(doc *domain.Document, opts ...Option) (*Editor, error) {
	e := &Editor{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	e.hopts = append(e.hopts, history.WithLogger(e.logger))

	if doc == nil {
		e.model = graph.New()
	} else {
		m, err := graph.FromDocument(doc)
		if err != nil {
			return nil, err
		}
		e.model = m
		e.meta = doc.Metadata
	}
	e.history = history.New(e.model.Snapshot("open"), e.hopts...)
	return e, nil
}

// Model exposes the read-only view of the current graph.
func (e *Editor) Model() graph.Graph { return e.model }

func (e *Editor) Metadata() domain.DocumentMetadata { return e.meta }

// SetMetadata replaces the document metadata. It is not part of the undo history.
func (e *Editor) SetMetadata(meta domain.DocumentMetadata) { e.meta = meta }

// Document exports the current graph with the editor metadata.
func (e *Editor) Document() *domain.Document { return e.model.Document(e.meta) }

// Validate runs the structural checks on the current graph.
func (e *Editor) Validate() *validator.Report { return validator.Validate(e.model) }

// AddNode creates a node with a fresh id.
func (e *Editor) AddNode(kind domain.NodeKind, pos domain.Position, seed graph.Seed) (domain.Node, error) {
	n, err := e.model.AddNode(kind, pos, seed)
	if err != nil {
		return domain.Node{}, err
	}
	e.commit(fmt.Sprintf("add %s %s", kind, n.ID))
	return n, nil
}

// UpdateNode applies a partial update.
func (e *Editor) UpdateNode(id string, patch graph.Patch) (domain.Node, error) {
	n, err := e.model.UpdateNode(id, patch)
	if err != nil {
		return domain.Node{}, err
	}
	e.commit("update " + id)
	return n, nil
}

// RemoveNode deletes a node and everything pointing at it.
// Removing an unknown id records nothing.
func (e *Editor) RemoveNode(id string) {
	if _, ok := e.model.Node(id); !ok {
		return
	}
	e.model.RemoveNode(id)
	e.commit("remove " + id)
}

// Connect adds an edge.
func (e *Editor) Connect(source, target string, branch domain.Branch) (domain.Edge, error) {
	edge, err := e.model.Connect(source, target, branch)
	if err != nil {
		return domain.Edge{}, err
	}
	e.commit("connect " + edge.ID)
	return edge, nil
}

// Disconnect removes an edge. Unknown ids record nothing.
func (e *Editor) Disconnect(edgeID string) {
	if _, ok := e.model.Edge(edgeID); !ok {
		return
	}
	e.model.Disconnect(edgeID)
	e.commit("disconnect " + edgeID)
}

// Duplicate copies the given nodes, shifted by offset, together with the edges between
// them. Option overrides inside the selection are remapped to the copies.
// It returns the mapping from original to new ids.
func (e *Editor) Duplicate(ids []string, offset domain.Position) (map[string]string, error) {
	work := e.model.Clone()
	mapping := make(map[string]string, len(ids))
	var originals []domain.Node

	for _, id := range ids {
		n, ok := work.Node(id)
		if !ok {
			return nil, &domain.NotFoundError{Kind: "node", ID: id}
		}
		if _, seen := mapping[id]; seen {
			continue
		}
		pos := domain.Position{X: n.Position.X + offset.X, Y: n.Position.Y + offset.Y}
		c, err := work.AddNode(n.Kind, pos, graph.Seed{
			Title:    n.Title,
			Content:  n.Content,
			Media:    n.Media,
			Metadata: n.Metadata,
			Payload:  n.Payload,
		})
		if err != nil {
			return nil, err
		}
		mapping[id] = c.ID
		originals = append(originals, n)
	}

	for _, n := range originals {
		opts := n.Options()
		if len(opts) == 0 {
			continue
		}
		remapped := make([]domain.Option, len(opts))
		for i, o := range opts {
			if to, ok := mapping[o.NextNodeID]; ok {
				o.NextNodeID = to
			}
			remapped[i] = o
		}
		if _, err := work.UpdateNode(mapping[n.ID], graph.Patch{Payload: &domain.ChoicePayload{Options: remapped}}); err != nil {
			return nil, err
		}
	}

	for _, edge := range e.model.Edges() {
		src, okS := mapping[edge.Source]
		dst, okT := mapping[edge.Target]
		if !okS || !okT {
			continue
		}
		if _, err := work.Connect(src, dst, edge.Branch); err != nil {
			return nil, err
		}
	}

	e.model = work
	e.commit(fmt.Sprintf("duplicate %d nodes", len(mapping)))
	return mapping, nil
}

// Replace swaps the whole graph for an imported document, as one undoable step.
func (e *Editor) Replace(doc *domain.Document) error {
	m, err := graph.FromDocument(doc)
	if err != nil {
		return err
	}
	e.model = m
	e.meta = doc.Metadata
	e.commit("import " + doc.Metadata.Key().String())
	return nil
}

// Undo reverts the last edit. It reports false when there is nothing to undo.
func (e *Editor) Undo() bool {
	s, ok := e.history.Undo()
	if ok {
		e.model.Restore(s)
		e.logger.Debug("undo", "label", s.Label)
	}
	return ok
}

// Redo reapplies the last undone edit.
func (e *Editor) Redo() bool {
	s, ok := e.history.Redo()
	if ok {
		e.model.Restore(s)
		e.logger.Debug("redo", "label", s.Label)
	}
	return ok
}

func (e *Editor) CanUndo() bool { return e.history.CanUndo() }

func (e *Editor) CanRedo() bool { return e.history.CanRedo() }

// History lists the snapshot labels, oldest first.
func (e *Editor) History() []string { return e.history.Labels() }

func (e *Editor) commit(label string) {
	e.history.Record(e.model.Snapshot(label))
	e.logger.Debug("edit committed", "label", label, "nodes", e.model.Len())
}
