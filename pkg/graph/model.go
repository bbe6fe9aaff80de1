// Package graph holds the canonical in-memory workflow graph and its mutation primitives.
//
// Model is not safe for concurrent use. It is meant to be driven by a single authoring
// session; the execution engine only reads it through the Graph interface.
package graph

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/aretw0/triage/pkg/domain"
)

// Graph is the read-only view consumed by the validator and the execution engine.
type Graph interface {
	Node(id string) (domain.Node, bool)
	Nodes() []domain.Node
	Edges() []domain.Edge
	Outgoing(id string) []domain.Edge
	Incoming(id string) []domain.Edge
}

// Seed holds the initial data of a node created with AddNode.
type Seed struct {
	Title    string
	Content  string
	Media    []domain.MediaRef
	Metadata *domain.NodeMetadata
	Payload  domain.Payload
}

// Model is the single source of truth for nodes, edges and the id counter.
type Model struct {
	nodes   []domain.Node
	index   map[string]int
	edges   []domain.Edge
	counter int
}

var _ Graph = (*Model)(nil)

// New creates an empty model. The first minted node id is "1".
func New() *Model {
	return &Model{
		index:   make(map[string]int),
		counter: 1,
	}
}

// FromDocument builds a model from an imported document.
// Structural problems are reported as *domain.MalformedDocumentError and never repaired.
// A zero NodeCounter is treated as absent and derived from the node ids.
func FromDocument(doc *domain.Document) (*Model, error) {
	if doc == nil {
		return nil, &domain.MalformedDocumentError{Reason: "document is nil"}
	}

	m := New()
	maxSuffix := 0
	for _, n := range doc.Nodes {
		if n.ID == "" {
			return nil, &domain.MalformedDocumentError{Reason: "node without id"}
		}
		if _, dup := m.index[n.ID]; dup {
			return nil, &domain.MalformedDocumentError{Reason: fmt.Sprintf("duplicate node id %q", n.ID)}
		}
		if n.Payload != nil && !n.Payload.Accepts(n.Kind) {
			return nil, &domain.MalformedDocumentError{Reason: fmt.Sprintf("node %q: payload not allowed on kind %q", n.ID, n.Kind)}
		}
		m.index[n.ID] = len(m.nodes)
		m.nodes = append(m.nodes, n.Clone())
		if s, ok := NumericSuffix(n.ID); ok && s > maxSuffix {
			maxSuffix = s
		}
	}

	edgeIDs := make(map[string]struct{}, len(doc.Edges))
	triples := make(map[edgeTriple]struct{}, len(doc.Edges))
	for _, e := range doc.Edges {
		if e.ID == "" {
			return nil, &domain.MalformedDocumentError{Reason: "edge without id"}
		}
		if _, dup := edgeIDs[e.ID]; dup {
			return nil, &domain.MalformedDocumentError{Reason: fmt.Sprintf("duplicate edge id %q", e.ID)}
		}
		if _, ok := m.index[e.Source]; !ok {
			return nil, &domain.MalformedDocumentError{Reason: fmt.Sprintf("edge %q: unknown source %q", e.ID, e.Source)}
		}
		if _, ok := m.index[e.Target]; !ok {
			return nil, &domain.MalformedDocumentError{Reason: fmt.Sprintf("edge %q: unknown target %q", e.ID, e.Target)}
		}
		t := tripleOf(e)
		if _, dup := triples[t]; dup {
			return nil, &domain.MalformedDocumentError{Reason: fmt.Sprintf("edge %q duplicates %s -> %s", e.ID, e.Source, e.Target)}
		}
		edgeIDs[e.ID] = struct{}{}
		triples[t] = struct{}{}
		m.edges = append(m.edges, e)
	}

	switch {
	case doc.NodeCounter == 0:
		m.counter = maxSuffix + 1
	case doc.NodeCounter <= maxSuffix:
		return nil, &domain.MalformedDocumentError{
			Reason: fmt.Sprintf("nodeCounter %d does not exceed node id suffix %d", doc.NodeCounter, maxSuffix),
		}
	default:
		m.counter = doc.NodeCounter
	}
	return m, nil
}

// NumericSuffix extracts the trailing decimal digits of an id ("node-12" -> 12).
func NumericSuffix(id string) (int, bool) {
	i := len(id)
	for i > 0 && id[i-1] >= '0' && id[i-1] <= '9' {
		i--
	}
	if i == len(id) {
		return 0, false
	}
	n, err := strconv.Atoi(id[i:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Counter returns the next value used to mint a node id.
func (m *Model) Counter() int { return m.counter }

// Len returns the number of nodes.
func (m *Model) Len() int { return len(m.nodes) }

// Node returns a copy of the node with the given id.
func (m *Model) Node(id string) (domain.Node, bool) {
	i, ok := m.index[id]
	if !ok {
		return domain.Node{}, false
	}
	return m.nodes[i].Clone(), true
}

// Nodes returns copies of all nodes in document order.
func (m *Model) Nodes() []domain.Node {
	out := make([]domain.Node, len(m.nodes))
	for i, n := range m.nodes {
		out[i] = n.Clone()
	}
	return out
}

// Edges returns a copy of all edges in document order.
func (m *Model) Edges() []domain.Edge {
	return slices.Clone(m.edges)
}

// Outgoing returns the edges leaving id, in document order.
func (m *Model) Outgoing(id string) []domain.Edge {
	var out []domain.Edge
	for _, e := range m.edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// Incoming returns the edges entering id, in document order.
func (m *Model) Incoming(id string) []domain.Edge {
	var out []domain.Edge
	for _, e := range m.edges {
		if e.Target == id {
			out = append(out, e)
		}
	}
	return out
}

// AddNode mints a fresh id from the counter and appends a new node.
func (m *Model) AddNode(kind domain.NodeKind, pos domain.Position, seed Seed) (domain.Node, error) {
	if !kind.Valid() {
		return domain.Node{}, fmt.Errorf("add node: unknown kind %q", kind)
	}
	if seed.Payload != nil && !seed.Payload.Accepts(kind) {
		return domain.Node{}, fmt.Errorf("add node: payload not allowed on kind %q", kind)
	}

	n := domain.Node{
		ID:       strconv.Itoa(m.counter),
		Kind:     kind,
		Title:    seed.Title,
		Content:  seed.Content,
		Position: pos,
		Media:    seed.Media,
		Metadata: seed.Metadata,
		Payload:  seed.Payload,
	}
	if n.Title == "" {
		n.Title = kind.Label()
	}
	if n.Payload == nil && kind.IsChoice() {
		p := &domain.ChoicePayload{}
		if kind == domain.KindQuestion {
			p.Options = domain.YesNoOptions()
		}
		n.Payload = p
	}
	n = n.Clone()

	m.counter++
	m.index[n.ID] = len(m.nodes)
	m.nodes = append(m.nodes, n)
	return n.Clone(), nil
}

// UpdateNode merges patch into the node and returns the updated copy.
func (m *Model) UpdateNode(id string, patch Patch) (domain.Node, error) {
	i, ok := m.index[id]
	if !ok {
		return domain.Node{}, &domain.NotFoundError{Kind: "node", ID: id}
	}
	n := m.nodes[i].Clone()
	if err := patch.apply(&n); err != nil {
		return domain.Node{}, fmt.Errorf("update node %q: %w", id, err)
	}
	m.nodes[i] = n
	return n.Clone(), nil
}

// RemoveNode deletes the node, every edge touching it, and option overrides targeting it.
// Removing an unknown id is a no-op.
func (m *Model) RemoveNode(id string) {
	i, ok := m.index[id]
	if !ok {
		return
	}
	m.nodes = slices.Delete(m.nodes, i, i+1)
	m.edges = slices.DeleteFunc(m.edges, func(e domain.Edge) bool {
		return e.Source == id || e.Target == id
	})
	for j := range m.nodes {
		p, ok := m.nodes[j].Payload.(*domain.ChoicePayload)
		if !ok {
			continue
		}
		for k := range p.Options {
			if p.Options[k].NextNodeID == id {
				p.Options[k].NextNodeID = ""
			}
		}
	}
	m.reindex()
}

// Connect adds an edge from source to target on the given branch.
// The branch is normalised the same way handles are when decoding.
func (m *Model) Connect(source, target string, branch domain.Branch) (domain.Edge, error) {
	branch = domain.ParseBranch(string(branch))
	fail := func(reason string) (domain.Edge, error) {
		return domain.Edge{}, &domain.InvalidConnectionError{Source: source, Target: target, Branch: branch, Reason: reason}
	}
	if _, ok := m.index[source]; !ok {
		return fail("source node does not exist")
	}
	if _, ok := m.index[target]; !ok {
		return fail("target node does not exist")
	}
	t := edgeTriple{source, target, branch}
	for _, e := range m.edges {
		if tripleOf(e) == t {
			return fail("edge already exists")
		}
	}

	e := domain.Edge{
		ID:     m.edgeID(source, target, branch),
		Source: source,
		Target: target,
		Branch: branch,
	}
	m.edges = append(m.edges, e)
	return e, nil
}

// Disconnect removes an edge. Removing an unknown id is a no-op.
func (m *Model) Disconnect(edgeID string) {
	m.edges = slices.DeleteFunc(m.edges, func(e domain.Edge) bool { return e.ID == edgeID })
}

// Edge returns the edge with the given id.
func (m *Model) Edge(id string) (domain.Edge, bool) {
	for _, e := range m.edges {
		if e.ID == id {
			return e, true
		}
	}
	return domain.Edge{}, false
}

// Document exports the model with the given metadata.
func (m *Model) Document(meta domain.DocumentMetadata) *domain.Document {
	return &domain.Document{
		Metadata:    meta,
		Nodes:       m.Nodes(),
		Edges:       m.Edges(),
		NodeCounter: m.counter,
	}
}

// Clone returns an independent copy of the model.
func (m *Model) Clone() *Model {
	c := &Model{
		nodes:   m.Nodes(),
		edges:   m.Edges(),
		counter: m.counter,
	}
	c.reindex()
	return c
}

func (m *Model) reindex() {
	m.index = make(map[string]int, len(m.nodes))
	for i, n := range m.nodes {
		m.index[n.ID] = i
	}
}

func (m *Model) edgeID(source, target string, branch domain.Branch) string {
	base := "e" + source + "-" + target
	if !branch.IsDefault() {
		base += "-" + string(branch)
	}
	id := base
	for n := 2; ; n++ {
		if _, taken := m.Edge(id); !taken {
			return id
		}
		id = base + "~" + strconv.Itoa(n)
	}
}

type edgeTriple struct {
	source, target string
	branch         domain.Branch
}

func tripleOf(e domain.Edge) edgeTriple {
	return edgeTriple{e.Source, e.Target, e.Branch}
}
