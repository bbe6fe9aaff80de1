package dsl

import (
	"fmt"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/graph"
)

// Builder manages the document construction.
type Builder struct {
	meta  domain.DocumentMetadata
	nodes []*NodeBuilder
	index map[string]*NodeBuilder
	edges []domain.Edge
}

// New creates a builder for a document with the given name.
func New(name string) *Builder {
	return &Builder{
		meta:  domain.DocumentMetadata{Name: name, IsActive: true},
		index: make(map[string]*NodeBuilder),
	}
}

// Folder sets the folder the document belongs to.
func (b *Builder) Folder(folder string) *Builder {
	b.meta.Folder = folder
	return b
}

// Add declares a node of the given kind.
// If the node already exists, it returns the existing builder unchanged.
func (b *Builder) Add(id string, kind domain.NodeKind) *NodeBuilder {
	if nb, ok := b.index[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		Builder: b,
		node:    domain.Node{ID: id, Kind: kind},
	}
	b.index[id] = nb
	b.nodes = append(b.nodes, nb)
	return nb
}

// Start declares the entry node.
func (b *Builder) Start(id, title string) *NodeBuilder {
	return b.Add(id, domain.KindStart).Title(title)
}

// Question declares a yes/no question. Options can be replaced with Option.
func (b *Builder) Question(id, title, content string) *NodeBuilder {
	return b.Add(id, domain.KindQuestion).Title(title).Content(content)
}

// Decision declares a multiple choice step. Add its options with Option.
func (b *Builder) Decision(id, title, content string) *NodeBuilder {
	return b.Add(id, domain.KindDecision).Title(title).Content(content)
}

// Condition declares a step that branches on an observed condition.
func (b *Builder) Condition(id, title, content string) *NodeBuilder {
	return b.Add(id, domain.KindCondition).Title(title).Content(content)
}

// Instruction declares a step the operator performs before continuing.
func (b *Builder) Instruction(id, title, content string) *NodeBuilder {
	return b.Add(id, domain.KindInstruction).Title(title).Content(content)
}

// Action declares a step describing an action to carry out.
func (b *Builder) Action(id, title, content string) *NodeBuilder {
	return b.Add(id, domain.KindAction).Title(title).Content(content)
}

// Info declares an informational step.
func (b *Builder) Info(id, title, content string) *NodeBuilder {
	return b.Add(id, domain.KindInfo).Title(title).Content(content)
}

// Media declares a step built around an image, video or document.
func (b *Builder) Media(id, title, url string) *NodeBuilder {
	nb := b.Add(id, domain.KindMedia).Title(title)
	nb.node.Media = append(nb.node.Media, domain.MediaRef{Type: "image", URL: url})
	return nb
}

// Warning declares a safety warning step.
func (b *Builder) Warning(id, title, content string, level domain.WarningLevel, hazards ...string) *NodeBuilder {
	nb := b.Add(id, domain.KindWarning).Title(title).Content(content)
	nb.node.Payload = &domain.WarningPayload{Level: level, Hazards: hazards}
	return nb
}

// End declares a terminal step.
func (b *Builder) End(id, title string) *NodeBuilder {
	return b.Add(id, domain.KindEnd).Title(title)
}

// Link adds an unconditional edge between two declared nodes.
func (b *Builder) Link(source, target string) *Builder {
	return b.LinkOn(source, target, domain.BranchDefault)
}

// LinkOn adds an edge taken when the answer on source resolves to branch.
func (b *Builder) LinkOn(source, target string, branch domain.Branch) *Builder {
	id := fmt.Sprintf("e%s-%s", source, target)
	if !branch.IsDefault() {
		id = fmt.Sprintf("%s-%s", id, branch)
	}
	b.edges = append(b.edges, domain.Edge{ID: id, Source: source, Target: target, Branch: branch})
	return b
}

// Document assembles the declared nodes and edges.
// Questions without explicit options get yes/no options, matching graph.Model.AddNode.
func (b *Builder) Document() *domain.Document {
	doc := &domain.Document{
		Metadata: b.meta,
		Nodes:    make([]domain.Node, 0, len(b.nodes)),
		Edges:    append([]domain.Edge{}, b.edges...),
	}
	highest := 0
	for _, nb := range b.nodes {
		n := nb.node.Clone()
		if n.Kind.IsChoice() && n.Payload == nil {
			p := &domain.ChoicePayload{}
			if n.Kind == domain.KindQuestion {
				p.Options = domain.YesNoOptions()
			}
			n.Payload = p
		}
		if s, ok := graph.NumericSuffix(n.ID); ok && s > highest {
			highest = s
		}
		doc.Nodes = append(doc.Nodes, n)
	}
	doc.NodeCounter = highest + 1
	return doc
}

// Build compiles the document into a graph model, reporting structural problems.
func (b *Builder) Build() (*graph.Model, error) {
	m, err := graph.FromDocument(b.Document())
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}
	return m, nil
}
