package dsl

import "github.com/aretw0/triage/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
// It embeds the Builder so the next node can be declared without breaking the chain.
type NodeBuilder struct {
	*Builder
	node domain.Node
}

// Title sets the node title.
func (n *NodeBuilder) Title(title string) *NodeBuilder {
	n.node.Title = title
	return n
}

// Content sets the node body.
func (n *NodeBuilder) Content(content string) *NodeBuilder {
	n.node.Content = content
	return n
}

// At places the node on the canvas.
func (n *NodeBuilder) At(x, y float64) *NodeBuilder {
	n.node.Position = domain.Position{X: x, Y: y}
	return n
}

// Tags attaches metadata tags.
func (n *NodeBuilder) Tags(tags ...string) *NodeBuilder {
	if n.node.Metadata == nil {
		n.node.Metadata = &domain.NodeMetadata{}
	}
	n.node.Metadata.Tags = append(n.node.Metadata.Tags, tags...)
	return n
}

// Option adds a selectable option to a choice node.
// Calling it on a question replaces the default yes/no pair.
func (n *NodeBuilder) Option(id, label string) *NodeBuilder {
	p, ok := n.node.Payload.(*domain.ChoicePayload)
	if !ok {
		p = &domain.ChoicePayload{}
		n.node.Payload = p
	}
	p.Options = append(p.Options, domain.Option{ID: id, Label: label, Value: id})
	return n
}

// Override makes the option jump straight to target, ahead of any edge.
func (n *NodeBuilder) Override(optionID, target string) *NodeBuilder {
	if p, ok := n.node.Payload.(*domain.ChoicePayload); ok {
		for i := range p.Options {
			if p.Options[i].ID == optionID {
				p.Options[i].NextNodeID = target
			}
		}
	}
	return n
}

// Go adds an unconditional edge to the target node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.LinkOn(n.node.ID, target, domain.BranchDefault)
	return n
}

// When adds an edge taken when the option with the given id is picked.
func (n *NodeBuilder) When(optionID, target string) *NodeBuilder {
	n.LinkOn(n.node.ID, target, domain.OptionBranch(optionID))
	return n
}

// Yes adds the edge followed on a positive answer.
func (n *NodeBuilder) Yes(target string) *NodeBuilder {
	n.LinkOn(n.node.ID, target, domain.BranchYes)
	return n
}

// No adds the edge followed on a negative answer.
func (n *NodeBuilder) No(target string) *NodeBuilder {
	n.LinkOn(n.node.ID, target, domain.BranchNo)
	return n
}

// Outcome records how an end node closes the procedure.
func (n *NodeBuilder) Outcome(o domain.Outcome) *NodeBuilder {
	n.node.Payload = &domain.EndPayload{Outcome: o}
	return n
}

// Acknowledge requires the operator to acknowledge a warning before moving on.
func (n *NodeBuilder) Acknowledge() *NodeBuilder {
	if p, ok := n.node.Payload.(*domain.WarningPayload); ok {
		p.RequiresAck = true
	}
	return n
}

// Node returns a copy of the underlying domain.Node.
func (n *NodeBuilder) Node() domain.Node {
	return n.node.Clone()
}
