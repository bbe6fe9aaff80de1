package runtime

import (
	"fmt"

	"github.com/aretw0/triage/pkg/domain"
)

// step is a validated answer ready for routing.
type step struct {
	branch domain.Branch
	option *domain.Option
}

// resolveAnswer checks the answer against the node and derives its branch.
// At a node with options, an answer that selects none of them is only accepted
// when the node has a default edge to follow.
func resolveAnswer(node domain.Node, answer domain.Answer, hasDefault bool) (step, error) {
	if w, ok := node.Payload.(*domain.WarningPayload); ok && w.RequiresAck {
		if answer.Kind != domain.AnswerAcknowledge && answer.Branch() != domain.BranchYes {
			return step{}, fmt.Errorf("%w: warning %q must be acknowledged", domain.ErrInvalidAnswer, node.ID)
		}
		return step{branch: domain.BranchDefault}, nil
	}

	opts := node.Options()
	selecting := answer.Kind == domain.AnswerChoice || answer.Kind == domain.AnswerConfirm
	if len(opts) == 0 {
		return step{branch: answer.Branch()}, nil
	}
	if !selecting {
		if !hasDefault {
			return step{}, fmt.Errorf("%w: node %q expects one of its options", domain.ErrInvalidAnswer, node.ID)
		}
		return step{branch: answer.Branch()}, nil
	}

	for i := range opts {
		if answer.Selects(opts[i]) {
			o := opts[i]
			return step{branch: domain.OptionBranch(o.ID), option: &o}, nil
		}
	}
	return step{}, fmt.Errorf("%w: %q is not an option of node %q", domain.ErrInvalidAnswer, answer.String(), node.ID)
}

func (e *Engine) hasDefaultEdge(nodeID string) bool {
	for _, edge := range e.graph.Outgoing(nodeID) {
		if edge.Branch.IsDefault() {
			return true
		}
	}
	return false
}

// resolveNext picks the next node id. Precedence: the option override, then the edge
// whose branch matches, then the handle-less default edge. found is false when the
// node is terminal for this answer.
func (e *Engine) resolveNext(node domain.Node, s step) (next string, found bool) {
	if s.option != nil && s.option.NextNodeID != "" {
		return s.option.NextNodeID, true
	}

	var defaults []domain.Edge
	for _, edge := range e.graph.Outgoing(node.ID) {
		if edge.Branch.IsDefault() {
			defaults = append(defaults, edge)
			continue
		}
		if !s.branch.IsDefault() && edge.Branch == s.branch {
			return edge.Target, true
		}
	}

	switch len(defaults) {
	case 0:
		return "", false
	case 1:
		return defaults[0].Target, true
	}
	e.logger.Warn("ambiguous default edges, taking the first", "node", node.ID, "count", len(defaults))
	return defaults[0].Target, true
}
