package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/triage/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFromState builds an overlay from a session state. A nil state yields nil.
func OverlayFromState(s *domain.ExecutionState) *GraphOverlay {
	if s == nil {
		return nil
	}
	o := &GraphOverlay{VisitedNodes: s.Visited}
	if !s.Status.Terminal() {
		o.CurrentNode = s.CurrentNodeID
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart from the nodes and edges of a workflow.
// Shapes follow the node kind:
// - Start: ((Circle))
// - End: ([Stadium])
// - Question/Decision/Condition: {Rhombus}
// - Warning: {{Hexagon}}
// - Action: [[Subroutine]]
// - Default: [Rectangle]
// Option overrides that bypass edges are drawn dotted.
func GenerateMermaid(nodes []domain.Node, edges []domain.Edge, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range nodes {
		opener, closer := shape(node.Kind)
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(node.ID), opener, label(node), closer)
	}

	labels := make(map[string]map[domain.Branch]string, len(nodes))
	for _, node := range nodes {
		for _, o := range node.Options() {
			if labels[node.ID] == nil {
				labels[node.ID] = make(map[domain.Branch]string)
			}
			labels[node.ID][domain.OptionBranch(o.ID)] = o.Label
		}
	}

	for _, e := range edges {
		from, to := sanitizeMermaidID(e.Source), sanitizeMermaidID(e.Target)
		if e.Branch.IsDefault() {
			fmt.Fprintf(&sb, "    %s --> %s\n", from, to)
			continue
		}
		text := labels[e.Source][e.Branch]
		if text == "" {
			text = string(e.Branch)
		}
		fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", from, escape(text), to)
	}

	for _, node := range nodes {
		for _, o := range node.Options() {
			if o.NextNodeID == "" {
				continue
			}
			text := o.Label
			if text == "" {
				text = o.ID
			}
			fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", sanitizeMermaidID(node.ID), escape(text), sanitizeMermaidID(o.NextNodeID))
		}
	}

	// Apply Overlay Styles
	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func shape(kind domain.NodeKind) (string, string) {
	switch kind {
	case domain.KindStart:
		return "((", "))"
	case domain.KindEnd:
		return "([", "])"
	case domain.KindQuestion, domain.KindDecision, domain.KindCondition:
		return "{", "}"
	case domain.KindWarning:
		return "{{", "}}"
	case domain.KindAction:
		return "[[", "]]"
	}
	return "[", "]"
}

func label(n domain.Node) string {
	if strings.TrimSpace(n.Title) == "" {
		return n.ID
	}
	return escape(n.Title)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	// Mermaid reserves "end" as a keyword.
	if strings.EqualFold(s, "end") {
		s = "n_" + s
	}
	return s
}
