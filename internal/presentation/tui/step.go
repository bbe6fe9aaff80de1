package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/graph"
)

// StepMarkdown describes a node the way the operator sees it during a run.
func StepMarkdown(n domain.Node) string {
	var sb strings.Builder

	title := n.Title
	if title == "" {
		title = n.Kind.Label()
	}
	fmt.Fprintf(&sb, "## %s\n\n", title)

	if w, ok := n.Payload.(*domain.WarningPayload); ok {
		fmt.Fprintf(&sb, "> **%s**\n", strings.ToUpper(string(w.Level)))
		for _, h := range w.Hazards {
			fmt.Fprintf(&sb, "> - %s\n", h)
		}
		sb.WriteString("\n")
	}

	if n.Content != "" {
		sb.WriteString(n.Content)
		sb.WriteString("\n\n")
	}

	for _, m := range n.Media {
		text := m.Caption
		if text == "" {
			text = m.Type
		}
		fmt.Fprintf(&sb, "- [%s](%s)\n", text, m.URL)
	}
	if len(n.Media) > 0 {
		sb.WriteString("\n")
	}

	if md := n.Metadata; md != nil && md.TimeEstimateMinutes > 0 {
		fmt.Fprintf(&sb, "_About %d min_\n\n", md.TimeEstimateMinutes)
	}

	if opts := n.Options(); len(opts) > 0 {
		for i, o := range opts {
			text := o.Label
			if text == "" {
				text = o.ID
			}
			fmt.Fprintf(&sb, "%d. %s\n", i+1, text)
		}
		sb.WriteString("\n")
	}

	if e, ok := n.Payload.(*domain.EndPayload); ok && e.Outcome != "" {
		fmt.Fprintf(&sb, "**Outcome:** %s\n", e.Outcome)
	}

	return sb.String()
}

// Prompt is the input hint shown below a step.
func Prompt(n domain.Node) string {
	switch {
	case len(n.Options()) > 0:
		return "Choose an option (number or id)"
	case n.Kind == domain.KindWarning:
		return "Type yes to acknowledge"
	case n.Kind == domain.KindEnd:
		return "Press enter to finish"
	}
	return "Press enter to continue"
}

// ParseInput maps raw operator input to an answer. Numbers pick options by position.
func ParseInput(n domain.Node, raw string) domain.Answer {
	clean := strings.TrimSpace(raw)
	opts := n.Options()
	if idx, err := strconv.Atoi(clean); err == nil && idx >= 1 && idx <= len(opts) {
		return domain.Choose(opts[idx-1].ID)
	}
	return domain.ParseAnswer(clean)
}

// TrailMarkdown renders the audit trail of a session as a table.
func TrailMarkdown(g graph.Graph, trail []domain.AuditEntry) string {
	var sb strings.Builder
	sb.WriteString("| # | Step | Answer | Time |\n|---|---|---|---|\n")
	for i, e := range trail {
		step := e.NodeID
		if n, ok := g.Node(e.NodeID); ok && n.Title != "" {
			step = n.Title
		}
		fmt.Fprintf(&sb, "| %d | %s | %s | %s |\n", i+1, strings.ReplaceAll(step, "|", "/"), e.Answer.String(), e.Timestamp.Format("15:04:05"))
	}
	return sb.String()
}
