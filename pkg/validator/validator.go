// Package validator performs structural analysis of a workflow graph.
// It is pure: it never mutates the graph and yields identical findings for identical input.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/graph"
)

// Severity grades a finding. Only errors block execution.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Code identifies the kind of a finding.
type Code string

const (
	CodeNoStartNode          Code = "NoStartNode"
	CodeMultipleStartNodes   Code = "MultipleStartNodes"
	CodeNoEndNode            Code = "NoEndNode"
	CodeUnreachableNode      Code = "UnreachableNode"
	CodeDisconnectedNode     Code = "DisconnectedNode"
	CodeMissingContent       Code = "MissingContent"
	CodeDanglingOptionTarget Code = "DanglingOptionTarget"
	CodeUnknownHandle        Code = "UnknownHandle"
	CodeEmptyChoice          Code = "EmptyChoice"
)

// Finding is one structural problem.
type Finding struct {
	Severity Severity `json:"severity"`
	NodeID   string   `json:"nodeId,omitempty"`
	Code     Code     `json:"code"`
	Message  string   `json:"message"`
}

func (f Finding) String() string {
	if f.NodeID == "" {
		return fmt.Sprintf("[%s] %s: %s", f.Severity, f.Code, f.Message)
	}
	return fmt.Sprintf("[%s] %s (%s): %s", f.Severity, f.Code, f.NodeID, f.Message)
}

// Report is the outcome of a validation pass.
type Report struct {
	Findings []Finding `json:"findings"`

	// StartNodeID is the chosen (possibly provisional) entry point, empty when none exists.
	StartNodeID string `json:"startNodeId,omitempty"`
	// EndNodeIDs lists terminal nodes in document order.
	EndNodeIDs []string `json:"endNodeIds"`
}

// Executable reports whether the graph has no error-severity findings.
func (r *Report) Executable() bool {
	return len(r.Errors()) == 0
}

// Errors returns the error-severity findings.
func (r *Report) Errors() []Finding { return r.filter(SeverityError) }

// Warnings returns the warning-severity findings.
func (r *Report) Warnings() []Finding { return r.filter(SeverityWarning) }

// Has reports whether a finding with the given code exists.
func (r *Report) Has(code Code) bool {
	for _, f := range r.Findings {
		if f.Code == code {
			return true
		}
	}
	return false
}

// Err returns nil for executable graphs, otherwise an error wrapping domain.ErrNotExecutable.
func (r *Report) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	lines := make([]string, len(errs))
	for i, f := range errs {
		lines[i] = f.String()
	}
	return fmt.Errorf("%w: %d errors:\n- %s", domain.ErrNotExecutable, len(errs), strings.Join(lines, "\n- "))
}

func (r *Report) filter(s Severity) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == s {
			out = append(out, f)
		}
	}
	return out
}

func (r *Report) add(s Severity, code Code, nodeID, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{
		Severity: s,
		NodeID:   nodeID,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	})
}

// StartCandidates returns the nodes without incoming edges, in document order.
func StartCandidates(g graph.Graph) []string {
	nodes := g.Nodes()
	incoming := make(map[string]bool, len(nodes))
	for _, e := range g.Edges() {
		incoming[e.Target] = true
	}
	var out []string
	for _, n := range nodes {
		if !incoming[n.ID] {
			out = append(out, n.ID)
		}
	}
	return out
}

// FindStart applies the entry point rule: the first candidate by document order.
func FindStart(g graph.Graph) (string, error) {
	c := StartCandidates(g)
	if len(c) == 0 {
		return "", domain.ErrNoStartNode
	}
	return c[0], nil
}

// Validate runs every structural check in a single O(N+E) pass.
func Validate(g graph.Graph) *Report {
	nodes := g.Nodes()
	edges := g.Edges()
	r := &Report{Findings: []Finding{}, EndNodeIDs: []string{}}

	// 1. Adjacency
	known := make(map[string]domain.Node, len(nodes))
	for _, n := range nodes {
		known[n.ID] = n
	}
	outgoing := make(map[string][]domain.Edge, len(nodes))
	hasIncoming := make(map[string]bool, len(nodes))
	for _, e := range edges {
		outgoing[e.Source] = append(outgoing[e.Source], e)
		hasIncoming[e.Target] = true
	}

	// 2. Start nodes
	var starts []string
	for _, n := range nodes {
		if !hasIncoming[n.ID] {
			starts = append(starts, n.ID)
		}
	}
	switch {
	case len(nodes) > 0 && len(starts) == 0:
		r.add(SeverityError, CodeNoStartNode, "", "every node has an incoming edge; a cycle may cover the whole graph")
	case len(starts) > 1:
		r.StartNodeID = starts[0]
		r.add(SeverityWarning, CodeMultipleStartNodes, starts[0],
			"%d nodes have no incoming edge (%s); using %q as entry point",
			len(starts), strings.Join(starts, ", "), starts[0])
	case len(starts) == 1:
		r.StartNodeID = starts[0]
	}

	// 3. End nodes
	for _, n := range nodes {
		if len(outgoing[n.ID]) == 0 {
			r.EndNodeIDs = append(r.EndNodeIDs, n.ID)
		}
	}
	if len(nodes) > 0 && len(r.EndNodeIDs) == 0 {
		r.add(SeverityWarning, CodeNoEndNode, "", "no node without outgoing edges; the workflow may run indefinitely")
	}

	// 4. Reachability
	if r.StartNodeID != "" {
		visited := map[string]bool{r.StartNodeID: true}
		queue := []string{r.StartNodeID}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, e := range outgoing[id] {
				if !visited[e.Target] {
					visited[e.Target] = true
					queue = append(queue, e.Target)
				}
			}
			for _, o := range known[id].Options() {
				if _, ok := known[o.NextNodeID]; ok && !visited[o.NextNodeID] {
					visited[o.NextNodeID] = true
					queue = append(queue, o.NextNodeID)
				}
			}
		}
		for _, n := range nodes {
			if !visited[n.ID] {
				r.add(SeverityWarning, CodeUnreachableNode, n.ID, "not reachable from entry point %q", r.StartNodeID)
			}
		}
	}

	// 5. Orphans
	if len(nodes) > 1 {
		for _, n := range nodes {
			if !hasIncoming[n.ID] && len(outgoing[n.ID]) == 0 {
				r.add(SeverityWarning, CodeDisconnectedNode, n.ID, "node has no connections")
			}
		}
	}

	// 6. Content and kind-specific checks
	for _, n := range nodes {
		checkNode(r, n, known, outgoing[n.ID])
	}

	return r
}

func checkNode(r *Report, n domain.Node, known map[string]domain.Node, out []domain.Edge) {
	switch {
	case strings.TrimSpace(n.Title) == "":
		r.add(SeverityError, CodeMissingContent, n.ID, "node has no title")
	case strings.TrimSpace(n.Content) == "" && n.Kind != domain.KindStart && n.Kind != domain.KindEnd:
		r.add(SeverityWarning, CodeMissingContent, n.ID, "node has no body content")
	}

	if n.Kind.IsChoice() && len(n.Options()) == 0 {
		r.add(SeverityWarning, CodeEmptyChoice, n.ID, "%s node offers no options", n.Kind)
	}

	branches := make(map[domain.Branch]bool)
	for _, o := range n.Options() {
		branches[domain.OptionBranch(o.ID)] = true
		if o.NextNodeID == "" {
			continue
		}
		if _, ok := known[o.NextNodeID]; !ok {
			r.add(SeverityError, CodeDanglingOptionTarget, n.ID, "option %q points at missing node %q", o.ID, o.NextNodeID)
		}
	}

	if !n.Kind.IsChoice() {
		return
	}
	for _, e := range out {
		if !e.Branch.IsDefault() && !branches[e.Branch] {
			r.add(SeverityWarning, CodeUnknownHandle, n.ID, "edge %q uses handle %q which matches no option", e.ID, e.Branch)
		}
	}
}

// IsNotExecutable reports whether err came from Report.Err.
func IsNotExecutable(err error) bool {
	return errors.Is(err, domain.ErrNotExecutable)
}
