package domain

import (
	"encoding/json"
	"strings"
)

// Branch identifies which answer an edge corresponds to.
// The zero value is the default branch (an edge without a handle).
type Branch string

const (
	BranchDefault Branch = ""
	BranchYes     Branch = "yes"
	BranchNo      Branch = "no"
)

// ParseBranch maps a source handle or option id onto its canonical branch.
// Affirmative and negative spellings collapse to BranchYes/BranchNo; any other
// value names an option branch verbatim.
func ParseBranch(handle string) Branch {
	h := strings.TrimSpace(handle)
	switch strings.ToLower(h) {
	case "":
		return BranchDefault
	case "yes", "true":
		return BranchYes
	case "no", "false":
		return BranchNo
	}
	return Branch(h)
}

// OptionBranch returns the branch selected by the option with the given id.
func OptionBranch(optionID string) Branch { return ParseBranch(optionID) }

// IsDefault reports whether b is the unconditional branch.
func (b Branch) IsDefault() bool { return b == BranchDefault }

// Edge is a directed connection between two nodes.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Branch Branch `json:"-"`
}

type edgeWire struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// MarshalJSON writes the branch as the sourceHandle field.
func (e Edge) MarshalJSON() ([]byte, error) {
	return json.Marshal(edgeWire{
		ID:           e.ID,
		Source:       e.Source,
		Target:       e.Target,
		SourceHandle: string(e.Branch),
	})
}

// UnmarshalJSON parses sourceHandle into a canonical Branch.
func (e *Edge) UnmarshalJSON(data []byte) error {
	var w edgeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Edge{
		ID:     w.ID,
		Source: w.Source,
		Target: w.Target,
		Branch: ParseBranch(w.SourceHandle),
	}
	return nil
}
