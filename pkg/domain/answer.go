package domain

import (
	"fmt"
	"strings"
)

// AnswerKind defines how an answer was given.
type AnswerKind string

const (
	AnswerChoice      AnswerKind = "choice"      // picked one of the node options
	AnswerConfirm     AnswerKind = "confirm"     // yes/no
	AnswerAcknowledge AnswerKind = "acknowledge" // "continue" on non-branching steps
	AnswerText        AnswerKind = "text"        // free text note, follows the default branch
)

// Answer is what an operator submits at a step.
type Answer struct {
	Kind      AnswerKind `json:"kind"`
	OptionID  string     `json:"optionId,omitempty"`
	Confirmed bool       `json:"confirmed,omitempty"`
	Text      string     `json:"text,omitempty"`
}

// Choose selects an option by id.
func Choose(optionID string) Answer {
	return Answer{Kind: AnswerChoice, OptionID: optionID}
}

// Yes is an affirmative confirmation.
func Yes() Answer { return Answer{Kind: AnswerConfirm, Confirmed: true} }

// No is a negative confirmation.
func No() Answer { return Answer{Kind: AnswerConfirm, Confirmed: false} }

// Acknowledge continues past a non-branching step.
func Acknowledge() Answer { return Answer{Kind: AnswerAcknowledge} }

// Note records free text and follows the default branch.
func Note(text string) Answer { return Answer{Kind: AnswerText, Text: text} }

// ParseAnswer interprets raw operator input (CLI, HTTP, MCP).
// Empty input acknowledges, y/yes/true and n/no/false confirm, anything else picks an option.
func ParseAnswer(raw string) Answer {
	clean := strings.TrimSpace(raw)
	switch strings.ToLower(clean) {
	case "":
		return Acknowledge()
	case "y", "yes", "true":
		return Yes()
	case "n", "no", "false":
		return No()
	}
	return Choose(clean)
}

// Branch returns the canonical branch selected by the answer.
func (a Answer) Branch() Branch {
	switch a.Kind {
	case AnswerChoice:
		return OptionBranch(a.OptionID)
	case AnswerConfirm:
		if a.Confirmed {
			return BranchYes
		}
		return BranchNo
	}
	return BranchDefault
}

// Selects reports whether the answer picks the given option.
func (a Answer) Selects(o Option) bool {
	switch a.Kind {
	case AnswerChoice:
		return a.OptionID == o.ID || (o.Value != "" && a.OptionID == o.Value)
	case AnswerConfirm:
		return OptionBranch(o.ID) == a.Branch()
	}
	return false
}

// String renders the answer for logs and reports.
func (a Answer) String() string {
	switch a.Kind {
	case AnswerChoice:
		return a.OptionID
	case AnswerConfirm:
		if a.Confirmed {
			return "yes"
		}
		return "no"
	case AnswerText:
		return fmt.Sprintf("note: %s", a.Text)
	}
	return "continue"
}
