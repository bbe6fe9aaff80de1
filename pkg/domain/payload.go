package domain

import "slices"

// Payload is the kind-specific part of a node.
// The set of implementations is closed: ChoicePayload, WarningPayload and EndPayload.
type Payload interface {
	// Accepts reports whether a node of the given kind may carry this payload.
	Accepts(kind NodeKind) bool
	clone() Payload
}

// ChoicePayload is the enumerated answer set of question, decision and condition nodes.
type ChoicePayload struct {
	Options []Option `json:"options,omitempty" mapstructure:"options"`
}

func (p *ChoicePayload) Accepts(kind NodeKind) bool { return kind.IsChoice() }

func (p *ChoicePayload) clone() Payload {
	return &ChoicePayload{Options: slices.Clone(p.Options)}
}

// WarningLevel grades a safety warning.
type WarningLevel string

const (
	WarningCaution WarningLevel = "caution"
	WarningDanger  WarningLevel = "danger"
)

// WarningPayload describes the hazards of a warning step.
type WarningPayload struct {
	Level       WarningLevel `json:"level" mapstructure:"level"`
	Hazards     []string     `json:"hazards,omitempty" mapstructure:"hazards"`
	RequiresAck bool         `json:"requiresAck,omitempty" mapstructure:"requiresAck"`
}

func (p *WarningPayload) Accepts(kind NodeKind) bool { return kind == KindWarning }

func (p *WarningPayload) clone() Payload {
	c := *p
	c.Hazards = slices.Clone(p.Hazards)
	return &c
}

// Outcome is the diagnosis reached at a terminal step.
type Outcome string

const (
	OutcomeResolved   Outcome = "resolved"
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeEscalated  Outcome = "escalated"
)

// EndPayload records the outcome of a terminal step.
type EndPayload struct {
	Outcome Outcome `json:"outcome" mapstructure:"outcome"`
}

func (p *EndPayload) Accepts(kind NodeKind) bool { return kind == KindEnd }

func (p *EndPayload) clone() Payload {
	c := *p
	return &c
}

// YesNoOptions is the default answer set of a freshly created question.
func YesNoOptions() []Option {
	return []Option{
		{ID: string(BranchYes), Label: "Yes", Value: "yes"},
		{ID: string(BranchNo), Label: "No", Value: "no"},
	}
}
