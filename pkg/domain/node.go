package domain

import (
	"encoding/json"
	"fmt"
	"slices"
)

// NodeKind defines the role of a step in a procedure.
type NodeKind string

const (
	KindStart       NodeKind = "start"
	KindQuestion    NodeKind = "question"
	KindInstruction NodeKind = "instruction"
	KindCondition   NodeKind = "condition"
	KindEnd         NodeKind = "end"
	KindMedia       NodeKind = "media"
	KindDecision    NodeKind = "decision"
	KindWarning     NodeKind = "warning"
	KindInfo        NodeKind = "info"
	KindAction      NodeKind = "action"
)

var kindLabels = map[NodeKind]string{
	KindStart:       "Start",
	KindQuestion:    "Question",
	KindInstruction: "Instruction",
	KindCondition:   "Condition",
	KindEnd:         "End",
	KindMedia:       "Media",
	KindDecision:    "Decision",
	KindWarning:     "Warning",
	KindInfo:        "Info",
	KindAction:      "Action",
}

// Valid reports whether k is one of the known kinds.
func (k NodeKind) Valid() bool {
	_, ok := kindLabels[k]
	return ok
}

// Label returns the human readable name of the kind, used as a default title.
func (k NodeKind) Label() string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return string(k)
}

// IsChoice reports whether nodes of this kind branch on an enumerated option set.
func (k NodeKind) IsChoice() bool {
	return k == KindQuestion || k == KindDecision || k == KindCondition
}

// Position is the location of a node on the authoring canvas.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Option is one of the finite answers accepted at a choice node.
type Option struct {
	ID    string `json:"id" mapstructure:"id"`
	Label string `json:"label,omitempty" mapstructure:"label"`
	Value string `json:"value,omitempty" mapstructure:"value"`
	// NextNodeID overrides edge based branching when set.
	NextNodeID string `json:"nextNodeId,omitempty" mapstructure:"nextNodeId"`
}

// MediaRef points at an image, video or document attached to a step.
type MediaRef struct {
	Type    string `json:"type" mapstructure:"type"` // image, video, document
	URL     string `json:"url" mapstructure:"url"`
	Caption string `json:"caption,omitempty" mapstructure:"caption"`
}

// NodeMetadata carries authoring hints that do not affect execution.
type NodeMetadata struct {
	Difficulty          string   `json:"difficulty,omitempty" mapstructure:"difficulty"`
	Tags                []string `json:"tags,omitempty" mapstructure:"tags"`
	TimeEstimateMinutes int      `json:"timeEstimateMinutes,omitempty" mapstructure:"timeEstimateMinutes"`
}

// Node represents a single step in the graph.
// Fields common to every kind live on the struct; kind-specific fields live in Payload.
type Node struct {
	ID       string        `json:"id"`
	Kind     NodeKind      `json:"kind"`
	Title    string        `json:"title,omitempty"`
	Content  string        `json:"content,omitempty"`
	Position Position      `json:"position"`
	Media    []MediaRef    `json:"media,omitempty"`
	Metadata *NodeMetadata `json:"metadata,omitempty"`

	// Payload is nil for kinds without specific data.
	Payload Payload `json:"-"`
}

// Options returns the answer set of a choice node, or nil for other kinds.
func (n Node) Options() []Option {
	if p, ok := n.Payload.(*ChoicePayload); ok {
		return p.Options
	}
	return nil
}

// Option looks up an option by id.
func (n Node) Option(id string) (Option, bool) {
	for _, o := range n.Options() {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	out := n
	out.Media = slices.Clone(n.Media)
	if n.Metadata != nil {
		md := *n.Metadata
		md.Tags = slices.Clone(n.Metadata.Tags)
		out.Metadata = &md
	}
	if n.Payload != nil {
		out.Payload = n.Payload.clone()
	}
	return out
}

// nodeWire is the flattened wire form: payload fields sit next to the common ones.
type nodeWire struct {
	ID       string        `json:"id"`
	Kind     NodeKind      `json:"kind"`
	Title    string        `json:"title,omitempty"`
	Content  string        `json:"content,omitempty"`
	Position Position      `json:"position"`
	Media    []MediaRef    `json:"media,omitempty"`
	Metadata *NodeMetadata `json:"metadata,omitempty"`

	Options []Option        `json:"options,omitempty"`
	Warning *WarningPayload `json:"warning,omitempty"`
	Outcome Outcome         `json:"outcome,omitempty"`
}

// MarshalJSON flattens the payload into the node object.
func (n Node) MarshalJSON() ([]byte, error) {
	w := nodeWire{
		ID:       n.ID,
		Kind:     n.Kind,
		Title:    n.Title,
		Content:  n.Content,
		Position: n.Position,
		Media:    n.Media,
		Metadata: n.Metadata,
	}
	switch p := n.Payload.(type) {
	case *ChoicePayload:
		w.Options = p.Options
	case *WarningPayload:
		w.Warning = p
	case *EndPayload:
		w.Outcome = p.Outcome
	}
	return json.Marshal(w)
}

// UnmarshalJSON rebuilds the payload from the flattened fields according to Kind.
// A payload field on a kind that does not own it is rejected.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w nodeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !w.Kind.Valid() {
		return fmt.Errorf("node %q: unknown kind %q", w.ID, w.Kind)
	}

	*n = Node{
		ID:       w.ID,
		Kind:     w.Kind,
		Title:    w.Title,
		Content:  w.Content,
		Position: w.Position,
		Media:    w.Media,
		Metadata: w.Metadata,
	}

	if len(w.Options) > 0 && !w.Kind.IsChoice() {
		return fmt.Errorf("node %q: options are not allowed on kind %q", w.ID, w.Kind)
	}
	if w.Warning != nil && w.Kind != KindWarning {
		return fmt.Errorf("node %q: warning details are not allowed on kind %q", w.ID, w.Kind)
	}
	if w.Outcome != "" && w.Kind != KindEnd {
		return fmt.Errorf("node %q: outcome is not allowed on kind %q", w.ID, w.Kind)
	}

	switch {
	case w.Kind.IsChoice():
		n.Payload = &ChoicePayload{Options: w.Options}
	case w.Kind == KindWarning && w.Warning != nil:
		n.Payload = w.Warning
	case w.Kind == KindEnd && w.Outcome != "":
		n.Payload = &EndPayload{Outcome: w.Outcome}
	}
	return nil
}
