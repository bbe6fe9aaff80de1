package graph

import (
	"fmt"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Patch is a partial node update. Nil fields are left untouched.
// The kind of a node cannot be changed.
type Patch struct {
	Title    *string
	Content  *string
	Position *domain.Position
	Media    *[]domain.MediaRef
	Metadata *domain.NodeMetadata
	Payload  domain.Payload
}

func (p Patch) apply(n *domain.Node) error {
	if p.Payload != nil && !p.Payload.Accepts(n.Kind) {
		return fmt.Errorf("payload not allowed on kind %q", n.Kind)
	}
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Position != nil {
		n.Position = *p.Position
	}
	if p.Media != nil {
		n.Media = *p.Media
	}
	if p.Metadata != nil {
		md := *p.Metadata
		n.Metadata = &md
	}
	if p.Payload != nil {
		n.Payload = p.Payload
	}
	*n = n.Clone()
	return nil
}

// patchFields mirrors the wire names of a node for loosely typed patches.
type patchFields struct {
	Title    *string                `mapstructure:"title"`
	Content  *string                `mapstructure:"content"`
	Position *domain.Position       `mapstructure:"position"`
	Media    *[]domain.MediaRef     `mapstructure:"media"`
	Metadata *domain.NodeMetadata   `mapstructure:"metadata"`
	Options  *[]domain.Option       `mapstructure:"options"`
	Warning  *domain.WarningPayload `mapstructure:"warning"`
	Outcome  *domain.Outcome        `mapstructure:"outcome"`
}

// PatchFromMap decodes a JSON-like map (HTTP body, MCP arguments) into a Patch.
// Unknown keys are rejected so typos do not silently drop edits.
func PatchFromMap(raw map[string]any) (Patch, error) {
	var f patchFields
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &f,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return Patch{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Patch{}, fmt.Errorf("decode patch: %w", err)
	}

	p := Patch{
		Title:    f.Title,
		Content:  f.Content,
		Position: f.Position,
		Media:    f.Media,
		Metadata: f.Metadata,
	}

	set := 0
	if f.Options != nil {
		p.Payload = &domain.ChoicePayload{Options: *f.Options}
		set++
	}
	if f.Warning != nil {
		p.Payload = f.Warning
		set++
	}
	if f.Outcome != nil {
		p.Payload = &domain.EndPayload{Outcome: *f.Outcome}
		set++
	}
	if set > 1 {
		return Patch{}, fmt.Errorf("decode patch: options, warning and outcome are mutually exclusive")
	}
	return p, nil
}

// Seed converts the patch into creation data for AddNode.
func (p Patch) Seed() Seed {
	var s Seed
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Content != nil {
		s.Content = *p.Content
	}
	if p.Media != nil {
		s.Media = *p.Media
	}
	s.Metadata = p.Metadata
	s.Payload = p.Payload
	return s
}
