package validator_test

import (
	"testing"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/dsl"
	"github.com/aretw0/triage/pkg/graph"
	"github.com/aretw0/triage/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func model(t *testing.T, doc *domain.Document) *graph.Model {
	t.Helper()
	m, err := graph.FromDocument(doc)
	require.NoError(t, err)
	return m
}

func codes(fs []validator.Finding) []validator.Code {
	out := make([]validator.Code, len(fs))
	for i, f := range fs {
		out[i] = f.Code
	}
	return out
}

func TestValidate_WellFormed(t *testing.T) {
	doc := dsl.New("printer").
		Start("1", "Printer does not print").
		Question("2", "Is the power LED on?", "Look at the front panel.").Yes("3").No("4").
		End("3", "Check paper tray").
		End("4", "Plug in the printer").
		Link("1", "2").
		Document()

	r := validator.Validate(model(t, doc))
	assert.True(t, r.Executable())
	assert.Empty(t, r.Findings)
	assert.Equal(t, "1", r.StartNodeID)
	assert.Equal(t, []string{"3", "4"}, r.EndNodeIDs)
	assert.NoError(t, r.Err())
}

func TestValidate_PureCycleHasNoStart(t *testing.T) {
	doc := &domain.Document{
		Nodes: []domain.Node{
			{ID: "A", Kind: domain.KindInfo, Title: "A", Content: "a"},
			{ID: "B", Kind: domain.KindInfo, Title: "B", Content: "b"},
		},
		Edges: []domain.Edge{
			{ID: "ab", Source: "A", Target: "B"},
			{ID: "ba", Source: "B", Target: "A"},
		},
	}
	r := validator.Validate(model(t, doc))

	assert.True(t, r.Has(validator.CodeNoStartNode))
	assert.True(t, r.Has(validator.CodeNoEndNode))
	assert.False(t, r.Executable())
	assert.True(t, validator.IsNotExecutable(r.Err()))
	assert.Empty(t, r.StartNodeID)
	assert.False(t, r.Has(validator.CodeUnreachableNode), "no reachability without an entry point")
}

func TestValidate_SelfLoopExcludedFromEnds(t *testing.T) {
	doc := &domain.Document{
		Nodes: []domain.Node{
			{ID: "S", Kind: domain.KindStart, Title: "S"},
			{ID: "X", Kind: domain.KindAction, Title: "Retry", Content: "Power cycle"},
			{ID: "E", Kind: domain.KindEnd, Title: "Done"},
		},
		Edges: []domain.Edge{
			{ID: "sx", Source: "S", Target: "X"},
			{ID: "xx", Source: "X", Target: "X"},
			{ID: "se", Source: "S", Target: "E"},
		},
	}
	r := validator.Validate(model(t, doc))

	assert.False(t, r.Has(validator.CodeNoEndNode))
	assert.Equal(t, []string{"E"}, r.EndNodeIDs)
	assert.True(t, r.Executable())
}

func TestValidate_MultipleStartsIsWarning(t *testing.T) {
	doc := &domain.Document{
		Nodes: []domain.Node{
			{ID: "1", Kind: domain.KindStart, Title: "one"},
			{ID: "2", Kind: domain.KindStart, Title: "two"},
			{ID: "3", Kind: domain.KindEnd, Title: "end"},
		},
		Edges: []domain.Edge{
			{ID: "a", Source: "1", Target: "3"},
			{ID: "b", Source: "2", Target: "3"},
		},
	}
	r := validator.Validate(model(t, doc))

	assert.True(t, r.Executable())
	assert.Equal(t, "1", r.StartNodeID, "first by document order is provisional")
	assert.Equal(t, []validator.Code{validator.CodeMultipleStartNodes, validator.CodeUnreachableNode}, codes(r.Findings))
	assert.Equal(t, "2", r.Findings[1].NodeID)
}

func TestValidate_OrphansAndContent(t *testing.T) {
	doc := &domain.Document{
		Nodes: []domain.Node{
			{ID: "1", Kind: domain.KindStart, Title: "start"},
			{ID: "2", Kind: domain.KindInstruction, Title: "Open the case"},
			{ID: "3", Kind: domain.KindInfo},
		},
		Edges: []domain.Edge{{ID: "a", Source: "1", Target: "2"}},
	}
	r := validator.Validate(model(t, doc))

	assert.False(t, r.Executable())
	require.Len(t, r.Errors(), 1)
	assert.Equal(t, validator.Finding{
		Severity: validator.SeverityError,
		NodeID:   "3",
		Code:     validator.CodeMissingContent,
		Message:  "node has no title",
	}, r.Errors()[0])

	warn := codes(r.Warnings())
	assert.Contains(t, warn, validator.CodeMultipleStartNodes)
	assert.Contains(t, warn, validator.CodeDisconnectedNode)
	assert.Contains(t, warn, validator.CodeMissingContent, "instruction without body")
}

func TestValidate_OptionChecks(t *testing.T) {
	doc := &domain.Document{
		Nodes: []domain.Node{
			{ID: "1", Kind: domain.KindStart, Title: "start"},
			{ID: "2", Kind: domain.KindDecision, Title: "Pick", Content: "c", Payload: &domain.ChoicePayload{
				Options: []domain.Option{{ID: "a", NextNodeID: "ghost"}, {ID: "b"}},
			}},
			{ID: "3", Kind: domain.KindEnd, Title: "end"},
			{ID: "4", Kind: domain.KindCondition, Title: "Empty", Content: "c", Payload: &domain.ChoicePayload{}},
		},
		Edges: []domain.Edge{
			{ID: "a", Source: "1", Target: "2"},
			{ID: "b", Source: "2", Target: "3", Branch: "c"},
			{ID: "c", Source: "2", Target: "4", Branch: "b"},
			{ID: "d", Source: "4", Target: "3"},
		},
	}
	r := validator.Validate(model(t, doc))

	assert.True(t, r.Has(validator.CodeDanglingOptionTarget))
	assert.True(t, r.Has(validator.CodeUnknownHandle))
	assert.True(t, r.Has(validator.CodeEmptyChoice))
	assert.False(t, r.Executable())
}

func TestValidate_Deterministic(t *testing.T) {
	doc := dsl.New("d").
		Start("1", "s").
		Info("2", "i", "").
		Info("9", "", "").
		Link("1", "2").
		Document()
	m := model(t, doc)

	assert.Equal(t, validator.Validate(m), validator.Validate(m))
}

func TestValidate_Empty(t *testing.T) {
	r := validator.Validate(graph.New())
	assert.True(t, r.Executable())
	assert.Empty(t, r.Findings)
}

func TestFindStart(t *testing.T) {
	_, err := validator.FindStart(graph.New())
	assert.ErrorIs(t, err, domain.ErrNoStartNode)
}
