package observability_test

import (
	"context"
	"testing"

	"github.com/aretw0/triage/internal/runtime"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/dsl"
	"github.com/aretw0/triage/pkg/observability"
	"github.com/aretw0/triage/pkg/validator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.New(reg)

	g, err := dsl.New("fan").
		Start("1", "Fan noise").Go("2").
		Question("2", "Is the fan dusty?", "Open the side panel.").Yes("3").No("3").
		End("3", "Done").
		Build()
	require.NoError(t, err)

	ctx := context.Background()
	e := runtime.NewEngine(g, runtime.WithLifecycleHooks(m.Hooks()))
	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.SubmitAnswer(ctx, domain.Acknowledge()))
	require.NoError(t, e.SubmitAnswer(ctx, domain.Yes()))
	require.NoError(t, e.SubmitAnswer(ctx, domain.Acknowledge()))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodeVisits.WithLabelValues("2", "question")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Answers.WithLabelValues(string(domain.AnswerAcknowledge))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Answers.WithLabelValues(string(domain.AnswerConfirm))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("running", "completed")))

	m.ObserveSession(&domain.Session{ID: "s", State: e.State()})
	assert.Equal(t, 1, testutil.CollectAndCount(m.Trail))
}

func TestMetrics_ObserveReport(t *testing.T) {
	m := observability.New(nil)
	m.ObserveReport(&validator.Report{Findings: []validator.Finding{
		{Severity: validator.SeverityWarning, Code: validator.CodeUnreachableNode},
		{Severity: validator.SeverityWarning, Code: validator.CodeUnreachableNode},
		{Severity: validator.SeverityError, Code: validator.CodeNoStartNode},
	}})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Findings.WithLabelValues("warning", "UnreachableNode")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Findings.WithLabelValues("error", "NoStartNode")))
}
