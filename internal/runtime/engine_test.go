package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/triage/internal/runtime"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/dsl"
	"github.com/aretw0/triage/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, b interface{ Build() (*graph.Model, error) }) *graph.Model {
	t.Helper()
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func fixedClock() func() time.Time {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func yesNo(t *testing.T) *graph.Model {
	return build(t, dsl.New("lamp").
		Start("1", "Lamp does not light").Go("2").
		Question("2", "Is it plugged in?", "Check the wall socket.").Yes("3").No("4").
		End("3", "Replace the bulb").
		End("4", "Plug it in"))
}

func TestEngine_YesNoPath(t *testing.T) {
	ctx := context.Background()
	e := runtime.NewEngine(yesNo(t), runtime.WithClock(fixedClock()))

	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.SubmitAnswer(ctx, domain.Acknowledge()))
	require.NoError(t, e.SubmitAnswer(ctx, domain.No()))

	s := e.State()
	assert.Equal(t, []string{"1", "2", "4"}, s.Visited)
	assert.Equal(t, "4", s.CurrentNodeID)
	assert.Equal(t, domain.StatusRunning, s.Status, "end node waits for its own answer")

	require.NoError(t, e.SubmitAnswer(ctx, domain.Acknowledge()))
	s = e.State()
	assert.Equal(t, domain.StatusCompleted, s.Status)
	assert.Equal(t, []string{"1", "2", "4"}, s.Visited)
	require.Len(t, s.Trail, 3)
	assert.Equal(t, "4", s.Trail[2].NodeID, "terminal steps are recorded too")
	assert.Equal(t, domain.No(), s.Answers["2"])
	assert.NotNil(t, s.EndedAt)
	assert.True(t, s.Trail[0].Timestamp.Before(s.Trail[1].Timestamp))
}

func TestEngine_LinearChainCompletes(t *testing.T) {
	ctx := context.Background()
	m := build(t, dsl.New("chain").
		Start("1", "one").Go("2").
		Info("2", "two", "body").Go("3").
		End("3", "three"))
	e := runtime.NewEngine(m)

	require.NoError(t, e.Start(ctx))
	for e.Status() == domain.StatusRunning {
		require.NoError(t, e.SubmitAnswer(ctx, domain.Acknowledge()))
	}

	assert.Equal(t, domain.StatusCompleted, e.Status())
	assert.Equal(t, []string{"1", "2", "3"}, e.State().Visited)
	assert.Len(t, e.Trail(), 3)
}

func TestEngine_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("requires idle", func(t *testing.T) {
		e := runtime.NewEngine(yesNo(t))
		require.NoError(t, e.Start(ctx))

		var ise *domain.InvalidStateError
		require.ErrorAs(t, e.Start(ctx), &ise)
		assert.Equal(t, domain.StatusRunning, ise.Status)
	})

	t.Run("no start node fails", func(t *testing.T) {
		m := build(t, dsl.New("loop").
			Info("A", "A", "a").Go("B").
			Info("B", "B", "b").Go("A"))
		e := runtime.NewEngine(m)

		err := e.Start(ctx)
		assert.ErrorIs(t, err, domain.ErrNoStartNode)
		assert.Equal(t, domain.StatusFailed, e.Status())
		assert.NotEmpty(t, e.State().Failure)
	})
}

func TestEngine_InvalidAnswerLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	e := runtime.NewEngine(yesNo(t))
	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.SubmitAnswer(ctx, domain.Acknowledge()))
	before := e.State()

	err := e.SubmitAnswer(ctx, domain.Choose("maybe"))
	assert.ErrorIs(t, err, domain.ErrInvalidAnswer)
	assert.Equal(t, before, e.State())
}

func TestEngine_ChoiceNeedsSelection(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected without default edge", func(t *testing.T) {
		e := runtime.NewEngine(yesNo(t))
		require.NoError(t, e.Start(ctx))
		require.NoError(t, e.SubmitAnswer(ctx, domain.Acknowledge()))
		before := e.State()

		assert.ErrorIs(t, e.SubmitAnswer(ctx, domain.Acknowledge()), domain.ErrInvalidAnswer)
		assert.ErrorIs(t, e.SubmitAnswer(ctx, domain.Note("not sure")), domain.ErrInvalidAnswer)
		assert.Equal(t, before, e.State())
		assert.Equal(t, domain.StatusRunning, e.Status())
	})

	t.Run("follows default edge", func(t *testing.T) {
		e := runtime.NewEngine(build(t, dsl.New("d").
			Start("1", "s").Go("2").
			Question("2", "Q", "q").Yes("3").Go("4").
			End("3", "yes end").
			End("4", "fallback")))
		require.NoError(t, e.Start(ctx))
		require.NoError(t, e.SubmitAnswer(ctx, domain.Acknowledge()))
		require.NoError(t, e.SubmitAnswer(ctx, domain.Acknowledge()))
		assert.Equal(t, "4", e.State().CurrentNodeID)
	})
}

func TestEngine_ChoiceRouting(t *testing.T) {
	ctx := context.Background()
	b := dsl.New("fan")
	b.Start("1", "Fan noisy").Go("2")
	b.Decision("2", "Noise type", "Listen closely.").
		Option("click", "Clicking").
		Option("hum", "Humming").
		Override("click", "4").
		When("click", "3").
		When("hum", "3")
	b.End("3", "Clean the fan")
	b.End("4", "Replace the fan")
	m := build(t, b)

	t.Run("override", func(t *testing.T) {
		e := runtime.NewEngine(m)
		require.NoError(t, e.Start(ctx))
		require.NoError(t, e.SubmitAnswer(ctx, domain.Acknowledge()))
		require.NoError(t, e.SubmitAnswer(ctx, domain.Choose("click")))
		assert.Equal(t, "4", e.State().CurrentNodeID)
	})

	t.Run("edge by option handle", func(t *testing.T) {
		e := runtime.NewEngine(m)
		require.NoError(t, e.Start(ctx))
		require.NoError(t, e.SubmitAnswer(ctx, domain.Acknowledge()))
		require.NoError(t, e.SubmitAnswer(ctx, domain.Choose("hum")))
		assert.Equal(t, "3", e.State().CurrentNodeID)
	})
}

func TestEngine_DefaultEdgeFallback(t *testing.T) {
	ctx := context.Background()
	m := build(t, dsl.New("d").
		Start("1", "s").Go("2").
		Question("2", "Q", "q").Yes("3").Go("4").
		End("3", "yes end").
		End("4", "fallback"))
	e := runtime.NewEngine(m)

	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.SubmitAnswer(ctx, domain.Acknowledge()))
	require.NoError(t, e.SubmitAnswer(ctx, domain.No()))
	assert.Equal(t, "4", e.State().CurrentNodeID)
}

func TestEngine_UnresolvedBranchCompletes(t *testing.T) {
	ctx := context.Background()
	m := build(t, dsl.New("d").
		Start("1", "s").Go("2").
		Question("2", "Q", "q").Yes("3").
		End("3", "yes end"))
	e := runtime.NewEngine(m)

	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.SubmitAnswer(ctx, domain.Acknowledge()))
	require.NoError(t, e.SubmitAnswer(ctx, domain.No()))
	assert.Equal(t, domain.StatusCompleted, e.Status())
	assert.Equal(t, "2", e.State().CurrentNodeID)
}

func TestEngine_DanglingTargetFails(t *testing.T) {
	ctx := context.Background()
	b := dsl.New("d")
	b.Start("1", "s").Go("2")
	b.Decision("2", "D", "d").Option("a", "A").Override("a", "ghost")
	e := runtime.NewEngine(build(t, b))

	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.SubmitAnswer(ctx, domain.Acknowledge()))

	err := e.SubmitAnswer(ctx, domain.Choose("a"))
	var dre *domain.DanglingReferenceError
	require.ErrorAs(t, err, &dre)
	assert.Equal(t, "ghost", dre.To)
	assert.Equal(t, domain.StatusFailed, e.Status())
	assert.Len(t, e.Trail(), 2, "answer recorded before advancing")
}

func TestEngine_PauseResume(t *testing.T) {
	ctx := context.Background()
	e := runtime.NewEngine(yesNo(t))

	var ise *domain.InvalidStateError
	assert.ErrorAs(t, e.Pause(ctx), &ise)
	assert.ErrorAs(t, e.SubmitAnswer(ctx, domain.Yes()), &ise)

	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.Pause(ctx))
	assert.Equal(t, domain.StatusPaused, e.Status())
	assert.ErrorAs(t, e.SubmitAnswer(ctx, domain.Acknowledge()), &ise)
	assert.ErrorAs(t, e.Pause(ctx), &ise)

	require.NoError(t, e.Toggle(ctx))
	assert.Equal(t, domain.StatusRunning, e.Status())
	require.NoError(t, e.Toggle(ctx))
	assert.Equal(t, domain.StatusPaused, e.Status())
	require.NoError(t, e.Resume(ctx))
	assert.ErrorAs(t, e.Resume(ctx), &ise)
}

func TestEngine_Reset(t *testing.T) {
	ctx := context.Background()
	m := yesNo(t)
	e := runtime.NewEngine(m)
	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.SubmitAnswer(ctx, domain.Acknowledge()))

	e.Reset(ctx)

	s := e.State()
	assert.Equal(t, domain.StatusIdle, s.Status)
	assert.Empty(t, s.Visited)
	assert.Empty(t, s.Answers)
	assert.Empty(t, s.Trail)
	assert.Nil(t, s.StartedAt)
	assert.Equal(t, 4, m.Len(), "graph is untouched")
	require.NoError(t, e.Start(ctx))
}

func TestEngine_CyclesAreTolerated(t *testing.T) {
	ctx := context.Background()
	m := build(t, dsl.New("retry").
		Start("1", "s").Go("2").
		Question("2", "Fixed?", "Try again.").Yes("3").No("2").
		End("3", "done"))
	e := runtime.NewEngine(m)

	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.SubmitAnswer(ctx, domain.Acknowledge()))
	for range 3 {
		require.NoError(t, e.SubmitAnswer(ctx, domain.No()))
	}
	require.NoError(t, e.SubmitAnswer(ctx, domain.Yes()))

	assert.Equal(t, []string{"1", "2", "2", "2", "2", "3"}, e.State().Visited)
	assert.Equal(t, domain.Yes(), e.State().Answers["2"], "answer map keeps the latest")
}

func TestEngine_WarningRequiresAck(t *testing.T) {
	ctx := context.Background()
	m := build(t, dsl.New("w").
		Warning("1", "Unplug first", "Mains voltage inside.", domain.WarningDanger).Acknowledge().Go("2").
		End("2", "done"))
	e := runtime.NewEngine(m)
	require.NoError(t, e.Start(ctx))

	assert.ErrorIs(t, e.SubmitAnswer(ctx, domain.No()), domain.ErrInvalidAnswer)
	require.NoError(t, e.SubmitAnswer(ctx, domain.Acknowledge()))
	assert.Equal(t, "2", e.State().CurrentNodeID)
}

func TestEngine_Restore(t *testing.T) {
	ctx := context.Background()
	m := yesNo(t)
	first := runtime.NewEngine(m)
	require.NoError(t, first.Start(ctx))
	require.NoError(t, first.SubmitAnswer(ctx, domain.Acknowledge()))

	second := runtime.NewEngine(m)
	require.NoError(t, second.Restore(first.State()))
	require.NoError(t, second.SubmitAnswer(ctx, domain.Yes()))
	assert.Equal(t, []string{"1", "2", "3"}, second.State().Visited)
	assert.Equal(t, []string{"1", "2"}, first.State().Visited, "engines do not share state")

	bad := first.State()
	bad.CurrentNodeID = "ghost"
	var dre *domain.DanglingReferenceError
	assert.ErrorAs(t, second.Restore(bad), &dre)
}
