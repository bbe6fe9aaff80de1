package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/triage/pkg/adapters/memory"
	"github.com/aretw0/triage/pkg/adapters/redis"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/dsl"
	"github.com/aretw0/triage/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var printer = domain.DocumentKey{Name: "printer", Folder: "office"}

func newManager(t *testing.T, opts ...session.Option) (*session.Manager, *memory.Documents) {
	t.Helper()
	doc := dsl.New("printer").Folder("office").
		Start("1", "Printer offline").Go("2").
		Question("2", "Is it powered?", "Check the LED.").Yes("3").No("4").
		End("3", "Reinstall the driver").
		End("4", "Switch it on").
		Document()
	docs := memory.NewDocuments(doc)
	n := 0
	opts = append([]session.Option{session.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("s%d", n)
	})}, opts...)
	return session.NewManager(memory.NewStore(), docs, opts...), docs
}

func TestManager_GuidedRun(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)

	s, err := mgr.Start(ctx, printer)
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, "1", s.State.CurrentNodeID)

	s, diff, err := mgr.Answer(ctx, s.ID, domain.Acknowledge())
	require.NoError(t, err)
	require.NotNil(t, diff)
	assert.Equal(t, "2", *diff.CurrentNodeID)
	assert.Len(t, diff.Appended, 1)

	_, _, err = mgr.Answer(ctx, s.ID, domain.Choose("maybe"))
	assert.ErrorIs(t, err, domain.ErrInvalidAnswer)

	stored, err := mgr.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "2", stored.State.CurrentNodeID, "rejected answers are not persisted")

	_, _, err = mgr.Answer(ctx, s.ID, domain.Yes())
	require.NoError(t, err)
	s, _, err = mgr.Answer(ctx, s.ID, domain.Acknowledge())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, s.State.Status)
	assert.Equal(t, []string{"1", "2", "3"}, s.State.Visited)
}

func TestManager_PauseResumeReset(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	s, err := mgr.Start(ctx, printer)
	require.NoError(t, err)

	s, err = mgr.Pause(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, s.State.Status)

	_, _, err = mgr.Answer(ctx, s.ID, domain.Acknowledge())
	var ise *domain.InvalidStateError
	assert.ErrorAs(t, err, &ise)

	s, err = mgr.Resume(ctx, s.ID)
	require.NoError(t, err)
	_, _, err = mgr.Answer(ctx, s.ID, domain.Acknowledge())
	require.NoError(t, err)

	s, err = mgr.Reset(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, s.State.Visited)
	assert.Empty(t, s.State.Trail)
}

func TestManager_RefusesBrokenWorkflows(t *testing.T) {
	ctx := context.Background()
	mgr, docs := newManager(t)

	_, err := mgr.Start(ctx, domain.DocumentKey{Name: "missing"})
	var nf *domain.NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, err = docs.Save(ctx, dsl.New("loop").
		Info("A", "A", "a").Go("B").
		Info("B", "B", "b").Go("A").
		Document())
	require.NoError(t, err)
	_, err = mgr.Start(ctx, domain.DocumentKey{Name: "loop"})
	assert.ErrorIs(t, err, domain.ErrNotExecutable)

	_, err = mgr.Get(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_CompileCache(t *testing.T) {
	ctx := context.Background()
	mgr, docs := newManager(t)

	first, err := mgr.Compile(ctx, printer)
	require.NoError(t, err)
	again, err := mgr.Compile(ctx, printer)
	require.NoError(t, err)
	assert.Same(t, first, again)

	require.NoError(t, docs.Delete(ctx, printer.Name, printer.Folder))
	_, err = mgr.Compile(ctx, printer)
	assert.NoError(t, err, "cached graph survives until invalidated")

	mgr.Invalidate(printer)
	_, err = mgr.Compile(ctx, printer)
	var nf *domain.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestManager_ConcurrentAnswersAreSerialised(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newManager(t)
	s, err := mgr.Start(ctx, printer)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = mgr.Answer(ctx, s.ID, domain.Acknowledge())
		}()
	}
	wg.Wait()

	final, err := mgr.Get(ctx, s.ID)
	require.NoError(t, err)
	// 1 -> 2 by acknowledge, then every further acknowledge at the question has no
	// matching edge and completes the run; later ones hit a completed session.
	assert.Equal(t, domain.StatusCompleted, final.State.Status)
	assert.Len(t, final.State.Trail, 2, "no lost or duplicated updates")
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	mgr, _ := newManager(t, session.WithLocker(redis.NewLocker(client, "triage:"), time.Second))
	ctx := context.Background()

	s, err := mgr.Start(ctx, printer)
	require.NoError(t, err)
	_, _, err = mgr.Answer(ctx, s.ID, domain.Acknowledge())
	require.NoError(t, err)
	assert.False(t, mr.Exists("triage:lock:"+s.ID), "lock released after use")
}
