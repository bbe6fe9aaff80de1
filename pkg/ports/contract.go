package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractDocument(name, folder string) *domain.Document {
	return &domain.Document{
		Metadata: domain.DocumentMetadata{Name: name, Folder: folder, IsActive: true},
		Nodes: []domain.Node{
			{ID: "1", Kind: domain.KindStart, Title: "Start"},
			{ID: "2", Kind: domain.KindQuestion, Title: "Q", Content: "?", Payload: &domain.ChoicePayload{Options: domain.YesNoOptions()}},
			{ID: "3", Kind: domain.KindEnd, Title: "End", Payload: &domain.EndPayload{Outcome: domain.OutcomeResolved}},
		},
		Edges: []domain.Edge{
			{ID: "e1-2", Source: "1", Target: "2"},
			{ID: "e2-3-yes", Source: "2", Target: "3", Branch: domain.BranchYes},
		},
		NodeCounter: 4,
	}
}

// RunDocumentStoreContract verifies that a DocumentStore implementation
// adheres to the defined interface contract.
func RunDocumentStoreContract(t *testing.T, store DocumentStore) {
	ctx := context.Background()
	folder := "contract-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		doc := contractDocument("printer", folder)

		saved, err := store.Save(ctx, doc)
		require.NoError(t, err)
		assert.False(t, saved.Metadata.CreatedAt.IsZero(), "CreatedAt is stamped")
		assert.False(t, saved.Metadata.UpdatedAt.IsZero(), "UpdatedAt is stamped")

		loaded, err := store.Load(ctx, "printer", folder)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, doc.Nodes, loaded.Nodes)
		assert.Equal(t, doc.Edges, loaded.Edges)
		assert.Equal(t, doc.NodeCounter, loaded.NodeCounter)
		assert.True(t, saved.Metadata.UpdatedAt.Equal(loaded.Metadata.UpdatedAt))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		loaded, err := store.Load(ctx, "missing", folder)
		assert.NoError(t, err, "missing documents are not an error")
		assert.Nil(t, loaded)
	})

	t.Run("Last Write Wins", func(t *testing.T) {
		first, err := store.Save(ctx, contractDocument("router", folder))
		require.NoError(t, err)

		doc := contractDocument("router", folder)
		doc.Nodes[0].Title = "Updated"
		second, err := store.Save(ctx, doc)
		require.NoError(t, err)
		assert.True(t, first.Metadata.CreatedAt.Equal(second.Metadata.CreatedAt), "CreatedAt survives overwrites")

		loaded, err := store.Load(ctx, "router", folder)
		require.NoError(t, err)
		assert.Equal(t, "Updated", loaded.Nodes[0].Title)
	})

	t.Run("Folders Are Separate", func(t *testing.T) {
		_, err := store.Save(ctx, contractDocument("printer", folder+"-other"))
		require.NoError(t, err)

		list, err := store.List(ctx, folder)
		require.NoError(t, err)
		names := make([]string, len(list))
		for i, m := range list {
			names[i] = m.Name
			assert.Equal(t, folder, m.Folder)
		}
		assert.Equal(t, []string{"printer", "router"}, names)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "printer", folder))
		require.NoError(t, store.Delete(ctx, "printer", folder), "Delete is idempotent")

		loaded, err := store.Load(ctx, "printer", folder)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		other, err := store.Load(ctx, "printer", folder+"-other")
		require.NoError(t, err)
		assert.NotNil(t, other)
	})
}

// RunSessionStoreContract verifies that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	newSession := func(id string) *domain.Session {
		s := domain.NewExecutionState()
		s.Status = domain.StatusRunning
		s.CurrentNodeID = "2"
		s.Visited = []string{"1", "2"}
		s.Answers["1"] = domain.Acknowledge()
		s.Trail = []domain.AuditEntry{{NodeID: "1", Answer: domain.Acknowledge(), Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}}
		return &domain.Session{ID: id, Workflow: domain.DocumentKey{Name: "printer"}, State: s}
	}

	t.Run("Save and Load", func(t *testing.T) {
		session := newSession(sessionID)
		require.NoError(t, store.Save(ctx, session))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, session.Workflow, loaded.Workflow)
		assert.Equal(t, session.State.CurrentNodeID, loaded.State.CurrentNodeID)
		assert.Equal(t, session.State.Visited, loaded.State.Visited)
		assert.Equal(t, session.State.Answers, loaded.State.Answers)
		require.Len(t, loaded.State.Trail, 1)
		assert.True(t, session.State.Trail[0].Timestamp.Equal(loaded.State.Trail[0].Timestamp))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newSession(sessionID)))
		require.NoError(t, store.Delete(ctx, sessionID))

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, newSession(id1)))
		require.NoError(t, store.Save(ctx, newSession(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
