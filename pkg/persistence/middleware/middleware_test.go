package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/aretw0/triage/pkg/adapters/memory"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/persistence/middleware"
	"github.com/aretw0/triage/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, middleware.KeySize)
	_, err := rand.Read(k)
	require.NoError(t, err)
	return k
}

func encryption(t *testing.T, cfg middleware.EncryptionConfig) middleware.Middleware {
	t.Helper()
	mw, err := middleware.NewEncryption(cfg)
	require.NoError(t, err)
	return mw
}

func noteSession(id, note string) *domain.Session {
	s := domain.NewExecutionState()
	s.Status = domain.StatusRunning
	s.CurrentNodeID = "3"
	s.Visited = []string{"1", "2", "3"}
	s.Answers["2"] = domain.Note(note)
	s.Trail = []domain.AuditEntry{
		{NodeID: "1", Answer: domain.Acknowledge(), Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		{NodeID: "2", Answer: domain.Note(note), Timestamp: time.Date(2026, 3, 1, 9, 1, 0, 0, time.UTC)},
	}
	return &domain.Session{ID: id, Workflow: domain.DocumentKey{Name: "printer", Folder: "office"}, State: s}
}

func TestEncryption_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, encryption(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})(memory.NewStore()))
}

func TestEncryption_Roundtrip(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewStore()
	secure := encryption(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})(backend)

	original := noteSession("s1", "serial 4711")
	require.NoError(t, secure.Save(ctx, original))

	stored, err := backend.Load(ctx, "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Sealed)
	assert.Equal(t, domain.StatusRunning, stored.State.Status, "status stays readable")
	assert.Equal(t, original.Workflow, stored.Workflow)
	assert.Empty(t, stored.State.Trail)
	assert.Empty(t, stored.State.Answers)
	assert.NotContains(t, stored.Sealed, "4711")

	loaded, err := secure.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, loaded.Sealed)
	assert.Equal(t, original.State.Answers, loaded.State.Answers)
	assert.Equal(t, original.State.Visited, loaded.State.Visited)
}

func TestEncryption_KeyRotation(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)

	oldStore := encryption(t, middleware.EncryptionConfig{ActiveKey: oldKey})(backend)
	require.NoError(t, oldStore.Save(ctx, noteSession("s1", "old")))

	newStore := encryption(t, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})(backend)
	loaded, err := newStore.Load(ctx, "s1")
	require.NoError(t, err, "fallback key decrypts")
	assert.Equal(t, "old", loaded.State.Answers["2"].Text)

	loaded.State.Answers["2"] = domain.Note("new")
	require.NoError(t, newStore.Save(ctx, loaded))

	_, err = oldStore.Load(ctx, "s1")
	assert.Error(t, err, "re-sealed with the new key only")
}

func TestEncryption_RefusesPlainSessions(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewStore()
	require.NoError(t, backend.Save(ctx, noteSession("s1", "plain")))

	_, err := encryption(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})(backend).Load(ctx, "s1")
	assert.Error(t, err)
}

func TestEncryption_InvalidKeys(t *testing.T) {
	_, err := middleware.NewEncryption(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.Error(t, err)

	_, err = middleware.NewEncryption(middleware.EncryptionConfig{ActiveKey: generateKey(t), FallbackKeys: [][]byte{{1, 2}}})
	assert.Error(t, err)
}

func TestDecodeKey(t *testing.T) {
	key := generateKey(t)

	got, err := middleware.DecodeKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	got, err = middleware.DecodeKey(base64.RawURLEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.DecodeKey("c2hvcnQ=")
	assert.Error(t, err)
}

func TestRedaction(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewStore()
	mw, err := middleware.NewRedaction([]string{`\b\d{3}-\d{2}-\d{4}\b`, `(?i)password=\S+`})
	require.NoError(t, err)
	store := mw(backend)

	session := noteSession("s1", "caller 999-99-9999 said password=hunter2 works")
	require.NoError(t, store.Save(ctx, session))

	assert.Equal(t, "caller 999-99-9999 said password=hunter2 works", session.State.Answers["2"].Text, "caller copy untouched")

	stored, err := backend.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "caller *** said *** works", stored.State.Answers["2"].Text)
	assert.Equal(t, "caller *** said *** works", stored.State.Trail[1].Answer.Text)
	assert.Equal(t, domain.Acknowledge(), stored.State.Trail[0].Answer)

	_, err = middleware.NewRedaction([]string{"("})
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewStore()
	redact, err := middleware.NewRedaction([]string{"secret"})
	require.NoError(t, err)
	key := generateKey(t)

	store := middleware.Chain(backend, redact, encryption(t, middleware.EncryptionConfig{ActiveKey: key}))
	require.NoError(t, store.Save(ctx, noteSession("s1", "top secret")))

	stored, err := backend.Load(ctx, "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Sealed, "encryption is the innermost layer")

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "top ***", loaded.State.Answers["2"].Text)
}
