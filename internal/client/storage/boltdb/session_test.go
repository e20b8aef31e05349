package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/docsync/internal/client/storage"
)

// создаём тестовое BoltDB хранилище
func createTestStorage(t *testing.T) *Storage {
	dbPath := filepath.Join(t.TempDir(), "session_test.db")

	store, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestStorage_SaveGetDeleteSession(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	session := &storage.Session{
		Server:      "http://localhost:8080",
		UserID:      "u-alice",
		Name:        "Alice",
		AccessToken: "token",
		Space:       "s1",
		Environment: "master",
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	}

	// До сохранения сессии нет
	_, err := store.GetSession(ctx)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)

	require.NoError(t, store.SaveSession(ctx, session))

	got, err := store.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, session, got)

	// Повторный login заменяет сессию
	replaced := *session
	replaced.UserID = "u-bob"
	require.NoError(t, store.SaveSession(ctx, &replaced))
	got, err = store.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u-bob", got.UserID)

	require.NoError(t, store.DeleteSession(ctx))
	_, err = store.GetSession(ctx)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)

	err = store.DeleteSession(ctx)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestStorage_SessionSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	store, err := New(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.SaveSession(ctx, &storage.Session{Server: "http://x", UserID: "u-alice", AccessToken: "t"}))
	require.NoError(t, store.Close())

	store, err = New(ctx, dbPath)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u-alice", got.UserID)
}
