package store_test

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veltrix/chatgate/pkg/store"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestFileStore_RoundTrip(t *testing.T) {
	fileStore, err := store.NewFileStore(t.TempDir(), newTestLogger())
	require.NoError(t, err)
	ctx := context.Background()

	_, ok := fileStore.Get(ctx, "ratelimit:minute:u1:1.2.3.4")
	assert.False(t, ok)

	require.NoError(t, fileStore.Put(ctx, "ratelimit:minute:u1:1.2.3.4", []byte(`{"count":3}`)))

	data, ok := fileStore.Get(ctx, "ratelimit:minute:u1:1.2.3.4")
	assert.True(t, ok)
	assert.Equal(t, []byte(`{"count":3}`), data)
}

func TestFileStore_KeysSurviveEscaping(t *testing.T) {
	fileStore, err := store.NewFileStore(t.TempDir(), newTestLogger())
	require.NoError(t, err)
	ctx := context.Background()

	keys := []string{
		"ratelimit:minute:u1:1.2.3.4",
		"ratelimit:iphour:2001:db8::1",
		"tokens:some_user-42",
	}
	for _, key := range keys {
		require.NoError(t, fileStore.Put(ctx, key, []byte("{}")))
	}

	listed, err := fileStore.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, keys, listed)
}

func TestFileStore_DeleteIsIdempotent(t *testing.T) {
	fileStore, err := store.NewFileStore(t.TempDir(), newTestLogger())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fileStore.Put(ctx, "tokens:u1", []byte("{}")))
	assert.NoError(t, fileStore.Delete(ctx, "tokens:u1"))
	assert.NoError(t, fileStore.Delete(ctx, "tokens:u1"))

	_, ok := fileStore.Get(ctx, "tokens:u1")
	assert.False(t, ok)
}

func TestFileStore_OverwriteReplacesRecord(t *testing.T) {
	fileStore, err := store.NewFileStore(t.TempDir(), newTestLogger())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fileStore.Put(ctx, "tokens:u1", []byte(`{"total":1}`)))
	require.NoError(t, fileStore.Put(ctx, "tokens:u1", []byte(`{"total":2}`)))

	data, ok := fileStore.Get(ctx, "tokens:u1")
	assert.True(t, ok)
	assert.Equal(t, []byte(`{"total":2}`), data)
}

func TestPurgeMatching(t *testing.T) {
	memStore := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, memStore.Put(ctx, "ratelimit:minute:alice:1.2.3.4", []byte("{}")))
	require.NoError(t, memStore.Put(ctx, "ratelimit:hour:alice:1.2.3.4", []byte("{}")))
	require.NoError(t, memStore.Put(ctx, "tokens:alice", []byte("{}")))
	require.NoError(t, memStore.Put(ctx, "tokens:bob", []byte("{}")))

	deleted, err := store.PurgeMatching(ctx, memStore, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	keys, err := memStore.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tokens:bob"}, keys)
}
