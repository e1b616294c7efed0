package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veltrix/chatgate/pkg/conversation"
	"github.com/veltrix/chatgate/pkg/handlers"
	"github.com/veltrix/chatgate/pkg/store"
)

type adminFixture struct {
	app         *fiber.App
	counters    store.Store
	transcripts *conversation.TranscriptStore
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	logger := newTestLogger()
	counters := store.NewMemoryStore()
	transcripts := conversation.NewTranscriptStore(store.NewMemoryStore(), 40, logger, nil)

	handler := handlers.NewAdminHandler(logger, counters, transcripts)

	app := fiber.New()
	app.Get("/admin/keys", handler.ListKeys)
	app.Delete("/admin/keys", handler.PurgeKeys)
	app.Get("/admin/conversations/:user_id", handler.GetConversation)
	app.Delete("/admin/users/:user_id", handler.DeleteUser)

	return &adminFixture{app: app, counters: counters, transcripts: transcripts}
}

func (f *adminFixture) request(t *testing.T, method, target string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestAdminHandler_ListKeys(t *testing.T) {
	fixture := newAdminFixture(t)
	ctx := context.Background()
	require.NoError(t, fixture.counters.Put(ctx, "tokens:alice", []byte("{}")))
	require.NoError(t, fixture.counters.Put(ctx, "ratelimit:minute:alice:1.2.3.4", []byte("{}")))

	resp := fixture.request(t, http.MethodGet, "/admin/keys")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(2), body["count"])
}

func TestAdminHandler_PurgeKeysRequiresMatch(t *testing.T) {
	fixture := newAdminFixture(t)

	resp := fixture.request(t, http.MethodDelete, "/admin/keys")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminHandler_PurgeKeys(t *testing.T) {
	fixture := newAdminFixture(t)
	ctx := context.Background()
	require.NoError(t, fixture.counters.Put(ctx, "tokens:alice", []byte("{}")))
	require.NoError(t, fixture.counters.Put(ctx, "tokens:bob", []byte("{}")))

	resp := fixture.request(t, http.MethodDelete, "/admin/keys?match=alice")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["deleted"])

	keys, err := fixture.counters.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tokens:bob"}, keys)
}

func TestAdminHandler_GetConversation(t *testing.T) {
	fixture := newAdminFixture(t)
	ctx := context.Background()
	fixture.transcripts.Append(ctx, "alice-42",
		fixture.transcripts.NewMessage(conversation.RoleUser, "hello"),
		fixture.transcripts.NewMessage(conversation.RoleAssistant, "hi"),
	)

	resp := fixture.request(t, http.MethodGet, "/admin/conversations/alice-42")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "alice-42", body["user_id"])
	messages, ok := body["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestAdminHandler_DeleteUser(t *testing.T) {
	fixture := newAdminFixture(t)
	ctx := context.Background()
	require.NoError(t, fixture.counters.Put(ctx, "tokens:alice-42", []byte("{}")))
	require.NoError(t, fixture.counters.Put(ctx, "ratelimit:minute:alice-42:1.2.3.4", []byte("{}")))
	require.NoError(t, fixture.counters.Put(ctx, "tokens:bob", []byte("{}")))
	fixture.transcripts.Append(ctx, "alice-42",
		fixture.transcripts.NewMessage(conversation.RoleUser, "hello"))

	resp := fixture.request(t, http.MethodDelete, "/admin/users/alice-42")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(2), body["deleted_records"])

	assert.Empty(t, fixture.transcripts.History(ctx, "alice-42"))
	keys, err := fixture.counters.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tokens:bob"}, keys)
}
