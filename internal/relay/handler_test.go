package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandlerRouter(t *testing.T, env *testEnv) http.Handler {
	t.Helper()
	h := NewHandler(env.svc)
	r := chi.NewRouter()
	r.Get("/api/v1/conversations/{userID}/stats", h.ConversationStats)
	r.Post("/api/v1/conversations/clear", h.ClearConversation)
	return r
}

func TestHandler_ConversationStats(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{text: "ok"}, 10, 1000)
	env.svc.HandleMessage(context.Background(), "u1", textParts("hi"), nil)
	router := newHandlerRouter(t, env)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/conversations/u1/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"turns":2`)
	assert.Contains(t, rec.Body.String(), `"user_id":"u1"`)
}

func TestHandler_ClearConversation(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{text: "ok"}, 10, 1000)
	env.svc.HandleMessage(context.Background(), "u1", textParts("hi"), nil)
	router := newHandlerRouter(t, env)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/clear",
		strings.NewReader(`{"user_id":"u1"}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, env.svc.TurnCount(context.Background(), "u1"))
}

func TestHandler_ClearConversationValidation(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{}, 10, 1000)
	router := newHandlerRouter(t, env)

	for name, body := range map[string]string{
		"empty user id": `{"user_id":""}`,
		"missing field": `{}`,
		"not json":      `nope`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/clear",
				strings.NewReader(body))
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
