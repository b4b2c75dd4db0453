package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/wise-mentor/backend/internal/logger"
	"github.com/zhouzirui/wise-mentor/backend/internal/model/persona"
	"github.com/zhouzirui/wise-mentor/backend/internal/service/ai"
	"github.com/zhouzirui/wise-mentor/backend/internal/service/chat"
	"github.com/zhouzirui/wise-mentor/backend/internal/service/exchange"
)

func newTestRouter() http.Handler {
	log := logger.Discard()
	seed := persona.Seed()
	chatSvc := chat.NewService(seed[0].Greeting)
	session := ai.NewSession(nil, log)

	return NewRouter(Deps{
		Personas: persona.NewMemoryStore(seed),
		Persona:  seed[0],
		Chat:     chatSvc,
		Session:  session,
		Exchange: exchange.New(chatSvc, session, log),
		Logger:   log,
	})
}

func TestHealthzReportsProviderState(t *testing.T) {
	resp := httptest.NewRecorder()
	newTestRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok","providerConfigured":false,"busy":false}`, resp.Body.String())
	assert.NotEmpty(t, resp.Header().Get("X-Request-Id"))
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoutesAreMounted(t *testing.T) {
	r := newTestRouter()
	for _, path := range []string{"/api/personas", "/api/persona", "/api/transcript"} {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, resp.Code, path)
	}
}

func TestUnknownRoute(t *testing.T) {
	resp := httptest.NewRecorder()
	newTestRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
