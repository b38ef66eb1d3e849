package copilot

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(repo *fakeRepo) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(newTestService(repo, nil), nil, testLogger()))
	return r
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Suggestions(t *testing.T) {
	rec := serve(newTestRouter(seededRepo()), http.MethodGet, "/api/copilot/suggestions/5511999991234?message=quero+picanha", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var p Payload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.True(t, p.CustomerInfo.IsNew)
	assert.NotEmpty(t, p.Suggestions)
	assert.NotEmpty(t, p.QuickActions)
}

func TestHandler_RejectsBadPhone(t *testing.T) {
	rec := serve(newTestRouter(seededRepo()), http.MethodGet, "/api/copilot/customer/12345", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
	assert.Contains(t, rec.Body.String(), "phoneNumber")
}

func TestHandler_UpdateName(t *testing.T) {
	repo := seededRepo()
	h := newTestRouter(repo)

	rec := serve(h, http.MethodPost, "/api/copilot/customer/5511999991234/name", `{"name":"  Ana Souza "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Ana Souza"`)
	assert.Equal(t, 1, repo.writes)

	rec = serve(h, http.MethodPost, "/api/copilot/customer/5511999991234/name", `{"name":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, repo.writes)
}

func TestHandler_UpdateNotesTooLong(t *testing.T) {
	repo := seededRepo()
	body, _ := json.Marshal(map[string]string{"notes": strings.Repeat("a", 10001)})

	rec := serve(newTestRouter(repo), http.MethodPost, "/api/copilot/customer/5511999991234/notes", string(body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, repo.writes)
}

func TestHandler_Products(t *testing.T) {
	rec := serve(newTestRouter(seededRepo()), http.MethodGet, "/api/products?category=bovinos", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var grouped map[string][]Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &grouped))
	assert.Len(t, grouped["bovinos"], 2)
	assert.NotContains(t, grouped, "suinos")
}

func TestHandler_RefreshWithoutCache(t *testing.T) {
	rec := serve(newTestRouter(seededRepo()), http.MethodPost, "/api/copilot/cache/refresh", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":0}`, rec.Body.String())
}

func newAIRouter(repo *fakeRepo, client *stubAI) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(newTestService(repo, client), nil, testLogger()))
	return r
}

func TestHandler_SuggestReply(t *testing.T) {
	h := newAIRouter(seededRepo(), &stubAI{available: true, reply: "Temos sim! Quer que eu separe 1kg?"})

	rec := serve(h, http.MethodPost, "/api/ai/suggest", `{"phoneNumber":"5511999991234","message":"tem picanha?"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"suggestion":"Temos sim! Quer que eu separe 1kg?"}`, rec.Body.String())
}

func TestHandler_SuggestReplyErrors(t *testing.T) {
	body := `{"phoneNumber":"5511999991234","message":"tem picanha?"}`

	rec := serve(newAIRouter(seededRepo(), &stubAI{}), http.MethodPost, "/api/ai/suggest", body)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "AI_UNAVAILABLE")

	rec = serve(newAIRouter(seededRepo(), &stubAI{available: true, reply: "  "}), http.MethodPost, "/api/ai/suggest", body)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "SUGGESTION_FAILED")

	rec = serve(newAIRouter(seededRepo(), &stubAI{available: true}), http.MethodPost, "/api/ai/suggest", `{"phoneNumber":"123","message":"oi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}
