package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vovarama1992/ebeef-copilot/internal/ai"
	"github.com/Vovarama1992/ebeef-copilot/internal/copilot"
)

func (h *harness) router(opts WebhookOptions) http.Handler {
	r := chi.NewRouter()
	handler := NewHandler(h.svc, opts, testLogger())
	RegisterWebhookRoutes(r, handler)
	RegisterRoutes(r, handler)
	return r
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func post(target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func envelope(msg string) string {
	return `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"messages":[` + msg + `]}}]}]}`
}

func TestVerifyWebhook(t *testing.T) {
	r := newHarness().router(WebhookOptions{VerifyToken: "tok"})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=42", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Body.String())

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=42", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/webhook?hub.challenge=42", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleWebhook_TextMessage(t *testing.T) {
	h := newHarness()
	body := envelope(`{"from":"5511999991234","id":"wamid.A","type":"text","text":{"body":"Oi"}}`)

	rec := serve(h.router(WebhookOptions{}), post("/webhook", body))
	require.Equal(t, http.StatusOK, rec.Code)

	users := h.repo.bySender(phone, SenderUser)
	require.Len(t, users, 1)
	assert.Equal(t, "Oi", users[0].Text)
	require.NotNil(t, users[0].ExternalID)
	assert.Equal(t, "wamid.A", *users[0].ExternalID)

	// redelivery is acknowledged but ignored
	rec = serve(h.router(WebhookOptions{}), post("/webhook", body))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, h.repo.bySender(phone, SenderUser), 1)
}

func TestHandleWebhook_MediaPlaceholder(t *testing.T) {
	h := newHarness()
	body := envelope(`{"from":"5511999991234","id":"wamid.B","type":"image","image":{"id":"x"}}`)

	rec := serve(h.router(WebhookOptions{}), post("/webhook", body))
	require.Equal(t, http.StatusOK, rec.Code)
	users := h.repo.bySender(phone, SenderUser)
	require.Len(t, users, 1)
	assert.Equal(t, "[Media/Other]", users[0].Text)
}

func TestHandleWebhook_NoObjectOrNoMessage(t *testing.T) {
	h := newHarness()
	r := h.router(WebhookOptions{})

	rec := serve(r, post("/webhook", `{"entry":[]}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	status := `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.A"}]}}]}]}`
	rec = serve(r, post("/webhook", status))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, post("/webhook", `not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, h.hub.names())
}

func TestHandleWebhook_Signature(t *testing.T) {
	h := newHarness()
	r := h.router(WebhookOptions{AppSecret: "s3cret", VerifySignature: true})
	body := envelope(`{"from":"5511999991234","id":"wamid.C","type":"text","text":{"body":"Oi"}}`)

	rec := serve(r, post("/webhook", body))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "SIGNATURE_MISSING")

	req := post("/webhook", body)
	req.Header.Set("X-Hub-Signature-256", Sign("wrong", []byte(body)))
	rec = serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "SIGNATURE_INVALID")
	assert.Empty(t, h.repo.bySender(phone, SenderUser))

	req = post("/webhook", body)
	req.Header.Set("X-Hub-Signature-256", Sign("s3cret", []byte(body)))
	rec = serve(r, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, h.repo.bySender(phone, SenderUser), 1)
}

func TestHandleWebhook_SignatureWithoutSecret(t *testing.T) {
	r := newHarness().router(WebhookOptions{VerifySignature: true})
	req := post("/webhook", envelope(`{"from":"5511999991234","id":"wamid.D","text":{"body":"Oi"}}`))
	req.Header.Set("X-Hub-Signature-256", "sha256=00")

	rec := serve(r, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "CONFIG_ERROR")
}

func TestHandleWebhook_PersistenceFailure(t *testing.T) {
	h := newHarness()
	h.repo.saveErr = errDB

	rec := serve(h.router(WebhookOptions{}), post("/webhook", envelope(`{"from":"5511999991234","id":"wamid.E","text":{"body":"Oi"}}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestSend(t *testing.T) {
	h := newHarness()
	r := h.router(WebhookOptions{})

	rec := serve(r, post("/api/send", `{"to":"5511999991234","text":"Olá"}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err := h.repo.GetOrCreateConversation(context.Background(), phone)
	require.NoError(t, err)

	rec = serve(r, post("/api/send", `{"to":"5511999991234","text":"Olá"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = serve(r, post("/api/send", `{"to":"12345","text":"   "}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"to"`)
	assert.Contains(t, rec.Body.String(), `"text"`)
	assert.Len(t, h.out.sent, 1)
}

func TestSetModeHandler(t *testing.T) {
	h := newHarness()
	r := h.router(WebhookOptions{})
	_, err := h.repo.GetOrCreateConversation(context.Background(), phone)
	require.NoError(t, err)

	rec := serve(r, post("/api/mode", `{"to":"5511999991234","mode":"HUMAN"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, post("/api/mode", `{"to":"5511999990000","mode":"AI"}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(r, post("/api/mode", `{"to":"5511999991234","mode":"OPERATOR"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"mode":"OPERATOR"}`, rec.Body.String())
	assert.Equal(t, []string{EventModeChange}, h.hub.names())
}

func TestSummarizeHandler(t *testing.T) {
	h := newHarness()
	r := h.router(WebhookOptions{})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/ai/summarize/5511999991234", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.ai.available = true
	h.ai.err = errDB
	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/ai/summarize/5511999991234", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "SUMMARY_FAILED")

	h.ai.err = nil
	h.ai.reply = "resumo"
	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/ai/summarize/5511999991234", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"phoneNumber":"5511999991234","summary":"resumo"}`, rec.Body.String())

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/ai/summarize/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConversations_MarshalKeepsOrder(t *testing.T) {
	list := Conversations{
		{PhoneNumber: "5511900000002", Mode: ModeOperator, Status: StatusActive, Messages: []WireMessage{}},
		{PhoneNumber: "5511900000001", Mode: ModeAI, Status: StatusActive, Messages: []WireMessage{{Sender: SenderUser, Text: "Oi", Timestamp: 1}},
			Customer: &CustomerSummary{Name: "Ana"}},
	}

	b, err := json.Marshal(list)
	require.NoError(t, err)
	s := string(b)
	assert.Less(t, strings.Index(s, "5511900000002"), strings.Index(s, "5511900000001"))
	assert.JSONEq(t, `{
		"5511900000002":{"mode":"OPERATOR","status":"active","messages":[],"customer":null},
		"5511900000001":{"mode":"AI","status":"active","messages":[{"sender":"user","text":"Oi","timestamp":1}],
			"customer":{"name":"Ana","email":"","notes":""}}
	}`, s)

	b, err = json.Marshal(Conversations{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))
}

func TestHandler_Recommendations(t *testing.T) {
	h := newHarness()
	rec := serve(h.router(WebhookOptions{}), httptest.NewRequest(http.MethodGet, "/api/ai/recommendations/"+phone, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"recommendations":[{"productName":"Picanha","reason":"churrasco no sábado","priority":1}],"conversationalSuggestion":"Que tal uma picanha para sábado?"}`, rec.Body.String())
}

func TestHandler_RecommendationsErrors(t *testing.T) {
	h := newHarness()
	h.advisor.err = fmt.Errorf("%w: bad json", copilot.ErrRecommendationFailed)
	rec := serve(h.router(WebhookOptions{}), httptest.NewRequest(http.MethodGet, "/api/ai/recommendations/"+phone, nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "RECOMMENDATION_FAILED")

	h.advisor.err = ai.ErrUnavailable
	rec = serve(h.router(WebhookOptions{}), httptest.NewRequest(http.MethodGet, "/api/ai/recommendations/"+phone, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(h.router(WebhookOptions{}), httptest.NewRequest(http.MethodGet, "/api/ai/recommendations/123", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
