package whatsapp

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Vovarama1992/ebeef-copilot/internal/ai"
	"github.com/Vovarama1992/ebeef-copilot/internal/copilot"
	"github.com/Vovarama1992/ebeef-copilot/internal/httputil"
	"github.com/Vovarama1992/ebeef-copilot/internal/validate"
)

const maxWebhookBody = 1 << 20

const mediaPlaceholder = "[Media/Other]"

type WebhookOptions struct {
	VerifyToken string
	AppSecret   string
	// VerifySignature enforces X-Hub-Signature-256 on POST /webhook.
	VerifySignature bool
}

type Handler struct {
	svc    Service
	opts   WebhookOptions
	logger *slog.Logger
}

func NewHandler(svc Service, opts WebhookOptions, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, opts: opts, logger: logger.With("module", "whatsapp")}
}

// VerifyWebhook — GET /webhook subscription handshake
func (h *Handler) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, token := q.Get("hub.mode"), q.Get("hub.verify_token")
	if mode == "" || token == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if mode != "subscribe" || h.opts.VerifyToken == "" || token != h.opts.VerifyToken {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	h.logger.Info("webhook verified")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, q.Get("hub.challenge"))
}

type webhookEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Type string `json:"type"`
					Text *struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// inbound extracts the first message of the first change, if any.
func (e *webhookEnvelope) inbound() (Inbound, bool) {
	if len(e.Entry) == 0 || len(e.Entry[0].Changes) == 0 {
		return Inbound{}, false
	}
	msgs := e.Entry[0].Changes[0].Value.Messages
	if len(msgs) == 0 || msgs[0].From == "" {
		return Inbound{}, false
	}
	m := msgs[0]
	text := mediaPlaceholder
	if m.Text != nil {
		text = m.Text.Body
	}
	return Inbound{From: m.From, Text: text, ExternalID: m.ID}, true
}

// HandleWebhook — POST /webhook from the WhatsApp Cloud API
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httputil.BadRequest(w, "unreadable body")
		return
	}

	if h.opts.VerifySignature {
		sig := r.Header.Get("X-Hub-Signature-256")
		switch {
		case sig == "":
			h.logger.Warn("webhook without signature")
			httputil.Error(w, http.StatusUnauthorized, "SIGNATURE_MISSING", "Missing signature")
			return
		case h.opts.AppSecret == "":
			h.logger.Error("WHATSAPP_APP_SECRET not configured")
			httputil.Error(w, http.StatusInternalServerError, "CONFIG_ERROR", "Server configuration error")
			return
		case !ValidSignature(h.opts.AppSecret, body, sig):
			h.logger.Warn("invalid webhook signature")
			httputil.Error(w, http.StatusUnauthorized, "SIGNATURE_INVALID", "Invalid signature")
			return
		}
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		httputil.BadRequest(w, "invalid json")
		return
	}
	if env.Object == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	in, ok := env.inbound()
	if !ok {
		// status updates and other notifications
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, err := h.svc.HandleIncoming(r.Context(), in); err != nil {
		httputil.InternalError(w, h.logger, err)
		return
	}

	// the provider only needs the ACK
	w.WriteHeader(http.StatusOK)
}

// Conversations — GET /api/conversations
func (h *Handler) Conversations(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListConversations(r.Context())
	if err != nil {
		httputil.InternalError(w, h.logger, err)
		return
	}
	httputil.OK(w, list)
}

type sendRequest struct {
	To   string `json:"to" validate:"required,br_phone"`
	Text string `json:"text" validate:"required,min=1,max=4096"`
}

// Send — POST /api/send
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if err := validate.Struct(req); err != nil {
		httputil.ValidationFailed(w, err)
		return
	}

	err := h.svc.SendOperatorMessage(r.Context(), req.To, req.Text)
	if errors.Is(err, ErrConversationNotFound) {
		httputil.NotFound(w, "Conversa não encontrada")
		return
	}
	if err != nil {
		httputil.InternalError(w, h.logger, err)
		return
	}
	httputil.OK(w, map[string]bool{"success": true})
}

type modeRequest struct {
	To   string `json:"to" validate:"required,br_phone"`
	Mode string `json:"mode" validate:"required,oneof=AI OPERATOR"`
}

// SetMode — POST /api/mode
func (h *Handler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		httputil.ValidationFailed(w, err)
		return
	}

	conv, err := h.svc.SetMode(r.Context(), req.To, Mode(req.Mode))
	if errors.Is(err, ErrConversationNotFound) {
		httputil.NotFound(w, "Conversa não encontrada")
		return
	}
	if err != nil {
		httputil.InternalError(w, h.logger, err)
		return
	}
	httputil.OK(w, map[string]any{"success": true, "mode": conv.Mode})
}

// Summarize — GET /api/ai/summarize/{phoneNumber}
func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phoneNumber")
	if err := validate.Phone("phoneNumber", phone); err != nil {
		httputil.ValidationFailed(w, err)
		return
	}

	summary, err := h.svc.Summarize(r.Context(), phone)
	switch {
	case errors.Is(err, ai.ErrUnavailable):
		httputil.Error(w, http.StatusServiceUnavailable, "AI_UNAVAILABLE", "IA não disponível")
	case errors.Is(err, ErrSummaryFailed):
		h.logger.Warn("summary failed", "phone", phone, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "SUMMARY_FAILED", "Falha ao resumir conversa")
	case err != nil:
		httputil.InternalError(w, h.logger, err)
	default:
		httputil.OK(w, map[string]string{"phoneNumber": phone, "summary": summary})
	}
}

// Recommendations — GET /api/ai/recommendations/{phoneNumber}
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phoneNumber")
	if err := validate.Phone("phoneNumber", phone); err != nil {
		httputil.ValidationFailed(w, err)
		return
	}

	rec, err := h.svc.RecommendProducts(r.Context(), phone)
	switch {
	case errors.Is(err, ai.ErrUnavailable):
		httputil.Error(w, http.StatusServiceUnavailable, "AI_UNAVAILABLE", "IA não disponível")
	case errors.Is(err, copilot.ErrRecommendationFailed):
		h.logger.Warn("recommendation failed", "phone", phone, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "RECOMMENDATION_FAILED", "Falha ao gerar recomendações")
	case err != nil:
		httputil.InternalError(w, h.logger, err)
	default:
		httputil.OK(w, rec)
	}
}
