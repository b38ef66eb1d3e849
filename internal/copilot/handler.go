package copilot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Vovarama1992/ebeef-copilot/internal/ai"
	"github.com/Vovarama1992/ebeef-copilot/internal/httputil"
	"github.com/Vovarama1992/ebeef-copilot/internal/validate"
)

// Refresher drops cached reference data after it was edited elsewhere.
type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

type Handler struct {
	svc       Service
	refresher Refresher
	logger    *slog.Logger
}

// NewHandler wires the copilot HTTP surface; refresher may be nil when no
// cache is configured.
func NewHandler(svc Service, refresher Refresher, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, refresher: refresher, logger: logger.With("module", "copilot")}
}

func (h *Handler) phoneParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	phone := chi.URLParam(r, "phoneNumber")
	if err := validate.Phone("phoneNumber", phone); err != nil {
		httputil.ValidationFailed(w, err)
		return "", false
	}
	return phone, true
}

// Suggestions — GET /api/copilot/suggestions/{phoneNumber}?message=
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	phone, ok := h.phoneParam(w, r)
	if !ok {
		return
	}
	payload, err := h.svc.Generate(r.Context(), phone, r.URL.Query().Get("message"))
	if err != nil {
		httputil.InternalError(w, h.logger, err)
		return
	}
	httputil.OK(w, payload)
}

// Customer — GET /api/copilot/customer/{phoneNumber}
func (h *Handler) Customer(w http.ResponseWriter, r *http.Request) {
	phone, ok := h.phoneParam(w, r)
	if !ok {
		return
	}
	cc, err := h.svc.CustomerContext(r.Context(), phone)
	if err != nil {
		httputil.InternalError(w, h.logger, err)
		return
	}
	httputil.OK(w, cc)
}

// Purchases — GET /api/copilot/customer/{phoneNumber}/purchases
func (h *Handler) Purchases(w http.ResponseWriter, r *http.Request) {
	phone, ok := h.phoneParam(w, r)
	if !ok {
		return
	}
	purchases, err := h.svc.PurchaseHistory(r.Context(), phone)
	if err != nil {
		httputil.InternalError(w, h.logger, err)
		return
	}
	httputil.OK(w, purchases)
}

// UpdateNotes — POST /api/copilot/customer/{phoneNumber}/notes
func (h *Handler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	phone, ok := h.phoneParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Notes string `json:"notes" validate:"max=10000"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	if err := validate.Struct(body); err != nil {
		httputil.ValidationFailed(w, err)
		return
	}
	customer, err := h.svc.UpdateCustomerNotes(r.Context(), phone, body.Notes)
	if err != nil {
		httputil.InternalError(w, h.logger, err)
		return
	}
	httputil.OK(w, customer)
}

// UpdateName — POST /api/copilot/customer/{phoneNumber}/name
func (h *Handler) UpdateName(w http.ResponseWriter, r *http.Request) {
	phone, ok := h.phoneParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Name string `json:"name" validate:"required,min=1,max=200"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if err := validate.Struct(body); err != nil {
		httputil.ValidationFailed(w, err)
		return
	}
	customer, err := h.svc.UpdateCustomerName(r.Context(), phone, body.Name)
	if err != nil {
		httputil.InternalError(w, h.logger, err)
		return
	}
	httputil.OK(w, customer)
}

// SuggestReply — POST /api/ai/suggest
func (h *Handler) SuggestReply(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PhoneNumber string `json:"phoneNumber" validate:"required,br_phone"`
		Message     string `json:"message" validate:"required,max=4096"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	body.Message = strings.TrimSpace(body.Message)
	if err := validate.Struct(body); err != nil {
		httputil.ValidationFailed(w, err)
		return
	}

	suggestion, err := h.svc.SuggestReply(r.Context(), body.PhoneNumber, body.Message)
	switch {
	case errors.Is(err, ai.ErrUnavailable):
		httputil.Error(w, http.StatusServiceUnavailable, "AI_UNAVAILABLE", "IA não disponível")
	case errors.Is(err, ErrSuggestionFailed):
		h.logger.Warn("operator suggestion failed", "phone", body.PhoneNumber, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "SUGGESTION_FAILED", "Falha ao gerar sugestão")
	case err != nil:
		httputil.InternalError(w, h.logger, err)
	default:
		httputil.OK(w, map[string]string{"suggestion": suggestion})
	}
}

// Products — GET /api/products?category=
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.svc.ProductsByCategory(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		httputil.InternalError(w, h.logger, err)
		return
	}
	httputil.OK(w, grouped)
}

// SearchProducts — GET /api/products/search?q=
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.SearchProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		httputil.InternalError(w, h.logger, err)
		return
	}
	httputil.OK(w, products)
}

// Promotions — GET /api/promotions
func (h *Handler) Promotions(w http.ResponseWriter, r *http.Request) {
	promos, err := h.svc.ActivePromotions(r.Context())
	if err != nil {
		httputil.InternalError(w, h.logger, err)
		return
	}
	httputil.OK(w, promos)
}

// RefreshCache — POST /api/copilot/cache/refresh
func (h *Handler) RefreshCache(w http.ResponseWriter, r *http.Request) {
	deleted := 0
	if h.refresher != nil {
		n, err := h.refresher.Refresh(r.Context())
		if err != nil {
			httputil.InternalError(w, h.logger, err)
			return
		}
		deleted = n
	}
	h.logger.Info("catalog cache refreshed", "deleted", deleted)
	httputil.OK(w, map[string]int{"deleted": deleted})
}
