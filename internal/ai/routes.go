package ai

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/api/ai/status", h.Status)
	r.Post("/api/ai/improve", h.Improve)
	r.Post("/api/ai/classify", h.Classify)
}
