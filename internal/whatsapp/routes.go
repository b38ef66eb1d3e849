package whatsapp

import "github.com/go-chi/chi/v5"

// RegisterWebhookRoutes mounts the provider-facing endpoints; they carry no
// operator auth.
func RegisterWebhookRoutes(r chi.Router, h *Handler) {
	r.Get("/webhook", h.VerifyWebhook)
	r.Post("/webhook", h.HandleWebhook)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/api/conversations", h.Conversations)
	r.Post("/api/send", h.Send)
	r.Post("/api/mode", h.SetMode)
	r.Get("/api/ai/summarize/{phoneNumber}", h.Summarize)
	r.Get("/api/ai/recommendations/{phoneNumber}", h.Recommendations)
}
