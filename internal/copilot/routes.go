package copilot

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/api/copilot/suggestions/{phoneNumber}", h.Suggestions)
	r.Get("/api/copilot/customer/{phoneNumber}", h.Customer)
	r.Get("/api/copilot/customer/{phoneNumber}/purchases", h.Purchases)
	r.Post("/api/copilot/customer/{phoneNumber}/notes", h.UpdateNotes)
	r.Post("/api/copilot/customer/{phoneNumber}/name", h.UpdateName)
	r.Post("/api/copilot/cache/refresh", h.RefreshCache)
	r.Post("/api/ai/suggest", h.SuggestReply)

	r.Get("/api/products", h.Products)
	r.Get("/api/products/search", h.SearchProducts)
	r.Get("/api/promotions", h.Promotions)
}
