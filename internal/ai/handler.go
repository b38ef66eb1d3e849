package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Vovarama1992/ebeef-copilot/internal/httputil"
)

type Handler struct {
	ai     AI
	logger *slog.Logger
}

func NewHandler(client AI, logger *slog.Logger) *Handler {
	return &Handler{ai: client, logger: logger.With("module", "ai")}
}

// Status — GET /api/ai/status
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	features := []string{}
	if h.ai.Available() {
		features = []string{"suggestions", "improve", "summarize", "recommendations", "classify"}
	}
	httputil.OK(w, map[string]any{
		"available": h.ai.Available(),
		"features":  features,
	})
}

// Improve — POST /api/ai/improve
func (h *Handler) Improve(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
		Tone    string `json:"tone"`
	}
	if !httputil.Decode(w, r, &payload) {
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		httputil.BadRequest(w, "message is required")
		return
	}
	if !h.ai.Available() {
		httputil.Error(w, http.StatusServiceUnavailable, "AI_UNAVAILABLE", "IA não disponível")
		return
	}

	improved, tone, err := Improve(r.Context(), h.ai, payload.Message, payload.Tone)
	if err != nil {
		h.logger.Warn("improve failed", "error", err)
		improved = payload.Message
	}
	httputil.OK(w, map[string]string{
		"original": payload.Message,
		"improved": improved,
		"tone":     tone,
	})
}

// Classify — POST /api/ai/classify
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
	}
	if !httputil.Decode(w, r, &payload) {
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		httputil.BadRequest(w, "message is required")
		return
	}
	if !h.ai.Available() {
		httputil.Error(w, http.StatusServiceUnavailable, "AI_UNAVAILABLE", "IA não disponível")
		return
	}
	httputil.OK(w, Classify(r.Context(), h.ai, payload.Message, h.logger))
}

// Improve rewrites an operator draft in the requested tone. Unknown tones
// fall back to friendly; the resolved tone is returned.
func Improve(ctx context.Context, client AI, message, tone string) (string, string, error) {
	instruction, ok := toneInstructions[tone]
	if !ok {
		tone = "friendly"
		instruction = toneInstructions[tone]
	}
	out, err := client.GetReply(ctx, Request{
		Purpose:      "improve",
		SystemPrompt: fmt.Sprintf(improvePrompt, instruction),
		History:      []Message{{Role: RoleUser, Text: message}},
		MaxTokens:    200,
		Temperature:  0.5,
	})
	if err != nil {
		return message, tone, err
	}
	if out == "" {
		return message, tone, errors.New("empty rewrite")
	}
	return out, tone, nil
}
