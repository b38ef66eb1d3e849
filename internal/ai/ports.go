package ai

import (
	"context"
	"errors"
)

// ErrUnavailable: no API key configured, or the call failed, timed out or
// produced nothing. Callers treat every case the same way.
var ErrUnavailable = errors.New("ai: unavailable")

// AI — external text generation; knows nothing about WhatsApp or the DB.
type AI interface {
	// Available is the cheap "is configured" check.
	Available() bool
	GetReply(ctx context.Context, req Request) (string, error)
}

// Request is one completion: a system prompt plus the dialogue so far.
type Request struct {
	Purpose      string // metrics label
	SystemPrompt string
	History      []Message
	MaxTokens    int
	Temperature  float32
	// JSON asks the model for a single JSON object.
	JSON bool
}

// Message — universal dialogue format for the model.
type Message struct {
	Role string // "user" | "assistant" | "system"
	Text string
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)
