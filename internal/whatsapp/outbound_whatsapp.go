package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type WhatsAppOutbound struct {
	baseURL       string
	phoneNumberID string
	token         string
	client        *http.Client
	logger        *slog.Logger
}

// NewWhatsAppOutbound talks to the Cloud API. With an empty token messages
// are only logged, which is how demo deployments run.
func NewWhatsAppOutbound(baseURL, phoneNumberID, token string, logger *slog.Logger) *WhatsAppOutbound {
	return &WhatsAppOutbound{
		baseURL:       strings.TrimRight(baseURL, "/"),
		phoneNumberID: phoneNumberID,
		token:         strings.TrimSpace(token),
		client:        &http.Client{Timeout: 10 * time.Second},
		logger:        logger.With("module", "whatsapp_outbound"),
	}
}

func (c *WhatsAppOutbound) SendText(ctx context.Context, to, text string) error {
	if c.token == "" {
		c.logger.Info("mock send", "to", to, "text", text)
		return nil
	}
	return c.send(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"text":              map[string]string{"body": text},
	})
}

func (c *WhatsAppOutbound) send(ctx context.Context, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/"+c.phoneNumberID+"/messages",
		bytes.NewReader(b),
	)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp api error: %s body=%s", resp.Status, respBody)
	}
	return nil
}
