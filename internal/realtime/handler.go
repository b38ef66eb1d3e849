package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/Vovarama1992/ebeef-copilot/internal/auth"
	"github.com/Vovarama1992/ebeef-copilot/internal/copilot"
	"github.com/Vovarama1992/ebeef-copilot/internal/httputil"
	"github.com/Vovarama1992/ebeef-copilot/internal/validate"
)

const (
	EventRequestSuggestions = "request_suggestions"
	EventSuggestionsUpdate  = "suggestions_update"
	EventError              = "error"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
	suggestTimeout = 20 * time.Second
)

type Verifier interface {
	Verify(raw string) (auth.Operator, error)
}

type Suggester interface {
	Generate(ctx context.Context, phone, message string) (*copilot.Payload, error)
}

type Handler struct {
	hub       *Hub
	verifier  Verifier
	suggester Suggester
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewHandler accepts browser origins from allowedOrigins; "*" allows any.
// Requests without an Origin header are always accepted.
func NewHandler(hub *Hub, verifier Verifier, suggester Suggester, allowedOrigins []string, logger *slog.Logger) *Handler {
	allowed := map[string]bool{}
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		hub:       hub,
		verifier:  verifier,
		suggester: suggester,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
		logger: logger.With("module", "realtime"),
	}
}

type inFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type suggestionsRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,br_phone"`
	Message     string `json:"message"`
}

type SuggestionsUpdate struct {
	PhoneNumber string           `json:"phoneNumber"`
	Suggestions *copilot.Payload `json:"suggestions"`
}

type errorFrame struct {
	Message string `json:"message"`
}

// ServeWS — GET /ws?token=<jwt>
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	op, err := h.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		httputil.Error(w, http.StatusUnauthorized, "AUTH_TOKEN_INVALID", "Token inválido")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	id, frames, cancel := h.hub.Subscribe()
	log := h.logger.With("client", id, "operator", op.ID)
	log.Info("operator connected")

	go h.writeLoop(conn, frames, log)
	h.readLoop(r.Context(), conn, id, log)

	cancel()
	log.Info("operator disconnected")
}

// writeLoop is the only writer on conn.
func (h *Handler) writeLoop(conn *websocket.Conn, frames <-chan Frame, log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case f, ok := <-frames:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(f); err != nil {
				log.Debug("write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, id string, log *slog.Logger) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in inFrame
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("read failed", "error", err)
			}
			return
		}

		switch in.Event {
		case EventRequestSuggestions:
			h.requestSuggestions(ctx, id, in.Data, log)
		default:
			h.hub.Send(id, EventError, errorFrame{Message: "unknown event: " + in.Event})
		}
	}
}

// requestSuggestions answers only the requesting client.
func (h *Handler) requestSuggestions(ctx context.Context, id string, raw json.RawMessage, log *slog.Logger) {
	var req suggestionsRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		h.hub.Send(id, EventError, errorFrame{Message: "invalid payload"})
		return
	}
	if err := validate.Struct(req); err != nil {
		h.hub.Send(id, EventError, errorFrame{Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, suggestTimeout)
	defer cancel()
	payload, err := h.suggester.Generate(ctx, req.PhoneNumber, req.Message)
	if err != nil {
		log.Error("suggestions failed", "phone", req.PhoneNumber, "error", err)
		h.hub.Send(id, EventError, errorFrame{Message: "Falha ao gerar sugestões"})
		return
	}
	h.hub.Send(id, EventSuggestionsUpdate, SuggestionsUpdate{PhoneNumber: req.PhoneNumber, Suggestions: payload})
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/ws", h.ServeWS)
}
