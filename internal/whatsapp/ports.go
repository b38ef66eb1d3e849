package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Vovarama1992/ebeef-copilot/internal/ai"
	"github.com/Vovarama1992/ebeef-copilot/internal/copilot"
)

type Mode string

const (
	ModeAI       Mode = "AI"
	ModeOperator Mode = "OPERATOR"
)

type Sender string

const (
	SenderUser     Sender = "user"
	SenderAI       Sender = "ai"
	SenderOperator Sender = "operator"
	SenderSystem   Sender = "system"
)

const (
	StatusActive   = "active"
	StatusResolved = "resolved"
)

var (
	// ErrDuplicateMessage: the external message id is already stored.
	ErrDuplicateMessage = errors.New("whatsapp: duplicate message")
	// ErrConversationNotFound: no conversation for the phone number.
	ErrConversationNotFound = errors.New("whatsapp: conversation not found")
	// ErrSummaryFailed: the model was configured but produced no summary.
	ErrSummaryFailed = errors.New("whatsapp: summary failed")
)

// Conversation — one per phone number; Mode changes only through
// Repo.Handoff and Repo.SetMode.
type Conversation struct {
	ID            int64
	PhoneNumber   string
	Mode          Mode
	Status        string
	LastMessageAt time.Time
	CreatedAt     time.Time
}

type Message struct {
	ID          int64
	PhoneNumber string
	Sender      Sender
	Text        string
	ExternalID  *string
	CreatedAt   time.Time
}

// Inbound is the minimal extract of a provider webhook.
type Inbound struct {
	From       string
	Text       string
	ExternalID string
}

// Outcome says which branch of the state machine handled an inbound message.
type Outcome string

const (
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeStored    Outcome = "stored"
	OutcomeHandoff   Outcome = "handoff"
	OutcomeReplied   Outcome = "replied"
)

// Realtime event names.
const (
	EventNewMessage = "new_message"
	EventModeChange = "mode_change"
)

// WireMessage is a message as the dashboard renders it; Timestamp is Unix ms.
type WireMessage struct {
	Sender    Sender `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

func toWire(m *Message) WireMessage {
	return WireMessage{Sender: m.Sender, Text: m.Text, Timestamp: m.CreatedAt.UnixMilli()}
}

type NewMessageEvent struct {
	From        string           `json:"from"`
	Message     WireMessage      `json:"message"`
	Mode        Mode             `json:"mode"`
	Suggestions *copilot.Payload `json:"suggestions,omitempty"`
}

type ModeChangeEvent struct {
	From string `json:"from"`
	Mode Mode   `json:"mode"`
}

type CustomerSummary struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Notes string `json:"notes"`
}

type ConversationView struct {
	PhoneNumber string           `json:"-"`
	Mode        Mode             `json:"mode"`
	Status      string           `json:"status"`
	Messages    []WireMessage    `json:"messages"`
	Customer    *CustomerSummary `json:"customer"`
}

// Conversations marshals as an object keyed by phone number, keeping the
// slice order (most recent activity first).
type Conversations []ConversationView

func (cs Conversations) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range cs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.PhoneNumber)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Outbound — delivery to the customer's WhatsApp.
type Outbound interface {
	SendText(ctx context.Context, to, text string) error
}

// Broadcaster fans events out to connected operator sessions. Calls from one
// goroutine are delivered to each session in call order.
type Broadcaster interface {
	Broadcast(event string, data any)
}

type Suggester interface {
	Generate(ctx context.Context, phone, message string) (*copilot.Payload, error)
}

// Advisor turns a recent conversation into model product picks.
type Advisor interface {
	RecommendWithAI(ctx context.Context, phone string, conversation []ai.Message) (*copilot.AIRecommendation, error)
}

// Repo — persistence
type Repo interface {
	MessageExists(ctx context.Context, externalID string) (bool, error)
	GetOrCreateConversation(ctx context.Context, phone string) (*Conversation, error)
	GetConversation(ctx context.Context, phone string) (*Conversation, error)
	EnsureCustomer(ctx context.Context, phone string) error
	// SaveMessage fills ID and CreatedAt and bumps the conversation's
	// lastMessageAt. Returns ErrDuplicateMessage on an external id clash.
	SaveMessage(ctx context.Context, msg *Message) error
	// Handoff moves AI to OPERATOR and stores sys in one transaction. It
	// reports false, writing nothing, when the mode was no longer AI.
	Handoff(ctx context.Context, phone string, sys *Message) (bool, error)
	SetMode(ctx context.Context, phone string, mode Mode) (*Conversation, error)
	// GetHistory returns the newest `limit` messages, oldest first.
	GetHistory(ctx context.Context, phone string, limit int) ([]Message, error)
	ListConversations(ctx context.Context) (Conversations, error)
}

// Service — conversation state machine and operator actions
type Service interface {
	HandleIncoming(ctx context.Context, in Inbound) (Outcome, error)
	SendOperatorMessage(ctx context.Context, to, text string) error
	SetMode(ctx context.Context, to string, mode Mode) (*Conversation, error)
	ListConversations(ctx context.Context) (Conversations, error)
	Summarize(ctx context.Context, phone string) (string, error)
	// RecommendProducts returns ai.ErrUnavailable when no advisor or model
	// is configured.
	RecommendProducts(ctx context.Context, phone string) (*copilot.AIRecommendation, error)
}
