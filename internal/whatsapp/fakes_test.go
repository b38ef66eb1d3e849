package whatsapp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Vovarama1992/ebeef-copilot/internal/ai"
	"github.com/Vovarama1992/ebeef-copilot/internal/copilot"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memRepo struct {
	mu            sync.Mutex
	conversations map[string]*Conversation
	customers     map[string]bool
	messages      []Message
	external      map[string]bool
	clock         time.Time

	// raceExists makes MessageExists miss so the unique constraint is hit.
	raceExists bool
	saveErr    error
	swapLoses  bool
	// handoffErr fails the handoff transaction; nothing is applied.
	handoffErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		conversations: map[string]*Conversation{},
		customers:     map[string]bool{},
		external:      map[string]bool{},
		clock:         time.Date(2025, time.October, 19, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memRepo) MessageExists(_ context.Context, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raceExists {
		return false, nil
	}
	return m.external[externalID], nil
}

func (m *memRepo) GetOrCreateConversation(_ context.Context, phone string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[phone]
	if !ok {
		c = &Conversation{ID: int64(len(m.conversations) + 1), PhoneNumber: phone, Mode: ModeAI, Status: StatusActive, CreatedAt: m.clock}
		m.conversations[phone] = c
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) GetConversation(_ context.Context, phone string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[phone]
	if !ok {
		return nil, ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) EnsureCustomer(_ context.Context, phone string) error {
	m.mu.Lock()
	m.customers[phone] = true
	m.mu.Unlock()
	return nil
}

func (m *memRepo) SaveMessage(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	return m.insert(msg)
}

func (m *memRepo) insert(msg *Message) error {
	if msg.ExternalID != nil {
		if m.external[*msg.ExternalID] {
			return ErrDuplicateMessage
		}
		m.external[*msg.ExternalID] = true
	}
	m.clock = m.clock.Add(time.Second)
	msg.ID = int64(len(m.messages) + 1)
	msg.CreatedAt = m.clock
	m.messages = append(m.messages, *msg)
	if c, ok := m.conversations[msg.PhoneNumber]; ok {
		c.LastMessageAt = m.clock
	}
	return nil
}

func (m *memRepo) Handoff(_ context.Context, phone string, sys *Message) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[phone]
	if !ok || c.Mode != ModeAI || m.swapLoses {
		return false, nil
	}
	if m.handoffErr != nil {
		return false, m.handoffErr
	}
	if err := m.insert(sys); err != nil {
		return false, err
	}
	c.Mode = ModeOperator
	return true, nil
}

func (m *memRepo) SetMode(_ context.Context, phone string, mode Mode) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[phone]
	if !ok {
		return nil, ErrConversationNotFound
	}
	c.Mode = mode
	cp := *c
	return &cp, nil
}

func (m *memRepo) GetHistory(_ context.Context, phone string, limit int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for _, msg := range m.messages {
		if msg.PhoneNumber == phone {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memRepo) ListConversations(context.Context) (Conversations, error) {
	return Conversations{}, nil
}

func (m *memRepo) bySender(phone string, sender Sender) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for _, msg := range m.messages {
		if msg.PhoneNumber == phone && msg.Sender == sender {
			out = append(out, msg)
		}
	}
	return out
}

type event struct {
	name string
	data any
}

type recordingHub struct {
	mu     sync.Mutex
	events []event
}

func (h *recordingHub) Broadcast(name string, data any) {
	h.mu.Lock()
	h.events = append(h.events, event{name, data})
	h.mu.Unlock()
}

func (h *recordingHub) names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, e.name)
	}
	return out
}

type sent struct{ to, text string }

type fakeOutbound struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (o *fakeOutbound) SendText(_ context.Context, to, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, sent{to, text})
	return o.err
}

type fakeSuggester struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *fakeSuggester) Generate(_ context.Context, phone, _ string) (*copilot.Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &copilot.Payload{
		CustomerInfo: copilot.CustomerInfo{Phone: phone, IsNew: true, TotalSpent: "0.00"},
		Promotions:   []copilot.PromotionView{{Code: "BEMVINDO", Name: "Boas-vindas", Description: "10% off"}},
	}, nil
}

type fakeAdvisor struct {
	conversation []ai.Message
	err          error
}

func (a *fakeAdvisor) RecommendWithAI(_ context.Context, _ string, conversation []ai.Message) (*copilot.AIRecommendation, error) {
	a.conversation = conversation
	if a.err != nil {
		return nil, a.err
	}
	return &copilot.AIRecommendation{
		Recommendations:          []copilot.AIProductPick{{ProductName: "Picanha", Reason: "churrasco no sábado", Priority: 1}},
		ConversationalSuggestion: "Que tal uma picanha para sábado?",
	}, nil
}

type stubAI struct {
	available bool
	reply     string
	err       error
	requests  []ai.Request
}

func (s *stubAI) Available() bool { return s.available }

func (s *stubAI) GetReply(_ context.Context, req ai.Request) (string, error) {
	s.requests = append(s.requests, req)
	return s.reply, s.err
}

var errDB = errors.New("db down")
