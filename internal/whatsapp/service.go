package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Vovarama1992/ebeef-copilot/internal/ai"
	"github.com/Vovarama1992/ebeef-copilot/internal/copilot"
	"github.com/Vovarama1992/ebeef-copilot/internal/metrics"
)

const (
	replyHistoryWindow     = 6
	summaryHistoryLimit    = 20
	recommendHistoryWindow = 5
)

type Options struct {
	// HandoffKeywords defaults to DefaultHandoffKeywords.
	HandoffKeywords []string
	// Advisor backs RecommendProducts; nil disables it.
	Advisor Advisor
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type service struct {
	repo      Repo
	ai        ai.AI
	outbound  Outbound
	hub       Broadcaster
	suggester Suggester
	advisor   Advisor
	keywords  []string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewService(repo Repo, aiClient ai.AI, outbound Outbound, hub Broadcaster, suggester Suggester, opts Options) Service {
	if len(opts.HandoffKeywords) == 0 {
		opts.HandoffKeywords = DefaultHandoffKeywords
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &service{
		repo:      repo,
		ai:        aiClient,
		outbound:  outbound,
		hub:       hub,
		suggester: suggester,
		advisor:   opts.Advisor,
		keywords:  opts.HandoffKeywords,
		metrics:   opts.Metrics,
		logger:    opts.Logger.With("module", "whatsapp"),
	}
}

// HandleIncoming runs one inbound message through the mode state machine.
// A given external id has effect at most once; persistence errors abort
// before any reply is produced.
func (s *service) HandleIncoming(ctx context.Context, in Inbound) (Outcome, error) {
	log := s.logger.With("from", in.From, "external_id", in.ExternalID)

	if in.ExternalID != "" {
		dup, err := s.repo.MessageExists(ctx, in.ExternalID)
		if err != nil {
			return s.failed(fmt.Errorf("dedup check: %w", err))
		}
		if dup {
			return s.duplicate(log)
		}
	}

	conv, err := s.repo.GetOrCreateConversation(ctx, in.From)
	if err != nil {
		return s.failed(fmt.Errorf("conversation: %w", err))
	}
	if err := s.repo.EnsureCustomer(ctx, in.From); err != nil {
		return s.failed(fmt.Errorf("customer: %w", err))
	}

	msg := &Message{PhoneNumber: in.From, Sender: SenderUser, Text: in.Text}
	if in.ExternalID != "" {
		id := in.ExternalID
		msg.ExternalID = &id
	}
	if err := s.repo.SaveMessage(ctx, msg); err != nil {
		if errors.Is(err, ErrDuplicateMessage) {
			return s.duplicate(log)
		}
		return s.failed(fmt.Errorf("save inbound: %w", err))
	}

	suggestions, err := s.suggester.Generate(ctx, in.From, in.Text)
	if err != nil {
		log.Warn("suggestions failed", "error", err)
		suggestions = nil
	}

	s.hub.Broadcast(EventNewMessage, NewMessageEvent{
		From:        in.From,
		Message:     toWire(msg),
		Mode:        conv.Mode,
		Suggestions: suggestions,
	})

	if conv.Mode != ModeAI {
		log.Info("stored for operator", "mode", conv.Mode)
		s.metrics.Inbound(metrics.ResultProcessed)
		return OutcomeStored, nil
	}

	if NeedsHandoff(in.Text, s.keywords) {
		return s.handoff(ctx, in.From, log)
	}
	return s.autoReply(ctx, msg, suggestions, log)
}

func (s *service) duplicate(log *slog.Logger) (Outcome, error) {
	log.Debug("duplicate message skipped")
	s.metrics.Inbound(metrics.ResultDuplicate)
	return OutcomeDuplicate, nil
}

func (s *service) failed(err error) (Outcome, error) {
	s.metrics.Inbound(metrics.ResultFailed)
	return "", err
}

// handoff moves AI to OPERATOR. When an operator already toggled the mode the
// swap loses and no system message is written.
func (s *service) handoff(ctx context.Context, phone string, log *slog.Logger) (Outcome, error) {
	sys := &Message{PhoneNumber: phone, Sender: SenderSystem, Text: HandoffMessage}
	swapped, err := s.repo.Handoff(ctx, phone, sys)
	if err != nil {
		return s.failed(fmt.Errorf("handoff: %w", err))
	}
	if !swapped {
		log.Info("handoff skipped, mode already changed")
		s.metrics.Inbound(metrics.ResultProcessed)
		return OutcomeStored, nil
	}

	s.hub.Broadcast(EventNewMessage, NewMessageEvent{From: phone, Message: toWire(sys), Mode: ModeOperator})
	s.hub.Broadcast(EventModeChange, ModeChangeEvent{From: phone, Mode: ModeOperator})
	s.deliver(ctx, phone, HandoffMessage)

	log.Info("handed off to operator")
	s.metrics.Handoff()
	s.metrics.Inbound(metrics.ResultProcessed)
	return OutcomeHandoff, nil
}

func (s *service) autoReply(ctx context.Context, in *Message, suggestions *copilot.Payload, log *slog.Logger) (Outcome, error) {
	text, source := s.reply(ctx, in, suggestions, log)

	out := &Message{PhoneNumber: in.PhoneNumber, Sender: SenderAI, Text: text}
	if err := s.repo.SaveMessage(ctx, out); err != nil {
		return s.failed(fmt.Errorf("save reply: %w", err))
	}

	s.hub.Broadcast(EventNewMessage, NewMessageEvent{From: in.PhoneNumber, Message: toWire(out), Mode: ModeAI})
	s.deliver(ctx, in.PhoneNumber, text)

	log.Info("auto reply sent", "source", source)
	s.metrics.AutoReply(source)
	s.metrics.Inbound(metrics.ResultProcessed)
	return OutcomeReplied, nil
}

// reply picks the model when configured and the rule table otherwise. A
// configured model that fails yields the fixed technical-failure text.
func (s *service) reply(ctx context.Context, in *Message, suggestions *copilot.Payload, log *slog.Logger) (string, string) {
	if s.ai == nil || !s.ai.Available() {
		return RuleReply(in.Text), metrics.SourceRules
	}

	history, err := s.repo.GetHistory(ctx, in.PhoneNumber, replyHistoryWindow+1)
	if err != nil {
		log.Warn("history unavailable", "error", err)
	}
	prior := make([]Message, 0, len(history))
	for _, m := range history {
		if m.ID != in.ID {
			prior = append(prior, m)
		}
	}
	if len(prior) > replyHistoryWindow {
		prior = prior[len(prior)-replyHistoryWindow:]
	}

	text, err := s.ai.GetReply(ctx, ai.Request{
		Purpose:      "customer_reply",
		SystemPrompt: customerReplyPrompt(suggestions),
		History:      append(toAIHistory(prior), ai.Message{Role: ai.RoleUser, Text: in.Text}),
		MaxTokens:    300,
		Temperature:  0.7,
	})
	if err != nil || strings.TrimSpace(text) == "" {
		log.Warn("ai reply failed", "error", err)
		return TechnicalFailure, metrics.SourceFallback
	}
	return text, metrics.SourceAI
}

// deliver never fails the caller: the dashboard already has the message.
func (s *service) deliver(ctx context.Context, to, text string) {
	if err := s.outbound.SendText(ctx, to, text); err != nil {
		s.logger.Warn("outbound delivery failed", "to", to, "error", err)
		s.metrics.OutboundFailure()
	}
}

func (s *service) SendOperatorMessage(ctx context.Context, to, text string) error {
	text = strings.TrimSpace(text)
	conv, err := s.repo.GetConversation(ctx, to)
	if err != nil {
		return err
	}

	msg := &Message{PhoneNumber: to, Sender: SenderOperator, Text: text}
	if err := s.repo.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("save operator message: %w", err)
	}

	s.hub.Broadcast(EventNewMessage, NewMessageEvent{From: to, Message: toWire(msg), Mode: conv.Mode})
	s.deliver(ctx, to, text)
	return nil
}

func (s *service) SetMode(ctx context.Context, to string, mode Mode) (*Conversation, error) {
	conv, err := s.repo.SetMode(ctx, to, mode)
	if err != nil {
		return nil, err
	}
	s.logger.Info("mode changed by operator", "from", to, "mode", conv.Mode)
	s.hub.Broadcast(EventModeChange, ModeChangeEvent{From: to, Mode: conv.Mode})
	return conv, nil
}

func (s *service) ListConversations(ctx context.Context) (Conversations, error) {
	return s.repo.ListConversations(ctx)
}

// Summarize condenses the last messages for an operator taking over.
// Returns ai.ErrUnavailable when no model is configured.
func (s *service) Summarize(ctx context.Context, phone string) (string, error) {
	if s.ai == nil || !s.ai.Available() {
		return "", ai.ErrUnavailable
	}
	history, err := s.repo.GetHistory(ctx, phone, summaryHistoryLimit)
	if err != nil {
		return "", fmt.Errorf("history: %w", err)
	}
	summary, err := s.ai.GetReply(ctx, ai.Request{
		Purpose:      "summarize",
		SystemPrompt: summarizePrompt,
		History:      []ai.Message{{Role: ai.RoleUser, Text: transcript(history)}},
		MaxTokens:    200,
		Temperature:  0.3,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSummaryFailed, err)
	}
	return summary, nil
}

func (s *service) RecommendProducts(ctx context.Context, phone string) (*copilot.AIRecommendation, error) {
	if s.advisor == nil {
		return nil, ai.ErrUnavailable
	}
	history, err := s.repo.GetHistory(ctx, phone, recommendHistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return s.advisor.RecommendWithAI(ctx, phone, toAIHistory(history))
}
