package copilot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Vovarama1992/ebeef-copilot/internal/ai"
)

const (
	suggestionLimit     = 4
	quickActionLimit    = 4
	payloadRecsLimit    = 3
	payloadHistoryLimit = 5
	searchLimit         = 10
	aiSuggestionWeight  = 100
)

type Options struct {
	Rules            PromotionRules
	ReorderAfterDays int
	// Popular defaults to StockAsPopularity.
	Popular PopularityStrategy
	Now     func() time.Time
}

type service struct {
	repo   Repo
	ai     ai.AI
	rec    *Recommender
	rules  PromotionRules
	now    func() time.Time
	logger *slog.Logger
}

func NewService(repo Repo, client ai.AI, opts Options, logger *slog.Logger) Service {
	if opts.Popular == nil {
		opts.Popular = StockAsPopularity(repo)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &service{
		repo:   repo,
		ai:     client,
		rec:    NewRecommender(repo.RelationsFrom, opts.Popular, opts.ReorderAfterDays),
		rules:  opts.Rules,
		now:    opts.Now,
		logger: logger.With("module", "copilot"),
	}
}

func (s *service) CustomerContext(ctx context.Context, phone string) (*CustomerContext, error) {
	return BuildCustomerContext(ctx, s.repo, phone, s.now())
}

// Generate assembles the operator payload for one inbound message. The
// customer context is resolved first; promotions, recommendations and
// templates only depend on it and are fetched concurrently.
func (s *service) Generate(ctx context.Context, phone, message string) (*Payload, error) {
	now := s.now()
	cc, err := BuildCustomerContext(ctx, s.repo, phone, now)
	if err != nil {
		return nil, err
	}

	var (
		promos  []ScoredPromotion
		recs    []Recommendation
		matched []SuggestionTemplate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		all, err := s.repo.ActivePromotions(gctx, now)
		if err != nil {
			return fmt.Errorf("active promotions: %w", err)
		}
		promos = ScorePromotions(all, *cc, s.rules, now)
		return nil
	})
	g.Go(func() error {
		var err error
		recs, err = s.rec.Recommend(gctx, *cc)
		return err
	})
	g.Go(func() error {
		templates, err := s.repo.ActiveTemplates(gctx)
		if err != nil {
			return fmt.Errorf("active templates: %w", err)
		}
		matched = MatchTemplates(message, templates)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	vars := NewTemplateVars(*cc, recs, promos, now)
	suggestions := make([]Suggestion, 0, len(matched)+1)
	for _, t := range matched {
		suggestions = append(suggestions, Suggestion{
			Type:     SuggestionTemplateType,
			Category: t.Category,
			Text:     Render(t.Template, vars),
			Priority: t.Priority,
		})
	}
	if text := s.aiSuggestion(ctx, message, *cc); text != "" {
		weight := aiSuggestionWeight
		for _, sg := range suggestions {
			if sg.Priority >= weight {
				weight = sg.Priority + 1
			}
		}
		suggestions = append([]Suggestion{{
			Type:     SuggestionAIType,
			Category: "ai_generated",
			Text:     text,
			Priority: weight,
		}}, suggestions...)
	}
	sort.SliceStable(suggestions, func(a, b int) bool {
		return suggestions[a].Priority > suggestions[b].Priority
	})
	if len(suggestions) > suggestionLimit {
		suggestions = suggestions[:suggestionLimit]
	}

	return &Payload{
		CustomerInfo:    customerInfo(*cc),
		LastOrder:       cc.LastPurchase,
		Suggestions:     suggestions,
		QuickActions:    s.quickActions(*cc, recs, promos),
		Recommendations: recommendationViews(recs),
		Promotions:      promotionViews(promos),
		PurchaseHistory: historyEntries(cc.FavoriteProducts),
	}, nil
}

// aiSuggestion returns "" when the model is off or fails; the payload is
// still useful without it.
func (s *service) aiSuggestion(ctx context.Context, message string, cc CustomerContext) string {
	if s.ai == nil || !s.ai.Available() {
		return ""
	}
	text, err := s.ai.GetReply(ctx, operatorSuggestionRequest(message, cc))
	if err != nil {
		s.logger.Warn("ai suggestion failed", "phone", cc.Customer.Phone, "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

func (s *service) SuggestReply(ctx context.Context, phone, message string) (string, error) {
	if s.ai == nil || !s.ai.Available() {
		return "", ai.ErrUnavailable
	}
	cc, err := BuildCustomerContext(ctx, s.repo, phone, s.now())
	if err != nil {
		return "", err
	}
	text, err := s.ai.GetReply(ctx, operatorSuggestionRequest(message, *cc))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSuggestionFailed, err)
	}
	if text = strings.TrimSpace(text); text == "" {
		return "", fmt.Errorf("%w: empty reply", ErrSuggestionFailed)
	}
	return text, nil
}

func (s *service) RecommendWithAI(ctx context.Context, phone string, conversation []ai.Message) (*AIRecommendation, error) {
	if s.ai == nil || !s.ai.Available() {
		return nil, ai.ErrUnavailable
	}
	cc, err := BuildCustomerContext(ctx, s.repo, phone, s.now())
	if err != nil {
		return nil, err
	}
	products, err := s.repo.ActiveProducts(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("active products: %w", err)
	}

	raw, err := s.ai.GetReply(ctx, recommendationRequest(products, *cc, conversation))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecommendationFailed, err)
	}
	var out AIRecommendation
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecommendationFailed, err)
	}
	if out.Recommendations == nil {
		out.Recommendations = []AIProductPick{}
	}
	return &out, nil
}

func (s *service) quickActions(cc CustomerContext, recs []Recommendation, promos []ScoredPromotion) []QuickAction {
	out := make([]QuickAction, 0, quickActionLimit)
	if cc.IsNewCustomer {
		code := "BEMVINDO"
		if len(s.rules.WelcomeCodes) > 0 {
			code = s.rules.WelcomeCodes[0]
		}
		out = append(out, QuickAction{
			Label:  "Oferecer desconto de boas-vindas",
			Action: fmt.Sprintf("Bem-vindo à ebeef! Como é sua primeira compra, use o código %s para 10%% de desconto!", code),
		})
	}
	if len(recs) > 0 {
		top := recs[0]
		out = append(out, QuickAction{
			Label: "Recomendar " + top.Product.Name,
			Action: fmt.Sprintf("Baseado nas suas preferências, eu recomendo nosso %s - %s. Está por R$%s.",
				top.Product.Name, top.Reason, FormatBRL(top.Product.Price)),
		})
	}
	if len(promos) > 0 {
		top := promos[0]
		out = append(out, QuickAction{
			Label:  "Compartilhar " + top.Name,
			Action: fmt.Sprintf("Ótima notícia! %s Use o código %s no checkout!", top.Description, top.Code),
		})
	}
	if len(out) > quickActionLimit {
		out = out[:quickActionLimit]
	}
	return out
}

// FormatBRL renders 129.9 as "129,90".
func FormatBRL(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', 2, 64), ".", ",", 1)
}

func customerInfo(cc CustomerContext) CustomerInfo {
	c := cc.Customer
	return CustomerInfo{
		Name:            c.Name,
		Phone:           c.Phone,
		Email:           c.Email,
		Birthdate:       c.Birthdate,
		BillingAddress:  c.BillingAddress,
		DeliveryAddress: c.DeliveryAddress,
		IsNew:           cc.IsNewCustomer,
		TotalOrders:     cc.TotalOrders,
		TotalSpent:      cc.TotalSpent,
		Notes:           c.Notes,
	}
}

func recommendationViews(recs []Recommendation) []RecommendationView {
	out := make([]RecommendationView, 0, payloadRecsLimit)
	for i, r := range recs {
		if i == payloadRecsLimit {
			break
		}
		out = append(out, RecommendationView{ID: r.Product.ID, Name: r.Product.Name, Price: r.Product.Price, Reason: r.Reason})
	}
	return out
}

func promotionViews(promos []ScoredPromotion) []PromotionView {
	out := make([]PromotionView, 0, len(promos))
	for _, p := range promos {
		out = append(out, PromotionView{
			ID:            p.ID,
			Code:          p.Code,
			Name:          p.Name,
			Description:   p.Description,
			DiscountType:  p.DiscountType,
			DiscountValue: p.DiscountValue,
		})
	}
	return out
}

func historyEntries(favs []FavoriteProduct) []PurchaseHistoryEntry {
	out := make([]PurchaseHistoryEntry, 0, payloadHistoryLimit)
	for i, fp := range favs {
		if i == payloadHistoryLimit {
			break
		}
		out = append(out, PurchaseHistoryEntry{
			ProductID:     fp.Product.ID,
			ProductName:   fp.Product.Name,
			TimesOrdered:  fp.TimesOrdered,
			TotalQuantity: fp.TotalQuantity,
		})
	}
	return out
}

func (s *service) PurchaseHistory(ctx context.Context, phone string) ([]Purchase, error) {
	customer, err := s.repo.FindCustomer(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	if customer == nil {
		return []Purchase{}, nil
	}
	return s.repo.Purchases(ctx, customer.ID, 0)
}

// ProductsByCategory groups active products by category; an empty category
// means all of them.
func (s *service) ProductsByCategory(ctx context.Context, category string) (map[string][]Product, error) {
	products, err := s.repo.ActiveProducts(ctx, category)
	if err != nil {
		return nil, err
	}
	grouped := map[string][]Product{}
	for _, p := range products {
		grouped[p.Category] = append(grouped[p.Category], p)
	}
	return grouped, nil
}

func (s *service) SearchProducts(ctx context.Context, query string) ([]Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Product{}, nil
	}
	return s.repo.SearchProducts(ctx, query, searchLimit)
}

// ActivePromotions re-checks the validity window because the repo may serve
// a cached list.
func (s *service) ActivePromotions(ctx context.Context) ([]Promotion, error) {
	now := s.now()
	all, err := s.repo.ActivePromotions(ctx, now)
	if err != nil {
		return nil, err
	}
	out := make([]Promotion, 0, len(all))
	for _, p := range all {
		if p.ActiveAt(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *service) UpdateCustomerNotes(ctx context.Context, phone, notes string) (*Customer, error) {
	return s.repo.UpdateCustomerNotes(ctx, phone, notes)
}

func (s *service) UpdateCustomerName(ctx context.Context, phone, name string) (*Customer, error) {
	return s.repo.UpdateCustomerName(ctx, phone, strings.TrimSpace(name))
}
