package copilot

import (
	"sort"
	"strings"
	"time"
)

const promotionLimit = 3

// Relevance weights.
const (
	scoreWelcome      = 10
	scoreBulk         = 8
	scorePerFavourite = 5
)

// PromotionRules names the codes that get the welcome and bulk bonuses.
type PromotionRules struct {
	WelcomeCodes  []string
	BulkCodes     []string
	BulkThreshold float64
}

// ScorePromotions ranks the promotions active at now for cc and keeps the
// top three. Equal scores keep input order; zero-score promotions still fill
// the remaining slots.
func ScorePromotions(promos []Promotion, cc CustomerContext, rules PromotionRules, now time.Time) []ScoredPromotion {
	favourites := cc.favoriteIDs()
	spent := cc.Spent()

	scored := make([]ScoredPromotion, 0, len(promos))
	for _, p := range promos {
		if !p.ActiveAt(now) {
			continue
		}
		score := 0
		if cc.IsNewCustomer && hasCode(rules.WelcomeCodes, p.Code) {
			score += scoreWelcome
		}
		if spent > rules.BulkThreshold && hasCode(rules.BulkCodes, p.Code) {
			score += scoreBulk
		}
		for _, id := range p.ProductIDs {
			if favourites[id] {
				score += scorePerFavourite
			}
		}
		scored = append(scored, ScoredPromotion{Promotion: p, RelevanceScore: score})
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].RelevanceScore > scored[b].RelevanceScore
	})
	if len(scored) > promotionLimit {
		scored = scored[:promotionLimit]
	}
	return scored
}

func hasCode(codes []string, code string) bool {
	for _, c := range codes {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}
