package copilot

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const templateMatchLimit = 3

// MatchTemplates returns up to three templates whose trigger variants occur
// in message, ignoring case, highest priority first.
func MatchTemplates(message string, templates []SuggestionTemplate) []SuggestionTemplate {
	ordered := make([]SuggestionTemplate, len(templates))
	copy(ordered, templates)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].Priority > ordered[b].Priority
	})

	lower := strings.ToLower(message)
	var out []SuggestionTemplate
	for _, t := range ordered {
		if !triggered(lower, t.Trigger) {
			continue
		}
		out = append(out, t)
		if len(out) == templateMatchLimit {
			break
		}
	}
	return out
}

func triggered(lowerMessage, trigger string) bool {
	for _, variant := range strings.Split(trigger, "|") {
		variant = strings.ToLower(strings.TrimSpace(variant))
		if variant != "" && strings.Contains(lowerMessage, variant) {
			return true
		}
	}
	return false
}

// TemplateVars holds placeholder values. An empty field leaves its
// placeholder untouched in the rendered text.
type TemplateVars struct {
	CustomerName       string
	CustomerPhone      string
	PastProducts       string
	RecommendedProduct string
	ActivePromotions   string
	OrderNumber        string
	OrderStatus        string
	DeliveryDate       string
}

// NewTemplateVars resolves placeholders from the customer profile and the
// engines' output; delivery date is the day after now.
func NewTemplateVars(cc CustomerContext, recs []Recommendation, promos []ScoredPromotion, now time.Time) TemplateVars {
	v := TemplateVars{
		CustomerName:  "cliente",
		CustomerPhone: cc.Customer.Phone,
		DeliveryDate:  LongDate(now.AddDate(0, 0, 1)),
	}
	if cc.Customer.Name != "" {
		v.CustomerName = cc.Customer.Name
	}

	if len(cc.FavoriteProducts) > 0 {
		names := make([]string, 0, 3)
		for i, fp := range cc.FavoriteProducts {
			if i == 3 {
				break
			}
			names = append(names, fp.Product.Name)
		}
		v.PastProducts = strings.Join(names, ", ")
	}
	if len(recs) > 0 {
		v.RecommendedProduct = recs[0].Product.Name
	}
	if len(promos) > 0 {
		list := make([]string, 0, len(promos))
		for _, p := range promos {
			list = append(list, fmt.Sprintf("%s (code: %s)", p.Name, p.Code))
		}
		v.ActivePromotions = strings.Join(list, "; ")
	}
	if cc.LastPurchase != nil {
		v.OrderNumber = cc.LastPurchase.OrderNumber
		v.OrderStatus = cc.LastPurchase.Status
	}
	return v
}

// Render substitutes {placeholder} tokens. Unknown or unresolved tokens stay
// as literal text.
func Render(template string, vars TemplateVars) string {
	pairs := make([]string, 0, 16)
	add := func(token, value string) {
		if value != "" {
			pairs = append(pairs, "{"+token+"}", value)
		}
	}
	add("customer_name", vars.CustomerName)
	add("customer_phone", vars.CustomerPhone)
	add("past_products", vars.PastProducts)
	add("recommended_product", vars.RecommendedProduct)
	add("active_promotions", vars.ActivePromotions)
	add("order_number", vars.OrderNumber)
	add("order_status", vars.OrderStatus)
	add("delivery_date", vars.DeliveryDate)
	if len(pairs) == 0 {
		return template
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

var (
	weekdaysPT = [...]string{"domingo", "segunda-feira", "terça-feira", "quarta-feira", "quinta-feira", "sexta-feira", "sábado"}
	monthsPT   = [...]string{"janeiro", "fevereiro", "março", "abril", "maio", "junho", "julho", "agosto", "setembro", "outubro", "novembro", "dezembro"}
)

// LongDate formats t the way Brazilian Portuguese writes a long date
// without the year, e.g. "segunda-feira, 20 de outubro".
func LongDate(t time.Time) string {
	return fmt.Sprintf("%s, %d de %s", weekdaysPT[t.Weekday()], t.Day(), monthsPT[t.Month()-1])
}
