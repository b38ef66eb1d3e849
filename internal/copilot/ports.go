package copilot

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/Vovarama1992/ebeef-copilot/internal/ai"
)

var (
	// ErrSuggestionFailed: the model was configured but produced no reply
	// suggestion.
	ErrSuggestionFailed = errors.New("copilot: suggestion failed")
	// ErrRecommendationFailed: the model gave no usable recommendation JSON.
	ErrRecommendationFailed = errors.New("copilot: recommendation failed")
)

type Address struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
}

type Customer struct {
	ID              int64      `json:"id"`
	Phone           string     `json:"phone"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Birthdate       *time.Time `json:"birthdate"`
	Notes           string     `json:"notes"`
	BillingAddress  *Address   `json:"billingAddress"`
	DeliveryAddress *Address   `json:"deliveryAddress"`
	CreatedAt       time.Time  `json:"createdAt"`
}

type Product struct {
	ID          int64   `json:"id"`
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Stock       int     `json:"stock"`
	IsActive    bool    `json:"isActive"`
}

type PurchaseItem struct {
	ProductID  int64    `json:"productId"`
	Product    *Product `json:"product,omitempty"`
	Quantity   int      `json:"quantity"`
	UnitPrice  float64  `json:"unitPrice"`
	TotalPrice float64  `json:"totalPrice"`
}

type Purchase struct {
	ID          int64          `json:"id"`
	OrderNumber string         `json:"orderNumber"`
	Status      string         `json:"status"`
	TotalAmount float64        `json:"totalAmount"`
	CreatedAt   time.Time      `json:"createdAt"`
	Items       []PurchaseItem `json:"items"`
}

type RelationType string

const (
	RelationComplement RelationType = "complement"
	RelationRelated    RelationType = "related"
	RelationUpgrade    RelationType = "upgrade"
)

// ProductRelation is a directed edge; higher Strength ranks first.
type ProductRelation struct {
	ProductFromID int64        `json:"productFromId"`
	ProductToID   int64        `json:"productToId"`
	RelationType  RelationType `json:"relationType"`
	Strength      int          `json:"strength"`
	ProductTo     Product      `json:"productTo"`
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Promotion struct {
	ID            int64        `json:"id"`
	Code          string       `json:"code"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	DiscountType  DiscountType `json:"discountType"`
	DiscountValue float64      `json:"discountValue"`
	MinPurchase   *float64     `json:"minPurchase"`
	MaxDiscount   *float64     `json:"maxDiscount"`
	UsageLimit    *int         `json:"usageLimit"`
	UsageCount    int          `json:"usageCount"`
	ValidFrom     time.Time    `json:"validFrom"`
	ValidUntil    time.Time    `json:"validUntil"`
	IsActive      bool         `json:"isActive"`
	TargetType    string       `json:"targetType"` // products | all
	ProductIDs    []int64      `json:"productIds"`
}

// ActiveAt reports whether the promotion is switched on and inside its window.
func (p Promotion) ActiveAt(now time.Time) bool {
	return p.IsActive && !now.Before(p.ValidFrom) && !now.After(p.ValidUntil)
}

// SuggestionTemplate.Trigger is a pipe-separated keyword list.
type SuggestionTemplate struct {
	ID       int64  `json:"id"`
	Trigger  string `json:"trigger"`
	Category string `json:"category"`
	Template string `json:"template"`
	Priority int    `json:"priority"`
	IsActive bool   `json:"isActive"`
}

// FavoriteProduct aggregates one product across a customer's recent orders.
type FavoriteProduct struct {
	Product       Product `json:"product"`
	TimesOrdered  int     `json:"count"`
	TotalQuantity int     `json:"quantity"`
}

type OrderItemSummary struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	ProductSKU  string  `json:"productSku"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	TotalPrice  float64 `json:"totalPrice"`
}

type OrderSummary struct {
	OrderNumber string             `json:"orderNumber"`
	Date        time.Time          `json:"date"`
	Amount      float64            `json:"amount"`
	Status      string             `json:"status"`
	Items       []OrderItemSummary `json:"items"`
}

// CustomerContext is the normalised profile every engine consumes.
type CustomerContext struct {
	Customer              Customer          `json:"customer"`
	IsNewCustomer         bool              `json:"isNewCustomer"`
	TotalOrders           int               `json:"totalOrders"`
	TotalSpent            string            `json:"totalSpent"`
	FavoriteProducts      []FavoriteProduct `json:"favoriteProducts"`
	LastPurchase          *OrderSummary     `json:"lastPurchase"`
	DaysSinceLastPurchase *int              `json:"daysSinceLastPurchase"`
}

// Spent is TotalSpent as a number.
func (c CustomerContext) Spent() float64 {
	v, _ := strconv.ParseFloat(c.TotalSpent, 64)
	return v
}

func (c CustomerContext) favoriteIDs() map[int64]bool {
	ids := make(map[int64]bool, len(c.FavoriteProducts))
	for _, fp := range c.FavoriteProducts {
		ids[fp.Product.ID] = true
	}
	return ids
}

type ScoredPromotion struct {
	Promotion
	RelevanceScore int `json:"relevanceScore"`
}

// Recommendation types besides the relation types.
const (
	RecommendationPopular = "popular"
	RecommendationReorder = "reorder"
)

type Recommendation struct {
	Product Product `json:"product"`
	Reason  string  `json:"reason"`
	Type    string  `json:"type"`
}

const (
	SuggestionTemplateType = "template"
	SuggestionAIType       = "ai"
)

type Suggestion struct {
	Type     string `json:"type"`
	Category string `json:"category"`
	Text     string `json:"text"`
	Priority int    `json:"priority"`
}

// QuickAction is a canned message the operator can insert verbatim.
type QuickAction struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

type CustomerInfo struct {
	Name            string     `json:"name"`
	Phone           string     `json:"phone"`
	Email           string     `json:"email"`
	Birthdate       *time.Time `json:"birthdate"`
	BillingAddress  *Address   `json:"billingAddress"`
	DeliveryAddress *Address   `json:"deliveryAddress"`
	IsNew           bool       `json:"isNew"`
	TotalOrders     int        `json:"totalOrders"`
	TotalSpent      string     `json:"totalSpent"`
	Notes           string     `json:"notes"`
}

type RecommendationView struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Reason string  `json:"reason"`
}

type PromotionView struct {
	ID            int64        `json:"id"`
	Code          string       `json:"code"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	DiscountType  DiscountType `json:"discountType"`
	DiscountValue float64      `json:"discountValue"`
}

type PurchaseHistoryEntry struct {
	ProductID     int64  `json:"productId"`
	ProductName   string `json:"productName"`
	TimesOrdered  int    `json:"timesOrdered"`
	TotalQuantity int    `json:"totalQuantity"`
}

// Payload is what the operator dashboard renders next to a conversation.
type Payload struct {
	CustomerInfo    CustomerInfo           `json:"customerInfo"`
	LastOrder       *OrderSummary          `json:"lastOrder"`
	Suggestions     []Suggestion           `json:"suggestions"`
	QuickActions    []QuickAction          `json:"quickActions"`
	Recommendations []RecommendationView   `json:"recommendations"`
	Promotions      []PromotionView        `json:"promotions"`
	PurchaseHistory []PurchaseHistoryEntry `json:"purchaseHistory"`
}

// AIRecommendation is the model's product pick over the catalog, the
// customer profile and the recent conversation.
type AIRecommendation struct {
	Recommendations          []AIProductPick `json:"recommendations"`
	ConversationalSuggestion string          `json:"conversationalSuggestion"`
}

type AIProductPick struct {
	ProductName string `json:"productName"`
	Reason      string `json:"reason"`
	Priority    int    `json:"priority"`
}

// Repo — read access to commerce and reference data, plus the two
// operator-owned customer fields.
type Repo interface {
	// FindCustomer returns nil, nil when the phone number is unknown.
	FindCustomer(ctx context.Context, phone string) (*Customer, error)
	// Purchases returns newest first; limit <= 0 means all.
	Purchases(ctx context.Context, customerID int64, limit int) ([]Purchase, error)
	ActivePromotions(ctx context.Context, now time.Time) ([]Promotion, error)
	// RelationsFrom returns edges leaving ids ordered by strength descending.
	RelationsFrom(ctx context.Context, ids []int64, limit int) ([]ProductRelation, error)
	ProductsByStock(ctx context.Context, limit int) ([]Product, error)
	// ActiveTemplates returns templates ordered by priority descending.
	ActiveTemplates(ctx context.Context) ([]SuggestionTemplate, error)
	ActiveProducts(ctx context.Context, category string) ([]Product, error)
	SearchProducts(ctx context.Context, query string, limit int) ([]Product, error)
	UpdateCustomerNotes(ctx context.Context, phone, notes string) (*Customer, error)
	UpdateCustomerName(ctx context.Context, phone, name string) (*Customer, error)
}

// Service — copilot facade used by the HTTP layer, the realtime hub and the
// conversation state machine. Generate never writes.
type Service interface {
	Generate(ctx context.Context, phone, message string) (*Payload, error)
	CustomerContext(ctx context.Context, phone string) (*CustomerContext, error)
	PurchaseHistory(ctx context.Context, phone string) ([]Purchase, error)
	ProductsByCategory(ctx context.Context, category string) (map[string][]Product, error)
	SearchProducts(ctx context.Context, query string) ([]Product, error)
	ActivePromotions(ctx context.Context) ([]Promotion, error)
	UpdateCustomerNotes(ctx context.Context, phone, notes string) (*Customer, error)
	UpdateCustomerName(ctx context.Context, phone, name string) (*Customer, error)
	// SuggestReply drafts one operator reply. Returns ai.ErrUnavailable when
	// no model is configured.
	SuggestReply(ctx context.Context, phone, message string) (string, error)
	// RecommendWithAI asks the model for products given the recent
	// conversation. Returns ai.ErrUnavailable when no model is configured.
	RecommendWithAI(ctx context.Context, phone string, conversation []ai.Message) (*AIRecommendation, error)
}
