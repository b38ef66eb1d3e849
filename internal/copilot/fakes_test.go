package copilot

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Vovarama1992/ebeef-copilot/internal/ai"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testNow = time.Date(2025, time.October, 19, 12, 0, 0, 0, time.UTC)

type fakeRepo struct {
	mu sync.Mutex

	customers  map[string]*Customer
	purchases  map[int64][]Purchase
	promotions []Promotion
	relations  []ProductRelation
	products   []Product
	templates  []SuggestionTemplate

	calls  map[string]int
	writes int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		customers: map[string]*Customer{},
		purchases: map[int64][]Purchase{},
		calls:     map[string]int{},
	}
}

func (f *fakeRepo) hit(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeRepo) FindCustomer(_ context.Context, phone string) (*Customer, error) {
	f.hit("FindCustomer")
	c, ok := f.customers[phone]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeRepo) Purchases(_ context.Context, customerID int64, limit int) ([]Purchase, error) {
	f.hit("Purchases")
	out := f.purchases[customerID]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) ActivePromotions(context.Context, time.Time) ([]Promotion, error) {
	f.hit("ActivePromotions")
	return f.promotions, nil
}

func (f *fakeRepo) RelationsFrom(_ context.Context, ids []int64, limit int) ([]ProductRelation, error) {
	f.hit("RelationsFrom")
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []ProductRelation
	for _, r := range f.relations {
		if want[r.ProductFromID] {
			out = append(out, r)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) ProductsByStock(_ context.Context, limit int) ([]Product, error) {
	f.hit("ProductsByStock")
	out := f.products
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) ActiveTemplates(context.Context) ([]SuggestionTemplate, error) {
	f.hit("ActiveTemplates")
	return f.templates, nil
}

func (f *fakeRepo) ActiveProducts(_ context.Context, category string) ([]Product, error) {
	f.hit("ActiveProducts")
	var out []Product
	for _, p := range f.products {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) SearchProducts(_ context.Context, _ string, _ int) ([]Product, error) {
	f.hit("SearchProducts")
	return f.products, nil
}

func (f *fakeRepo) UpdateCustomerNotes(_ context.Context, phone, notes string) (*Customer, error) {
	f.writes++
	return &Customer{Phone: phone, Notes: notes}, nil
}

func (f *fakeRepo) UpdateCustomerName(_ context.Context, phone, name string) (*Customer, error) {
	f.writes++
	return &Customer{Phone: phone, Name: name}, nil
}

type stubAI struct {
	available bool
	reply     string
	err       error
	last      ai.Request
}

func (s *stubAI) Available() bool { return s.available }

func (s *stubAI) GetReply(_ context.Context, req ai.Request) (string, error) {
	s.last = req
	return s.reply, s.err
}

var (
	picanha   = Product{ID: 1, SKU: "PIC-1", Name: "Picanha", Price: 129.9, Category: "bovinos", Stock: 50, IsActive: true}
	fraldinha = Product{ID: 2, SKU: "FRA-1", Name: "Fraldinha", Price: 69.9, Category: "bovinos", Stock: 80, IsActive: true}
	carvao    = Product{ID: 3, SKU: "CAR-1", Name: "Carvão", Price: 29.9, Category: "acessorios", Stock: 200, IsActive: true}
	linguica  = Product{ID: 4, SKU: "LIN-1", Name: "Linguiça", Price: 39.9, Category: "suinos", Stock: 120, IsActive: true}
)

func purchase(id int64, daysAgo int, total float64, items ...PurchaseItem) Purchase {
	return Purchase{
		ID:          id,
		OrderNumber: "EB-" + string(rune('A'+id)),
		Status:      "delivered",
		TotalAmount: total,
		CreatedAt:   testNow.Add(-time.Duration(daysAgo) * 24 * time.Hour),
		Items:       items,
	}
}

func item(p Product, qty int) PurchaseItem {
	cp := p
	return PurchaseItem{ProductID: p.ID, Product: &cp, Quantity: qty, UnitPrice: p.Price, TotalPrice: p.Price * float64(qty)}
}
