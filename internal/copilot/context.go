package copilot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"
)

const (
	recentPurchaseWindow = 10
	favoriteLimit        = 5
)

// BuildCustomerContext aggregates the phone's recent purchases into a
// profile. Unknown numbers get a bare customer and isNewCustomer=true; the
// record itself is created by the messaging side on first contact.
func BuildCustomerContext(ctx context.Context, repo Repo, phone string, now time.Time) (*CustomerContext, error) {
	customer, err := repo.FindCustomer(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	if customer == nil {
		customer = &Customer{Phone: phone}
	}

	var purchases []Purchase
	if customer.ID != 0 {
		purchases, err = repo.Purchases(ctx, customer.ID, recentPurchaseWindow)
		if err != nil {
			return nil, fmt.Errorf("recent purchases: %w", err)
		}
	}

	return Summarize(*customer, purchases, now), nil
}

// Summarize is the pure part of BuildCustomerContext; purchases must be
// newest first.
func Summarize(customer Customer, purchases []Purchase, now time.Time) *CustomerContext {
	var spent float64
	for _, p := range purchases {
		spent += p.TotalAmount
	}

	cc := &CustomerContext{
		Customer:         customer,
		IsNewCustomer:    len(purchases) == 0,
		TotalOrders:      len(purchases),
		TotalSpent:       strconv.FormatFloat(spent, 'f', 2, 64),
		FavoriteProducts: favorites(purchases),
	}

	if len(purchases) > 0 {
		last := purchases[0]
		cc.LastPurchase = summarizeOrder(last)
		days := int(now.Sub(last.CreatedAt) / (24 * time.Hour))
		cc.DaysSinceLastPurchase = &days
	}
	return cc
}

// favorites ranks by total quantity, not by how often a product was ordered,
// so one large order can outrank several small ones. Ties go to the lower
// product id.
func favorites(purchases []Purchase) []FavoriteProduct {
	index := map[int64]int{}
	var out []FavoriteProduct
	for _, p := range purchases {
		for _, item := range p.Items {
			i, ok := index[item.ProductID]
			if !ok {
				product := Product{ID: item.ProductID}
				if item.Product != nil {
					product = *item.Product
				}
				i = len(out)
				index[item.ProductID] = i
				out = append(out, FavoriteProduct{Product: product})
			}
			out[i].TimesOrdered++
			out[i].TotalQuantity += item.Quantity
		}
	}

	sort.Slice(out, func(a, b int) bool {
		return out[a].Product.ID < out[b].Product.ID
	})
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].TotalQuantity > out[b].TotalQuantity
	})
	if len(out) > favoriteLimit {
		out = out[:favoriteLimit]
	}
	return out
}

func summarizeOrder(p Purchase) *OrderSummary {
	items := make([]OrderItemSummary, 0, len(p.Items))
	for _, it := range p.Items {
		s := OrderItemSummary{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
		}
		if it.Product != nil {
			s.ProductName = it.Product.Name
			s.ProductSKU = it.Product.SKU
		}
		items = append(items, s)
	}
	return &OrderSummary{
		OrderNumber: p.OrderNumber,
		Date:        p.CreatedAt,
		Amount:      p.TotalAmount,
		Status:      p.Status,
		Items:       items,
	}
}
