package copilot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_NewCustomer(t *testing.T) {
	cc := Summarize(Customer{Phone: "5511999991234"}, nil, testNow)

	assert.True(t, cc.IsNewCustomer)
	assert.Equal(t, 0, cc.TotalOrders)
	assert.Equal(t, "0.00", cc.TotalSpent)
	assert.Empty(t, cc.FavoriteProducts)
	assert.Nil(t, cc.LastPurchase)
	assert.Nil(t, cc.DaysSinceLastPurchase)
}

func TestSummarize_FavoritesRankedByQuantity(t *testing.T) {
	purchases := []Purchase{
		purchase(3, 20, 199.7, item(picanha, 1), item(carvao, 1)),
		purchase(2, 40, 349.5, item(fraldinha, 5)),
		purchase(1, 60, 129.8, item(picanha, 1), item(carvao, 1)),
	}

	cc := Summarize(Customer{ID: 7, Phone: "5511999991234"}, purchases, testNow)

	require.Len(t, cc.FavoriteProducts, 3)
	assert.Equal(t, "Fraldinha", cc.FavoriteProducts[0].Product.Name)
	assert.Equal(t, 5, cc.FavoriteProducts[0].TotalQuantity)
	assert.Equal(t, 1, cc.FavoriteProducts[0].TimesOrdered)
	// picanha and carvão tie on quantity; the lower id ranks first
	assert.Equal(t, "Picanha", cc.FavoriteProducts[1].Product.Name)
	assert.Equal(t, 2, cc.FavoriteProducts[1].TimesOrdered)
	assert.Equal(t, "Carvão", cc.FavoriteProducts[2].Product.Name)

	assert.False(t, cc.IsNewCustomer)
	assert.Equal(t, 3, cc.TotalOrders)
	assert.Equal(t, "679.00", cc.TotalSpent)
	require.NotNil(t, cc.DaysSinceLastPurchase)
	assert.Equal(t, 20, *cc.DaysSinceLastPurchase)
	require.NotNil(t, cc.LastPurchase)
	assert.Equal(t, purchases[0].OrderNumber, cc.LastPurchase.OrderNumber)
	assert.Equal(t, "PIC-1", cc.LastPurchase.Items[0].ProductSKU)
}

func TestSummarize_FavoriteTiesRankByProductID(t *testing.T) {
	purchases := []Purchase{
		purchase(2, 5, 79.8, item(Product{ID: 7, Name: "Cupim"}, 2)),
		purchase(1, 30, 59.8, item(carvao, 2)),
	}

	cc := Summarize(Customer{ID: 1}, purchases, testNow)

	require.Len(t, cc.FavoriteProducts, 2)
	assert.Equal(t, carvao.ID, cc.FavoriteProducts[0].Product.ID)
	assert.Equal(t, int64(7), cc.FavoriteProducts[1].Product.ID)
}

func TestSummarize_KeepsTopFiveFavorites(t *testing.T) {
	var items []PurchaseItem
	for i := 1; i <= 7; i++ {
		items = append(items, item(Product{ID: int64(i), Name: "p"}, i))
	}
	cc := Summarize(Customer{ID: 1}, []Purchase{purchase(1, 1, 10, items...)}, testNow)

	require.Len(t, cc.FavoriteProducts, 5)
	assert.Equal(t, int64(7), cc.FavoriteProducts[0].Product.ID)
	assert.Equal(t, int64(3), cc.FavoriteProducts[4].Product.ID)
}

func TestBuildCustomerContext_UnknownPhoneSkipsPurchases(t *testing.T) {
	repo := newFakeRepo()

	cc, err := BuildCustomerContext(context.Background(), repo, "5511999991234", testNow)
	require.NoError(t, err)

	assert.True(t, cc.IsNewCustomer)
	assert.Equal(t, "5511999991234", cc.Customer.Phone)
	assert.Zero(t, repo.calls["Purchases"])
	assert.Zero(t, repo.writes)
}

func TestBuildCustomerContext_UsesLastTenPurchases(t *testing.T) {
	repo := newFakeRepo()
	repo.customers["5511999991234"] = &Customer{ID: 9, Phone: "5511999991234", Name: "Ana"}
	for i := 0; i < 12; i++ {
		repo.purchases[9] = append(repo.purchases[9], purchase(int64(i+1), i, 100, item(picanha, 1)))
	}

	cc, err := BuildCustomerContext(context.Background(), repo, "5511999991234", testNow)
	require.NoError(t, err)

	assert.Equal(t, 10, cc.TotalOrders)
	assert.Equal(t, "1000.00", cc.TotalSpent)
	assert.Equal(t, 0, *cc.DaysSinceLastPurchase)
}
