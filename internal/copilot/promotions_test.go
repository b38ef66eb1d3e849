package copilot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRules = PromotionRules{
	WelcomeCodes:  []string{"BEMVINDO", "FIRSTORDER"},
	BulkCodes:     []string{"CHURRASCAO", "BULKBUY"},
	BulkThreshold: 500,
}

func promo(id int64, code string, productIDs ...int64) Promotion {
	return Promotion{
		ID:         id,
		Code:       code,
		Name:       "Promo " + code,
		IsActive:   true,
		ValidFrom:  testNow.Add(-24 * time.Hour),
		ValidUntil: testNow.Add(24 * time.Hour),
		ProductIDs: productIDs,
	}
}

func TestScorePromotions_NewCustomerGetsWelcome(t *testing.T) {
	cc := Summarize(Customer{Phone: "5511999991234"}, nil, testNow)
	promos := []Promotion{promo(1, "CHURRASCAO"), promo(2, "BEMVINDO"), promo(3, "FRETEGRATIS")}

	got := ScorePromotions(promos, *cc, testRules, testNow)

	require.Len(t, got, 3)
	assert.Equal(t, "BEMVINDO", got[0].Code)
	assert.Equal(t, 10, got[0].RelevanceScore)
	// zero-score entries keep their input order
	assert.Equal(t, "CHURRASCAO", got[1].Code)
	assert.Equal(t, "FRETEGRATIS", got[2].Code)
}

func TestScorePromotions_BulkAndFavourites(t *testing.T) {
	cc := Summarize(Customer{ID: 1}, []Purchase{
		purchase(1, 3, 650, item(picanha, 3), item(carvao, 2)),
	}, testNow)

	promos := []Promotion{
		promo(1, "BEMVINDO"),
		promo(2, "CHURRASCAO"),
		promo(3, "KITCHURRAS", picanha.ID, carvao.ID),
		promo(4, "LINGUICA", linguica.ID),
	}
	got := ScorePromotions(promos, *cc, testRules, testNow)

	require.Len(t, got, 3)
	assert.Equal(t, "KITCHURRAS", got[0].Code)
	assert.Equal(t, 10, got[0].RelevanceScore)
	assert.Equal(t, "CHURRASCAO", got[1].Code)
	assert.Equal(t, 8, got[1].RelevanceScore)
	assert.Equal(t, "BEMVINDO", got[2].Code)
	assert.Equal(t, 0, got[2].RelevanceScore)
}

func TestScorePromotions_BulkThresholdIsExclusive(t *testing.T) {
	cc := Summarize(Customer{ID: 1}, []Purchase{purchase(1, 3, 500, item(picanha, 1))}, testNow)

	got := ScorePromotions([]Promotion{promo(1, "CHURRASCAO")}, *cc, testRules, testNow)

	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].RelevanceScore)
}

func TestScorePromotions_SkipsOutsideWindow(t *testing.T) {
	expired := promo(1, "OLD")
	expired.ValidUntil = testNow.Add(-time.Minute)
	future := promo(2, "SOON")
	future.ValidFrom = testNow.Add(time.Minute)
	off := promo(3, "OFF")
	off.IsActive = false

	got := ScorePromotions([]Promotion{expired, future, off, promo(4, "NOW")}, CustomerContext{}, testRules, testNow)

	require.Len(t, got, 1)
	assert.Equal(t, "NOW", got[0].Code)
}
