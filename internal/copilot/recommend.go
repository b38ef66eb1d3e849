package copilot

import (
	"context"
	"fmt"
)

const (
	recommendationLimit = 5
	popularLimit        = 3
)

// PopularityStrategy picks products to show customers without history.
type PopularityStrategy func(ctx context.Context, limit int) ([]Product, error)

// StockAsPopularity ranks by current stock. There is no sales-velocity data
// yet, so stock stands in for popularity.
func StockAsPopularity(repo Repo) PopularityStrategy {
	return func(ctx context.Context, limit int) ([]Product, error) {
		return repo.ProductsByStock(ctx, limit)
	}
}

type RelationSource func(ctx context.Context, ids []int64, limit int) ([]ProductRelation, error)

type Recommender struct {
	relations        RelationSource
	popular          PopularityStrategy
	reorderAfterDays int
}

func NewRecommender(relations RelationSource, popular PopularityStrategy, reorderAfterDays int) *Recommender {
	return &Recommender{relations: relations, popular: popular, reorderAfterDays: reorderAfterDays}
}

// Recommend builds at most five recommendations: relation edges from the
// favourites, popular picks for new customers, and a reorder nudge that is
// inserted at the front before the list is cut to size.
func (r *Recommender) Recommend(ctx context.Context, cc CustomerContext) ([]Recommendation, error) {
	var out []Recommendation

	if len(cc.FavoriteProducts) > 0 {
		favourites := cc.favoriteIDs()
		names := make(map[int64]string, len(cc.FavoriteProducts))
		ids := make([]int64, 0, len(cc.FavoriteProducts))
		for _, fp := range cc.FavoriteProducts {
			names[fp.Product.ID] = fp.Product.Name
			ids = append(ids, fp.Product.ID)
		}

		rels, err := r.relations(ctx, ids, recommendationLimit)
		if err != nil {
			return nil, fmt.Errorf("product relations: %w", err)
		}
		for _, rel := range rels {
			if favourites[rel.ProductToID] {
				continue
			}
			out = append(out, Recommendation{
				Product: rel.ProductTo,
				Reason:  "Combina com " + names[rel.ProductFromID],
				Type:    string(rel.RelationType),
			})
		}
	}

	if cc.IsNewCustomer {
		popular, err := r.popular(ctx, popularLimit)
		if err != nil {
			return nil, fmt.Errorf("popular products: %w", err)
		}
		for _, p := range popular {
			out = append(out, Recommendation{
				Product: p,
				Reason:  "Escolha popular entre nossos clientes",
				Type:    RecommendationPopular,
			})
		}
	}

	if d := cc.DaysSinceLastPurchase; d != nil && *d > r.reorderAfterDays && len(cc.FavoriteProducts) > 0 {
		nudge := Recommendation{
			Product: cc.FavoriteProducts[0].Product,
			Reason:  fmt.Sprintf("Faz %d dias desde seu último pedido", *d),
			Type:    RecommendationReorder,
		}
		out = append([]Recommendation{nudge}, out...)
	}

	if len(out) > recommendationLimit {
		out = out[:recommendationLimit]
	}
	return out, nil
}
