package copilot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

type repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) Repo {
	return &repo{db: db}
}

const customerColumns = `id, phone, COALESCE(name, ''), COALESCE(email, ''), birthdate, COALESCE(notes, ''),
	billing_address, delivery_address, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*Customer, error) {
	var (
		c                 Customer
		birthdate         sql.NullTime
		billing, delivery []byte
	)
	if err := row.Scan(&c.ID, &c.Phone, &c.Name, &c.Email, &birthdate, &c.Notes, &billing, &delivery, &c.CreatedAt); err != nil {
		return nil, err
	}
	if birthdate.Valid {
		c.Birthdate = &birthdate.Time
	}
	var err error
	if c.BillingAddress, err = decodeAddress(billing); err != nil {
		return nil, fmt.Errorf("billing address: %w", err)
	}
	if c.DeliveryAddress, err = decodeAddress(delivery); err != nil {
		return nil, fmt.Errorf("delivery address: %w", err)
	}
	return &c, nil
}

func decodeAddress(raw []byte) (*Address, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var a Address
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repo) FindCustomer(ctx context.Context, phone string) (*Customer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE phone = $1`, phone)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *repo) Purchases(ctx context.Context, customerID int64, limit int) ([]Purchase, error) {
	query := `
		SELECT id, order_number, status, total_amount, created_at
		FROM purchases
		WHERE customer_id = $1
		ORDER BY created_at DESC`
	args := []any{customerID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Purchase{}
	index := map[int64]int{}
	var ids []int64
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.OrderNumber, &p.Status, &p.TotalAmount, &p.CreatedAt); err != nil {
			return nil, err
		}
		index[p.ID] = len(out)
		ids = append(ids, p.ID)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT i.purchase_id, i.product_id, i.quantity, i.unit_price, i.total_price,
		       `+productColumns("p")+`
		FROM purchase_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.purchase_id = ANY($1)
		ORDER BY i.id ASC
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			purchaseID int64
			it         PurchaseItem
			prod       Product
		)
		dest := append([]any{&purchaseID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.TotalPrice}, productDest(&prod)...)
		if err := itemRows.Scan(dest...); err != nil {
			return nil, err
		}
		it.Product = &prod
		i := index[purchaseID]
		out[i].Items = append(out[i].Items, it)
	}
	return out, itemRows.Err()
}

func productColumns(alias string) string {
	a := alias + "."
	return a + "id, " + a + "sku, " + a + "name, COALESCE(" + a + "description, ''), " + a + "price, " +
		a + "category, COALESCE(" + a + "subcategory, ''), " + a + "stock, " + a + "is_active"
}

func productDest(p *Product) []any {
	return []any{&p.ID, &p.SKU, &p.Name, &p.Description, &p.Price, &p.Category, &p.Subcategory, &p.Stock, &p.IsActive}
}

func (r *repo) queryProducts(ctx context.Context, query string, args ...any) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(productDest(&p)...); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repo) ActivePromotions(ctx context.Context, now time.Time) ([]Promotion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pr.id, pr.code, pr.name, COALESCE(pr.description, ''), pr.discount_type, pr.discount_value,
		       pr.min_purchase, pr.max_discount, pr.usage_limit, pr.usage_count,
		       pr.valid_from, pr.valid_until, pr.is_active, pr.target_type,
		       COALESCE(array_agg(pp.product_id) FILTER (WHERE pp.product_id IS NOT NULL), '{}')
		FROM promotions pr
		LEFT JOIN promotion_products pp ON pp.promotion_id = pr.id
		WHERE pr.is_active AND pr.valid_from <= $1 AND pr.valid_until >= $1
		GROUP BY pr.id
		ORDER BY pr.id ASC
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Promotion{}
	for rows.Next() {
		var (
			p                        Promotion
			discountType             string
			minPurchase, maxDiscount sql.NullFloat64
			usageLimit               sql.NullInt64
			productIDs               pq.Int64Array
		)
		if err := rows.Scan(
			&p.ID, &p.Code, &p.Name, &p.Description, &discountType, &p.DiscountValue,
			&minPurchase, &maxDiscount, &usageLimit, &p.UsageCount,
			&p.ValidFrom, &p.ValidUntil, &p.IsActive, &p.TargetType,
			&productIDs,
		); err != nil {
			return nil, err
		}
		p.DiscountType = DiscountType(discountType)
		if minPurchase.Valid {
			p.MinPurchase = &minPurchase.Float64
		}
		if maxDiscount.Valid {
			p.MaxDiscount = &maxDiscount.Float64
		}
		if usageLimit.Valid {
			n := int(usageLimit.Int64)
			p.UsageLimit = &n
		}
		p.ProductIDs = []int64(productIDs)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repo) RelationsFrom(ctx context.Context, ids []int64, limit int) ([]ProductRelation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rel.product_from_id, rel.product_to_id, rel.relation_type, rel.strength,
		       `+productColumns("p")+`
		FROM product_relations rel
		JOIN products p ON p.id = rel.product_to_id
		WHERE rel.product_from_id = ANY($1)
		ORDER BY rel.strength DESC
		LIMIT $2
	`, pq.Array(ids), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ProductRelation{}
	for rows.Next() {
		var (
			rel     ProductRelation
			relType string
		)
		dest := append([]any{&rel.ProductFromID, &rel.ProductToID, &relType, &rel.Strength}, productDest(&rel.ProductTo)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		rel.RelationType = RelationType(relType)
		out = append(out, rel)
	}
	return out, rows.Err()
}

func (r *repo) ProductsByStock(ctx context.Context, limit int) ([]Product, error) {
	return r.queryProducts(ctx, `
		SELECT `+productColumns("p")+`
		FROM products p
		WHERE p.is_active
		ORDER BY p.stock DESC
		LIMIT $1
	`, limit)
}

func (r *repo) ActiveTemplates(ctx context.Context) ([]SuggestionTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, trigger, category, template, priority, is_active
		FROM suggestion_templates
		WHERE is_active
		ORDER BY priority DESC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SuggestionTemplate{}
	for rows.Next() {
		var t SuggestionTemplate
		if err := rows.Scan(&t.ID, &t.Trigger, &t.Category, &t.Template, &t.Priority, &t.IsActive); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repo) ActiveProducts(ctx context.Context, category string) ([]Product, error) {
	if category == "" {
		return r.queryProducts(ctx, `
			SELECT `+productColumns("p")+`
			FROM products p
			WHERE p.is_active
			ORDER BY p.category ASC, p.name ASC
		`)
	}
	return r.queryProducts(ctx, `
		SELECT `+productColumns("p")+`
		FROM products p
		WHERE p.is_active AND p.category = $1
		ORDER BY p.name ASC
	`, category)
}

func (r *repo) SearchProducts(ctx context.Context, query string, limit int) ([]Product, error) {
	return r.queryProducts(ctx, `
		SELECT `+productColumns("p")+`
		FROM products p
		WHERE p.is_active
		  AND (p.name ILIKE $1 OR p.description ILIKE $1 OR p.category ILIKE $1 OR p.sku ILIKE $1)
		ORDER BY p.name ASC
		LIMIT $2
	`, "%"+query+"%", limit)
}

// Notes and name are upserts: operators may annotate a number before the
// customer has written in.
func (r *repo) UpdateCustomerNotes(ctx context.Context, phone, notes string) (*Customer, error) {
	return scanCustomer(r.db.QueryRowContext(ctx, `
		INSERT INTO customers (phone, notes) VALUES ($1, $2)
		ON CONFLICT (phone) DO UPDATE SET notes = EXCLUDED.notes
		RETURNING `+customerColumns, phone, notes))
}

func (r *repo) UpdateCustomerName(ctx context.Context, phone, name string) (*Customer, error) {
	return scanCustomer(r.db.QueryRowContext(ctx, `
		INSERT INTO customers (phone, name) VALUES ($1, $2)
		ON CONFLICT (phone) DO UPDATE SET name = EXCLUDED.name
		RETURNING `+customerColumns, phone, name))
}
