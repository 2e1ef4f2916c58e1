// Package orders reads order context from the host shop database.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/tournevent/carrierhub/internal/domain"
)

// Querier is the subset of *pgxpool.Pool the provider uses.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Provider implements domain.OrderProvider over the host platform tables.
type Provider struct {
	db     Querier
	prefix string
}

var _ domain.OrderProvider = (*Provider)(nil)

// NewProvider creates a provider. prefix is the host table prefix (e.g. "ps_").
func NewProvider(db Querier, prefix string) *Provider {
	return &Provider{db: db, prefix: prefix}
}

const orderQuery = `
SELECT o.id_order, o.reference, o.id_shop, o.id_shop_group,
       c.id_zone, a.id_country,
       TRIM(CONCAT(a.firstname, ' ', a.lastname)), COALESCE(a.company, ''),
       a.address1, COALESCE(a.address2, ''), a.city, COALESCE(s.iso_code, ''), a.postcode,
       c.iso_code, COALESCE(NULLIF(a.phone_mobile, ''), a.phone, ''), cu.email, cur.iso_code
FROM {p}orders o
JOIN {p}address a ON a.id_address = o.id_address_delivery
JOIN {p}country c ON c.id_country = a.id_country
LEFT JOIN {p}state s ON s.id_state = a.id_state
JOIN {p}customer cu ON cu.id_customer = o.id_customer
JOIN {p}currency cur ON cur.id_currency = o.id_currency
WHERE o.id_order = $1`

const linesQuery = `
SELECT od.product_id, COALESCE(od.product_weight, 0) * od.product_quantity
FROM {p}order_detail od
WHERE od.id_order = $1
ORDER BY od.id_order_detail`

const categoriesQuery = `
SELECT DISTINCT cp.id_category
FROM {p}category_product cp
JOIN {p}order_detail od ON od.product_id = cp.id_product
WHERE od.id_order = $1
ORDER BY cp.id_category`

func (p *Provider) sql(q string) string {
	return strings.ReplaceAll(q, "{p}", p.prefix)
}

// Order loads the order, its delivery address, product weights and categories.
func (p *Provider) Order(ctx context.Context, orderID int64) (*domain.Order, error) {
	o := &domain.Order{}
	r := &o.Recipient
	err := p.db.QueryRow(ctx, p.sql(orderQuery), orderID).Scan(
		&o.ID, &o.Reference, &o.ShopID, &o.ShopGroupID,
		&o.ZoneID, &o.CountryID,
		&r.Name, &r.Company,
		&r.Line1, &r.Line2, &r.City, &r.ProvinceCode, &r.PostalCode,
		&r.CountryCode, &r.Phone, &r.Email, &o.Currency,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound.Withf("order not found: %d", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("query order %d: %w", orderID, err)
	}

	rows, err := p.db.Query(ctx, p.sql(linesQuery), orderID)
	if err != nil {
		return nil, fmt.Errorf("query order %d lines: %w", orderID, err)
	}
	seen := make(map[int64]bool)
	for rows.Next() {
		var (
			productID int64
			weight    float64
		)
		if err := rows.Scan(&productID, &weight); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order %d line: %w", orderID, err)
		}
		o.Weight += weight
		if !seen[productID] {
			seen[productID] = true
			o.ProductIDs = append(o.ProductIDs, productID)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read order %d lines: %w", orderID, err)
	}

	rows, err = p.db.Query(ctx, p.sql(categoriesQuery), orderID)
	if err != nil {
		return nil, fmt.Errorf("query order %d categories: %w", orderID, err)
	}
	o.CategoryIDs, err = pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("read order %d categories: %w", orderID, err)
	}

	return o, nil
}

// Static serves orders from memory. It backs mock mode and tests.
type Static struct {
	mu     sync.RWMutex
	orders map[int64]domain.Order
}

var _ domain.OrderProvider = (*Static)(nil)

// NewStatic creates a provider holding orders.
func NewStatic(orders ...domain.Order) *Static {
	s := &Static{orders: make(map[int64]domain.Order)}
	for _, o := range orders {
		s.Put(o)
	}
	return s
}

// Put adds or replaces an order.
func (s *Static) Put(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

// Order returns a copy of the stored order.
func (s *Static) Order(_ context.Context, orderID int64) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound.Withf("order not found: %d", orderID)
	}
	return &o, nil
}
