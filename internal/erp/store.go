// Package erp reads product, customer, and sales-history data from the
// mirrored Mikro ERP tables. The mirror is maintained by an external
// sync pipeline; everything here is read-only.
package erp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/b2b-pricing/internal/cache"
	"github.com/noah-isme/b2b-pricing/internal/pricing"
)

// ErrNotFound is returned when a product or customer is absent from the mirror.
var ErrNotFound = errors.New("erp: not found")

// ProductSnapshot carries the per-product cost and price fields the
// pricing flow consumes. Cost fields are optional; the mirror keeps
// whatever Mikro had, including nothing.
type ProductSnapshot struct {
	SKU               string     `json:"sku"`
	Name              string     `json:"name"`
	CurrentCost       *float64   `json:"currentCost,omitempty"`
	CurrentCostDate   *time.Time `json:"currentCostDate,omitempty"`
	LastEntryPrice    *float64   `json:"lastEntryPrice,omitempty"`
	LastEntryDate     *time.Time `json:"lastEntryDate,omitempty"`
	VatRate           *float64   `json:"vatRate,omitempty"`
	InvoicedListPrice float64    `json:"invoicedListPrice"`
	WhiteListPrice    float64    `json:"whiteListPrice"`
	SyncedAt          time.Time  `json:"syncedAt"`
}

// CostBasis maps the snapshot onto the pricing core's cost candidates.
// Mikro's "last entry price" is the recent purchase side; the recorded
// current cost is the book side.
func (p ProductSnapshot) CostBasis() pricing.CostBasis {
	return pricing.CostBasis{
		RecentCost:     p.LastEntryPrice,
		RecentCostDate: p.LastEntryDate,
		BookCost:       p.CurrentCost,
		BookCostDate:   p.CurrentCostDate,
	}
}

// Customer carries the pricing-relevant slice of a customer record.
type Customer struct {
	Code          string                  `json:"code"`
	Name          string                  `json:"name"`
	Visibility    pricing.PriceVisibility `json:"visibility"`
	VatPreference pricing.VatPreference   `json:"vatPreference"`
}

// Querier is the subset of pgxpool.Pool the store depends on.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store reads from the ERP mirror with an optional snapshot cache.
type Store struct {
	db    Querier
	cache *cache.JSON
}

// StoreConfig groups Store dependencies.
type StoreConfig struct {
	DB    Querier
	Cache *cache.JSON
}

// NewStore constructs an ERP mirror store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.DB == nil {
		return nil, errors.New("erp: db querier is required")
	}
	return &Store{db: cfg.DB, cache: cfg.Cache}, nil
}

const selectProduct = `
SELECT sku, name, current_cost, current_cost_date, last_entry_price, last_entry_date,
       vat_rate, invoiced_price, white_price, synced_at
FROM mikro_products
WHERE sku = $1 AND active`

// Product returns the cost/price snapshot for one SKU.
func (s *Store) Product(ctx context.Context, sku string) (ProductSnapshot, error) {
	key := "erp:product:" + sku
	var snap ProductSnapshot
	if hit, err := s.cache.Get(ctx, key, &snap); err == nil && hit {
		return snap, nil
	}

	err := s.db.QueryRow(ctx, selectProduct, sku).Scan(
		&snap.SKU,
		&snap.Name,
		&snap.CurrentCost,
		&snap.CurrentCostDate,
		&snap.LastEntryPrice,
		&snap.LastEntryDate,
		&snap.VatRate,
		&snap.InvoicedListPrice,
		&snap.WhiteListPrice,
		&snap.SyncedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductSnapshot{}, fmt.Errorf("%w: product %s", ErrNotFound, sku)
	}
	if err != nil {
		return ProductSnapshot{}, fmt.Errorf("erp: product %s: %w", sku, err)
	}
	_ = s.cache.Set(ctx, key, snap)
	return snap, nil
}

const selectCustomer = `
SELECT code, name, COALESCE(price_visibility, 'INVOICED_ONLY'), COALESCE(vat_display_preference, '')
FROM mikro_customers
WHERE code = $1`

// Customer returns the pricing entitlements for one customer.
func (s *Store) Customer(ctx context.Context, code string) (Customer, error) {
	key := "erp:customer:" + code
	var cust Customer
	if hit, err := s.cache.Get(ctx, key, &cust); err == nil && hit {
		return cust, nil
	}

	var visibility, preference string
	err := s.db.QueryRow(ctx, selectCustomer, code).Scan(&cust.Code, &cust.Name, &visibility, &preference)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, fmt.Errorf("%w: customer %s", ErrNotFound, code)
	}
	if err != nil {
		return Customer{}, fmt.Errorf("erp: customer %s: %w", code, err)
	}
	if cust.Visibility, err = pricing.ParsePriceVisibility(visibility); err != nil {
		return Customer{}, err
	}
	if cust.VatPreference, err = pricing.ParseVatPreference(preference); err != nil {
		return Customer{}, err
	}
	_ = s.cache.Set(ctx, key, cust)
	return cust, nil
}

const selectLastSale = `
SELECT unit_price
FROM mikro_sales_history
WHERE customer_code = $1 AND sku = $2
ORDER BY sold_at DESC
LIMIT 1`

// LastSalePrice returns the most recent observed sale price for a
// customer/product pair, or nil when the pair has no history.
func (s *Store) LastSalePrice(ctx context.Context, customerCode, sku string) (*float64, error) {
	var price *float64
	err := s.db.QueryRow(ctx, selectLastSale, customerCode, sku).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("erp: last sale %s/%s: %w", customerCode, sku, err)
	}
	return price, nil
}

const selectActiveProducts = `
SELECT sku, name, current_cost, current_cost_date, last_entry_price, last_entry_date,
       vat_rate, invoiced_price, white_price, synced_at
FROM mikro_products
WHERE active
ORDER BY sku`

// ActiveProducts streams every active product snapshot, for report scans.
func (s *Store) ActiveProducts(ctx context.Context) ([]ProductSnapshot, error) {
	rows, err := s.db.Query(ctx, selectActiveProducts)
	if err != nil {
		return nil, fmt.Errorf("erp: active products: %w", err)
	}
	defer rows.Close()

	var out []ProductSnapshot
	for rows.Next() {
		var snap ProductSnapshot
		if err := rows.Scan(
			&snap.SKU,
			&snap.Name,
			&snap.CurrentCost,
			&snap.CurrentCostDate,
			&snap.LastEntryPrice,
			&snap.LastEntryDate,
			&snap.VatRate,
			&snap.InvoicedListPrice,
			&snap.WhiteListPrice,
			&snap.SyncedAt,
		); err != nil {
			return nil, fmt.Errorf("erp: scan product: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erp: active products: %w", err)
	}
	return out, nil
}

const selectLatestSync = `SELECT MAX(synced_at) FROM mikro_products`

// LatestSyncedAt reports when the mirror last received data, for the
// readiness staleness probe.
func (s *Store) LatestSyncedAt(ctx context.Context) (time.Time, error) {
	var ts *time.Time
	if err := s.db.QueryRow(ctx, selectLatestSync).Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("erp: latest sync: %w", err)
	}
	if ts == nil {
		return time.Time{}, nil
	}
	return *ts, nil
}
