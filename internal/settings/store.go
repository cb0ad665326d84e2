package settings

import (
	"context"
	"errors"
	"fmt"
	"math"

	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/b2b-pricing/internal/cache"
	"github.com/noah-isme/b2b-pricing/internal/pricing"
)

// cacheKey stores the validated pricing settings snapshot in Redis.
const cacheKey = "settings:pricing"

// Row mirrors the portal settings record as stored in Postgres. The
// columns keep the portal's original names; validation happens here at
// the edge so the pricing core never re-checks configuration.
type Row struct {
	CostCalculationMethod   string   `json:"costCalculationMethod" validate:"required,oneof=RECENT_ONLY BOOK_ONLY DYNAMIC_BLEND"`
	DayThreshold            int      `json:"dayThreshold" validate:"gte=0"`
	PriceWeightNew          float64  `json:"priceWeightNew" validate:"gte=0,lte=1"`
	PriceWeightOld          float64  `json:"priceWeightOld" validate:"gte=0,lte=1"`
	UseLastPrices           bool     `json:"useLastPrices"`
	LastPriceGuardType      string   `json:"lastPriceGuardType" validate:"required,oneof=COST PRICE_LIST"`
	LastPriceCostBasis      string   `json:"lastPriceCostBasis" validate:"required,oneof=CURRENT_COST LAST_ENTRY"`
	LastPriceMinCostPercent *float64 `json:"lastPriceMinCostPercent" validate:"omitempty,gte=0,lte=100"`
}

// Pricing bundles the validated policies consumed by the pricing core.
type Pricing struct {
	CostPolicy pricing.CostPolicy
	LastPrice  pricing.LastPriceConfig
}

// Querier is the subset of pgxpool.Pool the store depends on.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store loads and validates portal pricing settings.
type Store struct {
	db       Querier
	cache    *cache.JSON
	validate *validator.Validate
}

// StoreConfig groups Store dependencies.
type StoreConfig struct {
	DB    Querier
	Cache *cache.JSON
}

// NewStore constructs a settings store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.DB == nil {
		return nil, errors.New("settings: db querier is required")
	}
	return &Store{
		db:       cfg.DB,
		cache:    cfg.Cache,
		validate: validator.New(),
	}, nil
}

const selectSettings = `
SELECT
  COALESCE(cost_calculation_method, 'DYNAMIC_BLEND'),
  COALESCE(day_threshold, 30),
  COALESCE(price_weight_new, 0.7),
  COALESCE(price_weight_old, 0.3),
  COALESCE(use_last_prices, TRUE),
  COALESCE(last_price_guard_type, 'COST'),
  COALESCE(last_price_cost_basis, 'CURRENT_COST'),
  last_price_min_cost_percent
FROM portal_settings
ORDER BY updated_at DESC
LIMIT 1`

// Load returns the current validated pricing settings. The snapshot is
// cached with a short TTL; Invalidate drops it after an admin edit.
func (s *Store) Load(ctx context.Context) (Pricing, error) {
	var row Row
	if hit, err := s.cache.Get(ctx, cacheKey, &row); err == nil && hit {
		return s.build(row)
	}

	err := s.db.QueryRow(ctx, selectSettings).Scan(
		&row.CostCalculationMethod,
		&row.DayThreshold,
		&row.PriceWeightNew,
		&row.PriceWeightOld,
		&row.UseLastPrices,
		&row.LastPriceGuardType,
		&row.LastPriceCostBasis,
		&row.LastPriceMinCostPercent,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		row = defaults()
	} else if err != nil {
		return Pricing{}, fmt.Errorf("settings: load: %w", err)
	}

	result, err := s.build(row)
	if err != nil {
		return Pricing{}, err
	}
	_ = s.cache.Set(ctx, cacheKey, row)
	return result, nil
}

// Invalidate drops the cached settings snapshot.
func (s *Store) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, cacheKey)
}

// build validates the raw row and maps it onto core policy types.
func (s *Store) build(row Row) (Pricing, error) {
	if err := s.validate.Struct(row); err != nil {
		return Pricing{}, fmt.Errorf("%w: %v", pricing.ErrInvalidConfiguration, err)
	}
	if math.Abs(row.PriceWeightNew+row.PriceWeightOld-1) > 1e-9 {
		return Pricing{}, fmt.Errorf("%w: price weights %v + %v do not sum to 1",
			pricing.ErrInvalidConfiguration, row.PriceWeightNew, row.PriceWeightOld)
	}

	method, err := pricing.ParseCostMethod(row.CostCalculationMethod)
	if err != nil {
		return Pricing{}, err
	}
	guardType, err := pricing.ParseGuardType(row.LastPriceGuardType)
	if err != nil {
		return Pricing{}, err
	}
	guardBasis, err := pricing.ParseGuardCostBasis(row.LastPriceCostBasis)
	if err != nil {
		return Pricing{}, err
	}

	policy := pricing.CostPolicy{
		Method:                method,
		AgeThresholdDays:      row.DayThreshold,
		WeightRecentWhenFresh: row.PriceWeightNew,
	}
	if err := policy.Validate(); err != nil {
		return Pricing{}, err
	}

	return Pricing{
		CostPolicy: policy,
		LastPrice: pricing.LastPriceConfig{
			UseLastPrices:     row.UseLastPrices,
			GuardType:         guardType,
			CostBasisForGuard: guardBasis,
			MinCostPercent:    row.LastPriceMinCostPercent,
		},
	}, nil
}

// defaults returns the portal defaults used before any settings row exists.
func defaults() Row {
	return Row{
		CostCalculationMethod: string(pricing.CostMethodDynamicBlend),
		DayThreshold:          30,
		PriceWeightNew:        0.7,
		PriceWeightOld:        0.3,
		UseLastPrices:         true,
		LastPriceGuardType:    string(pricing.GuardTypeCost),
		LastPriceCostBasis:    string(pricing.GuardBasisCurrentCost),
	}
}
