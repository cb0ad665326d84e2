// Package report produces the margin compliance report: products whose
// invoiced list price sits below the configured margin floor over the
// effective cost.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/b2b-pricing/internal/cache"
	"github.com/noah-isme/b2b-pricing/internal/erp"
	"github.com/noah-isme/b2b-pricing/internal/lock"
	"github.com/noah-isme/b2b-pricing/internal/obs"
	"github.com/noah-isme/b2b-pricing/internal/pricing"
	"github.com/noah-isme/b2b-pricing/internal/settings"
)

const (
	lockKey   = "report:margin:lock"
	latestKey = "report:margin:latest"
)

// ErrRunInProgress is returned when another report run holds the lock.
var ErrRunInProgress = errors.New("report: run already in progress")

// Violation is one product priced below the margin floor.
type Violation struct {
	SKU           string  `json:"sku"`
	Name          string  `json:"name"`
	ListPrice     float64 `json:"listPrice"`
	EffectiveCost float64 `json:"effectiveCost"`
	// MarginPercent is rounded to two decimals for display only; the
	// comparison itself runs on the raw values.
	MarginPercent string `json:"marginPercent"`
}

// Result is the outcome of one report run.
type Result struct {
	ID               string      `json:"id"`
	StartedAt        time.Time   `json:"startedAt"`
	FinishedAt       time.Time   `json:"finishedAt"`
	MinMarginPercent float64     `json:"minMarginPercent"`
	Scanned          int         `json:"scanned"`
	Skipped          int         `json:"skipped"`
	Violations       []Violation `json:"violations"`
}

// SettingsProvider supplies validated pricing configuration.
type SettingsProvider interface {
	Load(ctx context.Context) (settings.Pricing, error)
}

// ProductSource lists the products to scan.
type ProductSource interface {
	ActiveProducts(ctx context.Context) ([]erp.ProductSnapshot, error)
}

// Service runs margin compliance scans.
type Service struct {
	settings         SettingsProvider
	products         ProductSource
	results          *cache.JSON
	locker           lock.Locker
	lockTTL          time.Duration
	minMarginPercent float64
	logger           zerolog.Logger
	now              func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Settings         SettingsProvider
	Products         ProductSource
	Results          *cache.JSON
	Locker           lock.Locker
	LockTTL          time.Duration
	MinMarginPercent float64
	Logger           zerolog.Logger
	Now              func() time.Time
}

// NewService constructs a report service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Settings == nil {
		return nil, errors.New("report: settings provider is required")
	}
	if cfg.Products == nil {
		return nil, errors.New("report: product source is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &Service{
		settings:         cfg.Settings,
		products:         cfg.Products,
		results:          cfg.Results,
		locker:           cfg.Locker,
		lockTTL:          lockTTL,
		minMarginPercent: cfg.MinMarginPercent,
		logger:           cfg.Logger,
		now:              now,
	}, nil
}

// Run executes one scan. Runs are serialized through a Redis lock;
// a concurrent run returns ErrRunInProgress.
func (s *Service) Run(ctx context.Context) (Result, error) {
	var result Result
	err := s.locker.WithLock(ctx, lockKey, s.lockTTL, func(ctx context.Context) error {
		var runErr error
		result, runErr = s.scan(ctx)
		return runErr
	})
	if errors.Is(err, lock.ErrNotObtained) {
		countRun("skipped")
		return Result{}, ErrRunInProgress
	}
	if err != nil {
		countRun("error")
		return Result{}, err
	}
	countRun("ok")
	if obs.ReportViolations != nil {
		obs.ReportViolations.Set(float64(len(result.Violations)))
	}
	return result, nil
}

func (s *Service) scan(ctx context.Context) (Result, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("report: settings: %w", err)
	}
	snapshots, err := s.products.ActiveProducts(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("report: products: %w", err)
	}

	result := Result{
		ID:               uuid.NewString(),
		StartedAt:        s.now(),
		MinMarginPercent: s.minMarginPercent,
	}
	asOf := result.StartedAt

	for _, product := range snapshots {
		result.Scanned++
		cost, err := pricing.ResolveCost(product.CostBasis(), cfg.CostPolicy, asOf)
		if errors.Is(err, pricing.ErrNoCostAvailable) {
			// No cost, no margin check. The product is skipped, not
			// flagged; missing mirror data is a sync concern.
			result.Skipped++
			continue
		}
		if err != nil {
			return Result{}, err
		}
		floor := cost * (1 + s.minMarginPercent/100)
		if product.InvoicedListPrice >= floor {
			continue
		}
		margin := decimal.NewFromFloat((product.InvoicedListPrice - cost) / cost * 100).Round(2)
		result.Violations = append(result.Violations, Violation{
			SKU:           product.SKU,
			Name:          product.Name,
			ListPrice:     product.InvoicedListPrice,
			EffectiveCost: cost,
			MarginPercent: margin.String(),
		})
	}

	result.FinishedAt = s.now()
	if err := s.results.Set(ctx, latestKey, result); err != nil {
		s.logger.Error().Err(err).Msg("store report result")
	}
	s.logger.Info().
		Str("run_id", result.ID).
		Int("scanned", result.Scanned).
		Int("skipped", result.Skipped).
		Int("violations", len(result.Violations)).
		Msg("margin report completed")
	return result, nil
}

// Latest returns the most recent stored report, if any.
func (s *Service) Latest(ctx context.Context) (Result, bool, error) {
	var result Result
	hit, err := s.results.Get(ctx, latestKey, &result)
	if err != nil {
		return Result{}, false, fmt.Errorf("report: latest: %w", err)
	}
	return result, hit, nil
}

func countRun(result string) {
	if obs.ReportRunsTotal != nil {
		obs.ReportRunsTotal.WithLabelValues(result).Inc()
	}
}
