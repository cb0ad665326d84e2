// Package quote composes portal settings, ERP mirror data, and the
// pricing rules into customer-facing price quotes.
package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/b2b-pricing/internal/erp"
	"github.com/noah-isme/b2b-pricing/internal/obs"
	"github.com/noah-isme/b2b-pricing/internal/pricing"
	"github.com/noah-isme/b2b-pricing/internal/settings"
)

// SettingsProvider supplies validated pricing configuration.
type SettingsProvider interface {
	Load(ctx context.Context) (settings.Pricing, error)
}

// DataSource supplies the per-product and per-customer ERP inputs.
type DataSource interface {
	Product(ctx context.Context, sku string) (erp.ProductSnapshot, error)
	Customer(ctx context.Context, code string) (erp.Customer, error)
	LastSalePrice(ctx context.Context, customerCode, sku string) (*float64, error)
}

// Quote is the computed pricing result for one customer/product pair.
// Price fields the customer is not entitled to stay nil. Displayed
// prices already carry the VAT display transform; the stored bases are
// never mutated.
type Quote struct {
	SKU           string   `json:"sku"`
	CustomerCode  string   `json:"customerCode"`
	Invoiced      *float64 `json:"invoiced,omitempty"`
	White         *float64 `json:"white,omitempty"`
	UsedLastPrice bool     `json:"usedLastPrice"`
	EffectiveCost *float64 `json:"effectiveCost,omitempty"`
	// Degraded marks quotes where no usable cost existed; list prices
	// are shown and the line is flagged for manual review.
	Degraded bool `json:"degraded"`
}

// Service computes quotes. All inputs are fetched up front; the pricing
// functions themselves are pure and safe to run concurrently.
type Service struct {
	settings SettingsProvider
	erp      DataSource
	logger   zerolog.Logger
	now      func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Settings SettingsProvider
	ERP      DataSource
	Logger   zerolog.Logger
	Now      func() time.Time
}

// NewService constructs a quote service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Settings == nil {
		return nil, errors.New("quote: settings provider is required")
	}
	if cfg.ERP == nil {
		return nil, errors.New("quote: erp data source is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{settings: cfg.Settings, erp: cfg.ERP, logger: cfg.Logger, now: now}, nil
}

// Quote computes the displayable prices for one customer/product pair.
func (s *Service) Quote(ctx context.Context, customerCode, sku string) (Quote, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		countQuote("error")
		return Quote{}, fmt.Errorf("quote: settings: %w", err)
	}
	customer, err := s.erp.Customer(ctx, customerCode)
	if err != nil {
		countQuote("error")
		return Quote{}, err
	}
	return s.quoteFor(ctx, cfg, customer, sku)
}

// QuoteBatch computes quotes for several SKUs for the same customer.
// Settings and the customer record are fetched once.
func (s *Service) QuoteBatch(ctx context.Context, customerCode string, skus []string) ([]Quote, error) {
	cfg, err := s.settings.Load(ctx)
	if err != nil {
		countQuote("error")
		return nil, fmt.Errorf("quote: settings: %w", err)
	}
	customer, err := s.erp.Customer(ctx, customerCode)
	if err != nil {
		countQuote("error")
		return nil, err
	}
	out := make([]Quote, 0, len(skus))
	for _, sku := range skus {
		q, err := s.quoteFor(ctx, cfg, customer, sku)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *Service) quoteFor(ctx context.Context, cfg settings.Pricing, customer erp.Customer, sku string) (Quote, error) {
	product, err := s.erp.Product(ctx, sku)
	if err != nil {
		countQuote("error")
		return Quote{}, err
	}
	observed, err := s.erp.LastSalePrice(ctx, customer.Code, sku)
	if err != nil {
		countQuote("error")
		return Quote{}, err
	}

	basis := product.CostBasis()
	quote := Quote{SKU: product.SKU, CustomerCode: customer.Code}

	cost, err := pricing.ResolveCost(basis, cfg.CostPolicy, s.now())
	switch {
	case err == nil:
		quote.EffectiveCost = &cost
	case errors.Is(err, pricing.ErrNoCostAvailable):
		quote.Degraded = true
		if obs.CostResolveFailures != nil {
			obs.CostResolveFailures.Inc()
		}
		s.logger.Warn().Str("sku", sku).Msg("no usable cost, quoting list price")
	default:
		countQuote("error")
		return Quote{}, err
	}

	list := pricing.PriceQuote{
		Invoiced: product.InvoicedListPrice,
		White:    product.WhiteListPrice,
	}
	res := pricing.ApplyLastPriceOverride(cfg.LastPrice, observed, list, basis, customer.Visibility)
	quote.UsedLastPrice = res.UsedOverride
	countOverride(cfg.LastPrice, observed, res.UsedOverride)

	if customer.Visibility != pricing.VisibilityWhiteOnly {
		invoiced := pricing.DisplayPrice(res.Prices.Invoiced, product.VatRate, pricing.PriceKindInvoiced, customer.VatPreference)
		quote.Invoiced = &invoiced
	}
	if customer.Visibility != pricing.VisibilityInvoicedOnly {
		white := pricing.DisplayPrice(res.Prices.White, product.VatRate, pricing.PriceKindWhite, customer.VatPreference)
		quote.White = &white
	}

	if quote.Degraded {
		countQuote("degraded")
	} else {
		countQuote("ok")
	}
	return quote, nil
}

func countQuote(result string) {
	if obs.QuoteTotal != nil {
		obs.QuoteTotal.WithLabelValues(result).Inc()
	}
}

func countOverride(cfg pricing.LastPriceConfig, observed *float64, used bool) {
	if obs.OverrideTotal == nil {
		return
	}
	switch {
	case !cfg.UseLastPrices || observed == nil:
		obs.OverrideTotal.WithLabelValues("skipped").Inc()
	case used:
		obs.OverrideTotal.WithLabelValues("accepted").Inc()
	default:
		obs.OverrideTotal.WithLabelValues("rejected").Inc()
	}
}
