package quote_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/b2b-pricing/internal/erp"
	"github.com/noah-isme/b2b-pricing/internal/pricing"
	"github.com/noah-isme/b2b-pricing/internal/quote"
	"github.com/noah-isme/b2b-pricing/internal/settings"
)

func fptr(v float64) *float64 { return &v }

func tptr(t time.Time) *time.Time { return &t }

type fakeSettings struct {
	cfg settings.Pricing
	err error
}

func (f fakeSettings) Load(context.Context) (settings.Pricing, error) { return f.cfg, f.err }

type fakeERP struct {
	products  map[string]erp.ProductSnapshot
	customers map[string]erp.Customer
	lastSales map[string]*float64
}

func (f fakeERP) Product(_ context.Context, sku string) (erp.ProductSnapshot, error) {
	p, ok := f.products[sku]
	if !ok {
		return erp.ProductSnapshot{}, erp.ErrNotFound
	}
	return p, nil
}

func (f fakeERP) Customer(_ context.Context, code string) (erp.Customer, error) {
	c, ok := f.customers[code]
	if !ok {
		return erp.Customer{}, erp.ErrNotFound
	}
	return c, nil
}

func (f fakeERP) LastSalePrice(_ context.Context, customerCode, sku string) (*float64, error) {
	return f.lastSales[customerCode+"/"+sku], nil
}

func defaultSettings() settings.Pricing {
	return settings.Pricing{
		CostPolicy: pricing.CostPolicy{
			Method:                pricing.CostMethodDynamicBlend,
			AgeThresholdDays:      30,
			WeightRecentWhenFresh: 0.7,
		},
		LastPrice: pricing.LastPriceConfig{
			UseLastPrices:     true,
			GuardType:         pricing.GuardTypeCost,
			CostBasisForGuard: pricing.GuardBasisCurrentCost,
		},
	}
}

func newService(t *testing.T, cfg settings.Pricing, data fakeERP, now time.Time) *quote.Service {
	t.Helper()
	svc, err := quote.NewService(quote.ServiceConfig{
		Settings: fakeSettings{cfg: cfg},
		ERP:      data,
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)
	return svc
}

func TestQuoteFullFlow(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	vat := 0.18
	data := fakeERP{
		products: map[string]erp.ProductSnapshot{
			"SKU-1": {
				SKU:               "SKU-1",
				LastEntryPrice:    fptr(100),
				LastEntryDate:     tptr(now.AddDate(0, 0, -10)),
				CurrentCost:       fptr(120),
				VatRate:           &vat,
				InvoicedListPrice: 150,
				WhiteListPrice:    140,
			},
		},
		customers: map[string]erp.Customer{
			"C-1": {Code: "C-1", Visibility: pricing.VisibilityBoth, VatPreference: pricing.VatWithVat},
		},
		lastSales: map[string]*float64{"C-1/SKU-1": fptr(130)},
	}

	svc := newService(t, defaultSettings(), data, now)
	q, err := svc.Quote(context.Background(), "C-1", "SKU-1")
	require.NoError(t, err)

	// Blended cost 100*0.7 + 120*0.3 = 106; guard floor 120*0.9 = 108;
	// observed 130 clears it, both bases collapse to 130.
	require.True(t, q.UsedLastPrice)
	require.False(t, q.Degraded)
	require.NotNil(t, q.EffectiveCost)
	require.InDelta(t, 106.0, *q.EffectiveCost, 1e-9)
	require.NotNil(t, q.Invoiced)
	require.InDelta(t, 130*1.18, *q.Invoiced, 1e-9)
	require.NotNil(t, q.White)
	require.InDelta(t, 130.0, *q.White, 1e-9)
}

func TestQuoteDegradesWithoutCost(t *testing.T) {
	now := time.Now()
	data := fakeERP{
		products: map[string]erp.ProductSnapshot{
			"SKU-2": {SKU: "SKU-2", InvoicedListPrice: 80, WhiteListPrice: 75},
		},
		customers: map[string]erp.Customer{
			"C-1": {Code: "C-1", Visibility: pricing.VisibilityBoth, VatPreference: pricing.VatWithoutVat},
		},
	}

	svc := newService(t, defaultSettings(), data, now)
	q, err := svc.Quote(context.Background(), "C-1", "SKU-2")
	require.NoError(t, err)

	require.True(t, q.Degraded)
	require.Nil(t, q.EffectiveCost)
	require.NotNil(t, q.Invoiced)
	require.InDelta(t, 80.0, *q.Invoiced, 1e-9)
}

func TestQuoteVisibilityGatesFields(t *testing.T) {
	now := time.Now()
	data := fakeERP{
		products: map[string]erp.ProductSnapshot{
			"SKU-3": {SKU: "SKU-3", CurrentCost: fptr(50), InvoicedListPrice: 80, WhiteListPrice: 75},
		},
		customers: map[string]erp.Customer{
			"WHITE": {Code: "WHITE", Visibility: pricing.VisibilityWhiteOnly},
			"INV":   {Code: "INV", Visibility: pricing.VisibilityInvoicedOnly},
		},
	}
	svc := newService(t, defaultSettings(), data, now)

	q, err := svc.Quote(context.Background(), "WHITE", "SKU-3")
	require.NoError(t, err)
	require.Nil(t, q.Invoiced)
	require.NotNil(t, q.White)

	q, err = svc.Quote(context.Background(), "INV", "SKU-3")
	require.NoError(t, err)
	require.NotNil(t, q.Invoiced)
	require.Nil(t, q.White)
}

func TestQuoteOverrideRejectedByPriceListGuard(t *testing.T) {
	now := time.Now()
	cfg := defaultSettings()
	cfg.LastPrice.GuardType = pricing.GuardTypePriceList
	data := fakeERP{
		products: map[string]erp.ProductSnapshot{
			"SKU-4": {SKU: "SKU-4", CurrentCost: fptr(40), InvoicedListPrice: 100, WhiteListPrice: 90},
		},
		customers: map[string]erp.Customer{
			"C-1": {Code: "C-1", Visibility: pricing.VisibilityBoth},
		},
		lastSales: map[string]*float64{"C-1/SKU-4": fptr(95)},
	}

	svc := newService(t, cfg, data, now)
	q, err := svc.Quote(context.Background(), "C-1", "SKU-4")
	require.NoError(t, err)
	require.False(t, q.UsedLastPrice)
	require.InDelta(t, 100.0, *q.Invoiced, 1e-9)
	require.InDelta(t, 90.0, *q.White, 1e-9)
}

func TestQuoteBatchSharesCustomerLookup(t *testing.T) {
	now := time.Now()
	data := fakeERP{
		products: map[string]erp.ProductSnapshot{
			"A": {SKU: "A", CurrentCost: fptr(10), InvoicedListPrice: 20, WhiteListPrice: 18},
			"B": {SKU: "B", CurrentCost: fptr(30), InvoicedListPrice: 60, WhiteListPrice: 55},
		},
		customers: map[string]erp.Customer{
			"C-1": {Code: "C-1", Visibility: pricing.VisibilityBoth},
		},
	}
	svc := newService(t, defaultSettings(), data, now)

	quotes, err := svc.QuoteBatch(context.Background(), "C-1", []string{"A", "B"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	require.Equal(t, "A", quotes[0].SKU)
	require.Equal(t, "B", quotes[1].SKU)
}

func TestQuoteUnknownProduct(t *testing.T) {
	data := fakeERP{
		customers: map[string]erp.Customer{
			"C-1": {Code: "C-1", Visibility: pricing.VisibilityBoth},
		},
	}
	svc := newService(t, defaultSettings(), data, time.Now())

	_, err := svc.Quote(context.Background(), "C-1", "MISSING")
	require.ErrorIs(t, err, erp.ErrNotFound)
}
