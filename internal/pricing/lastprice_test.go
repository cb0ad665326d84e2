package pricing

import (
	"math"
	"testing"
)

func TestOverrideDisabledReturnsListUnchanged(t *testing.T) {
	list := PriceQuote{Invoiced: 100, White: 90}
	cfg := LastPriceConfig{UseLastPrices: false, GuardType: GuardTypeCost}
	res := ApplyLastPriceOverride(cfg, fptr(10), list, CostBasis{BookCost: fptr(500)}, VisibilityBoth)
	if res.UsedOverride {
		t.Fatal("override must not apply when useLastPrices is off")
	}
	if res.Prices != list {
		t.Fatalf("list prices must pass through unchanged, got %+v", res.Prices)
	}
}

func TestOverrideAbsentOrMalformedObserved(t *testing.T) {
	list := PriceQuote{Invoiced: 100, White: 90}
	cfg := LastPriceConfig{UseLastPrices: true, GuardType: GuardTypeCost}
	nan := math.NaN()
	for name, observed := range map[string]*float64{
		"nil":      nil,
		"zero":     fptr(0),
		"negative": fptr(-5),
		"nan":      &nan,
	} {
		res := ApplyLastPriceOverride(cfg, observed, list, CostBasis{}, VisibilityBoth)
		if res.UsedOverride || res.Prices != list {
			t.Fatalf("%s observed price must short-circuit, got %+v", name, res)
		}
	}
}

func TestPriceListGuardUsesInvoicedReference(t *testing.T) {
	list := PriceQuote{Invoiced: 100, White: 50}
	cfg := LastPriceConfig{UseLastPrices: true, GuardType: GuardTypePriceList}

	res := ApplyLastPriceOverride(cfg, fptr(80), list, CostBasis{}, VisibilityBoth)
	if res.UsedOverride {
		t.Fatal("80 below invoiced list 100 must be rejected")
	}

	res = ApplyLastPriceOverride(cfg, fptr(120), list, CostBasis{}, VisibilityBoth)
	if !res.UsedOverride {
		t.Fatal("120 above invoiced list 100 must be accepted")
	}
	if res.Prices.Invoiced != 120 || res.Prices.White != 120 {
		t.Fatalf("accepted override must collapse both prices, got %+v", res.Prices)
	}
}

func TestPriceListGuardWhiteOnlyFloorsAgainstWhite(t *testing.T) {
	list := PriceQuote{Invoiced: 100, White: 50}
	cfg := LastPriceConfig{UseLastPrices: true, GuardType: GuardTypePriceList}

	res := ApplyLastPriceOverride(cfg, fptr(40), list, CostBasis{}, VisibilityWhiteOnly)
	if res.UsedOverride {
		t.Fatal("40 below white list 50 must be rejected for WHITE_ONLY")
	}

	// 60 clears the white floor even though it is under the invoiced list.
	res = ApplyLastPriceOverride(cfg, fptr(60), list, CostBasis{}, VisibilityWhiteOnly)
	if !res.UsedOverride {
		t.Fatal("60 above white list 50 must be accepted for WHITE_ONLY")
	}
}

func TestCostGuardBoundary(t *testing.T) {
	list := PriceQuote{Invoiced: 100, White: 95}
	pct := 10.0
	cfg := LastPriceConfig{
		UseLastPrices:     true,
		GuardType:         GuardTypeCost,
		CostBasisForGuard: GuardBasisCurrentCost,
		MinCostPercent:    &pct,
	}
	cost := CostBasis{BookCost: fptr(100)}

	res := ApplyLastPriceOverride(cfg, fptr(89), list, cost, VisibilityBoth)
	if res.UsedOverride {
		t.Fatal("89 below minAllowed 90 must be rejected")
	}

	res = ApplyLastPriceOverride(cfg, fptr(90), list, cost, VisibilityBoth)
	if !res.UsedOverride {
		t.Fatal("90 equal to minAllowed must be accepted")
	}
}

func TestCostGuardBasisSelection(t *testing.T) {
	list := PriceQuote{Invoiced: 100, White: 95}
	cost := CostBasis{BookCost: fptr(100), RecentCost: fptr(50)}

	cfg := LastPriceConfig{UseLastPrices: true, GuardType: GuardTypeCost, CostBasisForGuard: GuardBasisLastEntry}
	res := ApplyLastPriceOverride(cfg, fptr(60), list, cost, VisibilityBoth)
	if !res.UsedOverride {
		t.Fatal("LAST_ENTRY floors against the recent cost; 60 clears 45")
	}

	cfg.CostBasisForGuard = GuardBasisCurrentCost
	res = ApplyLastPriceOverride(cfg, fptr(60), list, cost, VisibilityBoth)
	if res.UsedOverride {
		t.Fatal("CURRENT_COST floors against the book cost; 60 is under 90")
	}
}

func TestCostGuardInertWithoutCostData(t *testing.T) {
	list := PriceQuote{Invoiced: 100, White: 95}
	cfg := LastPriceConfig{UseLastPrices: true, GuardType: GuardTypeCost, CostBasisForGuard: GuardBasisCurrentCost}

	for name, cost := range map[string]CostBasis{
		"absent":   {},
		"zero":     {BookCost: fptr(0)},
		"negative": {BookCost: fptr(-3)},
	} {
		res := ApplyLastPriceOverride(cfg, fptr(1), list, cost, VisibilityBoth)
		if !res.UsedOverride {
			t.Fatalf("%s guard cost must leave the override unchecked", name)
		}
	}
}

func TestMinCostPercentDefaultsToTen(t *testing.T) {
	list := PriceQuote{Invoiced: 100, White: 95}
	cfg := LastPriceConfig{UseLastPrices: true, GuardType: GuardTypeCost, CostBasisForGuard: GuardBasisCurrentCost}
	cost := CostBasis{BookCost: fptr(100)}

	res := ApplyLastPriceOverride(cfg, fptr(89), list, cost, VisibilityBoth)
	if res.UsedOverride {
		t.Fatal("unset minCostPercent must behave as 10, not 0")
	}
	res = ApplyLastPriceOverride(cfg, fptr(90), list, cost, VisibilityBoth)
	if !res.UsedOverride {
		t.Fatal("90 must clear the default 10 percent floor")
	}
}
