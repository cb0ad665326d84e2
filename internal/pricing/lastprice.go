package pricing

import "fmt"

// DefaultMinCostPercent applies when the guard percentage is not configured.
const DefaultMinCostPercent = 10.0

// GuardType decides what floors an observed last price.
type GuardType string

const (
	GuardTypeCost      GuardType = "COST"
	GuardTypePriceList GuardType = "PRICE_LIST"
)

// ParseGuardType maps a stored settings token onto a GuardType.
func ParseGuardType(value string) (GuardType, error) {
	switch GuardType(value) {
	case GuardTypeCost, GuardTypePriceList:
		return GuardType(value), nil
	default:
		return "", fmt.Errorf("%w: unknown guard type %q", ErrInvalidConfiguration, value)
	}
}

// GuardCostBasis selects which side of the cost basis the COST guard floors against.
type GuardCostBasis string

const (
	GuardBasisCurrentCost GuardCostBasis = "CURRENT_COST"
	GuardBasisLastEntry   GuardCostBasis = "LAST_ENTRY"
)

// ParseGuardCostBasis maps a stored settings token onto a GuardCostBasis.
func ParseGuardCostBasis(value string) (GuardCostBasis, error) {
	switch GuardCostBasis(value) {
	case GuardBasisCurrentCost, GuardBasisLastEntry:
		return GuardCostBasis(value), nil
	default:
		return "", fmt.Errorf("%w: unknown guard cost basis %q", ErrInvalidConfiguration, value)
	}
}

// PriceVisibility enumerates which price columns a customer is entitled to see.
type PriceVisibility string

const (
	VisibilityInvoicedOnly PriceVisibility = "INVOICED_ONLY"
	VisibilityWhiteOnly    PriceVisibility = "WHITE_ONLY"
	VisibilityBoth         PriceVisibility = "BOTH"
)

// ParsePriceVisibility maps a stored customer token onto a PriceVisibility.
func ParsePriceVisibility(value string) (PriceVisibility, error) {
	switch PriceVisibility(value) {
	case VisibilityInvoicedOnly, VisibilityWhiteOnly, VisibilityBoth:
		return PriceVisibility(value), nil
	default:
		return "", fmt.Errorf("%w: unknown price visibility %q", ErrInvalidConfiguration, value)
	}
}

// PriceQuote pairs the two candidate list prices for one product line.
// The fields are independent; nothing ties one to the other.
type PriceQuote struct {
	Invoiced float64
	White    float64
}

// LastPriceConfig controls whether a previously observed sale price
// replaces freshly computed list prices. MinCostPercent is optional and
// defaults to DefaultMinCostPercent, not zero.
type LastPriceConfig struct {
	UseLastPrices     bool
	GuardType         GuardType
	CostBasisForGuard GuardCostBasis
	MinCostPercent    *float64
}

// OverrideResult reports the outcome of the last-price guard.
type OverrideResult struct {
	Prices       PriceQuote
	UsedOverride bool
}

// ApplyLastPriceOverride decides whether the observed last sale price
// replaces the list prices. When accepted, both invoiced and white
// collapse to the single observed value. Pure.
func ApplyLastPriceOverride(cfg LastPriceConfig, observedLastPrice *float64, listPrices PriceQuote, cost CostBasis, visibility PriceVisibility) OverrideResult {
	observed, ok := usableValue(observedLastPrice)
	if !cfg.UseLastPrices || !ok {
		return OverrideResult{Prices: listPrices, UsedOverride: false}
	}

	switch cfg.GuardType {
	case GuardTypePriceList:
		reference := listPrices.Invoiced
		if visibility == VisibilityWhiteOnly {
			reference = listPrices.White
		}
		if reference > 0 && observed < reference {
			return OverrideResult{Prices: listPrices, UsedOverride: false}
		}
	case GuardTypeCost:
		guard := cost.BookCost
		if cfg.CostBasisForGuard == GuardBasisLastEntry {
			guard = cost.RecentCost
		}
		// A missing or non-positive guard cost leaves the override
		// unchecked. Intentional: no floor when cost data is absent.
		if costValue, has := usableValue(guard); has {
			minAllowed := costValue * (1 - cfg.minCostPercent()/100)
			if observed < minAllowed {
				return OverrideResult{Prices: listPrices, UsedOverride: false}
			}
		}
	}

	return OverrideResult{
		Prices:       PriceQuote{Invoiced: observed, White: observed},
		UsedOverride: true,
	}
}

func (c LastPriceConfig) minCostPercent() float64 {
	if c.MinCostPercent == nil {
		return DefaultMinCostPercent
	}
	return *c.MinCostPercent
}
