package pricing

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrNoCostAvailable is returned when no usable cost exists under the configured method.
	ErrNoCostAvailable = errors.New("pricing: no usable cost available")
	// ErrInvalidConfiguration indicates a policy that must be rejected at load time.
	ErrInvalidConfiguration = errors.New("pricing: invalid configuration")
)

// CostMethod selects how the effective cost is derived from the two candidates.
type CostMethod string

const (
	CostMethodRecentOnly   CostMethod = "RECENT_ONLY"
	CostMethodBookOnly     CostMethod = "BOOK_ONLY"
	CostMethodDynamicBlend CostMethod = "DYNAMIC_BLEND"
)

// ParseCostMethod maps a stored settings token onto a CostMethod.
// Unknown tokens are a configuration error, never a silent default.
func ParseCostMethod(value string) (CostMethod, error) {
	switch CostMethod(value) {
	case CostMethodRecentOnly, CostMethodBookOnly, CostMethodDynamicBlend:
		return CostMethod(value), nil
	default:
		return "", fmt.Errorf("%w: unknown cost method %q", ErrInvalidConfiguration, value)
	}
}

// CostBasis is a snapshot of the two cost candidates for one product.
// Both sides are independently optional; a nil pointer means the ERP
// mirror carried no value for that field.
type CostBasis struct {
	RecentCost     *float64
	RecentCostDate *time.Time
	BookCost       *float64
	BookCostDate   *time.Time
}

// CostPolicy controls cost resolution. For DYNAMIC_BLEND the weight
// applied to the book cost is always 1 - WeightRecentWhenFresh.
type CostPolicy struct {
	Method                CostMethod
	AgeThresholdDays      int
	WeightRecentWhenFresh float64
}

// Validate rejects policies the resolver must never see.
func (p CostPolicy) Validate() error {
	if _, err := ParseCostMethod(string(p.Method)); err != nil {
		return err
	}
	if p.Method != CostMethodDynamicBlend {
		return nil
	}
	if p.AgeThresholdDays < 0 {
		return fmt.Errorf("%w: negative age threshold %d", ErrInvalidConfiguration, p.AgeThresholdDays)
	}
	if p.WeightRecentWhenFresh < 0 || p.WeightRecentWhenFresh > 1 || math.IsNaN(p.WeightRecentWhenFresh) {
		return fmt.Errorf("%w: weight %v outside [0,1]", ErrInvalidConfiguration, p.WeightRecentWhenFresh)
	}
	return nil
}

// ResolveCost produces the single effective cost for margin checks and
// dynamic pricing. Pure; all rounding is left to display time.
func ResolveCost(basis CostBasis, policy CostPolicy, asOf time.Time) (float64, error) {
	recent, hasRecent := usableValue(basis.RecentCost)
	book, hasBook := usableValue(basis.BookCost)

	switch policy.Method {
	case CostMethodRecentOnly:
		if !hasRecent {
			return 0, ErrNoCostAvailable
		}
		return recent, nil
	case CostMethodBookOnly:
		if !hasBook {
			return 0, ErrNoCostAvailable
		}
		return book, nil
	case CostMethodDynamicBlend:
		switch {
		case hasRecent && hasBook:
			w := policy.WeightRecentWhenFresh
			if recentAgeDays(basis.RecentCostDate, asOf) <= policy.AgeThresholdDays {
				return recent*w + book*(1-w), nil
			}
			// Stale purchase: the configured weight moves to the book
			// cost, the weight value itself does not decay.
			return book*w + recent*(1-w), nil
		case hasRecent:
			return recent, nil
		case hasBook:
			return book, nil
		default:
			return 0, ErrNoCostAvailable
		}
	default:
		return 0, fmt.Errorf("%w: unknown cost method %q", ErrInvalidConfiguration, policy.Method)
	}
}

// recentAgeDays reports the whole-day age of the recent cost. A missing
// or future-dated entry counts as age 0, keeping it on the fresh branch.
func recentAgeDays(date *time.Time, asOf time.Time) int {
	if date == nil {
		return 0
	}
	age := asOf.Sub(*date)
	if age <= 0 {
		return 0
	}
	return int(age.Hours() / 24)
}

// usableValue reports whether an optional currency field carries a
// positive finite value. Malformed numerics count as absent.
func usableValue(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	value := *v
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return 0, false
	}
	return value, true
}
