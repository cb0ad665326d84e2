package pricing

import (
	"fmt"
	"math"
)

// VatPreference is a per-customer display setting. It is a read-time
// transform only and is never folded into stored prices.
type VatPreference string

const (
	VatWithVat    VatPreference = "WITH_VAT"
	VatWithoutVat VatPreference = "WITHOUT_VAT"
)

// ParseVatPreference maps a stored customer token onto a VatPreference.
// An empty token falls back to the conservative WITHOUT_VAT default.
func ParseVatPreference(value string) (VatPreference, error) {
	switch VatPreference(value) {
	case VatWithVat, VatWithoutVat:
		return VatPreference(value), nil
	case "":
		return VatWithoutVat, nil
	default:
		return "", fmt.Errorf("%w: unknown vat preference %q", ErrInvalidConfiguration, value)
	}
}

// PriceKind distinguishes the invoiced price from the white price.
type PriceKind string

const (
	PriceKindInvoiced PriceKind = "INVOICED"
	PriceKindWhite    PriceKind = "WHITE"
)

// DisplayPrice computes the number shown to the customer. White prices
// are VAT-neutral by convention and pass through untouched regardless
// of preference. A missing or non-finite VAT rate counts as zero.
// Always called on the stored base price, never on its own output.
func DisplayPrice(basePrice float64, vatRate *float64, kind PriceKind, preference VatPreference) float64 {
	if kind == PriceKindWhite {
		return basePrice
	}
	if preference != VatWithVat {
		return basePrice
	}
	rate := 0.0
	if vatRate != nil && !math.IsNaN(*vatRate) && !math.IsInf(*vatRate, 0) {
		rate = *vatRate
	}
	return basePrice * (1 + rate)
}
