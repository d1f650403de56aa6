// Package fees computes the processor's deduction from a payment in exact
// minor-currency units. All intermediate arithmetic is decimal; binary
// floats would silently perturb currency totals.
package fees

import "github.com/shopspring/decimal"

// Schedule is one fee formula. The formula in force changed over the
// processor's lifetime without a version flag, so callers select the
// schedule explicitly; Default is the most recent.
type Schedule interface {
	// Fee returns the total deduction, in minor units, for a gross payment
	// amount in minor units.
	Fee(gross int64) int64
}

// Net returns the amount settled into the payout after fees.
func Net(gross, fee int64) int64 {
	return gross - fee
}

// Default returns the schedule the processor currently applies.
func Default() Schedule {
	return Standard{}
}

var (
	minimumBase = decimal.NewFromInt(15)
	basePct     = decimal.RequireFromString("0.01")
	vatPct      = decimal.RequireFromString("0.20")
	servicePct  = decimal.RequireFromString("0.0195")
)

// Standard is the current formula: a base fee of 1% of gross (minimum 15
// minor units), 20% VAT on the base fee, and a 1.95% service fee. Each
// component is rounded half-up to whole minor units before summing, so the
// total needs no further rounding.
type Standard struct{}

func (Standard) Fee(gross int64) int64 {
	amount := decimal.NewFromInt(gross)
	base := decimal.Max(minimumBase, amount.Mul(basePct)).Round(0)
	vat := base.Mul(vatPct).Round(0)
	service := amount.Mul(servicePct).Round(0)
	return base.Add(vat).Add(service).IntPart()
}

// Legacy is the superseded flat-rate formula: LargeRate applied to payments
// above Threshold, otherwise SmallRate plus SmallFixed. Use NewLegacy for
// the historical parameters.
type Legacy struct {
	LargeRate  decimal.Decimal
	SmallRate  decimal.Decimal
	SmallFixed int64
	Threshold  int64
}

// NewLegacy returns the legacy schedule with its historical defaults:
// 2.95% above 2000 minor units, else 1.95% plus 15.
func NewLegacy() Legacy {
	return Legacy{
		LargeRate:  decimal.RequireFromString("0.0295"),
		SmallRate:  decimal.RequireFromString("0.0195"),
		SmallFixed: 15,
		Threshold:  2000,
	}
}

func (l Legacy) Fee(gross int64) int64 {
	amount := decimal.NewFromInt(gross)
	if gross > l.Threshold {
		return amount.Mul(l.LargeRate).Round(0).IntPart()
	}
	return amount.Mul(l.SmallRate).Round(0).IntPart() + l.SmallFixed
}
