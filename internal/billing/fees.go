package billing

import "github.com/shopspring/decimal"

// Default card fee policy. MinimumCharge is the smallest net amount worth
// charging: upcharging it yields an even $10.00 gross.
var (
	DefaultMinimumCharge = decimal.RequireFromString("9.41")
	DefaultFeeFlat       = decimal.RequireFromString("0.30")
	DefaultFeePercent    = decimal.RequireFromString("0.029")
)

// FeeSchedule computes the gross charge needed so that, after the processor
// takes its flat + percentage fee, the intended net amount is retained.
type FeeSchedule struct {
	MinimumCharge decimal.Decimal // Smallest net amount that will be charged.
	Flat          decimal.Decimal // Flat fee per charge.
	Percent       decimal.Decimal // Percentage fee on the gross amount.
}

// Default returns the standard credit-card fee schedule.
func Default() FeeSchedule {
	return FeeSchedule{
		MinimumCharge: DefaultMinimumCharge,
		Flat:          DefaultFeeFlat,
		Percent:       DefaultFeePercent,
	}
}

// Upcharge returns the gross amount to charge and the fee taken, such that
// gross - fee == amount. The gross is quantized up to whole cents so the fee
// is never underestimated.
func (f FeeSchedule) Upcharge(amount decimal.Decimal) (charge, fee decimal.Decimal) {
	one := decimal.NewFromInt(1)
	charge = amount.Add(f.Flat).Div(one.Sub(f.Percent)).RoundUp(2)
	fee = charge.Sub(amount)
	return charge, fee
}

// Chargeable reports whether a net amount meets the minimum charge.
func (f FeeSchedule) Chargeable(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(f.MinimumCharge)
}
