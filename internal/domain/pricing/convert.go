package pricing

import "github.com/shopspring/decimal"

// PriceReading is a snapshot from the token price feed. All three fields are
// milli-USD per token. Min and Max bound the average so a feed outage or
// manipulation can never produce absurd conversion rates.
type PriceReading struct {
	Average uint32
	Min     uint32
	Max     uint32
}

// clamped returns the average bounded to [Min, Max].
func (p PriceReading) clamped() uint32 {
	switch {
	case p.Average < p.Min:
		return p.Min
	case p.Average > p.Max:
		return p.Max
	default:
		return p.Average
	}
}

// ConvertToSettlement converts a cost expressed in accounting units (1e-7
// USD each) into integral settlement units (1e-7 token) using the clamped
// token price. The milli-USD price is scaled by 1e4 onto the same 1e-7 USD
// grid before dividing. The result is truncated: sub-unit remainders stay
// with the tenant.
func ConvertToSettlement(cost uint64, price PriceReading) uint64 {
	musdPerToken := price.clamped()
	if musdPerToken == 0 {
		return 0
	}

	priceUnits := decimal.NewFromInt(int64(musdPerToken)).Mul(decimal.NewFromInt(10_000))
	tokens := decimal.NewFromUint64(cost).
		Mul(decimal.NewFromUint64(SettlementPrecision)).
		Div(priceUnits)

	return truncUint64(tokens)
}
