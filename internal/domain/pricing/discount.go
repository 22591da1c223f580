package pricing

import "github.com/shopspring/decimal"

// DiscountLevel classifies how long a tenant's balance can sustain the
// current billing rate. Longer runways earn deeper discounts.
type DiscountLevel uint8

const (
	DiscountNone    DiscountLevel = iota // runway under 3 months
	DiscountDefault                      // 3 to 6 months
	DiscountBronze                       // 6 to 12 months
	DiscountSilver                       // 12 to 36 months
	DiscountGold                         // 36 months and up
)

func (d DiscountLevel) String() string {
	switch d {
	case DiscountDefault:
		return "default"
	case DiscountBronze:
		return "bronze"
	case DiscountSilver:
		return "silver"
	case DiscountGold:
		return "gold"
	default:
		return "none"
	}
}

// PriceMultiplier returns the factor applied to the undiscounted cost.
func (d DiscountLevel) PriceMultiplier() decimal.Decimal {
	switch d {
	case DiscountDefault:
		return decimal.NewFromFloat(0.8)
	case DiscountBronze:
		return decimal.NewFromFloat(0.7)
	case DiscountSilver:
		return decimal.NewFromFloat(0.6)
	case DiscountGold:
		return decimal.NewFromFloat(0.4)
	default:
		return decimal.NewFromInt(1)
	}
}

// discountTiers maps a runway floor (in months affordable) to the discount it
// earns, checked from the deepest tier down.
var discountTiers = []struct {
	monthsAffordable int64
	level            DiscountLevel
}{
	{36, DiscountGold},
	{12, DiscountSilver},
	{6, DiscountBronze},
	{3, DiscountDefault},
}

// CalculateDiscount applies the balance-based discount and the certified
// hardware surcharge to an undiscounted settlement-unit cost. The runway is
// balance / (amountDue x cyclesPerMonth): how many months the tenant could
// keep paying the current per-cycle amount. Returns the adjusted cost and the
// level that was applied.
//
// The surcharge is applied after the discount, so certified capacity is
// always 25% more expensive than the same discounted non-certified cost.
// The adjusted amount rounds up: fractional units charge a whole unit.
func CalculateDiscount(amountDue uint64, cyclesPerMonth uint64, balance uint64, certified bool) (uint64, DiscountLevel) {
	if amountDue == 0 {
		return 0, DiscountNone
	}

	perMonth := decimal.NewFromUint64(amountDue).Mul(decimal.NewFromUint64(cyclesPerMonth))
	months := decimal.NewFromUint64(balance).Div(perMonth)

	level := DiscountNone
	for _, tier := range discountTiers {
		if months.GreaterThanOrEqual(decimal.NewFromInt(tier.monthsAffordable)) {
			level = tier.level
			break
		}
	}

	adjusted := decimal.NewFromUint64(amountDue).Mul(level.PriceMultiplier())
	if certified {
		adjusted = adjusted.
			Mul(decimal.NewFromInt(100 + CertifiedSurchargePercent)).
			Div(decimal.NewFromInt(100))
	}

	return ceilUint64(adjusted), level
}
