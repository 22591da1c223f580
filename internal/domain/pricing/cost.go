package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/gridmarket/backend/internal/domain/resource"
)

var (
	two   = decimal.NewFromInt(2)
	four  = decimal.NewFromInt(4)
	eight = decimal.NewFromInt(8)

	gigabyte     = decimal.NewFromUint64(resource.Gigabyte)
	hourSeconds  = decimal.NewFromUint64(SecondsPerHour)
	monthSeconds = decimal.NewFromUint64(SecondsPerMonth)

	// storage units are bulk/1200 + fast/200; combined over the common
	// denominator so the only division happens once, at the end.
	storageDenominator = decimal.NewFromInt(240_000)
)

// ComputeUnits derives the billable compute units from a resource vector.
// Three candidate cost bases reflect different bottleneck resources
// (cpu-bound, memory-bound, balanced); the cheapest one wins:
//
//	cu1 = max(cpu/2, memory/4)
//	cu2 = max(cpu,   memory/8)
//	cu3 = max(cpu/4, memory/2)
//	cu  = min(cu1, cu2, cu3)
//
// with memory normalized to gigabytes.
func ComputeUnits(r resource.Resources) decimal.Decimal {
	cpu := decimal.NewFromUint64(r.CPU)
	mem := decimal.NewFromUint64(r.Memory).Div(gigabyte)

	cu1 := decimal.Max(cpu.Div(two), mem.Div(four))
	cu2 := decimal.Max(cpu, mem.Div(eight))
	cu3 := decimal.Max(cpu.Div(four), mem.Div(two))

	return decimal.Min(cu1, cu2, cu3)
}

// StorageUnits derives the billable storage units from a resource vector:
// bulk_storage/1200 + fast_storage/200, both normalized to gigabytes.
func StorageUnits(r resource.Resources) decimal.Decimal {
	bulk := decimal.NewFromUint64(r.BulkStorage).Div(gigabyte)
	fast := decimal.NewFromUint64(r.FastStorage).Div(gigabyte)

	return bulk.Mul(decimal.NewFromInt(200)).
		Add(fast.Mul(decimal.NewFromInt(1200))).
		Div(storageDenominator)
}

// ResourcesCost computes the accounting-unit cost of holding the given
// resources and public IPs for secondsElapsed seconds. Unit prices are hourly,
// so each term is price/3600 x seconds x units; the result always rounds up so
// a tenant is never under-charged. When billResources is false only the IP
// term is charged (used for workloads whose resource envelope is billed by the
// enclosing reservation).
func (p Policy) ResourcesCost(r resource.Resources, ipCount uint32, secondsElapsed uint64, billResources bool) uint64 {
	seconds := decimal.NewFromUint64(secondsElapsed)
	total := decimal.Zero

	if billResources {
		storageCost := decimal.NewFromUint64(p.StoragePrice).
			Mul(seconds).
			Mul(StorageUnits(r)).
			Div(hourSeconds)
		computeCost := decimal.NewFromUint64(p.ComputePrice).
			Mul(seconds).
			Mul(ComputeUnits(r)).
			Div(hourSeconds)
		total = storageCost.Add(computeCost)
	}

	if ipCount > 0 {
		ipCost := decimal.NewFromUint64(p.IPPrice).
			Mul(seconds).
			Mul(decimal.NewFromInt(int64(ipCount))).
			Div(hourSeconds)
		total = total.Add(ipCost)
	}

	return ceilUint64(total)
}

// ApplyDedicationDiscount reduces a resource cost by the policy's dedication
// discount percentage.
func (p Policy) ApplyDedicationDiscount(cost uint64) uint64 {
	pct := decimal.NewFromInt(int64(100 - p.DedicationDiscountPercent))
	discounted := decimal.NewFromUint64(cost).Mul(pct).Div(decimal.NewFromInt(100))
	return ceilUint64(discounted)
}

// NameCost computes the accounting-unit cost of holding a name registration
// for secondsElapsed seconds. Names bill a flat per-second rate with no
// resource term.
func (p Policy) NameCost(secondsElapsed uint64) uint64 {
	cost := decimal.NewFromUint64(p.NamePrice).
		Mul(decimal.NewFromUint64(secondsElapsed)).
		Div(hourSeconds)
	return ceilUint64(cost)
}

// NetworkUsageCost computes the accounting-unit cost of the reported network
// usage delta (bytes) over the report window. The result accrues as unbilled
// carry-over until the next billing cycle.
func (p Policy) NetworkUsageCost(window, usedBytes uint64) uint64 {
	used := decimal.NewFromUint64(usedBytes).Div(gigabyte)
	cost := decimal.NewFromUint64(p.NetworkPrice).
		Mul(decimal.NewFromUint64(window)).
		Mul(used).
		Div(hourSeconds)
	return ceilUint64(cost)
}

// ExtraFeeCost computes the accounting-unit cost of a dedicated node's extra
// fee over secondsElapsed seconds. The fee is configured in milli-USD per
// month and scaled by 1e4 onto the 1e-7 USD accounting grid.
func ExtraFeeCost(monthlyFeeMilliUSD, secondsElapsed uint64) uint64 {
	if monthlyFeeMilliUSD == 0 {
		return 0
	}
	cost := decimal.NewFromUint64(monthlyFeeMilliUSD).
		Mul(decimal.NewFromInt(10_000)).
		Mul(decimal.NewFromUint64(secondsElapsed)).
		Div(monthSeconds)
	return truncUint64(cost)
}

func ceilUint64(d decimal.Decimal) uint64 {
	return d.Ceil().BigInt().Uint64()
}

func truncUint64(d decimal.Decimal) uint64 {
	return d.BigInt().Uint64()
}
