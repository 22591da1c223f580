package pricing

// Time constants used to normalize hourly unit prices to billed windows.
const (
	SecondsPerHour  uint64 = 3600
	SecondsPerMonth uint64 = 30 * 24 * 3600
)

// SettlementPrecision is the fixed-point precision of the settlement
// currency: one token equals 1e7 of the integral units the wallet operates on.
const SettlementPrecision uint64 = 10_000_000

// CertifiedSurchargePercent is the flat surcharge applied after discounts for
// capacity running on certified hardware.
const CertifiedSurchargePercent = 25

// Policy holds the marketplace unit prices. All prices are integral
// accounting units per unit per hour; fractional math only happens inside the
// cost calculator, on decimals.
type Policy struct {
	ComputePrice uint64 // per compute unit per hour
	StoragePrice uint64 // per storage unit per hour
	IPPrice      uint64 // per reserved public IP per hour
	NetworkPrice uint64 // per gigabyte of network usage per hour
	NamePrice    uint64 // per registered name per hour

	// DedicationDiscountPercent is subtracted from the resource cost of a
	// reservation that holds a node's entire advertised capacity.
	DedicationDiscountPercent uint8
}
