package resource

import "fmt"

// Gigabyte is the base-1024 unit used to normalize memory and storage
// quantities for pricing.
const Gigabyte uint64 = 1 << 30

// Resources is a value object holding the four billable capacity dimensions
// of a node or reservation: CPU cores, memory bytes, fast (SSD-class) storage
// bytes and bulk (HDD-class) storage bytes.
// It is immutable - all operations return new Resources values.
type Resources struct {
	CPU         uint64 `json:"cpu"`
	Memory      uint64 `json:"memory"`
	FastStorage uint64 `json:"fast_storage"`
	BulkStorage uint64 `json:"bulk_storage"`
}

// Add returns the component-wise sum of both vectors
func (r Resources) Add(other Resources) Resources {
	return Resources{
		CPU:         r.CPU + other.CPU,
		Memory:      r.Memory + other.Memory,
		FastStorage: r.FastStorage + other.FastStorage,
		BulkStorage: r.BulkStorage + other.BulkStorage,
	}
}

// Sub returns the component-wise difference, saturating at zero. Saturation
// tolerates rounding drift from partial frees; it must never mask a real
// accounting bug, which is why mutations are invariant-checked afterwards.
func (r Resources) Sub(other Resources) Resources {
	return Resources{
		CPU:         saturatingSub(r.CPU, other.CPU),
		Memory:      saturatingSub(r.Memory, other.Memory),
		FastStorage: saturatingSub(r.FastStorage, other.FastStorage),
		BulkStorage: saturatingSub(r.BulkStorage, other.BulkStorage),
	}
}

// FitsIn returns true if every component of r is less than or equal to the
// corresponding component of other
func (r Resources) FitsIn(other Resources) bool {
	return r.CPU <= other.CPU &&
		r.Memory <= other.Memory &&
		r.FastStorage <= other.FastStorage &&
		r.BulkStorage <= other.BulkStorage
}

// IsEmpty returns true if every component is zero
func (r Resources) IsEmpty() bool {
	return r.CPU == 0 && r.Memory == 0 && r.FastStorage == 0 && r.BulkStorage == 0
}

// Equal returns true if both vectors are component-wise equal
func (r Resources) Equal(other Resources) bool {
	return r == other
}

// String returns a compact human-readable representation
func (r Resources) String() string {
	return fmt.Sprintf("cpu=%d memory=%d fast_storage=%d bulk_storage=%d",
		r.CPU, r.Memory, r.FastStorage, r.BulkStorage)
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
