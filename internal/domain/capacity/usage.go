package capacity

import (
	"fmt"

	"github.com/gridmarket/backend/internal/domain/resource"
	"github.com/gridmarket/backend/internal/domain/shared"
)

// Usage tracks how much of a node's advertised capacity is held by
// reservations. Used never exceeds Total in any component; every mutation
// re-checks that bound and fails with an invariant error instead of
// persisting a corrupt ledger.
type Usage struct {
	Total resource.Resources `json:"total"`
	Used  resource.Resources `json:"used"`
}

// NewUsage creates an empty ledger for a node advertising total capacity.
func NewUsage(total resource.Resources) Usage {
	return Usage{Total: total}
}

// Free returns the capacity still available for new holds.
func (u Usage) Free() resource.Resources {
	return u.Total.Sub(u.Used)
}

// CanConsume reports whether r fits in the remaining free capacity.
func (u Usage) CanConsume(r resource.Resources) bool {
	return u.Used.Add(r).FitsIn(u.Total)
}

// Consume adds r to the used ledger. Fails with an insufficient-resources
// error when r does not fit.
func (u *Usage) Consume(r resource.Resources) error {
	next := u.Used.Add(r)
	if !next.FitsIn(u.Total) {
		return shared.NewDomainError(shared.CodeInsufficientResources,
			fmt.Sprintf("capacity exhausted: requested %s, free %s", r, u.Free()))
	}
	u.Used = next
	return nil
}

// Release removes r from the used ledger, saturating at zero.
func (u *Usage) Release(r resource.Resources) {
	u.Used = u.Used.Sub(r)
}

// Resize replaces a previous hold with a new one atomically: the old hold is
// released and the new one consumed, or the ledger is left untouched.
func (u *Usage) Resize(old, new resource.Resources) error {
	next := u.Used.Sub(old).Add(new)
	if !next.FitsIn(u.Total) {
		return shared.NewDomainError(shared.CodeInsufficientResources,
			fmt.Sprintf("capacity exhausted: requested %s, free %s", new, u.Free().Add(old)))
	}
	u.Used = next
	return nil
}

// Validate checks the ledger bound; repositories call it before persisting.
func (u Usage) Validate() error {
	if !u.Used.FitsIn(u.Total) {
		return shared.NewDomainError(shared.CodeInvariant,
			fmt.Sprintf("capacity ledger corrupt: used %s exceeds total %s", u.Used, u.Total))
	}
	return nil
}
