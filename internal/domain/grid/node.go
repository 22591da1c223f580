package grid

import (
	"github.com/google/uuid"

	"github.com/gridmarket/backend/internal/domain/capacity"
)

// Node is a machine advertised by a capacity provider. The accounting core
// treats nodes as externally managed directory entries: it reads their
// capacity and billing attributes and writes back the usage ledger.
type Node struct {
	ID         uint64         `json:"id"`
	ProviderID uint64         `json:"provider_id"`
	// AccountID authenticates resource and usage reports from the node.
	AccountID  uuid.UUID      `json:"account_id"`
	Usage      capacity.Usage `json:"usage"`
	// PoweredDown nodes refuse new reservations but keep billing existing
	// ones.
	PoweredDown bool `json:"powered_down"`
	// Certified hardware carries a billing surcharge.
	Certified bool `json:"certified"`
	// ExtraFee is an optional provider-set monthly fee in milli-USD, billed
	// on top of reservations that hold the whole node.
	ExtraFee uint64 `json:"extra_fee"`
}

// Dedicated reports whether the node only accepts whole-node reservations,
// either because its provider marked it dedicated or because an extra fee is
// set.
func (n *Node) Dedicated(p *Provider) bool {
	return p.Dedicated || n.ExtraFee > 0
}

// Provider is the owner of a set of nodes and their public IP pool.
type Provider struct {
	ID    uint64    `json:"id"`
	Owner uuid.UUID `json:"owner"`
	// Dedicated providers rent out nodes only as a whole.
	Dedicated bool `json:"dedicated"`
}
