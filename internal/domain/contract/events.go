package contract

import (
	"github.com/google/uuid"

	"github.com/gridmarket/backend/internal/domain/ippool"
	"github.com/gridmarket/backend/internal/domain/resource"
	"github.com/gridmarket/backend/internal/domain/shared"
)

// Event type constants
const (
	EventTypeContractCreated    = "contract.created"
	EventTypeWorkloadUpdated    = "contract.workload_updated"
	EventTypeContractCanceled   = "contract.canceled"
	EventTypeContractBilled     = "contract.billed"
	EventTypeGracePeriodStarted = "contract.grace_period_started"
	EventTypeGracePeriodEnded   = "contract.grace_period_ended"
	EventTypePublicIPsFreed     = "contract.public_ips_freed"
	EventTypeUsageUpdated       = "contract.usage_updated"
	EventTypeTokensBurned       = "contract.tokens_burned"
	EventTypeRewardsDistributed = "contract.rewards_distributed"
)

// ContractCreated is emitted after a contract of any kind is committed.
type ContractCreated struct {
	shared.BaseDomainEvent
	Kind   Kind      `json:"kind"`
	Owner  uuid.UUID `json:"owner"`
	NodeID uint64    `json:"node_id,omitempty"`
}

func NewContractCreated(c *Contract) *ContractCreated {
	return &ContractCreated{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeContractCreated, c.ID),
		Kind:            c.Kind(),
		Owner:           c.Owner,
		NodeID:          c.NodeID(),
	}
}

// WorkloadUpdated is emitted when a workload's deployment changes.
type WorkloadUpdated struct {
	shared.BaseDomainEvent
	NodeID         uint64             `json:"node_id"`
	Resources      resource.Resources `json:"resources"`
	DeploymentHash string             `json:"deployment_hash"`
}

func NewWorkloadUpdated(c *Contract) *WorkloadUpdated {
	return &WorkloadUpdated{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeWorkloadUpdated, c.ID),
		NodeID:          c.Workload.NodeID,
		Resources:       c.Workload.Resources,
		DeploymentHash:  c.Workload.DeploymentHash,
	}
}

// ContractCanceled is emitted on any transition into the deleted state.
type ContractCanceled struct {
	shared.BaseDomainEvent
	NodeID uint64      `json:"node_id,omitempty"`
	Owner  uuid.UUID   `json:"owner"`
	Cause  DeleteCause `json:"cause"`
}

func NewContractCanceled(id, nodeID uint64, owner uuid.UUID, cause DeleteCause) *ContractCanceled {
	return &ContractCanceled{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeContractCanceled, id),
		NodeID:          nodeID,
		Owner:           owner,
		Cause:           cause,
	}
}

// ContractBilled is emitted after each settled billing cycle.
type ContractBilled struct {
	shared.BaseDomainEvent
	AmountBilled  uint64 `json:"amount_billed"`
	DiscountLevel string `json:"discount_level"`
	WindowSeconds uint64 `json:"window_seconds"`
}

func NewContractBilled(id, amount uint64, discountLevel string, windowSeconds uint64) *ContractBilled {
	return &ContractBilled{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeContractBilled, id),
		AmountBilled:    amount,
		DiscountLevel:   discountLevel,
		WindowSeconds:   windowSeconds,
	}
}

// GracePeriodStarted is emitted when a tenant's balance no longer covers a
// billing cycle.
type GracePeriodStarted struct {
	shared.BaseDomainEvent
	NodeID uint64    `json:"node_id,omitempty"`
	Owner  uuid.UUID `json:"owner"`
}

func NewGracePeriodStarted(id, nodeID uint64, owner uuid.UUID) *GracePeriodStarted {
	return &GracePeriodStarted{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeGracePeriodStarted, id),
		NodeID:          nodeID,
		Owner:           owner,
	}
}

// GracePeriodEnded is emitted when a contract is funded again.
type GracePeriodEnded struct {
	shared.BaseDomainEvent
	NodeID uint64    `json:"node_id,omitempty"`
	Owner  uuid.UUID `json:"owner"`
}

func NewGracePeriodEnded(id, nodeID uint64, owner uuid.UUID) *GracePeriodEnded {
	return &GracePeriodEnded{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeGracePeriodEnded, id),
		NodeID:          nodeID,
		Owner:           owner,
	}
}

// PublicIPsFreed is emitted when a contract's addresses return to the pool.
type PublicIPsFreed struct {
	shared.BaseDomainEvent
	IPs []ippool.PublicIP `json:"ips"`
}

func NewPublicIPsFreed(id uint64, ips []ippool.PublicIP) *PublicIPsFreed {
	return &PublicIPsFreed{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePublicIPsFreed, id),
		IPs:             ips,
	}
}

// UsageUpdated is emitted when a node reports consumed resources for a
// reservation.
type UsageUpdated struct {
	shared.BaseDomainEvent
	NodeID uint64             `json:"node_id"`
	Used   resource.Resources `json:"used"`
}

func NewUsageUpdated(id, nodeID uint64, used resource.Resources) *UsageUpdated {
	return &UsageUpdated{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeUsageUpdated, id),
		NodeID:          nodeID,
		Used:            used,
	}
}

// TokensBurned is emitted for the burn share of a distribution.
type TokensBurned struct {
	shared.BaseDomainEvent
	Amount uint64 `json:"amount"`
}

func NewTokensBurned(id, amount uint64) *TokensBurned {
	return &TokensBurned{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTokensBurned, id),
		Amount:          amount,
	}
}

// RewardsDistributed is emitted when an escrowed amount is split between the
// provider and platform accounts.
type RewardsDistributed struct {
	shared.BaseDomainEvent
	Total         uint64 `json:"total"`
	ProviderShare uint64 `json:"provider_share"`
}

func NewRewardsDistributed(id, total, providerShare uint64) *RewardsDistributed {
	return &RewardsDistributed{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRewardsDistributed, id),
		Total:           total,
		ProviderShare:   providerShare,
	}
}
