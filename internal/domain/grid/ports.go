package grid

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gridmarket/backend/internal/domain/capacity"
	"github.com/gridmarket/backend/internal/domain/ippool"
	"github.com/gridmarket/backend/internal/domain/pricing"
)

// Directory reads and updates the node and provider registry.
type Directory interface {
	// GetNode loads a node by id.
	GetNode(ctx context.Context, id uint64) (*Node, error)
	// GetNodeByAccount loads the node authenticated by an account id.
	GetNodeByAccount(ctx context.Context, account uuid.UUID) (*Node, error)
	// GetProvider loads a provider by id.
	GetProvider(ctx context.Context, id uint64) (*Provider, error)
	// SaveNodeUsage persists a node's capacity ledger.
	SaveNodeUsage(ctx context.Context, nodeID uint64, usage capacity.Usage) error
	// SetNodeExtraFee persists a node's monthly extra fee.
	SetNodeExtraFee(ctx context.Context, nodeID uint64, fee uint64) error
}

// IPRegistry reads and updates a provider's public IP pool.
type IPRegistry interface {
	// GetPool loads a provider's pool.
	GetPool(ctx context.Context, providerID uint64) (*ippool.Pool, error)
	// SavePool persists a pool after reserve or release.
	SavePool(ctx context.Context, providerID uint64, pool *ippool.Pool) error
	// ReleaseContract frees every address held by a contract across all
	// pools. Idempotent.
	ReleaseContract(ctx context.Context, contractID uint64) ([]ippool.PublicIP, error)
}

// PoolHandle is a loaded pool bound to its provider and registry, so a
// validated reservation can be committed in one step.
type PoolHandle struct {
	ProviderID uint64
	Pool       *ippool.Pool
	Registry   IPRegistry
}

// Commit reserves count addresses for contractID and persists the pool.
func (h *PoolHandle) Commit(ctx context.Context, contractID uint64, count uint32) error {
	if _, err := h.Pool.Reserve(contractID, count); err != nil {
		return err
	}
	return h.Registry.SavePool(ctx, h.ProviderID, h.Pool)
}

// Wallet moves settlement units between accounts. Implementations must make
// Transfer atomic: either both balances change or neither does.
type Wallet interface {
	// UsableBalance returns what the account can spend right now.
	UsableBalance(ctx context.Context, account uuid.UUID) (uint64, error)
	// Transfer moves amount from one account to another.
	Transfer(ctx context.Context, from, to uuid.UUID, amount uint64) error
	// Burn permanently removes amount from an account.
	Burn(ctx context.Context, account uuid.UUID, amount uint64) error
}

// PriceFeed exposes the current token price used for settlement conversion.
type PriceFeed interface {
	Current(ctx context.Context) (pricing.PriceReading, error)
}

// Clock abstracts time for deterministic billing tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
