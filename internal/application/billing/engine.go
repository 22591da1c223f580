package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridmarket/backend/internal/domain/contract"
	"github.com/gridmarket/backend/internal/domain/grid"
	"github.com/gridmarket/backend/internal/domain/pricing"
	"github.com/gridmarket/backend/internal/domain/shared"
)

// Schedule is the billing loop's enqueue surface. Contracts are added once at
// creation and removed once at purge.
type Schedule interface {
	Enqueue(contractID uint64)
	Remove(contractID uint64)
}

// PlatformAccounts are the well-known wallet accounts settlements flow
// through.
type PlatformAccounts struct {
	// Escrow holds settled amounts between distributions.
	Escrow uuid.UUID
	// Foundation receives the foundation share of each distribution.
	Foundation uuid.UUID
	// Staking receives the staking pool share.
	Staking uuid.UUID
}

// Config tunes the billing engine.
type Config struct {
	// CycleSeconds is the billing period; windows longer than one cycle are
	// clamped and the excess cost deferred.
	CycleSeconds uint64
	// GraceCycles is how many consecutive unfunded cycles a contract
	// survives before it is deleted for lack of funds.
	GraceCycles uint32
	// DistributionCycles is how many settled cycles accumulate in escrow
	// before being distributed.
	DistributionCycles uint32
}

// CyclesPerMonth derives the discount runway denominator.
func (c Config) CyclesPerMonth() uint64 {
	if c.CycleSeconds == 0 {
		return 0
	}
	return pricing.SecondsPerMonth / c.CycleSeconds
}

// Distribution shares, in percent. The burn share is the remainder so the
// split always sums to the distributed amount.
const (
	foundationSharePercent = 10
	stakingSharePercent    = 5
	providerSharePercent   = 50
)

// Engine settles billing cycles: it prices the elapsed window, charges the
// tenant, manages grace transitions and periodically distributes the escrowed
// amount. It also owns contract teardown, because deletion always ends with a
// final settlement.
//
// All mutations run under the shared single-writer guard. Bill acquires it;
// Finalize expects the caller to hold it already.
type Engine struct {
	guard     *sync.Mutex
	contracts contract.Repository
	directory grid.Directory
	ips       grid.IPRegistry
	wallet    grid.Wallet
	feed      grid.PriceFeed
	clock     grid.Clock
	bus       shared.EventPublisher
	schedule  Schedule
	uow       shared.UnitOfWork
	policy    pricing.Policy
	accounts  PlatformAccounts
	cfg       Config
	logger    *zap.Logger
}

// NewEngine wires a billing engine.
func NewEngine(
	guard *sync.Mutex,
	contracts contract.Repository,
	directory grid.Directory,
	ips grid.IPRegistry,
	wallet grid.Wallet,
	feed grid.PriceFeed,
	clock grid.Clock,
	bus shared.EventPublisher,
	schedule Schedule,
	uow shared.UnitOfWork,
	policy pricing.Policy,
	accounts PlatformAccounts,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		guard:     guard,
		contracts: contracts,
		directory: directory,
		ips:       ips,
		wallet:    wallet,
		feed:      feed,
		clock:     clock,
		bus:       bus,
		schedule:  schedule,
		uow:       uow,
		policy:    policy,
		accounts:  accounts,
		cfg:       cfg,
		logger:    logger,
	}
}

// Bill settles one billing cycle for a contract. Safe to call for ids that
// have disappeared since they were scheduled.
func (e *Engine) Bill(ctx context.Context, contractID uint64) error {
	e.guard.Lock()
	defer e.guard.Unlock()

	c, err := e.contracts.GetByID(ctx, contractID)
	if err != nil {
		if shared.ErrorCode(err) == shared.CodeNotFound {
			// purged between scheduling and firing
			e.schedule.Remove(contractID)
			return nil
		}
		return err
	}
	return e.uow.Atomically(ctx, func(ctx context.Context) error {
		return e.settle(ctx, c, false)
	})
}

/// Finalize performs the teardown settlement: one last cycle, the terminal
// state transition, distribution of everything escrowed and release of every
// hold the contract owns. The whole teardown runs in one storage transaction,
// so a failure part-way leaves every hold in place.
func (e *Engine) Finalize(ctx context.Context, c *contract.Contract, cause contract.DeleteCause) error {
	return e.uow.Atomically(ctx, func(ctx context.Context) error {
		if c.Kind() == contract.KindCapacityReservation {
			if err := e.finalizeWorkloads(ctx, c.ID, cause); err != nil {
				return err
			}
		}
		if c.State != contract.StateDeleted {
			// the final cycle settles on whatever balance remains; only a
			// storage or feed failure aborts the teardown
			if err := e.settle(ctx, c, true); err != nil {
				return err
			}
			if err := c.MarkDeleted(cause, e.clock.Now()); err != nil {
				return err
			}
		}
		return e.purge(ctx, c)
	})
}

// settle prices and charges the window since the lock was last updated.
// When final is set the cycle settles on whatever balance remains instead of
// entering grace.
func (e *Engine) settle(ctx context.Context, c *contract.Contract, final bool) error {
	now := e.clock.Now()
	elapsed := uint64(now.Sub(c.Lock.UpdatedAt) / time.Second)
	if elapsed == 0 && c.Billing.AmountUnbilled == 0 {
		return nil
	}

	// clamp the billed window to one cycle; the cost of any excess is
	// deferred so a stalled loop can never produce a surprise mega-invoice
	window := elapsed
	if !final && e.cfg.CycleSeconds > 0 && window > e.cfg.CycleSeconds {
		window = e.cfg.CycleSeconds
	}

	costUnits, err := e.windowCost(ctx, c, window)
	if err != nil {
		return err
	}
	// the carry-over is billed now; the cost of the clamped-away excess is
	// deferred to the next cycle
	costUnits += c.Billing.AmountUnbilled
	c.Billing.AmountUnbilled = 0
	if excess := elapsed - window; excess > 0 {
		deferred, err := e.windowCost(ctx, c, excess)
		if err != nil {
			return err
		}
		c.AccrueUnbilled(deferred)
	}

	if costUnits == 0 {
		return e.advance(ctx, c, now, window, 0, pricing.DiscountNone, final)
	}

	reading, err := e.feed.Current(ctx)
	if err != nil {
		return err
	}
	gross := pricing.ConvertToSettlement(costUnits, reading)

	balance, err := e.wallet.UsableBalance(ctx, c.Owner)
	if err != nil {
		return err
	}
	certified, err := e.certified(ctx, c)
	if err != nil {
		return err
	}
	due, level := pricing.CalculateDiscount(gross, e.cfg.CyclesPerMonth(), balance, certified)

	if balance < due && !final {
		return e.miss(ctx, c, now, costUnits)
	}
	if balance < due {
		// teardown takes whatever is left
		due = balance
	}

	if due > 0 {
		if err := e.wallet.Transfer(ctx, c.Owner, e.accounts.Escrow, due); err != nil {
			return err
		}
	}
	return e.advance(ctx, c, now, window, due, level, final)
}

// advance records a settled cycle and distributes when the escrow matured.
func (e *Engine) advance(ctx context.Context, c *contract.Contract, now time.Time, window, settled uint64, level pricing.DiscountLevel, final bool) error {
	c.Lock.AmountEscrowed += settled
	c.Lock.UpdatedAt = now
	c.Lock.Cycles++
	c.Billing.LastSettledAt = now

	// a teardown settlement goes straight to deleted, never back to created
	if c.InGrace() && !final {
		if err := c.EndGrace(now); err != nil {
			return err
		}
	}
	c.UpdatedAt = now

	events := c.PullEvents()
	if settled > 0 {
		events = append(events, contract.NewContractBilled(c.ID, settled, level.String(), window))
	}

	if c.Lock.Cycles >= e.cfg.DistributionCycles && c.Lock.AmountEscrowed > 0 {
		distEvents, err := e.distribute(ctx, c)
		if err != nil {
			return err
		}
		events = append(events, distEvents...)
	}

	if err := e.contracts.Update(ctx, c); err != nil {
		return err
	}
	e.publish(ctx, events...)
	return nil
}

// miss records an unfunded cycle: the cost stays on the books, the contract
// enters or deepens grace, and after enough misses it is torn down.
func (e *Engine) miss(ctx context.Context, c *contract.Contract, now time.Time, costUnits uint64) error {
	c.AccrueUnbilled(costUnits)
	c.Lock.UpdatedAt = now
	c.Lock.MissedCycles++
	c.UpdatedAt = now

	if c.State == contract.StateCreated {
		if err := c.StartGrace(now); err != nil {
			return err
		}
		e.logger.Info("contract entered grace period",
			zap.Uint64("contract_id", c.ID),
			zap.String("owner", c.Owner.String()))
	}

	if c.Lock.MissedCycles >= e.cfg.GraceCycles {
		e.logger.Warn("grace period exhausted, deleting contract",
			zap.Uint64("contract_id", c.ID),
			zap.Uint32("missed_cycles", c.Lock.MissedCycles))
		return e.Finalize(ctx, c, contract.DeleteCauseOutOfFunds)
	}

	if err := e.contracts.Update(ctx, c); err != nil {
		return err
	}
	e.publish(ctx, c.PullEvents()...)
	return nil
}

// finalizeWorkloads tears down every workload under a reservation.
func (e *Engine) finalizeWorkloads(ctx context.Context, reservationID uint64, cause contract.DeleteCause) error {
	workloads, err := e.contracts.ListByReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	for _, w := range workloads {
		if err := e.Finalize(ctx, w, cause); err != nil {
			return fmt.Errorf("finalize workload %d: %w", w.ID, err)
		}
	}
	return nil
}

// purge releases everything a deleted contract holds and removes it.
func (e *Engine) purge(ctx context.Context, c *contract.Contract) error {
	events := c.PullEvents()

	if c.Lock.AmountEscrowed > 0 {
		distEvents, err := e.distribute(ctx, c)
		if err != nil {
			return err
		}
		events = append(events, distEvents...)
	}

	switch c.Kind() {
	case contract.KindCapacityReservation:
		if err := e.releaseCapacity(ctx, c.CapacityReservation.NodeID, c); err != nil {
			return err
		}
	case contract.KindWorkload:
		if err := e.releaseWorkloadEnvelope(ctx, c); err != nil {
			return err
		}
	}

	freed, err := e.ips.ReleaseContract(ctx, c.ID)
	if err != nil {
		return err
	}
	if len(freed) > 0 {
		events = append(events, contract.NewPublicIPsFreed(c.ID, freed))
	}

	e.schedule.Remove(c.ID)
	if err := e.contracts.Delete(ctx, c.ID); err != nil {
		return err
	}
	e.publish(ctx, events...)

	e.logger.Info("contract purged",
		zap.Uint64("contract_id", c.ID),
		zap.String("kind", c.Kind().String()),
		zap.String("cause", c.DeleteCause.String()))
	return nil
}

// releaseCapacity returns a reservation's envelope to its node.
func (e *Engine) releaseCapacity(ctx context.Context, nodeID uint64, c *contract.Contract) error {
	node, err := e.directory.GetNode(ctx, nodeID)
	if err != nil {
		return err
	}
	node.Usage.Release(c.CapacityReservation.Total)
	return e.directory.SaveNodeUsage(ctx, nodeID, node.Usage)
}

// releaseWorkloadEnvelope returns a workload's resources to its reservation's
// used ledger. The reservation may already be gone when the teardown cascades
// from the reservation itself.
func (e *Engine) releaseWorkloadEnvelope(ctx context.Context, c *contract.Contract) error {
	r, err := e.contracts.GetByID(ctx, c.Workload.ReservationID)
	if err != nil {
		if shared.ErrorCode(err) == shared.CodeNotFound {
			return nil
		}
		return err
	}
	if r.CapacityReservation == nil || r.State == contract.StateDeleted {
		return nil
	}
	r.CapacityReservation.Used = r.CapacityReservation.Used.Sub(c.Workload.Resources)
	return e.contracts.Update(ctx, r)
}

// distribute splits the escrowed amount: 10% foundation, 5% staking pool,
// 50% to the provider of the capacity, remainder burned.
func (e *Engine) distribute(ctx context.Context, c *contract.Contract) ([]shared.DomainEvent, error) {
	total := c.Lock.AmountEscrowed

	foundation := total * foundationSharePercent / 100
	staking := total * stakingSharePercent / 100
	provider := total * providerSharePercent / 100
	burn := total - foundation - staking - provider

	providerAccount, err := e.providerAccount(ctx, c)
	if err != nil {
		return nil, err
	}
	if providerAccount == uuid.Nil {
		// name registrations have no provider; their share funds the platform
		foundation += provider
		provider = 0
	}

	if foundation > 0 {
		if err := e.wallet.Transfer(ctx, e.accounts.Escrow, e.accounts.Foundation, foundation); err != nil {
			return nil, err
		}
	}
	if staking > 0 {
		if err := e.wallet.Transfer(ctx, e.accounts.Escrow, e.accounts.Staking, staking); err != nil {
			return nil, err
		}
	}
	if provider > 0 {
		if err := e.wallet.Transfer(ctx, e.accounts.Escrow, providerAccount, provider); err != nil {
			return nil, err
		}
	}
	if burn > 0 {
		if err := e.wallet.Burn(ctx, e.accounts.Escrow, burn); err != nil {
			return nil, err
		}
	}

	c.Lock.AmountEscrowed = 0
	c.Lock.Cycles = 0

	events := []shared.DomainEvent{
		contract.NewRewardsDistributed(c.ID, total, provider),
	}
	if burn > 0 {
		events = append(events, contract.NewTokensBurned(c.ID, burn))
	}
	return events, nil
}

// providerAccount resolves the owner account of the node a contract runs on.
func (e *Engine) providerAccount(ctx context.Context, c *contract.Contract) (uuid.UUID, error) {
	nodeID := c.NodeID()
	if nodeID == 0 {
		return uuid.Nil, nil
	}
	node, err := e.directory.GetNode(ctx, nodeID)
	if err != nil {
		return uuid.Nil, err
	}
	provider, err := e.directory.GetProvider(ctx, node.ProviderID)
	if err != nil {
		return uuid.Nil, err
	}
	return provider.Owner, nil
}

// windowCost prices window seconds of the contract's holdings in accounting
// units, before conversion and discount.
func (e *Engine) windowCost(ctx context.Context, c *contract.Contract, window uint64) (uint64, error) {
	switch c.Kind() {
	case contract.KindNameRegistration:
		return e.policy.NameCost(window), nil

	case contract.KindWorkload:
		// the enclosing reservation pays for the resource envelope; a
		// workload only pays for the addresses it holds
		return e.policy.ResourcesCost(c.Workload.Resources, c.Workload.PublicIPCount, window, false), nil

	default:
		r := c.CapacityReservation
		node, err := e.directory.GetNode(ctx, r.NodeID)
		if err != nil {
			return 0, err
		}
		cost := e.policy.ResourcesCost(r.Total, 0, window, true)
		if r.Total.Equal(node.Usage.Total) {
			cost = e.policy.ApplyDedicationDiscount(cost)
			cost += pricing.ExtraFeeCost(node.ExtraFee, window)
		}
		cost += e.policy.ResourcesCost(r.Total, r.PublicIPCount, window, false)
		return cost, nil
	}
}

// NetworkUsageCost prices a network usage delta for the report intake.
func (e *Engine) NetworkUsageCost(window, usedBytes uint64) uint64 {
	return e.policy.NetworkUsageCost(window, usedBytes)
}

// certified reports whether the contract runs on certified hardware.
func (e *Engine) certified(ctx context.Context, c *contract.Contract) (bool, error) {
	nodeID := c.NodeID()
	if nodeID == 0 {
		return false, nil
	}
	node, err := e.directory.GetNode(ctx, nodeID)
	if err != nil {
		return false, err
	}
	return node.Certified, nil
}

func (e *Engine) publish(ctx context.Context, events ...shared.DomainEvent) {
	if len(events) == 0 {
		return
	}
	if err := e.bus.Publish(ctx, events...); err != nil {
		e.logger.Warn("failed to publish events", zap.Error(err))
	}
}
