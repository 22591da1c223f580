// Package apptest provides in-memory implementations of the application
// layer's outbound ports for tests.
package apptest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gridmarket/backend/internal/domain/capacity"
	"github.com/gridmarket/backend/internal/domain/contract"
	"github.com/gridmarket/backend/internal/domain/grid"
	"github.com/gridmarket/backend/internal/domain/ippool"
	"github.com/gridmarket/backend/internal/domain/pricing"
	"github.com/gridmarket/backend/internal/domain/shared"
)

// ContractRepo is an in-memory contract.Repository.
type ContractRepo struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]*contract.Contract
}

func NewContractRepo() *ContractRepo {
	return &ContractRepo{byID: make(map[uint64]*contract.Contract)}
}

func (r *ContractRepo) Create(_ context.Context, c *contract.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	r.byID[c.ID] = c
	return nil
}

func (r *ContractRepo) Update(_ context.Context, c *contract.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[c.ID]; !ok {
		return shared.ErrNotFound
	}
	r.byID[c.ID] = c
	return nil
}

func (r *ContractRepo) Delete(_ context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

func (r *ContractRepo) GetByID(_ context.Context, id uint64) (*contract.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("contract %d not found", id))
	}
	return c, nil
}

func (r *ContractRepo) GetByName(_ context.Context, name string) (*contract.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byID {
		if c.NameRegistration != nil && c.NameRegistration.Name == name {
			return c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *ContractRepo) GetByNodeAndHash(_ context.Context, nodeID uint64, hash string) (*contract.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byID {
		if c.Workload != nil && c.Workload.NodeID == nodeID && c.Workload.DeploymentHash == hash {
			return c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *ContractRepo) ListByReservation(_ context.Context, reservationID uint64) ([]*contract.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*contract.Contract
	for _, c := range r.byID {
		if c.Workload != nil && c.Workload.ReservationID == reservationID {
			out = append(out, c)
		}
	}
	sortByID(out)
	return out, nil
}

func (r *ContractRepo) ListByNode(_ context.Context, nodeID uint64) ([]*contract.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*contract.Contract
	for _, c := range r.byID {
		if c.NodeID() == nodeID {
			out = append(out, c)
		}
	}
	sortByID(out)
	return out, nil
}

func (r *ContractRepo) ListIDs(_ context.Context) ([]uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func sortByID(cs []*contract.Contract) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].ID < cs[j].ID })
}

// Directory is an in-memory grid.Directory.
type Directory struct {
	mu        sync.Mutex
	Nodes     map[uint64]*grid.Node
	Providers map[uint64]*grid.Provider
}

func NewDirectory() *Directory {
	return &Directory{Nodes: make(map[uint64]*grid.Node), Providers: make(map[uint64]*grid.Provider)}
}

func (d *Directory) GetNode(_ context.Context, id uint64) (*grid.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.Nodes[id]
	if !ok {
		return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("node %d not found", id))
	}
	return n, nil
}

func (d *Directory) GetNodeByAccount(_ context.Context, account uuid.UUID) (*grid.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, n := range d.Nodes {
		if n.AccountID == account {
			return n, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (d *Directory) GetProvider(_ context.Context, id uint64) (*grid.Provider, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.Providers[id]
	if !ok {
		return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("provider %d not found", id))
	}
	return p, nil
}

func (d *Directory) SaveNodeUsage(_ context.Context, nodeID uint64, usage capacity.Usage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.Nodes[nodeID]
	if !ok {
		return shared.ErrNotFound
	}
	n.Usage = usage
	return nil
}

func (d *Directory) SetNodeExtraFee(_ context.Context, nodeID uint64, fee uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.Nodes[nodeID]
	if !ok {
		return shared.ErrNotFound
	}
	n.ExtraFee = fee
	return nil
}

// IPRegistry is an in-memory grid.IPRegistry.
type IPRegistry struct {
	mu    sync.Mutex
	Pools map[uint64]*ippool.Pool
}

func NewIPRegistry() *IPRegistry {
	return &IPRegistry{Pools: make(map[uint64]*ippool.Pool)}
}

func (r *IPRegistry) GetPool(_ context.Context, providerID uint64) (*ippool.Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Pools[providerID]
	if !ok {
		return &ippool.Pool{}, nil
	}
	return p, nil
}

func (r *IPRegistry) SavePool(_ context.Context, providerID uint64, pool *ippool.Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Pools[providerID] = pool
	return nil
}

func (r *IPRegistry) ReleaseContract(_ context.Context, contractID uint64) ([]ippool.PublicIP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var freed []ippool.PublicIP
	for _, p := range r.Pools {
		freed = append(freed, p.Release(contractID)...)
	}
	return freed, nil
}

// Wallet is an in-memory grid.Wallet.
type Wallet struct {
	mu       sync.Mutex
	Balances map[uuid.UUID]uint64
	Burned   uint64
}

func NewWallet() *Wallet {
	return &Wallet{Balances: make(map[uuid.UUID]uint64)}
}

func (w *Wallet) UsableBalance(_ context.Context, account uuid.UUID) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Balances[account], nil
}

func (w *Wallet) Transfer(_ context.Context, from, to uuid.UUID, amount uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Balances[from] < amount {
		return shared.NewDomainError(shared.CodeInsufficientResources, "insufficient balance")
	}
	w.Balances[from] -= amount
	w.Balances[to] += amount
	return nil
}

func (w *Wallet) Burn(_ context.Context, account uuid.UUID, amount uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Balances[account] < amount {
		return shared.NewDomainError(shared.CodeInsufficientResources, "insufficient balance")
	}
	w.Balances[account] -= amount
	w.Burned += amount
	return nil
}

// UnitOfWork runs the function directly. The in-memory fakes mutate state in
// place, so there is nothing to roll back; rollback behavior is covered by
// the storage-backed tests.
type UnitOfWork struct{}

func (UnitOfWork) Atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// PriceFeed returns a fixed reading.
type PriceFeed struct {
	Reading pricing.PriceReading
}

func (f *PriceFeed) Current(context.Context) (pricing.PriceReading, error) {
	return f.Reading, nil
}

// Clock is a settable grid.Clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// EventBus records published events.
type EventBus struct {
	mu     sync.Mutex
	Events []shared.DomainEvent
}

func (b *EventBus) Publish(_ context.Context, events ...shared.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Events = append(b.Events, events...)
	return nil
}

// Types returns the recorded event types in order.
func (b *EventBus) Types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.Events))
	for i, e := range b.Events {
		out[i] = e.EventType()
	}
	return out
}

// Schedule records enqueued contract ids.
type Schedule struct {
	mu  sync.Mutex
	IDs map[uint64]bool
}

func NewSchedule() *Schedule {
	return &Schedule{IDs: make(map[uint64]bool)}
}

func (s *Schedule) Enqueue(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IDs[id] = true
}

func (s *Schedule) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.IDs, id)
}

func (s *Schedule) Contains(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.IDs[id]
}
