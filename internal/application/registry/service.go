package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridmarket/backend/internal/application/billing"
	"github.com/gridmarket/backend/internal/domain/contract"
	"github.com/gridmarket/backend/internal/domain/grid"
	"github.com/gridmarket/backend/internal/domain/resource"
	"github.com/gridmarket/backend/internal/domain/shared"
)

// Service is the contract registry: it owns creation, mutation and
// cancellation of contracts and the resource and usage report intake.
// Every mutation validates against current state, then commits, under the
// shared single-writer guard; multi-step commits run in one storage
// transaction, so a failure at any step leaves no trace.
type Service struct {
	guard     *sync.Mutex
	contracts contract.Repository
	directory grid.Directory
	ips       grid.IPRegistry
	engine    *billing.Engine
	schedule  billing.Schedule
	uow       shared.UnitOfWork
	bus       shared.EventPublisher
	clock     grid.Clock
	logger    *zap.Logger
}

// NewService wires a registry service.
func NewService(
	guard *sync.Mutex,
	contracts contract.Repository,
	directory grid.Directory,
	ips grid.IPRegistry,
	engine *billing.Engine,
	schedule billing.Schedule,
	uow shared.UnitOfWork,
	bus shared.EventPublisher,
	clock grid.Clock,
	logger *zap.Logger,
) *Service {
	return &Service{
		guard:     guard,
		contracts: contracts,
		directory: directory,
		ips:       ips,
		engine:    engine,
		schedule:  schedule,
		uow:       uow,
		bus:       bus,
		clock:     clock,
		logger:    logger,
	}
}

// CreateReservationInput carries the parameters of a new capacity
// reservation.
type CreateReservationInput struct {
	NodeID        uint64
	GroupID       uint64
	Resources     resource.Resources
	PublicIPCount uint32
}

// CreateReservation reserves a slice of a node's capacity for the caller.
func (s *Service) CreateReservation(ctx context.Context, caller uuid.UUID, in CreateReservationInput) (*contract.Contract, error) {
	s.guard.Lock()
	defer s.guard.Unlock()

	if in.Resources.IsEmpty() && in.PublicIPCount == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "reservation must hold resources or public ips")
	}

	node, err := s.directory.GetNode(ctx, in.NodeID)
	if err != nil {
		return nil, err
	}
	if node.PoweredDown {
		return nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("node %d is powered down", node.ID))
	}
	provider, err := s.directory.GetProvider(ctx, node.ProviderID)
	if err != nil {
		return nil, err
	}

	wholeNode := in.Resources.Equal(node.Usage.Total)
	if node.Dedicated(provider) && !wholeNode {
		return nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("node %d is dedicated and only rented as a whole", node.ID))
	}
	if wholeNode && !node.Usage.Used.IsEmpty() {
		return nil, shared.NewDomainError(shared.CodeInsufficientResources,
			fmt.Sprintf("node %d already has capacity reserved", node.ID))
	}
	if !node.Usage.CanConsume(in.Resources) {
		return nil, shared.NewDomainError(shared.CodeInsufficientResources,
			fmt.Sprintf("node %d cannot fit the requested resources", node.ID))
	}

	var pool *grid.PoolHandle
	if in.PublicIPCount > 0 {
		pool, err = s.loadPool(ctx, provider.ID, in.PublicIPCount)
		if err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	c := contract.NewCapacityReservation(caller, node.ID, in.GroupID, in.Resources, in.PublicIPCount, now)
	err = s.uow.Atomically(ctx, func(ctx context.Context) error {
		if err := s.contracts.Create(ctx, c); err != nil {
			return err
		}
		return s.commitHolds(ctx, c, node, pool, in.Resources, in.PublicIPCount)
	})
	if err != nil {
		return nil, err
	}

	s.schedule.Enqueue(c.ID)
	s.publish(ctx, contract.NewContractCreated(c))
	s.logger.Info("capacity reservation created",
		zap.Uint64("contract_id", c.ID),
		zap.Uint64("node_id", node.ID),
		zap.Uint32("public_ips", in.PublicIPCount))
	return c, nil
}

// CreateWorkloadInput carries the parameters of a new workload deployment.
type CreateWorkloadInput struct {
	ReservationID  uint64
	Resources      resource.Resources
	DeploymentHash string
	DeploymentData string
	PublicIPCount  uint32
}

// CreateWorkload deploys a workload inside the caller's reservation.
func (s *Service) CreateWorkload(ctx context.Context, caller uuid.UUID, in CreateWorkloadInput) (*contract.Contract, error) {
	s.guard.Lock()
	defer s.guard.Unlock()

	r, err := s.contracts.GetByID(ctx, in.ReservationID)
	if err != nil {
		return nil, err
	}
	if r.Kind() != contract.KindCapacityReservation {
		return nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("contract %d is not a capacity reservation", r.ID))
	}
	if r.Owner != caller {
		return nil, shared.ErrNotAuthorized
	}
	if r.State != contract.StateCreated {
		return nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("reservation %d is in state %s", r.ID, r.State))
	}
	if in.DeploymentHash == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "deployment hash is required")
	}

	res := r.CapacityReservation
	if existing, err := s.contracts.GetByNodeAndHash(ctx, res.NodeID, in.DeploymentHash); err == nil && existing != nil {
		return nil, shared.NewDomainError(shared.CodeConflict,
			fmt.Sprintf("deployment %s already exists on node %d", in.DeploymentHash, res.NodeID))
	} else if err != nil && shared.ErrorCode(err) != shared.CodeNotFound {
		return nil, err
	}

	if !res.Used.Add(in.Resources).FitsIn(res.Total) {
		return nil, shared.NewDomainError(shared.CodeInsufficientResources,
			fmt.Sprintf("workload does not fit in reservation %d", r.ID))
	}

	node, err := s.directory.GetNode(ctx, res.NodeID)
	if err != nil {
		return nil, err
	}
	var pool *grid.PoolHandle
	if in.PublicIPCount > 0 {
		pool, err = s.loadPool(ctx, node.ProviderID, in.PublicIPCount)
		if err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	c := contract.NewWorkload(caller, r.ID, res.NodeID, in.Resources, in.DeploymentHash, in.DeploymentData, in.PublicIPCount, now)
	err = s.uow.Atomically(ctx, func(ctx context.Context) error {
		if err := s.contracts.Create(ctx, c); err != nil {
			return err
		}
		res.Used = res.Used.Add(in.Resources)
		r.UpdatedAt = now
		if err := s.contracts.Update(ctx, r); err != nil {
			return err
		}
		if pool != nil {
			return pool.Commit(ctx, c.ID, in.PublicIPCount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.schedule.Enqueue(c.ID)
	s.publish(ctx, contract.NewContractCreated(c))
	s.logger.Info("workload created",
		zap.Uint64("contract_id", c.ID),
		zap.Uint64("reservation_id", r.ID),
		zap.String("deployment_hash", in.DeploymentHash))
	return c, nil
}

// UpdateWorkloadInput carries a workload mutation.
type UpdateWorkloadInput struct {
	Resources      resource.Resources
	DeploymentHash string
	DeploymentData string
}

// UpdateWorkload changes a workload's deployment and resizes its slice of
// the reservation envelope.
func (s *Service) UpdateWorkload(ctx context.Context, caller uuid.UUID, workloadID uint64, in UpdateWorkloadInput) (*contract.Contract, error) {
	s.guard.Lock()
	defer s.guard.Unlock()

	c, err := s.contracts.GetByID(ctx, workloadID)
	if err != nil {
		return nil, err
	}
	if c.Kind() != contract.KindWorkload {
		return nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("contract %d is not a workload", c.ID))
	}
	if c.Owner != caller {
		return nil, shared.ErrNotAuthorized
	}
	if c.State != contract.StateCreated {
		return nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("workload %d is in state %s", c.ID, c.State))
	}
	if in.DeploymentHash == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "deployment hash is required")
	}

	w := c.Workload
	if in.DeploymentHash != w.DeploymentHash {
		if existing, err := s.contracts.GetByNodeAndHash(ctx, w.NodeID, in.DeploymentHash); err == nil && existing != nil {
			return nil, shared.NewDomainError(shared.CodeConflict,
				fmt.Sprintf("deployment %s already exists on node %d", in.DeploymentHash, w.NodeID))
		} else if err != nil && shared.ErrorCode(err) != shared.CodeNotFound {
			return nil, err
		}
	}

	r, err := s.contracts.GetByID(ctx, w.ReservationID)
	if err != nil {
		return nil, err
	}
	res := r.CapacityReservation
	next := res.Used.Sub(w.Resources).Add(in.Resources)
	if !next.FitsIn(res.Total) {
		return nil, shared.NewDomainError(shared.CodeInsufficientResources,
			fmt.Sprintf("resized workload does not fit in reservation %d", r.ID))
	}

	now := s.clock.Now()
	err = s.uow.Atomically(ctx, func(ctx context.Context) error {
		res.Used = next
		r.UpdatedAt = now
		if err := s.contracts.Update(ctx, r); err != nil {
			return err
		}

		w.Resources = in.Resources
		w.DeploymentHash = in.DeploymentHash
		w.DeploymentData = in.DeploymentData
		c.UpdatedAt = now
		return s.contracts.Update(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, contract.NewWorkloadUpdated(c))
	return c, nil
}

// CreateName registers a unique name for the caller.
func (s *Service) CreateName(ctx context.Context, caller uuid.UUID, name string) (*contract.Contract, error) {
	s.guard.Lock()
	defer s.guard.Unlock()

	if err := contract.ValidateName(name); err != nil {
		return nil, err
	}
	if existing, err := s.contracts.GetByName(ctx, name); err == nil && existing != nil {
		return nil, shared.NewDomainError(shared.CodeConflict,
			fmt.Sprintf("name %q is already registered", name))
	} else if err != nil && shared.ErrorCode(err) != shared.CodeNotFound {
		return nil, err
	}

	c := contract.NewNameRegistration(caller, name, s.clock.Now())
	if err := s.contracts.Create(ctx, c); err != nil {
		return nil, err
	}

	s.schedule.Enqueue(c.ID)
	s.publish(ctx, contract.NewContractCreated(c))
	s.logger.Info("name registered", zap.Uint64("contract_id", c.ID), zap.String("name", name))
	return c, nil
}

// Cancel tears down the caller's contract. Canceling a reservation cascades
// to every workload deployed under it.
func (s *Service) Cancel(ctx context.Context, caller uuid.UUID, contractID uint64) error {
	s.guard.Lock()
	defer s.guard.Unlock()

	c, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return err
	}
	if c.Owner != caller {
		return shared.ErrNotAuthorized
	}
	return s.engine.Finalize(ctx, c, contract.DeleteCauseCanceledByUser)
}

// NodeDeleted tears down every contract bound to a node that left the
// directory.
func (s *Service) NodeDeleted(ctx context.Context, nodeID uint64) error {
	s.guard.Lock()
	defer s.guard.Unlock()

	list, err := s.contracts.ListByNode(ctx, nodeID)
	if err != nil {
		return err
	}
	// reservations cascade to their workloads, so tear them down first and
	// let the remainder be the workloads whose reservation was elsewhere
	for _, c := range list {
		if c.Kind() != contract.KindCapacityReservation {
			continue
		}
		if err := s.engine.Finalize(ctx, c, contract.DeleteCauseCanceledByUser); err != nil {
			return err
		}
	}
	for _, c := range list {
		if c.Kind() != contract.KindWorkload {
			continue
		}
		if _, err := s.contracts.GetByID(ctx, c.ID); shared.ErrorCode(err) == shared.CodeNotFound {
			continue
		}
		if err := s.engine.Finalize(ctx, c, contract.DeleteCauseCanceledByUser); err != nil {
			return err
		}
	}
	return nil
}

// Get loads a contract by id.
func (s *Service) Get(ctx context.Context, id uint64) (*contract.Contract, error) {
	return s.contracts.GetByID(ctx, id)
}

// Bill settles a contract immediately, outside its scheduled cycle. The
// engine takes the guard itself.
func (s *Service) Bill(ctx context.Context, contractID uint64) error {
	return s.engine.Bill(ctx, contractID)
}

// SetDedicatedSurcharge sets a node's monthly extra fee. Only the provider
// that owns the node may set it, and only while the node has no contracts.
func (s *Service) SetDedicatedSurcharge(ctx context.Context, caller uuid.UUID, nodeID, fee uint64) error {
	s.guard.Lock()
	defer s.guard.Unlock()

	node, err := s.directory.GetNode(ctx, nodeID)
	if err != nil {
		return err
	}
	provider, err := s.directory.GetProvider(ctx, node.ProviderID)
	if err != nil {
		return err
	}
	if provider.Owner != caller {
		return shared.ErrNotAuthorized
	}
	active, err := s.contracts.ListByNode(ctx, nodeID)
	if err != nil {
		return err
	}
	if len(active) > 0 {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("node %d still has %d contracts", nodeID, len(active)))
	}
	return s.directory.SetNodeExtraFee(ctx, nodeID, fee)
}

// ReportConsumedResources lets a node report what a deployment actually
// consumes. The workload's envelope follows the report, bounded by its
// reservation.
func (s *Service) ReportConsumedResources(ctx context.Context, nodeAccount uuid.UUID, contractID uint64, used resource.Resources) error {
	s.guard.Lock()
	defer s.guard.Unlock()

	node, err := s.directory.GetNodeByAccount(ctx, nodeAccount)
	if err != nil {
		if shared.ErrorCode(err) == shared.CodeNotFound {
			return shared.ErrNotAuthorized
		}
		return err
	}

	c, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return err
	}
	if c.Kind() != contract.KindWorkload || c.Workload.NodeID != node.ID {
		return shared.ErrNotAuthorized
	}
	if c.State == contract.StateDeleted {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("contract %d is deleted", c.ID))
	}

	r, err := s.contracts.GetByID(ctx, c.Workload.ReservationID)
	if err != nil {
		return err
	}
	res := r.CapacityReservation
	next := res.Used.Sub(c.Workload.Resources).Add(used)
	if !next.FitsIn(res.Total) {
		return shared.NewDomainError(shared.CodeInsufficientResources,
			fmt.Sprintf("reported usage exceeds reservation %d", r.ID))
	}

	now := s.clock.Now()
	res.Used = next
	r.UpdatedAt = now
	if err := s.contracts.Update(ctx, r); err != nil {
		return err
	}
	c.Workload.Resources = used
	c.UpdatedAt = now
	if err := s.contracts.Update(ctx, c); err != nil {
		return err
	}

	s.publish(ctx, contract.NewUsageUpdated(c.ID, node.ID, used))
	return nil
}

// UsageReport is one network usage sample from a node. Counter is the
// cumulative bytes the deployment has pushed since it started.
type UsageReport struct {
	ContractID uint64
	Timestamp  time.Time
	Window     uint64 // seconds covered by this sample
	Counter    uint64 // cumulative network usage in bytes
}

// ReportNetworkUsage accrues network usage costs from node samples into the
// affected contracts' unbilled carry-over. Stale or rewound samples are
// dropped per report; one bad sample never rejects the batch.
func (s *Service) ReportNetworkUsage(ctx context.Context, nodeAccount uuid.UUID, reports []UsageReport) error {
	s.guard.Lock()
	defer s.guard.Unlock()

	node, err := s.directory.GetNodeByAccount(ctx, nodeAccount)
	if err != nil {
		if shared.ErrorCode(err) == shared.CodeNotFound {
			return shared.ErrNotAuthorized
		}
		return err
	}

	for _, report := range reports {
		if err := s.applyUsageReport(ctx, node, report); err != nil {
			s.logger.Warn("dropping usage report",
				zap.Uint64("contract_id", report.ContractID),
				zap.Error(err))
		}
	}
	return nil
}

func (s *Service) applyUsageReport(ctx context.Context, node *grid.Node, report UsageReport) error {
	c, err := s.contracts.GetByID(ctx, report.ContractID)
	if err != nil {
		return err
	}
	if c.NodeID() != node.ID {
		return shared.ErrNotAuthorized
	}
	if c.State == contract.StateDeleted {
		return shared.NewDomainError(shared.CodeInvalidState, "contract is deleted")
	}
	if !report.Timestamp.After(c.Billing.LastUsageReportAt) {
		return shared.NewDomainError(shared.CodeInvalidState, "report is older than the last accepted one")
	}
	if report.Counter < c.Billing.PreviousUsageReported {
		return shared.NewDomainError(shared.CodeInvalidState, "usage counter rewound")
	}

	delta := report.Counter - c.Billing.PreviousUsageReported
	cost := s.engine.NetworkUsageCost(report.Window, delta)
	c.AccrueUnbilled(cost)
	c.Billing.PreviousUsageReported = report.Counter
	c.Billing.LastUsageReportAt = report.Timestamp
	c.UpdatedAt = s.clock.Now()
	return s.contracts.Update(ctx, c)
}

// loadPool fetches a provider pool and checks it can serve count addresses.
func (s *Service) loadPool(ctx context.Context, providerID uint64, count uint32) (*grid.PoolHandle, error) {
	pool, err := s.ips.GetPool(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if pool.FreeCount() < count {
		return nil, shared.NewDomainError(shared.CodeConflict,
			fmt.Sprintf("provider %d has %d free public ips, %d requested", providerID, pool.FreeCount(), count))
	}
	return &grid.PoolHandle{ProviderID: providerID, Pool: pool, Registry: s.ips}, nil
}

// commitHolds applies the capacity and ip holds of a freshly created
// reservation.
func (s *Service) commitHolds(ctx context.Context, c *contract.Contract, node *grid.Node, pool *grid.PoolHandle, res resource.Resources, ipCount uint32) error {
	if err := node.Usage.Consume(res); err != nil {
		return err
	}
	if err := s.directory.SaveNodeUsage(ctx, node.ID, node.Usage); err != nil {
		return err
	}
	if pool != nil {
		if err := pool.Commit(ctx, c.ID, ipCount); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, events ...shared.DomainEvent) {
	if len(events) == 0 {
		return
	}
	if err := s.bus.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish events", zap.Error(err))
	}
}
