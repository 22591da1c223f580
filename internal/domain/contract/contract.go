package contract

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/gridmarket/backend/internal/domain/resource"
	"github.com/gridmarket/backend/internal/domain/shared"
)

// State is the lifecycle state of a contract.
type State uint8

const (
	StateCreated State = iota
	StateGracePeriod
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateGracePeriod:
		return "grace_period"
	case StateDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// DeleteCause records why a contract reached the deleted state.
type DeleteCause uint8

const (
	DeleteCauseNone DeleteCause = iota
	DeleteCauseCanceledByUser
	DeleteCauseOutOfFunds
)

func (c DeleteCause) String() string {
	switch c {
	case DeleteCauseCanceledByUser:
		return "canceled_by_user"
	case DeleteCauseOutOfFunds:
		return "out_of_funds"
	default:
		return "none"
	}
}

// Kind discriminates the three contract payloads.
type Kind uint8

const (
	KindCapacityReservation Kind = iota
	KindWorkload
	KindNameRegistration
)

func (k Kind) String() string {
	switch k {
	case KindCapacityReservation:
		return "capacity_reservation"
	case KindWorkload:
		return "workload"
	case KindNameRegistration:
		return "name_registration"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// CapacityReservation holds a slice of one node's capacity. Total is the
// reserved envelope, Used the part consumed by workloads deployed under it.
type CapacityReservation struct {
	NodeID        uint64             `json:"node_id"`
	GroupID       uint64             `json:"group_id,omitempty"`
	Total         resource.Resources `json:"total"`
	Used          resource.Resources `json:"used"`
	PublicIPCount uint32             `json:"public_ip_count"`
}

// Workload is a deployment inside a reservation's envelope. The deployment
// hash is the content digest of the deployment definition; (node, hash) is
// unique among live workloads.
type Workload struct {
	ReservationID  uint64             `json:"reservation_id"`
	NodeID         uint64             `json:"node_id"`
	Resources      resource.Resources `json:"resources"`
	DeploymentHash string             `json:"deployment_hash"`
	DeploymentData string             `json:"deployment_data"`
	PublicIPCount  uint32             `json:"public_ip_count"`
}

// NameRegistration holds a unique DNS-style name.
type NameRegistration struct {
	Name string `json:"name"`
}

// BillingInformation is the per-contract billing ledger.
type BillingInformation struct {
	// LastSettledAt anchors the next billing window.
	LastSettledAt time.Time `json:"last_settled_at"`
	// AmountUnbilled accrues costs between settlements: network usage
	// reports and any cost deferred by window clamping.
	AmountUnbilled uint64 `json:"amount_unbilled"`
	// PreviousUsageReported is the last cumulative network usage counter
	// accepted from the node, used to compute deltas and drop stale reports.
	PreviousUsageReported uint64 `json:"previous_usage_reported"`
	// LastUsageReportAt rejects reports older than the last accepted one.
	LastUsageReportAt time.Time `json:"last_usage_report_at"`
}

// SettlementLock accumulates settled amounts between distributions and
// tracks cycle outcomes for grace handling.
type SettlementLock struct {
	// AmountEscrowed is the settlement-unit total held back since the last
	// distribution to the provider and platform accounts.
	AmountEscrowed uint64 `json:"amount_escrowed"`
	// UpdatedAt is when the lock last absorbed a settlement.
	UpdatedAt time.Time `json:"updated_at"`
	// Cycles counts settlements since the last distribution.
	Cycles uint32 `json:"cycles"`
	// MissedCycles counts consecutive cycles the tenant could not cover.
	MissedCycles uint32 `json:"missed_cycles"`
}

var nameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidateName checks a registration name: 3 to 50 characters of lowercase
// alphanumerics, hyphens and underscores, starting with an alphanumeric.
func ValidateName(name string) error {
	if len(name) < 3 || len(name) > 50 {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("name must be 3-50 characters, got %d", len(name)))
	}
	if !nameRe.MatchString(name) {
		return shared.NewDomainError(shared.CodeInvalidState,
			"name may only contain lowercase letters, digits, hyphens and underscores")
	}
	return nil
}

// Contract is the aggregate root for all three contract kinds. Exactly one
// of the payload pointers is non-nil.
type Contract struct {
	ID    uint64    `json:"id"`
	Owner uuid.UUID `json:"owner"`
	State State     `json:"state"`
	// GraceSince is set while State is GracePeriod and zero otherwise.
	GraceSince  time.Time   `json:"grace_since,omitempty"`
	DeleteCause DeleteCause `json:"delete_cause,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	CapacityReservation *CapacityReservation `json:"capacity_reservation,omitempty"`
	Workload            *Workload            `json:"workload,omitempty"`
	NameRegistration    *NameRegistration    `json:"name_registration,omitempty"`

	Billing BillingInformation `json:"billing"`
	Lock    SettlementLock     `json:"lock"`

	events []shared.DomainEvent
}

// NewCapacityReservation creates a reservation contract in the created state.
func NewCapacityReservation(owner uuid.UUID, nodeID, groupID uint64, total resource.Resources, ipCount uint32, now time.Time) *Contract {
	c := &Contract{
		Owner:     owner,
		State:     StateCreated,
		CreatedAt: now,
		UpdatedAt: now,
		CapacityReservation: &CapacityReservation{
			NodeID:        nodeID,
			GroupID:       groupID,
			Total:         total,
			PublicIPCount: ipCount,
		},
		Billing: BillingInformation{LastSettledAt: now},
		Lock:    SettlementLock{UpdatedAt: now},
	}
	return c
}

// NewWorkload creates a workload contract inside a reservation.
func NewWorkload(owner uuid.UUID, reservationID, nodeID uint64, res resource.Resources, hash, data string, ipCount uint32, now time.Time) *Contract {
	c := &Contract{
		Owner:     owner,
		State:     StateCreated,
		CreatedAt: now,
		UpdatedAt: now,
		Workload: &Workload{
			ReservationID:  reservationID,
			NodeID:         nodeID,
			Resources:      res,
			DeploymentHash: hash,
			DeploymentData: data,
			PublicIPCount:  ipCount,
		},
		Billing: BillingInformation{LastSettledAt: now},
		Lock:    SettlementLock{UpdatedAt: now},
	}
	return c
}

// NewNameRegistration creates a name contract. The name must already be
// validated and checked for uniqueness.
func NewNameRegistration(owner uuid.UUID, name string, now time.Time) *Contract {
	c := &Contract{
		Owner:            owner,
		State:            StateCreated,
		CreatedAt:        now,
		UpdatedAt:        now,
		NameRegistration: &NameRegistration{Name: name},
		Billing:          BillingInformation{LastSettledAt: now},
		Lock:             SettlementLock{UpdatedAt: now},
	}
	return c
}

// Kind returns the payload discriminator.
func (c *Contract) Kind() Kind {
	switch {
	case c.Workload != nil:
		return KindWorkload
	case c.NameRegistration != nil:
		return KindNameRegistration
	default:
		return KindCapacityReservation
	}
}

// NodeID returns the node a reservation or workload is bound to, zero for
// name registrations.
func (c *Contract) NodeID() uint64 {
	switch {
	case c.CapacityReservation != nil:
		return c.CapacityReservation.NodeID
	case c.Workload != nil:
		return c.Workload.NodeID
	default:
		return 0
	}
}

// PublicIPCount returns the number of public IPs the contract holds.
func (c *Contract) PublicIPCount() uint32 {
	switch {
	case c.CapacityReservation != nil:
		return c.CapacityReservation.PublicIPCount
	case c.Workload != nil:
		return c.Workload.PublicIPCount
	default:
		return 0
	}
}

// IsActive reports whether the contract still participates in billing.
func (c *Contract) IsActive() bool {
	return c.State != StateDeleted
}

// InGrace reports whether the contract is currently unfunded.
func (c *Contract) InGrace() bool {
	return c.State == StateGracePeriod
}

// StartGrace moves a funded contract into the grace period. Fails from any
// state but created.
func (c *Contract) StartGrace(now time.Time) error {
	if c.State != StateCreated {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("cannot start grace period from state %s", c.State))
	}
	c.State = StateGracePeriod
	c.GraceSince = now
	c.UpdatedAt = now
	c.record(NewGracePeriodStarted(c.ID, c.NodeID(), c.Owner))
	return nil
}

// EndGrace returns a contract to the created state once it is funded again.
func (c *Contract) EndGrace(now time.Time) error {
	if c.State != StateGracePeriod {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("cannot end grace period from state %s", c.State))
	}
	c.State = StateCreated
	c.GraceSince = time.Time{}
	c.Lock.MissedCycles = 0
	c.UpdatedAt = now
	c.record(NewGracePeriodEnded(c.ID, c.NodeID(), c.Owner))
	return nil
}

// MarkDeleted moves the contract to the terminal deleted state. Idempotent
// transitions are rejected: a deleted contract stays deleted with its
// original cause.
func (c *Contract) MarkDeleted(cause DeleteCause, now time.Time) error {
	if c.State == StateDeleted {
		return shared.NewDomainError(shared.CodeInvalidState, "contract is already deleted")
	}
	c.State = StateDeleted
	c.DeleteCause = cause
	c.GraceSince = time.Time{}
	c.UpdatedAt = now
	c.record(NewContractCanceled(c.ID, c.NodeID(), c.Owner, cause))
	return nil
}

// AccrueUnbilled adds cost to the unbilled carry-over, saturating at the
// maximum instead of wrapping.
func (c *Contract) AccrueUnbilled(amount uint64) {
	if c.Billing.AmountUnbilled+amount < c.Billing.AmountUnbilled {
		c.Billing.AmountUnbilled = ^uint64(0)
		return
	}
	c.Billing.AmountUnbilled += amount
}

// record appends an uncommitted domain event.
func (c *Contract) record(event shared.DomainEvent) {
	c.events = append(c.events, event)
}

// PullEvents returns and clears the uncommitted events. Callers publish them
// after the aggregate has been persisted.
func (c *Contract) PullEvents() []shared.DomainEvent {
	events := c.events
	c.events = nil
	return events
}
