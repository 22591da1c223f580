package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gridmarket/backend/internal/domain/contract"
	"github.com/gridmarket/backend/internal/domain/resource"
)

// ContractModel is the persistence model for the Contract aggregate. The
// three payload kinds share one table; Kind discriminates and unused columns
// stay at their zero values. Deleted contracts are removed from the table, so
// the uniqueness indexes only ever constrain live contracts.
type ContractModel struct {
	ID          uint64     `gorm:"primaryKey;autoIncrement"`
	Owner       uuid.UUID  `gorm:"type:uuid;not null;index"`
	Kind        uint8      `gorm:"not null"`
	State       uint8      `gorm:"not null"`
	DeleteCause uint8      `gorm:"not null;default:0"`
	GraceSince  *time.Time `gorm:""`
	CreatedAt   time.Time  `gorm:"not null"`
	UpdatedAt   time.Time  `gorm:"not null"`

	// reservation and workload placement
	NodeID        uint64 `gorm:"index"`
	GroupID       uint64 `gorm:"index"`
	ReservationID uint64 `gorm:"index"`

	// resource vectors: Total* is the reservation envelope or the workload
	// resources, Used* only applies to reservations
	TotalCPU  uint64 `gorm:"not null;default:0"`
	TotalMem  uint64 `gorm:"not null;default:0"`
	TotalFast uint64 `gorm:"not null;default:0"`
	TotalBulk uint64 `gorm:"not null;default:0"`
	UsedCPU   uint64 `gorm:"not null;default:0"`
	UsedMem   uint64 `gorm:"not null;default:0"`
	UsedFast  uint64 `gorm:"not null;default:0"`
	UsedBulk  uint64 `gorm:"not null;default:0"`

	PublicIPCount uint32 `gorm:"not null;default:0"`

	// nullable so rows of other kinds do not collide on the unique indexes
	DeploymentHash *string `gorm:"type:varchar(128);uniqueIndex:idx_contracts_node_hash,priority:2"`
	HashNodeID     *uint64 `gorm:"uniqueIndex:idx_contracts_node_hash,priority:1"`
	DeploymentData string  `gorm:"type:text"`
	Name           *string `gorm:"type:varchar(50);uniqueIndex"`

	// billing ledger
	LastSettledAt         time.Time `gorm:"not null"`
	AmountUnbilled        uint64    `gorm:"not null;default:0"`
	PreviousUsageReported uint64    `gorm:"not null;default:0"`
	LastUsageReportAt     time.Time `gorm:""`

	// settlement lock
	AmountEscrowed uint64    `gorm:"not null;default:0"`
	LockUpdatedAt  time.Time `gorm:"not null"`
	Cycles         uint32    `gorm:"not null;default:0"`
	MissedCycles   uint32    `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (ContractModel) TableName() string {
	return "contracts"
}

// ToDomain converts the persistence model to a domain Contract aggregate.
func (m *ContractModel) ToDomain() *contract.Contract {
	c := &contract.Contract{
		ID:          m.ID,
		Owner:       m.Owner,
		State:       contract.State(m.State),
		DeleteCause: contract.DeleteCause(m.DeleteCause),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		Billing: contract.BillingInformation{
			LastSettledAt:         m.LastSettledAt,
			AmountUnbilled:        m.AmountUnbilled,
			PreviousUsageReported: m.PreviousUsageReported,
			LastUsageReportAt:     m.LastUsageReportAt,
		},
		Lock: contract.SettlementLock{
			AmountEscrowed: m.AmountEscrowed,
			UpdatedAt:      m.LockUpdatedAt,
			Cycles:         m.Cycles,
			MissedCycles:   m.MissedCycles,
		},
	}
	if m.GraceSince != nil {
		c.GraceSince = *m.GraceSince
	}

	switch contract.Kind(m.Kind) {
	case contract.KindWorkload:
		var hash string
		if m.DeploymentHash != nil {
			hash = *m.DeploymentHash
		}
		c.Workload = &contract.Workload{
			ReservationID:  m.ReservationID,
			NodeID:         m.NodeID,
			Resources:      resource.Resources{CPU: m.TotalCPU, Memory: m.TotalMem, FastStorage: m.TotalFast, BulkStorage: m.TotalBulk},
			DeploymentHash: hash,
			DeploymentData: m.DeploymentData,
			PublicIPCount:  m.PublicIPCount,
		}
	case contract.KindNameRegistration:
		var name string
		if m.Name != nil {
			name = *m.Name
		}
		c.NameRegistration = &contract.NameRegistration{Name: name}
	default:
		c.CapacityReservation = &contract.CapacityReservation{
			NodeID:        m.NodeID,
			GroupID:       m.GroupID,
			Total:         resource.Resources{CPU: m.TotalCPU, Memory: m.TotalMem, FastStorage: m.TotalFast, BulkStorage: m.TotalBulk},
			Used:          resource.Resources{CPU: m.UsedCPU, Memory: m.UsedMem, FastStorage: m.UsedFast, BulkStorage: m.UsedBulk},
			PublicIPCount: m.PublicIPCount,
		}
	}
	return c
}

// FromDomain populates the persistence model from a domain Contract.
func (m *ContractModel) FromDomain(c *contract.Contract) {
	m.ID = c.ID
	m.Owner = c.Owner
	m.Kind = uint8(c.Kind())
	m.State = uint8(c.State)
	m.DeleteCause = uint8(c.DeleteCause)
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
	if c.GraceSince.IsZero() {
		m.GraceSince = nil
	} else {
		t := c.GraceSince
		m.GraceSince = &t
	}

	m.LastSettledAt = c.Billing.LastSettledAt
	m.AmountUnbilled = c.Billing.AmountUnbilled
	m.PreviousUsageReported = c.Billing.PreviousUsageReported
	m.LastUsageReportAt = c.Billing.LastUsageReportAt
	m.AmountEscrowed = c.Lock.AmountEscrowed
	m.LockUpdatedAt = c.Lock.UpdatedAt
	m.Cycles = c.Lock.Cycles
	m.MissedCycles = c.Lock.MissedCycles

	switch c.Kind() {
	case contract.KindWorkload:
		w := c.Workload
		m.NodeID = w.NodeID
		m.ReservationID = w.ReservationID
		m.TotalCPU, m.TotalMem, m.TotalFast, m.TotalBulk = w.Resources.CPU, w.Resources.Memory, w.Resources.FastStorage, w.Resources.BulkStorage
		m.PublicIPCount = w.PublicIPCount
		hash := w.DeploymentHash
		node := w.NodeID
		m.DeploymentHash = &hash
		m.HashNodeID = &node
		m.DeploymentData = w.DeploymentData
	case contract.KindNameRegistration:
		name := c.NameRegistration.Name
		m.Name = &name
	default:
		r := c.CapacityReservation
		m.NodeID = r.NodeID
		m.GroupID = r.GroupID
		m.TotalCPU, m.TotalMem, m.TotalFast, m.TotalBulk = r.Total.CPU, r.Total.Memory, r.Total.FastStorage, r.Total.BulkStorage
		m.UsedCPU, m.UsedMem, m.UsedFast, m.UsedBulk = r.Used.CPU, r.Used.Memory, r.Used.FastStorage, r.Used.BulkStorage
		m.PublicIPCount = r.PublicIPCount
	}
}
