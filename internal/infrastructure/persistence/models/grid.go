package models

import (
	"github.com/google/uuid"

	"github.com/gridmarket/backend/internal/domain/capacity"
	"github.com/gridmarket/backend/internal/domain/grid"
	"github.com/gridmarket/backend/internal/domain/ippool"
	"github.com/gridmarket/backend/internal/domain/resource"
)

// NodeModel is the persistence model for a directory node.
type NodeModel struct {
	ID         uint64    `gorm:"primaryKey"`
	ProviderID uint64    `gorm:"not null;index"`
	AccountID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`

	TotalCPU  uint64 `gorm:"not null;default:0"`
	TotalMem  uint64 `gorm:"not null;default:0"`
	TotalFast uint64 `gorm:"not null;default:0"`
	TotalBulk uint64 `gorm:"not null;default:0"`
	UsedCPU   uint64 `gorm:"not null;default:0"`
	UsedMem   uint64 `gorm:"not null;default:0"`
	UsedFast  uint64 `gorm:"not null;default:0"`
	UsedBulk  uint64 `gorm:"not null;default:0"`

	PoweredDown bool   `gorm:"not null;default:false"`
	Certified   bool   `gorm:"not null;default:false"`
	ExtraFee    uint64 `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (NodeModel) TableName() string {
	return "nodes"
}

// ToDomain converts the persistence model to a domain Node.
func (m *NodeModel) ToDomain() *grid.Node {
	return &grid.Node{
		ID:         m.ID,
		ProviderID: m.ProviderID,
		AccountID:  m.AccountID,
		Usage: capacity.Usage{
			Total: resource.Resources{CPU: m.TotalCPU, Memory: m.TotalMem, FastStorage: m.TotalFast, BulkStorage: m.TotalBulk},
			Used:  resource.Resources{CPU: m.UsedCPU, Memory: m.UsedMem, FastStorage: m.UsedFast, BulkStorage: m.UsedBulk},
		},
		PoweredDown: m.PoweredDown,
		Certified:   m.Certified,
		ExtraFee:    m.ExtraFee,
	}
}

// FromDomain populates the persistence model from a domain Node.
func (m *NodeModel) FromDomain(n *grid.Node) {
	m.ID = n.ID
	m.ProviderID = n.ProviderID
	m.AccountID = n.AccountID
	m.TotalCPU, m.TotalMem, m.TotalFast, m.TotalBulk = n.Usage.Total.CPU, n.Usage.Total.Memory, n.Usage.Total.FastStorage, n.Usage.Total.BulkStorage
	m.UsedCPU, m.UsedMem, m.UsedFast, m.UsedBulk = n.Usage.Used.CPU, n.Usage.Used.Memory, n.Usage.Used.FastStorage, n.Usage.Used.BulkStorage
	m.PoweredDown = n.PoweredDown
	m.Certified = n.Certified
	m.ExtraFee = n.ExtraFee
}

// ProviderModel is the persistence model for a capacity provider.
type ProviderModel struct {
	ID        uint64    `gorm:"primaryKey"`
	Owner     uuid.UUID `gorm:"type:uuid;not null;index"`
	Dedicated bool      `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (ProviderModel) TableName() string {
	return "providers"
}

// ToDomain converts the persistence model to a domain Provider.
func (m *ProviderModel) ToDomain() *grid.Provider {
	return &grid.Provider{ID: m.ID, Owner: m.Owner, Dedicated: m.Dedicated}
}

// PublicIPModel is one address in a provider's pool. Position keeps the
// deterministic hand-out order; ContractID zero means free.
type PublicIPModel struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	ProviderID uint64 `gorm:"not null;index"`
	Position   int    `gorm:"not null"`
	Address    string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Gateway    string `gorm:"type:varchar(64);not null"`
	ContractID uint64 `gorm:"not null;default:0;index"`
}

// TableName returns the table name for GORM
func (PublicIPModel) TableName() string {
	return "public_ips"
}

// ToDomain converts the persistence model to a domain PublicIP.
func (m *PublicIPModel) ToDomain() ippool.PublicIP {
	return ippool.PublicIP{Address: m.Address, Gateway: m.Gateway, ContractID: m.ContractID}
}

// AccountModel holds a wallet account balance in settlement units.
type AccountModel struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	Balance uint64    `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string {
	return "accounts"
}
