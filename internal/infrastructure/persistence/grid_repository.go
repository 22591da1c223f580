package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gridmarket/backend/internal/domain/capacity"
	"github.com/gridmarket/backend/internal/domain/grid"
	"github.com/gridmarket/backend/internal/domain/ippool"
	"github.com/gridmarket/backend/internal/domain/shared"
	"github.com/gridmarket/backend/internal/infrastructure/persistence/models"
)

// GormDirectory implements grid.Directory using GORM
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory creates a new GORM-based node directory
func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

// GetNode loads a node by id.
func (r *GormDirectory) GetNode(ctx context.Context, id uint64) (*grid.Node, error) {
	var model models.NodeModel
	err := dbFrom(ctx, r.db).WithContext(ctx).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("node %d not found", id))
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// GetNodeByAccount loads the node authenticated by an account id.
func (r *GormDirectory) GetNodeByAccount(ctx context.Context, account uuid.UUID) (*grid.Node, error) {
	var model models.NodeModel
	err := dbFrom(ctx, r.db).WithContext(ctx).Where("account_id = ?", account).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound,
				fmt.Sprintf("no node registered for account %s", account))
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// GetProvider loads a provider by id.
func (r *GormDirectory) GetProvider(ctx context.Context, id uint64) (*grid.Provider, error) {
	var model models.ProviderModel
	err := dbFrom(ctx, r.db).WithContext(ctx).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("provider %d not found", id))
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// SaveNodeUsage persists a node's capacity ledger.
func (r *GormDirectory) SaveNodeUsage(ctx context.Context, nodeID uint64, usage capacity.Usage) error {
	result := dbFrom(ctx, r.db).WithContext(ctx).Model(&models.NodeModel{}).
		Where("id = ?", nodeID).
		Updates(map[string]any{
			"used_cpu":  usage.Used.CPU,
			"used_mem":  usage.Used.Memory,
			"used_fast": usage.Used.FastStorage,
			"used_bulk": usage.Used.BulkStorage,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("node %d not found", nodeID))
	}
	return nil
}

// SetNodeExtraFee persists a node's monthly extra fee.
func (r *GormDirectory) SetNodeExtraFee(ctx context.Context, nodeID uint64, fee uint64) error {
	result := dbFrom(ctx, r.db).WithContext(ctx).Model(&models.NodeModel{}).
		Where("id = ?", nodeID).
		Update("extra_fee", fee)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("node %d not found", nodeID))
	}
	return nil
}

// GormIPRegistry implements grid.IPRegistry using GORM
type GormIPRegistry struct {
	db *gorm.DB
}

// NewGormIPRegistry creates a new GORM-based public IP registry
func NewGormIPRegistry(db *gorm.DB) *GormIPRegistry {
	return &GormIPRegistry{db: db}
}

// GetPool loads a provider's pool ordered by pool position.
func (r *GormIPRegistry) GetPool(ctx context.Context, providerID uint64) (*ippool.Pool, error) {
	var rows []models.PublicIPModel
	err := dbFrom(ctx, r.db).WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("position").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	pool := &ippool.Pool{IPs: make([]ippool.PublicIP, len(rows))}
	for i := range rows {
		pool.IPs[i] = rows[i].ToDomain()
	}
	return pool, nil
}

// SavePool persists a pool after reserve or release. Only the reservation
// column changes; addresses and ordering are managed by the directory.
func (r *GormIPRegistry) SavePool(ctx context.Context, providerID uint64, pool *ippool.Pool) error {
	return dbFrom(ctx, r.db).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ip := range pool.IPs {
			result := tx.Model(&models.PublicIPModel{}).
				Where("provider_id = ? AND address = ?", providerID, ip.Address).
				Update("contract_id", ip.ContractID)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return shared.NewDomainError(shared.CodeNotFound,
					fmt.Sprintf("ip %s not found in provider %d pool", ip.Address, providerID))
			}
		}
		return nil
	})
}

// ReleaseContract frees every address held by a contract across all pools.
func (r *GormIPRegistry) ReleaseContract(ctx context.Context, contractID uint64) ([]ippool.PublicIP, error) {
	if contractID == 0 {
		return nil, nil
	}
	var freed []ippool.PublicIP
	err := dbFrom(ctx, r.db).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.PublicIPModel
		if err := tx.Where("contract_id = ?", contractID).Order("position").Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Model(&models.PublicIPModel{}).
			Where("contract_id = ?", contractID).
			Update("contract_id", 0).Error; err != nil {
			return err
		}
		freed = make([]ippool.PublicIP, len(rows))
		for i := range rows {
			ip := rows[i].ToDomain()
			ip.ContractID = 0
			freed[i] = ip
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return freed, nil
}

// GormWallet implements grid.Wallet on top of the accounts table. Transfers
// run in a transaction so both balances change or neither does.
type GormWallet struct {
	db *gorm.DB
}

// NewGormWallet creates a new GORM-based wallet
func NewGormWallet(db *gorm.DB) *GormWallet {
	return &GormWallet{db: db}
}

// UsableBalance returns what the account can spend right now.
func (w *GormWallet) UsableBalance(ctx context.Context, account uuid.UUID) (uint64, error) {
	var model models.AccountModel
	err := dbFrom(ctx, w.db).WithContext(ctx).First(&model, "id = ?", account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return model.Balance, nil
}

// Transfer moves amount from one account to another.
func (w *GormWallet) Transfer(ctx context.Context, from, to uuid.UUID, amount uint64) error {
	if amount == 0 || from == to {
		return nil
	}
	return dbFrom(ctx, w.db).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := w.debit(tx, from, amount); err != nil {
			return err
		}
		// credit, creating the destination account on first use
		result := tx.Model(&models.AccountModel{}).
			Where("id = ?", to).
			Update("balance", gorm.Expr("balance + ?", amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return tx.Create(&models.AccountModel{ID: to, Balance: amount}).Error
		}
		return nil
	})
}

// Burn permanently removes amount from an account.
func (w *GormWallet) Burn(ctx context.Context, account uuid.UUID, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return dbFrom(ctx, w.db).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return w.debit(tx, account, amount)
	})
}

func (w *GormWallet) debit(tx *gorm.DB, account uuid.UUID, amount uint64) error {
	result := tx.Model(&models.AccountModel{}).
		Where("id = ? AND balance >= ?", account, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeInsufficientResources,
			fmt.Sprintf("account %s cannot cover %d units", account, amount))
	}
	return nil
}

var (
	_ grid.Directory  = (*GormDirectory)(nil)
	_ grid.IPRegistry = (*GormIPRegistry)(nil)
	_ grid.Wallet     = (*GormWallet)(nil)
)
