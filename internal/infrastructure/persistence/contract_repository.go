package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/gridmarket/backend/internal/domain/contract"
	"github.com/gridmarket/backend/internal/domain/shared"
	"github.com/gridmarket/backend/internal/infrastructure/persistence/models"
)

// GormContractRepository implements contract.Repository using GORM
type GormContractRepository struct {
	db *gorm.DB
}

// NewGormContractRepository creates a new GORM-based contract repository
func NewGormContractRepository(db *gorm.DB) *GormContractRepository {
	return &GormContractRepository{db: db}
}

// Create persists a new contract and assigns its id from the sequence.
func (r *GormContractRepository) Create(ctx context.Context, c *contract.Contract) error {
	var model models.ContractModel
	model.FromDomain(c)
	model.ID = 0 // let the sequence assign

	if err := dbFrom(ctx, r.db).WithContext(ctx).Create(&model).Error; err != nil {
		return translateError(err, "contract")
	}
	c.ID = model.ID
	return nil
}

// Update persists changes to an existing contract.
func (r *GormContractRepository) Update(ctx context.Context, c *contract.Contract) error {
	var model models.ContractModel
	model.FromDomain(c)

	result := dbFrom(ctx, r.db).WithContext(ctx).Model(&models.ContractModel{}).
		Where("id = ?", c.ID).
		Select("*").Omit("id", "created_at").
		Updates(&model)
	if result.Error != nil {
		return translateError(result.Error, "contract")
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("contract %d not found", c.ID))
	}
	return nil
}

// Delete removes a contract row.
func (r *GormContractRepository) Delete(ctx context.Context, id uint64) error {
	return translateError(
		dbFrom(ctx, r.db).WithContext(ctx).Delete(&models.ContractModel{}, id).Error,
		"contract")
}

// GetByID loads a contract by id.
func (r *GormContractRepository) GetByID(ctx context.Context, id uint64) (*contract.Contract, error) {
	var model models.ContractModel
	err := dbFrom(ctx, r.db).WithContext(ctx).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("contract %d not found", id))
		}
		return nil, translateError(err, "contract")
	}
	return model.ToDomain(), nil
}

// GetByName loads a name registration by its registered name.
func (r *GormContractRepository) GetByName(ctx context.Context, name string) (*contract.Contract, error) {
	var model models.ContractModel
	err := dbFrom(ctx, r.db).WithContext(ctx).Where("name = ?", name).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("name %q not found", name))
		}
		return nil, translateError(err, "contract")
	}
	return model.ToDomain(), nil
}

// GetByNodeAndHash loads a workload by its node and deployment hash.
func (r *GormContractRepository) GetByNodeAndHash(ctx context.Context, nodeID uint64, hash string) (*contract.Contract, error) {
	var model models.ContractModel
	err := dbFrom(ctx, r.db).WithContext(ctx).
		Where("hash_node_id = ? AND deployment_hash = ?", nodeID, hash).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound,
				fmt.Sprintf("deployment %s not found on node %d", hash, nodeID))
		}
		return nil, translateError(err, "contract")
	}
	return model.ToDomain(), nil
}

// ListByReservation returns the workload contracts deployed under a reservation.
func (r *GormContractRepository) ListByReservation(ctx context.Context, reservationID uint64) ([]*contract.Contract, error) {
	var rows []models.ContractModel
	err := dbFrom(ctx, r.db).WithContext(ctx).
		Where("kind = ? AND reservation_id = ?", uint8(contract.KindWorkload), reservationID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err, "contract")
	}
	return toDomainList(rows), nil
}

// ListByNode returns all contracts bound to a node.
func (r *GormContractRepository) ListByNode(ctx context.Context, nodeID uint64) ([]*contract.Contract, error) {
	var rows []models.ContractModel
	err := dbFrom(ctx, r.db).WithContext(ctx).
		Where("node_id = ? AND kind <> ?", nodeID, uint8(contract.KindNameRegistration)).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err, "contract")
	}
	return toDomainList(rows), nil
}

// ListIDs returns every live contract id.
func (r *GormContractRepository) ListIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	err := dbFrom(ctx, r.db).WithContext(ctx).
		Model(&models.ContractModel{}).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, translateError(err, "contract")
	}
	return ids, nil
}

func toDomainList(rows []models.ContractModel) []*contract.Contract {
	out := make([]*contract.Contract, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

// translateError maps database errors onto the domain error taxonomy.
func translateError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return shared.NewDomainError(shared.CodeConflict, fmt.Sprintf("%s already exists", entity))
	}
	return err
}

var _ contract.Repository = (*GormContractRepository)(nil)
