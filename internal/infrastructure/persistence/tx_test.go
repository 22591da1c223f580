package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gridmarket/backend/internal/domain/resource"
	"github.com/gridmarket/backend/internal/infrastructure/persistence/models"
)

func setupTxTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.ContractModel{}, &models.NodeModel{})
	require.NoError(t, err)

	return db
}

func TestTxManager_RollsBackEveryWrite(t *testing.T) {
	db := setupTxTestDB(t)
	tm := NewTxManager(db)
	contracts := NewGormContractRepository(db)
	dir := NewGormDirectory(db)
	ctx := context.Background()

	seedNode(t, db, 1, 10)
	errBoom := errors.New("boom")

	// contract row and node usage are written mid-function, then the
	// failure unwinds both
	err := tm.Atomically(ctx, func(ctx context.Context) error {
		c := testReservation(uuid.New(), 1)
		if err := contracts.Create(ctx, c); err != nil {
			return err
		}
		node, err := dir.GetNode(ctx, 1)
		if err != nil {
			return err
		}
		if err := node.Usage.Consume(resource.Resources{CPU: 4}); err != nil {
			return err
		}
		if err := dir.SaveNodeUsage(ctx, 1, node.Usage); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	ids, err := contracts.ListIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	node, err := dir.GetNode(ctx, 1)
	require.NoError(t, err)
	assert.True(t, node.Usage.Used.IsEmpty())
}

func TestTxManager_CommitsOnSuccess(t *testing.T) {
	db := setupTxTestDB(t)
	tm := NewTxManager(db)
	contracts := NewGormContractRepository(db)
	dir := NewGormDirectory(db)
	ctx := context.Background()

	seedNode(t, db, 1, 10)

	c := testReservation(uuid.New(), 1)
	err := tm.Atomically(ctx, func(ctx context.Context) error {
		if err := contracts.Create(ctx, c); err != nil {
			return err
		}
		node, err := dir.GetNode(ctx, 1)
		if err != nil {
			return err
		}
		if err := node.Usage.Consume(resource.Resources{CPU: 4}); err != nil {
			return err
		}
		return dir.SaveNodeUsage(ctx, 1, node.Usage)
	})
	require.NoError(t, err)

	got, err := contracts.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	node, err := dir.GetNode(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), node.Usage.Used.CPU)
}

func TestTxManager_NestedJoinsOuterTransaction(t *testing.T) {
	db := setupTxTestDB(t)
	tm := NewTxManager(db)
	contracts := NewGormContractRepository(db)
	ctx := context.Background()

	errBoom := errors.New("boom")
	err := tm.Atomically(ctx, func(ctx context.Context) error {
		if err := contracts.Create(ctx, testReservation(uuid.New(), 1)); err != nil {
			return err
		}
		// the inner transaction commits its savepoint, the outer failure
		// still unwinds it
		if err := tm.Atomically(ctx, func(ctx context.Context) error {
			return contracts.Create(ctx, testReservation(uuid.New(), 2))
		}); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	ids, err := contracts.ListIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
