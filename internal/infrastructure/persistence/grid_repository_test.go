package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gridmarket/backend/internal/domain/capacity"
	"github.com/gridmarket/backend/internal/domain/resource"
	"github.com/gridmarket/backend/internal/domain/shared"
	"github.com/gridmarket/backend/internal/infrastructure/persistence/models"
)

// setupGridTestDB creates an in-memory SQLite database for testing
func setupGridTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.NodeModel{},
		&models.ProviderModel{},
		&models.PublicIPModel{},
		&models.AccountModel{},
	)
	require.NoError(t, err)

	return db
}

func seedNode(t *testing.T, db *gorm.DB, id, providerID uint64) uuid.UUID {
	t.Helper()
	account := uuid.New()
	require.NoError(t, db.Create(&models.NodeModel{
		ID:         id,
		ProviderID: providerID,
		AccountID:  account,
		TotalCPU:   8,
		TotalMem:   16 << 30,
		TotalFast:  512 << 30,
		TotalBulk:  1024 << 30,
	}).Error)
	return account
}

func TestGormDirectory_GetNode(t *testing.T) {
	db := setupGridTestDB(t)
	dir := NewGormDirectory(db)
	ctx := context.Background()

	account := seedNode(t, db, 1, 10)

	node, err := dir.GetNode(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), node.ProviderID)
	assert.Equal(t, account, node.AccountID)
	assert.Equal(t, uint64(8), node.Usage.Total.CPU)
	assert.True(t, node.Usage.Used.IsEmpty())

	_, err = dir.GetNode(ctx, 99)
	assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(err))
}

func TestGormDirectory_GetNodeByAccount(t *testing.T) {
	db := setupGridTestDB(t)
	dir := NewGormDirectory(db)
	ctx := context.Background()

	account := seedNode(t, db, 1, 10)

	node, err := dir.GetNodeByAccount(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), node.ID)

	_, err = dir.GetNodeByAccount(ctx, uuid.New())
	assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(err))
}

func TestGormDirectory_SaveNodeUsage(t *testing.T) {
	db := setupGridTestDB(t)
	dir := NewGormDirectory(db)
	ctx := context.Background()

	seedNode(t, db, 1, 10)

	used := resource.Resources{CPU: 4, Memory: 8 << 30, FastStorage: 100 << 30}
	err := dir.SaveNodeUsage(ctx, 1, capacity.Usage{Used: used})
	require.NoError(t, err)

	node, err := dir.GetNode(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, used, node.Usage.Used)
	assert.Equal(t, uint64(8), node.Usage.Total.CPU) // totals untouched

	err = dir.SaveNodeUsage(ctx, 99, capacity.Usage{})
	assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(err))
}

func TestGormDirectory_SetNodeExtraFee(t *testing.T) {
	db := setupGridTestDB(t)
	dir := NewGormDirectory(db)
	ctx := context.Background()

	seedNode(t, db, 1, 10)

	require.NoError(t, dir.SetNodeExtraFee(ctx, 1, 2000))
	node, err := dir.GetNode(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), node.ExtraFee)

	err = dir.SetNodeExtraFee(ctx, 99, 1)
	assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(err))
}

func TestGormDirectory_GetProvider(t *testing.T) {
	db := setupGridTestDB(t)
	dir := NewGormDirectory(db)
	ctx := context.Background()

	owner := uuid.New()
	require.NoError(t, db.Create(&models.ProviderModel{ID: 10, Owner: owner, Dedicated: true}).Error)

	p, err := dir.GetProvider(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, owner, p.Owner)
	assert.True(t, p.Dedicated)

	_, err = dir.GetProvider(ctx, 11)
	assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(err))
}

func seedPool(t *testing.T, db *gorm.DB, providerID uint64, addrs ...string) {
	t.Helper()
	for i, addr := range addrs {
		require.NoError(t, db.Create(&models.PublicIPModel{
			ProviderID: providerID,
			Position:   i,
			Address:    addr,
			Gateway:    "185.69.166.1",
		}).Error)
	}
}

func TestGormIPRegistry_ReserveRoundTrip(t *testing.T) {
	db := setupGridTestDB(t)
	reg := NewGormIPRegistry(db)
	ctx := context.Background()

	seedPool(t, db, 10, "185.69.166.12/24", "185.69.166.13/24", "185.69.166.14/24")

	pool, err := reg.GetPool(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pool.IPs, 3)
	assert.Equal(t, "185.69.166.12/24", pool.IPs[0].Address)

	reserved, err := pool.Reserve(77, 2)
	require.NoError(t, err)
	require.Len(t, reserved, 2)
	require.NoError(t, reg.SavePool(ctx, 10, pool))

	again, err := reg.GetPool(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), again.IPs[0].ContractID)
	assert.Equal(t, uint64(77), again.IPs[1].ContractID)
	assert.Equal(t, uint32(1), again.FreeCount())
}

func TestGormIPRegistry_ReleaseContract(t *testing.T) {
	db := setupGridTestDB(t)
	reg := NewGormIPRegistry(db)
	ctx := context.Background()

	seedPool(t, db, 10, "185.69.166.12/24", "185.69.166.13/24")
	seedPool(t, db, 11, "186.0.0.1/24")

	pool, err := reg.GetPool(ctx, 10)
	require.NoError(t, err)
	_, err = pool.Reserve(77, 2)
	require.NoError(t, err)
	require.NoError(t, reg.SavePool(ctx, 10, pool))

	freed, err := reg.ReleaseContract(ctx, 77)
	require.NoError(t, err)
	require.Len(t, freed, 2)
	assert.Equal(t, "185.69.166.12/24", freed[0].Address)
	assert.Zero(t, freed[0].ContractID)

	// idempotent
	freed, err = reg.ReleaseContract(ctx, 77)
	require.NoError(t, err)
	assert.Empty(t, freed)

	pool, err = reg.GetPool(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), pool.FreeCount())
}

func seedAccount(t *testing.T, db *gorm.DB, balance uint64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, db.Create(&models.AccountModel{ID: id, Balance: balance}).Error)
	return id
}

func TestGormWallet_Transfer(t *testing.T) {
	db := setupGridTestDB(t)
	wallet := NewGormWallet(db)
	ctx := context.Background()

	from := seedAccount(t, db, 1000)
	to := seedAccount(t, db, 50)

	require.NoError(t, wallet.Transfer(ctx, from, to, 300))

	fromBal, err := wallet.UsableBalance(ctx, from)
	require.NoError(t, err)
	assert.Equal(t, uint64(700), fromBal)

	toBal, err := wallet.UsableBalance(ctx, to)
	require.NoError(t, err)
	assert.Equal(t, uint64(350), toBal)
}

func TestGormWallet_TransferInsufficientFunds(t *testing.T) {
	db := setupGridTestDB(t)
	wallet := NewGormWallet(db)
	ctx := context.Background()

	from := seedAccount(t, db, 100)
	to := seedAccount(t, db, 0)

	err := wallet.Transfer(ctx, from, to, 101)
	require.Error(t, err)
	assert.Equal(t, shared.CodeInsufficientResources, shared.ErrorCode(err))

	// neither balance changed
	fromBal, _ := wallet.UsableBalance(ctx, from)
	toBal, _ := wallet.UsableBalance(ctx, to)
	assert.Equal(t, uint64(100), fromBal)
	assert.Zero(t, toBal)
}

func TestGormWallet_TransferCreatesDestination(t *testing.T) {
	db := setupGridTestDB(t)
	wallet := NewGormWallet(db)
	ctx := context.Background()

	from := seedAccount(t, db, 500)
	to := uuid.New()

	require.NoError(t, wallet.Transfer(ctx, from, to, 200))

	toBal, err := wallet.UsableBalance(ctx, to)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), toBal)
}

func TestGormWallet_Burn(t *testing.T) {
	db := setupGridTestDB(t)
	wallet := NewGormWallet(db)
	ctx := context.Background()

	account := seedAccount(t, db, 400)

	require.NoError(t, wallet.Burn(ctx, account, 150))
	bal, err := wallet.UsableBalance(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), bal)

	err = wallet.Burn(ctx, account, 1000)
	assert.Equal(t, shared.CodeInsufficientResources, shared.ErrorCode(err))
}

func TestGormWallet_UnknownAccountHasZeroBalance(t *testing.T) {
	db := setupGridTestDB(t)
	wallet := NewGormWallet(db)

	bal, err := wallet.UsableBalance(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, bal)
}
