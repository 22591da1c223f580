package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/gridmarket/backend/internal/domain/shared"
)

type txKey struct{}

// TxManager implements shared.UnitOfWork on a GORM handle. The transaction
// travels in the context, so every repository call made inside the function
// joins it; nested calls reuse savepoints.
type TxManager struct {
	db *gorm.DB
}

// NewTxManager creates a transaction manager over the given database handle.
func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// Atomically runs fn inside a transaction, rolling back on error.
func (m *TxManager) Atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	return dbFrom(ctx, m.db).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// dbFrom returns the transaction carried in ctx, or the fallback handle.
func dbFrom(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback
}

var _ shared.UnitOfWork = (*TxManager)(nil)
