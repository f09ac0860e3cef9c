package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/intelliod/ems/internal/observability/tracing"
)

type txContextKey struct{}

// TxManager runs units of work inside a gorm transaction carried by the context.
type TxManager struct {
	db *gorm.DB
}

// NewTxManager creates a transaction manager over db
func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTransaction begins a transaction, or joins the one already on ctx.
func (m *TxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if fn == nil {
		return errors.New("repository: transaction function is required")
	}
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	ctx, span := tracing.Start(ctx, "db.transaction")
	defer func() { tracing.End(span, err) }()

	tx := m.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("repository: begin tx: %w", tx.Error)
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil && !errors.Is(rbErr, gorm.ErrInvalidTransaction) {
			return errors.Join(err, fmt.Errorf("repository: rollback: %w", rbErr))
		}
		committed = true
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("repository: commit: %w", err)
	}
	committed = true
	return nil
}

func txFromContext(ctx context.Context) (*gorm.DB, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txContextKey{}).(*gorm.DB)
	return tx, ok
}

// conn returns the transaction on ctx, or db bound to ctx.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return db.WithContext(ctx)
}
