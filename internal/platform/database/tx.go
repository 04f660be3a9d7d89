package database

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type txKey struct{}

type txState struct {
	tx    *gorm.DB
	hooks []func(context.Context)
}

// TxManager runs units of work inside a single gorm transaction. Repositories pick the
// transaction up from the context through Conn, so a service can compose several
// repository calls into one atomic write.
type TxManager struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewTxManager(db *gorm.DB, logger *slog.Logger) *TxManager {
	return &TxManager{db: db, logger: logger}
}

// WithinTx executes fn in a transaction. Nested calls join the outer transaction.
// Hooks registered with AfterCommit run once the outermost transaction commits.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	state := &txState{}
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state.tx = tx
		return fn(context.WithValue(ctx, txKey{}, state))
	})
	if err != nil {
		return err
	}

	// hooks must not see the finished transaction
	hookCtx := context.WithoutCancel(ctx)
	for _, hook := range state.hooks {
		m.runHook(hookCtx, hook)
	}
	return nil
}

func (m *TxManager) runHook(ctx context.Context, hook func(context.Context)) {
	defer func() {
		if r := recover(); r != nil && m.logger != nil {
			m.logger.Error("after-commit hook panicked", "panic", r)
		}
	}()
	hook(ctx)
}

// Conn returns the transaction bound to ctx, or db when none is open.
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if state, ok := ctx.Value(txKey{}).(*txState); ok && state.tx != nil {
		return state.tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// AfterCommit defers hook until the surrounding transaction commits. Without an open
// transaction the hook runs immediately. Hooks are dropped on rollback.
func AfterCommit(ctx context.Context, hook func(context.Context)) {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		state.hooks = append(state.hooks, hook)
		return
	}
	hook(ctx)
}

// InTx reports whether ctx carries an open transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*txState)
	return ok
}

// IsUniqueViolation detects duplicate key errors from postgres and sqlite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
