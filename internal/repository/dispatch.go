package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"service-dispatch/internal/ports/dispatchtx"
)

// DispatchRepo runs dispatch transactions against Postgres.
type DispatchRepo struct {
	db *pgxpool.Pool
}

// NewDispatchRepo creates a new DispatchRepo.
func NewDispatchRepo(db *pgxpool.Pool) *DispatchRepo {
	return &DispatchRepo{db: db}
}

var _ dispatchtx.Runner = (*DispatchRepo)(nil)

// Ping checks that the database answers.
func (r *DispatchRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// WithTx opens a transaction and executes fn within it. Rows read through the
// transaction are locked until commit.
func (r *DispatchRepo) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error {
	return r.run(ctx, pgx.TxOptions{}, true, fn)
}

// View executes fn inside a read-only repeatable-read transaction.
func (r *DispatchRepo) View(ctx context.Context, fn func(tx dispatchtx.Repository) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	return r.run(ctx, opts, false, fn)
}

func (r *DispatchRepo) run(ctx context.Context, opts pgx.TxOptions, lock bool, fn func(tx dispatchtx.Repository) error) (err error) {
	tx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	// rollback on panic
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&TxRepo{tx: tx, lock: lock}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// TxRepo implements dispatchtx.Repository on top of a pgx transaction.
type TxRepo struct {
	tx   pgx.Tx
	lock bool
}

var _ dispatchtx.Repository = (*TxRepo)(nil)

// forUpdate appends a row lock clause when the transaction writes.
func (r *TxRepo) forUpdate(q string) string {
	if r.lock {
		return q + " FOR UPDATE"
	}
	return q
}
