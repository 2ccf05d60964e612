package repository

import (
	"context"
	"fmt"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
)

// GetWallet - returns the wallet of a driver.
func (r *TxRepo) GetWallet(ctx context.Context, driverID string) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.tx.QueryRow(ctx,
		r.forUpdate(`SELECT driver_id, balance, currency, version FROM wallets WHERE driver_id = $1`), driverID,
	).Scan(&w.DriverID, &w.Balance.Amount, &w.Balance.Currency, &w.Version)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet %s: %w", driverID, err)
	}
	return &w, nil
}

// SaveWallet inserts or version-guarded updates a wallet.
func (r *TxRepo) SaveWallet(ctx context.Context, w *domain.Wallet) error {
	if w.Version == 0 {
		_, err := r.tx.Exec(ctx, `
            INSERT INTO wallets (driver_id, balance, currency, version) VALUES ($1, $2, $3, 1)
        `, w.DriverID, w.Balance.Amount, w.Balance.Currency)
		if err != nil {
			if IsDuplicate(err) {
				return fmt.Errorf("insert wallet %s: %w", w.DriverID, apperr.ErrConflict)
			}
			return fmt.Errorf("insert wallet %s: %w", w.DriverID, err)
		}
		w.Version = 1
		return nil
	}

	ct, err := r.tx.Exec(ctx, `
        UPDATE wallets SET balance = $3, version = version + 1
        WHERE driver_id = $1 AND version = $2
    `, w.DriverID, w.Version, w.Balance.Amount)
	if err != nil {
		return fmt.Errorf("update wallet %s: %w", w.DriverID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("update wallet %s: %w", w.DriverID, apperr.ErrConflict)
	}
	w.Version++
	return nil
}

const transactionColumns = `id, driver_id, kind, amount, currency, order_id, assignment_id, destination,
        idempotency_key, balance_after, created_at`

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := row.Scan(&t.ID, &t.DriverID, &t.Kind, &t.Amount.Amount, &t.Amount.Currency,
		&t.OrderID, &t.AssignmentID, &t.Destination, &t.IdempotencyKey, &t.BalanceAfter.Amount, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.BalanceAfter.Currency = t.Amount.Currency
	return &t, nil
}

// GetTransactionByKey - returns the transaction recorded under an idempotency key.
func (r *TxRepo) GetTransactionByKey(ctx context.Context, key string) (*domain.Transaction, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM wallet_transactions WHERE idempotency_key = $1`, key)
	t, err := scanTransaction(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction %q: %w", key, err)
	}
	return t, nil
}

// InsertTransaction appends an immutable wallet transaction.
func (r *TxRepo) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	_, err := r.tx.Exec(ctx, `
        INSERT INTO wallet_transactions (id, driver_id, kind, amount, currency, order_id, assignment_id,
                                         destination, idempotency_key, balance_after, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, t.ID, t.DriverID, string(t.Kind), t.Amount.Amount, t.Amount.Currency, t.OrderID, t.AssignmentID,
		t.Destination, t.IdempotencyKey, t.BalanceAfter.Amount, orNow(t.CreatedAt))
	if err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("insert transaction %q: %w", t.IdempotencyKey, apperr.ErrConflict)
		}
		return fmt.Errorf("insert transaction %q: %w", t.IdempotencyKey, err)
	}
	return nil
}

// ListTransactions returns a driver's transactions oldest first.
func (r *TxRepo) ListTransactions(ctx context.Context, driverID string) ([]domain.Transaction, error) {
	rows, err := r.tx.Query(ctx, `
        SELECT `+transactionColumns+` FROM wallet_transactions
        WHERE driver_id = $1
        ORDER BY created_at, id
    `, driverID)
	if err != nil {
		return nil, fmt.Errorf("list transactions %s: %w", driverID, err)
	}
	defer rows.Close()

	out := make([]domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
