// Package wallet keeps driver balances and their immutable transaction log.
package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
	"service-dispatch/internal/events"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/ports/dispatchtx"
)

type counter interface {
	Inc()
}

// Service coordinates wallet business logic.
type Service struct {
	repo             dispatchtx.Runner
	pub              events.Publisher
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
	newID            func() string

	credits counter
	debits  counter
}

// NewService creates and configures a wallet Service. Counters may be nil.
func NewService(repo dispatchtx.Runner, pub events.Publisher, timeout time.Duration, logger logx.Logger, credits, debits counter) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if pub == nil {
		pub = events.NopPublisher()
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		repo:             repo,
		pub:              pub,
		operationTimeout: timeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
		newID:            uuid.NewString,
		credits:          credits,
		debits:           debits,
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// Credit is an in-transaction delivery credit.
type Credit struct {
	DriverID     string
	OrderID      string
	AssignmentID string
	Amount       domain.Money
}

// CreditResult is the outcome of CreditInTx.
type CreditResult struct {
	Transaction   *domain.Transaction
	WalletVersion int64
	// Created is false when the credit had already been recorded.
	Created bool
}

// Event builds the wallet.credited event for a created credit.
func (r CreditResult) Event() events.Event {
	t := r.Transaction
	return events.New(events.WalletCredited, t.DriverID, r.WalletVersion, t.CreatedAt, map[string]any{
		"transaction_id": t.ID,
		"assignment_id":  t.AssignmentID,
		"order_id":       t.OrderID,
		"amount":         t.Amount.Amount,
		"currency":       t.Amount.Currency,
		"balance_after":  t.BalanceAfter.Amount,
	}).For(t.DriverID, "")
}

// CreditInTx credits the driver's wallet unless a credit for the assignment
// already exists, in which case the first transaction is returned unchanged.
func CreditInTx(ctx context.Context, tx dispatchtx.Repository, c Credit, id string, now time.Time) (CreditResult, error) {
	if c.Amount.Amount < 0 {
		return CreditResult{}, fmt.Errorf("credit amount must not be negative: %w", apperr.ErrInvalid)
	}
	key := domain.CreditKey(c.AssignmentID)
	existing, err := tx.GetTransactionByKey(ctx, key)
	if err != nil {
		return CreditResult{}, err
	}
	if existing != nil {
		return CreditResult{Transaction: existing}, nil
	}

	w, err := loadWallet(ctx, tx, c.DriverID, c.Amount.Currency)
	if err != nil {
		return CreditResult{}, err
	}
	if w.Balance.Currency != c.Amount.Currency {
		return CreditResult{}, fmt.Errorf("currency %s does not match wallet %s: %w", c.Amount.Currency, w.Balance.Currency, apperr.ErrInvalid)
	}
	w.Balance.Amount += c.Amount.Amount
	if err := tx.SaveWallet(ctx, w); err != nil {
		return CreditResult{}, err
	}

	t := &domain.Transaction{
		ID:             id,
		DriverID:       c.DriverID,
		Kind:           domain.TransactionCredit,
		Amount:         c.Amount,
		OrderID:        c.OrderID,
		AssignmentID:   c.AssignmentID,
		IdempotencyKey: key,
		BalanceAfter:   w.Balance,
		CreatedAt:      now,
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return CreditResult{}, err
	}
	return CreditResult{Transaction: t, WalletVersion: w.Version, Created: true}, nil
}

func loadWallet(ctx context.Context, tx dispatchtx.Repository, driverID, currency string) (*domain.Wallet, error) {
	w, err := tx.GetWallet(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if w != nil {
		return w, nil
	}
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	return &domain.Wallet{DriverID: driverID, Balance: domain.Money{Currency: currency}}, nil
}

// CreditForDelivery credits the driver bound to an assignment. Calling it
// again for the same assignment is a no-op that returns the first transaction.
func (s *Service) CreditForDelivery(ctx context.Context, assignmentID string, amount domain.Money) (*domain.Transaction, error) {
	if amount.Currency == "" {
		amount.Currency = domain.DefaultCurrency
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var res CreditResult
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		a, err := tx.GetAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		if a == nil {
			return apperr.ErrNotFound
		}
		res, err = CreditInTx(ctx, tx, Credit{
			DriverID:     a.DriverID,
			OrderID:      a.OrderID,
			AssignmentID: a.ID,
			Amount:       amount,
		}, s.newID(), s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	if !res.Created {
		s.logger.Debug("credit already recorded",
			logx.String("assignment_id", assignmentID),
			logx.String("transaction_id", res.Transaction.ID),
		)
		return res.Transaction, nil
	}
	events.PublishCommitted(ctx, s.pub, res.Event())
	s.Observe(res.Transaction)
	return res.Transaction, nil
}

// Observe records metrics and the log line for a credit committed elsewhere.
func (s *Service) Observe(t *domain.Transaction) {
	if s.credits != nil {
		s.credits.Inc()
	}
	s.logger.Info("wallet credited",
		logx.String("event", "wallet_credited"),
		logx.String("driver_id", t.DriverID),
		logx.String("assignment_id", t.AssignmentID),
		logx.Int64("amount", t.Amount.Amount),
		logx.Int64("balance", t.BalanceAfter.Amount),
	)
}

// RequestWithdrawal debits a driver's wallet. Drivers may only withdraw from their own wallet.
func (s *Service) RequestWithdrawal(ctx context.Context, actor domain.Actor, driverID string, amount domain.Money, destination string) (*domain.Transaction, error) {
	if !actor.Is(domain.RoleDriver) || actor.ID != driverID {
		return nil, apperr.ErrUnauthorized
	}
	if amount.Amount <= 0 {
		return nil, fmt.Errorf("withdrawal amount must be positive: %w", apperr.ErrInvalid)
	}
	if strings.TrimSpace(destination) == "" {
		return nil, fmt.Errorf("destination is required: %w", apperr.ErrInvalid)
	}
	if amount.Currency == "" {
		amount.Currency = domain.DefaultCurrency
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		out     *domain.Transaction
		version int64
	)
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		w, err := loadWallet(ctx, tx, driverID, amount.Currency)
		if err != nil {
			return err
		}
		if w.Balance.Currency != amount.Currency {
			return fmt.Errorf("currency %s does not match wallet %s: %w", amount.Currency, w.Balance.Currency, apperr.ErrInvalid)
		}
		if amount.Amount > w.Balance.Amount {
			return apperr.ErrInsufficientBalance
		}
		w.Balance.Amount -= amount.Amount
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}
		version = w.Version

		id := s.newID()
		out = &domain.Transaction{
			ID:             id,
			DriverID:       driverID,
			Kind:           domain.TransactionDebit,
			Amount:         amount,
			Destination:    destination,
			IdempotencyKey: "debit:" + id,
			BalanceAfter:   w.Balance,
			CreatedAt:      s.now(),
		}
		return tx.InsertTransaction(ctx, out)
	})
	if err != nil {
		return nil, err
	}

	events.PublishCommitted(ctx, s.pub, events.New(events.WalletDebited, driverID, version, out.CreatedAt, map[string]any{
		"transaction_id": out.ID,
		"amount":         out.Amount.Amount,
		"currency":       out.Amount.Currency,
		"balance_after":  out.BalanceAfter.Amount,
	}).For(driverID, ""))
	if s.debits != nil {
		s.debits.Inc()
	}
	s.logger.Info("wallet debited",
		logx.String("event", "wallet_debited"),
		logx.String("driver_id", driverID),
		logx.Int64("amount", out.Amount.Amount),
		logx.Int64("balance", out.BalanceAfter.Amount),
	)
	return out, nil
}

// Balance returns the driver's wallet; a driver without transactions has a zero balance.
func (s *Service) Balance(ctx context.Context, actor domain.Actor, driverID string) (*domain.Wallet, error) {
	if !canRead(actor, driverID) {
		return nil, apperr.ErrUnauthorized
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out *domain.Wallet
	err := s.repo.View(ctx, func(tx dispatchtx.Repository) error {
		var err error
		out, err = loadWallet(ctx, tx, driverID, "")
		return err
	})
	return out, err
}

// Transactions returns the driver's wallet history oldest first.
func (s *Service) Transactions(ctx context.Context, actor domain.Actor, driverID string) ([]domain.Transaction, error) {
	if !canRead(actor, driverID) {
		return nil, apperr.ErrUnauthorized
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out []domain.Transaction
	err := s.repo.View(ctx, func(tx dispatchtx.Repository) error {
		var err error
		out, err = tx.ListTransactions(ctx, driverID)
		return err
	})
	return out, err
}

func canRead(actor domain.Actor, driverID string) bool {
	return actor.Is(domain.RoleAdmin) || (actor.Is(domain.RoleDriver) && actor.ID == driverID)
}
