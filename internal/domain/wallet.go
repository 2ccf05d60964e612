package domain

import "time"

// TransactionKind distinguishes credits from debits.
type TransactionKind string

// List of transaction kinds
const (
	TransactionCredit TransactionKind = "credit"
	TransactionDebit  TransactionKind = "debit"
)

// Wallet holds a driver's balance.
type Wallet struct {
	DriverID string
	Balance  Money
	Version  int64
}

// Transaction is an immutable wallet movement.
type Transaction struct {
	ID             string
	DriverID       string
	Kind           TransactionKind
	Amount         Money
	OrderID        string
	AssignmentID   string
	Destination    string
	IdempotencyKey string
	BalanceAfter   Money
	CreatedAt      time.Time
}

// CreditKey is the idempotency key of the delivery credit for an assignment.
func CreditKey(assignmentID string) string {
	return "credit:" + assignmentID
}
