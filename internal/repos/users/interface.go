package users

import (
	"context"
	"database/sql"
	"errors"
)

var (
	// ErrInsufficientFunds is returned when a debit would take a balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrBalanceOverflow is returned when a credit would exceed the int64 range.
	ErrBalanceOverflow = errors.New("balance overflow")
)

// Users stores per-user running balances. Users are created lazily by the
// first credit; an unseen user has balance 0.
type Users interface {
	GetBalance(ctx context.Context, userID string) (int64, error)
	// AdjustBalance applies delta in a single guarded statement and returns the
	// new balance. A debit that would go negative leaves the row untouched.
	AdjustBalance(ctx context.Context, tx *sql.Tx, userID string, delta int64) (int64, error)
	SetProfile(ctx context.Context, tx *sql.Tx, userID, name, discriminator string) error
}
