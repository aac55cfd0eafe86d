package ledger

import (
	"context"
	"time"
)

// Store is the storage the ledger commits through. Everything done inside one
// InTx call is applied atomically: if fn returns an error nothing it did is
// observable afterwards.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
	Get(ctx context.Context, id ID) (Transaction, error)
	Query(ctx context.Context, f Filter) ([]Transaction, error)
	Balance(ctx context.Context, userID string) (int64, error)
}

// Tx is the write side of a Store, valid only inside InTx.
type Tx interface {
	// AdjustBalance applies delta unless the balance would go negative, in
	// which case it returns ErrInsufficientFunds and changes nothing.
	AdjustBalance(ctx context.Context, userID string, delta int64) (int64, error)
	Append(ctx context.Context, rec Transaction) error
	Delete(ctx context.Context, id ID, at time.Time) (Transaction, error)
	SetProfile(ctx context.Context, userID, name, discriminator string) error
}
