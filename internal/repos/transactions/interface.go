package transactions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fastprodman/botledger/internal/domain"
)

var (
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrNotFound             = errors.New("transaction not found")
	ErrAlreadyReversed      = errors.New("transaction already reversed")
)

// Transactions is the append-only log of committed entries. Delete removes an
// entry for a reversal and leaves a tombstone so repeated reversals can be told
// apart from unknown ids.
type Transactions interface {
	Insert(ctx context.Context, tx *sql.Tx, rec domain.Transaction) error
	Get(ctx context.Context, id domain.ID) (domain.Transaction, error)
	Query(ctx context.Context, f domain.Filter) ([]domain.Transaction, error)
	Delete(ctx context.Context, tx *sql.Tx, id domain.ID, at time.Time) (domain.Transaction, error)
}
