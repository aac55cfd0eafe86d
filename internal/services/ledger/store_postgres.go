package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/fastprodman/botledger/internal/infra/pgutils"
	"github.com/fastprodman/botledger/internal/repos/transactions"
	pgtransactions "github.com/fastprodman/botledger/internal/repos/transactions/postgres"
	"github.com/fastprodman/botledger/internal/repos/users"
	pgusers "github.com/fastprodman/botledger/internal/repos/users/postgres"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore commits through a real database transaction. Row locks taken
// by the balance update serialize writers of the same user.
type PostgresStore struct {
	db    *sql.DB
	users users.Users
	txns  transactions.Transactions
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:    db,
		users: pgusers.New(db),
		txns:  pgtransactions.New(db),
	}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(Tx) error) error {
	return pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&pgTx{tx: tx, store: s})
	})
}

func (s *PostgresStore) Get(ctx context.Context, id ID) (Transaction, error) {
	return s.txns.Get(ctx, id)
}

func (s *PostgresStore) Query(ctx context.Context, f Filter) ([]Transaction, error) {
	return s.txns.Query(ctx, f)
}

func (s *PostgresStore) Balance(ctx context.Context, userID string) (int64, error) {
	return s.users.GetBalance(ctx, userID)
}

type pgTx struct {
	tx    *sql.Tx
	store *PostgresStore
}

func (t *pgTx) AdjustBalance(ctx context.Context, userID string, delta int64) (int64, error) {
	return t.store.users.AdjustBalance(ctx, t.tx, userID, delta)
}

func (t *pgTx) Append(ctx context.Context, rec Transaction) error {
	return t.store.txns.Insert(ctx, t.tx, rec)
}

func (t *pgTx) Delete(ctx context.Context, id ID, at time.Time) (Transaction, error) {
	return t.store.txns.Delete(ctx, t.tx, id, at)
}

func (t *pgTx) SetProfile(ctx context.Context, userID, name, discriminator string) error {
	return t.store.users.SetProfile(ctx, t.tx, userID, name, discriminator)
}
