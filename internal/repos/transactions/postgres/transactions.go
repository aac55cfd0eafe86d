package transactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fastprodman/botledger/internal/domain"
	"github.com/fastprodman/botledger/internal/repos/transactions"
)

var _ transactions.Transactions = (*transactionsRepo)(nil)

const columns = `id, kind, amount, user_id, bot_id, reason, created_at, resulting_balance`

type transactionsRepo struct{ db *sql.DB }

func New(db *sql.DB) *transactionsRepo {
	return &transactionsRepo{db: db}
}

func (r *transactionsRepo) Insert(ctx context.Context, tx *sql.Tx, rec domain.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (`+columns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, int64(rec.ID), string(rec.Kind), rec.Amount, rec.UserID, rec.BotID, rec.Reason, rec.CreatedAt, rec.ResultingBalance)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return transactions.ErrDuplicateTransaction
			}
		}

		return fmt.Errorf("insert transaction: %w", err)
	}

	return nil
}

func (r *transactionsRepo) Get(ctx context.Context, id domain.ID) (domain.Transaction, error) {
	if id > domain.MaxID {
		return domain.Transaction{}, transactions.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+columns+`
		FROM transactions
		WHERE id = $1
	`, int64(id))

	rec, err := scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transaction{}, transactions.ErrNotFound
		}

		return domain.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}

	return rec, nil
}

func (r *transactionsRepo) Query(ctx context.Context, f domain.Filter) ([]domain.Transaction, error) {
	q, args := buildQuery(f)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Transaction, 0)
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, rec)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return out, nil
}

// Delete removes the entry and records a tombstone in the same transaction.
// Of two concurrent deletes of one id, the loser blocks on the row lock and
// then observes the winner's tombstone.
func (r *transactionsRepo) Delete(ctx context.Context, tx *sql.Tx, id domain.ID, at time.Time) (domain.Transaction, error) {
	if id > domain.MaxID {
		return domain.Transaction{}, transactions.ErrNotFound
	}

	row := tx.QueryRowContext(ctx, `
		DELETE FROM transactions
		WHERE id = $1
		RETURNING `+columns, int64(id))

	rec, err := scan(row)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return domain.Transaction{}, fmt.Errorf("delete transaction: %w", err)
		}

		var reversed bool
		err = tx.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM reversals WHERE transaction_id = $1)
		`, int64(id)).Scan(&reversed)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("check tombstone: %w", err)
		}

		if reversed {
			return domain.Transaction{}, transactions.ErrAlreadyReversed
		}

		return domain.Transaction{}, transactions.ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reversals (transaction_id, user_id, bot_id, kind, amount, resulting_balance, reversed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, int64(rec.ID), rec.UserID, rec.BotID, string(rec.Kind), rec.Amount, rec.ResultingBalance, at)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("insert tombstone: %w", err)
	}

	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (domain.Transaction, error) {
	var (
		rec  domain.Transaction
		id   int64
		kind string
	)

	err := s.Scan(&id, &kind, &rec.Amount, &rec.UserID, &rec.BotID, &rec.Reason, &rec.CreatedAt, &rec.ResultingBalance)
	if err != nil {
		return domain.Transaction{}, err
	}

	rec.ID = domain.ID(id)
	rec.Kind = domain.Kind(kind)
	rec.CreatedAt = rec.CreatedAt.UTC()

	return rec, nil
}

func buildQuery(f domain.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.BotID != "" {
		add("bot_id = $%d", f.BotID)
	}
	if f.Kind != "" {
		add("kind = $%d", string(f.Kind))
	}
	// Ids past MaxID cannot be stored: a larger MinID matches nothing and a
	// larger MaxID matches everything.
	if f.MinID > domain.MaxID {
		conds = append(conds, "FALSE")
	} else if f.MinID != 0 {
		add("id >= $%d", int64(f.MinID))
	}
	if f.MaxID != 0 {
		add("id <= $%d", int64(min(f.MaxID, domain.MaxID)))
	}
	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		add("created_at <= $%d", f.Until)
	}

	var b strings.Builder
	b.WriteString("SELECT " + columns + " FROM transactions")
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	if f.Desc {
		b.WriteString(" ORDER BY id DESC")
	} else {
		b.WriteString(" ORDER BY id ASC")
	}

	args = append(args, f.EffectiveLimit())
	fmt.Fprintf(&b, " LIMIT $%d", len(args))

	return b.String(), args
}
