package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fastprodman/botledger/internal/repos/users"
)

func (r *usersRepo) AdjustBalance(ctx context.Context, tx *sql.Tx, userID string, delta int64) (int64, error) {
	if delta >= 0 {
		return r.credit(ctx, tx, userID, delta)
	}

	return r.debit(ctx, tx, userID, delta)
}

func (r *usersRepo) credit(ctx context.Context, tx *sql.Tx, userID string, delta int64) (int64, error) {
	var balance int64

	err := tx.QueryRowContext(ctx, `
		INSERT INTO users (id, balance)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET balance = users.balance + EXCLUDED.balance,
		    updated_at = now()
		RETURNING balance
	`, userID, delta).Scan(&balance)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "22003" { // numeric_value_out_of_range
			return 0, users.ErrBalanceOverflow
		}

		return 0, fmt.Errorf("increase balance: %w", err)
	}

	return balance, nil
}

// debit relies on the row lock taken by UPDATE: a concurrent debit of the same
// user waits and then re-evaluates the guard against the committed balance.
func (r *usersRepo) debit(ctx context.Context, tx *sql.Tx, userID string, delta int64) (int64, error) {
	var balance int64

	err := tx.QueryRowContext(ctx, `
		UPDATE users
		SET balance = balance + $2,
		    updated_at = now()
		WHERE id = $1
		  AND balance + $2 >= 0
		RETURNING balance
	`, userID, delta).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, users.ErrInsufficientFunds
		}

		return 0, fmt.Errorf("decrease balance: %w", err)
	}

	return balance, nil
}
