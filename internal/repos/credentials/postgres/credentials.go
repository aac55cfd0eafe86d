package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/botledger/internal/infra/pgutils"
	"github.com/fastprodman/botledger/internal/repos/credentials"
)

var _ credentials.Credentials = (*credentialsRepo)(nil)

type credentialsRepo struct{ db *sql.DB }

func New(db *sql.DB) *credentialsRepo {
	return &credentialsRepo{db: db}
}

func (r *credentialsRepo) Create(ctx context.Context, c credentials.Credential) error {
	err := pgutils.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if c.Role == credentials.RoleBot {
			_, err := tx.ExecContext(ctx, `
				UPDATE credentials
				SET revoked_at = $2
				WHERE kind = 'bot'
				  AND bot_id = $1
				  AND revoked_at IS NULL
			`, c.BotID, c.CreatedAt)
			if err != nil {
				return fmt.Errorf("revoke previous bot credentials: %w", err)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO credentials (id, kind, bot_id, owner, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, c.ID, string(c.Role), c.BotID, c.Owner, c.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert credential: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("create credential: %w", err)
	}

	return nil
}

func (r *credentialsRepo) Get(ctx context.Context, id string) (credentials.Credential, error) {
	var (
		c       credentials.Credential
		role    string
		revoked sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, kind, bot_id, owner, created_at, revoked_at
		FROM credentials
		WHERE id = $1
	`, id).Scan(&c.ID, &role, &c.BotID, &c.Owner, &c.CreatedAt, &revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return credentials.Credential{}, credentials.ErrNotFound
		}

		return credentials.Credential{}, fmt.Errorf("get credential: %w", err)
	}

	c.Role = credentials.Role(role)
	if revoked.Valid {
		at := revoked.Time
		c.RevokedAt = &at
	}

	return c, nil
}

func (r *credentialsRepo) Revoke(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE credentials
		SET revoked_at = COALESCE(revoked_at, $2)
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return credentials.ErrNotFound
	}

	return nil
}

func (r *credentialsRepo) CountActive(ctx context.Context, role credentials.Role) (int, error) {
	var n int

	err := r.db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM credentials
		WHERE kind = $1
		  AND revoked_at IS NULL
	`, string(role)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count credentials: %w", err)
	}

	return n, nil
}
