package users

import (
	"context"
	"database/sql"
	"fmt"
)

// SetProfile stores display metadata. Unknown users are ignored.
func (r *usersRepo) SetProfile(ctx context.Context, tx *sql.Tx, userID, name, discriminator string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET name = $2,
		    discriminator = $3,
		    updated_at = now()
		WHERE id = $1
	`, userID, name, discriminator)
	if err != nil {
		return fmt.Errorf("set profile: %w", err)
	}

	return nil
}
