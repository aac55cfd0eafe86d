package credentials

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("credential not found")

type Role string

const (
	RoleAdmin Role = "admin"
	RoleBot   Role = "bot"
)

// Credential is the server-side record of an issued token, keyed by its jti.
type Credential struct {
	ID        string
	Role      Role
	BotID     string
	Owner     string
	CreatedAt time.Time
	RevokedAt *time.Time
}

func (c Credential) Active() bool { return c.RevokedAt == nil }

type Credentials interface {
	// Create records c. For bot credentials every earlier active credential of
	// the same bot is revoked in the same step.
	Create(ctx context.Context, c Credential) error
	Get(ctx context.Context, id string) (Credential, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	CountActive(ctx context.Context, role Role) (int, error)
}
