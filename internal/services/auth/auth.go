// Package auth issues and validates the bearer tokens bots and admins use.
// Tokens are signed JWTs whose jti must also be an active server-side
// credential, so a token can be revoked before it is ever presented.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fastprodman/botledger/internal/repos/credentials"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrWeakKey      = errors.New("signing key must be at least 32 bytes")
	ErrInvalidBotID = errors.New("bot id is required")
)

const (
	minKeyLen    = 32
	adminSubject = "admin"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	TokenID string
	Role    credentials.Role
	BotID   string
}

func (p Principal) IsAdmin() bool { return p.Role == credentials.RoleAdmin }

// MaySubmitFor reports whether p may submit transactions attributed to botID.
func (p Principal) MaySubmitFor(botID string) error {
	if p.IsAdmin() || (p.Role == credentials.RoleBot && p.BotID == botID) {
		return nil
	}

	return fmt.Errorf("%w: token of bot %q cannot act for bot %q", ErrForbidden, p.BotID, botID)
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	creds  credentials.Credentials
	key    []byte
	now    func() time.Time
	logger *slog.Logger
	parser *jwt.Parser
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(creds credentials.Credentials, signingKey string, opts ...Option) (*Service, error) {
	if len(signingKey) < minKeyLen {
		return nil, ErrWeakKey
	}

	s := &Service{
		creds:  creds,
		key:    []byte(signingKey),
		now:    time.Now,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	return s, nil
}

// Validate checks the signature and that the token's credential is still
// active. Every failure is ErrUnauthorized.
func (s *Service) Validate(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}

	var c claims
	_, err := s.parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	cred, err := s.creds.Get(ctx, c.ID)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return Principal{}, fmt.Errorf("%w: unknown credential", ErrUnauthorized)
		}

		return Principal{}, fmt.Errorf("load credential: %w", err)
	}

	if !cred.Active() {
		return Principal{}, fmt.Errorf("%w: credential revoked", ErrUnauthorized)
	}

	if string(cred.Role) != c.Role || (cred.Role == credentials.RoleBot && cred.BotID != c.Subject) {
		return Principal{}, fmt.Errorf("%w: claims do not match credential", ErrUnauthorized)
	}

	return Principal{TokenID: cred.ID, Role: cred.Role, BotID: cred.BotID}, nil
}

// IssueBot mints a token for botID and revokes the bot's earlier tokens.
func (s *Service) IssueBot(ctx context.Context, botID, owner string) (string, error) {
	if botID == "" {
		return "", ErrInvalidBotID
	}

	token, err := s.issue(ctx, credentials.Credential{Role: credentials.RoleBot, BotID: botID, Owner: owner})
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "bot token issued", "bot", botID, "owner", owner)

	return token, nil
}

func (s *Service) IssueAdmin(ctx context.Context, owner string) (string, error) {
	token, err := s.issue(ctx, credentials.Credential{Role: credentials.RoleAdmin, Owner: owner})
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "admin token issued", "owner", owner)

	return token, nil
}

// EnsureAdmin issues a first admin token when no active admin credential
// exists. created is false and token empty when one already does.
func (s *Service) EnsureAdmin(ctx context.Context) (token string, created bool, err error) {
	n, err := s.creds.CountActive(ctx, credentials.RoleAdmin)
	if err != nil {
		return "", false, fmt.Errorf("count admin credentials: %w", err)
	}

	if n > 0 {
		return "", false, nil
	}

	token, err = s.IssueAdmin(ctx, "bootstrap")
	if err != nil {
		return "", false, err
	}

	return token, true, nil
}

func (s *Service) issue(ctx context.Context, cred credentials.Credential) (string, error) {
	now := s.now().UTC().Truncate(time.Second)

	cred.ID = uuid.NewString()
	cred.CreatedAt = now

	subject := cred.BotID
	if cred.Role == credentials.RoleAdmin {
		subject = adminSubject
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(cred.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       cred.ID,
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	err = s.creds.Create(ctx, cred)
	if err != nil {
		return "", fmt.Errorf("store credential: %w", err)
	}

	return token, nil
}
