// Package ledger commits deposits and withdrawals against per-user balances
// and reverses them. Every commit pairs one balance adjustment with one log
// entry inside a single storage transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fastprodman/botledger/internal/domain"
	"github.com/fastprodman/botledger/internal/idgen"
	"github.com/fastprodman/botledger/internal/notify"
)

// Service is the ledger engine. Construct it with New.
type Service struct {
	store    Store
	ids      idgen.Generator
	sink     notify.Sink
	now      func() time.Time
	logger   *slog.Logger
	validate *validator.Validate
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger used for commit and delivery logs.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New returns a Service over store. A nil sink discards notifications.
func New(store Store, ids idgen.Generator, sink notify.Sink, opts ...Option) *Service {
	s := &Service{
		store:    store,
		ids:      ids,
		sink:     sink,
		now:      time.Now,
		logger:   slog.Default(),
		validate: NewValidator(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.sink == nil {
		s.sink = notify.Discard
	}

	return s
}

// Apply validates req and commits it. A rejected request leaves no trace
// besides the consumed id.
func (s *Service) Apply(ctx context.Context, req Request) (Transaction, error) {
	err := validate(s.validate, req)
	if err != nil {
		return Transaction{}, err
	}

	kind := domain.Kind(req.Kind)
	amount := *req.Amount
	delta := kind.Delta(amount)

	rec := Transaction{
		ID:     s.ids.Next(),
		Kind:   kind,
		Amount: amount,
		UserID: req.User,
		BotID:  req.Bot,
		Reason: *req.Reason,
	}

	err = s.store.InTx(ctx, func(tx Tx) error {
		balance, err := tx.AdjustBalance(ctx, rec.UserID, delta)
		if err != nil {
			return fmt.Errorf("adjust balance: %w", err)
		}

		rec.ResultingBalance = balance
		rec.CreatedAt = s.now().UTC()

		// A duplicate id aborts the storage transaction, which undoes the
		// adjustment above.
		err = tx.Append(ctx, rec)
		if err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}

		if req.UserName != "" || req.Discriminator != "" {
			err = tx.SetProfile(ctx, rec.UserID, req.UserName, req.Discriminator)
			if err != nil {
				return fmt.Errorf("set profile: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateID) {
			s.logger.ErrorContext(ctx, "generated id collided with a stored transaction", "id", rec.ID)
		}

		return Transaction{}, storageErr("apply", err)
	}

	s.logger.InfoContext(ctx, "transaction committed",
		"id", rec.ID, "kind", rec.Kind, "amount", rec.Amount,
		"user", rec.UserID, "bot", rec.BotID, "balance", rec.ResultingBalance)

	s.emit(ctx, notify.NewEvent(notify.ActionCommitted, rec, rec.ResultingBalance, rec.CreatedAt))

	return rec, nil
}

// Reversal is a reverted transaction together with the user's balance after
// the reversal.
type Reversal struct {
	Transaction
	Balance    int64     `json:"balance"`
	ReversedAt time.Time `json:"reversed_at"`
}

// Reverse undoes a committed transaction and removes it from the log.
func (s *Service) Reverse(ctx context.Context, id ID) (Reversal, error) {
	var out Reversal

	err := s.store.InTx(ctx, func(tx Tx) error {
		out = Reversal{ReversedAt: s.now().UTC()}

		rec, err := tx.Delete(ctx, id, out.ReversedAt)
		if err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}

		balance, err := tx.AdjustBalance(ctx, rec.UserID, -rec.Delta())
		if err != nil {
			if errors.Is(err, ErrInsufficientFunds) {
				return ErrReversalWouldOverdraw
			}

			return fmt.Errorf("adjust balance: %w", err)
		}

		out.Transaction = rec
		out.Balance = balance

		return nil
	})
	if err != nil {
		return Reversal{}, storageErr(fmt.Sprintf("reverse %s", id), err)
	}

	s.logger.InfoContext(ctx, "transaction reversed",
		"id", out.ID, "kind", out.Kind, "amount", out.Amount,
		"user", out.UserID, "bot", out.BotID, "balance", out.Balance)

	s.emit(ctx, notify.NewEvent(notify.ActionReverted, out.Transaction, out.Balance, out.ReversedAt))

	return out, nil
}

// Get returns a live transaction by id.
func (s *Service) Get(ctx context.Context, id ID) (Transaction, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return Transaction{}, storageErr("get transaction", err)
	}

	return rec, nil
}

// Query lists live transactions matching f.
func (s *Service) Query(ctx context.Context, f Filter) ([]Transaction, error) {
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, &InvalidRequestError{Fields: []FieldError{{Field: "kind", Rule: "oneof"}}}
	}

	recs, err := s.store.Query(ctx, f)
	if err != nil {
		return nil, storageErr("query transactions", err)
	}

	return recs, nil
}

// Balance is 0 for users the ledger has never seen.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, &InvalidRequestError{Fields: []FieldError{{Field: "user", Rule: "required"}}}
	}

	b, err := s.store.Balance(ctx, userID)
	if err != nil {
		return 0, storageErr("get balance", err)
	}

	return b, nil
}

func (s *Service) emit(ctx context.Context, ev notify.Event) {
	err := s.sink.Notify(context.WithoutCancel(ctx), ev)
	if err != nil {
		s.logger.WarnContext(ctx, "notification not delivered",
			"event_id", ev.ID, "action", ev.Action, "transaction_id", ev.TransactionID, "error", err)
	}
}
