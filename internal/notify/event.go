// Package notify delivers audit events for committed and reverted ledger
// entries. Delivery is best-effort and never feeds back into the ledger.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/botledger/internal/domain"
)

type Action string

const (
	ActionCommitted Action = "committed"
	ActionReverted  Action = "reverted"
)

type Event struct {
	ID               uuid.UUID   `json:"id"`
	Action           Action      `json:"action"`
	TransactionID    domain.ID   `json:"transaction_id"`
	Kind             domain.Kind `json:"kind"`
	Amount           int64       `json:"amount"`
	User             string      `json:"user"`
	Bot              string      `json:"bot"`
	Reason           string      `json:"reason"`
	ResultingBalance int64       `json:"resulting_balance"`
	OccurredAt       time.Time   `json:"occurred_at"`
}

// NewEvent describes t. For reversals balance is the user's balance after the
// reversal, not the one recorded on t.
func NewEvent(action Action, t domain.Transaction, balance int64, at time.Time) Event {
	return Event{
		ID:               uuid.New(),
		Action:           action,
		TransactionID:    t.ID,
		Kind:             t.Kind,
		Amount:           t.Amount,
		User:             t.UserID,
		Bot:              t.BotID,
		Reason:           t.Reason,
		ResultingBalance: balance,
		OccurredAt:       at,
	}
}

type Sink interface {
	Notify(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })
