package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

// ID identifies a committed transaction. Values are minted by the ledger and
// grow with time, so "id <= X" selects everything committed up to X.
type ID uint64

// MaxID is the largest id storage can hold (a signed 64-bit column).
const MaxID ID = math.MaxInt64

func (id ID) String() string { return strconv.FormatUint(uint64(id), 10) }

// MarshalJSON encodes the id as a decimal string; 64-bit values do not fit a
// JavaScript number.
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.String() + `"`), nil
}

// UnmarshalJSON accepts both "123" and 123. Invalid values are reported as
// *json.UnmarshalTypeError so decoders can name the offending field.
func (id *ID) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		if err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		raw = []byte(s)
	}

	err := id.UnmarshalText(raw)
	if err != nil {
		return &json.UnmarshalTypeError{Value: "id " + string(b), Type: reflect.TypeFor[ID]()}
	}

	return nil
}

func (id *ID) UnmarshalText(b []byte) error {
	v, err := strconv.ParseUint(string(b), 10, 63)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", string(b), err)
	}

	*id = ID(v)

	return nil
}

type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
)

func (k Kind) Valid() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// Delta is the signed balance change of a transaction of this kind.
func (k Kind) Delta(amount int64) int64 {
	if k == KindWithdrawal {
		return -amount
	}

	return amount
}

// Transaction is an immutable ledger entry. ResultingBalance is the user's
// balance immediately after the entry was committed.
type Transaction struct {
	ID               ID        `json:"id"`
	Kind             Kind      `json:"kind"`
	Amount           int64     `json:"amount"`
	UserID           string    `json:"user"`
	BotID            string    `json:"bot"`
	Reason           string    `json:"reason"`
	CreatedAt        time.Time `json:"created_at"`
	ResultingBalance int64     `json:"resulting_balance"`
}

// Delta is the signed effect the transaction had on the user's balance.
func (t Transaction) Delta() int64 { return t.Kind.Delta(t.Amount) }

// Filter selects transactions from the log. Zero values mean "any".
type Filter struct {
	UserID string
	BotID  string
	Kind   Kind
	MinID  ID
	MaxID  ID
	Since  time.Time
	Until  time.Time
	Limit  int
	Desc   bool
}

const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 1000
)

// EffectiveLimit clamps Limit to (0, MaxQueryLimit].
func (f Filter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultQueryLimit
	case f.Limit > MaxQueryLimit:
		return MaxQueryLimit
	default:
		return f.Limit
	}
}

// Match reports whether t passes the filter. Limit and order are not considered.
func (f Filter) Match(t Transaction) bool {
	if f.UserID != "" && t.UserID != f.UserID {
		return false
	}
	if f.BotID != "" && t.BotID != f.BotID {
		return false
	}
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	if f.MinID != 0 && t.ID < f.MinID {
		return false
	}
	if f.MaxID != 0 && t.ID > f.MaxID {
		return false
	}
	if !f.Since.IsZero() && t.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && t.CreatedAt.After(f.Until) {
		return false
	}

	return true
}
