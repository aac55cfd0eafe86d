package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fastprodman/botledger/internal/repos/transactions"
	"github.com/fastprodman/botledger/internal/repos/users"
)

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInsufficientFunds  = users.ErrInsufficientFunds
	ErrBalanceOverflow    = users.ErrBalanceOverflow
	ErrNotFound           = transactions.ErrNotFound
	ErrAlreadyReversed    = transactions.ErrAlreadyReversed
	ErrDuplicateID        = transactions.ErrDuplicateTransaction
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrReversalWouldOverdraw also matches ErrInsufficientFunds.
	ErrReversalWouldOverdraw = fmt.Errorf("reversal would overdraw: %w", users.ErrInsufficientFunds)
)

// InvalidRequestError lists every field that failed validation.
type InvalidRequestError struct {
	Fields []FieldError
}

type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func (e *InvalidRequestError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field+" ("+f.Rule+")")
	}

	return "invalid request: " + strings.Join(names, ", ")
}

func (e *InvalidRequestError) Unwrap() error { return ErrInvalidRequest }

// PartialReversalError reports the entry a range reversal stopped at.
type PartialReversalError struct {
	ID  ID
	Err error
}

func (e *PartialReversalError) Error() string {
	return fmt.Sprintf("range reversal stopped at %s: %v", e.ID, e.Err)
}

func (e *PartialReversalError) Unwrap() error { return e.Err }

// storageErr keeps domain errors intact and marks everything else as a
// storage fault.
func storageErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrBalanceOverflow),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyReversed),
		errors.Is(err, ErrDuplicateID),
		errors.Is(err, ErrStorageUnavailable):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
	}
}
