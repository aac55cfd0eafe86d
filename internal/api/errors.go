package api

import (
	"errors"
	"net/http"

	"github.com/fastprodman/botledger/internal/services/auth"
	"github.com/fastprodman/botledger/internal/services/ledger"
)

type errorClass struct {
	target error
	status int
	msg    string
}

// Order matters: ErrReversalWouldOverdraw also matches ErrInsufficientFunds.
var errorClasses = []errorClass{
	{ledger.ErrInvalidRequest, http.StatusBadRequest, "invalid request"},
	{ledger.ErrInvalidAmount, http.StatusBadRequest, "amount must be positive"},
	{auth.ErrInvalidBotID, http.StatusBadRequest, "bot id is required"},
	{auth.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{auth.ErrForbidden, http.StatusForbidden, "forbidden"},
	{ledger.ErrNotFound, http.StatusNotFound, "transaction not found"},
	{ledger.ErrReversalWouldOverdraw, http.StatusConflict, "reversal would overdraw"},
	{ledger.ErrInsufficientFunds, http.StatusConflict, "insufficient funds"},
	{ledger.ErrBalanceOverflow, http.StatusConflict, "balance would overflow"},
	{ledger.ErrAlreadyReversed, http.StatusConflict, "transaction already reversed"},
	{ledger.ErrStorageUnavailable, http.StatusServiceUnavailable, "storage unavailable"},
}

func classify(err error) (int, string) {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			return c.status, c.msg
		}
	}

	return http.StatusInternalServerError, "internal error"
}
