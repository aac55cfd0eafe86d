package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/fastprodman/botledger/internal/domain"
)

type ItemStatus string

const (
	StatusReverted ItemStatus = "reverted"
	StatusFailed   ItemStatus = "failed"
	StatusSkipped  ItemStatus = "skipped"
)

type RangeItem struct {
	ID      ID         `json:"id"`
	Status  ItemStatus `json:"status"`
	Balance *int64     `json:"balance,omitempty"`
	Error   string     `json:"error,omitempty"`
}

type RangeResult struct {
	BotID    string      `json:"bot"`
	UptoID   ID          `json:"upto_id"`
	Items    []RangeItem `json:"items"`
	Reverted int         `json:"reverted"`
	Failed   int         `json:"failed"`
	Skipped  int         `json:"skipped"`
}

// ReverseRange reverses every transaction of botID with id <= uptoID, newest
// first, each in its own storage transaction. It stops at the first failure:
// the failing entry is reported as failed and the older ones as skipped, and
// the returned error is a *PartialReversalError. An empty match set is
// ErrNotFound.
func (s *Service) ReverseRange(ctx context.Context, botID string, uptoID ID) (RangeResult, error) {
	var fields []FieldError
	if botID == "" {
		fields = append(fields, FieldError{Field: "bot", Rule: "required"})
	}
	if uptoID == 0 {
		fields = append(fields, FieldError{Field: "upto_id", Rule: "required"})
	}
	if len(fields) > 0 {
		return RangeResult{}, &InvalidRequestError{Fields: fields}
	}

	ids, err := s.rangeIDs(ctx, botID, uptoID)
	if err != nil {
		return RangeResult{}, err
	}
	if len(ids) == 0 {
		return RangeResult{}, fmt.Errorf("no transactions for bot %q up to %s: %w", botID, uptoID, ErrNotFound)
	}

	res := RangeResult{BotID: botID, UptoID: uptoID, Items: make([]RangeItem, 0, len(ids))}

	var stop *PartialReversalError
	for _, id := range ids {
		if stop != nil {
			res.Items = append(res.Items, RangeItem{ID: id, Status: StatusSkipped})
			res.Skipped++
			continue
		}

		rev, err := s.Reverse(ctx, id)
		if err != nil {
			stop = &PartialReversalError{ID: id, Err: err}
			res.Items = append(res.Items, RangeItem{ID: id, Status: StatusFailed, Error: err.Error()})
			res.Failed++
			continue
		}

		balance := rev.Balance
		res.Items = append(res.Items, RangeItem{ID: id, Status: StatusReverted, Balance: &balance})
		res.Reverted++
	}

	s.logger.InfoContext(ctx, "range reversal finished",
		"bot", botID, "upto_id", uptoID,
		"reverted", res.Reverted, "failed", res.Failed, "skipped", res.Skipped)

	if stop != nil {
		return res, stop
	}

	return res, nil
}

// rangeIDs collects matching ids newest first, paging through the log.
func (s *Service) rangeIDs(ctx context.Context, botID string, uptoID ID) ([]ID, error) {
	var ids []ID

	cursor := uptoID
	for {
		page, err := s.store.Query(ctx, domain.Filter{
			BotID: botID,
			MaxID: cursor,
			Desc:  true,
			Limit: domain.MaxQueryLimit,
		})
		if err != nil {
			return nil, storageErr("list range", err)
		}

		for _, rec := range page {
			ids = append(ids, rec.ID)
		}

		if len(page) < domain.MaxQueryLimit {
			return ids, nil
		}

		last := page[len(page)-1].ID
		if last <= 1 {
			return ids, nil
		}
		cursor = last - 1
	}
}

// IsPartial reports whether err came from a range reversal that stopped early.
func IsPartial(err error) bool {
	var pe *PartialReversalError
	return errors.As(err, &pe)
}
