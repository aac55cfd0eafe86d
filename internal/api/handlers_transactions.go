package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fastprodman/botledger/internal/domain"
	"github.com/fastprodman/botledger/internal/services/ledger"
)

// ApplyHandler handles POST /transactions.
func (h *HandlerProvider) ApplyHandler(w http.ResponseWriter, r *http.Request) {
	var req ledger.Request

	err := decodeJSON(w, r, &req)
	if err != nil {
		h.writeFailure(w, r, err, echoOf(req))
		return
	}

	p, ok := principalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if req.Bot != "" {
		err = p.MaySubmitFor(req.Bot)
		if err != nil {
			h.writeFailure(w, r, err, echoOf(req))
			return
		}
	}

	rec, err := h.ledger.Apply(r.Context(), req)
	if err != nil {
		h.writeFailure(w, r, err, echoOf(req))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      statusSuccess,
		"transaction": rec,
	})
}

func echoOf(req ledger.Request) errorBody {
	return errorBody{Type: req.Kind, Amount: req.Amount, User: req.User}
}

// ListHandler handles GET /transactions.
func (h *HandlerProvider) ListHandler(w http.ResponseWriter, r *http.Request) {
	f, bad := filterFromQuery(r.URL.Query())
	if len(bad) > 0 {
		h.writeFailure(w, r, &ledger.InvalidRequestError{Fields: bad}, errorBody{})
		return
	}

	h.query(w, r, f)
}

// QueryHandler handles POST /transactions/query.
func (h *HandlerProvider) QueryHandler(w http.ResponseWriter, r *http.Request) {
	var f filterRequest

	err := decodeJSON(w, r, &f)
	if err != nil {
		h.writeFailure(w, r, err, errorBody{})
		return
	}

	h.query(w, r, f)
}

func (h *HandlerProvider) query(w http.ResponseWriter, r *http.Request, f filterRequest) {
	err := h.validateDTO(f)
	if err != nil {
		h.writeFailure(w, r, err, errorBody{})
		return
	}

	recs, err := h.ledger.Query(r.Context(), f.toFilter())
	if err != nil {
		h.writeFailure(w, r, err, errorBody{})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       statusSuccess,
		"count":        len(recs),
		"transactions": recs,
	})
}

// GetHandler handles GET /transactions/{id}.
func (h *HandlerProvider) GetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDFromPath(r)
	if err != nil {
		h.writeFailure(w, r, err, errorBody{})
		return
	}

	rec, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		h.writeFailure(w, r, err, errorBody{})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      statusSuccess,
		"transaction": rec,
	})
}

// ReverseHandler handles DELETE /transactions/{id}.
func (h *HandlerProvider) ReverseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDFromPath(r)
	if err != nil {
		h.writeFailure(w, r, err, errorBody{})
		return
	}

	rev, err := h.ledger.Reverse(r.Context(), id)
	if err != nil {
		h.writeFailure(w, r, err, errorBody{})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      statusSuccess,
		"transaction": rev,
	})
}

// BulkRevertHandler handles POST /transactions/bulk-revert. A range that
// stopped early is still a 200: the per-item list tells the caller which
// entries were reverted.
func (h *HandlerProvider) BulkRevertHandler(w http.ResponseWriter, r *http.Request) {
	var req bulkRevertRequest

	err := decodeJSON(w, r, &req)
	if err == nil {
		err = h.validateDTO(req)
	}
	if err != nil {
		h.writeFailure(w, r, err, errorBody{})
		return
	}

	res, err := h.ledger.ReverseRange(r.Context(), req.Bot, req.UptoID)
	if err != nil && !ledger.IsPartial(err) {
		h.writeFailure(w, r, err, errorBody{})
		return
	}

	body := map[string]any{
		"status": statusSuccess,
		"result": res,
	}
	if err != nil {
		_, msg := classify(err)
		body["status"] = statusError
		body["error"] = msg
	}

	writeJSON(w, http.StatusOK, body)
}

// BalanceHandler handles GET /users/{userId}/balance.
func (h *HandlerProvider) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	bal, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		h.writeFailure(w, r, err, errorBody{User: userID})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  statusSuccess,
		"user":    userID,
		"balance": bal,
	})
}

func parseIDFromPath(r *http.Request) (domain.ID, error) {
	var id domain.ID

	err := id.UnmarshalText([]byte(chi.URLParam(r, "id")))
	if err != nil || id == 0 {
		return 0, &ledger.InvalidRequestError{Fields: []ledger.FieldError{{Field: "id", Rule: "uint"}}}
	}

	return id, nil
}
