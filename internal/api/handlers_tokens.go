package api

import (
	"net/http"
)

// IssueBotTokenHandler handles POST /tokens/bot.
func (h *HandlerProvider) IssueBotTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req botTokenRequest

	err := decodeJSON(w, r, &req)
	if err == nil {
		err = h.validateDTO(req)
	}
	if err != nil {
		h.writeFailure(w, r, err, errorBody{})
		return
	}

	token, err := h.auth.IssueBot(r.Context(), req.Bot, req.Owner)
	if err != nil {
		h.writeFailure(w, r, err, errorBody{})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": statusSuccess,
		"bot_id": req.Bot,
		"token":  token,
	})
}

// IssueAdminTokenHandler handles POST /tokens/admin. The body is optional.
func (h *HandlerProvider) IssueAdminTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req adminTokenRequest

	if r.ContentLength != 0 {
		err := decodeJSON(w, r, &req)
		if err == nil {
			err = h.validateDTO(req)
		}
		if err != nil {
			h.writeFailure(w, r, err, errorBody{})
			return
		}
	}

	if req.Owner == "" {
		if p, ok := principalFrom(r.Context()); ok {
			req.Owner = "issued-by:" + p.TokenID
		}
	}

	token, err := h.auth.IssueAdmin(r.Context(), req.Owner)
	if err != nil {
		h.writeFailure(w, r, err, errorBody{})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": statusSuccess,
		"token":  token,
	})
}
