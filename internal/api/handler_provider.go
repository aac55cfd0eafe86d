package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/fastprodman/botledger/internal/services/auth"
	"github.com/fastprodman/botledger/internal/services/ledger"
)

const maxBodyBytes = 1 << 20

// Ledger is the part of the ledger service the transport needs.
type Ledger interface {
	Apply(ctx context.Context, req ledger.Request) (ledger.Transaction, error)
	Reverse(ctx context.Context, id ledger.ID) (ledger.Reversal, error)
	ReverseRange(ctx context.Context, botID string, uptoID ledger.ID) (ledger.RangeResult, error)
	Get(ctx context.Context, id ledger.ID) (ledger.Transaction, error)
	Query(ctx context.Context, f ledger.Filter) ([]ledger.Transaction, error)
	Balance(ctx context.Context, userID string) (int64, error)
}

type Authenticator interface {
	Validate(ctx context.Context, token string) (auth.Principal, error)
	IssueBot(ctx context.Context, botID, owner string) (string, error)
	IssueAdmin(ctx context.Context, owner string) (string, error)
}

// HandlerProvider wraps the ledger and auth services and exposes HTTP handlers.
type HandlerProvider struct {
	ledger   Ledger
	auth     Authenticator
	logger   *slog.Logger
	validate *validator.Validate
}

func NewHandler(l Ledger, a Authenticator, logger *slog.Logger) *HandlerProvider {
	if logger == nil {
		logger = slog.Default()
	}

	return &HandlerProvider{
		ledger:   l,
		auth:     a,
		logger:   logger,
		validate: ledger.NewValidator(),
	}
}

// --- Helpers ---

const (
	statusSuccess = "success"
	statusError   = "error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// errorBody is the shape of every failed response. Echoed request fields are
// present only when the body decoded far enough to know them.
type errorBody struct {
	Status string              `json:"status"`
	Error  string              `json:"error"`
	Type   string              `json:"type,omitempty"`
	Amount *int64              `json:"amount,omitempty"`
	User   string              `json:"user,omitempty"`
	Fields []ledger.FieldError `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Status: statusError, Error: msg})
}

// writeFailure maps err to a status code and writes it with the echo fields.
func (h *HandlerProvider) writeFailure(w http.ResponseWriter, r *http.Request, err error, echo errorBody) {
	status, msg := classify(err)

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	echo.Status = statusError
	echo.Error = msg

	var ire *ledger.InvalidRequestError
	if errors.As(err, &ire) {
		echo.Fields = ire.Fields
	}

	writeJSON(w, status, echo)
}

// decodeJSON reads exactly one JSON object with no unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		return bodyError(err)
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return &ledger.InvalidRequestError{Fields: []ledger.FieldError{{Field: "body", Rule: "single_object"}}}
	}

	return nil
}

func bodyError(err error) error {
	var (
		typeErr *json.UnmarshalTypeError
		maxErr  *http.MaxBytesError
		synErr  *json.SyntaxError
	)

	switch {
	case errors.Is(err, io.EOF):
		return &ledger.InvalidRequestError{Fields: []ledger.FieldError{{Field: "body", Rule: "required"}}}
	case errors.As(err, &typeErr):
		return &ledger.InvalidRequestError{Fields: []ledger.FieldError{{Field: typeErr.Field, Rule: "type"}}}
	case errors.As(err, &maxErr):
		return &ledger.InvalidRequestError{Fields: []ledger.FieldError{{Field: "body", Rule: fmt.Sprintf("max_bytes=%d", maxErr.Limit)}}}
	case errors.As(err, &synErr), errors.Is(err, io.ErrUnexpectedEOF):
		return &ledger.InvalidRequestError{Fields: []ledger.FieldError{{Field: "body", Rule: "json"}}}
	default:
		// json reports unknown fields only as text.
		return &ledger.InvalidRequestError{Fields: []ledger.FieldError{{Field: "body", Rule: err.Error()}}}
	}
}

// validateDTO runs struct validation and converts failures to the ledger's
// invalid request error.
func (h *HandlerProvider) validateDTO(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	out := &ledger.InvalidRequestError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, ledger.FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}

	return out
}
