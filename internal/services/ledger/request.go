package ledger

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fastprodman/botledger/internal/domain"
)

type (
	ID          = domain.ID
	Kind        = domain.Kind
	Transaction = domain.Transaction
	Filter      = domain.Filter
)

// Request is a client-submitted transaction before it is committed.
// Pointer fields distinguish "absent" from a zero value.
type Request struct {
	Kind          string  `json:"kind" validate:"required,oneof=deposit withdrawal"`
	Amount        *int64  `json:"amount" validate:"required"`
	User          string  `json:"user" validate:"required,max=64"`
	Bot           string  `json:"bot" validate:"required,max=64"`
	Reason        *string `json:"reason" validate:"required,max=512"`
	UserName      string  `json:"user_name,omitempty" validate:"max=100"`
	Discriminator string  `json:"discriminator,omitempty" validate:"max=16"`
}

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}

// validate checks every field independently and reports all failures.
func validate(v *validator.Validate, req Request) error {
	err := v.Struct(req)
	if err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &InvalidRequestError{Fields: []FieldError{{Field: "request", Rule: err.Error()}}}
		}

		out := &InvalidRequestError{Fields: make([]FieldError, 0, len(verrs))}
		for _, fe := range verrs {
			out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
		}

		return out
	}

	if *req.Amount <= 0 {
		return ErrInvalidAmount
	}

	return nil
}
