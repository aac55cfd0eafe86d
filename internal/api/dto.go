package api

import (
	"net/url"
	"strconv"
	"time"

	"github.com/fastprodman/botledger/internal/domain"
	"github.com/fastprodman/botledger/internal/services/ledger"
)

type filterRequest struct {
	User  string     `json:"user" validate:"max=64"`
	Bot   string     `json:"bot" validate:"max=64"`
	Kind  string     `json:"kind" validate:"omitempty,oneof=deposit withdrawal"`
	MinID domain.ID  `json:"min_id"`
	MaxID domain.ID  `json:"max_id"`
	Since *time.Time `json:"since"`
	Until *time.Time `json:"until"`
	Limit int        `json:"limit" validate:"min=0,max=1000"`
	Order string     `json:"order" validate:"omitempty,oneof=asc desc"`
}

func (f filterRequest) toFilter() ledger.Filter {
	out := ledger.Filter{
		UserID: f.User,
		BotID:  f.Bot,
		Kind:   domain.Kind(f.Kind),
		MinID:  f.MinID,
		MaxID:  f.MaxID,
		Limit:  f.Limit,
		Desc:   f.Order == "desc",
	}
	if f.Since != nil {
		out.Since = *f.Since
	}
	if f.Until != nil {
		out.Until = *f.Until
	}

	return out
}

// filterFromQuery parses GET /transactions parameters. Malformed values are
// collected rather than reported one at a time.
func filterFromQuery(q url.Values) (filterRequest, []ledger.FieldError) {
	var (
		f    filterRequest
		bad  []ledger.FieldError
		fail = func(field, rule string) { bad = append(bad, ledger.FieldError{Field: field, Rule: rule}) }
	)

	f.User = q.Get("user")
	f.Bot = q.Get("bot")
	f.Kind = q.Get("kind")
	f.Order = q.Get("order")

	for _, p := range []struct {
		name string
		dst  *domain.ID
	}{{"min_id", &f.MinID}, {"max_id", &f.MaxID}} {
		if v := q.Get(p.name); v != "" {
			if err := p.dst.UnmarshalText([]byte(v)); err != nil {
				fail(p.name, "uint")
			}
		}
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"since", &f.Since}, {"until", &f.Until}} {
		if v := q.Get(p.name); v != "" {
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				fail(p.name, "rfc3339")
				continue
			}
			*p.dst = &ts
		}
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fail("limit", "int")
		} else {
			f.Limit = n
		}
	}

	return f, bad
}

type bulkRevertRequest struct {
	Bot    string    `json:"bot" validate:"required,max=64"`
	UptoID domain.ID `json:"upto_id" validate:"required"`
}

type botTokenRequest struct {
	Bot   string `json:"bot" validate:"required,max=64"`
	Owner string `json:"owner" validate:"max=128"`
}

type adminTokenRequest struct {
	Owner string `json:"owner" validate:"max=128"`
}
