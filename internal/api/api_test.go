package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastprodman/botledger/internal/domain"
	"github.com/fastprodman/botledger/internal/idgen"
	"github.com/fastprodman/botledger/internal/repos/credentials/memory"
	"github.com/fastprodman/botledger/internal/services/auth"
	"github.com/fastprodman/botledger/internal/services/ledger"
)

type fixture struct {
	srv     *httptest.Server
	admin   string
	bot     string
	authSvc *auth.Service
	ledger  *ledger.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	var n atomic.Uint64
	ids := idgen.GeneratorFunc(func() domain.ID { return domain.ID(n.Add(1)) })

	l := ledger.New(ledger.NewMemoryStore(), ids, nil, ledger.WithLogger(logger))

	a, err := auth.New(memory.New(), "0123456789abcdef0123456789abcdef", auth.WithLogger(logger))
	require.NoError(t, err)

	admin, err := a.IssueAdmin(context.Background(), "test")
	require.NoError(t, err)
	bot, err := a.IssueBot(context.Background(), "b1", "alice")
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(l, a, logger, RouterConfig{CORSOrigins: []string{"*"}}))
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, admin: admin, bot: bot, authSvc: a, ledger: l}
}

type response struct {
	Code int
	Body map[string]any
}

func (f *fixture) do(t *testing.T, method, path, token, body string) response {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, f.srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{Code: resp.StatusCode}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out.Body))

	return out
}

func fieldNames(t *testing.T, body map[string]any) []string {
	t.Helper()

	raw, ok := body["fields"].([]any)
	require.True(t, ok, "fields missing in %v", body)

	out := make([]string, 0, len(raw))
	for _, f := range raw {
		out = append(out, f.(map[string]any)["field"].(string))
	}

	return out
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res := f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "success", res.Body["status"])
}

func TestAuthentication(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{name: "missing_token", method: http.MethodPost, path: "/transactions", want: http.StatusUnauthorized},
		{name: "garbage_token", method: http.MethodGet, path: "/users/u1/balance", token: "nope", want: http.StatusUnauthorized},
		{name: "bot_cannot_list", method: http.MethodGet, path: "/transactions", token: f.bot, want: http.StatusForbidden},
		{name: "bot_cannot_reverse", method: http.MethodDelete, path: "/transactions/1", token: f.bot, want: http.StatusForbidden},
		{name: "bot_cannot_issue_tokens", method: http.MethodPost, path: "/tokens/admin", token: f.bot, want: http.StatusForbidden},
		{name: "bot_reads_balance", method: http.MethodGet, path: "/users/u1/balance", token: f.bot, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := f.do(t, tt.method, tt.path, tt.token, "")
			assert.Equal(t, tt.want, res.Code)
			if tt.want >= 400 {
				assert.Equal(t, "error", res.Body["status"])
			}
		})
	}
}

func TestApplyHandler(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/transactions", f.bot,
		`{"kind":"deposit","amount":200,"user":"u1","bot":"b1","reason":"daily"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, "success", res.Body["status"])

	txn := res.Body["transaction"].(map[string]any)
	assert.Equal(t, "1", txn["id"])
	assert.Equal(t, "deposit", txn["kind"])
	assert.EqualValues(t, 200, txn["resulting_balance"])

	tests := []struct {
		name       string
		token      string
		body       string
		want       int
		wantError  string
		wantFields []string
		wantEcho   bool
	}{
		{
			name:      "insufficient_funds_echoes_request",
			token:     f.bot,
			body:      `{"kind":"withdrawal","amount":500,"user":"u1","bot":"b1","reason":"x"}`,
			want:      http.StatusConflict,
			wantError: "insufficient funds",
			wantEcho:  true,
		},
		{
			name:       "missing_fields_all_reported",
			token:      f.bot,
			body:       `{"kind":"deposit"}`,
			want:       http.StatusBadRequest,
			wantError:  "invalid request",
			wantFields: []string{"amount", "user", "bot", "reason"},
		},
		{
			name:      "non_positive_amount",
			token:     f.bot,
			body:      `{"kind":"deposit","amount":0,"user":"u1","bot":"b1","reason":""}`,
			want:      http.StatusBadRequest,
			wantError: "amount must be positive",
		},
		{
			name:       "amount_wrong_type",
			token:      f.bot,
			body:       `{"kind":"deposit","amount":"ten","user":"u1","bot":"b1","reason":""}`,
			want:       http.StatusBadRequest,
			wantFields: []string{"amount"},
		},
		{
			name:  "unknown_field",
			token: f.bot,
			body:  `{"kind":"deposit","amount":1,"user":"u1","bot":"b1","reason":"","extra":1}`,
			want:  http.StatusBadRequest,
		},
		{
			name:  "two_objects",
			token: f.bot,
			body:  `{"kind":"deposit","amount":1,"user":"u1","bot":"b1","reason":""}{}`,
			want:  http.StatusBadRequest,
		},
		{
			name:      "bot_submitting_for_other_bot",
			token:     f.bot,
			body:      `{"kind":"deposit","amount":1,"user":"u1","bot":"b2","reason":""}`,
			want:      http.StatusForbidden,
			wantError: "forbidden",
		},
		{
			name:  "admin_may_submit_for_any_bot",
			token: f.admin,
			body:  `{"kind":"deposit","amount":1,"user":"u2","bot":"b2","reason":""}`,
			want:  http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.do(t, http.MethodPost, "/transactions", tt.token, tt.body)
			require.Equal(t, tt.want, res.Code, res.Body)

			if tt.want == http.StatusOK {
				return
			}

			assert.Equal(t, "error", res.Body["status"])
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, res.Body["error"])
			}
			if tt.wantFields != nil {
				assert.ElementsMatch(t, tt.wantFields, fieldNames(t, res.Body))
			}
			if tt.wantEcho {
				assert.Equal(t, "withdrawal", res.Body["type"])
				assert.EqualValues(t, 500, res.Body["amount"])
				assert.Equal(t, "u1", res.Body["user"])
			}
		})
	}

	bal := f.do(t, http.MethodGet, "/users/u1/balance", f.bot, "")
	require.Equal(t, http.StatusOK, bal.Code)
	assert.EqualValues(t, 200, bal.Body["balance"])
}

func (f *fixture) seed(t *testing.T, kind string, amount int64, user, bot string) domain.ID {
	t.Helper()

	reason := "seed"
	rec, err := f.ledger.Apply(t.Context(), ledger.Request{Kind: kind, Amount: &amount, User: user, Bot: bot, Reason: &reason})
	require.NoError(t, err)

	return rec.ID
}

func TestQueryHandlers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seed(t, "deposit", 10, "u1", "b1")
	f.seed(t, "deposit", 20, "u2", "b2")
	f.seed(t, "withdrawal", 5, "u1", "b1")

	list := f.do(t, http.MethodGet, "/transactions?bot=b1&order=desc", f.admin, "")
	require.Equal(t, http.StatusOK, list.Code, list.Body)
	assert.EqualValues(t, 2, list.Body["count"])
	first := list.Body["transactions"].([]any)[0].(map[string]any)
	assert.Equal(t, "3", first["id"])

	q := f.do(t, http.MethodPost, "/transactions/query", f.admin, `{"kind":"deposit","min_id":"2"}`)
	require.Equal(t, http.StatusOK, q.Code, q.Body)
	assert.EqualValues(t, 1, q.Body["count"])

	bad := f.do(t, http.MethodGet, "/transactions?min_id=x&since=yesterday&limit=many", f.admin, "")
	require.Equal(t, http.StatusBadRequest, bad.Code)
	assert.ElementsMatch(t, []string{"min_id", "since", "limit"}, fieldNames(t, bad.Body))

	over := f.do(t, http.MethodPost, "/transactions/query", f.admin, `{"limit":5000,"order":"sideways"}`)
	require.Equal(t, http.StatusBadRequest, over.Code)
	assert.ElementsMatch(t, []string{"limit", "order"}, fieldNames(t, over.Body))

	got := f.do(t, http.MethodGet, "/transactions/2", f.admin, "")
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, "u2", got.Body["transaction"].(map[string]any)["user"])

	missing := f.do(t, http.MethodGet, "/transactions/999", f.admin, "")
	assert.Equal(t, http.StatusNotFound, missing.Code)

	malformed := f.do(t, http.MethodGet, "/transactions/abc", f.admin, "")
	assert.Equal(t, http.StatusBadRequest, malformed.Code)
}

func TestReverseHandler(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seed(t, "deposit", 200, "u1", "b1")
	wd := f.seed(t, "withdrawal", 50, "u1", "b1")

	path := "/transactions/" + wd.String()

	res := f.do(t, http.MethodDelete, path, f.admin, "")
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.EqualValues(t, 200, res.Body["transaction"].(map[string]any)["balance"])

	again := f.do(t, http.MethodDelete, path, f.admin, "")
	assert.Equal(t, http.StatusConflict, again.Code)
	assert.Equal(t, "transaction already reversed", again.Body["error"])

	unknown := f.do(t, http.MethodDelete, "/transactions/4242", f.admin, "")
	assert.Equal(t, http.StatusNotFound, unknown.Code)
}

func TestReverseHandler_Overdraw(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dep := f.seed(t, "deposit", 100, "u1", "b1")
	f.seed(t, "withdrawal", 100, "u1", "b1")

	res := f.do(t, http.MethodDelete, "/transactions/"+dep.String(), f.admin, "")
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "reversal would overdraw", res.Body["error"])
}

func TestBulkRevertHandler(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.seed(t, "deposit", 100, "u1", "b1")
		upto := f.seed(t, "deposit", 50, "u1", "b1")

		res := f.do(t, http.MethodPost, "/transactions/bulk-revert", f.admin,
			`{"bot":"b1","upto_id":"`+upto.String()+`"}`)
		require.Equal(t, http.StatusOK, res.Code, res.Body)
		assert.Equal(t, "success", res.Body["status"])

		result := res.Body["result"].(map[string]any)
		assert.EqualValues(t, 2, result["reverted"])
		assert.Len(t, result["items"], 2)
	})

	t.Run("partial", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		dep := f.seed(t, "deposit", 100, "u1", "b1")
		f.seed(t, "withdrawal", 100, "u1", "b2")

		res := f.do(t, http.MethodPost, "/transactions/bulk-revert", f.admin,
			`{"bot":"b1","upto_id":`+dep.String()+`}`)
		require.Equal(t, http.StatusOK, res.Code, res.Body)
		assert.Equal(t, "error", res.Body["status"])
		assert.Equal(t, "reversal would overdraw", res.Body["error"])

		items := res.Body["result"].(map[string]any)["items"].([]any)
		require.Len(t, items, 1)
		assert.Equal(t, "failed", items[0].(map[string]any)["status"])
	})

	t.Run("none_found", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		res := f.do(t, http.MethodPost, "/transactions/bulk-revert", f.admin, `{"bot":"b1","upto_id":"10"}`)
		assert.Equal(t, http.StatusNotFound, res.Code)
	})

	t.Run("invalid_body", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		res := f.do(t, http.MethodPost, "/transactions/bulk-revert", f.admin, `{"bot":""}`)
		require.Equal(t, http.StatusBadRequest, res.Code)
		assert.ElementsMatch(t, []string{"bot", "upto_id"}, fieldNames(t, res.Body))
	})
}

func TestTokenHandlers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/tokens/bot", f.admin, `{"bot":"b1","owner":"alice"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, "b1", res.Body["bot_id"])
	fresh := res.Body["token"].(string)

	old := f.do(t, http.MethodGet, "/users/u1/balance", f.bot, "")
	assert.Equal(t, http.StatusUnauthorized, old.Code, "previous bot token revoked")

	ok := f.do(t, http.MethodGet, "/users/u1/balance", fresh, "")
	assert.Equal(t, http.StatusOK, ok.Code)

	missing := f.do(t, http.MethodPost, "/tokens/bot", f.admin, `{"owner":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, missing.Code)

	adm := f.do(t, http.MethodPost, "/tokens/admin", f.admin, "")
	require.Equal(t, http.StatusOK, adm.Code, adm.Body)
	newAdmin := adm.Body["token"].(string)

	list := f.do(t, http.MethodGet, "/transactions", newAdmin, "")
	assert.Equal(t, http.StatusOK, list.Code)
}

type downLedger struct{ Ledger }

func (downLedger) Balance(context.Context, string) (int64, error) {
	return 0, ledger.ErrStorageUnavailable
}

func (downLedger) Get(context.Context, ledger.ID) (ledger.Transaction, error) {
	return ledger.Transaction{}, assert.AnError
}

func TestStorageFailures(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	a, err := auth.New(memory.New(), "0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	admin, err := a.IssueAdmin(t.Context(), "t")
	require.NoError(t, err)

	h := NewRouter(downLedger{}, a, logger, RouterConfig{})

	for _, tc := range []struct {
		path string
		want int
		msg  string
	}{
		{path: "/users/u1/balance", want: http.StatusServiceUnavailable, msg: "storage unavailable"},
		{path: "/transactions/1", want: http.StatusInternalServerError, msg: "internal error"},
	} {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+admin)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, tc.want, rec.Code, tc.path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&body))
		assert.Equal(t, tc.msg, body["error"])
	}
}

func TestApplyHandler_BalanceOverflow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seed(t, "deposit", math.MaxInt64, "u1", "b1")

	res := f.do(t, http.MethodPost, "/transactions", f.bot,
		`{"kind":"deposit","amount":1,"user":"u1","bot":"b1","reason":""}`)
	require.Equal(t, http.StatusConflict, res.Code, res.Body)
	assert.Equal(t, "balance would overflow", res.Body["error"])
	assert.Equal(t, "deposit", res.Body["type"])
}

func TestIDsBeyondStorageRangeAreRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seed(t, "deposit", 100, "u1", "b1")

	const tooBig = "18446744073709551615"

	bulk := f.do(t, http.MethodPost, "/transactions/bulk-revert", f.admin, `{"bot":"b1","upto_id":"`+tooBig+`"}`)
	require.Equal(t, http.StatusBadRequest, bulk.Code, bulk.Body)
	assert.Equal(t, []string{"upto_id"}, fieldNames(t, bulk.Body))

	list := f.do(t, http.MethodGet, "/transactions?max_id="+tooBig, f.admin, "")
	require.Equal(t, http.StatusBadRequest, list.Code)
	assert.Equal(t, []string{"max_id"}, fieldNames(t, list.Body))

	del := f.do(t, http.MethodDelete, "/transactions/"+tooBig, f.admin, "")
	assert.Equal(t, http.StatusBadRequest, del.Code)

	bal := f.do(t, http.MethodGet, "/users/u1/balance", f.admin, "")
	assert.EqualValues(t, 100, bal.Body["balance"], "nothing was reverted")

	top := f.do(t, http.MethodPost, "/transactions/bulk-revert", f.admin, `{"bot":"b1","upto_id":"9223372036854775807"}`)
	require.Equal(t, http.StatusOK, top.Code, top.Body)
	assert.EqualValues(t, 1, top.Body["result"].(map[string]any)["reverted"])
}
