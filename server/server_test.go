package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/DachengChen/shelfcare/agent"
	"github.com/DachengChen/shelfcare/db"
	"github.com/DachengChen/shelfcare/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDashboard struct {
	products []db.Product
	orders   []db.Order
	expiry   []db.ExpiryBatch
	err      error
}

func (f fakeDashboard) ListInventory(context.Context) ([]db.Product, error) { return f.products, f.err }
func (f fakeDashboard) ListOrders(context.Context) ([]db.Order, error)      { return f.orders, f.err }
func (f fakeDashboard) ListExpiry(context.Context) ([]db.ExpiryBatch, error) {
	return f.expiry, f.err
}

type fakeRunner struct{}

func (fakeRunner) Run(_ context.Context, conv *agent.Conversation, input string) *agent.Result {
	out := "You asked: " + input
	conv.Append("user", input)
	conv.Append("assistant", out)
	return &agent.Result{RunID: "run-1", Output: out, State: agent.StateDone}
}

func strPtr(s string) *string { return &s }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newTestServer(dash Dashboard) http.Handler {
	return New(Deps{
		Dashboard: dash,
		Chat:      session.NewManager(session.NewMemoryStore(0), fakeRunner{}),
	}, zerolog.Nop()).Handler()
}

func TestInventoryFromDatabase(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	mock.ExpectQuery("FROM products").WillReturnRows(
		sqlmock.NewRows([]string{"id", "product_name", "supplier", "category", "stock_count", "cost", "description"}).
			AddRow(int64(1), "Paracetamol", "MediSupply", "Medicine", int64(250), 2.5, "Pain relief"),
	)

	h := newTestServer(db.New(sqlDB, zerolog.Nop()))
	rec := do(t, h, http.MethodGet, "/inventory", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `[{"id":1,"product_name":"Paracetamol","supplier":"MediSupply","category":"Medicine","stock_count":250,"cost":2.5,"description":"Pain relief"}]`, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListings(t *testing.T) {
	dash := fakeDashboard{
		orders: []db.Order{{OrderID: 87, ProductID: 1, OrderDate: strPtr("2026-03-01"), Quantity: 500, ProductName: strPtr("Paracetamol")}},
		expiry: []db.ExpiryBatch{{BatchID: 5, ProductID: 1, ProductName: strPtr("Paracetamol"), ExpiryDate: "2026-04-30", Quantity: 60}},
	}
	h := newTestServer(dash)

	rec := do(t, h, http.MethodGet, "/orders", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"order_id":87,"product_id":1,"order_date":"2026-03-01","quantity":500,"date_expected":null,"product_name":"Paracetamol"}]`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/expiry", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"batch_id":5,"product_id":1,"product_name":"Paracetamol","expiry_date":"2026-04-30","quantity":60}]`, rec.Body.String())
}

func TestListingErrors(t *testing.T) {
	h := newTestServer(fakeDashboard{err: errors.New("connection refused")})
	for path, msg := range map[string]string{
		"/inventory": "Failed to fetch inventory data",
		"/orders":    "Failed to fetch orders data",
		"/expiry":    "Failed to fetch expiry data",
	} {
		rec := do(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.JSONEq(t, `{"error":"`+msg+`"}`, rec.Body.String(), path)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h := newTestServer(fakeDashboard{})

	rec := do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Resource not found"}`, rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/inventory", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"error":"Method not allowed"}`, rec.Body.String())
}

func TestCORS(t *testing.T) {
	h := newTestServer(fakeDashboard{})

	rec := do(t, h, http.MethodGet, "/inventory", "")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestChatKeepsSession(t *testing.T) {
	h := newTestServer(fakeDashboard{})

	rec := do(t, h, http.MethodPost, "/chat", `{"message":"What stock is running low?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"output":"You asked: What stock is running low?"`)
	assert.Contains(t, rec.Body.String(), `"run_id":"run-1"`)
	assert.NotContains(t, rec.Body.String(), "error")

	rec = do(t, h, http.MethodPost, "/chat", `{"session_id":"abc-1","message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"session_id":"abc-1","run_id":"run-1","output":"You asked: hello"}`, rec.Body.String())
}

func TestChatBadRequests(t *testing.T) {
	h := newTestServer(fakeDashboard{})

	rec := do(t, h, http.MethodPost, "/chat", `{"message":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid JSON body"}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/chat", `{"session_id":"../../etc","message":"hi there"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid session id"}`, rec.Body.String())
}

type erroringChat struct{ res *agent.Result }

func (e erroringChat) Chat(context.Context, string, string) (string, *agent.Result, error) {
	return "s1", e.res, errors.New("redis: connection refused")
}

func TestChatStoreFailures(t *testing.T) {
	h := New(Deps{Dashboard: fakeDashboard{}, Chat: erroringChat{}}, zerolog.Nop()).Handler()
	rec := do(t, h, http.MethodPost, "/chat", `{"message":"hello"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to load session"}`, rec.Body.String())

	// An answer that could not be saved is still returned.
	h = New(Deps{Dashboard: fakeDashboard{}, Chat: erroringChat{res: &agent.Result{Output: "done"}}}, zerolog.Nop()).Handler()
	rec = do(t, h, http.MethodPost, "/chat", `{"message":"hello"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"session_id":"s1","output":"done"}`, rec.Body.String())
}

func TestChatReportsAgentErrors(t *testing.T) {
	res := &agent.Result{Output: agent.MsgFailed, Error: true, ErrorType: agent.TypeExecution}
	h := New(Deps{Dashboard: fakeDashboard{}, Chat: stubChat{res: res}}, zerolog.Nop()).Handler()

	rec := do(t, h, http.MethodPost, "/chat", `{"message":"hello"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":true`)
	assert.Contains(t, rec.Body.String(), `"error_type":"`+agent.TypeExecution+`"`)
}

type stubChat struct{ res *agent.Result }

func (s stubChat) Chat(context.Context, string, string) (string, *agent.Result, error) {
	return "s1", s.res, nil
}

func TestHealth(t *testing.T) {
	h := newTestServer(fakeDashboard{})
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	h = New(Deps{Dashboard: fakeDashboard{}, Ping: func(context.Context) error { return errors.New("down") }}, zerolog.Nop()).Handler()
	rec = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(fakeDashboard{})
	do(t, h, http.MethodGet, "/health", "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shelfcare_http_requests_total")
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s := New(Deps{Dashboard: fakeDashboard{}}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
