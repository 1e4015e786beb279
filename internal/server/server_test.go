package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"paper_trade/internal/execution"
	"paper_trade/internal/infra/storage"
	"paper_trade/internal/ledger"
	"paper_trade/internal/service"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRefresher struct {
	prices *service.PriceStore
	err    error
	calls  int
}

func (r *stubRefresher) RefreshOnce(ctx context.Context) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	return r.prices.RecordObservation("BTC/USD", decimal.NewFromInt(61000), time.Now().UTC())
}

func setupServer(t *testing.T) (*Server, *service.PriceStore, *stubRefresher) {
	st, err := storage.NewStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	prices, err := service.NewPriceStore(st)
	require.NoError(t, err)

	book := ledger.New(st)
	eng := execution.NewEngine(prices, book, st)
	refresher := &stubRefresher{prices: prices}

	return New(eng, book, prices, refresher), prices, refresher
}

func seedRate(t *testing.T, prices *service.PriceStore, symbol, rate string) {
	t.Helper()
	err := prices.RecordObservation(symbol, decimal.RequireFromString(rate), time.Now().UTC())
	require.NoError(t, err)
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv, _, _ := setupServer(t)
	w := doJSON(t, srv.Router(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateTrade(t *testing.T) {
	srv, prices, _ := setupServer(t)
	seedRate(t, prices, "BTC/USD", "60000.00000000")
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/api/trades",
		`{"user_id":"alice","pair":"BTC/USD","side":"BUY","amount":"0.1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var trade struct {
		ID       string `json:"id"`
		Side     string `json:"side"`
		Notional string `json:"notional"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trade))
	assert.NotEmpty(t, trade.ID)
	assert.Equal(t, "BUY", trade.Side)
	assert.Equal(t, "6000", trade.Notional)

	// Portfolio reflects the trade
	w = doJSON(t, router, http.MethodGet, "/api/portfolio/alice", "")
	require.Equal(t, http.StatusOK, w.Code)

	var view struct {
		CashBalance string `json:"cash_balance"`
		Positions   []struct {
			Symbol   string `json:"symbol"`
			Quantity string `json:"quantity"`
		} `json:"positions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "4000", view.CashBalance)
	require.Len(t, view.Positions, 1)
	assert.Equal(t, "BTC/USD", view.Positions[0].Symbol)
}

func TestCreateTradeErrors(t *testing.T) {
	srv, prices, _ := setupServer(t)
	seedRate(t, prices, "BTC/USD", "60000.00000000")
	router := srv.Router()

	cases := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"missing user", `{"pair":"BTC/USD","side":"BUY","amount":"1"}`, http.StatusBadRequest},
		{"bad side", `{"user_id":"a","pair":"BTC/USD","side":"HOLD","amount":"1"}`, http.StatusBadRequest},
		{"zero amount", `{"user_id":"a","pair":"BTC/USD","side":"BUY","amount":"0"}`, http.StatusBadRequest},
		{"unknown pair", `{"user_id":"a","pair":"DOGE/USD","side":"BUY","amount":"1"}`, http.StatusNotFound},
		{"insufficient balance", `{"user_id":"a","pair":"BTC/USD","side":"BUY","amount":"1"}`, http.StatusUnprocessableEntity},
		{"insufficient holdings", `{"user_id":"a","pair":"BTC/USD","side":"SELL","amount":"1"}`, http.StatusUnprocessableEntity},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/trades", c.body)
			assert.Equal(t, c.code, w.Code, w.Body.String())
		})
	}
}

func TestPriceHistory(t *testing.T) {
	srv, prices, _ := setupServer(t)
	router := srv.Router()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := prices.RecordObservation("BTC/USD",
			decimal.NewFromInt(int64(60000+i)), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	w := doJSON(t, router, http.MethodGet, "/api/price-history/BTC?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Symbol     string   `json:"symbol"`
		Timestamps []string `json:"timestamps"`
		Prices     []string `json:"prices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Timestamps, 2)
	require.Len(t, resp.Prices, 2)
	assert.Equal(t, "2025-03-01T12:00:00Z", resp.Timestamps[0])
	assert.Equal(t, "60000", resp.Prices[0])
	assert.Equal(t, "60001", resp.Prices[1])
}

func TestPriceHistoryUnknownSymbol(t *testing.T) {
	srv, _, _ := setupServer(t)
	w := doJSON(t, srv.Router(), http.MethodGet, "/api/price-history/DOGE", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPriceHistoryBadLimit(t *testing.T) {
	srv, prices, _ := setupServer(t)
	seedRate(t, prices, "BTC/USD", "60000")
	w := doJSON(t, srv.Router(), http.MethodGet, "/api/price-history/BTC?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdatePrices(t *testing.T) {
	srv, prices, refresher := setupServer(t)
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/api/update-prices", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, refresher.calls)

	rate, err := prices.CurrentRate("BTC/USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(61000)))
}

func TestUpdatePricesFailure(t *testing.T) {
	srv, _, refresher := setupServer(t)
	refresher.err = context.DeadlineExceeded

	w := doJSON(t, srv.Router(), http.MethodPost, "/api/update-prices", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestTradeHistoryEndpoint(t *testing.T) {
	srv, prices, _ := setupServer(t)
	seedRate(t, prices, "BTC/USD", "60000.00000000")
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/api/trades",
		`{"user_id":"bob","pair":"BTC/USD","side":"BUY","amount":"0.1"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/trades/bob", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Trades []struct {
			Symbol string `json:"symbol"`
		} `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Trades, 1)
	assert.Equal(t, "BTC/USD", resp.Trades[0].Symbol)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := setupServer(t)
	w := doJSON(t, srv.Router(), http.MethodGet, "/api/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "trades_executed")
}

func TestPriceStreamBroadcast(t *testing.T) {
	srv, prices, _ := setupServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/prices"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	seedRate(t, prices, "ETH/USD", "3000.00000000")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var obs struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	require.NoError(t, conn.ReadJSON(&obs))
	assert.Equal(t, "ETH/USD", obs.Symbol)
	assert.Equal(t, "3000", obs.Price)
}
