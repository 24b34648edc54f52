package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"trading-terminal-go/portfolio"
)

func newTestClient(srv *httptest.Server) *PortfolioRESTClient {
	return &PortfolioRESTClient{
		BaseURL:    srv.URL,
		UserID:     "user-42",
		HTTPClient: srv.Client(),
	}
}

func TestActiveOrders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/portfolios/get/active/orders" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("user_id"); got != "user-42" {
			t.Errorf("missing user_id query, got %q", got)
		}
		w.Write([]byte(`{"status":200,"msg":"ok","data":[
			{"key":"k1","token":"26000","stockName":"NIFTY","orderType":"Buy","qty":50,"atp":100.5,"sl":95,"tg":120},
			{"key":"k2","token":"26009","stockName":"BANKNIFTY","orderType":"Sell","qty":25,"atp":null}
		]}`))
	}))
	defer srv.Close()

	records, err := newTestClient(srv).ActiveOrders(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	r := records[0]
	if r.Key != "k1" || r.Token != "26000" || r.Side != portfolio.SideBuy || r.Qty != 50 {
		t.Fatalf("unexpected record %+v", r)
	}
	if r.EntryPrice == nil || *r.EntryPrice != 100.5 {
		t.Fatalf("entry price not decoded: %+v", r.EntryPrice)
	}
	if r.StopLoss == nil || *r.StopLoss != 95 || r.Target == nil || *r.Target != 120 {
		t.Fatalf("sl/tg not decoded: %+v", r)
	}
	if records[1].Side != portfolio.SideSell {
		t.Fatalf("sell side not parsed: %+v", records[1])
	}
	if records[1].EntryPrice != nil {
		t.Fatalf("null atp must map to nil pointer")
	}
}

func TestEnvelopeStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":500,"msg":"internal failure","data":null}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv).PendingOrders(context.Background()); err == nil {
		t.Fatalf("envelope status != 200 must be an error")
	}
}

func TestHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv).ClosedOrders(context.Background()); err == nil {
		t.Fatalf("http 502 must be an error")
	}
}

func TestRejectedOrdersNullableFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":200,"msg":"","data":[
			{"key":"r1","token":"26000","stockName":"NIFTY","orderType":null,"qty":10,"rejected_time":null,"reason":"margin"},
			{"key":"r2","token":"26009","stockName":"BANKNIFTY","orderType":"Sell","qty":5,"rejected_time":"2026-08-27T09:15:30Z"}
		]}`))
	}))
	defer srv.Close()

	records, err := newTestClient(srv).RejectedOrders(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records[0].Side != "" || records[0].RejectedTime != nil {
		t.Fatalf("nullable fields must stay empty: %+v", records[0])
	}
	if records[0].RejectReason != "margin" {
		t.Fatalf("reason not decoded: %+v", records[0])
	}
	if records[1].Side != portfolio.SideSell || records[1].RejectedTime == nil {
		t.Fatalf("populated fields lost: %+v", records[1])
	}
}

func TestOpenOptionTradesBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/option/trade/open/user-42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.RawQuery != "" {
			t.Errorf("option endpoint takes user in the path, got query %q", r.URL.RawQuery)
		}
		w.Write([]byte(`[
			{"option_symbol":"NIFTY26AUG24500CE","token":"35003","quantity":75,"entry_ltp":120.5,"trade_entry_time":"2026-08-27T09:20:00Z"}
		]`))
	}))
	defer srv.Close()

	records, err := newTestClient(srv).OpenOptionTrades(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.OptionSymbol != "NIFTY26AUG24500CE" || r.Token != "35003" || r.Qty != 75 {
		t.Fatalf("unexpected record %+v", r)
	}
	if r.Side != portfolio.SideBuy {
		t.Fatalf("option trades default to buy side")
	}
	if r.EntryPrice == nil || *r.EntryPrice != 120.5 || r.EntryTime == nil {
		t.Fatalf("entry fields not decoded: %+v", r)
	}
}

func TestClosedOptionTrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/option/trade/closed/user-42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"closed_trades":[
			{"order_id":"o1","option_symbol":"BANKNIFTY26AUG49500CE","quantity":30,"entry_price":120.5,"exit_price":140.25,"entry_time":"2026-08-27T09:20:00Z","exit_time":"2026-08-27T11:05:00Z","pnl":592.5},
			{"order_id":"o2","option_symbol":"BANKNIFTY26AUG49000PE","quantity":30,"entry_price":80,"exit_price":null,"pnl":null}
		]}`))
	}))
	defer srv.Close()

	records, err := newTestClient(srv).ClosedOptionTrades(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	r := records[0]
	if r.Key != "o1" || r.OptionSymbol != "BANKNIFTY26AUG49500CE" || r.Qty != 30 {
		t.Fatalf("unexpected record %+v", r)
	}
	if r.EntryPrice == nil || *r.EntryPrice != 120.5 || r.ExitPrice == nil || *r.ExitPrice != 140.25 {
		t.Fatalf("prices not decoded: %+v", r)
	}
	if r.EntryTime == nil || r.ExitTime == nil {
		t.Fatalf("times not decoded: %+v", r)
	}
	if r.ClosedPnl == nil || *r.ClosedPnl != 592.5 {
		t.Fatalf("pnl not decoded: %+v", r.ClosedPnl)
	}
	if records[1].ClosedPnl == nil || *records[1].ClosedPnl != 0 {
		t.Fatalf("null pnl must map to 0, got %+v", records[1].ClosedPnl)
	}
	if records[1].ExitPrice != nil {
		t.Fatalf("null exit price must stay nil")
	}
}

func TestClosedOptionTradesMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`)) // 缺包装字段
	}))
	defer srv.Close()

	if _, err := newTestClient(srv).ClosedOptionTrades(context.Background()); err == nil {
		t.Fatalf("shape mismatch must surface as a decode error")
	}
}

func TestKeyFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":200,"msg":"","data":[
			{"token":"26000","stockName":"NIFTY","orderType":"Buy","qty":1},
			{"token":"26009","stockName":"BANKNIFTY","orderType":"Buy","qty":1}
		]}`))
	}))
	defer srv.Close()

	records, err := newTestClient(srv).ActiveOrders(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records[0].Key != "1" || records[1].Key != "2" {
		t.Fatalf("missing keys must fall back to 1-based index: %q %q", records[0].Key, records[1].Key)
	}
}

func TestFetchForDispatch(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/option/trade/open/user-42":
			w.Write([]byte(`[]`))
		case "/option/trade/closed/user-42":
			w.Write([]byte(`{"closed_trades":[]}`))
		default:
			w.Write([]byte(`{"status":200,"msg":"","data":[]}`))
		}
	}))
	defer srv.Close()

	client := newTestClient(srv)
	for _, v := range portfolio.Views() {
		if _, err := client.FetchFor(v)(context.Background()); err != nil {
			t.Fatalf("view %s: %v", v, err)
		}
	}
	want := []string{
		"/portfolios/get/active/orders",
		"/portfolios/get/pending/orders",
		"/portfolios/get/close/orders",
		"/portfolios/get/rejected/orders",
		"/option/trade/open/user-42",
		"/option/trade/closed/user-42",
	}
	if len(paths) != len(want) {
		t.Fatalf("expected %d calls, got %v", len(want), paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("call %d hit %s, want %s", i, paths[i], want[i])
		}
	}
}
