package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"trading-terminal-go/market"
)

var upgrader = websocket.Upgrader{}

// tickServer 收到订阅帧后按 frames 逐条推送，然后保持连接。
func tickServer(t *testing.T, frames []string, gotSub chan subscribeFrame) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var sub subscribeFrame
		if err := conn.ReadJSON(&sub); err != nil {
			t.Errorf("read subscribe: %v", err)
			return
		}
		if gotSub != nil {
			gotSub <- sub
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// 挂住直到客户端断开
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestOpenSendsSubscribeFrame(t *testing.T) {
	gotSub := make(chan subscribeFrame, 1)
	srv := tickServer(t, nil, gotSub)
	defer srv.Close()

	client := NewTickStreamClient()
	handle, err := client.Open(wsURL(srv), "user-42", []string{"26000", "26009"}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer handle.Close()

	select {
	case sub := <-gotSub:
		if sub.ClientID != "user-42" || len(sub.Tokens) != 2 {
			t.Fatalf("unexpected subscribe frame %+v", sub)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never received subscribe frame")
	}
}

func TestOpenDispatchesTicks(t *testing.T) {
	frames := []string{
		`{"live_prices":[{"token":"26000","ltp":100.5}]}`,
		`garbage`, // 畸形帧丢弃，连接不断
		`{"heartbeat":true}`,
		`{"live_prices":[{"token":"26000","ltp":101.5},{"token":"26009","ltp":200}]}`,
	}
	srv := tickServer(t, frames, nil)
	defer srv.Close()

	var mu sync.Mutex
	var got []market.Tick
	batches := make(chan int, 8)
	client := NewTickStreamClient()
	handle, err := client.Open(wsURL(srv), "user-42", []string{"26000", "26009"}, func(batch []market.Tick) {
		mu.Lock()
		got = append(got, batch...)
		mu.Unlock()
		batches <- len(batch)
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer handle.Close()

	total := 0
	deadline := time.After(2 * time.Second)
	for total < 3 {
		select {
		case n := <-batches:
			total += n
		case <-deadline:
			t.Fatalf("only %d ticks delivered", total)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0].Price != 100.5 || got[1].Price != 101.5 || got[2].Price != 200 {
		t.Fatalf("ticks out of order or corrupted: %+v", got)
	}
}

func TestOpenValidation(t *testing.T) {
	client := NewTickStreamClient()
	if _, err := client.Open("ws://unused", "", []string{"26000"}, nil); err == nil {
		t.Fatalf("expected error for empty client id")
	}
	if _, err := client.Open("ws://unused", "user", nil, nil); err == nil {
		t.Fatalf("expected error for empty token set")
	}
}

func TestCloseIdempotentAndStopsDispatch(t *testing.T) {
	// 服务端持续推帧，客户端 Close 后不得再有回调进入
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub subscribeFrame
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		for {
			if err := conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"live_prices":[{"token":"26000","ltp":1}]}`)); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}))
	defer srv.Close()

	first := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	closed := false
	client := NewTickStreamClient()
	handle, err := client.Open(wsURL(srv), "user", []string{"26000"}, func([]market.Tick) {
		once.Do(func() { close(first) })
		mu.Lock()
		if closed {
			mu.Unlock()
			panic("tick dispatched after Close returned")
		}
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatalf("no ticks before close")
	}

	handle.Close()
	mu.Lock()
	closed = true
	mu.Unlock()
	handle.Close() // 幂等

	select {
	case <-handle.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("read loop did not exit after close")
	}
}

func TestErrorsOnServerDisconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var sub subscribeFrame
		_ = conn.ReadJSON(&sub)
		conn.Close() // 立刻断开
	}))
	defer srv.Close()

	client := NewTickStreamClient()
	handle, err := client.Open(wsURL(srv), "user", []string{"26000"}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer handle.Close()

	select {
	case err := <-handle.Errors():
		if err == nil {
			t.Fatalf("expected non-nil connection error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected error after server disconnect")
	}
}
