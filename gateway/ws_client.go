package gateway

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trading-terminal-go/market"
	"trading-terminal-go/metrics"
)

// TickHandler 收到一批行情时回调。
type TickHandler func([]market.Tick)

// subscribeFrame 建连后发送的唯一一条控制消息。
type subscribeFrame struct {
	ClientID string   `json:"client_id"`
	Tokens   []string `json:"tokens"`
}

// TickStreamClient 行情流客户端：建连、订阅、读帧。
// 不做自动重连，重连策略由订阅生命周期的持有者决定。
type TickStreamClient struct {
	Dialer      *websocket.Dialer
	ReadTimeout time.Duration
}

func NewTickStreamClient() *TickStreamClient {
	return &TickStreamClient{
		Dialer:      websocket.DefaultDialer,
		ReadTimeout: 30 * time.Second,
	}
}

// StreamHandle 一条已建立的行情连接。
type StreamHandle struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool

	closeOnce sync.Once
	errCh     chan error
	done      chan struct{}
}

// Open 建连并发送 {client_id, tokens} 订阅帧，随后在后台读帧。
// 畸形帧丢弃并记日志；连接级错误写入 Errors 通道后读循环退出。
func (c *TickStreamClient) Open(url, clientID string, tokens []string, onTick TickHandler) (*StreamHandle, error) {
	if clientID == "" {
		return nil, fmt.Errorf("client id required")
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("no tokens to subscribe")
	}
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial tick stream: %w", err)
	}
	if err := conn.WriteJSON(subscribeFrame{ClientID: clientID, Tokens: tokens}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send subscribe: %w", err)
	}

	h := &StreamHandle{
		conn:  conn,
		errCh: make(chan error, 1),
		done:  make(chan struct{}),
	}
	go c.readLoop(h, onTick)
	return h, nil
}

func (c *TickStreamClient) readLoop(h *StreamHandle, onTick TickHandler) {
	defer close(h.done)
	for {
		if c.ReadTimeout > 0 {
			_ = h.conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
		}
		_, raw, err := h.conn.ReadMessage()
		if err != nil {
			h.reportError(err)
			return
		}
		ticks, err := ParseLivePrices(raw)
		if err != nil {
			// 畸形消息只丢弃，不终止连接
			metrics.TicksDropped.Inc()
			log.Printf("drop tick frame: %v", err)
			continue
		}
		if len(ticks) == 0 {
			continue
		}
		// 与 Close 共用一把锁：Close 返回后不会再进入 onTick
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return
		}
		if onTick != nil {
			onTick(ticks)
		}
		h.mu.Unlock()
	}
}

// Errors 连接级错误的旁路通道；连接断开时最多收到一条。
func (h *StreamHandle) Errors() <-chan error {
	return h.errCh
}

// Done 读循环退出后关闭。
func (h *StreamHandle) Done() <-chan struct{} {
	return h.done
}

// Close 幂等关闭；返回后不会再有 onTick 回调进入处理。
func (h *StreamHandle) Close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()
		_ = h.conn.Close()
	})
}

func (h *StreamHandle) reportError(err error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return
	}
	select {
	case h.errCh <- err:
	default:
	}
}
