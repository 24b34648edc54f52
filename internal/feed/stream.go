// Package feed owns the tick-stream Subscription lifecycle: connect,
// resubscribe on token-set change, and reconnect with backoff.
package feed

import (
	"context"
	"log"
	"sync"
	"time"

	"trading-terminal-go/gateway"
	"trading-terminal-go/market"
	"trading-terminal-go/metrics"
)

// Manager 管理一条行情订阅。
// token 集变化时整体替换（关旧开新），不依赖传输层的增量订阅协议。
// 连接断开按线性退避重连（attempt*base，封顶 max），每次重连全量重订阅。
type Manager struct {
	URL      string
	ClientID string

	client *gateway.TickStreamClient
	table  *market.Table

	backoffBase time.Duration
	backoffMax  time.Duration

	mu      sync.Mutex
	tokens  []string
	handle  *gateway.StreamHandle
	refresh chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	eventSink func(string, map[string]interface{})
}

// Config 订阅管理器配置。
type Config struct {
	URL         string
	ClientID    string
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func NewManager(cfg Config, table *market.Table) *Manager {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		URL:         cfg.URL,
		ClientID:    cfg.ClientID,
		client:      gateway.NewTickStreamClient(),
		table:       table,
		backoffBase: cfg.BackoffBase,
		backoffMax:  cfg.BackoffMax,
		refresh:     make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetEventSink 设置事件回调（记录连接状态）。
func (m *Manager) SetEventSink(fn func(string, map[string]interface{})) {
	m.eventSink = fn
}

// Start 启动订阅（后台 goroutine）。
func (m *Manager) Start(tokens []string) {
	m.mu.Lock()
	m.tokens = append([]string(nil), tokens...)
	m.mu.Unlock()
	m.wg.Add(1)
	go m.run()
}

// SetTokens 整体替换订阅的 token 集；连接会被关闭并以新集合重开。
func (m *Manager) SetTokens(tokens []string) {
	m.mu.Lock()
	m.tokens = append([]string(nil), tokens...)
	handle := m.handle
	m.mu.Unlock()
	if handle != nil {
		handle.Close()
	}
	select {
	case m.refresh <- struct{}{}:
	default:
	}
}

// Stop 关闭订阅并丢弃价格表（订阅拆除即价格记录生命周期结束）。
// 可重复调用；与进行中的建连竞争也安全。
func (m *Manager) Stop() {
	m.cancel()
	m.mu.Lock()
	handle := m.handle
	m.mu.Unlock()
	if handle != nil {
		handle.Close()
	}
	m.wg.Wait()
	m.table.Reset()
	metrics.StreamConnected.Set(0)
}

func (m *Manager) run() {
	defer m.wg.Done()
	attempt := 0
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		m.mu.Lock()
		tokens := append([]string(nil), m.tokens...)
		m.mu.Unlock()
		if len(tokens) == 0 {
			// 没有关注的 token 时等待集合更新
			select {
			case <-m.ctx.Done():
				return
			case <-m.refresh:
				continue
			}
		}

		handle, err := m.client.Open(m.URL, m.ClientID, tokens, m.onTick)
		if err != nil {
			attempt++
			metrics.StreamReconnects.Inc()
			backoff := m.backoff(attempt)
			log.Printf("tick stream dial failed (attempt %d): %v, retry in %s", attempt, err, backoff)
			m.emit("stream_dial_failed", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
			select {
			case <-m.ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}

		m.mu.Lock()
		m.handle = handle
		stopped := m.ctx.Err() != nil
		m.mu.Unlock()
		if stopped {
			// Stop 在建连途中到达：立即收尾，不再分发
			handle.Close()
			return
		}
		attempt = 0
		metrics.StreamConnected.Set(1)
		m.emit("stream_connected", map[string]interface{}{"tokens": len(tokens)})

		select {
		case <-m.ctx.Done():
			handle.Close()
			return
		case err := <-handle.Errors():
			handle.Close()
			metrics.StreamConnected.Set(0)
			metrics.StreamReconnects.Inc()
			m.emit("stream_disconnected", map[string]interface{}{"error": err.Error()})
			select {
			case <-m.ctx.Done():
				return
			case <-time.After(m.backoffBase):
			}
		case <-m.refresh:
			// token 集已变，旧连接已被 SetTokens 关闭
			handle.Close()
			metrics.StreamConnected.Set(0)
			m.emit("stream_resubscribe", map[string]interface{}{})
		}

		m.mu.Lock()
		m.handle = nil
		m.mu.Unlock()
	}
}

func (m *Manager) onTick(batch []market.Tick) {
	m.table.ApplyTicks(batch)
}

func (m *Manager) backoff(attempt int) time.Duration {
	d := time.Duration(attempt) * m.backoffBase
	if d > m.backoffMax {
		d = m.backoffMax
	}
	return d
}

func (m *Manager) emit(event string, fields map[string]interface{}) {
	if m.eventSink != nil {
		m.eventSink(event, fields)
	}
}
