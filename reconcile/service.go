package reconcile

import (
	"context"
	"sync"

	"trading-terminal-go/market"
	"trading-terminal-go/metrics"
	"trading-terminal-go/portfolio"
)

// ViewSnapshot 某视图的一份一致对账结果。
// Err 透传该视图最近一次轮询的失败标记（非阻塞，行数据仍来自上一份好快照）。
type ViewSnapshot struct {
	View portfolio.ViewID
	Rows []Row
	Err  error
	Seq  uint64
}

// Service 事件驱动的对账服务：订单快照变化或价格表变化时
// 重算受影响的视图并向订阅者广播。两个数据源相互独立，
// 任何时刻都用双方各自的最新值组合（best-effort 一致性）。
type Service struct {
	table *market.Table
	store *portfolio.Store

	mu        sync.RWMutex
	subs      []chan ViewSnapshot
	latest    map[portfolio.ViewID]ViewSnapshot
	byToken   map[string]map[portfolio.ViewID]bool
	viewSeqs  map[portfolio.ViewID]uint64
	storeSeqs map[portfolio.ViewID]uint64
}

func NewService(table *market.Table, store *portfolio.Store) *Service {
	s := &Service{
		table:    table,
		store:    store,
		latest:    make(map[portfolio.ViewID]ViewSnapshot),
		byToken:   make(map[string]map[portfolio.ViewID]bool),
		viewSeqs:  make(map[portfolio.ViewID]uint64),
		storeSeqs: make(map[portfolio.ViewID]uint64),
	}
	store.SetOnChange(s.OnViewChange)
	return s
}

// Subscribe 返回接收视图快照的通道。发送非阻塞，
// 慢消费者可随时用 Latest 拉到最新状态。
func (s *Service) Subscribe() <-chan ViewSnapshot {
	ch := make(chan ViewSnapshot, 16)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// Latest 返回视图最近一次对账结果。
func (s *Service) Latest(view portfolio.ViewID) (ViewSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.latest[view]
	return snap, ok
}

// OnViewChange 订单快照变化入口（Store 回调）。
func (s *Service) OnViewChange(view portfolio.ViewID) {
	s.Reconcile(view)
}

// OnPriceUpdate 价格变化入口：只重算引用了这些 token 的视图。
func (s *Service) OnPriceUpdate(tokens []string) {
	affected := make(map[portfolio.ViewID]bool)
	s.mu.RLock()
	for _, tok := range tokens {
		for view := range s.byToken[tok] {
			affected[view] = true
		}
	}
	s.mu.RUnlock()
	for view := range affected {
		s.Reconcile(view)
	}
}

// Run 消费价格更新通道直到 ctx 结束。
func (s *Service) Run(ctx context.Context, updates <-chan []string) {
	for {
		select {
		case <-ctx.Done():
			return
		case tokens, ok := <-updates:
			if !ok {
				return
			}
			s.OnPriceUpdate(tokens)
		}
	}
}

// Reconcile 对单个视图执行一次对账并广播结果。
func (s *Service) Reconcile(view portfolio.ViewID) ViewSnapshot {
	orders := s.store.Snapshot(view)
	prices := s.table.Snapshot()
	rows := Rows(orders.Records, prices)

	s.mu.Lock()
	// 行在锁外计算：若期间已有更新的订单快照完成对账，丢弃这份旧结果
	if orders.Seq < s.storeSeqs[view] {
		snap := s.latest[view]
		s.mu.Unlock()
		return snap
	}
	s.storeSeqs[view] = orders.Seq

	metrics.ReconcileRuns.Inc()
	metrics.UpdateViewMetrics(string(view), len(rows), PendingCount(rows))

	s.viewSeqs[view]++
	snap := ViewSnapshot{View: view, Rows: rows, Err: orders.Err, Seq: s.viewSeqs[view]}
	s.latest[view] = snap
	s.indexTokensLocked(view, orders.Records)
	subs := s.subs
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
		}
	}
	return snap
}

// indexTokensLocked 重建 token → 视图倒排索引（用于价格更新过滤）。
func (s *Service) indexTokensLocked(view portfolio.ViewID, records []portfolio.OrderRecord) {
	for tok, views := range s.byToken {
		delete(views, view)
		if len(views) == 0 {
			delete(s.byToken, tok)
		}
	}
	for _, r := range records {
		if r.Token == "" {
			continue
		}
		views, ok := s.byToken[r.Token]
		if !ok {
			views = make(map[portfolio.ViewID]bool)
			s.byToken[r.Token] = views
		}
		views[view] = true
	}
}
