package portfolio

import (
	"context"
	"sync"
	"time"

	"trading-terminal-go/metrics"
)

// FetchFunc 拉取一个视图的订单记录。失败返回 error，由 Store 保留旧快照。
type FetchFunc func(ctx context.Context) ([]OrderRecord, error)

// CancelFunc 停止某个视图的后续轮询。不会中断进行中的请求，
// 但保证其迟到的结果被丢弃。
type CancelFunc func()

// EventSink 结构化事件出口（接日志）。
type EventSink func(string, map[string]interface{})

// Scheduler 为每个视图跑一个独立的定时轮询任务。
// 周期互不相关；单个视图拉取超时或失败不影响其它视图。
// 定时器触发时若上一次拉取仍在途不取消，两个结果按完成顺序落入 Store。
type Scheduler struct {
	store *Store
	sink  EventSink

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(store *Store, sink EventSink) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:  store,
		sink:   sink,
		ctx:    ctx,
		cancel: cancel,
	}
}

type task struct {
	mu        sync.Mutex
	cancelled bool
}

// discardable 标记取消；返回此前是否已取消。
func (t *task) discard() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
}

func (t *task) alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.cancelled
}

// Schedule 启动视图轮询：立即拉取一次，此后按 interval 触发。
func (s *Scheduler) Schedule(view ViewID, interval time.Duration, fetch FetchFunc) CancelFunc {
	if interval <= 0 {
		interval = time.Second
	}
	t := &task{}
	stop := make(chan struct{})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.spawnFetch(view, t, fetch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				// 在途请求不阻塞下一次触发
				s.spawnFetch(view, t, fetch)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.discard()
			close(stop)
		})
	}
}

func (s *Scheduler) spawnFetch(view ViewID, t *task, fetch FetchFunc) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runFetch(view, t, fetch)
	}()
}

// runFetch 执行一次拉取并交付结果。
// 交付与取消用同一把锁判定，取消后到达的结果一律丢弃。
func (s *Scheduler) runFetch(view ViewID, t *task, fetch FetchFunc) {
	start := time.Now()
	records, err := fetch(s.ctx)
	elapsed := time.Since(start)
	metrics.RecordPoll(string(view), elapsed.Seconds(), err)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return
	}
	s.store.ApplyResult(view, records, err)
	if s.sink != nil {
		fields := map[string]interface{}{
			"view":       string(view),
			"records":    len(records),
			"elapsed_ms": elapsed.Milliseconds(),
		}
		if err != nil {
			fields["error"] = err.Error()
		}
		s.sink("poll_result", fields)
	}
}

// Close 停止所有任务并等待 goroutine 退出。
// 在途请求通过 context 终止（整机关停场景，与单视图取消不同）。
func (s *Scheduler) Close() {
	s.cancel()
	s.wg.Wait()
}
