package market

import (
	"math"
	"sync"

	"trading-terminal-go/metrics"
)

// Table 维护每个 token 的最新价及变动指标，是"live price"的唯一权威来源。
// 多个订阅可并发写入重叠 token；单把锁保证同一 token 的
// shift-and-recompute 不会交错。
type Table struct {
	mu      sync.RWMutex
	records map[string]PriceRecord
	pub     *Publisher
}

func NewTable(pub *Publisher) *Table {
	return &Table{
		records: make(map[string]PriceRecord),
		pub:     pub,
	}
}

// ApplyTicks 将一批 tick 合入表中，返回实际更新的 token 列表。
// 批内不同 token 互不依赖，处理顺序不影响最终状态。
// 价格为 0 或负数照单全收（上游负责取值范围），仅防除零。
func (t *Table) ApplyTicks(batch []Tick) []string {
	if len(batch) == 0 {
		return nil
	}
	updated := make([]string, 0, len(batch))
	t.mu.Lock()
	for _, tk := range batch {
		if tk.Token == "" {
			continue
		}
		rec, ok := t.records[tk.Token]
		if !ok {
			rec = PriceRecord{
				Token:     tk.Token,
				Price:     tk.Price,
				Direction: Flat,
			}
		} else {
			rec.PrevPrice = rec.Price
			rec.HasPrev = true
			rec.Price = tk.Price
			rec.Direction = direction(rec.Price, rec.PrevPrice)
			rec.PercentChange = percentChange(rec.Price, rec.PrevPrice)
		}
		t.records[tk.Token] = rec
		updated = append(updated, tk.Token)
		metrics.UpdateLastPrice(tk.Token, tk.Price)
	}
	size := len(t.records)
	t.mu.Unlock()

	metrics.TicksApplied.Add(float64(len(updated)))
	metrics.PriceTableSize.Set(float64(size))
	if t.pub != nil && len(updated) > 0 {
		t.pub.PublishUpdate(updated)
	}
	return updated
}

// Lookup 返回 token 的最新记录。
func (t *Table) Lookup(token string) (PriceRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[token]
	return rec, ok
}

// Snapshot 返回整表拷贝，供对账器做一致读取。
func (t *Table) Snapshot() map[string]PriceRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]PriceRecord, len(t.records))
	for k, v := range t.records {
		out[k] = v
	}
	return out
}

// Len 当前表内 token 数。
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Reset 清空整表（订阅拆除时调用）。
func (t *Table) Reset() {
	t.mu.Lock()
	t.records = make(map[string]PriceRecord)
	t.mu.Unlock()
	metrics.PriceTableSize.Set(0)
}

func direction(price, prev float64) Direction {
	switch {
	case price > prev:
		return Up
	case price < prev:
		return Down
	default:
		return Flat
	}
}

// percentChange |price-prev|/prev*100；prev<=0 时固定为 0。
func percentChange(price, prev float64) float64 {
	if prev <= 0 {
		return 0
	}
	return math.Abs(price-prev) / prev * 100
}
