package portfolio

import "time"

// Side 订单方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ViewID 标识一个独立轮询的订单视图。
type ViewID string

const (
	ViewActive   ViewID = "active"
	ViewPending  ViewID = "pending"
	ViewClosed   ViewID = "closed"
	ViewRejected      ViewID = "rejected"
	ViewOptions       ViewID = "options"
	ViewOptionsClosed ViewID = "options_closed"
)

// Views 返回全部视图（固定顺序）。
func Views() []ViewID {
	return []ViewID{ViewActive, ViewPending, ViewClosed, ViewRejected, ViewOptions, ViewOptionsClosed}
}

// Valid 检查视图 ID 是否已知。
func (v ViewID) Valid() bool {
	switch v {
	case ViewActive, ViewPending, ViewClosed, ViewRejected, ViewOptions, ViewOptionsClosed:
		return true
	}
	return false
}

// OrderRecord 一条由轮询返回的订单/持仓记录。
// 每次成功轮询整体替换视图内的记录集；tick 流从不创建或删除记录。
// 可空字段用指针表达，与后端 JSON 的 null 一一对应。
type OrderRecord struct {
	Key       string
	Token     string
	StockName string
	Side      Side
	Qty       int64

	EntryPrice *float64
	EntryTime  *time.Time

	// 已平仓视图
	ExitPrice *float64
	ExitTime  *time.Time
	ClosedPnl *float64

	StopLoss *float64
	Target   *float64

	// 拒单视图
	RejectedTime *time.Time
	RejectReason string

	// 期权视图
	OptionSymbol string
}

// Tokens 提取一组记录引用的 token（去重，忽略空值）。
func Tokens(records []OrderRecord) []string {
	seen := make(map[string]bool, len(records))
	out := make([]string, 0, len(records))
	for _, r := range records {
		if r.Token == "" || seen[r.Token] {
			continue
		}
		seen[r.Token] = true
		out = append(out, r.Token)
	}
	return out
}
