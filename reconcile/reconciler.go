// Package reconcile joins polled order records with the live price table
// to derive per-record unrealized P&L.
package reconcile

import (
	"trading-terminal-go/market"
	"trading-terminal-go/portfolio"
)

// Row 一条订单记录加上派生的现价与浮动盈亏。
// 从不落地，owning 方是对账器，两侧任一变化即重算。
type Row struct {
	Order        portfolio.OrderRecord
	CurrentPrice *float64
	Pnl          *float64
	// Pending 表示 token 还没有任何报价，行仍然输出。
	Pending bool
}

// Rows 用价格表快照对一组订单记录做对账。
// 纯函数：同样的输入永远得到同样的输出，不读写任何隐藏状态。
//
// 盈亏符号约定（全部视图共用同一个公式）：
//
//	BUY:  (current - entry) * qty
//	SELL: (entry - current) * qty
func Rows(records []portfolio.OrderRecord, prices map[string]market.PriceRecord) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		row := Row{Order: rec}
		price, ok := prices[rec.Token]
		if !ok {
			row.Pending = true
			rows = append(rows, row)
			continue
		}
		cur := price.Price
		row.CurrentPrice = &cur
		if rec.EntryPrice != nil {
			pnl := unrealizedPnl(rec.Side, *rec.EntryPrice, cur, rec.Qty)
			row.Pnl = &pnl
		}
		rows = append(rows, row)
	}
	return rows
}

func unrealizedPnl(side portfolio.Side, entry, current float64, qty int64) float64 {
	if side == portfolio.SideSell {
		return (entry - current) * float64(qty)
	}
	return (current - entry) * float64(qty)
}

// PendingCount 统计待定行数。
func PendingCount(rows []Row) int {
	n := 0
	for _, r := range rows {
		if r.Pending {
			n++
		}
	}
	return n
}
