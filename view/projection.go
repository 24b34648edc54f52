// Package view maps reconciled snapshots onto the shapes the terminal
// screens render. Everything here is a pure function over its inputs:
// no state, no network, no side effects.
package view

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"trading-terminal-go/market"
	"trading-terminal-go/portfolio"
	"trading-terminal-go/reconcile"
)

// ActiveRow 活跃订单表行。缺失值渲染为 "-"。
type ActiveRow struct {
	Key       string
	StockName string
	OrderType string
	Qty       int64
	ATP       string
	LTP       string
	GainLoss  string
	SL        string
	TG        string
}

// PendingRow 挂单表行（无 ATP/SL/TG 列）。
type PendingRow struct {
	Key       string
	StockName string
	OrderType string
	Qty       int64
	LTP       string
	GainLoss  string
}

// ClosedRow 已平仓表行，盈亏取记录内的已结值，不再跟随现价。
type ClosedRow struct {
	Key         string
	StockName   string
	OrderType   string
	Qty         int64
	ATP         string
	LTP         string
	TotalProfit string
	SL          string
	TG          string
}

// RejectedRow 拒单表行。
type RejectedRow struct {
	Key          string
	StockName    string
	OrderType    string
	Qty          int64
	RejectedTime string
}

// OptionRow 期权持仓表行。
type OptionRow struct {
	Key          string
	OptionSymbol string
	OptionType   string
	Qty          int64
	EntryLTP     string
	EntryTime    string
	CurrentLTP   string
	Profit       string
}

// ClosedOptionRow 已平期权表行，各值均为已结值，不跟随现价。
type ClosedOptionRow struct {
	Key         string
	StockName   string
	OptionType  string
	Qty         int64
	EntryLTP    string
	ExitLTP     string
	EntryTime   string
	ExitTime    string
	TotalProfit string
}

// TickerCard 行情卡片。
type TickerCard struct {
	Token      string
	Points     float64
	IsUp       bool
	Percentage string
}

// Summary 订单页顶部汇总卡。
type Summary struct {
	CurrentValue   float64
	RunningPnl     float64
	TotalClosedPnl float64
}

// ActiveRows 投影活跃订单视图。
func ActiveRows(rows []reconcile.Row) []ActiveRow {
	out := make([]ActiveRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, ActiveRow{
			Key:       r.Order.Key,
			StockName: r.Order.StockName,
			OrderType: orderType(r.Order.Side),
			Qty:       r.Order.Qty,
			ATP:       fmtPrice(r.Order.EntryPrice),
			LTP:       fmtPrice(r.CurrentPrice),
			GainLoss:  fmtSigned(r.Pnl),
			SL:        fmtPrice(r.Order.StopLoss),
			TG:        fmtPrice(r.Order.Target),
		})
	}
	return out
}

// PendingRows 投影挂单视图。
func PendingRows(rows []reconcile.Row) []PendingRow {
	out := make([]PendingRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, PendingRow{
			Key:       r.Order.Key,
			StockName: r.Order.StockName,
			OrderType: orderType(r.Order.Side),
			Qty:       r.Order.Qty,
			LTP:       fmtPrice(r.CurrentPrice),
			GainLoss:  fmtSigned(r.Pnl),
		})
	}
	return out
}

// ClosedRows 投影已平仓视图。
func ClosedRows(rows []reconcile.Row) []ClosedRow {
	out := make([]ClosedRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, ClosedRow{
			Key:         r.Order.Key,
			StockName:   r.Order.StockName,
			OrderType:   orderType(r.Order.Side),
			Qty:         r.Order.Qty,
			ATP:         fmtPrice(r.Order.EntryPrice),
			LTP:         fmtPrice(r.Order.ExitPrice),
			TotalProfit: fmtSigned(r.Order.ClosedPnl),
			SL:          fmtPrice(r.Order.StopLoss),
			TG:          fmtPrice(r.Order.Target),
		})
	}
	return out
}

// RejectedRows 投影拒单视图；方向或时间未知时渲染 "N/A"。
func RejectedRows(rows []reconcile.Row) []RejectedRow {
	out := make([]RejectedRow, 0, len(rows))
	for _, r := range rows {
		row := RejectedRow{
			Key:          r.Order.Key,
			StockName:    r.Order.StockName,
			OrderType:    "N/A",
			Qty:          r.Order.Qty,
			RejectedTime: "N/A",
		}
		if r.Order.Side != "" {
			row.OrderType = orderType(r.Order.Side)
		}
		if r.Order.RejectedTime != nil {
			row.RejectedTime = r.Order.RejectedTime.Format("2006-01-02 15:04:05")
		}
		out = append(out, row)
	}
	return out
}

// OptionRows 投影期权视图；CE/PE 由 symbol 后缀判定。
func OptionRows(rows []reconcile.Row) []OptionRow {
	out := make([]OptionRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, OptionRow{
			Key:          r.Order.Key,
			OptionSymbol: r.Order.OptionSymbol,
			OptionType:   OptionType(r.Order.OptionSymbol),
			Qty:          r.Order.Qty,
			EntryLTP:     fmtPrice(r.Order.EntryPrice),
			EntryTime:    fmtTime(r.Order.EntryTime),
			CurrentLTP:   fmtPrice(r.CurrentPrice),
			Profit:       fmtFixed(r.Pnl),
		})
	}
	return out
}

// ClosedOptionRows 投影已平期权视图。
func ClosedOptionRows(rows []reconcile.Row) []ClosedOptionRow {
	out := make([]ClosedOptionRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, ClosedOptionRow{
			Key:         r.Order.Key,
			StockName:   FormatOptionSymbol(r.Order.OptionSymbol),
			OptionType:  OptionType(r.Order.OptionSymbol),
			Qty:         r.Order.Qty,
			EntryLTP:    fmtPrice(r.Order.EntryPrice),
			ExitLTP:     fmtPrice(r.Order.ExitPrice),
			EntryTime:   fmtTime(r.Order.EntryTime),
			ExitTime:    fmtTime(r.Order.ExitTime),
			TotalProfit: fmtSigned(r.Order.ClosedPnl),
		})
	}
	return out
}

// optionSymbolPattern 形如 BANKNIFTY26AUG49500CE。
var optionSymbolPattern = regexp.MustCompile(`^BANKNIFTY(\d{2}[A-Z]{3})(\d+)(CE|PE)$`)

// FormatOptionSymbol 把紧凑 symbol 展开为可读形式；不匹配时原样返回。
func FormatOptionSymbol(symbol string) string {
	m := optionSymbolPattern.FindStringSubmatch(symbol)
	if m == nil {
		return symbol
	}
	return fmt.Sprintf("BANKNIFTY %s %s (%s)", m[2], m[3], m[1])
}

// OptionType 判定期权类型；非 CE 后缀一律按 PE 处理。
func OptionType(symbol string) string {
	if strings.HasSuffix(symbol, "CE") {
		return "CE"
	}
	return "PE"
}

// Ticker 投影行情卡片（按给定 token 顺序，表内没有的 token 跳过）。
func Ticker(prices map[string]market.PriceRecord, tokens []string) []TickerCard {
	out := make([]TickerCard, 0, len(tokens))
	for _, tok := range tokens {
		rec, ok := prices[tok]
		if !ok {
			continue
		}
		out = append(out, TickerCard{
			Token:      tok,
			Points:     rec.Price,
			IsUp:       rec.Direction == market.Up,
			Percentage: fmtPercent(rec),
		})
	}
	return out
}

// Summarize 汇总活跃与已平仓视图。
func Summarize(active, closed []reconcile.Row) Summary {
	var s Summary
	for _, r := range active {
		if r.CurrentPrice != nil {
			s.CurrentValue += *r.CurrentPrice * float64(r.Order.Qty)
		}
		if r.Pnl != nil {
			s.RunningPnl += *r.Pnl
		}
	}
	for _, r := range closed {
		if r.Order.ClosedPnl != nil {
			s.TotalClosedPnl += *r.Order.ClosedPnl
		}
	}
	return s
}

func orderType(side portfolio.Side) string {
	if side == portfolio.SideSell {
		return "Sell"
	}
	return "Buy"
}

func fmtPrice(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

// fmtSigned 正值带 "+" 前缀，与原表格的涨跌着色约定对齐。
func fmtSigned(v *float64) string {
	if v == nil {
		return "-"
	}
	if *v >= 0 {
		return fmt.Sprintf("+%.2f", *v)
	}
	return fmt.Sprintf("%.2f", *v)
}

func fmtFixed(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func fmtTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

// fmtPercent 方向符号 + 两位小数百分比；无前价时固定 "0.00%"。
func fmtPercent(rec market.PriceRecord) string {
	switch rec.Direction {
	case market.Up:
		return fmt.Sprintf("+%.2f%%", rec.PercentChange)
	case market.Down:
		return fmt.Sprintf("-%.2f%%", rec.PercentChange)
	default:
		return "0.00%"
	}
}
