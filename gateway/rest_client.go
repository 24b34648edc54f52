package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"trading-terminal-go/portfolio"
)

// PortfolioRESTClient 订单/持仓轮询客户端。HTTPClient 可注入 httptest。
// 所有错误对调用方都是"可重试"的：调度器保留旧快照并按原周期继续。
type PortfolioRESTClient struct {
	BaseURL    string
	UserID     string
	HTTPClient *http.Client
	Limiter    RateLimiter
}

// envelope 订单接口的统一包装：{status, msg, data}。
type envelope struct {
	Status int             `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

// activeOrderRow 活跃/挂单/平仓接口的行结构。
type activeOrderRow struct {
	Key       string     `json:"key"`
	Token     string     `json:"token"`
	StockName string     `json:"stockName"`
	OrderType string     `json:"orderType"`
	Qty       int64      `json:"qty"`
	ATP       *float64   `json:"atp"`
	ExitPrice *float64   `json:"exitPrice"`
	ExitTime  *time.Time `json:"exitTime"`
	GainLoss  *float64   `json:"gainLoss"`
	SL        *float64   `json:"sl"`
	TG        *float64   `json:"tg"`
}

// rejectedOrderRow 拒单接口行结构。
type rejectedOrderRow struct {
	Key          string     `json:"key"`
	Token        string     `json:"token"`
	StockName    string     `json:"stockName"`
	OrderType    *string    `json:"orderType"`
	Qty          int64      `json:"qty"`
	RejectedTime *time.Time `json:"rejected_time"`
	Reason       string     `json:"reason"`
}

// optionTradeRow 期权接口行结构（裸数组，无包装）。
type optionTradeRow struct {
	OptionSymbol string     `json:"option_symbol"`
	Token        string     `json:"token"`
	Quantity     int64      `json:"quantity"`
	EntryLtp     *float64   `json:"entry_ltp"`
	EntryTime    *time.Time `json:"trade_entry_time"`
}

// closedTradesFrame 已平期权接口的包装：{closed_trades: [...]}。
type closedTradesFrame struct {
	ClosedTrades []closedOptionTradeRow `json:"closed_trades"`
}

type closedOptionTradeRow struct {
	OrderID      string     `json:"order_id"`
	OptionSymbol string     `json:"option_symbol"`
	Quantity     int64      `json:"quantity"`
	EntryPrice   *float64   `json:"entry_price"`
	ExitPrice    *float64   `json:"exit_price"`
	EntryTime    *time.Time `json:"entry_time"`
	ExitTime     *time.Time `json:"exit_time"`
	Pnl          *float64   `json:"pnl"`
}

// ActiveOrders 拉取活跃订单。
func (c *PortfolioRESTClient) ActiveOrders(ctx context.Context) ([]portfolio.OrderRecord, error) {
	return c.fetchOrders(ctx, "/portfolios/get/active/orders")
}

// PendingOrders 拉取挂单。
func (c *PortfolioRESTClient) PendingOrders(ctx context.Context) ([]portfolio.OrderRecord, error) {
	return c.fetchOrders(ctx, "/portfolios/get/pending/orders")
}

// ClosedOrders 拉取已平仓订单。
func (c *PortfolioRESTClient) ClosedOrders(ctx context.Context) ([]portfolio.OrderRecord, error) {
	return c.fetchOrders(ctx, "/portfolios/get/close/orders")
}

// RejectedOrders 拉取拒单。
func (c *PortfolioRESTClient) RejectedOrders(ctx context.Context) ([]portfolio.OrderRecord, error) {
	raw, err := c.getEnveloped(ctx, "/portfolios/get/rejected/orders")
	if err != nil {
		return nil, err
	}
	var rows []rejectedOrderRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode rejected orders: %w", err)
	}
	records := make([]portfolio.OrderRecord, 0, len(rows))
	for i, row := range rows {
		rec := portfolio.OrderRecord{
			Key:          orFallbackKey(row.Key, i),
			Token:        row.Token,
			StockName:    row.StockName,
			Qty:          row.Qty,
			RejectedTime: row.RejectedTime,
			RejectReason: row.Reason,
		}
		if row.OrderType != nil {
			rec.Side = parseSide(*row.OrderType)
		}
		records = append(records, rec)
	}
	return records, nil
}

// OpenOptionTrades 拉取未平期权交易；该接口返回裸 JSON 数组。
func (c *PortfolioRESTClient) OpenOptionTrades(ctx context.Context) ([]portfolio.OrderRecord, error) {
	body, err := c.get(ctx, "/option/trade/open/"+url.PathEscape(c.UserID), false)
	if err != nil {
		return nil, err
	}
	var rows []optionTradeRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode option trades: %w", err)
	}
	records := make([]portfolio.OrderRecord, 0, len(rows))
	for i, row := range rows {
		records = append(records, portfolio.OrderRecord{
			Key:          orFallbackKey(row.OptionSymbol, i),
			Token:        row.Token,
			StockName:    row.OptionSymbol,
			OptionSymbol: row.OptionSymbol,
			Side:         portfolio.SideBuy,
			Qty:          row.Quantity,
			EntryPrice:   row.EntryLtp,
			EntryTime:    row.EntryTime,
		})
	}
	return records, nil
}

// ClosedOptionTrades 拉取已平期权交易；包装字段为 closed_trades。
// 盈亏取接口给出的已结值，缺失按 0 处理。
func (c *PortfolioRESTClient) ClosedOptionTrades(ctx context.Context) ([]portfolio.OrderRecord, error) {
	body, err := c.get(ctx, "/option/trade/closed/"+url.PathEscape(c.UserID), false)
	if err != nil {
		return nil, err
	}
	var frame closedTradesFrame
	if err := json.Unmarshal(body, &frame); err != nil {
		return nil, fmt.Errorf("decode closed option trades: %w", err)
	}
	records := make([]portfolio.OrderRecord, 0, len(frame.ClosedTrades))
	for i, row := range frame.ClosedTrades {
		pnl := 0.0
		if row.Pnl != nil {
			pnl = *row.Pnl
		}
		records = append(records, portfolio.OrderRecord{
			Key:          orFallbackKey(row.OrderID, i),
			StockName:    row.OptionSymbol,
			OptionSymbol: row.OptionSymbol,
			Side:         portfolio.SideBuy,
			Qty:          row.Quantity,
			EntryPrice:   row.EntryPrice,
			EntryTime:    row.EntryTime,
			ExitPrice:    row.ExitPrice,
			ExitTime:     row.ExitTime,
			ClosedPnl:    &pnl,
		})
	}
	return records, nil
}

// FetchFor 返回视图对应的拉取函数，便于调度器批量接线。
func (c *PortfolioRESTClient) FetchFor(view portfolio.ViewID) portfolio.FetchFunc {
	switch view {
	case portfolio.ViewPending:
		return c.PendingOrders
	case portfolio.ViewClosed:
		return c.ClosedOrders
	case portfolio.ViewRejected:
		return c.RejectedOrders
	case portfolio.ViewOptions:
		return c.OpenOptionTrades
	case portfolio.ViewOptionsClosed:
		return c.ClosedOptionTrades
	default:
		return c.ActiveOrders
	}
}

func (c *PortfolioRESTClient) fetchOrders(ctx context.Context, path string) ([]portfolio.OrderRecord, error) {
	raw, err := c.getEnveloped(ctx, path)
	if err != nil {
		return nil, err
	}
	var rows []activeOrderRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode orders %s: %w", path, err)
	}
	records := make([]portfolio.OrderRecord, 0, len(rows))
	for i, row := range rows {
		records = append(records, portfolio.OrderRecord{
			Key:        orFallbackKey(row.Key, i),
			Token:      row.Token,
			StockName:  row.StockName,
			Side:       parseSide(row.OrderType),
			Qty:        row.Qty,
			EntryPrice: row.ATP,
			ExitPrice:  row.ExitPrice,
			ExitTime:   row.ExitTime,
			ClosedPnl:  row.GainLoss,
			StopLoss:   row.SL,
			Target:     row.TG,
		})
	}
	return records, nil
}

// getEnveloped GET 并拆 {status,data,msg} 包装；status != 200 视为失败。
func (c *PortfolioRESTClient) getEnveloped(ctx context.Context, path string) (json.RawMessage, error) {
	body, err := c.get(ctx, path, true)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope %s: %w", path, err)
	}
	if env.Status != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d: %s", path, env.Status, env.Msg)
	}
	return env.Data, nil
}

func (c *PortfolioRESTClient) get(ctx context.Context, path string, withUserQuery bool) ([]byte, error) {
	if c == nil || c.HTTPClient == nil {
		return nil, fmt.Errorf("http client not set")
	}
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	endpoint := c.BaseURL + path
	if withUserQuery {
		endpoint += "?user_id=" + url.QueryEscape(c.UserID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s http status %d", path, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func parseSide(s string) portfolio.Side {
	switch s {
	case "SELL", "Sell", "sell":
		return portfolio.SideSell
	case "BUY", "Buy", "buy":
		return portfolio.SideBuy
	}
	return ""
}

func orFallbackKey(key string, idx int) string {
	if key != "" {
		return key
	}
	return fmt.Sprintf("%d", idx+1)
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
