package gateway

import (
	"encoding/json"
	"errors"

	"trading-terminal-go/market"
)

// ErrNotPriceFrame 帧能解析但没有 live_prices 字段（心跳等控制帧）。
var ErrNotPriceFrame = errors.New("frame carries no live_prices")

// livePricesFrame 对应行情推送的包装结构。
type livePricesFrame struct {
	LivePrices []market.Tick `json:"live_prices"`
}

// ParseLivePrices 解析一帧行情推送，返回 tick 批。
// JSON 非法或字段缺失都只作为可丢弃错误返回，调用方记日志后继续。
func ParseLivePrices(raw []byte) ([]market.Tick, error) {
	var frame livePricesFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, err
	}
	if frame.LivePrices == nil {
		return nil, ErrNotPriceFrame
	}
	return frame.LivePrices, nil
}
