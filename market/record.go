package market

// Direction 表示相对上一笔报价的变动方向。
type Direction int

const (
	Flat Direction = iota
	Up
	Down
)

// String 返回方向名称
func (d Direction) String() string {
	switch d {
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	default:
		return "FLAT"
	}
}

// PriceRecord 某个 token 的最新报价及派生变动指标。
// 仅由 Table 在 tick 到达时修改。
type PriceRecord struct {
	Token         string
	Price         float64
	PrevPrice     float64
	HasPrev       bool
	Direction     Direction
	PercentChange float64
}

// Tick a single inbound price update.
type Tick struct {
	Token string  `json:"token"`
	Price float64 `json:"ltp"`
}
