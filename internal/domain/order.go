package domain

import "time"

// OrderSide is the direction of a simulated order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// Valid reports whether the side is one of the two known values.
func (s OrderSide) Valid() bool {
	return s == SideBuy || s == SideSell
}

// SimulatedOrder is the immutable input to the impact engine. The core
// carries no order identity; IDs and timing belong to the API layer that
// tracks submitted simulations.
type SimulatedOrder struct {
	Side       OrderSide `json:"side"`
	Quantity   float64   `json:"quantity"`
	LimitPrice *float64  `json:"limit_price,omitempty"`
}

// ImpactResult is the outcome of walking a book side with a hypothetical
// order. Produced fresh per simulation call and never mutated after return.
type ImpactResult struct {
	FilledQuantity      float64 `json:"filled_quantity"`
	FillPercentage      float64 `json:"fill_percentage"`
	AverageFillPrice    float64 `json:"average_fill_price"`
	SlippagePercent     float64 `json:"slippage_percent"`
	MarketImpactPercent float64 `json:"market_impact_percent"`
	RemainingQuantity   float64 `json:"remaining_quantity"`
	TotalCost           float64 `json:"total_cost"`
	InsertionIndex      int     `json:"insertion_index"`
}

// TrackedOrder is a simulated order registered with the API layer. It is
// re-evaluated against the live book on every snapshot change until removed.
type TrackedOrder struct {
	ID        string         `json:"id"`
	Key       BookKey        `json:"key"`
	Order     SimulatedOrder `json:"order"`
	Impact    ImpactResult   `json:"impact"`
	DelaySec  int            `json:"delay_sec"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
