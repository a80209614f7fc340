// Package sim estimates the fill outcome of a hypothetical order against a
// canonical book snapshot. Everything here is a pure function of its inputs:
// no clock, no I/O, no hidden state, and no error paths — degenerate input
// degrades to zero-valued output.
package sim

import (
	"math"

	"github.com/depthlab/bookwatch/internal/domain"
)

// Impact walks the given side best-price-first, filling min(remaining,
// level quantity) at each level, and derives the fill metrics. Levels must
// be in canonical order (bids descending / asks ascending); a partial fill
// with RemainingQuantity > 0 is a legitimate outcome.
func Impact(levels []domain.BookLevel, quantity float64) domain.ImpactResult {
	if len(levels) == 0 || quantity <= 0 {
		return domain.ImpactResult{RemainingQuantity: math.Max(quantity, 0)}
	}

	bestPrice := levels[0].Price

	remaining := quantity
	var totalCost, totalFilled float64
	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		fill := math.Min(remaining, lvl.Quantity)
		totalCost += fill * lvl.Price
		totalFilled += fill
		remaining -= fill
	}

	res := domain.ImpactResult{
		FilledQuantity:    totalFilled,
		FillPercentage:    totalFilled / quantity * 100,
		RemainingQuantity: remaining,
		TotalCost:         totalCost,
	}
	if totalFilled > 0 {
		res.AverageFillPrice = totalCost / totalFilled
	}
	if bestPrice > 0 {
		res.SlippagePercent = math.Abs(res.AverageFillPrice-bestPrice) / bestPrice * 100
	}
	if liquidity := sideLiquidity(levels); liquidity > 0 {
		res.MarketImpactPercent = quantity / liquidity * 100
	}
	return res
}

// Position returns the index at which a resting limit order would sit in
// the given side: for a buy, the first level whose price the limit meets or
// beats; for a sell, the first level at or above the limit. When no level
// matches, the order sits behind the entire visible depth (len(levels)).
// This models queue position for display, not a matching guarantee.
func Position(price float64, side domain.OrderSide, levels []domain.BookLevel) int {
	for i, lvl := range levels {
		if side == domain.SideBuy && price >= lvl.Price {
			return i
		}
		if side == domain.SideSell && price <= lvl.Price {
			return i
		}
	}
	return len(levels)
}

// Simulate computes the full impact of an order against a snapshot: a buy
// consumes asks, a sell consumes bids. An absent or empty book yields
// all-zero metrics with the full quantity remaining. Simulate never fails.
func Simulate(snap domain.BookSnapshot, order domain.SimulatedOrder) domain.ImpactResult {
	levels := snap.Asks
	if order.Side == domain.SideSell {
		levels = snap.Bids
	}

	res := Impact(levels, order.Quantity)
	if order.LimitPrice != nil {
		res.InsertionIndex = Position(*order.LimitPrice, order.Side, levels)
	}
	return res
}

func sideLiquidity(levels []domain.BookLevel) float64 {
	var total float64
	for _, lvl := range levels {
		total += lvl.Quantity
	}
	return total
}
