package sim

import (
	"math"

	"github.com/depthlab/bookwatch/internal/domain"
)

// Spread returns the absolute best-ask minus best-bid distance, or 0 when
// either side is empty.
func Spread(snap domain.BookSnapshot) float64 {
	if len(snap.Bids) == 0 || len(snap.Asks) == 0 {
		return 0
	}
	return snap.Asks[0].Price - snap.Bids[0].Price
}

// SpreadPercent returns the spread relative to the mid price, in percent.
func SpreadPercent(snap domain.BookSnapshot) float64 {
	mid := MidPrice(snap)
	if mid <= 0 {
		return 0
	}
	return Spread(snap) / mid * 100
}

// MidPrice returns the midpoint of the best bid and ask, or 0 when either
// side is empty.
func MidPrice(snap domain.BookSnapshot) float64 {
	if len(snap.Bids) == 0 || len(snap.Asks) == 0 {
		return 0
	}
	return (snap.Bids[0].Price + snap.Asks[0].Price) / 2
}

// Imbalance returns (bidVolume - askVolume) / totalVolume in percent,
// positive when bids dominate. 0 for an empty book.
func Imbalance(snap domain.BookSnapshot) float64 {
	bidVol := sideLiquidity(snap.Bids)
	askVol := sideLiquidity(snap.Asks)
	total := bidVol + askVol
	if total == 0 {
		return 0
	}
	return (bidVol - askVol) / total * 100
}

// EstimateTimeToFill returns a rough seconds-to-fill estimate for quantity
// against the given side, assuming avgVolumePerSecond of turnover. When the
// visible depth cannot absorb the order, the residue is penalized with a
// flat sixty-second wait for liquidity replenishment.
func EstimateTimeToFill(quantity float64, levels []domain.BookLevel, avgVolumePerSecond float64) int {
	if avgVolumePerSecond <= 0 {
		avgVolumePerSecond = 100
	}
	available := sideLiquidity(levels)
	if quantity <= available {
		secs := int(math.Ceil(quantity / avgVolumePerSecond))
		if secs < 1 {
			secs = 1
		}
		return secs
	}
	return int(math.Ceil((quantity-available)/avgVolumePerSecond)) + 60
}
