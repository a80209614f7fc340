package sim

import (
	"testing"

	"github.com/depthlab/bookwatch/internal/domain"
)

func TestSpreadAndMid(t *testing.T) {
	snap := domain.BookSnapshot{
		Bids: []domain.BookLevel{{Price: 99, Quantity: 1}},
		Asks: []domain.BookLevel{{Price: 101, Quantity: 1}},
	}

	if got := Spread(snap); !almostEqual(got, 2) {
		t.Fatalf("spread = %g, want 2", got)
	}
	if got := MidPrice(snap); !almostEqual(got, 100) {
		t.Fatalf("mid = %g, want 100", got)
	}
	if got := SpreadPercent(snap); !almostEqual(got, 2) {
		t.Fatalf("spread pct = %g, want 2", got)
	}
}

func TestSpreadEmptySide(t *testing.T) {
	snap := domain.BookSnapshot{
		Asks: []domain.BookLevel{{Price: 101, Quantity: 1}},
	}

	if got := Spread(snap); got != 0 {
		t.Fatalf("spread with empty bids = %g, want 0", got)
	}
	if got := MidPrice(snap); got != 0 {
		t.Fatalf("mid with empty bids = %g, want 0", got)
	}
}

func TestImbalance(t *testing.T) {
	snap := domain.BookSnapshot{
		Bids: []domain.BookLevel{{Price: 99, Quantity: 3}},
		Asks: []domain.BookLevel{{Price: 101, Quantity: 1}},
	}

	// (3 - 1) / 4 = 50%
	if got := Imbalance(snap); !almostEqual(got, 50) {
		t.Fatalf("imbalance = %g, want 50", got)
	}
	if got := Imbalance(domain.BookSnapshot{}); got != 0 {
		t.Fatalf("imbalance of empty book = %g, want 0", got)
	}
}

func TestEstimateTimeToFill(t *testing.T) {
	levels := []domain.BookLevel{{Price: 100, Quantity: 500}}

	if got := EstimateTimeToFill(200, levels, 100); got != 2 {
		t.Fatalf("time to fill = %d, want 2", got)
	}
	// Order exceeding visible depth pays the replenishment penalty.
	if got := EstimateTimeToFill(600, levels, 100); got != 61 {
		t.Fatalf("time to fill beyond depth = %d, want 61", got)
	}
	if got := EstimateTimeToFill(50, levels, 100); got != 1 {
		t.Fatalf("minimum time to fill = %d, want 1", got)
	}
}
