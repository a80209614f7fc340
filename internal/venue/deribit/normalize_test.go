package deribit

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/depthlab/bookwatch/internal/domain"
)

func TestNormalizeBookFrame(t *testing.T) {
	raw := []byte(`{
		"jsonrpc": "2.0",
		"method": "subscription",
		"params": {
			"channel": "book.BTC-PERPETUAL.100ms",
			"data": {
				"instrument_name": "BTC-PERPETUAL",
				"bids": [[25000.5, 10], [25001.0, 20], [24999.0, 0]],
				"asks": [[25003.0, 5], [25002.0, 15]],
				"timestamp": 1693500000000
			}
		}
	}`)

	snap, err := Normalize("BTC-PERPETUAL", raw)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	if snap.Venue != domain.VenueDeribit || snap.Symbol != "BTC-PERPETUAL" {
		t.Fatalf("wrong identity: %s %s", snap.Venue, snap.Symbol)
	}
	if len(snap.Bids) != 2 || snap.Bids[0].Price != 25001.0 || snap.Bids[0].Quantity != 20 {
		t.Fatalf("bids = %+v", snap.Bids)
	}
	if len(snap.Asks) != 2 || snap.Asks[0].Price != 25002.0 {
		t.Fatalf("asks = %+v", snap.Asks)
	}
}

func TestNormalizeRPCResponse(t *testing.T) {
	raw := []byte(`{"jsonrpc": "2.0", "id": 42, "result": ["book.BTC-PERPETUAL.100ms"]}`)

	_, err := Normalize("BTC-PERPETUAL", raw)
	if !errors.Is(err, domain.ErrNotBookUpdate) {
		t.Fatalf("expected ErrNotBookUpdate, got %v", err)
	}
}

func TestNormalizeOtherChannel(t *testing.T) {
	raw := []byte(`{
		"jsonrpc": "2.0",
		"method": "subscription",
		"params": {"channel": "ticker.BTC-PERPETUAL.100ms", "data": {}}
	}`)

	_, err := Normalize("BTC-PERPETUAL", raw)
	if !errors.Is(err, domain.ErrNotBookUpdate) {
		t.Fatalf("expected ErrNotBookUpdate, got %v", err)
	}
}

func TestNormalizeDecodeError(t *testing.T) {
	_, err := Normalize("BTC-PERPETUAL", []byte("]["))
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestNormalizeMissingData(t *testing.T) {
	raw := []byte(`{
		"jsonrpc": "2.0",
		"method": "subscription",
		"params": {"channel": "book.BTC-PERPETUAL.100ms", "data": {"instrument_name": "BTC-PERPETUAL"}}
	}`)

	_, err := Normalize("BTC-PERPETUAL", raw)
	if !errors.Is(err, domain.ErrNormalize) {
		t.Fatalf("expected ErrNormalize, got %v", err)
	}
}

func TestNormalizeShortLevel(t *testing.T) {
	raw := []byte(`{
		"jsonrpc": "2.0",
		"method": "subscription",
		"params": {
			"channel": "book.BTC-PERPETUAL.100ms",
			"data": {"bids": [[25000.5]], "asks": []}
		}
	}`)

	_, err := Normalize("BTC-PERPETUAL", raw)
	if !errors.Is(err, domain.ErrNormalize) {
		t.Fatalf("expected ErrNormalize, got %v", err)
	}
}

func TestSubscribeMessage(t *testing.T) {
	payload, err := SubscribeMessage("BTC-PERPETUAL")
	if err != nil {
		t.Fatalf("subscribe message failed: %v", err)
	}

	var cmd struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
		Params  struct {
			Channels []string `json:"channels"`
		} `json:"params"`
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		t.Fatalf("invalid subscribe JSON: %v", err)
	}
	if cmd.JSONRPC != "2.0" || cmd.Method != "public/subscribe" {
		t.Fatalf("unexpected rpc envelope: %s", payload)
	}
	if len(cmd.Params.Channels) != 1 || cmd.Params.Channels[0] != "book.BTC-PERPETUAL.100ms" {
		t.Fatalf("unexpected channels: %v", cmd.Params.Channels)
	}
	if cmd.ID == 0 {
		t.Fatal("expected non-zero request id")
	}
}
