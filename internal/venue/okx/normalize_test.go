package okx

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/depthlab/bookwatch/internal/domain"
)

func TestNormalizeBookFrame(t *testing.T) {
	raw := []byte(`{
		"arg": {"channel": "books5", "instId": "BTC-USDT"},
		"data": [{
			"bids": [["99.5", "2"], ["100.0", "1"], ["98.0", "0"]],
			"asks": [["101.0", "3"], ["100.5", "1"]],
			"ts": "1693500000000"
		}]
	}`)

	snap, err := Normalize("BTC-USDT", raw)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	if snap.Venue != domain.VenueOKX || snap.Symbol != "BTC-USDT" {
		t.Fatalf("wrong identity: %s %s", snap.Venue, snap.Symbol)
	}
	// Zero-quantity bid dropped, remainder sorted descending.
	if len(snap.Bids) != 2 || snap.Bids[0].Price != 100.0 || snap.Bids[1].Price != 99.5 {
		t.Fatalf("bids = %+v", snap.Bids)
	}
	if len(snap.Asks) != 2 || snap.Asks[0].Price != 100.5 || snap.Asks[1].Price != 101.0 {
		t.Fatalf("asks = %+v", snap.Asks)
	}
}

func TestNormalizeSubscribeAck(t *testing.T) {
	raw := []byte(`{"event": "subscribe", "arg": {"channel": "books5", "instId": "BTC-USDT"}}`)

	_, err := Normalize("BTC-USDT", raw)
	if !errors.Is(err, domain.ErrNotBookUpdate) {
		t.Fatalf("expected ErrNotBookUpdate, got %v", err)
	}
}

func TestNormalizeOtherChannel(t *testing.T) {
	raw := []byte(`{"arg": {"channel": "tickers", "instId": "BTC-USDT"}, "data": [{}]}`)

	_, err := Normalize("BTC-USDT", raw)
	if !errors.Is(err, domain.ErrNotBookUpdate) {
		t.Fatalf("expected ErrNotBookUpdate, got %v", err)
	}
}

func TestNormalizeDecodeError(t *testing.T) {
	_, err := Normalize("BTC-USDT", []byte("not json"))
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestNormalizeMissingData(t *testing.T) {
	raw := []byte(`{"arg": {"channel": "books5", "instId": "BTC-USDT"}, "data": []}`)

	_, err := Normalize("BTC-USDT", raw)
	if !errors.Is(err, domain.ErrNormalize) {
		t.Fatalf("expected ErrNormalize, got %v", err)
	}
}

func TestNormalizeBadPrice(t *testing.T) {
	raw := []byte(`{
		"arg": {"channel": "books5", "instId": "BTC-USDT"},
		"data": [{"bids": [["abc", "1"]], "asks": []}]
	}`)

	_, err := Normalize("BTC-USDT", raw)
	if !errors.Is(err, domain.ErrNormalize) {
		t.Fatalf("expected ErrNormalize, got %v", err)
	}
}

func TestSubscribeMessage(t *testing.T) {
	payload, err := SubscribeMessage("BTC-USDT")
	if err != nil {
		t.Fatalf("subscribe message failed: %v", err)
	}

	var cmd struct {
		Op   string `json:"op"`
		Args []struct {
			Channel string `json:"channel"`
			InstID  string `json:"instId"`
		} `json:"args"`
	}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		t.Fatalf("invalid subscribe JSON: %v", err)
	}
	if cmd.Op != "subscribe" || len(cmd.Args) != 1 || cmd.Args[0].Channel != "books5" || cmd.Args[0].InstID != "BTC-USDT" {
		t.Fatalf("unexpected subscribe payload: %s", payload)
	}
}
