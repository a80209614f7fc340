// Package deribit normalizes Deribit JSON-RPC WebSocket and REST book
// payloads into the canonical snapshot schema. Book levels arrive as number
// pairs on "book.<symbol>.100ms" channels.
package deribit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/depthlab/bookwatch/internal/domain"
)

const (
	restBooksURL = "https://www.deribit.com/api/v2/public/get_order_book"

	restDepth = "20"
)

// SubscribeMessage builds the book-channel subscribe payload for a symbol.
func SubscribeMessage(symbol string) ([]byte, error) {
	return json.Marshal(subscribeCmd{
		JSONRPC: "2.0",
		Method:  "public/subscribe",
		Params:  subscribeParams{Channels: []string{"book." + symbol + ".100ms"}},
		ID:      time.Now().UnixMilli(),
	})
}

// Normalize converts one raw Deribit frame into a canonical snapshot.
func Normalize(symbol string, raw []byte) (domain.BookSnapshot, error) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("deribit: %w: %v", domain.ErrDecode, err)
	}

	// RPC responses (subscribe acks, heartbeats) carry an id; only
	// "subscription" notifications carry book data.
	if env.ID != nil || env.Method != "subscription" {
		return domain.BookSnapshot{}, domain.ErrNotBookUpdate
	}
	if !strings.Contains(env.Params.Channel, "book") {
		return domain.BookSnapshot{}, domain.ErrNotBookUpdate
	}
	if env.Params.Data.Bids == nil && env.Params.Data.Asks == nil {
		return domain.BookSnapshot{}, fmt.Errorf("deribit: %w: book frame without data", domain.ErrNormalize)
	}

	return buildSnapshot(symbol, env.Params.Data)
}

// FetchSnapshot performs the one-shot REST fallback request.
func FetchSnapshot(ctx context.Context, client *http.Client, symbol string) (domain.BookSnapshot, error) {
	q := url.Values{"instrument_name": {symbol}, "depth": {restDepth}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, restBooksURL+"?"+q.Encode(), nil)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("deribit: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("deribit: fetch snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.BookSnapshot{}, fmt.Errorf("deribit: fetch snapshot: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("deribit: read snapshot: %w", err)
	}

	var rest restResponse
	if err := json.Unmarshal(body, &rest); err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("deribit: %w: %v", domain.ErrDecode, err)
	}
	if rest.Result.Bids == nil && rest.Result.Asks == nil {
		return domain.BookSnapshot{}, fmt.Errorf("deribit: %w: empty rest book", domain.ErrNormalize)
	}

	return buildSnapshot(symbol, rest.Result)
}

func buildSnapshot(symbol string, data wsBookData) (domain.BookSnapshot, error) {
	bids, err := parseLevels(data.Bids)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("deribit: bids: %w", err)
	}
	asks, err := parseLevels(data.Asks)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("deribit: asks: %w", err)
	}

	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	return domain.BookSnapshot{
		Venue:      domain.VenueDeribit,
		Symbol:     symbol,
		Bids:       bids,
		Asks:       asks,
		ObservedAt: time.Now(),
	}, nil
}

// parseLevels decodes Deribit number-pair levels, dropping zero-quantity rows.
func parseLevels(rows [][]float64) ([]domain.BookLevel, error) {
	levels := make([]domain.BookLevel, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("%w: level with %d fields", domain.ErrNormalize, len(row))
		}
		if row[1] == 0 {
			continue
		}
		levels = append(levels, domain.BookLevel{Price: row[0], Quantity: row[1]})
	}
	return levels, nil
}
