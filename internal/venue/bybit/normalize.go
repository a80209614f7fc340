// Package bybit normalizes Bybit v5 public stream and REST book payloads
// into the canonical snapshot schema. Book levels arrive as string pairs on
// the "orderbook.50" topic.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/depthlab/bookwatch/internal/domain"
)

const (
	// topicPrefix selects the 50-level book stream.
	topicPrefix = "orderbook.50."

	restBooksURL = "https://api.bybit.com/v5/market/orderbook"

	restCategory = "linear"
	restDepth    = "25"
)

// SubscribeMessage builds the orderbook.50 subscribe payload for a symbol.
func SubscribeMessage(symbol string) ([]byte, error) {
	return json.Marshal(subscribeCmd{
		Op:   "subscribe",
		Args: []string{topicPrefix + symbol},
	})
}

// Normalize converts one raw Bybit frame into a canonical snapshot.
func Normalize(symbol string, raw []byte) (domain.BookSnapshot, error) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("bybit: %w: %v", domain.ErrDecode, err)
	}

	// Subscribe acks and pong frames carry "op"/"success" instead of a topic.
	if env.Topic == "" || env.Op != "" {
		return domain.BookSnapshot{}, domain.ErrNotBookUpdate
	}
	if !strings.Contains(env.Topic, "orderbook") {
		return domain.BookSnapshot{}, domain.ErrNotBookUpdate
	}
	if env.Data.Bids == nil && env.Data.Asks == nil {
		return domain.BookSnapshot{}, fmt.Errorf("bybit: %w: orderbook frame without data", domain.ErrNormalize)
	}

	return buildSnapshot(symbol, env.Data)
}

// FetchSnapshot performs the one-shot REST fallback request.
func FetchSnapshot(ctx context.Context, client *http.Client, symbol string) (domain.BookSnapshot, error) {
	q := url.Values{"category": {restCategory}, "symbol": {symbol}, "limit": {restDepth}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, restBooksURL+"?"+q.Encode(), nil)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("bybit: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("bybit: fetch snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.BookSnapshot{}, fmt.Errorf("bybit: fetch snapshot: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("bybit: read snapshot: %w", err)
	}

	var rest restResponse
	if err := json.Unmarshal(body, &rest); err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("bybit: %w: %v", domain.ErrDecode, err)
	}
	if rest.RetCode != 0 {
		return domain.BookSnapshot{}, fmt.Errorf("bybit: fetch snapshot: retCode %d: %s", rest.RetCode, rest.RetMsg)
	}

	return buildSnapshot(symbol, rest.Result)
}

func buildSnapshot(symbol string, data wsBookData) (domain.BookSnapshot, error) {
	bids, err := parseLevels(data.Bids)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("bybit: bids: %w", err)
	}
	asks, err := parseLevels(data.Asks)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("bybit: asks: %w", err)
	}

	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	return domain.BookSnapshot{
		Venue:      domain.VenueBybit,
		Symbol:     symbol,
		Bids:       bids,
		Asks:       asks,
		ObservedAt: time.Now(),
	}, nil
}

// parseLevels decodes Bybit string-pair levels, dropping zero-quantity rows.
func parseLevels(rows [][]string) ([]domain.BookLevel, error) {
	levels := make([]domain.BookLevel, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("%w: level with %d fields", domain.ErrNormalize, len(row))
		}
		price, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: price %q", domain.ErrNormalize, row[0])
		}
		qty, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: quantity %q", domain.ErrNormalize, row[1])
		}
		if qty == 0 {
			continue
		}
		levels = append(levels, domain.BookLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}
