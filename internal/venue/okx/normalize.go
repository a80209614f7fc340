// Package okx normalizes OKX public WebSocket and REST book payloads into
// the canonical snapshot schema. Book levels arrive as string pairs on the
// "books5" channel.
package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/depthlab/bookwatch/internal/domain"
)

const (
	// bookChannel is the top-5 full-snapshot book channel.
	bookChannel = "books5"

	// restBooksURL is the one-shot snapshot fallback endpoint.
	restBooksURL = "https://www.okx.com/api/v5/market/books"

	restDepth = "20"
)

// SubscribeMessage builds the books5 subscribe payload for a symbol.
func SubscribeMessage(symbol string) ([]byte, error) {
	return json.Marshal(subscribeCmd{
		Op:   "subscribe",
		Args: []wsArg{{Channel: bookChannel, InstID: symbol}},
	})
}

// Normalize converts one raw OKX frame into a canonical snapshot.
func Normalize(symbol string, raw []byte) (domain.BookSnapshot, error) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("okx: %w: %v", domain.ErrDecode, err)
	}

	// Subscribe acks and error events carry an "event" field.
	if env.Event != "" {
		return domain.BookSnapshot{}, domain.ErrNotBookUpdate
	}
	if env.Arg.Channel != bookChannel {
		return domain.BookSnapshot{}, domain.ErrNotBookUpdate
	}
	if len(env.Data) == 0 {
		return domain.BookSnapshot{}, fmt.Errorf("okx: %w: books5 frame without data", domain.ErrNormalize)
	}

	return buildSnapshot(symbol, env.Data[0])
}

// FetchSnapshot performs the one-shot REST fallback request.
func FetchSnapshot(ctx context.Context, client *http.Client, symbol string) (domain.BookSnapshot, error) {
	q := url.Values{"instId": {symbol}, "sz": {restDepth}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, restBooksURL+"?"+q.Encode(), nil)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("okx: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("okx: fetch snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.BookSnapshot{}, fmt.Errorf("okx: fetch snapshot: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("okx: read snapshot: %w", err)
	}

	var rest restResponse
	if err := json.Unmarshal(body, &rest); err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("okx: %w: %v", domain.ErrDecode, err)
	}
	if len(rest.Data) == 0 {
		return domain.BookSnapshot{}, fmt.Errorf("okx: %w: empty rest book", domain.ErrNormalize)
	}

	return buildSnapshot(symbol, rest.Data[0])
}

func buildSnapshot(symbol string, data wsBookData) (domain.BookSnapshot, error) {
	bids, err := parseLevels(data.Bids)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("okx: bids: %w", err)
	}
	asks, err := parseLevels(data.Asks)
	if err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("okx: asks: %w", err)
	}

	// Venue ordering is not trusted.
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	return domain.BookSnapshot{
		Venue:      domain.VenueOKX,
		Symbol:     symbol,
		Bids:       bids,
		Asks:       asks,
		ObservedAt: time.Now(),
	}, nil
}

// parseLevels decodes OKX string-pair levels, dropping zero-quantity rows.
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
