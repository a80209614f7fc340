package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/depthlab/bookwatch/internal/domain"
)

// BookCache implements domain.SnapshotCache using Redis sorted sets and
// hashes for each book's levels. Snapshots are mirrored wholesale; there is
// no incremental patching.
//
// Key schema:
//
//	book:{venue:symbol}:bids     - sorted set of bid prices (score = price)
//	book:{venue:symbol}:asks     - sorted set of ask prices (score = price)
//	book:{venue:symbol}:bid:qty  - hash mapping price -> quantity for bids
//	book:{venue:symbol}:ask:qty  - hash mapping price -> quantity for asks
//	book:{venue:symbol}:bbo      - hash with fields "bid" and "ask"
//	book:{venue:symbol}:meta     - hash with "ts" field (observation time)
type BookCache struct {
	rdb *redis.Client
}

// NewBookCache creates a BookCache backed by the given Client.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{rdb: c.rdb}
}

func bookBidsKey(key domain.BookKey) string   { return "book:" + key.String() + ":bids" }
func bookAsksKey(key domain.BookKey) string   { return "book:" + key.String() + ":asks" }
func bookBidQtyKey(key domain.BookKey) string { return "book:" + key.String() + ":bid:qty" }
func bookAskQtyKey(key domain.BookKey) string { return "book:" + key.String() + ":ask:qty" }
func bookBBOKey(key domain.BookKey) string    { return "book:" + key.String() + ":bbo" }
func bookMetaKey(key domain.BookKey) string   { return "book:" + key.String() + ":meta" }

// SetSnapshot atomically replaces the mirrored snapshot for a book. It
// clears existing data and repopulates the sorted sets, quantity hashes,
// the BBO hash, and the metadata hash in one transaction.
func (bc *BookCache) SetSnapshot(ctx context.Context, snap domain.BookSnapshot) error {
	key := snap.Key()
	bidsKey := bookBidsKey(key)
	asksKey := bookAsksKey(key)
	bidQtyKey := bookBidQtyKey(key)
	askQtyKey := bookAskQtyKey(key)
	bboKey := bookBBOKey(key)
	metaKey := bookMetaKey(key)

	pipe := bc.rdb.TxPipeline()

	pipe.Del(ctx, bidsKey, asksKey, bidQtyKey, askQtyKey, bboKey, metaKey)

	for _, lvl := range snap.Bids {
		priceStr := strconv.FormatFloat(lvl.Price, 'f', -1, 64)
		qtyStr := strconv.FormatFloat(lvl.Quantity, 'f', -1, 64)
		pipe.ZAdd(ctx, bidsKey, redis.Z{Score: lvl.Price, Member: priceStr})
		pipe.HSet(ctx, bidQtyKey, priceStr, qtyStr)
	}
	for _, lvl := range snap.Asks {
		priceStr := strconv.FormatFloat(lvl.Price, 'f', -1, 64)
		qtyStr := strconv.FormatFloat(lvl.Quantity, 'f', -1, 64)
		pipe.ZAdd(ctx, asksKey, redis.Z{Score: lvl.Price, Member: priceStr})
		pipe.HSet(ctx, askQtyKey, priceStr, qtyStr)
	}

	if bb := snap.BestBid(); bb > 0 {
		pipe.HSet(ctx, bboKey, "bid", strconv.FormatFloat(bb, 'f', -1, 64))
	}
	if ba := snap.BestAsk(); ba > 0 {
		pipe.HSet(ctx, bboKey, "ask", strconv.FormatFloat(ba, 'f', -1, 64))
	}

	pipe.HSet(ctx, metaKey, "ts", strconv.FormatInt(snap.ObservedAt.UnixNano(), 10))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", key, err)
	}
	return nil
}

// GetSnapshot reconstructs a full BookSnapshot from the mirror. It returns
// domain.ErrNotFound when no snapshot has been mirrored for the key.
func (bc *BookCache) GetSnapshot(ctx context.Context, key domain.BookKey) (domain.BookSnapshot, error) {
	pipe := bc.rdb.Pipeline()

	// Bids descending, asks ascending, matching canonical order.
	bidsCmd := pipe.ZRevRangeWithScores(ctx, bookBidsKey(key), 0, -1)
	asksCmd := pipe.ZRangeWithScores(ctx, bookAsksKey(key), 0, -1)
	bidQtyCmd := pipe.HGetAll(ctx, bookBidQtyKey(key))
	askQtyCmd := pipe.HGetAll(ctx, bookAskQtyKey(key))
	metaCmd := pipe.HGetAll(ctx, bookMetaKey(key))

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return domain.BookSnapshot{}, fmt.Errorf("redis: get snapshot %s: %w", key, err)
	}

	metaVals, _ := metaCmd.Result()
	if len(metaVals) == 0 {
		return domain.BookSnapshot{}, domain.ErrNotFound
	}

	snap := domain.BookSnapshot{
		Venue:  key.Venue,
		Symbol: key.Symbol,
	}

	if tsStr, ok := metaVals["ts"]; ok {
		if tsNano, err := strconv.ParseInt(tsStr, 10, 64); err == nil {
			snap.ObservedAt = time.Unix(0, tsNano)
		}
	}

	bidQtys, _ := bidQtyCmd.Result()
	bidsZ, _ := bidsCmd.Result()
	snap.Bids = buildLevels(bidsZ, bidQtys)

	askQtys, _ := askQtyCmd.Result()
	asksZ, _ := asksCmd.Result()
	snap.Asks = buildLevels(asksZ, askQtys)

	return snap, nil
}

// GetBBO retrieves the current best bid and ask from the BBO hash. It
// returns domain.ErrNotFound when no BBO data exists.
func (bc *BookCache) GetBBO(ctx context.Context, key domain.BookKey) (bestBid, bestAsk float64, err error) {
	vals, err := bc.rdb.HGetAll(ctx, bookBBOKey(key)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis: get bbo %s: %w", key, err)
	}
	if len(vals) == 0 {
		return 0, 0, domain.ErrNotFound
	}

	if bidStr, ok := vals["bid"]; ok {
		bestBid, _ = strconv.ParseFloat(bidStr, 64)
	}
	if askStr, ok := vals["ask"]; ok {
		bestAsk, _ = strconv.ParseFloat(askStr, 64)
	}
	return bestBid, bestAsk, nil
}

func buildLevels(zs []redis.Z, qtys map[string]string) []domain.BookLevel {
	levels := make([]domain.BookLevel, 0, len(zs))
	for _, z := range zs {
		priceStr, ok := z.Member.(string)
		if !ok {
			continue
		}
		qty := 0.0
		if qtyStr, exists := qtys[priceStr]; exists {
			qty, _ = strconv.ParseFloat(qtyStr, 64)
		}
		if qty == 0 {
			continue
		}
		levels = append(levels, domain.BookLevel{Price: z.Score, Quantity: qty})
	}
	return levels
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*BookCache)(nil)
