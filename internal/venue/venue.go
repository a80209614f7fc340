// Package venue binds each supported exchange to its wire-level behavior:
// WebSocket endpoint, subscribe payload, message normalization, and the
// one-shot REST fallback. Adding a venue means adding one subpackage and one
// Spec entry here; existing venues are never touched.
package venue

import (
	"context"
	"net/http"
	"time"

	"github.com/depthlab/bookwatch/internal/domain"
	"github.com/depthlab/bookwatch/internal/venue/bybit"
	"github.com/depthlab/bookwatch/internal/venue/deribit"
	"github.com/depthlab/bookwatch/internal/venue/okx"
)

// NormalizeFunc converts one raw inbound frame into a canonical snapshot.
// It returns domain.ErrNotBookUpdate for frames on other channels (acks,
// heartbeats), domain.ErrDecode for unparseable payloads, and
// domain.ErrNormalize for book frames missing expected fields.
type NormalizeFunc func(symbol string, raw []byte) (domain.BookSnapshot, error)

// SubscribeFunc builds the venue-specific subscribe payload for a symbol.
type SubscribeFunc func(symbol string) ([]byte, error)

// FetchFunc performs the one-shot REST snapshot request for a symbol.
type FetchFunc func(ctx context.Context, client *http.Client, symbol string) (domain.BookSnapshot, error)

// Spec is the full wire contract for one venue.
type Spec struct {
	ID                   domain.VenueID
	WSURL                string
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int

	Subscribe SubscribeFunc
	Normalize NormalizeFunc
	FetchREST FetchFunc
}

// Defaults returns the reference Spec for every supported venue. Endpoints
// and retry policy are overridable via configuration before the feed
// manager is built.
func Defaults() map[domain.VenueID]Spec {
	return map[domain.VenueID]Spec{
		domain.VenueOKX: {
			ID:                   domain.VenueOKX,
			WSURL:                "wss://ws.okx.com:8443/ws/v5/public",
			ReconnectInterval:    5 * time.Second,
			MaxReconnectAttempts: 5,
			Subscribe:            okx.SubscribeMessage,
			Normalize:            okx.Normalize,
			FetchREST:            okx.FetchSnapshot,
		},
		domain.VenueBybit: {
			ID:                   domain.VenueBybit,
			WSURL:                "wss://stream.bybit.com/v5/public/linear",
			ReconnectInterval:    5 * time.Second,
			MaxReconnectAttempts: 5,
			Subscribe:            bybit.SubscribeMessage,
			Normalize:            bybit.Normalize,
			FetchREST:            bybit.FetchSnapshot,
		},
		domain.VenueDeribit: {
			ID:                   domain.VenueDeribit,
			WSURL:                "wss://www.deribit.com/ws/api/v2",
			ReconnectInterval:    5 * time.Second,
			MaxReconnectAttempts: 5,
			Subscribe:            deribit.SubscribeMessage,
			Normalize:            deribit.Normalize,
			FetchREST:            deribit.FetchSnapshot,
		},
	}
}
