package deribit

import "encoding/json"

// wsEnvelope is the outer shape of every frame from the Deribit JSON-RPC
// WebSocket. RPC responses carry ID/Result; subscription data frames carry
// Method == "subscription" and Params.
type wsEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  wsParams        `json:"params"`
}

// wsParams identifies the subscription channel of a data frame.
type wsParams struct {
	Channel string     `json:"channel"`
	Data    wsBookData `json:"data"`
}

// wsBookData holds book rows; levels arrive as number pairs
// [price, quantity].
type wsBookData struct {
	Instrument string      `json:"instrument_name"`
	Bids       [][]float64 `json:"bids"`
	Asks       [][]float64 `json:"asks"`
	Timestamp  int64       `json:"timestamp"`
}

// subscribeCmd is the JSON-RPC payload sent once per successful connect.
type subscribeCmd struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  subscribeParams `json:"params"`
	ID      int64           `json:"id"`
}

type subscribeParams struct {
	Channels []string `json:"channels"`
}

// restResponse is the shape of GET /api/v2/public/get_order_book.
type restResponse struct {
	Result wsBookData `json:"result"`
}
