package bybit

// wsEnvelope is the outer shape of every frame from the Bybit v5 public
// stream. Op acks carry Op/Success; data frames carry Topic + Data.
type wsEnvelope struct {
	Op      string     `json:"op,omitempty"`
	Success *bool      `json:"success,omitempty"`
	RetMsg  string     `json:"ret_msg,omitempty"`
	Topic   string     `json:"topic,omitempty"`
	Type    string     `json:"type,omitempty"`
	Data    wsBookData `json:"data"`
	Ts      int64      `json:"ts,omitempty"`
}

// wsBookData holds book rows; levels arrive as string pairs under the
// short field names "b" and "a".
type wsBookData struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
}

// subscribeCmd is the payload sent once per successful connect.
type subscribeCmd struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// restResponse is the shape of GET /v5/market/orderbook.
type restResponse struct {
	RetCode int        `json:"retCode"`
	RetMsg  string     `json:"retMsg"`
	Result  wsBookData `json:"result"`
}
