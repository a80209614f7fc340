package okx

// wsEnvelope is the outer shape of every frame from the OKX public
// WebSocket. Event frames (subscribe acks, errors) carry Event; data frames
// carry Arg + Data.
type wsEnvelope struct {
	Event string `json:"event,omitempty"`
	Code  string `json:"code,omitempty"`
	Msg   string `json:"msg,omitempty"`
	Arg   wsArg  `json:"arg"`
	// Data holds book rows; levels arrive as string pairs
	// ["price", "quantity", ...].
	Data []wsBookData `json:"data"`
}

// wsArg identifies the channel and instrument of a data frame.
type wsArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// wsBookData is one book row inside a books5 data frame.
type wsBookData struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
	Ts   string     `json:"ts"`
}

// subscribeCmd is the payload sent once per successful connect.
type subscribeCmd struct {
	Op   string  `json:"op"`
	Args []wsArg `json:"args"`
}

// restResponse is the shape of GET /api/v5/market/books.
type restResponse struct {
	Code string       `json:"code"`
	Msg  string       `json:"msg"`
	Data []wsBookData `json:"data"`
}
