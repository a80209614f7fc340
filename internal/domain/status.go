package domain

import "time"

// ConnState is the lifecycle state of one venue connection.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	// StateFailed is terminal: the connection exhausted its reconnect budget
	// and will not retry until explicitly reset.
	StateFailed ConnState = "failed"
)

// ConnectionStatus is a consistent point-in-time view of one venue
// connection. It is a value copy; callers never observe a transition in
// progress.
type ConnectionStatus struct {
	Venue     VenueID   `json:"venue"`
	Symbol    string    `json:"symbol"`
	State     ConnState `json:"state"`
	Attempt   int       `json:"attempt"`
	LastError string    `json:"last_error,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}
