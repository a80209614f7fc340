// Package feed maintains one live WebSocket session per venue, keeps it
// subscribed to a symbol's book feed, and normalizes inbound frames into
// canonical snapshots. Venue lifecycles are fully independent: a reconnect
// storm on one venue never delays delivery on another.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/depthlab/bookwatch/internal/domain"
	"github.com/depthlab/bookwatch/internal/venue"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxReconnectDelay caps the exponential backoff between attempts.
	maxReconnectDelay = 60 * time.Second

	// rawBuffer is the capacity of the inbound frame queue between the
	// network read loop and the dispatch goroutine.
	rawBuffer = 256

	// defaultConnectTimeout bounds a single connect attempt, handshake
	// included, so the connecting state can never persist indefinitely.
	defaultConnectTimeout = 15 * time.Second
)

// RawHandler receives every inbound frame, un-interpreted. Handlers run on
// the connection's dispatch goroutine and must not block; non-trivial work
// should be handed off.
type RawHandler func(raw []byte)

// wsSession is the subset of *websocket.Conn the connection uses; tests
// substitute an in-memory implementation.
type wsSession interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Dialer establishes a transport session to a venue endpoint.
type Dialer func(ctx context.Context, url string) (wsSession, error)

// GorillaDialer returns the production Dialer backed by gorilla/websocket.
func GorillaDialer(handshakeTimeout time.Duration) Dialer {
	return func(ctx context.Context, url string) (wsSession, error) {
		d := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
		conn, _, err := d.DialContext(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Conn owns one venue connection lifecycle: dial, subscribe, read, and
// reconnect with capped exponential backoff and jitter. It mutates nothing
// outside its own status; inbound frames are fanned out to registered
// handlers through an internal queue.
type Conn struct {
	spec           venue.Spec
	symbol         string
	dial           Dialer
	connectTimeout time.Duration
	logger         *slog.Logger

	mu      sync.Mutex
	session wsSession
	status  domain.ConnectionStatus

	handlerMu sync.RWMutex
	handlers  []RawHandler

	rawCh    chan []byte
	done     chan struct{}
	doneOnce sync.Once
	stopped  chan struct{}
}

// ConnOptions tunes a single connection beyond its venue Spec.
type ConnOptions struct {
	// Dialer overrides the transport; nil uses GorillaDialer.
	Dialer Dialer
	// ConnectTimeout bounds one connect attempt; zero uses the default.
	ConnectTimeout time.Duration
}

// NewConn creates a connection for one (venue, symbol) pair. Call Start to
// begin the lifecycle.
func NewConn(spec venue.Spec, symbol string, opts ConnOptions, logger *slog.Logger) *Conn {
	dial := opts.Dialer
	if dial == nil {
		dial = GorillaDialer(defaultConnectTimeout)
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	return &Conn{
		spec:           spec,
		symbol:         symbol,
		dial:           dial,
		connectTimeout: timeout,
		logger:         logger,
		status: domain.ConnectionStatus{
			Venue:     spec.ID,
			Symbol:    symbol,
			State:     domain.StateDisconnected,
			ChangedAt: time.Now(),
		},
		rawCh:   make(chan []byte, rawBuffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// OnMessage registers a handler for every inbound frame. Safe to call
// before or after Start.
func (c *Conn) OnMessage(h RawHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handlers = append(c.handlers, h)
}

// Status returns a consistent copy of the connection status.
func (c *Conn) Status() domain.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Start launches the connection lifecycle and dispatch goroutines.
func (c *Conn) Start() {
	go c.dispatchLoop()
	go c.run()
}

// Disconnect flips the intentional-shutdown flag, closes the transport if
// open, and guarantees no further reconnect attempts fire. Idempotent and
// safe to call from any state; the flag flips synchronously even though the
// transport close may complete asynchronously.
func (c *Conn) Disconnect() {
	c.doneOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	if c.session != nil {
		_ = c.session.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		_ = c.session.Close()
		c.session = nil
	}
	c.setStateLocked(domain.StateDisconnected, nil)
	c.mu.Unlock()
}

// Done is closed once the lifecycle goroutine has fully stopped, either by
// Disconnect or by reaching the terminal failed state.
func (c *Conn) Done() <-chan struct{} {
	return c.stopped
}

// Send forwards a payload verbatim to the transport. It is a silent no-op
// unless the connection is currently in the connected state.
func (c *Conn) Send(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.State != domain.StateConnected || c.session == nil {
		return
	}
	_ = c.session.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.session.WriteMessage(websocket.TextMessage, payload)
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// run drives the state machine: Disconnected -> Connecting -> Connected ->
// {Disconnected, Reconnecting -> Connecting -> ...} with the terminal
// Failed state after the reconnect budget is spent.
func (c *Conn) run() {
	defer close(c.stopped)
	defer close(c.rawCh)

	attempt := 0
	for {
		if c.isDone() {
			return
		}

		c.setState(domain.StateConnecting, attempt, nil)
		session, err := c.connectOnce()
		if err == nil {
			attempt = 0
			c.adoptSession(session)
			if c.isDone() {
				return
			}
			c.setState(domain.StateConnected, 0, nil)
			c.logger.Info("venue connected",
				slog.String("venue", string(c.spec.ID)),
				slog.String("symbol", c.symbol),
			)

			readErr := c.readFrames(session)
			c.dropSession()
			if c.isDone() {
				return
			}
			err = readErr
		}

		if c.isDone() {
			return
		}

		attempt++
		if attempt > c.spec.MaxReconnectAttempts {
			failure := fmt.Errorf("%w: %v", domain.ErrExhaustedRetries, err)
			c.setState(domain.StateFailed, attempt-1, failure)
			c.logger.Error("venue failed",
				slog.String("venue", string(c.spec.ID)),
				slog.String("symbol", c.symbol),
				slog.Int("attempts", c.spec.MaxReconnectAttempts),
				slog.String("error", failure.Error()),
			)
			return
		}

		c.setState(domain.StateReconnecting, attempt, err)
		c.logger.Warn("venue disconnected, scheduling reconnect",
			slog.String("venue", string(c.spec.ID)),
			slog.String("symbol", c.symbol),
			slog.Int("attempt", attempt),
			slog.String("error", errString(err)),
		)

		select {
		case <-c.done:
			return
		case <-time.After(backoff(c.spec.ReconnectInterval, attempt)):
		}
	}
}

// connectOnce dials the venue endpoint and sends the subscribe payload.
func (c *Conn) connectOnce() (wsSession, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.connectTimeout)
	defer cancel()

	session, err := c.dial(ctx, c.spec.WSURL)
	if err != nil {
		return nil, err
	}

	_ = session.SetReadDeadline(time.Now().Add(pongWait))
	session.SetPongHandler(func(string) error {
		_ = session.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	payload, err := c.spec.Subscribe(c.symbol)
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	_ = session.SetWriteDeadline(time.Now().Add(writeWait))
	if err := session.WriteMessage(websocket.TextMessage, payload); err != nil {
		_ = session.Close()
		return nil, err
	}

	return session, nil
}

// readFrames pumps inbound frames into the dispatch queue until the
// session errors or the connection is shut down. It also runs the
// keep-alive ping loop for the session's lifetime.
func (c *Conn) readFrames(session wsSession) error {
	pingStop := make(chan struct{})
	defer close(pingStop)
	go c.pingLoop(session, pingStop)

	for {
		_, raw, err := session.ReadMessage()
		if err != nil {
			return err
		}
		select {
		case c.rawCh <- raw:
		case <-c.done:
			return nil
		default:
			// Queue full: drop the oldest pending frame in favor of the
			// newest, which for whole-snapshot feeds is always the one
			// worth keeping.
			select {
			case <-c.rawCh:
			default:
			}
			select {
			case c.rawCh <- raw:
			default:
			}
		}
	}
}

// pingLoop keeps the session alive until it is torn down.
func (c *Conn) pingLoop(session wsSession, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-c.done:
			return
		case <-ticker.C:
			_ = session.SetWriteDeadline(time.Now().Add(writeWait))
			if err := session.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatchLoop fans each queued frame out to all registered handlers,
// decoupling handler timing from the network read loop.
func (c *Conn) dispatchLoop() {
	for raw := range c.rawCh {
		c.handlerMu.RLock()
		handlers := c.handlers
		c.handlerMu.RUnlock()
		for _, h := range handlers {
			h(raw)
		}
	}
}

// --------------------------------------------------------------------------
// Internal state helpers
// --------------------------------------------------------------------------

func (c *Conn) isDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Conn) adoptSession(s wsSession) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	// Disconnect may have raced the dial; close the freshly adopted
	// session rather than leaking it.
	if c.isDone() {
		c.dropSession()
	}
}

func (c *Conn) dropSession() {
	c.mu.Lock()
	if c.session != nil {
		_ = c.session.Close()
		c.session = nil
	}
	c.mu.Unlock()
}

func (c *Conn) setState(state domain.ConnState, attempt int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Disconnect may have won a race with the lifecycle goroutine; a
	// torn-down connection must never report itself alive again.
	if c.isDone() {
		c.setStateLocked(domain.StateDisconnected, nil)
		c.status.Attempt = 0
		return
	}
	c.status.State = state
	c.status.Attempt = attempt
	c.status.LastError = errString(err)
	c.status.ChangedAt = time.Now()
}

func (c *Conn) setStateLocked(state domain.ConnState, err error) {
	c.status.State = state
	c.status.LastError = errString(err)
	c.status.ChangedAt = time.Now()
}

// backoff returns the wait before reconnect attempt n (1-based):
// exponential growth from the venue's base interval, capped, with +-20%
// jitter to avoid synchronized reconnect storms after a shared outage.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 5 * time.Second
	}
	d := base << (attempt - 1)
	if d > maxReconnectDelay || d <= 0 {
		d = maxReconnectDelay
	}
	jitter := 1 + (rand.Float64()*0.4 - 0.2)
	return time.Duration(float64(d) * jitter)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
