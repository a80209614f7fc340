package feed

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/depthlab/bookwatch/internal/domain"
	"github.com/depthlab/bookwatch/internal/venue"
)

// SnapshotSink receives every successfully normalized snapshot. The sink is
// called on the connection's dispatch goroutine; the book store write it
// performs is non-blocking.
type SnapshotSink func(snap domain.BookSnapshot)

// Manager is the registry of venue connections. It owns at most one Conn
// per venue; switching the symbol for a venue tears the previous connection
// down before the new one starts, so nothing keeps retrying in the
// background. There is no process-global state: the orchestrator owns the
// Manager and the Manager owns the connections.
type Manager struct {
	specs  map[domain.VenueID]venue.Spec
	opts   ConnOptions
	sink   SnapshotSink
	logger *slog.Logger

	mu    sync.Mutex
	conns map[domain.VenueID]*Conn
}

// NewManager creates a Manager over the given venue specs and snapshot sink.
func NewManager(specs map[domain.VenueID]venue.Spec, sink SnapshotSink, opts ConnOptions, logger *slog.Logger) *Manager {
	return &Manager{
		specs:  specs,
		opts:   opts,
		sink:   sink,
		logger: logger.With(slog.String("component", "feed_manager")),
		conns:  make(map[domain.VenueID]*Conn),
	}
}

// Subscribe starts (or restarts) the book feed for a (venue, symbol) pair.
// Any existing connection for the venue is disconnected first. Subscribe is
// also the manual reset path out of the terminal failed state.
func (m *Manager) Subscribe(venueID domain.VenueID, symbol string) error {
	spec, ok := m.specs[venueID]
	if !ok {
		return fmt.Errorf("feed: unknown venue %q", venueID)
	}
	if symbol == "" {
		return fmt.Errorf("feed: empty symbol for venue %q", venueID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.conns[venueID]; ok {
		prev.Disconnect()
	}

	conn := NewConn(spec, symbol, m.opts, m.logger)
	conn.OnMessage(m.normalizeHandler(spec, symbol))
	m.conns[venueID] = conn
	conn.Start()

	m.logger.Info("subscribed",
		slog.String("venue", string(venueID)),
		slog.String("symbol", symbol),
	)
	return nil
}

// Teardown disconnects and removes the venue's connection, if any.
func (m *Manager) Teardown(venueID domain.VenueID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn, ok := m.conns[venueID]; ok {
		conn.Disconnect()
		delete(m.conns, venueID)
	}
}

// Close disconnects every venue.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, conn := range m.conns {
		conn.Disconnect()
		delete(m.conns, id)
	}
}

// Status returns the connection status for one venue.
func (m *Manager) Status(venueID domain.VenueID) (domain.ConnectionStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.conns[venueID]
	if !ok {
		return domain.ConnectionStatus{}, false
	}
	return conn.Status(), true
}

// Statuses returns the status of every active venue connection.
func (m *Manager) Statuses() []domain.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ConnectionStatus, 0, len(m.conns))
	for _, conn := range m.conns {
		out = append(out, conn.Status())
	}
	return out
}

// normalizeHandler builds the per-connection frame handler: normalize, then
// hand the snapshot to the sink. Wrong-channel frames are silently ignored;
// decode and normalization failures are logged and dropped without ever
// touching the connection.
func (m *Manager) normalizeHandler(spec venue.Spec, symbol string) RawHandler {
	return func(raw []byte) {
		snap, err := spec.Normalize(symbol, raw)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotBookUpdate):
				// Heartbeats, acks, other channels: expected and silent.
			case errors.Is(err, domain.ErrDecode):
				m.logger.Debug("dropping undecodable frame",
					slog.String("venue", string(spec.ID)),
					slog.String("error", err.Error()),
				)
			default:
				m.logger.Warn("dropping unnormalizable book frame",
					slog.String("venue", string(spec.ID)),
					slog.String("symbol", symbol),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		m.sink(snap)
	}
}
