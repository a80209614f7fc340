package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/depthlab/bookwatch/internal/domain"
	"github.com/depthlab/bookwatch/internal/venue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSpec(maxAttempts int) venue.Spec {
	return venue.Spec{
		ID:                   domain.VenueOKX,
		WSURL:                "wss://example.invalid/ws",
		ReconnectInterval:    time.Millisecond,
		MaxReconnectAttempts: maxAttempts,
		Subscribe: func(symbol string) ([]byte, error) {
			return json.Marshal(map[string]string{"subscribe": symbol})
		},
	}
}

// fakeSession is an in-memory wsSession fed by a frames channel.
type fakeSession struct {
	frames chan []byte

	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{frames: make(chan []byte, 16)}
}

func (s *fakeSession) ReadMessage() (int, []byte, error) {
	raw, ok := <-s.frames
	if !ok {
		return 0, nil, errors.New("session closed")
	}
	return 1, raw, nil
}

func (s *fakeSession) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("write on closed session")
	}
	s.writes = append(s.writes, append([]byte(nil), data...))
	return nil
}

func (s *fakeSession) SetReadDeadline(time.Time) error  { return nil }
func (s *fakeSession) SetWriteDeadline(time.Time) error { return nil }
func (s *fakeSession) SetPongHandler(func(string) error) {}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	return nil
}

func waitForState(t *testing.T, c *Conn, want domain.ConnState) domain.ConnectionStatus {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st := c.Status(); st.State == want {
			return st
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, current %s", want, c.Status().State)
	return domain.ConnectionStatus{}
}

func TestConnFailsAfterExhaustingReconnects(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	dialer := func(ctx context.Context, url string) (wsSession, error) {
		mu.Lock()
		dials++
		mu.Unlock()
		return nil, errors.New("connection refused")
	}

	const maxAttempts = 3
	c := NewConn(testSpec(maxAttempts), "BTC-USDT", ConnOptions{Dialer: dialer}, testLogger())
	c.Start()

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not stop")
	}

	st := c.Status()
	if st.State != domain.StateFailed {
		t.Fatalf("state = %s, want failed", st.State)
	}
	if st.Attempt != maxAttempts {
		t.Fatalf("attempt = %d, want %d", st.Attempt, maxAttempts)
	}
	if !strings.Contains(st.LastError, domain.ErrExhaustedRetries.Error()) {
		t.Fatalf("last error = %q, want it to mention %q", st.LastError, domain.ErrExhaustedRetries)
	}

	// Initial connect plus one dial per reconnect attempt.
	mu.Lock()
	defer mu.Unlock()
	if dials != maxAttempts+1 {
		t.Fatalf("dials = %d, want %d", dials, maxAttempts+1)
	}
}

func TestConnDeliversFramesAndSubscribes(t *testing.T) {
	session := newFakeSession()
	dialer := func(ctx context.Context, url string) (wsSession, error) {
		return session, nil
	}

	c := NewConn(testSpec(3), "BTC-USDT", ConnOptions{Dialer: dialer}, testLogger())

	received := make(chan []byte, 1)
	c.OnMessage(func(raw []byte) {
		select {
		case received <- raw:
		default:
		}
	})
	c.Start()
	defer c.Disconnect()

	waitForState(t, c, domain.StateConnected)

	session.mu.Lock()
	if len(session.writes) == 0 {
		session.mu.Unlock()
		t.Fatal("subscribe payload never sent")
	}
	sub := string(session.writes[0])
	session.mu.Unlock()
	if sub != `{"subscribe":"BTC-USDT"}` {
		t.Fatalf("subscribe payload = %s", sub)
	}

	session.frames <- []byte(`{"data":"frame"}`)
	select {
	case raw := <-received:
		if string(raw) != `{"data":"frame"}` {
			t.Fatalf("frame = %s", raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frame never dispatched")
	}
}

func TestConnReconnectsAfterReadError(t *testing.T) {
	var mu sync.Mutex
	sessions := []*fakeSession{}
	dialer := func(ctx context.Context, url string) (wsSession, error) {
		s := newFakeSession()
		mu.Lock()
		sessions = append(sessions, s)
		mu.Unlock()
		return s, nil
	}

	c := NewConn(testSpec(5), "BTC-USDT", ConnOptions{Dialer: dialer}, testLogger())
	c.Start()
	defer c.Disconnect()

	waitForState(t, c, domain.StateConnected)

	// Kill the first session; the conn must dial again and recover.
	mu.Lock()
	first := sessions[0]
	mu.Unlock()
	first.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(sessions)
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no reconnect dial after read error")
		}
		time.Sleep(time.Millisecond)
	}

	st := waitForState(t, c, domain.StateConnected)
	if st.Attempt != 0 {
		t.Fatalf("attempt after recovery = %d, want 0", st.Attempt)
	}
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	dialer := func(ctx context.Context, url string) (wsSession, error) {
		return nil, errors.New("connection refused")
	}

	spec := testSpec(5)
	spec.ReconnectInterval = time.Hour // would block forever if not cancelled

	c := NewConn(spec, "BTC-USDT", ConnOptions{Dialer: dialer}, testLogger())
	c.Start()

	waitForState(t, c, domain.StateReconnecting)
	c.Disconnect()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect did not cancel the pending reconnect")
	}
	if st := c.Status(); st.State != domain.StateDisconnected {
		t.Fatalf("state = %s, want disconnected", st.State)
	}
}

func TestDisconnectDuringDial(t *testing.T) {
	session := newFakeSession()
	dialStarted := make(chan struct{})
	release := make(chan struct{})
	dialer := func(ctx context.Context, url string) (wsSession, error) {
		close(dialStarted)
		<-release
		return session, nil
	}

	c := NewConn(testSpec(3), "BTC-USDT", ConnOptions{Dialer: dialer}, testLogger())
	c.Start()

	// Tear down while the dial is still in flight, then let it complete.
	<-dialStarted
	c.Disconnect()
	close(release)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle did not stop after disconnect")
	}

	if st := c.Status(); st.State != domain.StateDisconnected {
		t.Fatalf("after disconnect, state = %s, want disconnected", st.State)
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if !session.closed {
		t.Fatal("late-dialed session never closed")
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	session := newFakeSession()
	dialer := func(ctx context.Context, url string) (wsSession, error) {
		return session, nil
	}

	c := NewConn(testSpec(3), "BTC-USDT", ConnOptions{Dialer: dialer}, testLogger())
	c.Start()
	waitForState(t, c, domain.StateConnected)

	c.Disconnect()
	c.Disconnect()
	<-c.Done()

	if st := c.Status(); st.State != domain.StateDisconnected {
		t.Fatalf("state = %s, want disconnected", st.State)
	}
}

func TestSendIgnoredWhenNotConnected(t *testing.T) {
	c := NewConn(testSpec(3), "BTC-USDT", ConnOptions{Dialer: func(ctx context.Context, url string) (wsSession, error) {
		return nil, errors.New("connection refused")
	}}, testLogger())

	// Never started; must not panic.
	c.Send([]byte("payload"))
}

func TestBackoffCappedAndJittered(t *testing.T) {
	base := 5 * time.Second
	for attempt := 1; attempt <= 20; attempt++ {
		d := backoff(base, attempt)
		if d <= 0 {
			t.Fatalf("attempt %d: non-positive backoff %s", attempt, d)
		}
		// Cap plus 20% jitter headroom.
		if d > time.Duration(float64(maxReconnectDelay)*1.2) {
			t.Fatalf("attempt %d: backoff %s exceeds cap", attempt, d)
		}
	}
}
