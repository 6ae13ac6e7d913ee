package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"outpost.world/internal/protocol"
)

type fakeConn struct {
	mu      sync.Mutex
	written [][]byte

	readGate chan struct{} // closed once a write happened
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{readGate: make(chan struct{})}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	f.written = append(f.written, append([]byte(nil), data...))
	f.mu.Unlock()
	f.once.Do(func() { close(f.readGate) })
	return nil
}

// ReadMessage waits for the first write, then drops the connection.
func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.readGate
	return 0, nil, errors.New("connection reset")
}

func (f *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) Close() error                     { return nil }

func (f *fakeConn) messages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.written))
	copy(out, f.written)
	return out
}

func newTestClient() *Client {
	return NewClient(Options{
		URL:         "ws://test",
		PlayerName:  "settler",
		WorldID:     "frontier_1",
		BaseDelay:   time.Second,
		CapDelay:    10 * time.Second,
		MaxAttempts: 5,
	})
}

func TestBackoffSequenceAndTerminalFailure(t *testing.T) {
	c := newTestClient()
	c.dial = func(context.Context, string) (transportConn, error) {
		return nil, errors.New("refused")
	}
	var delays []time.Duration
	c.wait = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	err := c.Run(context.Background())
	if !errors.Is(err, ErrReconnectFailed) {
		t.Fatalf("Run error = %v, want ErrReconnectFailed", err)
	}
	if c.State() != StateReconnectFailed {
		t.Fatalf("state = %v, want RECONNECT_FAILED", c.State())
	}

	want := []time.Duration{
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		10000 * time.Millisecond,
		10000 * time.Millisecond,
	}
	if len(delays) != len(want) {
		t.Fatalf("scheduled %d attempts (%v), want %d", len(delays), delays, len(want))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("attempt %d delay = %v, want %v", i+1, delays[i], want[i])
		}
	}
}

func TestSuccessfulConnectResetsFailureCounter(t *testing.T) {
	c := newTestClient()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dials := 0
	c.dial = func(context.Context, string) (transportConn, error) {
		dials++
		if dials == 1 {
			return newFakeConn(), nil
		}
		return nil, errors.New("refused")
	}
	var delays []time.Duration
	c.wait = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		if len(delays) >= 2 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	err := c.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	// First failure after a successful epoch starts the schedule over.
	if len(delays) < 1 || delays[0] != 2000*time.Millisecond {
		t.Fatalf("delays after reconnect = %v, want first 2s", delays)
	}
}

func TestSessionSendsJoinWorldOnConnect(t *testing.T) {
	c := newTestClient()
	conn := newFakeConn()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.dial = func(context.Context, string) (transportConn, error) {
		return conn, nil
	}
	c.wait = func(context.Context, time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_ = c.Run(ctx)

	msgs := conn.messages()
	if len(msgs) == 0 {
		t.Fatalf("nothing written on connect")
	}
	var join protocol.JoinWorldMsg
	if err := json.Unmarshal(msgs[0], &join); err != nil {
		t.Fatalf("decode join: %v", err)
	}
	if join.Type != protocol.TypeJoinWorld || join.PlayerName != "settler" || join.WorldID != "frontier_1" {
		t.Fatalf("unexpected join payload: %+v", join)
	}
}

func TestSendDroppedWhileNotConnected(t *testing.T) {
	c := newTestClient()
	if err := c.Send(struct{}{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send while disconnected = %v, want ErrNotConnected", err)
	}
	c.setState(StateReconnectScheduled)
	if err := c.Send(struct{}{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send while scheduled = %v, want ErrNotConnected", err)
	}
}

func TestConnStateStrings(t *testing.T) {
	cases := map[ConnState]string{
		StateDisconnected:       "DISCONNECTED",
		StateConnecting:         "CONNECTING",
		StateConnected:          "CONNECTED",
		StateReconnectScheduled: "RECONNECT_SCHEDULED",
		StateReconnectFailed:    "RECONNECT_FAILED",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Fatalf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}

func TestCameraThrottle_LeadingEdge(t *testing.T) {
	th := NewCameraThrottle(100 * time.Millisecond)
	base := time.Unix(0, 0)

	sent := 0
	for i := 0; i < 10; i++ {
		if th.Allow(base.Add(time.Duration(i) * 5 * time.Millisecond)) {
			sent++
		}
	}
	if sent != 1 {
		t.Fatalf("%d sends within one window, want 1", sent)
	}

	if !th.Allow(base.Add(100 * time.Millisecond)) {
		t.Fatalf("movement after the window did not fire")
	}
}
