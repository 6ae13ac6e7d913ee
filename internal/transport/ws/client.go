package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"outpost.world/internal/protocol"
)

// ConnState is the connection lifecycle. Outbound requests are only
// permitted in StateConnected; everything else drops them.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnectScheduled
	StateReconnectFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnectScheduled:
		return "RECONNECT_SCHEDULED"
	case StateReconnectFailed:
		return "RECONNECT_FAILED"
	default:
		return "UNKNOWN"
	}
}

// ErrNotConnected is returned by Send in any non-connected state. The
// caller surfaces it as a local notice; nothing is queued or replayed,
// since the next successful join refetches authoritative state
// wholesale.
var ErrNotConnected = errors.New("not connected")

// ErrReconnectFailed is the terminal reconnect outcome: the retry
// budget is exhausted and only an explicit new Run recovers.
var ErrReconnectFailed = errors.New("reconnect attempts exhausted")

// transportConn is the subset of *websocket.Conn the client uses,
// injectable for tests.
type transportConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type dialFunc func(ctx context.Context, url string) (transportConn, error)

func gorillaDial(ctx context.Context, url string) (transportConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Inbound is one decoded server message handed to the client loop.
type Inbound struct {
	Base protocol.BaseMessage
	Raw  []byte
}

type Options struct {
	URL        string
	PlayerName string
	WorldID    string

	BaseDelay   time.Duration // first backoff doubles from this
	CapDelay    time.Duration
	MaxAttempts int

	Logger *log.Logger
}

// Client owns the websocket connection lifecycle: dial, read, write,
// and reconnect with bounded exponential backoff. Decoded messages are
// pushed to Inbox; Send is called only from the client loop goroutine.
type Client struct {
	opts Options
	dial dialFunc

	state    atomic.Int32
	failures int // consecutive connect failures, Run goroutine only

	inbox chan Inbound

	mu  sync.Mutex
	out chan []byte // nil while disconnected

	// wait is a test hook around the backoff timer.
	wait func(ctx context.Context, d time.Duration) error
}

func NewClient(opts Options) *Client {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.CapDelay <= 0 {
		opts.CapDelay = 10 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	c := &Client{
		opts:  opts,
		dial:  gorillaDial,
		inbox: make(chan Inbound, 256),
	}
	c.wait = func(ctx context.Context, d time.Duration) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
	return c
}

func (c *Client) Inbox() <-chan Inbound { return c.inbox }

func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Client) setState(s ConnState) {
	c.state.Store(int32(s))
}

// backoffDelay is the schedule for reconnect attempt n (1-based):
// min(base·2ⁿ, cap), so 2000, 4000, 8000, 10000, 10000 ms with the
// defaults.
func (c *Client) backoffDelay(n int) time.Duration {
	d := c.opts.BaseDelay << uint(n)
	if d > c.opts.CapDelay || d <= 0 {
		d = c.opts.CapDelay
	}
	return d
}

// Run drives the connection until ctx is cancelled or the retry budget
// is exhausted. A fresh Run resets the failure counter (the manual
// retry path out of StateReconnectFailed).
func (c *Client) Run(ctx context.Context) error {
	c.failures = 0
	for {
		c.setState(StateConnecting)
		conn, err := c.dial(ctx, c.opts.URL)
		if err != nil {
			if ctx.Err() != nil {
				c.setState(StateDisconnected)
				return ctx.Err()
			}
			if !c.scheduleReconnect(ctx) {
				if ctx.Err() != nil {
					c.setState(StateDisconnected)
					return ctx.Err()
				}
				return ErrReconnectFailed
			}
			continue
		}

		c.failures = 0
		c.setState(StateConnected)
		c.opts.Logger.Printf("connected to %s", c.opts.URL)

		c.session(ctx, conn)

		c.setState(StateDisconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.opts.Logger.Printf("connection lost; reconnecting")
		if !c.scheduleReconnect(ctx) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrReconnectFailed
		}
	}
}

// scheduleReconnect records one more consecutive failure and sleeps
// the backoff delay. It returns false when the budget is exhausted.
func (c *Client) scheduleReconnect(ctx context.Context) bool {
	c.failures++
	if c.failures > c.opts.MaxAttempts {
		c.setState(StateReconnectFailed)
		c.opts.Logger.Printf("reconnect failed after %d attempts", c.opts.MaxAttempts)
		return false
	}
	delay := c.backoffDelay(c.failures)
	c.setState(StateReconnectScheduled)
	c.opts.Logger.Printf("reconnect attempt %d in %s", c.failures, delay)
	if err := c.wait(ctx, delay); err != nil {
		return false
	}
	return true
}

// session runs one connected epoch: join, writer goroutine, read loop.
// Returns when the transport drops.
func (c *Client) session(ctx context.Context, conn transportConn) {
	defer conn.Close()

	out := make(chan []byte, 64)
	c.mu.Lock()
	c.out = out
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.out = nil
		c.mu.Unlock()
	}()

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-sctx.Done():
				return
			case b, ok := <-out:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// Handshake success: ask to join the world immediately.
	join := protocol.JoinWorldMsg{
		Type:            protocol.TypeJoinWorld,
		ProtocolVersion: protocol.Version,
		PlayerName:      c.opts.PlayerName,
		WorldID:         c.opts.WorldID,
	}
	if err := c.Send(join); err != nil {
		return
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			cancel()
			break
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		select {
		case c.inbox <- Inbound{Base: base, Raw: msg}:
		case <-sctx.Done():
			wg.Wait()
			return
		}
	}
	wg.Wait()
}

// Send marshals and queues one outbound message. In any non-connected
// state the message is dropped and ErrNotConnected returned.
func (c *Client) Send(v any) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	out := c.out
	c.mu.Unlock()
	if out == nil {
		return ErrNotConnected
	}
	select {
	case out <- b:
		return nil
	default:
		// Writer stalled; drop rather than block the client loop.
		return ErrNotConnected
	}
}

// CameraThrottle coalesces camera updates to at most one send per
// interval, leading edge: the first movement in a window fires
// immediately, the rest of the window is dropped.
type CameraThrottle struct {
	every   time.Duration
	last    time.Time
	hasLast bool
}

func NewCameraThrottle(every time.Duration) *CameraThrottle {
	return &CameraThrottle{every: every}
}

func (t *CameraThrottle) Allow(now time.Time) bool {
	if !t.hasLast || now.Sub(t.last) >= t.every {
		t.last = now
		t.hasLast = true
		return true
	}
	return false
}
