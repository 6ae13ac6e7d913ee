package client

import (
	"context"
	"log"
	"time"

	"outpost.world/internal/config"
	"outpost.world/internal/persistence/fogcache"
	"outpost.world/internal/persistence/journal"
	"outpost.world/internal/protocol"
	"outpost.world/internal/transport/ws"
	"outpost.world/internal/world"
)

// Notice is a local-only user-facing message (rejection reasons,
// dropped requests, transport status).
type Notice struct {
	At   time.Time
	Text string
}

const maxNotices = 32

// Client is the application context: it owns the chunk cache, fog
// engine, session state, peer roster and transport, and runs the
// single-writer loop that every tick and network callback goes
// through. No other goroutine mutates this state.
type Client struct {
	cfg    config.Config
	logger *log.Logger

	cache   *world.ChunkCache
	fog     *world.FogEngine
	session *world.Session
	roster  *world.PeerRoster

	conn     *ws.Client
	throttle *ws.CameraThrottle

	journal *journal.Journal // may be nil
	store   *fogcache.Store  // may be nil

	commands    chan func(*Client)
	snapshotReq chan chan RenderSnapshot
	reconnect   chan struct{}

	ticksSinceSave int
	notices        []Notice

	now func() time.Time
}

func New(cfg config.Config, conn *ws.Client, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		cfg:         cfg,
		logger:      logger,
		cache:       world.NewChunkCache(cfg.ChunkSize, cfg.LoadRadius),
		fog:         world.NewFogEngine(cfg.ChunkSize),
		session:     world.NewSession(),
		roster:      world.NewPeerRoster(),
		conn:        conn,
		throttle:    ws.NewCameraThrottle(time.Duration(cfg.CameraSendIntervalMs) * time.Millisecond),
		commands:    make(chan func(*Client), 64),
		snapshotReq: make(chan chan RenderSnapshot),
		reconnect:   make(chan struct{}, 1),
		now:         time.Now,
	}
}

// WithJournal attaches the inbound-event journal.
func (c *Client) WithJournal(j *journal.Journal) *Client {
	c.journal = j
	return c
}

// WithStore attaches the local fog/session cache. Previously cached
// fog and session are restored immediately so the explored area
// renders and the camera starts where the player left off, before the
// server snapshot arrives; the snapshot supersedes both wholesale.
func (c *Client) WithStore(s *fogcache.Store) *Client {
	c.store = s
	if s == nil || c.cfg.WorldID == "" {
		return c
	}
	if snap, err := s.LoadSession(c.cfg.WorldID); err != nil {
		c.logger.Printf("session cache load: %v", err)
	} else if snap != nil {
		c.session.ApplySnapshot(snap)
	}
	if fog, err := s.LoadFog(c.cfg.WorldID); err != nil {
		c.logger.Printf("fog cache load: %v", err)
	} else if len(fog) > 0 {
		if err := c.fog.Restore(fog); err != nil {
			c.logger.Printf("fog cache restore: %v", err)
		}
	}
	return c
}

// Run drives the transport and the tick loop until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	go c.runTransport(ctx)

	interval := time.Second / time.Duration(c.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.persistFog()
			return ctx.Err()
		case cmd := <-c.commands:
			cmd(c)
		case reply := <-c.snapshotReq:
			reply <- c.buildSnapshot()
		case in := <-c.conn.Inbox():
			c.dispatch(in)
		case <-ticker.C:
			c.tick(c.now())
		}
	}
}

// runTransport keeps the connection alive. The terminal
// ReconnectFailed state is reported and waits for an explicit
// Reconnect command before a fresh attempt cycle.
func (c *Client) runTransport(ctx context.Context) {
	for {
		err := c.conn.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == ws.ErrReconnectFailed {
			c.post(func(c *Client) {
				c.notice("connection lost: reconnect attempts exhausted")
			})
			select {
			case <-ctx.Done():
				return
			case <-c.reconnect:
			}
			continue
		}
		return
	}
}

// post queues work onto the client loop.
func (c *Client) post(fn func(*Client)) {
	select {
	case c.commands <- fn:
	default:
		c.logger.Printf("command queue full; dropping")
	}
}

func (c *Client) notice(text string) {
	c.notices = append(c.notices, Notice{At: c.now(), Text: text})
	if len(c.notices) > maxNotices {
		c.notices = c.notices[len(c.notices)-maxNotices:]
	}
	c.logger.Printf("notice: %s", text)
}

// tick is one simulation step: streaming pass, fog advance, debounced
// fog save. Chunk requests silently skip while disconnected and retry
// next pass once the connection is back.
func (c *Client) tick(now time.Time) {
	request, evicted := c.cache.Recompute(c.session.Camera.X, c.session.Camera.Y)
	for _, k := range evicted {
		c.fog.Drop(k)
	}
	if len(request) > 0 {
		coords := make([][2]int, len(request))
		for i, k := range request {
			coords[i] = [2]int{k.CX, k.CY}
		}
		msg := protocol.RequestChunksMsg{
			Type:            protocol.TypeRequestChunks,
			ProtocolVersion: protocol.Version,
			Coords:          coords,
		}
		if err := c.conn.Send(msg); err == nil {
			c.cache.MarkRequested(request)
		}
	}

	c.fog.Tick(now)

	c.ticksSinceSave++
	if c.ticksSinceSave >= c.cfg.FogSaveEveryTicks {
		c.ticksSinceSave = 0
		if c.fog.Dirty() {
			c.persistFog()
		}
	}
}

// persistFog pushes the current masks to the server and the local
// cache. Send failure leaves the dirty flag set so the next debounce
// window retries.
func (c *Client) persistFog() {
	blob := c.fog.Serialize()
	if len(blob) == 0 {
		return
	}
	msg := protocol.SaveFogMsg{
		Type:            protocol.TypeSaveFog,
		ProtocolVersion: protocol.Version,
		Fog:             blob,
	}
	if err := c.conn.Send(msg); err != nil {
		return
	}
	if c.store != nil && c.session.WorldID != "" {
		c.store.SaveFog(c.session.WorldID, blob)
	}
	c.fog.MarkSaved()
}
