package client

import (
	"outpost.world/internal/protocol"
	"outpost.world/internal/transport/ws"
	"outpost.world/internal/world"
)

// ChunkView is one resident chunk for the rendering collaborator.
// Layer slices are shared, not copied: chunks never mutate after
// creation.
type ChunkView struct {
	Key     world.ChunkKey
	OriginX float64
	OriginY float64
	Size    int
	Base    []uint16
	Detail  []uint16
}

// RenderSnapshot is the pull contract with the rendering collaborator:
// everything it needs to draw one frame, copied or immutable, with no
// way back into core state.
type RenderSnapshot struct {
	ConnState ws.ConnState
	WorldID   string
	PlayerID  string

	Resources  protocol.Resources
	Population int
	Camera     world.Camera

	Chunks    []ChunkView
	Fog       map[string][]uint8
	Buildings []protocol.Building
	Scouts    []protocol.Scout
	Peers     []world.Peer
	Notices   []Notice

	PlacementKind string
}

// Snapshot builds a render snapshot on the client loop. Safe to call
// from any goroutine.
func (c *Client) Snapshot() RenderSnapshot {
	reply := make(chan RenderSnapshot, 1)
	c.snapshotReq <- reply
	return <-reply
}

func (c *Client) buildSnapshot() RenderSnapshot {
	keys := c.cache.Keys()
	chunks := make([]ChunkView, 0, len(keys))
	fog := make(map[string][]uint8, len(keys))
	for _, k := range keys {
		ch, ok := c.cache.Get(k)
		if !ok {
			continue
		}
		chunks = append(chunks, ChunkView{
			Key:     ch.Key,
			OriginX: ch.OriginX,
			OriginY: ch.OriginY,
			Size:    ch.Size,
			Base:    ch.Base,
			Detail:  ch.Detail,
		})
		if m, ok := c.fog.MaskSnapshot(k); ok {
			fog[k.String()] = m
		}
	}

	return RenderSnapshot{
		ConnState:     c.conn.State(),
		WorldID:       c.session.WorldID,
		PlayerID:      c.session.PlayerID,
		Resources:     c.session.Resources,
		Population:    c.session.Population,
		Camera:        c.session.Camera,
		Chunks:        chunks,
		Fog:           fog,
		Buildings:     append([]protocol.Building(nil), c.session.Buildings...),
		Scouts:        append([]protocol.Scout(nil), c.session.Scouts...),
		Peers:         c.roster.Peers(),
		Notices:       append([]Notice(nil), c.notices...),
		PlacementKind: c.session.PlacementKind,
	}
}
