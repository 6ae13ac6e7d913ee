package client

import (
	"encoding/json"
	"time"

	"outpost.world/internal/protocol"
	"outpost.world/internal/transport/ws"
	"outpost.world/internal/world"
)

// dispatch applies one inbound server message against current state.
// Deliveries are unordered and arbitrarily delayed; every branch is
// written to be safe against state that moved on since the request.
func (c *Client) dispatch(in ws.Inbound) {
	if c.journal != nil {
		if err := c.journal.WriteEvent(in.Base.Type, in.Raw); err != nil {
			c.logger.Printf("journal: %v", err)
		}
	}

	switch in.Base.Type {
	case protocol.TypeWorldJoined:
		var m protocol.WorldJoinedMsg
		if err := json.Unmarshal(in.Raw, &m); err != nil {
			c.logger.Printf("decode %s: %v", in.Base.Type, err)
			return
		}
		c.handleWorldJoined(&m)

	case protocol.TypePlayerJoined:
		var m protocol.PlayerJoinedMsg
		if err := json.Unmarshal(in.Raw, &m); err != nil {
			return
		}
		if m.Peer.ID != "" && m.Peer.ID != c.session.PlayerID {
			c.roster.Add(m.Peer)
		}

	case protocol.TypePlayerLeft:
		var m protocol.PlayerLeftMsg
		if err := json.Unmarshal(in.Raw, &m); err != nil {
			return
		}
		c.roster.Remove(m.PlayerID)
		c.session.RemoveBuildingsOwnedBy(m.PlayerID)

	case protocol.TypePlayerUpdated:
		var m protocol.PlayerUpdatedMsg
		if err := json.Unmarshal(in.Raw, &m); err != nil {
			return
		}
		// Authoritative replacement for the local player; peers only
		// mirror camera/name, and unknown ids are out-of-order noise.
		if m.PlayerID == c.session.PlayerID {
			c.session.ApplyPlayerUpdate(&m)
		}

	case protocol.TypePlayerCamera:
		var m protocol.PlayerCameraMsg
		if err := json.Unmarshal(in.Raw, &m); err != nil {
			return
		}
		c.roster.UpdateCamera(m.PlayerID, m.Camera)

	case protocol.TypeBuildingPlaced:
		var m protocol.BuildingPlacedMsg
		if err := json.Unmarshal(in.Raw, &m); err != nil {
			return
		}
		switch {
		case m.ActorID == c.session.PlayerID:
			c.session.ApplyOwnPlacement(&m)
		case c.roster.Has(m.ActorID):
			c.session.ApplyPeerPlacement(&m)
		default:
			// Update for a peer we never saw join; ignore rather than
			// synthesize a partial record.
		}

	case protocol.TypeBuildingRejected:
		var m protocol.BuildingRejectedMsg
		if err := json.Unmarshal(in.Raw, &m); err != nil {
			return
		}
		c.session.PlacementKind = ""
		c.notice("building rejected: " + m.Reason)

	case protocol.TypeScoutSent:
		var m protocol.ScoutSentMsg
		if err := json.Unmarshal(in.Raw, &m); err != nil {
			return
		}
		if m.ActorID == c.session.PlayerID {
			c.session.Scouts = append(c.session.Scouts[:0], m.Scouts...)
		}

	case protocol.TypeScoutRejected:
		var m protocol.ScoutRejectedMsg
		if err := json.Unmarshal(in.Raw, &m); err != nil {
			return
		}
		c.notice("scout rejected: " + m.Reason)

	case protocol.TypeChunksData:
		var m protocol.ChunksDataMsg
		if err := json.Unmarshal(in.Raw, &m); err != nil {
			return
		}
		for _, p := range m.Chunks {
			ch, err := c.cache.Insert(p)
			if err != nil {
				c.logger.Printf("insert chunk: %v", err)
				continue
			}
			c.fog.EnsureMask(ch.Key)
		}

	case protocol.TypeAreaExplored:
		var m protocol.AreaExploredMsg
		if err := json.Unmarshal(in.Raw, &m); err != nil {
			return
		}
		dur := time.Duration(m.DurationMs) * time.Millisecond
		if dur <= 0 {
			dur = time.Duration(c.cfg.RevealDurationMs) * time.Millisecond
		}
		c.fog.ApplyReveal(m.X, m.Y, m.Radius, dur, c.now())
		k := world.WorldToChunk(m.X, m.Y, c.cache.ChunkSize())
		c.session.Explored[k.String()] = struct{}{}

	case protocol.TypeError:
		var m protocol.ErrorMsg
		if err := json.Unmarshal(in.Raw, &m); err != nil {
			return
		}
		if !protocol.IsKnownCode(m.Code) {
			c.logger.Printf("unknown error code %q", m.Code)
		}
		c.notice("server error: " + m.Message)

	default:
		c.logger.Printf("unhandled message type %q", in.Base.Type)
	}
}

// handleWorldJoined applies the full authoritative snapshot. World
// params may differ from the local config (the server decides chunk
// extent and load radius); the cache and fog engine are rebuilt when
// they do, and persisted fog is restored afterwards so masks exist
// before their terrain arrives.
func (c *Client) handleWorldJoined(m *protocol.WorldJoinedMsg) {
	if m.WorldParams.ChunkSize > 0 && m.WorldParams.ChunkSize != c.cache.ChunkSize() {
		radius := c.cache.LoadRadius()
		if m.WorldParams.LoadRadius > 0 {
			radius = m.WorldParams.LoadRadius
		}
		c.cache = world.NewChunkCache(m.WorldParams.ChunkSize, radius)
		c.fog = world.NewFogEngine(m.WorldParams.ChunkSize)
	} else if m.WorldParams.LoadRadius > 0 && m.WorldParams.LoadRadius != c.cache.LoadRadius() {
		c.cache = world.NewChunkCache(c.cache.ChunkSize(), m.WorldParams.LoadRadius)
	}

	c.session.ApplySnapshot(m)
	c.roster.Reset(m.Peers)
	if len(m.Fog) > 0 {
		if err := c.fog.Restore(m.Fog); err != nil {
			c.logger.Printf("fog restore: %v", err)
		}
	}
	c.logger.Printf("joined world %s as %s (%d peers)", c.session.WorldID, c.session.PlayerID, c.roster.Len())

	if c.store != nil && c.session.WorldID != "" {
		c.store.SaveSession(c.session.WorldID, m)
	}
}
