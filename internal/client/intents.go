package client

import (
	"errors"

	"outpost.world/internal/protocol"
	"outpost.world/internal/transport/ws"
	"outpost.world/internal/world"
)

// Input-collaborator intents. Each posts onto the client loop; nothing
// here is locally authoritative — the server confirms or rejects, and
// its answer supersedes whatever we did optimistically.

// PanCamera moves the view by a world-space delta and pushes a
// throttled camera update.
func (c *Client) PanCamera(dx, dy float64) {
	c.post(func(c *Client) {
		c.session.Camera.X += dx
		c.session.Camera.Y += dy
		c.sendCamera()
	})
}

// ZoomCamera scales the view, clamped to the configured bounds.
func (c *Client) ZoomCamera(factor float64) {
	c.post(func(c *Client) {
		z := c.session.Camera.Zoom * factor
		c.session.Camera.Zoom = world.ClampZoom(z, c.cfg.CameraMinZoom, c.cfg.CameraMaxZoom)
		c.sendCamera()
	})
}

// sendCamera fires at most once per throttle window, leading edge;
// coalesced movements within the window are simply dropped.
func (c *Client) sendCamera() {
	if !c.throttle.Allow(c.now()) {
		return
	}
	msg := protocol.UpdateCameraMsg{
		Type:            protocol.TypeUpdateCamera,
		ProtocolVersion: protocol.Version,
		Camera: protocol.CameraState{
			X:    c.session.Camera.X,
			Y:    c.session.Camera.Y,
			Zoom: c.session.Camera.Zoom,
		},
	}
	if err := c.conn.Send(msg); errors.Is(err, ws.ErrNotConnected) {
		c.notice("not connected: camera update dropped")
	}
}

// SelectBuilding enters placement mode for a building kind; empty kind
// cancels it.
func (c *Client) SelectBuilding(kind string) {
	c.post(func(c *Client) {
		c.session.PlacementKind = kind
	})
}

// PlaceBuilding asks the server to place the selected building at a
// world position. Placement mode stays active until the server
// confirms or rejects.
func (c *Client) PlaceBuilding(wx, wy float64) {
	c.post(func(c *Client) {
		kind := c.session.PlacementKind
		if kind == "" {
			c.notice("no building selected")
			return
		}
		msg := protocol.PlaceBuildingMsg{
			Type:            protocol.TypePlaceBuilding,
			ProtocolVersion: protocol.Version,
			Kind:            kind,
			X:               wx,
			Y:               wy,
		}
		if err := c.conn.Send(msg); errors.Is(err, ws.ErrNotConnected) {
			c.notice("not connected: placement dropped")
		}
	})
}

// SendScout asks the server to send a scout toward a world position.
func (c *Client) SendScout(scoutID string, wx, wy float64) {
	c.post(func(c *Client) {
		msg := protocol.SendScoutMsg{
			Type:            protocol.TypeSendScout,
			ProtocolVersion: protocol.Version,
			ScoutID:         scoutID,
			X:               wx,
			Y:               wy,
		}
		if err := c.conn.Send(msg); errors.Is(err, ws.ErrNotConnected) {
			c.notice("not connected: scout order dropped")
		}
	})
}

// Reconnect restarts the connection cycle after the terminal
// reconnect-failed state.
func (c *Client) Reconnect() {
	select {
	case c.reconnect <- struct{}{}:
	default:
	}
}
