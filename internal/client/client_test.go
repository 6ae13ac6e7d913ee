package client

import (
	"encoding/json"
	"testing"
	"time"

	"outpost.world/internal/config"
	"outpost.world/internal/encoding"
	"outpost.world/internal/protocol"
	"outpost.world/internal/transport/ws"
	"outpost.world/internal/world"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := config.Defaults()
	cfg.ChunkSize = 16
	conn := ws.NewClient(ws.Options{URL: "ws://test"})
	return New(cfg, conn, nil)
}

func inbound(t *testing.T, v any) ws.Inbound {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		t.Fatalf("decode base: %v", err)
	}
	return ws.Inbound{Base: base, Raw: raw}
}

func joinWorld(t *testing.T, c *Client) {
	t.Helper()
	c.dispatch(inbound(t, protocol.WorldJoinedMsg{
		Type:            protocol.TypeWorldJoined,
		ProtocolVersion: protocol.Version,
		PlayerID:        "P1",
		WorldParams:     protocol.WorldParams{WorldID: "frontier_1", ChunkSize: 16, LoadRadius: 3, TickRateHz: 10},
		Resources:       protocol.Resources{Food: 100, Wood: 100, Iron: 50, Gold: 20},
		Population:      3,
		Peers:           []protocol.PeerInfo{{ID: "P2", Name: "rival"}},
	}))
}

func TestDispatch_OwnBuildingPlaced(t *testing.T) {
	c := newTestClient(t)
	joinWorld(t, c)
	c.session.PlacementKind = "FARM"

	c.dispatch(inbound(t, protocol.BuildingPlacedMsg{
		Type:       protocol.TypeBuildingPlaced,
		ActorID:    "P1",
		Building:   protocol.Building{ID: "B1", Kind: "FARM", OwnerID: "P1"},
		Resources:  protocol.Resources{Food: 80, Wood: 60, Iron: 50, Gold: 20},
		Population: 4,
	}))

	if c.session.Resources.Food != 80 || c.session.Population != 4 {
		t.Fatalf("own placement did not replace resources: %+v", c.session.Resources)
	}
	if c.session.PlacementKind != "" {
		t.Fatalf("placement mode not cleared")
	}
	if len(c.session.Buildings) != 1 {
		t.Fatalf("building not recorded")
	}
}

func TestDispatch_PeerBuildingPlaced(t *testing.T) {
	c := newTestClient(t)
	joinWorld(t, c)
	before := c.session.Resources

	c.dispatch(inbound(t, protocol.BuildingPlacedMsg{
		Type:      protocol.TypeBuildingPlaced,
		ActorID:   "P2",
		Building:  protocol.Building{ID: "B2", Kind: "MINE", OwnerID: "P2"},
		Resources: protocol.Resources{Food: 1},
	}))

	if c.session.Resources != before {
		t.Fatalf("peer placement touched local resources: %+v", c.session.Resources)
	}
	if len(c.session.Buildings) != 1 || c.session.Buildings[0].OwnerID != "P2" {
		t.Fatalf("peer building not merged: %+v", c.session.Buildings)
	}
}

func TestDispatch_UnknownActorIgnored(t *testing.T) {
	c := newTestClient(t)
	joinWorld(t, c)

	c.dispatch(inbound(t, protocol.BuildingPlacedMsg{
		Type:     protocol.TypeBuildingPlaced,
		ActorID:  "P99",
		Building: protocol.Building{ID: "B9", OwnerID: "P99"},
	}))
	if len(c.session.Buildings) != 0 {
		t.Fatalf("building from unknown actor merged: %+v", c.session.Buildings)
	}

	c.dispatch(inbound(t, protocol.PlayerUpdatedMsg{
		Type:      protocol.TypePlayerUpdated,
		PlayerID:  "P99",
		Resources: protocol.Resources{Food: 1},
	}))
	if c.session.Resources.Food != 100 {
		t.Fatalf("update for unknown player applied")
	}

	c.dispatch(inbound(t, protocol.PlayerCameraMsg{
		Type:     protocol.TypePlayerCamera,
		PlayerID: "P99",
		Camera:   protocol.CameraState{X: 1},
	}))
	if c.roster.Has("P99") {
		t.Fatalf("camera update synthesized a peer")
	}
}

func TestDispatch_PlayerUpdatedLocal(t *testing.T) {
	c := newTestClient(t)
	joinWorld(t, c)

	c.dispatch(inbound(t, protocol.PlayerUpdatedMsg{
		Type:       protocol.TypePlayerUpdated,
		PlayerID:   "P1",
		Resources:  protocol.Resources{Food: 7, Wood: 8, Iron: 9, Gold: 10},
		Population: 11,
		Scouts:     []protocol.Scout{{ID: "S1", Exploring: true}},
	}))

	if c.session.Resources.Gold != 10 || c.session.Population != 11 {
		t.Fatalf("local update not applied: %+v", c.session.Resources)
	}
	if len(c.session.Scouts) != 1 || !c.session.Scouts[0].Exploring {
		t.Fatalf("scouts not replaced: %+v", c.session.Scouts)
	}
}

func TestDispatch_PlayerJoinLeave(t *testing.T) {
	c := newTestClient(t)
	joinWorld(t, c)

	c.dispatch(inbound(t, protocol.PlayerJoinedMsg{
		Type: protocol.TypePlayerJoined,
		Peer: protocol.PeerInfo{ID: "P3", Name: "third"},
	}))
	if !c.roster.Has("P3") {
		t.Fatalf("joined peer missing")
	}

	c.dispatch(inbound(t, protocol.BuildingPlacedMsg{
		Type:     protocol.TypeBuildingPlaced,
		ActorID:  "P3",
		Building: protocol.Building{ID: "B3", OwnerID: "P3"},
	}))
	c.dispatch(inbound(t, protocol.PlayerLeftMsg{
		Type:     protocol.TypePlayerLeft,
		PlayerID: "P3",
	}))
	if c.roster.Has("P3") {
		t.Fatalf("departed peer still in roster")
	}
	if len(c.session.Buildings) != 0 {
		t.Fatalf("departed peer's buildings kept: %+v", c.session.Buildings)
	}
}

func TestDispatch_ChunksDataCreatesMasks(t *testing.T) {
	c := newTestClient(t)
	joinWorld(t, c)

	layer := encoding.EncodeRLE(make([]uint16, 16*16))
	c.dispatch(inbound(t, protocol.ChunksDataMsg{
		Type: protocol.TypeChunksData,
		Chunks: []protocol.ChunkPayload{
			{CX: 0, CY: 0, Encoding: "RLE", Base: layer, Detail: layer},
			{CX: 1, CY: 0, Encoding: "RLE", Base: layer, Detail: layer},
		},
	}))

	if c.cache.Len() != 2 {
		t.Fatalf("%d chunks resident, want 2", c.cache.Len())
	}
	for _, k := range []world.ChunkKey{{CX: 0, CY: 0}, {CX: 1, CY: 0}} {
		if _, ok := c.fog.Mask(k); !ok {
			t.Fatalf("no fog mask for %v", k)
		}
	}
}

func TestDispatch_AreaExploredRevealsAndRecords(t *testing.T) {
	c := newTestClient(t)
	joinWorld(t, c)
	c.now = func() time.Time { return time.Unix(0, 0) }

	layer := encoding.EncodeRLE(make([]uint16, 16*16))
	c.dispatch(inbound(t, protocol.ChunksDataMsg{
		Type:   protocol.TypeChunksData,
		Chunks: []protocol.ChunkPayload{{CX: 0, CY: 0, Encoding: "RLE", Base: layer, Detail: layer}},
	}))

	c.dispatch(inbound(t, protocol.AreaExploredMsg{
		Type:   protocol.TypeAreaExplored,
		X:      8,
		Y:      8,
		Radius: 6,
	}))
	if c.fog.ActiveReveals() != 1 {
		t.Fatalf("reveal not registered")
	}
	if _, ok := c.session.Explored["0,0"]; !ok {
		t.Fatalf("explored key not recorded")
	}

	c.fog.Tick(time.Unix(10, 0))
	m, _ := c.fog.MaskSnapshot(world.ChunkKey{CX: 0, CY: 0})
	if m[8*16+8] != 0 {
		t.Fatalf("reveal did not erase fog at center: %d", m[8*16+8])
	}
}

func TestDispatch_RejectionsClearPlacementAndNotice(t *testing.T) {
	c := newTestClient(t)
	joinWorld(t, c)
	c.session.PlacementKind = "FARM"

	c.dispatch(inbound(t, protocol.BuildingRejectedMsg{
		Type:   protocol.TypeBuildingRejected,
		Code:   protocol.ErrNoResource,
		Reason: "not enough wood",
	}))
	if c.session.PlacementKind != "" {
		t.Fatalf("placement mode survived rejection")
	}
	if len(c.notices) == 0 {
		t.Fatalf("rejection produced no notice")
	}

	c.dispatch(inbound(t, protocol.ScoutRejectedMsg{
		Type:   protocol.TypeScoutRejected,
		Reason: "scout busy",
	}))
	if len(c.notices) != 2 {
		t.Fatalf("scout rejection produced no notice")
	}
}

func TestHandleWorldJoined_RebuildsForServerParams(t *testing.T) {
	c := newTestClient(t)
	if c.cache.ChunkSize() != 16 {
		t.Fatalf("precondition: chunk size %d", c.cache.ChunkSize())
	}

	fog := world.NewFogEngine(32)
	fog.EnsureMask(world.ChunkKey{CX: 2, CY: -1})
	blobs := fog.Serialize()

	c.dispatch(inbound(t, protocol.WorldJoinedMsg{
		Type:        protocol.TypeWorldJoined,
		PlayerID:    "P1",
		WorldParams: protocol.WorldParams{WorldID: "w2", ChunkSize: 32, LoadRadius: 2, TickRateHz: 10},
		Fog:         blobs,
	}))

	if c.cache.ChunkSize() != 32 || c.cache.LoadRadius() != 2 {
		t.Fatalf("cache not rebuilt: size=%d radius=%d", c.cache.ChunkSize(), c.cache.LoadRadius())
	}
	// Fog restored for a chunk with no terrain resident.
	if _, ok := c.fog.Mask(world.ChunkKey{CX: 2, CY: -1}); !ok {
		t.Fatalf("persisted fog not restored before terrain")
	}
}

// drain runs queued intents the way the client loop would.
func drain(c *Client) {
	for {
		select {
		case cmd := <-c.commands:
			cmd(c)
		default:
			return
		}
	}
}

func TestIntents_CameraPanZoom(t *testing.T) {
	c := newTestClient(t)
	joinWorld(t, c)
	c.now = func() time.Time { return time.Unix(0, 0) }

	c.PanCamera(10, -5)
	c.ZoomCamera(100)
	drain(c)

	if c.session.Camera.X != 10 || c.session.Camera.Y != -5 {
		t.Fatalf("camera = %+v", c.session.Camera)
	}
	if c.session.Camera.Zoom != c.cfg.CameraMaxZoom {
		t.Fatalf("zoom not clamped: %v", c.session.Camera.Zoom)
	}
	// Disconnected send surfaces as a notice, nothing is queued.
	if len(c.notices) == 0 {
		t.Fatalf("dropped camera update produced no notice")
	}
}

func TestIntents_PlaceBuildingRequiresSelection(t *testing.T) {
	c := newTestClient(t)
	joinWorld(t, c)

	c.PlaceBuilding(100, 200)
	drain(c)
	if len(c.notices) == 0 {
		t.Fatalf("placement without selection produced no notice")
	}

	c.SelectBuilding("FARM")
	drain(c)
	if c.session.PlacementKind != "FARM" {
		t.Fatalf("placement kind = %q", c.session.PlacementKind)
	}
}

func TestBuildSnapshotCopiesState(t *testing.T) {
	c := newTestClient(t)
	joinWorld(t, c)

	layer := encoding.EncodeRLE(make([]uint16, 16*16))
	c.dispatch(inbound(t, protocol.ChunksDataMsg{
		Type:   protocol.TypeChunksData,
		Chunks: []protocol.ChunkPayload{{CX: 0, CY: 0, Encoding: "RLE", Base: layer, Detail: layer}},
	}))
	c.dispatch(inbound(t, protocol.BuildingPlacedMsg{
		Type:     protocol.TypeBuildingPlaced,
		ActorID:  "P2",
		Building: protocol.Building{ID: "B1", OwnerID: "P2"},
	}))

	snap := c.buildSnapshot()
	if snap.PlayerID != "P1" || len(snap.Chunks) != 1 || len(snap.Buildings) != 1 {
		t.Fatalf("snapshot incomplete: %+v", snap)
	}
	if len(snap.Fog["0,0"]) != 16*16 {
		t.Fatalf("fog mask missing from snapshot")
	}

	// Mutating the snapshot must not reach core state.
	snap.Buildings[0].ID = "mutated"
	snap.Fog["0,0"][0] = 0
	if c.session.Buildings[0].ID != "B1" {
		t.Fatalf("snapshot aliases session buildings")
	}
	if m, _ := c.fog.MaskSnapshot(world.ChunkKey{CX: 0, CY: 0}); m[0] != 255 {
		t.Fatalf("snapshot aliases fog mask")
	}
}

func TestTick_SkipsRequestsWhileDisconnected(t *testing.T) {
	c := newTestClient(t)
	joinWorld(t, c)

	c.tick(time.Unix(0, 0))
	if c.cache.PendingLen() != 0 {
		t.Fatalf("chunks marked requested while disconnected")
	}
	// Next pass recomputes the same missing set; nothing was lost.
	c.tick(time.Unix(1, 0))
	if c.cache.PendingLen() != 0 {
		t.Fatalf("pending grew without a connection")
	}
}
