package world

import (
	"sort"

	"outpost.world/internal/protocol"
)

// Session is the local player's authoritative-for-this-client mirror.
// Every field is replaced wholesale by server events; optimistic UI
// state (placement mode) only ever narrows toward what the server
// confirms.
type Session struct {
	PlayerID   string
	WorldID    string
	Resources  protocol.Resources
	Population int
	Buildings  []protocol.Building
	Scouts     []protocol.Scout
	Camera     Camera

	// Explored coordinate keys, used to avoid re-requesting reveals
	// the server already confirmed.
	Explored map[string]struct{}

	// Building kind selected for placement; empty when not placing.
	PlacementKind string
}

func NewSession() *Session {
	return &Session{
		Camera:   Camera{Zoom: 1},
		Explored: map[string]struct{}{},
	}
}

// ApplySnapshot replaces the whole session from a world-joined
// snapshot.
func (s *Session) ApplySnapshot(m *protocol.WorldJoinedMsg) {
	s.PlayerID = m.PlayerID
	s.WorldID = m.WorldParams.WorldID
	s.Resources = m.Resources
	s.Population = m.Population
	s.Buildings = append(s.Buildings[:0], m.Buildings...)
	s.Scouts = append(s.Scouts[:0], m.Scouts...)
	s.Camera = Camera{X: m.Camera.X, Y: m.Camera.Y, Zoom: m.Camera.Zoom}
	if s.Camera.Zoom == 0 {
		s.Camera.Zoom = 1
	}
	s.Explored = map[string]struct{}{}
	for k := range m.Fog {
		s.Explored[k] = struct{}{}
	}
	s.PlacementKind = ""
}

// ApplyPlayerUpdate replaces resources, population and scouts. The
// caller has already checked the event targets the local player.
func (s *Session) ApplyPlayerUpdate(m *protocol.PlayerUpdatedMsg) {
	s.Resources = m.Resources
	s.Population = m.Population
	s.Scouts = append(s.Scouts[:0], m.Scouts...)
}

// ApplyOwnPlacement confirms a locally initiated placement: the server
// payload supersedes the optimistic resource state and placement mode
// ends.
func (s *Session) ApplyOwnPlacement(m *protocol.BuildingPlacedMsg) {
	s.Resources = m.Resources
	s.Population = m.Population
	s.upsertBuilding(m.Building)
	s.PlacementKind = ""
}

// ApplyPeerPlacement merges a peer's building into shared-visibility
// state without touching local resources.
func (s *Session) ApplyPeerPlacement(m *protocol.BuildingPlacedMsg) {
	s.upsertBuilding(m.Building)
}

func (s *Session) upsertBuilding(b protocol.Building) {
	for i := range s.Buildings {
		if s.Buildings[i].ID == b.ID {
			s.Buildings[i] = b
			return
		}
	}
	s.Buildings = append(s.Buildings, b)
}

// RemoveBuildingsOwnedBy drops a departed peer's buildings from the
// shared list.
func (s *Session) RemoveBuildingsOwnedBy(playerID string) {
	kept := s.Buildings[:0]
	for _, b := range s.Buildings {
		if b.OwnerID != playerID {
			kept = append(kept, b)
		}
	}
	s.Buildings = kept
}

// Peer is the mirrored public subset of another connection: strictly
// camera and identity, never resources.
type Peer struct {
	ID     string
	Name   string
	Camera protocol.CameraState
}

// PeerRoster is keyed by connection id and only ever populated by an
// explicit join or the initial world snapshot; updates for unknown ids
// are out-of-order deliveries and are ignored by the dispatcher.
type PeerRoster struct {
	peers map[string]*Peer
}

func NewPeerRoster() *PeerRoster {
	return &PeerRoster{peers: map[string]*Peer{}}
}

func (r *PeerRoster) Reset(infos []protocol.PeerInfo) {
	r.peers = make(map[string]*Peer, len(infos))
	for _, p := range infos {
		r.peers[p.ID] = &Peer{ID: p.ID, Name: p.Name, Camera: p.Camera}
	}
}

func (r *PeerRoster) Add(p protocol.PeerInfo) {
	r.peers[p.ID] = &Peer{ID: p.ID, Name: p.Name, Camera: p.Camera}
}

func (r *PeerRoster) Remove(id string) {
	delete(r.peers, id)
}

// UpdateCamera applies a camera push for a known peer and reports
// whether the id was known.
func (r *PeerRoster) UpdateCamera(id string, cam protocol.CameraState) bool {
	p, ok := r.peers[id]
	if !ok {
		return false
	}
	p.Camera = cam
	return true
}

func (r *PeerRoster) Has(id string) bool {
	_, ok := r.peers[id]
	return ok
}

func (r *PeerRoster) Len() int { return len(r.peers) }

// Peers returns a deterministic copy for the rendering collaborator.
func (r *PeerRoster) Peers() []Peer {
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
