package protocol

// Shared payload shapes. The server is authoritative for every field;
// the client applies them by wholesale replacement of the named subset.

type Resources struct {
	Food int `json:"food"`
	Wood int `json:"wood"`
	Iron int `json:"iron"`
	Gold int `json:"gold"`
}

type CameraState struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

type Building struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	OwnerID  string    `json:"owner_id"`
	Produces Resources `json:"produces,omitempty"`
}

type Scout struct {
	ID        string     `json:"id"`
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	Exploring bool       `json:"exploring"`
	Target    *[2]float64 `json:"target,omitempty"`
}

type PeerInfo struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Camera CameraState `json:"camera"`
}

// ChunkPayload carries one generated chunk. Base and Detail are the two
// terrain layers, RLE-encoded tile ids (see internal/encoding).
type ChunkPayload struct {
	CX       int    `json:"cx"`
	CY       int    `json:"cy"`
	Encoding string `json:"encoding"` // "RLE"
	Base     string `json:"base"`
	Detail   string `json:"detail"`
}

type WorldParams struct {
	WorldID    string `json:"world_id"`
	ChunkSize  int    `json:"chunk_size"`
	LoadRadius int    `json:"load_radius"`
	TickRateHz int    `json:"tick_rate_hz"`
}

// JOIN_WORLD (client -> server)
type JoinWorldMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerName      string `json:"player_name"`
	WorldID         string `json:"world_id,omitempty"`
}

// WORLD_JOINED (server -> client): full authoritative snapshot.
type WorldJoinedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	PlayerID    string      `json:"player_id"`
	WorldParams WorldParams `json:"world_params"`

	Resources  Resources   `json:"resources"`
	Population int         `json:"population"`
	Buildings  []Building  `json:"buildings"`
	Scouts     []Scout     `json:"scouts"`
	Camera     CameraState `json:"camera"`

	// Per-chunk fog blobs keyed by "cx,cy"; see internal/world fog
	// serialization. Authoritative and independent of chunk delivery.
	Fog map[string]string `json:"fog,omitempty"`

	Peers []PeerInfo `json:"peers,omitempty"`
}

// UPDATE_CAMERA (client -> server)
type UpdateCameraMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Camera          CameraState `json:"camera"`
}

// PLACE_BUILDING (client -> server)
type PlaceBuildingMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Kind            string  `json:"kind"`
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
}

// SEND_SCOUT (client -> server)
type SendScoutMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ScoutID         string  `json:"scout_id,omitempty"`
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
}

// REQUEST_CHUNKS (client -> server): one batched request per recompute.
type RequestChunksMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Coords          [][2]int `json:"coords"`
}

// SAVE_FOG_OF_WAR (client -> server)
type SaveFogMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	Fog             map[string]string `json:"fog"`
}

// PLAYER_JOINED / PLAYER_LEFT (server -> client)
type PlayerJoinedMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Peer            PeerInfo `json:"peer"`
}

type PlayerLeftMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerID        string `json:"player_id"`
}

// PLAYER_UPDATED (server -> client): replaces resources/population/
// scouts outright when it targets the local player id.
type PlayerUpdatedMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	PlayerID        string    `json:"player_id"`
	Resources       Resources `json:"resources"`
	Population      int       `json:"population"`
	Scouts          []Scout   `json:"scouts"`
}

// PLAYER_CAMERA (server -> client)
type PlayerCameraMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	PlayerID        string      `json:"player_id"`
	Camera          CameraState `json:"camera"`
}

// BUILDING_PLACED (server -> client): ActorID echoes the connection
// that initiated the placement. Resources are only meaningful when the
// actor is the local player.
type BuildingPlacedMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	ActorID         string    `json:"actor_id"`
	Building        Building  `json:"building"`
	Resources       Resources `json:"resources"`
	Population      int       `json:"population"`
}

type BuildingRejectedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code,omitempty"`
	Reason          string `json:"reason"`
}

// SCOUT_SENT (server -> client)
type ScoutSentMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ActorID         string  `json:"actor_id"`
	Scouts          []Scout `json:"scouts"`
}

type ScoutRejectedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code,omitempty"`
	Reason          string `json:"reason"`
}

// CHUNKS_DATA (server -> client): batch reply to REQUEST_CHUNKS.
// Deliveries may be arbitrarily delayed and are applied against
// current state; stale chunks are evicted on the next recompute.
type ChunksDataMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Chunks          []ChunkPayload `json:"chunks"`
}

// AREA_EXPLORED (server -> client): confirmed reveal trigger.
type AreaExploredMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
	Radius          float64 `json:"radius"`
	DurationMs      int     `json:"duration_ms,omitempty"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message"`
}
