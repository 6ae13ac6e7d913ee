package protocol

import "encoding/json"

const Version = "1.0"

// Message types, client -> server.
const (
	TypeJoinWorld     = "JOIN_WORLD"
	TypeUpdateCamera  = "UPDATE_CAMERA"
	TypePlaceBuilding = "PLACE_BUILDING"
	TypeSendScout     = "SEND_SCOUT"
	TypeRequestChunks = "REQUEST_CHUNKS"
	TypeSaveFog       = "SAVE_FOG_OF_WAR"
)

// Message types, server -> client.
const (
	TypeWorldJoined      = "WORLD_JOINED"
	TypePlayerJoined     = "PLAYER_JOINED"
	TypePlayerLeft       = "PLAYER_LEFT"
	TypePlayerUpdated    = "PLAYER_UPDATED"
	TypePlayerCamera     = "PLAYER_CAMERA"
	TypeBuildingPlaced   = "BUILDING_PLACED"
	TypeBuildingRejected = "BUILDING_REJECTED"
	TypeScoutSent        = "SCOUT_SENT"
	TypeScoutRejected    = "SCOUT_REJECTED"
	TypeChunksData       = "CHUNKS_DATA"
	TypeAreaExplored     = "AREA_EXPLORED"
	TypeError            = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
