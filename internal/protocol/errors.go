package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Placement / scouting rejections.
	ErrNoResource    = "E_NO_RESOURCE"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrOccupied      = "E_OCCUPIED"
	ErrScoutBusy     = "E_SCOUT_BUSY"
	ErrRateLimit     = "E_RATE_LIMIT"
	ErrStale         = "E_STALE"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrNoResource:      {},
	ErrInvalidTarget:   {},
	ErrOccupied:        {},
	ErrScoutBusy:       {},
	ErrRateLimit:       {},
	ErrStale:           {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
