package world

import (
	"fmt"
	"strconv"
	"strings"
)

// ChunkKey addresses one chunk of the unbounded world. The struct is
// comparable and serves directly as the cache index.
type ChunkKey struct {
	CX int
	CY int
}

// String is the canonical wire/persistence form, e.g. "-2,7".
func (k ChunkKey) String() string {
	return fmt.Sprintf("%d,%d", k.CX, k.CY)
}

func ParseKey(s string) (ChunkKey, error) {
	i := strings.IndexByte(s, ',')
	if i < 0 {
		return ChunkKey{}, fmt.Errorf("bad chunk key %q", s)
	}
	cx, err := strconv.Atoi(s[:i])
	if err != nil {
		return ChunkKey{}, fmt.Errorf("bad chunk key %q", s)
	}
	cy, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return ChunkKey{}, fmt.Errorf("bad chunk key %q", s)
	}
	return ChunkKey{CX: cx, CY: cy}, nil
}

// Chebyshev returns max(|dx|, |dy|) in chunk units; load and evict
// regions are squares, not circles.
func (k ChunkKey) Chebyshev(o ChunkKey) int {
	dx := k.CX - o.CX
	if dx < 0 {
		dx = -dx
	}
	dy := k.CY - o.CY
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

// WorldToChunk maps a continuous world position to its chunk. Floor
// division, not truncation: (-1, -1) with size 512 is chunk (-1, -1).
func WorldToChunk(x, y float64, chunkSize int) ChunkKey {
	return ChunkKey{
		CX: floorDivF(x, float64(chunkSize)),
		CY: floorDivF(y, float64(chunkSize)),
	}
}

func floorDivF(a, b float64) int {
	q := a / b
	n := int(q)
	if q < 0 && float64(n) != q {
		n--
	}
	return n
}

// Camera is the local view transform: world translation plus uniform
// scale. The input collaborator clamps Zoom to [0.3, 2.0]; the
// transforms themselves work for any positive scale.
type Camera struct {
	X    float64
	Y    float64
	Zoom float64
}

func (c Camera) ScreenToWorld(sx, sy float64) (float64, float64) {
	return sx/c.Zoom + c.X, sy/c.Zoom + c.Y
}

func (c Camera) WorldToScreen(wx, wy float64) (float64, float64) {
	return (wx - c.X) * c.Zoom, (wy - c.Y) * c.Zoom
}

func ClampZoom(z, min, max float64) float64 {
	if z < min {
		return min
	}
	if z > max {
		return max
	}
	return z
}
