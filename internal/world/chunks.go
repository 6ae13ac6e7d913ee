package world

import (
	"fmt"
	"sort"

	"outpost.world/internal/encoding"
	"outpost.world/internal/protocol"
)

// Chunk is one resident tile of generated terrain. Chunks never mutate
// after creation; a redelivery replaces the entry wholesale.
type Chunk struct {
	Key     ChunkKey
	OriginX float64 // world-space top-left corner
	OriginY float64
	Size    int

	Base   []uint16 // base terrain layer, Size×Size tiles
	Detail []uint16 // detail overlay, same extent
}

// ChunkCache owns the set of materialized chunks around the camera.
// Accessed only from the client loop goroutine.
type ChunkCache struct {
	chunkSize  int
	loadRadius int

	chunks  map[ChunkKey]*Chunk
	pending map[ChunkKey]struct{} // requested over the wire, not yet delivered
}

func NewChunkCache(chunkSize, loadRadius int) *ChunkCache {
	return &ChunkCache{
		chunkSize:  chunkSize,
		loadRadius: loadRadius,
		chunks:     map[ChunkKey]*Chunk{},
		pending:    map[ChunkKey]struct{}{},
	}
}

func (c *ChunkCache) ChunkSize() int  { return c.chunkSize }
func (c *ChunkCache) LoadRadius() int { return c.loadRadius }

func (c *ChunkCache) Resident(k ChunkKey) bool {
	_, ok := c.chunks[k]
	return ok
}

func (c *ChunkCache) Get(k ChunkKey) (*Chunk, bool) {
	ch, ok := c.chunks[k]
	return ch, ok
}

// Recompute runs one streaming pass for the given camera position.
// It returns the batched set of coordinates to request (non-resident,
// non-pending, within Chebyshev loadRadius of the camera chunk) and
// evicts everything beyond loadRadius+1. The extra chunk of eviction
// margin keeps a camera oscillating on a chunk boundary from
// load/unload thrashing. Evicted keys are reported so the fog engine
// can drop the paired masks.
func (c *ChunkCache) Recompute(camX, camY float64) (request []ChunkKey, evicted []ChunkKey) {
	center := WorldToChunk(camX, camY, c.chunkSize)
	r := c.loadRadius

	for cy := center.CY - r; cy <= center.CY+r; cy++ {
		for cx := center.CX - r; cx <= center.CX+r; cx++ {
			k := ChunkKey{CX: cx, CY: cy}
			if _, ok := c.chunks[k]; ok {
				continue
			}
			if _, ok := c.pending[k]; ok {
				continue
			}
			request = append(request, k)
		}
	}
	sort.Slice(request, func(i, j int) bool {
		if request[i].CY != request[j].CY {
			return request[i].CY < request[j].CY
		}
		return request[i].CX < request[j].CX
	})

	for k := range c.chunks {
		if k.Chebyshev(center) > r+1 {
			delete(c.chunks, k)
			evicted = append(evicted, k)
		}
	}
	for k := range c.pending {
		if k.Chebyshev(center) > r+1 {
			delete(c.pending, k)
		}
	}
	return request, evicted
}

// MarkRequested records coordinates whose fetch actually went out on
// the wire. Skipped sends (disconnected) stay unmarked and are retried
// by the next recompute pass.
func (c *ChunkCache) MarkRequested(keys []ChunkKey) {
	for _, k := range keys {
		c.pending[k] = struct{}{}
	}
}

// Insert materializes a delivered chunk. Late deliveries for
// coordinates that have drifted out of range are still inserted; the
// next recompute pass evicts them, so no staleness special-casing is
// needed here.
func (c *ChunkCache) Insert(p protocol.ChunkPayload) (*Chunk, error) {
	if p.Encoding != "" && p.Encoding != "RLE" {
		return nil, fmt.Errorf("chunk (%d,%d): unsupported encoding %q", p.CX, p.CY, p.Encoding)
	}
	base, err := encoding.DecodeRLE(p.Base)
	if err != nil {
		return nil, fmt.Errorf("chunk (%d,%d) base: %w", p.CX, p.CY, err)
	}
	detail, err := encoding.DecodeRLE(p.Detail)
	if err != nil {
		return nil, fmt.Errorf("chunk (%d,%d) detail: %w", p.CX, p.CY, err)
	}
	want := c.chunkSize * c.chunkSize
	if len(base) != want || len(detail) != want {
		return nil, fmt.Errorf("chunk (%d,%d): layer size %d/%d, want %d", p.CX, p.CY, len(base), len(detail), want)
	}

	k := ChunkKey{CX: p.CX, CY: p.CY}
	ch := &Chunk{
		Key:     k,
		OriginX: float64(p.CX * c.chunkSize),
		OriginY: float64(p.CY * c.chunkSize),
		Size:    c.chunkSize,
		Base:    base,
		Detail:  detail,
	}
	c.chunks[k] = ch
	delete(c.pending, k)
	return ch, nil
}

// Keys returns resident chunk keys in deterministic order, for the
// rendering collaborator and for tests.
func (c *ChunkCache) Keys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(c.chunks))
	for k := range c.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CY != keys[j].CY {
			return keys[i].CY < keys[j].CY
		}
		return keys[i].CX < keys[j].CX
	})
	return keys
}

func (c *ChunkCache) Len() int { return len(c.chunks) }

func (c *ChunkCache) PendingLen() int { return len(c.pending) }
