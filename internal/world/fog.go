package world

import (
	"errors"
	"fmt"
	"math"
	"time"

	"outpost.world/internal/encoding"
)

// Fully fogged opacity. Erasure only ever lowers a cell, so a mask is
// monotonically non-increasing after creation.
const fogOpaque = 255

// FogMask is the per-chunk opacity raster, chunkSize×chunkSize cells,
// one world unit per cell.
type FogMask struct {
	Key     ChunkKey
	Size    int
	Opacity []uint8
}

func newFogMask(k ChunkKey, size int) *FogMask {
	op := make([]uint8, size*size)
	for i := range op {
		op[i] = fogOpaque
	}
	return &FogMask{Key: k, Size: size, Opacity: op}
}

// revealOp is a timed erase: the radius grows from 0 to target over
// dur with an ease-out curve, stamped into the owning mask each tick.
type revealOp struct {
	chunk  ChunkKey
	x, y   float64 // world coordinates of the center
	target float64
	start  time.Time
	dur    time.Duration
}

// FogEngine owns all fog masks and active reveal operations. Accessed
// only from the client loop goroutine.
type FogEngine struct {
	chunkSize int
	masks     map[ChunkKey]*FogMask
	ops       []revealOp
	dirty     bool
}

func NewFogEngine(chunkSize int) *FogEngine {
	return &FogEngine{
		chunkSize: chunkSize,
		masks:     map[ChunkKey]*FogMask{},
	}
}

// EnsureMask creates a fully fogged mask for k if absent. A mask
// already restored from persisted fog is kept as-is.
func (f *FogEngine) EnsureMask(k ChunkKey) *FogMask {
	if m, ok := f.masks[k]; ok {
		return m
	}
	m := newFogMask(k, f.chunkSize)
	f.masks[k] = m
	return m
}

// Drop removes the mask paired with an evicted chunk.
func (f *FogEngine) Drop(k ChunkKey) {
	delete(f.masks, k)
}

func (f *FogEngine) Mask(k ChunkKey) (*FogMask, bool) {
	m, ok := f.masks[k]
	return m, ok
}

// MaskSnapshot returns a copy safe to hand to the rendering
// collaborator.
func (f *FogEngine) MaskSnapshot(k ChunkKey) ([]uint8, bool) {
	m, ok := f.masks[k]
	if !ok {
		return nil, false
	}
	out := make([]uint8, len(m.Opacity))
	copy(out, m.Opacity)
	return out, true
}

// ApplyReveal registers a reveal anchored at the chunk containing
// (worldX, worldY). If that chunk has no mask yet the reveal is
// dropped: the mask will stream in fully fogged and the server's
// explored-area state re-triggers the erase on the next join.
func (f *FogEngine) ApplyReveal(worldX, worldY, radius float64, dur time.Duration, now time.Time) {
	if !isFinite(worldX) || !isFinite(worldY) || !isFinite(radius) || radius <= 0 {
		return
	}
	k := WorldToChunk(worldX, worldY, f.chunkSize)
	if _, ok := f.masks[k]; !ok {
		return
	}
	if dur <= 0 {
		dur = time.Millisecond
	}
	f.ops = append(f.ops, revealOp{
		chunk:  k,
		x:      worldX,
		y:      worldY,
		target: radius,
		start:  now,
		dur:    dur,
	})
}

// Tick advances every active reveal and stamps its current radius into
// the owning mask. Finished operations are removed after their final
// stamp. Erasure is a saturating min, so re-stamping a growing radius
// is idempotent over the already-cleared interior.
func (f *FogEngine) Tick(now time.Time) {
	live := f.ops[:0]
	for _, op := range f.ops {
		elapsed := now.Sub(op.start)
		t := clamp01(float64(elapsed) / float64(op.dur))
		r := op.target * easeOutQuad(t)
		f.erase(op.chunk, op.x, op.y, r)
		if elapsed < op.dur {
			live = append(live, op)
		}
	}
	f.ops = live
}

func (f *FogEngine) ActiveReveals() int { return len(f.ops) }

// erase lowers opacity inside radius r around the world point (x, y),
// in chunk-local coordinates. Full erase out to half the radius,
// ramping to no effect at the rim (partial at 0.7·r). Values here flow
// from network input, so any non-finite intermediate skips the stamp
// for this tick rather than corrupting the mask.
func (f *FogEngine) erase(k ChunkKey, x, y, r float64) {
	m, ok := f.masks[k]
	if !ok {
		return
	}
	if !isFinite(r) || r <= 0 {
		return
	}
	lx := x - float64(k.CX*f.chunkSize)
	ly := y - float64(k.CY*f.chunkSize)
	if !isFinite(lx) || !isFinite(ly) {
		return
	}

	minX := int(math.Floor(lx - r))
	maxX := int(math.Ceil(lx + r))
	minY := int(math.Floor(ly - r))
	maxY := int(math.Ceil(ly + r))
	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX > m.Size-1 {
		maxX = m.Size - 1
	}
	if maxY > m.Size-1 {
		maxY = m.Size - 1
	}

	changed := false
	for cy := minY; cy <= maxY; cy++ {
		for cx := minX; cx <= maxX; cx++ {
			dx := float64(cx) + 0.5 - lx
			dy := float64(cy) + 0.5 - ly
			d := math.Sqrt(dx*dx + dy*dy)
			if d >= r {
				continue
			}
			// 0 at the center and out to r/2, then linear up to
			// fully opaque at the rim.
			floor := clamp01((d - 0.5*r) / (0.5 * r))
			v := uint8(math.Round(floor * fogOpaque))
			i := cy*m.Size + cx
			if m.Opacity[i] > v {
				m.Opacity[i] = v
				changed = true
			}
		}
	}
	if changed {
		f.dirty = true
	}
}

// Serialize produces one RLE blob per mask, keyed by chunk key. The
// encoding round-trips exactly; fog never needs the terrain to be
// resident.
func (f *FogEngine) Serialize() map[string]string {
	out := make(map[string]string, len(f.masks))
	for k, m := range f.masks {
		out[k.String()] = encoding.EncodeOpacityRLE(m.Opacity)
	}
	return out
}

// Restore loads persisted fog blobs, creating masks on demand for
// chunks not yet resident. Malformed blobs are skipped; the rest are
// still applied.
func (f *FogEngine) Restore(data map[string]string) error {
	var errs []error
	for ks, blob := range data {
		k, err := ParseKey(ks)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		op, err := encoding.DecodeOpacityRLE(blob)
		if err != nil {
			errs = append(errs, fmt.Errorf("fog %s: %w", ks, err))
			continue
		}
		if len(op) != f.chunkSize*f.chunkSize {
			errs = append(errs, fmt.Errorf("fog %s: %d cells, want %d", ks, len(op), f.chunkSize*f.chunkSize))
			continue
		}
		f.masks[k] = &FogMask{Key: k, Size: f.chunkSize, Opacity: op}
	}
	f.dirty = true
	return errors.Join(errs...)
}

// Dirty reports whether any mask changed since the last MarkSaved.
func (f *FogEngine) Dirty() bool { return f.dirty }
func (f *FogEngine) MarkSaved()  { f.dirty = false }

func easeOutQuad(t float64) float64 {
	return 1 - (1-t)*(1-t)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
