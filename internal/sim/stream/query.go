package stream

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"spherestream/internal/sim/spatial"
)

// Generated reports whether k is in the generated-key set.
func (e *Engine) Generated(k spatial.Key) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.generated[k]
	return ok
}

// Cells returns a copy of the live cells ordered by key.
func (e *Engine) Cells() []Cell {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Cell, 0, len(e.cells))
	for _, c := range e.cells {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

// Decorations returns a copy of the live decorations ordered by host key.
func (e *Engine) Decorations() []Decoration {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Decoration, 0, len(e.decorations))
	for _, d := range e.decorations {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Stats{
		Tick:            e.tick,
		LiveCells:       len(e.cells),
		LiveDecorations: len(e.decorations),
		GeneratedKeys:   len(e.generated),
	}
	if e.scene != nil {
		st.Pools = e.scene.Stats()
	}
	return st
}

// Digest hashes the live world: every cell's key, biome and scale and every
// decoration's kind, in key order. Visual ids are left out.
func (e *Engine) Digest() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	keys := make([]spatial.Key, 0, len(e.cells))
	for k := range e.cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	h := sha256.New()
	var tmp [8]byte
	writeI64 := func(v int64) {
		binary.LittleEndian.PutUint64(tmp[:], uint64(v))
		h.Write(tmp[:])
	}
	for _, k := range keys {
		c := e.cells[k]
		writeI64(int64(k.X))
		writeI64(int64(k.Y))
		writeI64(int64(k.Z))
		writeI64(int64(c.Biome))
		writeI64(int64(math.Float64bits(c.Scale)))
		if d, ok := e.decorations[k]; ok {
			writeI64(int64(d.Kind) + 1)
		} else {
			writeI64(0)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
