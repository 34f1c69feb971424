package stream

import (
	"github.com/go-gl/mathgl/mgl64"

	"spherestream/internal/render"
	"spherestream/internal/sim/biome"
	"spherestream/internal/sim/pool"
	"spherestream/internal/sim/spatial"
)

// Cell is one generated sphere. It is never mutated after creation.
type Cell struct {
	Key      spatial.Key
	Position mgl64.Vec3
	Scale    float64
	Biome    biome.Biome
	Visual   render.Handle
}

// Decoration sits on the cell with the same key and dies with it.
type Decoration struct {
	Key      spatial.Key
	Kind     render.Kind
	Position mgl64.Vec3
	Visual   render.Handle
}

// TickStats is the per-tick record handed to the host loop and the tick log.
type TickStats struct {
	Tick     uint64     `json:"tick"`
	Skipped  bool       `json:"skipped,omitempty"`
	Reason   string     `json:"reason,omitempty"`
	Aborted  bool       `json:"aborted,omitempty"`
	Observer [3]float64 `json:"observer"`

	Generated          int `json:"generated"`
	Decorated          int `json:"decorated"`
	Evicted            int `json:"evicted"`
	EvictedDecorations int `json:"evicted_decorations"`

	LiveCells       int `json:"live_cells"`
	LiveDecorations int `json:"live_decorations"`

	Digest string `json:"digest,omitempty"`
}

type Stats struct {
	Tick            uint64                     `json:"tick"`
	LiveCells       int                        `json:"live_cells"`
	LiveDecorations int                        `json:"live_decorations"`
	GeneratedKeys   int                        `json:"generated_keys"`
	Pools           map[render.Kind]pool.Stats `json:"-"`
}

// TickLogEntry is one line of the compressed tick log.
type TickLogEntry struct {
	RunID string `json:"run_id"`
	TickStats
}
