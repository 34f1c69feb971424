package spatial

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"spherestream/internal/sim/mathx"
)

// Key is the canonical identity of a grid cell. Live maps are keyed by Key,
// never by float positions.
type Key struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (k Key) String() string {
	return fmt.Sprintf("(%d,%d,%d)", k.X, k.Y, k.Z)
}

// Less orders keys by X, then Z, then Y.
func (k Key) Less(o Key) bool {
	if k.X != o.X {
		return k.X < o.X
	}
	if k.Z != o.Z {
		return k.Z < o.Z
	}
	return k.Y < o.Y
}

// MaxCoord bounds the world positions a Grid accepts on any axis. Larger
// values would not round to a representable key.
const MaxCoord = 1 << 40

// Valid reports whether every axis of pos is finite and within MaxCoord.
func Valid(pos mgl64.Vec3) bool {
	for _, v := range pos {
		if math.IsNaN(v) || math.Abs(v) > MaxCoord {
			return false
		}
	}
	return true
}

// Grid maps world positions to keys. Spacing <= 0 is treated as 1.
type Grid struct {
	Spacing float64
}

func (g Grid) spacing() float64 {
	if g.Spacing <= 0 {
		return 1
	}
	return g.Spacing
}

// KeyOf divides each axis by the spacing and rounds half away from zero.
func (g Grid) KeyOf(pos mgl64.Vec3) Key {
	s := g.spacing()
	return Key{
		X: mathx.Round(pos.X() / s),
		Y: mathx.Round(pos.Y() / s),
		Z: mathx.Round(pos.Z() / s),
	}
}

// Position is the world-space center of k.
func (g Grid) Position(k Key) mgl64.Vec3 {
	s := g.spacing()
	return mgl64.Vec3{float64(k.X) * s, float64(k.Y) * s, float64(k.Z) * s}
}


// Reach is the horizontal chessboard distance from center to k, in world
// units. It is the metric of the square generation window, so every key of a
// window of radius r has Reach <= r*Spacing. Y is ignored.
func (g Grid) Reach(k, center Key) float64 {
	dx := k.X - center.X
	if dx < 0 {
		dx = -dx
	}
	dz := k.Z - center.Z
	if dz < 0 {
		dz = -dz
	}
	if dz > dx {
		dx = dz
	}
	return float64(dx) * g.spacing()
}
