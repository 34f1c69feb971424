// Package render is the boundary to the visual collaborator. The streaming
// core never draws anything; it asks a Backend to create, show and hide
// visuals and recycles them through per-kind pools.
package render

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Kind is the prefab a visual was created from. It travels with every handle,
// so returning a visual never depends on inspecting the visual itself.
type Kind uint8

const (
	Sphere Kind = iota
	Tree
	Flower
	Creature
	Filler

	kindCount
)

var kindNames = [...]string{"SPHERE", "TREE", "FLOWER", "CREATURE", "FILLER"}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("KIND(%d)", uint8(k))
}

func (k Kind) Valid() bool { return k < kindCount }

func ParseKind(s string) (Kind, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range kindNames {
		if n == u {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown prefab kind %q", s)
}

// Kinds lists every prefab kind.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

type VisualID uint64

// Placement is everything a backend needs to show a visual.
type Placement struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Parent   string
	Scale    float64
	Style    string
}

// Backend is implemented by whatever actually renders. Calls arrive from the
// engine tick, at high frequency, and must not block.
type Backend interface {
	// Create allocates a hidden visual.
	Create(id VisualID, kind Kind)
	Show(id VisualID, kind Kind, p Placement)
	Hide(id VisualID)
}

type multi []Backend

// Multi fans every call out to all backends in order.
func Multi(backends ...Backend) Backend {
	out := make(multi, 0, len(backends))
	for _, b := range backends {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

func (m multi) Create(id VisualID, kind Kind) {
	for _, b := range m {
		b.Create(id, kind)
	}
}

func (m multi) Show(id VisualID, kind Kind, p Placement) {
	for _, b := range m {
		b.Show(id, kind, p)
	}
}

func (m multi) Hide(id VisualID) {
	for _, b := range m {
		b.Hide(id)
	}
}
