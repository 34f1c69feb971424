package render

import (
	"spherestream/internal/sim/pool"
)

// Handle is a live visual owned by exactly one cell or decoration.
type Handle struct {
	ID   VisualID
	Kind Kind
}

// Scene owns one pool per prefab kind on top of a Backend. Like the pools it
// wraps, a Scene is confined to the engine tick.
type Scene struct {
	backend Backend
	pools   [kindCount]*pool.Pool[VisualID, Placement]
	nextID  VisualID
}

func NewScene(backend Backend) *Scene {
	s := &Scene{backend: backend}
	for _, kind := range Kinds() {
		kind := kind // per-iteration copy (go.mod is go 1.21)
		s.pools[kind] = pool.New(pool.Hooks[VisualID, Placement]{
			New: func() VisualID {
				s.nextID++
				id := s.nextID
				s.backend.Create(id, kind)
				return id
			},
			Activate: func(id VisualID, p Placement) {
				s.backend.Show(id, kind, p)
			},
			Deactivate: func(id VisualID) {
				s.backend.Hide(id)
			},
		})
	}
	return s
}

// Warm pre-allocates n hidden visuals of kind.
func (s *Scene) Warm(kind Kind, n int) {
	if kind.Valid() {
		s.pools[kind].Warm(n)
	}
}

func (s *Scene) Acquire(kind Kind, p Placement) Handle {
	if !kind.Valid() {
		panic("render: acquire of invalid kind " + kind.String())
	}
	return Handle{ID: s.pools[kind].Acquire(p), Kind: kind}
}

// Release returns h to the pool of its kind. It fails with pool.ErrNotActive
// when h is not currently live.
func (s *Scene) Release(h Handle) error {
	if !h.Kind.Valid() {
		return pool.ErrNotActive
	}
	return s.pools[h.Kind].Release(h.ID)
}

func (s *Scene) Stats() map[Kind]pool.Stats {
	out := make(map[Kind]pool.Stats, kindCount)
	for _, k := range Kinds() {
		out[k] = s.pools[k].Stats()
	}
	return out
}

// Active is the number of live visuals across all kinds.
func (s *Scene) Active() int {
	n := 0
	for _, p := range s.pools {
		n += p.Stats().Active
	}
	return n
}
