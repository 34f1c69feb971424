// Package observer provides the position sources the streaming engine polls
// once per tick.
package observer

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Source reports the current observer position. ok is false while no position
// is known yet; the engine skips the tick in that case.
type Source interface {
	Position() (pos mgl64.Vec3, ok bool)
}

// Missing reports whether src is nil, including a nil *Tracker or *Walker
// stored in the interface.
func Missing(src Source) bool {
	switch s := src.(type) {
	case nil:
		return true
	case *Tracker:
		return s == nil
	case *Walker:
		return s == nil
	}
	return false
}

// Fixed is a Source that never moves.
type Fixed mgl64.Vec3

func (f Fixed) Position() (mgl64.Vec3, bool) { return mgl64.Vec3(f), true }

// Tracker holds the latest position reported by an input source. It is safe
// for concurrent use.
type Tracker struct {
	mu  sync.RWMutex
	pos mgl64.Vec3
	ok  bool
}

func (t *Tracker) Set(pos mgl64.Vec3) {
	t.mu.Lock()
	t.pos = pos
	t.ok = true
	t.mu.Unlock()
}

// Clear forgets the position, e.g. when the input source disconnects.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.ok = false
	t.mu.Unlock()
}

func (t *Tracker) Position() (mgl64.Vec3, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pos, t.ok
}

// Walker moves in a straight line by Velocity every Advance. It drives
// headless runs.
type Walker struct {
	mu       sync.Mutex
	pos      mgl64.Vec3
	velocity mgl64.Vec3
}

func NewWalker(start, velocity mgl64.Vec3) *Walker {
	return &Walker{pos: start, velocity: velocity}
}

func (w *Walker) Position() (mgl64.Vec3, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos, true
}

func (w *Walker) Advance() {
	w.mu.Lock()
	w.pos = w.pos.Add(w.velocity)
	w.mu.Unlock()
}
