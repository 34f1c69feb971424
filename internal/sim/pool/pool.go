// Package pool recycles engine-side resources between an active and an idle
// state. A Pool never reports exhaustion: when the idle supply is empty it
// allocates a new resource.
//
// A Pool is not safe for concurrent use. It is owned by exactly one streaming
// engine and touched only from that engine's tick.
package pool

import (
	"errors"
	"fmt"
)

var ErrNotActive = errors.New("pool: resource is not active")

// Hooks connect a Pool to the resources it manages.
type Hooks[T comparable, P any] struct {
	// New allocates an underlying resource in the idle (hidden) state.
	New func() T
	// Activate positions the resource and makes it visible.
	Activate func(t T, p P)
	// Deactivate hides the resource.
	Deactivate func(t T)
}

type Stats struct {
	Active    int    `json:"active"`
	Idle      int    `json:"idle"`
	Allocated int    `json:"allocated"`
	Acquires  uint64 `json:"acquires"`
	Releases  uint64 `json:"releases"`
}

type Pool[T comparable, P any] struct {
	hooks Hooks[T, P]

	// FIFO of idle resources; idle[head:] is live.
	idle []T
	head int

	active map[T]struct{}

	allocated int
	acquires  uint64
	releases  uint64
}

func New[T comparable, P any](hooks Hooks[T, P]) *Pool[T, P] {
	if hooks.New == nil {
		panic("pool: Hooks.New is required")
	}
	return &Pool[T, P]{
		hooks:  hooks,
		active: map[T]struct{}{},
	}
}

// Warm allocates n idle resources up front.
func (p *Pool[T, P]) Warm(n int) {
	for i := 0; i < n; i++ {
		p.idle = append(p.idle, p.allocate())
	}
}

func (p *Pool[T, P]) allocate() T {
	t := p.hooks.New()
	if _, dup := p.active[t]; dup {
		panic(fmt.Sprintf("pool: New returned active resource %v", t))
	}
	p.allocated++
	return t
}

// Acquire hands out the oldest idle resource, or a new one when none is idle.
func (p *Pool[T, P]) Acquire(place P) T {
	var t T
	if p.head < len(p.idle) {
		t = p.idle[p.head]
		var zero T
		p.idle[p.head] = zero
		p.head++
		if p.head == len(p.idle) {
			p.idle = p.idle[:0]
			p.head = 0
		}
	} else {
		t = p.allocate()
	}
	p.active[t] = struct{}{}
	p.acquires++
	if p.hooks.Activate != nil {
		p.hooks.Activate(t, place)
	}
	return t
}

// Release hides t and returns it to the idle supply. Releasing a resource that
// is not active is a caller error and leaves the pool unchanged.
func (p *Pool[T, P]) Release(t T) error {
	if _, ok := p.active[t]; !ok {
		return fmt.Errorf("%w: %v", ErrNotActive, t)
	}
	delete(p.active, t)
	p.releases++
	if p.hooks.Deactivate != nil {
		p.hooks.Deactivate(t)
	}
	if p.head > 0 && p.head*2 >= len(p.idle) {
		n := copy(p.idle, p.idle[p.head:])
		clear(p.idle[n:])
		p.idle = p.idle[:n]
		p.head = 0
	}
	p.idle = append(p.idle, t)
	return nil
}

func (p *Pool[T, P]) IsActive(t T) bool {
	_, ok := p.active[t]
	return ok
}

func (p *Pool[T, P]) Stats() Stats {
	return Stats{
		Active:    len(p.active),
		Idle:      len(p.idle) - p.head,
		Allocated: p.allocated,
		Acquires:  p.acquires,
		Releases:  p.releases,
	}
}
