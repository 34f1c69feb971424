package pool

import (
	"errors"
	"testing"

	"spherestream/internal/sim/mathx"
)

type fakeRes struct {
	next    int
	visible map[int]bool
	placed  map[int]string
}

func newFake() (*fakeRes, Hooks[int, string]) {
	f := &fakeRes{visible: map[int]bool{}, placed: map[int]string{}}
	return f, Hooks[int, string]{
		New: func() int {
			f.next++
			f.visible[f.next] = false
			return f.next
		},
		Activate: func(id int, where string) {
			f.visible[id] = true
			f.placed[id] = where
		},
		Deactivate: func(id int) {
			f.visible[id] = false
		},
	}
}

func TestAcquireFallsBackToAllocation(t *testing.T) {
	f, hooks := newFake()
	p := New(hooks)

	a := p.Acquire("a")
	b := p.Acquire("b")
	if a == b {
		t.Fatalf("expected distinct resources")
	}
	if !f.visible[a] || f.placed[b] != "b" {
		t.Fatalf("activate hook not applied: %+v", f)
	}
	st := p.Stats()
	if st.Allocated != 2 || st.Active != 2 || st.Idle != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestReleaseReusesIdleInFIFOOrder(t *testing.T) {
	f, hooks := newFake()
	p := New(hooks)
	p.Warm(3)
	if st := p.Stats(); st.Idle != 3 || st.Allocated != 3 {
		t.Fatalf("warm stats %+v", st)
	}

	a := p.Acquire("a")
	b := p.Acquire("b")
	if err := p.Release(a); err != nil {
		t.Fatalf("release: %v", err)
	}
	if f.visible[a] {
		t.Fatalf("released resource still visible")
	}
	// Remaining warm resource comes first, then a.
	c := p.Acquire("c")
	d := p.Acquire("d")
	if c == a || d != a {
		t.Fatalf("expected FIFO reuse: a=%d c=%d d=%d", a, c, d)
	}
	if p.Stats().Allocated != 3 {
		t.Fatalf("unexpected allocation: %+v", p.Stats())
	}
	_ = b
}

func TestDoubleReleaseIsRejected(t *testing.T) {
	_, hooks := newFake()
	p := New(hooks)
	a := p.Acquire("a")
	if err := p.Release(a); err != nil {
		t.Fatalf("release: %v", err)
	}
	before := p.Stats()
	if err := p.Release(a); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
	if err := p.Release(999); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive for foreign resource, got %v", err)
	}
	if p.Stats() != before {
		t.Fatalf("failed release mutated pool: %+v vs %+v", p.Stats(), before)
	}
}

func TestConservationUnderRandomWorkload(t *testing.T) {
	_, hooks := newFake()
	p := New(hooks)
	p.Warm(5)
	rng := mathx.NewSplitMix(99)

	owners := map[int]bool{}
	var held []int
	for i := 0; i < 5000; i++ {
		if len(held) == 0 || rng.Float64() < 0.55 {
			r := p.Acquire("x")
			if owners[r] {
				t.Fatalf("resource %d handed to two owners", r)
			}
			owners[r] = true
			held = append(held, r)
		} else {
			j := int(rng.Uint64() % uint64(len(held)))
			r := held[j]
			held[j] = held[len(held)-1]
			held = held[:len(held)-1]
			if err := p.Release(r); err != nil {
				t.Fatalf("release %d: %v", r, err)
			}
			delete(owners, r)
		}
		st := p.Stats()
		if uint64(st.Active) != st.Acquires-st.Releases {
			t.Fatalf("step %d: active=%d acquires=%d releases=%d", i, st.Active, st.Acquires, st.Releases)
		}
		if st.Active != len(held) {
			t.Fatalf("step %d: active=%d held=%d", i, st.Active, len(held))
		}
		if st.Active+st.Idle != st.Allocated {
			t.Fatalf("step %d: active+idle=%d allocated=%d", i, st.Active+st.Idle, st.Allocated)
		}
	}
}
