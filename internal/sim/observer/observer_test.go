package observer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestTrackerUnknownUntilSet(t *testing.T) {
	var tr Tracker
	if _, ok := tr.Position(); ok {
		t.Fatalf("expected unknown position")
	}
	tr.Set(mgl64.Vec3{1, 2, 3})
	if p, ok := tr.Position(); !ok || p != (mgl64.Vec3{1, 2, 3}) {
		t.Fatalf("unexpected position %v %v", p, ok)
	}
	tr.Clear()
	if _, ok := tr.Position(); ok {
		t.Fatalf("expected cleared position")
	}
}

func TestWalkerAdvances(t *testing.T) {
	w := NewWalker(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0.5, 0, -1})
	w.Advance()
	w.Advance()
	if p, _ := w.Position(); p != (mgl64.Vec3{1, 0, -2}) {
		t.Fatalf("unexpected position %v", p)
	}
	var src Source = Fixed{4, 0, 4}
	if p, ok := src.Position(); !ok || p != (mgl64.Vec3{4, 0, 4}) {
		t.Fatalf("unexpected fixed position %v", p)
	}
}

func TestMissingCatchesTypedNil(t *testing.T) {
	var tr *Tracker
	var w *Walker
	for _, src := range []Source{nil, tr, w} {
		if !Missing(src) {
			t.Fatalf("Missing(%#v)=false", src)
		}
	}
	for _, src := range []Source{Fixed{}, &Tracker{}, NewWalker(mgl64.Vec3{}, mgl64.Vec3{})} {
		if Missing(src) {
			t.Fatalf("Missing(%#v)=true", src)
		}
	}
}
