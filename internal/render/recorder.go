package render

import (
	"sort"
	"sync"
)

// Visual is the recorded state of one backend visual.
type Visual struct {
	ID        VisualID
	Kind      Kind
	Visible   bool
	Placement Placement
}

// Recorder is an in-memory Backend. It keeps the latest state of every visual
// and is safe to read while the engine ticks.
type Recorder struct {
	mu      sync.Mutex
	visuals map[VisualID]*Visual

	creates, shows, hides uint64
}

func NewRecorder() *Recorder {
	return &Recorder{visuals: map[VisualID]*Visual{}}
}

func (r *Recorder) Create(id VisualID, kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	r.visuals[id] = &Visual{ID: id, Kind: kind}
}

func (r *Recorder) Show(id VisualID, kind Kind, p Placement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shows++
	v := r.visuals[id]
	if v == nil {
		v = &Visual{ID: id, Kind: kind}
		r.visuals[id] = v
	}
	v.Visible = true
	v.Placement = p
}

func (r *Recorder) Hide(id VisualID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hides++
	if v := r.visuals[id]; v != nil {
		v.Visible = false
	}
}

// Visible returns the visible visuals ordered by id.
func (r *Recorder) Visible() []Visual {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Visual, 0, len(r.visuals))
	for _, v := range r.visuals {
		if v.Visible {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Recorder) Get(id VisualID) (Visual, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.visuals[id]
	if v == nil {
		return Visual{}, false
	}
	return *v, true
}

// CountVisible counts visible visuals of kind.
func (r *Recorder) CountVisible(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.visuals {
		if v.Visible && v.Kind == kind {
			n++
		}
	}
	return n
}

func (r *Recorder) Counters() (creates, shows, hides uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates, r.shows, r.hides
}
