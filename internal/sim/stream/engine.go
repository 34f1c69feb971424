// Package stream is the chunk streaming engine. Each tick it generates the
// missing cells in a square window around the observer, decorates new surface
// cells, and evicts everything beyond the unload radius.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"spherestream/internal/render"
	"spherestream/internal/sim/biome"
	"spherestream/internal/sim/decor"
	"spherestream/internal/sim/mathx"
	"spherestream/internal/sim/noise"
	"spherestream/internal/sim/observer"
	"spherestream/internal/sim/spatial"
)

// Rand supplies decoration draws in [0, 1).
type Rand interface {
	Float64() float64
}

type Config struct {
	// ChunkRadius is the half-width of the generation window, in grid cells.
	ChunkRadius int
	// UnloadRadius is in world units and must cover ChunkRadius*Spacing.
	// Eviction measures it with spatial.Grid.Reach, the window's own metric,
	// so nothing inside the window is evicted.
	UnloadRadius float64
	Spacing      float64
	// Parent names the scene node visuals are attached to.
	Parent    string
	Materials biome.Materials
}

func (c Config) Validate() error {
	if c.ChunkRadius < 0 {
		return fmt.Errorf("stream: chunk radius must be >= 0, got %d", c.ChunkRadius)
	}
	spacing := c.Spacing
	if spacing <= 0 {
		spacing = 1
	}
	if c.UnloadRadius < float64(c.ChunkRadius)*spacing {
		return fmt.Errorf("stream: unload radius %v is inside the generation window (chunk radius %d x spacing %v)", c.UnloadRadius, c.ChunkRadius, spacing)
	}
	if err := c.Materials.Validate(); err != nil {
		return err
	}
	return nil
}

// Deps are the collaborators of an Engine. Observer and Scene may be missing
// (or set later); ticks are skipped until both are present.
type Deps struct {
	Observer   observer.Source
	Scene      *render.Scene
	Sampler    *noise.Sampler
	Classifier *biome.Classifier
	Policy     *decor.Policy
	Rand       Rand
	Logger     *log.Logger
}

// Engine owns the generated-key set, the live cell and decoration maps and,
// through the scene, the visual pools. All of it is mutated only inside Tick,
// which holds a single mutex for the whole generate/decorate/evict pass.
type Engine struct {
	cfg  Config
	grid spatial.Grid

	sampler    *noise.Sampler
	classifier *biome.Classifier
	policy     *decor.Policy
	rng        Rand
	log        *log.Logger

	mu          sync.Mutex
	observer    observer.Source
	scene       *render.Scene
	tick        uint64
	generated   map[spatial.Key]struct{}
	cells       map[spatial.Key]*Cell
	decorations map[spatial.Key]*Decoration
	lastSkip    string
}

func New(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Sampler == nil || deps.Classifier == nil || deps.Policy == nil {
		return nil, errors.New("stream: sampler, classifier and policy are required")
	}
	if deps.Rand == nil {
		deps.Rand = mathx.NewSplitMix(0)
	}
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}
	return &Engine{
		cfg:         cfg,
		grid:        spatial.Grid{Spacing: cfg.Spacing},
		sampler:     deps.Sampler,
		classifier:  deps.Classifier,
		policy:      deps.Policy,
		rng:         deps.Rand,
		log:         deps.Logger,
		observer:    deps.Observer,
		scene:       deps.Scene,
		generated:   map[spatial.Key]struct{}{},
		cells:       map[spatial.Key]*Cell{},
		decorations: map[spatial.Key]*Decoration{},
	}, nil
}

func (e *Engine) SetObserver(src observer.Source) {
	e.mu.Lock()
	e.observer = src
	e.mu.Unlock()
}

func (e *Engine) Grid() spatial.Grid { return e.grid }

func (e *Engine) Config() Config { return e.cfg }

// Tick runs one generate, decorate, evict pass. It never fails: missing
// collaborators skip the tick, and a cancelled ctx abandons it between
// columns with every committed column intact.
func (e *Engine) Tick(ctx context.Context) TickStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := TickStats{Tick: e.tick}
	e.tick++

	pos, reason := e.observe()
	if reason != "" {
		st.Skipped = true
		st.Reason = reason
		if reason != e.lastSkip {
			e.log.Printf("tick %d skipped: %s", st.Tick, reason)
		}
		e.lastSkip = reason
		e.fillLive(&st)
		return st
	}
	e.lastSkip = ""
	st.Observer = [3]float64(pos)

	center := e.grid.KeyOf(pos)
	r := e.cfg.ChunkRadius
	for dx := -r; dx <= r; dx++ {
		for dz := -r; dz <= r; dz++ {
			if ctx.Err() != nil {
				st.Aborted = true
				e.log.Printf("tick %d abandoned: %v", st.Tick, ctx.Err())
				e.fillLive(&st)
				return st
			}
			gen, dec := e.generateColumn(center.X+dx, center.Z+dz)
			st.Generated += gen
			st.Decorated += dec
		}
	}

	st.Evicted, st.EvictedDecorations = e.evict(center)
	e.fillLive(&st)
	return st
}

func (e *Engine) observe() (mgl64.Vec3, string) {
	if e.scene == nil {
		return mgl64.Vec3{}, "no scene"
	}
	if observer.Missing(e.observer) {
		return mgl64.Vec3{}, "no observer"
	}
	pos, ok := e.observer.Position()
	if !ok {
		return mgl64.Vec3{}, "observer position unknown"
	}
	if !spatial.Valid(pos) {
		return mgl64.Vec3{}, "observer position out of range"
	}
	return pos, ""
}

func (e *Engine) fillLive(st *TickStats) {
	st.LiveCells = len(e.cells)
	st.LiveDecorations = len(e.decorations)
}

// generateColumn materializes the missing cells of column (x, z), from y=0 up
// to the noise-derived top. Only a newly generated top cell is decorated.
func (e *Engine) generateColumn(x, z int) (generated, decorated int) {
	top := e.sampler.Top(x, z)
	scale := e.sampler.SizeAt(x, z)

	var surface *Cell
	for y := 0; y <= top; y++ {
		k := spatial.Key{X: x, Y: y, Z: z}
		if _, ok := e.generated[k]; ok {
			continue
		}
		c := e.spawnCell(k, scale)
		generated++
		if y == top {
			surface = c
		}
	}
	if surface != nil && e.decorate(surface) {
		decorated++
	}
	return generated, decorated
}

func (e *Engine) spawnCell(k spatial.Key, scale float64) *Cell {
	if _, dup := e.cells[k]; dup {
		panic(fmt.Sprintf("stream: duplicate cell %v outside the generated set", k))
	}
	b := e.classifier.Classify(e.sampler.LayerSignal(k.Y))
	pos := e.grid.Position(k)
	c := &Cell{
		Key:      k,
		Position: pos,
		Scale:    scale,
		Biome:    b,
	}
	c.Visual = e.scene.Acquire(render.Sphere, render.Placement{
		Position: pos,
		Rotation: mgl64.QuatIdent(),
		Parent:   e.cfg.Parent,
		Scale:    scale,
		Style:    e.cfg.Materials.Style(b),
	})
	e.generated[k] = struct{}{}
	e.cells[k] = c
	return c
}

// decorate draws once for a new surface cell. A cell that already carries a
// decoration is left alone.
func (e *Engine) decorate(c *Cell) bool {
	if _, ok := e.decorations[c.Key]; ok {
		return false
	}
	kind, ok := e.policy.Decide(c.Biome, e.rng.Float64())
	if !ok {
		return false
	}
	pos := c.Position.Add(mgl64.Vec3{0, e.policy.Offset(kind), 0})
	d := &Decoration{
		Key:      c.Key,
		Kind:     kind,
		Position: pos,
	}
	d.Visual = e.scene.Acquire(kind, render.Placement{
		Position: pos,
		Rotation: mgl64.QuatIdent(),
		Parent:   e.cfg.Parent,
		Scale:    1,
		Style:    strings.ToLower(kind.String()),
	})
	e.decorations[c.Key] = d
	return true
}

// evict releases every cell whose reach from the observer's cell exceeds the
// unload radius, together with its decoration, and forgets its key so a later
// visit regenerates it.
func (e *Engine) evict(center spatial.Key) (cells, decorations int) {
	var far []spatial.Key
	for k := range e.cells {
		if e.grid.Reach(k, center) > e.cfg.UnloadRadius {
			far = append(far, k)
		}
	}
	// Stable release order keeps pool reuse reproducible.
	sort.Slice(far, func(i, j int) bool { return far[i].Less(far[j]) })

	for _, k := range far {
		if e.removeDecoration(k) {
			decorations++
		}
		e.removeCell(k)
		cells++
	}
	return cells, decorations
}

func (e *Engine) removeDecoration(k spatial.Key) bool {
	d, ok := e.decorations[k]
	if !ok {
		return false
	}
	e.release(d.Visual)
	delete(e.decorations, k)
	return true
}

func (e *Engine) removeCell(k spatial.Key) {
	c := e.cells[k]
	e.release(c.Visual)
	delete(e.cells, k)
	delete(e.generated, k)
}

func (e *Engine) release(h render.Handle) {
	if err := e.scene.Release(h); err != nil {
		panic(fmt.Sprintf("stream: release %s %d: %v", h.Kind, h.ID, err))
	}
}

// Reset releases every live cell and decoration.
func (e *Engine) Reset() (cells, decorations int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scene == nil {
		return 0, 0
	}
	keys := make([]spatial.Key, 0, len(e.cells))
	for k := range e.cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	for _, k := range keys {
		if e.removeDecoration(k) {
			decorations++
		}
		e.removeCell(k)
		cells++
	}
	return cells, decorations
}

// Run ticks every interval until ctx is done. sink, if set, receives every
// tick's stats on the tick goroutine.
func (e *Engine) Run(ctx context.Context, interval time.Duration, sink func(TickStats)) error {
	if interval <= 0 {
		return fmt.Errorf("stream: invalid tick interval %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			st := e.Tick(ctx)
			if sink != nil {
				sink(st)
			}
		}
	}
}
