package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"

	persistlog "spherestream/internal/persistence/log"
	"spherestream/internal/render"
	"spherestream/internal/sim/observer"
	"spherestream/internal/sim/stream"
	"spherestream/internal/sim/tuning"
)

func main() {
	var (
		ticksDir   = flag.String("ticks", "./data/ticks", "directory containing ticks-*.jsonl.zst")
		tuningPath = flag.String("tuning", "", "tuning.yaml the run was started with (default: built-in defaults)")
		runID      = flag.String("run", "", "run id to replay (default: first run in the log)")
		verify     = flag.Bool("verify", true, "re-run the engine and compare digests")
	)
	flag.Parse()

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	files, err := persistlog.ListTickFiles(*ticksDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list ticks:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no tick files found in", *ticksDir)
		os.Exit(1)
	}

	r, err := newReplayer(tune, *runID, *verify)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	for _, path := range files {
		if err := persistlog.ReadTicks(path, r.apply); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	s := r.summary
	if s.Ticks == 0 {
		fmt.Fprintln(os.Stderr, "no ticks for run", *runID)
		os.Exit(1)
	}
	fmt.Printf("run=%s ticks=%d skipped=%d aborted=%d generated=%d decorated=%d evicted=%d max_live_cells=%d\n",
		s.RunID, s.Ticks, s.Skipped, s.Aborted, s.Generated, s.Decorated, s.Evicted, s.MaxLiveCells)
	if *verify {
		fmt.Printf("replay ok: checked=%d ticks\n", s.Checked)
	}
}

type summary struct {
	RunID        string
	Ticks        int
	Skipped      int
	Aborted      int
	Checked      int
	Generated    int
	Decorated    int
	Evicted      int
	MaxLiveCells int
}

// replayer drives a fresh engine through the observer positions of one
// logged run. A logged skip is reproduced by hiding the observer.
type replayer struct {
	verify  bool
	engine  *stream.Engine
	tracker *observer.Tracker
	summary summary
}

func newReplayer(tune tuning.Tuning, runID string, verify bool) (*replayer, error) {
	r := &replayer{verify: verify, tracker: &observer.Tracker{}}
	r.summary.RunID = runID
	if !verify {
		return r, nil
	}
	e, err := tune.Build(r.tracker, render.NewScene(render.NewRecorder()), nil)
	if err != nil {
		return nil, err
	}
	r.engine = e
	return r, nil
}

func (r *replayer) apply(entry stream.TickLogEntry) error {
	if r.summary.RunID == "" {
		r.summary.RunID = entry.RunID
	}
	if entry.RunID != r.summary.RunID {
		return nil
	}
	s := &r.summary
	if s.Ticks == 0 && entry.Tick != 0 {
		return fmt.Errorf("run %s starts at tick %d, not 0", entry.RunID, entry.Tick)
	}
	if entry.Tick != uint64(s.Ticks) {
		return fmt.Errorf("tick gap: want=%d got=%d", s.Ticks, entry.Tick)
	}
	s.Ticks++
	s.Generated += entry.Generated
	s.Decorated += entry.Decorated
	s.Evicted += entry.Evicted
	if entry.LiveCells > s.MaxLiveCells {
		s.MaxLiveCells = entry.LiveCells
	}
	if entry.Skipped {
		s.Skipped++
	}
	if entry.Aborted {
		s.Aborted++
	}
	if !r.verify {
		return nil
	}
	if entry.Aborted {
		// A partially generated tick cannot be reproduced.
		fmt.Printf("tick %d was abandoned; verification stops here\n", entry.Tick)
		r.verify = false
		return nil
	}

	if entry.Skipped {
		r.tracker.Clear()
	} else {
		r.tracker.Set(mgl64.Vec3(entry.Observer))
	}
	got := r.engine.Tick(context.Background())
	if got.Skipped != entry.Skipped || got.Generated != entry.Generated || got.Decorated != entry.Decorated || got.Evicted != entry.Evicted {
		return fmt.Errorf("tick %d: stats mismatch: got=%+v want=%+v", entry.Tick, got, entry.TickStats)
	}
	if entry.Digest != "" {
		if d := r.engine.Digest(); d != entry.Digest {
			return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", entry.Tick, d, entry.Digest)
		}
	}
	s.Checked++
	return nil
}
