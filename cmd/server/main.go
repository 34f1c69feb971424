package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"spherestream/internal/persistence/indexdb"
	persistlog "spherestream/internal/persistence/log"
	"spherestream/internal/render"
	"spherestream/internal/sim/observer"
	"spherestream/internal/sim/stream"
	"spherestream/internal/sim/tuning"
	"spherestream/internal/transport/viewer"
	"spherestream/internal/viewerproto"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: built-in defaults)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite run index")

		walk        = flag.Bool("walk", false, "drive the observer with a scripted straight-line walk instead of a viewer")
		walkSpeed   = flag.Float64("walk_speed", 0.25, "walk distance per tick (world units)")
		walkHeading = flag.Float64("walk_heading", 0, "walk heading in degrees from +X towards +Z")
		maxTicks    = flag.Uint64("ticks", 0, "stop after this many ticks (0 = run until signalled)")
		remote      = flag.Bool("allow_remote_viewers", false, "accept viewer connections from non-loopback addresses")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)
	streamLogger := log.New(os.Stdout, "[stream] ", log.LstdFlags|log.Lmicroseconds)
	viewerLogger := log.New(os.Stdout, "[viewer] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(strings.TrimSpace(*tuningPath))
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}
	runID := uuid.NewString()

	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.StartRun(runID, tune); err != nil {
			logger.Printf("index: start run: %v", err)
		}
	}

	var (
		src     observer.Source
		walker  *observer.Walker
		tracker *observer.Tracker
	)
	if *walk {
		rad := *walkHeading * math.Pi / 180
		walker = observer.NewWalker(mgl64.Vec3{}, mgl64.Vec3{math.Cos(rad), 0, math.Sin(rad)}.Mul(*walkSpeed))
		src = walker
	} else {
		tracker = &observer.Tracker{}
		src = tracker
	}

	hub := viewer.NewHub(viewer.Options{
		Logger:  viewerLogger,
		Tracker: tracker,
		Params: viewerproto.WorldParams{
			TickRateHz:   tune.TickRateHz,
			ChunkRadius:  tune.ChunkRadius,
			UnloadRadius: tune.UnloadRadius,
			CellSpacing:  tune.CellSpacing,
			Parent:       "world",
		},
		AllowRemote: *remote,
	})
	defer hub.Close()

	scene := render.NewScene(hub)
	engine, err := tune.Build(src, scene, streamLogger)
	if err != nil {
		logger.Fatalf("engine: %v", err)
	}

	tickLog := persistlog.NewTickLogger(*dataDir, runID)
	defer tickLog.Close()

	ctx, cancel := signalContext()
	defer cancel()

	sinks := &tickSinks{runID: runID, log: logger, tickLog: tickLog, idx: idx, hub: hub}
	interval := time.Second / time.Duration(tune.TickRateHz)
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		err := engine.Run(ctx, interval, func(st stream.TickStats) {
			st.Digest = engine.Digest()
			sinks.WriteTick(st)
			if walker != nil {
				walker.Advance()
			}
			if *maxTicks > 0 && st.Tick+1 >= *maxTicks {
				logger.Printf("reached %d ticks", *maxTicks)
				cancel()
			}
		})
		if err != nil && err != context.Canceled {
			logger.Printf("engine stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, engine.Stats(), hub.Stats(), idx)
	})
	mux.HandleFunc("/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		st := engine.Stats()
		pos, ok := src.Position()
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(struct {
			RunID    string       `json:"run_id"`
			Stats    stream.Stats `json:"stats"`
			Observer []float64    `json:"observer,omitempty"`
			Digest   string       `json:"digest"`
		}{
			RunID:    runID,
			Stats:    st,
			Observer: observerJSON(pos, ok),
			Digest:   engine.Digest(),
		})
	})
	mux.HandleFunc("/v1/viewer/params", hub.ParamsHandler())
	mux.HandleFunc("/v1/viewer/ws", hub.WSHandler())
	if envBool("SS_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("run %s listening on %s (walk=%v radius=%d unload=%.1f)", runID, *addr, *walk, tune.ChunkRadius, tune.UnloadRadius)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	<-engineDone
	cells, decorations := engine.Reset()
	logger.Printf("released %d cells and %d decorations", cells, decorations)
}

func observerJSON(pos mgl64.Vec3, ok bool) []float64 {
	if !ok {
		return nil
	}
	return []float64{pos[0], pos[1], pos[2]}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func writeMetrics(rw http.ResponseWriter, st stream.Stats, vs viewer.Stats, idx *indexdb.SQLiteIndex) {
	fmt.Fprintf(rw, "# HELP spherestream_tick Current engine tick.\n")
	fmt.Fprintf(rw, "# TYPE spherestream_tick gauge\n")
	fmt.Fprintf(rw, "spherestream_tick %d\n", st.Tick)

	fmt.Fprintf(rw, "# HELP spherestream_live Live cells and decorations.\n")
	fmt.Fprintf(rw, "# TYPE spherestream_live gauge\n")
	fmt.Fprintf(rw, "spherestream_live{what=%q} %d\n", "cells", st.LiveCells)
	fmt.Fprintf(rw, "spherestream_live{what=%q} %d\n", "decorations", st.LiveDecorations)
	fmt.Fprintf(rw, "spherestream_live{what=%q} %d\n", "generated_keys", st.GeneratedKeys)

	fmt.Fprintf(rw, "# HELP spherestream_pool Visual pool sizes per prefab kind.\n")
	fmt.Fprintf(rw, "# TYPE spherestream_pool gauge\n")
	for _, k := range render.Kinds() {
		ps, ok := st.Pools[k]
		if !ok {
			continue
		}
		fmt.Fprintf(rw, "spherestream_pool{kind=%q,state=%q} %d\n", k, "active", ps.Active)
		fmt.Fprintf(rw, "spherestream_pool{kind=%q,state=%q} %d\n", k, "idle", ps.Idle)
		fmt.Fprintf(rw, "spherestream_pool{kind=%q,state=%q} %d\n", k, "allocated", ps.Allocated)
	}

	fmt.Fprintf(rw, "# HELP spherestream_viewer_clients Connected viewers.\n")
	fmt.Fprintf(rw, "# TYPE spherestream_viewer_clients gauge\n")
	fmt.Fprintf(rw, "spherestream_viewer_clients %d\n", vs.Clients)
	fmt.Fprintf(rw, "# HELP spherestream_viewer_messages_total Viewer message counters.\n")
	fmt.Fprintf(rw, "# TYPE spherestream_viewer_messages_total counter\n")
	fmt.Fprintf(rw, "spherestream_viewer_messages_total{what=%q} %d\n", "dropped", vs.Dropped)
	fmt.Fprintf(rw, "spherestream_viewer_messages_total{what=%q} %d\n", "resyncs", vs.Resyncs)
	fmt.Fprintf(rw, "spherestream_viewer_messages_total{what=%q} %d\n", "positions", vs.Positions)
	fmt.Fprintf(rw, "spherestream_viewer_messages_total{what=%q} %d\n", "ignored", vs.Ignored)

	if idx == nil {
		return
	}
	is := idx.Stats()
	fmt.Fprintf(rw, "# HELP spherestream_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(rw, "# TYPE spherestream_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "spherestream_index_queue_depth %d\n", is.QueueDepth)
	fmt.Fprintf(rw, "# HELP spherestream_index_dropped_total Ticks dropped by the index writer.\n")
	fmt.Fprintf(rw, "# TYPE spherestream_index_dropped_total counter\n")
	fmt.Fprintf(rw, "spherestream_index_dropped_total %d\n", is.DropTickTotal)
}
