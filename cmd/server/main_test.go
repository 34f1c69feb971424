package main

import (
	"bytes"
	"io"
	"log"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"spherestream/internal/persistence/indexdb"
	persistlog "spherestream/internal/persistence/log"
	"spherestream/internal/render"
	"spherestream/internal/sim/pool"
	"spherestream/internal/sim/stream"
	"spherestream/internal/transport/viewer"
)

func TestTickSinksWriteTickLog(t *testing.T) {
	dir := t.TempDir()
	tl := persistlog.NewTickLogger(dir, "run-x")
	s := &tickSinks{runID: "run-x", log: log.New(io.Discard, "", 0), tickLog: tl, hub: viewer.NewHub(viewer.Options{})}
	for i := 0; i < 3; i++ {
		s.WriteTick(stream.TickStats{Tick: uint64(i), Generated: 2})
	}
	if err := tl.Close(); err != nil {
		t.Fatal(err)
	}
	files, err := persistlog.ListTickFiles(persistlog.TickDir(dir))
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	n := 0
	if err := persistlog.ReadTicks(files[0], func(e stream.TickLogEntry) error {
		if e.RunID != "run-x" || e.Tick != uint64(n) {
			t.Fatalf("entry %d = %+v", n, e)
		}
		n++
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("entries=%d want 3", n)
	}
}

func TestTickSinksReportClosedIndexOnce(t *testing.T) {
	idx, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "runs.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	s := &tickSinks{runID: "run-x", log: log.New(&buf, "", 0), idx: idx}
	for i := 0; i < 3; i++ {
		s.WriteTick(stream.TickStats{Tick: uint64(i)})
	}
	if n := strings.Count(buf.String(), "index: indexdb: closed"); n != 1 {
		t.Fatalf("logged %d index errors, want 1: %q", n, buf.String())
	}
}

func TestWriteMetrics(t *testing.T) {
	rw := httptest.NewRecorder()
	writeMetrics(rw, stream.Stats{
		Tick:      12,
		LiveCells: 40,
		Pools: map[render.Kind]pool.Stats{
			render.Sphere: {Active: 40, Idle: 60, Allocated: 100},
		},
	}, viewer.Stats{Clients: 2, Dropped: 1}, nil)
	body := rw.Body.String()
	for _, want := range []string{
		"spherestream_tick 12",
		`spherestream_live{what="cells"} 40`,
		`spherestream_pool{kind="SPHERE",state="idle"} 60`,
		"spherestream_viewer_clients 2",
		`spherestream_viewer_messages_total{what="dropped"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "spherestream_index_queue_depth") {
		t.Fatal("index metrics written without an index")
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("SS_TEST_FLAG", "yes")
	if !envBool("SS_TEST_FLAG", false) {
		t.Fatal("yes should be true")
	}
	t.Setenv("SS_TEST_FLAG", "garbage")
	if envBool("SS_TEST_FLAG", false) {
		t.Fatal("unknown value should fall back to default")
	}
}
