// Package indexdb keeps a queryable SQLite read-model of streaming runs and
// their per-tick stats. It is written asynchronously and never read back by
// the engine.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"spherestream/internal/sim/stream"
)

const schemaVersion = "1"

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTicks atomic.Uint64
}

type req struct {
	tick stream.TickLogEntry
}

// Stats reports the async queue state.
type Stats struct {
	QueueDepth    int
	QueueCapacity int
	DropTickTotal uint64
}

type Run struct {
	ID           string
	StartedAt    string
	TuningDigest string
	TuningJSON   string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, errors.New("indexdb: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("indexdb: pragmas: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("indexdb: schema: %w", err)
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			tuning_digest TEXT NOT NULL,
			tuning_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			aborted INTEGER NOT NULL,
			reason TEXT,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			generated INTEGER NOT NULL,
			decorated INTEGER NOT NULL,
			evicted INTEGER NOT NULL,
			evicted_decorations INTEGER NOT NULL,
			live_cells INTEGER NOT NULL,
			live_decorations INTEGER NOT NULL,
			digest TEXT,
			PRIMARY KEY (run_id, tick)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ticks_generated ON ticks(run_id, generated);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// StartRun records a run and the tuning it applies. It is synchronous so the
// run row exists before any of its ticks are indexed.
func (s *SQLiteIndex) StartRun(runID string, tune any) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	_, err = s.db.Exec(`INSERT OR REPLACE INTO runs(run_id,started_at,tuning_digest,tuning_json) VALUES(?,?,?,?)`,
		runID,
		time.Now().UTC().Format(time.RFC3339Nano),
		hex.EncodeToString(sum[:]),
		string(b),
	)
	return err
}

// ErrClosed is returned by WriteTick after Close.
var ErrClosed = errors.New("indexdb: closed")

// WriteTick queues entry for the writer goroutine. A full queue drops the
// entry and counts it; only a closed index is an error.
func (s *SQLiteIndex) WriteTick(entry stream.TickLogEntry) error {
	if s == nil {
		return nil
	}
	if s.closed.Load() {
		return ErrClosed
	}
	select {
	case s.ch <- req{tick: entry}:
	default:
		// The JSONL tick log stays the source of truth.
		s.dropTicks.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTickTotal: s.dropTicks.Load(),
	}
}

func (s *SQLiteIndex) Run(ctx context.Context, runID string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `SELECT run_id,started_at,tuning_digest,tuning_json FROM runs WHERE run_id=?`, runID).
		Scan(&r.ID, &r.StartedAt, &r.TuningDigest, &r.TuningJSON)
	return r, err
}

// TickCount returns the indexed ticks of a run and the sum of their generated
// cells.
func (s *SQLiteIndex) TickCount(ctx context.Context, runID string) (ticks int, generated int, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(generated),0) FROM ticks WHERE run_id=?`, runID).
		Scan(&ticks, &generated)
	return ticks, generated, err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(run_id,tick,skipped,aborted,reason,x,y,z,generated,decorated,evicted,evicted_decorations,live_cells,live_decorations,digest) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil || insertTick == nil {
			continue
		}
		t := r.tick
		if _, err := tx.Stmt(insertTick).Exec(
			t.RunID,
			int64(t.Tick),
			boolInt(t.Skipped),
			boolInt(t.Aborted),
			t.Reason,
			t.Observer[0], t.Observer[1], t.Observer[2],
			t.Generated,
			t.Decorated,
			t.Evicted,
			t.EvictedDecorations,
			t.LiveCells,
			t.LiveDecorations,
			t.Digest,
		); err != nil {
			rollback()
			continue
		}
		opCount++
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ListRuns returns the most recently started runs first.
func (s *SQLiteIndex) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT run_id,started_at,tuning_digest,tuning_json FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.TuningDigest, &r.TuningJSON); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentTicks returns up to limit of a run's latest ticks, newest first.
func (s *SQLiteIndex) RecentTicks(ctx context.Context, runID string, limit int) ([]stream.TickLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT tick,skipped,aborted,COALESCE(reason,''),x,y,z,generated,decorated,evicted,evicted_decorations,live_cells,live_decorations,COALESCE(digest,'')
		FROM ticks WHERE run_id=? ORDER BY tick DESC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []stream.TickLogEntry
	for rows.Next() {
		e := stream.TickLogEntry{RunID: runID}
		var tick int64
		var skipped, aborted int
		if err := rows.Scan(&tick, &skipped, &aborted, &e.Reason,
			&e.Observer[0], &e.Observer[1], &e.Observer[2],
			&e.Generated, &e.Decorated, &e.Evicted, &e.EvictedDecorations,
			&e.LiveCells, &e.LiveDecorations, &e.Digest); err != nil {
			return nil, err
		}
		e.Tick = uint64(tick)
		e.Skipped = skipped != 0
		e.Aborted = aborted != 0
		out = append(out, e)
	}
	return out, rows.Err()
}
