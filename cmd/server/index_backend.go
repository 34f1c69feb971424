package main

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"spherestream/internal/persistence/indexdb"
	persistlog "spherestream/internal/persistence/log"
	"spherestream/internal/sim/stream"
	"spherestream/internal/transport/viewer"
)

func openRuntimeIndex(dataDir string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("SS_INDEX_BACKEND"))) {
	case "none", "off", "disabled":
		return nil, nil
	}
	return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "runs.sqlite"))
}

// tickSinks fans one tick's stats out to the tick log, the index and the
// viewers. Write errors are logged once per kind of failure and never stop the
// engine.
type tickSinks struct {
	runID string
	log   *log.Logger

	tickLog *persistlog.TickLogger
	idx     *indexdb.SQLiteIndex
	hub     *viewer.Hub

	logFailing bool
	idxFailing bool
}

func (s *tickSinks) WriteTick(st stream.TickStats) {
	if s.tickLog != nil {
		err := s.tickLog.WriteTick(st)
		switch {
		case err != nil && !s.logFailing:
			s.log.Printf("tick log: %v", err)
			s.logFailing = true
		case err == nil && s.logFailing:
			s.log.Printf("tick log recovered at tick %d", st.Tick)
			s.logFailing = false
		}
	}
	if s.idx != nil {
		err := s.idx.WriteTick(stream.TickLogEntry{RunID: s.runID, TickStats: st})
		if err != nil && !s.idxFailing {
			s.log.Printf("index: %v", err)
		}
		s.idxFailing = err != nil
	}
	if s.hub != nil {
		s.hub.PublishTick(st)
	}
}
