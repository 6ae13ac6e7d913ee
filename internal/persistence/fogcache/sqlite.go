package fogcache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"outpost.world/internal/protocol"
)

// Store is a local cache of the last fog blobs and world snapshot per
// world id, so a restarted client renders explored area immediately.
// The server's world-joined snapshot always supersedes it.
//
// Writes go through a single writer goroutine; the client loop never
// blocks on the database.
type Store struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	enc *zstd.Encoder
	dec *zstd.Decoder
}

type reqKind int

const (
	reqFog reqKind = iota + 1
	reqSession
	reqFlush
)

type req struct {
	kind    reqKind
	worldID string
	fog     map[string]string
	session []byte
	done    chan struct{}
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
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
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:  db,
		ch:  make(chan req, 64),
		enc: enc,
		dec: dec,
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
		`CREATE TABLE IF NOT EXISTS fog (
			world_id TEXT NOT NULL,
			chunk_key TEXT NOT NULL,
			blob BLOB NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (world_id, chunk_key)
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			world_id TEXT PRIMARY KEY,
			snapshot BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		s.enc.Close()
		s.dec.Close()
		err = s.db.Close()
	})
	return err
}

// SaveFog queues the full mask-blob set for a world. Dropped if the
// writer falls behind; the next debounced save catches up.
func (s *Store) SaveFog(worldID string, fog map[string]string) {
	if s == nil || s.closed.Load() || worldID == "" {
		return
	}
	cp := make(map[string]string, len(fog))
	for k, v := range fog {
		cp[k] = v
	}
	select {
	case s.ch <- req{kind: reqFog, worldID: worldID, fog: cp}:
	default:
	}
}

// SaveSession queues the latest world-joined snapshot for a world.
func (s *Store) SaveSession(worldID string, snap *protocol.WorldJoinedMsg) {
	if s == nil || s.closed.Load() || worldID == "" {
		return
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return
	}
	select {
	case s.ch <- req{kind: reqSession, worldID: worldID, session: b}:
	default:
	}
}

func (s *Store) loop() {
	for r := range s.ch {
		switch r.kind {
		case reqFog:
			s.writeFog(r.worldID, r.fog)
		case reqSession:
			s.writeSession(r.worldID, r.session)
		case reqFlush:
			close(r.done)
		}
	}
}

func (s *Store) writeFog(worldID string, fog map[string]string) {
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := s.db.Begin()
	if err != nil {
		return
	}
	for key, blob := range fog {
		compressed := s.enc.EncodeAll([]byte(blob), nil)
		_, err = tx.Exec(
			`INSERT INTO fog (world_id, chunk_key, blob, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(world_id, chunk_key) DO UPDATE SET blob=excluded.blob, updated_at=excluded.updated_at`,
			worldID, key, compressed, now,
		)
		if err != nil {
			_ = tx.Rollback()
			return
		}
	}
	_ = tx.Commit()
}

func (s *Store) writeSession(worldID string, snap []byte) {
	now := time.Now().UTC().Format(time.RFC3339)
	compressed := s.enc.EncodeAll(snap, nil)
	_, _ = s.db.Exec(
		`INSERT INTO sessions (world_id, snapshot, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(world_id) DO UPDATE SET snapshot=excluded.snapshot, updated_at=excluded.updated_at`,
		worldID, compressed, now,
	)
}

// LoadFog reads all cached fog blobs for a world.
func (s *Store) LoadFog(worldID string) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT chunk_key, blob FROM fog WHERE world_id = ?`, worldID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var key string
		var compressed []byte
		if err := rows.Scan(&key, &compressed); err != nil {
			return nil, err
		}
		raw, err := s.dec.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("fog %s: %w", key, err)
		}
		out[key] = string(raw)
	}
	return out, rows.Err()
}

// LoadSession reads the cached world-joined snapshot, or nil when the
// world was never cached.
func (s *Store) LoadSession(worldID string) (*protocol.WorldJoinedMsg, error) {
	var compressed []byte
	err := s.db.QueryRow(`SELECT snapshot FROM sessions WHERE world_id = ?`, worldID).Scan(&compressed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	raw, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, err
	}
	var m protocol.WorldJoinedMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Flush blocks until every queued write has been applied; used by
// tests and shutdown. A sentinel through the writer channel preserves
// ordering.
func (s *Store) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{kind: reqFlush, done: done}
	<-done
}
