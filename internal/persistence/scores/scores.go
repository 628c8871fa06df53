// Package scores keeps an all-time archive of finished lives in SQLite.
package scores

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"slether-arena/internal/game"
)

// Entry is one archived life.
type Entry struct {
	Name   string    `json:"name"`
	Score  int       `json:"score"`
	IsBot  bool      `json:"is_bot"`
	Cause  string    `json:"cause"`
	Killer string    `json:"killer,omitempty"`
	DiedAt time.Time `json:"died_at"`
}

type req struct {
	ev   game.DeathEvent
	sync chan struct{}
}

// Archive implements game.DeathSink. Inserts run on a single writer
// goroutine; RecordDeath never blocks the tick.
type Archive struct {
	db  *sql.DB
	log *log.Logger

	// mu orders sends on ch against Close.
	mu      sync.RWMutex
	closed  bool
	ch      chan req
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

// Open creates or opens the archive at path.
func Open(path string, logger *log.Logger) (*Archive, error) {
	if path == "" {
		return nil, errors.New("empty sqlite path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating scores dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening scores db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &Archive{
		db:  db,
		log: logger,
		ch:  make(chan req, 1024),
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.loop()
	}()
	return a, nil
}

func initPragmas(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("%s: %w", s, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS deaths (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			score INTEGER NOT NULL,
			is_bot INTEGER NOT NULL,
			cause TEXT NOT NULL,
			killer TEXT NOT NULL DEFAULT '',
			died_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS deaths_score ON deaths(score DESC);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

func (a *Archive) RecordDeath(ev game.DeathEvent) {
	if a == nil {
		return
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.ch <- req{ev: ev}:
	default:
		a.dropped.Add(1)
	}
}

// Dropped returns how many deaths were discarded because the queue was full.
func (a *Archive) Dropped() uint64 { return a.dropped.Load() }

// Flush waits until every death queued before the call has been written.
func (a *Archive) Flush(ctx context.Context) error {
	done := make(chan struct{})
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return nil
	}
	select {
	case a.ch <- req{sync: done}:
		a.mu.RUnlock()
	case <-ctx.Done():
		a.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Archive) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.ch)
	a.mu.Unlock()
	a.wg.Wait()
	return a.db.Close()
}

func (a *Archive) loop() {
	ins, err := a.db.Prepare(`INSERT INTO deaths(name, score, is_bot, cause, killer, died_at) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		a.log.Error("preparing score insert", "err", err)
		for r := range a.ch {
			if r.sync != nil {
				close(r.sync)
			}
		}
		return
	}
	defer ins.Close()

	for r := range a.ch {
		if r.sync != nil {
			close(r.sync)
			continue
		}
		ev := r.ev
		isBot := 0
		if ev.IsBot {
			isBot = 1
		}
		if _, err := ins.Exec(ev.Name, ev.Score, isBot, ev.Cause, ev.Killer, ev.At.UTC().Format(time.RFC3339Nano)); err != nil {
			a.log.Warn("score insert failed", "name", ev.Name, "err", err)
		}
	}
}

// Top returns the n best lives, highest score first. Bots are excluded
// unless includeBots is set.
func (a *Archive) Top(ctx context.Context, n int, includeBots bool) ([]Entry, error) {
	if n <= 0 {
		return []Entry{}, nil
	}
	q := `SELECT name, score, is_bot, cause, killer, died_at FROM deaths`
	if !includeBots {
		q += ` WHERE is_bot = 0`
	}
	q += ` ORDER BY score DESC, id ASC LIMIT ?`

	rows, err := a.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("querying top scores: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e     Entry
			isBot int
			at    string
		)
		if err := rows.Scan(&e.Name, &e.Score, &isBot, &e.Cause, &e.Killer, &at); err != nil {
			return nil, fmt.Errorf("scanning score row: %w", err)
		}
		e.IsBot = isBot != 0
		if e.DiedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parsing died_at %q: %w", at, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Handler serves GET ?n=10&bots=1 as a JSON array.
func (a *Archive) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		n := 10
		if s := r.URL.Query().Get("n"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 0 {
				http.Error(w, "bad n", http.StatusBadRequest)
				return
			}
			n = min(v, 100)
		}
		bots := r.URL.Query().Get("bots") == "1"

		entries, err := a.Top(r.Context(), n, bots)
		if err != nil {
			a.log.Warn("serving scores", "err", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entries)
	}
}
