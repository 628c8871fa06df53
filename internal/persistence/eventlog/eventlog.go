// Package eventlog appends world events to hourly zstd-compressed JSONL
// files ("events-2006-01-02-15.jsonl.zst").
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"

	"slether-arena/internal/game"
)

// Entry is one JSONL line.
type Entry struct {
	Kind string `json:"kind"`
	game.DeathEvent
}

// Writer implements game.DeathSink. Events are queued and written by a
// background goroutine; when the queue is full they are dropped.
type Writer struct {
	baseDir string
	prefix  string
	log     *log.Logger

	// mu orders sends on ch against Close.
	mu      sync.RWMutex
	closed  bool
	ch      chan Entry
	wg      sync.WaitGroup
	dropped atomic.Uint64

	// owned by the writer goroutine
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// Open starts a writer rooted at baseDir.
func Open(baseDir string, logger *log.Logger) (*Writer, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating event log dir: %w", err)
	}
	w := &Writer{
		baseDir: baseDir,
		prefix:  "events",
		log:     logger,
		ch:      make(chan Entry, 4096),
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop()
	}()
	return w, nil
}

func (w *Writer) RecordDeath(ev game.DeathEvent) {
	if w == nil {
		return
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.ch <- Entry{Kind: "death", DeathEvent: ev}:
	default:
		w.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (w *Writer) Dropped() uint64 { return w.dropped.Load() }

// Close flushes pending events and closes the current file.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.ch)
	w.mu.Unlock()
	w.wg.Wait()
	return nil
}

func (w *Writer) loop() {
	defer func() {
		if err := w.closeFile(); err != nil {
			w.log.Warn("closing event log", "err", err)
		}
	}()
	for e := range w.ch {
		if err := w.write(e); err != nil {
			w.log.Warn("event log write failed", "err", err)
		}
	}
}

func (w *Writer) write(e Entry) error {
	hour := e.At.UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotate(hour); err != nil {
			return err
		}
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	// Flush only when the queue is drained to batch bursts of deaths.
	if len(w.ch) == 0 {
		return w.w.Flush()
	}
	return nil
}

func (w *Writer) rotate(hour string) error {
	if err := w.closeFile(); err != nil {
		return err
	}
	f, err := os.OpenFile(w.PathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *Writer) closeFile() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err
}

// PathForHour returns the file that holds events for hour ("2006-01-02-15").
func (w *Writer) PathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}
