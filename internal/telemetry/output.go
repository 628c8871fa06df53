// Package telemetry measures the tick loop and writes the measurements out.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
)

// PerfRecord is one row of perf.csv, written once per status interval.
type PerfRecord struct {
	Time         string  `csv:"time"`
	Tick         uint64  `csv:"tick"`
	TicksPerSec  float64 `csv:"ticks_per_sec"`
	AvgTickMs    float64 `csv:"avg_tick_ms"`
	MaxTickMs    float64 `csv:"max_tick_ms"`
	RespawnMs    float64 `csv:"respawn_ms"`
	MaintainMs   float64 `csv:"maintenance_ms"`
	AIMs         float64 `csv:"ai_ms"`
	IntegrateMs  float64 `csv:"integrate_ms"`
	CollideMs    float64 `csv:"collide_ms"`
	DeathsMs     float64 `csv:"deaths_ms"`
	SnapshotMs   float64 `csv:"snapshot_ms"`
	Agents       int     `csv:"agents"`
	Food         int     `csv:"food"`
	RespawnQueue int     `csv:"respawn_queue"`
}

// NewPerfRecord flattens stats into a CSV row.
func NewPerfRecord(at time.Time, tick uint64, tps float64, st PerfStats) PerfRecord {
	return PerfRecord{
		Time:        at.UTC().Format(time.RFC3339),
		Tick:        tick,
		TicksPerSec: tps,
		AvgTickMs:   Ms(st.AvgTickDuration),
		MaxTickMs:   Ms(st.MaxTickDuration),
		RespawnMs:   Ms(st.PhaseAvg[PhaseRespawn]),
		MaintainMs:  Ms(st.PhaseAvg[PhaseMaintenance]),
		AIMs:        Ms(st.PhaseAvg[PhaseAI]),
		IntegrateMs: Ms(st.PhaseAvg[PhaseIntegrate]),
		CollideMs:   Ms(st.PhaseAvg[PhaseCollide]),
		DeathsMs:    Ms(st.PhaseAvg[PhaseDeaths]),
		SnapshotMs:  Ms(st.PhaseAvg[PhaseSnapshot]),
	}
}

// CSVWriter appends PerfRecords to a CSV file, writing the header once.
type CSVWriter struct {
	mu            sync.Mutex
	f             *os.File
	headerWritten bool
}

// NewCSVWriter opens path for appending, creating it and its directory if
// needed. An empty path disables output and returns nil, which is safe to
// call methods on.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating perf output directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}
	// An existing file already carries the header.
	return &CSVWriter{f: f, headerWritten: info.Size() > 0}, nil
}

// WritePerf appends one record.
func (w *CSVWriter) WritePerf(rec PerfRecord) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	records := []PerfRecord{rec}
	if !w.headerWritten {
		if err := gocsv.Marshal(records, w.f); err != nil {
			return fmt.Errorf("writing perf csv: %w", err)
		}
		w.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, w.f); err != nil {
		return fmt.Errorf("writing perf csv: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (w *CSVWriter) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}
