package telemetry

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Phase names for the simulation step.
const (
	PhaseRespawn     = "respawn"
	PhaseMaintenance = "maintenance"
	PhaseAI          = "ai"
	PhaseIntegrate   = "integrate"
	PhaseCollide     = "collide"
	PhaseDeaths      = "deaths"
	PhaseSnapshot    = "snapshot"
)

// Phases lists the tick phases in execution order.
var Phases = []string{
	PhaseRespawn, PhaseMaintenance, PhaseAI, PhaseIntegrate,
	PhaseCollide, PhaseDeaths, PhaseSnapshot,
}

// PerfSample holds timing data for a single tick.
type PerfSample struct {
	TickDuration time.Duration
	Phases       map[string]time.Duration
}

// PerfCollector tracks tick timing over a rolling window. It is owned by
// the tick goroutine and is not safe for concurrent use.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	tickStart     time.Time
	phaseStart    time.Time
	lastPhase     string
}

// NewPerfCollector creates a new performance collector.
// windowSize: number of ticks to average over (e.g., 60 for 2 seconds at 30 ticks/sec).
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartTick begins timing a new simulation tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.currentPhases = make(map[string]time.Duration, len(Phases))
	p.lastPhase = ""
}

// StartPhase ends the running phase, if any, and starts timing phase.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndTick finishes timing the current tick and records the sample.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.samples[p.writeIndex] = PerfSample{
		TickDuration: now.Sub(p.tickStart),
		Phases:       p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
	p.lastPhase = ""
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	Samples int

	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration

	// Average duration per phase.
	PhaseAvg map[string]time.Duration
	// Share of total tick time per phase, in percent.
	PhasePct map[string]float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	st := PerfStats{
		Samples:  p.sampleCount,
		PhaseAvg: make(map[string]time.Duration),
		PhasePct: make(map[string]float64),
	}
	if p.sampleCount == 0 {
		return st
	}

	ticks := make([]float64, p.sampleCount)
	phases := make(map[string][]float64)
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		ticks[i] = float64(s.TickDuration)
		for name, d := range s.Phases {
			if phases[name] == nil {
				phases[name] = make([]float64, p.sampleCount)
			}
			phases[name][i] = float64(d)
		}
	}

	mean := stat.Mean(ticks, nil)
	st.AvgTickDuration = time.Duration(mean)
	st.MinTickDuration = time.Duration(floats.Min(ticks))
	st.MaxTickDuration = time.Duration(floats.Max(ticks))

	for name, vals := range phases {
		avg := stat.Mean(vals, nil)
		st.PhaseAvg[name] = time.Duration(avg)
		if mean > 0 {
			st.PhasePct[name] = avg / mean * 100
		}
	}
	return st
}

// Ms converts a duration to fractional milliseconds for logs and CSV.
func Ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
