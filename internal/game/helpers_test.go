package game

import (
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"slether-arena/internal/config"
	"slether-arena/internal/geom"
	"slether-arena/internal/protocol"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type sent struct {
	to  string // empty for broadcasts
	msg protocol.Message
}

type recorder struct {
	mu   sync.Mutex
	msgs []sent
}

func (r *recorder) Broadcast(msg protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sent{msg: msg})
}

func (r *recorder) Send(id string, msg protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sent{to: id, msg: msg})
}

func (r *recorder) to(id string) []protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []protocol.Message
	for _, s := range r.msgs {
		if s.to == id {
			out = append(out, s.msg)
		}
	}
	return out
}

type deathLog struct{ events []DeathEvent }

func (d *deathLog) RecordDeath(ev DeathEvent) { d.events = append(d.events, ev) }

// newTestWorld builds an empty world (no bots, no food) with a fixed seed.
func newTestWorld(t *testing.T, mut func(*config.Config)) (*World, *recorder) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Bot.Count = 0
	cfg.Food.FoodCount = 0
	if mut != nil {
		mut(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	rec := &recorder{}
	w := New(cfg, Options{Rand: rand.New(rand.NewSource(1)), Publisher: rec, Now: t0})
	return w, rec
}

// place puts an agent with the given body into the world and re-indexes.
func place(w *World, id string, isBot bool, length, angle float64, body ...geom.Point) *Agent {
	a := &Agent{
		ID:          id,
		Name:        id,
		IsBot:       isBot,
		Body:        body,
		Length:      length,
		Angle:       angle,
		TargetAngle: angle,
		WanderAngle: angle,
	}
	a.aiSlot = aiSlot(id)
	a.Box = geom.BoxOf(body)
	w.agents[id] = a
	if !isBot {
		w.sessions[id] = struct{}{}
	}
	w.rebuildPlayerGrid()
	return a
}

// line returns n points starting at p spaced step apart along +x.
func line(p geom.Point, n int, step float64) []geom.Point {
	pts := make([]geom.Point, n)
	for i := range pts {
		pts[i] = p.Add(float64(i)*step, 0)
	}
	return pts
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
