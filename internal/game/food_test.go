package game

import (
	"testing"
	"time"

	"slether-arena/internal/config"
	"slether-arena/internal/geom"
)

func TestSpawnRefusedAtCapUnlessForced(t *testing.T) {
	w, _ := newTestWorld(t, func(c *config.Config) { c.Food.MaxFood = 3 })
	e := w.food
	e.Seed(10, t0)
	if e.Len() != 3 {
		t.Fatalf("seeded: got %d want 3", e.Len())
	}
	if f, ok := e.Spawn(nil, 1, 0, false, t0); ok || f != nil {
		t.Fatalf("non-forced spawn at cap: got ok=%v", ok)
	}
	at := geom.Point{X: 100, Y: 100}
	if _, ok := e.Spawn(&at, 5, 0, true, t0); !ok {
		t.Fatalf("forced spawn at cap refused")
	}
	if e.Len() != 4 {
		t.Fatalf("after forced spawn: got %d want 4", e.Len())
	}
}

func TestMakeRoomEvictsOldestAmbientOnly(t *testing.T) {
	w, _ := newTestWorld(t, func(c *config.Config) { c.Food.MaxFood = 5 })
	e := w.food
	p := geom.Point{X: 1000, Y: 1000}
	a1, _ := e.Spawn(&p, 1, 0, false, t0)
	a2, _ := e.Spawn(&p, 1, 0, false, t0)
	l1, _ := e.Spawn(&p, 5, 0, false, t0)
	l2, _ := e.Spawn(&p, 5, 0, false, t0)
	a3, _ := e.Spawn(&p, 1, 0, false, t0)

	if n := e.MakeRoom(1); n != 1 {
		t.Fatalf("MakeRoom(1): got %d want 1", n)
	}
	if _, ok := e.Get(a1.ID); ok {
		t.Fatalf("oldest ambient %s survived", a1.ID)
	}
	if _, ok := e.Get(a2.ID); !ok {
		t.Fatalf("second ambient %s evicted too early", a2.ID)
	}

	// Only two ambient items remain; loot is never evicted.
	if n := e.MakeRoom(10); n != 2 {
		t.Fatalf("MakeRoom(10): got %d want 2", n)
	}
	for _, f := range []*Food{a2, a3} {
		if _, ok := e.Get(f.ID); ok {
			t.Fatalf("ambient %s survived", f.ID)
		}
	}
	for _, f := range []*Food{l1, l2} {
		if _, ok := e.Get(f.ID); !ok {
			t.Fatalf("loot %s evicted", f.ID)
		}
	}
	if n := e.MakeRoom(0); n != 0 {
		t.Fatalf("MakeRoom(0) under cap: got %d want 0", n)
	}
}

func TestExpireLoot(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	e := w.food
	p := geom.Point{X: 500, Y: 500}
	loot, _ := e.Spawn(&p, 5, 0, true, t0)
	ambient, _ := e.Spawn(&p, 1, 0, true, t0)
	expiry := w.cfg.Food.LootExpiry

	if n := e.ExpireLoot(t0.Add(expiry)); n != 0 {
		t.Fatalf("at exactly expiry: got %d expired want 0", n)
	}
	if n := e.ExpireLoot(t0.Add(expiry + time.Millisecond)); n != 1 {
		t.Fatalf("past expiry: got %d expired want 1", n)
	}
	if _, ok := e.Get(loot.ID); ok {
		t.Fatalf("loot survived expiry")
	}
	if _, ok := e.Get(ambient.ID); !ok {
		t.Fatalf("ambient removed by loot expiry")
	}
	if !ambient.Born.IsZero() {
		t.Fatalf("ambient Born: got %v want zero", ambient.Born)
	}
}

func TestDrainOmitsSameTickChurn(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	e := w.food
	p := geom.Point{X: 500, Y: 500}

	f, _ := e.Spawn(&p, 1, 0, true, t0)
	e.Consume(f.ID)
	d := e.Drain()
	if len(d.Added) != 0 || len(d.Removed) != 0 {
		t.Fatalf("same-tick spawn+consume leaked into delta: %+v", d)
	}

	g, _ := e.Spawn(&p, 1, 0, true, t0)
	d = e.Drain()
	if _, ok := d.Added[g.ID]; !ok || len(d.Added) != 1 {
		t.Fatalf("added: got %v want [%s]", d.Added, g.ID)
	}
	e.Consume(g.ID)
	d = e.Drain()
	if len(d.Removed) != 1 || d.Removed[0] != g.ID {
		t.Fatalf("removed: got %v want [%s]", d.Removed, g.ID)
	}
	d = e.Drain()
	if d.Added == nil || d.Removed == nil {
		t.Fatalf("empty delta must use non-nil collections")
	}
}

func TestSpawnScatterStaysInMapAndGridExact(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	e := w.food
	size := w.cfg.World.MapSize
	corner := geom.Point{X: 0, Y: size}
	for i := 0; i < 200; i++ {
		f, _ := e.Spawn(&corner, 5, 50, true, t0)
		if f.Pos.X < 0 || f.Pos.X > size || f.Pos.Y < 0 || f.Pos.Y > size {
			t.Fatalf("food %s outside map: %+v", f.ID, f.Pos)
		}
		if !e.grid.Contains(f.ID, f.Pos) {
			t.Fatalf("food %s not indexed at its cell", f.ID)
		}
	}
	for _, f := range e.Near(corner) {
		e.Consume(f.ID)
		if e.grid.Contains(f.ID, f.Pos) {
			t.Fatalf("consumed food %s still indexed", f.ID)
		}
	}
	if e.Len() != 0 || e.grid.Len() != 0 {
		t.Fatalf("after consuming all: len=%d grid=%d", e.Len(), e.grid.Len())
	}
}

func TestFoodIsLootDerivedFromValue(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	a, _ := w.food.Spawn(nil, 1, 0, true, t0)
	l, _ := w.food.Spawn(nil, 5, 0, true, t0)
	if a.IsLoot() || !l.IsLoot() {
		t.Fatalf("IsLoot: ambient=%v loot=%v", a.IsLoot(), l.IsLoot())
	}
	if dto := l.ToDTO(); dto.IsLoot != 1 || dto.Value != 5 {
		t.Fatalf("loot DTO: %+v", dto)
	}
}
