package game

import (
	"math"

	"slether-arena/internal/geom"
)

// DeathCause is why an agent died.
type DeathCause int

const (
	CauseWall DeathCause = iota + 1
	CauseHead
	CauseBody
)

func (c DeathCause) String() string {
	switch c {
	case CauseWall:
		return "wall"
	case CauseHead:
		return "head"
	case CauseBody:
		return "body"
	default:
		return "unknown"
	}
}

// death records the first cause found for an agent this tick.
type death struct {
	cause  DeathCause
	killer string
}

func markDead(deaths map[string]death, id string, d death) {
	if _, ok := deaths[id]; !ok {
		deaths[id] = d
	}
}

// detectCollisions returns every agent that died this tick. Head-on contact
// is decided per pair: the shorter agent dies and equal lengths kill both,
// so the result does not depend on iteration order.
func (w *World) detectCollisions(ids []string) map[string]death {
	deaths := make(map[string]death)
	for _, id := range ids {
		a, ok := w.agents[id]
		if !ok || len(a.Body) == 0 {
			continue
		}
		w.isolate("collide", id, func() { w.collide(a, deaths) })
	}
	return deaths
}

func (w *World) collide(a *Agent, deaths map[string]death) {
	head := a.Head()
	r1 := HitboxRadius(a.Length)
	size := w.cfg.World.MapSize
	if head.X < r1 || head.X > size-r1 || head.Y < r1 || head.Y > size-r1 {
		markDead(deaths, a.ID, death{cause: CauseWall})
		return
	}

	for _, oid := range w.players.Query(head) {
		if oid == a.ID {
			continue
		}
		o, ok := w.agents[oid]
		if !ok || len(o.Body) == 0 {
			continue
		}
		hit := r1 + HitboxRadius(o.Length)
		if !a.Box.Expand(hit).Overlaps(o.Box) {
			continue
		}
		hitSq := hit * hit

		if geom.DistSq(head, o.Head()) < hitSq {
			switch {
			case a.Length < o.Length:
				markDead(deaths, a.ID, death{cause: CauseHead, killer: o.ID})
				return
			case a.Length > o.Length:
				markDead(deaths, o.ID, death{cause: CauseHead, killer: a.ID})
				continue
			default:
				markDead(deaths, a.ID, death{cause: CauseHead, killer: o.ID})
				markDead(deaths, o.ID, death{cause: CauseHead, killer: a.ID})
				return
			}
		}

		for i := 1; i+1 < len(o.Body); i++ {
			p1, p2 := o.Body[i], o.Body[i+1]
			if head.X < math.Min(p1.X, p2.X)-hit || head.X > math.Max(p1.X, p2.X)+hit ||
				head.Y < math.Min(p1.Y, p2.Y)-hit || head.Y > math.Max(p1.Y, p2.Y)+hit {
				continue
			}
			if geom.DistSqPointToSegment(head, p1, p2) < hitSq {
				markDead(deaths, a.ID, death{cause: CauseBody, killer: o.ID})
				return
			}
		}
	}
}
