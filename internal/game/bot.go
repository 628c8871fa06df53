package game

import (
	"hash/fnv"
	"math"

	"slether-arena/internal/geom"
)

// blockedScore marks a sector the bot must not steer into.
const blockedScore = -999999.0

// sighting is a food item or threat head as seen from a bot's head.
type sighting struct {
	dist    float64
	bearing float64
	value   float64
}

// aiSlot spreads bots across ai_stagger ticks.
func aiSlot(id string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return h.Sum32()
}

// plansThisTick reports whether bot a runs its planner on the current tick.
func (w *World) plansThisTick(a *Agent) bool {
	stagger := uint64(w.cfg.Bot.AIStagger)
	return (w.tick+uint64(a.aiSlot))%stagger == 0
}

// planBot scans evenly spaced headings, scores each one and steers toward
// the best. Sectors that run into a wall, near a head or across a body are
// blocked; when every sector is blocked the heading is kept.
func (w *World) planBot(a *Agent) {
	bc := w.cfg.Bot
	head := a.Head()
	a.State = StateThink
	a.Debug = a.Debug[:0]

	if w.rng.Float64() < bc.WanderChance {
		a.WanderAngle = geom.NormalizeAngle(a.WanderAngle + w.uniform(-bc.WanderStep, bc.WanderStep))
	}

	look := bc.LookRadius + a.Length*bc.LookPerLength
	lookSq := look * look

	threats := w.threatsNear(a)
	var heads []sighting
	for _, t := range threats {
		th := t.Head()
		if d2 := geom.DistSq(head, th); d2 < lookSq {
			heads = append(heads, sighting{dist: math.Sqrt(d2), bearing: geom.Bearing(head, th)})
		}
	}

	var loot, food []sighting
	for _, f := range w.food.Near(head) {
		d2 := geom.DistSq(head, f.Pos)
		if d2 >= lookSq {
			continue
		}
		s := sighting{dist: math.Sqrt(d2), bearing: geom.Bearing(head, f.Pos), value: float64(f.Value)}
		if f.Loot {
			loot = append(loot, s)
		} else if s.dist < bc.FoodRange {
			food = append(food, s)
		}
	}

	best := blockedScore
	bestAngle := a.Angle
	step := 2 * math.Pi / float64(bc.Sectors)
	for i := 0; i < bc.Sectors; i++ {
		sector := geom.NormalizeAngle(a.Angle + float64(i)*step)
		target := head.Toward(sector, look)

		score, kind := blockedScore, SectorBlocked
		if !w.sectorBlocked(head, target, look, threats) {
			score, kind = w.scoreSector(a, sector, target, heads, loot, food)
		}
		if w.cfg.Debug {
			a.Debug = append(a.Debug, DebugLine{From: head, To: target, Kind: kind})
		}
		if score > best {
			best = score
			bestAngle = sector
		}
	}

	a.TargetAngle = bestAngle
	switch {
	case best > bc.LootThreshold:
		a.State = StateLoot
		a.Boosting = true
	case best > bc.GrazeThreshold:
		a.State = StateGraze
		a.Boosting = false
	default:
		a.State = StateWander
		a.Boosting = false
	}
}

// threatsNear returns the other live agents registered near a's head.
func (w *World) threatsNear(a *Agent) []*Agent {
	var out []*Agent
	for _, id := range w.players.Query(a.Head()) {
		if id == a.ID {
			continue
		}
		if o, ok := w.agents[id]; ok && len(o.Body) > 0 {
			out = append(out, o)
		}
	}
	return out
}

func (w *World) sectorBlocked(head, target geom.Point, look float64, threats []*Agent) bool {
	bc := w.cfg.Bot
	size := w.cfg.World.MapSize
	if target.X < bc.EdgeMargin || target.X > size-bc.EdgeMargin ||
		target.Y < bc.EdgeMargin || target.Y > size-bc.EdgeMargin {
		return true
	}

	clearSq := bc.HeadClearance * bc.HeadClearance
	reach := look + bc.ThreatRange
	reachSq := reach * reach
	for _, t := range threats {
		th := t.Head()
		if geom.DistSq(target, th) < clearSq {
			return true
		}
		if geom.DistSq(head, th) > reachSq {
			continue
		}
		safe := HitboxRadius(t.Length) + bc.SafetyPad
		safeSq := safe * safe
		for j := 0; j < len(t.Body)-1; j += bc.SegmentStride {
			if geom.DistSqPointToSegment(t.Body[j], head, target) < safeSq {
				return true
			}
		}
	}
	return false
}

func (w *World) scoreSector(a *Agent, sector float64, target geom.Point, heads, loot, food []sighting) (float64, SectorKind) {
	bc := w.cfg.Bot
	size := w.cfg.World.MapSize
	center := geom.Point{X: size / 2, Y: size / 2}

	score := -math.Abs(geom.AngleDiff(a.Angle, sector)) * bc.ContinuityWeight
	score -= math.Abs(geom.AngleDiff(a.WanderAngle, sector)) * bc.WanderWeight
	score -= math.Sqrt(geom.DistSq(target, center)) * bc.CenterBias

	for _, h := range heads {
		if math.Abs(geom.AngleDiff(sector, h.bearing)) < bc.HeadTolerance {
			score -= bc.HeadPenalty / (h.dist*0.01 + 1)
		}
	}

	kind := SectorPlain
	for _, l := range loot {
		if math.Abs(geom.AngleDiff(sector, l.bearing)) < bc.LootTolerance {
			score += bc.LootReward * l.value / (l.dist*0.1 + 1)
			kind = SectorLoot
		}
	}
	if kind != SectorLoot {
		for _, f := range food {
			if math.Abs(geom.AngleDiff(sector, f.bearing)) < bc.FoodTolerance {
				score += bc.FoodReward * f.value / (f.dist*0.01 + 1)
			}
		}
	}
	return score, kind
}
