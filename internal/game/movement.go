package game

import (
	"math"
	"time"

	"slether-arena/internal/geom"
)

// speedOf returns the distance covered this tick. Short agents get a bonus
// that fades out by snake.speed_bonus_length.
func (w *World) speedOf(a *Agent) float64 {
	s := w.cfg.Snake
	speed := s.BaseSpeed
	if a.Boosting {
		speed = s.BoostSpeed
	}
	if a.Length < s.SpeedBonusLength {
		speed += s.SpeedBonus * (1 - a.Length/s.SpeedBonusLength)
	}
	return speed
}

// integrate advances one agent by a tick: turn, boost cost, head advance,
// body bookkeeping, pickup and bounding box.
func (w *World) integrate(a *Agent, now time.Time) {
	s := w.cfg.Snake

	rate := w.turnRate(a)
	diff := geom.AngleDiff(a.Angle, a.TargetAngle)
	switch {
	case math.Abs(diff) < rate:
		a.Angle = a.TargetAngle
	case diff > 0:
		a.Angle += rate
	default:
		a.Angle -= rate
	}
	a.Angle = geom.NormalizeAngle(a.Angle)

	if a.Boosting && a.Length <= s.MinLength {
		a.Boosting = false
	}
	speed := w.speedOf(a)
	if a.Boosting && w.tick%uint64(s.BoostCostTicks) == 0 {
		a.Length = math.Max(0, a.Length-1)
		tail := a.Body[len(a.Body)-1]
		w.food.MakeRoom(1)
		w.food.Spawn(&tail, w.cfg.Food.AmbientValue, w.cfg.Food.BoostScatter, true, now)
	}

	head := a.Body[0].Toward(a.Angle, speed)
	a.Body[0] = head
	a.StepAccum += speed
	if a.StepAccum >= s.BodyResolution {
		a.Body = append(a.Body, geom.Point{})
		copy(a.Body[2:], a.Body[1:])
		a.Body[1] = head
		a.StepAccum = 0

		target := int(a.Length*s.BaseSpeed/s.BodyResolution) + s.SegmentSlack
		if target < 1 {
			target = 1
		}
		if len(a.Body) > target {
			a.Body = a.Body[:target]
		}
	}

	w.pickup(a, now)
	a.Box = geom.BoxOf(a.Body)
}

// pickup consumes every food item within reach of the head. Eaten ambient
// food is replaced elsewhere; loot is not.
func (w *World) pickup(a *Agent, now time.Time) {
	fc := w.cfg.Food
	head := a.Head()
	reach := VisualRadius(a.Length)*fc.PickupRatio + fc.PickupExtra
	reachSq := reach * reach

	for _, f := range w.food.Near(head) {
		if geom.DistSq(head, f.Pos) >= reachSq {
			continue
		}
		if _, ok := w.food.Consume(f.ID); !ok {
			continue
		}
		a.Length += float64(f.Value)
		if !f.Loot {
			w.food.Spawn(nil, fc.AmbientValue, 0, false, now)
		}
	}
}
