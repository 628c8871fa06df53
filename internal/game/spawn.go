package game

import (
	"fmt"
	"math"

	"slether-arena/internal/geom"
)

// respawn resets every mutable field of a and places it in the spawn band
// along a random edge, facing roughly toward the map center.
func (w *World) respawn(a *Agent) {
	s := w.cfg.Snake
	size := w.cfg.World.MapSize

	along := w.uniform(s.SpawnInset, size-s.SpawnInset)
	across := w.uniform(s.SpawnInset, s.SpawnMargin)
	if w.rng.Float64() < 0.5 {
		across = size - across
	}
	var p geom.Point
	if w.rng.Float64() < 0.5 {
		p = geom.Point{X: along, Y: across}
	} else {
		p = geom.Point{X: across, Y: along}
	}

	center := geom.Point{X: size / 2, Y: size / 2}
	angle := geom.NormalizeAngle(geom.Bearing(p, center) + w.uniform(-s.SpawnJitter, s.SpawnJitter))

	a.Body = []geom.Point{p}
	a.Length = s.InitialLength
	a.Angle = angle
	a.TargetAngle = angle
	a.WanderAngle = angle
	a.Boosting = false
	a.StepAccum = 0
	a.Box = geom.BoxOf(a.Body)
	a.State = StateSpawn
	a.Debug = nil
	a.Name = w.randomName()
	a.Color = agentColors[w.rng.Intn(len(agentColors))]
	a.Skin = Skin(w.rng.Intn(len(skinNames)))
}

func (w *World) uniform(lo, hi float64) float64 {
	return lo + w.rng.Float64()*(hi-lo)
}

func (w *World) randomName() string {
	adj := nameAdjectives[w.rng.Intn(len(nameAdjectives))]
	noun := nameNouns[w.rng.Intn(len(nameNouns))]
	return fmt.Sprintf("%s %s", adj, noun)
}

// turnRate is the max heading change per tick. Long agents turn slower.
func (w *World) turnRate(a *Agent) float64 {
	s := w.cfg.Snake
	rate := math.Max(s.MinTurnSpeed, s.InitialTurnSpeed/(1+a.Length/s.TurnDecayFactor))
	if a.IsBot {
		rate *= w.cfg.Bot.TurnMultiplier
	}
	return rate
}

// Agent colors palette
var agentColors = []string{
	"#e74c3c", "#3498db", "#2ecc71", "#f39c12", "#9b59b6",
	"#1abc9c", "#e67e22", "#e91e63", "#00bcd4", "#8bc34a",
	"#ff5722", "#607d8b", "#795548", "#673ab7", "#03a9f4",
	"#4caf50", "#ffeb3b", "#ff9800", "#f44336", "#9c27b0",
}

var nameAdjectives = []string{
	"Swift", "Silent", "Hungry", "Crimson", "Lazy", "Neon", "Shadow",
	"Golden", "Venomous", "Sneaky", "Thunder", "Frosty", "Wild", "Lucky",
}

var nameNouns = []string{
	"Viper", "Cobra", "Mamba", "Python", "Adder", "Boa", "Asp",
	"Krait", "Taipan", "Sidewinder", "Anaconda", "Noodle", "Wyrm",
}
