package game

import (
	"math"

	"slether-arena/internal/geom"
	"slether-arena/internal/protocol"
)

// Skin is the cosmetic body pattern.
type Skin int

const (
	SkinSolid Skin = iota
	SkinStripe
	SkinSpot
)

var skinNames = [...]string{"solid", "stripe", "spot"}

func (s Skin) String() string {
	if s < 0 || int(s) >= len(skinNames) {
		return "solid"
	}
	return skinNames[s]
}

// BotState is what the planner decided last. Humans stay in StateSpawn.
type BotState int

const (
	StateSpawn BotState = iota
	StateThink
	StateLoot
	StateGraze
	StateWander
)

var stateNames = [...]string{"SPAWN", "THINK", "LOOT", "GRAZE", "WANDER"}

func (s BotState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// SectorKind classifies a scanned bot sector for the debug overlay.
type SectorKind int

const (
	SectorPlain SectorKind = iota
	SectorBlocked
	SectorLoot
)

var sectorColors = [...]string{"#00ff00", "#ff0000", "#ffff00"}

// DebugLine is one scanned sector, from the bot head to its look-ahead point.
type DebugLine struct {
	From, To geom.Point
	Kind     SectorKind
}

// Agent is one snake, human or bot.
type Agent struct {
	ID    string
	Name  string
	Color string
	Skin  Skin
	IsBot bool

	Body        []geom.Point // index 0 = head
	Length      float64
	Angle       float64 // radians, current heading
	TargetAngle float64 // radians, heading the integrator turns toward
	Boosting    bool
	WanderAngle float64
	StepAccum   float64
	Box         geom.BBox

	State BotState
	Debug []DebugLine

	aiSlot uint32
}

// Head returns the head point.
func (a *Agent) Head() geom.Point {
	return a.Body[0]
}

// VisualRadius is the rendered half-width of an agent of the given length.
func VisualRadius(length float64) float64 {
	return 6 + math.Min(28, math.Floor(length/15))
}

// HitboxRadius shrinks relative to the visual radius as agents grow so long
// bodies are easier to slip past.
func HitboxRadius(length float64) float64 {
	r := VisualRadius(length)
	switch {
	case length < 50:
		return r * 0.9
	case length < 200:
		return r * 0.7
	default:
		return r * 0.4
	}
}

// ToDTO converts the agent to its per-tick wire form.
// Coordinates are rounded to 1 decimal place to reduce wire size.
func (a *Agent) ToDTO(debug bool) protocol.AgentDTO {
	pairs := make([][2]float64, len(a.Body))
	for i, p := range a.Body {
		pairs[i] = [2]float64{geom.RoundTo1(p.X), geom.RoundTo1(p.Y)}
	}
	boost := 0
	if a.Boosting {
		boost = 1
	}
	head := a.Head()
	dto := protocol.AgentDTO{
		X:        geom.RoundTo1(head.X),
		Y:        geom.RoundTo1(head.Y),
		Angle:    geom.RoundTo2(a.Angle),
		Length:   int(a.Length),
		Radius:   VisualRadius(a.Length),
		Color:    a.Color,
		Skin:     a.Skin.String(),
		Name:     a.Name,
		Boosting: boost,
		Body:     pairs,
	}
	if debug && a.IsBot {
		dto.State = a.State.String()
		for _, l := range a.Debug {
			dto.DebugLines = append(dto.DebugLines, protocol.DebugLine{
				X:     geom.RoundTo1(l.From.X),
				Y:     geom.RoundTo1(l.From.Y),
				TX:    geom.RoundTo1(l.To.X),
				TY:    geom.RoundTo1(l.To.Y),
				Color: sectorColors[l.Kind],
			})
		}
	}
	return dto
}
