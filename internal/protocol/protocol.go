// Package protocol defines the arena's boundary: the closed set of intents a
// connected identity may send, and the messages the world emits.
//
// Protocol uses single-character JSON keys to minimize wire size.
// All x,y coordinates are rounded to 1 decimal place.
//
// Message type constants (value of "t" field):
//
//	Client → Server:
//	  "h" = heading   {"t":"h","a":1.57}
//	  "b" = boost     {"t":"b","b":1}
//	  "r" = respawn   {"t":"r"}
//	  "x" = spectate  {"t":"x"}
//	  "g" = grant     {"t":"g","m":50}   (debug mode only)
//	Server → Client:
//	  "c" = config    {"t":"c", ...tunables}
//	  "f" = food      {"t":"f","f":{id:food}}
//	  "w" = identity  {"t":"w","i":"id"}
//	  "s" = state     {"t":"s","k":tick,"p":{id:agent},"f":{"a":{},"r":[]},"l":[...]}
//	  "d" = death     {"t":"d","p":score}
package protocol

// Message type identifiers, single-char for compact protocol
const (
	MsgHeading   = "h"
	MsgBoost     = "b"
	MsgRespawn   = "r"
	MsgSpectate  = "x"
	MsgGrantMass = "g"

	MsgConfig   = "c"
	MsgFood     = "f"
	MsgIdentity = "w"
	MsgState    = "s"
	MsgDeath    = "d"
)

// Intent is an inbound request from one connected identity. The set of
// implementations is closed to this package.
type Intent interface {
	intent()
}

// SetHeading changes the agent's target heading (radians).
type SetHeading struct{ Angle float64 }

// SetBoost toggles boosting.
type SetBoost struct{ On bool }

// RequestRespawn asks for an immediate respawn when not alive.
type RequestRespawn struct{}

// EnterSpectator removes the agent from play while staying connected.
type EnterSpectator struct{}

// GrantMass adds length to the agent. Honored only in debug mode.
type GrantMass struct{ Amount float64 }

func (SetHeading) intent()     {}
func (SetBoost) intent()       {}
func (RequestRespawn) intent() {}
func (EnterSpectator) intent() {}
func (GrantMass) intent()      {}

// Envelope binds an intent to the identity that sent it.
type Envelope struct {
	PlayerID string
	Intent   Intent
}

// ClientMessage is the raw inbound frame.
type ClientMessage struct {
	Type   string   `json:"t"`
	Angle  *float64 `json:"a,omitempty"`
	Boost  int      `json:"b,omitempty"` // 0 or 1 (client sends int, not bool)
	Amount float64  `json:"m,omitempty"`
}

// Message is any outbound message.
type Message interface {
	MsgType() string
}

// InitConfig exposes the read-only tunables to a new client.
type InitConfig struct {
	Type             string  `json:"t"`
	MapSize          float64 `json:"map_size"`
	GridCellSize     float64 `json:"grid_cell_size"`
	TickRateHz       int     `json:"tick_rate_hz"`
	FoodCount        int     `json:"food_count"`
	MaxFood          int     `json:"max_food"`
	BotCount         int     `json:"bot_count"`
	BaseSpeed        float64 `json:"base_speed"`
	BoostSpeed       float64 `json:"boost_speed"`
	InitialLength    float64 `json:"initial_length"`
	TurnDecayFactor  float64 `json:"turn_decay_factor"`
	InitialTurnSpeed float64 `json:"initial_turn_speed"`
	MinTurnSpeed     float64 `json:"min_turn_speed"`
	PickupRatio      float64 `json:"pickup_ratio"`
	PickupExtra      float64 `json:"pickup_extra"`
	LootExpiryMs     int64   `json:"loot_expiry_ms"`
	RespawnDelayMs   int64   `json:"respawn_delay_ms"`
	GCEveryTicks     int     `json:"gc_every_ticks"`
	Debug            bool    `json:"debug"`
}

// InitFood is the full food collection sent once on connect.
type InitFood struct {
	Type string             `json:"t"`
	Food map[string]FoodDTO `json:"f"`
}

// InitIdentity tells a client which agent id is theirs.
type InitIdentity struct {
	Type string `json:"t"`
	ID   string `json:"i"`
}

// TickSnapshot is broadcast to every viewer once per tick. Agents are fully
// re-serialized each tick; only food is diffed.
type TickSnapshot struct {
	Type        string              `json:"t"`
	Tick        uint64              `json:"k"`
	Agents      map[string]AgentDTO `json:"p"`
	Food        FoodDelta           `json:"f"`
	Leaderboard []LeaderboardEntry  `json:"l"`
}

// DeathNotice is sent to a human whose agent died.
// {"t":"d","p":42}
type DeathNotice struct {
	Type  string `json:"t"`
	Score int    `json:"p"`
}

// AgentDTO is the compact agent for per-tick state updates.
// Body points are encoded as [x,y] pairs to save bytes vs {"x":..,"y":..} objects.
type AgentDTO struct {
	X        float64      `json:"x"`
	Y        float64      `json:"y"`
	Angle    float64      `json:"a"`
	Length   int          `json:"p"`
	Radius   float64      `json:"w"` // visual radius
	Color    string       `json:"c"`
	Skin     string       `json:"k"`
	Name     string       `json:"n"`
	Boosting int          `json:"b,omitempty"` // 1 if boosting, omitted if not
	Body     [][2]float64 `json:"s"`

	// Debug overlay, only populated in debug mode.
	State      string      `json:"st,omitempty"`
	DebugLines []DebugLine `json:"dl,omitempty"`
}

// DebugLine is one scanned bot sector.
type DebugLine struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	TX    float64 `json:"tx"`
	TY    float64 `json:"ty"`
	Color string  `json:"c"`
}

// FoodDTO is the compact food record.
// {"x":1.0,"y":2.0,"c":"#f00","v":1,"l":0}
type FoodDTO struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Color  string  `json:"c"`
	Value  int     `json:"v"`
	IsLoot int     `json:"l"` // 0 or 1
}

// FoodDelta lists food added and removed since the previous tick.
type FoodDelta struct {
	Added   map[string]FoodDTO `json:"a"`
	Removed []string           `json:"r"`
}

// LeaderboardEntry is a single leaderboard row.
// {"i":"id","n":"name","p":score}
type LeaderboardEntry struct {
	ID    string `json:"i"`
	Name  string `json:"n"`
	Score int    `json:"p"`
}

func (InitConfig) MsgType() string   { return MsgConfig }
func (InitFood) MsgType() string     { return MsgFood }
func (InitIdentity) MsgType() string { return MsgIdentity }
func (TickSnapshot) MsgType() string { return MsgState }
func (DeathNotice) MsgType() string  { return MsgDeath }
