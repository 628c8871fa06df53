// Package game is the authoritative arena simulation. A single goroutine
// (World.Run) owns all state; everything else talks to it over channels.
package game

import (
	"fmt"
	"io"
	"math/rand"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"slether-arena/internal/config"
	"slether-arena/internal/geom"
	"slether-arena/internal/grid"
	"slether-arena/internal/protocol"
	"slether-arena/internal/telemetry"
)

// PerfWriter persists periodic perf records.
type PerfWriter interface {
	WritePerf(rec telemetry.PerfRecord) error
}

// Options carries the World's collaborators. Zero values are replaced with
// quiet defaults.
type Options struct {
	Logger    *log.Logger
	Rand      *rand.Rand
	Publisher Publisher
	Sinks     []DeathSink
	Perf      PerfWriter
	Now       time.Time
}

// JoinRequest asks the World to admit a connected human. Attach, if set,
// runs on the world goroutine before the response is sent, so a publisher
// registered there receives every snapshot taken after the join and none
// taken before it.
type JoinRequest struct {
	ID     string
	Attach func()
	Resp   chan JoinResponse
}

// JoinResponse carries the init messages for the new connection, in send
// order: config, food, identity.
type JoinResponse struct {
	Messages []protocol.Message
}

// World holds all game state
type World struct {
	cfg  *config.Config
	log  *log.Logger
	rng  *rand.Rand
	pub  Publisher
	sink []DeathSink

	tick     uint64
	agents   map[string]*Agent
	sessions map[string]struct{}
	food     *Economy
	players  *grid.Grid
	respawns RespawnQueue

	join  chan JoinRequest
	leave chan string
	inbox chan protocol.Envelope
	done  chan struct{}

	perf        *telemetry.PerfCollector
	perfOut     PerfWriter
	lastStatus  time.Time
	statusTicks uint64
}

// New builds a world with its food seeded and bots spawned.
func New(cfg *config.Config, opts Options) *World {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Rand == nil {
		seed := cfg.World.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		opts.Rand = rand.New(rand.NewSource(seed))
	}
	if opts.Publisher == nil {
		opts.Publisher = Publishers(nil)
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	window := int(cfg.World.LogInterval / cfg.TickPeriod())
	w := &World{
		cfg:        cfg,
		log:        opts.Logger,
		rng:        opts.Rand,
		pub:        opts.Publisher,
		sink:       opts.Sinks,
		agents:     make(map[string]*Agent),
		sessions:   make(map[string]struct{}),
		players:    grid.New(cfg.World.GridCellSize),
		join:       make(chan JoinRequest, 16),
		leave:      make(chan string, 64),
		inbox:      make(chan protocol.Envelope, 1024),
		done:       make(chan struct{}),
		perf:       telemetry.NewPerfCollector(window),
		perfOut:    opts.Perf,
		lastStatus: opts.Now,
	}
	w.food = NewEconomy(cfg, w.rng)
	w.food.Seed(cfg.Food.FoodCount, opts.Now)
	for i := 0; i < cfg.Bot.Count; i++ {
		w.addBot(fmt.Sprintf("bot_%d", i))
	}
	w.rebuildPlayerGrid()
	// Clients get the initial food through init_food, not a delta.
	w.food.Drain()
	return w
}

// Inbox accepts player intents; they are applied between ticks.
func (w *World) Inbox() chan<- protocol.Envelope { return w.inbox }

// Join accepts connection requests from the transport.
func (w *World) Join() chan<- JoinRequest { return w.join }

// Leave accepts the ids of disconnected players.
func (w *World) Leave() chan<- string { return w.leave }

// Done is closed when Run returns.
func (w *World) Done() <-chan struct{} { return w.done }

// Tick returns the number of completed steps.
func (w *World) Tick() uint64 { return w.tick }

func (w *World) addBot(id string) *Agent {
	a := &Agent{ID: id, IsBot: true}
	a.aiSlot = aiSlot(id)
	w.respawn(a)
	w.agents[id] = a
	return a
}

// liveIDs returns live agent ids in a stable order.
func (w *World) liveIDs() []string {
	ids := make([]string, 0, len(w.agents))
	for id := range w.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// rebuildPlayerGrid registers each agent at its head cell and, for longer
// bodies, the cell of its middle point.
func (w *World) rebuildPlayerGrid() {
	w.players.Clear()
	for id, a := range w.agents {
		if len(a.Body) == 0 {
			continue
		}
		w.players.Insert(id, a.Head())
		if len(a.Body) > w.cfg.World.MidpointThreshold {
			w.players.Insert(id, a.Body[len(a.Body)/2])
		}
	}
}

// isolate runs fn and converts a panic into a logged error so one broken
// agent cannot stop the tick.
func (w *World) isolate(phase, id string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("agent step failed", "phase", phase, "agent", id, "panic", r)
		}
	}()
	fn()
}

// handleJoin admits a human. A reconnect under a known id keeps a live
// agent and drops any pending respawn.
func (w *World) handleJoin(req JoinRequest) {
	w.sessions[req.ID] = struct{}{}
	w.respawns.Remove(req.ID)
	if _, live := w.agents[req.ID]; !live {
		w.spawnHuman(req.ID)
	}
	if req.Attach != nil {
		req.Attach()
	}
	w.log.Debug("player joined", "id", req.ID, "players", len(w.sessions))

	resp := JoinResponse{Messages: []protocol.Message{
		w.initConfig(),
		protocol.InitFood{Type: protocol.MsgFood, Food: w.food.All()},
		protocol.InitIdentity{Type: protocol.MsgIdentity, ID: req.ID},
	}}
	if req.Resp != nil {
		req.Resp <- resp
	}
}

// handleLeave forgets a human immediately: agent, session and respawn entry.
func (w *World) handleLeave(id string) {
	if _, ok := w.sessions[id]; !ok {
		return
	}
	delete(w.sessions, id)
	delete(w.agents, id)
	w.respawns.Remove(id)
	w.log.Debug("player left", "id", id, "players", len(w.sessions))
}

func (w *World) spawnHuman(id string) *Agent {
	a := &Agent{ID: id}
	w.respawn(a)
	w.agents[id] = a
	return a
}

// applyIntent applies one client intent. Intents for unknown or dead
// agents are dropped.
func (w *World) applyIntent(env protocol.Envelope) {
	if _, ok := w.sessions[env.PlayerID]; !ok {
		return
	}
	a, live := w.agents[env.PlayerID]

	switch it := env.Intent.(type) {
	case protocol.SetHeading:
		if live {
			a.TargetAngle = geom.NormalizeAngle(it.Angle)
		}
	case protocol.SetBoost:
		if live {
			a.Boosting = it.On
		}
	case protocol.RequestRespawn:
		if !live {
			w.respawns.Remove(env.PlayerID)
			w.spawnHuman(env.PlayerID)
			w.pub.Send(env.PlayerID, protocol.InitIdentity{Type: protocol.MsgIdentity, ID: env.PlayerID})
		}
	case protocol.EnterSpectator:
		delete(w.agents, env.PlayerID)
		w.respawns.Remove(env.PlayerID)
	case protocol.GrantMass:
		if live && w.cfg.Debug {
			a.Length += it.Amount
		}
	}
}

func (w *World) initConfig() protocol.InitConfig {
	c := w.cfg
	return protocol.InitConfig{
		Type:             protocol.MsgConfig,
		MapSize:          c.World.MapSize,
		GridCellSize:     c.World.GridCellSize,
		TickRateHz:       c.World.TickRateHz,
		FoodCount:        c.Food.FoodCount,
		MaxFood:          c.Food.MaxFood,
		BotCount:         c.Bot.Count,
		BaseSpeed:        c.Snake.BaseSpeed,
		BoostSpeed:       c.Snake.BoostSpeed,
		InitialLength:    c.Snake.InitialLength,
		TurnDecayFactor:  c.Snake.TurnDecayFactor,
		InitialTurnSpeed: c.Snake.InitialTurnSpeed,
		MinTurnSpeed:     c.Snake.MinTurnSpeed,
		PickupRatio:      c.Food.PickupRatio,
		PickupExtra:      c.Food.PickupExtra,
		LootExpiryMs:     c.Food.LootExpiry.Milliseconds(),
		RespawnDelayMs:   c.Snake.RespawnDelay.Milliseconds(),
		GCEveryTicks:     c.Food.GCEveryTicks,
		Debug:            c.Debug,
	}
}
