package game

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"slether-arena/internal/config"
	"slether-arena/internal/geom"
	"slether-arena/internal/grid"
	"slether-arena/internal/protocol"
)

// Food is a collectible item. Ambient food is worth food.ambient_value;
// anything worth more is loot dropped by a dead agent.
type Food struct {
	ID    string
	Pos   geom.Point
	Color string
	Value int
	Loot  bool
	Born  time.Time // zero for ambient food

	seq uint64
}

// IsLoot reports whether the item came from a death drop.
func (f *Food) IsLoot() bool { return f.Loot }

// ToDTO converts Food to a serializable DTO.
func (f *Food) ToDTO() protocol.FoodDTO {
	loot := 0
	if f.Loot {
		loot = 1
	}
	return protocol.FoodDTO{
		X:      geom.RoundTo1(f.Pos.X),
		Y:      geom.RoundTo1(f.Pos.Y),
		Color:  f.Color,
		Value:  f.Value,
		IsLoot: loot,
	}
}

// Economy owns every food item and the exact food grid. It also records
// the added/removed delta for the next snapshot.
type Economy struct {
	cfg   *config.FoodConfig
	size  float64
	rng   *rand.Rand
	items map[string]*Food
	grid  *grid.Grid
	seq   uint64

	added   map[string]*Food
	removed []string
}

// NewEconomy creates an empty economy for cfg.
func NewEconomy(cfg *config.Config, rng *rand.Rand) *Economy {
	return &Economy{
		cfg:   &cfg.Food,
		size:  cfg.World.MapSize,
		rng:   rng,
		items: make(map[string]*Food),
		grid:  grid.New(cfg.World.GridCellSize),
		added: make(map[string]*Food),
	}
}

// Len returns the number of live food items.
func (e *Economy) Len() int { return len(e.items) }

// Get returns the item with id.
func (e *Economy) Get(id string) (*Food, bool) {
	f, ok := e.items[id]
	return f, ok
}

// Full reports whether the hard cap has been reached.
func (e *Economy) Full() bool { return len(e.items) >= e.cfg.MaxFood }

// Seed spawns n ambient items at uniform random positions.
func (e *Economy) Seed(n int, now time.Time) {
	for i := 0; i < n; i++ {
		if _, ok := e.Spawn(nil, e.cfg.AmbientValue, 0, false, now); !ok {
			return
		}
	}
}

// Spawn creates one item. With at set, the position is at jittered by up to
// scatter per axis and clamped into the map; otherwise it is uniform over
// the map. Non-forced spawns are refused at capacity.
func (e *Economy) Spawn(at *geom.Point, value int, scatter float64, force bool, now time.Time) (*Food, bool) {
	if !force && e.Full() {
		return nil, false
	}
	var p geom.Point
	if at != nil {
		p = at.Add(
			(e.rng.Float64()*2-1)*scatter,
			(e.rng.Float64()*2-1)*scatter,
		)
		p.X = geom.Clamp(p.X, 0, e.size)
		p.Y = geom.Clamp(p.Y, 0, e.size)
	} else {
		p = geom.Point{X: e.rng.Float64() * e.size, Y: e.rng.Float64() * e.size}
	}

	e.seq++
	f := &Food{
		ID:    fmt.Sprintf("f%d", e.seq),
		Pos:   p,
		Value: value,
		Loot:  value > e.cfg.AmbientValue,
		seq:   e.seq,
	}
	if f.Loot {
		f.Color = lootColors[e.rng.Intn(len(lootColors))]
		f.Born = now
	} else {
		f.Color = foodColors[e.rng.Intn(len(foodColors))]
	}
	e.items[f.ID] = f
	e.grid.Insert(f.ID, f.Pos)
	e.added[f.ID] = f
	return f, true
}

// Consume removes an item and returns it. Unknown ids are ignored.
func (e *Economy) Consume(id string) (*Food, bool) {
	f, ok := e.items[id]
	if !ok {
		return nil, false
	}
	delete(e.items, id)
	e.grid.Remove(id, f.Pos)
	if _, fresh := e.added[id]; fresh {
		// Never announced, so the client never needs to hear about it.
		delete(e.added, id)
	} else {
		e.removed = append(e.removed, id)
	}
	return f, true
}

// MakeRoom evicts the oldest ambient items until n more fit under the cap.
// Loot is never evicted. Returns the number evicted.
func (e *Economy) MakeRoom(n int) int {
	excess := len(e.items) + n - e.cfg.MaxFood
	if excess <= 0 {
		return 0
	}
	ambient := e.sorted(func(f *Food) bool { return !f.Loot })
	if excess > len(ambient) {
		excess = len(ambient)
	}
	for _, f := range ambient[:excess] {
		e.Consume(f.ID)
	}
	return excess
}

// ExpireLoot removes loot older than the configured expiry.
func (e *Economy) ExpireLoot(now time.Time) int {
	expired := e.sorted(func(f *Food) bool {
		return f.Loot && now.Sub(f.Born) > e.cfg.LootExpiry
	})
	for _, f := range expired {
		e.Consume(f.ID)
	}
	return len(expired)
}

// Near returns items in the 3x3 grid block around p.
func (e *Economy) Near(p geom.Point) []*Food {
	ids := e.grid.Query(p)
	out := make([]*Food, 0, len(ids))
	for _, id := range ids {
		if f, ok := e.items[id]; ok {
			out = append(out, f)
		}
	}
	return out
}

// All returns every item as a DTO map for init_food.
func (e *Economy) All() map[string]protocol.FoodDTO {
	out := make(map[string]protocol.FoodDTO, len(e.items))
	for id, f := range e.items {
		out[id] = f.ToDTO()
	}
	return out
}

// Drain returns the delta accumulated since the previous call and resets it.
func (e *Economy) Drain() protocol.FoodDelta {
	delta := protocol.FoodDelta{
		Added:   make(map[string]protocol.FoodDTO, len(e.added)),
		Removed: e.removed,
	}
	for id, f := range e.added {
		delta.Added[id] = f.ToDTO()
	}
	if delta.Removed == nil {
		delta.Removed = []string{}
	}
	e.added = make(map[string]*Food)
	e.removed = nil
	return delta
}

// sorted returns the items matching keep in insertion order.
func (e *Economy) sorted(keep func(*Food) bool) []*Food {
	var out []*Food
	for _, f := range e.items {
		if keep(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

var foodColors = []string{
	"#ff6b6b", "#ffd93d", "#6bcb77", "#4d96ff", "#ff922b",
	"#cc5de8", "#20c997", "#f06595", "#74c0fc", "#a9e34b",
}

var lootColors = []string{
	"#8e44ad", "#9b59b6", "#6c3483", "#a569bd", "#7d3c98",
}
