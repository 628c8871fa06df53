// Package config holds the arena tunables. Values come from the embedded
// defaults.yaml, optionally overlaid by a user file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is fixed at process start; the simulation treats it as read-only.
type Config struct {
	World  WorldConfig  `yaml:"world"`
	Food   FoodConfig   `yaml:"food"`
	Snake  SnakeConfig  `yaml:"snake"`
	Bot    BotConfig    `yaml:"bot"`
	Server ServerConfig `yaml:"server"`

	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`
}

// WorldConfig covers map geometry and tick pacing.
type WorldConfig struct {
	MapSize           float64       `yaml:"map_size"`
	GridCellSize      float64       `yaml:"grid_cell_size"`
	TickRateHz        int           `yaml:"tick_rate_hz"`
	PlayerGridEvery   int           `yaml:"player_grid_every_ticks"`
	MidpointThreshold int           `yaml:"midpoint_threshold"`
	LeaderboardSize   int           `yaml:"leaderboard_size"`
	LogInterval       time.Duration `yaml:"log_interval"`
	Seed              int64         `yaml:"seed"`
}

// FoodConfig covers the food economy.
type FoodConfig struct {
	FoodCount    int           `yaml:"food_count"`
	MaxFood      int           `yaml:"max_food"`
	AmbientValue int           `yaml:"ambient_value"`
	LootValue    int           `yaml:"loot_value"`
	PickupRatio  float64       `yaml:"pickup_ratio"`
	PickupExtra  float64       `yaml:"pickup_extra"`
	DropRatio    float64       `yaml:"drop_ratio"`
	LootScatter  float64       `yaml:"loot_scatter"`
	BoostScatter float64       `yaml:"boost_scatter"`
	LootExpiry   time.Duration `yaml:"loot_expiry"`
	GCEveryTicks int           `yaml:"gc_every_ticks"`
}

// SnakeConfig covers movement, growth and spawning.
type SnakeConfig struct {
	BaseSpeed        float64       `yaml:"base_speed"`
	BoostSpeed       float64       `yaml:"boost_speed"`
	InitialLength    float64       `yaml:"initial_length"`
	MinLength        float64       `yaml:"min_length"`
	BoostCostTicks   int           `yaml:"boost_cost_ticks"`
	BodyResolution   float64       `yaml:"body_resolution"`
	SegmentSlack     int           `yaml:"segment_slack"`
	TurnDecayFactor  float64       `yaml:"turn_decay_factor"`
	InitialTurnSpeed float64       `yaml:"initial_turn_speed"`
	MinTurnSpeed     float64       `yaml:"min_turn_speed"`
	SpeedBonus       float64       `yaml:"speed_bonus"`
	SpeedBonusLength float64       `yaml:"speed_bonus_length"`
	SpawnMargin      float64       `yaml:"spawn_margin"`
	SpawnInset       float64       `yaml:"spawn_inset"`
	SpawnJitter      float64       `yaml:"spawn_jitter"`
	RespawnDelay     time.Duration `yaml:"respawn_delay"`
}

// BotConfig covers the sector-scan planner.
type BotConfig struct {
	Count            int     `yaml:"count"`
	TurnMultiplier   float64 `yaml:"turn_multiplier"`
	CenterBias       float64 `yaml:"center_bias"`
	WanderChance     float64 `yaml:"wander_chance"`
	WanderStep       float64 `yaml:"wander_step"`
	AIStagger        int     `yaml:"ai_stagger"`
	Sectors          int     `yaml:"sectors"`
	LookRadius       float64 `yaml:"look_radius"`
	LookPerLength    float64 `yaml:"look_per_length"`
	FoodRange        float64 `yaml:"food_range"`
	EdgeMargin       float64 `yaml:"edge_margin"`
	HeadClearance    float64 `yaml:"head_clearance"`
	ThreatRange      float64 `yaml:"threat_range"`
	SafetyPad        float64 `yaml:"safety_pad"`
	SegmentStride    int     `yaml:"segment_stride"`
	ContinuityWeight float64 `yaml:"continuity_weight"`
	WanderWeight     float64 `yaml:"wander_weight"`
	HeadTolerance    float64 `yaml:"head_tolerance"`
	HeadPenalty      float64 `yaml:"head_penalty"`
	LootTolerance    float64 `yaml:"loot_tolerance"`
	LootReward       float64 `yaml:"loot_reward"`
	FoodTolerance    float64 `yaml:"food_tolerance"`
	FoodReward       float64 `yaml:"food_reward"`
	LootThreshold    float64 `yaml:"loot_threshold"`
	GrazeThreshold   float64 `yaml:"graze_threshold"`
}

// ServerConfig covers the network edge.
type ServerConfig struct {
	Addr          string        `yaml:"addr"`
	StaticDir     string        `yaml:"static_dir"`
	WSPath        string        `yaml:"ws_path"`
	MaxPlayers    int           `yaml:"max_players"`
	IPCooldown    time.Duration `yaml:"ip_cooldown"`
	OutboundQueue int           `yaml:"outbound_queue"`
}

// Defaults returns the embedded configuration.
func Defaults() *Config {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		panic(fmt.Sprintf("embedded defaults.yaml: %v", err))
	}
	return cfg
}

// Load reads the embedded defaults and overlays path when it is not empty.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only fields present in the file are overwritten.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the simulation cannot run with.
func (c *Config) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"world.map_size", c.World.MapSize},
		{"world.grid_cell_size", c.World.GridCellSize},
		{"world.tick_rate_hz", float64(c.World.TickRateHz)},
		{"world.player_grid_every_ticks", float64(c.World.PlayerGridEvery)},
		{"food.max_food", float64(c.Food.MaxFood)},
		{"food.ambient_value", float64(c.Food.AmbientValue)},
		{"food.gc_every_ticks", float64(c.Food.GCEveryTicks)},
		{"snake.base_speed", c.Snake.BaseSpeed},
		{"snake.boost_speed", c.Snake.BoostSpeed},
		{"snake.boost_cost_ticks", float64(c.Snake.BoostCostTicks)},
		{"snake.body_resolution", c.Snake.BodyResolution},
		{"snake.turn_decay_factor", c.Snake.TurnDecayFactor},
		{"bot.ai_stagger", float64(c.Bot.AIStagger)},
		{"bot.sectors", float64(c.Bot.Sectors)},
		{"bot.segment_stride", float64(c.Bot.SegmentStride)},
	}
	for _, p := range positive {
		if !(p.v > 0) {
			return fmt.Errorf("%w: %s must be > 0", ErrInvalid, p.name)
		}
	}
	if c.Food.FoodCount < 0 || c.Food.FoodCount > c.Food.MaxFood {
		return fmt.Errorf("%w: food.food_count must be in [0, max_food]", ErrInvalid)
	}
	if c.Food.LootValue <= c.Food.AmbientValue {
		return fmt.Errorf("%w: food.loot_value must exceed ambient_value", ErrInvalid)
	}
	if c.Food.DropRatio < 0 || c.Food.DropRatio > 1 {
		return fmt.Errorf("%w: food.drop_ratio must be in [0, 1]", ErrInvalid)
	}
	if c.Snake.MinLength < 0 || c.Snake.InitialLength < c.Snake.MinLength {
		return fmt.Errorf("%w: snake.initial_length must be >= min_length >= 0", ErrInvalid)
	}
	if c.Snake.MinTurnSpeed > c.Snake.InitialTurnSpeed {
		return fmt.Errorf("%w: snake.min_turn_speed exceeds initial_turn_speed", ErrInvalid)
	}
	if 2*c.Snake.SpawnInset >= c.World.MapSize || c.Snake.SpawnMargin <= c.Snake.SpawnInset {
		return fmt.Errorf("%w: snake spawn band does not fit the map", ErrInvalid)
	}
	if c.World.LeaderboardSize < 0 {
		return fmt.Errorf("%w: world.leaderboard_size must be >= 0", ErrInvalid)
	}
	if c.World.LogInterval <= 0 {
		return fmt.Errorf("%w: world.log_interval must be > 0", ErrInvalid)
	}
	if c.Bot.Count < 0 {
		return fmt.Errorf("%w: bot.count must be >= 0", ErrInvalid)
	}
	return nil
}

// TickPeriod is the nominal sleep between ticks.
func (c *Config) TickPeriod() time.Duration {
	return time.Second / time.Duration(c.World.TickRateHz)
}

// WriteYAML saves the effective configuration.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
