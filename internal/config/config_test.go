package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults_MatchEmbeddedValues(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.World.MapSize != 5000 {
		t.Fatalf("map_size: got %v want 5000", cfg.World.MapSize)
	}
	if cfg.Food.MaxFood != 2000 || cfg.Food.FoodCount != 1000 {
		t.Fatalf("food: got count=%d max=%d", cfg.Food.FoodCount, cfg.Food.MaxFood)
	}
	if cfg.Food.LootExpiry != 15*time.Second {
		t.Fatalf("loot_expiry: got %v want 15s", cfg.Food.LootExpiry)
	}
	if cfg.Snake.RespawnDelay != 3*time.Second {
		t.Fatalf("respawn_delay: got %v want 3s", cfg.Snake.RespawnDelay)
	}
	if got := cfg.TickPeriod(); got != time.Second/30 {
		t.Fatalf("tick period: got %v", got)
	}
}

func TestLoad_OverlaysOnlyPresentFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arena.yaml")
	body := "world:\n  map_size: 3000\nbot:\n  count: 4\ndebug: true\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.World.MapSize != 3000 {
		t.Fatalf("map_size: got %v want 3000", cfg.World.MapSize)
	}
	if cfg.Bot.Count != 4 || !cfg.Debug {
		t.Fatalf("overlay not applied: count=%d debug=%v", cfg.Bot.Count, cfg.Debug)
	}
	if cfg.World.GridCellSize != 400 {
		t.Fatalf("grid_cell_size should keep default, got %v", cfg.World.GridCellSize)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero map", func(c *Config) { c.World.MapSize = 0 }},
		{"zero cell", func(c *Config) { c.World.GridCellSize = 0 }},
		{"food count over cap", func(c *Config) { c.Food.FoodCount = c.Food.MaxFood + 1 }},
		{"loot not above ambient", func(c *Config) { c.Food.LootValue = c.Food.AmbientValue }},
		{"drop ratio", func(c *Config) { c.Food.DropRatio = 1.5 }},
		{"initial below min", func(c *Config) { c.Snake.InitialLength = c.Snake.MinLength - 1 }},
		{"no sectors", func(c *Config) { c.Bot.Sectors = 0 }},
		{"spawn band", func(c *Config) { c.Snake.SpawnMargin = c.Snake.SpawnInset }},
		{"negative leaderboard", func(c *Config) { c.World.LeaderboardSize = -1 }},
		{"zero log interval", func(c *Config) { c.World.LogInterval = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("got %v want ErrInvalid", err)
			}
		})
	}
}

func TestValidate_AllowsEmptyLeaderboard(t *testing.T) {
	cfg := Defaults()
	cfg.World.LeaderboardSize = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("leaderboard_size 0: %v", err)
	}
}

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	cfg := Defaults()
	cfg.Bot.Count = 7
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Bot.Count != 7 || got.Food.LootExpiry != cfg.Food.LootExpiry {
		t.Fatalf("reloaded config differs: count=%d expiry=%v", got.Bot.Count, got.Food.LootExpiry)
	}
}
