package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MeldConfig represents the top-level meld.yml configuration.
type MeldConfig struct {
	Version string       `yaml:"version"`
	Game    GameConfig   `yaml:"game"`
	Timing  TimingConfig `yaml:"timing"`
	Players []Player     `yaml:"players"`
	Redis   *RedisConfig `yaml:"redis,omitempty"`
}

// GameConfig specifies the card geometry and table layout.
type GameConfig struct {
	FeatureSize  int `yaml:"feature_size"`  // Cards per meld, and values per feature
	FeatureCount int `yaml:"feature_count"` // Features per card
	TableSize    int `yaml:"table_size"`    // Number of grid slots
	DeckSize     int `yaml:"deck_size"`     // Total distinct cards; must equal feature_size^feature_count
}

// TimingConfig specifies all game timing knobs, in milliseconds.
type TimingConfig struct {
	TurnTimeoutMs        int64 `yaml:"turn_timeout_ms"`         // Countdown length per round
	TurnTimeoutWarningMs int64 `yaml:"turn_timeout_warning_ms"` // Threshold for the warning countdown style
	PointFreezeMs        int64 `yaml:"point_freeze_ms"`         // Freeze after a scored meld
	PenaltyFreezeMs      int64 `yaml:"penalty_freeze_ms"`       // Freeze after an illegal claim
	TableDelayMs         int64 `yaml:"table_delay_ms"`          // Artificial dealing latency per place/remove
	TickMs               int64 `yaml:"tick_ms,omitempty"`       // Dealer wake interval (default 1000)
}

// Player represents a single configured participant.
type Player struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`           // "human" or "bot"
	Keys string `yaml:"keys,omitempty"` // Human only: key→slot map, row-major over the grid
}

// RedisConfig enables the optional Redis display event bus.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// Duration accessors so the engine never touches raw millisecond fields.

func (t TimingConfig) TurnTimeout() time.Duration {
	return time.Duration(t.TurnTimeoutMs) * time.Millisecond
}
func (t TimingConfig) TurnTimeoutWarning() time.Duration {
	return time.Duration(t.TurnTimeoutWarningMs) * time.Millisecond
}
func (t TimingConfig) PointFreeze() time.Duration {
	return time.Duration(t.PointFreezeMs) * time.Millisecond
}
func (t TimingConfig) PenaltyFreeze() time.Duration {
	return time.Duration(t.PenaltyFreezeMs) * time.Millisecond
}
func (t TimingConfig) TableDelay() time.Duration {
	return time.Duration(t.TableDelayMs) * time.Millisecond
}
func (t TimingConfig) Tick() time.Duration { return time.Duration(t.TickMs) * time.Millisecond }

// Validate performs strict validation on the configuration.
func (c *MeldConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if err := c.Game.Validate(); err != nil {
		return err
	}

	if err := c.Timing.Validate(); err != nil {
		return err
	}

	// Required: at least one player
	if len(c.Players) == 0 {
		return fmt.Errorf("no players defined")
	}

	namesSeen := make(map[string]bool)
	for i, p := range c.Players {
		if err := p.Validate(i, c.Game.TableSize); err != nil {
			return err
		}
		if namesSeen[p.Name] {
			return fmt.Errorf("duplicate player name '%s'", p.Name)
		}
		namesSeen[p.Name] = true
	}

	return nil
}

// Validate checks the card geometry is coherent.
func (g GameConfig) Validate() error {
	if g.FeatureSize < 2 {
		return fmt.Errorf("game.feature_size must be >= 2, got %d", g.FeatureSize)
	}
	if g.FeatureCount < 1 {
		return fmt.Errorf("game.feature_count must be >= 1, got %d", g.FeatureCount)
	}
	if g.TableSize < g.FeatureSize {
		return fmt.Errorf("game.table_size must be >= feature_size (%d), got %d", g.FeatureSize, g.TableSize)
	}

	// The built-in oracle enumerates cards as base-featureSize feature vectors,
	// so the deck must cover that space exactly.
	expected := 1
	for i := 0; i < g.FeatureCount; i++ {
		expected *= g.FeatureSize
	}
	if g.DeckSize != expected {
		return fmt.Errorf("game.deck_size must equal feature_size^feature_count (%d), got %d", expected, g.DeckSize)
	}

	if g.TableSize > g.DeckSize {
		return fmt.Errorf("game.table_size (%d) cannot exceed deck_size (%d)", g.TableSize, g.DeckSize)
	}

	return nil
}

// Validate checks timing values and applies the tick default.
func (t *TimingConfig) Validate() error {
	if t.TurnTimeoutMs <= 0 {
		return fmt.Errorf("timing.turn_timeout_ms must be > 0, got %d", t.TurnTimeoutMs)
	}
	if t.TurnTimeoutWarningMs < 0 || t.TurnTimeoutWarningMs > t.TurnTimeoutMs {
		return fmt.Errorf("timing.turn_timeout_warning_ms must be in [0, turn_timeout_ms], got %d", t.TurnTimeoutWarningMs)
	}
	if t.PointFreezeMs < 0 || t.PenaltyFreezeMs < 0 || t.TableDelayMs < 0 {
		return fmt.Errorf("timing freeze/delay values must be >= 0")
	}
	if t.TickMs == 0 {
		t.TickMs = 1000
	}
	if t.TickMs < 0 {
		return fmt.Errorf("timing.tick_ms must be > 0, got %d", t.TickMs)
	}
	return nil
}

// Validate checks a single player entry.
func (p Player) Validate(index, tableSize int) error {
	if p.Name == "" {
		return fmt.Errorf("player %d: name is required", index)
	}

	switch p.Kind {
	case "human":
		// A keymap is required so the CLI can route key presses to slots.
		if p.Keys == "" {
			return fmt.Errorf("player '%s': keys is required for human players", p.Name)
		}
		if keys := []rune(p.Keys); len(keys) != tableSize {
			return fmt.Errorf("player '%s': keys must map every slot (need %d keys, got %d)", p.Name, tableSize, len(keys))
		}
		keysSeen := make(map[rune]bool)
		for _, r := range p.Keys {
			if keysSeen[r] {
				return fmt.Errorf("player '%s': duplicate key '%c' in keys", p.Name, r)
			}
			keysSeen[r] = true
		}
	case "bot":
		if p.Keys != "" {
			return fmt.Errorf("player '%s': keys is only valid for human players", p.Name)
		}
	default:
		return fmt.Errorf("player '%s': invalid kind: %s (must be 'human' or 'bot')", p.Name, p.Kind)
	}

	return nil
}

// Load reads and validates meld.yml from the specified path.
func Load(path string) (*MeldConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config MeldConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
