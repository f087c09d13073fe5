// Package config provides unified configuration loading for rumormill.
// Order: defaults -> YAML file -> environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains all runtime settings.
type Config struct {
	// Game controls the session clock and market parameters.
	Game GameConfig `json:"game" yaml:"game"`

	// Server controls the HTTP observer API.
	Server ServerConfig `json:"server" yaml:"server"`

	// Storage controls the SQLite archive.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Logging controls log verbosity.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// GameConfig configures one game session.
type GameConfig struct {
	// ScenarioPath is a YAML scenario file. Empty uses the built-in scenario.
	ScenarioPath string `json:"scenario_path,omitempty" yaml:"scenario_path,omitempty"`

	// TickInterval is the wall-clock spacing of simulation ticks.
	TickInterval time.Duration `json:"tick_interval" yaml:"tick_interval"`

	// GameDuration is how long a full run of in-game days takes.
	GameDuration time.Duration `json:"game_duration" yaml:"game_duration"`

	// DebriefWindow is how long the session stays up after reveal.
	DebriefWindow time.Duration `json:"debrief_window" yaml:"debrief_window"`

	// MarketLiquidity is the market maker's liquidity parameter.
	MarketLiquidity float64 `json:"market_liquidity" yaml:"market_liquidity"`

	// TotalClues is the size of the generated clue network.
	TotalClues int `json:"total_clues" yaml:"total_clues"`

	// InsiderFraction is the share of agents given insider clue plans.
	InsiderFraction float64 `json:"insider_fraction" yaml:"insider_fraction"`

	// NPCInterval is the spacing of autonomous NPC activity checks.
	NPCInterval time.Duration `json:"npc_interval" yaml:"npc_interval"`

	// Seed fixes clue generation and NPC rhythm. 0 derives from the clock.
	Seed int64 `json:"seed" yaml:"seed"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `json:"port" yaml:"port"`

	// AdminKey is the bearer token for POST endpoints. Empty disables them.
	AdminKey string `json:"admin_key,omitempty" yaml:"admin_key,omitempty"`
}

// StorageConfig configures the game archive.
type StorageConfig struct {
	// DBPath is the SQLite file. Empty disables archiving.
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is "info" (default) or "debug".
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Game: GameConfig{
			TickInterval:    10 * time.Second,
			GameDuration:    30 * time.Minute,
			DebriefWindow:   5 * time.Minute,
			MarketLiquidity: 100,
			TotalClues:      20,
			InsiderFraction: 0.30,
			NPCInterval:     15 * time.Second,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Storage: StorageConfig{
			DBPath: "data/rumormill.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given YAML file (empty path skips the
// file step) and applies environment variable overrides on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Game.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", c.Game.TickInterval)
	}
	if c.Game.GameDuration <= 0 {
		return fmt.Errorf("game_duration must be positive, got %v", c.Game.GameDuration)
	}
	if c.Game.MarketLiquidity <= 0 {
		return fmt.Errorf("market_liquidity must be positive, got %f", c.Game.MarketLiquidity)
	}
	if c.Game.InsiderFraction < 0 || c.Game.InsiderFraction > 1 {
		return fmt.Errorf("insider_fraction must be between 0 and 1, got %f", c.Game.InsiderFraction)
	}
	if c.Game.TotalClues < 3 {
		return fmt.Errorf("total_clues must be at least 3, got %d", c.Game.TotalClues)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", c.Server.Port)
	}

	validLevels := map[string]bool{"": true, "info": true, "debug": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RUMORMILL_SCENARIO"); v != "" {
		cfg.Game.ScenarioPath = v
	}
	if v := os.Getenv("RUMORMILL_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Game.TickInterval = d
		}
	}
	if v := os.Getenv("RUMORMILL_GAME_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Game.GameDuration = d
		}
	}
	if v := os.Getenv("RUMORMILL_DEBRIEF_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Game.DebriefWindow = d
		}
	}
	if v := os.Getenv("RUMORMILL_LIQUIDITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Game.MarketLiquidity = f
		}
	}
	if v := os.Getenv("RUMORMILL_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Game.Seed = n
		}
	}
	if v := os.Getenv("RUMORMILL_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("RUMORMILL_ADMIN_KEY"); v != "" {
		cfg.Server.AdminKey = v
	}
	if v := os.Getenv("RUMORMILL_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("RUMORMILL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
