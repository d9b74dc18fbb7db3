// Package config loads the colony simulation settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/mini-colony/internal/agents"
	"github.com/talgya/mini-colony/internal/taskcache"
)

// Config is the top-level colonysim.yml configuration.
type Config struct {
	Seed      int64           `yaml:"seed"`
	World     WorldConfig     `yaml:"world"`
	Colony    ColonyConfig    `yaml:"colony"`
	Engine    EngineConfig    `yaml:"engine"`
	Storage   StorageConfig   `yaml:"storage"`
	API       APIConfig       `yaml:"api"`
	LogLevel  string          `yaml:"log_level"`                 // debug, info, warn or error
	Reactions string          `yaml:"reactions_file,omitempty"` // Overrides the built-in reaction catalog
	Ranking   string          `yaml:"ranking"`                   // priority_distance or first_match

	// Professions overlays the built-in priority table:
	// profession -> task kind -> weight.
	Professions map[string]map[string]uint8 `yaml:"professions,omitempty"`
}

// WorldConfig sizes the generated map.
type WorldConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// ColonyConfig seeds the starting colony.
type ColonyConfig struct {
	Colonists    int `yaml:"colonists"`
	Designations int `yaml:"designations"`  // Initial dig and chop designations, each
	RepeatOrders int `yaml:"repeat_orders"` // Queued orders per workshop reaction
}

// EngineConfig controls the tick loop.
type EngineConfig struct {
	Interval time.Duration `yaml:"interval"`
	Speed    float64       `yaml:"speed"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path         string `yaml:"path"`
	SaveInterval uint64 `yaml:"save_interval_ticks"`
}

// APIConfig controls the HTTP server.
type APIConfig struct {
	Port        int    `yaml:"port"`
	AdminKeyEnv string `yaml:"admin_key_env"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Seed:     42,
		World:    WorldConfig{Width: 48, Height: 48},
		Colony:   ColonyConfig{Colonists: 7, Designations: 6, RepeatOrders: 2},
		Engine:   EngineConfig{Interval: 250 * time.Millisecond, Speed: 1},
		Storage:  StorageConfig{Path: "data/colony.db", SaveInterval: 1440},
		API:      APIConfig{Port: 8080, AdminKeyEnv: "COLONYSIM_ADMIN_KEY"},
		LogLevel: "info",
		Ranking:  taskcache.RankPriorityDistance,
	}
}

// Load reads and validates a config file. Fields missing from the file keep
// their defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the simulation cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.World.Width < 8 || c.World.Height < 8 {
		errs = append(errs, fmt.Errorf("world must be at least 8x8, got %dx%d", c.World.Width, c.World.Height))
	}
	if c.Colony.Colonists <= 0 {
		errs = append(errs, errors.New("colony.colonists must be positive"))
	}
	if c.Colony.Designations < 0 || c.Colony.RepeatOrders < 0 {
		errs = append(errs, errors.New("colony designations and repeat_orders must not be negative"))
	}
	if c.Engine.Interval <= 0 {
		errs = append(errs, errors.New("engine.interval must be positive"))
	}
	if c.Engine.Speed < 0 {
		errs = append(errs, errors.New("engine.speed must not be negative"))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if _, err := taskcache.RankerByName(c.Ranking); err != nil {
		errs = append(errs, err)
	}
	if _, err := agents.ProfessionTableFromMap(c.Professions); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// AdminKey reads the admin bearer token from the configured environment
// variable.
func (c *Config) AdminKey() string {
	if c.API.AdminKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.API.AdminKeyEnv)
}
