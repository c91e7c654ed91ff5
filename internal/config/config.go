// Package config loads the YAML configuration for a city simulation run.
// Unset fields keep the values from Default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/mini-city/internal/economy"
	"github.com/talgya/mini-city/internal/world"
)

// AdminKeyEnv names the environment variable holding the API bearer token.
const AdminKeyEnv = "CITYSIM_ADMIN_KEY"

// Config is the top-level configuration.
type Config struct {
	World    world.GenConfig `yaml:"world"`
	Sim      SimConfig       `yaml:"sim"`
	Economy  EconomyConfig   `yaml:"economy"`
	Server   ServerConfig    `yaml:"server"`
	LogLevel string          `yaml:"log_level"`
}

// SimConfig tunes the clock and commuting.
type SimConfig struct {
	TicksPerPass uint64        `yaml:"ticks_per_pass"` // Ticks between periodic passes
	WorkDuration uint64        `yaml:"work_duration"`  // Ticks a resident stays at work
	VehicleSpeed float64       `yaml:"vehicle_speed"`  // Cells per tick
	TickInterval time.Duration `yaml:"tick_interval"`
	StartingCash int64         `yaml:"starting_cash"`
}

// EconomyConfig holds rates and the construction price list.
type EconomyConfig struct {
	economy.Rates     `yaml:",inline"`
	BuildCosts        map[string]int64 `yaml:"build_costs"`
	UpgradeCost       int64            `yaml:"upgrade_cost"`
	DemolishRefund    float64          `yaml:"demolish_refund"`
	UpgradeThresholds map[int]int      `yaml:"upgrade_thresholds"`
}

// ServerConfig controls the HTTP API and storage.
type ServerConfig struct {
	Port   int    `yaml:"port"`
	DBPath string `yaml:"db_path"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	costs := economy.DefaultCosts()
	build := make(map[string]int64, len(costs.Build))
	for k, v := range costs.Build {
		build[k.String()] = v
	}
	return Config{
		World: world.DefaultGenConfig(),
		Sim: SimConfig{
			TicksPerPass: 60,
			WorkDuration: 120,
			VehicleSpeed: 0.0625,
			TickInterval: 50 * time.Millisecond,
			StartingCash: 1000,
		},
		Economy: EconomyConfig{
			Rates:             economy.DefaultRates(),
			BuildCosts:        build,
			UpgradeCost:       costs.Upgrade,
			DemolishRefund:    costs.DemolishRefund,
			UpgradeThresholds: costs.Thresholds,
		},
		Server: ServerConfig{
			Port:   8080,
			DBPath: "data/city.db",
		},
		LogLevel: "info",
	}
}

// Load reads a YAML file over Default. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the simulation cannot run with.
func (c Config) Validate() error {
	if c.World.Width <= 0 || c.World.Height <= 0 {
		return fmt.Errorf("world size must be positive, got %dx%d", c.World.Width, c.World.Height)
	}
	if c.Sim.TicksPerPass == 0 {
		return errors.New("sim.ticks_per_pass must be positive")
	}
	if c.Sim.VehicleSpeed <= 0 {
		return fmt.Errorf("sim.vehicle_speed must be positive, got %v", c.Sim.VehicleSpeed)
	}
	if c.Economy.DemolishRefund < 0 || c.Economy.DemolishRefund > 1 {
		return fmt.Errorf("economy.demolish_refund must be in [0,1], got %v", c.Economy.DemolishRefund)
	}
	for name := range c.Economy.BuildCosts {
		if _, ok := world.ParseKind(name); !ok {
			return fmt.Errorf("economy.build_costs: unknown kind %q", name)
		}
	}
	return nil
}

// Costs converts the economy section into a price list.
func (c Config) Costs() economy.Costs {
	build := make(map[world.Kind]int64, len(c.Economy.BuildCosts))
	for name, v := range c.Economy.BuildCosts {
		if k, ok := world.ParseKind(name); ok {
			build[k] = v
		}
	}
	return economy.Costs{
		Build:          build,
		Upgrade:        c.Economy.UpgradeCost,
		DemolishRefund: c.Economy.DemolishRefund,
		Thresholds:     c.Economy.UpgradeThresholds,
	}
}

// AdminKey returns the API bearer token from the environment.
func AdminKey() string {
	return os.Getenv(AdminKeyEnv)
}
