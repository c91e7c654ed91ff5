// Command citysim runs the grid settlement simulation behind an HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/mini-city/internal/api"
	"github.com/talgya/mini-city/internal/config"
	"github.com/talgya/mini-city/internal/connectivity"
	"github.com/talgya/mini-city/internal/economy"
	"github.com/talgya/mini-city/internal/engine"
	"github.com/talgya/mini-city/internal/entropy"
	"github.com/talgya/mini-city/internal/persistence"
	"github.com/talgya/mini-city/internal/world"
)

var (
	configPath string
	dbPath     string
	apiPort    int
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "citysim",
	Short: "Grid settlement simulator",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load or generate a city and run it with the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print a summary of the saved city",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return inspect(cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "", "Log level (debug, info, warn, error)")
	runCmd.Flags().IntVar(&apiPort, "port", 0, "HTTP API port (overrides config)")

	rootCmd.AddCommand(runCmd, inspectCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides, then
// installs the default logger.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("db") {
		cfg.Server.DBPath = dbPath
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = apiPort
	}
	if cmd.Flags().Changed("log") {
		cfg.LogLevel = logLevel
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return cfg, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return cfg, nil
}

func simOptions(cfg config.Config) engine.Options {
	return engine.Options{
		TicksPerPass: cfg.Sim.TicksPerPass,
		WorkDuration: cfg.Sim.WorkDuration,
		VehicleSpeed: cfg.Sim.VehicleSpeed,
		StartingCash: cfg.Sim.StartingCash,
		Rates:        cfg.Economy.Rates,
		Costs:        cfg.Costs(),
	}
}

func openDB(path string) (*persistence.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(path)
	if err != nil {
		return nil, err
	}
	slog.Info("database opened", "path", path)
	return db, nil
}

func run(ctx context.Context, cfg config.Config) error {
	db, err := openDB(cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := simOptions(cfg)

	// ── Load or generate ──────────────────────────────────────────────
	sim, err := db.LoadWorldState(opts)
	switch {
	case errors.Is(err, persistence.ErrNoWorld):
		if cfg.World.WaterLevel > 0 && cfg.World.Seed == 0 {
			cfg.World.Seed = entropy.Seed()
		}
		slog.Info("no saved city, generating terrain",
			"width", cfg.World.Width, "height", cfg.World.Height, "seed", cfg.World.Seed)
		sim = engine.NewSimulation(world.Generate(cfg.World), opts)
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("initial save failed", "error", err)
		}
		if err := db.SaveMeta(persistence.MetaSeed, strconv.FormatInt(cfg.World.Seed, 10)); err != nil {
			slog.Error("save seed failed", "error", err)
		}
	case err != nil:
		return fmt.Errorf("load world: %w", err)
	}

	// ── Clock and API ─────────────────────────────────────────────────
	clock := engine.NewClock(sim, cfg.Sim.TickInterval)

	adminKey := config.AdminKey()
	if adminKey == "" {
		slog.Warn(config.AdminKeyEnv + " not set, command POST endpoints will be disabled")
	}
	server := api.NewServer(clock, db, cfg.Server.Port, adminKey)

	// Events go out every tick; the grid is saved after every pass.
	clock.AfterTick = func(sim *engine.Simulation) {
		server.AfterTick(sim)
		if sim.Tick%sim.Options().TicksPerPass == 0 {
			if err := db.SaveWorldState(sim); err != nil {
				slog.Error("periodic save failed", "error", err)
			}
		}
	}
	server.Start()

	fmt.Printf("\nCity running on a %dx%d grid with %s in the treasury.\n",
		sim.Grid.Width, sim.Grid.Height, humanize.Comma(sim.Cash))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Server.Port)
	if sim.Tick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", sim.Tick, engine.SimTime(sim.Tick, opts.TicksPerPass))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	clock.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}

	// Final save on shutdown.
	slog.Info("final save...")
	var saveErr error
	clock.Exec(func(sim *engine.Simulation) {
		server.AfterTick(sim)
		saveErr = db.SaveWorldState(sim)
	})
	if saveErr != nil {
		return fmt.Errorf("final save: %w", saveErr)
	}

	fmt.Println("Simulation stopped. City saved.")
	return nil
}

func inspect(cfg config.Config) error {
	db, err := openDB(cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	sim, err := db.LoadWorldState(simOptions(cfg))
	if err != nil {
		return fmt.Errorf("load world: %w", err)
	}

	counts := sim.Grid.CountKinds()
	kinds := make([]world.Kind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	fmt.Printf("%s at tick %d (%s)\n", sim.Grid, sim.Tick, engine.SimTime(sim.Tick, sim.Options().TicksPerPass))
	fmt.Printf("cash: %s\n", humanize.Comma(sim.Cash))
	if seed, err := db.GetMeta(persistence.MetaSeed); err == nil {
		fmt.Printf("terrain seed: %s\n", seed)
	}
	for _, k := range kinds {
		fmt.Printf("  %-13s %s\n", k.String()+":", humanize.Comma(int64(counts[k])))
	}

	// Residents are all at home after a load, so employment reads zero.
	report := economy.Aggregate(sim.Grid, sim.Power, sim.RoadAccess, cfg.Economy.Rates)
	fmt.Printf("population: %d, jobs: %d, powered: %d, pollution: %.1f, happiness: %.0f\n",
		report.Population, report.Jobs, connectivity.PoweredCount(sim.Power), report.Pollution, report.Happiness)

	events, err := db.RecentEvents(10)
	if err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	if len(events) > 0 {
		fmt.Println("recent events:")
	}
	for _, e := range events {
		fmt.Printf("  [%d] %-15s %s\n", e.Tick, e.Category, strings.TrimSpace(e.Description))
	}
	return nil
}
