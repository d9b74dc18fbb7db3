package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talgya/mini-colony/internal/agents"
	"github.com/talgya/mini-colony/internal/api"
	"github.com/talgya/mini-colony/internal/catalog"
	"github.com/talgya/mini-colony/internal/config"
	"github.com/talgya/mini-colony/internal/engine"
	"github.com/talgya/mini-colony/internal/persistence"
	"github.com/talgya/mini-colony/internal/taskcache"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Found or resume a colony and run it",
	RunE:  runColony,
}

func init() {
	runCmd.Flags().String("db", "", "SQLite database path (overrides storage.path)")
	runCmd.Flags().Uint64("ticks", 0, "stop after this many ticks (0 = until interrupted)")
	runCmd.Flags().Int("port", -1, "HTTP API port (overrides api.port, 0 disables the API)")
}

func runColony(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Storage.Path = db
	}
	if port, _ := cmd.Flags().GetInt("port"); port >= 0 {
		cfg.API.Port = port
	}
	maxTicks, _ := cmd.Flags().GetUint64("ticks")

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	reactions, err := catalog.Load(cfg.Reactions)
	if err != nil {
		return err
	}
	ranker, err := taskcache.RankerByName(cfg.Ranking)
	if err != nil {
		return err
	}
	professions, err := agents.ProfessionTableFromMap(cfg.Professions)
	if err != nil {
		return err
	}

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.Storage.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Storage.Path)

	// ── Load or found the colony ─────────────────────────────────────
	var sim *engine.Simulation
	if db.HasWorldState() {
		seed, width, height := savedGeometry(db, cfg)
		slog.Info("found saved colony, loading...", "seed", seed)
		sim, err = db.LoadWorldState(engine.GenerateMap(seed, width, height), engine.Options{
			Reactions:    reactions,
			Ranker:       ranker,
			RepeatOrders: cfg.Colony.RepeatOrders,
		})
		if err != nil {
			return fmt.Errorf("load colony: %w", err)
		}
		slog.Info("colony loaded",
			"colonists", len(sim.Colonists),
			"sources", len(sim.Sources),
			"sim_time", engine.SimTime(sim.LastTick),
		)
	} else {
		slog.Info("founding new colony", "seed", cfg.Seed, "width", cfg.World.Width, "height", cfg.World.Height)
		sim, err = engine.Found(engine.FoundConfig{
			Seed:         cfg.Seed,
			Width:        cfg.World.Width,
			Height:       cfg.World.Height,
			Colonists:    cfg.Colony.Colonists,
			Designations: cfg.Colony.Designations,
			RepeatOrders: cfg.Colony.RepeatOrders,
			Professions:  professions,
			Reactions:    reactions,
			Ranker:       ranker,
		})
		if err != nil {
			return err
		}
		for k, v := range map[string]int64{
			"seed":   cfg.Seed,
			"width":  int64(cfg.World.Width),
			"height": int64(cfg.World.Height),
		} {
			if err := db.SaveMeta(k, strconv.FormatInt(v, 10)); err != nil {
				return fmt.Errorf("save meta: %w", err)
			}
		}
		if err := db.SaveWorldState(sim); err != nil {
			return fmt.Errorf("initial save: %w", err)
		}
	}

	// ── Engine ───────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.Tick = sim.LastTick
	eng.Interval = cfg.Engine.Interval
	eng.MaxTicks = maxTicks
	eng.SetSpeed(cfg.Engine.Speed)

	eng.OnTick = func(tick uint64) {
		sim.Step(tick)
		if cfg.Storage.SaveInterval > 0 && tick%cfg.Storage.SaveInterval == 0 {
			if err := db.SaveWorldState(sim); err != nil {
				slog.Error("periodic save failed", "error", err)
			}
		}
	}
	eng.OnDay = sim.TickDay

	// ── HTTP API ─────────────────────────────────────────────────────
	var srv *api.Server
	if cfg.API.Port > 0 {
		srv = &api.Server{
			Sim:      sim,
			Eng:      eng,
			DB:       db,
			Port:     cfg.API.Port,
			AdminKey: cfg.AdminKey(),
		}
		srv.Start()
		defer srv.Close()
	}

	// ── Run ──────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig, ok := <-sigCh
		if ok {
			slog.Info("received signal, shutting down", "signal", sig)
			eng.Stop()
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Running colony from %s (Ctrl+C to stop)\n", engine.SimTime(eng.Tick))
	eng.Run()

	if err := db.SaveWorldState(sim); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	slog.Info("colony saved, goodbye", "tick", sim.LastTick)
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// savedGeometry returns the seed and map size a saved colony was founded
// with, falling back to the configuration for values never recorded.
func savedGeometry(db *persistence.DB, cfg *config.Config) (seed int64, width, height int) {
	seed, width, height = cfg.Seed, cfg.World.Width, cfg.World.Height
	if v, err := db.GetMeta("seed"); err == nil {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			seed = n
		}
	}
	if v, err := db.GetMeta("width"); err == nil {
		if n, err := strconv.Atoi(v); err == nil {
			width = n
		}
	}
	if v, err := db.GetMeta("height"); err == nil {
		if n, err := strconv.Atoi(v); err == nil {
			height = n
		}
	}
	if width != cfg.World.Width || height != cfg.World.Height {
		slog.Warn("saved map size differs from config, using saved size",
			"saved", fmt.Sprintf("%dx%d", width, height),
			"config", fmt.Sprintf("%dx%d", cfg.World.Width, cfg.World.Height))
	}
	return seed, width, height
}
