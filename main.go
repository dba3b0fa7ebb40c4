package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/accelagent/parkour/config"
	"github.com/accelagent/parkour/game"
	"github.com/accelagent/parkour/observer"
	"github.com/accelagent/parkour/physics"
	"github.com/accelagent/parkour/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot (overrides telemetry.output_dir)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = use runner.seed, -1 = time-based)")
	episodes := flag.Int("episodes", 0, "Number of episodes (0 = use runner.episodes)")
	maxTicks := flag.Int("max-ticks", -1, "Stop each episode after N ticks (-1 = use runner.max_ticks, 0 = unlimited)")
	mode := flag.String("mode", "", "Terrain mode override: procedural, latent or drawn")
	levelPath := flag.String("level", "", "Level YAML replayed in drawn mode")
	observe := flag.String("observe", "", "Serve the websocket observer on this address (empty = disabled)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn or error")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	switch {
	case *seed > 0:
		cfg.Runner.Seed = *seed
	case *seed < 0:
		cfg.Runner.Seed = time.Now().UnixNano()
	}
	if *episodes > 0 {
		cfg.Runner.Episodes = *episodes
	}
	if *maxTicks >= 0 {
		cfg.Runner.MaxTicks = *maxTicks
	}
	if *outputDir != "" {
		cfg.Telemetry.OutputDir = *outputDir
	}
	if *mode != "" {
		cfg.Terrain.Mode = *mode
	}
	if *levelPath != "" {
		cfg.Terrain.Mode = "drawn"
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Set up slog (JSON to stdout for structured logging)
	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		slog.Error("invalid log level", "level", *logLevel)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *levelPath, *observe, logger); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, levelPath, observeAddr string, logger *slog.Logger) error {
	output, err := telemetry.NewOutputManager(cfg.Telemetry.OutputDir)
	if err != nil {
		return err
	}
	defer output.Close()
	if err := output.WriteConfig(cfg); err != nil {
		return err
	}

	store, err := telemetry.NewStore(cfg.Telemetry.Store, cfg.Telemetry.StorePath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		return err
	}

	height, err := game.HeightFunc(cfg)
	if err != nil {
		return err
	}
	world := physics.NewBox2DWorld(physics.V(0, cfg.Physics.Gravity))
	engine := game.New(cfg, world, game.Options{
		Height: height,
		Logger: logger,
		Perf:   telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
	})
	if levelPath != "" {
		desc, err := game.ReadLevelYAML(levelPath)
		if err != nil {
			return err
		}
		engine.LoadDrawnLevel(desc)
	}

	opts := game.GameOptions{
		Logger:  logger,
		Output:  output,
		Store:   store,
		Workers: cfg.Runner.Workers,
	}
	if observeAddr != "" {
		srv := observer.NewServer(logger)
		go func() {
			if err := srv.ListenAndServe(ctx, observeAddr); err != nil {
				logger.Error("observer stopped", "error", err)
			}
		}()
		opts.Sink = srv
	}

	g := game.NewGame(engine, opts)
	defer g.Close()

	meta := telemetry.Run{
		ID:        g.RunID(),
		StartedAt: time.Now().UTC(),
		Seed:      cfg.Runner.Seed,
		Mode:      cfg.Terrain.Mode,
		Episodes:  cfg.Runner.Episodes,
	}
	if err := store.SaveRun(ctx, meta); err != nil {
		return err
	}

	if _, err := g.Populate(cfg.Runner.Agents); err != nil {
		return err
	}

	logger.Info("starting run",
		"run", meta.ID,
		"seed", cfg.Runner.Seed,
		"mode", cfg.Terrain.Mode,
		"episodes", cfg.Runner.Episodes,
		"max_ticks", cfg.Runner.MaxTicks,
		"agents", len(cfg.Runner.Agents),
	)

	for ep := 0; ep < cfg.Runner.Episodes; ep++ {
		if _, err := g.Reset(); err != nil {
			return err
		}
		_, err := g.Run(ctx, cfg.Runner.MaxTicks)
		if errors.Is(err, context.Canceled) {
			logger.Info("interrupted", "episode", ep)
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("episode regrets", "episode", ep, "regrets", g.Regrets(true))
	}
	return nil
}
