package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/accelagent/parkour/config"
	"github.com/accelagent/parkour/game"
	"github.com/accelagent/parkour/observer"
	"github.com/accelagent/parkour/physics"
	"github.com/accelagent/parkour/systems"
	"github.com/accelagent/parkour/telemetry"
)

// newWorld creates the physics world for generated levels and observed runs.
var newWorld = func(cfg *config.Config) physics.World {
	return physics.NewBox2DWorld(physics.V(0, cfg.Physics.Gravity))
}

type exportOptions struct {
	configPath string
	mode       string
	seed       int64
	latent     []float64
	out        string
}

// loadConfig loads the config at path and applies the command overrides.
func loadConfig(path, mode string, seed int64) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if mode != "" {
		cfg.Terrain.Mode = mode
	}
	if seed != 0 {
		cfg.Runner.Seed = seed
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newEngine builds an engine for cfg with the configured height function.
func newEngine(cfg *config.Config, latent []float64) (*game.Engine, error) {
	height, err := game.HeightFunc(cfg)
	if err != nil {
		return nil, err
	}
	return game.New(cfg, newWorld(cfg), game.Options{Height: height, Latent: latent}), nil
}

func runExport(w io.Writer, opts exportOptions) error {
	cfg, err := loadConfig(opts.configPath, opts.mode, opts.seed)
	if err != nil {
		return err
	}
	if cfg.Terrain.Mode == systems.ModeDrawn {
		return errors.New("export generates levels; use procedural or latent mode")
	}

	engine, err := newEngine(cfg, opts.latent)
	if err != nil {
		return err
	}
	defer engine.Close()
	if _, err := engine.Reset(); err != nil {
		return err
	}
	desc, err := engine.LevelDescription()
	if err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(opts.out), ".zst") {
		snap := &telemetry.LevelSnapshot{
			Version: telemetry.SnapshotVersion,
			Seed:    cfg.Runner.Seed,
			Mode:    cfg.Terrain.Mode,
			Level:   desc,
		}
		if cfg.Terrain.Mode == systems.ModeLatent {
			snap.Latent = engine.Latent()
		}
		if err := telemetry.WriteLevelSnapshot(opts.out, snap); err != nil {
			return err
		}
	} else if err := engine.WriteLevelYAML(opts.out); err != nil {
		return err
	}

	fmt.Fprintf(w, "Wrote %s (%s terrain, seed %d)\n\n", opts.out, cfg.Terrain.Mode, cfg.Runner.Seed)
	printLevelSummary(w, desc)
	return nil
}

func runInspect(w io.Writer, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".zst") {
		snap, err := telemetry.ReadLevelSnapshot(path)
		if err != nil {
			return err
		}
		printSnapshotHeader(w, snap)
		printLevelSummary(w, snap.Level)
		return nil
	}
	desc, err := game.ReadLevelYAML(path)
	if err != nil {
		return err
	}
	printLevelSummary(w, desc)
	return nil
}

func runEpisodes(ctx context.Context, w io.Writer, kind, path, runID string) error {
	store, err := telemetry.NewStore(kind, path)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		return err
	}

	if runID == "" {
		runs, err := store.Runs(ctx)
		if err != nil {
			return err
		}
		printRuns(w, runs)
		return nil
	}

	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	records, err := store.Episodes(ctx, runID)
	if err != nil {
		return err
	}
	printEpisodes(w, run, records)
	return nil
}

type observeOptions struct {
	configPath   string
	addr         string
	episodes     int
	loopbackOnly bool
	realtime     bool
}

func runObserve(ctx context.Context, opts observeOptions) error {
	cfg, err := loadConfig(opts.configPath, "", 0)
	if err != nil {
		return err
	}
	addr := opts.addr
	if addr == "" {
		addr = cfg.Observer.Addr
	}

	srv := observer.NewServer(slog.Default())
	srv.LoopbackOnly = opts.loopbackOnly
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe(ctx, addr) }()

	engine, err := newEngine(cfg, nil)
	if err != nil {
		return err
	}
	g := game.NewGame(engine, game.GameOptions{Sink: srv, Workers: cfg.Runner.Workers})
	defer g.Close()
	if _, err := g.Populate(cfg.Runner.Agents); err != nil {
		return err
	}

	var pace <-chan time.Time
	if opts.realtime {
		ticker := time.NewTicker(time.Duration(cfg.Derived.DT * float64(time.Second)))
		defer ticker.Stop()
		pace = ticker.C
	}

	for ep := 0; opts.episodes <= 0 || ep < opts.episodes; ep++ {
		select {
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("observer: %w", err)
			}
			return nil
		default:
		}
		if _, err := g.Reset(); err != nil {
			return err
		}
		if err := playEpisode(ctx, g, cfg.Runner.MaxTicks, pace); err != nil {
			return err
		}
		if _, err := g.EndEpisode(context.WithoutCancel(ctx)); err != nil {
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}

	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}

// playEpisode steps g until every agent is finished, maxTicks ticks have been
// played or ctx ends. A non-nil pace channel gates every tick.
func playEpisode(ctx context.Context, g *game.Game, maxTicks int, pace <-chan time.Time) error {
	for tick := 0; !g.Finished() && (maxTicks <= 0 || tick < maxTicks); tick++ {
		if pace != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-pace:
			}
		} else if ctx.Err() != nil {
			return nil
		}
		if _, err := g.Play(); err != nil {
			return err
		}
	}
	return nil
}
