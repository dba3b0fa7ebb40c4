package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/accelagent/parkour/config"
	"github.com/accelagent/parkour/game"
	"github.com/accelagent/parkour/physics"
	"github.com/accelagent/parkour/systems"
	"github.com/accelagent/parkour/telemetry"
)

// WorldFactory creates the physics world for one evaluation run.
type WorldFactory func(cfg *config.Config) physics.World

// Box2DWorlds is the WorldFactory used outside of tests.
func Box2DWorlds(cfg *config.Config) physics.World {
	return physics.NewBox2DWorld(physics.V(0, cfg.Physics.Gravity))
}

// FitnessEvaluator plays the configured population on a candidate terrain
// and scores the spread of their returns.
type FitnessEvaluator struct {
	params   *ParamVector
	maxTicks int
	seeds    []int64
	base     *config.Config
	height   systems.HeightFunc
	newWorld WorldFactory
	logger   *slog.Logger

	// Minimize searches for terrains on which every policy does equally well.
	Minimize bool
	// Normalize divides regrets by the best return.
	Normalize bool

	mu          sync.Mutex
	evaluations int
	hallOfFame  *telemetry.HallOfFame
	lastSpread  float64
	lastSuccess float64
}

// NewFitnessEvaluator creates an evaluator. The height function is shared by
// every run so a latent vector maps to the same terrain across evaluations.
func NewFitnessEvaluator(params *ParamVector, maxTicks int, seeds []int64, baseCfg *config.Config, newWorld WorldFactory) (*FitnessEvaluator, error) {
	if names := policyNames(baseCfg.Runner.Agents); len(names) < 2 {
		return nil, fmt.Errorf("regret needs at least two agent names, got %v", names)
	}
	height, err := game.HeightFunc(baseCfg)
	if err != nil {
		return nil, err
	}
	if newWorld == nil {
		newWorld = Box2DWorlds
	}
	return &FitnessEvaluator{
		params:     params,
		maxTicks:   maxTicks,
		seeds:      seeds,
		base:       baseCfg,
		height:     height,
		newWorld:   newWorld,
		logger:     slog.New(slog.DiscardHandler),
		hallOfFame: telemetry.NewHallOfFame(10),
	}, nil
}

func policyNames(specs []config.AgentSpec) []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range specs {
		name := s.Name
		if name == "" {
			name = s.Policy
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// HallOfFame returns the best terrains found so far.
func (fe *FitnessEvaluator) HallOfFame() *telemetry.HallOfFame {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.hallOfFame
}

// LastSpread returns the mean regret spread of the most recent evaluation.
func (fe *FitnessEvaluator) LastSpread() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastSpread
}

// LastSuccess returns the share of agents that reached the end of the track
// in the most recent evaluation.
func (fe *FitnessEvaluator) LastSuccess() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastSuccess
}

// runResult holds the outcome of a single episode.
type runResult struct {
	spread  float64
	success float64
	returns map[string]float64
	err     error
}

// Evaluate scores a raw parameter vector (lower = better). A failed run
// scores +Inf so the search steers away from it.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	// Run all seeds in parallel
	results := make([]runResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runEpisode(cfg, s)
		}(i, seed)
	}
	wg.Wait()

	spreads := make([]float64, 0, len(results))
	successes := make([]float64, 0, len(results))
	returns := make(map[string]float64)
	for _, r := range results {
		if r.err != nil {
			slog.Warn("evaluation run failed", "err", r.err)
			return math.Inf(1)
		}
		spreads = append(spreads, r.spread)
		successes = append(successes, r.success)
		for name, ret := range r.returns {
			returns[name] += ret / float64(len(results))
		}
	}
	spread := stat.Mean(spreads, nil)

	score := spread
	if fe.Minimize {
		score = -spread
	}

	fe.mu.Lock()
	fe.evaluations++
	fe.lastSpread = spread
	fe.lastSuccess = stat.Mean(successes, nil)
	fe.hallOfFame.Consider(telemetry.HallEntry{
		Latent:     fe.params.Latent(fe.params.Clamp(x)),
		Fitness:    score,
		Returns:    returns,
		Evaluation: fe.evaluations,
	})
	fe.mu.Unlock()

	return -score
}

// runEpisode plays one episode of the configured population on cfg's terrain.
func (fe *FitnessEvaluator) runEpisode(base *config.Config, seed int64) runResult {
	cfg := *base
	cfg.Runner.Seed = seed

	engine := game.New(&cfg, fe.newWorld(&cfg), game.Options{Height: fe.height, Logger: fe.logger})
	g := game.NewGame(engine, game.GameOptions{Logger: fe.logger, Workers: 1})
	defer g.Close()

	if _, err := g.Populate(cfg.Runner.Agents); err != nil {
		return runResult{err: err}
	}
	if _, err := g.Reset(); err != nil {
		return runResult{err: err}
	}
	records, err := g.Run(context.Background(), fe.maxTicks)
	if err != nil {
		return runResult{err: err}
	}

	res := runResult{returns: make(map[string]float64)}
	for name, regret := range g.Regrets(fe.Normalize) {
		if name == game.MaxReturnKey {
			continue
		}
		res.spread = max(res.spread, regret)
	}
	for _, r := range g.Returns() {
		if v, ok := res.returns[r.Name]; !ok || r.Return > v {
			res.returns[r.Name] = r.Return
		}
	}
	var succeeded int
	for _, rec := range records {
		if rec.Success {
			succeeded++
		}
	}
	if len(records) > 0 {
		res.success = float64(succeeded) / float64(len(records))
	}
	return res
}

// copyConfig returns a copy of the base config whose terrain fields can be
// changed without touching other evaluations.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.base
	cfg.Terrain.LatentVector = append([]float64(nil), fe.base.Terrain.LatentVector...)
	return &cfg
}
