// Package main searches latent terrain vectors with CMA-ES for levels that
// separate (or equalize) the returns of two or more policies.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/accelagent/parkour/config"
	"github.com/accelagent/parkour/telemetry"
)

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file; runner.agents must name at least two policies")
	maxTicks := flag.Int("max-ticks", 2000, "Maximum episode length in ticks")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 200, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	bound := flag.Float64("bound", 3, "Latent coordinates are searched in [-bound, bound]")
	water := flag.Bool("water", false, "Also search terrain.water_level")
	minimize := flag.Bool("minimize", false, "Search for terrains with the smallest regret instead of the largest")
	normalize := flag.Bool("normalize", false, "Divide regrets by the best return")
	outputDir := flag.String("output", "", "Output directory for results")
	resume := flag.String("resume", "", "Start from the best entry of a hall_of_fame.json")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if *seeds < 1 {
		log.Fatal("--seeds must be at least 1")
	}

	// Create output directory
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	// Load base config
	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	baseCfg := config.Cfg()
	if baseCfg.Terrain.LatentDim < 1 {
		log.Fatal("terrain.latent_dim must be positive")
	}

	params := NewParamVector(baseCfg, *bound, *water)

	// Generate seeds for evaluation
	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000) + baseCfg.Runner.Seed
	}

	evaluator, err := NewFitnessEvaluator(params, *maxTicks, evalSeeds, baseCfg, Box2DWorlds)
	if err != nil {
		log.Fatalf("failed to set up evaluation: %v", err)
	}
	evaluator.Minimize = *minimize
	evaluator.Normalize = *normalize

	dim := params.Dim()
	start := params.DefaultVector()
	if *resume != "" {
		hof, err := telemetry.LoadHallOfFame(*resume, 1)
		if err != nil {
			log.Fatalf("failed to load hall of fame: %v", err)
		}
		if best, ok := hof.Best(); ok {
			if start, err = params.StartFrom(best.Latent); err != nil {
				log.Fatalf("cannot resume from %s: %v", *resume, err)
			}
			fmt.Printf("Resuming from %s (fitness %.4f)\n", *resume, best.Fitness)
		}
	}
	initX := params.Normalize(start)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return evaluator.Evaluate(params.Denormalize(x))
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // seeds already run in parallel
	}

	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}

	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	logPath := filepath.Join(*outputDir, "optimize_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	logWriter := csv.NewWriter(logFile)
	defer logWriter.Flush()

	header := []string{"eval", "fitness", "spread", "success"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	logWriter.Write(header)

	evalCount := 0
	bestFitness := 1e9
	var bestParams []float64
	startTime := time.Now()

	originalFunc := problem.Func
	problem.Func = func(x []float64) float64 {
		fitness := originalFunc(x)
		evalCount++

		clamped := params.Clamp(params.Denormalize(x))
		if fitness < bestFitness {
			bestFitness = fitness
			bestParams = clamped
		}

		spread := evaluator.LastSpread()
		success := evaluator.LastSuccess()
		row := []string{
			strconv.Itoa(evalCount),
			fmt.Sprintf("%.6f", fitness),
			fmt.Sprintf("%.6f", spread),
			fmt.Sprintf("%.4f", success),
		}
		for _, v := range clamped {
			row = append(row, fmt.Sprintf("%.6f", v))
		}
		logWriter.Write(row)
		logWriter.Flush()

		elapsed := time.Since(startTime)
		avgPerEval := elapsed / time.Duration(evalCount)
		remaining := time.Duration(*maxEvals-evalCount) * avgPerEval

		fmt.Printf("Eval %d/%d: spread=%.2f success=%.2f (best=%.2f) | elapsed: %s, ETA: %s\n",
			evalCount, *maxEvals, spread, success, -bestFitness,
			formatDuration(elapsed), formatDuration(remaining))

		return fitness
	}

	fmt.Printf("Starting CMA-ES optimization with %d parameters, population=%d, max_evals=%d\n",
		dim, popSize, *maxEvals)
	fmt.Printf("Seeds per evaluation: %d, ticks per episode: %d\n", *seeds, *maxTicks)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}

	// Use best params found (may be from any evaluation, not just final)
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		log.Fatal("no evaluation completed")
	}

	totalTime := time.Since(startTime)
	fmt.Printf("\nOptimization complete after %d evaluations in %s\n", evalCount, formatDuration(totalTime))
	fmt.Printf("Best fitness: %.4f\n", bestFitness)

	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Name, bestParams[i])
	}

	// Save best config
	bestCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to reload config: %v", err)
	}
	params.ApplyToConfig(bestCfg, bestParams)

	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}

	hofPath := filepath.Join(*outputDir, "hall_of_fame.json")
	hofData, err := evaluator.HallOfFame().MarshalJSON()
	if err != nil {
		log.Printf("failed to marshal hall of fame: %v", err)
	} else if err := os.WriteFile(hofPath, hofData, 0644); err != nil {
		log.Printf("failed to write hall of fame: %v", err)
	} else {
		fmt.Printf("Hall of fame saved to: %s\n", hofPath)
	}
}
