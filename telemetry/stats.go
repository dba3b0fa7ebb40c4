package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a tick window.
type WindowStats struct {
	WindowStartTick int     `csv:"-"`
	WindowEndTick   int     `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`
	Episode         int     `csv:"episode"`

	// Population at window end
	Agents int `csv:"agents"`
	Alive  int `csv:"alive"`

	// Events during window
	Spawns    int `csv:"spawns"`
	Deaths    int `csv:"deaths"`
	Dones     int `csv:"dones"`
	Successes int `csv:"successes"`
	Removed   int `csv:"removed"`

	// Mean per agent-tick reward over the window
	MeanReward float64 `csv:"mean_reward"`

	// Episodic return distribution at window end
	ReturnMean float64 `csv:"return_mean"`
	ReturnStd  float64 `csv:"return_std"`
	ReturnP10  float64 `csv:"return_p10"`
	ReturnP50  float64 `csv:"return_p50"`
	ReturnP90  float64 `csv:"return_p90"`

	// Track progress in world units
	MeanX float64 `csv:"mean_x"`
	MaxX  float64 `csv:"max_x"`
}

// Summary is the mean, population standard deviation and deciles of a sample.
type Summary struct {
	Mean float64
	Std  float64
	P10  float64
	P50  float64
	P90  float64
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeStats summarizes values. An empty sample yields zeros.
func ComputeStats(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	mean, std := stat.PopMeanStdDev(values, nil)

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	return Summary{
		Mean: mean,
		Std:  std,
		P10:  Percentile(sorted, 0.10),
		P50:  Percentile(sorted, 0.50),
		P90:  Percentile(sorted, 0.90),
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", s.WindowStartTick),
		slog.Int("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("episode", s.Episode),
		slog.Int("agents", s.Agents),
		slog.Int("alive", s.Alive),
		slog.Int("spawns", s.Spawns),
		slog.Int("deaths", s.Deaths),
		slog.Int("dones", s.Dones),
		slog.Int("successes", s.Successes),
		slog.Int("removed", s.Removed),
		slog.Float64("mean_reward", s.MeanReward),
		slog.Float64("return_mean", s.ReturnMean),
		slog.Float64("return_std", s.ReturnStd),
		slog.Float64("return_p10", s.ReturnP10),
		slog.Float64("return_p50", s.ReturnP50),
		slog.Float64("return_p90", s.ReturnP90),
		slog.Float64("mean_x", s.MeanX),
		slog.Float64("max_x", s.MaxX),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"episode", s.Episode,
		"agents", s.Agents,
		"alive", s.Alive,
		"deaths", s.Deaths,
		"dones", s.Dones,
		"successes", s.Successes,
		"mean_reward", s.MeanReward,
		"return_mean", s.ReturnMean,
		"return_p50", s.ReturnP50,
		"max_x", s.MaxX,
	)
}
