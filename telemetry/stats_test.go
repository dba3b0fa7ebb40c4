package telemetry

import (
	"math"
	"testing"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestComputeStats(t *testing.T) {
	values := []float64{1.0, 0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1}
	s := ComputeStats(values)

	checks := []struct {
		name      string
		got, want float64
	}{
		{"mean", s.Mean, 0.55},
		{"std", s.Std, math.Sqrt(0.0825)},
		{"p10", s.P10, 0.19},
		{"p50", s.P50, 0.55},
		{"p90", s.P90, 0.91},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 0.001 {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	// Input must not be reordered.
	if values[0] != 1.0 {
		t.Error("ComputeStats sorted its input in place")
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	if s := ComputeStats(nil); s != (Summary{}) {
		t.Errorf("empty sample should return zeros, got %+v", s)
	}
}

func TestCollectorFlush(t *testing.T) {
	c := NewCollector(10, 0.02)

	c.Record(NewSpawnEvent(0, 1, "a"))
	c.Record(NewSpawnEvent(0, 2, "b"))
	c.Record(NewDeathEvent(4, 2, "b", 3))
	c.RecordReward(1)
	c.RecordReward(3)

	if c.ShouldFlush(9) {
		t.Error("window should not flush before 10 ticks")
	}
	if !c.ShouldFlush(10) {
		t.Error("window should flush at 10 ticks")
	}

	stats := c.Flush(10, 2, []AgentSample{
		{ID: 1, X: 10, Return: 4},
		{ID: 2, X: 2, Return: -100, Dead: true},
	})

	if stats.Spawns != 2 || stats.Deaths != 1 {
		t.Errorf("spawns/deaths = %d/%d, want 2/1", stats.Spawns, stats.Deaths)
	}
	if stats.Agents != 2 || stats.Alive != 1 {
		t.Errorf("agents/alive = %d/%d, want 2/1", stats.Agents, stats.Alive)
	}
	if math.Abs(stats.MeanReward-2) > 1e-9 {
		t.Errorf("mean reward = %v, want 2", stats.MeanReward)
	}
	if stats.MaxX != 10 || stats.MeanX != 6 {
		t.Errorf("max/mean x = %v/%v, want 10/6", stats.MaxX, stats.MeanX)
	}
	if math.Abs(stats.SimTimeSec-0.2) > 1e-9 {
		t.Errorf("sim time = %v, want 0.2", stats.SimTimeSec)
	}
	if stats.Episode != 2 {
		t.Errorf("episode = %d, want 2", stats.Episode)
	}

	// Counters restart for the next window.
	next := c.Flush(20, 2, nil)
	if next.Spawns != 0 || next.Deaths != 0 || next.MeanReward != 0 {
		t.Errorf("counters not reset: %+v", next)
	}
	if next.WindowStartTick != 10 {
		t.Errorf("window start = %d, want 10", next.WindowStartTick)
	}
}
