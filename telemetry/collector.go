package telemetry

import "math"

// Collector accumulates events within tick windows and produces WindowStats.
type Collector struct {
	windowTicks int
	dt          float64

	// Current window tracking
	windowStartTick int

	// Event counters for current window
	spawns    int
	deaths    int
	dones     int
	successes int
	removed   int

	rewardSum     float64
	rewardSamples int
}

// NewCollector creates a new stats collector.
// windowTicks: number of ticks per stats window
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowTicks int, dt float64) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{
		windowTicks: windowTicks,
		dt:          dt,
	}
}

// Record counts a lifecycle event.
func (c *Collector) Record(ev Event) {
	switch ev.Type {
	case EventSpawn:
		c.spawns++
	case EventDeath:
		c.deaths++
	case EventDone:
		c.dones++
	case EventSuccess:
		c.successes++
	case EventRemoved:
		c.removed++
	}
}

// RecordReward adds one agent-tick reward to the window mean.
func (c *Collector) RecordReward(r float64) {
	c.rewardSum += r
	c.rewardSamples++
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int) bool {
	return currentTick-c.windowStartTick >= c.windowTicks
}

// Flush produces a WindowStats from the current population samples and
// resets counters for the next window.
func (c *Collector) Flush(currentTick, episode int, samples []AgentSample) WindowStats {
	returns := make([]float64, 0, len(samples))
	alive := 0
	meanX, maxX := 0.0, 0.0
	if len(samples) > 0 {
		maxX = math.Inf(-1)
	}
	for _, s := range samples {
		returns = append(returns, s.Return)
		if !s.Dead {
			alive++
		}
		meanX += s.X
		maxX = math.Max(maxX, s.X)
	}
	if len(samples) > 0 {
		meanX /= float64(len(samples))
	}

	var meanReward float64
	if c.rewardSamples > 0 {
		meanReward = c.rewardSum / float64(c.rewardSamples)
	}

	rs := ComputeStats(returns)
	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,
		Episode:         episode,

		Agents: len(samples),
		Alive:  alive,

		Spawns:    c.spawns,
		Deaths:    c.deaths,
		Dones:     c.dones,
		Successes: c.successes,
		Removed:   c.removed,

		MeanReward: meanReward,
		ReturnMean: rs.Mean,
		ReturnStd:  rs.Std,
		ReturnP10:  rs.P10,
		ReturnP50:  rs.P50,
		ReturnP90:  rs.P90,

		MeanX: meanX,
		MaxX:  maxX,
	}

	c.windowStartTick = currentTick
	c.spawns = 0
	c.deaths = 0
	c.dones = 0
	c.successes = 0
	c.removed = 0
	c.rewardSum = 0
	c.rewardSamples = 0

	return stats
}
