package telemetry

import (
	"math"
	"slices"
)

// AgentSample is the per-tick state of one agent as seen by telemetry.
type AgentSample struct {
	ID         uint64
	Name       string
	X          float64
	Reward     float64
	Return     float64
	Dead       bool
	Done       bool
	Success    bool
	UnderWater int
}

// LifetimeStats tracks one agent over an episode.
type LifetimeStats struct {
	AgentID    uint64
	Name       string
	Age        string
	Morphology string
	SpawnTick  int

	Ticks  int
	Return float64
	MaxX   float64
	FinalX float64

	// Tick of the first transition, -1 while it has not happened.
	DeathTick   int
	DoneTick    int
	SuccessTick int

	PeakUnderWater int
}

// Reason summarizes how the episode ended for this agent.
func (s *LifetimeStats) Reason() string {
	switch {
	case s.SuccessTick >= 0:
		return "success"
	case s.DeathTick >= 0:
		return "dead"
	case s.DoneTick >= 0:
		return "done"
	}
	return "timeout"
}

// LifetimeTracker manages per-agent episode statistics.
type LifetimeTracker struct {
	stats map[uint64]*LifetimeStats
}

// NewLifetimeTracker creates a new lifetime tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{
		stats: make(map[uint64]*LifetimeStats),
	}
}

// Register starts tracking an agent. Registering a known id restarts its record.
func (lt *LifetimeTracker) Register(agentID uint64, name, age, morphology string, tick int) {
	lt.stats[agentID] = &LifetimeStats{
		AgentID:     agentID,
		Name:        name,
		Age:         age,
		Morphology:  morphology,
		SpawnTick:   tick,
		MaxX:        math.Inf(-1),
		DeathTick:   -1,
		DoneTick:    -1,
		SuccessTick: -1,
	}
}

// Get returns the stats of an agent, or nil if not found.
func (lt *LifetimeTracker) Get(agentID uint64) *LifetimeStats {
	return lt.stats[agentID]
}

// Remove drops an agent's stats and returns them.
func (lt *LifetimeTracker) Remove(agentID uint64) *LifetimeStats {
	stats := lt.stats[agentID]
	delete(lt.stats, agentID)
	return stats
}

// Count returns the number of tracked agents.
func (lt *LifetimeTracker) Count() int {
	return len(lt.stats)
}

// Reset drops every record.
func (lt *LifetimeTracker) Reset() {
	clear(lt.stats)
}

// Observe folds a tick sample into the agent's record and returns the
// lifecycle events it triggered. Each transition fires once per episode.
func (lt *LifetimeTracker) Observe(tick int, s AgentSample) []Event {
	st := lt.stats[s.ID]
	if st == nil {
		return nil
	}
	st.Ticks++
	st.Return = s.Return
	st.FinalX = s.X
	st.MaxX = math.Max(st.MaxX, s.X)
	st.PeakUnderWater = max(st.PeakUnderWater, s.UnderWater)

	var events []Event
	if s.Dead && st.DeathTick < 0 {
		st.DeathTick = tick
		events = append(events, NewDeathEvent(tick, s.ID, st.Name, s.X))
	}
	if s.Done && st.DoneTick < 0 {
		st.DoneTick = tick
		events = append(events, NewDoneEvent(tick, s.ID, st.Name, s.Return))
	}
	if s.Success && st.SuccessTick < 0 {
		st.SuccessTick = tick
		events = append(events, NewSuccessEvent(tick, s.ID, st.Name, s.Return))
	}
	return events
}

// All returns every record ordered by agent id.
func (lt *LifetimeTracker) All() []*LifetimeStats {
	out := make([]*LifetimeStats, 0, len(lt.stats))
	for _, s := range lt.stats {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *LifetimeStats) int {
		switch {
		case a.AgentID < b.AgentID:
			return -1
		case a.AgentID > b.AgentID:
			return 1
		}
		return 0
	})
	return out
}
