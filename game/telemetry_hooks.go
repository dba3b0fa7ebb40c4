package game

import (
	"github.com/accelagent/parkour/telemetry"
)

// flushTelemetry closes the stats window when it is due and handles the
// bookmarks it raises.
func (g *Game) flushTelemetry() {
	if !g.collector.ShouldFlush(g.totalTicks) {
		return
	}

	var samples []telemetry.AgentSample
	for _, v := range g.engine.Agents() {
		if v.Visible {
			samples = append(samples, sample(v))
		}
	}
	stats := g.collector.Flush(g.totalTicks, g.episode, samples)
	stats.LogStats()
	g.logPerfStats()

	if err := g.output.WriteWindow(stats); err != nil {
		g.logger.Error("failed to write window stats", "err", err)
	}
	if g.perf != nil {
		if err := g.output.WritePerf(g.perf.Stats(), stats.WindowEndTick); err != nil {
			g.logger.Error("failed to write perf", "err", err)
		}
	}

	for _, bm := range g.bookmarks.Check(stats) {
		bm.LogBookmark()
		if err := g.output.WriteBookmark(bm); err != nil {
			g.logger.Error("failed to write bookmark", "err", err)
		}
		if g.cfg.Telemetry.Snapshot {
			g.saveSnapshot(&bm)
		}
	}
}

// saveSnapshot writes the current level and agents next to the other outputs.
func (g *Game) saveSnapshot(bookmark *telemetry.Bookmark) {
	snap, err := g.CreateSnapshot(bookmark)
	if err != nil {
		g.logger.Error("failed to create snapshot", "err", err)
		return
	}
	path, err := g.output.WriteSnapshot(snap)
	if err != nil {
		g.logger.Error("failed to save snapshot", "err", err)
		return
	}
	if path != "" {
		g.logger.Info("snapshot saved", "path", path, "tick", g.totalTicks)
	}
}

// CreateSnapshot captures the current level and the simulated agents.
func (g *Game) CreateSnapshot(bookmark *telemetry.Bookmark) (*telemetry.LevelSnapshot, error) {
	level, err := g.engine.LevelDescription()
	if err != nil {
		return nil, err
	}
	snap := &telemetry.LevelSnapshot{
		Version:  telemetry.SnapshotVersion,
		RunID:    g.runID,
		Episode:  g.episode,
		Tick:     g.engine.Tick(),
		Seed:     g.cfg.Runner.Seed,
		Mode:     g.cfg.Terrain.Mode,
		Level:    level,
		Bookmark: bookmark,
	}
	if g.cfg.Terrain.Mode == "latent" {
		snap.Latent = append([]float64(nil), g.engine.Latent()...)
	}
	for _, v := range g.engine.Agents() {
		if !v.Visible {
			continue
		}
		snap.Agents = append(snap.Agents, telemetry.AgentState{
			ID:         v.ID,
			Name:       v.Name,
			Morphology: v.Morphology.String(),
			X:          v.Position.X,
			Y:          v.Position.Y,
			Return:     v.Return,
			Dead:       v.Dead,
		})
	}
	return snap, nil
}
