package game

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Logf logs a formatted message at info level through the default logger.
func Logf(format string, args ...any) {
	slog.Default().Log(context.Background(), slog.LevelInfo, fmt.Sprintf(format, args...))
}

// logPerfStats logs the phase breakdown and the slowest policies.
func (g *Game) logPerfStats() {
	if g.perf == nil || g.perf.Samples() == 0 {
		return
	}
	stats := g.perf.Stats()
	Logf("=== Perf @ tick %d (episode %d) | %.0f ticks/s ===", g.totalTicks, g.episode, stats.TicksPerSecond)
	stats.LogStats()

	total := g.times.Total()
	for _, name := range g.times.SortedNames() {
		avg := g.times.Avg(name)
		pct := 0.0
		if total > 0 {
			pct = float64(avg) / float64(total) * 100
		}
		Logf("  policy %-16s %10s  %5.1f%%", name, avg.Round(time.Microsecond), pct)
	}
}
