package main

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"

	"github.com/accelagent/parkour/physics"
	"github.com/accelagent/parkour/systems"
	"github.com/accelagent/parkour/telemetry"
)

func ys(points []physics.Vec2) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Y
	}
	return out
}

func printLevelSummary(w io.Writer, desc systems.LevelDescription) {
	fmt.Fprintln(w, "Level")
	fmt.Fprintln(w, "-----")
	fmt.Fprintf(w, "  Ground points:   %d\n", len(desc.Ground))
	fmt.Fprintf(w, "  Ceiling points:  %d\n", len(desc.Ceiling))
	if len(desc.Ground) > 0 {
		g := ys(desc.Ground)
		fmt.Fprintf(w, "  Track x:         %.2f .. %.2f\n", desc.Ground[0].X, desc.Ground[len(desc.Ground)-1].X)
		fmt.Fprintf(w, "  Ground y:        %.2f .. %.2f\n", floats.Min(g), floats.Max(g))
	}
	if len(desc.Ceiling) > 0 {
		c := ys(desc.Ceiling)
		fmt.Fprintf(w, "  Ceiling y:       %.2f .. %.2f\n", floats.Min(c), floats.Max(c))
	}
	fmt.Fprintf(w, "  Water y:         %.2f\n", desc.WaterY)

	counts := make(map[string]int)
	for _, b := range desc.Bodies {
		counts[b.Type]++
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	slices.Sort(types)
	fmt.Fprintf(w, "  Bodies:          %d\n", len(desc.Bodies))
	for _, t := range types {
		fmt.Fprintf(w, "    %-14s %d\n", t, counts[t])
	}
}

func printSnapshotHeader(w io.Writer, snap *telemetry.LevelSnapshot) {
	fmt.Fprintln(w, "Snapshot")
	fmt.Fprintln(w, "--------")
	if snap.RunID != "" {
		fmt.Fprintf(w, "  Run:             %s\n", snap.RunID)
	}
	fmt.Fprintf(w, "  Episode:         %d (tick %d)\n", snap.Episode, snap.Tick)
	fmt.Fprintf(w, "  Mode:            %s, seed %d\n", snap.Mode, snap.Seed)
	if len(snap.Latent) > 0 {
		fmt.Fprintf(w, "  Latent:          %v\n", snap.Latent)
	}
	if snap.Bookmark != nil {
		fmt.Fprintf(w, "  Bookmark:        %s\n", snap.Bookmark.Type)
	}
	if len(snap.Agents) > 0 {
		fmt.Fprintf(w, "  Agents:          %d\n", len(snap.Agents))
		for _, a := range snap.Agents {
			state := ""
			if a.Dead {
				state = " (dead)"
			}
			fmt.Fprintf(w, "    %-10s %-10s x=%7.2f return=%8.2f%s\n", a.Name, a.Morphology, a.X, a.Return, state)
		}
	}
	fmt.Fprintln(w)
}

func printRuns(w io.Writer, runs []telemetry.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs stored.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tMODE\tSEED\tEPISODES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Mode, r.Seed, r.Episodes)
	}
	tw.Flush()
}

func printEpisodes(w io.Writer, run telemetry.Run, records []telemetry.EpisodeRecord) {
	fmt.Fprintf(w, "Run %s (%s terrain, seed %d)\n\n", run.ID, run.Mode, run.Seed)
	if len(records) == 0 {
		fmt.Fprintln(w, "No episodes stored.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EPISODE\tAGENT\tMORPHOLOGY\tRETURN\tTICKS\tMAX X\tREASON")
	byName := make(map[string][]float64)
	var names []string
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%d\t%.2f\t%s\n", r.Episode, r.Name, r.Morphology, r.Return, r.Ticks, r.MaxX, r.Reason)
		if _, ok := byName[r.Name]; !ok {
			names = append(names, r.Name)
		}
		byName[r.Name] = append(byName[r.Name], r.Return)
	}
	tw.Flush()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Returns by agent")
	fmt.Fprintln(w, "----------------")
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AGENT\tEPISODES\tMEAN\tP50\tMAX")
	for _, name := range names {
		s := telemetry.ComputeStats(byName[name])
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\n", name, len(byName[name]), s.Mean, s.P50, floats.Max(byName[name]))
	}
	tw.Flush()
}
