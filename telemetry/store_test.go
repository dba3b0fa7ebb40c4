package telemetry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func storeBackends(t *testing.T) map[string]EpisodeStore {
	t.Helper()
	return map[string]EpisodeStore{
		"memory": NewMemoryStore(),
		"sqlite": NewSQLiteStore(filepath.Join(t.TempDir(), "episodes.db")),
	}
}

func TestEpisodeStoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Init(ctx); err != nil {
				t.Fatalf("Init: %v", err)
			}
			defer store.Close()

			run := Run{ID: NewRunID(), StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), Seed: 7, Mode: "procedural", Episodes: 2}
			if err := store.SaveRun(ctx, run); err != nil {
				t.Fatalf("SaveRun: %v", err)
			}

			got, err := store.GetRun(ctx, run.ID)
			if err != nil {
				t.Fatalf("GetRun: %v", err)
			}
			if got.ID != run.ID || got.Seed != 7 || !got.StartedAt.Equal(run.StartedAt) {
				t.Errorf("GetRun = %+v, want %+v", got, run)
			}

			records := []EpisodeRecord{
				{RunID: run.ID, Episode: 0, AgentID: 1, Name: "accel", Age: "10", Morphology: "bipedal", Return: 240, Ticks: 800, MaxX: 80, FinalX: 80, Reason: "success", Success: true},
				{RunID: run.ID, Episode: 0, AgentID: 2, Name: "random", Age: "0", Morphology: "spider", Return: -100, Ticks: 40, MaxX: 6, FinalX: 5, Reason: "dead"},
			}
			if err := store.SaveEpisode(ctx, records); err != nil {
				t.Fatalf("SaveEpisode: %v", err)
			}

			eps, err := store.Episodes(ctx, run.ID)
			if err != nil {
				t.Fatalf("Episodes: %v", err)
			}
			if len(eps) != 2 {
				t.Fatalf("Episodes returned %d records, want 2", len(eps))
			}
			if eps[0] != records[0] || eps[1] != records[1] {
				t.Errorf("Episodes = %+v, want %+v", eps, records)
			}

			runs, err := store.Runs(ctx)
			if err != nil {
				t.Fatalf("Runs: %v", err)
			}
			if len(runs) != 1 {
				t.Errorf("Runs returned %d, want 1", len(runs))
			}
		})
	}
}

func TestEpisodeStoreNotFound(t *testing.T) {
	ctx := context.Background()

	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Init(ctx); err != nil {
				t.Fatalf("Init: %v", err)
			}
			defer store.Close()

			if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetRun error = %v, want ErrNotFound", err)
			}
			if _, err := store.Episodes(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Episodes error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestNewStoreUnknownBackend(t *testing.T) {
	if _, err := NewStore("postgres", ""); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestLifetimeTrackerTransitions(t *testing.T) {
	lt := NewLifetimeTracker()
	lt.Register(4, "accel", "3", "bipedal", 0)

	if ev := lt.Observe(1, AgentSample{ID: 4, X: 5, Return: 10}); len(ev) != 0 {
		t.Errorf("unexpected events %v", ev)
	}
	ev := lt.Observe(2, AgentSample{ID: 4, X: 7, Return: 240, Success: true})
	if len(ev) != 1 || ev[0].Type != EventSuccess {
		t.Fatalf("events = %v, want one success", ev)
	}
	ev = lt.Observe(3, AgentSample{ID: 4, X: 6, Return: 240, Success: true, Done: true})
	if len(ev) != 1 || ev[0].Type != EventDone {
		t.Fatalf("events = %v, want one done", ev)
	}

	st := lt.Get(4)
	if st.Ticks != 3 || st.MaxX != 7 || st.FinalX != 6 {
		t.Errorf("stats = %+v", st)
	}
	if st.Reason() != "success" {
		t.Errorf("reason = %q, want success", st.Reason())
	}

	rec := NewEpisodeRecord("r", 1, st)
	if !rec.Success || rec.Return != 240 || rec.Name != "accel" {
		t.Errorf("record = %+v", rec)
	}

	if lt.Observe(4, AgentSample{ID: 99}) != nil {
		t.Error("unknown agent should produce no events")
	}

	if lt.Remove(4) == nil || lt.Count() != 0 {
		t.Errorf("after Remove, Count() = %d", lt.Count())
	}
}

func TestHallOfFameKeepsBest(t *testing.T) {
	hof := NewHallOfFame(2)

	if !hof.Consider(HallEntry{Latent: []float64{1}, Fitness: 5}) {
		t.Error("first entry should be added")
	}
	hof.Consider(HallEntry{Latent: []float64{2}, Fitness: 9})
	if hof.Consider(HallEntry{Latent: []float64{3}, Fitness: 1}) {
		t.Error("weaker entry should be rejected when full")
	}
	hof.Consider(HallEntry{Latent: []float64{4}, Fitness: 7})

	entries := hof.Entries()
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].Fitness != 9 || entries[1].Fitness != 7 {
		t.Errorf("fitness order = %v, %v", entries[0].Fitness, entries[1].Fitness)
	}
	best, ok := hof.Best()
	if !ok || best.Latent[0] != 2 {
		t.Errorf("best = %+v", best)
	}
}

func TestOutputManagerWrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}
	if err := om.WriteWindow(WindowStats{WindowEndTick: 10}); err != nil {
		t.Fatal(err)
	}
	if err := om.WriteWindow(WindowStats{WindowEndTick: 20}); err != nil {
		t.Fatal(err)
	}
	if err := om.WriteEpisodes([]EpisodeRecord{{RunID: "r", Name: "a"}}); err != nil {
		t.Fatal(err)
	}
	hof := NewHallOfFame(1)
	hof.Consider(HallEntry{Latent: []float64{0.1}, Fitness: 1})
	if err := om.WriteHallOfFame(hof); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	loaded, err := LoadHallOfFame(filepath.Join(dir, "hall_of_fame.json"), 1)
	if err != nil {
		t.Fatalf("LoadHallOfFame: %v", err)
	}
	if loaded.Len() != 1 {
		t.Errorf("loaded %d entries, want 1", loaded.Len())
	}

	var nilOM *OutputManager
	if err := nilOM.WriteWindow(WindowStats{}); err != nil {
		t.Errorf("nil manager should be a no-op, got %v", err)
	}
}
