package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/accelagent/parkour/physics"
	"github.com/accelagent/parkour/systems"
)

func TestLevelSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "level.json.zst")

	snapshot := &LevelSnapshot{
		Version: SnapshotVersion,
		RunID:   "run-1",
		Episode: 3,
		Tick:    120,
		Seed:    42,
		Mode:    "latent",
		Latent:  []float64{0.5, -1.2, 3},
		Level: systems.LevelDescription{
			Ground:  []physics.Vec2{{X: 0, Y: 2}, {X: 1, Y: 2.5}},
			Ceiling: []physics.Vec2{{X: 0, Y: 8}, {X: 1, Y: 8.5}},
			Bodies: []systems.LevelBody{
				{Type: "ground", Vertices: []physics.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 2.5}, {X: 0, Y: 2}}},
			},
			WaterY: 3.5,
		},
		Agents: []AgentState{{ID: 1, Name: "random", Morphology: "bipedal", X: 5, Y: 3, Return: 12.5}},
		Bookmark: &Bookmark{
			Type:        BookmarkFirstSuccess,
			Tick:        120,
			Description: "Test bookmark",
		},
	}

	if err := WriteLevelSnapshot(path, snapshot); err != nil {
		t.Fatalf("WriteLevelSnapshot failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot file not created at %s: %v", path, err)
	}

	loaded, err := ReadLevelSnapshot(path)
	if err != nil {
		t.Fatalf("ReadLevelSnapshot failed: %v", err)
	}

	if loaded.RunID != snapshot.RunID || loaded.Episode != snapshot.Episode || loaded.Seed != snapshot.Seed {
		t.Errorf("header mismatch: got %+v", loaded)
	}
	if len(loaded.Latent) != 3 || loaded.Latent[1] != -1.2 {
		t.Errorf("latent mismatch: got %v", loaded.Latent)
	}
	if len(loaded.Level.Ground) != 2 || loaded.Level.Ground[1] != (physics.Vec2{X: 1, Y: 2.5}) {
		t.Errorf("ground mismatch: got %v", loaded.Level.Ground)
	}
	if len(loaded.Level.Bodies) != 1 || len(loaded.Level.Bodies[0].Vertices) != 4 {
		t.Errorf("bodies mismatch: got %v", loaded.Level.Bodies)
	}
	if loaded.Level.WaterY != 3.5 {
		t.Errorf("water y = %v, want 3.5", loaded.Level.WaterY)
	}
	if len(loaded.Agents) != 1 || loaded.Agents[0].Return != 12.5 {
		t.Errorf("agents mismatch: got %v", loaded.Agents)
	}
	if loaded.Bookmark == nil || loaded.Bookmark.Type != BookmarkFirstSuccess {
		t.Errorf("bookmark not restored: %v", loaded.Bookmark)
	}
}

func TestReadLevelSnapshotRejectsPlainJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.json")
	if err := os.WriteFile(path, []byte(`{"version":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadLevelSnapshot(path); err == nil {
		t.Error("expected an error for an uncompressed file")
	}
}

func TestSnapshotName(t *testing.T) {
	tests := []struct {
		name     string
		episode  int
		bookmark *Bookmark
		want     string
	}{
		{"plain", 7, nil, "level_ep0007.json.zst"},
		{"bookmarked", 12, &Bookmark{Type: BookmarkPopulationWipeout}, "level_ep0012_population_wipeout.json.zst"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SnapshotName(tt.episode, tt.bookmark); got != tt.want {
				t.Errorf("SnapshotName = %q, want %q", got, tt.want)
			}
		})
	}
}
