package systems

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/accelagent/parkour/config"
	"github.com/accelagent/parkour/physics"
	"github.com/accelagent/parkour/physics/fake"
)

func init() {
	config.MustInit("")
}

func procedural(t *testing.T, cfg *config.Config, seed uint64) *Terrain {
	t.Helper()
	terrain, err := GenerateTerrain(cfg, TerrainParams{
		Mode: ModeProcedural,
		Rand: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	})
	if err != nil {
		t.Fatalf("GenerateTerrain: %v", err)
	}
	return terrain
}

func TestProceduralTerrainShape(t *testing.T) {
	cfg := config.Defaults()
	d := cfg.Derived
	terrain := procedural(t, cfg, 1)

	wantLen := cfg.Terrain.Startpad + cfg.Terrain.Length
	if len(terrain.Ground) != wantLen || len(terrain.Ceiling) != wantLen {
		t.Fatalf("profile lengths %d/%d, want %d", len(terrain.Ground), len(terrain.Ceiling), wantLen)
	}

	// The start pad and the first grass stretch after it are flat.
	for i := 0; i < 2*cfg.Terrain.Startpad; i++ {
		if terrain.Ground[i].Y != d.TerrainHeight {
			t.Fatalf("ground[%d].y = %v, want %v", i, terrain.Ground[i].Y, d.TerrainHeight)
		}
	}
	for i := 0; i < cfg.Terrain.Startpad; i++ {
		if math.Abs(terrain.Ground[i].X-float64(i)*d.TerrainStep) > 1e-9 {
			t.Errorf("ground[%d].x = %v", i, terrain.Ground[i].X)
		}
	}
	for i := 1; i < len(terrain.Ground); i++ {
		if terrain.Ground[i].X < terrain.Ground[i-1].X {
			t.Fatalf("ground x decreases at %d: %v -> %v", i, terrain.Ground[i-1].X, terrain.Ground[i].X)
		}
	}
	for i := range terrain.Ground {
		if terrain.Ceiling[i].Y < terrain.Ground[i].Y+d.CeilingClip-1e-9 {
			t.Errorf("column %d: ceiling %v below ground %v + clip", i, terrain.Ceiling[i].Y, terrain.Ground[i].Y)
		}
	}

	if len(terrain.Edges) != 2*(wantLen-1) {
		t.Errorf("edges = %d, want %d", len(terrain.Edges), 2*(wantLen-1))
	}
	if len(terrain.Background) != wantLen-1 {
		t.Errorf("background polys = %d, want %d", len(terrain.Background), wantLen-1)
	}
	if len(terrain.Bodies) == 0 {
		t.Error("expected obstacles on a default track")
	}
	for _, b := range terrain.Bodies {
		switch b.Type {
		case "pit", "stump", "stairs":
		default:
			t.Errorf("unexpected obstacle type %q", b.Type)
		}
		if len(b.Vertices) != 4 {
			t.Errorf("%s has %d vertices", b.Type, len(b.Vertices))
		}
	}
	if terrain.WaterY != d.GroundLimit {
		t.Errorf("dry track water y = %v, want ground limit %v", terrain.WaterY, d.GroundLimit)
	}
}

func TestProceduralTerrainDeterministic(t *testing.T) {
	cfg := config.Defaults()
	a := procedural(t, cfg, 7)
	b := procedural(t, cfg, 7)
	c := procedural(t, cfg, 8)

	if len(a.Bodies) != len(b.Bodies) {
		t.Fatalf("same seed produced %d and %d bodies", len(a.Bodies), len(b.Bodies))
	}
	for i := range a.Ground {
		if a.Ground[i] != b.Ground[i] {
			t.Fatalf("same seed diverged at column %d: %v vs %v", i, a.Ground[i], b.Ground[i])
		}
	}
	same := len(a.Ground) == len(c.Ground)
	for i := range a.Ground {
		if same && a.Ground[i] != c.Ground[i] {
			same = false
		}
	}
	if same {
		t.Error("different seeds produced identical grounds")
	}
}

// cycleSource replays a fixed sequence of draws.
type cycleSource struct {
	values []float64
	n      int
}

func (c *cycleSource) Float64() float64 {
	v := c.values[c.n%len(c.values)]
	c.n++
	return v
}

func TestProceduralStumpOnly(t *testing.T) {
	cfg := config.Defaults()
	cfg.Terrain.Length = 30
	cfg.Terrain.Obstacles.StumpWidth = config.Range{2, 2}
	cfg.Terrain.Obstacles.StumpHeight = config.Range{1, 1}

	// 0.2*3 floors to 0, so every obstacle is a stump. Grass noise and counters draw the same value.
	src := &cycleSource{values: []float64{0.2}}
	terrain, err := GenerateTerrain(cfg, TerrainParams{Mode: ModeProcedural, Rand: src})
	if err != nil {
		t.Fatal(err)
	}
	if len(terrain.Bodies) == 0 {
		t.Fatal("no stump generated")
	}
	stump := terrain.Bodies[len(terrain.Bodies)-1]
	if stump.Type != "stump" {
		t.Fatalf("first obstacle is %q, want stump", stump.Type)
	}
	d := cfg.Derived
	x0 := float64(2*cfg.Terrain.Startpad) * d.TerrainStep
	if math.Abs(stump.Vertices[0].X-x0) > 1e-9 {
		t.Errorf("stump starts at %v, want %v", stump.Vertices[0].X, x0)
	}
	if w := stump.Vertices[1].X - stump.Vertices[0].X; math.Abs(w-2*d.TerrainStep) > 1e-9 {
		t.Errorf("stump width %v, want %v", w, 2*d.TerrainStep)
	}
	if h := stump.Vertices[2].Y - stump.Vertices[1].Y; math.Abs(h-d.TerrainStep) > 1e-9 {
		t.Errorf("stump height %v, want %v", h, d.TerrainStep)
	}
}

func constantHeights(ground, ceiling float64, n int) HeightFunc {
	return func(_ []float64, length int) ([][2]float64, error) {
		out := make([][2]float64, n)
		for i := range out {
			out[i] = [2]float64{ground, ceiling}
		}
		return out, nil
	}
}

func TestLatentTerrain(t *testing.T) {
	cfg := config.Defaults()
	d := cfg.Derived

	terrain, err := GenerateTerrain(cfg, TerrainParams{
		Mode:   ModeLatent,
		Height: constantHeights(50, 300, cfg.Terrain.Length),
	})
	if err != nil {
		t.Fatal(err)
	}
	start := cfg.Terrain.Startpad
	for i := start; i < len(terrain.Ground); i++ {
		if math.Abs(terrain.Ground[i].Y-d.TerrainHeight) > 1e-9 {
			t.Fatalf("ground[%d] = %v, want anchored to %v", i, terrain.Ground[i].Y, d.TerrainHeight)
		}
		if math.Abs(terrain.Ceiling[i].Y-(d.TerrainHeight+d.CeilingOffset)) > 1e-9 {
			t.Fatalf("ceiling[%d] = %v", i, terrain.Ceiling[i].Y)
		}
	}
	if x := terrain.Ground[start].X; math.Abs(x-float64(start)*d.TerrainStep) > 1e-9 {
		t.Errorf("first latent column at x=%v", x)
	}
}

func TestLatentCeilingClipped(t *testing.T) {
	cfg := config.Defaults()
	d := cfg.Derived

	// A ceiling that starts high and then collapses onto the ground.
	height := func(_ []float64, length int) ([][2]float64, error) {
		out := make([][2]float64, length)
		out[0] = [2]float64{0, 0}
		for i := 1; i < length; i++ {
			out[i] = [2]float64{0, -5000}
		}
		return out, nil
	}
	terrain, err := GenerateTerrain(cfg, TerrainParams{Mode: ModeLatent, Height: height})
	if err != nil {
		t.Fatal(err)
	}
	for i := cfg.Terrain.Startpad + 1; i < len(terrain.Ceiling); i++ {
		want := terrain.Ground[i].Y + d.CeilingClip
		if math.Abs(terrain.Ceiling[i].Y-want) > 1e-9 {
			t.Fatalf("ceiling[%d] = %v, want clipped to %v", i, terrain.Ceiling[i].Y, want)
		}
	}
}

func TestLatentShortProfile(t *testing.T) {
	cfg := config.Defaults()
	_, err := GenerateTerrain(cfg, TerrainParams{
		Mode:   ModeLatent,
		Height: constantHeights(0, 0, cfg.Terrain.Length-1),
	})
	if !errors.Is(err, ErrShortProfile) {
		t.Errorf("got %v, want ErrShortProfile", err)
	}
}

func TestWaterLevel(t *testing.T) {
	cfg := config.Defaults()
	cfg.Terrain.WaterLevel = 0.5
	terrain, err := GenerateTerrain(cfg, TerrainParams{
		Mode:   ModeLatent,
		Height: constantHeights(0, 0, cfg.Terrain.Length),
	})
	if err != nil {
		t.Fatal(err)
	}
	want := terrain.MinGroundY + 0.5*terrain.AirMaxDistance
	if math.Abs(terrain.WaterY-want) > 1e-9 {
		t.Errorf("water y = %v, want %v", terrain.WaterY, want)
	}

	cfg.Terrain.WaterLevel = 1
	terrain, err = GenerateTerrain(cfg, TerrainParams{
		Mode:   ModeLatent,
		Height: constantHeights(0, 0, cfg.Terrain.Length),
	})
	if err != nil {
		t.Fatal(err)
	}
	limit := terrain.MinGroundY + terrain.AirMaxDistance - cfg.Derived.WaterClip
	if terrain.WaterY > limit+1e-9 {
		t.Errorf("full water y = %v exceeds ceiling clip %v", terrain.WaterY, limit)
	}
}

func TestDrawnTerrain(t *testing.T) {
	cfg := config.Defaults()
	d := cfg.Derived
	x0 := float64(cfg.Terrain.Startpad) * d.TerrainStep
	ground := []physics.Vec2{
		{X: x0, Y: d.TerrainHeight},
		{X: x0 + 0.01, Y: d.TerrainHeight},
		{X: x0 + 2, Y: d.TerrainHeight + 1},
		{X: x0 + 4, Y: d.TerrainHeight},
	}
	ceiling := []physics.Vec2{{X: x0, Y: d.TerrainHeight}, {X: x0 + 4, Y: d.TerrainHeight + 10}}

	terrain, err := GenerateTerrain(cfg, TerrainParams{Mode: ModeDrawn, DrawnGround: ground, DrawnCeiling: ceiling})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(terrain.Ground) - cfg.Terrain.Startpad; got != 3 {
		t.Errorf("kept %d drawn ground points, want 3", got)
	}
	first := terrain.Ceiling[cfg.Terrain.Startpad]
	if first.Y < d.TerrainHeight+d.CeilingClip-1e-9 {
		t.Errorf("drawn ceiling %v not clipped above ground", first.Y)
	}

	if _, err := GenerateTerrain(cfg, TerrainParams{Mode: ModeDrawn}); err == nil {
		t.Error("drawn mode without ground should fail")
	}
}

func TestSmoothProfile(t *testing.T) {
	tests := []struct {
		name   string
		points []physics.Vec2
		want   []physics.Vec2
	}{
		{
			name:   "close points",
			points: []physics.Vec2{{X: 0}, {X: 0.1}, {X: 0.2}, {X: 1}, {X: 1.1}},
			want:   []physics.Vec2{{X: 0}, {X: 1}, {X: 1.1}},
		},
		{
			name:   "vertical wall",
			points: []physics.Vec2{{X: 0}, {X: 2}, {X: 2, Y: 3}, {X: 4, Y: 3}},
			want:   []physics.Vec2{{X: 0}, {X: 2}, {X: 4, Y: 3}},
		},
		{
			name:   "last point under a kept one",
			points: []physics.Vec2{{X: 0}, {X: 1}, {X: 2}, {X: 2, Y: 5}},
			want:   []physics.Vec2{{X: 0}, {X: 1}, {X: 2, Y: 5}},
		},
		{
			name:   "two points",
			points: []physics.Vec2{{X: 0}, {X: 0.1}},
			want:   []physics.Vec2{{X: 0}, {X: 0.1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SmoothProfile(tt.points, 0.5)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("point %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDrawnWallKeepsXIncreasing(t *testing.T) {
	cfg := config.Defaults()
	d := cfg.Derived
	x0 := float64(cfg.Terrain.Startpad) * d.TerrainStep
	h := d.TerrainHeight
	ground := []physics.Vec2{{X: x0, Y: h}, {X: x0 + 2, Y: h}, {X: x0 + 2, Y: h + 3}, {X: x0 + 4, Y: h + 3}}
	ceiling := []physics.Vec2{{X: x0, Y: h + 10}, {X: x0 + 4, Y: h + 10}}

	terrain, err := GenerateTerrain(cfg, TerrainParams{Mode: ModeDrawn, DrawnGround: ground, DrawnCeiling: ceiling})
	if err != nil {
		t.Fatal(err)
	}
	for name, profile := range map[string][]physics.Vec2{"ground": terrain.Ground, "ceiling": terrain.Ceiling} {
		for i := 1; i < len(profile); i++ {
			if profile[i].X <= profile[i-1].X {
				t.Errorf("%s x not strictly increasing at %d: %v -> %v", name, i, profile[i-1], profile[i])
			}
		}
	}
}

func TestCreepers(t *testing.T) {
	cfg := config.Defaults()
	cfg.Terrain.Creepers = config.CreeperConfig{Width: 0.3, Height: 2, Spacing: 1}
	terrain := procedural(t, cfg, 3)

	n := 0
	for _, b := range terrain.Bodies {
		if b.Type != "creeper" {
			continue
		}
		n++
		if b.Kind != physics.KindGrabbable || !b.Sensor {
			t.Errorf("creeper kind %v sensor %v", b.Kind, b.Sensor)
		}
		if b.Vertices[0].X < float64(cfg.Terrain.Startpad)*cfg.Derived.TerrainStep {
			t.Errorf("creeper over the start pad at x=%v", b.Vertices[0].X)
		}
	}
	if n == 0 {
		t.Error("no creepers generated")
	}
}

func TestMaterialize(t *testing.T) {
	cfg := config.Defaults()
	terrain := procedural(t, cfg, 5)
	w := fake.New(physics.Vec2{})

	bodies := terrain.Materialize(w, cfg.Physics.Friction)
	if len(bodies) != len(terrain.Edges)+len(terrain.Bodies) {
		t.Fatalf("materialized %d bodies, want %d", len(bodies), len(terrain.Edges)+len(terrain.Bodies))
	}
	grip := 0
	for _, b := range bodies {
		if b.Type() != physics.Static {
			t.Fatalf("terrain body is %v", b.Type())
		}
		if b.UserData().Kind == physics.KindGripTerrain {
			grip++
		}
	}
	if grip != len(terrain.Ceiling)-1 {
		t.Errorf("grip edges = %d, want %d", grip, len(terrain.Ceiling)-1)
	}
}
