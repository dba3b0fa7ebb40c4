package systems

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/accelagent/parkour/config"
	"github.com/accelagent/parkour/physics"
)

// ErrShortProfile is returned when a latent height function yields fewer
// (ground, ceiling) pairs than the terrain length.
var ErrShortProfile = errors.New("height function returned a short profile")

// Terrain modes.
const (
	ModeProcedural = "procedural"
	ModeLatent     = "latent"
	ModeDrawn      = "drawn"
)

// ObstacleClass is the state of the procedural generator.
type ObstacleClass uint8

const (
	Grass ObstacleClass = iota
	Stump
	Stairs
	Pit
)

func (c ObstacleClass) String() string {
	switch c {
	case Grass:
		return "grass"
	case Stump:
		return "stump"
	case Stairs:
		return "stairs"
	case Pit:
		return "pit"
	default:
		return "unknown"
	}
}

// Edge and background colors. They only travel in the level description.
const (
	groundColorEven = "#4dff4d"
	groundColorOdd  = "#4dcc4d"
	ceilingColor    = "#808080"
	obstacleColor   = "#ffffff"
	creeperColor    = "#6d9a39"
	backgroundColor = "#66994d"
)

// RandSource supplies uniform draws in [0, 1).
type RandSource interface {
	Float64() float64
}

// HeightFunc maps a latent vector to length (ground, ceiling) pairs in
// generator units. The generator divides them by the smoothing factor.
type HeightFunc func(latent []float64, length int) ([][2]float64, error)

// TerrainParams selects how the profile is produced.
type TerrainParams struct {
	Mode   string
	Rand   RandSource
	Height HeightFunc
	Latent []float64

	// Drawn profiles, in world units. Only used in drawn mode.
	DrawnGround  []physics.Vec2
	DrawnCeiling []physics.Vec2
}

// TerrainBody is a static polygon produced by the generator.
type TerrainBody struct {
	Type     string // pit, stump, stairs or creeper
	Vertices []physics.Vec2
	Kind     physics.ObjectKind
	Sensor   bool
	Color    string
}

// TerrainEdge is one segment of the ground or ceiling line.
type TerrainEdge struct {
	A, B    physics.Vec2
	Ceiling bool
	Color   string
}

// BackgroundPoly fills the area below a ground edge.
type BackgroundPoly struct {
	Vertices []physics.Vec2
	Color    string
}

// Terrain is a generated track: two ordered profiles plus the static geometry
// derived from them.
type Terrain struct {
	Ground  []physics.Vec2
	Ceiling []physics.Vec2

	Bodies     []TerrainBody
	Edges      []TerrainEdge
	Background []BackgroundPoly

	MinGroundY      float64
	AirMaxDistance  float64
	WaterY          float64
	StartpadColumns int
}

// GenerateTerrain builds a track from the configuration. The first startpad
// columns are always flat at the terrain height.
func GenerateTerrain(cfg *config.Config, p TerrainParams) (*Terrain, error) {
	d := cfg.Derived
	step := d.TerrainStep
	startpad := cfg.Terrain.Startpad

	t := &Terrain{StartpadColumns: startpad}
	for i := 0; i < startpad; i++ {
		x := float64(i) * step
		t.Ground = append(t.Ground, physics.V(x, d.TerrainHeight))
		t.Ceiling = append(t.Ceiling, physics.V(x, d.TerrainHeight+d.CeilingOffset))
	}

	mode := p.Mode
	if mode == "" {
		mode = cfg.Terrain.Mode
	}
	switch mode {
	case ModeProcedural:
		if p.Rand == nil {
			return nil, fmt.Errorf("procedural terrain needs a random source")
		}
		g := newObstacleGenerator(cfg, p.Rand)
		ground, bodies := g.run()
		for _, pt := range ground {
			t.Ground = append(t.Ground, pt)
			t.Ceiling = append(t.Ceiling, physics.V(pt.X, pt.Y+d.CeilingOffset))
		}
		t.Bodies = append(t.Bodies, bodies...)
	case ModeLatent:
		if p.Height == nil {
			return nil, fmt.Errorf("latent terrain needs a height function")
		}
		if err := t.appendLatent(cfg, p.Height, p.Latent); err != nil {
			return nil, err
		}
	case ModeDrawn:
		if len(p.DrawnGround) == 0 {
			return nil, fmt.Errorf("drawn terrain needs ground points")
		}
		// Drawn points reaching back over the start pad are skipped.
		for _, pt := range SmoothProfile(p.DrawnGround, step) {
			if len(t.Ground) == 0 || pt.X > t.Ground[len(t.Ground)-1].X {
				t.Ground = append(t.Ground, pt)
			}
		}
		for _, pt := range SmoothProfile(p.DrawnCeiling, step) {
			if len(t.Ceiling) > 0 && pt.X <= t.Ceiling[len(t.Ceiling)-1].X {
				continue
			}
			g, ok := FindBestY(pt.X, t.Ground, Unbounded)
			if ok && pt.Y < g+d.CeilingClip {
				pt.Y = g + d.CeilingClip
			}
			t.Ceiling = append(t.Ceiling, pt)
		}
	default:
		return nil, fmt.Errorf("unknown terrain mode %q", mode)
	}

	t.buildEdges(d)
	t.computeWater(cfg)
	if cfg.Terrain.Creepers.Width > 0 && cfg.Terrain.Creepers.Height > 0 {
		t.addCreepers(cfg, p.Rand)
	}
	return t, nil
}

// appendLatent asks the height function for one pair per column and anchors
// the first pair to the start pad so the track is continuous.
func (t *Terrain) appendLatent(cfg *config.Config, height HeightFunc, latent []float64) error {
	d := cfg.Derived
	length := cfg.Terrain.Length
	pairs, err := height(latent, length)
	if err != nil {
		return fmt.Errorf("height function: %w", err)
	}
	if len(pairs) < length {
		return fmt.Errorf("%w: got %d pairs, want %d", ErrShortProfile, len(pairs), length)
	}

	smoothing := cfg.Terrain.Smoothing
	groundOffset := d.TerrainHeight - pairs[0][0]/smoothing
	ceilingOffset := d.TerrainHeight + d.CeilingOffset - pairs[0][1]/smoothing
	for i := 0; i < length; i++ {
		x := float64(cfg.Terrain.Startpad+i) * d.TerrainStep
		g := pairs[i][0]/smoothing + groundOffset
		c := pairs[i][1]/smoothing + ceilingOffset
		if c < g+d.CeilingClip {
			c = g + d.CeilingClip
		}
		t.Ground = append(t.Ground, physics.V(x, g))
		t.Ceiling = append(t.Ceiling, physics.V(x, c))
	}
	return nil
}

func (t *Terrain) buildEdges(d config.DerivedConfig) {
	half := len(t.Ground) / 2
	for i := 0; i+1 < len(t.Ground); i++ {
		p0, p1 := t.Ground[i], t.Ground[i+1]
		color := groundColorEven
		if i%2 == 1 {
			color = groundColorOdd
		}
		t.Edges = append(t.Edges, TerrainEdge{A: p0, B: p1, Color: color})

		var poly []physics.Vec2
		if i <= half {
			poly = []physics.Vec2{p0, p1,
				physics.V(p1.X+10*d.TerrainStep, 2*d.GroundLimit),
				physics.V(p0.X, 2*d.GroundLimit)}
		} else {
			poly = []physics.Vec2{p0, p1,
				physics.V(p1.X, 2*d.GroundLimit),
				physics.V(p0.X-10*d.TerrainStep, 2*d.GroundLimit)}
		}
		t.Background = append(t.Background, BackgroundPoly{Vertices: poly, Color: backgroundColor})
	}
	for i := 0; i+1 < len(t.Ceiling); i++ {
		t.Edges = append(t.Edges, TerrainEdge{A: t.Ceiling[i], B: t.Ceiling[i+1], Ceiling: true, Color: ceilingColor})
	}
}

func (t *Terrain) computeWater(cfg *config.Config) {
	gy := ys(t.Ground)
	cy := ys(t.Ceiling)
	t.MinGroundY = floats.Min(gy)
	maxCeiling := floats.Max(cy)
	t.AirMaxDistance = maxCeiling - t.MinGroundY

	t.WaterY = cfg.Derived.GroundLimit
	if lvl := cfg.Terrain.WaterLevel; lvl > 0 {
		t.WaterY = t.MinGroundY + lvl*t.AirMaxDistance
		if limit := maxCeiling - cfg.Derived.WaterClip; t.WaterY > limit {
			t.WaterY = limit
		}
	}
}

// addCreepers hangs grabbable sensor polygons from the ceiling past the start pad.
func (t *Terrain) addCreepers(cfg *config.Config, rnd RandSource) {
	cc := cfg.Terrain.Creepers
	var src rand.Source
	if s, ok := rnd.(rand.Source); ok {
		src = s
	}
	width := distuv.Normal{Mu: cc.Width, Sigma: 0.1 * cc.Width, Src: src}
	height := distuv.Normal{Mu: cc.Height, Sigma: 0.1 * cc.Height, Src: src}

	startX := float64(t.StartpadColumns) * cfg.Derived.TerrainStep
	endX := t.Ceiling[len(t.Ceiling)-1].X
	for x := startX + cc.Spacing; x < endX; x += cc.Spacing + cc.Width {
		w := math.Max(0.1, width.Rand())
		h := math.Max(0.1, height.Rand())
		top, ok := FindBestY(x, t.Ceiling, Unbounded)
		if !ok {
			continue
		}
		t.Bodies = append(t.Bodies, TerrainBody{
			Type: "creeper",
			Vertices: []physics.Vec2{
				physics.V(x-w/2, top), physics.V(x+w/2, top),
				physics.V(x+w/2, top-h), physics.V(x-w/2, top-h),
			},
			Kind:   physics.KindGrabbable,
			Sensor: true,
			Color:  creeperColor,
		})
	}
}

// Materialize creates static bodies for every edge and obstacle polygon.
func (t *Terrain) Materialize(world physics.World, friction float64) []physics.Body {
	bodies := make([]physics.Body, 0, len(t.Edges)+len(t.Bodies))
	for _, e := range t.Edges {
		kind := physics.KindTerrain
		if e.Ceiling {
			kind = physics.KindGripTerrain
		}
		b := world.CreateBody(physics.BodyDef{Type: physics.Static}, physics.FixtureDef{
			Shape:    physics.Edge(e.A, e.B),
			Friction: friction,
			Filter:   physics.TerrainFilter,
		})
		b.SetUserData(&physics.UserData{Name: "terrain", Kind: kind})
		bodies = append(bodies, b)
	}
	for _, tb := range t.Bodies {
		b := world.CreateBody(physics.BodyDef{Type: physics.Static}, physics.FixtureDef{
			Shape:    physics.Polygon(tb.Vertices...),
			Friction: friction,
			Filter:   physics.TerrainFilter,
			Sensor:   tb.Sensor,
		})
		b.SetUserData(&physics.UserData{Name: tb.Type, Kind: tb.Kind})
		bodies = append(bodies, b)
	}
	return bodies
}

// SmoothProfile drops interior points less than eps to the right of the last
// kept point, so x is strictly increasing. The first and last points are always
// kept.
func SmoothProfile(points []physics.Vec2, eps float64) []physics.Vec2 {
	if len(points) <= 2 {
		return append([]physics.Vec2(nil), points...)
	}
	out := []physics.Vec2{points[0]}
	for _, p := range points[1 : len(points)-1] {
		if p.X >= out[len(out)-1].X+eps {
			out = append(out, p)
		}
	}
	last := points[len(points)-1]
	if len(out) > 1 && last.X <= out[len(out)-1].X {
		// Keep x strictly increasing when the last point falls back onto a kept one.
		out = out[:len(out)-1]
	}
	return append(out, last)
}

func ys(points []physics.Vec2) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Y
	}
	return out
}

// obstacleGenerator walks the GRASS/STUMP/STAIRS/PIT state machine one column
// at a time. All widths are in columns, heights in terrain steps.
type obstacleGenerator struct {
	rnd       RandSource
	obstacles config.ObstacleConfig

	step, height, scale float64
	startpad, length    int
	grass               int

	state     ObstacleClass
	oneshot   bool
	counter   int
	velocity  float64
	y         float64
	originalY float64
	roughness float64

	pitGap, pitDiff float64

	stairHeight, stairWidth, stairSteps, stairSlope float64

	xs, ys []float64
	bodies []TerrainBody
}

func newObstacleGenerator(cfg *config.Config, rnd RandSource) *obstacleGenerator {
	return &obstacleGenerator{
		rnd:       rnd,
		obstacles: cfg.Terrain.Obstacles,
		step:      cfg.Derived.TerrainStep,
		height:    cfg.Derived.TerrainHeight,
		scale:     cfg.Physics.Scale,
		startpad:  cfg.Terrain.Startpad,
		length:    cfg.Terrain.Length,
		grass:     cfg.Terrain.Grass,
	}
}

// randomInt draws an integer in [r.Min, r.Max). A degenerate range consumes no draw.
func (g *obstacleGenerator) randomInt(r config.Range) float64 {
	if r.Min() == r.Max() {
		return r.Min()
	}
	return math.Floor(g.rnd.Float64()*(r.Max()-r.Min())) + r.Min()
}

func (g *obstacleGenerator) run() ([]physics.Vec2, []TerrainBody) {
	g.state = Grass
	g.counter = g.startpad
	g.y = g.height
	g.originalY = g.y
	g.roughness = g.randomInt(g.obstacles.GroundRoughness)

	for i := 0; i < g.length; i++ {
		x := float64(g.startpad+i) * g.step
		g.xs = append(g.xs, x)
		g.column(i, x)

		g.oneshot = false
		g.ys = append(g.ys, g.y)
		g.counter--
		if g.counter == 0 {
			g.counter = int(math.Floor(g.rnd.Float64()*float64(g.grass))) + g.grass/2
			if g.state == Grass {
				g.state = ObstacleClass(int(math.Floor(g.rnd.Float64()*3)) + 1)
			} else {
				g.state = Grass
			}
			g.oneshot = true
		}
	}

	ground := make([]physics.Vec2, len(g.xs))
	for i := range g.xs {
		ground[i] = physics.V(g.xs[i], g.ys[i])
	}
	for i, j := 0, len(g.bodies)-1; i < j; i, j = i+1, j-1 {
		g.bodies[i], g.bodies[j] = g.bodies[j], g.bodies[i]
	}
	return ground, g.bodies
}

func (g *obstacleGenerator) column(i int, x float64) {
	step := g.step
	switch {
	case g.state == Grass:
		g.velocity = 0.8*g.velocity + 0.01*sign(g.height-g.y)
		if i > g.startpad {
			g.velocity += (g.rnd.Float64()*2 - 1) / g.scale
		}
		g.y += g.roughness * g.velocity

	case g.state == Pit && g.oneshot:
		g.pitGap = g.randomInt(g.obstacles.PitGap)
		if g.pitGap > 0 {
			g.counter = max(int(math.Ceil(g.pitGap)), 1)
			g.pitDiff = float64(g.counter) - g.pitGap
			left := []physics.Vec2{
				physics.V(x, g.y), physics.V(x+step, g.y),
				physics.V(x+step, g.y-4*step), physics.V(x, g.y-4*step),
			}
			right := make([]physics.Vec2, len(left))
			for k, v := range left {
				right[k] = physics.V(v.X+step*g.pitGap, v.Y)
			}
			g.addBody("pit", left)
			g.addBody("pit", right)
			g.counter += 2
			g.originalY = g.y
		}

	case g.state == Pit && g.pitGap > 0:
		g.y = g.originalY
		if g.counter > 1 {
			g.y -= 4 * step
		}
		if g.counter == 1 {
			g.xs[len(g.xs)-1] -= g.pitDiff * step
			g.pitDiff = 0
		}

	case g.state == Stump && g.oneshot:
		w := g.randomInt(g.obstacles.StumpWidth)
		h := g.randomInt(g.obstacles.StumpHeight)
		g.counter = int(w)
		if w > 0 && h > 0 {
			g.addBody("stump", []physics.Vec2{
				physics.V(x, g.y), physics.V(x+w*step, g.y),
				physics.V(x+w*step, g.y+h*step), physics.V(x, g.y+h*step),
			})
		}

	case g.state == Stairs && g.oneshot:
		g.stairHeight = g.randomInt(g.obstacles.StairHeight)
		g.stairWidth = g.randomInt(g.obstacles.StairWidth)
		g.stairSteps = g.randomInt(g.obstacles.StairSteps)
		g.stairSlope = 1
		if g.rnd.Float64() > 0.5 {
			g.stairSlope = -1
		}
		if g.stairSlope > 0 {
			g.stairHeight = math.Min(g.stairHeight, 1)
		}
		g.originalY = g.y
		hs, ws := g.stairHeight, g.stairWidth
		for s := 0.0; s < g.stairSteps; s++ {
			top := g.y + hs*s*g.stairSlope*step
			bottom := g.y + hs*(-1+s*g.stairSlope)*step
			g.addBody("stairs", []physics.Vec2{
				physics.V(x+s*ws*step, top), physics.V(x+(1+s)*ws*step, top),
				physics.V(x+(1+s)*ws*step, bottom), physics.V(x+s*ws*step, bottom),
			})
		}
		g.counter = int(g.stairSteps*g.stairWidth) + 1

	case g.state == Stairs:
		s := g.stairSteps*g.stairWidth - float64(g.counter)
		if g.stairSlope == 1 {
			s -= g.stairHeight
		}
		g.y = g.originalY + (s/g.stairWidth)*g.stairHeight*g.stairSlope*step
	}
}

func (g *obstacleGenerator) addBody(kind string, vertices []physics.Vec2) {
	g.bodies = append(g.bodies, TerrainBody{
		Type:     kind,
		Vertices: vertices,
		Kind:     physics.KindTerrain,
		Color:    obstacleColor,
	})
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
