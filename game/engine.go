// Package game runs parkour episodes: the Engine owns one physics world, one
// terrain and the agent registry, and Game drives it tick by tick.
package game

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/mlange-42/ark/ecs"

	"github.com/accelagent/parkour/components"
	"github.com/accelagent/parkour/config"
	"github.com/accelagent/parkour/physics"
	"github.com/accelagent/parkour/systems"
	"github.com/accelagent/parkour/telemetry"
)

var (
	// ErrNotReset is returned when the engine is stepped or queried before the first Reset.
	ErrNotReset = errors.New("engine has not been reset")
	// ErrActionSize is returned for an action vector that does not match the actuator count.
	ErrActionSize = errors.New("action vector size mismatch")
	// ErrUnknownAgent is returned for an id that is not registered.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrUnknownAsset is returned for an asset id that is not registered.
	ErrUnknownAsset = errors.New("unknown asset")
)

// Options configures an Engine beyond the global configuration.
type Options struct {
	// Rand drives terrain generation and creeper sizes. Defaults to a PCG seeded from runner.seed.
	Rand *rand.Rand
	// Height produces latent-mode profiles.
	Height systems.HeightFunc
	// Latent overrides terrain.latent_vector.
	Latent []float64
	// DrawnGround and DrawnCeiling are used in drawn mode.
	DrawnGround  []physics.Vec2
	DrawnCeiling []physics.Vec2

	Logger *slog.Logger
	Perf   *telemetry.PerfCollector
}

// Engine is the simulation context. It owns the physics world, the current
// terrain and every agent; callers only borrow read-only views.
type Engine struct {
	cfg    *config.Config
	world  physics.World
	rng    *rand.Rand
	logger *slog.Logger
	perf   *telemetry.PerfCollector
	opts   Options

	ecs         *ecs.World
	agentMapper *ecs.Map7[
		components.Identity,
		components.Embodiment,
		components.Sensing,
		components.Control,
		components.Survival,
		components.Episode,
		components.Placement,
	]
	placementFilter *ecs.Filter2[components.Identity, components.Placement]

	// order is the internal agent order used for step results.
	order  []ecs.Entity
	byID   map[uint64]ecs.Entity
	nextID uint64

	terrain       *systems.Terrain
	terrainBodies []physics.Body
	waterBody     physics.Body

	assets      map[uint64]*asset
	assetOrder  []uint64
	nextAssetID uint64

	ready bool
	tick  int
}

// New creates an engine around world. The world is owned by the engine from
// here on and must not be shared.
func New(cfg *config.Config, world physics.World, opts Options) *Engine {
	if opts.Rand == nil {
		seed := uint64(cfg.Runner.Seed)
		opts.Rand = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	w := ecs.NewWorld()
	e := &Engine{
		cfg:    cfg,
		world:  world,
		rng:    opts.Rand,
		logger: opts.Logger,
		perf:   opts.Perf,
		opts:   opts,
		ecs:    w,
		agentMapper: ecs.NewMap7[
			components.Identity,
			components.Embodiment,
			components.Sensing,
			components.Control,
			components.Survival,
			components.Episode,
			components.Placement,
		](w),
		placementFilter: ecs.NewFilter2[components.Identity, components.Placement](w),
		byID:            make(map[uint64]ecs.Entity),
		assets:          make(map[uint64]*asset),
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// World returns the physics world for read-only inspection.
func (e *Engine) World() physics.World { return e.world }

// Terrain returns the current terrain, or nil before the first reset.
func (e *Engine) Terrain() *systems.Terrain { return e.terrain }

// WaterY returns the current water surface height.
func (e *Engine) WaterY() float64 {
	if e.terrain == nil {
		return e.cfg.Derived.GroundLimit
	}
	return e.terrain.WaterY
}

// Tick returns the number of steps since the last reset.
func (e *Engine) Tick() int { return e.tick }

// SetLatent replaces the latent vector used by the next reset.
func (e *Engine) SetLatent(latent []float64) {
	e.opts.Latent = append([]float64(nil), latent...)
}

// Latent returns the latent vector used by latent-mode resets.
func (e *Engine) Latent() []float64 {
	if e.opts.Latent != nil {
		return e.opts.Latent
	}
	return e.cfg.Terrain.LatentVector
}

// SetDrawnTerrain replaces the drawn profiles used by the next reset.
func (e *Engine) SetDrawnTerrain(ground, ceiling []physics.Vec2) {
	e.opts.DrawnGround = ground
	e.opts.DrawnCeiling = ceiling
}

// Close destroys every agent, asset and terrain body. The engine can be
// reset again afterwards.
func (e *Engine) Close() {
	e.world.SetContactListener(nil)
	e.destroyWorld()
	e.ready = false
}

// destroyWorld tears down embodiments before terrain so no grab joint
// outlives the body it is anchored to.
func (e *Engine) destroyWorld() {
	for _, ent := range e.order {
		emb := e.embodiment(ent)
		if emb.Body.Built() {
			emb.Body.Destroy(e.world)
		}
	}
	for _, id := range e.assetOrder {
		e.world.DestroyBody(e.assets[id].body)
	}
	e.assets = make(map[uint64]*asset)
	e.assetOrder = e.assetOrder[:0]

	for _, b := range e.terrainBodies {
		e.world.DestroyBody(b)
	}
	e.terrainBodies = nil
	if e.waterBody != nil {
		e.world.DestroyBody(e.waterBody)
		e.waterBody = nil
	}
	e.terrain = nil
}

// buildTerrain generates and materializes a new terrain.
func (e *Engine) buildTerrain() error {
	latent := e.Latent()
	t, err := systems.GenerateTerrain(e.cfg, systems.TerrainParams{
		Mode:         e.cfg.Terrain.Mode,
		Rand:         e.rng,
		Height:       e.opts.Height,
		Latent:       latent,
		DrawnGround:  e.opts.DrawnGround,
		DrawnCeiling: e.opts.DrawnCeiling,
	})
	if err != nil {
		return fmt.Errorf("generating terrain: %w", err)
	}
	e.terrain = t
	e.terrainBodies = t.Materialize(e.world, e.cfg.Physics.Friction)
	if t.WaterY > e.cfg.Derived.GroundLimit {
		e.waterBody = e.createWaterBody(t)
	}
	return nil
}

// createWaterBody covers the whole track below the water surface with a
// sensor so lidars can classify it.
func (e *Engine) createWaterBody(t *systems.Terrain) physics.Body {
	x0 := t.Ground[0].X
	x1 := t.Ground[len(t.Ground)-1].X
	bottom := e.cfg.Derived.GroundLimit
	b := e.world.CreateBody(physics.BodyDef{Type: physics.Static}, physics.FixtureDef{
		Shape: physics.Polygon(
			physics.V(x0, bottom), physics.V(x1, bottom),
			physics.V(x1, t.WaterY), physics.V(x0, t.WaterY),
		),
		Filter: physics.TerrainFilter,
		Sensor: true,
	})
	b.SetUserData(&physics.UserData{Name: "water", Kind: physics.KindWater})
	return b
}

func (e *Engine) phase(name string) {
	if e.perf != nil {
		e.perf.StartPhase(name)
	}
}

func (e *Engine) embodiment(ent ecs.Entity) *components.Embodiment {
	_, emb, _, _, _, _, _ := e.agentMapper.Get(ent)
	return emb
}

// lookup resolves an agent id to its live entity.
func (e *Engine) lookup(id uint64) (ecs.Entity, error) {
	ent, ok := e.byID[id]
	if !ok || !e.ecs.Alive(ent) {
		return ecs.Entity{}, fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	return ent, nil
}
