// Package config provides configuration loading and access for the environment.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalidRange is returned when a [min, max] range is malformed.
var ErrInvalidRange = errors.New("invalid range")

// Config holds all environment configuration parameters.
type Config struct {
	Physics      PhysicsConfig               `yaml:"physics"`
	Terrain      TerrainConfig               `yaml:"terrain"`
	Lidar        LidarConfig                 `yaml:"lidar"`
	Reward       RewardConfig                `yaml:"reward"`
	Morphologies map[string]MorphologyConfig `yaml:"morphologies"`
	Telemetry    TelemetryConfig             `yaml:"telemetry"`
	Observer     ObserverConfig              `yaml:"observer"`
	Runner       RunnerConfig                `yaml:"runner"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// Range is an inclusive [min, max] pair.
type Range [2]float64

// Min returns the lower bound.
func (r Range) Min() float64 { return r[0] }

// Max returns the upper bound.
func (r Range) Max() float64 { return r[1] }

// PhysicsConfig holds world stepping parameters.
type PhysicsConfig struct {
	FPS                int     `yaml:"fps"`
	Scale              float64 `yaml:"scale"` // pixels per world unit
	Gravity            float64 `yaml:"gravity"`
	VelocityIterations int     `yaml:"velocity_iterations"`
	PositionIterations int     `yaml:"position_iterations"`
	Friction           float64 `yaml:"friction"`
	ViewportW          float64 `yaml:"viewport_w"`
	ViewportH          float64 `yaml:"viewport_h"`
}

// TerrainConfig holds terrain generation parameters.
type TerrainConfig struct {
	Mode              string         `yaml:"mode"` // procedural, latent or drawn
	Length            int            `yaml:"length"`
	StepPx            float64        `yaml:"step_px"`
	Startpad          int            `yaml:"startpad"`
	End               int            `yaml:"end"`
	Grass             int            `yaml:"grass"`
	Smoothing         float64        `yaml:"smoothing"`
	CeilingOffset     float64        `yaml:"ceiling_offset"`
	CeilingClipOffset float64        `yaml:"ceiling_clip_offset"`
	WaterClip         float64        `yaml:"water_clip"`
	WaterLevel        float64        `yaml:"water_level"`
	LatentDim         int            `yaml:"latent_dim"`
	LatentVector      []float64      `yaml:"latent_vector"`
	Generator         string         `yaml:"generator"` // cppn or noise
	Obstacles         ObstacleConfig `yaml:"obstacles"`
	Creepers          CreeperConfig  `yaml:"creepers"`
}

// ObstacleConfig holds the per-obstacle parameter ranges of the procedural generator.
type ObstacleConfig struct {
	GroundRoughness Range `yaml:"ground_roughness"`
	PitGap          Range `yaml:"pit_gap"`
	StumpWidth      Range `yaml:"stump_width"`
	StumpHeight     Range `yaml:"stump_height"`
	StairHeight     Range `yaml:"stair_height"`
	StairWidth      Range `yaml:"stair_width"`
	StairSteps      Range `yaml:"stair_steps"`
}

// CreeperConfig holds grabbable creeper parameters. A zero width or height disables creepers.
type CreeperConfig struct {
	Width   float64 `yaml:"width"`
	Height  float64 `yaml:"height"`
	Spacing float64 `yaml:"spacing"`
}

// LidarConfig holds distance sensor parameters.
type LidarConfig struct {
	Count   int     `yaml:"count"`
	RangePx float64 `yaml:"range_px"`
}

// RewardConfig holds shaping and termination constants.
type RewardConfig struct {
	ProgressCoeff    float64 `yaml:"progress_coeff"`
	HeadAngleCoeff   float64 `yaml:"head_angle_coeff"`
	TorqueCoeff      float64 `yaml:"torque_coeff"`
	FailurePenalty   float64 `yaml:"failure_penalty"`
	SuccessThreshold float64 `yaml:"success_threshold"`
	IncludeSurface   bool    `yaml:"include_surface"` // append water/creeper classification to observations
}

// MorphologyConfig holds per-morphology tuning.
type MorphologyConfig struct {
	MotorTorque       float64 `yaml:"motor_torque"`
	UnderWaterLimit   int     `yaml:"under_water_limit"` // 0 means unlimited
	TorquePenalty     float64 `yaml:"torque_penalty"`
	PenalizeHeadAngle bool    `yaml:"penalize_head_angle"`
	Density           float64 `yaml:"density"`
}

// TelemetryConfig holds telemetry and output parameters.
type TelemetryConfig struct {
	StatsWindowTicks int    `yaml:"stats_window_ticks"`
	PerfWindow       int    `yaml:"perf_window"`
	OutputDir        string `yaml:"output_dir"`
	Store            string `yaml:"store"` // memory or sqlite
	StorePath        string `yaml:"store_path"`
	Snapshot         bool   `yaml:"snapshot"`
}

// ObserverConfig holds the websocket observer parameters.
type ObserverConfig struct {
	Addr        string `yaml:"addr"`
	FrameStride int    `yaml:"frame_stride"`
}

// AgentSpec declares an agent of the initial population.
type AgentSpec struct {
	Morphology string      `yaml:"morphology"`
	Name       string      `yaml:"name"`
	Age        string      `yaml:"age"`
	Policy     string      `yaml:"policy"` // zero, random, weights .json or empty for runner-drawn actions
	Position   *[2]float64 `yaml:"position,omitempty"`
	Hidden     bool        `yaml:"hidden"`
}

// RunnerConfig holds episode runner parameters.
type RunnerConfig struct {
	Episodes int         `yaml:"episodes"`
	MaxTicks int         `yaml:"max_ticks"`
	Seed     int64       `yaml:"seed"`
	Workers  int         `yaml:"workers"`
	Agents   []AgentSpec `yaml:"agents"`
}

// DerivedConfig holds values computed from the loaded configuration, in world units.
type DerivedConfig struct {
	DT            float64
	TerrainStep   float64
	TerrainHeight float64
	LidarRange    float64
	CeilingOffset float64
	CeilingClip   float64
	WaterClip     float64
	GroundLimit   float64
	CeilingLimit  float64
	TrackEndX     float64
	StartX        float64 // default spawn x at the start-pad mid-point
}

// Global config instance
var global *Config

// Init loads configuration from the given path and sets it as the global config.
// If path is empty, only embedded defaults are used.
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Defaults returns a fresh copy of the embedded defaults.
func Defaults() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate checks the configuration for values that would make generation impossible.
func (c *Config) Validate() error {
	if c.Physics.FPS <= 0 {
		return fmt.Errorf("physics.fps must be positive, got %d", c.Physics.FPS)
	}
	if c.Physics.Scale <= 0 {
		return fmt.Errorf("physics.scale must be positive, got %v", c.Physics.Scale)
	}
	if c.Terrain.Length <= 0 || c.Terrain.Startpad <= 0 {
		return fmt.Errorf("terrain.length and terrain.startpad must be positive")
	}
	if c.Terrain.End >= c.Terrain.Length+c.Terrain.Startpad {
		return fmt.Errorf("terrain.end %d leaves no track", c.Terrain.End)
	}
	if c.Terrain.Grass <= 0 {
		return fmt.Errorf("terrain.grass must be positive, got %d", c.Terrain.Grass)
	}
	if c.Terrain.Smoothing <= 1 {
		return fmt.Errorf("terrain.smoothing must be greater than 1, got %v", c.Terrain.Smoothing)
	}
	switch c.Terrain.Mode {
	case "procedural", "latent", "drawn":
	default:
		return fmt.Errorf("unknown terrain.mode %q", c.Terrain.Mode)
	}
	if c.Lidar.Count <= 0 {
		return fmt.Errorf("lidar.count must be positive, got %d", c.Lidar.Count)
	}

	ranges := []struct {
		name string
		r    Range
	}{
		{"ground_roughness", c.Terrain.Obstacles.GroundRoughness},
		{"pit_gap", c.Terrain.Obstacles.PitGap},
		{"stump_width", c.Terrain.Obstacles.StumpWidth},
		{"stump_height", c.Terrain.Obstacles.StumpHeight},
		{"stair_height", c.Terrain.Obstacles.StairHeight},
		{"stair_width", c.Terrain.Obstacles.StairWidth},
		{"stair_steps", c.Terrain.Obstacles.StairSteps},
	}
	for _, rr := range ranges {
		if err := rr.r.Validate(); err != nil {
			return fmt.Errorf("terrain.obstacles.%s: %w", rr.name, err)
		}
	}
	// Zero-width obstacles would leave the generator's column counter negative
	for _, rr := range []struct {
		name string
		r    Range
	}{ranges[2], ranges[5], ranges[6]} {
		if rr.r.Min() < 1 {
			return fmt.Errorf("terrain.obstacles.%s: %w: min must be at least 1", rr.name, ErrInvalidRange)
		}
	}
	return nil
}

// Validate reports ErrInvalidRange for inverted or negative ranges.
func (r Range) Validate() error {
	if r[0] < 0 || r[1] < 0 {
		return fmt.Errorf("%w: negative bound in [%v, %v]", ErrInvalidRange, r[0], r[1])
	}
	if r[0] > r[1] {
		return fmt.Errorf("%w: min %v > max %v", ErrInvalidRange, r[0], r[1])
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	scale := c.Physics.Scale
	smoothing := c.Terrain.Smoothing

	c.Derived.DT = 1.0 / float64(c.Physics.FPS)
	c.Derived.TerrainStep = c.Terrain.StepPx / scale
	c.Derived.TerrainHeight = c.Physics.ViewportH / scale / 4
	c.Derived.LidarRange = c.Lidar.RangePx / scale

	// Vertical terrain parameters are expressed in generator units and shrink with smoothing
	c.Derived.CeilingOffset = c.Terrain.CeilingOffset / smoothing
	c.Derived.CeilingClip = c.Terrain.CeilingClipOffset / smoothing
	c.Derived.WaterClip = c.Terrain.WaterClip / smoothing
	c.Derived.CeilingLimit = 1000 / smoothing
	c.Derived.GroundLimit = -1000 / float64(c.Terrain.Startpad)

	c.Derived.TrackEndX = float64(c.Terrain.Length+c.Terrain.Startpad-c.Terrain.End) * c.Derived.TerrainStep
	c.Derived.StartX = c.Derived.TerrainStep * float64(c.Terrain.Startpad) / 2

	if c.Morphologies == nil {
		c.Morphologies = map[string]MorphologyConfig{}
	}
}

// Morphology returns the tuning for the named morphology, or a zero value.
func (c *Config) Morphology(name string) MorphologyConfig {
	return c.Morphologies[name]
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
