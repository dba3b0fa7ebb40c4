// Package morphology defines agent body plans and their physics embodiments.
package morphology

import (
	"errors"
	"fmt"

	"github.com/accelagent/parkour/config"
	"github.com/accelagent/parkour/physics"
)

// ErrUnknownMorphology is returned for morphology names with no embodiment.
var ErrUnknownMorphology = errors.New("unknown morphology")

// Kind is the tagged morphology variant.
type Kind uint8

const (
	Bipedal Kind = iota
	Spider
	Chimpanzee
	Fish
)

var kindNames = [...]string{"bipedal", "spider", "chimpanzee", "fish"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind maps a morphology name to its Kind.
func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMorphology, name)
}

// Category decides how an agent is placed on the terrain.
type Category uint8

const (
	Walker Category = iota
	Climber
	Swimmer
)

func (c Category) String() string {
	switch c {
	case Walker:
		return "walker"
	case Climber:
		return "climber"
	case Swimmer:
		return "swimmer"
	default:
		return "unknown"
	}
}

// Descriptor holds everything the environment needs to know about a morphology.
// It is selected once at agent creation.
type Descriptor struct {
	Kind              Kind
	Category          Category
	ActionSize        int
	StateSize         int // length of MotorsState
	Sensors           int // grasping sensors, trailing the motor actions
	LidarProfile      string
	CenterHeight      float64
	Width             float64
	UnderWaterLimit   int // 0 means unlimited
	TorquePenalty     float64
	PenalizeHeadAngle bool
	MotorTorque       float64
	Density           float64
}

// Embodiment is the physics representation of an agent.
type Embodiment interface {
	Descriptor() Descriptor
	// Build creates bodies and joints with the reference body centered at (x, y).
	Build(world physics.World, agentID uint64, x, y float64)
	// Destroy removes every body and joint. Safe to call when not built.
	Destroy(world physics.World)
	ActionSize() int
	ActivateMotors(actions []float64)
	MotorsState() []float64
	// SensorsState reports one value per grasping sensor (1 while holding). Empty for non-climbers.
	SensorsState() []float64
	Reference() physics.Body
	Parts() []physics.Body
	Sensors() []physics.Body
	Built() bool
}

// New creates an unbuilt embodiment of the given kind tuned by cfg.
func New(kind Kind, tuning config.MorphologyConfig) (Embodiment, error) {
	d, err := Describe(kind, tuning)
	if err != nil {
		return nil, err
	}
	switch kind {
	case Bipedal:
		return newBipedal(d), nil
	case Spider:
		return newSpider(d), nil
	case Chimpanzee:
		return newChimpanzee(d), nil
	case Fish:
		return newFish(d), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownMorphology, kind)
}

// Describe returns the descriptor of a kind with tuning applied.
func Describe(kind Kind, tuning config.MorphologyConfig) (Descriptor, error) {
	var d Descriptor
	switch kind {
	case Bipedal:
		d = Descriptor{Category: Walker, ActionSize: 4, StateSize: 10, LidarProfile: "down",
			CenterHeight: bipedalCenterHeight, Width: bipedalWidth}
	case Spider:
		d = Descriptor{Category: Walker, ActionSize: 8, StateSize: 20, LidarProfile: "down",
			CenterHeight: spiderCenterHeight, Width: spiderWidth}
	case Chimpanzee:
		d = Descriptor{Category: Climber, ActionSize: chimpMotors + chimpSensors, StateSize: 2 * chimpMotors,
			Sensors: chimpSensors, LidarProfile: "up",
			CenterHeight: chimpCenterHeight, Width: chimpWidth}
	case Fish:
		d = Descriptor{Category: Swimmer, ActionSize: 2, StateSize: 4, LidarProfile: "full",
			CenterHeight: fishCenterHeight, Width: fishWidth}
	default:
		return Descriptor{}, fmt.Errorf("%w: %v", ErrUnknownMorphology, kind)
	}
	d.Kind = kind
	d.UnderWaterLimit = tuning.UnderWaterLimit
	d.TorquePenalty = tuning.TorquePenalty
	d.PenalizeHeadAngle = tuning.PenalizeHeadAngle
	d.MotorTorque = tuning.MotorTorque
	if d.MotorTorque == 0 {
		d.MotorTorque = 80
	}
	d.Density = tuning.Density
	if d.Density == 0 {
		d.Density = 1
	}
	return d, nil
}
