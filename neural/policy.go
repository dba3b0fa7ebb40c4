// Package neural provides agent policies and latent terrain-height functions.
package neural

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// ErrShape is returned when an observation or action vector does not match
// the network dimensions.
var ErrShape = errors.New("vector shape mismatch")

// Policy maps an observation to an action vector in [-1, 1]. Act writes into
// actions, which has the embodiment's actuator count. A policy instance
// serves one agent; Act may run concurrently with other instances.
type Policy interface {
	Act(obs, actions []float64) error
}

// RandomPolicy draws every action uniformly from [-1, 1].
type RandomPolicy struct {
	rng *rand.Rand
}

// NewRandomPolicy creates a random policy with its own generator.
func NewRandomPolicy(seed uint64) *RandomPolicy {
	return &RandomPolicy{rng: rand.New(rand.NewPCG(seed, seed^0xda3e39cb94b95bdb))}
}

func (p *RandomPolicy) Act(_ []float64, actions []float64) error {
	RandomActions(p.rng, actions)
	return nil
}

// RandomActions fills actions with uniform draws from [-1, 1].
func RandomActions(rng *rand.Rand, actions []float64) {
	for i := range actions {
		actions[i] = rng.Float64()*2 - 1
	}
}

// ZeroPolicy keeps every motor idle.
type ZeroPolicy struct{}

func (ZeroPolicy) Act(_ []float64, actions []float64) error {
	clear(actions)
	return nil
}

// NewPolicy builds a policy from a spec string: "zero", "random" or a path
// to FFNN weights ending in .json. The empty spec returns nil, meaning the
// runner picks random actions itself.
func NewPolicy(spec string, obsSize, actionSize int, seed uint64) (Policy, error) {
	switch {
	case spec == "":
		return nil, nil
	case spec == "zero":
		return ZeroPolicy{}, nil
	case spec == "random":
		return NewRandomPolicy(seed), nil
	case strings.HasSuffix(spec, ".json"):
		nn, err := LoadFFNN(spec)
		if err != nil {
			return nil, err
		}
		in, _, out := nn.Sizes()
		if in != obsSize || out != actionSize {
			return nil, fmt.Errorf("%w: %s is %dx%d, agent needs %dx%d", ErrShape, spec, in, out, obsSize, actionSize)
		}
		return nn, nil
	}
	return nil, fmt.Errorf("unknown policy %q", spec)
}
