package game

import (
	"fmt"

	"github.com/accelagent/parkour/config"
	"github.com/accelagent/parkour/morphology"
	"github.com/accelagent/parkour/neural"
	"github.com/accelagent/parkour/physics"
	"github.com/accelagent/parkour/systems"
)

// HeightFunc returns the latent terrain-height function named by
// terrain.generator, seeded from runner.seed.
func HeightFunc(cfg *config.Config) (systems.HeightFunc, error) {
	seed := cfg.Runner.Seed
	switch cfg.Terrain.Generator {
	case "", "cppn":
		return neural.NewCPPN(uint64(seed), neural.DefaultCPPNConfig(cfg.Terrain.LatentDim)).Height, nil
	case "noise":
		return neural.NewNoiseTerrain(seed).Height, nil
	default:
		return nil, fmt.Errorf("unknown terrain.generator %q", cfg.Terrain.Generator)
	}
}

// Populate creates one agent per spec and attaches the policy the spec names.
// It returns the new agent ids in spec order.
func (g *Game) Populate(specs []config.AgentSpec) ([]uint64, error) {
	ids := make([]uint64, 0, len(specs))
	for i, spec := range specs {
		kind, err := morphology.ParseKind(spec.Morphology)
		if err != nil {
			return ids, fmt.Errorf("agent %d: %w", i, err)
		}
		name := spec.Name
		if name == "" {
			name = spec.Policy
		}
		var pos *physics.Vec2
		if spec.Position != nil {
			p := physics.V(spec.Position[0], spec.Position[1])
			pos = &p
		}

		id, err := g.engine.CreateAgent(kind, PolicyRef{Name: name, Age: spec.Age}, pos, !spec.Hidden)
		if err != nil {
			return ids, err
		}
		obsSize, _ := g.engine.ObservationSize(id)
		actionSize, _ := g.engine.ActionSize(id)
		p, err := neural.NewPolicy(spec.Policy, obsSize, actionSize, uint64(g.cfg.Runner.Seed)+id)
		if err != nil {
			return ids, fmt.Errorf("agent %q: %w", name, err)
		}
		if p != nil {
			g.policies[id] = p
		}
		ids = append(ids, id)
	}
	return ids, nil
}
