package game

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"

	"github.com/accelagent/parkour/morphology"
	"github.com/accelagent/parkour/systems"
	"github.com/accelagent/parkour/telemetry"
)

// StepInfo carries per-agent extras of a step.
type StepInfo struct {
	Success bool `json:"success"`
}

// StepResult is one agent's outcome of a tick.
type StepResult struct {
	AgentID     uint64    `json:"agent_id"`
	Name        string    `json:"name"`
	Observation []float64 `json:"observation"`
	Reward      float64   `json:"reward"`
	Done        bool      `json:"done"`
	Info        StepInfo  `json:"info"`
}

// Reset tears down terrain and embodiments, generates a new terrain, places
// every visible agent and returns the results of a first step. On error no
// body is left in the world.
func (e *Engine) Reset() ([]StepResult, error) {
	e.ready = false
	e.destroyWorld()
	e.world.SetContactListener(contactListener{})
	e.tick = 0

	if err := e.buildTerrain(); err != nil {
		e.destroyWorld()
		return nil, err
	}
	for _, ent := range e.order {
		if _, _, _, _, _, _, pl := e.agentMapper.Get(ent); pl.Visible {
			e.spawnAgent(ent)
		}
	}
	for _, ent := range e.order {
		if e.visible(ent) {
			e.initAgent(ent)
		}
	}
	e.ready = true

	e.logger.Debug("engine reset", "mode", e.cfg.Terrain.Mode, "agents", len(e.order), "water_y", e.terrain.WaterY)
	return e.Step()
}

// SetActions stores the action vector applied on the next step. Actions of a
// dead agent are zeroed.
func (e *Engine) SetActions(id uint64, actions []float64) error {
	ent, err := e.lookup(id)
	if err != nil {
		return err
	}
	_, emb, _, ctrl, surv, _, _ := e.agentMapper.Get(ent)
	if len(actions) != emb.Body.ActionSize() {
		return fmt.Errorf("%w: agent %d expects %d, got %d", ErrActionSize, id, emb.Body.ActionSize(), len(actions))
	}
	if len(ctrl.Actions) != len(actions) {
		ctrl.Actions = make([]float64, len(actions))
	}
	if surv.Dead {
		clear(ctrl.Actions)
		return nil
	}
	copy(ctrl.Actions, actions)
	return nil
}

// Step advances the world one tick. All actions are applied before the single
// world step and every agent is sensed and scored after it. Results follow
// the internal agent order and skip invisible agents.
func (e *Engine) Step() ([]StepResult, error) {
	if !e.ready {
		return nil, ErrNotReset
	}
	cfg := e.cfg
	waterY := e.terrain.WaterY
	gravity := e.world.Gravity()

	e.phase(telemetry.PhaseApply)
	for _, ent := range e.order {
		_, emb, _, ctrl, surv, _, pl := e.agentMapper.Get(ent)
		if !pl.Visible || !emb.Body.Built() {
			continue
		}
		d := emb.Descriptor
		if surv.CheckSurvival(d.UnderWaterLimit) {
			clear(ctrl.Actions)
		}
		emb.Body.ActivateMotors(ctrl.Actions)
		if d.Category == morphology.Climber {
			sensors := emb.Body.Sensors()
			systems.PrepareGrasps(e.world, sensors, ctrl.Actions[len(ctrl.Actions)-len(sensors):])
		}
		systems.ApplyWaterForces(emb.Body.Parts(), waterY, gravity, emb.Body.Reference().Angle())
	}

	e.phase(telemetry.PhaseWorldStep)
	e.world.Step(cfg.Derived.DT, cfg.Physics.VelocityIterations, cfg.Physics.PositionIterations)
	e.tick++

	e.phase(telemetry.PhaseSense)
	for _, ent := range e.order {
		_, emb, _, _, surv, _, pl := e.agentMapper.Get(ent)
		if !pl.Visible || !emb.Body.Built() {
			continue
		}
		if emb.Descriptor.Category == morphology.Climber {
			systems.AttachGrasps(e.world, emb.Body.Sensors())
		}
		e.sense(ent)
		surv.UpdateSubmersion(emb.Body.Reference().Position().Y, waterY)
	}

	e.phase(telemetry.PhaseScore)
	results := make([]StepResult, 0, len(e.order))
	for _, ent := range e.order {
		if !e.visible(ent) {
			continue
		}
		results = append(results, e.score(ent))
	}
	return results, nil
}

// sense recasts the agent's lidars from its reference body.
func (e *Engine) sense(ent ecs.Entity) {
	ident, emb, sensing, _, _, _, _ := e.agentMapper.Get(ent)
	origin := emb.Body.Reference().Position()
	systems.CastLidars(e.world, origin, sensing.Profile, e.cfg.Derived.LidarRange, ident.ID, sensing.Lidars)
}

// score builds the observation and reward of one agent and updates its
// episode record.
func (e *Engine) score(ent ecs.Entity) StepResult {
	ident, emb, sensing, ctrl, _, ep, _ := e.agentMapper.Get(ent)
	ref := emb.Body.Reference()
	d := emb.Descriptor

	obs := systems.BuildObservation(e.cfg, systems.ObservationInput{
		Angle:           ref.Angle(),
		AngularVelocity: ref.AngularVelocity(),
		Velocity:        ref.LinearVelocity(),
		Motors:          emb.Body.MotorsState(),
		Sensors:         emb.Body.SensorsState(),
		Lidars:          sensing.Lidars,
	})

	for _, part := range emb.Body.Parts() {
		if ud := part.UserData(); ud != nil && ud.Critical {
			ep.Critical = true
		}
	}

	s := systems.ScoreStep(e.cfg, systems.RewardInput{
		X:                 ref.Position().X,
		HeadAngle:         ref.Angle(),
		PrevShaping:       ep.PrevShaping,
		HasPrev:           ep.HasPrev,
		Actions:           ctrl.Actions,
		Critical:          ep.Critical,
		TorquePenalty:     d.TorquePenalty,
		PenalizeHeadAngle: d.PenalizeHeadAngle,
	})
	ep.PrevShaping = s.Shaping
	ep.HasPrev = true
	ep.Return += s.Reward
	ep.Ticks++
	ep.Done = ep.Done || s.Done
	ep.Success = systems.Succeeded(e.cfg, ep.Return)

	return StepResult{
		AgentID:     ident.ID,
		Name:        ident.Name,
		Observation: obs,
		Reward:      s.Reward,
		Done:        s.Done,
		Info:        StepInfo{Success: ep.Success},
	}
}

func (e *Engine) visible(ent ecs.Entity) bool {
	_, emb, _, _, _, _, pl := e.agentMapper.Get(ent)
	return pl.Visible && emb.Body.Built()
}
