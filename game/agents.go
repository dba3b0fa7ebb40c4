package game

import (
	"fmt"
	"slices"

	"github.com/mlange-42/ark/ecs"

	"github.com/accelagent/parkour/components"
	"github.com/accelagent/parkour/morphology"
	"github.com/accelagent/parkour/physics"
	"github.com/accelagent/parkour/systems"
)

// PolicyRef names the policy driving an agent and its training age.
type PolicyRef struct {
	Name string
	Age  string
}

// BodyPose is the transform of one body of an embodiment.
type BodyPose struct {
	Name     string       `json:"name"`
	Position physics.Vec2 `json:"position"`
	Angle    float64      `json:"angle"`
}

// AgentView is a read-only copy of an agent record.
type AgentView struct {
	ID         uint64
	Name       string
	Age        string
	Morphology morphology.Kind
	Category   morphology.Category
	Visible    bool
	InitPos    *physics.Vec2

	Position physics.Vec2
	Angle    float64
	Bodies   []BodyPose
	Lidars   []systems.LidarReading
	Actions  []float64

	Dead         bool
	UnderWater   int
	OutsideWater int
	Return       float64
	Ticks        int
	Done         bool
	Success      bool

	// Fields holds the values named by components.AgentFieldDescriptors.
	Fields map[string]float64
}

// CreateAgent registers an agent. Its embodiment is built at the next Reset,
// or right away by AddAgent. Invisible agents keep their id and order but are
// left out of the simulation.
func (e *Engine) CreateAgent(kind morphology.Kind, policy PolicyRef, initPos *physics.Vec2, visible bool) (uint64, error) {
	body, err := morphology.New(kind, e.cfg.Morphology(kind.String()))
	if err != nil {
		return 0, err
	}
	desc := body.Descriptor()
	profile, err := systems.ParseLidarProfile(desc.LidarProfile)
	if err != nil {
		return 0, fmt.Errorf("agent %q: %w", policy.Name, err)
	}

	e.nextID++
	id := e.nextID
	var pos *physics.Vec2
	if initPos != nil {
		p := *initPos
		pos = &p
	}

	ident := components.Identity{ID: id, Name: policy.Name, Age: policy.Age}
	emb := components.Embodiment{Body: body, Descriptor: desc}
	sensing := components.Sensing{Profile: profile}
	ctrl := components.Control{Actions: make([]float64, desc.ActionSize)}
	surv := components.Survival{}
	ep := components.Episode{}
	pl := components.Placement{InitPos: pos, Visible: visible}

	ent := e.agentMapper.NewEntity(&ident, &emb, &sensing, &ctrl, &surv, &ep, &pl)
	e.order = append(e.order, ent)
	e.byID[id] = ent

	e.logger.Debug("agent created", "agent", policy.Name, "id", id, "morphology", kind.String(), "visible", visible)
	return id, nil
}

// AddAgent creates a visible agent, places it at pos (or the start pad when
// pos is nil), initializes it and runs one full step.
func (e *Engine) AddAgent(kind morphology.Kind, policy PolicyRef, pos *physics.Vec2) (uint64, []StepResult, error) {
	if !e.ready {
		return 0, nil, ErrNotReset
	}
	id, err := e.CreateAgent(kind, policy, pos, true)
	if err != nil {
		return 0, nil, err
	}
	ent := e.byID[id]
	e.spawnAgent(ent)
	e.initAgent(ent)
	results, err := e.Step()
	return id, results, err
}

// SetAgentPosition rebuilds an agent at x. Walkers snap to the ground and
// swimmers are clamped between ground and ceiling around y. The position is
// kept as the agent's spawn point for later resets.
func (e *Engine) SetAgentPosition(id uint64, x, y float64) error {
	if !e.ready {
		return ErrNotReset
	}
	ent, err := e.lookup(id)
	if err != nil {
		return err
	}
	_, emb, sensing, _, _, _, pl := e.agentMapper.Get(ent)
	pl.InitPos = &physics.Vec2{X: x, Y: y}
	if !pl.Visible {
		return nil
	}
	emb.Body.Destroy(e.world)
	px, py := e.spawnPosition(emb.Descriptor, pl.InitPos)
	e.buildAgent(ent, px, py)
	if len(sensing.Lidars) != e.cfg.Lidar.Count {
		sensing.Lidars = make([]systems.LidarReading, e.cfg.Lidar.Count)
	}
	e.sense(ent)
	return nil
}

// SetVisible moves an agent in or out of the simulated set. Showing an agent
// on a live engine builds and initializes it in place; hiding destroys its
// embodiment.
func (e *Engine) SetVisible(id uint64, visible bool) error {
	ent, err := e.lookup(id)
	if err != nil {
		return err
	}
	_, emb, _, _, _, _, pl := e.agentMapper.Get(ent)
	if pl.Visible == visible {
		return nil
	}
	pl.Visible = visible
	if !e.ready {
		return nil
	}
	if visible {
		e.spawnAgent(ent)
		e.initAgent(ent)
		return nil
	}
	emb.Body.Destroy(e.world)
	return nil
}

// DeleteAgents removes every agent whose name is listed. With auxOnly the
// first match of the call is kept. Remaining agents keep their ids and order.
// It returns the number of removed agents.
func (e *Engine) DeleteAgents(names []string, auxOnly bool) int {
	found, removed := 0, 0
	kept := e.order[:0]
	var doomed []ecs.Entity
	for _, ent := range e.order {
		ident, _, _, _, _, _, _ := e.agentMapper.Get(ent)
		match := slices.Contains(names, ident.Name)
		if match {
			found++
		}
		if match && !(auxOnly && found == 1) {
			doomed = append(doomed, ent)
			continue
		}
		kept = append(kept, ent)
	}
	for _, ent := range doomed {
		e.removeAgent(ent)
		removed++
	}
	clear(e.order[len(kept):])
	e.order = kept
	return removed
}

// DeleteAllAgents destroys every embodiment and drops every agent record.
func (e *Engine) DeleteAllAgents() {
	for _, ent := range e.order {
		e.removeAgent(ent)
	}
	e.order = e.order[:0]
}

// removeAgent destroys the embodiment before the record is dropped.
func (e *Engine) removeAgent(ent ecs.Entity) {
	ident, emb, _, _, _, _, _ := e.agentMapper.Get(ent)
	if emb.Body.Built() {
		emb.Body.Destroy(e.world)
	}
	delete(e.byID, ident.ID)
	e.logger.Debug("agent removed", "agent", ident.Name, "id", ident.ID)
	e.ecs.RemoveEntity(ent)
}

// ActionSize returns the actuator count of an agent.
func (e *Engine) ActionSize(id uint64) (int, error) {
	ent, err := e.lookup(id)
	if err != nil {
		return 0, err
	}
	return e.embodiment(ent).Descriptor.ActionSize, nil
}

// ObservationSize returns the length of the observations an agent receives.
func (e *Engine) ObservationSize(id uint64) (int, error) {
	ent, err := e.lookup(id)
	if err != nil {
		return 0, err
	}
	d := e.embodiment(ent).Descriptor
	return systems.ObservationSize(d.StateSize, d.Sensors, e.cfg.Lidar.Count, e.cfg.Reward.IncludeSurface), nil
}

// Population reports how many agents are tracked and how many are simulated.
func (e *Engine) Population() (tracked, visible int) {
	query := e.placementFilter.Query()
	for query.Next() {
		_, pl := query.Get()
		tracked++
		if pl.Visible {
			visible++
		}
	}
	return tracked, visible
}

// Agents returns views of every tracked agent in internal order.
func (e *Engine) Agents() []AgentView {
	views := make([]AgentView, 0, len(e.order))
	for _, ent := range e.order {
		views = append(views, e.view(ent))
	}
	return views
}

// Agent returns the view of a single agent.
func (e *Engine) Agent(id uint64) (AgentView, error) {
	ent, err := e.lookup(id)
	if err != nil {
		return AgentView{}, err
	}
	return e.view(ent), nil
}

var agentFields = components.AgentFieldDescriptors()

func (e *Engine) view(ent ecs.Entity) AgentView {
	ident, emb, sensing, ctrl, surv, ep, pl := e.agentMapper.Get(ent)
	v := AgentView{
		ID:           ident.ID,
		Name:         ident.Name,
		Age:          ident.Age,
		Morphology:   emb.Descriptor.Kind,
		Category:     emb.Descriptor.Category,
		Visible:      pl.Visible,
		Lidars:       slices.Clone(sensing.Lidars),
		Actions:      slices.Clone(ctrl.Actions),
		Dead:         surv.Dead,
		UnderWater:   surv.UnderWater,
		OutsideWater: surv.OutsideWater,
		Return:       ep.Return,
		Ticks:        ep.Ticks,
		Done:         ep.Done,
		Success:      ep.Success,
	}
	if pl.InitPos != nil {
		p := *pl.InitPos
		v.InitPos = &p
	}
	v.Fields = make(map[string]float64, len(agentFields))
	for _, f := range agentFields {
		v.Fields[f.ID] = components.AgentValue(emb, ep, surv, f.ID)
	}
	if emb.Body != nil && emb.Body.Built() {
		ref := emb.Body.Reference()
		v.Position = ref.Position()
		v.Angle = ref.Angle()
		for _, b := range emb.Body.Parts() {
			v.Bodies = append(v.Bodies, pose(b))
		}
		for _, b := range emb.Body.Sensors() {
			v.Bodies = append(v.Bodies, pose(b))
		}
	}
	return v
}

func pose(b physics.Body) BodyPose {
	var name string
	if ud := b.UserData(); ud != nil {
		name = ud.Name
	}
	return BodyPose{Name: name, Position: b.Position(), Angle: b.Angle()}
}

// spawnAgent builds an agent at its remembered position or on the start pad.
func (e *Engine) spawnAgent(ent ecs.Entity) {
	_, emb, _, _, _, _, pl := e.agentMapper.Get(ent)
	x, y := e.spawnPosition(emb.Descriptor, pl.InitPos)
	e.buildAgent(ent, x, y)
}

// spawnPosition applies the placement rule of the agent's category.
func (e *Engine) spawnPosition(desc morphology.Descriptor, pos *physics.Vec2) (float64, float64) {
	d := e.cfg.Derived
	if pos == nil {
		y := d.TerrainHeight + desc.CenterHeight
		if desc.Category == morphology.Swimmer {
			y = d.TerrainHeight + 4*desc.CenterHeight
		}
		return d.StartX, y
	}

	x, y := pos.X, pos.Y
	switch desc.Category {
	case morphology.Walker:
		if g, ok := systems.FindBestY(x, e.terrain.Ground, systems.Unbounded); ok {
			y = g + desc.CenterHeight
		}
	case morphology.Swimmer:
		y = systems.SpawnHeight(x, y, 4*desc.CenterHeight, e.terrain.Ground, e.terrain.Ceiling, desc.Width)
	}
	return x, y
}

// buildAgent draws the embodiment at (x, y) with motionless actions. Climbers
// are then hung from the ceiling.
func (e *Engine) buildAgent(ent ecs.Entity, x, y float64) {
	ident, emb, _, ctrl, _, _, _ := e.agentMapper.Get(ent)
	emb.Body.Build(e.world, ident.ID, x, y)
	ctrl.Actions = make([]float64, emb.Body.ActionSize())
	if emb.Descriptor.Category == morphology.Climber {
		e.hangClimber(emb.Body, ctrl.Actions)
	}
}

// hangClimber sets every grasp action, teleports the sensors onto the ceiling
// from the trailing end, and shifts the rest of the body by the offset
// measured at the first sensor so it moves rigidly.
func (e *Engine) hangClimber(body morphology.Embodiment, actions []float64) {
	sensors := body.Sensors()
	var yDiff float64
	measured := false
	for i := range sensors {
		actions[len(actions)-i-1] = 1
		s := sensors[len(sensors)-i-1]
		p := s.Position()
		cy, ok := systems.FindBestY(p.X, e.terrain.Ceiling, systems.Unbounded)
		if !ok {
			continue
		}
		if !measured {
			yDiff = cy - p.Y
			measured = true
		}
		s.SetTransform(physics.V(p.X, cy), s.Angle())
	}
	for _, part := range body.Parts() {
		p := part.Position()
		part.SetTransform(physics.V(p.X, p.Y+yDiff), part.Angle())
	}
}

// initAgent prepares a freshly built agent for a new episode. Grasp actions
// set by placement are kept.
func (e *Engine) initAgent(ent ecs.Entity) {
	_, _, sensing, _, surv, ep, _ := e.agentMapper.Get(ent)
	sensing.Lidars = make([]systems.LidarReading, e.cfg.Lidar.Count)
	surv.Reset()
	*ep = components.Episode{}
}
