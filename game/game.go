package game

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/accelagent/parkour/config"
	"github.com/accelagent/parkour/morphology"
	"github.com/accelagent/parkour/neural"
	"github.com/accelagent/parkour/physics"
	"github.com/accelagent/parkour/systems"
	"github.com/accelagent/parkour/telemetry"
)

// noReturn is the floor of the overall max return when no agent is tracked.
const noReturn = -9999999

// MaxReturnKey is the Regrets entry holding the overall best return.
const MaxReturnKey = "max_return"

// FrameSink receives the simulation state for external display.
type FrameSink interface {
	PublishLevel(episode int, level systems.LevelDescription)
	PublishFrame(tick int, agents []AgentView, assets []AssetView)
}

// GameOptions configures a Game beyond the global configuration.
type GameOptions struct {
	Logger *slog.Logger
	// Output and Store are optional episode sinks.
	Output *telemetry.OutputManager
	Store  telemetry.EpisodeStore
	Sink   FrameSink
	RunID  string
	// Workers bounds policy inference goroutines; 0 uses GOMAXPROCS.
	Workers int
	// Rand draws actions for agents without a policy.
	Rand *rand.Rand
}

// AgentReturn is the accumulated reward of one agent.
type AgentReturn struct {
	AgentID uint64  `json:"agent_id"`
	Name    string  `json:"name"`
	Return  float64 `json:"return"`
}

// Game drives an Engine episode by episode. It collects actions from the
// agents' policies, steps the engine and keeps the per-tick history that
// returns and regrets are computed from.
type Game struct {
	cfg    *config.Config
	engine *Engine
	logger *slog.Logger
	rng    *rand.Rand

	policies map[uint64]neural.Policy
	history  [][]StepResult
	pool     *policyPool
	jobs     []policyJob
	perf     *telemetry.PerfCollector
	times    *PolicyTimes

	collector *telemetry.Collector
	lifetimes *telemetry.LifetimeTracker
	bookmarks *telemetry.BookmarkDetector
	output    *telemetry.OutputManager
	store     telemetry.EpisodeStore
	sink      FrameSink

	runID      string
	episode    int
	totalTicks int
	finished   bool
}

// NewGame wraps engine in a runner. The engine's perf collector, if any, is
// shared so the policy phase lands in the same tick breakdown.
func NewGame(engine *Engine, opts GameOptions) *Game {
	cfg := engine.Config()
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Rand == nil {
		seed := uint64(cfg.Runner.Seed)
		opts.Rand = rand.New(rand.NewPCG(seed^0xa0761d6478bd642f, seed))
	}
	if opts.RunID == "" {
		opts.RunID = telemetry.NewRunID()
	}
	return &Game{
		cfg:       cfg,
		engine:    engine,
		logger:    opts.Logger,
		rng:       opts.Rand,
		policies:  make(map[uint64]neural.Policy),
		pool:      newPolicyPool(opts.Workers),
		perf:      engine.perf,
		times:     NewPolicyTimes(cfg.Telemetry.PerfWindow),
		collector: telemetry.NewCollector(cfg.Telemetry.StatsWindowTicks, cfg.Derived.DT),
		lifetimes: telemetry.NewLifetimeTracker(),
		bookmarks: telemetry.NewBookmarkDetector(10),
		output:    opts.Output,
		store:     opts.Store,
		sink:      opts.Sink,
		runID:     opts.RunID,
		episode:   -1,
	}
}

// PolicyTimes returns the per-policy inference timings.
func (g *Game) PolicyTimes() *PolicyTimes { return g.times }

// Engine returns the wrapped engine.
func (g *Game) Engine() *Engine { return g.engine }

// RunID returns the identifier written with every episode record.
func (g *Game) RunID() string { return g.runID }

// Episode returns the index of the current episode, -1 before the first reset.
func (g *Game) Episode() int { return g.episode }

// History returns the step results recorded since the last reset, one row per tick.
func (g *Game) History() [][]StepResult { return g.history }

// SetPolicy attaches p to an agent. A nil policy makes the agent act
// randomly. Policies run concurrently, so one instance must not be shared
// between agents.
func (g *Game) SetPolicy(id uint64, p neural.Policy) error {
	if _, err := g.engine.Agent(id); err != nil {
		return err
	}
	if p == nil {
		delete(g.policies, id)
		return nil
	}
	g.policies[id] = p
	return nil
}

// CreateAgent registers an agent driven by p. It joins the simulation at the
// next Reset.
func (g *Game) CreateAgent(kind morphology.Kind, ref PolicyRef, p neural.Policy, pos *physics.Vec2, visible bool) (uint64, error) {
	id, err := g.engine.CreateAgent(kind, ref, pos, visible)
	if err != nil {
		return 0, err
	}
	if p != nil {
		g.policies[id] = p
	}
	return id, nil
}

// AddAgent creates, places and initializes an agent in the running episode.
// The step it triggers is appended to the history.
func (g *Game) AddAgent(kind morphology.Kind, ref PolicyRef, p neural.Policy, pos *physics.Vec2) (uint64, error) {
	id, results, err := g.engine.AddAgent(kind, ref, pos)
	if err != nil {
		return 0, err
	}
	if p != nil {
		g.policies[id] = p
	}
	if v, err := g.engine.Agent(id); err == nil {
		g.register(v)
	}
	g.history = append(g.history, results)
	g.record(results)
	g.logger.Info("agent added", "agent", ref.Name, "id", id, "morphology", kind.String())
	return id, nil
}

// DeleteAgents removes the named agents and their policies. See
// Engine.DeleteAgents for auxOnly.
func (g *Game) DeleteAgents(names []string, auxOnly bool) int {
	before := g.agentIDs()
	n := g.engine.DeleteAgents(names, auxOnly)
	after := g.agentIDs()
	for _, id := range before {
		if slices.Contains(after, id) {
			continue
		}
		delete(g.policies, id)
		if st := g.lifetimes.Remove(id); st != nil {
			g.collector.Record(telemetry.NewRemovedEvent(g.totalTicks, id, st.Name))
		}
	}
	return n
}

func (g *Game) agentIDs() []uint64 {
	views := g.engine.Agents()
	ids := make([]uint64, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}
	return ids
}

// Reset starts a new episode: the engine is reset, the history restarts
// with the reset step and every simulated agent gets a fresh lifetime record.
func (g *Game) Reset() ([]StepResult, error) {
	results, err := g.engine.Reset()
	if err != nil {
		return nil, err
	}
	g.episode++
	g.finished = false
	g.history = [][]StepResult{results}
	g.lifetimes.Reset()
	g.bookmarks.NewEpisode()
	for _, v := range g.engine.Agents() {
		if v.Visible {
			g.register(v)
		}
	}
	g.record(results)

	if g.sink != nil {
		if desc, err := g.engine.LevelDescription(); err == nil {
			g.sink.PublishLevel(g.episode, desc)
		}
	}
	g.logger.Info("episode started", "episode", g.episode, "agents", len(results), "mode", g.cfg.Terrain.Mode)
	return results, nil
}

func (g *Game) register(v AgentView) {
	g.lifetimes.Register(v.ID, v.Name, v.Age, v.Morphology.String(), g.totalTicks)
	g.collector.Record(telemetry.NewSpawnEvent(g.totalTicks, v.ID, v.Name))
}

// Play runs one tick: every agent acts from its last observation, the engine
// steps and the results are recorded.
func (g *Game) Play() ([]StepResult, error) {
	if len(g.history) == 0 {
		return nil, ErrNotReset
	}
	if g.perf != nil {
		g.perf.StartTick()
	}

	g.engine.phase(telemetry.PhasePolicy)
	if err := g.act(g.history[len(g.history)-1]); err != nil {
		return nil, err
	}

	results, err := g.engine.Step()
	if err != nil {
		return nil, err
	}

	g.engine.phase(telemetry.PhaseTelemetry)
	g.history = append(g.history, results)
	g.totalTicks++
	g.record(results)
	g.flushTelemetry()
	if g.perf != nil {
		g.perf.EndTick()
	}

	if g.sink != nil && g.totalTicks%max(g.cfg.Observer.FrameStride, 1) == 0 {
		g.sink.PublishFrame(g.engine.Tick(), g.engine.Agents(), g.engine.Assets())
	}
	return results, nil
}

// act computes and applies the actions for every agent of last. Agents
// without a policy draw uniform random actions on the calling goroutine.
func (g *Game) act(last []StepResult) error {
	type pending struct {
		id      uint64
		actions []float64
	}
	all := make([]pending, 0, len(last))
	g.jobs = g.jobs[:0]
	for _, r := range last {
		size, err := g.engine.ActionSize(r.AgentID)
		if err != nil {
			// Deleted since the last step.
			continue
		}
		actions := make([]float64, size)
		all = append(all, pending{r.AgentID, actions})
		p := g.policies[r.AgentID]
		if p == nil {
			neural.RandomActions(g.rng, actions)
			continue
		}
		g.jobs = append(g.jobs, policyJob{agentID: r.AgentID, name: r.Name, policy: p, obs: r.Observation, actions: actions})
	}

	g.pool.run(g.jobs)
	for i := range g.jobs {
		j := &g.jobs[i]
		if j.err != nil {
			return fmt.Errorf("policy of agent %d: %w", j.agentID, j.err)
		}
		g.times.Record(j.name, j.elapsed)
	}
	for _, a := range all {
		if err := g.engine.SetActions(a.id, a.actions); err != nil {
			return err
		}
	}
	return nil
}

// record folds step results into lifetime records and the stats window.
func (g *Game) record(results []StepResult) {
	finished := true
	for _, r := range results {
		g.collector.RecordReward(r.Reward)
		v, err := g.engine.Agent(r.AgentID)
		if err != nil {
			continue
		}
		s := sample(v)
		for _, ev := range g.lifetimes.Observe(g.totalTicks, s) {
			g.collector.Record(ev)
			g.logger.Debug("agent "+ev.Type.String(), "agent", ev.Name, "id", ev.AgentID, "tick", ev.Tick, "value", ev.Value)
		}
		if !s.Done && !s.Dead {
			finished = false
		}
	}
	g.finished = finished
}

func sample(v AgentView) telemetry.AgentSample {
	return telemetry.AgentSample{
		ID:         v.ID,
		Name:       v.Name,
		X:          v.Position.X,
		Return:     v.Return,
		Dead:       v.Dead,
		Done:       v.Done,
		Success:    v.Success,
		UnderWater: v.UnderWater,
	}
}

// Finished reports whether every simulated agent is done or dead.
func (g *Game) Finished() bool { return g.finished }

// Run plays one episode from the current state until every agent is done or
// dead, maxTicks ticks have been played (0 means unbounded) or ctx is
// cancelled, then records the episode.
func (g *Game) Run(ctx context.Context, maxTicks int) ([]telemetry.EpisodeRecord, error) {
	var runErr error
	for tick := 0; maxTicks <= 0 || tick < maxTicks; tick++ {
		if g.finished {
			break
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if _, err := g.Play(); err != nil {
			return nil, err
		}
	}
	records, err := g.EndEpisode(context.WithoutCancel(ctx))
	if err != nil {
		return records, err
	}
	return records, runErr
}

// EndEpisode writes one record per agent of the current episode to the
// configured sinks and returns them.
func (g *Game) EndEpisode(ctx context.Context) ([]telemetry.EpisodeRecord, error) {
	all := g.lifetimes.All()
	records := make([]telemetry.EpisodeRecord, 0, len(all))
	returns := make([]float64, 0, len(all))
	for _, st := range all {
		records = append(records, telemetry.NewEpisodeRecord(g.runID, g.episode, st))
		returns = append(returns, st.Return)
	}

	if err := g.output.WriteEpisodes(records); err != nil {
		g.logger.Error("failed to write episodes", "episode", g.episode, "err", err)
	}
	if g.store != nil {
		if err := g.store.SaveEpisode(ctx, records); err != nil {
			return records, fmt.Errorf("saving episode %d: %w", g.episode, err)
		}
	}
	if g.cfg.Telemetry.Snapshot {
		g.saveSnapshot(nil)
	}

	rs := telemetry.ComputeStats(returns)
	g.logger.Info("episode finished",
		"episode", g.episode,
		"ticks", g.engine.Tick(),
		"agents", len(records),
		"return_mean", rs.Mean,
		"return_max", maxReturn(returns),
	)
	return records, nil
}

func maxReturn(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return slices.Max(returns)
}

// Returns sums each current agent's rewards over the recorded ticks. Only
// ticks that recorded exactly as many agents as the latest one count, and
// rewards are matched by position.
func (g *Game) Returns() []AgentReturn {
	if len(g.history) == 0 {
		return nil
	}
	cur := g.history[len(g.history)-1]
	out := make([]AgentReturn, len(cur))
	for i, r := range cur {
		out[i] = AgentReturn{AgentID: r.AgentID, Name: r.Name}
	}
	for _, row := range g.history {
		if len(row) != len(cur) {
			continue
		}
		for i, r := range row {
			out[i].Return += r.Reward
		}
	}
	return out
}

// Regrets compares the best return of each agent name with the best return
// overall. With normalize the regret is divided by the overall best, unless
// that is zero. The overall best is included under MaxReturnKey.
func (g *Game) Regrets(normalize bool) map[string]float64 {
	best := make(map[string]float64)
	for _, r := range g.Returns() {
		if v, ok := best[r.Name]; !ok || r.Return > v {
			best[r.Name] = r.Return
		}
	}
	maxRet := float64(noReturn)
	for _, v := range best {
		maxRet = max(maxRet, v)
	}

	out := make(map[string]float64, len(best)+1)
	for name, v := range best {
		regret := maxRet - v
		if normalize && maxRet != 0 {
			regret /= maxRet
		}
		out[name] = regret
	}
	out[MaxReturnKey] = maxRet
	return out
}

// Close stops the policy workers and tears down the engine's world.
func (g *Game) Close() {
	g.pool.stop()
	g.engine.Close()
}
