package game

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/accelagent/parkour/config"
	"github.com/accelagent/parkour/morphology"
	"github.com/accelagent/parkour/neural"
	"github.com/accelagent/parkour/systems"
	"github.com/accelagent/parkour/telemetry"
)

func newTestGame(t *testing.T, cfg *config.Config, opts GameOptions) *Game {
	t.Helper()
	e, _ := newTestEngine(t, cfg)
	opts.Logger = quietLogger()
	g := NewGame(e, opts)
	t.Cleanup(g.Close)
	return g
}

// countingPolicy returns constant actions and counts its calls.
type countingPolicy struct {
	calls   atomic.Int64
	obsSize int
	value   float64
}

func (p *countingPolicy) Act(obs, actions []float64) error {
	p.calls.Add(1)
	p.obsSize = len(obs)
	for i := range actions {
		actions[i] = p.value
	}
	return nil
}

type failingPolicy struct{}

func (failingPolicy) Act(_, _ []float64) error { return errors.New("broken weights") }

func TestPlayBeforeReset(t *testing.T) {
	g := newTestGame(t, nil, GameOptions{})
	if _, err := g.Play(); !errors.Is(err, ErrNotReset) {
		t.Errorf("err = %v, want ErrNotReset", err)
	}
}

func TestPlayRunsEveryPolicy(t *testing.T) {
	tests := []struct {
		name    string
		agents  int
		workers int
	}{
		{"serial", 3, 1},
		{"pooled", 12, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGame(t, nil, GameOptions{Workers: tt.workers})
			policies := make([]*countingPolicy, tt.agents)
			for i := range policies {
				policies[i] = &countingPolicy{}
				if _, err := g.CreateAgent(morphology.Bipedal, PolicyRef{Name: "zero"}, policies[i], nil, true); err != nil {
					t.Fatal(err)
				}
			}
			if _, err := g.Reset(); err != nil {
				t.Fatal(err)
			}
			for tick := 0; tick < 3; tick++ {
				if _, err := g.Play(); err != nil {
					t.Fatalf("Play: %v", err)
				}
			}
			for i, p := range policies {
				if p.calls.Load() != 3 {
					t.Errorf("policy %d called %d times, want 3", i, p.calls.Load())
				}
				if p.obsSize != 4+10+g.cfg.Lidar.Count {
					t.Errorf("policy %d saw %d observations", i, p.obsSize)
				}
			}
			if len(g.History()) != 4 {
				t.Errorf("history has %d rows, want 4", len(g.History()))
			}
		})
	}
}

func TestPlayAppliesPolicyActions(t *testing.T) {
	g := newTestGame(t, nil, GameOptions{})
	id, err := g.CreateAgent(morphology.Bipedal, PolicyRef{Name: "half"}, &countingPolicy{value: 0.5}, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Play(); err != nil {
		t.Fatal(err)
	}
	v, _ := g.Engine().Agent(id)
	for i, a := range v.Actions {
		if a != 0.5 {
			t.Errorf("action %d = %v, want 0.5", i, a)
		}
	}
}

func TestAgentsWithoutPolicyActRandomly(t *testing.T) {
	g := newTestGame(t, nil, GameOptions{})
	id, err := g.CreateAgent(morphology.Spider, PolicyRef{Name: "random"}, nil, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Play(); err != nil {
		t.Fatal(err)
	}
	v, _ := g.Engine().Agent(id)
	nonZero := 0
	for _, a := range v.Actions {
		if a < -1 || a > 1 {
			t.Errorf("random action %v outside [-1,1]", a)
		}
		if a != 0 {
			nonZero++
		}
	}
	if nonZero == 0 {
		t.Error("random actions are all zero")
	}
}

func TestPolicyErrorStopsPlay(t *testing.T) {
	g := newTestGame(t, nil, GameOptions{})
	if _, err := g.CreateAgent(morphology.Bipedal, PolicyRef{Name: "bad"}, failingPolicy{}, nil, true); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Play(); err == nil {
		t.Error("Play ignored a policy error")
	}
}

func TestReturnsUseMatchingRows(t *testing.T) {
	g := newTestGame(t, nil, GameOptions{})
	row := func(rewards ...float64) []StepResult {
		out := make([]StepResult, len(rewards))
		for i, r := range rewards {
			out[i] = StepResult{AgentID: uint64(i + 1), Name: []string{"accel", "plr"}[i], Reward: r}
		}
		return out
	}
	g.history = [][]StepResult{
		row(1, 2),
		row(3, 4),
		row(5),
		row(1, 1),
	}

	returns := g.Returns()
	want := []float64{5, 7}
	if len(returns) != len(want) {
		t.Fatalf("got %d returns, want %d", len(returns), len(want))
	}
	for i, r := range returns {
		if math.Abs(r.Return-want[i]) > 1e-9 {
			t.Errorf("return %d (%s) = %v, want %v", i, r.Name, r.Return, want[i])
		}
	}
}

func TestRegrets(t *testing.T) {
	tests := []struct {
		name      string
		rows      [][]StepResult
		normalize bool
		want      map[string]float64
	}{
		{
			name: "raw",
			rows: [][]StepResult{{
				{AgentID: 1, Name: "accel", Reward: 10},
				{AgentID: 2, Name: "plr", Reward: 4},
				{AgentID: 3, Name: "plr", Reward: 6},
			}},
			want: map[string]float64{"accel": 0, "plr": 4, MaxReturnKey: 10},
		},
		{
			name: "normalized",
			rows: [][]StepResult{{
				{AgentID: 1, Name: "accel", Reward: 10},
				{AgentID: 2, Name: "plr", Reward: 6},
			}},
			normalize: true,
			want:      map[string]float64{"accel": 0, "plr": 0.4, MaxReturnKey: 10},
		},
		{
			name: "zero best is not divided",
			rows: [][]StepResult{{
				{AgentID: 1, Name: "accel", Reward: 0},
				{AgentID: 2, Name: "plr", Reward: -5},
			}},
			normalize: true,
			want:      map[string]float64{"accel": 0, "plr": 5, MaxReturnKey: 0},
		},
		{
			name: "empty",
			rows: [][]StepResult{{}},
			want: map[string]float64{MaxReturnKey: noReturn},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGame(t, nil, GameOptions{})
			g.history = tt.rows
			got := g.Regrets(tt.normalize)
			if len(got) != len(tt.want) {
				t.Fatalf("Regrets() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if math.Abs(got[k]-v) > 1e-9 {
					t.Errorf("regret[%s] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestRunStopsWhenEveryAgentIsFinished(t *testing.T) {
	cfg := config.Defaults()
	cfg.Terrain.WaterLevel = 1
	walker := cfg.Morphologies["bipedal"]
	walker.UnderWaterLimit = 3
	cfg.Morphologies["bipedal"] = walker

	store := telemetry.NewMemoryStore()
	g := newTestGame(t, cfg, GameOptions{Store: store, RunID: "run-1"})
	if err := store.SaveRun(context.Background(), telemetry.Run{ID: "run-1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := g.CreateAgent(morphology.Bipedal, PolicyRef{Name: "walker", Age: "3"}, neural.ZeroPolicy{}, nil, true); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Reset(); err != nil {
		t.Fatal(err)
	}

	records, err := g.Run(context.Background(), 100)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if g.Engine().Tick() >= 100 {
		t.Errorf("run went to the tick limit (%d ticks)", g.Engine().Tick())
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	r := records[0]
	if r.Reason != "dead" || r.Name != "walker" || r.Age != "3" || r.Morphology != "bipedal" || r.Episode != 0 {
		t.Errorf("record = %+v", r)
	}

	stored, err := store.Episodes(context.Background(), "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 {
		t.Errorf("store holds %d records, want 1", len(stored))
	}
}

func TestRunHonorsContext(t *testing.T) {
	g := newTestGame(t, nil, GameOptions{})
	if _, err := g.CreateAgent(morphology.Bipedal, PolicyRef{Name: "a"}, neural.ZeroPolicy{}, nil, true); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Reset(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	records, err := g.Run(ctx, 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(records) != 1 || records[0].Reason != "timeout" {
		t.Errorf("records = %+v, want one timeout record", records)
	}
}

func TestGameDeleteAgents(t *testing.T) {
	g := newTestGame(t, nil, GameOptions{})
	keep, _ := g.CreateAgent(morphology.Bipedal, PolicyRef{Name: "keep"}, neural.ZeroPolicy{}, nil, true)
	drop, _ := g.CreateAgent(morphology.Bipedal, PolicyRef{Name: "drop"}, neural.ZeroPolicy{}, nil, true)
	if _, err := g.Reset(); err != nil {
		t.Fatal(err)
	}

	if n := g.DeleteAgents([]string{"drop"}, false); n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}
	if _, ok := g.policies[drop]; ok {
		t.Error("policy of removed agent kept")
	}
	if g.lifetimes.Get(drop) != nil {
		t.Error("lifetime of removed agent kept")
	}
	results, err := g.Play()
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].AgentID != keep {
		t.Errorf("results = %+v, want only agent %d", results, keep)
	}
	if err := g.SetPolicy(drop, neural.ZeroPolicy{}); !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("SetPolicy on removed agent err = %v", err)
	}
}

func TestGameAddAgentExtendsHistory(t *testing.T) {
	g := newTestGame(t, nil, GameOptions{})
	g.CreateAgent(morphology.Bipedal, PolicyRef{Name: "first"}, nil, nil, true)
	if _, err := g.Reset(); err != nil {
		t.Fatal(err)
	}
	id, err := g.AddAgent(morphology.Spider, PolicyRef{Name: "second"}, neural.ZeroPolicy{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	h := g.History()
	if len(h) != 2 || len(h[1]) != 2 || h[1][1].AgentID != id {
		t.Errorf("history after AddAgent = %d rows, last %+v", len(h), h[len(h)-1])
	}
	if g.lifetimes.Get(id) == nil {
		t.Error("added agent has no lifetime record")
	}
}

type recordingSink struct {
	levels []int
	frames []int
}

func (s *recordingSink) PublishLevel(episode int, _ systems.LevelDescription) {
	s.levels = append(s.levels, episode)
}

func (s *recordingSink) PublishFrame(tick int, agents []AgentView, _ []AssetView) {
	s.frames = append(s.frames, tick)
}

func TestFrameSink(t *testing.T) {
	cfg := config.Defaults()
	cfg.Observer.FrameStride = 2
	sink := &recordingSink{}
	g := newTestGame(t, cfg, GameOptions{Sink: sink})
	g.CreateAgent(morphology.Bipedal, PolicyRef{Name: "a"}, neural.ZeroPolicy{}, nil, true)

	for episode := 0; episode < 2; episode++ {
		if _, err := g.Reset(); err != nil {
			t.Fatal(err)
		}
		for tick := 0; tick < 4; tick++ {
			if _, err := g.Play(); err != nil {
				t.Fatal(err)
			}
		}
	}
	if len(sink.levels) != 2 || sink.levels[1] != 1 {
		t.Errorf("levels published for episodes %v, want [0 1]", sink.levels)
	}
	if len(sink.frames) != 4 {
		t.Errorf("published %d frames, want 4", len(sink.frames))
	}
}

func TestCreateSnapshot(t *testing.T) {
	g := newTestGame(t, nil, GameOptions{RunID: "snap"})
	g.CreateAgent(morphology.Bipedal, PolicyRef{Name: "a"}, neural.ZeroPolicy{}, nil, true)
	if _, err := g.Reset(); err != nil {
		t.Fatal(err)
	}
	snap, err := g.CreateSnapshot(nil)
	if err != nil {
		t.Fatal(err)
	}
	if snap.RunID != "snap" || len(snap.Agents) != 1 || len(snap.Level.Ground) == 0 {
		t.Errorf("snapshot = run %q, %d agents, %d ground points", snap.RunID, len(snap.Agents), len(snap.Level.Ground))
	}
	if snap.Latent != nil {
		t.Error("procedural snapshot carries a latent vector")
	}
}
