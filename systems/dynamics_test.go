package systems

import (
	"math"
	"testing"

	"github.com/accelagent/parkour/config"
	"github.com/accelagent/parkour/physics"
	"github.com/accelagent/parkour/physics/fake"
)

func TestSurvival(t *testing.T) {
	var s SurvivalState
	const limit = 3
	for i := 0; i < limit; i++ {
		s.UpdateSubmersion(-1, 0)
		if s.CheckSurvival(limit) {
			t.Fatalf("dead after %d ticks under water, limit %d", s.UnderWater, limit)
		}
	}
	s.UpdateSubmersion(-1, 0)
	if !s.CheckSurvival(limit) {
		t.Fatalf("alive after %d ticks under water, limit %d", s.UnderWater, limit)
	}

	// Dead agents keep their counters.
	s.UpdateSubmersion(5, 0)
	if s.UnderWater != limit+1 || s.OutsideWater != 0 {
		t.Errorf("dead counters moved: %+v", s)
	}

	s.Reset()
	if s.Dead || s.UnderWater != 0 {
		t.Errorf("reset left %+v", s)
	}
	s.UpdateSubmersion(5, 0)
	s.UpdateSubmersion(5, 0)
	if s.OutsideWater != 2 || s.UnderWater != 0 {
		t.Errorf("outside counters = %+v", s)
	}
	if s.CheckSurvival(1) {
		t.Error("time outside water must never kill")
	}
	for i := 0; i < 1000; i++ {
		s.UpdateSubmersion(-1, 0)
	}
	if s.CheckSurvival(0) {
		t.Error("a zero limit must never kill")
	}
}

func TestSubmersionBoundary(t *testing.T) {
	var s SurvivalState
	s.UpdateSubmersion(2, 2)
	if s.UnderWater != 1 {
		t.Errorf("y == water y should count as under water, got %+v", s)
	}
}

func TestBuildObservation(t *testing.T) {
	cfg := config.Defaults()
	in := ObservationInput{
		Angle:           0.1,
		AngularVelocity: 5,
		Velocity:        physics.V(1, -1),
		Motors:          []float64{1, 2, 3},
		Sensors:         []float64{1},
		Lidars:          []LidarReading{{Fraction: 0.5, Water: true}, {Fraction: 1}},
	}
	obs := BuildObservation(cfg, in)
	if len(obs) != ObservationSize(3, 1, 2, false) {
		t.Fatalf("len = %d, want %d", len(obs), ObservationSize(3, 1, 2, false))
	}
	fps := float64(cfg.Physics.FPS)
	want := []float64{
		0.1,
		2 * 5 / fps,
		0.3 * (cfg.Physics.ViewportW / cfg.Physics.Scale) / fps,
		-0.3 * (cfg.Physics.ViewportH / cfg.Physics.Scale) / fps,
		1, 2, 3,
		1,
		0.5, 1,
	}
	for i := range want {
		if math.Abs(obs[i]-want[i]) > 1e-12 {
			t.Errorf("obs[%d] = %v, want %v", i, obs[i], want[i])
		}
	}

	cfg.Reward.IncludeSurface = true
	obs = BuildObservation(cfg, in)
	if len(obs) != ObservationSize(3, 1, 2, true) {
		t.Fatalf("with surface len = %d", len(obs))
	}
	if obs[len(obs)-2] != -1 || obs[len(obs)-1] != 0 {
		t.Errorf("surface tail = %v", obs[len(obs)-2:])
	}
}

func TestScoreStep(t *testing.T) {
	cfg := config.Defaults()
	tests := []struct {
		name       string
		in         RewardInput
		wantReward float64
		wantDone   bool
	}{
		{
			name:       "first tick has no progress",
			in:         RewardInput{X: 3},
			wantReward: 0,
		},
		{
			name:       "motionless",
			in:         RewardInput{X: 3, PrevShaping: 130 * 3 / 30.0, HasPrev: true, Actions: []float64{0, 0}},
			wantReward: 0,
		},
		{
			name:       "forward progress",
			in:         RewardInput{X: 3.3, PrevShaping: 130 * 3 / 30.0, HasPrev: true},
			wantReward: 130 * 0.3 / 30,
		},
		{
			name:       "torque cost clamps actions",
			in:         RewardInput{X: 3, PrevShaping: 13, HasPrev: true, Actions: []float64{2, -0.5}, TorquePenalty: 0.001},
			wantReward: -0.001 * 80 * 1.5,
		},
		{
			name:       "head angle penalty",
			in:         RewardInput{X: 3, HeadAngle: -0.2, PenalizeHeadAngle: true},
			wantReward: 0,
		},
		{
			name:       "behind start",
			in:         RewardInput{X: -0.1, PrevShaping: 130 * -0.1 / 30, HasPrev: true},
			wantReward: -100,
			wantDone:   true,
		},
		{
			name:       "critical contact",
			in:         RewardInput{X: 3, PrevShaping: 13, HasPrev: true, Critical: true},
			wantReward: -100,
			wantDone:   true,
		},
		{
			name:       "past the track end",
			in:         RewardInput{X: cfg.Derived.TrackEndX + 1},
			wantReward: 0,
			wantDone:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ScoreStep(cfg, tt.in)
			if math.Abs(s.Reward-tt.wantReward) > 1e-9 {
				t.Errorf("reward = %v, want %v", s.Reward, tt.wantReward)
			}
			if s.Done != tt.wantDone {
				t.Errorf("done = %v, want %v", s.Done, tt.wantDone)
			}
		})
	}

	s := ScoreStep(cfg, RewardInput{X: 3, HeadAngle: -0.2, PenalizeHeadAngle: true})
	if want := 130*3/30.0 - 5*0.2; math.Abs(s.Shaping-want) > 1e-9 {
		t.Errorf("shaping = %v, want %v", s.Shaping, want)
	}
}

func TestSucceeded(t *testing.T) {
	cfg := config.Defaults()
	if Succeeded(cfg, 230) {
		t.Error("230 is not strictly above the threshold")
	}
	if !Succeeded(cfg, 230.5) {
		t.Error("230.5 should succeed")
	}
}

func TestGrasping(t *testing.T) {
	w := fake.New(physics.Vec2{})
	ceiling := w.CreateBody(physics.BodyDef{Type: physics.Static, Position: physics.V(0, 5)},
		physics.FixtureDef{Shape: physics.Box(5, 0.1)})
	ceiling.SetUserData(&physics.UserData{Kind: physics.KindGripTerrain})

	hand := w.CreateBody(physics.BodyDef{Type: physics.Dynamic, Position: physics.V(1, 4.95)},
		physics.FixtureDef{Shape: physics.Circle(0.1), Density: 1, Sensor: true})
	hand.SetUserData(&physics.UserData{Kind: physics.KindSensor, AgentID: 1})
	sensors := []physics.Body{hand}

	PrepareGrasps(w, sensors, []float64{1})
	if !hand.UserData().ReadyToGrasp {
		t.Fatal("positive action should ready the sensor")
	}
	if n := AttachGrasps(w, sensors); n != 0 {
		t.Fatalf("attached %d without an overlap", n)
	}

	hand.UserData().AddGrabbable(ceiling)
	if n := AttachGrasps(w, sensors); n != 1 || w.JointCount() != 1 {
		t.Fatalf("attached %d, joints %d", n, w.JointCount())
	}
	if n := AttachGrasps(w, sensors); n != 0 {
		t.Errorf("re-attached a held sensor")
	}

	PrepareGrasps(w, sensors, []float64{-1})
	if hand.UserData().GraspJoint != nil || w.JointCount() != 0 {
		t.Error("negative action should release the grasp")
	}

	PrepareGrasps(w, sensors, []float64{1})
	AttachGrasps(w, sensors)
	ReleaseGrasps(w, sensors)
	if w.JointCount() != 0 || hand.UserData().ReadyToGrasp {
		t.Error("ReleaseGrasps left state behind")
	}
}

func TestWaterForces(t *testing.T) {
	gravity := physics.V(0, -10)
	w := fake.New(gravity)
	b := w.CreateBody(physics.BodyDef{Type: physics.Dynamic, Position: physics.V(0, -1)},
		physics.FixtureDef{Shape: physics.Box(0.5, 0.5), Density: 1})
	dry := w.CreateBody(physics.BodyDef{Type: physics.Dynamic, Position: physics.V(0, 3)},
		physics.FixtureDef{Shape: physics.Box(0.5, 0.5), Density: 1})

	ApplyWaterForces([]physics.Body{b, dry}, 0, gravity, 0)
	w.Step(0.02, 1, 1)

	if v := b.LinearVelocity().Y; math.Abs(v) > 1e-9 {
		t.Errorf("neutrally buoyant body sank at %v", v)
	}
	if v := dry.LinearVelocity().Y; v >= 0 {
		t.Errorf("dry body should fall, vy = %v", v)
	}
}
