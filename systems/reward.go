package systems

import (
	"math"

	"github.com/accelagent/parkour/config"
)

// RewardInput is the per-tick state scored for one agent.
type RewardInput struct {
	X           float64
	HeadAngle   float64
	PrevShaping float64
	HasPrev     bool
	Actions     []float64
	Critical    bool

	TorquePenalty     float64
	PenalizeHeadAngle bool
}

// Score is the breakdown of one tick's reward.
type Score struct {
	Shaping  float64 // potential carried to the next tick
	Progress float64 // shaping delta
	Torque   float64 // total torque cost, non-negative
	Penalty  float64 // failure penalty, non-negative
	Reward   float64
	Done     bool
	Failed   bool
}

// ScoreStep computes the shaped reward and termination for one tick.
func ScoreStep(cfg *config.Config, in RewardInput) Score {
	r := cfg.Reward
	var s Score

	s.Shaping = r.ProgressCoeff * in.X / cfg.Physics.Scale
	if in.PenalizeHeadAngle {
		s.Shaping -= r.HeadAngleCoeff * math.Abs(in.HeadAngle)
	}
	if in.HasPrev {
		s.Progress = s.Shaping - in.PrevShaping
	}

	for _, a := range in.Actions {
		s.Torque += in.TorquePenalty * r.TorqueCoeff * math.Max(0, math.Min(math.Abs(a), 1))
	}

	if in.Critical || in.X < 0 {
		s.Penalty = r.FailurePenalty
		s.Done = true
		s.Failed = true
	}
	if in.X > cfg.Derived.TrackEndX {
		s.Done = true
	}

	s.Reward = s.Progress - s.Torque - s.Penalty
	return s
}

// Succeeded reports whether an episodic return clears the success threshold.
func Succeeded(cfg *config.Config, episodic float64) bool {
	return episodic > cfg.Reward.SuccessThreshold
}
