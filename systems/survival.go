package systems

// SurvivalState counts consecutive ticks spent under and outside water.
type SurvivalState struct {
	UnderWater   int
	OutsideWater int
	Dead         bool
}

// Reset clears counters and revives the agent.
func (s *SurvivalState) Reset() {
	*s = SurvivalState{}
}

// CheckSurvival marks the agent dead once it has spent more than limit
// consecutive ticks under water. A zero limit never kills. Time outside water
// is counted but never kills.
func (s *SurvivalState) CheckSurvival(limit int) bool {
	s.Dead = limit > 0 && s.UnderWater > limit
	return s.Dead
}

// UpdateSubmersion advances the counters from the reference body height.
// Dead agents keep their counters.
func (s *SurvivalState) UpdateSubmersion(y, waterY float64) {
	if s.Dead {
		return
	}
	if y <= waterY {
		s.UnderWater++
		s.OutsideWater = 0
	} else {
		s.UnderWater = 0
		s.OutsideWater++
	}
}
