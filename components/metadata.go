package components

import "math"

// FieldDescriptor describes an agent field for observers and exports.
type FieldDescriptor struct {
	ID         string  // Unique identifier
	Label      string  // Display name
	Format     string  // Printf format (e.g., "%.2f")
	Min        float64 // Minimum value (for bars)
	Max        float64 // Maximum value (for bars)
	IsCentered bool    // True for centered bar display
	IsBar      bool    // True to render as progress bar
	Group      string  // Logical grouping
}

// AgentFieldDescriptors returns metadata for the per-agent fields observers receive.
// Field IDs must match cases in AgentValue().
func AgentFieldDescriptors() []FieldDescriptor {
	return []FieldDescriptor{
		{ID: "x", Label: "X", Format: "%.2f", Group: "motion"},
		{ID: "y", Label: "Y", Format: "%.2f", Group: "motion"},
		{ID: "angle", Label: "Angle", Format: "%+.2f", Min: -math.Pi, Max: math.Pi, IsCentered: true, IsBar: true, Group: "motion"},
		{ID: "return", Label: "Return", Format: "%.1f", Group: "episode"},
		{ID: "ticks", Label: "Ticks", Format: "%d", Group: "episode"},
		{ID: "under_water", Label: "Under Water", Format: "%d", Group: "survival"},
		{ID: "outside_water", Label: "Outside Water", Format: "%d", Group: "survival"},
		{ID: "dead", Label: "Dead", Format: "%.0f", Min: 0, Max: 1, IsBar: true, Group: "survival"},
	}
}

// AgentGroups returns the logical groupings for agent fields.
func AgentGroups() []string {
	return []string{"motion", "episode", "survival"}
}

// AgentValue extracts an agent field value by ID.
func AgentValue(emb *Embodiment, ep *Episode, surv *Survival, fieldID string) float64 {
	switch fieldID {
	case "x", "y", "angle":
		if emb == nil || emb.Body == nil || !emb.Body.Built() {
			return 0
		}
		ref := emb.Body.Reference()
		switch fieldID {
		case "x":
			return ref.Position().X
		case "y":
			return ref.Position().Y
		default:
			return ref.Angle()
		}
	case "return":
		return ep.Return
	case "ticks":
		return float64(ep.Ticks)
	case "under_water":
		return float64(surv.UnderWater)
	case "outside_water":
		return float64(surv.OutsideWater)
	case "dead":
		if surv.Dead {
			return 1
		}
		return 0
	default:
		return 0
	}
}
