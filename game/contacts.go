package game

import "github.com/accelagent/parkour/physics"

// contactListener keeps body-part contact flags and sensor grab lists in sync
// with the solver.
type contactListener struct{}

func (contactListener) BeginContact(a, b physics.Body) {
	handleContact(a, b, true)
	handleContact(b, a, true)
}

func (contactListener) EndContact(a, b physics.Body) {
	handleContact(a, b, false)
	handleContact(b, a, false)
}

// handleContact updates self from its contact with other.
func handleContact(self, other physics.Body, begin bool) {
	sd, od := self.UserData(), other.UserData()
	if sd == nil || od == nil {
		return
	}
	switch sd.Kind {
	case physics.KindBodyPart:
		if !od.Kind.IsTerrainLike() || od.Kind == physics.KindGrabbable {
			return
		}
		if begin {
			sd.Contacts++
			sd.HasContact = true
			// Touching the ceiling is part of climbing; only ground-like bodies are fatal.
			if sd.CheckContact && (od.Kind == physics.KindTerrain || od.Kind == physics.KindAsset) {
				sd.Critical = true
			}
			return
		}
		if sd.Contacts > 0 {
			sd.Contacts--
		}
		sd.HasContact = sd.Contacts > 0
	case physics.KindSensor:
		if !od.Kind.CanGrasp() {
			return
		}
		if begin {
			sd.AddGrabbable(other)
		} else {
			sd.RemoveGrabbable(other)
		}
	}
}
