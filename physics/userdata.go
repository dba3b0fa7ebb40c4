package physics

// ObjectKind classifies what a body represents for contacts and lidar.
type ObjectKind uint8

const (
	KindTerrain ObjectKind = iota
	KindGripTerrain
	KindWater
	KindGrabbable
	KindBodyPart
	KindSensor
	KindAsset
)

func (k ObjectKind) String() string {
	switch k {
	case KindTerrain:
		return "terrain"
	case KindGripTerrain:
		return "grip_terrain"
	case KindWater:
		return "water"
	case KindGrabbable:
		return "grabbable"
	case KindBodyPart:
		return "body_part"
	case KindSensor:
		return "sensor"
	case KindAsset:
		return "asset"
	default:
		return "unknown"
	}
}

// UserData tags a body. Contact state is written by the environment's contact listener.
type UserData struct {
	Name    string
	Kind    ObjectKind
	AgentID uint64

	// CheckContact marks body parts whose contact with terrain ends the episode.
	CheckContact bool
	// HasContact is set while the part touches terrain.
	HasContact bool
	// Critical latches once a CheckContact part touches ground terrain.
	Critical bool
	// Contacts counts touching static bodies, so overlapping terrain pieces do not clear HasContact early.
	Contacts int

	// ReadyToGrasp is set by climbing dynamics when a sensor wants to hold on.
	ReadyToGrasp bool
	// Grabbable lists grabbable bodies currently overlapping a sensor.
	Grabbable []Body
	// GraspJoint holds the grab joint while a sensor grasps.
	GraspJoint Joint
}

// IsTerrainLike reports whether the kind belongs to the static environment.
func (k ObjectKind) IsTerrainLike() bool {
	return k == KindTerrain || k == KindGripTerrain || k == KindGrabbable || k == KindAsset
}

// CanGrasp reports whether climbers may attach to bodies of this kind.
func (k ObjectKind) CanGrasp() bool {
	return k == KindGripTerrain || k == KindGrabbable
}

// AddGrabbable records a grabbable overlap once.
func (u *UserData) AddGrabbable(b Body) {
	for _, g := range u.Grabbable {
		if g == b {
			return
		}
	}
	u.Grabbable = append(u.Grabbable, b)
}

// RemoveGrabbable forgets a grabbable overlap.
func (u *UserData) RemoveGrabbable(b Body) {
	for i, g := range u.Grabbable {
		if g == b {
			u.Grabbable = append(u.Grabbable[:i], u.Grabbable[i+1:]...)
			return
		}
	}
}
