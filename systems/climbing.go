package systems

import "github.com/accelagent/parkour/physics"

// PrepareGrasps runs before the world step. A positive grasp action readies
// its sensor; anything else releases the sensor's hold.
func PrepareGrasps(world physics.World, sensors []physics.Body, graspActions []float64) {
	for i, sensor := range sensors {
		ud := sensor.UserData()
		if ud == nil || i >= len(graspActions) {
			continue
		}
		if graspActions[i] > 0 {
			ud.ReadyToGrasp = true
			continue
		}
		ud.ReadyToGrasp = false
		if ud.GraspJoint != nil {
			world.DestroyJoint(ud.GraspJoint)
			ud.GraspJoint = nil
		}
	}
}

// AttachGrasps runs after the world step and pins every ready sensor that
// overlaps a graspable body to it.
func AttachGrasps(world physics.World, sensors []physics.Body) int {
	attached := 0
	for _, sensor := range sensors {
		ud := sensor.UserData()
		if ud == nil || !ud.ReadyToGrasp || ud.GraspJoint != nil || len(ud.Grabbable) == 0 {
			continue
		}
		target := ud.Grabbable[0]
		anchor := sensor.Position().Sub(target.Position()).Rotate(-target.Angle())
		ud.GraspJoint = world.CreateRevoluteJoint(physics.RevoluteJointDef{
			BodyA:        sensor,
			BodyB:        target,
			LocalAnchorB: anchor,
		})
		attached++
	}
	return attached
}

// ReleaseGrasps destroys every grasp joint held by the sensors.
func ReleaseGrasps(world physics.World, sensors []physics.Body) {
	for _, sensor := range sensors {
		if ud := sensor.UserData(); ud != nil && ud.GraspJoint != nil {
			world.DestroyJoint(ud.GraspJoint)
			ud.GraspJoint = nil
			ud.ReadyToGrasp = false
		}
	}
}
