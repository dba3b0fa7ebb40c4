package systems

import (
	"math"

	"github.com/accelagent/parkour/physics"
)

// Unbounded disables the distance limit of FindBestY and SpawnHeight.
var Unbounded = math.Inf(1)

// FindBestY estimates the profile height at x. It picks the point nearest to x
// and interpolates linearly with its neighbour on the side of x. When both
// points share an x (past either end of the profile), x farther than maxDist
// from that point yields no height. A zero maxDist only accepts that exact x.
func FindBestY(x float64, profile []physics.Vec2, maxDist float64) (float64, bool) {
	if len(profile) == 0 {
		return 0, false
	}
	best := 0
	bestDist := math.Abs(profile[0].X - x)
	for i := 1; i < len(profile); i++ {
		if d := math.Abs(profile[i].X - x); d < bestDist {
			best, bestDist = i, d
		}
	}

	p1 := profile[best]
	p2 := p1
	if x > p1.X {
		if best+1 < len(profile) {
			p2 = profile[best+1]
		}
	} else if best > 0 {
		p2 = profile[best-1]
	}

	if p1.X != p2.X {
		return p1.Y + (x-p1.X)*(p2.Y-p1.Y)/(p2.X-p1.X), true
	}
	if math.Abs(x-p1.X) > maxDist {
		return 0, false
	}
	return p1.Y, true
}

// ClampBetween keeps y inside [lo, hi]. When the interval is empty the lower
// bound wins.
func ClampBetween(y, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, y))
}

// SpawnHeight returns the y at which a body of the given half-height margin
// fits between ground and ceiling at x. Missing profile heights are treated as
// unbounded on that side.
func SpawnHeight(x, y, margin float64, ground, ceiling []physics.Vec2, maxDist float64) float64 {
	lo, ok := FindBestY(x, ground, maxDist)
	if !ok {
		lo = math.Inf(-1)
	}
	hi, ok := FindBestY(x, ceiling, maxDist)
	if !ok {
		hi = math.Inf(1)
	}
	return ClampBetween(y, lo+margin, hi-margin)
}
