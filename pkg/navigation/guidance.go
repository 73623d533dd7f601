package navigation

import (
	"math"

	"github.com/paulmach/orb"
)

// Direction is a guidance bucket. Map coordinates grow downwards, so a
// bearing of 90 degrees points south and positive turns are to the right.
type Direction string

// Relative buckets, used once a heading is known.
const (
	Straight    Direction = "straight"
	SlightRight Direction = "slight-right"
	Right       Direction = "right"
	BackRight   Direction = "back-right"
	Reverse     Direction = "reverse"
	BackLeft    Direction = "back-left"
	Left        Direction = "left"
	SlightLeft  Direction = "slight-left"
)

// Compass buckets, used before a heading is known.
const (
	North     Direction = "N"
	NorthEast Direction = "NE"
	East      Direction = "E"
	SouthEast Direction = "SE"
	South     Direction = "S"
	SouthWest Direction = "SW"
	West      Direction = "W"
	NorthWest Direction = "NW"
)

// IsRelative reports whether d is one of the relative buckets.
func (d Direction) IsRelative() bool {
	switch d {
	case Straight, SlightRight, Right, BackRight, Reverse, BackLeft, Left, SlightLeft:
		return true
	}
	return false
}

// Bearing is the angle in radians from a to b.
func Bearing(a, b orb.Point) float64 {
	return math.Atan2(b[1]-a[1], b[0]-a[0])
}

// AngleDiff returns target minus heading in degrees, normalised to
// (-180, 180].
func AngleDiff(target, heading float64) float64 {
	d := math.Mod((target-heading)*180/math.Pi, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}

// Relative buckets the turn from heading to the target bearing, both in
// radians. Buckets are 45 degrees wide and centred on multiples of 45.
func Relative(target, heading float64) Direction {
	d := AngleDiff(target, heading)
	switch {
	case d >= -22.5 && d <= 22.5:
		return Straight
	case d > 22.5 && d <= 67.5:
		return SlightRight
	case d > 67.5 && d <= 112.5:
		return Right
	case d > 112.5 && d <= 157.5:
		return BackRight
	case d > 157.5 || d < -157.5:
		return Reverse
	case d < -112.5:
		return BackLeft
	case d < -67.5:
		return Left
	default:
		return SlightLeft
	}
}

// Absolute buckets a bearing in radians onto the compass.
func Absolute(bearing float64) Direction {
	a := bearing * 180 / math.Pi
	if a < 0 {
		a += 360
	}
	switch {
	case a >= 22.5 && a < 67.5:
		return SouthEast
	case a >= 67.5 && a < 112.5:
		return South
	case a >= 112.5 && a < 157.5:
		return SouthWest
	case a >= 157.5 && a < 202.5:
		return West
	case a >= 202.5 && a < 247.5:
		return NorthWest
	case a >= 247.5 && a < 292.5:
		return North
	case a >= 292.5 && a < 337.5:
		return NorthEast
	default:
		return East
	}
}

const (
	headingWindow = 10
	headingSpan   = 5
	minMotion     = 1.0
)

// Heading estimates the direction of travel from recent samples.
type Heading struct {
	window []orb.Point
	angle  float64
	known  bool
}

// Add buffers a sample. With at least five samples buffered the heading
// becomes the bearing from the fifth-from-last to the newest sample, unless
// the agent moved no more than a unit on both axes.
func (h *Heading) Add(p orb.Point) {
	h.window = append(h.window, p)
	if len(h.window) > headingWindow {
		h.window = h.window[len(h.window)-headingWindow:]
	}
	if len(h.window) < headingSpan {
		return
	}
	from := h.window[len(h.window)-headingSpan]
	dx, dy := p[0]-from[0], p[1]-from[1]
	if math.Abs(dx) > minMotion || math.Abs(dy) > minMotion {
		h.angle = math.Atan2(dy, dx)
		h.known = true
	}
}

// Angle returns the heading in radians and whether one is known.
func (h *Heading) Angle() (float64, bool) {
	return h.angle, h.known
}

// Reset forgets every sample and the heading.
func (h *Heading) Reset() {
	*h = Heading{}
}

// Guide picks the guidance bucket from pos towards target.
func Guide(pos, target orb.Point, h *Heading) Direction {
	b := Bearing(pos, target)
	if heading, ok := h.Angle(); ok {
		return Relative(b, heading)
	}
	return Absolute(b)
}
