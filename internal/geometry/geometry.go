package geometry

import "math"

// Point is a 2D landmark position in normalized image coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

func (p Point) Scale(k float64) Point {
	return Point{X: p.X * k, Y: p.Y * k}
}

func (p Point) Dot(q Point) float64 {
	return p.X*q.X + p.Y*q.Y
}

func (p Point) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// Angle returns the angle in degrees at vertex b formed by the rays b->a and
// b->c. The result is always in [0, 180].
func Angle(a, b, c Point) float64 {
	radians := math.Atan2(c.Y-b.Y, c.X-b.X) - math.Atan2(a.Y-b.Y, a.X-b.X)
	angle := math.Abs(radians * 180.0 / math.Pi)

	if angle > 180.0 {
		angle = 360 - angle
	}

	return angle
}

// SagDistance returns the distance from hip to the line through shoulder and
// ankle. The projection parameter is not clamped to the segment. Coincident
// shoulder and ankle define no line and yield 0.
func SagDistance(shoulder, hip, ankle Point) float64 {
	sa := ankle.Sub(shoulder)
	sh := hip.Sub(shoulder)

	denom := sa.Dot(sa)
	if denom == 0 {
		return 0
	}

	t := sh.Dot(sa) / denom
	closest := shoulder.Add(sa.Scale(t))

	return hip.Sub(closest).Norm()
}
