// Package geom holds the small amount of 2D math shared by the grid,
// movement, collision and bot code.
package geom

import "math"

// Point is a 2D coordinate
type Point struct {
	X float64
	Y float64
}

// Add returns p + (dx, dy).
func (p Point) Add(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Toward returns the point dist away from p along angle.
func (p Point) Toward(angle, dist float64) Point {
	return Point{X: p.X + math.Cos(angle)*dist, Y: p.Y + math.Sin(angle)*dist}
}

// DistSq returns the squared distance between a and b.
func DistSq(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}

// Bearing returns the angle of the vector from a to b.
func Bearing(a, b Point) float64 {
	return math.Atan2(b.Y-a.Y, b.X-a.X)
}

// NormalizeAngle wraps an angle into (-π, π]. Non-finite input maps to 0.
func NormalizeAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0
	}
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// AngleDiff returns the signed shortest rotation from source to target.
func AngleDiff(source, target float64) float64 {
	return NormalizeAngle(target - source)
}

// DistSqPointToSegment returns the squared distance from p to segment ab.
func DistSqPointToSegment(p, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	if dx == 0 && dy == 0 {
		return DistSq(p, a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / (dx*dx + dy*dy)
	t = Clamp(t, 0, 1)
	return DistSq(p, Point{X: a.X + t*dx, Y: a.Y + t*dy})
}

// BBox is an axis-aligned bounding box.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// BoxOf returns the smallest box containing pts. An empty slice yields the zero box.
func BoxOf(pts []Point) BBox {
	if len(pts) == 0 {
		return BBox{}
	}
	b := BBox{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b
}

// Expand grows the box by r on every side.
func (b BBox) Expand(r float64) BBox {
	return BBox{MinX: b.MinX - r, MinY: b.MinY - r, MaxX: b.MaxX + r, MaxY: b.MaxY + r}
}

// Overlaps reports whether the boxes intersect (touching edges count).
func (b BBox) Overlaps(o BBox) bool {
	return b.MinX <= o.MaxX && b.MaxX >= o.MinX && b.MinY <= o.MaxY && b.MaxY >= o.MinY
}

// Contains reports whether p lies inside the box.
func (b BBox) Contains(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RoundTo1 rounds a float64 to 1 decimal place to save protocol bytes.
func RoundTo1(v float64) float64 {
	return math.Round(v*10) / 10
}

// RoundTo2 rounds to 2 decimal places; used for headings on the wire.
func RoundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
