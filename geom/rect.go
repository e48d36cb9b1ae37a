package geom

import "math"

// Rect is an axis-aligned bounding box in normalized image coordinates.
// Left/Top/Right/Bottom are fractions of the frame size, expected in [0,1].
// Inverted or degenerate rectangles are legal: their area is zero and they
// never intersect anything.
type Rect struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// NewRect creates a rectangle from normalized corner coordinates.
func NewRect(left, top, right, bottom float64) Rect {
	return Rect{
		Left:   left,
		Top:    top,
		Right:  right,
		Bottom: bottom,
	}
}

// Width returns the rectangle width, zero for inverted rectangles.
func (r Rect) Width() float64 {
	return math.Max(0, r.Right-r.Left)
}

// Height returns the rectangle height, zero for inverted rectangles.
func (r Rect) Height() float64 {
	return math.Max(0, r.Bottom-r.Top)
}

// Area returns the rectangle area in normalized units.
func (r Rect) Area() float64 {
	return r.Width() * r.Height()
}

// Empty reports whether the rectangle has zero area.
func (r Rect) Empty() bool {
	return r.Area() == 0
}

// Center returns the rectangle's center point.
func (r Rect) Center() Point {
	return Point{
		X: (r.Left + r.Right) / 2.0,
		Y: (r.Top + r.Bottom) / 2.0,
	}
}

// Diagonal returns the length of the rectangle's diagonal.
func (r Rect) Diagonal() float64 {
	return math.Sqrt(math.Pow(r.Width(), 2) + math.Pow(r.Height(), 2))
}

// IoU calculates Intersection over Union between two rectangles.
func (r Rect) IoU(other Rect) float64 {
	if r.Empty() || other.Empty() {
		return 0.0
	}
	xA := math.Max(r.Left, other.Left)
	yA := math.Max(r.Top, other.Top)
	xB := math.Min(r.Right, other.Right)
	yB := math.Min(r.Bottom, other.Bottom)

	interArea := math.Max(0, xB-xA) * math.Max(0, yB-yA)
	if interArea == 0 {
		return 0.0
	}
	return interArea / (r.Area() + other.Area() - interArea)
}

// CenterDistance returns the Euclidean distance between the centers of two rectangles.
func (r Rect) CenterDistance(other Rect) float64 {
	return r.Center().DistanceTo(other.Center())
}

// TranslateTo returns a copy of the rectangle moved so its center lands on the given point.
func (r Rect) TranslateTo(center Point) Rect {
	halfW := r.Width() / 2.0
	halfH := r.Height() / 2.0
	return Rect{
		Left:   center.X - halfW,
		Top:    center.Y - halfH,
		Right:  center.X + halfW,
		Bottom: center.Y + halfH,
	}
}

// Point is a position in normalized image coordinates.
type Point struct {
	X float64
	Y float64
}

// NewPoint creates a point from normalized coordinates.
func NewPoint(x, y float64) Point {
	return Point{
		X: x,
		Y: y,
	}
}

// DistanceTo returns the Euclidean distance to another point.
func (p Point) DistanceTo(other Point) float64 {
	return math.Sqrt(math.Pow(p.X-other.X, 2) + math.Pow(p.Y-other.Y, 2))
}
