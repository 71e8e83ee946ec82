// Package geom is the geometry kernel shared by the pre-filter, association and
// lifecycle stages of the tracker: intersection-over-union, centroids, and
// distance between boxes.
package geom

import (
	"github.com/chewxy/math32"
)

// Point is a 2D point in input-image coordinates.
type Point struct {
	X float32
	Y float32
}

// Distance returns the Euclidean distance between two points.
func (p Point) Distance(b Point) float32 {
	dx := p.X - b.X
	dy := p.Y - b.Y
	return math32.Sqrt(dx*dx + dy*dy)
}

// Box is an axis-aligned bounding box [x, y, w, h] in input-image coordinates.
// Width and height are expected to be positive; degenerate boxes (zero area)
// are tolerated by IoU, which returns 0 for them.
type Box struct {
	X      float32
	Y      float32
	Width  float32
	Height float32
}

func (b Box) X2() float32 { return b.X + b.Width }
func (b Box) Y2() float32 { return b.Y + b.Height }

func (b Box) Area() float32 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Centroid returns the center point of the box.
func (b Box) Centroid() Point {
	return Point{
		X: b.X + b.Width/2,
		Y: b.Y + b.Height/2,
	}
}

// Diagonal returns the length of the box's diagonal.
func (b Box) Diagonal() float32 {
	return math32.Sqrt(b.Width*b.Width + b.Height*b.Height)
}

func (b Box) intersection(o Box) Box {
	x1 := max(b.X, o.X)
	y1 := max(b.Y, o.Y)
	x2 := min(b.X2(), o.X2())
	y2 := min(b.Y2(), o.Y2())
	if x2 <= x1 || y2 <= y1 {
		return Box{}
	}
	return Box{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// IoU returns the intersection-over-union of two boxes, in [0, 1].
// It is symmetric, and returns 0 when either box has zero area.
func (b Box) IoU(o Box) float32 {
	aArea := b.Area()
	bArea := o.Area()
	if aArea == 0 || bArea == 0 {
		return 0
	}
	inter := b.intersection(o).Area()
	if inter == 0 {
		return 0
	}
	union := aArea + bArea - inter
	return inter / union
}

// Distance returns the distance between the centroids of two boxes.
func Distance(a, b Box) float32 {
	return a.Centroid().Distance(b.Centroid())
}
