// Package geom holds the pairwise predicates used by the relationship engine.
package geom

import (
	"math"

	"github.com/mohammed-shakir/rectrel/internal/core/model"
)

// DefaultEpsilon is the absolute tolerance used for edge coincidence.
const DefaultEpsilon = 1e-10

// Tolerance decides float equality. Ordering comparisons never use it.
type Tolerance float64

func (t Tolerance) Equal(a, b float64) bool {
	return math.Abs(a-b) < float64(t)
}

// boundary inclusive
func PointIn(p model.Point, r model.Rectangle) bool {
	return r.X1 <= p.X && p.X <= r.X2 && r.Y1 <= p.Y && p.Y <= r.Y2
}

// Overlaps reports whether a and b intersect or touch along an edge or corner.
// It is false only when one is strictly left, right, above or below the other.
func Overlaps(a, b model.Rectangle) bool {
	return !(a.X1 > b.X2 || a.X2 < b.X1 || a.Y1 > b.Y2 || a.Y2 < b.Y1)
}

// OverlapsStrict reports a positive-area intersection; touching does not count.
func OverlapsStrict(a, b model.Rectangle) bool {
	return !(a.X1 >= b.X2 || a.X2 <= b.X1 || a.Y1 >= b.Y2 || a.Y2 <= b.Y1)
}

// Contains reports whether inner lies within outer, boundary inclusive.
func Contains(inner, outer model.Rectangle) bool {
	return outer.X1 <= inner.X1 && outer.Y1 <= inner.Y1 &&
		outer.X2 >= inner.X2 && outer.Y2 >= inner.Y2
}

// open-interval projection overlap on x
func xOverlap(a, b model.Rectangle) bool {
	return a.X1 < b.X2 && a.X2 > b.X1
}

func yOverlap(a, b model.Rectangle) bool {
	return a.Y1 < b.Y2 && a.Y2 > b.Y1
}

// Abuts returns the directions, seen from a, in which b touches a.
// The horizontal-edge check (N/S) comes first, then the vertical one (E/W).
// At most one direction per axis is reported.
func (t Tolerance) Abuts(a, b model.Rectangle) []model.Direction {
	var out []model.Direction
	if xOverlap(a, b) {
		switch {
		case t.Equal(a.Y2, b.Y1):
			out = append(out, model.North)
		case t.Equal(a.Y1, b.Y2):
			out = append(out, model.South)
		}
	}
	if yOverlap(a, b) {
		switch {
		case t.Equal(a.X2, b.X1):
			out = append(out, model.East)
		case t.Equal(a.X1, b.X2):
			out = append(out, model.West)
		}
	}
	return out
}
