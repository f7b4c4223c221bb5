// Package model defines core domain types shared across the service.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrInvalidRectangle = errors.New("invalid rectangle")
	ErrDuplicateID      = fmt.Errorf("%w: duplicate id", ErrInvalidRectangle)
	ErrMalformedPoint   = errors.New("malformed query point")
)

// Rectangle is an axis-aligned rectangle with X1<=X2 and Y1<=Y2.
type Rectangle struct {
	ID int     `json:"id"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

type rectangleWire struct {
	ID *int     `json:"id"`
	X1 *float64 `json:"x1"`
	Y1 *float64 `json:"y1"`
	X2 *float64 `json:"x2"`
	Y2 *float64 `json:"y2"`
}

// UnmarshalJSON requires all five fields; an absent one is an invalid
// rectangle rather than a zero coordinate.
func (r *Rectangle) UnmarshalJSON(b []byte) error {
	var w rectangleWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	var missing []string
	for _, f := range [...]struct {
		name string
		ok   bool
	}{
		{"id", w.ID != nil},
		{"x1", w.X1 != nil},
		{"y1", w.Y1 != nil},
		{"x2", w.X2 != nil},
		{"y2", w.Y2 != nil},
	} {
		if !f.ok {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing field %s", ErrInvalidRectangle, strings.Join(missing, ", "))
	}
	*r = Rectangle{ID: *w.ID, X1: *w.X1, Y1: *w.Y1, X2: *w.X2, Y2: *w.Y2}
	return nil
}

func (r Rectangle) String() string {
	return fmt.Sprintf("{%d, %g, %g, %g, %g}", r.ID, r.X1, r.Y1, r.X2, r.Y2)
}

// Validate reports inverted or non-finite coordinates and negative ids
func (r Rectangle) Validate() error {
	if r.ID < 0 {
		return fmt.Errorf("%w: id %d is negative", ErrInvalidRectangle, r.ID)
	}
	for _, v := range [...]float64{r.X1, r.Y1, r.X2, r.Y2} {
		if !finite(v) {
			return fmt.Errorf("%w: id %d has non-finite coordinate", ErrInvalidRectangle, r.ID)
		}
	}
	if r.X1 > r.X2 {
		return fmt.Errorf("%w: id %d has x1 > x2 (%g > %g)", ErrInvalidRectangle, r.ID, r.X1, r.X2)
	}
	if r.Y1 > r.Y2 {
		return fmt.Errorf("%w: id %d has y1 > y2 (%g > %g)", ErrInvalidRectangle, r.ID, r.Y1, r.Y2)
	}
	return nil
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// UnmarshalJSON requires both coordinates.
func (p *Point) UnmarshalJSON(b []byte) error {
	var w struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.X == nil || w.Y == nil {
		return fmt.Errorf("%w: point needs both x and y", ErrMalformedPoint)
	}
	*p = Point{X: *w.X, Y: *w.Y}
	return nil
}

func (p Point) Validate() error {
	if !finite(p.X) || !finite(p.Y) {
		return fmt.Errorf("%w: (%g, %g)", ErrMalformedPoint, p.X, p.Y)
	}
	return nil
}

// Set is an ordered, validated collection of rectangles with unique ids.
// The zero value is an empty set.
type Set struct {
	rects []Rectangle
}

// NewSet validates rects and copies them into a Set preserving input order.
func NewSet(rects []Rectangle) (Set, error) {
	seen := make(map[int]struct{}, len(rects))
	out := make([]Rectangle, len(rects))
	for i, r := range rects {
		if err := r.Validate(); err != nil {
			return Set{}, fmt.Errorf("rectangle %d: %w", i, err)
		}
		if _, dup := seen[r.ID]; dup {
			return Set{}, fmt.Errorf("rectangle %d: %w %d", i, ErrDuplicateID, r.ID)
		}
		seen[r.ID] = struct{}{}
		out[i] = r
	}
	return Set{rects: out}, nil
}

// MustSet panics on invalid input; intended for tests and fixtures.
func MustSet(rects ...Rectangle) Set {
	s, err := NewSet(rects)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Set) Len() int { return len(s.rects) }

func (s Set) At(i int) Rectangle { return s.rects[i] }

// Rectangles returns a copy of the underlying rectangles in input order.
func (s Set) Rectangles() []Rectangle {
	out := make([]Rectangle, len(s.rects))
	copy(out, s.rects)
	return out
}

// Direction is the side of the first rectangle that the second one touches.
type Direction byte

const (
	North Direction = 'n'
	South Direction = 's'
	East  Direction = 'e'
	West  Direction = 'w'
)

func (d Direction) String() string { return string(rune(d)) }

func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Direction) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("direction: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "n":
		*d = North
	case "s":
		*d = South
	case "e":
		*d = East
	case "w":
		*d = West
	default:
		return fmt.Errorf("direction: unknown value %q", s)
	}
	return nil
}

// OverlapGroup is a seed id plus the ids attached to it by the grouping pass.
// Members starts with Seed.
type OverlapGroup struct {
	Seed    int   `json:"seed"`
	Members []int `json:"members"`
}

type ContainmentEntry struct {
	Outer int   `json:"outer"`
	Inner []int `json:"inner"`
}

type AdjacencyEdge struct {
	A   int       `json:"a"`
	Dir Direction `json:"dir"`
	B   int       `json:"b"`
}

// Analysis bundles every relationship computed for one set.
// Enclosing is nil when no point was supplied and encodes as JSON null;
// with a point it is always a list, possibly empty.
type Analysis struct {
	Point          *Point             `json:"point,omitempty"`
	Enclosing      []int              `json:"enclosing"`
	NonOverlapping []int              `json:"non_overlapping"`
	OverlapGroups  []OverlapGroup     `json:"overlap_groups"`
	Contained      []ContainmentEntry `json:"contained"`
	Abutting       []AdjacencyEdge    `json:"abutting"`
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
