// Package engine computes spatial relationships over a rectangle set.
//
// Every query is a pure function of the set it is given; the engine keeps no
// state between calls and never mutates its input.
package engine

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/mohammed-shakir/rectrel/internal/core/model"
	"github.com/mohammed-shakir/rectrel/internal/geom"
)

type OverlapMode string

const (
	// boundary touches count as overlap
	OverlapTouch  OverlapMode = "touch"
	OverlapStrict OverlapMode = "strict"
)

type GroupingMode string

const (
	// seed plus direct neighbors, single forward pass
	GroupOneHop GroupingMode = "onehop"
	// full connected components of the overlap graph
	GroupComponents GroupingMode = "components"
)

// ObserveFunc receives the duration of each query and the set size.
type ObserveFunc func(query string, rects int, d time.Duration)

type Options struct {
	Epsilon  float64
	Overlap  OverlapMode
	Grouping GroupingMode
	Observe  ObserveFunc
}

func DefaultOptions() Options {
	return Options{
		Epsilon:  geom.DefaultEpsilon,
		Overlap:  OverlapTouch,
		Grouping: GroupOneHop,
	}
}

// ParseOverlapMode accepts "touch" or "strict", case-insensitive; empty means touch.
func ParseOverlapMode(s string) (OverlapMode, error) {
	switch m := OverlapMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return OverlapTouch, nil
	case OverlapTouch, OverlapStrict:
		return m, nil
	default:
		return "", fmt.Errorf("unknown overlap mode %q (want touch or strict)", s)
	}
}

func ParseGroupingMode(s string) (GroupingMode, error) {
	switch m := GroupingMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return GroupOneHop, nil
	case GroupOneHop, GroupComponents:
		return m, nil
	default:
		return "", fmt.Errorf("unknown grouping mode %q (want onehop or components)", s)
	}
}

// CheckEpsilon rejects tolerances that would make adjacency meaningless:
// zero, negative, NaN or infinite.
func CheckEpsilon(eps float64) error {
	if !(eps > 0) || math.IsInf(eps, 0) {
		return fmt.Errorf("epsilon must be a finite value > 0 (got %g)", eps)
	}
	return nil
}

type Engine struct {
	tol      geom.Tolerance
	overlaps func(a, b model.Rectangle) bool
	grouping GroupingMode
	observe  ObserveFunc
	opts     Options
}

// New builds an engine; zero-valued fields and unusable epsilons fall back
// to DefaultOptions.
func New(opts Options) *Engine {
	def := DefaultOptions()
	if CheckEpsilon(opts.Epsilon) != nil {
		opts.Epsilon = def.Epsilon
	}
	if opts.Overlap == "" {
		opts.Overlap = def.Overlap
	}
	if opts.Grouping == "" {
		opts.Grouping = def.Grouping
	}

	e := &Engine{
		tol:      geom.Tolerance(opts.Epsilon),
		overlaps: geom.Overlaps,
		grouping: opts.Grouping,
		observe:  opts.Observe,
		opts:     opts,
	}
	if opts.Overlap == OverlapStrict {
		e.overlaps = geom.OverlapsStrict
	}
	return e
}

// Options returns the effective options after defaults were applied.
func (e *Engine) Options() Options { return e.opts }

func (e *Engine) track(query string, s model.Set) func() {
	if e.observe == nil {
		return func() {}
	}
	start := time.Now()
	return func() { e.observe(query, s.Len(), time.Since(start)) }
}

// FindEnclosing returns, in input order, the ids of rectangles containing p.
func (e *Engine) FindEnclosing(s model.Set, p model.Point) ([]int, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	defer e.track("enclosing", s)()

	out := []int{}
	for i := range s.Len() {
		r := s.At(i)
		if geom.PointIn(p, r) {
			out = append(out, r.ID)
		}
	}
	return out, nil
}

// FindNonOverlapping returns, ascending, the ids that overlap nothing else.
func (e *Engine) FindNonOverlapping(s model.Set) []int {
	defer e.track("non_overlapping", s)()

	out := []int{}
	for i := range s.Len() {
		r1 := s.At(i)
		isolated := true
		for j := range s.Len() {
			if i != j && e.overlaps(r1, s.At(j)) {
				isolated = false
				break
			}
		}
		if isolated {
			out = append(out, r1.ID)
		}
	}
	slices.Sort(out)
	return out
}

// FindContained lists, for each rectangle in input order, the other
// rectangles lying inside it. Rectangles enclosing nothing are omitted.
func (e *Engine) FindContained(s model.Set) []model.ContainmentEntry {
	defer e.track("contained", s)()

	out := []model.ContainmentEntry{}
	for i := range s.Len() {
		outer := s.At(i)
		var inner []int
		for j := range s.Len() {
			if i == j {
				continue
			}
			if r2 := s.At(j); geom.Contains(r2, outer) {
				inner = append(inner, r2.ID)
			}
		}
		if len(inner) > 0 {
			out = append(out, model.ContainmentEntry{Outer: outer.ID, Inner: inner})
		}
	}
	return out
}

// FindAbutting evaluates every ordered pair and reports edge contacts from
// the first rectangle's perspective. Both (a,b) and (b,a) are reported.
func (e *Engine) FindAbutting(s model.Set) []model.AdjacencyEdge {
	defer e.track("abutting", s)()

	out := []model.AdjacencyEdge{}
	for i := range s.Len() {
		r1 := s.At(i)
		for j := range s.Len() {
			if i == j {
				continue
			}
			r2 := s.At(j)
			for _, d := range e.tol.Abuts(r1, r2) {
				out = append(out, model.AdjacencyEdge{A: r1.ID, Dir: d, B: r2.ID})
			}
		}
	}
	return out
}

// Analyze runs every query over s. The point query runs only when p is
// non-nil; a malformed point fails the whole call.
func (e *Engine) Analyze(s model.Set, p *model.Point) (model.Analysis, error) {
	var a model.Analysis
	if p != nil {
		ids, err := e.FindEnclosing(s, *p)
		if err != nil {
			return model.Analysis{}, err
		}
		pt := *p
		a.Point = &pt
		a.Enclosing = ids
	}
	a.NonOverlapping = e.FindNonOverlapping(s)
	a.OverlapGroups = e.FindOverlapGroups(s)
	a.Contained = e.FindContained(s)
	a.Abutting = e.FindAbutting(s)
	return a, nil
}
