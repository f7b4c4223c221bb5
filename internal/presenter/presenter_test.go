package presenter

import (
	"strings"
	"testing"

	"github.com/mohammed-shakir/rectrel/internal/core/model"
)

func TestIDs(t *testing.T) {
	if got := IDs(nil); got != "{}" {
		t.Fatalf("IDs(nil)=%q want {}", got)
	}
	if got := IDs([]int{3, 1, 2}); got != "{3, 1, 2}" {
		t.Fatalf("IDs got %q", got)
	}
}

func TestGroupsContainedEdges(t *testing.T) {
	g := Groups([]model.OverlapGroup{
		{Seed: 1, Members: []int{1, 2}},
		{Seed: 3, Members: []int{3, 4, 5}},
	})
	if g != "{{1, 2}, {3, 4, 5}}" {
		t.Fatalf("Groups got %q", g)
	}
	if got := Groups(nil); got != "{}" {
		t.Fatalf("Groups(nil)=%q want {}", got)
	}

	c := Contained([]model.ContainmentEntry{{Outer: 1, Inner: []int{2, 4}}})
	if c != "{{1, 2, 4}}" {
		t.Fatalf("Contained got %q", c)
	}

	e := Edges([]model.AdjacencyEdge{
		{A: 1, Dir: model.East, B: 2},
		{A: 2, Dir: model.West, B: 1},
	})
	if e != "{{1, 'e', 2}, {2, 'w', 1}}" {
		t.Fatalf("Edges got %q", e)
	}
}

func TestWriteAnalysis_LabelsAndOrder(t *testing.T) {
	var b strings.Builder
	a := model.Analysis{
		Point:          &model.Point{X: 1, Y: 1},
		Enclosing:      []int{1},
		NonOverlapping: []int{},
		OverlapGroups:  []model.OverlapGroup{{Seed: 1, Members: []int{1, 2}}},
		Abutting:       []model.AdjacencyEdge{{A: 1, Dir: model.East, B: 2}},
	}
	if err := WriteAnalysis(&b, a); err != nil {
		t.Fatalf("WriteAnalysis: %v", err)
	}
	want := "Enclosing rectangles: {1}\n" +
		"Non-overlapping rectangles: {}\n" +
		"Overlapping rectangles: {{1, 2}}\n" +
		"Contained rectangles: {}\n" +
		"Abutting rectangles: {{1, 'e', 2}}\n"
	if got := b.String(); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestWriteAnalysis_NoPointOmitsEnclosing(t *testing.T) {
	var b strings.Builder
	if err := WriteAnalysis(&b, model.Analysis{}); err != nil {
		t.Fatalf("WriteAnalysis: %v", err)
	}
	if strings.Contains(b.String(), "Enclosing") {
		t.Fatalf("unexpected enclosing line:\n%s", b.String())
	}
}
