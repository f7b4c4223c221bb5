// Package presenter renders engine results in the brace-delimited text form
// produced by the original command-line tool, e.g. {1, 2} or {{1, 'e', 2}}.
package presenter

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/rectrel/internal/core/model"
)

// IDs formats an id list as {1, 2, 3}; empty renders as {}.
func IDs(ids []int) string {
	var b strings.Builder
	b.WriteByte('{')
	writeIDs(&b, ids)
	b.WriteByte('}')
	return b.String()
}

func Groups(groups []model.OverlapGroup) string {
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = IDs(g.Members)
	}
	return wrap(parts)
}

func Contained(entries []model.ContainmentEntry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = IDs(append([]int{e.Outer}, e.Inner...))
	}
	return wrap(parts)
}

func Edges(edges []model.AdjacencyEdge) string {
	parts := make([]string, len(edges))
	for i, e := range edges {
		parts[i] = fmt.Sprintf("{%d, '%s', %d}", e.A, e.Dir, e.B)
	}
	return wrap(parts)
}

// WriteAnalysis prints one labelled line per result in the original order.
func WriteAnalysis(w io.Writer, a model.Analysis) error {
	lines := make([]string, 0, 5)
	if a.Point != nil {
		lines = append(lines, "Enclosing rectangles: "+IDs(a.Enclosing))
	}
	lines = append(lines,
		"Non-overlapping rectangles: "+IDs(a.NonOverlapping),
		"Overlapping rectangles: "+Groups(a.OverlapGroups),
		"Contained rectangles: "+Contained(a.Contained),
		"Abutting rectangles: "+Edges(a.Abutting),
	)
	for _, l := range lines {
		if _, err := io.WriteString(w, l+"\n"); err != nil {
			return fmt.Errorf("write analysis: %w", err)
		}
	}
	return nil
}

func writeIDs(b *strings.Builder, ids []int) {
	for i, id := range ids {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(id))
	}
}

func wrap(parts []string) string {
	return "{" + strings.Join(parts, ", ") + "}"
}
