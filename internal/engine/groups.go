package engine

import (
	"slices"

	"github.com/mohammed-shakir/rectrel/internal/core/model"
)

// overlapGraph returns, per input position, the ascending ids of every other
// rectangle overlapping it.
func (e *Engine) overlapGraph(s model.Set) [][]int {
	n := s.Len()
	adj := make([][]int, n)
	for i := range n {
		r1 := s.At(i)
		for j := i + 1; j < n; j++ {
			r2 := s.At(j)
			if e.overlaps(r1, r2) {
				adj[i] = append(adj[i], r2.ID)
				adj[j] = append(adj[j], r1.ID)
			}
		}
	}
	for i := range adj {
		slices.Sort(adj[i])
	}
	return adj
}

// FindOverlapGroups partitions the overlapping rectangles into groups.
//
// In the default one-hop mode a single pass walks the set in input order; the
// first unprocessed rectangle with any overlap seeds a group made of itself
// and its direct neighbors that are still unprocessed. Overlap chains longer
// than one hop may therefore be split across groups. Components mode merges
// whole connected components instead.
func (e *Engine) FindOverlapGroups(s model.Set) []model.OverlapGroup {
	defer e.track("overlap_groups", s)()

	adj := e.overlapGraph(s)
	if e.grouping == GroupComponents {
		return componentGroups(s, adj)
	}

	processed := make(map[int]struct{}, s.Len())
	out := []model.OverlapGroup{}
	for i := range s.Len() {
		id := s.At(i).ID
		if len(adj[i]) == 0 {
			continue
		}
		if _, done := processed[id]; done {
			continue
		}
		processed[id] = struct{}{}
		members := make([]int, 1, len(adj[i])+1)
		members[0] = id
		for _, nb := range adj[i] {
			if _, done := processed[nb]; done {
				continue
			}
			processed[nb] = struct{}{}
			members = append(members, nb)
		}
		out = append(out, model.OverlapGroup{Seed: id, Members: members})
	}
	return out
}

// componentGroups emits one group per connected component of size > 1. The
// seed is the component's first rectangle in input order, followed by the
// remaining ids ascending. Groups are ordered by seed position.
func componentGroups(s model.Set, adj [][]int) []model.OverlapGroup {
	n := s.Len()
	pos := make(map[int]int, n)
	for i := range n {
		pos[s.At(i).ID] = i
	}

	uf := newUnionFind(n)
	for i, nbrs := range adj {
		for _, id := range nbrs {
			uf.union(i, pos[id])
		}
	}

	byRoot := make(map[int][]int)
	var roots []int
	for i := range n {
		if len(adj[i]) == 0 {
			continue
		}
		root := uf.find(i)
		if _, ok := byRoot[root]; !ok {
			roots = append(roots, root)
		}
		byRoot[root] = append(byRoot[root], i)
	}

	out := make([]model.OverlapGroup, 0, len(roots))
	for _, root := range roots {
		idx := byRoot[root]
		seed := s.At(idx[0]).ID
		rest := make([]int, 0, len(idx)-1)
		for _, i := range idx[1:] {
			rest = append(rest, s.At(i).ID)
		}
		slices.Sort(rest)
		out = append(out, model.OverlapGroup{Seed: seed, Members: append([]int{seed}, rest...)})
	}
	return out
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
