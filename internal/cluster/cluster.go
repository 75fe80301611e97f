// Package cluster groups components that belong to the same visual frame.
package cluster

import (
	"sort"

	"sprite-slicer/internal/segment"
	"sprite-slicer/pkg/geometry"
)

// DefaultGap is the default proximity tolerance in pixels.
const DefaultGap = 2

// Cluster is a set of components believed to form one frame.
type Cluster struct {
	Members []segment.Component // Ordered by component ID
	Bounds  geometry.RectInt    // Union of member bounds
}

// Area returns the area of the cluster bounds.
func (c Cluster) Area() int {
	return c.Bounds.Area()
}

// MemberCount returns the number of components in the cluster.
func (c Cluster) MemberCount() int {
	return len(c.Members)
}

// MemberArea returns the summed pixel area of the members.
func (c Cluster) MemberArea() int {
	return segment.TotalArea(c.Members)
}

// MemberIDs returns the component IDs of the members.
func (c Cluster) MemberIDs() []int {
	ids := make([]int, len(c.Members))
	for i, m := range c.Members {
		ids[i] = m.ID
	}
	return ids
}

// Build merges components whose bounds, grown by gap pixels, touch or
// overlap, and keeps merging the resulting groups until no two groups are
// that close. The relation is symmetric and the merge runs to a fixpoint,
// so the partition does not depend on component order.
//
// Clusters are returned sorted by top then left edge.
func Build(components []segment.Component, gap int) []Cluster {
	if len(components) == 0 {
		return nil
	}
	if gap < 0 {
		gap = 0
	}

	uf := newUnionFind(len(components))
	bounds := make([]geometry.RectInt, len(components))
	for i, c := range components {
		bounds[i] = c.Bounds
	}

	for changed := true; changed; {
		changed = false
		for i := range components {
			if uf.find(i) != i {
				continue
			}
			for j := i + 1; j < len(components); j++ {
				if uf.find(j) != j {
					continue
				}
				if !bounds[i].Expand(gap).Intersects(bounds[j]) {
					continue
				}
				// i stays the root: it is the lower index.
				uf.union(i, j)
				bounds[i] = bounds[i].Union(bounds[j])
				changed = true
			}
		}
	}

	byRoot := map[int]*Cluster{}
	var roots []int
	for i, c := range components {
		root := uf.find(i)
		cl, ok := byRoot[root]
		if !ok {
			cl = &Cluster{}
			byRoot[root] = cl
			roots = append(roots, root)
		}
		cl.Members = append(cl.Members, c)
		cl.Bounds = cl.Bounds.Union(c.Bounds)
	}

	out := make([]Cluster, 0, len(roots))
	for _, root := range roots {
		cl := byRoot[root]
		sort.Slice(cl.Members, func(a, b int) bool { return cl.Members[a].ID < cl.Members[b].ID })
		out = append(out, *cl)
	}
	SortByPosition(out)
	return out
}

// SortByPosition orders clusters by top edge, then left edge, then size.
func SortByPosition(clusters []Cluster) {
	sort.SliceStable(clusters, func(i, j int) bool {
		a, b := clusters[i].Bounds, clusters[j].Bounds
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Area() > b.Area()
	})
}

// SortBySize orders clusters by member count descending, then bounds area
// descending, then position.
func SortBySize(clusters []Cluster) {
	sort.SliceStable(clusters, func(i, j int) bool {
		a, b := clusters[i], clusters[j]
		if a.MemberCount() != b.MemberCount() {
			return a.MemberCount() > b.MemberCount()
		}
		if a.Area() != b.Area() {
			return a.Area() > b.Area()
		}
		if a.Bounds.Y != b.Bounds.Y {
			return a.Bounds.Y < b.Bounds.Y
		}
		return a.Bounds.X < b.Bounds.X
	})
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

// union links the larger index under the smaller so that a group's root is
// always its lowest member index.
func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
}
