// Package slicer cuts frames out of a sheet once its decision is known.
package slicer

import (
	"math"
	"sort"

	"sprite-slicer/internal/cluster"
	"sprite-slicer/internal/decision"
	"sprite-slicer/internal/raster"
	"sprite-slicer/internal/segment"
	"sprite-slicer/internal/sheet"
	"sprite-slicer/pkg/geometry"

	"github.com/golang/glog"
)

// CoreScoreMin is the classifier score at which a component counts as
// core matter for pivot placement.
const CoreScoreMin = 0.5

// Default pivot for frames without usable components: bottom centre.
const (
	defaultPivotX = 0.5
	defaultPivotY = 1.0
)

// group is a frame candidate before ordering.
type group struct {
	bounds  geometry.RectInt
	members []segment.Component
	masked  bool // Copy only member pixels
}

// Slice produces the frames of a sheet. Scores maps component IDs to
// classifier scores; components without a score count as non-core.
func Slice(r *raster.Raster, seg *segment.Result, clusters []cluster.Cluster, d decision.Decision, scores map[int]float64) []*sheet.FrameSlice {
	var groups []group
	switch d {
	case decision.Whole:
		groups = []group{wholeGroup(r, seg.Components)}
	case decision.Two:
		if len(clusters) >= 2 {
			groups = twoGroups(clusters)
		} else {
			glog.Warningf("two frames forced with %d clusters, splitting opaque bounds", len(clusters))
			groups = halfGroups(r, seg.Components)
		}
	default:
		if len(clusters) == 0 {
			groups = []group{wholeGroup(r, seg.Components)}
		} else {
			groups = make([]group, len(clusters))
			for i, c := range clusters {
				groups[i] = group{bounds: c.Bounds, members: c.Members, masked: true}
			}
		}
	}

	rects := make([]geometry.RectInt, len(groups))
	for i, g := range groups {
		rects[i] = g.bounds
	}
	order, rows := ReadingOrder(rects)

	frames := make([]*sheet.FrameSlice, 0, len(groups))
	for _, gi := range order {
		g := groups[gi]
		f := cut(r, seg, g, scores)
		f.Index = len(frames)
		f.Row = rows[gi]
		frames = append(frames, f)
		glog.V(1).Infof("frame %d: %+v row %d pivot (%.2f, %.2f) components %v",
			f.Index, f.Rect(), f.Row, f.PivotX, f.PivotY, f.Components)
	}
	return frames
}

func wholeGroup(r *raster.Raster, components []segment.Component) group {
	bounds := segment.OpaqueBounds(components)
	if bounds.Empty() {
		bounds = r.Bounds()
	}
	return group{bounds: bounds, members: components}
}

// twoGroups seeds two frames with the largest clusters and attaches every
// other cluster to the seed whose centre is nearest.
func twoGroups(clusters []cluster.Cluster) []group {
	sorted := make([]cluster.Cluster, len(clusters))
	copy(sorted, clusters)
	cluster.SortBySize(sorted)

	seeds := []group{
		{bounds: sorted[0].Bounds, members: append([]segment.Component(nil), sorted[0].Members...), masked: true},
		{bounds: sorted[1].Bounds, members: append([]segment.Component(nil), sorted[1].Members...), masked: true},
	}
	centres := []geometry.Point2D{sorted[0].Bounds.Center(), sorted[1].Bounds.Center()}

	for _, c := range sorted[2:] {
		p := c.Bounds.Center()
		k := 0
		if p.Distance(centres[1]) < p.Distance(centres[0]) {
			k = 1
		}
		seeds[k].bounds = seeds[k].bounds.Union(c.Bounds)
		seeds[k].members = append(seeds[k].members, c.Members...)
	}
	for i := range seeds {
		sort.Slice(seeds[i].members, func(a, b int) bool { return seeds[i].members[a].ID < seeds[i].members[b].ID })
	}
	return seeds
}

// halfGroups splits the opaque bounds in two across the longer axis.
func halfGroups(r *raster.Raster, components []segment.Component) []group {
	bounds := segment.OpaqueBounds(components)
	if bounds.Empty() {
		bounds = r.Bounds()
	}

	var a, b geometry.RectInt
	if bounds.Width >= bounds.Height {
		half := bounds.Width / 2
		a = geometry.NewRectInt(bounds.X, bounds.Y, half, bounds.Height)
		b = geometry.NewRectInt(bounds.X+half, bounds.Y, bounds.Width-half, bounds.Height)
	} else {
		half := bounds.Height / 2
		a = geometry.NewRectInt(bounds.X, bounds.Y, bounds.Width, half)
		b = geometry.NewRectInt(bounds.X, bounds.Y+half, bounds.Width, bounds.Height-half)
	}

	out := []group{{bounds: a}, {bounds: b}}
	for _, c := range components {
		for i := range out {
			if c.Bounds.Intersects(out[i].bounds) {
				out[i].members = append(out[i].members, c)
			}
		}
	}
	return out
}

func cut(r *raster.Raster, seg *segment.Result, g group, scores map[int]float64) *sheet.FrameSlice {
	rect := g.bounds.Intersect(r.Bounds())

	ids := make([]int, len(g.members))
	own := make(map[int]bool, len(g.members))
	for i, m := range g.members {
		ids[i] = m.ID
		own[m.ID] = true
	}

	var keep func(x, y int) bool
	if g.masked {
		keep = func(x, y int) bool { return own[seg.LabelAt(x, y)] }
	}

	px, py := Pivot(rect, g.members, scores)
	return &sheet.FrameSlice{
		X:          rect.X,
		Y:          rect.Y,
		Width:      rect.Width,
		Height:     rect.Height,
		PivotX:     px,
		PivotY:     py,
		Components: ids,
		Image:      r.Crop(rect, keep),
	}
}

// Pivot places the anchor of a frame: horizontally at the area-weighted
// centroid of its core components, vertically at their lowest edge. With
// no core component every member is used. The result is normalised to
// rect and clamped to [0,1].
func Pivot(rect geometry.RectInt, members []segment.Component, scores map[int]float64) (float64, float64) {
	if rect.Empty() {
		return defaultPivotX, defaultPivotY
	}

	var core []segment.Component
	for _, m := range members {
		if s, ok := scores[m.ID]; ok && s >= CoreScoreMin {
			core = append(core, m)
		}
	}
	if len(core) == 0 {
		core = members
	}

	var weighted, area float64
	bottom := math.Inf(-1)
	for _, m := range core {
		a := float64(m.Area)
		weighted += a * m.Centroid.X
		area += a
		bottom = math.Max(bottom, float64(m.Bounds.Bottom()))
	}
	if area <= 0 {
		return defaultPivotX, defaultPivotY
	}

	px := (weighted/area - float64(rect.X)) / float64(rect.Width)
	py := (bottom - float64(rect.Y)) / float64(rect.Height)
	return clamp01(px), clamp01(py)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// ReadingOrder orders rectangles in rows, top to bottom and left to right
// within a row. A rectangle joins the current row when its vertical span
// overlaps the row's span so far. It returns the indices in reading order
// and the row of each input rectangle.
func ReadingOrder(rects []geometry.RectInt) (order []int, rows []int) {
	order = make([]int, len(rects))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := rects[order[a]], rects[order[b]]
		if ra.Y != rb.Y {
			return ra.Y < rb.Y
		}
		return ra.X < rb.X
	})

	rows = make([]int, len(rects))
	row, rowBottom := -1, 0
	for i, idx := range order {
		rc := rects[idx]
		if i == 0 || rc.Y >= rowBottom {
			row++
			rowBottom = rc.Bottom()
		} else {
			rowBottom = max(rowBottom, rc.Bottom())
		}
		rows[idx] = row
	}

	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if rows[ia] != rows[ib] {
			return rows[ia] < rows[ib]
		}
		return rects[ia].X < rects[ib].X
	})
	return order, rows
}
