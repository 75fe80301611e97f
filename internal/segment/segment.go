// Package segment labels connected runs of non-transparent pixels in a
// sheet and describes each resulting component.
package segment

import (
	"image"

	"sprite-slicer/internal/raster"
	"sprite-slicer/pkg/geometry"

	"github.com/golang/glog"
	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/stat"
)

// Connectivity selects which neighbours join a pixel to a component.
type Connectivity int

const (
	// Four joins pixels that share an edge.
	Four Connectivity = 4
	// Eight also joins pixels that share only a corner.
	Eight Connectivity = 8
)

// Options controls segmentation.
type Options struct {
	// Pixels with alpha strictly above this value are opaque.
	AlphaThreshold int
	Connectivity   Connectivity
}

// DefaultOptions returns the default segmentation options.
func DefaultOptions() Options {
	return Options{
		AlphaThreshold: 10,
		Connectivity:   Four,
	}
}

// Component is a maximal connected set of opaque pixels.
type Component struct {
	ID       int
	Bounds   geometry.RectInt
	Area     int
	Density  float64 // Area / bounding box area
	Solidity float64 // Area / convex hull area

	// ColorVariance is the mean of the population variances of the R, G
	// and B channels (0-255 scale) over member pixels.
	ColorVariance float64

	Centroid  geometry.Point2D
	MeanColor colorful.Color
}

// Result holds the components of one sheet and the per-pixel labels.
type Result struct {
	Width      int
	Height     int
	Components []Component
	// Labels holds the component ID of each pixel, row-major, -1 for
	// transparent pixels.
	Labels []int32
}

// LabelAt returns the component ID at (x, y), or -1.
func (r *Result) LabelAt(x, y int) int {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return -1
	}
	return int(r.Labels[y*r.Width+x])
}

var (
	dx4 = []int{-1, 1, 0, 0}
	dy4 = []int{0, 0, -1, 1}
	dx8 = []int{-1, 1, 0, 0, -1, 1, -1, 1}
	dy8 = []int{0, 0, -1, 1, -1, -1, 1, 1}
)

// Segment labels every pixel whose alpha exceeds the threshold into
// exactly one component. Components are numbered in raster scan order of
// their first pixel. An all-transparent raster yields no components.
func Segment(r *raster.Raster, opts Options) *Result {
	w, h := r.Width, r.Height
	res := &Result{
		Width:  w,
		Height: h,
		Labels: make([]int32, w*h),
	}
	for i := range res.Labels {
		res.Labels[i] = -1
	}

	dx, dy := dx4, dy4
	if opts.Connectivity == Eight {
		dx, dy = dx8, dy8
	}
	opaque := func(idx int) bool {
		return int(r.Pix[idx*4+3]) > opts.AlphaThreshold
	}

	var pixels []int
	stack := make([]image.Point, 0, 1024)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			start := y*w + x
			if res.Labels[start] >= 0 || !opaque(start) {
				continue
			}

			id := int32(len(res.Components))
			pixels = pixels[:0]
			stack = append(stack[:0], image.Point{X: x, Y: y})
			res.Labels[start] = id

			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				pixels = append(pixels, p.Y*w+p.X)

				for d := range dx {
					nx, ny := p.X+dx[d], p.Y+dy[d]
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					ni := ny*w + nx
					if res.Labels[ni] >= 0 || !opaque(ni) {
						continue
					}
					res.Labels[ni] = id
					stack = append(stack, image.Point{X: nx, Y: ny})
				}
			}

			c := describe(r, int(id), pixels)
			glog.V(2).Infof("component %d: bounds %+v area %d density %.2f solidity %.2f variance %.1f",
				c.ID, c.Bounds, c.Area, c.Density, c.Solidity, c.ColorVariance)
			res.Components = append(res.Components, c)
		}
	}

	return res
}

// describe computes the geometric and color descriptors of one component.
func describe(r *raster.Raster, id int, pixels []int) Component {
	w := r.Width
	n := len(pixels)

	minX, minY := w, r.Height
	maxX, maxY := -1, -1
	var sumX, sumY float64
	reds := make([]float64, n)
	greens := make([]float64, n)
	blues := make([]float64, n)

	// Leftmost and rightmost pixel of every row, for the hull.
	rowMin := map[int]int{}
	rowMax := map[int]int{}

	for i, idx := range pixels {
		x, y := idx%w, idx/w
		minX = min(minX, x)
		maxX = max(maxX, x)
		minY = min(minY, y)
		maxY = max(maxY, y)
		sumX += float64(x) + 0.5
		sumY += float64(y) + 0.5

		if v, ok := rowMin[y]; !ok || x < v {
			rowMin[y] = x
		}
		if v, ok := rowMax[y]; !ok || x > v {
			rowMax[y] = x
		}

		o := idx * 4
		reds[i] = float64(r.Pix[o])
		greens[i] = float64(r.Pix[o+1])
		blues[i] = float64(r.Pix[o+2])
	}

	bounds := geometry.NewRectInt(minX, minY, maxX-minX+1, maxY-minY+1)
	density := float64(n) / float64(bounds.Area())

	solidity := density
	corners := make([]geometry.Point2D, 0, len(rowMin)*4)
	for y, x := range rowMin {
		x2 := rowMax[y] + 1
		fy := float64(y)
		corners = append(corners,
			geometry.Point2D{X: float64(x), Y: fy},
			geometry.Point2D{X: float64(x), Y: fy + 1},
			geometry.Point2D{X: float64(x2), Y: fy},
			geometry.Point2D{X: float64(x2), Y: fy + 1},
		)
	}
	if hullArea := geometry.PolygonArea(geometry.ConvexHull(corners)); hullArea > 0 {
		solidity = min(1, float64(n)/hullArea)
	}

	rMean, rVar := stat.PopMeanVariance(reds, nil)
	gMean, gVar := stat.PopMeanVariance(greens, nil)
	bMean, bVar := stat.PopMeanVariance(blues, nil)

	return Component{
		ID:            id,
		Bounds:        bounds,
		Area:          n,
		Density:       density,
		Solidity:      solidity,
		ColorVariance: (rVar + gVar + bVar) / 3,
		Centroid:      geometry.Point2D{X: sumX / float64(n), Y: sumY / float64(n)},
		MeanColor:     colorful.Color{R: rMean / 255, G: gMean / 255, B: bMean / 255},
	}
}

// TotalArea returns the summed pixel area of the components.
func TotalArea(components []Component) int {
	total := 0
	for _, c := range components {
		total += c.Area
	}
	return total
}

// LargestArea returns the area of the largest component, or 0.
func LargestArea(components []Component) int {
	largest := 0
	for _, c := range components {
		largest = max(largest, c.Area)
	}
	return largest
}

// OpaqueBounds returns the union of all component bounds.
func OpaqueBounds(components []Component) geometry.RectInt {
	var out geometry.RectInt
	for _, c := range components {
		out = out.Union(c.Bounds)
	}
	return out
}
