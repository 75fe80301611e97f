// Package alphametrics projects a sheet's alpha channel onto rows and
// columns and scores how sharply opaque density dips between regions.
package alphametrics

import (
	"sprite-slicer/internal/raster"

	"gonum.org/v1/gonum/floats"
)

// Metrics holds the valley scores of one sheet, each in [0,1].
type Metrics struct {
	RowValleyScore float64 // Dip along the vertical axis (gap between rows of frames)
	ColValleyScore float64 // Dip along the horizontal axis (gap between columns)

	RowProfile []float64 // Opaque pixel count per row
	ColProfile []float64 // Opaque pixel count per column
}

// Compute builds the row and column profiles of pixels whose alpha exceeds
// alphaThreshold and scores them.
func Compute(r *raster.Raster, alphaThreshold int) Metrics {
	rows := make([]float64, r.Height)
	cols := make([]float64, r.Width)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			if int(r.Pix[(y*r.Width+x)*4+3]) > alphaThreshold {
				rows[y]++
				cols[x]++
			}
		}
	}
	return Metrics{
		RowValleyScore: ValleyScore(rows),
		ColValleyScore: ValleyScore(cols),
		RowProfile:     rows,
		ColProfile:     cols,
	}
}

// ValleyScore measures the deepest dip in a density profile. For every bin
// between the first and last non-empty bins, the reference level is the
// lower of the highest peaks on either side; the depth is how far the bin
// falls below it, relative to that level. A single convex blob scores 0,
// and blobs separated by an empty gap score 1.
func ValleyScore(profile []float64) float64 {
	if len(profile) == 0 || floats.Max(profile) <= 0 {
		return 0
	}

	first, last := -1, -1
	for i, v := range profile {
		if v > 0 {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if last-first < 2 {
		return 0
	}

	span := profile[first : last+1]
	n := len(span)

	// Running maxima from both ends.
	leftPeak := make([]float64, n)
	rightPeak := make([]float64, n)
	leftPeak[0] = span[0]
	for i := 1; i < n; i++ {
		leftPeak[i] = max(leftPeak[i-1], span[i])
	}
	rightPeak[n-1] = span[n-1]
	for i := n - 2; i >= 0; i-- {
		rightPeak[i] = max(rightPeak[i+1], span[i])
	}

	best := 0.0
	for i := 1; i < n-1; i++ {
		ref := min(leftPeak[i], rightPeak[i])
		if ref <= 0 {
			continue
		}
		depth := (ref - span[i]) / ref
		best = max(best, depth)
	}
	return max(0, min(1, best))
}
