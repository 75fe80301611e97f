// Package classifier scores components as core sprite matter or as
// transient effects, using a small logistic model that keeps learning
// across runs.
package classifier

import (
	"math"
	"sync"

	"sprite-slicer/internal/segment"
	"sprite-slicer/pkg/geometry"

	"github.com/golang/glog"
	"gonum.org/v1/gonum/floats"
)

const (
	// FeatureCount is the length of the feature vector.
	FeatureCount = 4
	// LearningRate is the step size of each update.
	LearningRate = 0.05

	areaScale     = 10000.0
	varianceScale = 5000.0
)

// DefaultWeights returns the starting weights for area, density, solidity
// and color variance.
func DefaultWeights() []float64 {
	return []float64{0.6, 0.2, -0.1, -0.05}
}

// Label is a training target derived from a sheet.
type Label int

const (
	// LabelNone marks an ambiguous component that gives no signal.
	LabelNone Label = iota - 1
	// LabelFX marks an effect or overlay component.
	LabelFX
	// LabelCore marks sprite body matter.
	LabelCore
)

func (l Label) String() string {
	switch l {
	case LabelCore:
		return "core"
	case LabelFX:
		return "fx"
	default:
		return "none"
	}
}

// Model is a bias plus one weight per feature. It is safe for concurrent
// use; LearnFrom holds the lock for its whole pass.
type Model struct {
	mu      sync.Mutex
	bias    float64
	weights []float64
}

// NewModel returns a model with the default parameters.
func NewModel() *Model {
	return &Model{weights: DefaultWeights()}
}

// NewModelWith returns a model with the given parameters.
func NewModelWith(bias float64, weights []float64) *Model {
	w := make([]float64, FeatureCount)
	copy(w, weights)
	return &Model{bias: bias, weights: w}
}

// Snapshot returns a copy of the current bias and weights.
func (m *Model) Snapshot() (bias float64, weights []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bias, append([]float64(nil), m.weights...)
}

// Reset restores the default parameters.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bias = 0
	m.weights = DefaultWeights()
}

// Features extracts the feature vector of a component: normalized area,
// density, solidity and normalized color variance.
func Features(c segment.Component) []float64 {
	return []float64{
		math.Min(float64(c.Area)/areaScale, 1),
		c.Density,
		c.Solidity,
		math.Min(c.ColorVariance/varianceScale, 1),
	}
}

// Score returns the probability in [0,1] that c is core sprite matter.
func (m *Model) Score(c segment.Component) float64 {
	return m.ScoreFeatures(Features(c))
}

// ScoreFeatures scores a precomputed feature vector.
func (m *Model) ScoreFeatures(f []float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.score(f)
}

func (m *Model) score(f []float64) float64 {
	return sigmoid(m.bias + floats.Dot(m.weights, f))
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// SheetStats holds the per-sheet area statistics used for labelling.
type SheetStats struct {
	MaxArea int
	AvgArea float64
}

// NewSheetStats computes the statistics of one sheet's components.
func NewSheetStats(components []segment.Component) SheetStats {
	if len(components) == 0 {
		return SheetStats{}
	}
	return SheetStats{
		MaxArea: segment.LargestArea(components),
		AvgArea: float64(segment.TotalArea(components)) / float64(len(components)),
	}
}

// DeriveLabel labels a component for learning. Large components are core;
// tiny, noisy, sparse ones are effects; anything else is core when it lies
// in an already produced frame and gives no signal otherwise.
func DeriveLabel(c segment.Component, stats SheetStats, frames []geometry.RectInt) Label {
	area := float64(c.Area)
	if area >= 0.4*float64(stats.MaxArea) {
		return LabelCore
	}
	if area <= 0.15*stats.AvgArea && c.ColorVariance > 1500 && c.Density < 0.4 {
		return LabelFX
	}
	for _, f := range frames {
		if c.Bounds.Intersects(f) {
			return LabelCore
		}
	}
	return LabelNone
}

// LearnStats summarizes one LearnFrom pass.
type LearnStats struct {
	Core         int
	FX           int
	Skipped      int
	MeanAbsError float64 // Mean |label - score| before each update
}

// Samples returns the number of components that produced an update.
func (s LearnStats) Samples() int {
	return s.Core + s.FX
}

// LearnFrom runs one stochastic gradient pass over a sheet's components,
// one update per labelled component, in order. Frames are the rectangles
// already produced for the sheet.
func (m *Model) LearnFrom(components []segment.Component, frames []geometry.RectInt) LearnStats {
	var st LearnStats
	if len(components) == 0 {
		return st
	}

	sheet := NewSheetStats(components)

	m.mu.Lock()
	defer m.mu.Unlock()

	var absErr float64
	for _, c := range components {
		label := DeriveLabel(c, sheet, frames)
		switch label {
		case LabelNone:
			st.Skipped++
			continue
		case LabelCore:
			st.Core++
		case LabelFX:
			st.FX++
		}

		f := Features(c)
		e := float64(label) - m.score(f)
		absErr += math.Abs(e)
		floats.AddScaled(m.weights, LearningRate*e, f)
		m.bias += LearningRate * e
	}

	if n := st.Samples(); n > 0 {
		st.MeanAbsError = absErr / float64(n)
	}
	glog.V(1).Infof("learned from %d components (core %d, fx %d, skipped %d, mean |error| %.3f)",
		len(components), st.Core, st.FX, st.Skipped, st.MeanAbsError)
	return st
}
