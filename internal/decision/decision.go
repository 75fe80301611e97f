// Package decision classifies a sheet as a single image, a pair of frames,
// or an arbitrary multi-frame sheet.
package decision

import (
	"fmt"
	"strings"

	"sprite-slicer/internal/alphametrics"
	"sprite-slicer/internal/cluster"
	"sprite-slicer/internal/pattern"
	"sprite-slicer/internal/segment"
	"sprite-slicer/pkg/geometry"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Decision is the cardinality class of a sheet.
type Decision int

const (
	// Whole keeps the sheet as one frame.
	Whole Decision = iota
	// Two splits the sheet into two frames.
	Two
	// Many slices the sheet into one frame per cluster.
	Many
)

func (d Decision) String() string {
	switch d {
	case Whole:
		return "whole"
	case Two:
		return "two"
	case Many:
		return "many"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// ParseDecision parses "whole", "two" or "many", ignoring case.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "whole", "single", "1":
		return Whole, nil
	case "two", "pair", "2":
		return Two, nil
	case "many", "multi":
		return Many, nil
	}
	return Whole, errors.Errorf("unknown decision %q (want whole, two or many)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decision) UnmarshalText(text []byte) error {
	v, err := ParseDecision(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

const (
	// twoFrameShareMin is the share of total cluster area the two largest
	// clusters must cover.
	twoFrameShareMin = 0.75
	// clearValleyMin is the valley score above which a density gap counts.
	clearValleyMin = 0.35
)

// Config holds the thresholds and overrides consumed by the module.
type Config struct {
	WholeCoverageThreshold float64
	TwoGapIOUMax           float64
	Overrides              []pattern.Rule[Decision]
}

// DefaultConfig returns the default thresholds with no overrides.
func DefaultConfig() Config {
	return Config{
		WholeCoverageThreshold: 0.85,
		TwoGapIOUMax:           0.1,
	}
}

// Outcome is a decision together with how it was reached.
type Outcome struct {
	Decision   Decision
	Reason     string
	Overridden bool
	Pattern    string // Matching override pattern, if Overridden
}

// Module evaluates the decision procedure. It is read-only after creation.
type Module struct {
	cfg Config
}

// New creates a decision module.
func New(cfg Config) *Module {
	return &Module{cfg: cfg}
}

// Config returns the module configuration.
func (m *Module) Config() Config {
	return m.cfg
}

// Decide classifies a sheet. Overrides win over every heuristic; then an
// empty sheet or one dominated by a single blob is Whole; then Two when
// ShouldSplitInTwo holds; anything else is Many.
func (m *Module) Decide(filename string, components []segment.Component, clusters []cluster.Cluster, metrics alphametrics.Metrics) Outcome {
	if rule, ok := pattern.First(m.cfg.Overrides, filename); ok {
		glog.V(1).Infof("%s: override %q forces %s", filename, rule.Pattern, rule.Value)
		return Outcome{
			Decision:   rule.Value,
			Reason:     "override",
			Overridden: true,
			Pattern:    rule.Pattern,
		}
	}

	if len(components) == 0 {
		return Outcome{Decision: Whole, Reason: "no components"}
	}
	total := segment.TotalArea(components)
	if total <= 0 {
		return Outcome{Decision: Whole, Reason: "no opaque area"}
	}

	coverage := float64(segment.LargestArea(components)) / float64(total)
	if coverage >= m.cfg.WholeCoverageThreshold && len(clusters) <= 1 {
		return Outcome{Decision: Whole, Reason: fmt.Sprintf("dominant blob covers %.2f", coverage)}
	}

	if m.ShouldSplitInTwo(clusters, metrics) {
		return Outcome{Decision: Two, Reason: "two dominant separated clusters"}
	}

	if len(clusters) <= 1 {
		return Outcome{Decision: Many, Reason: "single cluster with multiple components"}
	}
	return Outcome{Decision: Many, Reason: fmt.Sprintf("%d clusters", len(clusters))}
}

// ShouldSplitInTwo reports whether the two largest clusters dominate the
// sheet's area, barely overlap, and coincide with a clear density valley.
func (m *Module) ShouldSplitInTwo(clusters []cluster.Cluster, metrics alphametrics.Metrics) bool {
	if len(clusters) < 2 {
		return false
	}

	a, b := TwoLargest(clusters)
	areaA := a.Area()
	areaB := b.Area()
	total := areaA + areaB
	if total <= 0 {
		return false
	}

	iou := geometry.IOU(a.Bounds, b.Bounds)

	sum := 0
	for _, c := range clusters {
		sum += c.Area()
	}
	share := 0.0
	if sum > 0 {
		share = float64(total) / float64(sum)
	}

	clearValley := metrics.RowValleyScore > clearValleyMin || metrics.ColValleyScore > clearValleyMin

	glog.V(1).Infof("two-frame check: share %.2f iou %.3f valleys row %.2f col %.2f",
		share, iou, metrics.RowValleyScore, metrics.ColValleyScore)

	return share > twoFrameShareMin && iou < m.cfg.TwoGapIOUMax && clearValley
}

// TwoLargest returns the two clusters with the most members, ties broken
// by bounds area and then position. It must be called with at least two
// clusters; the input is not reordered.
func TwoLargest(clusters []cluster.Cluster) (cluster.Cluster, cluster.Cluster) {
	sorted := make([]cluster.Cluster, len(clusters))
	copy(sorted, clusters)
	cluster.SortBySize(sorted)
	return sorted[0], sorted[1]
}
