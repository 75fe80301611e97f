// Command slicetest runs the slicing pipeline on one sheet and prints
// diagnostics. It neither learns nor exports.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"sprite-slicer/internal/alphametrics"
	"sprite-slicer/internal/classifier"
	"sprite-slicer/internal/cluster"
	"sprite-slicer/internal/config"
	"sprite-slicer/internal/decision"
	"sprite-slicer/internal/naming"
	"sprite-slicer/internal/raster"
	"sprite-slicer/internal/segment"
	"sprite-slicer/internal/slicer"
)

func main() {
	imagePath := flag.String("image", "", "Path to sprite sheet")
	configPath := flag.String("config", "", "Path to a TOML config file")
	modelPath := flag.String("model", "", "Classifier record to score with (default: built-in weights)")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: slicetest -image <path> [-config slicer.toml] [-model corefx_model.txt]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	model := classifier.NewModel()
	if *modelPath != "" {
		if model, err = classifier.LoadOrCreate(*modelPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load classifier: %v\n", err)
			os.Exit(1)
		}
	}

	r, err := raster.Load(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded sheet: %dx%d pixels\n", r.Width, r.Height)

	opts := cfg.SegmentOptions()
	fmt.Printf("\nParameters:\n")
	fmt.Printf("  Alpha threshold: %d\n", opts.AlphaThreshold)
	fmt.Printf("  Connectivity: %d\n", opts.Connectivity)
	fmt.Printf("  Cluster gap: %d px\n", cfg.ClusterGap)
	fmt.Printf("  Whole coverage: %.2f  Two-frame IoU max: %.2f\n", cfg.WholeCoverageThreshold, cfg.TwoGapIOUMax)

	seg := segment.Segment(r, opts)
	scores := make(map[int]float64, len(seg.Components))
	for _, c := range seg.Components {
		scores[c.ID] = model.Score(c)
	}

	fmt.Printf("\nFound %d components:\n", len(seg.Components))
	fmt.Printf("%4s %20s %7s %7s %7s %9s %8s %6s\n",
		"ID", "Bounds", "Area", "Density", "Solid", "Variance", "Color", "Score")
	fmt.Println(strings.Repeat("-", 76))
	for _, c := range seg.Components {
		b := c.Bounds
		fmt.Printf("%4d %20s %7d %7.2f %7.2f %9.1f %8s %6.3f\n",
			c.ID, fmt.Sprintf("%d,%d %dx%d", b.X, b.Y, b.Width, b.Height),
			c.Area, c.Density, c.Solidity, c.ColorVariance, c.MeanColor.Hex(), scores[c.ID])
	}

	metrics := alphametrics.Compute(r, opts.AlphaThreshold)
	fmt.Printf("\nValley scores: row %.3f, col %.3f\n", metrics.RowValleyScore, metrics.ColValleyScore)

	clusters := cluster.Build(seg.Components, cfg.ClusterGap)
	fmt.Printf("\nFound %d clusters:\n", len(clusters))
	for i, cl := range clusters {
		b := cl.Bounds
		fmt.Printf("  %2d: %d,%d %dx%d members %v\n", i, b.X, b.Y, b.Width, b.Height, cl.MemberIDs())
	}

	outcome := decision.New(cfg.DecisionConfig()).Decide(*imagePath, seg.Components, clusters, metrics)
	fmt.Printf("\nDecision: %s (%s)\n", outcome.Decision, outcome.Reason)
	if outcome.Overridden {
		fmt.Printf("  forced by pattern %q\n", outcome.Pattern)
	}

	frames := slicer.Slice(r, seg, clusters, outcome.Decision, scores)
	fmt.Printf("\n%d frames:\n", len(frames))
	fmt.Printf("%4s %4s %20s %7s %7s  %s\n", "#", "Row", "Rect", "PivotX", "PivotY", "Components")
	for _, f := range frames {
		fmt.Printf("%4d %4d %20s %7.3f %7.3f  %v\n",
			f.Index, f.Row, fmt.Sprintf("%d,%d %dx%d", f.X, f.Y, f.Width, f.Height), f.PivotX, f.PivotY, f.Components)
	}

	clips := naming.New(cfg.ClipRules(), cfg.FrameDuration()).Clips(*imagePath, outcome.Decision, frames)
	fmt.Printf("\n%d clips:\n", len(clips))
	for _, c := range clips {
		fmt.Printf("  %-24s %2d frames loop=%v %v\n", c.Name(), c.Len(), c.Loop(), c.Duration())
	}
}
