// Command spriteslice slices sprite sheets into frames and animation clips.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sort"

	"badc0de.net/pkg/flagutil/v1"

	"sprite-slicer/internal/classifier"
	"sprite-slicer/internal/config"
	"sprite-slicer/internal/decision"
	"sprite-slicer/internal/export"
	"sprite-slicer/internal/pipeline"
	"sprite-slicer/internal/sheet"
	"sprite-slicer/internal/version"

	"github.com/golang/glog"
)

var (
	configPath  = flag.String("config", "", "Path to a TOML config file")
	modelPath   = flag.String("model", "", "Path to the classifier record (default: config model_path, then lib/ or user config dir)")
	outDir      = flag.String("out", "out", "Output directory")
	workers     = flag.Int("workers", runtime.NumCPU(), "Sheets processed in parallel")
	scale       = flag.Int("scale", 1, "Integer upscale factor for exported frames")
	writeGIF    = flag.Bool("gif", false, "Write an animated GIF preview per clip")
	learn       = flag.Bool("learn", true, "Update the classifier from this run")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: spriteslice [flags] <sheet|dir>...\n")
		flag.PrintDefaults()
	}
	flagutil.Parse()
	flag.Set("logtostderr", "true")
	defer glog.Flush()

	if *showVersion {
		fmt.Println(version.String("spriteslice"))
		return
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		glog.Exitf("%v", err)
	}
	if isFlagSet("learn") {
		cfg.Learn = learn
	}

	path := *modelPath
	if path == "" {
		path = cfg.ModelPath
	}
	if path == "" {
		if path, err = classifier.DefaultModelPath(); err != nil {
			glog.Exitf("%v", err)
		}
	}
	model, err := classifier.LoadOrCreate(path)
	if err != nil {
		glog.Exitf("%v", err)
	}

	inputs, err := pipeline.ExpandInputs(flag.Args())
	if err != nil {
		glog.Exitf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	proc := pipeline.New(cfg, model)
	exp := &export.Exporter{OutDir: *outDir, Scale: *scale, GIF: *writeGIF}
	exp.Reserve(inputs)

	glog.Infof("processing %d sheets with %d workers", len(inputs), *workers)
	report, err := proc.RunBatch(ctx, inputs, *workers, func(res *sheet.Result) error {
		if err := exp.Write(res); err != nil {
			return err
		}
		fmt.Printf("%-40s %-6s %3d frames %2d clips\n", res.SourcePath, res.Decision, len(res.Frames), len(res.Clips))
		return nil
	})
	if err != nil {
		glog.Exitf("batch aborted: %v", err)
	}

	if cfg.LearnEnabled() {
		if err := model.Save(path); err != nil {
			glog.Exitf("%v", err)
		}
		glog.Infof("classifier saved to %s", path)
	}

	printSummary(report)
	if len(report.Failures) > 0 {
		glog.Flush()
		os.Exit(1)
	}
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func printSummary(r *pipeline.BatchReport) {
	fmt.Printf("\n%d sheets, %d frames", r.Processed, r.Frames)
	decisions := make([]decision.Decision, 0, len(r.Decisions))
	for d := range r.Decisions {
		decisions = append(decisions, d)
	}
	sort.Slice(decisions, func(i, j int) bool { return decisions[i] < decisions[j] })
	for _, d := range decisions {
		fmt.Printf(", %s %d", d, r.Decisions[d])
	}
	fmt.Println()

	if len(r.Failures) > 0 {
		fmt.Printf("%d failed:\n", len(r.Failures))
		for _, f := range r.Failures {
			fmt.Printf("  %s: %v\n", f.Path, f.Err)
		}
	}
}
