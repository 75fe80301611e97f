// Command corefx prints or resets the persisted core/effect classifier.
package main

import (
	"flag"
	"fmt"
	"os"

	"sprite-slicer/internal/classifier"
)

var featureNames = []string{"area", "density", "solidity", "color variance"}

func main() {
	modelPath := flag.String("model", "", "Path to the classifier record (default: lib/ or user config dir)")
	reset := flag.Bool("reset", false, "Restore the default weights and save")
	flag.Parse()

	path := *modelPath
	if path == "" {
		var err error
		if path, err = classifier.DefaultModelPath(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to locate classifier: %v\n", err)
			os.Exit(1)
		}
	}

	var model *classifier.Model
	var err error
	if *reset {
		if model, err = classifier.ResetFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save classifier: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Reset classifier at %s\n", path)
	} else if model, err = classifier.LoadOrCreate(path); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load classifier: %v\n", err)
		os.Exit(1)
	}

	bias, weights := model.Snapshot()
	defaults := classifier.DefaultWeights()
	fmt.Printf("Classifier: %s\n", path)
	fmt.Printf("  %-16s %10.5f\n", "bias", bias)
	for i, w := range weights {
		fmt.Printf("  %-16s %10.5f  (default %+.2f)\n", featureNames[i], w, defaults[i])
	}
}
