package pipeline

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"sprite-slicer/internal/decision"
	"sprite-slicer/internal/raster"
	"sprite-slicer/internal/sheet"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrNoInputs is returned by ExpandInputs when no sheet was found.
var ErrNoInputs = errors.New("no supported images found")

// Failure records a sheet that could not be processed.
type Failure struct {
	Path string
	Err  error
}

// BatchReport summarises a batch run.
type BatchReport struct {
	Processed int
	Frames    int
	Decisions map[decision.Decision]int
	Failures  []Failure // Sorted by path
}

// RunBatch processes paths on up to workers goroutines. A sheet that
// fails to load is logged and recorded without stopping the others. Sink
// receives each result, one call at a time; a sink error cancels the rest
// of the batch and is returned.
func (p *Processor) RunBatch(ctx context.Context, paths []string, workers int, sink func(*sheet.Result) error) (*BatchReport, error) {
	if workers < 1 {
		workers = 1
	}

	report := &BatchReport{Decisions: make(map[decision.Decision]int)}
	var mu, sinkMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, path := range paths {
		path := path
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res, err := p.ProcessFile(path)
			if err != nil {
				glog.Errorf("%s: %v", path, err)
				mu.Lock()
				report.Failures = append(report.Failures, Failure{Path: path, Err: err})
				mu.Unlock()
				return nil
			}

			if sink != nil {
				sinkMu.Lock()
				err = sink(res)
				sinkMu.Unlock()
				if err != nil {
					return errors.Wrapf(err, "exporting %s", path)
				}
			}

			mu.Lock()
			report.Processed++
			report.Frames += len(res.Frames)
			report.Decisions[res.Decision]++
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].Path < report.Failures[j].Path })
	return report, err
}

// ExpandInputs resolves command-line arguments into sheet paths. Files are
// taken as given; directories are walked for supported images. The result
// is sorted and free of duplicates.
func ExpandInputs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, errors.Wrapf(err, "input %s", arg)
		}
		if !info.IsDir() {
			add(filepath.Clean(arg))
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && raster.IsSupportedFormat(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "scanning %s", arg)
		}
	}

	if len(out) == 0 {
		return nil, ErrNoInputs
	}
	sort.Strings(out)
	return out, nil
}
