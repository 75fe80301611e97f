package pipeline

import (
	"context"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"sprite-slicer/internal/classifier"
	"sprite-slicer/internal/config"
	"sprite-slicer/internal/decision"
	"sprite-slicer/internal/raster"
	"sprite-slicer/internal/sheet"
	"sprite-slicer/pkg/geometry"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var opaque = color.NRGBA{R: 200, G: 80, B: 40, A: 255}

func pairSheet() *raster.Raster {
	r := raster.New(80, 20)
	r.Fill(geometry.NewRectInt(5, 2, 20, 16), opaque)
	r.Fill(geometry.NewRectInt(45, 2, 20, 16), opaque)
	return r
}

func gridSheet() *raster.Raster {
	r := raster.New(64, 40)
	for row := 0; row < 2; row++ {
		for col := 0; col < 3; col++ {
			r.Fill(geometry.NewRectInt(col*20, row*20, 10, 10), opaque)
		}
	}
	return r
}

func writePNG(t *testing.T, path string, r *raster.Raster) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, r.Crop(r.Bounds(), nil)))
	require.NoError(t, f.Close())
}

func newProcessor(cfg *config.Config) *Processor {
	return New(cfg, classifier.NewModel())
}

func TestProcessEmptySheet(t *testing.T) {
	p := newProcessor(config.Default())
	res := p.Process("blank.png", raster.New(12, 12))

	assert.Equal(t, decision.Whole, res.Decision)
	require.Len(t, res.Frames, 1)
	assert.Equal(t, geometry.NewRectInt(0, 0, 12, 12), res.Frames[0].Rect())
	require.Len(t, res.Clips, 1)
	assert.False(t, res.Clips[0].Loop())
	assert.Equal(t, 0, res.Stats[StatComponents])
	assert.Equal(t, 0.0, res.Stats[StatLargestShare])
}

func TestProcessPair(t *testing.T) {
	p := newProcessor(config.Default())
	res := p.Process("door.png", pairSheet())

	assert.Equal(t, decision.Two, res.Decision)
	require.Len(t, res.Frames, 2)
	assert.Equal(t, 5, res.Frames[0].X)
	assert.Equal(t, 2, res.Stats[StatComponents])
	assert.Equal(t, 2, res.Stats[StatClusters])
	assert.InDelta(t, 0.5, res.Stats[StatLargestShare], 1e-9)
	require.Len(t, res.Clips, 1)
	assert.Equal(t, "door", res.Clips[0].Name())
}

func TestProcessGrid(t *testing.T) {
	p := newProcessor(config.Default())
	res := p.Process("hero_walk_sheet.png", gridSheet())

	assert.Equal(t, decision.Many, res.Decision)
	require.Len(t, res.Frames, 6)
	require.Len(t, res.Clips, 2)
	assert.Equal(t, "hero_walk_row0", res.Clips[0].Name())
	assert.Equal(t, 3, res.Clips[1].Len())
}

func TestProcessOverride(t *testing.T) {
	cfg := config.Default()
	cfg.DecisionOverrides = []config.DecisionOverride{{Pattern: "door*", Decision: decision.Many}}
	p := newProcessor(cfg)

	res := p.Process("sheets/door_open.png", pairSheet())
	assert.Equal(t, decision.Many, res.Decision)
	assert.Equal(t, "door*", res.Stats[StatOverridePattern])
	assert.Len(t, res.Frames, 2)

	res = p.Process("sheets/chest.png", pairSheet())
	assert.Equal(t, decision.Two, res.Decision)
	assert.NotContains(t, res.Stats, StatOverridePattern)
}

func TestProcessLearning(t *testing.T) {
	p := newProcessor(config.Default())
	res := p.Process("door.png", pairSheet())
	assert.Equal(t, 2, res.Stats[StatLearnCore])

	_, weights := p.Model().Snapshot()
	assert.NotEqual(t, classifier.DefaultWeights(), weights)

	p = newProcessor(config.Default())
	p.SetLearn(false)
	res = p.Process("door.png", pairSheet())
	assert.NotContains(t, res.Stats, StatLearnCore)
	bias, weights := p.Model().Snapshot()
	assert.Equal(t, 0.0, bias)
	assert.Equal(t, classifier.DefaultWeights(), weights)
}

func TestRunBatch(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "door.png"), pairSheet())
	writePNG(t, filepath.Join(dir, "hero.png"), gridSheet())
	bad := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0o644))

	paths, err := ExpandInputs([]string{dir})
	require.NoError(t, err)
	require.Len(t, paths, 3)

	p := newProcessor(config.Default())
	var got []string
	report, err := p.RunBatch(context.Background(), paths, 3, func(res *sheet.Result) error {
		got = append(got, filepath.Base(res.SourcePath))
		return nil
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"door.png", "hero.png"}, got)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 8, report.Frames)
	assert.Equal(t, 1, report.Decisions[decision.Two])
	assert.Equal(t, 1, report.Decisions[decision.Many])
	require.Len(t, report.Failures, 1)
	assert.Equal(t, bad, report.Failures[0].Path)
}

func TestRunBatchSinkErrorAborts(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		path := filepath.Join(dir, name)
		writePNG(t, path, pairSheet())
		paths = append(paths, path)
	}

	errDisk := errors.New("disk full")
	p := newProcessor(config.Default())
	calls := 0
	_, err := p.RunBatch(context.Background(), paths, 1, func(*sheet.Result) error {
		calls++
		return errDisk
	})
	require.Error(t, err)
	assert.Equal(t, errDisk, errors.Cause(err))
	assert.Equal(t, 1, calls)
}

func TestRunBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := newProcessor(config.Default())
	report, err := p.RunBatch(ctx, []string{"a.png"}, 2, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, report.Processed)
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	for _, name := range []string{"b.png", "notes.txt", "sub/a.gif"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	explicit := filepath.Join(dir, "notes.txt")

	paths, err := ExpandInputs([]string{dir, explicit, filepath.Join(dir, "b.png")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "b.png"),
		explicit,
		filepath.Join(sub, "a.gif"),
	}, paths)

	_, err = ExpandInputs([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)

	_, err = ExpandInputs([]string{t.TempDir()})
	assert.Equal(t, ErrNoInputs, err)
}
