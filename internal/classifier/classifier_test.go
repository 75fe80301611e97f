package classifier

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"sprite-slicer/internal/segment"
	"sprite-slicer/pkg/geometry"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func comp(id, x, y, w, h int) segment.Component {
	return segment.Component{
		ID:       id,
		Bounds:   geometry.NewRectInt(x, y, w, h),
		Area:     w * h,
		Density:  1,
		Solidity: 1,
	}
}

func TestFeatures(t *testing.T) {
	c := segment.Component{Area: 2500, Density: 0.5, Solidity: 0.8, ColorVariance: 1000}
	assert.Equal(t, []float64{0.25, 0.5, 0.8, 0.2}, Features(c))

	huge := segment.Component{Area: 50000, ColorVariance: 90000}
	f := Features(huge)
	assert.Equal(t, 1.0, f[0])
	assert.Equal(t, 1.0, f[3])
}

func TestScoreDefaults(t *testing.T) {
	m := NewModel()
	bias, weights := m.Snapshot()
	assert.Equal(t, 0.0, bias)
	assert.Equal(t, []float64{0.6, 0.2, -0.1, -0.05}, weights)

	// sigmoid(0) with all-zero features
	assert.InDelta(t, 0.5, m.ScoreFeatures([]float64{0, 0, 0, 0}), 1e-12)
	want := 1 / (1 + math.Exp(-(0.6*0.25 + 0.2*0.5 - 0.1*0.8 - 0.05*0.2)))
	assert.InDelta(t, want, m.Score(segment.Component{Area: 2500, Density: 0.5, Solidity: 0.8, ColorVariance: 1000}), 1e-12)
}

func TestScoreMonotoneInPositiveWeights(t *testing.T) {
	m := NewModelWith(0.1, []float64{0.6, 0.2, 0, 0.3})
	base := []float64{0.3, 0.3, 0.3, 0.3}
	for i, w := range []float64{0.6, 0.2, 0, 0.3} {
		if w < 0 {
			continue
		}
		prev := m.ScoreFeatures(base)
		for step := 1; step <= 5; step++ {
			f := append([]float64(nil), base...)
			f[i] += 0.1 * float64(step)
			s := m.ScoreFeatures(f)
			assert.GreaterOrEqual(t, s, prev, "feature %d step %d", i, step)
			prev = s
		}
	}
}

func TestScoreInUnitRange(t *testing.T) {
	m := NewModelWith(40, []float64{30, 30, 30, 30})
	s := m.ScoreFeatures([]float64{1, 1, 1, 1})
	assert.LessOrEqual(t, s, 1.0)
	m = NewModelWith(-40, []float64{-30, -30, -30, -30})
	s = m.ScoreFeatures([]float64{1, 1, 1, 1})
	assert.GreaterOrEqual(t, s, 0.0)
}

func TestDeriveLabel(t *testing.T) {
	body := comp(0, 0, 0, 40, 40) // 1600
	spark := segment.Component{ID: 1, Bounds: geometry.NewRectInt(100, 100, 4, 4), Area: 5, Density: 0.3, ColorVariance: 2000}
	mid := comp(2, 60, 0, 10, 10) // 100, not large, not fx
	components := []segment.Component{body, spark, mid, comp(3, 80, 0, 20, 20)}
	stats := NewSheetStats(components)

	assert.Equal(t, 1600, stats.MaxArea)
	assert.InDelta(t, float64(1600+5+100+400)/4, stats.AvgArea, 1e-9)

	assert.Equal(t, LabelCore, DeriveLabel(body, stats, nil))
	assert.Equal(t, LabelFX, DeriveLabel(spark, stats, nil))
	assert.Equal(t, LabelNone, DeriveLabel(mid, stats, nil))
	assert.Equal(t, LabelCore, DeriveLabel(mid, stats, []geometry.RectInt{geometry.NewRectInt(55, 0, 20, 20)}))
	assert.Equal(t, LabelNone, DeriveLabel(mid, stats, []geometry.RectInt{geometry.NewRectInt(0, 0, 40, 40)}))

	// Noisy but dense: not fx.
	dense := spark
	dense.Density = 0.9
	assert.Equal(t, LabelNone, DeriveLabel(dense, stats, nil))
}

func TestLearnFromEmptyIsNoop(t *testing.T) {
	m := NewModel()
	st := m.LearnFrom(nil, nil)
	assert.Equal(t, LearnStats{}, st)
	bias, weights := m.Snapshot()
	assert.Equal(t, 0.0, bias)
	assert.Equal(t, DefaultWeights(), weights)
}

func TestLearnFromUpdateRule(t *testing.T) {
	m := NewModel()
	c := comp(0, 0, 0, 50, 50) // sole component, so core
	f := Features(c)
	before := m.ScoreFeatures(f)

	st := m.LearnFrom([]segment.Component{c}, nil)
	assert.Equal(t, 1, st.Core)
	assert.InDelta(t, 1-before, st.MeanAbsError, 1e-12)

	e := 1 - before
	bias, weights := m.Snapshot()
	assert.InDelta(t, LearningRate*e, bias, 1e-12)
	for i, w := range DefaultWeights() {
		assert.InDelta(t, w+LearningRate*e*f[i], weights[i], 1e-12)
	}
}

func TestLearnFromTwiceReducesError(t *testing.T) {
	m := NewModel()
	components := []segment.Component{
		comp(0, 0, 0, 40, 40),
		comp(1, 50, 0, 38, 40),
		comp(2, 100, 0, 36, 40),
	}
	first := m.LearnFrom(components, nil)
	second := m.LearnFrom(components, nil)

	require.Equal(t, 3, first.Core)
	require.Equal(t, 3, second.Core)
	assert.Less(t, second.MeanAbsError, first.MeanAbsError)
}

func TestLearnFromSkipsAmbiguous(t *testing.T) {
	m := NewModel()
	components := []segment.Component{comp(0, 0, 0, 40, 40), comp(1, 60, 0, 10, 10)}
	st := m.LearnFrom(components, nil)
	assert.Equal(t, 1, st.Core)
	assert.Equal(t, 1, st.Skipped)
	assert.Equal(t, 1, st.Samples())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "model.txt")
	m := NewModelWith(-0.123456789012345, []float64{0.1, 1.0 / 3.0, -2.5e-9, 42})
	require.NoError(t, m.Save(path))

	loaded, err := LoadOrCreate(path)
	require.NoError(t, err)
	b1, w1 := m.Snapshot()
	b2, w2 := loaded.Snapshot()
	assert.Equal(t, b1, b2)
	assert.Equal(t, w1, w2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "-0.123456789012345\n0.1,0.3333333333333333,-2.5e-09,42\n", string(data))
}

func TestLoadOrCreateMissing(t *testing.T) {
	m, err := LoadOrCreate(filepath.Join(t.TempDir(), "absent.txt"))
	require.NoError(t, err)
	bias, weights := m.Snapshot()
	assert.Equal(t, 0.0, bias)
	assert.Equal(t, DefaultWeights(), weights)
}

func TestLoadOrCreateMalformed(t *testing.T) {
	dir := t.TempDir()
	records := map[string]string{
		"bias":   "abc\n0.6,0.2,-0.1,-0.05\n",
		"weight": "0\n0.6,zz,-0.1,-0.05\n",
		"count":  "0\n0.6,0.2\n",
		"lines":  "0\n",
		"extra":  "0\n1,2,3,4\n5\n",
		"empty":  "",
		"nan":    "NaN\n0.6,0.2,-0.1,-0.05\n",
		"inf":    "0\n0.6,Inf,-0.1,-0.05\n",
		"neginf": "0\n0.6,0.2,-infinity,-0.05\n",
	}
	for name, body := range records {
		path := filepath.Join(dir, name+".txt")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := LoadOrCreate(path)
		require.Error(t, err, name)
		assert.Equal(t, ErrMalformedModel, errors.Cause(err), name)
	}
}

func TestResetFileReplacesMalformedRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corefx_model.txt")
	require.NoError(t, os.WriteFile(path, []byte("NaN\ngarbage\n"), 0o644))
	_, err := LoadOrCreate(path)
	require.Error(t, err)

	m, err := ResetFile(path)
	require.NoError(t, err)
	bias, weights := m.Snapshot()
	assert.Equal(t, 0.0, bias)
	assert.Equal(t, DefaultWeights(), weights)

	loaded, err := LoadOrCreate(path)
	require.NoError(t, err)
	_, weights = loaded.Snapshot()
	assert.Equal(t, DefaultWeights(), weights)
}

func TestReset(t *testing.T) {
	m := NewModelWith(3, []float64{1, 1, 1, 1})
	m.Reset()
	bias, weights := m.Snapshot()
	assert.Equal(t, 0.0, bias)
	assert.Equal(t, DefaultWeights(), weights)
}

func TestDefaultModelPath(t *testing.T) {
	path, err := DefaultModelPath()
	require.NoError(t, err)
	assert.Equal(t, modelFileName, filepath.Base(path))
}
