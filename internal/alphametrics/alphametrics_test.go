package alphametrics

import (
	"image/color"
	"testing"

	"sprite-slicer/internal/raster"
	"sprite-slicer/pkg/geometry"

	"github.com/stretchr/testify/assert"
)

var opaque = color.NRGBA{G: 255, A: 255}

func TestValleyScoreProfiles(t *testing.T) {
	tests := []struct {
		name    string
		profile []float64
		want    float64
	}{
		{"empty", nil, 0},
		{"all zero", []float64{0, 0, 0}, 0},
		{"flat", []float64{0, 5, 5, 5, 5, 0}, 0},
		{"hill", []float64{1, 3, 7, 3, 1}, 0},
		{"gap", []float64{4, 4, 0, 0, 4, 4}, 1},
		{"half dip", []float64{10, 5, 10}, 0.5},
		{"uneven peaks", []float64{10, 1, 4}, 0.75},
		{"padding ignored", []float64{0, 0, 8, 8, 0, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ValleyScore(tt.profile), 1e-9)
		})
	}
}

func TestComputeSingleBlob(t *testing.T) {
	r := raster.New(40, 40)
	r.Fill(geometry.NewRectInt(10, 10, 20, 20), opaque)

	m := Compute(r, 10)
	assert.Equal(t, 0.0, m.RowValleyScore)
	assert.Equal(t, 0.0, m.ColValleyScore)
	assert.Len(t, m.RowProfile, 40)
	assert.Equal(t, 20.0, m.ColProfile[15])
}

func TestComputeSideBySide(t *testing.T) {
	r := raster.New(60, 20)
	r.Fill(geometry.NewRectInt(2, 2, 20, 16), opaque)
	r.Fill(geometry.NewRectInt(38, 2, 20, 16), opaque)

	m := Compute(r, 10)
	assert.Equal(t, 1.0, m.ColValleyScore)
	assert.Equal(t, 0.0, m.RowValleyScore)
}

func TestComputeStacked(t *testing.T) {
	r := raster.New(20, 60)
	r.Fill(geometry.NewRectInt(2, 2, 16, 20), opaque)
	r.Fill(geometry.NewRectInt(2, 38, 16, 20), opaque)

	m := Compute(r, 10)
	assert.Equal(t, 1.0, m.RowValleyScore)
	assert.Equal(t, 0.0, m.ColValleyScore)
}

func TestScoresInRange(t *testing.T) {
	r := raster.New(30, 30)
	for i := 0; i < 30; i += 3 {
		r.Fill(geometry.NewRectInt(i, (i*7)%25, 2, 5), opaque)
	}
	m := Compute(r, 0)
	for _, v := range []float64{m.RowValleyScore, m.ColValleyScore} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}
