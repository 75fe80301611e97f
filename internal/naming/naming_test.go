package naming

import (
	"testing"
	"time"

	"sprite-slicer/internal/decision"
	"sprite-slicer/internal/pattern"
	"sprite-slicer/internal/sheet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseName(t *testing.T) {
	cases := map[string]string{
		"Hero_Walk_Sheet.png":            "hero_walk",
		"assets/knight-attack_64x64.png": "knight_attack",
		"slime03.png":                    "slime",
		"fx_12_strip.webp":               "fx",
		"walk sheet 2.png":               "walk",
		"123.png":                        "sprite",
		"Boss Dragon (final).gif":        "boss_dragon_final",
	}
	for in, want := range cases {
		assert.Equal(t, want, BaseName(in), in)
	}
}

func TestDefaultLoop(t *testing.T) {
	assert.True(t, DefaultLoop("hero_walk"))
	assert.True(t, DefaultLoop("soldier_idle"))
	assert.True(t, DefaultLoop("white_flag"))
	assert.False(t, DefaultLoop("hero_attack"))
	assert.False(t, DefaultLoop("slime_death"))
	assert.False(t, DefaultLoop("Mage-Cast2"))
	assert.False(t, DefaultLoop("hurt"))
	assert.False(t, DefaultLoop("knight_hit03"))
	assert.True(t, DefaultLoop("castle_idle"))
	assert.True(t, DefaultLoop("hitch_walk"))
	assert.True(t, DefaultLoop("diet_run"))
	assert.True(t, DefaultLoop("jumper"))
}

func TestNameRules(t *testing.T) {
	no := false
	n := New([]pattern.Rule[ClipRule]{
		{Pattern: "*idle*", Value: ClipRule{Loop: &no}},
		{Pattern: "boss_*", Value: ClipRule{Name: "boss_intro"}},
		{Pattern: "*", Value: ClipRule{Name: "fallback"}},
	}, 0)
	assert.Equal(t, DefaultFrameDuration, n.FrameDuration)

	name, loop := n.Name("hero_idle.png")
	assert.Equal(t, "hero_idle", name)
	assert.False(t, loop)

	name, loop = n.Name("sprites/BOSS_dragon.png")
	assert.Equal(t, "boss_intro", name)
	assert.True(t, loop)

	name, _ = n.Name("anything.png")
	assert.Equal(t, "fallback", name)
}

func frames(rows ...int) []*sheet.FrameSlice {
	out := make([]*sheet.FrameSlice, len(rows))
	for i, r := range rows {
		out[i] = &sheet.FrameSlice{Index: i, Row: r}
	}
	return out
}

func TestClipsWhole(t *testing.T) {
	n := New(nil, 80*time.Millisecond)
	clips := n.Clips("hero_walk.png", decision.Whole, frames(0))
	require.Len(t, clips, 1)
	assert.Equal(t, "hero_walk", clips[0].Name())
	assert.False(t, clips[0].Loop())
	assert.Equal(t, 1, clips[0].Len())
	assert.Equal(t, 80*time.Millisecond, clips[0].FrameDuration())
}

func TestClipsTwo(t *testing.T) {
	n := New(nil, 0)
	clips := n.Clips("door.png", decision.Two, frames(0, 1))
	require.Len(t, clips, 1)
	assert.Equal(t, 2, clips[0].Len())
	assert.True(t, clips[0].Loop())
}

func TestClipsManyPerRow(t *testing.T) {
	n := New(nil, 0)
	clips := n.Clips("hero_sheet.png", decision.Many, frames(0, 0, 0, 1, 1, 2))
	require.Len(t, clips, 3)
	assert.Equal(t, "hero_row0", clips[0].Name())
	assert.Equal(t, "hero_row1", clips[1].Name())
	assert.Equal(t, "hero_row2", clips[2].Name())
	assert.Equal(t, 3, clips[0].Len())
	assert.Equal(t, 2, clips[1].Len())
	assert.Equal(t, 1, clips[2].Len())
	assert.Equal(t, 3, clips[1].Frames()[0].Index)
}

func TestClipsManySingleRow(t *testing.T) {
	n := New(nil, 0)
	clips := n.Clips("slime_death_strip.png", decision.Many, frames(0, 0, 0, 0))
	require.Len(t, clips, 1)
	assert.Equal(t, "slime_death", clips[0].Name())
	assert.False(t, clips[0].Loop())
	assert.Equal(t, 4, clips[0].Len())
}

func TestClipsNoFrames(t *testing.T) {
	assert.Empty(t, New(nil, 0).Clips("x.png", decision.Many, nil))
}
