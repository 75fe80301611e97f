// Package sheet holds the per-sheet output of the slicing pipeline: frames,
// animation clips and processing statistics.
package sheet

import (
	"image"
	"time"

	"sprite-slicer/internal/decision"
	"sprite-slicer/pkg/geometry"
)

// FrameSlice is one frame cut from a sheet.
type FrameSlice struct {
	Index  int
	X, Y   int // Origin of the crop in the sheet
	Width  int
	Height int

	// Pivot in crop coordinates normalised to [0,1].
	PivotX float64
	PivotY float64

	Row        int   // Reading-order row of the frame
	Components []int // IDs of the components drawn into the crop

	Image      *image.NRGBA
	ExportPath string // Set by the exporter
}

// Rect returns the frame rectangle in sheet coordinates.
func (f *FrameSlice) Rect() geometry.RectInt {
	return geometry.NewRectInt(f.X, f.Y, f.Width, f.Height)
}

// Rects returns the sheet rectangles of frames.
func Rects(frames []*FrameSlice) []geometry.RectInt {
	out := make([]geometry.RectInt, len(frames))
	for i, f := range frames {
		out[i] = f.Rect()
	}
	return out
}

// AnimationClip is a named, ordered run of frames. It does not change
// after construction.
type AnimationClip struct {
	name          string
	loop          bool
	frameDuration time.Duration
	frames        []*FrameSlice
}

// NewAnimationClip creates a clip over a copy of the given frame list.
func NewAnimationClip(name string, loop bool, frameDuration time.Duration, frames []*FrameSlice) *AnimationClip {
	return &AnimationClip{
		name:          name,
		loop:          loop,
		frameDuration: frameDuration,
		frames:        append([]*FrameSlice(nil), frames...),
	}
}

// Name returns the clip name.
func (c *AnimationClip) Name() string { return c.name }

// Loop reports whether the clip repeats.
func (c *AnimationClip) Loop() bool { return c.loop }

// FrameDuration returns how long each frame is shown.
func (c *AnimationClip) FrameDuration() time.Duration { return c.frameDuration }

// Len returns the number of frames.
func (c *AnimationClip) Len() int { return len(c.frames) }

// Frames returns the clip's frames in playback order.
func (c *AnimationClip) Frames() []*FrameSlice {
	return append([]*FrameSlice(nil), c.frames...)
}

// Duration returns the length of one playthrough.
func (c *AnimationClip) Duration() time.Duration {
	return c.frameDuration * time.Duration(len(c.frames))
}

// Result aggregates everything produced for one sheet.
type Result struct {
	SourcePath string
	Decision   decision.Decision
	Frames     []*FrameSlice
	Clips      []*AnimationClip
	Stats      map[string]any
}

// NewResult creates an empty result for a source.
func NewResult(source string, d decision.Decision) *Result {
	return &Result{
		SourcePath: source,
		Decision:   d,
		Stats:      make(map[string]any),
	}
}
