// Package naming turns a sheet's frames into named animation clips.
package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"sprite-slicer/internal/decision"
	"sprite-slicer/internal/pattern"
	"sprite-slicer/internal/sheet"
)

// DefaultFrameDuration is the per-frame duration when none is configured.
const DefaultFrameDuration = 100 * time.Millisecond

// oneShotKeywords mark animations that play once.
var oneShotKeywords = []string{"attack", "death", "die", "hit", "hurt", "jump", "cast", "spawn"}

var (
	sheetSuffix = regexp.MustCompile(`([_-](sheet|strip)|_\d+x\d+)$`)
	digitSuffix = regexp.MustCompile(`[_-]?\d+$`)
	nonAlnum    = regexp.MustCompile(`[^a-z0-9]+`)
)

// ClipRule replaces the derived clip name, and optionally the loop flag,
// for matching files.
type ClipRule struct {
	Name string
	Loop *bool
}

// Namer builds the clips of a result.
type Namer struct {
	Rules         []pattern.Rule[ClipRule]
	FrameDuration time.Duration
}

// New creates a namer.
func New(rules []pattern.Rule[ClipRule], frameDuration time.Duration) *Namer {
	if frameDuration <= 0 {
		frameDuration = DefaultFrameDuration
	}
	return &Namer{Rules: rules, FrameDuration: frameDuration}
}

// BaseName derives a clip name from a file path: the lower-cased stem with
// sheet markers and trailing numbers removed and separators normalised.
func BaseName(path string) string {
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	stem = strings.Trim(nonAlnum.ReplaceAllString(stem, "_"), "_")
	for {
		next := digitSuffix.ReplaceAllString(sheetSuffix.ReplaceAllString(stem, ""), "")
		if next == stem {
			break
		}
		stem = next
	}
	stem = strings.Trim(stem, "_")
	if stem == "" {
		return "sprite"
	}
	return stem
}

// DefaultLoop reports whether a clip of this name should loop. A name with
// a one-shot keyword as a whole word, optionally followed by digits, plays
// once.
func DefaultLoop(name string) bool {
	for _, word := range nonAlnum.Split(strings.ToLower(name), -1) {
		word = strings.TrimRight(word, "0123456789")
		for _, k := range oneShotKeywords {
			if word == k {
				return false
			}
		}
	}
	return true
}

// Name resolves the clip name and loop flag for a source file.
func (n *Namer) Name(path string) (string, bool) {
	name := BaseName(path)
	loop := DefaultLoop(name)
	if rule, ok := pattern.First(n.Rules, path); ok {
		if rule.Value.Name != "" {
			name = rule.Value.Name
			loop = DefaultLoop(name)
		}
		if rule.Value.Loop != nil {
			loop = *rule.Value.Loop
		}
	}
	return name, loop
}

// Clips groups frames into clips. A single image gets a one-frame clip
// that does not loop; a multi-row sheet gets one clip per row.
func (n *Namer) Clips(path string, d decision.Decision, frames []*sheet.FrameSlice) []*sheet.AnimationClip {
	if len(frames) == 0 {
		return nil
	}
	name, loop := n.Name(path)

	switch d {
	case decision.Whole:
		return []*sheet.AnimationClip{sheet.NewAnimationClip(name, false, n.FrameDuration, frames[:1])}
	case decision.Two:
		return []*sheet.AnimationClip{sheet.NewAnimationClip(name, loop, n.FrameDuration, frames)}
	}

	var rows [][]*sheet.FrameSlice
	for _, f := range frames {
		if len(rows) == 0 || rows[len(rows)-1][0].Row != f.Row {
			rows = append(rows, nil)
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], f)
	}
	if len(rows) == 1 {
		return []*sheet.AnimationClip{sheet.NewAnimationClip(name, loop, n.FrameDuration, frames)}
	}

	clips := make([]*sheet.AnimationClip, len(rows))
	for i, row := range rows {
		clips[i] = sheet.NewAnimationClip(fmt.Sprintf("%s_row%d", name, i), loop, n.FrameDuration, row)
	}
	return clips
}
