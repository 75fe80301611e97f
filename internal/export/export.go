// Package export writes sliced frames, a JSON manifest and optional GIF
// previews for each processed sheet.
package export

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"sprite-slicer/internal/decision"
	"sprite-slicer/internal/sheet"

	"github.com/andybons/gogif"
	"github.com/cenkalti/dominantcolor"
	"github.com/golang/glog"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// paletteSize is the number of dominant colours listed per frame.
const paletteSize = 3

// ErrOutputClash is returned by Write when a different source already
// wrote to the same output directory.
var ErrOutputClash = errors.New("output directory already used by another sheet")

// Exporter writes results below OutDir, one directory per sheet.
type Exporter struct {
	OutDir string
	Scale  int  // Integer upscale factor, 1 when unset
	GIF    bool // Also write one animated GIF per clip

	mu      sync.Mutex
	names   map[string]string // Cleaned source path to directory name
	claimed map[string]string // Directory name to the source written there
}

// Manifest is the JSON description of an exported sheet.
type Manifest struct {
	Source   string            `json:"source"`
	Decision decision.Decision `json:"decision"`
	Scale    int               `json:"scale"`
	Frames   []ManifestFrame   `json:"frames"`
	Clips    []ManifestClip    `json:"clips"`
	Stats    map[string]any    `json:"stats,omitempty"`
}

// ManifestFrame describes one frame; the rectangle is in sheet pixels.
type ManifestFrame struct {
	Index      int      `json:"index"`
	X          int      `json:"x"`
	Y          int      `json:"y"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	PivotX     float64  `json:"pivot_x"`
	PivotY     float64  `json:"pivot_y"`
	Row        int      `json:"row"`
	Components []int    `json:"components"`
	Palette    []string `json:"palette,omitempty"` // Dominant colours, most common first
	Path       string   `json:"path,omitempty"`    // Relative to the manifest
}

// ManifestClip describes one clip by frame index.
type ManifestClip struct {
	Name            string `json:"name"`
	Loop            bool   `json:"loop"`
	FrameDurationMS int64  `json:"frame_duration_ms"`
	Frames          []int  `json:"frames"`
	Preview         string `json:"preview,omitempty"`
}

// Stem returns the file-system safe stem used for a source path.
func Stem(source string) string {
	return safeName(strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)))
}

func safeName(s string) string {
	s = strings.Trim(unsafeChars.ReplaceAllString(s, "_"), "_")
	if s == "" {
		return "sheet"
	}
	return s
}

// Reserve assigns output directory names to a batch of sources before any
// is written. Sources sharing a stem are told apart by prefixing as many
// parent directory names as needed, then by a numeric suffix.
func (e *Exporter) Reserve(sources []string) {
	srcs := make([]string, 0, len(sources))
	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		s = filepath.Clean(s)
		if !seen[s] {
			seen[s] = true
			srcs = append(srcs, s)
		}
	}
	sort.Strings(srcs)

	parts := make([][]string, len(srcs))
	depth := make([]int, len(srcs))
	names := make([]string, len(srcs))
	for i, s := range srcs {
		parts[i] = strings.Split(filepath.ToSlash(s), "/")
	}
	for {
		groups := make(map[string][]int)
		for i, p := range parts {
			last := len(p) - 1
			words := append(append([]string(nil), p[last-depth[i]:last]...), strings.TrimSuffix(p[last], filepath.Ext(p[last])))
			names[i] = safeName(strings.Join(words, "_"))
			groups[names[i]] = append(groups[names[i]], i)
		}
		grew := false
		for _, idx := range groups {
			if len(idx) < 2 {
				continue
			}
			for _, i := range idx {
				if depth[i] < len(parts[i])-1 {
					depth[i]++
					grew = true
				}
			}
		}
		if !grew {
			break
		}
	}

	used := make(map[string]bool, len(srcs))
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.names == nil {
		e.names = make(map[string]string, len(srcs))
	}
	for i, s := range srcs {
		name := names[i]
		for k := 2; used[name]; k++ {
			name = fmt.Sprintf("%s_%d", names[i], k)
		}
		used[name] = true
		e.names[s] = name
	}
}

func (e *Exporter) scale() int {
	return max(e.Scale, 1)
}

// Dir returns the directory a result is written to: the name assigned by
// Reserve, or the source's stem.
func (e *Exporter) Dir(res *sheet.Result) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return filepath.Join(e.OutDir, e.nameLocked(res.SourcePath))
}

func (e *Exporter) nameLocked(source string) string {
	if name, ok := e.names[filepath.Clean(source)]; ok {
		return name
	}
	return Stem(source)
}

// claim binds a directory name to a source for the exporter's lifetime.
func (e *Exporter) claim(source string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	name := e.nameLocked(source)
	src := filepath.Clean(source)
	if prev, ok := e.claimed[name]; ok && prev != src {
		return "", errors.Wrapf(ErrOutputClash, "%s and %s both map to %s", prev, src, name)
	}
	if e.claimed == nil {
		e.claimed = make(map[string]string)
	}
	e.claimed[name] = src
	return name, nil
}

// Write exports a result and records each frame's file in ExportPath.
func (e *Exporter) Write(res *sheet.Result) error {
	stem, err := e.claim(res.SourcePath)
	if err != nil {
		return err
	}
	dir := filepath.Join(e.OutDir, stem)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	for _, f := range res.Frames {
		if f.Image == nil || f.Width == 0 || f.Height == 0 {
			glog.Warningf("%s: frame %d is empty, not written", stem, f.Index)
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%03d.png", stem, f.Index))
		if err := writePNG(path, e.scaled(f.Image)); err != nil {
			return err
		}
		f.ExportPath = path
	}

	m := e.manifest(res, dir)
	if e.GIF {
		for i, c := range res.Clips {
			path := filepath.Join(dir, fmt.Sprintf("%s.gif", Stem(c.Name())))
			if err := e.writeGIF(path, c); err != nil {
				return err
			}
			m.Clips[i].Preview = filepath.Base(path)
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode manifest")
	}
	manifestPath := filepath.Join(dir, stem+".json")
	if err := os.WriteFile(manifestPath, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write manifest")
	}

	glog.V(1).Infof("exported %s: %d frames, %d clips to %s", stem, len(res.Frames), len(res.Clips), dir)
	return nil
}

func (e *Exporter) manifest(res *sheet.Result, dir string) *Manifest {
	m := &Manifest{
		Source:   res.SourcePath,
		Decision: res.Decision,
		Scale:    e.scale(),
		Frames:   make([]ManifestFrame, len(res.Frames)),
		Clips:    make([]ManifestClip, len(res.Clips)),
		Stats:    res.Stats,
	}
	for i, f := range res.Frames {
		mf := ManifestFrame{
			Index:      f.Index,
			X:          f.X,
			Y:          f.Y,
			Width:      f.Width,
			Height:     f.Height,
			PivotX:     f.PivotX,
			PivotY:     f.PivotY,
			Row:        f.Row,
			Components: f.Components,
			Palette:    framePalette(f.Image),
		}
		if f.ExportPath != "" {
			if rel, err := filepath.Rel(dir, f.ExportPath); err == nil {
				mf.Path = filepath.ToSlash(rel)
			}
		}
		m.Frames[i] = mf
	}
	for i, c := range res.Clips {
		frames := c.Frames()
		idx := make([]int, len(frames))
		for j, f := range frames {
			idx[j] = f.Index
		}
		m.Clips[i] = ManifestClip{
			Name:            c.Name(),
			Loop:            c.Loop(),
			FrameDurationMS: c.FrameDuration().Milliseconds(),
			Frames:          idx,
		}
	}
	return m
}

// framePalette lists the dominant colours of a frame as hex strings.
func framePalette(img *image.NRGBA) []string {
	if img == nil || img.Bounds().Empty() {
		return nil
	}
	var out []string
	for _, c := range dominantcolor.FindWeight(img, paletteSize) {
		col, ok := colorful.MakeColor(c.RGBA)
		if !ok {
			continue
		}
		out = append(out, col.Hex())
	}
	return out
}

// scaled upscales img by the integer factor with nearest-neighbour
// sampling so pixel art stays crisp.
func (e *Exporter) scaled(img image.Image) image.Image {
	s := e.scale()
	if s == 1 {
		return img
	}
	b := img.Bounds()
	return resize.Resize(uint(b.Dx()*s), uint(b.Dy()*s), img, resize.NearestNeighbor)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create frame file")
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to encode %s", path)
	}
	return errors.Wrapf(f.Close(), "failed to close %s", path)
}

// writeGIF renders a clip with every frame's pivot on the same canvas
// point.
func (e *Exporter) writeGIF(path string, clip *sheet.AnimationClip) error {
	frames := clip.Frames()
	if len(frames) == 0 {
		return nil
	}

	s := float64(e.scale())
	var left, top, right, bottom int
	type placed struct {
		img    image.Image
		ax, ay int
	}
	items := make([]placed, 0, len(frames))
	for _, f := range frames {
		if f.Image == nil || f.Width == 0 || f.Height == 0 {
			continue
		}
		img := e.scaled(f.Image)
		b := img.Bounds()
		ax := int(f.PivotX*float64(f.Width)*s + 0.5)
		ay := int(f.PivotY*float64(f.Height)*s + 0.5)
		left = max(left, ax)
		top = max(top, ay)
		right = max(right, b.Dx()-ax)
		bottom = max(bottom, b.Dy()-ay)
		items = append(items, placed{img: img, ax: ax, ay: ay})
	}
	if len(items) == 0 {
		return nil
	}

	canvas := image.Rect(0, 0, left+right, top+bottom)
	delay := int(clip.FrameDuration() / (10 * time.Millisecond))
	g := gif.GIF{
		Config: image.Config{Width: canvas.Dx(), Height: canvas.Dy()},
	}
	if !clip.Loop() {
		g.LoopCount = -1
	}

	quantizer := gogif.MedianCutQuantizer{NumColor: 255} // One slot left for transparency.
	for _, it := range items {
		full := image.NewNRGBA(canvas)
		b := it.img.Bounds()
		at := image.Pt(left-it.ax, top-it.ay)
		draw.Draw(full, image.Rectangle{Min: at, Max: at.Add(b.Size())}, it.img, b.Min, draw.Src)

		pal := image.NewPaletted(canvas, nil)
		quantizer.Quantize(pal, canvas, full, image.Point{})

		// Transparent first, so untouched pixels stay clear.
		framePal := image.NewPaletted(canvas, append(color.Palette{color.Transparent}, pal.Palette...))
		draw.Draw(framePal, canvas, full, image.Point{}, draw.Over)

		g.Image = append(g.Image, framePal)
		g.Delay = append(g.Delay, delay)
		g.Disposal = append(g.Disposal, gif.DisposalBackground)
	}
	g.BackgroundIndex = 0

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create preview file")
	}
	if err := gif.EncodeAll(f, &g); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to encode %s", path)
	}
	return errors.Wrapf(f.Close(), "failed to close %s", path)
}
