// Package pipeline runs sheets through segmentation, decision, slicing,
// learning and naming, one at a time or as a parallel batch.
package pipeline

import (
	"path/filepath"

	"sprite-slicer/internal/alphametrics"
	"sprite-slicer/internal/classifier"
	"sprite-slicer/internal/cluster"
	"sprite-slicer/internal/config"
	"sprite-slicer/internal/decision"
	"sprite-slicer/internal/naming"
	"sprite-slicer/internal/raster"
	"sprite-slicer/internal/segment"
	"sprite-slicer/internal/sheet"
	"sprite-slicer/internal/slicer"

	"github.com/golang/glog"
)

// Stats keys set on every result.
const (
	StatComponents      = "components"
	StatClusters        = "clusters"
	StatRowValley       = "row_valley_score"
	StatColValley       = "col_valley_score"
	StatLargestShare    = "largest_share"
	StatCoreComponents  = "core_components"
	StatFXComponents    = "fx_components"
	StatDecisionReason  = "decision_reason"
	StatOverridePattern = "override_pattern"
	StatLearnCore       = "learn_core"
	StatLearnFX         = "learn_fx"
	StatLearnSkipped    = "learn_skipped"
	StatLearnError      = "learn_mean_abs_error"
)

// Processor holds what every sheet of a run shares. The classifier model
// is the only mutable part and guards itself.
type Processor struct {
	cfg     *config.Config
	decider *decision.Module
	model   *classifier.Model
	namer   *naming.Namer
	learn   bool
}

// New creates a processor. Learning follows cfg.
func New(cfg *config.Config, model *classifier.Model) *Processor {
	return &Processor{
		cfg:     cfg,
		decider: decision.New(cfg.DecisionConfig()),
		model:   model,
		namer:   naming.New(cfg.ClipRules(), cfg.FrameDuration()),
		learn:   cfg.LearnEnabled(),
	}
}

// Model returns the shared classifier.
func (p *Processor) Model() *classifier.Model {
	return p.model
}

// SetLearn turns classifier updates on or off.
func (p *Processor) SetLearn(on bool) {
	p.learn = on
}

// ProcessFile loads and processes one sheet.
func (p *Processor) ProcessFile(path string) (*sheet.Result, error) {
	r, err := raster.Load(path)
	if err != nil {
		return nil, err
	}
	return p.Process(path, r), nil
}

// Process runs one decoded sheet through the pipeline. Name is matched
// against override patterns by its base name.
func (p *Processor) Process(name string, r *raster.Raster) *sheet.Result {
	seg := segment.Segment(r, p.cfg.SegmentOptions())
	metrics := alphametrics.Compute(r, p.cfg.AlphaThreshold)
	clusters := cluster.Build(seg.Components, p.cfg.ClusterGap)
	outcome := p.decider.Decide(name, seg.Components, clusters, metrics)

	scores := make(map[int]float64, len(seg.Components))
	core, fx := 0, 0
	for _, c := range seg.Components {
		s := p.model.Score(c)
		scores[c.ID] = s
		if s >= slicer.CoreScoreMin {
			core++
		} else {
			fx++
		}
	}

	frames := slicer.Slice(r, seg, clusters, outcome.Decision, scores)

	res := sheet.NewResult(name, outcome.Decision)
	res.Frames = frames
	res.Stats[StatComponents] = len(seg.Components)
	res.Stats[StatClusters] = len(clusters)
	res.Stats[StatRowValley] = metrics.RowValleyScore
	res.Stats[StatColValley] = metrics.ColValleyScore
	res.Stats[StatLargestShare] = largestShare(seg.Components)
	res.Stats[StatCoreComponents] = core
	res.Stats[StatFXComponents] = fx
	res.Stats[StatDecisionReason] = outcome.Reason
	if outcome.Overridden {
		res.Stats[StatOverridePattern] = outcome.Pattern
	}

	if p.learn {
		st := p.model.LearnFrom(seg.Components, sheet.Rects(frames))
		res.Stats[StatLearnCore] = st.Core
		res.Stats[StatLearnFX] = st.FX
		res.Stats[StatLearnSkipped] = st.Skipped
		res.Stats[StatLearnError] = st.MeanAbsError
	}

	res.Clips = p.namer.Clips(name, outcome.Decision, frames)

	glog.Infof("%s: %s (%s), %d components, %d clusters, %d frames, %d clips",
		filepath.Base(name), outcome.Decision, outcome.Reason, len(seg.Components), len(clusters), len(frames), len(res.Clips))
	return res
}

func largestShare(components []segment.Component) float64 {
	total := segment.TotalArea(components)
	if total <= 0 {
		return 0
	}
	return float64(segment.LargestArea(components)) / float64(total)
}
