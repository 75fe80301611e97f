// Package config loads the slicer settings from a TOML file.
package config

import (
	"os"
	"time"

	"sprite-slicer/internal/cluster"
	"sprite-slicer/internal/decision"
	"sprite-slicer/internal/naming"
	"sprite-slicer/internal/pattern"
	"sprite-slicer/internal/segment"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// DecisionOverride forces a decision for files matching Pattern.
type DecisionOverride struct {
	Pattern  string            `toml:"pattern"`
	Decision decision.Decision `toml:"decision"`
}

// ClipName renames the clips of files matching Pattern.
type ClipName struct {
	Pattern string `toml:"pattern"`
	Name    string `toml:"name"`
	Loop    *bool  `toml:"loop"`
}

// Config holds every tunable of a run. Override tables keep file order;
// the first matching entry wins.
type Config struct {
	AlphaThreshold         int     `toml:"alpha_threshold"`
	Connectivity           int     `toml:"connectivity"`
	ClusterGap             int     `toml:"cluster_gap"`
	WholeCoverageThreshold float64 `toml:"whole_coverage_threshold"`
	TwoGapIOUMax           float64 `toml:"two_gap_iou_max"`
	FrameDurationMS        int     `toml:"frame_duration_ms"`
	ModelPath              string  `toml:"model_path"`
	Learn                  *bool   `toml:"learn"`

	DecisionOverrides []DecisionOverride `toml:"decision_override"`
	ClipNames         []ClipName         `toml:"clip_name"`
}

// Default returns the built-in settings.
func Default() *Config {
	seg := segment.DefaultOptions()
	dec := decision.DefaultConfig()
	learn := true
	return &Config{
		AlphaThreshold:         seg.AlphaThreshold,
		Connectivity:           int(seg.Connectivity),
		ClusterGap:             cluster.DefaultGap,
		WholeCoverageThreshold: dec.WholeCoverageThreshold,
		TwoGapIOUMax:           dec.TwoGapIOUMax,
		FrameDurationMS:        int(naming.DefaultFrameDuration / time.Millisecond),
		Learn:                  &learn,
	}
}

// Load reads a TOML file. An empty path returns the defaults; a named file
// that does not exist is an error. Keys left out keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.AlphaThreshold < 0 || c.AlphaThreshold > 255:
		return errors.Errorf("alpha_threshold %d out of range [0,255]", c.AlphaThreshold)
	case c.Connectivity != int(segment.Four) && c.Connectivity != int(segment.Eight):
		return errors.Errorf("connectivity must be 4 or 8, got %d", c.Connectivity)
	case c.ClusterGap < 0:
		return errors.Errorf("cluster_gap %d is negative", c.ClusterGap)
	case c.WholeCoverageThreshold < 0 || c.WholeCoverageThreshold > 1:
		return errors.Errorf("whole_coverage_threshold %g out of range [0,1]", c.WholeCoverageThreshold)
	case c.TwoGapIOUMax < 0 || c.TwoGapIOUMax > 1:
		return errors.Errorf("two_gap_iou_max %g out of range [0,1]", c.TwoGapIOUMax)
	case c.FrameDurationMS <= 0:
		return errors.Errorf("frame_duration_ms must be positive, got %d", c.FrameDurationMS)
	}
	for i, o := range c.DecisionOverrides {
		if o.Pattern == "" {
			return errors.Errorf("decision_override %d has no pattern", i)
		}
	}
	for i, n := range c.ClipNames {
		if n.Pattern == "" {
			return errors.Errorf("clip_name %d has no pattern", i)
		}
	}
	return nil
}

// LearnEnabled reports whether the classifier should be updated.
func (c *Config) LearnEnabled() bool {
	return c.Learn == nil || *c.Learn
}

// FrameDuration returns the per-frame clip duration.
func (c *Config) FrameDuration() time.Duration {
	return time.Duration(c.FrameDurationMS) * time.Millisecond
}

// SegmentOptions returns the segmentation settings.
func (c *Config) SegmentOptions() segment.Options {
	return segment.Options{
		AlphaThreshold: c.AlphaThreshold,
		Connectivity:   segment.Connectivity(c.Connectivity),
	}
}

// DecisionConfig returns the decision thresholds and overrides.
func (c *Config) DecisionConfig() decision.Config {
	rules := make([]pattern.Rule[decision.Decision], len(c.DecisionOverrides))
	for i, o := range c.DecisionOverrides {
		rules[i] = pattern.Rule[decision.Decision]{Pattern: o.Pattern, Value: o.Decision}
	}
	return decision.Config{
		WholeCoverageThreshold: c.WholeCoverageThreshold,
		TwoGapIOUMax:           c.TwoGapIOUMax,
		Overrides:              rules,
	}
}

// ClipRules returns the clip naming rules.
func (c *Config) ClipRules() []pattern.Rule[naming.ClipRule] {
	rules := make([]pattern.Rule[naming.ClipRule], len(c.ClipNames))
	for i, n := range c.ClipNames {
		rules[i] = pattern.Rule[naming.ClipRule]{
			Pattern: n.Pattern,
			Value:   naming.ClipRule{Name: n.Name, Loop: n.Loop},
		}
	}
	return rules
}
