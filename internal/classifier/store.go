package classifier

import (
	"bufio"
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

const (
	appDirName    = "sprite-slicer"
	modelFileName = "corefx_model.txt"
)

// ErrMalformedModel is the cause of every error returned for a model record
// that exists but cannot be parsed.
var ErrMalformedModel = errors.New("malformed classifier record")

// getModelLibPath returns the path to the model file in the lib/ directory
// next to the executable, or empty string if it can't be determined.
func getModelLibPath() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(exe), "..", "lib", modelFileName)
}

// DefaultModelPath returns where the model is kept between runs.
// Prefers lib/corefx_model.txt next to the executable when that lib/
// directory exists; falls back to the user config directory.
func DefaultModelPath() (string, error) {
	if libPath := getModelLibPath(); libPath != "" {
		if info, err := os.Stat(filepath.Dir(libPath)); err == nil && info.IsDir() {
			return libPath, nil
		}
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "cannot determine config directory")
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, appDirName, modelFileName), nil
}

// LoadOrCreate reads the model record at path. A missing file yields the
// default model; an unreadable or malformed record is an error.
func LoadOrCreate(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			glog.Infof("no classifier at %s, starting from defaults", path)
			return NewModel(), nil
		}
		return nil, errors.Wrapf(err, "reading classifier %s", path)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "loading classifier %s", path)
	}
	return m, nil
}

// Parse decodes a two-line record: the bias, then the comma-separated
// weights.
func Parse(data []byte) (*Model, error) {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning record")
	}
	if len(lines) != 2 {
		return nil, errors.Wrapf(ErrMalformedModel, "want 2 lines, got %d", len(lines))
	}

	bias, err := parseFinite(lines[0])
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedModel, "bias %q", lines[0])
	}

	fields := strings.Split(lines[1], ",")
	if len(fields) != FeatureCount {
		return nil, errors.Wrapf(ErrMalformedModel, "want %d weights, got %d", FeatureCount, len(fields))
	}
	weights := make([]float64, FeatureCount)
	for i, f := range fields {
		w, err := parseFinite(strings.TrimSpace(f))
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedModel, "weight %d %q", i, f)
		}
		weights[i] = w
	}

	return NewModelWith(bias, weights), nil
}

// ResetFile overwrites the record at path with the default weights without
// reading it first, so an unreadable record can still be replaced.
func ResetFile(path string) (*Model, error) {
	m := NewModel()
	if err := m.Save(path); err != nil {
		return nil, err
	}
	glog.Infof("reset classifier record %s", path)
	return m, nil
}

// parseFinite parses a float and rejects NaN and infinities.
func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// Format encodes the model as its two-line record.
func (m *Model) Format() []byte {
	bias, weights := m.Snapshot()

	var buf bytes.Buffer
	buf.WriteString(strconv.FormatFloat(bias, 'g', -1, 64))
	buf.WriteByte('\n')
	for i, w := range weights {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.FormatFloat(w, 'g', -1, 64))
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

// Save writes the model record to path, creating parent directories.
func (m *Model) Save(path string) error {
	if path == "" {
		return errors.New("no model path set")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create model directory")
	}
	if err := os.WriteFile(path, m.Format(), 0644); err != nil {
		return errors.Wrap(err, "failed to write model")
	}
	return nil
}
