// Package metadata builds the master metadata document from raw acquisition
// images: per-image source path, tilt-series index and tilt angle, extracted
// from the filename convention.
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/tomopipe/tomopipe/internal/model"
	yamlutil "github.com/tomopipe/tomopipe/internal/yaml"
)

// RawImage is one acquired image with its extracted identifiers.
type RawImage struct {
	FilePath string  `yaml:"file_path"`
	TS       int     `yaml:"ts"`
	Angle    float64 `yaml:"angle"`
}

// Master is the project-wide metadata document listing every raw image.
type Master struct {
	Rows []RawImage `yaml:"rows"`
}

// TiltSeriesIDs returns the sorted unique tilt-series indices present in the
// master metadata. This is the project-wide requested set stage runs default
// to.
func (m *Master) TiltSeriesIDs() []int {
	seen := make(map[int]bool)
	var ids []int
	for _, r := range m.Rows {
		if !seen[r.TS] {
			seen[r.TS] = true
			ids = append(ids, r.TS)
		}
	}
	sort.Ints(ids)
	return ids
}

// Scan globs the source folder and extracts per-image metadata. No matching
// files, or a filename the convention cannot parse, is a configuration
// problem surfaced before any record access.
func Scan(cfg model.SystemConfig) (*Master, error) {
	ext := "mrc"
	if cfg.SourceTIFF {
		ext = "tif"
	}

	criterion := "*"
	if cfg.FolderPrefix != "*" && cfg.FolderPrefix != "" {
		criterion = cfg.FolderPrefix + "_*"
	}

	pattern := filepath.Join(cfg.SourceFolder, criterion+"."+ext)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, &model.ConfigurationError{Reason: fmt.Sprintf("bad glob pattern %q", pattern), Err: err}
	}
	if len(matches) == 0 {
		return nil, &model.ConfigurationError{
			Reason: fmt.Sprintf("no raw images found matching %q", pattern),
		}
	}
	sort.Strings(matches)

	master := &Master{Rows: make([]RawImage, 0, len(matches))}
	for _, path := range matches {
		ts, angle, err := ParseFilename(path, cfg.IndexField, cfg.TiltAngleField)
		if err != nil {
			return nil, err
		}
		master.Rows = append(master.Rows, RawImage{FilePath: path, TS: ts, Angle: angle})
	}
	return master, nil
}

// ParseFilename extracts the tilt-series index and tilt angle from the
// underscore-separated fields of a raw image filename, e.g.
// "Position_03_012_[21.00].tif" with indexField=1, angleField=3.
func ParseFilename(path string, indexField, angleField int) (int, float64, error) {
	fields := strings.Split(filepath.Base(path), "_")

	if indexField < 0 || indexField >= len(fields) {
		return 0, 0, &model.ConfigurationError{
			Reason: fmt.Sprintf("no index field %d in file path %s", indexField, path),
		}
	}
	digits := strings.Builder{}
	for _, c := range fields[indexField] {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	ts, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, 0, &model.ConfigurationError{
			Reason: fmt.Sprintf("failed to get tilt series number from file path %s", path),
			Err:    err,
		}
	}

	if angleField < 0 || angleField >= len(fields) {
		return 0, 0, &model.ConfigurationError{
			Reason: fmt.Sprintf("no tilt angle field %d in file path %s", angleField, path),
		}
	}
	raw := fields[angleField]
	raw = strings.TrimSuffix(raw, filepath.Ext(raw))
	raw = strings.Trim(raw, "[]")
	angle, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, 0, &model.ConfigurationError{
			Reason: fmt.Sprintf("failed to get tilt angle from file path %s", path),
			Err:    err,
		}
	}

	return ts, angle, nil
}

// Save persists the master metadata document for a project under dir.
func Save(m *Master, dir, project string) error {
	return yamlutil.AtomicWrite(filepath.Join(dir, model.MasterFile(project)), m)
}

// Load reads the master metadata document. A missing document is an error
// here, unlike completion records: stage runs need the requested set.
func Load(dir, project string) (*Master, error) {
	path := filepath.Join(dir, model.MasterFile(project))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &model.ConfigurationError{
				Reason: fmt.Sprintf("master metadata %s not found (run scan first)", path),
			}
		}
		return nil, fmt.Errorf("read master metadata: %w", err)
	}
	var m Master
	if err := yamlv3.Unmarshal(data, &m); err != nil {
		return nil, &model.CorruptRecordError{Path: path, Err: err}
	}
	return &m, nil
}
