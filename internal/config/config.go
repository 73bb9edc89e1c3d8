// Package config loads and validates per-stage parameter documents.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/tomopipe/tomopipe/internal/model"
)

// Load reads the parameter document for a (project, stage) pair under dir
// and validates the fields the pipeline depends on.
func Load(dir, project string, stage model.Stage) (*model.Config, error) {
	path := filepath.Join(dir, stage.ParamFile(project))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &model.ConfigurationError{
				Reason: fmt.Sprintf("parameter file %s not found (run new first)", path),
			}
		}
		return nil, &model.ConfigurationError{Reason: "read parameter file", Err: err}
	}

	var cfg model.Config
	if err := yamlv3.Unmarshal(data, &cfg); err != nil {
		return nil, &model.ConfigurationError{
			Reason: fmt.Sprintf("parse parameter file %s", path),
			Err:    err,
		}
	}
	if cfg.Project == "" {
		cfg.Project = project
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants every stage run relies on. Catalog-level
// constraints (process list contents, naming composition) are validated
// again by catalog.DeriveItems; this covers document-level problems.
func Validate(cfg *model.Config) error {
	if cfg.Project == "" {
		return &model.ConfigurationError{Reason: "project name is empty"}
	}
	if cfg.System.OutputPath == "" {
		return &model.ConfigurationError{Reason: "system.output_path is empty"}
	}
	if cfg.System.OutputRootname == "" {
		return &model.ConfigurationError{Reason: "system.output_rootname is empty"}
	}
	if cfg.System.IndexField < 0 || cfg.System.TiltAngleField < 0 {
		return &model.ConfigurationError{Reason: "filename field indices must be non-negative"}
	}
	return nil
}
