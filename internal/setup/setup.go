// Package setup handles tomopipe project initialization.
package setup

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/tomopipe/tomopipe/internal/model"
	atomicyaml "github.com/tomopipe/tomopipe/internal/yaml"
	"github.com/tomopipe/tomopipe/templates"
)

// Run writes the reconstruction stage parameter file for a new project into
// dir. projectName overrides the auto-detected name (defaults to the
// directory basename if empty). An existing parameter file is never
// overwritten: edits made by the operator are the point of the file.
func Run(dir, projectName string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}
	if projectName == "" {
		projectName = filepath.Base(absDir)
	}

	paramPath := filepath.Join(absDir, model.StageReconstruct.ParamFile(projectName))
	if _, err := os.Stat(paramPath); err == nil {
		return fmt.Errorf("%s already exists", paramPath)
	}

	for _, d := range []string{"logs", "stacks"} {
		if err := os.MkdirAll(filepath.Join(absDir, d), 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}

	cfg, err := generateConfig(projectName)
	if err != nil {
		return fmt.Errorf("generate config: %w", err)
	}

	if err := atomicyaml.AtomicWrite(paramPath, cfg); err != nil {
		return fmt.Errorf("write %s: %w", paramPath, err)
	}
	return nil
}

// generateConfig parses the embedded default parameter document and fills
// the project name in.
func generateConfig(projectName string) (*model.Config, error) {
	data, err := fs.ReadFile(templates.FS, "recon_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("read config template: %w", err)
	}

	var cfg model.Config
	if err := yamlv3.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config template: %w", err)
	}

	cfg.Project = projectName
	return &cfg, nil
}
