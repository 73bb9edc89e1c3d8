package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomopipe/tomopipe/internal/model"
)

const sampleDoc = `
project: lamella1
system:
  process_list: [1, 2, 3]
  output_path: ./stacks/
  output_rootname: TS_
  output_suffix: ""
  source_folder: ./raw/
  folder_prefix: Position
  source_tiff: true
  index_field: 1
  tiltangle_field: 3
batchruntomo:
  setup:
    use_rawtlt: true
    pixel_size: 1.63
    rot_angle: 86.0
    gold_size: 10.0
    adoc_template: /opt/imod/cryoSample.adoc
  positioning:
    do_positioning: false
    unbinned_thickness: 3600
  aligned_stack:
    correct_ctf: false
    erase_gold: true
    2d_filtering: false
    bin_factor: 4
  reconstruction:
    thickness: 1500
  postprocessing:
    run_trimvol: true
    trimvol_reorient: flip
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, model.StageReconstruct.ParamFile("lamella1"))
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0644))

	cfg, err := Load(dir, "lamella1", model.StageReconstruct)
	require.NoError(t, err)

	assert.Equal(t, "lamella1", cfg.Project)
	assert.Equal(t, []int{1, 2, 3}, cfg.System.ProcessList)
	assert.Equal(t, "TS_", cfg.System.OutputRootname)
	assert.True(t, cfg.System.SourceTIFF)
	assert.Equal(t, 1.63, cfg.BatchRunTomo.Setup.PixelSize)
	assert.True(t, cfg.BatchRunTomo.AlignedStack.EraseGold)
	assert.Equal(t, "flip", cfg.BatchRunTomo.Postprocessing.TrimvolReorient)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir(), "lamella1", model.StageReconstruct)
	require.Error(t, err)
	var cfgErr *model.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, model.StageReconstruct.ParamFile("lamella1"))
	require.NoError(t, os.WriteFile(path, []byte("system: [unclosed"), 0644))

	_, err := Load(dir, "lamella1", model.StageReconstruct)
	require.Error(t, err)
	var cfgErr *model.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestValidate(t *testing.T) {
	valid := func() *model.Config {
		return &model.Config{
			Project: "p",
			System: model.SystemConfig{
				OutputPath:     "stacks",
				OutputRootname: "TS",
			},
		}
	}

	require.NoError(t, Validate(valid()))

	cases := []struct {
		name   string
		mutate func(*model.Config)
	}{
		{"empty project", func(c *model.Config) { c.Project = "" }},
		{"empty output path", func(c *model.Config) { c.System.OutputPath = "" }},
		{"empty rootname", func(c *model.Config) { c.System.OutputRootname = "" }},
		{"negative field index", func(c *model.Config) { c.System.IndexField = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			var cfgErr *model.ConfigurationError
			assert.True(t, errors.As(Validate(cfg), &cfgErr))
		})
	}
}
