package imod

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomopipe/tomopipe/internal/catalog"
	"github.com/tomopipe/tomopipe/internal/model"
)

func sampleBRTConfig() model.BatchRunTomoConfig {
	return model.BatchRunTomoConfig{
		Setup: model.SetupConfig{
			UseRawtlt:    true,
			PixelSize:    1.63,
			RotAngle:     86,
			GoldSize:     10,
			AdocTemplate: "/opt/imod/SystemTemplate/cryoSample.adoc",
		},
		Positioning:    model.PositioningConfig{DoPositioning: false, UnbinnedThickness: 3600},
		AlignedStack:   model.AlignedStackConfig{BinFactor: 4},
		Reconstruction: model.ReconstructionConfig{Thickness: 1500},
		Postprocessing: model.PostprocessingConfig{RunTrimvol: true, TrimvolReorient: "flip"},
	}
}

func TestRender_SubstitutesAllPlaceholders(t *testing.T) {
	opts, err := DirectiveOptions(sampleBRTConfig())
	require.NoError(t, err)

	rendered := Render("pixel=<pixel_size> rawtlt=<use_rawtlt> reorient=<trimvol_reorient>", opts)
	assert.Equal(t, "pixel=1.63 rawtlt=1 reorient=1", rendered)
}

func TestRender_Pure(t *testing.T) {
	opts := map[string]string{"k": "v"}
	assert.Equal(t, Render("<k>", opts), Render("<k>", opts))
	assert.Equal(t, "no placeholders", Render("no placeholders", opts))
}

func TestDirectiveOptions_ReorientMapping(t *testing.T) {
	for value, want := range map[string]string{"none": "0", "flip": "1", "rotate": "2"} {
		cfg := sampleBRTConfig()
		cfg.Postprocessing.TrimvolReorient = value
		opts, err := DirectiveOptions(cfg)
		require.NoError(t, err)
		assert.Equal(t, want, opts["trimvol_reorient"])
	}
}

func TestDirectiveOptions_InvalidReorient(t *testing.T) {
	cfg := sampleBRTConfig()
	cfg.Postprocessing.TrimvolReorient = "sideways"
	_, err := DirectiveOptions(cfg)
	require.Error(t, err)
	var cfgErr *model.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestWriteDirective(t *testing.T) {
	path := filepath.Join(t.TempDir(), DirectiveName)
	require.NoError(t, WriteDirective(path, sampleBRTConfig()))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)

	assert.Contains(t, text, "setupset.copyarg.pixel = 1.63")
	assert.Contains(t, text, "runtime.Trimvol.any.reorient = 1")
	assert.Contains(t, text, "comparam.tilt.tilt.THICKNESS = 1500")
	assert.NotContains(t, text, "<", "no unsubstituted placeholders")
}

func TestBuildArgs(t *testing.T) {
	conv := catalog.NewConvention("stacks", "TS", "")
	items, err := catalog.DeriveItems(conv, []int{3})
	require.NoError(t, err)

	args := BuildArgs(conv, items[0], "recon.adoc")

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-DirectiveFile recon.adoc")
	assert.Contains(t, joined, "-RootName TS_03")
	assert.Contains(t, joined, "-CurrentLocation "+items[0].Dir)
	assert.Contains(t, joined, "-StartingStep 8")
	assert.Contains(t, joined, "-EndingStep 20")

	// CPU machine list enumerates from 1.
	for i, a := range args {
		if a == "-CPUMachineList" {
			assert.True(t, strings.HasPrefix(args[i+1], "1"))
		}
	}
}
