// Package imod integrates the IMOD batchruntomo tool: directive file
// rendering, command assembly, and process invocation.
package imod

import (
	"fmt"
	"os"
	"strings"

	"github.com/tomopipe/tomopipe/internal/model"
	"github.com/tomopipe/tomopipe/templates"
)

// DirectiveName is the rendered directive file written into the working
// directory before a reconstruction run.
const DirectiveName = "recon.adoc"

const templateName = "recon.adoc.tmpl"

var reorientValues = map[string]string{
	"none":   "0",
	"flip":   "1",
	"rotate": "2",
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// DirectiveOptions converts the batchruntomo configuration into the
// enumerated placeholder values of the directive template.
func DirectiveOptions(cfg model.BatchRunTomoConfig) (map[string]string, error) {
	reorient, ok := reorientValues[cfg.Postprocessing.TrimvolReorient]
	if !ok {
		return nil, &model.ConfigurationError{
			Reason: fmt.Sprintf("trimvol_reorient must be none, flip or rotate, got %q",
				cfg.Postprocessing.TrimvolReorient),
		}
	}

	return map[string]string{
		"use_rawtlt":    boolFlag(cfg.Setup.UseRawtlt),
		"pixel_size":    fmt.Sprintf("%g", cfg.Setup.PixelSize),
		"rot_angle":     fmt.Sprintf("%g", cfg.Setup.RotAngle),
		"gold_size":     fmt.Sprintf("%g", cfg.Setup.GoldSize),
		"adoc_template": cfg.Setup.AdocTemplate,

		"do_pos":        boolFlag(cfg.Positioning.DoPositioning),
		"pos_thickness": fmt.Sprintf("%d", cfg.Positioning.UnbinnedThickness),

		"corr_ctf":         boolFlag(cfg.AlignedStack.CorrectCTF),
		"erase_gold":       boolFlag(cfg.AlignedStack.EraseGold),
		"filter_stack":     boolFlag(cfg.AlignedStack.Filtering),
		"stack_bin_factor": fmt.Sprintf("%d", cfg.AlignedStack.BinFactor),

		"recon_thickness": fmt.Sprintf("%d", cfg.Reconstruction.Thickness),

		"run_trimvol":      boolFlag(cfg.Postprocessing.RunTrimvol),
		"trimvol_reorient": reorient,
	}, nil
}

// Render substitutes <key> placeholders in the template with option values.
// It is a pure function of its inputs.
func Render(template string, options map[string]string) string {
	out := template
	for key, value := range options {
		out = strings.ReplaceAll(out, "<"+key+">", value)
	}
	return out
}

// WriteDirective renders the embedded directive template for cfg and writes
// it to path.
func WriteDirective(path string, cfg model.BatchRunTomoConfig) error {
	opts, err := DirectiveOptions(cfg)
	if err != nil {
		return err
	}
	tmpl, err := templates.FS.ReadFile(templateName)
	if err != nil {
		return fmt.Errorf("read embedded directive template: %w", err)
	}
	if err := os.WriteFile(path, []byte(Render(string(tmpl), opts)), 0644); err != nil {
		return fmt.Errorf("write directive file: %w", err)
	}
	return nil
}
