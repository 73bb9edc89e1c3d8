package model

import "fmt"

// Stage identifies one phase of the pipeline. Each stage owns its own
// parameter file and completion record document.
type Stage string

const (
	StageMaster      Stage = "master"
	StageMotionCorr  Stage = "motioncorr"
	StageCTFFind     Stage = "ctffind"
	StageAlign       Stage = "align"
	StageReconstruct Stage = "reconstruct"
)

// suffixes maps a stage to the short suffix used in document filenames.
var suffixes = map[Stage]string{
	StageMaster:      "proj",
	StageMotionCorr:  "mc",
	StageCTFFind:     "ctffind",
	StageAlign:       "align",
	StageReconstruct: "recon",
}

// Suffix returns the filename suffix for the stage, e.g. "recon" for
// StageReconstruct.
func (s Stage) Suffix() string {
	if sfx, ok := suffixes[s]; ok {
		return sfx
	}
	return string(s)
}

func (s Stage) Valid() bool {
	_, ok := suffixes[s]
	return ok
}

// ParamFile returns the per-stage parameter document name,
// e.g. "myproj_recon.yaml".
func (s Stage) ParamFile(project string) string {
	return fmt.Sprintf("%s_%s.yaml", project, s.Suffix())
}

// RecordFile returns the per-stage completion record document name,
// e.g. "myproj_recon_mdout.yaml".
func (s Stage) RecordFile(project string) string {
	return fmt.Sprintf("%s_%s_mdout.yaml", project, s.Suffix())
}

// MasterFile returns the master metadata document name,
// e.g. "myproj_master_md.yaml".
func MasterFile(project string) string {
	return fmt.Sprintf("%s_master_md.yaml", project)
}
