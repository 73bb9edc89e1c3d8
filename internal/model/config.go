// Package model defines the data structures for tomopipe's configuration,
// work items, and completion records.
package model

type Config struct {
	Project      string             `yaml:"project"`
	System       SystemConfig       `yaml:"system"`
	BatchRunTomo BatchRunTomoConfig `yaml:"batchruntomo"`
}

// SystemConfig describes where raw images come from, where outputs go, and
// which tilt-series indices the current invocation should process.
type SystemConfig struct {
	ProcessList    []int  `yaml:"process_list"`
	OutputPath     string `yaml:"output_path"`
	OutputRootname string `yaml:"output_rootname"`
	OutputSuffix   string `yaml:"output_suffix"`

	SourceFolder string `yaml:"source_folder"`
	FolderPrefix string `yaml:"folder_prefix"`
	SourceTIFF   bool   `yaml:"source_tiff"`

	// Underscore-separated filename fields holding the tilt-series index
	// and the tilt angle, counted from zero.
	IndexField     int `yaml:"index_field"`
	TiltAngleField int `yaml:"tiltangle_field"`
}

type BatchRunTomoConfig struct {
	Setup          SetupConfig          `yaml:"setup"`
	Positioning    PositioningConfig    `yaml:"positioning"`
	AlignedStack   AlignedStackConfig   `yaml:"aligned_stack"`
	Reconstruction ReconstructionConfig `yaml:"reconstruction"`
	Postprocessing PostprocessingConfig `yaml:"postprocessing"`
}

type SetupConfig struct {
	UseRawtlt    bool    `yaml:"use_rawtlt"`
	PixelSize    float64 `yaml:"pixel_size"`
	RotAngle     float64 `yaml:"rot_angle"`
	GoldSize     float64 `yaml:"gold_size"`
	AdocTemplate string  `yaml:"adoc_template"`
}

type PositioningConfig struct {
	DoPositioning     bool `yaml:"do_positioning"`
	UnbinnedThickness int  `yaml:"unbinned_thickness"`
}

type AlignedStackConfig struct {
	CorrectCTF bool `yaml:"correct_ctf"`
	EraseGold  bool `yaml:"erase_gold"`
	Filtering  bool `yaml:"2d_filtering"`
	BinFactor  int  `yaml:"bin_factor"`
}

type ReconstructionConfig struct {
	Thickness int `yaml:"thickness"`
}

type PostprocessingConfig struct {
	RunTrimvol      bool   `yaml:"run_trimvol"`
	TrimvolReorient string `yaml:"trimvol_reorient"`
}
