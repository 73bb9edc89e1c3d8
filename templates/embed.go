// Package templates embeds the batchruntomo directive template and default
// stage configuration files.
package templates

import "embed"

//go:embed recon.adoc.tmpl recon_config.yaml
var FS embed.FS
