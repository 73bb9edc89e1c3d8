package imod

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/tomopipe/tomopipe/internal/catalog"
)

// Fixed batchruntomo step range for the reconstruction stage: 8 (aligned
// stack generation) through 20 (postprocessing).
const (
	startingStep = 8
	endingStep   = 20
)

// cpuMachineList enumerates usable CPU indices for the -CPUMachineList
// argument.
func cpuMachineList(n int) string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = strconv.Itoa(i + 1)
	}
	return strings.Join(ids, ",")
}

// BuildArgs assembles the batchruntomo argv for one work item. directive is
// the rendered adoc path; the item's Dir is passed as the working location.
func BuildArgs(conv catalog.Convention, it catalog.Item, directive string) []string {
	return []string{
		"-CPUMachineList", cpuMachineList(runtime.NumCPU()),
		"-GPUMachineList", "1",
		"-DirectiveFile", directive,
		"-RootName", fmt.Sprintf("%s_%02d", conv.Rootname, it.TS),
		"-CurrentLocation", it.Dir,
		"-StartingStep", strconv.Itoa(startingStep),
		"-EndingStep", strconv.Itoa(endingStep),
	}
}
