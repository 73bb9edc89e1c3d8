// Package progress renders per-item progress for a pipeline run on the
// terminal. It implements runner.Reporter.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/tomopipe/tomopipe/internal/catalog"
)

// Terminal writes one line per item transition, colored when out is a TTY.
type Terminal struct {
	out     io.Writer
	stage   string
	started *color.Color
	done    *color.Color
}

// NewTerminal builds a reporter for the given stage writing to out
// (os.Stdout when nil).
func NewTerminal(out io.Writer, stage string) *Terminal {
	if out == nil {
		out = os.Stdout
	}

	started := color.New(color.FgCyan)
	done := color.New(color.FgGreen)
	if f, ok := out.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		started.DisableColor()
		done.DisableColor()
	}

	return &Terminal{out: out, stage: stage, started: started, done: done}
}

func (t *Terminal) ItemStarted(item catalog.Item, index, total int) {
	t.started.Fprintf(t.out, "[%d/%d] %s TS %d...\n", index+1, total, t.stage, item.TS)
}

func (t *Terminal) ItemCompleted(item catalog.Item, index, total int) {
	t.done.Fprintf(t.out, "[%d/%d] %s TS %d done\n", index+1, total, t.stage, item.TS)
}

func (t *Terminal) RunFinished(completed, total int) {
	if completed == total {
		t.done.Fprintf(t.out, "%s: %d/%d tilt-series completed\n", t.stage, completed, total)
		return
	}
	fmt.Fprintf(t.out, "%s: %d/%d tilt-series completed\n", t.stage, completed, total)
}
