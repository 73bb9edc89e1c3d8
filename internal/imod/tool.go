package imod

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/tomopipe/tomopipe/internal/catalog"
	"github.com/tomopipe/tomopipe/internal/runner"
)

// DefaultBinary is the batchruntomo executable resolved via PATH.
const DefaultBinary = "batchruntomo"

// Tool invokes batchruntomo for one work item at a time. It implements
// runner.Invoker.
type Tool struct {
	binary    string
	conv      catalog.Convention
	directive string
}

// NewTool returns a Tool running binary (DefaultBinary if empty) with the
// rendered directive file at directive.
func NewTool(binary string, conv catalog.Convention, directive string) *Tool {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Tool{binary: binary, conv: conv, directive: directive}
}

// Invoke runs the external process synchronously, capturing both streams.
// A nonzero exit status is reported through Invocation, not as an error;
// the error return is reserved for failures to run the process at all.
func (t *Tool) Invoke(ctx context.Context, it catalog.Item) (runner.Invocation, error) {
	cmd := exec.CommandContext(ctx, t.binary, BuildArgs(t.conv, it, t.directive)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	inv := runner.Invocation{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			inv.ExitCode = exitErr.ExitCode()
			return inv, nil
		}
		return inv, fmt.Errorf("run %s: %w", t.binary, err)
	}
	return inv, nil
}
