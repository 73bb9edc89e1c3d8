package model

import "fmt"

// ConfigurationError reports an invalid requested-id set, parameter file, or
// naming convention. It is raised before any record or filesystem mutation.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// CorruptRecordError reports a completion record document that exists but
// cannot be parsed. The run aborts rather than guessing at partial history.
type CorruptRecordError struct {
	Path string
	Err  error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt completion record %s: %v", e.Path, e.Err)
}

func (e *CorruptRecordError) Unwrap() error { return e.Err }

// ExternalToolError reports a failed external tool invocation. It is fatal to
// the whole run; the record keeps only items completed before the failure.
type ExternalToolError struct {
	TS       int
	ExitCode int
	Stderr   string
}

func (e *ExternalToolError) Error() string {
	return fmt.Sprintf("external tool failed on tilt-series %d (exit %d): %s",
		e.TS, e.ExitCode, e.Stderr)
}
