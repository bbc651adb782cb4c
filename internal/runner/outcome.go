// Package runner is the language-agnostic child-process driver: prepares a
// scratch directory, writes source, compiles if required, runs with a
// wall-clock timeout and output cap, and classifies the outcome.
package runner

type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusTimeout   Status = "TIMEOUT"
)

// Outcome is the Runner's result, independent of any persistence layer:
// status, stdout, stderr, execution_time_ms, exit_code (nullable), timeout.
type Outcome struct {
	Status          Status
	Stdout          string
	Stderr          string
	ExecutionTimeMs float64
	ExitCode        *int
	Timeout         bool
}

// Descriptor is the subset of a language's runtime descriptor the Runner
// needs, kept independent of the catalogue package's GORM model.
type Descriptor struct {
	RuntimeKey     string
	FileName       string
	CompileCommand []string
	RunCommand     []string
}

func (d Descriptor) RequiresCompile() bool { return len(d.CompileCommand) > 0 }
