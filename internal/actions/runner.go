// Package actions writes to the channels a GitHub Actions runner reads
// after a step: the env, output, path and step summary files, and the
// workflow commands (::add-mask:: and friends) on stdout.
package actions

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/actionkit/actionkit/env"
	"github.com/google/uuid"
)

const (
	EnvFileVar     = "GITHUB_ENV"
	OutputFileVar  = "GITHUB_OUTPUT"
	PathFileVar    = "GITHUB_PATH"
	SummaryFileVar = "GITHUB_STEP_SUMMARY"
)

// ErrChannelUnavailable is returned when the runner did not provide the
// file for a channel, typically because actionkit is running outside of a
// workflow.
var ErrChannelUnavailable = errors.New("runner channel unavailable")

var variableNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Runner is the set of runner channels for the current step.
type Runner struct {
	// Stdout receives workflow commands. The runner parses these out of the
	// step's stdout stream.
	Stdout io.Writer

	EnvFile     string
	OutputFile  string
	PathFile    string
	SummaryFile string

	newDelimiter func() string
}

// FromEnvironment returns a Runner for the channel files named in environ.
func FromEnvironment(environ *env.Environment, stdout io.Writer) *Runner {
	r := &Runner{Stdout: stdout}
	r.EnvFile, _ = environ.Get(EnvFileVar)
	r.OutputFile, _ = environ.Get(OutputFileVar)
	r.PathFile, _ = environ.Get(PathFileVar)
	r.SummaryFile, _ = environ.Get(SummaryFileVar)
	return r
}

// ValidVariableName returns an error unless name can be used as an
// environment variable name.
func ValidVariableName(name string) error {
	if !variableNameRE.MatchString(name) {
		return fmt.Errorf("invalid environment variable name %q: must match %s", name, variableNameRE)
	}
	return nil
}

// CheckEnvFile returns ErrChannelUnavailable if there is nowhere to export
// environment variables to.
func (r *Runner) CheckEnvFile() error {
	if r.EnvFile == "" {
		return fmt.Errorf("%w: %s is not set", ErrChannelUnavailable, EnvFileVar)
	}
	return nil
}

// CheckOutputFile returns ErrChannelUnavailable if there is nowhere to
// write step outputs to.
func (r *Runner) CheckOutputFile() error {
	if r.OutputFile == "" {
		return fmt.Errorf("%w: %s is not set", ErrChannelUnavailable, OutputFileVar)
	}
	return nil
}

// AddMask asks the runner to redact value from all subsequent log output.
// The runner matches masks line by line, so multi-line values are
// registered one line at a time.
func (r *Runner) AddMask(value string) error {
	for line := range strings.SplitSeq(value, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := r.command("add-mask", line); err != nil {
			return err
		}
	}
	return nil
}

// Group starts a collapsible log group. Call the returned func to end it.
func (r *Runner) Group(title string) func() {
	_ = r.command("group", title)
	return func() { _ = r.command("endgroup", "") }
}

// Warning and Error emit annotations that show on the run summary.
func (r *Runner) Warning(msg string) error { return r.command("warning", msg) }
func (r *Runner) Error(msg string) error   { return r.command("error", msg) }

// ExportVariable makes name=value visible to subsequent steps in the job.
func (r *Runner) ExportVariable(name, value string) error {
	if err := ValidVariableName(name); err != nil {
		return err
	}
	if err := r.CheckEnvFile(); err != nil {
		return err
	}
	return r.appendKeyValue(r.EnvFile, name, value)
}

// SetOutput sets a named step output.
func (r *Runner) SetOutput(name, value string) error {
	if name == "" {
		return errors.New("output name must not be empty")
	}
	if err := r.CheckOutputFile(); err != nil {
		return err
	}
	return r.appendKeyValue(r.OutputFile, name, value)
}

// AddPath prepends dir to PATH for subsequent steps.
func (r *Runner) AddPath(dir string) error {
	if r.PathFile == "" {
		return fmt.Errorf("%w: %s is not set", ErrChannelUnavailable, PathFileVar)
	}
	return appendFile(r.PathFile, dir+"\n")
}

// AppendSummary adds markdown to the job summary. Without a summary file it
// does nothing, since summaries are decoration.
func (r *Runner) AppendSummary(markdown string) error {
	if r.SummaryFile == "" {
		return nil
	}
	if !strings.HasSuffix(markdown, "\n") {
		markdown += "\n"
	}
	return appendFile(r.SummaryFile, markdown)
}

func (r *Runner) command(name, data string) error {
	_, err := fmt.Fprintf(r.Stdout, "::%s::%s\n", name, escapeData(data))
	return err
}

// appendKeyValue writes the multi-line safe form the runner accepts:
//
//	name<<delimiter
//	value
//	delimiter
func (r *Runner) appendKeyValue(path, name, value string) error {
	delimiter := r.delimiter()
	if strings.Contains(name, delimiter) {
		return fmt.Errorf("unexpected input: name should not contain the delimiter %q", delimiter)
	}
	if strings.Contains(value, delimiter) {
		return fmt.Errorf("unexpected input: value should not contain the delimiter %q", delimiter)
	}

	return appendFile(path, fmt.Sprintf("%s<<%s\n%s\n%s\n", name, delimiter, value, delimiter))
}

func (r *Runner) delimiter() string {
	if r.newDelimiter != nil {
		return r.newDelimiter()
	}
	return "ghadelimiter_" + uuid.NewString()
}

func appendFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // Sync surfaces write errors

	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Sync()
}

func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	s = strings.ReplaceAll(s, "\n", "%0A")
	return s
}
