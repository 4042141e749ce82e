// Package shell provides the capability actionkit uses to run external
// CLIs: execute a command, capture its output and exit status.
//
// Commands go through the Executor interface so that tests can substitute
// a Fake and never touch the network or a package manager.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/actionkit/actionkit/env"
	"github.com/actionkit/actionkit/logger"
	"github.com/buildkite/shellwords"
)

// Executor runs commands to completion.
type Executor interface {
	// Execute runs cmd and captures stdout and stderr. A non-zero exit is
	// returned as an *ExitError together with the captured Result.
	Execute(ctx context.Context, cmd Command) (Result, error)

	// Run runs cmd, streaming its output to the log instead of capturing it.
	Run(ctx context.Context, cmd Command) error

	// LookPath returns the absolute path of an executable, or an error if
	// it is not installed.
	LookPath(name string) (string, error)
}

// Command is a single process invocation.
type Command struct {
	Name string
	Args []string

	// Env holds extra KEY=VALUE pairs for this process only. They override
	// the shell's environment and are never echoed in logs.
	Env []string

	Stdin io.Reader
}

// String formats the command for humans, quoting arguments where needed.
// Env is left out, since that is where credentials live.
func (c Command) String() string {
	words := make([]string, 0, len(c.Args)+1)
	words = append(words, shellwords.Quote(c.Name))
	for _, a := range c.Args {
		words = append(words, shellwords.Quote(a))
	}
	return strings.Join(words, " ")
}

// Result is what a finished process left behind.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Output returns stdout and stderr joined, for error messages.
func (r Result) Output() string {
	return strings.TrimSpace(strings.Join([]string{strings.TrimSpace(r.Stdout), strings.TrimSpace(r.Stderr)}, "\n"))
}

// Shell is the real Executor, backed by os/exec.
type Shell struct {
	Logger logger.Logger

	// The environment commands run with.
	Env *env.Environment

	// Where Run streams process output. Defaults to os.Stderr, keeping
	// stdout free for workflow commands.
	Writer io.Writer

	debug bool
}

type NewShellOpt = func(*Shell)

func WithDebug(d bool) NewShellOpt           { return func(s *Shell) { s.debug = d } }
func WithEnv(e *env.Environment) NewShellOpt { return func(s *Shell) { s.Env = e } }
func WithLogger(l logger.Logger) NewShellOpt { return func(s *Shell) { s.Logger = l } }
func WithWriter(w io.Writer) NewShellOpt     { return func(s *Shell) { s.Writer = w } }

// New returns a new Shell. The default writer is os.Stderr, the default
// logger discards, and the environment is read from os.Environ. Commands run
// in the process's working directory.
func New(opts ...NewShellOpt) (*Shell, error) {
	s := &Shell{}

	for _, opt := range opts {
		opt(s)
	}

	if s.Logger == nil {
		s.Logger = logger.Discard
	}
	if s.Env == nil {
		s.Env = env.FromSlice(os.Environ())
	}
	if s.Writer == nil {
		s.Writer = os.Stderr
	}
	return s, nil
}

// LookPath returns the absolute path to an executable based on the PATH and
// PATHEXT of the Shell's environment.
func (s *Shell) LookPath(executable string) (string, error) {
	if filepath.IsAbs(executable) {
		return executable, nil
	}

	envPath, _ := s.Env.Get("PATH")
	fileExtensions, _ := s.Env.Get("PATHEXT")

	absolutePath, err := LookPath(executable, envPath, fileExtensions)
	if err != nil {
		return "", err
	}

	return filepath.Abs(absolutePath)
}

// PrependPath puts dir at the front of the shell's PATH.
func (s *Shell) PrependPath(dir string) {
	current, _ := s.Env.Get("PATH")
	if current == "" {
		s.Env.Set("PATH", dir)
		return
	}
	s.Env.Set("PATH", dir+string(filepath.ListSeparator)+current)
}

// Execute runs a command and captures its stdout and stderr.
func (s *Shell) Execute(ctx context.Context, cmd Command) (Result, error) {
	if s.debug {
		s.Logger.Debug("$ %s", cmd)
	}

	var stdout, stderr bytes.Buffer
	err := s.execute(ctx, cmd, &stdout, &stderr)

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: ExitCode(err),
	}
	return res, err
}

// Run runs a command, writing stdout and stderr to s.Writer.
func (s *Shell) Run(ctx context.Context, cmd Command) error {
	s.Logger.Info("$ %s", cmd)
	return s.execute(ctx, cmd, s.Writer, s.Writer)
}

func (s *Shell) execute(ctx context.Context, cmd Command, stdout, stderr io.Writer) error {
	path, err := s.LookPath(cmd.Name)
	if err != nil {
		return err
	}

	environ := s.Env.Copy()
	environ.Merge(env.FromSlice(cmd.Env))

	c := exec.CommandContext(ctx, path, cmd.Args...)
	c.Env = environ.ToSlice()
	c.Stdin = cmd.Stdin
	c.Stdout = stdout
	c.Stderr = stderr

	start := time.Now()
	err = c.Run()
	if s.debug {
		s.Logger.Debug("↳ %s completed in %v", cmd.Name, time.Since(start).Round(time.Millisecond))
	}

	if exitErr := new(exec.ExitError); errors.As(err, &exitErr) {
		return &ExitError{
			Code: exitErr.ExitCode(),
			Err:  fmt.Errorf("%s exited with status %d", cmd, exitErr.ExitCode()),
		}
	}
	if err != nil {
		return fmt.Errorf("error running %s: %w", cmd, err)
	}
	return nil
}

// ExitCode extracts an exit code from an error where the platform supports it,
// otherwise returns 0 for no error and 1 for an error
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	if cause := new(ExitError); errors.As(err, &cause) {
		return cause.Code
	}

	if cause := new(exec.ExitError); errors.As(err, &cause) {
		return cause.ExitCode()
	}
	return 1
}

// ExitError is an error that carries a process exit code
type ExitError struct {
	Code int
	Err  error
}

func (ee *ExitError) Error() string { return ee.Err.Error() }

func (ee *ExitError) Unwrap() error { return ee.Err }
