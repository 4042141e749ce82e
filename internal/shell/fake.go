package shell

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"path"
)

// FakeCall is a command received by a Fake, with its stdin read out.
type FakeCall struct {
	Command
	Stdin string

	// Captured is false for calls made through Run.
	Captured bool
}

// Fake is an Executor for tests. It never starts a process.
type Fake struct {
	// Installed maps executable names to paths. Names not present are
	// reported as not found by LookPath.
	Installed map[string]string

	// Handler decides the outcome of each call. A Result with a non-zero
	// ExitCode and a nil error is turned into an *ExitError, as the real
	// Shell would. A nil Handler succeeds with empty output.
	Handler func(call FakeCall) (Result, error)

	Calls []FakeCall
}

// NewFake returns a Fake with the given executables installed under
// /usr/local/bin.
func NewFake(installed ...string) *Fake {
	f := &Fake{Installed: map[string]string{}}
	for _, name := range installed {
		f.Install(name)
	}
	return f
}

// Install marks name as present on the fake PATH.
func (f *Fake) Install(name string) {
	if f.Installed == nil {
		f.Installed = map[string]string{}
	}
	f.Installed[name] = path.Join("/usr/local/bin", name)
}

func (f *Fake) LookPath(name string) (string, error) {
	if p, ok := f.Installed[name]; ok {
		return p, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

func (f *Fake) Execute(ctx context.Context, cmd Command) (Result, error) {
	return f.call(cmd, true)
}

func (f *Fake) Run(ctx context.Context, cmd Command) error {
	_, err := f.call(cmd, false)
	return err
}

// Names returns the executable name of every call so far, in order.
func (f *Fake) Names() []string {
	names := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		names = append(names, c.Name)
	}
	return names
}

func (f *Fake) call(cmd Command, captured bool) (Result, error) {
	call := FakeCall{Command: cmd, Captured: captured}
	if cmd.Stdin != nil {
		b, err := io.ReadAll(cmd.Stdin)
		if err != nil {
			return Result{}, err
		}
		call.Stdin = string(b)
	}
	f.Calls = append(f.Calls, call)

	if f.Handler == nil {
		return Result{}, nil
	}

	res, err := f.Handler(call)
	if err == nil && res.ExitCode != 0 {
		err = &ExitError{
			Code: res.ExitCode,
			Err:  fmt.Errorf("%s exited with status %d", cmd, res.ExitCode),
		}
	}
	return res, err
}
