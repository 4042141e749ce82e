// Package installer puts third-party CLIs on the runner when they are
// missing: by piping a vendor install script to sh, or through the
// operating system's package manager.
package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/actionkit/actionkit/internal/shell"
	"github.com/actionkit/actionkit/logger"
)

// ErrUnsupportedOS is returned when a tool has no install recipe for the
// runner's operating system.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// Installer installs CLIs through an Executor.
type Installer struct {
	Exec       shell.Executor
	Downloader *Downloader
	Logger     logger.Logger

	// GOOS and GOARCH default to the running platform.
	GOOS   string
	GOARCH string

	// IsRoot reports whether the process can write system paths without
	// sudo. Defaults to checking the effective uid.
	IsRoot func() bool
}

// New returns an Installer for the running platform.
func New(exec shell.Executor, l logger.Logger) *Installer {
	return &Installer{
		Exec:       exec,
		Downloader: NewDownloader(l),
		Logger:     l,
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
		IsRoot:     func() bool { return os.Geteuid() == 0 },
	}
}

// Ensure returns the path of name, calling install first if it is not
// on PATH. It is an error for name to still be missing afterwards.
func (i *Installer) Ensure(ctx context.Context, name string, install func(context.Context) error) (string, error) {
	if p, err := i.Exec.LookPath(name); err == nil {
		i.logger().Debug("Found %s at %s", name, p)
		return p, nil
	}

	i.logger().Notice("%s is not installed, installing it", name)
	if err := install(ctx); err != nil {
		return "", fmt.Errorf("installing %s: %w", name, err)
	}

	p, err := i.Exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s is still not on PATH after installing: %w", name, err)
	}
	return p, nil
}

// RunScript downloads the script at url and pipes it to sh with args.
// When the process is not root and sudo is available the script runs
// under sudo.
func (i *Installer) RunScript(ctx context.Context, url string, args ...string) error {
	script, err := i.downloader().Fetch(ctx, url)
	if err != nil {
		return err
	}

	shArgs := append([]string{"-s", "--"}, args...)
	return i.Exec.Run(ctx, i.privileged(shell.Command{
		Name:  "sh",
		Args:  shArgs,
		Stdin: bytes.NewReader(script),
	}))
}

// RunUserScript is RunScript without sudo, for scripts that install into
// a directory the user owns.
func (i *Installer) RunUserScript(ctx context.Context, url string, args ...string) error {
	script, err := i.downloader().Fetch(ctx, url)
	if err != nil {
		return err
	}

	return i.Exec.Run(ctx, shell.Command{
		Name:  "sh",
		Args:  append([]string{"-s", "--"}, args...),
		Stdin: bytes.NewReader(script),
	})
}

// privileged wraps cmd in sudo when that is both needed and possible.
func (i *Installer) privileged(cmd shell.Command) shell.Command {
	if i.isRoot() {
		return cmd
	}
	if _, err := i.Exec.LookPath("sudo"); err != nil {
		return cmd
	}

	return shell.Command{
		Name:  "sudo",
		Args:  append([]string{cmd.Name}, cmd.Args...),
		Env:   cmd.Env,
		Stdin: cmd.Stdin,
	}
}

func (i *Installer) isRoot() bool {
	if i.IsRoot == nil {
		return os.Geteuid() == 0
	}
	return i.IsRoot()
}

func (i *Installer) goos() string {
	if i.GOOS == "" {
		return runtime.GOOS
	}
	return i.GOOS
}

func (i *Installer) goarch() string {
	if i.GOARCH == "" {
		return runtime.GOARCH
	}
	return i.GOARCH
}

func (i *Installer) downloader() *Downloader {
	if i.Downloader == nil {
		i.Downloader = NewDownloader(i.logger())
	}
	return i.Downloader
}

func (i *Installer) logger() logger.Logger {
	if i.Logger == nil {
		return logger.Discard
	}
	return i.Logger
}
