package clicommand

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/actionkit/actionkit/cliconfig"
	"github.com/actionkit/actionkit/env"
	"github.com/actionkit/actionkit/internal/actions"
	"github.com/actionkit/actionkit/internal/installer"
	"github.com/actionkit/actionkit/internal/shell"
	"github.com/actionkit/actionkit/logger"
	"github.com/oleiade/reflections"
	"github.com/urfave/cli"
)

type GlobalConfig struct {
	Debug     bool   `cli:"debug"`
	LogLevel  string `cli:"log-level"`
	LogFormat string `cli:"log-format"`
	NoColor   bool   `cli:"no-color"`
	Config    string `cli:"config" normalize:"filepath" validate:"file-exists"`
}

var DebugFlag = cli.StringFlag{
	Name:   "debug",
	Usage:  "Enable debug mode. Synonym for ′--log-level debug′. Takes precedence over ′--log-level′",
	Value:  "false",
	EnvVar: "ACTIONKIT_DEBUG,RUNNER_DEBUG",
}

var LogLevelFlag = cli.StringFlag{
	Name:   "log-level",
	Value:  "notice",
	Usage:  "Set the log level for actionkit. Possible values are: \"debug\", \"info\", \"notice\", \"warn\", \"error\", \"fatal\"",
	EnvVar: "ACTIONKIT_LOG_LEVEL",
}

var LogFormatFlag = cli.StringFlag{
	Name:   "log-format",
	Value:  "text",
	Usage:  "The format to use for log output, either \"text\" or \"json\"",
	EnvVar: "ACTIONKIT_LOG_FORMAT",
}

var NoColorFlag = cli.StringFlag{
	Name:   "no-color",
	Usage:  "Don't show colors in logging",
	Value:  "false",
	EnvVar: "ACTIONKIT_NO_COLOR",
}

var ConfigFlag = cli.StringFlag{
	Name:   "config",
	Usage:  "Path to a dotenv file of option defaults, keyed by flag name",
	EnvVar: "ACTIONKIT_CONFIG",
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		DebugFlag,
		LogLevelFlag,
		LogFormatFlag,
		NoColorFlag,
		ConfigFlag,
	}
}

// CreateLogger builds the logger described by cfg's global options.
// Logs go to w, which is stderr outside of tests; stdout is reserved for
// workflow commands and command output.
func CreateLogger(cfg any, w io.Writer) (logger.Logger, error) {
	logFormat := "text"
	if v, err := reflections.GetField(cfg, "LogFormat"); err == nil {
		if s, ok := v.(string); ok && s != "" {
			logFormat = s
		}
	}

	var l logger.Logger
	switch logFormat {
	case "text":
		printer := logger.NewTextPrinter(w)

		// Turn off color if a NoColor option is present, or NO_COLOR is
		// set to anything at all (https://no-color.org)
		if noColor, err := reflections.GetField(cfg, "NoColor"); noColor == true && err == nil {
			printer.Colors = false
		}
		if os.Getenv("NO_COLOR") != "" {
			printer.Colors = false
		}
		l = logger.NewConsoleLogger(printer, os.Exit)

	case "json":
		l = logger.NewConsoleLogger(logger.NewJSONPrinter(w), os.Exit)

	default:
		return nil, fmt.Errorf("invalid log format %q: must be either \"text\" or \"json\"", logFormat)
	}

	if err := handleLogLevelFlag(l, cfg); err != nil {
		return nil, err
	}
	return l, nil
}

func handleLogLevelFlag(l logger.Logger, cfg any) error {
	if logLevel, err := reflections.GetField(cfg, "LogLevel"); err == nil {
		if s, ok := logLevel.(string); ok && s != "" {
			level, err := logger.LevelFromString(s)
			if err != nil {
				return err
			}
			l.SetLevel(level)
		}
	}

	// Debug wins over any level
	if debug, err := reflections.GetField(cfg, "Debug"); debug == true && err == nil {
		l.SetLevel(logger.DEBUG)
	}
	return nil
}

// setupLoggerAndConfig loads T from the cli context and creates the logger
// its global options describe. The returned context is cancelled on
// SIGINT or SIGTERM; call done when the command finishes.
func setupLoggerAndConfig[T any](ctx context.Context, c *cli.Context) (context.Context, *T, logger.Logger, func(), error) {
	cfg := new(T)

	loader := cliconfig.Loader{CLI: c, Config: cfg}
	warnings, err := loader.Load()
	if err != nil {
		return ctx, nil, nil, func() {}, err
	}

	var w io.Writer = os.Stderr
	if c.App != nil && c.App.ErrWriter != nil {
		w = c.App.ErrWriter
	}

	l, err := CreateLogger(cfg, w)
	if err != nil {
		return ctx, nil, nil, func() {}, err
	}

	// Now that we have a logger, log out the warnings that loading config generated
	for _, warning := range warnings {
		l.Warn("%s", warning)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	return ctx, cfg, l, stop, nil
}

// deps are the outside world a command talks to.
type deps struct {
	Env       *env.Environment
	Stdout    io.Writer
	Exec      shell.Executor
	Runner    *actions.Runner
	Installer *installer.Installer

	// Transport is the base HTTP transport for API clients.
	Transport http.RoundTripper

	// PrependPath puts a directory on the front of Exec's PATH. It is nil
	// for executors without one.
	PrependPath func(dir string)
}

// newDeps returns deps backed by the process environment.
func newDeps(c *cli.Context, l logger.Logger, cfg GlobalConfig) (*deps, error) {
	environ := env.FromSlice(os.Environ())

	sh, err := shell.New(
		shell.WithEnv(environ.Copy()),
		shell.WithLogger(l),
		shell.WithDebug(cfg.Debug),
	)
	if err != nil {
		return nil, err
	}

	inst := installer.New(sh, l)

	return &deps{
		Env:         environ,
		Stdout:      c.App.Writer,
		Exec:        sh,
		Runner:      actions.FromEnvironment(environ, c.App.Writer),
		Installer:   inst,
		Transport:   http.DefaultTransport,
		PrependPath: sh.PrependPath,
	}, nil
}
