package clicommand

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/actionkit/actionkit/internal/actions"
	"github.com/actionkit/actionkit/internal/scanner"
	"github.com/actionkit/actionkit/logger"
	"github.com/buildkite/shellwords"
	"github.com/urfave/cli"
)

type ScanConfig struct {
	GlobalConfig

	Scanner        string `cli:"arg:0" label:"scanner" validate:"required"`
	Path           string `cli:"path" normalize:"filepath"`
	Report         string `cli:"report" normalize:"filepath"`
	Severity       string `cli:"severity"`
	FailOnFindings bool   `cli:"fail-on-findings"`
	Install        bool   `cli:"install"`
	InstallDir     string `cli:"install-dir" normalize:"filepath"`
	Args           string `cli:"args"`
}

var ScanCommand = cli.Command{
	Name:      "scan",
	Usage:     "Run a security scanner and report what it found",
	ArgsUsage: "<" + strings.Join(scanner.Names(), "|") + ">",
	Description: `Usage:

    actionkit scan <scanner> [options...]

Description:

Runs one of the supported scanners over ′--path′:

    checkov     infrastructure as code misconfigurations
    gitleaks    committed secrets
    syft        software bill of materials (SBOM)
    trivy       vulnerable dependencies

The scanner is installed into ′--install-dir′ if it is not already on the
PATH, except for gitleaks which must be installed beforehand. The JSON report
is kept at ′--report′ and the number of findings is set as the ′findings′ step
output and summarised in the step summary.

With ′--fail-on-findings′ (the default) the command exits 1 when anything is
found, after the outputs and summary are written.

Example:

    $ actionkit scan trivy --severity CRITICAL,HIGH,MEDIUM
    $ actionkit scan gitleaks --args "--log-opts=origin/main..HEAD"`,
	Flags: slices.Concat(globalFlags(), []cli.Flag{
		cli.StringFlag{
			Name:   "path",
			Usage:  "Directory to scan",
			Value:  ".",
			EnvVar: "INPUT_PATH",
		},
		cli.StringFlag{
			Name:   "report",
			Usage:  "Where to keep the JSON report. Defaults to ′<scanner>-report.json′ in ′RUNNER_TEMP′",
			EnvVar: "INPUT_REPORT",
		},
		cli.StringFlag{
			Name:   "severity",
			Usage:  "Severities to report, for scanners that filter by severity",
			Value:  "CRITICAL,HIGH",
			EnvVar: "INPUT_SEVERITY",
		},
		cli.StringFlag{
			Name:   "fail-on-findings",
			Usage:  "Exit 1 when the scanner finds anything",
			Value:  "true",
			EnvVar: "INPUT_FAIL_ON_FINDINGS",
		},
		cli.StringFlag{
			Name:   "install",
			Usage:  "Install the scanner when it is missing",
			Value:  "true",
			EnvVar: "INPUT_INSTALL",
		},
		cli.StringFlag{
			Name:   "install-dir",
			Usage:  "Where to install scanners. Defaults to ′actionkit/bin′ in ′RUNNER_TEMP′",
			EnvVar: "INPUT_INSTALL_DIR",
		},
		cli.StringFlag{
			Name:   "args",
			Usage:  "Extra arguments for the scanner, split like a shell would",
			EnvVar: "INPUT_ARGS",
		},
	}),
	Action: func(c *cli.Context) error {
		ctx, cfg, l, done, err := setupLoggerAndConfig[ScanConfig](context.Background(), c)
		if err != nil {
			return err
		}
		defer done()

		d, err := newDeps(c, l, cfg.GlobalConfig)
		if err != nil {
			return err
		}
		return scan(ctx, *cfg, l, d)
	},
}

func scan(ctx context.Context, cfg ScanConfig, l logger.Logger, d *deps) error {
	s, err := scanner.Lookup(cfg.Scanner)
	if err != nil {
		return err
	}
	l = l.WithFields(logger.StringField("scanner", s.Name))

	args, err := shellwords.Split(cfg.Args)
	if err != nil {
		return fmt.Errorf("parsing --args: %w", err)
	}

	path := cfg.Path
	if path == "" {
		path = "."
	}

	report := cfg.Report
	if report == "" {
		dir, ok := d.Env.Get("RUNNER_TEMP")
		if !ok || dir == "" {
			dir = "."
		}
		report = filepath.Join(dir, s.Name+"-report.json")
	}

	if err := ensureScanner(ctx, s, cfg, l, d); err != nil {
		return err
	}

	l.Info("Running %s over %s", s.Name, path)
	start := time.Now()
	r, err := s.Scan(ctx, d.Exec, scanner.Options{
		Path:     path,
		Report:   report,
		Severity: cfg.Severity,
		Args:     args,
	})
	if err != nil {
		return err
	}
	l.WithFields(
		logger.IntField("findings", r.Findings),
		logger.DurationField("took", time.Since(start)),
	).Debug("Scan finished, report at %s", r.Path)

	if err := setOutputs(d.Runner, l, r.Outputs()); err != nil {
		return err
	}
	if err := d.Runner.AppendSummary(r.Summary()); err != nil {
		return err
	}

	if s.Name == "syft" {
		l.Info("Wrote an SBOM of %d packages to %s", r.Packages, r.Path)
		return nil
	}
	if r.Findings == 0 {
		l.Info("%s found nothing", s.Name)
		return nil
	}

	msg := fmt.Sprintf("%s found %d problems, see %s", s.Name, r.Findings, r.Path)
	if cfg.FailOnFindings {
		return NewExitError(1, errors.New(msg))
	}
	l.Warn("%s", msg)
	return d.Runner.Warning(msg)
}

func ensureScanner(ctx context.Context, s *scanner.Scanner, cfg ScanConfig, l logger.Logger, d *deps) error {
	if _, err := d.Exec.LookPath(s.Name); err == nil {
		return nil
	}
	if !cfg.Install {
		return fmt.Errorf("%s is not installed, and --install is false", s.Name)
	}

	dir := cfg.InstallDir
	if dir == "" {
		dir = filepath.Join(runnerTemp(d), "actionkit", "bin")
	}

	l.Info("Installing %s", s.Name)
	end := d.Runner.Group("Installing " + s.Name)
	err := s.Install(ctx, d.Installer, d.Exec, dir)
	end()
	if err != nil {
		return fmt.Errorf("installing %s: %w", s.Name, err)
	}

	if s.ScriptURL != "" {
		if d.PrependPath != nil {
			d.PrependPath(dir)
		}
		if err := d.Runner.AddPath(dir); err != nil {
			if !errors.Is(err, actions.ErrChannelUnavailable) {
				return err
			}
			l.Debug("Not adding %s to the job's PATH: %v", dir, err)
		}
	}

	if _, err := d.Exec.LookPath(s.Name); err != nil {
		return fmt.Errorf("%s is still not on the PATH after installing it: %w", s.Name, err)
	}
	return nil
}

func runnerTemp(d *deps) string {
	if dir, ok := d.Env.Get("RUNNER_TEMP"); ok && dir != "" {
		return dir
	}
	return os.TempDir()
}
