// Package scanner runs third-party security scanners and reads their
// JSON reports back into finding counts.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/actionkit/actionkit/internal/shell"
)

var (
	// ErrUnknownScanner is returned by Lookup for names not in the catalogue.
	ErrUnknownScanner = errors.New("unknown scanner")

	// ErrNoInstaller is returned by Install for scanners that must already
	// be on the runner.
	ErrNoInstaller = errors.New("no installer available")
)

// Options are the inputs shared by every scanner.
type Options struct {
	// Path is the directory to scan.
	Path string

	// Report is where the JSON report is written.
	Report string

	// Severity is a comma separated severity filter, for scanners that
	// take one.
	Severity string

	// Args are appended to the scanner's arguments.
	Args []string
}

// ScriptInstaller runs vendor install scripts.
type ScriptInstaller interface {
	RunUserScript(ctx context.Context, url string, args ...string) error
}

// Scanner describes how to run one tool and read its report.
type Scanner struct {
	Name    string
	Purpose string

	// ScriptURL is the tool's install script. It is passed -b <dir>.
	ScriptURL string

	// PipPackage is installed with pip when set.
	PipPackage string

	args func(o Options) []string

	// stdoutReport is true for tools that print the report instead of
	// writing it to a file.
	stdoutReport bool

	parse func(b []byte) (*Report, error)
}

var catalogue = map[string]*Scanner{
	"gitleaks": {
		Name:    "gitleaks",
		Purpose: "Secret detection",
		args: func(o Options) []string {
			return []string{
				"detect",
				"--source", o.Path,
				"--report-format", "json",
				"--report-path", o.Report,
				"--redact",
				"--no-banner",
				"--exit-code", "0",
			}
		},
		parse: parseGitleaks,
	},
	"trivy": {
		Name:      "trivy",
		Purpose:   "Vulnerability scan",
		ScriptURL: "https://raw.githubusercontent.com/aquasecurity/trivy/main/contrib/install.sh",
		args: func(o Options) []string {
			args := []string{"fs", "--format", "json", "--output", o.Report, "--exit-code", "0"}
			if o.Severity != "" {
				args = append(args, "--severity", o.Severity)
			}
			return args
		},
		parse: parseTrivy,
	},
	"syft": {
		Name:      "syft",
		Purpose:   "SBOM",
		ScriptURL: "https://raw.githubusercontent.com/anchore/syft/main/install.sh",
		args: func(o Options) []string {
			return []string{"scan", "dir:" + o.Path, "-o", "spdx-json=" + o.Report}
		},
		parse: parseSyft,
	},
	"checkov": {
		Name:       "checkov",
		Purpose:    "IaC scan",
		PipPackage: "checkov",
		args: func(o Options) []string {
			return []string{"-d", o.Path, "-o", "json", "--soft-fail", "--quiet"}
		},
		stdoutReport: true,
		parse:        parseCheckov,
	},
}

// Names lists the catalogue.
func Names() []string {
	return slices.Sorted(maps.Keys(catalogue))
}

// Lookup returns the scanner called name.
func Lookup(name string) (*Scanner, error) {
	s, ok := catalogue[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w %q: choose one of %s", ErrUnknownScanner, name, strings.Join(Names(), ", "))
	}
	return s, nil
}

// Command is the invocation for o. Extra args go before the scan target
// for tools that take it positionally.
func (s *Scanner) Command(o Options) shell.Command {
	args := append(s.args(o), o.Args...)
	if s.Name == "trivy" {
		args = append(args, o.Path)
	}
	return shell.Command{Name: s.Name, Args: args}
}

// Install puts the scanner in dir.
func (s *Scanner) Install(ctx context.Context, inst ScriptInstaller, exec shell.Executor, dir string) error {
	switch {
	case s.ScriptURL != "":
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating install directory: %w", err)
		}
		return inst.RunUserScript(ctx, s.ScriptURL, "-b", dir)

	case s.PipPackage != "":
		return exec.Run(ctx, shell.Command{
			Name: "python3",
			Args: []string{"-m", "pip", "install", "--quiet", s.PipPackage},
		})

	default:
		return fmt.Errorf("%w for %s: install it before this step", ErrNoInstaller, s.Name)
	}
}

// Scan runs the scanner and parses its report.
func (s *Scanner) Scan(ctx context.Context, exec shell.Executor, o Options) (*Report, error) {
	if o.Report == "" {
		return nil, errors.New("a report path is required")
	}
	if err := os.MkdirAll(filepath.Dir(o.Report), 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}

	cmd := s.Command(o)
	if s.stdoutReport {
		res, err := exec.Execute(ctx, cmd)
		if err != nil {
			return nil, fmt.Errorf("%s failed: %w\n%s", s.Name, err, strings.TrimSpace(res.Stderr))
		}
		if err := os.WriteFile(o.Report, []byte(res.Stdout), 0o644); err != nil {
			return nil, fmt.Errorf("writing %s report: %w", s.Name, err)
		}
	} else if err := exec.Run(ctx, cmd); err != nil {
		return nil, fmt.Errorf("%s failed: %w", s.Name, err)
	}

	b, err := os.ReadFile(o.Report)
	if err != nil {
		return nil, fmt.Errorf("reading %s report: %w", s.Name, err)
	}

	r, err := s.parse(b)
	if err != nil {
		return nil, fmt.Errorf("parsing %s report %s: %w", s.Name, o.Report, err)
	}
	r.Scanner = s.Name
	r.Purpose = s.Purpose
	r.Path = o.Report
	return r, nil
}
