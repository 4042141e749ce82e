package clicommand

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/actionkit/actionkit/internal/template"
	"github.com/actionkit/actionkit/logger"
	"github.com/joho/godotenv"
	"github.com/urfave/cli"
)

type TemplateRenderConfig struct {
	GlobalConfig

	Template    string `cli:"template" normalize:"filepath" validate:"file-exists"`
	Text        string `cli:"text"`
	OutputFile  string `cli:"output-file" normalize:"filepath"`
	OutputName  string `cli:"output-name"`
	EnvFile     string `cli:"env-file" normalize:"filepath" validate:"file-exists"`
	FailOnUnset bool   `cli:"fail-on-unset"`
}

var TemplateRenderCommand = cli.Command{
	Name:  "render",
	Usage: "Interpolate environment variables into a template",
	Description: `Usage:

    actionkit template render (--template <file> | --text <text>) [options...]

Description:

Replaces variable references in a template with values from the
environment. The syntax is shell-like:

    $VAR, ${VAR}             the value of VAR
    ${VAR:-default}          default when VAR is unset or empty
    ${VAR-default}           default when VAR is unset
    ${VAR?message}           fail with message when VAR is unset
    $$                       a literal $

Variables from ′--env-file′, a dotenv file, take precedence over the
environment. Unset variables are reported as warnings, or as an error with
′--fail-on-unset′.

The result is written to ′--output-file′, set as the ′--output-name′ step
output, or printed when neither is given.

Example:

    $ actionkit template render --template deploy.yml.tmpl --output-file deploy.yml`,
	Flags: slices.Concat(globalFlags(), []cli.Flag{
		cli.StringFlag{
			Name:   "template",
			Usage:  "Path to the template",
			EnvVar: "INPUT_TEMPLATE",
		},
		cli.StringFlag{
			Name:   "text",
			Usage:  "An inline template, as an alternative to ′--template′",
			EnvVar: "INPUT_TEXT",
		},
		cli.StringFlag{
			Name:   "output-file",
			Usage:  "Where to write the result",
			EnvVar: "INPUT_OUTPUT_FILE",
		},
		cli.StringFlag{
			Name:   "output-name",
			Usage:  "Step output to set to the result",
			EnvVar: "INPUT_OUTPUT_NAME",
		},
		cli.StringFlag{
			Name:   "env-file",
			Usage:  "A dotenv file of extra variables",
			EnvVar: "INPUT_ENV_FILE",
		},
		cli.StringFlag{
			Name:   "fail-on-unset",
			Usage:  "Fail when the template refers to an unset variable",
			Value:  "false",
			EnvVar: "INPUT_FAIL_ON_UNSET",
		},
	}),
	Action: func(c *cli.Context) error {
		ctx, cfg, l, done, err := setupLoggerAndConfig[TemplateRenderConfig](context.Background(), c)
		if err != nil {
			return err
		}
		defer done()

		d, err := newDeps(c, l, cfg.GlobalConfig)
		if err != nil {
			return err
		}
		return templateRender(ctx, *cfg, l, d)
	},
}

func templateRender(_ context.Context, cfg TemplateRenderConfig, l logger.Logger, d *deps) error {
	var text string
	switch {
	case cfg.Template != "" && cfg.Text != "":
		return errors.New("only one of --template and --text may be given")

	case cfg.Template != "":
		b, err := os.ReadFile(cfg.Template)
		if err != nil {
			return fmt.Errorf("reading template: %w", err)
		}
		text = string(b)

	case cfg.Text != "":
		text = cfg.Text

	default:
		return errors.New("one of --template or --text is required")
	}

	if cfg.OutputName != "" {
		if err := d.Runner.CheckOutputFile(); err != nil {
			return err
		}
	}

	environ := d.Env.Copy()
	if cfg.EnvFile != "" {
		extra, err := godotenv.Read(cfg.EnvFile)
		if err != nil {
			return fmt.Errorf("reading env file: %w", err)
		}
		for k, v := range extra {
			environ.Set(k, v)
		}
		l.Debug("Loaded %d variables from %s", len(extra), cfg.EnvFile)
	}

	res, err := template.Render(text, environ)
	if err != nil {
		return err
	}

	if len(res.Unset) > 0 {
		msg := fmt.Sprintf("Template refers to unset variables: %s", strings.Join(res.Unset, ", "))
		if cfg.FailOnUnset {
			return errors.New(msg)
		}
		l.Warn("%s", msg)
	}

	if cfg.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputFile), 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		if err := os.WriteFile(cfg.OutputFile, []byte(res.Text), 0o644); err != nil {
			return fmt.Errorf("writing output file: %w", err)
		}
		l.Info("Wrote %s", cfg.OutputFile)
	}

	if cfg.OutputName != "" {
		if err := d.Runner.SetOutput(cfg.OutputName, res.Text); err != nil {
			return err
		}
		l.Info("Set step output %s", cfg.OutputName)
	}

	if cfg.OutputFile == "" && cfg.OutputName == "" {
		if _, err := fmt.Fprint(d.Stdout, res.Text); err != nil {
			return err
		}
	}
	return nil
}
