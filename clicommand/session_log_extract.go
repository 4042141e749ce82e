package clicommand

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/actionkit/actionkit/internal/sessionlog"
	"github.com/actionkit/actionkit/logger"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"
)

type SessionLogExtractConfig struct {
	GlobalConfig

	LogDir    string   `cli:"log-dir" normalize:"filepath" validate:"required"`
	SessionID string   `cli:"session-id"`
	Query     []string `cli:"query"`
	Queries   string   `cli:"queries"`
	Format    string   `cli:"format"`
	Summary   bool     `cli:"summary"`
}

var SessionLogExtractCommand = cli.Command{
	Name:  "extract",
	Usage: "Extract metadata from an agent session log",
	Description: `Usage:

    actionkit session-log extract --log-dir <dir> [options...]

Description:

Reads a JSON Lines session log and prints what it says about the session:
its id, model, CLI version, duration, entry and error counts and token
usage. The newest ′*.jsonl′ file in ′--log-dir′ is used unless
′--session-id′ names one. Malformed lines are counted and skipped.

The metadata is also set as step outputs and, unless ′--summary false′ is
passed, rendered as a table in the step summary.

Each ′--query name=expression′ runs a jq expression over the array of all
entries. Its first result becomes an extra output called ′name′.

Example:

    $ actionkit session-log extract --log-dir ~/.claude/projects/repo \
        --query 'tools=[.[] | .message.content[]? | select(.type == "tool_use") | .name] | unique'`,
	Flags: slices.Concat(globalFlags(), []cli.Flag{
		cli.StringFlag{
			Name:   "log-dir",
			Usage:  "Directory containing session logs",
			EnvVar: "INPUT_LOG_DIR",
		},
		cli.StringFlag{
			Name:   "session-id",
			Usage:  "Read ′<session-id>.jsonl′ instead of the newest log",
			EnvVar: "INPUT_SESSION_ID",
		},
		cli.StringSliceFlag{
			Name:  "query",
			Value: &cli.StringSlice{},
			Usage: "A ′name=expression′ jq query to run over the entries. May be repeated",
		},
		cli.StringFlag{
			Name:   "queries",
			Usage:  "More ′name=expression′ queries, one per line",
			EnvVar: "INPUT_QUERIES",
		},
		cli.StringFlag{
			Name:   "format",
			Usage:  "How to print the metadata, either \"json\" or \"yaml\"",
			Value:  "json",
			EnvVar: "INPUT_FORMAT",
		},
		cli.StringFlag{
			Name:   "summary",
			Usage:  "Write the metadata to the step summary",
			Value:  "true",
			EnvVar: "INPUT_SUMMARY",
		},
	}),
	Action: func(c *cli.Context) error {
		ctx, cfg, l, done, err := setupLoggerAndConfig[SessionLogExtractConfig](context.Background(), c)
		if err != nil {
			return err
		}
		defer done()

		d, err := newDeps(c, l, cfg.GlobalConfig)
		if err != nil {
			return err
		}
		return sessionLogExtract(ctx, *cfg, l, d)
	},
}

func sessionLogExtract(_ context.Context, cfg SessionLogExtractConfig, l logger.Logger, d *deps) error {
	if cfg.Format != "json" && cfg.Format != "yaml" {
		return fmt.Errorf("invalid format %q: must be either 'json' or 'yaml'", cfg.Format)
	}

	exprs := slices.Clone(cfg.Query)
	for line := range strings.Lines(cfg.Queries) {
		if line = strings.TrimSpace(line); line != "" {
			exprs = append(exprs, line)
		}
	}

	queries := make([]*sessionlog.Query, 0, len(exprs))
	for _, s := range exprs {
		q, err := sessionlog.ParseQuery(s)
		if err != nil {
			return err
		}
		queries = append(queries, q)
	}

	path, err := sessionlog.Locate(cfg.LogDir, cfg.SessionID)
	if err != nil {
		return err
	}
	l.Info("Reading session log %s", path)

	log, err := sessionlog.Read(path)
	if err != nil {
		return err
	}
	if log.Malformed > 0 {
		l.Warn("Skipped %d malformed lines in %s", log.Malformed, path)
	}

	md := sessionlog.Extract(log)
	for _, q := range queries {
		v, err := q.Run(log.Entries)
		if err != nil {
			return err
		}
		if md.Queries == nil {
			md.Queries = map[string]string{}
		}
		md.Queries[q.Name] = v
	}

	if err := writeMetadata(d.Stdout, cfg.Format, md); err != nil {
		return err
	}

	if err := setOutputs(d.Runner, l, md.Outputs()); err != nil {
		return err
	}
	if cfg.Summary {
		if err := d.Runner.AppendSummary(md.Summary()); err != nil {
			return err
		}
	}
	return nil
}

func writeMetadata(w io.Writer, format string, md *sessionlog.Metadata) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(md); err != nil {
			return fmt.Errorf("failed to write YAML: %w", err)
		}
		return enc.Close()

	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(md); err != nil {
			return fmt.Errorf("failed to write JSON: %w", err)
		}
		return nil
	}
}
