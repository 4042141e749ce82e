package clicommand

import "github.com/urfave/cli"

var ActionKitCommands = []cli.Command{
	{
		Name:  "secret",
		Usage: "Fetch secrets for the job",
		Subcommands: []cli.Command{
			SecretFetchCommand,
		},
	},
	{
		Name:  "github-app",
		Usage: "Act as a GitHub App",
		Subcommands: []cli.Command{
			GitHubAppTokenCommand,
		},
	},
	{
		Name:  "session-log",
		Usage: "Read agent session logs",
		Subcommands: []cli.Command{
			SessionLogExtractCommand,
		},
	},
	{
		Name:  "template",
		Usage: "Render text templates",
		Subcommands: []cli.Command{
			TemplateRenderCommand,
		},
	},
	ScanCommand,
}
