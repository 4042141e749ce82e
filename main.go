// actionkit is a toolkit of GitHub Actions steps: fetching secrets,
// authenticating as a GitHub App, summarising agent session logs,
// rendering templates and running security scanners.
package main

import (
	"fmt"
	"os"

	"github.com/actionkit/actionkit/clicommand"
	"github.com/actionkit/actionkit/version"
	"github.com/urfave/cli"
)

const appHelpTemplate = `Usage:

  {{.Name}} <command> [options...]

Available commands are:

  {{range .Commands}}{{.Name}}{{with .ShortName}}, {{.}}{{end}}{{ "\t" }}{{.Usage}}
  {{end}}
Use "{{.Name}} <command> --help" for more information about a command.

`

const subcommandHelpTemplate = `Usage:

  {{.Name}} {{if .VisibleFlags}}<command>{{end}} [options...]

Available commands are:

  {{range .Commands}}{{join .Names ", "}}{{ "\t" }}{{.Usage}}
  {{end}}{{if .VisibleFlags}}
Options:

  {{range .VisibleFlags}}{{.}}
  {{end}}{{end}}
`

const commandHelpTemplate = `{{.Description}}

Options:

   {{range .VisibleFlags}}{{.}}
   {{end}}
`

func main() {
	cli.AppHelpTemplate = appHelpTemplate
	cli.SubcommandHelpTemplate = subcommandHelpTemplate
	cli.CommandHelpTemplate = commandHelpTemplate

	app := cli.NewApp()
	app.Name = "actionkit"
	app.Version = version.FullVersion()
	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr
	app.Commands = clicommand.ActionKitCommands

	// When no sub command is used
	app.Action = func(c *cli.Context) error {
		_ = cli.ShowAppHelp(c)
		return clicommand.NewSilentExitError(1)
	}

	// When a sub command can't be found
	app.CommandNotFound = func(c *cli.Context, command string) {
		cli.ShowAppHelp(c) //nolint:errcheck // CommandNotFound has no error return
		fmt.Fprintf(app.ErrWriter, "\nactionkit: unknown command %q\n", command)
		os.Exit(1)
	}

	os.Exit(clicommand.PrintMessageAndReturnExitCode(app.Run(os.Args)))
}
