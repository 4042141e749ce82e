package clicommand

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/actionkit/actionkit/internal/actions"
	"github.com/actionkit/actionkit/internal/githubapp"
	"github.com/actionkit/actionkit/logger"
	"github.com/urfave/cli"
)

type GitHubAppTokenConfig struct {
	GlobalConfig

	AppID          int64  `cli:"app-id" validate:"required"`
	PrivateKey     string `cli:"private-key"`
	PrivateKeyPath string `cli:"private-key-path" normalize:"filepath" validate:"file-exists"`
	InstallationID int64  `cli:"installation-id"`
	Owner          string `cli:"owner"`
	Repository     string `cli:"repository"`
	APIURL         string `cli:"api-url"`
	ConfigureGit   bool   `cli:"configure-git"`
	GitAuth        bool   `cli:"git-auth"`
	EnvVar         string `cli:"env-var"`
}

var GitHubAppTokenCommand = cli.Command{
	Name:  "token",
	Usage: "Mint a GitHub App installation token and set up git as the app's bot",
	Description: `Usage:

    actionkit github-app token --app-id <id> --private-key <pem> [options...]

Description:

Mints an installation access token for a GitHub App. The installation is
found from ′--owner′ and ′--repository′ (defaulting to ′GITHUB_REPOSITORY′)
unless ′--installation-id′ is given.

The token is masked and set as the ′token′ step output, alongside
′app-slug′, ′user-id′, ′git-user-name′ and ′git-user-email′. Unless
′--configure-git false′ is passed, git's global user is set to the app's bot
so that commits are attributed to it. With ′--git-auth′, https remotes on the
GitHub host also authenticate with the token.

Example:

    $ actionkit github-app token --app-id "$APP_ID" --private-key "$APP_PRIVATE_KEY" --git-auth`,
	Flags: slices.Concat(globalFlags(), []cli.Flag{
		cli.StringFlag{
			Name:   "app-id",
			Usage:  "The GitHub App's ID",
			EnvVar: "INPUT_APP_ID,GITHUB_APP_ID",
		},
		cli.StringFlag{
			Name:   "private-key",
			Usage:  "The GitHub App's PEM encoded private key",
			EnvVar: "INPUT_PRIVATE_KEY,GITHUB_APP_PRIVATE_KEY",
		},
		cli.StringFlag{
			Name:   "private-key-path",
			Usage:  "Path to the GitHub App's private key, as an alternative to ′--private-key′",
			EnvVar: "INPUT_PRIVATE_KEY_PATH,GITHUB_APP_PRIVATE_KEY_PATH",
		},
		cli.StringFlag{
			Name:   "installation-id",
			Usage:  "The installation to mint a token for. Looked up from the owner and repository when not set",
			EnvVar: "INPUT_INSTALLATION_ID",
		},
		cli.StringFlag{
			Name:   "owner",
			Usage:  "The account the app is installed on. Defaults to the owner in ′GITHUB_REPOSITORY′",
			EnvVar: "INPUT_OWNER",
		},
		cli.StringFlag{
			Name:   "repository",
			Usage:  "The repository the app is installed on. Defaults to the repository in ′GITHUB_REPOSITORY′ when no owner is given",
			EnvVar: "INPUT_REPOSITORY",
		},
		cli.StringFlag{
			Name:   "api-url",
			Usage:  "The GitHub REST API root",
			Value:  githubapp.DefaultAPIURL,
			EnvVar: "INPUT_API_URL,GITHUB_API_URL",
		},
		cli.StringFlag{
			Name:   "configure-git",
			Usage:  "Set git's global user to the app's bot user",
			Value:  "true",
			EnvVar: "INPUT_CONFIGURE_GIT",
		},
		cli.StringFlag{
			Name:   "git-auth",
			Usage:  "Authenticate git https remotes on the GitHub host with the token",
			Value:  "false",
			EnvVar: "INPUT_GIT_AUTH",
		},
		cli.StringFlag{
			Name:   "env-var",
			Usage:  "Also export the token as this environment variable",
			EnvVar: "INPUT_ENV_VAR",
		},
	}),
	Action: func(c *cli.Context) error {
		ctx, cfg, l, done, err := setupLoggerAndConfig[GitHubAppTokenConfig](context.Background(), c)
		if err != nil {
			return err
		}
		defer done()

		d, err := newDeps(c, l, cfg.GlobalConfig)
		if err != nil {
			return err
		}
		return gitHubAppToken(ctx, *cfg, l, d)
	},
}

func gitHubAppToken(ctx context.Context, cfg GitHubAppTokenConfig, l logger.Logger, d *deps) error {
	key, err := privateKey(cfg)
	if err != nil {
		return err
	}

	owner, repo := cfg.Owner, cfg.Repository
	if owner == "" {
		ghRepo, _ := d.Env.Get("GITHUB_REPOSITORY")
		owner, repo = githubapp.SplitRepository(ghRepo)
		if cfg.Repository != "" {
			repo = cfg.Repository
		}
	}

	if cfg.EnvVar != "" {
		if err := actions.ValidVariableName(cfg.EnvVar); err != nil {
			return err
		}
		if err := d.Runner.CheckEnvFile(); err != nil {
			return err
		}
	}
	if err := d.Runner.CheckOutputFile(); err != nil {
		return err
	}

	auth := &githubapp.Authenticator{Transport: d.Transport, Logger: l}
	id, err := auth.Authenticate(ctx, githubapp.Config{
		AppID:          cfg.AppID,
		PrivateKey:     key,
		InstallationID: cfg.InstallationID,
		Owner:          owner,
		Repository:     repo,
		APIURL:         cfg.APIURL,
	})
	if err != nil {
		return err
	}

	if err := d.Runner.AddMask(id.Token); err != nil {
		return fmt.Errorf("masking token: %w", err)
	}
	l.Info("Minted a token for installation %d of %s, valid until %s",
		id.InstallationID, id.AppSlug, id.ExpiresAt.Format(time.RFC3339))

	if cfg.EnvVar != "" {
		if err := d.Runner.ExportVariable(cfg.EnvVar, id.Token); err != nil {
			return err
		}
	}

	outputs := [][2]string{
		{"token", id.Token},
		{"app-slug", id.AppSlug},
		{"user-id", strconv.FormatInt(id.UserID, 10)},
		{"git-user-name", id.GitUserName()},
		{"git-user-email", id.GitUserEmail()},
	}
	for _, o := range outputs {
		if err := d.Runner.SetOutput(o[0], o[1]); err != nil {
			return err
		}
	}

	if !cfg.ConfigureGit {
		return nil
	}
	if err := githubapp.ConfigureGit(ctx, d.Exec, id, cfg.GitAuth); err != nil {
		return err
	}
	l.Info("Configured git to commit as %s <%s>", id.GitUserName(), id.GitUserEmail())
	return nil
}

// privateKey returns the PEM from whichever of --private-key and
// --private-key-path was given. Keys stored on one line with literal \n
// separators are unfolded.
func privateKey(cfg GitHubAppTokenConfig) ([]byte, error) {
	switch {
	case cfg.PrivateKey != "" && cfg.PrivateKeyPath != "":
		return nil, errors.New("only one of --private-key and --private-key-path may be given")

	case cfg.PrivateKeyPath != "":
		b, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("reading private key: %w", err)
		}
		return b, nil

	case cfg.PrivateKey != "":
		key := cfg.PrivateKey
		if !strings.Contains(key, "\n") {
			key = strings.ReplaceAll(key, `\n`, "\n")
		}
		return []byte(key), nil

	default:
		return nil, errors.New("one of --private-key or --private-key-path is required")
	}
}
