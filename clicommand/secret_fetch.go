package clicommand

import (
	"context"
	"slices"

	"github.com/actionkit/actionkit/internal/redact"
	"github.com/actionkit/actionkit/internal/secrets"
	"github.com/actionkit/actionkit/logger"
	"github.com/urfave/cli"
)

type SecretFetchConfig struct {
	GlobalConfig

	Provider string `cli:"provider" validate:"required"`
	Key      string `cli:"key"`

	DopplerToken   string `cli:"doppler-token"`
	DopplerSecret  string `cli:"doppler-secret"`
	DopplerProject string `cli:"doppler-project"`
	DopplerConfig  string `cli:"doppler-config"`

	OnePasswordToken string `cli:"op-token"`
	OnePasswordVault string `cli:"op-vault"`
	OnePasswordItem  string `cli:"op-item"`
	OnePasswordField string `cli:"op-field"`

	EnvVar    string `cli:"env-var"`
	SetOutput bool   `cli:"set-output"`
}

var SecretFetchCommand = cli.Command{
	Name:  "fetch",
	Usage: "Fetch a secret and publish it to the rest of the job",
	Description: `Usage:

    actionkit secret fetch --provider <raw|doppler|1password|onepassword> [options...]

Description:

Retrieves a single secret from the chosen provider, masks it in the job log,
exports it as an environment variable for later steps (′API_KEY′ unless
′--env-var′ says otherwise) and sets it as the ′api-key′ step output.

The ′doppler′ and ′op′ CLIs are installed on demand when they are missing.
Provider tokens are only ever passed to those CLIs through their
environment.

Examples:

    $ actionkit secret fetch --provider raw --key "$MY_KEY"
    $ actionkit secret fetch --provider doppler --doppler-secret OPENAI_API_KEY
    $ actionkit secret fetch --provider 1password --op-vault ci --op-item openai --env-var OPENAI_API_KEY`,
	Flags: slices.Concat(globalFlags(), []cli.Flag{
		cli.StringFlag{
			Name:   "provider",
			Usage:  "Where the secret comes from: raw, doppler, 1password or onepassword",
			EnvVar: "INPUT_PROVIDER,ACTIONKIT_SECRET_PROVIDER",
		},
		cli.StringFlag{
			Name:   "key",
			Usage:  "The secret value itself, for the raw provider",
			EnvVar: "INPUT_KEY",
		},
		cli.StringFlag{
			Name:   "doppler-token",
			Usage:  "Doppler service token",
			EnvVar: "INPUT_DOPPLER_TOKEN,DOPPLER_TOKEN",
		},
		cli.StringFlag{
			Name:   "doppler-secret",
			Usage:  "Name of the Doppler secret to read",
			EnvVar: "INPUT_DOPPLER_SECRET",
		},
		cli.StringFlag{
			Name:   "doppler-project",
			Usage:  "Doppler project, when the token is not scoped to one",
			EnvVar: "INPUT_DOPPLER_PROJECT",
		},
		cli.StringFlag{
			Name:   "doppler-config",
			Usage:  "Doppler config, when the token is not scoped to one",
			EnvVar: "INPUT_DOPPLER_CONFIG",
		},
		cli.StringFlag{
			Name:   "op-token",
			Usage:  "1Password service account token",
			EnvVar: "INPUT_OP_SERVICE_ACCOUNT_TOKEN,OP_SERVICE_ACCOUNT_TOKEN",
		},
		cli.StringFlag{
			Name:   "op-vault",
			Usage:  "1Password vault holding the item",
			EnvVar: "INPUT_OP_VAULT",
		},
		cli.StringFlag{
			Name:   "op-item",
			Usage:  "1Password item name or ID",
			EnvVar: "INPUT_OP_ITEM",
		},
		cli.StringFlag{
			Name:   "op-field",
			Usage:  "1Password item field to read",
			Value:  secrets.DefaultOnePasswordField,
			EnvVar: "INPUT_OP_FIELD",
		},
		cli.StringFlag{
			Name:   "env-var",
			Usage:  "Environment variable to export the secret as",
			Value:  secrets.DefaultEnvVar,
			EnvVar: "INPUT_ENV_VAR",
		},
		cli.StringFlag{
			Name:   "set-output",
			Usage:  "Whether to also set the ′api-key′ step output",
			Value:  "true",
			EnvVar: "INPUT_SET_OUTPUT",
		},
	}),
	Action: func(c *cli.Context) error {
		ctx, cfg, l, done, err := setupLoggerAndConfig[SecretFetchConfig](context.Background(), c)
		if err != nil {
			return err
		}
		defer done()

		d, err := newDeps(c, l, cfg.GlobalConfig)
		if err != nil {
			return err
		}
		return secretFetch(ctx, *cfg, l, d)
	},
}

func secretFetch(ctx context.Context, cfg SecretFetchConfig, l logger.Logger, d *deps) error {
	provider, err := secrets.NewProvider(cfg.Provider, secrets.Inputs{
		Key:              cfg.Key,
		DopplerToken:     cfg.DopplerToken,
		DopplerSecret:    cfg.DopplerSecret,
		DopplerProject:   cfg.DopplerProject,
		DopplerConfig:    cfg.DopplerConfig,
		OnePasswordToken: cfg.OnePasswordToken,
		OnePasswordVault: cfg.OnePasswordVault,
		OnePasswordItem:  cfg.OnePasswordItem,
		OnePasswordField: cfg.OnePasswordField,
	})
	if err != nil {
		return err
	}
	l = l.WithFields(logger.StringField("provider", string(provider.Kind())))

	// Anything in the environment that looks like a credential is kept
	// out of surfaced CLI output too.
	needles, err := redact.Values(redact.DefaultPatterns, d.Env.DumpPairs())
	if err != nil {
		return err
	}

	resolver := &secrets.Resolver{
		Exec:      d.Exec,
		Installer: d.Installer,
		Logger:    l,
		Redact:    needles,
	}

	value, err := resolver.Resolve(ctx, provider)
	if err != nil {
		return err
	}

	opts := secrets.PublishOptions{EnvVar: cfg.EnvVar, SetOutput: cfg.SetOutput}
	if err := secrets.Publish(d.Runner, value, opts); err != nil {
		return err
	}

	l.Info("Exported the %s secret as %s", provider.Kind(), envVarOrDefault(cfg.EnvVar))
	if cfg.SetOutput {
		l.Info("Set step output %s", secrets.OutputName)
	}
	return nil
}

func envVarOrDefault(name string) string {
	if name == "" {
		return secrets.DefaultEnvVar
	}
	return name
}
