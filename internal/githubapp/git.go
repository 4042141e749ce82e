package githubapp

import (
	"context"
	"fmt"

	"github.com/actionkit/actionkit/internal/redact"
	"github.com/actionkit/actionkit/internal/shell"
)

type gitSetting struct {
	label string
	key   string
	value string
}

// ConfigureGit sets the global git identity to the app's bot user. With
// auth, https remotes on the identity's host are rewritten to carry the
// installation token.
func ConfigureGit(ctx context.Context, exec shell.Executor, id *Identity, auth bool) error {
	settings := []gitSetting{
		{label: "user.name", key: "user.name", value: id.GitUserName()},
		{label: "user.email", key: "user.email", value: id.GitUserEmail()},
	}
	if auth {
		settings = append(settings, gitSetting{
			label: fmt.Sprintf("url.https://%s/.insteadOf", id.Host),
			key:   fmt.Sprintf("url.https://x-access-token:%s@%s/.insteadOf", id.Token, id.Host),
			value: fmt.Sprintf("https://%s/", id.Host),
		})
	}

	for _, s := range settings {
		// Captured rather than run, so the token is never echoed.
		if _, err := exec.Execute(ctx, shell.Command{
			Name: "git",
			Args: []string{"config", "--global", s.key, s.value},
		}); err != nil {
			return &shell.ExitError{
				Code: shell.ExitCode(err),
				Err:  fmt.Errorf("configuring git %s: %s", s.label, redact.String(err.Error(), id.Token)),
			}
		}
	}
	return nil
}
