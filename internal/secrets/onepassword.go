package secrets

import (
	"context"
	"fmt"

	"github.com/actionkit/actionkit/internal/shell"
)

// OnePassword reads an item field with the 1Password CLI, op, using a
// service account token.
type OnePassword struct {
	Token string

	// Vault is optional. With a vault the field is read by secret
	// reference, op://<vault>/<item>/<field>. Without one, op searches
	// every vault the service account can see.
	Vault string
	Item  string
	Field string
}

func (*OnePassword) Kind() Kind { return KindOnePassword }

func (p *OnePassword) Validate() error {
	if p.Token == "" {
		return missing(KindOnePassword, "op-service-account-token")
	}
	if p.Item == "" {
		return missing(KindOnePassword, "op-item")
	}
	if p.Field == "" {
		return missing(KindOnePassword, "op-field")
	}
	return nil
}

// Reference is the op:// secret reference, or a description of the
// lookup when no vault is set.
func (p *OnePassword) Reference() string {
	if p.Vault == "" {
		return fmt.Sprintf("item %q field %q", p.Item, p.Field)
	}
	return fmt.Sprintf("op://%s/%s/%s", p.Vault, p.Item, p.Field)
}

func (p *OnePassword) args() []string {
	if p.Vault == "" {
		return []string{"item", "get", p.Item, "--fields", "label=" + p.Field, "--reveal"}
	}
	return []string{"read", p.Reference()}
}

func (p *OnePassword) resolve(ctx context.Context, r *Resolver) (string, error) {
	path, err := r.Installer.Ensure(ctx, "op", r.Installer.OnePassword)
	if err != nil {
		return "", err
	}

	return r.capture(ctx, shell.Command{
		Name: path,
		Args: p.args(),
		Env:  []string{"OP_SERVICE_ACCOUNT_TOKEN=" + p.Token},
	}, "1Password "+p.Reference(), p.Token)
}
