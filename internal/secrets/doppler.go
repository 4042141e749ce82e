package secrets

import (
	"context"

	"github.com/actionkit/actionkit/internal/shell"
)

// Doppler reads a secret with `doppler secrets get`.
type Doppler struct {
	Token  string
	Secret string

	// Project and Config are optional. When empty, the doppler CLI falls
	// back to the token's scope.
	Project string
	Config  string
}

func (*Doppler) Kind() Kind { return KindDoppler }

func (p *Doppler) Validate() error {
	if p.Token == "" {
		return missing(KindDoppler, "doppler-token")
	}
	if p.Secret == "" {
		return missing(KindDoppler, "doppler-secret")
	}
	return nil
}

func (p *Doppler) args() []string {
	args := []string{"secrets", "get", p.Secret, "--plain"}
	if p.Project != "" {
		args = append(args, "--project", p.Project)
	}
	if p.Config != "" {
		args = append(args, "--config", p.Config)
	}
	return args
}

func (p *Doppler) resolve(ctx context.Context, r *Resolver) (string, error) {
	path, err := r.Installer.Ensure(ctx, "doppler", r.Installer.Doppler)
	if err != nil {
		return "", err
	}

	display := shell.Command{Name: "doppler", Args: p.args()}
	return r.capture(ctx, shell.Command{
		Name: path,
		Args: display.Args,
		Env:  []string{"DOPPLER_TOKEN=" + p.Token},
	}, "`"+display.String()+"`", p.Token)
}
