package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/actionkit/actionkit/internal/redact"
	"github.com/actionkit/actionkit/internal/shell"
	"github.com/actionkit/actionkit/logger"
)

// ToolInstaller makes provider CLIs available.
type ToolInstaller interface {
	// Ensure returns the path of name, running install if it is missing.
	Ensure(ctx context.Context, name string, install func(context.Context) error) (string, error)

	Doppler(ctx context.Context) error
	OnePassword(ctx context.Context) error
}

// Resolver turns a Provider into its secret value.
type Resolver struct {
	Exec      shell.Executor
	Installer ToolInstaller
	Logger    logger.Logger

	// Redact holds extra values to scrub from surfaced CLI output, in
	// addition to the provider's own credential.
	Redact []string
}

// Resolve validates p and retrieves its value. The value is never empty
// when err is nil.
func (r *Resolver) Resolve(ctx context.Context, p Provider) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	r.logger().Info("Fetching secret with the %s provider", p.Kind())

	value, err := p.resolve(ctx, r)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("%w: %s provider returned an empty value", ErrRetrieval, p.Kind())
	}
	return value, nil
}

// capture runs cmd and returns its stdout without the trailing line
// ending. Other trailing whitespace belongs to the value. what names the lookup in errors; credentials are scrubbed from
// anything surfaced.
func (r *Resolver) capture(ctx context.Context, cmd shell.Command, what string, credentials ...string) (string, error) {
	res, err := r.Exec.Execute(ctx, cmd)
	needles := append(credentials, r.Redact...)

	if err != nil {
		output := redact.String(res.Output(), needles...)
		if output == "" {
			return "", fmt.Errorf("%w: %s: %w", ErrRetrieval, what, err)
		}
		return "", fmt.Errorf("%w: %s: %w\n%s", ErrRetrieval, what, err, output)
	}

	value := strings.TrimRight(res.Stdout, "\r\n")
	if strings.TrimSpace(value) == "" {
		stderr := redact.String(strings.TrimSpace(res.Stderr), needles...)
		if stderr == "" {
			return "", fmt.Errorf("%w: %s printed nothing", ErrRetrieval, what)
		}
		return "", fmt.Errorf("%w: %s printed nothing\n%s", ErrRetrieval, what, stderr)
	}
	return value, nil
}

func (r *Resolver) logger() logger.Logger {
	if r.Logger == nil {
		return logger.Discard
	}
	return r.Logger
}
