package secrets

import (
	"fmt"
	"strings"

	"github.com/actionkit/actionkit/internal/actions"
)

const (
	// DefaultEnvVar is the variable the secret is exported as by default.
	DefaultEnvVar = "API_KEY"

	// OutputName is the step output the secret is published under.
	OutputName = "api-key"
)

// PublishOptions controls where a resolved secret goes.
type PublishOptions struct {
	EnvVar    string
	SetOutput bool
}

// Publish masks value and then writes it to the runner's env file and,
// when enabled, its output file. Everything that can be checked is checked
// before anything is written.
func Publish(r *actions.Runner, value string, opts PublishOptions) error {
	// A blank value can't be masked, so it would be exported in the clear.
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: refusing to publish an empty or blank secret", ErrMissingInput)
	}

	name := opts.EnvVar
	if name == "" {
		name = DefaultEnvVar
	}
	if err := actions.ValidVariableName(name); err != nil {
		return err
	}
	if err := r.CheckEnvFile(); err != nil {
		return err
	}
	if opts.SetOutput {
		if err := r.CheckOutputFile(); err != nil {
			return err
		}
	}

	if err := r.AddMask(value); err != nil {
		return fmt.Errorf("masking secret: %w", err)
	}
	if err := r.ExportVariable(name, value); err != nil {
		return err
	}
	if opts.SetOutput {
		if err := r.SetOutput(OutputName, value); err != nil {
			return err
		}
	}
	return nil
}
