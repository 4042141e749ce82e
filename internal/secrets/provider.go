package secrets

import (
	"context"
	"fmt"
)

// DefaultOnePasswordField is the item field read when none is given.
const DefaultOnePasswordField = "credential"

// Provider is one configured secret source. The set of implementations is
// closed: Raw, Doppler and OnePassword.
type Provider interface {
	Kind() Kind

	// Validate checks the provider's required inputs. It never starts a
	// process or touches the network.
	Validate() error

	resolve(ctx context.Context, r *Resolver) (string, error)
}

// Inputs is the union of every provider's inputs, as gathered from flags
// and the environment. NewProvider picks out the ones its kind uses.
type Inputs struct {
	Key string

	DopplerToken   string
	DopplerSecret  string
	DopplerProject string
	DopplerConfig  string

	OnePasswordToken string
	OnePasswordVault string
	OnePasswordItem  string
	OnePasswordField string
}

// NewProvider returns the provider for tag configured from in.
func NewProvider(tag string, in Inputs) (Provider, error) {
	kind, err := ParseKind(tag)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindRaw:
		return &Raw{Key: in.Key}, nil

	case KindDoppler:
		return &Doppler{
			Token:   in.DopplerToken,
			Secret:  in.DopplerSecret,
			Project: in.DopplerProject,
			Config:  in.DopplerConfig,
		}, nil

	case KindOnePassword:
		field := in.OnePasswordField
		if field == "" {
			field = DefaultOnePasswordField
		}
		return &OnePassword{
			Token: in.OnePasswordToken,
			Vault: in.OnePasswordVault,
			Item:  in.OnePasswordItem,
			Field: field,
		}, nil
	}

	return nil, fmt.Errorf("%w %q", ErrUnsupportedProvider, tag)
}

func missing(kind Kind, input string) error {
	return fmt.Errorf("%w: %s is required for the %s provider", ErrMissingInput, input, kind)
}

// Raw passes a literal value through unchanged.
type Raw struct {
	Key string
}

func (*Raw) Kind() Kind { return KindRaw }

func (p *Raw) Validate() error {
	if p.Key == "" {
		return missing(KindRaw, "key")
	}
	return nil
}

func (p *Raw) resolve(context.Context, *Resolver) (string, error) {
	return p.Key, nil
}
