package secrets

import "errors"

var (
	// ErrMissingInput is returned when a provider's required input is empty.
	ErrMissingInput = errors.New("missing required input")

	// ErrUnsupportedProvider is returned for a provider tag outside the
	// supported set.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrRetrieval is returned when a provider's CLI fails or prints nothing.
	ErrRetrieval = errors.New("secret retrieval failed")
)
