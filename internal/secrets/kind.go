package secrets

import (
	"fmt"
	"strings"
)

// Kind identifies a secret provider.
type Kind string

const (
	KindRaw         Kind = "raw"
	KindDoppler     Kind = "doppler"
	KindOnePassword Kind = "onepassword"
)

// SupportedTags are the provider tags accepted by ParseKind, in the order
// they are listed to users.
var SupportedTags = []string{"raw", "doppler", "1password", "onepassword"}

// ParseKind parses a provider tag. Tags are case-insensitive and both
// "1password" and "onepassword" name the 1Password provider.
func ParseKind(tag string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "raw":
		return KindRaw, nil
	case "doppler":
		return KindDoppler, nil
	case "1password", "onepassword":
		return KindOnePassword, nil
	default:
		return "", fmt.Errorf("%w %q: supported providers are %s",
			ErrUnsupportedProvider, tag, strings.Join(SupportedTags, ", "))
	}
}
