// Package template interpolates environment variables into text.
//
// The syntax is the shell-like one of github.com/buildkite/interpolate:
// $VAR, ${VAR}, ${VAR:-default}, ${VAR-default}, ${VAR:?message},
// ${VAR:offset:length}, and $$ for a literal dollar sign.
package template

import (
	"fmt"
	"slices"

	"github.com/buildkite/interpolate"
)

// Result is rendered text and what it referenced.
type Result struct {
	Text string

	// Unset lists the referenced variables that had no value, sorted and
	// without duplicates. Defaults were used for any that had one.
	Unset []string
}

// Render interpolates environ into text.
func Render(text string, environ interpolate.Env) (*Result, error) {
	rec := &recordingEnv{env: environ, unset: map[string]struct{}{}}

	out, err := interpolate.Interpolate(rec, text)
	if err != nil {
		return nil, fmt.Errorf("interpolating template: %w", err)
	}

	unset := make([]string, 0, len(rec.unset))
	for name := range rec.unset {
		unset = append(unset, name)
	}
	slices.Sort(unset)

	return &Result{Text: out, Unset: unset}, nil
}

// recordingEnv notes every lookup that finds nothing.
type recordingEnv struct {
	env   interpolate.Env
	unset map[string]struct{}
}

func (r *recordingEnv) Get(key string) (string, bool) {
	v, ok := r.env.Get(key)
	if !ok {
		r.unset[key] = struct{}{}
	}
	return v, ok
}
