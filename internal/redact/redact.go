// Package redact scrubs credential values out of text that is about to be
// shown in logs, such as the captured output of a failed tool.
package redact

import (
	"cmp"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/actionkit/actionkit/env"
)

// LengthMin is the shortest string length that will be considered a
// potential secret. e.g. if DOPPLER_TOKEN is set to "none", this minimum
// length prevents the word "none" from being scrubbed out of useful output.
const LengthMin = 6

// Replacement is what a redacted value is replaced with.
const Replacement = "[REDACTED]"

// DefaultPatterns are the variable name patterns whose values are scrubbed
// from surfaced tool output.
var DefaultPatterns = []string{
	"*_PASSWORD",
	"*_SECRET",
	"*_TOKEN",
	"*_PRIVATE_KEY",
	"*_ACCESS_KEY",
	"*_SECRET_KEY",
	"*_API_KEY",
	"*_CONNECTION_STRING",
}

// Match reports if the name matches any of the patterns.
func Match(patterns []string, name string) (bool, error) {
	for _, pattern := range patterns {
		matched, err := path.Match(pattern, name)
		if err != nil {
			// path.ErrBadPattern is the only error returned by path.Match
			return false, fmt.Errorf("bad redacted vars pattern %q: %w", pattern, err)
		}

		if matched {
			return true, nil
		}
	}
	return false, nil
}

// Vars returns the variables whose names match patterns and whose values
// are long enough to redact. Matching variables with values shorter than
// LengthMin are returned separately in short.
func Vars(patterns []string, environment []env.Pair) (matched []env.Pair, short []string, err error) {
	for _, pair := range environment {
		ok, err := Match(patterns, pair.Name)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}

		if len(pair.Value) < LengthMin {
			if len(pair.Value) > 0 {
				short = append(short, pair.Name)
			}
			continue
		}

		matched = append(matched, pair)
	}

	slices.Sort(short)
	return matched, short, nil
}

// Values is Vars without the names.
func Values(patterns []string, environment []env.Pair) ([]string, error) {
	vars, _, err := Vars(patterns, environment)
	if err != nil {
		return nil, err
	}

	vals := make([]string, 0, len(vars))
	for _, pair := range vars {
		vals = append(vals, pair.Value)
	}
	return vals, nil
}

// String replaces every occurrence of each needle in s with Replacement.
// Needles shorter than LengthMin are ignored.
func String(s string, needles ...string) string {
	// Longest first, so that a needle which contains another is replaced
	// whole rather than in part.
	sorted := slices.Clone(needles)
	slices.SortFunc(sorted, func(a, b string) int { return cmp.Compare(len(b), len(a)) })

	oldnew := make([]string, 0, 2*len(sorted))
	for _, n := range sorted {
		if len(n) < LengthMin {
			continue
		}
		oldnew = append(oldnew, n, Replacement)
	}
	if len(oldnew) == 0 {
		return s
	}
	return strings.NewReplacer(oldnew...).Replace(s)
}
