// Package version provides the actionkit version strings.
package version

import (
	_ "embed"
	"runtime"
	"strings"
)

// buildVersion can be overridden at compile time:
//
//	go build -ldflags "-X github.com/actionkit/actionkit/version.buildVersion=abc" .
//
// Release binaries always have it set.

//go:embed VERSION
var baseVersion string
var buildVersion string

func Version() string {
	return strings.TrimSpace(baseVersion)
}

func BuildVersion() string {
	if buildVersion == "" {
		return "x"
	}
	return buildVersion
}

// FullVersion is the version string shown by `actionkit --version`.
func FullVersion() string {
	return Version() + "+" + BuildVersion()
}

func UserAgent() string {
	return "actionkit/" + Version() + "." + BuildVersion() + " (" + runtime.GOOS + "; " + runtime.GOARCH + ")"
}
