package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// File is a dotenv formatted config file. Keys are flag names, and may be
// written in upper case with underscores, so both `doppler-project=web` and
// `DOPPLER_PROJECT=web` set --doppler-project.
type File struct {
	// The path to the file
	Path string

	// A map of key/values that was loaded from the file
	Config map[string]string
}

func (f *File) Load() error {
	absolutePath, err := f.AbsolutePath()
	if err != nil {
		return fmt.Errorf("getting absolute path for %s: %w", f.Path, err)
	}

	src, err := os.ReadFile(absolutePath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", f.Path, err)
	}

	values, err := godotenv.Unmarshal(underscoreKeys(string(src)))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", f.Path, err)
	}

	f.Config = make(map[string]string, len(values))
	for k, v := range values {
		f.Config[configKey(k)] = v
	}
	return nil
}

func (f File) AbsolutePath() (string, error) {
	return NormalizeFilePath(f.Path)
}

func (f File) Exists() bool {
	absolutePath, err := f.AbsolutePath()
	if err != nil {
		return false
	}

	_, err = os.Stat(absolutePath)
	return err == nil
}

// underscoreKeys rewrites dashes in key names to underscores, since godotenv
// only accepts letters, digits, dots and underscores there. Lines inside a
// multi-line quoted value are left alone.
func underscoreKeys(src string) string {
	var (
		b     strings.Builder
		quote byte
	)
	for line := range strings.Lines(src) {
		if quote != 0 {
			if closesQuote(line, quote) {
				quote = 0
			}
			b.WriteString(line)
			continue
		}

		trimmed := strings.TrimLeft(line, " \t")
		i := strings.IndexAny(trimmed, "=:")
		if trimmed == "" || trimmed[0] == '#' || i < 0 {
			b.WriteString(line)
			continue
		}

		b.WriteString(line[:len(line)-len(trimmed)])
		b.WriteString(strings.ReplaceAll(trimmed[:i], "-", "_"))
		b.WriteString(trimmed[i:])

		value := strings.TrimLeft(trimmed[i+1:], " \t")
		if value != "" && (value[0] == '"' || value[0] == '\'') && !closesQuote(value[1:], value[0]) {
			quote = value[0]
		}
	}
	return b.String()
}

func closesQuote(s string, quote byte) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if quote == '"' {
				i++
			}
		case quote:
			return true
		}
	}
	return false
}

func configKey(k string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(k)), "_", "-")
}

// NormalizeFilePath expands a leading ~ to the home directory and makes
// path absolute. The empty path stays empty.
func NormalizeFilePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := userHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	return filepath.Abs(path)
}

// userHomeDir prefers $HOME over the platform lookup, which on Windows
// reads USERPROFILE first.
func userHomeDir() (string, error) {
	if h := os.Getenv("HOME"); h != "" {
		return h, nil
	}
	return os.UserHomeDir()
}
