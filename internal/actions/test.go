package actions

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// NewTestRunner returns a Runner whose channel files live in a temporary
// directory, and the buffer its workflow commands are written to.
func NewTestRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()

	dir := t.TempDir()
	stdout := &bytes.Buffer{}

	return &Runner{
		Stdout:      stdout,
		EnvFile:     filepath.Join(dir, "env"),
		OutputFile:  filepath.Join(dir, "output"),
		PathFile:    filepath.Join(dir, "path"),
		SummaryFile: filepath.Join(dir, "summary"),
	}, stdout
}

// ReadKeyValueFile parses an env or output file written by a Runner. A
// missing file reads as empty.
func ReadKeyValueFile(path string) (map[string]string, error) {
	out := map[string]string{}

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(bytes.NewReader(b))
	for scanner.Scan() {
		line := scanner.Text()
		name, delimiter, ok := strings.Cut(line, "<<")
		if !ok {
			if k, v, ok := strings.Cut(line, "="); ok {
				out[k] = v
				continue
			}
			return nil, fmt.Errorf("%s: malformed line %q", path, line)
		}

		var value []string
		closed := false
		for scanner.Scan() {
			if scanner.Text() == delimiter {
				closed = true
				break
			}
			value = append(value, scanner.Text())
		}
		if !closed {
			return nil, fmt.Errorf("%s: unterminated value for %q", path, name)
		}
		out[name] = strings.Join(value, "\n")
	}

	return out, scanner.Err()
}

// Masks returns the values registered with ::add-mask:: in stdout.
func Masks(stdout string) []string {
	var masks []string
	for line := range strings.SplitSeq(stdout, "\n") {
		if v, ok := strings.CutPrefix(line, "::add-mask::"); ok {
			masks = append(masks, v)
		}
	}
	return masks
}
