// Package sessionlog extracts debugging metadata from the JSONL session
// logs written by AI coding CLIs.
//
// A session log holds one JSON object per line. Each entry has a type, a
// timestamp and usually a message; assistant messages carry the model and
// token usage.
package sessionlog

import (
	"bufio"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	// Extension of session log files.
	Extension = ".jsonl"

	maxLineSize = 16 << 20
)

// ErrNoLog is returned when there is no session log to read.
var ErrNoLog = errors.New("no session log found")

// Entry is one decoded line of a session log.
type Entry = map[string]any

// Log is a parsed session log.
type Log struct {
	Path    string
	Size    int64
	Entries []Entry

	// Malformed counts lines that were not JSON objects.
	Malformed int
}

// Locate returns the log for sessionID in dir, or the most recently
// modified log when sessionID is empty.
func Locate(dir, sessionID string) (string, error) {
	if sessionID != "" {
		path := filepath.Join(dir, sessionID+Extension)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("%w for session %q in %s", ErrNoLog, sessionID, dir)
			}
			return "", err
		}
		return path, nil
	}

	type candidate struct {
		path  string
		mtime int64
	}
	var candidates []candidate

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != Extension {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		candidates = append(candidates, candidate{path: path, mtime: info.ModTime().UnixNano()})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s does not exist", ErrNoLog, dir)
		}
		return "", fmt.Errorf("searching %s: %w", dir, err)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoLog, dir)
	}

	newest := slices.MaxFunc(candidates, func(a, b candidate) int {
		if c := cmp.Compare(a.mtime, b.mtime); c != 0 {
			return c
		}
		// Same mtime: the later name wins, so the choice is stable.
		return strings.Compare(a.path, b.path)
	})
	return newest.path, nil
}

// Read parses the session log at path.
func Read(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // Read-only

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	l, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	l.Path = path
	l.Size = info.Size()
	return l, nil
}

// Parse reads JSONL entries from r. Blank lines are skipped; lines that
// are not JSON objects are counted in Malformed.
func Parse(r io.Reader) (*Log, error) {
	l := &Log{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil || entry == nil {
			l.Malformed++
			continue
		}
		l.Entries = append(l.Entries, entry)
	}

	return l, scanner.Err()
}
