package sessionlog

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/actionkit/actionkit/internal/actions"
	"github.com/dustin/go-humanize"
)

// Metadata is what a session log says about the session.
type Metadata struct {
	SessionID  string `json:"session_id" yaml:"session_id"`
	CLIVersion string `json:"cli_version,omitempty" yaml:"cli_version,omitempty"`
	Model      string `json:"model,omitempty" yaml:"model,omitempty"`
	Cwd        string `json:"cwd,omitempty" yaml:"cwd,omitempty"`
	GitBranch  string `json:"git_branch,omitempty" yaml:"git_branch,omitempty"`

	Started  time.Time     `json:"started,omitzero" yaml:"started,omitempty"`
	Ended    time.Time     `json:"ended,omitzero" yaml:"ended,omitempty"`
	Duration time.Duration `json:"-" yaml:"-"`

	Entries      int            `json:"entries" yaml:"entries"`
	EntryTypes   map[string]int `json:"entry_types" yaml:"entry_types"`
	Errors       int            `json:"errors" yaml:"errors"`
	LastError    string         `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	InputTokens  int64          `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int64          `json:"output_tokens" yaml:"output_tokens"`

	LogFile   string `json:"log_file" yaml:"log_file"`
	LogSize   int64  `json:"log_size" yaml:"log_size"`
	Malformed int    `json:"malformed_lines" yaml:"malformed_lines"`

	Queries map[string]string `json:"queries,omitempty" yaml:"queries,omitempty"`
}

// DurationSeconds is Duration rounded to whole seconds.
func (m *Metadata) DurationSeconds() int64 {
	return int64(m.Duration.Round(time.Second) / time.Second)
}

// Extract summarises l.
func Extract(l *Log) *Metadata {
	m := &Metadata{
		Entries:    len(l.Entries),
		EntryTypes: map[string]int{},
		LogFile:    l.Path,
		LogSize:    l.Size,
		Malformed:  l.Malformed,
	}

	for _, e := range l.Entries {
		if m.SessionID == "" {
			m.SessionID = firstString(e, "sessionId", "session_id")
		}
		if v := firstString(e, "version"); v != "" {
			m.CLIVersion = v
		}
		if v := firstString(e, "cwd"); v != "" && m.Cwd == "" {
			m.Cwd = v
		}
		if v := firstString(e, "gitBranch", "git_branch"); v != "" {
			m.GitBranch = v
		}
		if t := firstString(e, "type"); t != "" {
			m.EntryTypes[t]++
		}

		if ts, ok := timestamp(e); ok {
			if m.Started.IsZero() || ts.Before(m.Started) {
				m.Started = ts
			}
			if ts.After(m.Ended) {
				m.Ended = ts
			}
		}

		msg, _ := e["message"].(map[string]any)
		if v := firstString(msg, "model"); v != "" {
			m.Model = v
		}
		if usage, ok := msg["usage"].(map[string]any); ok {
			m.InputTokens += number(usage, "input_tokens") +
				number(usage, "cache_creation_input_tokens") +
				number(usage, "cache_read_input_tokens")
			m.OutputTokens += number(usage, "output_tokens")
		}

		if text, ok := entryError(e, msg); ok {
			m.Errors++
			if text != "" {
				m.LastError = text
			}
		}
	}

	if !m.Started.IsZero() {
		m.Duration = m.Ended.Sub(m.Started)
	}
	return m
}

// entryError reports whether e records an error, and its text if any.
func entryError(e, msg map[string]any) (string, bool) {
	if isTrue(e, "is_error") || isTrue(e, "isError") {
		return errorText(e), true
	}

	content, _ := msg["content"].([]any)
	for _, c := range content {
		block, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if isTrue(block, "is_error") || isTrue(block, "isError") {
			return errorText(block), true
		}
	}
	return "", false
}

func errorText(m map[string]any) string {
	if s := firstString(m, "error", "result"); s != "" {
		return truncate(s, 500)
	}
	switch c := m["content"].(type) {
	case string:
		return truncate(c, 500)
	case []any:
		var parts []string
		for _, p := range c {
			if block, ok := p.(map[string]any); ok {
				if s := firstString(block, "text"); s != "" {
					parts = append(parts, s)
				}
			}
		}
		return truncate(strings.Join(parts, "\n"), 500)
	}
	return ""
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func isTrue(m map[string]any, key string) bool {
	b, ok := m[key].(bool)
	return ok && b
}

func number(m map[string]any, key string) int64 {
	if f, ok := m[key].(float64); ok {
		return int64(f)
	}
	return 0
}

func timestamp(e map[string]any) (time.Time, bool) {
	s := firstString(e, "timestamp")
	if s == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Outputs are the step outputs published for m.
func (m *Metadata) Outputs() map[string]string {
	out := map[string]string{
		"session-id":       m.SessionID,
		"model":            m.Model,
		"cli-version":      m.CLIVersion,
		"log-file":         m.LogFile,
		"entry-count":      strconv.Itoa(m.Entries),
		"error-count":      strconv.Itoa(m.Errors),
		"input-tokens":     strconv.FormatInt(m.InputTokens, 10),
		"output-tokens":    strconv.FormatInt(m.OutputTokens, 10),
		"duration-seconds": strconv.FormatInt(m.DurationSeconds(), 10),
	}
	for name, v := range m.Queries {
		out[name] = v
	}
	return out
}

// Summary renders m as markdown for the step summary.
func (m *Metadata) Summary() string {
	rows := [][]string{
		{"Session", m.SessionID},
		{"Model", m.Model},
		{"CLI version", m.CLIVersion},
		{"Branch", m.GitBranch},
		{"Duration", m.Duration.Round(time.Second).String()},
		{"Entries", humanize.Comma(int64(m.Entries))},
		{"Errors", humanize.Comma(int64(m.Errors))},
		{"Input tokens", humanize.Comma(m.InputTokens)},
		{"Output tokens", humanize.Comma(m.OutputTokens)},
		{"Log size", humanize.Bytes(uint64(m.LogSize))},
	}
	if m.Malformed > 0 {
		rows = append(rows, []string{"Malformed lines", humanize.Comma(int64(m.Malformed))})
	}
	for _, t := range slices.Sorted(maps.Keys(m.EntryTypes)) {
		rows = append(rows, []string{fmt.Sprintf("`%s` entries", t), humanize.Comma(int64(m.EntryTypes[t]))})
	}
	for _, name := range slices.Sorted(maps.Keys(m.Queries)) {
		rows = append(rows, []string{fmt.Sprintf("`%s`", name), "`" + strings.ReplaceAll(m.Queries[name], "|", `\|`) + "`"})
	}

	var sb strings.Builder
	sb.WriteString("### Session log\n\n")
	sb.WriteString(actions.MarkdownTable([]string{"Field", "Value"}, rows))
	if m.LastError != "" {
		sb.WriteString("\n<details><summary>Last error</summary>\n\n```\n")
		sb.WriteString(m.LastError)
		sb.WriteString("\n```\n</details>\n")
	}
	return sb.String()
}
