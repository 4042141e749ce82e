package sessionlog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// Query is a named jq expression run over every entry of a log.
type Query struct {
	Name string
	code *gojq.Code
}

// ParseQuery parses "name=expression".
func ParseQuery(s string) (*Query, error) {
	name, expr, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("invalid query %q: want name=expression", s)
	}

	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing query %q: %w", name, err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compiling query %q: %w", name, err)
	}
	return &Query{Name: name, code: code}, nil
}

// Run evaluates the query with the log's entries as an array and returns
// its first result. Strings are returned as is, anything else as JSON.
// A query with no results returns "".
func (q *Query) Run(entries []Entry) (string, error) {
	input := make([]any, len(entries))
	for i, e := range entries {
		input[i] = e
	}

	iter := q.code.Run(input)
	v, ok := iter.Next()
	if !ok {
		return "", nil
	}
	if err, ok := v.(error); ok {
		return "", fmt.Errorf("running query %q: %w", q.Name, err)
	}

	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encoding result of query %q: %w", q.Name, err)
		}
		return string(b), nil
	}
}
