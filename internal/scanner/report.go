package scanner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/actionkit/actionkit/internal/actions"
	"github.com/dustin/go-humanize"
)

// Report is what a scan found.
type Report struct {
	Scanner string
	Purpose string
	Path    string

	// Findings is the number of problems found. It is zero for tools that
	// only inventory, such as SBOM generators.
	Findings int

	// Counts breaks findings down by severity, rule or check type.
	Counts map[string]int

	// Packages is the number of packages in an SBOM.
	Packages int
}

// severityOrder puts the usual severities first, worst first.
var severityOrder = map[string]int{"CRITICAL": 0, "HIGH": 1, "MEDIUM": 2, "LOW": 3, "UNKNOWN": 4}

func (r *Report) countKeys() []string {
	keys := slices.Collect(maps.Keys(r.Counts))
	slices.SortFunc(keys, func(a, b string) int {
		oa, aok := severityOrder[a]
		ob, bok := severityOrder[b]
		switch {
		case aok && bok:
			return oa - ob
		case aok:
			return -1
		case bok:
			return 1
		}
		return strings.Compare(a, b)
	})
	return keys
}

// Outputs are the step outputs published for r.
func (r *Report) Outputs() map[string]string {
	out := map[string]string{
		"findings":    strconv.Itoa(r.Findings),
		"report-path": r.Path,
	}
	if r.Scanner == "syft" {
		out["sbom-packages"] = strconv.Itoa(r.Packages)
	}
	return out
}

// Summary renders r as markdown for the step summary.
func (r *Report) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s: %s\n\n", r.Purpose, r.Scanner)

	if r.Scanner == "syft" {
		fmt.Fprintf(&sb, "SBOM with %s packages written to `%s`.\n", humanize.Comma(int64(r.Packages)), r.Path)
		return sb.String()
	}

	if r.Findings == 0 {
		sb.WriteString("No findings.\n")
		return sb.String()
	}

	rows := make([][]string, 0, len(r.Counts)+1)
	for _, k := range r.countKeys() {
		rows = append(rows, []string{k, humanize.Comma(int64(r.Counts[k]))})
	}
	rows = append(rows, []string{"**Total**", "**" + humanize.Comma(int64(r.Findings)) + "**"})

	sb.WriteString(actions.MarkdownTable([]string{"Category", "Findings"}, rows))
	fmt.Fprintf(&sb, "\nFull report: `%s`\n", r.Path)
	return sb.String()
}

func isEmpty(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}

func parseGitleaks(b []byte) (*Report, error) {
	r := &Report{Counts: map[string]int{}}
	if isEmpty(b) {
		return r, nil
	}

	var findings []struct {
		RuleID string `json:"RuleID"`
	}
	if err := json.Unmarshal(b, &findings); err != nil {
		return nil, err
	}
	for _, f := range findings {
		r.Counts[f.RuleID]++
	}
	r.Findings = len(findings)
	return r, nil
}

func parseTrivy(b []byte) (*Report, error) {
	r := &Report{Counts: map[string]int{}}
	if isEmpty(b) {
		return r, nil
	}

	var report struct {
		Results []struct {
			Target          string `json:"Target"`
			Vulnerabilities []struct {
				VulnerabilityID string `json:"VulnerabilityID"`
				Severity        string `json:"Severity"`
			} `json:"Vulnerabilities"`
		} `json:"Results"`
	}
	if err := json.Unmarshal(b, &report); err != nil {
		return nil, err
	}
	for _, res := range report.Results {
		for _, v := range res.Vulnerabilities {
			sev := strings.ToUpper(v.Severity)
			if sev == "" {
				sev = "UNKNOWN"
			}
			r.Counts[sev]++
			r.Findings++
		}
	}
	return r, nil
}

func parseSyft(b []byte) (*Report, error) {
	r := &Report{Counts: map[string]int{}}

	var sbom struct {
		Packages []json.RawMessage `json:"packages"`
	}
	if err := json.Unmarshal(b, &sbom); err != nil {
		return nil, err
	}
	r.Packages = len(sbom.Packages)
	return r, nil
}

type checkovResult struct {
	CheckType string `json:"check_type"`
	Results   struct {
		FailedChecks []json.RawMessage `json:"failed_checks"`
	} `json:"results"`
}

// parseCheckov reads checkov's JSON output, which is a single object when
// one framework ran and an array when several did.
func parseCheckov(b []byte) (*Report, error) {
	r := &Report{Counts: map[string]int{}}
	b = bytes.TrimSpace(b)
	if isEmpty(b) {
		return r, nil
	}

	var results []checkovResult
	if b[0] == '[' {
		if err := json.Unmarshal(b, &results); err != nil {
			return nil, err
		}
	} else {
		var one checkovResult
		if err := json.Unmarshal(b, &one); err != nil {
			return nil, err
		}
		results = append(results, one)
	}

	for _, res := range results {
		n := len(res.Results.FailedChecks)
		if n == 0 {
			continue
		}
		r.Counts[res.CheckType] += n
		r.Findings += n
	}
	return r, nil
}
