package actions

import (
	"strings"

	"github.com/olekukonko/tablewriter"
)

// MarkdownTable renders rows as a GitHub flavoured markdown table, for
// step summaries.
func MarkdownTable(header []string, rows [][]string) string {
	var sb strings.Builder

	w := tablewriter.NewWriter(&sb)
	w.SetHeader(header)
	w.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	w.SetCenterSeparator("|")
	w.SetAutoFormatHeaders(false)
	w.SetAutoWrapText(false)
	w.AppendBulk(rows)
	w.Render()

	return sb.String()
}
