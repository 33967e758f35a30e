// Package formatter renders normalized filings for terminal output.
package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"formdwatch/internal/models"
	"formdwatch/pkg/utils"
)

// Column headers, in display order.
var Headers = []string{"Company Name", "File Date", "Business Location(s)", "Edgar"}

// Supported output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// ErrUnknownFormat is returned by Write for an unsupported format name.
var ErrUnknownFormat = fmt.Errorf("unknown output format (want %q or %q)", FormatTable, FormatJSON)

// Write renders result to w in the requested format.
func Write(w io.Writer, result *models.FilingResult, format string) error {
	switch format {
	case FormatTable, "":
		_, err := io.WriteString(w, RenderTable(result.Filings)+"\n"+Summary(result)+"\n")
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(result)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// RenderTable renders filings as a Markdown table with columns padded to
// equal display width. Edgar cells hold one [Link](url) per CIK.
func RenderTable(filings []models.Filing) string {
	rows := make([][]string, 0, len(filings)+1)
	rows = append(rows, Headers)

	for _, f := range filings {
		links := make([]string, 0, len(f.Edgar))
		for _, l := range f.Edgar {
			links = append(links, fmt.Sprintf("[Link](%s)", l.URL))
		}

		rows = append(rows, []string{
			escapeCell(f.CompanyName),
			escapeCell(f.FileDate),
			escapeCell(f.BusinessLocations),
			strings.Join(links, ", "),
		})
	}

	return strings.Join(alignTable(rows), "\n")
}

// Summary describes how many filings were shown versus matched upstream.
func Summary(result *models.FilingResult) string {
	if len(result.Filings) == 0 {
		return fmt.Sprintf("No filings found for %s.", result.Range)
	}

	if result.Truncated() {
		return fmt.Sprintf("Showing %d of %d filings for %s (first page only).", len(result.Filings), result.Total, result.Range)
	}

	return fmt.Sprintf("%d filings for %s.", len(result.Filings), result.Range)
}

var cellText = utils.NewStringHelper()

// escapeCell keeps a value on one table line and escapes column separators.
func escapeCell(s string) string {
	return strings.ReplaceAll(cellText.NormalizeWhitespace(s), "|", `\|`)
}

// alignTable lays out a header row, a separator and the body rows.
func alignTable(table [][]string) []string {
	colCount := 0
	for _, row := range table {
		if len(row) > colCount {
			colCount = len(row)
		}
	}

	// Column widths by display width, so CJK names line up.
	colWidths := make([]int, colCount)

	for _, row := range table {
		for i := 0; i < len(row); i++ {
			if width := runewidth.StringWidth(row[i]); width > colWidths[i] {
				colWidths[i] = width
			}
		}
	}

	for i := range colWidths {
		if colWidths[i] < 3 {
			colWidths[i] = 3
		}
	}

	result := make([]string, 0, len(table)+1)

	for i, row := range table {
		result = append(result, formatRow(row, colWidths, false))

		if i == 0 {
			result = append(result, formatRow(nil, colWidths, true))
		}
	}

	return result
}

func formatRow(row []string, colWidths []int, separator bool) string {
	var sb strings.Builder

	sb.WriteString("|")

	for j, width := range colWidths {
		sb.WriteString(" ")

		if separator {
			sb.WriteString(strings.Repeat("-", width))
		} else {
			content := ""
			if j < len(row) {
				content = row[j]
			}

			sb.WriteString(runewidth.FillRight(content, width))
		}

		sb.WriteString(" |")
	}

	return sb.String()
}
