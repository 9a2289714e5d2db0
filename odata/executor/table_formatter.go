package executor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/wbrown/janus-odata/odata"
)

// TableFormatter provides utilities for formatting results as tables
type TableFormatter struct {
	// MaxWidth is the maximum width for a column
	MaxWidth int
	// TruncateString is the string to append when truncating
	TruncateString string
}

// NewTableFormatter creates a new table formatter with default settings
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{
		MaxWidth:       50,
		TruncateString: "...",
	}
}

// FormatResult formats a result as a markdown table
func (tf *TableFormatter) FormatResult(result *Result) string {
	if result == nil {
		return "_Empty result_"
	}
	var declared *odata.EntityType
	if result.Plan != nil && len(result.Plan.Apply) == 0 {
		declared = result.Plan.ResultType
	}
	out := tf.FormatRows(Columns(declared, result.Rows), result.Rows)
	if result.Count != nil {
		out += fmt.Sprintf("_@odata.count: %d_\n", *result.Count)
	}
	return out
}

// FormatRows formats rows as a markdown table with the given columns
func (tf *TableFormatter) FormatRows(columns []string, rows []odata.Entity) string {
	if len(rows) == 0 {
		return fmt.Sprintf("_Columns: %v_\n\n_No rows_\n", columns)
	}

	tableString := &strings.Builder{}

	// Create alignment array with all columns using AlignNone for simple separators
	alignment := make([]tw.Align, len(columns))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)

	table.Header(columns)

	// Append rows
	for _, entity := range rows {
		row := make([]string, len(columns))
		for j, col := range columns {
			row[j] = tf.formatValue(entity[col])
		}
		table.Append(row)
	}

	// Render the table
	table.Render()

	// Add row count
	tableString.WriteString(fmt.Sprintf("\n_%d rows_\n", len(rows)))

	return tableString.String()
}

// Columns returns the column order for rows: the declared properties of t
// that occur, then every other key sorted by name
func Columns(t *odata.EntityType, rows []odata.Entity) []string {
	present := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			present[k] = true
		}
	}

	var columns []string
	if t != nil {
		for _, p := range t.Properties {
			if present[p.Name] {
				columns = append(columns, p.Name)
				delete(present, p.Name)
			}
		}
	}
	rest := make([]string, 0, len(present))
	for k := range present {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return append(columns, rest...)
}

// formatValue converts a value to a string representation
func (tf *TableFormatter) formatValue(val interface{}) string {
	if val == nil {
		return "nil"
	}

	var s string
	switch v := val.(type) {
	case string:
		s = v
	case int64:
		s = fmt.Sprintf("%d", v)
	case float64:
		s = fmt.Sprintf("%.2f", v)
	case bool:
		s = fmt.Sprintf("%t", v)
	case time.Time:
		s = v.Format("2006-01-02 15:04:05")
	case uuid.UUID:
		s = v.String()
	case odata.Entity:
		s = fmt.Sprintf("{%d fields}", len(v))
	case []odata.Entity:
		s = fmt.Sprintf("[%d]", len(v))
	default:
		s = fmt.Sprintf("%v", v)
	}

	if tf.MaxWidth > 0 && len(s) > tf.MaxWidth {
		s = s[:tf.MaxWidth-len(tf.TruncateString)] + tf.TruncateString
	}
	return s
}

// ResultString returns a markdown table of a result
func ResultString(result *Result) string {
	return NewTableFormatter().FormatResult(result)
}
