package executor

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/wbrown/janus-odata/odata"
	"github.com/wbrown/janus-odata/odata/demo"
)

func TestTableFormatter(t *testing.T) {
	formatter := NewTableFormatter()

	t.Run("FormatEmptyResult", func(t *testing.T) {
		assert.Equal(t, "_Empty result_", formatter.FormatResult(nil))
		out := formatter.FormatRows([]string{"Id"}, nil)
		assert.Contains(t, out, "_No rows_")
	})

	t.Run("FormatRows", func(t *testing.T) {
		rows := []odata.Entity{
			{"Name": "Alice", "Age": int64(30), "Active": true},
			{"Name": "Bob", "Age": int64(25), "Active": false},
		}
		out := formatter.FormatRows([]string{"Name", "Age", "Active"}, rows)
		assert.Contains(t, out, "Name")
		assert.Contains(t, out, "Alice")
		assert.Contains(t, out, "false")
		assert.Contains(t, out, "2 rows")
	})

	t.Run("FormatWithDifferentTypes", func(t *testing.T) {
		ref := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
		rows := []odata.Entity{{
			"When":   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
			"Ref":    ref,
			"Amount": 75000.5,
			"Lines":  []odata.Entity{{}, {}},
			"Owner":  odata.Entity{"Id": 1},
			"Empty":  nil,
			"Long":   strings.Repeat("x", 80),
		}}
		out := formatter.FormatRows(Columns(nil, rows), rows)
		assert.Contains(t, out, "2024-01-01 12:00:00")
		assert.Contains(t, out, ref.String())
		assert.Contains(t, out, "75000.50")
		assert.Contains(t, out, "[2]")
		assert.Contains(t, out, "{1 fields}")
		assert.Contains(t, out, "nil")
		assert.Contains(t, out, strings.Repeat("x", 47)+"...")
		assert.NotContains(t, out, strings.Repeat("x", 48))
	})
}

func TestColumns(t *testing.T) {
	s := demo.NewSchema()
	rows := []odata.Entity{
		{"Name": "a", "Id": int32(1), "Nickname": "n"},
		{"Id": int32(2), "Extra": true},
	}
	assert.Equal(t, []string{"Id", "Name", "Extra", "Nickname"}, Columns(s.Customer, rows))
	assert.Equal(t, []string{"Extra", "Id", "Name", "Nickname"}, Columns(nil, rows))
}

func TestResultString(t *testing.T) {
	qe, s := newTestExecutor(t)
	res := runNamed(t, qe, s, "big-orders", nil)
	out := ResultString(res)
	assert.Contains(t, out, "Quantity")
	assert.Contains(t, out, "418.00")
	assert.Contains(t, out, "_@odata.count: 1_")
}
