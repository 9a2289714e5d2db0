package odata

import (
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCompareValues(t *testing.T) {
	early := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name        string
		left, right interface{}
		want        int
	}{
		{"nil equals nil", nil, nil, 0},
		{"nil sorts first", nil, 0, -1},
		{"non-nil after nil", "a", nil, 1},
		{"mixed integer widths", int16(3), int64(3), 0},
		{"integer against float", int32(2), 2.5, -1},
		{"large integers stay exact", int64(1<<53 + 1), int64(1 << 53), 1},
		{"strings", "abc", "abd", -1},
		{"bools", true, false, 1},
		{"times", early, early.Add(time.Second), -1},
		{"guids", uuid.UUID{1}, uuid.UUID{2}, -1},
		{"numbers before strings", 5, "5", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareValues(tt.left, tt.right))
			assert.Equal(t, -tt.want, CompareValues(tt.right, tt.left), "antisymmetric")
		})
	}
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, ValuesEqual(nil, nil))
	assert.False(t, ValuesEqual(nil, 0))
	assert.True(t, ValuesEqual(int32(4), 4.0))
	assert.False(t, ValuesEqual(4, "4"))
	assert.True(t, ValuesEqual("x", "x"))
}

func TestSortMixedColumn(t *testing.T) {
	column := []interface{}{"b", 3, nil, 1.5, true, "a"}
	sort.SliceStable(column, func(i, j int) bool {
		return CompareValues(column[i], column[j]) < 0
	})
	assert.Equal(t, []interface{}{nil, 1.5, 3, true, "a", "b"}, column)
}
