package statistics

import (
	"sort"
	"time"
)

// Table is an hour-indexed series ordered by start time with unique keys.
// The zero value is an empty table.
type Table struct {
	rows []Row
}

// NewTable builds a table from rows in any order. Later rows win on duplicate starts.
func NewTable(rows []Row) *Table {
	byStart := make(map[int64]Row, len(rows))
	for _, row := range rows {
		byStart[row.Start.Unix()] = row
	}

	t := &Table{rows: make([]Row, 0, len(byStart))}
	for _, row := range byStart {
		t.rows = append(t.rows, row)
	}
	sort.Slice(t.rows, func(i, j int) bool {
		return t.rows[i].Start.Before(t.rows[j].Start)
	})
	return t
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

func (t *Table) IsEmpty() bool {
	return t.Len() == 0
}

// Rows returns a copy of the rows in chronological order.
func (t *Table) Rows() []Row {
	if t == nil {
		return []Row{}
	}
	rows := make([]Row, len(t.rows))
	copy(rows, t.rows)
	return rows
}

// Lookup returns the row starting at start, if any.
func (t *Table) Lookup(start time.Time) (Row, bool) {
	if t == nil {
		return Row{}, false
	}
	key := start.Unix()
	i := sort.Search(len(t.rows), func(i int) bool {
		return t.rows[i].Start.Unix() >= key
	})
	if i < len(t.rows) && t.rows[i].Start.Unix() == key {
		return t.rows[i], true
	}
	return Row{}, false
}

// First returns the earliest row.
func (t *Table) First() (Row, bool) {
	if t.IsEmpty() {
		return Row{}, false
	}
	return t.rows[0], true
}

// WithCumulativeSum returns a copy whose sum column is the running total of state.
func (t *Table) WithCumulativeSum() *Table {
	rows := t.Rows()
	total := 0.0
	for i := range rows {
		total += rows[i].State
		rows[i].Sum = total
		rows[i].HasSum = true
	}
	return &Table{rows: rows}
}
