package statistics

import "math"

// Sums read back from the store carry float noise from repeated additions,
// exact comparison would rewrite unchanged rows every cycle.
const sumTolerance = 1e-9

// Combine merges fresh rows into prior. Where both have a row for the same
// hour the fresh state replaces the recorded one. Sums are not recomputed.
func Combine(prior, fresh *Table) *Table {
	rows := prior.Rows()
	for _, row := range fresh.Rows() {
		if old, ok := prior.Lookup(row.Start); ok {
			row.Sum, row.HasSum = old.Sum, old.HasSum
		}
		rows = append(rows, row)
	}
	return NewTable(rows)
}

// Diff returns the rows of recomputed that are missing from prior or differ
// from it in state or sum.
func Diff(prior, recomputed *Table) *Table {
	changed := make([]Row, 0)
	for _, row := range recomputed.Rows() {
		old, ok := prior.Lookup(row.Start)
		if !ok || rowsDiffer(old, row) {
			changed = append(changed, row)
		}
	}
	return &Table{rows: changed}
}

// Reconcile merges fresh into prior, recomputes the running sum over the whole
// series and returns only the rows that must be written back.
func Reconcile(prior, fresh *Table) *Table {
	return Diff(prior, Combine(prior, fresh).WithCumulativeSum())
}

// Recalculate recomputes the running sum over a recorded statistic and returns
// the full series.
func Recalculate(recorded *Table) *Table {
	return recorded.WithCumulativeSum()
}

func rowsDiffer(a, b Row) bool {
	if a.HasSum != b.HasSum {
		return true
	}
	if !floatEqual(a.State, b.State) {
		return true
	}
	return a.HasSum && !floatEqual(a.Sum, b.Sum)
}

func floatEqual(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= sumTolerance*scale
}
