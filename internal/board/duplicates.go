package board

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Column names a positional barcode slot on the board row.
type Column string

const (
	ColumnTop    Column = "board_top"
	ColumnBottom Column = "board_bottom"
)

// Violation reasons. A value can earn several of them at once.
const (
	ReasonDuplicateInTop    = "duplicate_in_board_top"
	ReasonDuplicateInBottom = "duplicate_in_board_bottom"
	ReasonAppearsInBoth     = "appears_in_both_columns"
	ReasonAcrossUnion       = "duplicate_across_union"
)

// Occurrence locates one appearance of a duplicated value.
type Occurrence struct {
	RowID  int64
	Column Column
}

// Violation is one barcode value that breaks the uniqueness invariant over
// the union of both barcode columns.
type Violation struct {
	Value       string
	Total       int
	TopCount    int
	BottomCount int
	Reasons     []string
	Occurrences []Occurrence
}

// ScanDuplicates reports every non-empty barcode value that occurs more than
// once across the union of top and bottom columns. It only reads: input
// records are never mutated and the scan is safe to repeat at any time.
// Violations are returned sorted by value, occurrences in row order with top
// before bottom.
func ScanDuplicates(records []Record) []Violation {
	type tally struct {
		top, bottom int
		occurrences []Occurrence
	}
	counts := make(map[string]*tally)

	observe := func(raw string, id int64, col Column) {
		v := strings.TrimSpace(raw)
		if v == "" {
			return
		}
		t := counts[v]
		if t == nil {
			t = &tally{}
			counts[v] = t
		}
		if col == ColumnTop {
			t.top++
		} else {
			t.bottom++
		}
		t.occurrences = append(t.occurrences, Occurrence{RowID: id, Column: col})
	}

	for _, rec := range records {
		observe(rec.TopBarcode, rec.ID, ColumnTop)
		observe(rec.BottomBarcode, rec.ID, ColumnBottom)
	}

	var out []Violation
	for value, t := range counts {
		total := t.top + t.bottom
		if total <= 1 {
			continue
		}
		out = append(out, Violation{
			Value:       value,
			Total:       total,
			TopCount:    t.top,
			BottomCount: t.bottom,
			Reasons:     classify(t.top, t.bottom, total),
			Occurrences: t.occurrences,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

// classify labels a violation from its per-column counts. The labels are not
// exclusive: a value duplicated inside one column that also shows up in the
// other gets both reasons. The across-union catch-all cannot fire as long as
// total > 1 implies one of the specific cases, but stays as a guard.
func classify(top, bottom, total int) []string {
	var reasons []string
	if top > 1 {
		reasons = append(reasons, ReasonDuplicateInTop)
	}
	if bottom > 1 {
		reasons = append(reasons, ReasonDuplicateInBottom)
	}
	if top >= 1 && bottom >= 1 {
		reasons = append(reasons, ReasonAppearsInBoth)
	}
	if len(reasons) == 0 && total > 1 {
		reasons = append(reasons, ReasonAcrossUnion)
	}
	return reasons
}

// WriteViolationsCSV writes one line per occurrence, carrying enough locator
// information to find the offending rows again.
func WriteViolationsCSV(w io.Writer, violations []Violation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "column", "num", "total_count", "top_count", "bottom_count", "reason"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, v := range violations {
		reasons := strings.Join(v.Reasons, ";")
		for _, occ := range v.Occurrences {
			row := []string{
				strconv.FormatInt(occ.RowID, 10),
				string(occ.Column),
				v.Value,
				strconv.Itoa(v.Total),
				strconv.Itoa(v.TopCount),
				strconv.Itoa(v.BottomCount),
				reasons,
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
