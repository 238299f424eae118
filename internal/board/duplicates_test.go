package board

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanDuplicates_NoViolations(t *testing.T) {
	records := []Record{
		{ID: 1, TopBarcode: "A", BottomBarcode: "B"},
		{ID: 2, TopBarcode: "C", BottomBarcode: ""},
		{ID: 3, TopBarcode: "", BottomBarcode: "D"},
	}
	assert.Empty(t, ScanDuplicates(records))
}

func TestScanDuplicates_CombinedClassification(t *testing.T) {
	// "X" appears twice in the top column and once in the bottom column:
	// both duplicate_in_board_top and appears_in_both_columns apply.
	records := []Record{
		{ID: 1, TopBarcode: "X"},
		{ID: 2, TopBarcode: "X"},
		{ID: 3, BottomBarcode: "X"},
	}

	violations := ScanDuplicates(records)
	require.Len(t, violations, 1)

	v := violations[0]
	assert.Equal(t, "X", v.Value)
	assert.Equal(t, 3, v.Total)
	assert.Equal(t, 2, v.TopCount)
	assert.Equal(t, 1, v.BottomCount)
	assert.Contains(t, v.Reasons, ReasonDuplicateInTop)
	assert.Contains(t, v.Reasons, ReasonAppearsInBoth)
	assert.NotContains(t, v.Reasons, ReasonDuplicateInBottom)
	assert.NotContains(t, v.Reasons, ReasonAcrossUnion)
}

func TestScanDuplicates_SingleColumnDuplicates(t *testing.T) {
	records := []Record{
		{ID: 1, TopBarcode: "T", BottomBarcode: "B"},
		{ID: 2, TopBarcode: "T", BottomBarcode: "B"},
	}

	violations := ScanDuplicates(records)
	require.Len(t, violations, 2)

	// Sorted by value: "B" first.
	assert.Equal(t, []string{ReasonDuplicateInBottom}, violations[0].Reasons)
	assert.Equal(t, []string{ReasonDuplicateInTop}, violations[1].Reasons)
}

func TestScanDuplicates_AcrossColumnsOnce(t *testing.T) {
	records := []Record{
		{ID: 1, TopBarcode: "X"},
		{ID: 2, BottomBarcode: "X"},
	}

	violations := ScanDuplicates(records)
	require.Len(t, violations, 1)
	assert.Equal(t, []string{ReasonAppearsInBoth}, violations[0].Reasons)
}

func TestScanDuplicates_CatchAllUnreachable(t *testing.T) {
	// Any total > 1 implies top > 1, bottom > 1 or presence in both
	// columns, so the defensive catch-all must never fire.
	records := []Record{
		{ID: 1, TopBarcode: "X", BottomBarcode: "Y"},
		{ID: 2, TopBarcode: "Y", BottomBarcode: "X"},
		{ID: 3, TopBarcode: "X", BottomBarcode: "X"},
		{ID: 4, TopBarcode: "Z"},
		{ID: 5, TopBarcode: "Z"},
	}
	for _, v := range ScanDuplicates(records) {
		assert.NotContains(t, v.Reasons, ReasonAcrossUnion, "value %q", v.Value)
	}
}

func TestScanDuplicates_TrimsAndSkipsEmpty(t *testing.T) {
	records := []Record{
		{ID: 1, TopBarcode: " X "},
		{ID: 2, BottomBarcode: "X"},
		{ID: 3, TopBarcode: "   "},
		{ID: 4, BottomBarcode: "   "},
	}

	violations := ScanDuplicates(records)
	require.Len(t, violations, 1)
	assert.Equal(t, "X", violations[0].Value)
	assert.Equal(t, 2, violations[0].Total)
}

func TestScanDuplicates_Locators(t *testing.T) {
	records := []Record{
		{ID: 10, TopBarcode: "X", BottomBarcode: "X"},
		{ID: 20, BottomBarcode: "X"},
	}

	violations := ScanDuplicates(records)
	require.Len(t, violations, 1)
	assert.Equal(t, []Occurrence{
		{RowID: 10, Column: ColumnTop},
		{RowID: 10, Column: ColumnBottom},
		{RowID: 20, Column: ColumnBottom},
	}, violations[0].Occurrences)
}

func TestScanDuplicates_DoesNotMutateInput(t *testing.T) {
	records := []Record{
		{ID: 1, TopBarcode: " X ", BottomBarcode: "X"},
	}
	before := records[0]
	ScanDuplicates(records)
	assert.Equal(t, before, records[0])
}

func TestWriteViolationsCSV(t *testing.T) {
	violations := ScanDuplicates([]Record{
		{ID: 1, TopBarcode: "X"},
		{ID: 2, TopBarcode: "X"},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteViolationsCSV(&buf, violations))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,column,num,total_count,top_count,bottom_count,reason", lines[0])
	assert.Equal(t, "1,board_top,X,2,2,0,duplicate_in_board_top", lines[1])
	assert.Equal(t, "2,board_top,X,2,2,0,duplicate_in_board_top", lines[2])
}
