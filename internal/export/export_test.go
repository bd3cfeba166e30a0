package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"teamorders/internal/core"
	"teamorders/internal/report"
)

func orders() []core.Order {
	at := func(d, h int) time.Time { return time.Date(2025, 3, d, h, 0, 0, 0, time.UTC) }
	return []core.Order{
		{ID: 1, Team: "Red", Member: "Ann", PlacedAt: at(4, 9), Item: "Apples", Option: "Bag", Quantity: 2},
		{ID: 2, Team: "Blue", Member: "Cid", PlacedAt: at(4, 11), Item: "Apples", Option: "", Quantity: 1},
		{ID: 3, Team: "Blue", Member: "Cid", PlacedAt: at(3, 15), Item: "Shake", Option: "Vanilla", Quantity: 3},
		{ID: 4, Team: "Amber", Member: "Dee", PlacedAt: at(5, 8), Item: "Milk", Quantity: 1},
	}
}

func readRows(t *testing.T, buf *bytes.Buffer, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{sheet}, f.GetSheetList())
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestGroupReport(t *testing.T) {
	var buf bytes.Buffer
	items := map[string]struct{}{"Apples": {}, "Milk": {}}
	require.NoError(t, GroupReport(&buf, orders(), items))

	assert.Equal(t, [][]string{
		{"Date", "Team", "Item", "Quantity"},
		{"2025-03-04", "Blue", "Apples", "1"},
		{"2025-03-04", "Red", "Apples", "2"},
		{"2025-03-05", "Amber", "Milk", "1"},
	}, readRows(t, &buf, GroupSheet))
}

func TestWeeklySummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WeeklySummary(&buf, orders()))

	rows := readRows(t, &buf, SummarySheet)
	require.Len(t, rows, len(orders())+1)
	assert.Equal(t, []string{"2025-03-03", "Blue", "Shake - Vanilla", "3"}, rows[1])
	assert.Equal(t, []string{"2025-03-04", "Red", "Apples - Bag", "2"}, rows[2])
	assert.Equal(t, []string{"2025-03-04", "Blue", "Apples", "1"}, rows[3])
}

func TestEmptyExportHasHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WeeklySummary(&buf, nil))
	assert.Len(t, readRows(t, &buf, SummarySheet), 1)
}

func TestFileNames(t *testing.T) {
	w := report.WeekOf(core.NewDate(2025, 3, 5))
	assert.Equal(t, "Produce_Hyvee_Orders_20250302.xlsx", GroupFileName(w))
	assert.Equal(t, "Full_Weekly_Orders_20250302.xlsx", SummaryFileName(w))
}
