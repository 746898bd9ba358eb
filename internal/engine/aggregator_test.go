package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesboard/internal/models"
)

func rec(store, dept int, date string, sales float64, holiday bool, month int, label string) models.SalesRecord {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		panic(err)
	}
	return models.SalesRecord{
		StoreID: store, DeptID: dept, Date: d, WeeklySales: sales,
		IsHoliday: holiday, MonthIndex: month, MonthLabel: label,
	}
}

func mustStore(t *testing.T, records ...models.SalesRecord) *ColumnStore {
	t.Helper()
	cs, err := FromRecords(records)
	require.NoError(t, err)
	return cs
}

func TestMonthlyAndWeeklyScenario(t *testing.T) {
	cs := mustStore(t,
		rec(1, 1, "2012-01-06", 100, false, 1, "Jan"),
		rec(1, 1, "2012-01-13", 50, true, 1, "Jan"),
	)

	assert.Equal(t, []models.MonthlySummary{
		{MonthIndex: 1, Month: "Jan", TotalSales: 150.0, HolidaySales: 50.0},
	}, cs.Monthly())

	assert.Equal(t, []models.WeeklySummary{
		{MonthIndex: 1, Month: "Jan", Date: "2012-01-06", WeeklySales: 100, WeekNumber: 1},
		{MonthIndex: 1, Month: "Jan", Date: "2012-01-13", WeeklySales: 50, WeekNumber: 2},
	}, cs.Weekly())
}

func TestMonthlyFillsMissingHolidayWithZero(t *testing.T) {
	cs := mustStore(t,
		rec(1, 1, "2012-02-03", 10, false, 2, "Feb"),
		rec(1, 1, "2012-01-06", 20, true, 1, "Jan"),
	)

	monthly := cs.Monthly()
	require.Len(t, monthly, 2)
	// ordered by month index, not by dataset order
	assert.Equal(t, "Jan", monthly[0].Month)
	assert.Equal(t, 20.0, monthly[0].HolidaySales)
	assert.Equal(t, "Feb", monthly[1].Month)
	assert.Equal(t, 0.0, monthly[1].HolidaySales)
	assert.Equal(t, 10.0, monthly[1].TotalSales)
}

func TestMonthlyTotalsMatchRawSum(t *testing.T) {
	cs := mustStore(t,
		rec(1, 1, "2012-01-06", 1.11, false, 1, "Jan"),
		rec(2, 3, "2012-01-06", -0.42, false, 1, "Jan"),
		rec(1, 1, "2012-02-03", 7.25, true, 2, "Feb"),
		rec(3, 2, "2012-03-02", 3.3, false, 3, "Mar"),
		rec(3, 2, "2012-03-09", 0.05, true, 3, "Mar"),
	)

	var raw, monthly float64
	for _, s := range cs.Sales {
		raw += s
	}
	for _, m := range cs.Monthly() {
		monthly += m.TotalSales
	}
	assert.InDelta(t, raw, monthly, 0.05*3)
}

func TestWeeklyDenseRank(t *testing.T) {
	cs := mustStore(t,
		rec(1, 1, "2012-01-20", 5, false, 1, "Jan"),
		rec(1, 1, "2012-01-06", 1, false, 1, "Jan"),
		rec(2, 4, "2012-01-06", 2, false, 1, "Jan"), // same date, folded into one row
		rec(1, 1, "2012-01-13", 3, false, 1, "Jan"),
		rec(1, 1, "2012-02-03", 9, false, 2, "Feb"),
	)

	weekly := cs.Weekly()
	require.Len(t, weekly, 4)

	got := make([][2]any, len(weekly))
	for i, w := range weekly {
		got[i] = [2]any{w.Date, w.WeekNumber}
	}
	assert.Equal(t, [][2]any{
		{"2012-01-06", 1},
		{"2012-01-13", 2},
		{"2012-01-20", 3},
		{"2012-02-03", 1},
	}, got)
	assert.Equal(t, 3.0, weekly[0].WeeklySales)
}

func TestByStoreAndByDept(t *testing.T) {
	cs := mustStore(t,
		rec(2, 7, "2012-01-06", 12.34, false, 1, "Jan"),
		rec(2, 7, "2012-01-13", 0.02, false, 1, "Jan"),
		rec(1, 3, "2012-01-06", 10.04, false, 1, "Jan"),
		rec(1, 3, "2012-01-13", 10.01, false, 1, "Jan"),
	)

	assert.Equal(t, []models.StoreSummary{
		{MonthIndex: 1, Month: "Jan", StoreID: 1, Store: "Store 1", TotalSales: 20.0}, // 20.05 rounds half to even
		{MonthIndex: 1, Month: "Jan", StoreID: 2, Store: "Store 2", TotalSales: 12.4},
	}, cs.ByStore())

	assert.Equal(t, []models.DeptSummary{
		{MonthIndex: 1, Month: "Jan", DeptID: 3, Dept: "Dept 3", TotalSales: 20.0},
		{MonthIndex: 1, Month: "Jan", DeptID: 7, Dept: "Dept 7", TotalSales: 12.4},
	}, cs.ByDept())
}

func TestAggregateIsIdempotent(t *testing.T) {
	cs := mustStore(t,
		rec(1, 1, "2012-01-06", 100, false, 1, "Jan"),
		rec(2, 2, "2012-02-03", 50, true, 2, "Feb"),
	)

	a, err := cs.Aggregate(context.Background())
	require.NoError(t, err)
	b, err := cs.Aggregate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a.Monthly(), b.Monthly())
	assert.Equal(t, a.Weekly(), b.Weekly())
	assert.Equal(t, a.Stores(), b.Stores())
	assert.Equal(t, a.Depts(), b.Depts())
}

func TestAggregateHonoursCancelledContext(t *testing.T) {
	cs := mustStore(t, rec(1, 1, "2012-01-06", 100, false, 1, "Jan"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cs.Aggregate(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFromRecordsEmpty(t *testing.T) {
	_, err := FromRecords(nil)
	require.ErrorIs(t, err, ErrEmptyDataset)
}
