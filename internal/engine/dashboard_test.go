package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesboard/internal/models"
)

// comparisonFixture: Jan has departments 1..12 (sales dept*10) across two
// stores; Feb has departments 1..10 (sales 5) in three stores.
func comparisonFixture(t *testing.T) *Dashboard {
	t.Helper()
	var records []models.SalesRecord
	for dept := 1; dept <= 12; dept++ {
		store := 1 + dept%2
		records = append(records, rec(store, dept, "2012-01-06", float64(dept*10), dept == 1, 1, "Jan"))
	}
	for dept := 1; dept <= 10; dept++ {
		store := 1 + dept%3
		records = append(records, rec(store, dept, "2012-02-03", 5, false, 2, "Feb"))
	}
	records = append(records, rec(4, 1, "2012-03-02", 1, false, 3, "Mar"))

	cs := mustStore(t, records...)
	d, err := cs.Aggregate(context.Background())
	require.NoError(t, err)
	return d
}

func TestTotalAndHolidaySales(t *testing.T) {
	d := comparisonFixture(t)

	cur, ref, err := d.TotalSales("Jan", "Feb")
	require.NoError(t, err)
	assert.Equal(t, 780.0, cur)
	assert.Equal(t, 50.0, ref)

	cur, ref, err = d.HolidaySales("Jan", "Feb")
	require.NoError(t, err)
	assert.Equal(t, 10.0, cur)
	assert.Equal(t, 0.0, ref)
}

func TestLookupMissAndIncompleteSelection(t *testing.T) {
	d := comparisonFixture(t)

	_, _, err := d.TotalSales("Jan", "Dec")
	require.ErrorIs(t, err, ErrUnknownPeriod)
	assert.Contains(t, err.Error(), `"Dec"`)

	_, _, err = d.HolidaySales("", "Feb")
	require.ErrorIs(t, err, ErrIncompleteSelection)

	_, _, err = d.StoreCount("Jan", "")
	require.ErrorIs(t, err, ErrIncompleteSelection)

	_, _, err = d.WeeklySeries("Nope", "Feb")
	require.ErrorIs(t, err, ErrUnknownPeriod)

	_, err = d.TopDepartments("Jan", "Nope", 10)
	require.ErrorIs(t, err, ErrUnknownPeriod)

	_, err = d.TopStores("", 10)
	require.ErrorIs(t, err, ErrIncompleteSelection)

	_, err = d.Compare("Jan", "Nope", 10)
	require.ErrorIs(t, err, ErrUnknownPeriod)
}

func TestStoreCount(t *testing.T) {
	d := comparisonFixture(t)

	cur, ref, err := d.StoreCount("Jan", "Feb")
	require.NoError(t, err)
	assert.Equal(t, 2, cur)
	assert.Equal(t, 3, ref)

	cur, ref, err = d.StoreCount("Mar", "Jan")
	require.NoError(t, err)
	assert.Equal(t, 1, cur)
	assert.Equal(t, 2, ref)
}

func TestWeeklySeries(t *testing.T) {
	cs := mustStore(t,
		rec(1, 1, "2012-01-13", 2, false, 1, "Jan"),
		rec(1, 1, "2012-01-06", 1, false, 1, "Jan"),
		rec(1, 1, "2012-02-10", 4, false, 2, "Feb"),
		rec(1, 1, "2012-02-03", 3, false, 2, "Feb"),
		rec(1, 1, "2012-02-17", 5, false, 2, "Feb"),
	)
	d, err := cs.Aggregate(context.Background())
	require.NoError(t, err)

	cur, ref, err := d.WeeklySeries("Feb", "Jan")
	require.NoError(t, err)
	require.Len(t, cur, 3)
	require.Len(t, ref, 2)
	for i, w := range cur {
		assert.Equal(t, i+1, w.WeekNumber)
		assert.Equal(t, "Feb", w.Month)
	}
	assert.Equal(t, []float64{3, 4, 5}, []float64{cur[0].WeeklySales, cur[1].WeeklySales, cur[2].WeeklySales})
	assert.Equal(t, "2012-01-06", ref[0].Date)
}

func TestTopDepartments(t *testing.T) {
	d := comparisonFixture(t)

	diffs, err := d.TopDepartments("Jan", "Feb", 10)
	require.NoError(t, err)
	require.Len(t, diffs, 10)

	// ordered by current sales, not by difference
	for i, dd := range diffs {
		assert.Equal(t, 12-i, dd.DeptID)
		assert.Equal(t, fmt.Sprintf("Dept %d", 12-i), dd.Dept)
	}

	// depts 11 and 12 have no Feb rows
	assert.Nil(t, diffs[0].ReferenceSales)
	assert.Nil(t, diffs[0].Difference)
	assert.Nil(t, diffs[1].Difference)

	require.NotNil(t, diffs[2].Difference)
	assert.Equal(t, 100.0, diffs[2].CurrentSales)
	assert.Equal(t, 5.0, *diffs[2].ReferenceSales)
	assert.Equal(t, 95.0, *diffs[2].Difference)
}

func TestTopDepartmentsJoinsAgainstFullReference(t *testing.T) {
	// Feb's dept 1 ranks last among 12 reference depts but must still match.
	var records []models.SalesRecord
	records = append(records, rec(1, 1, "2012-01-06", 3.3, false, 1, "Jan"))
	for dept := 1; dept <= 12; dept++ {
		records = append(records, rec(1, dept, "2012-02-03", float64(dept), false, 2, "Feb"))
	}
	d, err := mustStore(t, records...).Aggregate(context.Background())
	require.NoError(t, err)

	diffs, err := d.TopDepartments("Jan", "Feb", 0)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	require.NotNil(t, diffs[0].Difference)
	assert.Equal(t, 2.3, *diffs[0].Difference)
}

func TestTopStores(t *testing.T) {
	var records []models.SalesRecord
	for store := 1; store <= 14; store++ {
		sales := float64(store)
		if store == 3 || store == 9 {
			sales = 20 // tie, keeps store order
		}
		records = append(records, rec(store, 1, "2012-01-06", sales, false, 1, "Jan"))
	}
	d, err := mustStore(t, records...).Aggregate(context.Background())
	require.NoError(t, err)

	top, err := d.TopStores("Jan", 10)
	require.NoError(t, err)
	require.Len(t, top, 10)
	assert.Equal(t, "Store 3", top[0].Store)
	assert.Equal(t, "Store 9", top[1].Store)
	assert.Equal(t, "Store 14", top[2].Store)
	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].TotalSales, top[i].TotalSales)
	}

	top, err = d.TopStores("Jan", 3)
	require.NoError(t, err)
	assert.Len(t, top, 3)
}

func TestPeriodOptions(t *testing.T) {
	d := comparisonFixture(t)

	assert.Equal(t, []string{"Jan", "Feb", "Mar"}, d.Periods())
	assert.Equal(t, "Jan", d.DefaultCurrent())

	for _, current := range d.Periods() {
		opts, err := d.PeriodOptions(current)
		require.NoError(t, err)
		assert.Len(t, opts, 2)
		assert.NotContains(t, opts, current)

		ref, err := d.DefaultReference(current)
		require.NoError(t, err)
		assert.NotEqual(t, current, ref)
		assert.Equal(t, opts[0], ref)
	}

	ref, err := d.DefaultReference("Feb")
	require.NoError(t, err)
	assert.Equal(t, "Jan", ref)

	_, err = d.PeriodOptions("Dec")
	require.ErrorIs(t, err, ErrUnknownPeriod)
	_, err = d.PeriodOptions("")
	require.ErrorIs(t, err, ErrIncompleteSelection)
}

func TestDefaultReferenceSinglePeriod(t *testing.T) {
	d, err := mustStore(t, rec(1, 1, "2012-01-06", 1, false, 1, "Jan")).Aggregate(context.Background())
	require.NoError(t, err)

	_, err = d.DefaultReference("Jan")
	require.ErrorIs(t, err, ErrIncompleteSelection)
}

func TestCompare(t *testing.T) {
	d := comparisonFixture(t)

	cmp, err := d.Compare("Jan", "Feb", 10)
	require.NoError(t, err)

	assert.Equal(t, "Sales Difference Between Top Departments (Jan-Feb)", cmp.Departments.Header)
	assert.Equal(t, models.Indicator{Current: 780, Reference: 50, Delta: 730}, cmp.TotalSales)
	assert.Equal(t, models.Indicator{Current: 10, Reference: 0, Delta: 10}, cmp.HolidaySales)
	assert.Equal(t, models.CountIndicator{Current: 2, Reference: 3, Delta: -1}, cmp.StoreCount)
	assert.Len(t, cmp.Weekly.Current, 1)
	assert.Len(t, cmp.Departments.Rows, 10)
	assert.Equal(t, "Jan", cmp.StoresCurrent.Title)
	assert.Equal(t, "Feb", cmp.StoresReference.Title)
	assert.Equal(t, "Store 1", cmp.StoresCurrent.Rows[0].Store)
}

func TestCompareIsSafeForConcurrentUse(t *testing.T) {
	d := comparisonFixture(t)
	want, err := d.Compare("Feb", "Mar", 5)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := d.Compare("Feb", "Mar", 5)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}
