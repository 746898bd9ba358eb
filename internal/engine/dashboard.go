package engine

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"salesboard/internal/models"
)

// DefaultTopN is the ranking size used when callers pass n <= 0.
const DefaultTopN = 10

// Dashboard is the immutable state built once from a ColumnStore: the raw
// table, the four summary tables and lookup indexes keyed by period label.
// All methods are read-only and safe for concurrent use.
type Dashboard struct {
	store *ColumnStore

	monthly     []models.MonthlySummary
	weekly      []models.WeeklySummary
	stores      []models.StoreSummary
	depts       []models.DeptSummary
	storeCounts map[string]int

	monthlyBy map[string]models.MonthlySummary
	weeklyBy  map[string][]models.WeeklySummary
	storesBy  map[string][]models.StoreSummary
	deptsBy   map[string][]models.DeptSummary
}

func (d *Dashboard) index() {
	d.monthlyBy = make(map[string]models.MonthlySummary, len(d.monthly))
	for _, m := range d.monthly {
		d.monthlyBy[m.Month] = m
	}
	d.weeklyBy = groupByPeriod(d.weekly, func(w models.WeeklySummary) string { return w.Month })
	d.storesBy = groupByPeriod(d.stores, func(s models.StoreSummary) string { return s.Month })
	d.deptsBy = groupByPeriod(d.depts, func(s models.DeptSummary) string { return s.Month })
}

// groupByPeriod slices a table whose rows are contiguous per label.
func groupByPeriod[T any](rows []T, label func(T) string) map[string][]T {
	out := make(map[string][]T)
	start := 0
	for i := 1; i <= len(rows); i++ {
		if i < len(rows) && label(rows[i]) == label(rows[start]) {
			continue
		}
		out[label(rows[start])] = rows[start:i:i]
		start = i
	}
	return out
}

// Store exposes the raw table.
func (d *Dashboard) Store() *ColumnStore { return d.store }

func (d *Dashboard) Monthly() []models.MonthlySummary { return slices.Clone(d.monthly) }
func (d *Dashboard) Weekly() []models.WeeklySummary { return slices.Clone(d.weekly) }
func (d *Dashboard) Stores() []models.StoreSummary { return slices.Clone(d.stores) }
func (d *Dashboard) Depts() []models.DeptSummary { return slices.Clone(d.depts) }

// Periods lists the distinct labels in dataset order.
func (d *Dashboard) Periods() []string { return slices.Clone(d.store.PeriodDict) }

// DefaultCurrent is the first label in dataset order.
func (d *Dashboard) DefaultCurrent() string { return d.store.PeriodDict[0] }

// PeriodOptions lists every label except current, in dataset order.
func (d *Dashboard) PeriodOptions(current string) ([]string, error) {
	if current == "" {
		return nil, ErrIncompleteSelection
	}
	if _, ok := d.monthlyBy[current]; !ok {
		return nil, unknownPeriod(current)
	}
	opts := make([]string, 0, len(d.store.PeriodDict)-1)
	for _, p := range d.store.PeriodDict {
		if p != current {
			opts = append(opts, p)
		}
	}
	return opts, nil
}

// DefaultReference is the first option offered for current.
func (d *Dashboard) DefaultReference(current string) (string, error) {
	opts, err := d.PeriodOptions(current)
	if err != nil {
		return "", err
	}
	if len(opts) == 0 {
		return "", fmt.Errorf("%w: no reference period besides %q", ErrIncompleteSelection, current)
	}
	return opts[0], nil
}

// TotalSales returns the monthly totals of both periods.
func (d *Dashboard) TotalSales(current, reference string) (float64, float64, error) {
	cur, ref, err := d.monthlyPair(current, reference)
	if err != nil {
		return 0, 0, err
	}
	return cur.TotalSales, ref.TotalSales, nil
}

// HolidaySales returns the holiday-week totals of both periods.
func (d *Dashboard) HolidaySales(current, reference string) (float64, float64, error) {
	cur, ref, err := d.monthlyPair(current, reference)
	if err != nil {
		return 0, 0, err
	}
	return cur.HolidaySales, ref.HolidaySales, nil
}

// StoreCount returns the number of distinct stores with rows in each period.
func (d *Dashboard) StoreCount(current, reference string) (int, int, error) {
	if err := checkSelection(current, reference); err != nil {
		return 0, 0, err
	}
	cur, ok := d.storeCounts[current]
	if !ok {
		return 0, 0, unknownPeriod(current)
	}
	ref, ok := d.storeCounts[reference]
	if !ok {
		return 0, 0, unknownPeriod(reference)
	}
	return cur, ref, nil
}

// WeeklySeries returns both periods' weekly rows ordered by week number.
func (d *Dashboard) WeeklySeries(current, reference string) ([]models.WeeklySummary, []models.WeeklySummary, error) {
	if err := checkSelection(current, reference); err != nil {
		return nil, nil, err
	}
	cur, ok := d.weeklyBy[current]
	if !ok {
		return nil, nil, unknownPeriod(current)
	}
	ref, ok := d.weeklyBy[reference]
	if !ok {
		return nil, nil, unknownPeriod(reference)
	}
	return slices.Clone(cur), slices.Clone(ref), nil
}

// TopDepartments ranks the current period's departments by sales and pairs
// each with the full reference department list. Departments missing from the
// reference period keep a nil reference and a nil difference.
func (d *Dashboard) TopDepartments(current, reference string, n int) ([]models.DeptDiff, error) {
	if err := checkSelection(current, reference); err != nil {
		return nil, err
	}
	cur, ok := d.deptsBy[current]
	if !ok {
		return nil, unknownPeriod(current)
	}
	ref, ok := d.deptsBy[reference]
	if !ok {
		return nil, unknownPeriod(reference)
	}

	refSales := make(map[int]float64, len(ref))
	for _, r := range ref {
		refSales[r.DeptID] = r.TotalSales
	}

	top := topN(cur, n, func(r models.DeptSummary) float64 { return r.TotalSales })
	out := make([]models.DeptDiff, len(top))
	for i, r := range top {
		out[i] = models.DeptDiff{DeptID: r.DeptID, Dept: r.Dept, CurrentSales: r.TotalSales}
		if rs, ok := refSales[r.DeptID]; ok {
			diff := round1(decimal.NewFromFloat(r.TotalSales).Sub(decimal.NewFromFloat(rs)))
			out[i].ReferenceSales = &rs
			out[i].Difference = &diff
		}
	}
	return out, nil
}

// TopStores ranks one period's stores by sales.
func (d *Dashboard) TopStores(period string, n int) ([]models.StoreSummary, error) {
	if period == "" {
		return nil, ErrIncompleteSelection
	}
	rows, ok := d.storesBy[period]
	if !ok {
		return nil, unknownPeriod(period)
	}
	return topN(rows, n, func(r models.StoreSummary) float64 { return r.TotalSales }), nil
}

// DeptHeader titles the department comparison chart.
func DeptHeader(current, reference string) string {
	return fmt.Sprintf("Sales Difference Between Top Departments (%s-%s)", current, reference)
}

// Compare evaluates every panel against the same (current, reference) pair.
func (d *Dashboard) Compare(current, reference string, n int) (*models.Comparison, error) {
	curTotal, refTotal, err := d.TotalSales(current, reference)
	if err != nil {
		return nil, err
	}
	curHoliday, refHoliday, err := d.HolidaySales(current, reference)
	if err != nil {
		return nil, err
	}
	curStores, refStores, err := d.StoreCount(current, reference)
	if err != nil {
		return nil, err
	}
	curWeekly, refWeekly, err := d.WeeklySeries(current, reference)
	if err != nil {
		return nil, err
	}
	depts, err := d.TopDepartments(current, reference, n)
	if err != nil {
		return nil, err
	}
	curTop, err := d.TopStores(current, n)
	if err != nil {
		return nil, err
	}
	refTop, err := d.TopStores(reference, n)
	if err != nil {
		return nil, err
	}

	return &models.Comparison{
		Current:         current,
		Reference:       reference,
		TotalSales:      Indicator(curTotal, refTotal),
		HolidaySales:    Indicator(curHoliday, refHoliday),
		StoreCount:      models.CountIndicator{Current: curStores, Reference: refStores, Delta: curStores - refStores},
		Weekly:          models.WeeklyComparison{Current: curWeekly, Reference: refWeekly},
		Departments:     models.DeptChart{Header: DeptHeader(current, reference), Rows: depts},
		StoresCurrent:   models.StoreChart{Title: current, Rows: curTop},
		StoresReference: models.StoreChart{Title: reference, Rows: refTop},
	}, nil
}

func (d *Dashboard) monthlyPair(current, reference string) (models.MonthlySummary, models.MonthlySummary, error) {
	var zero models.MonthlySummary
	if err := checkSelection(current, reference); err != nil {
		return zero, zero, err
	}
	cur, ok := d.monthlyBy[current]
	if !ok {
		return zero, zero, unknownPeriod(current)
	}
	ref, ok := d.monthlyBy[reference]
	if !ok {
		return zero, zero, unknownPeriod(reference)
	}
	return cur, ref, nil
}

func checkSelection(current, reference string) error {
	if current == "" || reference == "" {
		return ErrIncompleteSelection
	}
	return nil
}

// Indicator pairs two values with their exact difference.
func Indicator(cur, ref float64) models.Indicator {
	delta := decimal.NewFromFloat(cur).Sub(decimal.NewFromFloat(ref)).InexactFloat64()
	return models.Indicator{Current: cur, Reference: ref, Delta: delta}
}

// topN keeps the n highest rows; ties keep their table order.
func topN[T any](rows []T, n int, sales func(T) float64) []T {
	if n <= 0 {
		n = DefaultTopN
	}
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b T) int { return cmp.Compare(sales(b), sales(a)) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Build loads the source and derives the dashboard state in one step.
func Build(ctx context.Context, src Source) (*Dashboard, error) {
	store, err := LoadColumnar(ctx, src)
	if err != nil {
		return nil, err
	}
	return store.Aggregate(ctx)
}
