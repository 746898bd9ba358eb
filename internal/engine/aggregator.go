package engine

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"salesboard/internal/models"
)

// Aggregate derives the four summary tables concurrently and returns the
// immutable dashboard state built on top of them.
func (cs *ColumnStore) Aggregate(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{store: cs}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.monthly = cs.Monthly()
		return ctx.Err()
	})
	g.Go(func() error {
		d.weekly = cs.Weekly()
		return ctx.Err()
	})
	g.Go(func() error {
		d.stores = cs.ByStore()
		return ctx.Err()
	})
	g.Go(func() error {
		d.depts = cs.ByDept()
		return ctx.Err()
	})
	g.Go(func() error {
		d.storeCounts = cs.storeCounts()
		return ctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("engine: aggregate: %w", err)
	}

	d.index()
	return d, nil
}

// Monthly sums sales per period. Holiday sales are left-joined by label and
// default to zero for periods without holiday rows.
func (cs *ColumnStore) Monthly() []models.MonthlySummary {
	totals := make(map[int32]decimal.Decimal, len(cs.PeriodDict))
	holidays := make(map[int32]decimal.Decimal)
	for i, s := range cs.Sales {
		p := cs.PeriodIDs[i]
		v := decimal.NewFromFloat(s)
		totals[p] = sum(totals, p).Add(v)
		if cs.Holidays[i] {
			holidays[p] = sum(holidays, p).Add(v)
		}
	}

	out := make([]models.MonthlySummary, 0, len(totals))
	for p, total := range totals {
		out = append(out, models.MonthlySummary{
			MonthIndex:   int(cs.PeriodMonth[p]),
			Month:        cs.PeriodDict[p],
			TotalSales:   round1(total),
			HolidaySales: round1(sum(holidays, p)),
		})
	}
	slices.SortFunc(out, func(a, b models.MonthlySummary) int {
		return comparePeriod(a.MonthIndex, a.Month, b.MonthIndex, b.Month)
	})
	return out
}

// Weekly sums sales per (period, date) and ranks the dates of each period.
func (cs *ColumnStore) Weekly() []models.WeeklySummary {
	type weekKey struct{ period, date int32 }
	sums := make(map[weekKey]decimal.Decimal)
	for i, s := range cs.Sales {
		k := weekKey{cs.PeriodIDs[i], cs.Dates[i]}
		sums[k] = sum(sums, k).Add(decimal.NewFromFloat(s))
	}

	type row struct {
		key weekKey
		val decimal.Decimal
	}
	rows := make([]row, 0, len(sums))
	for k, v := range sums {
		rows = append(rows, row{k, v})
	}
	slices.SortFunc(rows, func(a, b row) int {
		if c := cs.comparePeriodIDs(a.key.period, b.key.period); c != 0 {
			return c
		}
		return cmp.Compare(a.key.date, b.key.date)
	})

	out := make([]models.WeeklySummary, len(rows))
	rank := 0
	for i, r := range rows {
		// dense rank of the date within its period
		switch {
		case i == 0 || r.key.period != rows[i-1].key.period:
			rank = 1
		case r.key.date != rows[i-1].key.date:
			rank++
		}
		out[i] = models.WeeklySummary{
			MonthIndex:  int(cs.PeriodMonth[r.key.period]),
			Month:       cs.PeriodDict[r.key.period],
			Date:        formatDateKey(r.key.date),
			WeeklySales: round1(r.val),
			WeekNumber:  rank,
		}
	}
	return out
}

// ByStore sums sales per (period, store).
func (cs *ColumnStore) ByStore() []models.StoreSummary {
	groups := cs.sumByEntity(cs.StoreIDs)
	out := make([]models.StoreSummary, len(groups))
	for i, g := range groups {
		out[i] = models.StoreSummary{
			MonthIndex: int(cs.PeriodMonth[g.key.period]),
			Month:      cs.PeriodDict[g.key.period],
			StoreID:    int(g.key.id),
			Store:      StoreLabel(int(g.key.id)),
			TotalSales: round1(g.val),
		}
	}
	return out
}

// ByDept sums sales per (period, department).
func (cs *ColumnStore) ByDept() []models.DeptSummary {
	groups := cs.sumByEntity(cs.DeptIDs)
	out := make([]models.DeptSummary, len(groups))
	for i, g := range groups {
		out[i] = models.DeptSummary{
			MonthIndex: int(cs.PeriodMonth[g.key.period]),
			Month:      cs.PeriodDict[g.key.period],
			DeptID:     int(g.key.id),
			Dept:       DeptLabel(int(g.key.id)),
			TotalSales: round1(g.val),
		}
	}
	return out
}

func StoreLabel(id int) string { return fmt.Sprintf("Store %d", id) }

func DeptLabel(id int) string { return fmt.Sprintf("Dept %d", id) }

type entityKey struct{ period, id int32 }

type entityGroup struct {
	key entityKey
	val decimal.Decimal
}

// sumByEntity groups sales by (period, ids[i]), sorted by period then id.
func (cs *ColumnStore) sumByEntity(ids []int32) []entityGroup {
	sums := make(map[entityKey]decimal.Decimal)
	for i, s := range cs.Sales {
		k := entityKey{cs.PeriodIDs[i], ids[i]}
		sums[k] = sum(sums, k).Add(decimal.NewFromFloat(s))
	}

	out := make([]entityGroup, 0, len(sums))
	for k, v := range sums {
		out = append(out, entityGroup{k, v})
	}
	slices.SortFunc(out, func(a, b entityGroup) int {
		if c := cs.comparePeriodIDs(a.key.period, b.key.period); c != 0 {
			return c
		}
		return cmp.Compare(a.key.id, b.key.id)
	})
	return out
}

// storeCounts counts distinct stores per period label.
func (cs *ColumnStore) storeCounts() map[string]int {
	seen := make(map[entityKey]struct{})
	counts := make(map[string]int, len(cs.PeriodDict))
	for i, p := range cs.PeriodIDs {
		k := entityKey{p, cs.StoreIDs[i]}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		counts[cs.PeriodDict[p]]++
	}
	return counts
}

func (cs *ColumnStore) comparePeriodIDs(a, b int32) int {
	return comparePeriod(int(cs.PeriodMonth[a]), cs.PeriodDict[a], int(cs.PeriodMonth[b]), cs.PeriodDict[b])
}

// comparePeriod orders by (month_index, month_label), the group-by key order.
func comparePeriod(am int, al string, bm int, bl string) int {
	if c := cmp.Compare(am, bm); c != 0 {
		return c
	}
	return cmp.Compare(al, bl)
}

func sum[K comparable](m map[K]decimal.Decimal, k K) decimal.Decimal {
	if v, ok := m[k]; ok {
		return v
	}
	return decimal.Zero
}

// round1 rounds half to even at one decimal place.
func round1(d decimal.Decimal) float64 {
	return d.RoundBank(1).InexactFloat64()
}
