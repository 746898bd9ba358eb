package engine

import (
	"fmt"
	"math"
	"time"

	"salesboard/internal/models"
)

// DateLayout is the only accepted format of the Date column.
const DateLayout = "2006-01-02"

// ColumnStore holds the raw sales table in Struct-of-Arrays format.
// It is never mutated after LoadColumnar or FromRecords returns.
type ColumnStore struct {
	// Data Columns (Flat Arrays)
	Sales    []float64
	Dates    []int32 // YYYYMMDD
	Holidays []bool
	StoreIDs []int32
	DeptIDs  []int32
	MonthIdx []int32

	// Dictionary Encoded period labels (0..N), IDs follow first appearance
	PeriodIDs   []int32
	PeriodDict  []string
	PeriodMonth []int32 // month index bound to each PeriodDict entry

	Fingerprint uint64
}

// Len reports the number of raw rows.
func (cs *ColumnStore) Len() int { return len(cs.Sales) }

// Record materializes row i.
func (cs *ColumnStore) Record(i int) models.SalesRecord {
	return models.SalesRecord{
		StoreID:     int(cs.StoreIDs[i]),
		DeptID:      int(cs.DeptIDs[i]),
		Date:        dateFromKey(cs.Dates[i]),
		WeeklySales: cs.Sales[i],
		IsHoliday:   cs.Holidays[i],
		MonthIndex:  int(cs.MonthIdx[i]),
		MonthLabel:  cs.PeriodDict[cs.PeriodIDs[i]],
	}
}

// FromRecords builds a store from in-memory rows, applying the same
// validation as the CSV loader.
func FromRecords(records []models.SalesRecord) (*ColumnStore, error) {
	b := newStoreBuilder(len(records))
	for i, r := range records {
		row := i + 1
		if err := b.append(row, rawRow{
			store:   int64(r.StoreID),
			dept:    int64(r.DeptID),
			date:    dateKey(r.Date),
			sales:   r.WeeklySales,
			holiday: r.IsHoliday,
			month:   int64(r.MonthIndex),
			label:   r.MonthLabel,
		}); err != nil {
			return nil, err
		}
	}
	return b.finish()
}

type rawRow struct {
	store, dept, month int64
	date               int32
	sales              float64
	holiday            bool
	label              string
}

// storeBuilder appends validated rows and keeps the label dictionary.
type storeBuilder struct {
	cs       *ColumnStore
	labelIDs map[string]int32
	labelIdx map[string]int64
	idxLabel map[int64]string
}

func newStoreBuilder(capacity int) *storeBuilder {
	return &storeBuilder{
		cs: &ColumnStore{
			Sales:    make([]float64, 0, capacity),
			Dates:    make([]int32, 0, capacity),
			Holidays: make([]bool, 0, capacity),
			StoreIDs: make([]int32, 0, capacity),
			DeptIDs:  make([]int32, 0, capacity),
			MonthIdx: make([]int32, 0, capacity),

			PeriodIDs: make([]int32, 0, capacity),
		},
		labelIDs: make(map[string]int32),
		labelIdx: make(map[string]int64),
		idxLabel: make(map[int64]string),
	}
}

func (b *storeBuilder) append(row int, r rawRow) error {
	switch {
	case r.store <= 0:
		return &RowError{Row: row, Column: ColStore, Err: fmt.Errorf("store id must be positive, got %d", r.store)}
	case r.store > math.MaxInt32:
		return &RowError{Row: row, Column: ColStore, Err: fmt.Errorf("store id %d out of range", r.store)}
	case r.dept <= 0:
		return &RowError{Row: row, Column: ColDept, Err: fmt.Errorf("dept id must be positive, got %d", r.dept)}
	case r.dept > math.MaxInt32:
		return &RowError{Row: row, Column: ColDept, Err: fmt.Errorf("dept id %d out of range", r.dept)}
	case r.month < 1 || r.month > 12:
		return &RowError{Row: row, Column: ColMonthIndex, Err: fmt.Errorf("month index must be within 1..12, got %d", r.month)}
	case r.label == "":
		return &RowError{Row: row, Column: ColMonthLabel, Err: fmt.Errorf("empty period label")}
	}

	// month_label and month index alias each other one to one
	if idx, ok := b.labelIdx[r.label]; ok && idx != r.month {
		return &RowError{Row: row, Column: ColMonthLabel, Err: fmt.Errorf("label %q already bound to month %d, got %d", r.label, idx, r.month)}
	}
	if label, ok := b.idxLabel[r.month]; ok && label != r.label {
		return &RowError{Row: row, Column: ColMonthLabel, Err: fmt.Errorf("month %d already bound to label %q, got %q", r.month, label, r.label)}
	}

	id, ok := b.labelIDs[r.label]
	if !ok {
		id = int32(len(b.cs.PeriodDict))
		b.cs.PeriodDict = append(b.cs.PeriodDict, r.label)
		b.cs.PeriodMonth = append(b.cs.PeriodMonth, int32(r.month))
		b.labelIDs[r.label] = id
		b.labelIdx[r.label] = r.month
		b.idxLabel[r.month] = r.label
	}

	cs := b.cs
	cs.Sales = append(cs.Sales, r.sales)
	cs.Dates = append(cs.Dates, r.date)
	cs.Holidays = append(cs.Holidays, r.holiday)
	cs.StoreIDs = append(cs.StoreIDs, int32(r.store))
	cs.DeptIDs = append(cs.DeptIDs, int32(r.dept))
	cs.MonthIdx = append(cs.MonthIdx, int32(r.month))
	cs.PeriodIDs = append(cs.PeriodIDs, id)
	return nil
}

func (b *storeBuilder) finish() (*ColumnStore, error) {
	if b.cs.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	return b.cs, nil
}

// dateKey encodes a calendar date as YYYYMMDD so integer order is date order.
func dateKey(t time.Time) int32 {
	y, m, d := t.Date()
	return int32(y*10000 + int(m)*100 + d)
}

func dateFromKey(k int32) time.Time {
	return time.Date(int(k/10000), time.Month(k/100%100), int(k%100), 0, 0, 0, 0, time.UTC)
}

func formatDateKey(k int32) string {
	return fmt.Sprintf("%04d-%02d-%02d", k/10000, k/100%100, k%100)
}
