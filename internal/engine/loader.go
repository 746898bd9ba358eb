package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/csv"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"
)

// Source column names.
const (
	ColStore      = "Store"
	ColDept       = "Dept"
	ColDate       = "Date"
	ColSales      = "Weekly_Sales"
	ColHoliday    = "IsHoliday"
	ColMonthIndex = "month"
	ColMonthLabel = "Month"
)

var requiredColumns = []string{ColStore, ColDept, ColDate, ColSales, ColHoliday, ColMonthIndex, ColMonthLabel}

// Date and IsHoliday stay strings so that their parsing errors carry the row.
var columnTypes = map[string]arrow.DataType{
	ColStore:      arrow.PrimitiveTypes.Int64,
	ColDept:       arrow.PrimitiveTypes.Int64,
	ColDate:       arrow.BinaryTypes.String,
	ColSales:      arrow.PrimitiveTypes.Float64,
	ColHoliday:    arrow.BinaryTypes.String,
	ColMonthIndex: arrow.PrimitiveTypes.Int64,
	ColMonthLabel: arrow.BinaryTypes.String,
}

const chunkRows = 1 << 14

// LoadColumnar reads the whole source and decodes it. Any malformed row
// aborts the load.
func LoadColumnar(ctx context.Context, src Source) (*ColumnStore, error) {
	start := time.Now()
	logger := zerolog.Ctx(ctx)
	logger.Info().Str("source", src.String()).Msg("loading sales data")

	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: open %s: %w", src, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("engine: read %s: %w", src, err)
	}

	store, err := ReadColumnar(content)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int("rows", store.Len()).
		Int("periods", len(store.PeriodDict)).
		Str("fingerprint", strconv.FormatUint(store.Fingerprint, 16)).
		Dur("elapsed", time.Since(start)).
		Msg("load complete")
	return store, nil
}

// ReadColumnar decodes an in-memory CSV payload.
func ReadColumnar(content []byte) (*ColumnStore, error) {
	body := bytes.TrimPrefix(content, utf8BOM)
	if err := checkHeader(body); err != nil {
		return nil, err
	}
	// arrow's inferring reader cannot build a record from a header alone
	if !hasDataRows(body) {
		return nil, ErrEmptyDataset
	}

	r := csv.NewInferringReader(bytes.NewReader(body),
		csv.WithAllocator(memory.NewGoAllocator()),
		csv.WithHeader(true),
		csv.WithChunk(chunkRows),
		csv.WithIncludeColumns(requiredColumns),
		csv.WithColumnTypes(columnTypes),
	)
	defer r.Release()

	b := newStoreBuilder(bytes.Count(body, []byte{'\n'}))
	row := 0
	for r.Next() {
		rec := r.Record()
		cols, err := bindColumns(rec)
		if err != nil {
			return nil, err
		}
		n := int(rec.NumRows())
		for i := 0; i < n; i++ {
			row++
			raw, err := cols.row(row, i)
			if err != nil {
				return nil, err
			}
			if err := b.append(row, raw); err != nil {
				return nil, err
			}
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("engine: decode csv after row %d: %w", row, err)
	}

	store, err := b.finish()
	if err != nil {
		return nil, err
	}
	store.Fingerprint = xxh3.Hash(content)
	return store, nil
}

var utf8BOM = []byte("\xef\xbb\xbf")

// hasDataRows reports whether any non-blank line follows the header.
func hasDataRows(content []byte) bool {
	idx := bytes.IndexByte(content, '\n')
	if idx == -1 {
		return false
	}
	return len(bytes.TrimSpace(content[idx+1:])) > 0
}

// checkHeader fails with the missing column name before arrow sees the data.
func checkHeader(content []byte) error {
	line := content
	if idx := bytes.IndexByte(content, '\n'); idx != -1 {
		line = content[:idx]
	}
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(bytes.TrimSpace(line)) == 0 {
		return ErrEmptyDataset
	}

	seen := make(map[string]bool)
	for _, f := range strings.Split(string(line), ",") {
		seen[strings.Trim(strings.TrimSpace(f), `"`)] = true
	}
	for _, c := range requiredColumns {
		if !seen[c] {
			return fmt.Errorf("engine: missing column %q", c)
		}
	}
	return nil
}

type recordColumns struct {
	store, dept, month   *array.Int64
	sales                *array.Float64
	date, holiday, label *array.String

	all []namedArray
}

type namedArray struct {
	name string
	arr  arrow.Array
}

func bindColumns(rec arrow.Record) (*recordColumns, error) {
	schema := rec.Schema()
	col := func(name string) (arrow.Array, error) {
		idx := schema.FieldIndices(name)
		if len(idx) == 0 {
			return nil, fmt.Errorf("engine: missing column %q", name)
		}
		return rec.Column(idx[0]), nil
	}

	var (
		out  recordColumns
		errs []string
	)
	ints := map[string]**array.Int64{ColStore: &out.store, ColDept: &out.dept, ColMonthIndex: &out.month}
	for name, dst := range ints {
		a, err := col(name)
		if err != nil {
			return nil, err
		}
		v, ok := a.(*array.Int64)
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: want int64, got %s", name, a.DataType()))
			continue
		}
		*dst = v
	}
	strs := map[string]**array.String{ColDate: &out.date, ColHoliday: &out.holiday, ColMonthLabel: &out.label}
	for name, dst := range strs {
		a, err := col(name)
		if err != nil {
			return nil, err
		}
		v, ok := a.(*array.String)
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: want string, got %s", name, a.DataType()))
			continue
		}
		*dst = v
	}
	a, err := col(ColSales)
	if err != nil {
		return nil, err
	}
	if v, ok := a.(*array.Float64); ok {
		out.sales = v
	} else {
		errs = append(errs, fmt.Sprintf("%s: want float64, got %s", ColSales, a.DataType()))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("engine: unexpected column types: %s", strings.Join(errs, "; "))
	}
	out.all = []namedArray{
		{ColStore, out.store}, {ColDept, out.dept}, {ColDate, out.date}, {ColSales, out.sales},
		{ColHoliday, out.holiday}, {ColMonthIndex, out.month}, {ColMonthLabel, out.label},
	}
	return &out, nil
}

func (c *recordColumns) row(row, i int) (rawRow, error) {
	for _, n := range c.all {
		if n.arr.IsNull(i) {
			return rawRow{}, &RowError{Row: row, Column: n.name, Err: fmt.Errorf("missing value")}
		}
	}

	date, err := time.Parse(DateLayout, c.date.Value(i))
	if err != nil {
		return rawRow{}, &RowError{Row: row, Column: ColDate, Err: err}
	}
	holiday, err := strconv.ParseBool(strings.TrimSpace(c.holiday.Value(i)))
	if err != nil {
		return rawRow{}, &RowError{Row: row, Column: ColHoliday, Err: err}
	}

	return rawRow{
		store:   c.store.Value(i),
		dept:    c.dept.Value(i),
		date:    dateKey(date),
		sales:   c.sales.Value(i),
		holiday: holiday,
		month:   c.month.Value(i),
		label:   c.label.Value(i),
	}, nil
}
