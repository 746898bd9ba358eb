package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"salesboard/internal/engine"
)

var schema = []string{
	`DROP TABLE IF EXISTS monthly_sales`,
	`DROP TABLE IF EXISTS weekly_sales`,
	`DROP TABLE IF EXISTS store_sales`,
	`DROP TABLE IF EXISTS dept_sales`,
	`DROP TABLE IF EXISTS dataset`,
	`CREATE TABLE monthly_sales (
		month_index INTEGER NOT NULL,
		month TEXT PRIMARY KEY,
		total_sales REAL NOT NULL,
		holiday_sales REAL NOT NULL
	)`,
	`CREATE TABLE weekly_sales (
		month_index INTEGER NOT NULL,
		month TEXT NOT NULL,
		date TEXT NOT NULL,
		week_number INTEGER NOT NULL,
		weekly_sales REAL NOT NULL,
		PRIMARY KEY (month, date)
	)`,
	`CREATE TABLE store_sales (
		month_index INTEGER NOT NULL,
		month TEXT NOT NULL,
		store_id INTEGER NOT NULL,
		store TEXT NOT NULL,
		total_sales REAL NOT NULL,
		PRIMARY KEY (month, store_id)
	)`,
	`CREATE TABLE dept_sales (
		month_index INTEGER NOT NULL,
		month TEXT NOT NULL,
		dept_id INTEGER NOT NULL,
		dept TEXT NOT NULL,
		total_sales REAL NOT NULL,
		PRIMARY KEY (month, dept_id)
	)`,
	`CREATE TABLE dataset (
		fingerprint TEXT NOT NULL,
		rows INTEGER NOT NULL
	)`,
}

// WriteSQLite replaces the summary tables in the database at path with the
// dashboard's tables, in a single transaction.
func WriteSQLite(ctx context.Context, path string, d *engine.Dashboard) (retErr error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("export: create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("export: open sqlite: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && retErr == nil {
			retErr = cerr
		}
	}()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("export: begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("export: schema: %w", err)
		}
	}

	ins := func(query string, rows [][]any) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r...); err != nil {
				return err
			}
		}
		return nil
	}

	var monthly, weekly, stores, depts [][]any
	for _, m := range d.Monthly() {
		monthly = append(monthly, []any{m.MonthIndex, m.Month, m.TotalSales, m.HolidaySales})
	}
	for _, r := range d.Weekly() {
		weekly = append(weekly, []any{r.MonthIndex, r.Month, r.Date, r.WeekNumber, r.WeeklySales})
	}
	for _, r := range d.Stores() {
		stores = append(stores, []any{r.MonthIndex, r.Month, r.StoreID, r.Store, r.TotalSales})
	}
	for _, r := range d.Depts() {
		depts = append(depts, []any{r.MonthIndex, r.Month, r.DeptID, r.Dept, r.TotalSales})
	}
	store := d.Store()

	inserts := []struct {
		table string
		query string
		rows  [][]any
	}{
		{"monthly_sales", `INSERT INTO monthly_sales VALUES (?, ?, ?, ?)`, monthly},
		{"weekly_sales", `INSERT INTO weekly_sales VALUES (?, ?, ?, ?, ?)`, weekly},
		{"store_sales", `INSERT INTO store_sales VALUES (?, ?, ?, ?, ?)`, stores},
		{"dept_sales", `INSERT INTO dept_sales VALUES (?, ?, ?, ?, ?)`, depts},
		{"dataset", `INSERT INTO dataset VALUES (?, ?)`, [][]any{{fmt.Sprintf("%016x", store.Fingerprint), store.Len()}}},
	}
	for _, in := range inserts {
		if err := ins(in.query, in.rows); err != nil {
			return fmt.Errorf("export: insert %s: %w", in.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("export: commit: %w", err)
	}
	return nil
}
