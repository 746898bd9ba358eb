package models

import "time"

// SalesRecord is one row of the raw weekly sales table.
type SalesRecord struct {
	StoreID     int       `json:"store"`
	DeptID      int       `json:"dept"`
	Date        time.Time `json:"date"`
	WeeklySales float64   `json:"weekly_sales"`
	IsHoliday   bool      `json:"is_holiday"`
	MonthIndex  int       `json:"month_index"`
	MonthLabel  string    `json:"month"`
}

type MonthlySummary struct {
	MonthIndex   int     `json:"month_index"`
	Month        string  `json:"month"`
	TotalSales   float64 `json:"total_sales"`
	HolidaySales float64 `json:"holiday_sales"`
}

type WeeklySummary struct {
	MonthIndex  int     `json:"month_index"`
	Month       string  `json:"month"`
	Date        string  `json:"date"`
	WeeklySales float64 `json:"weekly_sales"`
	WeekNumber  int     `json:"week_number"`
}

type StoreSummary struct {
	MonthIndex int     `json:"month_index"`
	Month      string  `json:"month"`
	StoreID    int     `json:"store_id"`
	Store      string  `json:"store"`
	TotalSales float64 `json:"total_sales"`
}

type DeptSummary struct {
	MonthIndex int     `json:"month_index"`
	Month      string  `json:"month"`
	DeptID     int     `json:"dept_id"`
	Dept       string  `json:"dept"`
	TotalSales float64 `json:"total_sales"`
}

// DeptDiff pairs a top department of the current period with the same
// department in the reference period. ReferenceSales and Difference stay nil
// when the department has no reference row.
type DeptDiff struct {
	DeptID         int      `json:"dept_id"`
	Dept           string   `json:"dept"`
	CurrentSales   float64  `json:"current_sales"`
	ReferenceSales *float64 `json:"reference_sales"`
	Difference     *float64 `json:"difference"`
}

// Indicator is a single value with its delta against the reference period.
type Indicator struct {
	Current      float64 `json:"current"`
	Reference    float64 `json:"reference"`
	Delta        float64 `json:"delta"`
	Display      string  `json:"display,omitempty"`
	DeltaDisplay string  `json:"delta_display,omitempty"`
}

type CountIndicator struct {
	Current      int    `json:"current"`
	Reference    int    `json:"reference"`
	Delta        int    `json:"delta"`
	DeltaDisplay string `json:"delta_display,omitempty"`
}

type WeeklyComparison struct {
	Current   []WeeklySummary `json:"current"`
	Reference []WeeklySummary `json:"reference"`
}

type DeptChart struct {
	Header string     `json:"header"`
	Rows   []DeptDiff `json:"rows"`
	Range  [2]float64 `json:"range"`
}

type StoreChart struct {
	Title string         `json:"title"`
	Rows  []StoreSummary `json:"rows"`
	Range [2]float64     `json:"range"`
}

// Comparison carries every panel of the dashboard for one (current, reference) pair.
type Comparison struct {
	Current         string           `json:"current"`
	Reference       string           `json:"reference"`
	TotalSales      Indicator        `json:"total_sales"`
	HolidaySales    Indicator        `json:"holiday_sales"`
	StoreCount      CountIndicator   `json:"store_count"`
	Weekly          WeeklyComparison `json:"weekly"`
	Departments     DeptChart        `json:"departments"`
	StoresCurrent   StoreChart       `json:"stores_current"`
	StoresReference StoreChart       `json:"stores_reference"`
}

type PeriodList struct {
	Periods        []string `json:"periods"`
	DefaultCurrent string   `json:"default_current"`
}

type ReferenceOptions struct {
	Current          string   `json:"current"`
	Options          []string `json:"options"`
	DefaultReference string   `json:"default_reference"`
}

type Status struct {
	Ready       bool      `json:"ready"`
	Rows        int       `json:"rows,omitempty"`
	Periods     int       `json:"periods,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	LoadedAt    time.Time `json:"loaded_at,omitempty"`
}
