package api

import (
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"salesboard/internal/models"
)

// Sales figures are already expressed in millions.
var printer = message.NewPrinter(language.English)

func money(v float64) string {
	return printer.Sprintf("$%.2fM", v)
}

// signedMoney renders a delta as "+$1.25M" or "-$0.40M"; deltas that round to
// zero render unsigned.
func signedMoney(v float64) string {
	cents := math.Round(v * 100)
	switch {
	case cents > 0:
		return "+" + money(cents/100)
	case cents < 0:
		return "-" + money(-cents/100)
	}
	return money(0)
}

func signedCount(n int) string {
	if n > 0 {
		return printer.Sprintf("+%d", n)
	}
	return printer.Sprintf("%d", n)
}

func withDisplay(ind models.Indicator) models.Indicator {
	ind.Display = money(ind.Current)
	ind.DeltaDisplay = signedMoney(ind.Delta)
	return ind
}

func withCountDisplay(ind models.CountIndicator) models.CountIndicator {
	ind.DeltaDisplay = signedCount(ind.Delta)
	return ind
}

const (
	deptPadding  = 3
	storePadding = 2.75
)

// deptRange pads the smallest and largest known difference. Rows without a
// reference counterpart do not widen the axis.
func deptRange(rows []models.DeptDiff) [2]float64 {
	var lo, hi *float64
	for _, r := range rows {
		if r.Difference == nil {
			continue
		}
		if lo == nil || *r.Difference < *lo {
			lo = r.Difference
		}
		if hi == nil || *r.Difference > *hi {
			hi = r.Difference
		}
	}
	if lo == nil {
		return [2]float64{-deptPadding, deptPadding}
	}
	pad := decimal.NewFromInt(deptPadding)
	return [2]float64{
		decimal.NewFromFloat(*lo).Sub(pad).InexactFloat64(),
		decimal.NewFromFloat(*hi).Add(pad).InexactFloat64(),
	}
}

// storeRange starts at zero and pads the largest store total.
func storeRange(rows []models.StoreSummary) [2]float64 {
	top := 0.0
	for _, r := range rows {
		top = max(top, r.TotalSales)
	}
	return [2]float64{0, decimal.NewFromFloat(top).Add(decimal.NewFromFloat(storePadding)).InexactFloat64()}
}

// present fills the display strings and axis ranges of a comparison.
func present(cmp *models.Comparison) {
	cmp.TotalSales = withDisplay(cmp.TotalSales)
	cmp.HolidaySales = withDisplay(cmp.HolidaySales)
	cmp.StoreCount = withCountDisplay(cmp.StoreCount)
	cmp.Departments.Range = deptRange(cmp.Departments.Rows)
	cmp.StoresCurrent.Range = storeRange(cmp.StoresCurrent.Rows)
	cmp.StoresReference.Range = storeRange(cmp.StoresReference.Rows)
}
