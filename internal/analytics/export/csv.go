// Package export renders analytics aggregates for download.
package export

import (
	"encoding/csv"
	"io"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/stocksavvy/stocksavvy/internal/analytics"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatCurrency renders an amount as US dollars, e.g. "$1,234.50".
func FormatCurrency(amount decimal.Decimal) string {
	f := amount.Round(2).InexactFloat64()
	if f < 0 {
		return "-$" + printer.Sprintf("%.2f", -f)
	}
	return "$" + printer.Sprintf("%.2f", f)
}

// WriteSummaryCSV serialises the analytics summary: headline metrics, then
// the monthly series, then the purchase price history.
func WriteSummaryCSV(w io.Writer, summary analytics.Summary) error {
	writer := csv.NewWriter(w)

	margin := "N/A"
	if summary.ProfitMargin != nil {
		margin = summary.ProfitMargin.StringFixed(1) + "%"
	}
	records := [][]string{
		{"Metric", "Value"},
		{"Total Value", FormatCurrency(summary.TotalValue)},
		{"Current Stock Value", FormatCurrency(summary.CurrentStockValue)},
		{"Total Purchase Cost", FormatCurrency(summary.TotalPurchaseCost)},
		{"Total Sales", FormatCurrency(summary.TotalSales)},
		{"Profit Margin", margin},
		{"Units Purchased", printer.Sprintf("%d", summary.TotalPurchased)},
		{"Units Sold", printer.Sprintf("%d", summary.TotalSold)},
		{"Average Purchase Price", FormatCurrency(summary.AveragePurchasePrice)},
		{},
		{"Month", "Sales", "Purchases"},
	}
	records = append(records, mergeMonths(summary.MonthlySales, summary.MonthlyPurchases)...)
	records = append(records, []string{}, []string{"Date", "Product", "Change", "Price"})
	for _, rec := range summary.PurchaseHistory {
		records = append(records, []string{
			rec.Date.UTC().Format("2006-01-02 15:04"),
			rec.ProductName,
			rec.Change,
			FormatCurrency(rec.Price),
		})
	}

	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// mergeMonths joins both series on the month label in calendar order.
func mergeMonths(sales, purchases []analytics.MonthlyAmount) [][]string {
	totals := make(map[string][2]decimal.Decimal)
	var months []string
	add := func(series []analytics.MonthlyAmount, col int) {
		for _, m := range series {
			row, ok := totals[m.Month]
			if !ok {
				months = append(months, m.Month)
			}
			row[col] = row[col].Add(m.Amount)
			totals[m.Month] = row
		}
	}
	add(sales, 0)
	add(purchases, 1)
	analytics.SortMonths(months)

	rows := make([][]string, 0, len(months))
	for _, month := range months {
		row := totals[month]
		rows = append(rows, []string{month, FormatCurrency(row[0]), FormatCurrency(row[1])})
	}
	return rows
}
