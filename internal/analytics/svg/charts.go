package svg

import (
	"html/template"
	"math"

	"github.com/stocksavvy/stocksavvy/internal/analytics"
)

// MonthlyChart compares monthly sales against purchases. Months missing from
// one series are plotted as zero.
func MonthlyChart(summary analytics.Summary) (template.HTML, error) {
	labels := make([]string, 0, len(summary.MonthlySales)+len(summary.MonthlyPurchases))
	seen := make(map[string]bool)
	sales := make(map[string]float64)
	purchases := make(map[string]float64)
	for _, m := range summary.MonthlySales {
		sales[m.Month] = m.Amount.InexactFloat64()
	}
	for _, m := range summary.MonthlyPurchases {
		purchases[m.Month] = m.Amount.InexactFloat64()
	}
	for _, series := range [][]analytics.MonthlyAmount{summary.MonthlyPurchases, summary.MonthlySales} {
		for _, m := range series {
			if !seen[m.Month] {
				seen[m.Month] = true
				labels = append(labels, m.Month)
			}
		}
	}
	if len(labels) == 0 {
		return emptyChart("Monthly sales and purchases"), nil
	}
	analytics.SortMonths(labels)

	salesSeries := Series{Name: "Sales", Color: "#16a34a", Values: make([]float64, len(labels))}
	purchaseSeries := Series{Name: "Purchases", Color: "#2563eb", Values: make([]float64, len(labels))}
	for i, label := range labels {
		salesSeries.Values[i] = sales[label]
		purchaseSeries.Values[i] = purchases[label]
	}
	return Bars(labels, []Series{salesSeries, purchaseSeries}, BarOpts{
		Title:       "Monthly sales and purchases",
		Description: "Sales revenue against purchase cost per month",
		TickFormat:  CurrencyTick,
	})
}

// PriceChart plots the unit price of every recorded purchase in date order.
func PriceChart(summary analytics.Summary) (template.HTML, error) {
	if len(summary.PurchaseHistory) == 0 {
		return emptyChart("Purchase price history"), nil
	}
	n := len(summary.PurchaseHistory)
	prices := Series{Values: make([]float64, n)}
	labels := make([]string, n)
	// PurchaseHistory is newest first.
	for i, rec := range summary.PurchaseHistory {
		prices.Values[n-1-i] = rec.Price.InexactFloat64()
		labels[n-1-i] = rec.Date.UTC().Format("Jan 2")
	}
	return Line(labels, prices, LineOpts{
		Title:       "Purchase price history",
		Description: "Unit price paid per purchase",
		ShowDots:    true,
		TickFormat:  CurrencyTick,
	})
}

// CurrencyTick formats an axis value in dollars.
func CurrencyTick(v float64) string {
	if v < 0 {
		return "-$" + formatTick(math.Abs(v))
	}
	return "$" + formatTick(v)
}

// emptyChart is the placeholder drawn before any product has been recorded.
func emptyChart(title string) template.HTML {
	c, _ := newCanvas(Frame{})
	c.open("empty", title, "No data yet")
	c.text(float64(c.f.Width)/2, float64(c.f.Height)/2, "middle", "No data yet")
	return c.html()
}
