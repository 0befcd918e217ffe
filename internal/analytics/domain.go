package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stocksavvy/stocksavvy/internal/inventory"
)

// DefaultLowStockThreshold flags in-stock products with this many units or fewer.
const DefaultLowStockThreshold = 2

// RecentProductsLimit caps the dashboard's recent purchases list.
const RecentProductsLimit = 5

// UnknownProduct labels history rows whose product no longer resolves.
const UnknownProduct = "Unknown Product"

// Dashboard summarises the product list for the landing page.
type Dashboard struct {
	TotalProducts int                 `json:"totalProducts"`
	InStock       int                 `json:"inStock"`
	Sold          int                 `json:"sold"`
	LowStock      int                 `json:"lowStock"`
	Recent        []inventory.Product `json:"recent"`
}

// MonthlyAmount is the money total attributed to one calendar month.
type MonthlyAmount struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

// PriceRecord is a history entry carrying a price, joined to its product name.
type PriceRecord struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Change      string          `json:"change"`
	Price       decimal.Decimal `json:"price"`
	Date        time.Time       `json:"date"`
}

// Summary aggregates purchase and sales figures.
type Summary struct {
	TotalValue           decimal.Decimal  `json:"totalValue"`
	CurrentStockValue    decimal.Decimal  `json:"currentStockValue"`
	TotalPurchaseCost    decimal.Decimal  `json:"totalPurchaseCost"`
	TotalSales           decimal.Decimal  `json:"totalSales"`
	ProfitMargin         *decimal.Decimal `json:"profitMargin"`
	TotalPurchased       int              `json:"totalPurchased"`
	TotalSold            int              `json:"totalSold"`
	AveragePurchasePrice decimal.Decimal  `json:"averagePurchasePrice"`
	MonthlySales         []MonthlyAmount  `json:"monthlySales"`
	MonthlyPurchases     []MonthlyAmount  `json:"monthlyPurchases"`
	PurchaseHistory      []PriceRecord    `json:"purchaseHistory"`
}

// MonthLayout labels monthly aggregates, e.g. "Jan 2024".
const MonthLayout = "Jan 2006"

// SortMonths orders MonthLayout labels chronologically. Unparseable labels
// sort last.
func SortMonths(labels []string) {
	sort.SliceStable(labels, func(i, j int) bool {
		a, errA := time.Parse(MonthLayout, labels[i])
		b, errB := time.Parse(MonthLayout, labels[j])
		switch {
		case errA != nil:
			return false
		case errB != nil:
			return true
		}
		return a.Before(b)
	})
}
