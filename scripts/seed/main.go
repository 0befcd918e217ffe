package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stocksavvy/stocksavvy/internal/app"
	"github.com/stocksavvy/stocksavvy/internal/auth"
	"github.com/stocksavvy/stocksavvy/internal/inventory"
	"github.com/stocksavvy/stocksavvy/internal/rbac"
)

// demoProduct is one row of sample inventory. sold > 0 records a sale
// sold days after purchase.
type demoProduct struct {
	productID string
	name      string
	category  string
	daysAgo   int
	stock     int
	price     string
	sold      int
	salePrice string
	buyer     string
}

var demo = []demoProduct{
	{productID: "NIKE-DUNK-42", name: "Nike Dunk Low Panda", category: "Sneakers", daysAgo: 95, stock: 3, price: "110", sold: 3, salePrice: "165", buyer: "Rina"},
	{productID: "AJ1-CHI-43", name: "Air Jordan 1 Chicago", category: "Sneakers", daysAgo: 70, stock: 1, price: "180", sold: 1, salePrice: "320", buyer: "Dimas"},
	{productID: "YZY-350-41", name: "Yeezy Boost 350 Zebra", category: "Sneakers", daysAgo: 40, stock: 2, price: "230", sold: 1, salePrice: "290", buyer: "Sari"},
	{productID: "SUP-BOX-L", name: "Box Logo Hoodie", category: "Apparel", daysAgo: 20, stock: 4, price: "150"},
	{productID: "SWATCH-MOON", name: "MoonSwatch Mission to Mars", category: "Watches", daysAgo: 8, stock: 1, price: "260"},
}

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)

	st, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close(ctx)

	fmt.Println("→ Seeding users...")
	if err := auth.SeedUsers(ctx, st, app.SeedUsers(cfg), logger); err != nil {
		log.Fatalf("seed users: %v", err)
	}

	ledger := inventory.NewService(st, logger, inventory.ServiceConfig{UniqueProductIDs: cfg.UniqueProductIDs})
	if err := ledger.Load(ctx); err != nil {
		log.Fatalf("load ledger: %v", err)
	}
	if len(ledger.Products()) > 0 {
		fmt.Println("→ Products already present, skipping demo inventory")
		return
	}

	fmt.Println("→ Seeding demo inventory...")
	actor := rbac.Principal{ID: "seed", Email: cfg.SeedAdminEmail, Role: rbac.RoleAdmin}
	now := time.Now()
	for _, row := range demo {
		if err := seedProduct(ctx, ledger, actor, now, row); err != nil {
			log.Fatalf("seed %s: %v", row.productID, err)
		}
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func seedProduct(ctx context.Context, ledger *inventory.Service, actor rbac.Principal, now time.Time, row demoProduct) error {
	price := decimal.RequireFromString(row.price)
	purchased := now.AddDate(0, 0, -row.daysAgo)
	product, err := ledger.AddProduct(ctx, actor, inventory.NewProduct{
		ProductID:    row.productID,
		Name:         row.name,
		Category:     row.category,
		PurchaseDate: purchased.Format(inventory.DateLayout),
		Stock:        row.stock,
		Price:        &price,
	})
	if err != nil {
		return err
	}
	if row.sold == 0 {
		return nil
	}
	salePrice := decimal.RequireFromString(row.salePrice)
	_, err = ledger.MarkAsSold(ctx, actor, product.ID, inventory.Sale{
		SaleDate:  purchased.AddDate(0, 0, 14).Format(inventory.DateLayout),
		Quantity:  row.sold,
		SalePrice: &salePrice,
		Seller:    "StockSavvy",
		Buyer:     row.buyer,
	})
	return err
}
