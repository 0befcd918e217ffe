package inventory

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stocksavvy/stocksavvy/internal/store"
)

// Field names of persisted product and history documents.
const (
	fieldProductID    = "productId"
	fieldName         = "name"
	fieldCategory     = "category"
	fieldPurchaseDate = "purchaseDate"
	fieldPrice        = "price"
	fieldStock        = "stock"
	fieldStatus       = "status"
	fieldSaleDate     = "saleDate"
	fieldSaleQuantity = "saleQuantity"
	fieldSalePrice    = "salePrice"
	fieldSeller       = "seller"
	fieldBuyer        = "buyer"
	fieldArchived     = "archived"
	fieldChange       = "change"
	fieldTimestamp    = "timestamp"
)

func productDocument(p Product) store.Document {
	doc := store.Document{
		fieldProductID:    p.ProductID,
		fieldName:         p.Name,
		fieldCategory:     p.Category,
		fieldPurchaseDate: p.PurchaseDate,
		fieldPrice:        decimalValue(p.Price),
		fieldStock:        p.Stock,
		fieldStatus:       string(p.Status),
		fieldArchived:     p.Archived,
	}
	if p.SaleDate != "" {
		doc[fieldSaleDate] = p.SaleDate
	}
	if p.SaleQuantity != nil {
		doc[fieldSaleQuantity] = *p.SaleQuantity
	}
	if p.SalePrice != nil {
		doc[fieldSalePrice] = p.SalePrice.String()
	}
	if p.Seller != "" {
		doc[fieldSeller] = p.Seller
	}
	if p.Buyer != "" {
		doc[fieldBuyer] = p.Buyer
	}
	return doc
}

func updateDocument(u ProductUpdate) store.Document {
	doc := store.Document{}
	setString(doc, fieldProductID, u.ProductID)
	setString(doc, fieldName, u.Name)
	setString(doc, fieldCategory, u.Category)
	setString(doc, fieldPurchaseDate, u.PurchaseDate)
	setString(doc, fieldSaleDate, u.SaleDate)
	setString(doc, fieldSeller, u.Seller)
	setString(doc, fieldBuyer, u.Buyer)
	if u.Price != nil {
		doc[fieldPrice] = u.Price.String()
	}
	if u.SalePrice != nil {
		doc[fieldSalePrice] = u.SalePrice.String()
	}
	if u.Stock != nil {
		doc[fieldStock] = *u.Stock
	}
	if u.SaleQuantity != nil {
		doc[fieldSaleQuantity] = *u.SaleQuantity
	}
	if u.Status != nil {
		doc[fieldStatus] = string(*u.Status)
	}
	if u.Archived != nil {
		doc[fieldArchived] = *u.Archived
	}
	return doc
}

func historyDocument(e HistoryEntry) store.Document {
	doc := store.Document{
		fieldProductID: e.ProductID,
		fieldChange:    e.Change,
		fieldTimestamp: store.ServerTimestamp,
	}
	if e.Price != nil {
		doc[fieldPrice] = e.Price.String()
	}
	if e.Seller != "" {
		doc[fieldSeller] = e.Seller
	}
	if e.Buyer != "" {
		doc[fieldBuyer] = e.Buyer
	}
	return doc
}

func decodeProduct(doc store.Document) (Product, error) {
	p := Product{
		ID:           doc.ID(),
		ProductID:    stringField(doc, fieldProductID),
		Name:         stringField(doc, fieldName),
		Category:     stringField(doc, fieldCategory),
		PurchaseDate: stringField(doc, fieldPurchaseDate),
		Status:       Status(stringField(doc, fieldStatus)),
		SaleDate:     stringField(doc, fieldSaleDate),
		Seller:       stringField(doc, fieldSeller),
		Buyer:        stringField(doc, fieldBuyer),
	}
	var err error
	if p.Price, err = decimalField(doc, fieldPrice); err != nil {
		return Product{}, err
	}
	if p.SalePrice, err = decimalField(doc, fieldSalePrice); err != nil {
		return Product{}, err
	}
	stock, err := intField(doc, fieldStock)
	if err != nil {
		return Product{}, err
	}
	if stock != nil {
		p.Stock = *stock
	}
	if p.SaleQuantity, err = intField(doc, fieldSaleQuantity); err != nil {
		return Product{}, err
	}
	if archived, ok := doc[fieldArchived].(bool); ok {
		p.Archived = archived
	}
	if !p.Status.Valid() {
		p.Status = StatusInStock
		if p.Stock == 0 {
			p.Status = StatusSold
		}
	}
	return p, nil
}

func decodeHistory(doc store.Document) (HistoryEntry, error) {
	e := HistoryEntry{
		ID:        doc.ID(),
		ProductID: stringField(doc, fieldProductID),
		Change:    stringField(doc, fieldChange),
		Seller:    stringField(doc, fieldSeller),
		Buyer:     stringField(doc, fieldBuyer),
	}
	var err error
	if e.Price, err = decimalField(doc, fieldPrice); err != nil {
		return HistoryEntry{}, err
	}
	if ts, ok := timeValue(doc[fieldTimestamp]); ok {
		e.Timestamp = ts
	}
	return e, nil
}

func setString(doc store.Document, field string, v *string) {
	if v != nil {
		doc[field] = *v
	}
}

func decimalValue(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func stringField(doc store.Document, field string) string {
	s, _ := doc[field].(string)
	return s
}

func decimalField(doc store.Document, field string) (*decimal.Decimal, error) {
	raw, ok := doc[field]
	if !ok || raw == nil {
		return nil, nil
	}
	var d decimal.Decimal
	switch v := raw.(type) {
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("inventory: decode %s: %w", field, err)
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(v)
	case float32:
		d = decimal.NewFromFloat32(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int32:
		d = decimal.NewFromInt32(v)
	case int64:
		d = decimal.NewFromInt(v)
	case json.Number:
		parsed, err := decimal.NewFromString(v.String())
		if err != nil {
			return nil, fmt.Errorf("inventory: decode %s: %w", field, err)
		}
		d = parsed
	default:
		return nil, fmt.Errorf("inventory: decode %s: unexpected %T", field, raw)
	}
	return &d, nil
}

func intField(doc store.Document, field string) (*int, error) {
	raw, ok := doc[field]
	if !ok || raw == nil {
		return nil, nil
	}
	var n int
	switch v := raw.(type) {
	case int:
		n = v
	case int32:
		n = int(v)
	case int64:
		n = int(v)
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("inventory: decode %s: non-integer %v", field, v)
		}
		n = int(v)
	default:
		return nil, fmt.Errorf("inventory: decode %s: unexpected %T", field, raw)
	}
	return &n, nil
}

func timeValue(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}
