package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used for purchase and sale dates.
const DateLayout = "2006-01-02"

// Status enumerates the product lifecycle states.
type Status string

const (
	// StatusInStock marks a product with units left to sell.
	StatusInStock Status = "In Stock"
	// StatusSold marks a product with no units left. Terminal.
	StatusSold Status = "Sold"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusInStock || s == StatusSold
}

// History descriptions written by the ledger.
const (
	ChangeProductAdded = "Product added with purchase price"
	ChangeStockUpdated = "Stock updated"
	ChangePriceUpdated = "Price updated"
	ChangeUpdated      = "Product updated"
	ChangeArchived     = "product archived"
)

// Product is a tracked inventory item.
type Product struct {
	ID           string           `json:"id"`
	ProductID    string           `json:"productId"`
	Name         string           `json:"name"`
	Category     string           `json:"category"`
	PurchaseDate string           `json:"purchaseDate"`
	Price        *decimal.Decimal `json:"price"`
	Stock        int              `json:"stock"`
	Status       Status           `json:"status"`
	SaleDate     string           `json:"saleDate,omitempty"`
	SaleQuantity *int             `json:"saleQuantity,omitempty"`
	SalePrice    *decimal.Decimal `json:"salePrice,omitempty"`
	Seller       string           `json:"seller,omitempty"`
	Buyer        string           `json:"buyer,omitempty"`
	Archived     bool             `json:"archived"`
}

// HistoryEntry is an immutable audit record of one ledger mutation.
type HistoryEntry struct {
	ID        string           `json:"id"`
	ProductID string           `json:"productId"`
	Change    string           `json:"change"`
	Timestamp time.Time        `json:"timestamp"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Seller    string           `json:"seller,omitempty"`
	Buyer     string           `json:"buyer,omitempty"`
}

// NewProduct captures the fields required to add a product.
type NewProduct struct {
	ProductID    string
	Name         string
	Category     string
	PurchaseDate string
	Stock        int
	Price        *decimal.Decimal
}

// ProductUpdate is a partial update; nil fields are left untouched.
type ProductUpdate struct {
	ProductID    *string
	Name         *string
	Category     *string
	PurchaseDate *string
	Price        *decimal.Decimal
	Stock        *int
	Status       *Status
	SaleDate     *string
	SaleQuantity *int
	SalePrice    *decimal.Decimal
	Seller       *string
	Buyer        *string
	Archived     *bool
}

// Sale describes a markAsSold request.
type Sale struct {
	SaleDate  string
	Quantity  int
	SalePrice *decimal.Decimal
	Seller    string
	Buyer     string
}

// DefaultSeller is recorded when a sale names no seller.
const DefaultSeller = "Unknown"

// ErrNotFound is returned when a mutation targets an unknown product.
var ErrNotFound = errors.New("inventory: product not found")

// ErrDuplicateProductID is returned when SKU uniqueness is enforced and the SKU is taken.
var ErrDuplicateProductID = errors.New("inventory: product id already in use")

// ValidationError reports a missing or invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("inventory: %s %s", e.Field, e.Message)
}

// InsufficientStockError is returned when a sale exceeds the available stock.
type InsufficientStockError struct {
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock: requested %d, available %d", e.Requested, e.Available)
}

// PersistenceError wraps a failed store call.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("inventory: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
