package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/stocksavvy/stocksavvy/internal/rbac"
	"github.com/stocksavvy/stocksavvy/internal/store"
)

// Service owns the product and history collections and mediates every
// state change to a product. Each mutation persists the product, appends
// history, and only then updates the in-memory collections.
type Service struct {
	store    store.Store
	logger   *slog.Logger
	cfg      ServiceConfig
	handlers []ChangeHandler
	now      func() time.Time
	loads    singleflight.Group

	mu       sync.RWMutex
	products []Product
	history  []HistoryEntry
	// journal holds commits made while a Load is reading the store; nil
	// when no load is running.
	journal []pending
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	UniqueProductIDs bool
	SoldRetention    time.Duration
}

// DefaultSoldRetention is how long a sold product stays unarchived.
const DefaultSoldRetention = 30 * 24 * time.Hour

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithChangeHandler registers a handler notified after every committed mutation.
func WithChangeHandler(h ChangeHandler) Option {
	return func(s *Service) {
		if h != nil {
			s.handlers = append(s.handlers, h)
		}
	}
}

// NewService builds Service.
func NewService(st store.Store, logger *slog.Logger, cfg ServiceConfig, opts ...Option) *Service {
	if cfg.SoldRetention <= 0 {
		cfg.SoldRetention = DefaultSoldRetention
	}
	s := &Service{
		store:  st,
		logger: logger,
		cfg:    cfg,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory collections with the store's contents.
// Concurrent callers share one round trip. Mutations committed while the
// store is being read are replayed over the snapshot.
func (s *Service) Load(ctx context.Context) error {
	_, err, _ := s.loads.Do("load", func() (any, error) {
		s.mu.Lock()
		s.journal = []pending{}
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			s.journal = nil
			s.mu.Unlock()
		}()

		productDocs, err := s.store.ListAll(ctx, store.CollectionProducts)
		if err != nil {
			return nil, persistence("list products", err)
		}
		historyDocs, err := s.store.ListAll(ctx, store.CollectionHistory)
		if err != nil {
			return nil, persistence("list history", err)
		}

		products := make([]Product, 0, len(productDocs))
		for _, doc := range productDocs {
			p, err := decodeProduct(doc)
			if err != nil {
				s.log().Warn("skip product document", slog.String("id", doc.ID()), slog.Any("error", err))
				continue
			}
			products = append(products, p)
		}
		history := make([]HistoryEntry, 0, len(historyDocs))
		for _, doc := range historyDocs {
			e, err := decodeHistory(doc)
			if err != nil {
				s.log().Warn("skip history document", slog.String("id", doc.ID()), slog.Any("error", err))
				continue
			}
			history = append(history, e)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.products = products
		s.history = history
		for _, change := range s.journal {
			s.apply(change)
		}
		sort.SliceStable(s.history, func(i, j int) bool {
			return s.history[i].Timestamp.Before(s.history[j].Timestamp)
		})
		return nil, nil
	})
	return err
}

// Products returns a snapshot of every product, archived ones included.
func (s *Service) Products() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

// History returns a snapshot of every history entry in timestamp order.
func (s *Service) History() []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// GetProductByID looks a product up by store id.
func (s *Service) GetProductByID(id string) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// HistoryForProduct returns the entries recorded for a product store id.
func (s *Service) HistoryForProduct(productID string) []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]HistoryEntry, 0)
	for _, e := range s.history {
		if e.ProductID == productID {
			out = append(out, e)
		}
	}
	return out
}

// AddProduct creates a product in stock and records its purchase price.
func (s *Service) AddProduct(ctx context.Context, actor rbac.Principal, in NewProduct) (Product, error) {
	if err := actor.Authorize(rbac.PermProductsCreate); err != nil {
		return Product{}, err
	}
	in = in.normalized()
	if err := in.validate(); err != nil {
		return Product{}, err
	}
	if s.cfg.UniqueProductIDs && s.productIDTaken(in.ProductID, "") {
		return Product{}, ErrDuplicateProductID
	}

	p := Product{
		ProductID:    in.ProductID,
		Name:         in.Name,
		Category:     in.Category,
		PurchaseDate: in.PurchaseDate,
		Price:        in.Price,
		Stock:        in.Stock,
		Status:       StatusInStock,
	}
	id, err := s.store.Put(ctx, store.CollectionProducts, productDocument(p))
	if err != nil {
		return Product{}, persistence("add product", err)
	}
	p.ID = id

	entry, err := s.record(ctx, HistoryEntry{ProductID: id, Change: ChangeProductAdded, Price: p.Price})
	if err != nil {
		return Product{}, err
	}
	s.commit(pending{product: p, created: true, entries: []HistoryEntry{entry}})
	s.log().Info("product added",
		slog.String("id", id),
		slog.String("product_id", p.ProductID),
		slog.Int("stock", p.Stock),
		slog.String("actor", actor.Email),
	)
	s.notify(ctx, ChangeKindAdded, id)
	return p, nil
}

// UpdateProduct merges a partial update and records one history entry
// chosen by precedence: stock change, then price change, then generic.
func (s *Service) UpdateProduct(ctx context.Context, actor rbac.Principal, id string, upd ProductUpdate) (Product, error) {
	if err := actor.Authorize(rbac.PermProductsEdit); err != nil {
		return Product{}, err
	}
	upd = upd.normalized()
	if err := upd.validate(); err != nil {
		return Product{}, err
	}
	current, ok := s.GetProductByID(id)
	if !ok {
		return Product{}, ErrNotFound
	}
	if upd.Status != nil && current.Status == StatusSold && *upd.Status == StatusInStock {
		return Product{}, invalid("status", "cannot return a sold product to stock")
	}
	if next := current.apply(upd); next.Status == StatusSold && next.Stock != 0 {
		return Product{}, invalid("stock", "must be zero for sold products")
	}
	if s.cfg.UniqueProductIDs && upd.ProductID != nil && *upd.ProductID != current.ProductID && s.productIDTaken(*upd.ProductID, id) {
		return Product{}, ErrDuplicateProductID
	}

	change, err := s.update(ctx, current, upd)
	if err != nil {
		return Product{}, err
	}
	s.commit(change)
	s.notify(ctx, ChangeKindUpdated, id)
	return change.product, nil
}

// MarkAsSold records a sale of quantity units. The product update and its
// generic history entry are written first, followed by the sale entry.
func (s *Service) MarkAsSold(ctx context.Context, actor rbac.Principal, id string, sale Sale) (Product, error) {
	if err := actor.Authorize(rbac.PermProductsSell); err != nil {
		return Product{}, err
	}
	sale = sale.normalized()
	if err := sale.validate(); err != nil {
		return Product{}, err
	}
	current, ok := s.GetProductByID(id)
	if !ok {
		return Product{}, ErrNotFound
	}
	if sale.Quantity > current.Stock {
		return Product{}, &InsufficientStockError{Requested: sale.Quantity, Available: current.Stock}
	}

	remaining := max(0, current.Stock-sale.Quantity)
	status := StatusInStock
	if remaining == 0 {
		status = StatusSold
	}
	seller := sale.Seller
	if seller == "" {
		seller = DefaultSeller
	}
	salePrice := sale.SalePrice
	if salePrice == nil {
		salePrice = current.Price
	}
	quantity := sale.Quantity
	buyer := sale.Buyer

	change, err := s.update(ctx, current, ProductUpdate{
		Status:       &status,
		Stock:        &remaining,
		SaleDate:     &sale.SaleDate,
		SaleQuantity: &quantity,
		SalePrice:    salePrice,
		Seller:       &seller,
		Buyer:        &buyer,
	})
	if err != nil {
		return Product{}, err
	}
	entry, err := s.record(ctx, HistoryEntry{
		ProductID: id,
		Change:    saleDescription(quantity, seller, buyer),
		Price:     salePrice,
		Seller:    seller,
		Buyer:     buyer,
	})
	if err != nil {
		return Product{}, err
	}
	change.entries = append(change.entries, entry)
	s.commit(change)
	s.log().Info("product sold",
		slog.String("id", id),
		slog.Int("quantity", quantity),
		slog.Int("remaining", remaining),
		slog.String("actor", actor.Email),
	)
	s.notify(ctx, ChangeKindSold, id)
	return change.product, nil
}

// ArchiveProduct soft-deletes a product: it becomes Sold with zero stock and
// is flagged archived. Repeated calls are harmless.
func (s *Service) ArchiveProduct(ctx context.Context, actor rbac.Principal, id string) (Product, error) {
	if err := actor.Authorize(rbac.PermProductsArchive); err != nil {
		return Product{}, err
	}
	current, ok := s.GetProductByID(id)
	if !ok {
		return Product{}, ErrNotFound
	}
	status := StatusSold
	stock := 0
	archived := true
	change, err := s.update(ctx, current, ProductUpdate{Status: &status, Stock: &stock, Archived: &archived})
	if err != nil {
		return Product{}, err
	}
	entry, err := s.record(ctx, HistoryEntry{ProductID: id, Change: ChangeArchived})
	if err != nil {
		return Product{}, err
	}
	change.entries = append(change.entries, entry)
	s.commit(change)
	s.log().Info("product archived", slog.String("id", id), slog.String("actor", actor.Email))
	s.notify(ctx, ChangeKindArchived, id)
	return change.product, nil
}

type pending struct {
	product Product
	created bool
	entries []HistoryEntry
}

// update persists upd and appends the matching history entry without
// touching the in-memory collections.
func (s *Service) update(ctx context.Context, current Product, upd ProductUpdate) (pending, error) {
	if err := s.store.Update(ctx, store.CollectionProducts, current.ID, updateDocument(upd)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return pending{}, ErrNotFound
		}
		return pending{}, persistence("update product", err)
	}
	entry, err := s.record(ctx, updateEntry(current, upd))
	if err != nil {
		return pending{}, err
	}
	return pending{product: current.apply(upd), entries: []HistoryEntry{entry}}, nil
}

// record appends a history entry and reads back the store-assigned timestamp.
func (s *Service) record(ctx context.Context, entry HistoryEntry) (HistoryEntry, error) {
	id, err := s.store.Put(ctx, store.CollectionHistory, historyDocument(entry))
	if err != nil {
		return HistoryEntry{}, persistence("append history", err)
	}
	entry.ID = id
	doc, err := s.store.Get(ctx, store.CollectionHistory, id)
	if err != nil {
		return HistoryEntry{}, persistence("read back history", err)
	}
	ts, ok := timeValue(doc[fieldTimestamp])
	if !ok {
		return HistoryEntry{}, persistence("read back history", fmt.Errorf("entry %s has no timestamp", id))
	}
	entry.Timestamp = ts
	return entry, nil
}

// commit applies a persisted change. A reload that already read the store
// may have picked up the new documents, so both collections are merged by
// id; a reload still reading gets the change through the journal.
func (s *Service) commit(change pending) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal != nil {
		s.journal = append(s.journal, change)
	}
	s.apply(change)
}

// apply merges change into the collections. Callers hold s.mu.
func (s *Service) apply(change pending) {
	replaced := false
	for i := range s.products {
		if s.products[i].ID == change.product.ID {
			s.products[i] = change.product
			replaced = true
			break
		}
	}
	if !replaced && change.created {
		s.products = append(s.products, change.product)
	}
	for _, entry := range change.entries {
		if !s.hasHistory(entry.ID) {
			s.history = append(s.history, entry)
		}
	}
}

func (s *Service) hasHistory(id string) bool {
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].ID == id {
			return true
		}
	}
	return false
}

func (s *Service) notify(ctx context.Context, kind ChangeKind, ids ...string) {
	if len(s.handlers) == 0 {
		return
	}
	evt := ChangedEvent{Kind: kind, ProductIDs: ids, At: s.now()}
	for _, h := range s.handlers {
		if err := h.HandleInventoryChanged(ctx, evt); err != nil {
			s.log().Warn("inventory change handler", slog.String("kind", string(kind)), slog.Any("error", err))
		}
	}
}

func (s *Service) productIDTaken(productID, exceptID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID != exceptID && !p.Archived && p.ProductID == productID {
			return true
		}
	}
	return false
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func updateEntry(current Product, upd ProductUpdate) HistoryEntry {
	entry := HistoryEntry{ProductID: current.ID}
	switch {
	case upd.Stock != nil && *upd.Stock != current.Stock:
		entry.Change = ChangeStockUpdated
		entry.Price = current.Price
		if upd.Price != nil {
			entry.Price = upd.Price
		}
	case upd.Price != nil && !decimalEqual(upd.Price, current.Price):
		entry.Change = ChangePriceUpdated
		entry.Price = upd.Price
	default:
		entry.Change = ChangeUpdated
		entry.Price = current.Price
	}
	return entry
}

func saleDescription(quantity int, seller, buyer string) string {
	desc := fmt.Sprintf("%d units sold by %s", quantity, seller)
	if buyer != "" {
		desc += " to " + buyer
	}
	return desc
}

func (p Product) apply(u ProductUpdate) Product {
	next := p
	if u.ProductID != nil {
		next.ProductID = *u.ProductID
	}
	if u.Name != nil {
		next.Name = *u.Name
	}
	if u.Category != nil {
		next.Category = *u.Category
	}
	if u.PurchaseDate != nil {
		next.PurchaseDate = *u.PurchaseDate
	}
	if u.Price != nil {
		next.Price = u.Price
	}
	if u.Stock != nil {
		next.Stock = *u.Stock
	}
	if u.Status != nil {
		next.Status = *u.Status
	}
	if u.SaleDate != nil {
		next.SaleDate = *u.SaleDate
	}
	if u.SaleQuantity != nil {
		q := *u.SaleQuantity
		next.SaleQuantity = &q
	}
	if u.SalePrice != nil {
		next.SalePrice = u.SalePrice
	}
	if u.Seller != nil {
		next.Seller = *u.Seller
	}
	if u.Buyer != nil {
		next.Buyer = *u.Buyer
	}
	if u.Archived != nil {
		next.Archived = *u.Archived
	}
	return next
}

func (in NewProduct) normalized() NewProduct {
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.PurchaseDate = strings.TrimSpace(in.PurchaseDate)
	return in
}

func (in NewProduct) validate() error {
	switch {
	case in.ProductID == "":
		return invalid("productId", "is required")
	case in.Name == "":
		return invalid("name", "is required")
	case in.Category == "":
		return invalid("category", "is required")
	case in.PurchaseDate == "":
		return invalid("purchaseDate", "is required")
	}
	if _, err := time.Parse(DateLayout, in.PurchaseDate); err != nil {
		return invalid("purchaseDate", "must be formatted as YYYY-MM-DD")
	}
	if in.Stock < 1 {
		return invalid("stock", "must be at least 1")
	}
	if in.Price != nil && in.Price.IsNegative() {
		return invalid("price", "must not be negative")
	}
	return nil
}

func (u ProductUpdate) normalized() ProductUpdate {
	for _, field := range []**string{&u.ProductID, &u.Name, &u.Category, &u.PurchaseDate, &u.SaleDate, &u.Seller, &u.Buyer} {
		if *field != nil {
			trimmed := strings.TrimSpace(**field)
			*field = &trimmed
		}
	}
	return u
}

func (u ProductUpdate) validate() error {
	required := []struct {
		name  string
		value *string
	}{
		{"productId", u.ProductID},
		{"name", u.Name},
		{"category", u.Category},
		{"purchaseDate", u.PurchaseDate},
	}
	for _, f := range required {
		if f.value != nil && *f.value == "" {
			return invalid(f.name, "must not be empty")
		}
	}
	if u.PurchaseDate != nil {
		if _, err := time.Parse(DateLayout, *u.PurchaseDate); err != nil {
			return invalid("purchaseDate", "must be formatted as YYYY-MM-DD")
		}
	}
	if u.SaleDate != nil && *u.SaleDate != "" {
		if _, err := time.Parse(DateLayout, *u.SaleDate); err != nil {
			return invalid("saleDate", "must be formatted as YYYY-MM-DD")
		}
	}
	if u.Stock != nil && *u.Stock < 0 {
		return invalid("stock", "must not be negative")
	}
	if u.SaleQuantity != nil && *u.SaleQuantity < 0 {
		return invalid("saleQuantity", "must not be negative")
	}
	if u.Price != nil && u.Price.IsNegative() {
		return invalid("price", "must not be negative")
	}
	if u.SalePrice != nil && u.SalePrice.IsNegative() {
		return invalid("salePrice", "must not be negative")
	}
	if u.Status != nil && !u.Status.Valid() {
		return invalid("status", fmt.Sprintf("must be %q or %q", StatusInStock, StatusSold))
	}
	return nil
}

func (s Sale) normalized() Sale {
	s.SaleDate = strings.TrimSpace(s.SaleDate)
	s.Seller = strings.TrimSpace(s.Seller)
	s.Buyer = strings.TrimSpace(s.Buyer)
	return s
}

func (s Sale) validate() error {
	if s.SaleDate == "" {
		return invalid("saleDate", "is required")
	}
	if _, err := time.Parse(DateLayout, s.SaleDate); err != nil {
		return invalid("saleDate", "must be formatted as YYYY-MM-DD")
	}
	if s.Quantity < 1 {
		return invalid("quantity", "must be at least 1")
	}
	if s.SalePrice != nil && s.SalePrice.IsNegative() {
		return invalid("salePrice", "must not be negative")
	}
	return nil
}

func decimalEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
