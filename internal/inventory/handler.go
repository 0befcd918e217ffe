package inventory

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stocksavvy/stocksavvy/internal/platform/httpx"
	"github.com/stocksavvy/stocksavvy/internal/rbac"
	"github.com/stocksavvy/stocksavvy/internal/shared"
)

// PrincipalResolver resolves the authenticated caller of a request.
type PrincipalResolver interface {
	CurrentUser(ctx context.Context) (rbac.Principal, error)
}

// Handler wires HTTP endpoints for the inventory ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	users     PrincipalResolver
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, users PrincipalResolver, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, users: users, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers product routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermProductsView))
		r.Get("/", h.listProducts)
		r.Get("/categories", h.listCategories)
		r.Get("/{id}", h.getProduct)
		r.Get("/{id}/history", h.productHistory)
	})
	r.With(h.rbac.RequireAll(rbac.PermProductsCreate)).Post("/", h.addProduct)
	r.With(h.rbac.RequireAll(rbac.PermProductsEdit)).Patch("/{id}", h.updateProduct)
	r.With(h.rbac.RequireAll(rbac.PermProductsSell)).Post("/{id}/sell", h.sellProduct)
	r.With(h.rbac.RequireAll(rbac.PermProductsArchive)).Delete("/{id}", h.archiveProduct)
}

// MountHistoryRoutes registers the ledger-wide history feed.
func (h *Handler) MountHistoryRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(rbac.PermProductsView)).Get("/", h.listHistory)
}

type productForm struct {
	ProductID    string           `json:"productId" validate:"required,max=64"`
	Name         string           `json:"name" validate:"required,max=200"`
	Category     string           `json:"category" validate:"required,max=100"`
	PurchaseDate string           `json:"purchaseDate" validate:"required,datetime=2006-01-02"`
	Stock        int              `json:"stock" validate:"min=1"`
	Price        *decimal.Decimal `json:"price"`
}

type updateForm struct {
	ProductID    *string          `json:"productId" validate:"omitempty,max=64"`
	Name         *string          `json:"name" validate:"omitempty,max=200"`
	Category     *string          `json:"category" validate:"omitempty,max=100"`
	PurchaseDate *string          `json:"purchaseDate" validate:"omitempty,datetime=2006-01-02"`
	Price        *decimal.Decimal `json:"price"`
	Stock        *int             `json:"stock" validate:"omitempty,min=0"`
	Status       *string          `json:"status" validate:"omitempty,oneof='In Stock' 'Sold'"`
}

type sellForm struct {
	SaleDate  string           `json:"saleDate" validate:"required,datetime=2006-01-02"`
	Quantity  int              `json:"quantity" validate:"min=1"`
	SalePrice *decimal.Decimal `json:"salePrice"`
	Seller    string           `json:"seller" validate:"max=100"`
	Buyer     string           `json:"buyer" validate:"max=100"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	filter := FilterFromQuery(r.URL.Query())
	httpx.JSON(w, http.StatusOK, map[string]any{"products": filter.Filter(h.service.Products())})
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"categories": Categories(h.service.Products())})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := h.service.GetProductByID(chi.URLParam(r, "id"))
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", ErrNotFound.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) productHistory(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"history": h.service.HistoryForProduct(chi.URLParam(r, "id"))})
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	history := h.service.History()
	// Newest first.
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	entries, page := shared.Paginate(history, r.URL.Query())
	httpx.JSON(w, http.StatusOK, map[string]any{"history": entries, "pagination": page})
}

func (h *Handler) addProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var form productForm
	if !h.decode(w, r, &form) {
		return
	}
	p, err := h.service.AddProduct(r.Context(), actor, NewProduct{
		ProductID:    form.ProductID,
		Name:         form.Name,
		Category:     form.Category,
		PurchaseDate: form.PurchaseDate,
		Stock:        form.Stock,
		Price:        form.Price,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var form updateForm
	if !h.decode(w, r, &form) {
		return
	}
	upd := ProductUpdate{
		ProductID:    form.ProductID,
		Name:         form.Name,
		Category:     form.Category,
		PurchaseDate: form.PurchaseDate,
		Price:        form.Price,
		Stock:        form.Stock,
	}
	if form.Status != nil {
		status := Status(*form.Status)
		upd.Status = &status
	}
	p, err := h.service.UpdateProduct(r.Context(), actor, chi.URLParam(r, "id"), upd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) sellProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var form sellForm
	if !h.decode(w, r, &form) {
		return
	}
	p, err := h.service.MarkAsSold(r.Context(), actor, chi.URLParam(r, "id"), Sale{
		SaleDate:  form.SaleDate,
		Quantity:  form.Quantity,
		SalePrice: form.SalePrice,
		Seller:    form.Seller,
		Buyer:     form.Buyer,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) archiveProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	p, err := h.service.ArchiveProduct(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (rbac.Principal, bool) {
	actor, err := h.users.CurrentUser(r.Context())
	if err != nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return rbac.Principal{}, false
	}
	return actor, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := httpx.DecodeJSON(r, dest); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return false
	}
	if err := h.validator.Struct(dest); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fieldErr := range fieldErrs {
				msgs = append(msgs, fieldErr.Field()+": "+fieldErr.Tag())
			}
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", strings.Join(msgs, "; "))
			return false
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *ValidationError
	var insufficient *InsufficientStockError
	switch {
	case errors.As(err, &validation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validation.Error())
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", insufficient.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateProductID):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, rbac.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		h.logger.Error("inventory request", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
