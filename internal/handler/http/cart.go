package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/MiSArch/shoppingcart/internal/domain"
	"github.com/MiSArch/shoppingcart/internal/service"
	apperrors "github.com/MiSArch/shoppingcart/pkg/errors"
	"github.com/MiSArch/shoppingcart/pkg/httputil"
	"github.com/MiSArch/shoppingcart/pkg/pagination"
	"github.com/MiSArch/shoppingcart/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding an item to the cart.
type AddItemRequest struct {
	VariantID string `json:"variant_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// UpdateQuantityRequest is the JSON request body for updating an item's
// quantity. A quantity of 0 removes the item.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

// --- Item sorting ---

const (
	sortNewest       = "newest"
	sortOldest       = "oldest"
	sortQuantityAsc  = "quantity_asc"
	sortQuantityDesc = "quantity_desc"
)

func validSortBy(sortBy string) bool {
	switch sortBy {
	case sortNewest, sortOldest, sortQuantityAsc, sortQuantityDesc:
		return true
	}
	return false
}

func sortItems(items []domain.CartItem, sortBy string) {
	switch sortBy {
	case sortOldest:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].AddedAt.Before(items[j].AddedAt)
		})
	case sortQuantityAsc:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Quantity < items[j].Quantity
		})
	case sortQuantityDesc:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Quantity > items[j].Quantity
		})
	default:
		// newest first
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].AddedAt.After(items[j].AddedAt)
		})
	}
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}

	cart, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// ListItems handles GET /api/v1/cart/items
func (h *CartHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}

	params, err := pagination.Parse(r)
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput(err.Error()), h.logger)
		return
	}

	sortBy := r.URL.Query().Get("sort_by")
	if sortBy == "" {
		sortBy = sortNewest
	}
	if !validSortBy(sortBy) {
		httputil.WriteError(w, r, apperrors.InvalidInput(
			"sort_by must be one of newest, oldest, quantity_asc, quantity_desc"), h.logger)
		return
	}

	cart, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	items := make([]domain.CartItem, len(cart.Items))
	copy(items, cart.Items)
	sortItems(items, sortBy)

	lo, hi := params.Slice(len(items))
	httputil.WriteJSON(w, http.StatusOK,
		httputil.NewPaginatedResponse(items[lo:hi], len(items), params.Page, params.PerPage))
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}

	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body: "+err.Error()), h.logger)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	cart, err := h.service.AddItem(r.Context(), userID, req.VariantID, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// UpdateItemQuantity handles PUT /api/v1/cart/items/{itemID}
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}

	itemID := chi.URLParam(r, "itemID")

	var req UpdateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body: "+err.Error()), h.logger)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	cart, err := h.service.UpdateItemQuantity(r.Context(), userID, itemID, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// RemoveItem handles DELETE /api/v1/cart/items/{itemID}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}

	itemID := chi.URLParam(r, "itemID")

	cart, err := h.service.RemoveItem(r.Context(), userID, itemID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}

	cart, err := h.service.ClearCart(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cart})
}
