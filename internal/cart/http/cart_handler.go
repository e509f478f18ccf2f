package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/domain"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/repository"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/service"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, productID int64, quantity int) (*domain.Cart, error)
	UpdateItemQuantity(ctx context.Context, userID string, productID int64, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID string, productID int64) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) (*domain.Cart, error)
}

type CartHandler struct {
	svc     CartService
	timeout time.Duration
	log     *logrus.Entry
}

func NewCartHandler(svc CartService, timeout time.Duration, log *logrus.Entry) *CartHandler {
	return &CartHandler{
		svc:     svc,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.svc.GetCart(ctx, chi.URLParam(r, "userId"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_product_id", "productId must be a positive integer")
		return
	}

	cart, err := h.svc.AddItem(ctx, chi.URLParam(r, "userId"), req.ProductID, req.Quantity)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}

	cart, err := h.svc.UpdateItemQuantity(ctx, chi.URLParam(r, "userId"), productID, *req.Quantity)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	cart, err := h.svc.RemoveItem(ctx, chi.URLParam(r, "userId"), productID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, cart)
}

// ClearCart answers 204 when the user had no cart.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.svc.ClearCart(ctx, chi.URLParam(r, "userId"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if cart == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, cart)
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || productID <= 0 {
		httpx.RespondError(w, http.StatusBadRequest, "invalid_product_id", "productId must be a positive integer")
		return 0, false
	}
	return productID, true
}

func (h *CartHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidQuantity):
		httpx.RespondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, repository.ErrCartNotFound):
		httpx.RespondError(w, http.StatusNotFound, "not_found", "Cart not found for this user.")
	case errors.Is(err, service.ErrItemNotFound):
		httpx.RespondError(w, http.StatusNotFound, "item_not_found", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		httpx.RespondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		h.log.WithContext(r.Context()).WithError(err).
			WithField("user_id", chi.URLParam(r, "userId")).
			Error("cart operation failed")
		httpx.RespondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
