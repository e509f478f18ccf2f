package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/gateway/checkout"
	"github.com/NitheshChakaravarthySeelan/community-platform/internal/httpx"
)

const (
	missingFieldsMessage = "Missing required fields: userId, items, totalAmount"
	initiateFailMessage  = "Failed to initiate checkout"
)

type Initiator interface {
	Initiate(ctx context.Context, req checkout.Request) (checkout.Result, error)
}

type CheckoutHandler struct {
	initiator   Initiator
	timeout     time.Duration
	maxBodySize int64
}

func NewCheckoutHandler(initiator Initiator, timeout time.Duration, maxBodySize int64) *CheckoutHandler {
	return &CheckoutHandler{
		initiator:   initiator,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

type CheckoutResponseDTO struct {
	Message string `json:"message"`
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// POST /api/checkout/initiate
func (h *CheckoutHandler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req checkout.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodySize)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.RespondError(w, http.StatusRequestEntityTooLarge, "", "request body too large")
			return
		}
		httpx.RespondError(w, http.StatusBadRequest, "", "invalid JSON body")
		return
	}

	res, err := h.initiator.Initiate(ctx, req)
	switch {
	case errors.Is(err, checkout.ErrMissingFields):
		httpx.RespondError(w, http.StatusBadRequest, "", missingFieldsMessage)
		return
	case errors.Is(err, checkout.ErrValidation):
		msg := strings.TrimPrefix(err.Error(), checkout.ErrValidation.Error()+": ")
		httpx.RespondError(w, http.StatusBadRequest, "", msg)
		return
	case err != nil:
		httpx.RespondError(w, http.StatusInternalServerError, "", initiateFailMessage)
		return
	}

	httpx.RespondJSON(w, http.StatusAccepted, CheckoutResponseDTO{
		Message: "Checkout initiated successfully",
		OrderID: res.OrderID,
		Status:  res.Status,
	})
}

// GET /api/checkout/test
func (h *CheckoutHandler) Test(w http.ResponseWriter, _ *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"message": "Checkout test route working!"})
}
