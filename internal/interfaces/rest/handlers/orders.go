package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/k10r/paymill-shopware/internal/application"
	"github.com/k10r/paymill-shopware/internal/application/services"
	"github.com/k10r/paymill-shopware/internal/interfaces/rest"
)

func (h *Handlers) CaptureOrder(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := decodeJSON(r, &req, true); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	order, err := h.captureService.Capture(r.Context(), services.CaptureCommand{
		OrderID:     r.PathValue("orderID"),
		Description: req.Description,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.cancelService.Cancel(r.Context(), r.PathValue("orderID"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.queryService.GetOrder(r.Context(), r.PathValue("orderID"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

// ListOrdersNeedingReview lists orders where money moved but the checkout
// failed afterwards. ?limit caps the batch.
func (h *Handlers) ListOrdersNeedingReview(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			rest.WriteError(w, application.NewInvalidInputError(fmt.Errorf("invalid limit %q", raw)), h.logger)
			return
		}
		limit = n
	}

	orders, err := h.queryService.ListNeedingReview(r.Context(), limit)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, toOrderResponses(orders))
}

// GetOrderTransaction returns the gateway's transaction body unmodified.
func (h *Handlers) GetOrderTransaction(w http.ResponseWriter, r *http.Request) {
	env, err := h.queryService.FetchTransaction(r.Context(), r.PathValue("orderID"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	raw := env.String()
	if raw == "" {
		raw = "null"
	}
	rest.WriteJSON(w, http.StatusOK, json.RawMessage(raw))
}
