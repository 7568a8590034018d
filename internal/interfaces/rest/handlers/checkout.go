package handlers

import (
	"net/http"

	"github.com/k10r/paymill-shopware/internal/application"
	"github.com/k10r/paymill-shopware/internal/interfaces/rest"
)

// Checkout handles POST /api/v1/checkouts.
func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := decodeJSON(r, &req, false); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	res, err := h.checkoutService.Checkout(r.Context(), req.toCommand())
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, toCheckoutResponse(res))
}
