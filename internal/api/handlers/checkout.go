// checkout.go — корзина (шаги 2–3) и оплата (шаг 4).
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
	"github.com/bigkaa/printhome/checkout-web/internal/flow"
	"github.com/bigkaa/printhome/checkout-web/internal/service"
)

// CreateCart — POST /api/v1/cart.
// Без session_token в теле используется активная сессия визарда.
func (h *APIHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	v, ok := h.visit(w, r)
	if !ok {
		return
	}

	var in service.CreateCartInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.SessionToken == "" {
		in.SessionToken = v.Flow.Sessions.ActiveToken()
	}

	// Черновик сохраняется до проверки, чтобы форма пережила ошибку.
	if err := h.customers.Save(r.Context(), v.State.VisitorID, in.Customer); err != nil {
		h.logger.Warn("Не удалось сохранить черновик покупателя",
			slog.String("visitor_id", v.State.VisitorID),
			slog.String("error", err.Error()),
		)
	}

	cartToken, cart, err := h.checkout.CreateCart(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	v.State.CartToken = cartToken
	h.saveVisit(w, v)
	writeJSON(w, http.StatusCreated, struct {
		CartToken string      `json:"cart_token"`
		Cart      *model.Cart `json:"cart,omitempty"`
		Redirect  string      `json:"redirect"`
	}{cartToken, cart, flow.ConfirmationURL(cartToken)})
}

// GetCart — GET /api/v1/cart/{cartToken}.
func (h *APIHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.checkout.GetCart(r.Context(), chi.URLParam(r, "cartToken"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Cart       *model.Cart `json:"cart"`
		PaymentURL string      `json:"payment_url"`
		BackURL    string      `json:"back_url,omitempty"`
	}{cart, flow.PaymentURL(cart.CartToken), backURL(cart)})
}

// backURL — возврат к шагу 2 с токеном сессии корзины.
func backURL(cart *model.Cart) string {
	if cart.UploadSession == nil {
		return ""
	}
	return flow.CustomerInfoURL(cart.UploadSession.Token)
}

type cartTokenRequest struct {
	CartToken string `json:"cart_token"`
}

// CreateCheckout — POST /api/v1/payment/checkout.
func (h *APIHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	v, ok := h.visit(w, r)
	if !ok {
		return
	}

	var req cartTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CartToken == "" {
		req.CartToken = v.State.CartToken
	}

	session, err := h.checkout.CreateCheckoutSession(r.Context(), req.CartToken)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// CompletePayment — POST /api/v1/payment/complete.
// После подтверждения заказа визард начинается заново.
func (h *APIHandler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	v, ok := h.visit(w, r)
	if !ok {
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
		CartToken string `json:"cart_token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CartToken == "" {
		req.CartToken = v.State.CartToken
	}

	order, err := h.checkout.CompletePayment(r.Context(), v.State.VisitorID, req.SessionID, req.CartToken)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	_ = v.Flow.Sessions.SetActiveToken(r.Context(), "")
	v.Flow.Store.Clear()
	v.SyncSession()
	v.State.CartToken = ""
	h.saveVisit(w, v)

	writeJSON(w, http.StatusOK, struct {
		Order    *model.Order `json:"order"`
		Redirect string       `json:"redirect"`
	}{order, flow.ThanksURL(order.OrderNumber)})
}
