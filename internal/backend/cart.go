// cart.go — корзина и оплата: создание корзины, получение, checkout, завершение.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
)

// CreateCartRequest — тело POST /api/cart/create.
// Поля delivery_* заполняются только при UseSameAddress=false.
type CreateCartRequest struct {
	SessionToken         string `json:"session_token"`
	CustomerName         string `json:"customer_name"`
	CustomerEmail        string `json:"customer_email"`
	CustomerPhone        string `json:"customer_phone"`
	PostalCode           string `json:"postal_code"`
	Prefecture           string `json:"prefecture"`
	City                 string `json:"city"`
	AddressLine1         string `json:"address_line1"`
	AddressLine2         string `json:"address_line2,omitempty"`
	UseSameAddress       bool   `json:"use_same_address"`
	Notes                string `json:"notes,omitempty"`
	DeliveryPostalCode   string `json:"delivery_postal_code,omitempty"`
	DeliveryPrefecture   string `json:"delivery_prefecture,omitempty"`
	DeliveryCity         string `json:"delivery_city,omitempty"`
	DeliveryAddressLine1 string `json:"delivery_address_line1,omitempty"`
	DeliveryAddressLine2 string `json:"delivery_address_line2,omitempty"`
}

// NewCreateCartRequest собирает тело запроса из данных покупателя.
// delivery игнорируется, если useSameAddress или delivery == nil.
func NewCreateCartRequest(token string, customer model.CustomerData, delivery *model.AddressData, useSameAddress bool) CreateCartRequest {
	req := CreateCartRequest{
		SessionToken:   token,
		CustomerName:   customer.CustomerName,
		CustomerEmail:  customer.CustomerEmail,
		CustomerPhone:  customer.CustomerPhone,
		PostalCode:     customer.PostalCode,
		Prefecture:     customer.Prefecture,
		City:           customer.City,
		AddressLine1:   customer.AddressLine1,
		AddressLine2:   customer.AddressLine2,
		UseSameAddress: useSameAddress,
		Notes:          customer.Notes,
	}
	if !useSameAddress && delivery != nil {
		req.DeliveryPostalCode = delivery.PostalCode
		req.DeliveryPrefecture = delivery.Prefecture
		req.DeliveryCity = delivery.City
		req.DeliveryAddressLine1 = delivery.AddressLine1
		req.DeliveryAddressLine2 = delivery.AddressLine2
	}
	return req
}

// CartResponse — ответ создания и получения корзины.
type CartResponse struct {
	Success   bool        `json:"success"`
	CartToken string      `json:"cart_token"`
	Cart      *model.Cart `json:"cart"`
	Error     string      `json:"error"`
}

// CheckoutResponse — ответ POST /api/payment/checkout/create.
type CheckoutResponse struct {
	Success     bool   `json:"success"`
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
	Error       string `json:"error"`
}

// PaymentSuccessResponse — ответ POST /api/payment/success.
type PaymentSuccessResponse struct {
	Success   bool         `json:"success"`
	Order     *model.Order `json:"order"`
	SessionID string       `json:"session_id"`
	Error     string       `json:"error"`
}

// CreateCart создаёт корзину из upload-сессии и данных покупателя.
func (c *Client) CreateCart(ctx context.Context, req CreateCartRequest) (*CartResponse, error) {
	var out CartResponse
	if err := c.postJSON(ctx, "create_cart", "/api/cart/create", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCart возвращает корзину по cart token.
func (c *Client) GetCart(ctx context.Context, cartToken string) (*CartResponse, error) {
	var out CartResponse
	err := c.doJSON(ctx, request{
		operation: "get_cart",
		method:    http.MethodGet,
		path:      "/api/cart/" + url.PathEscape(cartToken),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCheckoutSession создаёт платёжную сессию для корзины.
func (c *Client) CreateCheckoutSession(ctx context.Context, cartToken string) (*CheckoutResponse, error) {
	body := map[string]string{"cart_token": cartToken}
	var out CheckoutResponse
	if err := c.postJSON(ctx, "create_checkout", "/api/payment/checkout/create", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PaymentSuccess завершает заказ после оплаты.
func (c *Client) PaymentSuccess(ctx context.Context, sessionID, cartToken string) (*PaymentSuccessResponse, error) {
	body := map[string]string{"session_id": sessionID, "cart_token": cartToken}
	var out PaymentSuccessResponse
	if err := c.postJSON(ctx, "payment_success", "/api/payment/success", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// postJSON сериализует body в JSON и выполняет POST.
func (c *Client) postJSON(ctx context.Context, operation, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("сериализация запроса %s: %w", operation, err)
	}
	return c.doJSON(ctx, request{
		operation:   operation,
		method:      http.MethodPost,
		path:        path,
		body:        bytes.NewReader(data),
		contentType: "application/json",
	}, out)
}
