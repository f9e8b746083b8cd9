// checkout.go — корзина и оплата: создание корзины из upload-сессии и данных
// покупателя, получение корзины (с кэшем), платёжная сессия, завершение заказа.
package service

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/printhome/checkout-web/internal/backend"
	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
	"github.com/bigkaa/printhome/checkout-web/internal/validation"
)

var ordersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cw_orders_completed_total",
	Help: "Количество заказов, подтверждённых после оплаты.",
})

// CartAPI — эндпоинты корзины и оплаты backend API.
type CartAPI interface {
	CreateCart(ctx context.Context, req backend.CreateCartRequest) (*backend.CartResponse, error)
	GetCart(ctx context.Context, cartToken string) (*backend.CartResponse, error)
	CreateCheckoutSession(ctx context.Context, cartToken string) (*backend.CheckoutResponse, error)
	PaymentSuccess(ctx context.Context, sessionID, cartToken string) (*backend.PaymentSuccessResponse, error)
}

// CreateCartInput — данные шага «お客様情報».
type CreateCartInput struct {
	SessionToken   string             `json:"session_token"`
	Customer       model.CustomerData `json:"customer"`
	Delivery       *model.AddressData `json:"delivery,omitempty"`
	UseSameAddress bool               `json:"use_same_address"`
}

// FieldValidationError — ошибки полей формы. Ключи адреса доставки
// имеют префикс "delivery_".
type FieldValidationError struct {
	Fields validation.FieldErrors
}

// Error возвращает общее сообщение.
func (e *FieldValidationError) Error() string {
	return ErrValidation.Error()
}

// Unwrap позволяет проверять errors.Is(err, ErrValidation).
func (e *FieldValidationError) Unwrap() error {
	return ErrValidation
}

// CheckoutService — корзина, платёжная сессия и завершение заказа.
type CheckoutService struct {
	api       CartAPI
	cache     *CartCache
	customers *CustomerService
	logger    *slog.Logger
}

// NewCheckoutService создаёт сервис. customers может быть nil:
// тогда черновик покупателя после оплаты не очищается.
func NewCheckoutService(api CartAPI, cache *CartCache, customers *CustomerService, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		api:       api,
		cache:     cache,
		customers: customers,
		logger:    logger.With(slog.String("component", "checkout_service")),
	}
}

// ValidateInput проверяет данные покупателя и, при отдельном адресе доставки,
// адрес доставки. Возвращает nil, если ошибок нет.
func ValidateInput(in CreateCartInput) validation.FieldErrors {
	errs := validation.ValidateCustomer(in.Customer)
	if !in.UseSameAddress {
		var delivery model.AddressData
		if in.Delivery != nil {
			delivery = *in.Delivery
		}
		for field, msg := range validation.ValidateAddress(delivery) {
			errs["delivery_"+field] = msg
		}
	}
	if errs.Valid() {
		return nil
	}
	return errs
}

// CreateCart проверяет данные и создаёт корзину. Возвращает cart token и корзину.
func (s *CheckoutService) CreateCart(ctx context.Context, in CreateCartInput) (string, *model.Cart, error) {
	if in.SessionToken == "" {
		return "", nil, ErrNoSession
	}
	if fields := ValidateInput(in); fields != nil {
		return "", nil, &FieldValidationError{Fields: fields}
	}

	resp, err := s.api.CreateCart(ctx, backend.NewCreateCartRequest(in.SessionToken, in.Customer, in.Delivery, in.UseSameAddress))
	if err != nil {
		s.logger.Warn("Ошибка создания корзины", slog.String("error", err.Error()))
		return "", nil, &OpError{Op: "create_cart", Message: "カートセッション作成中にエラーが発生しました", Err: err}
	}
	if !resp.Success || resp.CartToken == "" {
		return "", nil, &OpError{Op: "create_cart", Message: firstNonEmpty(resp.Error, "カートセッションの作成に失敗しました")}
	}

	if resp.Cart != nil {
		s.cache.Set(resp.CartToken, resp.Cart)
	}
	s.logger.Info("Корзина создана",
		slog.String("session_token", in.SessionToken),
		slog.String("cart_token", resp.CartToken),
	)
	return resp.CartToken, resp.Cart, nil
}

// GetCart возвращает корзину, сначала из кэша.
func (s *CheckoutService) GetCart(ctx context.Context, cartToken string) (*model.Cart, error) {
	if cartToken == "" {
		return nil, ErrNoCart
	}
	if cart, ok := s.cache.Get(cartToken); ok {
		return cart, nil
	}

	resp, err := s.api.GetCart(ctx, cartToken)
	if err != nil {
		s.logger.Warn("Ошибка получения корзины",
			slog.String("cart_token", cartToken),
			slog.String("error", err.Error()),
		)
		return nil, &OpError{Op: "get_cart", Message: "カートセッション取得中にエラーが発生しました", Err: err}
	}
	if !resp.Success || resp.Cart == nil {
		return nil, &OpError{Op: "get_cart", Message: firstNonEmpty(resp.Error, "カートセッションの取得に失敗しました")}
	}

	s.cache.Set(cartToken, resp.Cart)
	return resp.Cart, nil
}

// CreateCheckoutSession создаёт платёжную сессию для корзины.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, cartToken string) (*model.CheckoutSession, error) {
	if cartToken == "" {
		return nil, ErrNoCart
	}

	resp, err := s.api.CreateCheckoutSession(ctx, cartToken)
	if err != nil {
		s.logger.Warn("Ошибка создания платёжной сессии",
			slog.String("cart_token", cartToken),
			slog.String("error", err.Error()),
		)
		return nil, &OpError{Op: "create_checkout", Message: "決済セッション作成中にエラーが発生しました", Err: err}
	}
	if !resp.Success || resp.CheckoutURL == "" {
		return nil, &OpError{Op: "create_checkout", Message: firstNonEmpty(resp.Error, "決済セッションの作成に失敗しました")}
	}

	return &model.CheckoutSession{CheckoutURL: resp.CheckoutURL, SessionID: resp.SessionID}, nil
}

// CompletePayment подтверждает заказ после оплаты. При успехе корзина
// удаляется из кэша, черновик покупателя visitorID очищается.
func (s *CheckoutService) CompletePayment(ctx context.Context, visitorID, sessionID, cartToken string) (*model.Order, error) {
	if sessionID == "" || cartToken == "" {
		return nil, ErrPaymentInfoMissing
	}

	resp, err := s.api.PaymentSuccess(ctx, sessionID, cartToken)
	if err != nil {
		s.logger.Warn("Ошибка подтверждения оплаты",
			slog.String("cart_token", cartToken),
			slog.String("error", err.Error()),
		)
		return nil, &OpError{Op: "payment_success", Message: "決済処理中にエラーが発生しました", Err: err}
	}
	if !resp.Success || resp.Order == nil {
		return nil, &OpError{Op: "payment_success", Message: firstNonEmpty(resp.Error, "決済処理に失敗しました")}
	}

	s.cache.Delete(cartToken)
	if s.customers != nil && visitorID != "" {
		if err := s.customers.Clear(ctx, visitorID); err != nil {
			s.logger.Warn("Не удалось очистить черновик покупателя",
				slog.String("visitor_id", visitorID),
				slog.String("error", err.Error()),
			)
		}
	}

	ordersCompletedTotal.Inc()
	s.logger.Info("Заказ подтверждён",
		slog.String("order_number", resp.Order.OrderNumber),
		slog.String("cart_token", cartToken),
	)
	return resp.Order, nil
}
