// Пакет service — бизнес-логика checkout-web: загрузка, сверка изображений
// сессии, корзина и оплата, черновик данных покупателя.
package service

import "errors"

// Ошибки сервисов.
var (
	// ErrNoSession — у визарда нет активного session token.
	ErrNoSession = errors.New("セッショントークンが指定されていません。")
	// ErrNoCart — не передан cart token.
	ErrNoCart = errors.New("カート情報が見つかりません")
	// ErrPaymentInfoMissing — для завершения оплаты не хватает session_id или cart token.
	ErrPaymentInfoMissing = errors.New("決済情報が不足しています")
	// ErrValidation — данные покупателя не прошли проверку.
	ErrValidation = errors.New("入力内容に誤りがあります。")
	// ErrClosed — компонент остановлен, операция не выполняется.
	ErrClosed = errors.New("компонент остановлен")
)

// OpError — сбой операции с backend API. Message пригоден для показа
// пользователю, Err — исходная причина (nil, если бэкенд ответил success=false).
type OpError struct {
	Op      string
	Message string
	Err     error
}

// Error возвращает сообщение для пользователя.
func (e *OpError) Error() string {
	return e.Message
}

// Unwrap возвращает исходную ошибку.
func (e *OpError) Unwrap() error {
	return e.Err
}

// firstNonEmpty возвращает первую непустую строку.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
