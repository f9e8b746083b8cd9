// Пакет errors — ответы с ошибками checkout-web в едином формате:
// {"error": {"code": "...", "message": "..."}}; для ошибок полей формы
// добавляется "errors": {"поле": "сообщение"}.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeNoSession       = "NO_SESSION"
	CodeBackendError    = "BACKEND_ERROR"
	CodeUploadFailed    = "UPLOAD_FAILED"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeInternalError   = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
	Items   any               `json:"items,omitempty"`
}

// WriteError записывает ответ ошибки.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	write(w, statusCode, errorDetail{Code: code, Message: message})
}

func write(w http.ResponseWriter, statusCode int, detail errorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: detail})
}

// ValidationError — 400 некорректный запрос.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// FieldErrors — 422 ошибки полей формы.
func FieldErrors(w http.ResponseWriter, message string, fields map[string]string) {
	write(w, http.StatusUnprocessableEntity, errorDetail{
		Code:    CodeValidationError,
		Message: message,
		Errors:  fields,
	})
}

// Unprocessable — 422 с произвольным списком ошибок (например, по файлам).
func Unprocessable(w http.ResponseWriter, message string, items any) {
	write(w, http.StatusUnprocessableEntity, errorDetail{
		Code:    CodeValidationError,
		Message: message,
		Items:   items,
	})
}

// NotFound — 404.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// NoSession — 409 у визарда нет активной upload-сессии.
func NoSession(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeNoSession, message)
}

// BackendError — 502 backend API недоступен или ответил ошибкой.
func BackendError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeBackendError, message)
}

// UploadFailed — 422 загрузка изображений отклонена.
func UploadFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnprocessableEntity, CodeUploadFailed, message)
}

// PayloadTooLarge — 413.
func PayloadTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, message)
}

// InternalError — 500.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
