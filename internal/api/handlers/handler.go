// handler.go — обработчик API checkout-web: общие зависимости
// и преобразование ошибок сервисного слоя в HTTP-ответы.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/printhome/checkout-web/internal/api/errors"
	"github.com/bigkaa/printhome/checkout-web/internal/api/middleware"
	"github.com/bigkaa/printhome/checkout-web/internal/service"
	"github.com/bigkaa/printhome/checkout-web/internal/staging"
)

// APIHandler — обработчик эндпоинтов визарда.
type APIHandler struct {
	previews       *staging.PreviewRegistry
	orchestrator   *service.UploadOrchestrator
	checkout       *service.CheckoutService
	customers      *service.CustomerService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewAPIHandler создаёт обработчик.
// maxUploadBytes — ограничение тела multipart-запроса с изображениями.
func NewAPIHandler(
	previews *staging.PreviewRegistry,
	orchestrator *service.UploadOrchestrator,
	checkout *service.CheckoutService,
	customers *service.CustomerService,
	maxUploadBytes int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		previews:       previews,
		orchestrator:   orchestrator,
		checkout:       checkout,
		customers:      customers,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "api_handler")),
	}
}

// visit возвращает состояние посетителя. Без middleware Visitor — 500.
func (h *APIHandler) visit(w http.ResponseWriter, r *http.Request) (*middleware.Visit, bool) {
	v := middleware.VisitFromContext(r.Context())
	if v == nil {
		apierrors.InternalError(w, "состояние визарда не инициализировано")
		return nil, false
	}
	return v, true
}

// saveVisit записывает cookie; ошибка только логируется.
func (h *APIHandler) saveVisit(w http.ResponseWriter, v *middleware.Visit) {
	if err := v.Save(w); err != nil {
		h.logger.Error("Не удалось записать cookie визарда",
			slog.String("visitor_id", v.State.VisitorID),
			slog.String("error", err.Error()),
		)
	}
}

// writeServiceError преобразует ошибку сервисного слоя в ответ.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error) {
	var fieldErr *service.FieldValidationError
	var opErr *service.OpError

	switch {
	case errors.As(err, &fieldErr):
		apierrors.FieldErrors(w, fieldErr.Error(), fieldErr.Fields)
	case errors.Is(err, service.ErrNoSession):
		apierrors.NoSession(w, err.Error())
	case errors.Is(err, service.ErrNoCart), errors.Is(err, service.ErrPaymentInfoMissing):
		apierrors.ValidationError(w, err.Error())
	case errors.As(err, &opErr):
		apierrors.BackendError(w, opErr.Message)
	default:
		h.logger.Error("Внутренняя ошибка", slog.String("error", err.Error()))
		apierrors.InternalError(w, "внутренняя ошибка сервера")
	}
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса; ошибка — 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return false
	}
	return true
}
