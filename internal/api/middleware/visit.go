// visit.go — привязка запроса к состоянию визарда посетителя.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bigkaa/printhome/checkout-web/internal/flow"
	"github.com/bigkaa/printhome/checkout-web/internal/service"
)

type contextKey struct{}

// Visit — состояние посетителя в рамках одного запроса.
type Visit struct {
	// State — содержимое cookie визарда
	State flow.State
	// Flow — серверное состояние визарда (staging и изображения сессии)
	Flow *service.Flow
	// Restarted — cookie был повреждён, визард начат заново
	Restarted bool

	cookie *flow.Cookie
}

// Save записывает изменённое состояние в cookie. Вызывается до записи тела ответа.
func (v *Visit) Save(w http.ResponseWriter) error {
	return v.cookie.Write(w, v.State)
}

// SyncSession переносит активный токен reconciler в cookie.
func (v *Visit) SyncSession() {
	v.State.SessionToken = v.Flow.Sessions.ActiveToken()
}

// VisitFromContext возвращает состояние посетителя или nil.
func VisitFromContext(ctx context.Context) *Visit {
	v, _ := ctx.Value(contextKey{}).(*Visit)
	return v
}

// WithVisit помещает состояние посетителя в контекст.
func WithVisit(ctx context.Context, v *Visit) context.Context {
	return context.WithValue(ctx, contextKey{}, v)
}

// Visitor читает cookie визарда, находит или создаёт состояние посетителя
// и помещает его в контекст. Новый или восстановленный посетитель получает
// cookie сразу. Если серверное состояние было утеряно (рестарт, вытеснение),
// активный токен восстанавливается из cookie.
func Visitor(cookie *flow.Cookie, flows *service.FlowRegistry, logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With(slog.String("component", "visitor"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st, ok, err := cookie.Read(r)
			restarted := false
			if err != nil {
				restarted = errors.Is(err, flow.ErrInvalidState)
				log.Warn("Cookie визарда отброшен", slog.String("error", err.Error()))
				ok = false
			}

			v := &Visit{cookie: cookie, Restarted: restarted}
			if ok {
				v.State = st
			}
			v.Flow = flows.GetOrCreate(v.State.VisitorID)
			if tr := traceFromContext(r.Context()); tr != nil {
				tr.visitorID = v.Flow.ID
				tr.restarted = restarted
			}

			if !ok || v.Flow.ID != v.State.VisitorID {
				v.State = flow.State{VisitorID: v.Flow.ID}
				if err := v.Save(w); err != nil {
					log.Error("Не удалось записать cookie визарда", slog.String("error", err.Error()))
				}
			} else if v.State.SessionToken != "" && v.Flow.Sessions.ActiveToken() == "" {
				// Ошибка загрузки видна в состоянии reconciler.
				_ = v.Flow.Sessions.SetActiveToken(r.Context(), v.State.SessionToken)
			}

			next.ServeHTTP(w, r.WithContext(WithVisit(r.Context(), v)))
		})
	}
}
