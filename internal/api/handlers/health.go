// health.go — probes checkout-web.
// /health/live — процесс жив
// /health/ready — backend API доступен (по данным dephealth), PostgreSQL при наличии
// /metrics — Prometheus метрики
package handlers

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/printhome/checkout-web/internal/config"
)

// ReadinessChecker — проверка готовности необязательной зависимости.
type ReadinessChecker interface {
	Name() string
	// CheckReady возвращает статус ("ok", "fail") и сообщение.
	CheckReady(ctx context.Context) (status string, message string)
}

// DependencyHealth — текущее состояние зависимостей (dephealth).
type DependencyHealth interface {
	Health() map[string]bool
}

// criticalDependency — префикс ключа критичной зависимости в dephealth.
const criticalDependency = "backend-api"

// HealthHandler — обработчик probes.
type HealthHandler struct {
	deps        DependencyHealth
	checkers    []ReadinessChecker
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик probes. deps может быть nil.
func NewHealthHandler(deps DependencyHealth, checkers ...ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		deps:        deps,
		checkers:    checkers,
		promHandler: promhttp.Handler(),
	}
}

type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string                       `json:"status"`
	Timestamp string                       `json:"timestamp"`
	Version   string                       `json:"version"`
	Service   string                       `json:"service"`
	Checks    map[string]healthCheckResult `json:"checks,omitempty"`
}

// HealthLive — liveness probe.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "checkout-web",
	})
}

// HealthReady — readiness probe. Недоступный backend API — fail (503),
// недоступная необязательная зависимость — degraded (200).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "checkout-web",
		Checks:    make(map[string]healthCheckResult),
	}

	if h.deps != nil {
		health := h.deps.Health()
		keys := make([]string, 0, len(health))
		for k := range health {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if health[k] {
				resp.Checks[k] = healthCheckResult{Status: "ok"}
				continue
			}
			resp.Checks[k] = healthCheckResult{Status: "fail", Message: "зависимость недоступна"}
			if strings.HasPrefix(k, criticalDependency) {
				resp.Status = "fail"
			} else if resp.Status == "ok" {
				resp.Status = "degraded"
			}
		}
	}

	for _, c := range h.checkers {
		status, msg := c.CheckReady(r.Context())
		resp.Checks[c.Name()] = healthCheckResult{Status: status, Message: msg}
		if status != "ok" && resp.Status == "ok" {
			resp.Status = "degraded"
		}
	}

	code := http.StatusOK
	if resp.Status == "fail" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}
