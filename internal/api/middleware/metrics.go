// metrics.go — Prometheus HTTP метрики: cw_http_requests_total,
// cw_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cw_http_requests_total",
			Help: "Общее количество HTTP-запросов к checkout-web",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cw_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к checkout-web в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Metrics собирает количество и длительность запросов по нормализованному пути.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// dynamicPrefixes — пути с параметром в последнем сегменте.
var dynamicPrefixes = []struct {
	prefix string
	result string
}{
	{"/api/v1/upload/files/", "/api/v1/upload/files/{index}"},
	{"/api/v1/previews/", "/api/v1/previews/{id}"},
	{"/api/v1/session/images/", "/api/v1/session/images/{filename}"},
	{"/api/v1/cart/", "/api/v1/cart/{cartToken}"},
}

// normalizePath заменяет токены и имена файлов в пути шаблоном,
// чтобы не раздувать кардинальность метрик.
func normalizePath(path string) string {
	for _, p := range dynamicPrefixes {
		if len(path) > len(p.prefix) && strings.HasPrefix(path, p.prefix) {
			return p.result
		}
	}
	if strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/health/") || path == "/metrics" {
		return path
	}
	return "other"
}
