// Пакет backend — HTTP-клиент backend API Print Home
// (хранение изображений, upload-сессии, корзина, оплата).
// Поддерживает TLS с кастомным CA (CW_BACKEND_CA_CERT_PATH).
package backend

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики обращений к backend API.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cw_backend_requests_total",
		Help: "Количество запросов к backend API (по операции и HTTP-статусу).",
	}, []string{"operation", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cw_backend_request_duration_seconds",
		Help:    "Длительность запросов к backend API в секундах.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"operation"})
)

// maxErrorBody — сколько байт тела ответа сохраняется в APIError.
const maxErrorBody = 4096

// APIError — backend API ответил статусом вне диапазона 2xx.
type APIError struct {
	// Status — HTTP-статус ответа
	Status int
	// Message — поле message/error из JSON-тела, если удалось извлечь
	Message string
	// Body — начало тела ответа
	Body string
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("API call failed: %d %s", e.Status, http.StatusText(e.Status))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// IsNotFound — true, если ошибка означает 404 от backend API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client — HTTP-клиент backend API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	publicBaseURL string
	logger        *slog.Logger
}

// New создаёт клиент backend API.
// baseURL — адрес API для server-to-server вызовов (например, http://nginx).
// publicBaseURL — адрес API, доступный из браузера (для URL изображений).
// caCertPath — путь к CA-сертификату для TLS (пустая строка — стандартный пул).
// timeout — таймаут HTTP-запросов (CW_BACKEND_TIMEOUT).
func New(baseURL, publicBaseURL, caCertPath string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
	}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата backend API: %w", err)
		}
		transport.TLSClientConfig = tlsConfig
		logger.Info("CA-сертификат backend API добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	if publicBaseURL == "" {
		publicBaseURL = baseURL
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		baseURL:       normalizeURL(baseURL),
		publicBaseURL: normalizeURL(publicBaseURL),
		logger:        logger.With(slog.String("component", "backend_client")),
	}, nil
}

// BaseURL возвращает адрес backend API для server-to-server вызовов.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ImageURL формирует публичный URL изображения сессии:
// {publicBaseURL}/api/images/file/{token}/{storedFilename}.
func (c *Client) ImageURL(token, storedFilename string) string {
	return fmt.Sprintf("%s/api/images/file/%s/%s", c.publicBaseURL, url.PathEscape(token), url.PathEscape(storedFilename))
}

// request — параметры одного вызова backend API.
type request struct {
	operation   string
	method      string
	path        string
	body        io.Reader
	contentType string
}

// doJSON выполняет запрос и декодирует JSON-ответ в out.
// Статус вне 2xx возвращается как *APIError.
func (c *Client) doJSON(ctx context.Context, r request, out any) error {
	start := time.Now()
	status := "error"
	defer func() {
		requestsTotal.WithLabelValues(r.operation, status).Inc()
		requestDuration.WithLabelValues(r.operation).Observe(time.Since(start).Seconds())
	}()

	body := r.body
	if body == nil {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return fmt.Errorf("создание запроса %s: %w", r.operation, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return fmt.Errorf("запрос %s к %s: %w", r.operation, c.baseURL, err)
	}
	defer resp.Body.Close()

	status = strconv.Itoa(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Status: resp.StatusCode, Body: string(raw), Message: extractMessage(raw)}
		c.logger.Warn("backend API вернул ошибку",
			slog.String("operation", r.operation),
			slog.Int("status", resp.StatusCode),
			slog.String("message", apiErr.Message),
		)
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("декодирование ответа %s: %w", r.operation, err)
	}

	c.logger.Debug("backend API вызов завершён",
		slog.String("operation", r.operation),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// extractMessage извлекает поле message или error из JSON-тела ошибки.
func extractMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA-сертификатом.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("в файле %s нет PEM-сертификатов", caCertPath)
	}

	return &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}, nil
}

// normalizeURL убирает trailing slash из URL.
func normalizeURL(rawURL string) string {
	return strings.TrimRight(rawURL, "/")
}
