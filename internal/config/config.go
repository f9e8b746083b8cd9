// Пакет config — загрузка и валидация конфигурации checkout-web
// из переменных окружения (префикс CW_) и файла правил загрузки (YAML).
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bigkaa/printhome/checkout-web/internal/validation"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации checkout-web.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- Backend API ---

	// Адрес backend API для server-to-server вызовов
	BackendURL string
	// Адрес backend API, доступный из браузера (URL изображений)
	PublicAPIURL string
	// Путь к CA-сертификату backend API (опционально)
	BackendCACertPath string
	// Таймаут запросов к backend API
	BackendTimeout time.Duration
	// Health endpoint backend API для dephealth
	BackendHealthPath string

	// --- Правила загрузки ---

	// Путь к YAML-файлу правил (опционально)
	UploadRulesFile string
	// Ограничения на изображения
	UploadRules validation.Config
	// Проверять, что изображение декодируется (отсев повреждённых файлов)
	VerifyDecodable bool

	// --- Состояние визарда ---

	// Ключ шифрования cookie визарда (пусто — случайный, непостоянный между рестартами)
	FlowCookieSecret string
	// Secure flag cookie визарда
	FlowCookieSecure bool
	// Максимальный возраст cookie визарда
	FlowCookieMaxAge time.Duration
	// Максимальное число визардов в памяти
	FlowCacheSize int
	// Время жизни визарда в памяти с последнего запроса посетителя
	FlowTTL time.Duration

	// --- Кэш корзин ---

	CartCacheSize int
	CartCacheTTL  time.Duration

	// --- PostgreSQL (опционально, черновики данных покупателя) ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// Срок хранения черновика покупателя с последнего изменения
	DraftRetention time.Duration
	// Период очистки устаревших черновиков
	DraftPurgeInterval time.Duration

	// --- Мониторинг зависимостей ---

	// Группа в метриках dephealth
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// Добавлять лейбл isentry=yes
	DephealthIsEntry bool

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// CW_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("CW_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("CW_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("CW_PORT: значение %d вне диапазона 1-65535", cfg.Port)
	}

	// CW_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("CW_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("CW_LOG_LEVEL: %w", err)
	}

	// CW_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("CW_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("CW_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("CW_HTTP_READ_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CW_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("CW_HTTP_WRITE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CW_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("CW_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CW_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- Backend API ---

	// CW_BACKEND_URL — адрес backend API (по умолчанию http://nginx)
	cfg.BackendURL = strings.TrimRight(getEnvDefault("CW_BACKEND_URL", "http://nginx"), "/")
	if err := validateURL(cfg.BackendURL); err != nil {
		return nil, fmt.Errorf("CW_BACKEND_URL: %w", err)
	}

	// CW_PUBLIC_API_URL — публичный адрес backend API (по умолчанию http://localhost:8080)
	cfg.PublicAPIURL = strings.TrimRight(getEnvDefault("CW_PUBLIC_API_URL", "http://localhost:8080"), "/")
	if err := validateURL(cfg.PublicAPIURL); err != nil {
		return nil, fmt.Errorf("CW_PUBLIC_API_URL: %w", err)
	}

	// CW_BACKEND_CA_CERT_PATH — CA-сертификат backend API (опционально)
	cfg.BackendCACertPath = getEnvDefault("CW_BACKEND_CA_CERT_PATH", "")

	// CW_BACKEND_TIMEOUT — таймаут запросов (по умолчанию 60s, загрузка до 200 MiB)
	cfg.BackendTimeout, err = getEnvDuration("CW_BACKEND_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CW_BACKEND_TIMEOUT: %w", err)
	}

	// CW_BACKEND_HEALTH_PATH — health endpoint backend API (по умолчанию /up)
	cfg.BackendHealthPath = getEnvDefault("CW_BACKEND_HEALTH_PATH", "/up")

	// --- Правила загрузки ---

	// CW_UPLOAD_RULES_FILE — YAML с ограничениями (опционально)
	cfg.UploadRulesFile = getEnvDefault("CW_UPLOAD_RULES_FILE", "")
	cfg.UploadRules, err = LoadUploadRules(cfg.UploadRulesFile)
	if err != nil {
		return nil, fmt.Errorf("CW_UPLOAD_RULES_FILE: %w", err)
	}

	// CW_VERIFY_DECODABLE — отсев повреждённых изображений (по умолчанию true)
	cfg.VerifyDecodable, err = getEnvBool("CW_VERIFY_DECODABLE", true)
	if err != nil {
		return nil, fmt.Errorf("CW_VERIFY_DECODABLE: %w", err)
	}

	// --- Состояние визарда ---

	cfg.FlowCookieSecret = getEnvDefault("CW_FLOW_COOKIE_SECRET", "")
	cfg.FlowCookieSecure, err = getEnvBool("CW_FLOW_COOKIE_SECURE", false)
	if err != nil {
		return nil, fmt.Errorf("CW_FLOW_COOKIE_SECURE: %w", err)
	}
	cfg.FlowCookieMaxAge, err = getEnvDuration("CW_FLOW_COOKIE_MAX_AGE", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("CW_FLOW_COOKIE_MAX_AGE: %w", err)
	}

	cfg.FlowCacheSize, err = getEnvInt("CW_FLOW_CACHE_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("CW_FLOW_CACHE_SIZE: %w", err)
	}
	if cfg.FlowCacheSize < 1 {
		return nil, fmt.Errorf("CW_FLOW_CACHE_SIZE: значение должно быть >= 1")
	}
	cfg.FlowTTL, err = getEnvDuration("CW_FLOW_TTL", 2*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("CW_FLOW_TTL: %w", err)
	}

	// --- Кэш корзин ---

	cfg.CartCacheSize, err = getEnvInt("CW_CART_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("CW_CART_CACHE_SIZE: %w", err)
	}
	if cfg.CartCacheSize < 1 {
		return nil, fmt.Errorf("CW_CART_CACHE_SIZE: значение должно быть >= 1")
	}
	cfg.CartCacheTTL, err = getEnvDuration("CW_CART_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CW_CART_CACHE_TTL: %w", err)
	}

	// --- PostgreSQL ---

	// CW_DB_HOST — если не задан, черновики хранятся в памяти
	cfg.DBHost = getEnvDefault("CW_DB_HOST", "")
	if cfg.DBHost != "" {
		cfg.DBPort, err = getEnvInt("CW_DB_PORT", 5432)
		if err != nil {
			return nil, fmt.Errorf("CW_DB_PORT: %w", err)
		}
		if cfg.DBName, err = getEnvRequired("CW_DB_NAME"); err != nil {
			return nil, err
		}
		if cfg.DBUser, err = getEnvRequired("CW_DB_USER"); err != nil {
			return nil, err
		}
		if cfg.DBPassword, err = getEnvRequired("CW_DB_PASSWORD"); err != nil {
			return nil, err
		}
		cfg.DBSSLMode = getEnvDefault("CW_DB_SSL_MODE", "disable")
		validSSLModes := map[string]bool{
			"disable": true, "require": true, "verify-ca": true, "verify-full": true,
		}
		if !validSSLModes[cfg.DBSSLMode] {
			return nil, fmt.Errorf("CW_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
		}
	}

	cfg.DraftRetention, err = getEnvDuration("CW_DRAFT_RETENTION", 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("CW_DRAFT_RETENTION: %w", err)
	}
	cfg.DraftPurgeInterval, err = getEnvDuration("CW_DRAFT_PURGE_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("CW_DRAFT_PURGE_INTERVAL: %w", err)
	}

	// --- Мониторинг зависимостей ---

	cfg.DephealthGroup = getEnvDefault("CW_DEPHEALTH_GROUP", "printhome")
	cfg.DephealthCheckInterval, err = getEnvDuration("CW_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CW_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("CW_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CW_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseEnabled — задано ли подключение к PostgreSQL.
func (c *Config) DatabaseEnabled() bool {
	return c.DBHost != ""
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения (для golang-migrate и лейблов dephealth).
func (c *Config) DatabaseURL(scheme string) string {
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// MaxUploadBodyBytes — верхняя граница тела multipart-запроса с изображениями.
func (c *Config) MaxUploadBodyBytes() int64 {
	return int64(c.UploadRules.MaxImages)*c.UploadRules.MaxFileSizeBytes + validation.MiB
}

// LoadUploadRules читает ограничения загрузки из YAML поверх значений по умолчанию.
// Пустой путь — значения по умолчанию.
func LoadUploadRules(path string) (validation.Config, error) {
	rules := validation.DefaultConfig()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("чтение файла правил: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("разбор файла правил %s: %w", path, err)
	}
	if err := rules.Check(); err != nil {
		return rules, fmt.Errorf("файл правил %s: %w", path, err)
	}
	return rules, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// validateURL проверяет, что строка — абсолютный http(s) URL.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("некорректный URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q должен начинаться с http:// или https://", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("в URL %q не указан хост", raw)
	}
	return nil
}
