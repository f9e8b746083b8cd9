package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8040 {
		t.Errorf("Port = %d, ожидается 8040", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.BackendURL != "http://nginx" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if cfg.PublicAPIURL != "http://localhost:8080" {
		t.Errorf("PublicAPIURL = %q", cfg.PublicAPIURL)
	}
	if cfg.UploadRules.MaxImages != 20 {
		t.Errorf("MaxImages = %d, ожидается 20", cfg.UploadRules.MaxImages)
	}
	if !cfg.VerifyDecodable {
		t.Error("VerifyDecodable по умолчанию должен быть true")
	}
	if cfg.DatabaseEnabled() {
		t.Error("без CW_DB_HOST база данных не должна быть включена")
	}
	if cfg.FlowTTL != 2*time.Hour {
		t.Errorf("FlowTTL = %v", cfg.FlowTTL)
	}
	if cfg.DraftRetention != 7*24*time.Hour || cfg.DraftPurgeInterval != time.Hour {
		t.Errorf("DraftRetention = %v, DraftPurgeInterval = %v", cfg.DraftRetention, cfg.DraftPurgeInterval)
	}
	if got := cfg.MaxUploadBodyBytes(); got != 21<<20 {
		t.Errorf("MaxUploadBodyBytes = %d, ожидается %d", got, 21<<20)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setEnvs(t, map[string]string{
		"CW_PORT":            "9000",
		"CW_LOG_LEVEL":       "debug",
		"CW_LOG_FORMAT":      "text",
		"CW_BACKEND_URL":     "https://api.printhome.test/",
		"CW_BACKEND_TIMEOUT": "15s",
		"CW_FLOW_CACHE_SIZE": "50",
		"CW_DB_HOST":         "db",
		"CW_DB_NAME":         "printhome",
		"CW_DB_USER":         "printhome",
		"CW_DB_PASSWORD":     "p@ss word",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.Port != 9000 || cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "text" {
		t.Errorf("неожиданные параметры сервера: %+v", cfg)
	}
	if cfg.BackendURL != "https://api.printhome.test" {
		t.Errorf("BackendURL = %q, trailing slash должен быть удалён", cfg.BackendURL)
	}
	if cfg.BackendTimeout != 15*time.Second {
		t.Errorf("BackendTimeout = %v", cfg.BackendTimeout)
	}
	if !cfg.DatabaseEnabled() || cfg.DBPort != 5432 || cfg.DBSSLMode != "disable" {
		t.Errorf("неожиданные параметры БД: %+v", cfg)
	}
	if got := cfg.DatabaseURL("pgx5"); got != "pgx5://printhome:p%40ss%20word@db:5432/printhome?sslmode=disable" {
		t.Errorf("DatabaseURL = %q", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		envs map[string]string
		want string
	}{
		{"некорректный порт", map[string]string{"CW_PORT": "abc"}, "CW_PORT"},
		{"порт вне диапазона", map[string]string{"CW_PORT": "70000"}, "CW_PORT"},
		{"уровень логов", map[string]string{"CW_LOG_LEVEL": "trace"}, "CW_LOG_LEVEL"},
		{"формат логов", map[string]string{"CW_LOG_FORMAT": "xml"}, "CW_LOG_FORMAT"},
		{"URL без схемы", map[string]string{"CW_BACKEND_URL": "nginx"}, "CW_BACKEND_URL"},
		{"длительность", map[string]string{"CW_BACKEND_TIMEOUT": "10"}, "CW_BACKEND_TIMEOUT"},
		{"нулевая длительность", map[string]string{"CW_FLOW_TTL": "0s"}, "CW_FLOW_TTL"},
		{"булево", map[string]string{"CW_VERIFY_DECODABLE": "yes"}, "CW_VERIFY_DECODABLE"},
		{"срок черновиков", map[string]string{"CW_DRAFT_RETENTION": "week"}, "CW_DRAFT_RETENTION"},
		{"БД без имени", map[string]string{"CW_DB_HOST": "db"}, "CW_DB_NAME"},
		{"файл правил", map[string]string{"CW_UPLOAD_RULES_FILE": "/nonexistent/rules.yaml"}, "CW_UPLOAD_RULES_FILE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, tt.envs)
			_, err := Load()
			if err == nil {
				t.Fatal("ожидалась ошибка")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ошибка %q не содержит %q", err, tt.want)
			}
		})
	}
}

func TestLoadUploadRules(t *testing.T) {
	dir := t.TempDir()

	partial := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(partial, []byte("max_images: 5\nmax_file_size_bytes: 1048576\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	rules, err := LoadUploadRules(partial)
	if err != nil {
		t.Fatalf("LoadUploadRules: %v", err)
	}
	if rules.MaxImages != 5 || rules.MaxFileSizeBytes != 1<<20 {
		t.Errorf("неожиданные правила: %+v", rules)
	}
	if len(rules.AllowedMIMETypes) != 3 {
		t.Errorf("MIME-типы по умолчанию должны сохраниться: %v", rules.AllowedMIMETypes)
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("max_images: 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadUploadRules(invalid); err == nil {
		t.Error("max_images: 0 должен отклоняться")
	}

	broken := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("max_images: [\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadUploadRules(broken); err == nil {
		t.Error("некорректный YAML должен отклоняться")
	}
}
