package database

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/bigkaa/printhome/checkout-web/internal/database/dbtest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// TestConnectMigrate проверяет подключение, миграции и readiness.
func TestConnectMigrate(t *testing.T) {
	cfg := dbtest.Start(t)
	ctx := context.Background()
	logger := testLogger()

	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer pool.Close()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// Повторное применение — ErrNoChange, не ошибка.
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("повторный Migrate: %v", err)
	}

	var exists bool
	err = pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'customer_drafts')`,
	).Scan(&exists)
	if err != nil {
		t.Fatalf("проверка таблицы: %v", err)
	}
	if !exists {
		t.Error("таблица customer_drafts не создана")
	}

	checker := NewReadinessChecker(pool)
	if status, msg := checker.CheckReady(ctx); status != "ok" {
		t.Errorf("CheckReady = %s (%s)", status, msg)
	}
}

// TestMigrationsEmbedded проверяет, что миграции попали в embed.FS.
func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var up, down int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			down++
		}
	}
	if up == 0 || up != down {
		t.Errorf("миграции: up=%d, down=%d", up, down)
	}
}
