package service

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/printhome/checkout-web/internal/backend"
	"github.com/bigkaa/printhome/checkout-web/internal/backend/backendtest"
	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newFakeClient запускает имитацию backend API и клиент к ней.
func newFakeClient(t *testing.T) (*backendtest.Fake, *backend.Client) {
	t.Helper()
	fake := backendtest.New(t)
	client, err := backend.New(fake.URL(), "http://public.example.test", "", 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("backend.New: %v", err)
	}
	return fake, client
}

func jpegFile(name string, size int) model.LocalFile {
	return model.LocalFile{
		Name:        name,
		Size:        int64(size),
		ContentType: "image/jpeg",
		Source:      model.BytesSource(strings.Repeat("x", size)),
	}
}
