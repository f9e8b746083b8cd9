// Пакет server — HTTP-сервер checkout-web с graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/printhome/checkout-web/internal/api/handlers"
	"github.com/bigkaa/printhome/checkout-web/internal/api/middleware"
	"github.com/bigkaa/printhome/checkout-web/internal/config"
)

// Server — HTTP-сервер checkout-web.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// NewRouter собирает маршруты. visitor — middleware состояния визарда,
// применяется только к /api/v1.
func NewRouter(logger *slog.Logger, api *handlers.APIHandler, health *handlers.HealthHandler, visitor func(http.Handler) http.Handler) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger(logger))

	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Get("/metrics", health.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/steps", api.GetSteps)
		r.Get("/cart/{cartToken}", api.GetCart)

		r.Group(func(r chi.Router) {
			r.Use(visitor)

			r.Get("/upload", api.GetUpload)
			r.Post("/upload/files", api.AddFiles)
			r.Delete("/upload/files", api.ClearFiles)
			r.Delete("/upload/files/{index}", api.RemoveFile)
			r.Post("/upload/submit", api.SubmitUpload)
			r.Get("/previews/{id}", api.GetPreview)

			r.Get("/session/images", api.GetSessionImages)
			r.Delete("/session/images/{filename}", api.DeleteSessionImage)
			r.Delete("/session", api.DeleteSession)

			r.Get("/customer", api.GetCustomer)
			r.Put("/customer", api.PutCustomer)
			r.Delete("/customer", api.DeleteCustomer)

			r.Post("/cart", api.CreateCart)
			r.Post("/payment/checkout", api.CreateCheckout)
			r.Post("/payment/complete", api.CompletePayment)
		})
	})

	return router
}

// New создаёт HTTP-сервер.
func New(cfg *config.Config, logger *slog.Logger, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.HTTPReadTimeout,
			WriteTimeout: cfg.HTTPWriteTimeout,
			IdleTimeout:  cfg.HTTPIdleTimeout,
		},
		logger: logger,
		cfg:    cfg,
	}
}

// Run запускает сервер и ждёт SIGINT/SIGTERM или отмены ctx,
// затем выполняет graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен", slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		s.logger.Info("Получен сигнал завершения")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
