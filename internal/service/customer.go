// customer.go — черновик данных покупателя: загрузка, сохранение, очистка
// и периодическое удаление устаревших черновиков.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
	"github.com/bigkaa/printhome/checkout-web/internal/repository"
)

// CustomerStore — хранилище черновиков «ключ — значение».
type CustomerStore interface {
	Load(ctx context.Context, visitorID string) (model.CustomerData, error)
	Save(ctx context.Context, visitorID string, data model.CustomerData) error
	Clear(ctx context.Context, visitorID string) error
}

// CustomerService — черновик данных покупателя, переживающий переходы между шагами.
type CustomerService struct {
	store  CustomerStore
	logger *slog.Logger
}

// NewCustomerService создаёт сервис черновиков.
func NewCustomerService(store CustomerStore, logger *slog.Logger) *CustomerService {
	return &CustomerService{
		store:  store,
		logger: logger.With(slog.String("component", "customer_service")),
	}
}

// Load возвращает сохранённый черновик поверх пустого.
// Отсутствие черновика — не ошибка.
func (s *CustomerService) Load(ctx context.Context, visitorID string) (model.CustomerData, error) {
	data, err := s.store.Load(ctx, visitorID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.CustomerData{}, nil
	}
	if err != nil {
		return model.CustomerData{}, fmt.Errorf("загрузка черновика: %w", err)
	}
	return data, nil
}

// Save сохраняет черновик без проверки полей (форма сохраняется по ходу ввода).
func (s *CustomerService) Save(ctx context.Context, visitorID string, data model.CustomerData) error {
	if err := s.store.Save(ctx, visitorID, data); err != nil {
		return fmt.Errorf("сохранение черновика: %w", err)
	}
	return nil
}

// Clear удаляет черновик.
func (s *CustomerService) Clear(ctx context.Context, visitorID string) error {
	if err := s.store.Clear(ctx, visitorID); err != nil {
		return fmt.Errorf("удаление черновика: %w", err)
	}
	return nil
}

// DraftJanitor периодически удаляет черновики старше maxAge.
type DraftJanitor struct {
	repo     repository.CustomerDraftRepository
	interval time.Duration
	maxAge   time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDraftJanitor создаёт фоновую очистку черновиков.
func NewDraftJanitor(repo repository.CustomerDraftRepository, interval, maxAge time.Duration, logger *slog.Logger) *DraftJanitor {
	return &DraftJanitor{
		repo:     repo,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger.With(slog.String("component", "draft_janitor")),
	}
}

// Start запускает фоновую горутину с ticker.
func (j *DraftJanitor) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})

	go func() {
		defer close(j.done)

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := j.PurgeNow(ctx); err != nil {
					j.logger.Error("Ошибка очистки черновиков", slog.String("error", err.Error()))
				}
			}
		}
	}()
}

// PurgeNow удаляет устаревшие черновики немедленно.
func (j *DraftJanitor) PurgeNow(ctx context.Context) (int64, error) {
	n, err := j.repo.PurgeBefore(ctx, time.Now().Add(-j.maxAge))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.logger.Info("Устаревшие черновики удалены", slog.Int64("count", n))
	}
	return n, nil
}

// Stop останавливает фоновую горутину и ждёт завершения.
func (j *DraftJanitor) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	if j.done != nil {
		<-j.done
	}
}
