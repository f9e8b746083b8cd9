package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
)

// CustomerDraftRepository — черновики данных покупателя по идентификатору посетителя.
type CustomerDraftRepository interface {
	// Load возвращает черновик. Если не найден — ErrNotFound.
	Load(ctx context.Context, visitorID string) (model.CustomerData, error)
	// Save создаёт или заменяет черновик (upsert).
	Save(ctx context.Context, visitorID string, data model.CustomerData) error
	// Clear удаляет черновик. Отсутствие черновика — не ошибка.
	Clear(ctx context.Context, visitorID string) error
	// PurgeBefore удаляет черновики, не обновлявшиеся с before.
	PurgeBefore(ctx context.Context, before time.Time) (int64, error)
}

// customerDraftRepo — реализация на PostgreSQL (таблица customer_drafts, JSONB).
type customerDraftRepo struct {
	db DBTX
}

// NewCustomerDraftRepository создаёт репозиторий черновиков в PostgreSQL.
func NewCustomerDraftRepository(db DBTX) CustomerDraftRepository {
	return &customerDraftRepo{db: db}
}

// Load возвращает черновик посетителя.
func (r *customerDraftRepo) Load(ctx context.Context, visitorID string) (model.CustomerData, error) {
	query := `
		SELECT data
		FROM customer_drafts
		WHERE visitor_id = $1`

	var raw []byte
	if err := r.db.QueryRow(ctx, query, visitorID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CustomerData{}, ErrNotFound
		}
		return model.CustomerData{}, fmt.Errorf("ошибка получения customer_drafts[%s]: %w", visitorID, err)
	}

	var data model.CustomerData
	if err := json.Unmarshal(raw, &data); err != nil {
		return model.CustomerData{}, fmt.Errorf("ошибка разбора customer_drafts[%s]: %w", visitorID, err)
	}
	return data, nil
}

// Save создаёт или заменяет черновик (INSERT ... ON CONFLICT DO UPDATE).
func (r *customerDraftRepo) Save(ctx context.Context, visitorID string, data model.CustomerData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("ошибка сериализации черновика: %w", err)
	}

	query := `
		INSERT INTO customer_drafts (visitor_id, data)
		VALUES ($1, $2)
		ON CONFLICT (visitor_id) DO UPDATE
		SET data = EXCLUDED.data,
			updated_at = NOW()`

	if _, err := r.db.Exec(ctx, query, visitorID, raw); err != nil {
		return fmt.Errorf("ошибка сохранения customer_drafts[%s]: %w", visitorID, err)
	}
	return nil
}

// Clear удаляет черновик посетителя.
func (r *customerDraftRepo) Clear(ctx context.Context, visitorID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM customer_drafts WHERE visitor_id = $1`, visitorID); err != nil {
		return fmt.Errorf("ошибка удаления customer_drafts[%s]: %w", visitorID, err)
	}
	return nil
}

// PurgeBefore удаляет устаревшие черновики.
func (r *customerDraftRepo) PurgeBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM customer_drafts WHERE updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки customer_drafts: %w", err)
	}
	return tag.RowsAffected(), nil
}
