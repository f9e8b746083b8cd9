package repository

import (
	"context"
	"sync"
	"time"

	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
)

type memoryDraft struct {
	data      model.CustomerData
	updatedAt time.Time
}

// memoryDraftRepo — in-memory реализация (без PostgreSQL, теряется при рестарте).
type memoryDraftRepo struct {
	mu     sync.RWMutex
	drafts map[string]memoryDraft
	now    func() time.Time
}

// NewMemoryCustomerDraftRepository создаёт in-memory репозиторий черновиков.
func NewMemoryCustomerDraftRepository() CustomerDraftRepository {
	return &memoryDraftRepo{
		drafts: make(map[string]memoryDraft),
		now:    time.Now,
	}
}

func (r *memoryDraftRepo) Load(_ context.Context, visitorID string) (model.CustomerData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drafts[visitorID]
	if !ok {
		return model.CustomerData{}, ErrNotFound
	}
	return d.data, nil
}

func (r *memoryDraftRepo) Save(_ context.Context, visitorID string, data model.CustomerData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[visitorID] = memoryDraft{data: data, updatedAt: r.now()}
	return nil
}

func (r *memoryDraftRepo) Clear(_ context.Context, visitorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, visitorID)
	return nil
}

func (r *memoryDraftRepo) PurgeBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, d := range r.drafts {
		if d.updatedAt.Before(before) {
			delete(r.drafts, id)
			n++
		}
	}
	return n, nil
}
