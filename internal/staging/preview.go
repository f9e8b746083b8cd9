// Пакет staging — локальное staging-хранилище файлов шага 1 мастера
// и реестр preview-дескрипторов для отображения миниатюр до загрузки.
package staging

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
)

// ErrPreviewNotFound — preview не выделен или уже освобождён.
var ErrPreviewNotFound = errors.New("preview не найден")

// Prometheus-метрики preview.
var (
	activePreviews = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cw_staging_active_previews",
		Help: "Количество выделенных и ещё не освобождённых preview-дескрипторов.",
	})
	previewReleasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cw_staging_preview_releases_total",
		Help: "Освобождения preview-дескрипторов (released — успешно, unknown — повторное или неизвестный id).",
	}, []string{"result"})
)

// PreviewAllocator — выделение и освобождение preview-дескрипторов.
type PreviewAllocator interface {
	// Allocate выделяет новый дескриптор для файла.
	Allocate(f model.LocalFile) string
	// Release освобождает дескриптор. Возвращает false, если он уже освобождён.
	Release(id string) bool
}

// PreviewRegistry — потокобезопасный реестр preview-дескрипторов.
// Один реестр обслуживает всех посетителей; дескриптор — случайный UUID.
type PreviewRegistry struct {
	mu       sync.RWMutex
	previews map[string]model.LocalFile
}

// NewPreviewRegistry создаёт пустой реестр.
func NewPreviewRegistry() *PreviewRegistry {
	return &PreviewRegistry{previews: make(map[string]model.LocalFile)}
}

// Allocate выделяет preview-дескриптор для файла.
func (r *PreviewRegistry) Allocate(f model.LocalFile) string {
	id := uuid.NewString()

	r.mu.Lock()
	r.previews[id] = f
	r.mu.Unlock()

	activePreviews.Inc()
	return id
}

// Release освобождает preview-дескриптор.
func (r *PreviewRegistry) Release(id string) bool {
	r.mu.Lock()
	_, ok := r.previews[id]
	delete(r.previews, id)
	r.mu.Unlock()

	if !ok {
		previewReleasesTotal.WithLabelValues("unknown").Inc()
		return false
	}
	activePreviews.Dec()
	previewReleasesTotal.WithLabelValues("released").Inc()
	return true
}

// Open открывает содержимое файла по preview-дескриптору.
// Вызывающий код обязан закрыть возвращённый поток.
func (r *PreviewRegistry) Open(id string) (model.LocalFile, io.ReadCloser, error) {
	r.mu.RLock()
	f, ok := r.previews[id]
	r.mu.RUnlock()

	if !ok {
		return model.LocalFile{}, nil, ErrPreviewNotFound
	}
	if f.Source == nil {
		return f, nil, fmt.Errorf("preview %s: нет источника содержимого", id)
	}

	rc, err := f.Source.Open()
	if err != nil {
		return f, nil, fmt.Errorf("открытие preview %s: %w", id, err)
	}
	return f, rc, nil
}

// Active возвращает количество выделенных дескрипторов.
func (r *PreviewRegistry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.previews)
}
