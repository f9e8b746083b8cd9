// flow.go — состояние визарда одного посетителя и реестр таких состояний.
//
// Flow владеет локальным staging-хранилищем и reconciler изображений сессии.
// Реестр — expirable LRU со скользящим TTL: при вытеснении или истечении хранилище
// очищается (превью освобождаются), а reconciler закрывается.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
	"github.com/bigkaa/printhome/checkout-web/internal/staging"
	"github.com/bigkaa/printhome/checkout-web/internal/validation"
)

var (
	flowsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cw_flows_created_total",
		Help: "Количество созданных состояний визарда.",
	})
	flowsEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cw_flows_evicted_total",
		Help: "Количество вытесненных или истёкших состояний визарда.",
	})
)

// Flow — состояние визарда одного посетителя.
type Flow struct {
	ID       string
	Store    *staging.Store
	Sessions *SessionReconciler

	// submitMu не даёт отправить одно и то же содержимое хранилища дважды.
	submitMu sync.Mutex
}

// NewFlow создаёт состояние визарда.
func NewFlow(id string, store *staging.Store, sessions *SessionReconciler) *Flow {
	return &Flow{ID: id, Store: store, Sessions: sessions}
}

// Submit отправляет содержимое хранилища вместе с активным токеном.
// После успеха из хранилища удаляются отправленные файлы (добавленные
// во время загрузки остаются), а reconciler переключается на
// полученный токен (или обновляет список, если токен тот же).
// Ошибка обновления списка не отменяет успех загрузки: она видна в State().
func (f *Flow) Submit(ctx context.Context, orchestrator *UploadOrchestrator) model.UploadResult {
	f.submitMu.Lock()
	defer f.submitMu.Unlock()

	current := f.Sessions.ActiveToken()
	staged := f.Store.Files()
	files := make([]model.LocalFile, 0, len(staged))
	sent := make([]string, 0, len(staged))
	for _, sf := range staged {
		files = append(files, sf.File)
		sent = append(sent, sf.PreviewID)
	}

	res := orchestrator.Submit(ctx, files, current)
	if !res.Success {
		return res
	}

	f.Store.RemoveByPreview(sent...)
	if res.Token == current {
		_ = f.Sessions.Refresh(ctx)
	} else {
		_ = f.Sessions.SetActiveToken(ctx, res.Token)
	}
	return res
}

// Close освобождает ресурсы состояния.
func (f *Flow) Close() {
	f.Store.Clear()
	f.Sessions.Close()
}

// FlowRegistry — реестр состояний визарда по идентификатору посетителя.
type FlowRegistry struct {
	mu              sync.Mutex
	flows           *expirable.LRU[string, *Flow]
	previews        *staging.PreviewRegistry
	api             ImageAPI
	cfg             validation.Config
	verifyDecodable bool
	logger          *slog.Logger
}

// NewFlowRegistry создаёт реестр.
// maxSize — максимальное число одновременно хранимых визардов.
// ttl — время жизни состояния с последнего обращения через GetOrCreate.
func NewFlowRegistry(
	maxSize int,
	ttl time.Duration,
	previews *staging.PreviewRegistry,
	api ImageAPI,
	cfg validation.Config,
	verifyDecodable bool,
	logger *slog.Logger,
) *FlowRegistry {
	r := &FlowRegistry{
		previews:        previews,
		api:             api,
		cfg:             cfg,
		verifyDecodable: verifyDecodable,
		logger:          logger.With(slog.String("component", "flow_registry")),
	}
	r.flows = expirable.NewLRU[string, *Flow](maxSize, r.onEvict, ttl)
	return r
}

// Get возвращает состояние посетителя, если оно есть.
func (r *FlowRegistry) Get(id string) (*Flow, bool) {
	return r.flows.Get(id)
}

// GetOrCreate возвращает состояние посетителя, создавая его при отсутствии.
// Пустой id — новый посетитель с UUID. Обращение продлевает TTL состояния:
// expirable.LRU.Get срок не сдвигает, поэтому запись добавляется заново.
func (r *FlowRegistry) GetOrCreate(id string) *Flow {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" {
		if f, ok := r.flows.Get(id); ok {
			r.flows.Add(id, f)
			return f
		}
	} else {
		id = uuid.NewString()
	}

	f := NewFlow(id,
		staging.NewStore(r.previews, r.cfg, r.verifyDecodable, r.logger),
		NewSessionReconciler(r.api, r.logger),
	)
	r.flows.Add(id, f)
	flowsCreatedTotal.Inc()
	return f
}

// Remove удаляет состояние посетителя с освобождением ресурсов.
func (r *FlowRegistry) Remove(id string) {
	r.flows.Remove(id)
}

// Len возвращает число хранимых состояний.
func (r *FlowRegistry) Len() int {
	return r.flows.Len()
}

// Close освобождает все состояния.
func (r *FlowRegistry) Close() {
	r.flows.Purge()
}

func (r *FlowRegistry) onEvict(id string, f *Flow) {
	f.Close()
	flowsEvictedTotal.Inc()
	r.logger.Debug("Состояние визарда освобождено", slog.String("flow_id", id))
}
