// reconciler.go — сверка изображений upload-сессии бэкенда с состоянием визарда.
//
// Состояния: Empty (нет токена), Loading (идёт запрос списка), Loaded.
// Смена токена запускает загрузку списка; удаление сессии целиком переводит
// в Empty. Локальное состояние меняется только после ответа бэкенда.
//
// Каждая операция выполняется под контекстом, производным и от контекста
// вызова, и от времени жизни reconciler: Close прерывает запросы в полёте.
// Ответы по устаревшему токену и после Close отбрасываются (поколения).
package service

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/bigkaa/printhome/checkout-web/internal/backend"
	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
)

// Phase — состояние reconciler.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseLoading
	PhaseLoaded
)

// String возвращает имя состояния.
func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	default:
		return "empty"
	}
}

// MarshalText сериализует состояние в JSON как строку.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// SessionState — снимок состояния reconciler.
type SessionState struct {
	Phase  Phase                `json:"phase"`
	Token  string               `json:"token,omitempty"`
	Images []model.SessionImage `json:"images"`
	Error  string               `json:"error,omitempty"`
}

// SessionReconciler ведёт список изображений одной upload-сессии.
type SessionReconciler struct {
	api    ImageAPI
	logger *slog.Logger

	lifetime context.Context
	cancel   context.CancelFunc
	fetches  singleflight.Group

	mu         sync.Mutex
	token      string
	phase      Phase
	images     []model.SessionImage
	lastErr    string
	generation uint64
	closed     bool
}

// NewSessionReconciler создаёт reconciler в состоянии Empty.
func NewSessionReconciler(api ImageAPI, logger *slog.Logger) *SessionReconciler {
	lifetime, cancel := context.WithCancel(context.Background())
	return &SessionReconciler{
		api:      api,
		logger:   logger.With(slog.String("component", "session_reconciler")),
		lifetime: lifetime,
		cancel:   cancel,
	}
}

// State возвращает копию текущего состояния.
func (r *SessionReconciler) State() SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return SessionState{
		Phase:  r.phase,
		Token:  r.token,
		Images: slices.Clone(r.images),
		Error:  r.lastErr,
	}
}

// ActiveToken возвращает активный session token ("" в состоянии Empty).
func (r *SessionReconciler) ActiveToken() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.token
}

// SetActiveToken делает token активным. Новый непустой токен загружает
// список изображений; пустой переводит в Empty. Повтор текущего токена
// ничего не делает.
func (r *SessionReconciler) SetActiveToken(ctx context.Context, token string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if token == r.token {
		r.mu.Unlock()
		return nil
	}

	r.generation++
	r.token = token
	r.images = nil
	r.lastErr = ""
	if token == "" {
		r.phase = PhaseEmpty
		r.mu.Unlock()
		return nil
	}
	r.phase = PhaseLoading
	gen := r.generation
	r.mu.Unlock()

	return r.fetch(ctx, token, gen)
}

// Refresh повторно загружает список изображений активного токена.
// Параллельные обновления одного токена объединяются в один запрос.
func (r *SessionReconciler) Refresh(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	token, gen := r.token, r.generation
	if token == "" {
		r.mu.Unlock()
		return nil
	}
	r.phase = PhaseLoading
	r.lastErr = ""
	r.mu.Unlock()

	return r.fetch(ctx, token, gen)
}

// fetch загружает список и применяет его, если токен не сменился.
// Сам запрос идёт под контекстом жизни reconciler (он общий для всех
// ожидающих), вызывающий может перестать ждать по своему ctx. В этом
// случае состояние остаётся Loading, а ответ применяется, когда придёт.
func (r *SessionReconciler) fetch(ctx context.Context, token string, gen uint64) error {
	ch := r.fetches.DoChan(token, func() (any, error) {
		return r.api.GetSessionImages(r.lifetime, token)
	})

	select {
	case res := <-ch:
		return r.apply(token, gen, res)
	case <-ctx.Done():
		go func() {
			_ = r.apply(token, gen, <-ch)
		}()
		return ctx.Err()
	}
}

// apply записывает результат загрузки списка в состояние.
func (r *SessionReconciler) apply(token string, gen uint64, res singleflight.Result) error {
	var images []model.SessionImage
	var opErr *OpError
	switch {
	case res.Err != nil:
		opErr = &OpError{Op: "fetch", Message: "画像データ取得エラー: " + res.Err.Error(), Err: res.Err}
	default:
		resp := res.Val.(*backend.SessionImagesResponse)
		if !resp.Success || !resp.HasImages {
			opErr = &OpError{Op: "fetch", Message: firstNonEmpty(resp.Error, resp.Message, "セッションが見つからないか、期限切れです。")}
		} else {
			images = resp.Images
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.generation != gen || r.token != token {
		r.logger.Debug("Устаревший ответ списка изображений отброшен", slog.String("token", token))
		return nil
	}

	r.phase = PhaseLoaded
	if opErr != nil {
		r.images = nil
		r.lastErr = opErr.Message
		r.logger.Warn("Не удалось получить изображения сессии",
			slog.String("token", token),
			slog.String("error", opErr.Message),
		)
		return opErr
	}

	r.images = slices.Clone(images)
	r.lastErr = ""
	return nil
}

// RemoveOne удаляет изображение по id или stored_filename. Локальный список
// меняется только после успешного ответа; при сбое состояние сохраняется,
// ошибка записывается в State().Error.
func (r *SessionReconciler) RemoveOne(ctx context.Context, idOrFilename string) error {
	token, gen, err := r.begin()
	if err != nil {
		return err
	}

	opCtx, done := r.opContext(ctx)
	defer done()

	resp, err := r.api.DeleteImage(opCtx, token, idOrFilename)
	var opErr *OpError
	switch {
	case err != nil:
		opErr = &OpError{Op: "remove_one", Message: err.Error(), Err: err}
	case !resp.Success:
		opErr = &OpError{Op: "remove_one", Message: firstNonEmpty(resp.Error, "画像の削除に失敗しました")}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if opErr != nil {
		if !r.closed && r.generation == gen {
			r.lastErr = opErr.Message
		}
		return opErr
	}
	if r.closed || r.generation != gen {
		return nil
	}

	r.images = slices.DeleteFunc(r.images, func(img model.SessionImage) bool {
		return string(img.ID) == idOrFilename || img.StoredFilename == idOrFilename
	})
	r.logger.Info("Изображение удалено из сессии",
		slog.String("token", token),
		slog.String("image", idOrFilename),
	)
	return nil
}

// RemoveAll удаляет сессию целиком. Успех переводит в Empty.
func (r *SessionReconciler) RemoveAll(ctx context.Context) error {
	token, gen, err := r.begin()
	if err != nil {
		return err
	}

	opCtx, done := r.opContext(ctx)
	defer done()

	resp, err := r.api.DeleteSession(opCtx, token)
	var opErr *OpError
	switch {
	case err != nil:
		opErr = &OpError{Op: "remove_all", Message: "セッション削除エラー: " + err.Error(), Err: err}
	case !resp.Success:
		opErr = &OpError{Op: "remove_all", Message: firstNonEmpty(resp.Error, resp.Message, "サーバー画像の削除に失敗しました")}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if opErr != nil {
		if !r.closed && r.generation == gen {
			r.lastErr = opErr.Message
		}
		return opErr
	}
	if r.closed || r.generation != gen {
		return nil
	}

	r.generation++
	r.token = ""
	r.images = nil
	r.lastErr = ""
	r.phase = PhaseEmpty
	r.logger.Info("Сессия изображений удалена", slog.String("token", token))
	return nil
}

// Close прерывает запросы в полёте. Последующие операции возвращают ErrClosed.
func (r *SessionReconciler) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
}

// begin проверяет, что операция удаления возможна, и фиксирует токен.
func (r *SessionReconciler) begin() (string, uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", 0, ErrClosed
	}
	if r.token == "" {
		return "", 0, ErrNoSession
	}
	return r.token, r.generation, nil
}

// opContext объединяет контекст вызова с контекстом жизни reconciler.
func (r *SessionReconciler) opContext(ctx context.Context) (context.Context, func()) {
	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(r.lifetime, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}
