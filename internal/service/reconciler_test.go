package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bigkaa/printhome/checkout-web/internal/backend"
	"github.com/bigkaa/printhome/checkout-web/internal/backend/backendtest"
	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
)

// stubImageAPI — ImageAPI с управляемым GetSessionImages.
type stubImageAPI struct {
	fetchCalls atomic.Int32
	fetch      func(ctx context.Context, token string) (*backend.SessionImagesResponse, error)
}

func (s *stubImageAPI) Upload(context.Context, []model.LocalFile, string) (*backend.UploadResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *stubImageAPI) GetSessionImages(ctx context.Context, token string) (*backend.SessionImagesResponse, error) {
	s.fetchCalls.Add(1)
	return s.fetch(ctx, token)
}

func (s *stubImageAPI) DeleteSession(context.Context, string) (*backend.StatusResponse, error) {
	return &backend.StatusResponse{Success: true}, nil
}

func (s *stubImageAPI) DeleteImage(context.Context, string, string) (*backend.StatusResponse, error) {
	return &backend.StatusResponse{Success: true}, nil
}

func imagesOf(token string, names ...string) *backend.SessionImagesResponse {
	resp := &backend.SessionImagesResponse{Success: true, HasImages: true}
	for _, n := range names {
		resp.Images = append(resp.Images, model.SessionImage{ID: model.ID(n), StoredFilename: n, URL: token + "/" + n})
	}
	return resp
}

func TestReconciler_SetActiveTokenLoads(t *testing.T) {
	fake, client := newFakeClient(t)
	token := fake.SeedSession("a.jpg", "b.png")
	r := NewSessionReconciler(client, testLogger())
	defer r.Close()
	ctx := context.Background()

	if st := r.State(); st.Phase != PhaseEmpty || len(st.Images) != 0 {
		t.Fatalf("начальное состояние: %+v", st)
	}

	if err := r.SetActiveToken(ctx, token); err != nil {
		t.Fatalf("SetActiveToken: %v", err)
	}
	st := r.State()
	if st.Phase != PhaseLoaded || st.Token != token || len(st.Images) != 2 {
		t.Fatalf("неожиданное состояние: %+v", st)
	}
	wantPrefix := "http://public.example.test/api/images/file/" + token + "/"
	if !strings.HasPrefix(st.Images[0].URL, wantPrefix) {
		t.Errorf("URL = %q, ожидался префикс %q", st.Images[0].URL, wantPrefix)
	}

	// Тот же токен — без запроса.
	if err := r.SetActiveToken(ctx, token); err != nil {
		t.Fatalf("SetActiveToken повтор: %v", err)
	}
	if got := fake.Calls(backendtest.OpSessionImages); got != 1 {
		t.Errorf("вызовов списка = %d, ожидался 1", got)
	}

	// Пустой токен — Empty.
	if err := r.SetActiveToken(ctx, ""); err != nil {
		t.Fatalf("SetActiveToken(\"\"): %v", err)
	}
	if st := r.State(); st.Phase != PhaseEmpty || st.Token != "" || len(st.Images) != 0 {
		t.Errorf("ожидалось Empty: %+v", st)
	}
}

func TestReconciler_FetchFailure(t *testing.T) {
	fake, client := newFakeClient(t)
	r := NewSessionReconciler(client, testLogger())
	defer r.Close()

	err := r.SetActiveToken(context.Background(), "unknown")
	var opErr *OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("ожидалась *OpError, получено %v", err)
	}
	st := r.State()
	if st.Phase != PhaseLoaded || len(st.Images) != 0 || st.Error != "Session not found" {
		t.Errorf("неожиданное состояние: %+v", st)
	}

	fake.FailWith(backendtest.OpSessionImages, http.StatusBadGateway, nil)
	if err := r.Refresh(context.Background()); err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if st := r.State(); !strings.HasPrefix(st.Error, "画像データ取得エラー: ") {
		t.Errorf("Error = %q", st.Error)
	}
	// Автоматических повторов нет.
	if got := fake.Calls(backendtest.OpSessionImages); got != 2 {
		t.Errorf("вызовов списка = %d, ожидалось 2", got)
	}
}

func TestReconciler_FetchSuccessWithoutImages(t *testing.T) {
	api := &stubImageAPI{fetch: func(context.Context, string) (*backend.SessionImagesResponse, error) {
		return &backend.SessionImagesResponse{Success: true}, nil
	}}
	r := NewSessionReconciler(api, testLogger())
	defer r.Close()

	if err := r.SetActiveToken(context.Background(), "t"); err == nil {
		t.Fatal("ответ без images должен считаться сбоем")
	}
	if st := r.State(); st.Error != "セッションが見つからないか、期限切れです。" {
		t.Errorf("Error = %q", st.Error)
	}
}

func TestReconciler_RemoveOne(t *testing.T) {
	fake, client := newFakeClient(t)
	token := fake.SeedSession("a.jpg", "b.jpg", "c.jpg")
	r := NewSessionReconciler(client, testLogger())
	defer r.Close()
	ctx := context.Background()

	if err := r.SetActiveToken(ctx, token); err != nil {
		t.Fatalf("SetActiveToken: %v", err)
	}
	images := r.State().Images

	// По stored_filename.
	if err := r.RemoveOne(ctx, images[0].StoredFilename); err != nil {
		t.Fatalf("RemoveOne: %v", err)
	}
	// По id.
	if err := r.RemoveOne(ctx, string(images[1].ID)); err != nil {
		t.Fatalf("RemoveOne по id: %v", err)
	}

	st := r.State()
	if len(st.Images) != 1 || st.Images[0].StoredFilename != images[2].StoredFilename {
		t.Errorf("осталось %+v", st.Images)
	}
	if got := fake.StoredFilenames(token); len(got) != 1 {
		t.Errorf("на бэкенде осталось %v", got)
	}
}

func TestReconciler_RemoveOneFailureKeepsState(t *testing.T) {
	fake, client := newFakeClient(t)
	token := fake.SeedSession("a.jpg", "b.jpg")
	r := NewSessionReconciler(client, testLogger())
	defer r.Close()
	ctx := context.Background()

	if err := r.SetActiveToken(ctx, token); err != nil {
		t.Fatalf("SetActiveToken: %v", err)
	}
	name := r.State().Images[0].StoredFilename

	fake.FailWith(backendtest.OpDeleteImage, http.StatusOK, map[string]any{"success": false})
	if err := r.RemoveOne(ctx, name); err == nil {
		t.Fatal("ожидалась ошибка")
	}
	st := r.State()
	if len(st.Images) != 2 {
		t.Errorf("локальное состояние изменилось: %+v", st.Images)
	}
	if st.Error != "画像の削除に失敗しました" {
		t.Errorf("Error = %q", st.Error)
	}
}

func TestReconciler_RemoveAll(t *testing.T) {
	fake, client := newFakeClient(t)
	token := fake.SeedSession("a.jpg", "b.jpg")
	r := NewSessionReconciler(client, testLogger())
	defer r.Close()
	ctx := context.Background()

	if err := r.SetActiveToken(ctx, token); err != nil {
		t.Fatalf("SetActiveToken: %v", err)
	}

	fake.FailWith(backendtest.OpDeleteSession, http.StatusOK, map[string]any{"success": false, "message": "busy"})
	if err := r.RemoveAll(ctx); err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if st := r.State(); st.Token != token || len(st.Images) != 2 || st.Error != "busy" {
		t.Errorf("после сбоя состояние должно сохраниться: %+v", st)
	}

	fake.Recover(backendtest.OpDeleteSession)
	if err := r.RemoveAll(ctx); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	st := r.State()
	if st.Phase != PhaseEmpty || st.Token != "" || len(st.Images) != 0 || st.Error != "" {
		t.Errorf("ожидалось Empty: %+v", st)
	}
	if fake.HasSession(token) {
		t.Error("сессия должна быть удалена на бэкенде")
	}
}

func TestReconciler_RemoveWithoutToken(t *testing.T) {
	_, client := newFakeClient(t)
	r := NewSessionReconciler(client, testLogger())
	defer r.Close()

	if err := r.RemoveOne(context.Background(), "x"); !errors.Is(err, ErrNoSession) {
		t.Errorf("RemoveOne: ожидалась ErrNoSession, получено %v", err)
	}
	if err := r.RemoveAll(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("RemoveAll: ожидалась ErrNoSession, получено %v", err)
	}
}

// TestReconciler_StaleFetchDiscarded — ответ по старому токену не перетирает новый.
func TestReconciler_StaleFetchDiscarded(t *testing.T) {
	releaseOld := make(chan struct{})
	api := &stubImageAPI{fetch: func(ctx context.Context, token string) (*backend.SessionImagesResponse, error) {
		if token == "old" {
			<-releaseOld
			return imagesOf(token, "old1.jpg", "old2.jpg"), nil
		}
		return imagesOf(token, "new.jpg"), nil
	}}
	r := NewSessionReconciler(api, testLogger())
	defer r.Close()
	ctx := context.Background()

	oldDone := make(chan error, 1)
	go func() { oldDone <- r.SetActiveToken(ctx, "old") }()

	waitFor(t, func() bool { return api.fetchCalls.Load() == 1 })

	if err := r.SetActiveToken(ctx, "new"); err != nil {
		t.Fatalf("SetActiveToken(new): %v", err)
	}
	close(releaseOld)
	if err := <-oldDone; err != nil {
		t.Fatalf("устаревший запрос вернул ошибку: %v", err)
	}

	st := r.State()
	if st.Token != "new" || len(st.Images) != 1 || st.Images[0].StoredFilename != "new.jpg" {
		t.Errorf("устаревший ответ применён: %+v", st)
	}
}

// TestReconciler_CloseCancelsInFlight — Close прерывает запрос и отбрасывает его результат.
func TestReconciler_CloseCancelsInFlight(t *testing.T) {
	api := &stubImageAPI{fetch: func(ctx context.Context, _ string) (*backend.SessionImagesResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	r := NewSessionReconciler(api, testLogger())

	done := make(chan error, 1)
	go func() { done <- r.SetActiveToken(context.Background(), "t") }()
	waitFor(t, func() bool { return api.fetchCalls.Load() == 1 })

	r.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("результат после Close должен отбрасываться, получено %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close не прервал запрос")
	}

	if err := r.Refresh(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Refresh после Close: ожидалась ErrClosed, получено %v", err)
	}
	if err := r.RemoveAll(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("RemoveAll после Close: ожидалась ErrClosed, получено %v", err)
	}
}

// TestReconciler_CallerCancel — вызывающий может перестать ждать, а список
// всё равно применяется, когда ответ придёт.
func TestReconciler_CallerCancel(t *testing.T) {
	release := make(chan struct{})
	api := &stubImageAPI{fetch: func(context.Context, string) (*backend.SessionImagesResponse, error) {
		<-release
		return imagesOf("t", "a.jpg"), nil
	}}
	r := NewSessionReconciler(api, testLogger())
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := r.SetActiveToken(ctx, "t"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ожидалась DeadlineExceeded, получено %v", err)
	}

	// Пока ответа нет, список не выдаётся за пустой загруженный.
	if st := r.State(); st.Phase != PhaseLoading || st.Token != "t" {
		t.Errorf("после отмены ожидался Loading, получено %+v", st)
	}

	close(release)
	waitFor(t, func() bool {
		st := r.State()
		return st.Phase == PhaseLoaded && len(st.Images) == 1
	})
	if got := api.fetchCalls.Load(); got != 1 {
		t.Errorf("вызовов списка = %d, ожидался 1", got)
	}
}

// TestReconciler_RefreshCollapsed — параллельные обновления одного токена — один запрос.
func TestReconciler_RefreshCollapsed(t *testing.T) {
	gate := make(chan struct{})
	var first atomic.Bool
	api := &stubImageAPI{fetch: func(context.Context, string) (*backend.SessionImagesResponse, error) {
		if first.CompareAndSwap(false, true) {
			return imagesOf("t", "a.jpg"), nil
		}
		<-gate
		return imagesOf("t", "a.jpg", "b.jpg"), nil
	}}
	r := NewSessionReconciler(api, testLogger())
	defer r.Close()
	ctx := context.Background()

	if err := r.SetActiveToken(ctx, "t"); err != nil {
		t.Fatalf("SetActiveToken: %v", err)
	}

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Refresh(ctx)
		}()
	}
	waitFor(t, func() bool { return api.fetchCalls.Load() == 2 })
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := api.fetchCalls.Load(); got != 2 {
		t.Errorf("вызовов списка = %d, ожидалось 2 (первичная загрузка + одно обновление)", got)
	}
	if st := r.State(); len(st.Images) != 2 {
		t.Errorf("после обновления %d изображений, ожидалось 2", len(st.Images))
	}
}

// waitFor ждёт выполнения условия до 2 секунд.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("условие не выполнено за 2s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
