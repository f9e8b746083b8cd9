package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bigkaa/printhome/checkout-web/internal/backend"
	"github.com/bigkaa/printhome/checkout-web/internal/backend/backendtest"
	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
	"github.com/bigkaa/printhome/checkout-web/internal/staging"
	"github.com/bigkaa/printhome/checkout-web/internal/validation"
)

// TestFlow_SubmitLifecycle проходит NoSession → HasSession → HasSession → NoSession.
func TestFlow_SubmitLifecycle(t *testing.T) {
	fake, client := newFakeClient(t)
	previews := staging.NewPreviewRegistry()
	registry := NewFlowRegistry(10, time.Hour, previews, client, validation.DefaultConfig(), false, testLogger())
	defer registry.Close()
	orchestrator := NewUploadOrchestrator(client, validation.DefaultConfig(), testLogger())
	ctx := context.Background()

	f := registry.GetOrCreate("")
	if f.ID == "" {
		t.Fatal("ID посетителя не сгенерирован")
	}

	res := f.Store.Add([]model.LocalFile{jpegFile("a.jpg", 10), jpegFile("b.jpg", 10)})
	if !res.Valid {
		t.Fatalf("Add: %+v", res.Errors)
	}
	if previews.Active() != 2 {
		t.Errorf("превью = %d, ожидалось 2", previews.Active())
	}

	// NoSession → HasSession
	up := f.Submit(ctx, orchestrator)
	if !up.Success {
		t.Fatalf("Submit: %s", up.Error)
	}
	if f.Store.Len() != 0 || previews.Active() != 0 {
		t.Errorf("после успешной отправки хранилище должно быть пустым: len=%d previews=%d", f.Store.Len(), previews.Active())
	}
	st := f.Sessions.State()
	if st.Token != up.Token || len(st.Images) != 2 {
		t.Fatalf("неожиданное состояние сессии: %+v", st)
	}

	// HasSession → HasSession (тот же токен, список обновлён)
	f.Store.Add([]model.LocalFile{jpegFile("c.jpg", 10)})
	again := f.Submit(ctx, orchestrator)
	if !again.Success || again.Token != up.Token {
		t.Fatalf("повторный Submit: %+v", again)
	}
	if st := f.Sessions.State(); len(st.Images) != 3 {
		t.Errorf("после дозагрузки %d изображений, ожидалось 3", len(st.Images))
	}
	if got := fake.Calls(backendtest.OpUpload); got != 2 {
		t.Errorf("вызовов upload = %d", got)
	}

	// HasSession → NoSession
	if err := f.Sessions.RemoveAll(ctx); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if f.Sessions.ActiveToken() != "" {
		t.Error("токен должен быть сброшен")
	}

	// Тот же посетитель получает то же состояние.
	if got := registry.GetOrCreate(f.ID); got != f {
		t.Error("GetOrCreate вернул новое состояние для существующего посетителя")
	}
}

// gatedUploadAPI задерживает Upload до закрытия release.
type gatedUploadAPI struct {
	ImageAPI
	started chan struct{}
	release chan struct{}
}

func (g *gatedUploadAPI) Upload(ctx context.Context, files []model.LocalFile, existingToken string) (*backend.UploadResponse, error) {
	close(g.started)
	<-g.release
	return g.ImageAPI.Upload(ctx, files, existingToken)
}

// TestFlow_SubmitKeepsFilesAddedDuringUpload — файл, добавленный во время
// загрузки, не отправлен и поэтому остаётся в хранилище.
func TestFlow_SubmitKeepsFilesAddedDuringUpload(t *testing.T) {
	fake, client := newFakeClient(t)
	api := &gatedUploadAPI{ImageAPI: client, started: make(chan struct{}), release: make(chan struct{})}
	previews := staging.NewPreviewRegistry()
	registry := NewFlowRegistry(10, time.Hour, previews, api, validation.DefaultConfig(), false, testLogger())
	defer registry.Close()

	f := registry.GetOrCreate("v1")
	f.Store.Add([]model.LocalFile{jpegFile("a.jpg", 10)})

	done := make(chan model.UploadResult, 1)
	go func() {
		done <- f.Submit(context.Background(), NewUploadOrchestrator(api, validation.DefaultConfig(), testLogger()))
	}()

	select {
	case <-api.started:
	case <-time.After(2 * time.Second):
		t.Fatal("загрузка не началась")
	}
	if res := f.Store.Add([]model.LocalFile{jpegFile("b.jpg", 10)}); !res.Valid {
		t.Fatalf("Add во время загрузки: %+v", res.Errors)
	}
	close(api.release)

	up := <-done
	if !up.Success {
		t.Fatalf("Submit: %s", up.Error)
	}
	files := f.Store.Files()
	if len(files) != 1 || files[0].File.Name != "b.jpg" {
		t.Fatalf("в хранилище должен остаться b.jpg, получено %+v", files)
	}
	if previews.Active() != 1 {
		t.Errorf("превью = %d, ожидалось 1 (b.jpg)", previews.Active())
	}
	if st := f.Sessions.State(); len(st.Images) != 1 {
		t.Errorf("в сессии %d изображений, ожидалось 1 (только a.jpg)", len(st.Images))
	}
	if got := fake.Calls(backendtest.OpUpload); got != 1 {
		t.Errorf("вызовов upload = %d, ожидался 1", got)
	}
}

// TestFlowRegistry_AccessExtendsTTL — обращение к состоянию продлевает его жизнь.
func TestFlowRegistry_AccessExtendsTTL(t *testing.T) {
	_, client := newFakeClient(t)
	registry := NewFlowRegistry(10, 300*time.Millisecond, staging.NewPreviewRegistry(), client, validation.DefaultConfig(), false, testLogger())
	defer registry.Close()

	f := registry.GetOrCreate("v1")
	for range 3 {
		time.Sleep(200 * time.Millisecond)
		if got := registry.GetOrCreate("v1"); got != f {
			t.Fatal("активное состояние истекло, хотя к нему обращались")
		}
	}

	time.Sleep(500 * time.Millisecond)
	if _, ok := registry.Get("v1"); ok {
		t.Error("состояние без обращений должно истечь")
	}
}

// TestFlow_SubmitFailureKeepsStore — при отказе хранилище не трогается.
func TestFlow_SubmitFailureKeepsStore(t *testing.T) {
	fake, client := newFakeClient(t)
	fake.FailWith(backendtest.OpUpload, http.StatusInternalServerError, nil)
	previews := staging.NewPreviewRegistry()
	registry := NewFlowRegistry(10, time.Hour, previews, client, validation.DefaultConfig(), false, testLogger())
	defer registry.Close()

	f := registry.GetOrCreate("v1")
	f.Store.Add([]model.LocalFile{jpegFile("a.jpg", 10)})

	res := f.Submit(context.Background(), NewUploadOrchestrator(client, validation.DefaultConfig(), testLogger()))
	if res.Success {
		t.Fatal("ожидался отказ")
	}
	if f.Store.Len() != 1 || previews.Active() != 1 {
		t.Errorf("хранилище изменено при отказе: len=%d previews=%d", f.Store.Len(), previews.Active())
	}
	if f.Sessions.ActiveToken() != "" {
		t.Error("токен не должен появиться при отказе")
	}
}

// TestFlowRegistry_EvictionReleasesPreviews — вытеснение освобождает превью.
func TestFlowRegistry_EvictionReleasesPreviews(t *testing.T) {
	_, client := newFakeClient(t)
	previews := staging.NewPreviewRegistry()
	registry := NewFlowRegistry(1, time.Hour, previews, client, validation.DefaultConfig(), false, testLogger())
	defer registry.Close()

	first := registry.GetOrCreate("v1")
	first.Store.Add([]model.LocalFile{jpegFile("a.jpg", 10), jpegFile("b.jpg", 10)})
	if previews.Active() != 2 {
		t.Fatalf("превью = %d", previews.Active())
	}

	registry.GetOrCreate("v2")
	if registry.Len() != 1 {
		t.Errorf("Len = %d, ожидался 1", registry.Len())
	}
	if previews.Active() != 0 {
		t.Errorf("после вытеснения осталось %d превью", previews.Active())
	}
	if _, ok := registry.Get("v1"); ok {
		t.Error("v1 должен быть вытеснен")
	}
	if err := first.Sessions.SetActiveToken(context.Background(), "x"); err == nil {
		t.Error("reconciler вытесненного состояния должен быть закрыт")
	}
}

// TestFlowRegistry_RemoveAndClose проверяет явное удаление и закрытие.
func TestFlowRegistry_RemoveAndClose(t *testing.T) {
	_, client := newFakeClient(t)
	previews := staging.NewPreviewRegistry()
	registry := NewFlowRegistry(10, time.Hour, previews, client, validation.DefaultConfig(), false, testLogger())

	registry.GetOrCreate("v1").Store.Add([]model.LocalFile{jpegFile("a.jpg", 10)})
	registry.GetOrCreate("v2").Store.Add([]model.LocalFile{jpegFile("b.jpg", 10)})

	registry.Remove("v1")
	if previews.Active() != 1 {
		t.Errorf("после Remove превью = %d, ожидался 1", previews.Active())
	}
	registry.Close()
	if previews.Active() != 0 || registry.Len() != 0 {
		t.Errorf("после Close: превью = %d, состояний = %d", previews.Active(), registry.Len())
	}
}
