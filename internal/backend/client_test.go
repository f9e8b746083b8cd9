package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/printhome/checkout-web/internal/backend/backendtest"
	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(baseURL, "http://public.example.test/", "", 5*time.Second, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func jpeg(name string, size int) model.LocalFile {
	return model.LocalFile{
		Name:        name,
		Size:        int64(size),
		ContentType: "image/jpeg",
		Source:      model.BytesSource(strings.Repeat("x", size)),
	}
}

// TestClient_UploadAndFetch проверяет загрузку и последующее получение списка.
func TestClient_UploadAndFetch(t *testing.T) {
	fake := backendtest.New(t)
	c := newTestClient(t, fake.URL())
	ctx := context.Background()

	files := []model.LocalFile{jpeg("a.jpg", 10), jpeg("b.jpg", 20), jpeg("c.JPG", 30)}
	resp, err := c.Upload(ctx, files, "")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !resp.Success || resp.Token == "" {
		t.Fatalf("неожиданный ответ: %+v", resp)
	}
	if len(resp.Images) != 3 {
		t.Errorf("images = %d, ожидалось 3", len(resp.Images))
	}

	list, err := c.GetSessionImages(ctx, resp.Token)
	if err != nil {
		t.Fatalf("GetSessionImages: %v", err)
	}
	if !list.Success || !list.HasImages || len(list.Images) != 3 {
		t.Fatalf("неожиданный список: %+v", list)
	}

	img := list.Images[0]
	if img.OriginalFilename != "a.jpg" || img.FileSize != 10 {
		t.Errorf("неожиданное изображение: %+v", img)
	}
	wantURL := "http://public.example.test/api/images/file/" + resp.Token + "/" + img.StoredFilename
	if img.URL != wantURL {
		t.Errorf("URL = %q, ожидалось %q", img.URL, wantURL)
	}
	if img.ID == "" {
		t.Error("ID не должен быть пустым")
	}

	// Дозагрузка с existing_token добавляет в ту же сессию.
	again, err := c.Upload(ctx, []model.LocalFile{jpeg("d.png", 5)}, resp.Token)
	if err != nil {
		t.Fatalf("Upload existing: %v", err)
	}
	if again.Token != resp.Token {
		t.Errorf("token = %q, ожидалось %q", again.Token, resp.Token)
	}
	if got := len(fake.StoredFilenames(resp.Token)); got != 4 {
		t.Errorf("в сессии %d изображений, ожидалось 4", got)
	}
}

// TestClient_UploadMultipart проверяет состав multipart-формы.
func TestClient_UploadMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			t.Errorf("X-Requested-With = %q", r.Header.Get("X-Requested-With"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		files := r.MultipartForm.File["images[]"]
		if len(files) != 2 {
			t.Errorf("images[] = %d, ожидалось 2", len(files))
		}
		if files[1].Filename != `"q".png` {
			t.Errorf("filename = %q", files[1].Filename)
		}
		if ct := files[1].Header.Get("Content-Type"); ct != "application/octet-stream" {
			t.Errorf("Content-Type части = %q", ct)
		}
		f, _ := files[0].Open()
		data, _ := io.ReadAll(f)
		if string(data) != "xxx" {
			t.Errorf("содержимое = %q", data)
		}
		if got := r.FormValue("existing_token"); got != "tok-1" {
			t.Errorf("existing_token = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"token":"tok-1","images":[{},{}]}`)
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL)
	files := []model.LocalFile{
		jpeg("a.jpg", 3),
		{Name: `"q".png`, Size: 1, Source: model.BytesSource("y")},
	}
	resp, err := c.Upload(context.Background(), files, "tok-1")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(resp.Images) != 2 {
		t.Errorf("images = %d", len(resp.Images))
	}
}

// TestClient_APIError проверяет преобразование не-2xx в *APIError.
func TestClient_APIError(t *testing.T) {
	fake := backendtest.New(t)
	fake.FailWith(backendtest.OpDeleteSession, http.StatusInternalServerError,
		map[string]any{"success": false, "message": "storage down"})
	c := newTestClient(t, fake.URL())

	_, err := c.DeleteSession(context.Background(), "tok")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("ожидалась *APIError, получено %v", err)
	}
	if apiErr.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d", apiErr.Status)
	}
	if apiErr.Message != "storage down" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if !strings.Contains(apiErr.Error(), "500") {
		t.Errorf("Error() = %q, ожидался статус", apiErr.Error())
	}

	fake.Recover(backendtest.OpDeleteSession)
	_, err = c.DeleteSession(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Errorf("ожидалась 404, получено %v", err)
	}
}

// TestClient_DeleteImage проверяет удаление одного изображения.
func TestClient_DeleteImage(t *testing.T) {
	fake := backendtest.New(t)
	token := fake.SeedSession("a.jpg", "b.jpg")
	names := fake.StoredFilenames(token)
	c := newTestClient(t, fake.URL())

	resp, err := c.DeleteImage(context.Background(), token, names[0])
	if err != nil {
		t.Fatalf("DeleteImage: %v", err)
	}
	if !resp.Success {
		t.Errorf("Success = false")
	}
	if got := fake.StoredFilenames(token); len(got) != 1 || got[0] != names[1] {
		t.Errorf("осталось %v", got)
	}
}

// TestClient_SessionNotFound проверяет ответ success=false без images.
func TestClient_SessionNotFound(t *testing.T) {
	fake := backendtest.New(t)
	c := newTestClient(t, fake.URL())

	resp, err := c.GetSessionImages(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetSessionImages: %v", err)
	}
	if resp.Success || resp.HasImages {
		t.Errorf("неожиданный ответ: %+v", resp)
	}
	if resp.Error != "Session not found" {
		t.Errorf("Error = %q", resp.Error)
	}
}

// TestClient_CartAndPayment проверяет цепочку корзина → checkout → оплата.
func TestClient_CartAndPayment(t *testing.T) {
	fake := backendtest.New(t)
	token := fake.SeedSession("a.jpg", "b.jpg")
	c := newTestClient(t, fake.URL())
	ctx := context.Background()

	customer := model.CustomerData{
		CustomerName:  "山田太郎",
		CustomerEmail: "taro@example.com",
		CustomerPhone: "090-1234-5678",
		PostalCode:    "100-0001",
		Prefecture:    "東京都",
		City:          "千代田区",
		AddressLine1:  "千代田1-1",
	}
	delivery := &model.AddressData{PostalCode: "530-0001", Prefecture: "大阪府", City: "大阪市北区", AddressLine1: "梅田1-1"}

	created, err := c.CreateCart(ctx, NewCreateCartRequest(token, customer, delivery, false))
	if err != nil {
		t.Fatalf("CreateCart: %v", err)
	}
	if !created.Success || created.CartToken == "" || created.Cart == nil {
		t.Fatalf("неожиданный ответ: %+v", created)
	}
	if created.Cart.DeliveryPrefecture != "大阪府" {
		t.Errorf("DeliveryPrefecture = %q", created.Cart.DeliveryPrefecture)
	}
	if created.Cart.ImageCount != 2 {
		t.Errorf("ImageCount = %d", created.Cart.ImageCount)
	}

	got, err := c.GetCart(ctx, created.CartToken)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	want := model.Yen(2*backendtest.PricePerImage*11/10 + backendtest.ShippingFee*11/10)
	if got.Cart.TotalAmount != want {
		t.Errorf("TotalAmount = %d, ожидалось %d", got.Cart.TotalAmount, want)
	}

	checkout, err := c.CreateCheckoutSession(ctx, created.CartToken)
	if err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}
	if !checkout.Success || checkout.SessionID == "" || !strings.Contains(checkout.CheckoutURL, checkout.SessionID) {
		t.Fatalf("неожиданный checkout: %+v", checkout)
	}

	paid, err := c.PaymentSuccess(ctx, checkout.SessionID, created.CartToken)
	if err != nil {
		t.Fatalf("PaymentSuccess: %v", err)
	}
	if !paid.Success || paid.Order == nil || paid.Order.OrderNumber != "PH-000001" {
		t.Fatalf("неожиданный заказ: %+v", paid)
	}
	if paid.Order.Status != "paid" {
		t.Errorf("Status = %q", paid.Order.Status)
	}
}

// TestNewCreateCartRequest_SameAddress проверяет, что delivery_* не отправляются.
func TestNewCreateCartRequest_SameAddress(t *testing.T) {
	delivery := &model.AddressData{PostalCode: "530-0001"}
	req := NewCreateCartRequest("tok", model.CustomerData{PostalCode: "100-0001"}, delivery, true)
	if req.DeliveryPostalCode != "" {
		t.Errorf("DeliveryPostalCode = %q, ожидалась пустая строка", req.DeliveryPostalCode)
	}
	if !req.UseSameAddress {
		t.Error("UseSameAddress = false")
	}
}

// TestNew_InvalidCA проверяет ошибку при отсутствии PEM в файле CA.
func TestNew_InvalidCA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New("https://api.example.test", "", path, time.Second, testLogger()); err == nil {
		t.Error("ожидалась ошибка загрузки CA")
	}
	if _, err := New("https://api.example.test", "", filepath.Join(t.TempDir(), "missing.pem"), time.Second, testLogger()); err == nil {
		t.Error("ожидалась ошибка чтения CA")
	}
}

// TestClient_ContextCanceled проверяет прерывание запроса отменой контекста.
func TestClient_ContextCanceled(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(block)
		server.Close()
	})

	c := newTestClient(t, server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetCart(ctx, "ct")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ожидалась DeadlineExceeded, получено %v", err)
	}
}
