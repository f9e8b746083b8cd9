// Пакет backendtest — in-memory имитация backend API Print Home для тестов.
// Реализует все эндпоинты, которые использует backend.Client, и позволяет
// подменять ответы отдельных операций ошибками.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Операции (имена совпадают с label "operation" метрик клиента).
const (
	OpUpload         = "upload"
	OpSessionImages  = "session_images"
	OpDeleteSession  = "delete_session"
	OpDeleteImage    = "delete_image"
	OpCreateCart     = "create_cart"
	OpGetCart        = "get_cart"
	OpCreateCheckout = "create_checkout"
	OpPaymentSuccess = "payment_success"
)

// PricePerImage — цена печати одного изображения без налога (иены).
const PricePerImage = 100

// ShippingFee — стоимость доставки без налога (иены).
const ShippingFee = 500

// Image — изображение, сохранённое имитацией.
type Image struct {
	ID               int    `json:"id"`
	OriginalFilename string `json:"original_filename"`
	StoredFilename   string `json:"stored_filename"`
	FileSize         int64  `json:"file_size"`
	MimeType         string `json:"mime_type"`
}

type session struct {
	ID     int
	Token  string
	Images []Image
}

type cart struct {
	ID    int
	Token string
	Body  map[string]any
	Sess  *session
}

// failure — подменённый ответ операции.
type failure struct {
	status int
	body   map[string]any
}

// Fake — имитация backend API поверх httptest.Server.
type Fake struct {
	mu        sync.Mutex
	server    *httptest.Server
	sessions  map[string]*session
	carts     map[string]*cart
	checkouts map[string]string // session_id → cart_token
	calls     map[string]int
	failures  map[string]failure
	seq       int
	orders    int
}

// New запускает имитацию. Сервер останавливается в t.Cleanup.
func New(t testing.TB) *Fake {
	t.Helper()

	f := &Fake{
		sessions:  make(map[string]*session),
		carts:     make(map[string]*cart),
		checkouts: make(map[string]string),
		calls:     make(map[string]int),
		failures:  make(map[string]failure),
	}

	r := chi.NewRouter()
	r.Post("/api/images/upload", f.handle(OpUpload, f.upload))
	r.Get("/api/images/session/{token}", f.handle(OpSessionImages, f.sessionImages))
	r.Delete("/api/images/session/{token}", f.handle(OpDeleteSession, f.deleteSession))
	r.Delete("/api/images/file/{token}/{filename}", f.handle(OpDeleteImage, f.deleteImage))
	r.Post("/api/cart/create", f.handle(OpCreateCart, f.createCart))
	r.Get("/api/cart/{token}", f.handle(OpGetCart, f.getCart))
	r.Post("/api/payment/checkout/create", f.handle(OpCreateCheckout, f.createCheckout))
	r.Post("/api/payment/success", f.handle(OpPaymentSuccess, f.paymentSuccess))
	r.Get("/up", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)
	return f
}

// URL возвращает базовый адрес имитации.
func (f *Fake) URL() string {
	return f.server.URL
}

// Calls возвращает число обращений к операции.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// FailWith заставляет операцию отвечать status с телом body
// до вызова Recover. body == nil — тело {"success":false}.
func (f *Fake) FailWith(op string, status int, body map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if body == nil {
		body = map[string]any{"success": false}
	}
	f.failures[op] = failure{status: status, body: body}
}

// Recover снимает подмену ответа операции.
func (f *Fake) Recover(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, op)
}

// SeedSession создаёт сессию с изображениями заданных имён и возвращает её токен.
func (f *Fake) SeedSession(names ...string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.newSessionLocked()
	for _, name := range names {
		s.Images = append(s.Images, f.newImageLocked(name, 1024, "image/jpeg"))
	}
	return s.Token
}

// StoredFilenames возвращает имена файлов сессии в хранилище (nil — сессии нет).
func (f *Fake) StoredFilenames(token string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[token]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(s.Images))
	for _, img := range s.Images {
		names = append(names, img.StoredFilename)
	}
	return names
}

// HasSession — существует ли сессия.
func (f *Fake) HasSession(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[token]
	return ok
}

// handle считает вызовы и применяет подменённые ответы.
func (f *Fake) handle(op string, next func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls[op]++
		fail, failing := f.failures[op]
		f.mu.Unlock()

		if failing {
			writeJSON(w, fail.status, fail.body)
			return
		}
		next(w, r)
	}
}

func (f *Fake) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": err.Error()})
		return
	}
	files := r.MultipartForm.File["images[]"]
	if len(files) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"success": false, "errors": []string{"images は必須です。"},
		})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[r.FormValue("existing_token")]
	if !ok {
		s = f.newSessionLocked()
	}

	added := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		img := f.newImageLocked(fh.Filename, fh.Size, fh.Header.Get("Content-Type"))
		s.Images = append(s.Images, img)
		added = append(added, map[string]any{
			"id":           fmt.Sprint(img.ID),
			"originalName": img.OriginalFilename,
			"fileName":     img.StoredFilename,
			"size":         img.FileSize,
			"mimeType":     img.MimeType,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   s.Token,
		"images":  added,
		"session": sessionJSON(s),
	})
}

func (f *Fake) sessionImages(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[chi.URLParam(r, "token")]
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Session not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"session": sessionJSON(s),
		"images":  s.Images,
	})
}

func (f *Fake) deleteSession(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	token := chi.URLParam(r, "token")
	if _, ok := f.sessions[token]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Session not found"})
		return
	}
	delete(f.sessions, token)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (f *Fake) deleteImage(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[chi.URLParam(r, "token")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Session not found"})
		return
	}
	name := chi.URLParam(r, "filename")
	for i, img := range s.Images {
		if img.StoredFilename == name || fmt.Sprint(img.ID) == name {
			s.Images = append(s.Images[:i], s.Images[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Image not found"})
}

func (f *Fake) createCart(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	token, _ := body["session_token"].(string)
	s, ok := f.sessions[token]
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Invalid session token"})
		return
	}

	f.seq++
	c := &cart{ID: f.seq, Token: uuid.NewString(), Body: body, Sess: s}
	f.carts[c.Token] = c
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"cart_token": c.Token,
		"cart":       cartJSON(c),
	})
}

func (f *Fake) getCart(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.carts[chi.URLParam(r, "token")]
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Cart not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "cart": cartJSON(c)})
}

func (f *Fake) createCheckout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CartToken string `json:"cart_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.carts[body.CartToken]; !ok {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Cart not found"})
		return
	}
	sessionID := "cs_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	f.checkouts[sessionID] = body.CartToken
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"checkout_url": "https://checkout.example.test/pay/" + sessionID,
		"session_id":   sessionID,
	})
}

func (f *Fake) paymentSuccess(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string `json:"session_id"`
		CartToken string `json:"cart_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()

	cartToken, ok := f.checkouts[body.SessionID]
	if !ok || cartToken != body.CartToken {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Payment not completed"})
		return
	}
	c := f.carts[cartToken]
	f.orders++

	order := cartJSON(c)
	delete(order, "cart_token")
	delete(order, "upload_session")
	order["order_number"] = fmt.Sprintf("PH-%06d", f.orders)
	order["status"] = "paid"

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"order":      order,
		"session_id": body.SessionID,
	})
}

func (f *Fake) newSessionLocked() *session {
	f.seq++
	s := &session{ID: f.seq, Token: uuid.NewString()}
	f.sessions[s.Token] = s
	return s
}

func (f *Fake) newImageLocked(name string, size int64, mimeType string) Image {
	f.seq++
	return Image{
		ID:               f.seq,
		OriginalFilename: name,
		StoredFilename:   fmt.Sprintf("img_%d%s", f.seq, strings.ToLower(path.Ext(name))),
		FileSize:         size,
		MimeType:         mimeType,
	}
}

func sessionJSON(s *session) map[string]any {
	return map[string]any{
		"id":          s.ID,
		"token":       s.Token,
		"image_count": len(s.Images),
		"total_size":  fmt.Sprint(totalSize(s.Images)),
	}
}

// cartJSON формирует корзину в формате бэкенда: суммы — decimal-строки.
func cartJSON(c *cart) map[string]any {
	out := make(map[string]any, len(c.Body)+16)
	for k, v := range c.Body {
		if k != "session_token" {
			out[k] = v
		}
	}

	count := len(c.Sess.Images)
	itemEx := count * PricePerImage
	itemTax := itemEx / 10
	shipTax := ShippingFee / 10

	out["id"] = c.ID
	out["cart_token"] = c.Token
	out["upload_session_id"] = c.Sess.ID
	out["image_count"] = count
	out["item_amount_ex_tax"] = fmt.Sprintf("%d.00", itemEx)
	out["item_tax_amount"] = fmt.Sprintf("%d.00", itemTax)
	out["item_amount_inc_tax"] = fmt.Sprintf("%d.00", itemEx+itemTax)
	out["item_tax_rate"] = "0.10"
	out["shipping_amount_ex_tax"] = fmt.Sprintf("%d.00", ShippingFee)
	out["shipping_tax_amount"] = fmt.Sprintf("%d.00", shipTax)
	out["shipping_amount_inc_tax"] = fmt.Sprintf("%d.00", ShippingFee+shipTax)
	out["shipping_tax_rate"] = "0.10"
	out["total_amount"] = fmt.Sprintf("%d.00", itemEx+itemTax+ShippingFee+shipTax)
	out["upload_session"] = map[string]any{
		"id":              c.Sess.ID,
		"token":           c.Sess.Token,
		"uploaded_images": c.Sess.Images,
	}
	return out
}

func totalSize(images []Image) int64 {
	var n int64
	for _, img := range images {
		n += img.FileSize
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
