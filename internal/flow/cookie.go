// Пакет flow — состояние визарда на стороне браузера: шаги и cookie
// посетителя, зашифрованный AES-256-GCM.
package flow

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CookieName — имя cookie состояния визарда.
const CookieName = "printhome_flow"

// ErrInvalidState — cookie повреждён или зашифрован другим ключом.
var ErrInvalidState = errors.New("セッション情報が不正です。最初からやり直してください。")

// State — то, что переживает переходы между страницами и рестарты сервиса.
type State struct {
	// VisitorID — ключ состояния визарда и черновика покупателя.
	VisitorID string `json:"v"`
	// SessionToken — активный токен upload-сессии.
	SessionToken string `json:"s,omitempty"`
	// CartToken — токен корзины после шага 2.
	CartToken string `json:"c,omitempty"`
}

// Cookie шифрует State в HTTP cookie.
type Cookie struct {
	gcm    cipher.AEAD
	secure bool
	maxAge time.Duration
}

// NewCookie создаёт менеджер cookie.
// key — base64 от 32 байт либо произвольная строка (хешируется SHA-256).
// Пустой key — случайный ключ: cookie не переживут рестарт.
func NewCookie(key string, secure bool, maxAge time.Duration) (*Cookie, error) {
	var keyBytes []byte
	if key == "" {
		keyBytes = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, keyBytes); err != nil {
			return nil, fmt.Errorf("генерация ключа cookie: %w", err)
		}
	} else {
		decoded, err := base64.StdEncoding.DecodeString(key)
		if err == nil && len(decoded) == 32 {
			keyBytes = decoded
		} else {
			sum := sha256.Sum256([]byte(key))
			keyBytes = sum[:]
		}
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("создание AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("создание GCM: %w", err)
	}

	return &Cookie{gcm: gcm, secure: secure, maxAge: maxAge}, nil
}

// Encode шифрует состояние; nonce предшествует шифротексту.
func (c *Cookie) Encode(st State) (string, error) {
	plaintext, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("сериализация состояния: %w", err)
	}
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("генерация nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(c.gcm.Seal(nonce, nonce, plaintext, nil)), nil
}

// Decode расшифровывает состояние. Любая ошибка — ErrInvalidState.
func (c *Cookie) Decode(value string) (State, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return State{}, fmt.Errorf("%w: base64: %v", ErrInvalidState, err)
	}
	n := c.gcm.NonceSize()
	if len(raw) < n {
		return State{}, fmt.Errorf("%w: слишком короткое значение", ErrInvalidState)
	}
	plaintext, err := c.gcm.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	var st State
	if err := json.Unmarshal(plaintext, &st); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if st.VisitorID == "" {
		return State{}, fmt.Errorf("%w: пустой visitor id", ErrInvalidState)
	}
	return st, nil
}

// Read извлекает состояние из запроса. ok == false, если cookie нет.
func (c *Cookie) Read(r *http.Request) (st State, ok bool, err error) {
	cookie, err := r.Cookie(CookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	st, err = c.Decode(cookie.Value)
	if err != nil {
		return State{}, false, err
	}
	return st, true, nil
}

// Write устанавливает cookie с состоянием.
func (c *Cookie) Write(w http.ResponseWriter, st State) error {
	value, err := c.Encode(st)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(c.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear удаляет cookie.
func (c *Cookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
