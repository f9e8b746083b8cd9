package flow

import (
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCookie_EncodeDecode(t *testing.T) {
	c, err := NewCookie("", false, time.Hour)
	if err != nil {
		t.Fatalf("NewCookie: %v", err)
	}

	want := State{VisitorID: "v1", SessionToken: "tok", CartToken: "cart"}
	value, err := c.Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(value, "tok") {
		t.Error("токен виден в открытом виде")
	}

	got, err := c.Decode(value)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != want {
		t.Errorf("Decode = %+v, want %+v", got, want)
	}
}

func TestCookie_Keys(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}
	b64 := base64.StdEncoding.EncodeToString(raw)

	a, err := NewCookie(b64, false, time.Hour)
	if err != nil {
		t.Fatalf("base64 ключ: %v", err)
	}
	b, err := NewCookie(b64, false, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	value, _ := a.Encode(State{VisitorID: "v1"})
	if _, err := b.Decode(value); err != nil {
		t.Errorf("одинаковый ключ должен расшифровывать: %v", err)
	}

	other, err := NewCookie("another-secret", false, time.Hour)
	if err != nil {
		t.Fatalf("строковый ключ: %v", err)
	}
	if _, err := other.Decode(value); !errors.Is(err, ErrInvalidState) {
		t.Errorf("чужой ключ: ожидалась ErrInvalidState, получено %v", err)
	}
}

func TestCookie_DecodeInvalid(t *testing.T) {
	c, _ := NewCookie("secret", false, time.Hour)
	empty, _ := c.Encode(State{})

	values := []string{
		"!!!",
		"AAAA",
		base64.RawURLEncoding.EncodeToString(make([]byte, 64)),
		empty,
	}
	for i, value := range values {
		if _, err := c.Decode(value); !errors.Is(err, ErrInvalidState) {
			t.Errorf("values[%d]: ожидалась ErrInvalidState, получено %v", i, err)
		}
	}
}

func TestCookie_WriteReadClear(t *testing.T) {
	c, _ := NewCookie("secret", true, 2*time.Hour)

	rec := httptest.NewRecorder()
	if err := c.Write(rec, State{VisitorID: "v1", SessionToken: "t"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d", len(cookies))
	}
	ck := cookies[0]
	if ck.Name != CookieName || !ck.HttpOnly || !ck.Secure || ck.MaxAge != 7200 || ck.Path != "/" {
		t.Errorf("неожиданные атрибуты cookie: %+v", ck)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(ck)
	st, ok, err := c.Read(req)
	if err != nil || !ok || st.SessionToken != "t" {
		t.Errorf("Read = %+v, %v, %v", st, ok, err)
	}

	_, ok, err = c.Read(httptest.NewRequest(http.MethodGet, "/", nil))
	if ok || err != nil {
		t.Errorf("без cookie: ok=%v err=%v", ok, err)
	}

	rec = httptest.NewRecorder()
	c.Clear(rec)
	if got := rec.Result().Cookies()[0]; got.MaxAge >= 0 {
		t.Errorf("Clear должен выставить MaxAge < 0: %+v", got)
	}
}
