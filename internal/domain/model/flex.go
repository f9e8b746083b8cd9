// flex.go — типы, терпимые к представлению значений в JSON бэкенда
// (идентификаторы и суммы приходят то числом, то строкой).
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ID — идентификатор сущности бэкенда: UUID-строка или автоинкрементное число.
type ID string

// UnmarshalJSON принимает JSON-строку, число или null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("идентификатор %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// String возвращает идентификатор как строку.
func (id ID) String() string { return string(id) }

// Yen — денежная сумма в иенах. Бэкенд отдаёт decimal-поля строками ("1200.00").
type Yen int64

// UnmarshalJSON принимает число, числовую строку или null.
func (y *Yen) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*y = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("сумма %q: %w", raw, err)
	}
	*y = Yen(math.Round(f))
	return nil
}

// Rate — ставка налога (0.10). Как и суммы, может прийти строкой.
type Rate float64

// UnmarshalJSON принимает число, числовую строку или null.
func (r *Rate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("ставка %q: %w", raw, err)
	}
	*r = Rate(f)
	return nil
}
