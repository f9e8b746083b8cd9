// customer.go — проверка данных покупателя и адреса доставки.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
)

// FieldErrors — ошибки по полям формы (имя поля в JSON → сообщение).
type FieldErrors map[string]string

// Valid — true, если ошибок нет.
func (fe FieldErrors) Valid() bool {
	return len(fe) == 0
}

// Prefectures — список префектур Японии для выбора в форме адреса.
var Prefectures = []string{
	"北海道", "青森県", "岩手県", "宮城県", "秋田県", "山形県", "福島県",
	"茨城県", "栃木県", "群馬県", "埼玉県", "千葉県", "東京都", "神奈川県",
	"新潟県", "富山県", "石川県", "福井県", "山梨県", "長野県", "岐阜県",
	"静岡県", "愛知県", "三重県", "滋賀県", "京都府", "大阪府", "兵庫県",
	"奈良県", "和歌山県", "鳥取県", "島根県", "岡山県", "広島県", "山口県",
	"徳島県", "香川県", "愛媛県", "高知県", "福岡県", "佐賀県", "長崎県",
	"熊本県", "大分県", "宮崎県", "鹿児島県", "沖縄県",
}

var (
	separators      = regexp.MustCompile(`[-\s]`)
	mobilePattern   = regexp.MustCompile(`^(090|080|070)\d{8}$`)
	landlinePattern = regexp.MustCompile(`^0\d{9,10}$`)
	postalPattern   = regexp.MustCompile(`^\d{7}$`)
	// Упрощённый вариант RFC 5322.
	emailPattern = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")
)

// ValidPhoneNumber проверяет японский мобильный или стационарный номер.
// Дефисы и пробелы игнорируются.
func ValidPhoneNumber(phone string) bool {
	clean := separators.ReplaceAllString(phone, "")
	return mobilePattern.MatchString(clean) || landlinePattern.MatchString(clean)
}

// ValidEmail проверяет формат адреса электронной почты.
func ValidEmail(email string) bool {
	return len(email) <= 254 && emailPattern.MatchString(email)
}

// ValidPostalCode проверяет почтовый индекс из 7 цифр (дефис допускается).
func ValidPostalCode(code string) bool {
	return postalPattern.MatchString(separators.ReplaceAllString(code, ""))
}

// ValidateAddress проверяет адрес покупателя или доставки.
func ValidateAddress(a model.AddressData) FieldErrors {
	errs := FieldErrors{}

	switch {
	case strings.TrimSpace(a.PostalCode) == "":
		errs["postal_code"] = "郵便番号は必須です"
	case !ValidPostalCode(a.PostalCode):
		errs["postal_code"] = "郵便番号の形式が正しくありません（例：123-4567）"
	}

	if a.Prefecture == "" {
		errs["prefecture"] = "都道府県を選択してください"
	}

	switch {
	case strings.TrimSpace(a.City) == "":
		errs["city"] = "市区町村は必須です"
	case utf8.RuneCountInString(a.City) > 100:
		errs["city"] = "市区町村は100文字以内で入力してください"
	}

	switch {
	case strings.TrimSpace(a.AddressLine1) == "":
		errs["address_line1"] = "住所は必須です"
	case utf8.RuneCountInString(a.AddressLine1) > 200:
		errs["address_line1"] = "住所は200文字以内で入力してください"
	}

	if utf8.RuneCountInString(a.AddressLine2) > 200 {
		errs["address_line2"] = "建物名・部屋番号は200文字以内で入力してください"
	}

	return errs
}

// ValidateCustomer проверяет контактные данные и адрес покупателя.
func ValidateCustomer(c model.CustomerData) FieldErrors {
	errs := FieldErrors{}

	switch {
	case strings.TrimSpace(c.CustomerName) == "":
		errs["customer_name"] = "お名前は必須です"
	case utf8.RuneCountInString(c.CustomerName) > 100:
		errs["customer_name"] = "お名前は100文字以内で入力してください"
	}

	switch {
	case strings.TrimSpace(c.CustomerEmail) == "":
		errs["customer_email"] = "メールアドレスは必須です"
	case !ValidEmail(c.CustomerEmail):
		errs["customer_email"] = "メールアドレスの形式が正しくありません"
	}

	switch {
	case strings.TrimSpace(c.CustomerPhone) == "":
		errs["customer_phone"] = "電話番号は必須です"
	case !ValidPhoneNumber(c.CustomerPhone):
		errs["customer_phone"] = "電話番号の形式が正しくありません（例：090-1234-5678）"
	}

	for field, msg := range ValidateAddress(c.Address()) {
		errs[field] = msg
	}

	return errs
}
