// steps.go — шаги визарда оформления заказа и переходы между ними.
package flow

import "net/url"

// Пути страниц визарда.
const (
	PathHome   = "/"
	PathStep1  = "/step1"
	PathStep2  = "/step2"
	PathStep3  = "/step3"
	PathStep4  = "/step4"
	PathThanks = "/thanks"
)

// Step — описание шага для индикатора прогресса.
type Step struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Path        string `json:"path"`
}

// Steps — шаги визарда Print Home в порядке прохождения.
var Steps = []Step{
	{ID: "upload", Title: "画像アップロード", Description: "最大20枚", Path: PathStep1},
	{ID: "customer-info", Title: "お客様情報", Description: "配送先入力", Path: PathStep2},
	{ID: "confirmation", Title: "最終確認", Description: "内容確認", Path: PathStep3},
	{ID: "payment", Title: "決済", Description: "お支払い", Path: PathStep4},
}

// StepIndexFromPath возвращает индекс шага по пути страницы.
// Неизвестный путь считается первым шагом.
func StepIndexFromPath(path string) int {
	for i, s := range Steps {
		if s.Path == path {
			return i
		}
	}
	return 0
}

// PathFromStepIndex возвращает путь шага; вне диапазона — домашняя страница.
func PathFromStepIndex(index int) string {
	if index < 0 || index >= len(Steps) {
		return PathHome
	}
	return Steps[index].Path
}

// NextStepPath возвращает путь следующего шага.
// ok == false для последнего шага.
func NextStepPath(current string) (path string, ok bool) {
	next := StepIndexFromPath(current) + 1
	if next >= len(Steps) {
		return "", false
	}
	return PathFromStepIndex(next), true
}

// PreviousStepPath возвращает путь предыдущего шага, с первого — домашнюю страницу.
func PreviousStepPath(current string) string {
	return PathFromStepIndex(StepIndexFromPath(current) - 1)
}

// UploadURL — шаг 1, с токеном сессии для дозагрузки.
func UploadURL(token string) string {
	return withQuery(PathStep1, "token", token)
}

// CustomerInfoURL — шаг 2 после загрузки изображений.
func CustomerInfoURL(token string) string {
	return withQuery(PathStep2, "token", token)
}

// ConfirmationURL — шаг 3 после создания корзины.
func ConfirmationURL(cartToken string) string {
	return withQuery(PathStep3, "cart", cartToken)
}

// PaymentURL — шаг 4.
func PaymentURL(cartToken string) string {
	return withQuery(PathStep4, "cart", cartToken)
}

// ThanksURL — страница благодарности после оплаты.
func ThanksURL(orderNumber string) string {
	return withQuery(PathThanks, "order", orderNumber)
}

func withQuery(path, key, value string) string {
	if value == "" {
		return path
	}
	return path + "?" + url.Values{key: {value}}.Encode()
}
