// format.go — вспомогательные функции отображения результатов валидации.
package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatFileSize форматирует размер в человекочитаемый вид: "0 Bytes", "1.5 KB", "10 MB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}

	const k = 1024
	sizes := []string{"Bytes", "KB", "MB", "GB"}

	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(k)))
	i = min(i, len(sizes)-1)

	v := float64(bytes) / math.Pow(k, float64(i))
	v = math.Round(v*10) / 10
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizes[i]
}

// AcceptString формирует значение атрибута accept для <input type="file">.
func AcceptString(cfg Config) string {
	parts := make([]string, 0, len(cfg.AllowedMIMETypes)+len(cfg.AllowedExtensions))
	parts = append(parts, cfg.AllowedMIMETypes...)
	for _, ext := range cfg.AllowedExtensions {
		parts = append(parts, normalizeExtension(ext))
	}
	return strings.Join(parts, ",")
}

// FilterByKind возвращает ошибки указанного типа.
func FilterByKind(errs []ValidationError, kind Kind) []ValidationError {
	out := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// summaryLabels — порядок и подписи типов в сводке.
var summaryLabels = []struct {
	kind  Kind
	label string
}{
	{KindFileType, "形式エラー"},
	{KindFileSize, "サイズエラー"},
	{KindDuplicate, "重複エラー"},
	{KindFileCount, "枚数制限エラー"},
	{KindCorrupted, "破損ファイル"},
}

// ErrorSummary формирует краткую сводку ошибок по типам,
// например "形式エラー: 2件, 重複エラー: 1件".
func ErrorSummary(errs []ValidationError) string {
	if len(errs) == 0 {
		return ""
	}

	counts := make(map[Kind]int, len(summaryLabels))
	for _, e := range errs {
		counts[e.Kind]++
	}

	parts := make([]string, 0, len(summaryLabels))
	for _, l := range summaryLabels {
		if n := counts[l.kind]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d件", l.label, n))
		}
	}
	return strings.Join(parts, ", ")
}
