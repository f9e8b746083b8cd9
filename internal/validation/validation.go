// Пакет validation — проверка файлов-кандидатов перед staging
// (количество, формат, размер, дубликаты) и проверка данных покупателя.
// Все функции чистые: без ввода-вывода и побочных эффектов.
package validation

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
)

// MiB — мебибайт.
const MiB = 1024 * 1024

// Kind — тип ошибки валидации.
type Kind string

// Типы ошибок валидации.
const (
	KindFileType  Kind = "file_type"
	KindFileSize  Kind = "file_size"
	KindFileCount Kind = "file_count"
	KindDuplicate Kind = "duplicate"
	KindCorrupted Kind = "corrupted"
)

// ValidationError — ошибка валидации одного файла или всей пачки.
type ValidationError struct {
	Kind     Kind   `json:"type"`
	Message  string `json:"message"`
	FileName string `json:"file_name,omitempty"`
}

// Error реализует интерфейс error.
func (e ValidationError) Error() string {
	return e.Message
}

// Config — ограничения на загружаемые изображения.
// Неизменяем в рамках одного вызова Validate.
type Config struct {
	MaxImages         int      `yaml:"max_images"`
	MaxFileSizeBytes  int64    `yaml:"max_file_size_bytes"`
	AllowedMIMETypes  []string `yaml:"allowed_mime_types"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// DefaultConfig возвращает ограничения по умолчанию: 20 изображений, 10 MiB, JPEG/PNG.
func DefaultConfig() Config {
	return Config{
		MaxImages:         20,
		MaxFileSizeBytes:  10 * MiB,
		AllowedMIMETypes:  []string{"image/jpeg", "image/jpg", "image/png"},
		AllowedExtensions: []string{".jpg", ".jpeg", ".png"},
	}
}

// Check проверяет согласованность ограничений.
func (c Config) Check() error {
	if c.MaxImages < 1 {
		return fmt.Errorf("max_images должен быть >= 1, получено %d", c.MaxImages)
	}
	if c.MaxFileSizeBytes < 1 {
		return fmt.Errorf("max_file_size_bytes должен быть >= 1, получено %d", c.MaxFileSizeBytes)
	}
	if len(c.AllowedMIMETypes) == 0 && len(c.AllowedExtensions) == 0 {
		return fmt.Errorf("не задан ни один допустимый MIME-тип или расширение")
	}
	return nil
}

// Result — результат валидации пачки файлов.
type Result struct {
	// Valid — true, если ошибок нет
	Valid bool `json:"is_valid"`
	// Errors — все обнаруженные ошибки
	Errors []ValidationError `json:"errors"`
	// Accepted — прошедшие проверки файлы в исходном порядке (с учётом лимита)
	Accepted []model.LocalFile `json:"-"`
	// Truncated — имена прошедших проверки файлов, отброшенных из-за лимита количества
	Truncated []string `json:"truncated,omitempty"`
}

// Validate проверяет пачку кандидатов относительно уже подготовленных файлов.
//
// Правило количества срабатывает один раз на пачку и не исключает файлы
// из дальнейших проверок. Остальные правила применяются к каждому файлу
// независимо; первое сработавшее правило исключает файл. Прошедшие файлы
// ограничиваются остатком квоты MaxImages-len(staged), отброшенные
// перечисляются в Truncated.
func Validate(candidates []model.LocalFile, staged []model.StagedFile, cfg Config) Result {
	return ValidateWith(candidates, staged, cfg, nil)
}

// FileCheck — дополнительная проверка одного файла. Возвращает nil, если
// файл допустим.
type FileCheck func(f model.LocalFile) *ValidationError

// ValidateWith работает как Validate, но перед ограничением по квоте
// прогоняет каждый прошедший файл через check. Отклонённые check файлы
// не занимают место в квоте.
func ValidateWith(candidates []model.LocalFile, staged []model.StagedFile, cfg Config, check FileCheck) Result {
	errs := make([]ValidationError, 0)
	accepted := make([]model.LocalFile, 0, len(candidates))

	if len(staged)+len(candidates) > cfg.MaxImages {
		errs = append(errs, ValidationError{
			Kind:    KindFileCount,
			Message: fmt.Sprintf("最大%d枚まで選択可能です。現在%d枚選択済みです。", cfg.MaxImages, len(staged)),
		})
	}

	for _, f := range candidates {
		if !cfg.typeAllowed(f) {
			errs = append(errs, ValidationError{
				Kind:     KindFileType,
				Message:  fmt.Sprintf("%sは対応していない形式です。JPGまたはPNG形式のファイルを選択してください。", f.Name),
				FileName: f.Name,
			})
			continue
		}

		if f.Size > cfg.MaxFileSizeBytes {
			errs = append(errs, ValidationError{
				Kind: KindFileSize,
				Message: fmt.Sprintf("%sのファイルサイズが大きすぎます（%sMB）。%sMB以下のファイルを選択してください。",
					f.Name, formatMiB(f.Size), formatMiB(cfg.MaxFileSizeBytes)),
				FileName: f.Name,
			})
			continue
		}

		if slices.ContainsFunc(staged, func(s model.StagedFile) bool { return sameFile(s.File, f) }) {
			errs = append(errs, ValidationError{
				Kind:     KindDuplicate,
				Message:  fmt.Sprintf("%sは既に選択済みです。", f.Name),
				FileName: f.Name,
			})
			continue
		}

		if slices.ContainsFunc(accepted, func(a model.LocalFile) bool { return sameFile(a, f) }) {
			errs = append(errs, ValidationError{
				Kind:     KindDuplicate,
				Message:  fmt.Sprintf("%sが重複しています。", f.Name),
				FileName: f.Name,
			})
			continue
		}

		if check != nil {
			if verr := check(f); verr != nil {
				errs = append(errs, *verr)
				continue
			}
		}

		accepted = append(accepted, f)
	}

	res := Result{
		Valid:  len(errs) == 0,
		Errors: errs,
	}

	quota := max(cfg.MaxImages-len(staged), 0)
	if len(accepted) > quota {
		for _, f := range accepted[quota:] {
			res.Truncated = append(res.Truncated, f.Name)
		}
		accepted = accepted[:quota]
	}
	res.Accepted = accepted

	return res
}

// CheckFile проверяет один файл по правилам формата и размера.
// Возвращает nil, если файл допустим.
func CheckFile(f model.LocalFile, cfg Config) *ValidationError {
	res := Validate([]model.LocalFile{f}, nil, Config{
		MaxImages:         1,
		MaxFileSizeBytes:  cfg.MaxFileSizeBytes,
		AllowedMIMETypes:  cfg.AllowedMIMETypes,
		AllowedExtensions: cfg.AllowedExtensions,
	})
	if len(res.Errors) == 0 {
		return nil
	}
	return &res.Errors[0]
}

// typeAllowed — файл допустим, если его MIME-тип или расширение разрешены.
func (c Config) typeAllowed(f model.LocalFile) bool {
	if slices.Contains(c.AllowedMIMETypes, f.ContentType) {
		return true
	}
	ext := Extension(f.Name)
	if ext == "" {
		return false
	}
	for _, allowed := range c.AllowedExtensions {
		if normalizeExtension(allowed) == ext {
			return true
		}
	}
	return false
}

// sameFile — файлы считаются одинаковыми при совпадении имени и размера.
func sameFile(a, b model.LocalFile) bool {
	return a.Name == b.Name && a.Size == b.Size
}

// Extension возвращает расширение имени файла в нижнем регистре с точкой
// (подстрока после последней точки) или пустую строку, если точки нет.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i:])
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// formatMiB — размер в MiB, округлённый до одного знака после запятой (10.5, 11).
func formatMiB(size int64) string {
	v := math.Round(float64(size)/MiB*10) / 10
	return strconv.FormatFloat(v, 'f', -1, 64)
}
