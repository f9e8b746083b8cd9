// decode.go — проверка, что содержимое файла является читаемым изображением.
package validation

import (
	"fmt"
	"image"
	_ "image/jpeg" // регистрация декодера JPEG
	_ "image/png"  // регистрация декодера PNG
	"io"
)

// CheckDecodable читает заголовок изображения и возвращает ошибку,
// если содержимое не распознаётся как JPEG или PNG.
func CheckDecodable(r io.Reader) error {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return fmt.Errorf("декодирование заголовка изображения: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("некорректные размеры изображения %s: %dx%d", format, cfg.Width, cfg.Height)
	}
	return nil
}

// CorruptedError формирует ошибку валидации для нечитаемого файла.
func CorruptedError(name string) ValidationError {
	return ValidationError{
		Kind:     KindCorrupted,
		Message:  fmt.Sprintf("%sは破損しているか、画像として読み込めません。", name),
		FileName: name,
	}
}
