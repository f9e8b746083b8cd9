// Пакет model — доменные модели Checkout Web.
// file.go — локальные файлы-кандидаты и файлы, подготовленные к загрузке (staged).
package model

import (
	"bytes"
	"io"
	"os"
)

// FileSource — источник содержимого локального файла (binary handle).
// Каждый вызов Open возвращает новый поток с начала файла.
type FileSource interface {
	Open() (io.ReadCloser, error)
}

// BytesSource — содержимое файла, целиком находящееся в памяти.
type BytesSource []byte

// Open возвращает поток для чтения содержимого.
func (b BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// DiskSource — файл на локальном диске (используется CLI).
type DiskSource string

// Open открывает файл на диске.
func (p DiskSource) Open() (io.ReadCloser, error) {
	return os.Open(string(p))
}

// LocalFile — файл, выбранный пользователем, но ещё не подтверждённый бэкендом.
type LocalFile struct {
	// Name — отображаемое имя файла (как его прислал клиент)
	Name string
	// Size — размер в байтах
	Size int64
	// ContentType — заявленный MIME-тип
	ContentType string
	// Source — доступ к содержимому
	Source FileSource
}

// StagedFile — локальный файл в staging-хранилище вместе с preview-дескриптором.
// PreviewID выделяется один раз при добавлении и освобождается один раз при удалении.
type StagedFile struct {
	File      LocalFile
	PreviewID string
}

// Name — отображаемое имя файла.
func (s StagedFile) Name() string { return s.File.Name }

// Size — размер файла в байтах.
func (s StagedFile) Size() int64 { return s.File.Size }
