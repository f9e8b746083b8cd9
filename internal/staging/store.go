// store.go — упорядоченный список файлов, выбранных, но ещё не загруженных.
package staging

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
	"github.com/bigkaa/printhome/checkout-web/internal/validation"
)

// ErrIndexOutOfRange — индекс удаляемого файла вне диапазона.
var ErrIndexOutOfRange = errors.New("индекс файла вне диапазона")

// Store — staging-хранилище одного экземпляра мастера.
//
// Инвариант: preview-дескриптор каждого файла выделяется ровно один раз
// в Append и освобождается ровно один раз: в Remove, RemoveByPreview или Clear.
// После успешной передачи файлов в UploadOrchestrator вызывающий код
// удаляет именно переданные файлы через RemoveByPreview: файлы,
// добавленные во время загрузки, остаются в хранилище.
type Store struct {
	mu              sync.Mutex
	files           []model.StagedFile
	previews        PreviewAllocator
	cfg             validation.Config
	verifyDecodable bool
	logger          *slog.Logger
}

// NewStore создаёт пустое хранилище.
// verifyDecodable — дополнительно проверять, что содержимое читается как изображение.
func NewStore(previews PreviewAllocator, cfg validation.Config, verifyDecodable bool, logger *slog.Logger) *Store {
	return &Store{
		previews:        previews,
		cfg:             cfg,
		verifyDecodable: verifyDecodable,
		logger:          logger.With(slog.String("component", "staging_store")),
	}
}

// Config возвращает ограничения, с которыми работает хранилище.
func (s *Store) Config() validation.Config {
	return s.cfg
}

// Add валидирует пачку кандидатов относительно текущего содержимого
// и добавляет прошедшие проверку файлы. Ошибки одних файлов не мешают
// добавлению других. Preview выделяются только для добавленных файлов.
func (s *Store) Add(candidates []model.LocalFile) validation.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	var check validation.FileCheck
	if s.verifyDecodable {
		check = s.checkDecodable
	}
	res := validation.ValidateWith(candidates, s.files, s.cfg, check)

	s.appendLocked(res.Accepted)

	s.logger.Debug("Пачка файлов обработана",
		slog.Int("candidates", len(candidates)),
		slog.Int("accepted", len(res.Accepted)),
		slog.Int("errors", len(res.Errors)),
		slog.Int("staged", len(s.files)),
	)
	return res
}

// Append добавляет файлы без валидации и возвращает добавленные записи.
func (s *Store) Append(files ...model.LocalFile) []model.StagedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(files)
}

func (s *Store) appendLocked(files []model.LocalFile) []model.StagedFile {
	added := make([]model.StagedFile, 0, len(files))
	for _, f := range files {
		sf := model.StagedFile{File: f, PreviewID: s.previews.Allocate(f)}
		s.files = append(s.files, sf)
		added = append(added, sf)
	}
	return added
}

// Remove удаляет файл по индексу и освобождает его preview.
func (s *Store) Remove(index int) (model.StagedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.files) {
		return model.StagedFile{}, fmt.Errorf("%w: %d (файлов: %d)", ErrIndexOutOfRange, index, len(s.files))
	}

	removed := s.files[index]
	s.files = append(s.files[:index], s.files[index+1:]...)
	s.release(removed)
	return removed, nil
}

// RemoveByPreview удаляет файлы с указанными preview-дескрипторами и
// освобождает их preview. Неизвестные id пропускаются. Возвращает
// количество удалённых.
func (s *Store) RemoveByPreview(ids ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	kept := s.files[:0]
	n := 0
	for _, f := range s.files {
		if _, ok := drop[f.PreviewID]; ok {
			s.release(f)
			n++
			continue
		}
		kept = append(kept, f)
	}
	clear(s.files[len(kept):])
	s.files = kept
	return n
}

// Clear удаляет все файлы, освобождая их preview. Возвращает количество удалённых.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.files)
	for _, f := range s.files {
		s.release(f)
	}
	s.files = nil
	return n
}

// Files возвращает копию списка файлов.
func (s *Store) Files() []model.StagedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.StagedFile(nil), s.files...)
}

// Len возвращает количество файлов.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

func (s *Store) release(f model.StagedFile) {
	if !s.previews.Release(f.PreviewID) {
		s.logger.Warn("Preview уже освобождён",
			slog.String("preview_id", f.PreviewID),
			slog.String("file", f.File.Name),
		)
	}
}

// checkDecodable отклоняет файл, содержимое которого не читается как изображение.
func (s *Store) checkDecodable(f model.LocalFile) *validation.ValidationError {
	if err := checkSource(f); err != nil {
		s.logger.Debug("Файл не распознан как изображение",
			slog.String("file", f.Name),
			slog.String("error", err.Error()),
		)
		verr := validation.CorruptedError(f.Name)
		return &verr
	}
	return nil
}

// checkSource проверяет, что содержимое файла читается как изображение.
func checkSource(f model.LocalFile) error {
	if f.Source == nil {
		return errors.New("нет источника содержимого")
	}
	rc, err := f.Source.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return validation.CheckDecodable(rc)
}
