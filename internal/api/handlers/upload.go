// upload.go — шаг 1: подготовка файлов, превью и отправка в backend API.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/printhome/checkout-web/internal/api/errors"
	"github.com/bigkaa/printhome/checkout-web/internal/api/middleware"
	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
	"github.com/bigkaa/printhome/checkout-web/internal/flow"
	"github.com/bigkaa/printhome/checkout-web/internal/service"
	"github.com/bigkaa/printhome/checkout-web/internal/staging"
	"github.com/bigkaa/printhome/checkout-web/internal/validation"
)

// multipartMemory — часть multipart-формы, удерживаемая в памяти при разборе.
const multipartMemory = 32 << 20

// stagedFileView — подготовленный файл в ответе.
type stagedFileView struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	SizeLabel   string `json:"size_label"`
	ContentType string `json:"content_type"`
	PreviewURL  string `json:"preview_url"`
}

// uploadView — состояние шага 1.
type uploadView struct {
	Staged     []stagedFileView     `json:"staged"`
	Session    service.SessionState `json:"session"`
	TotalCount int                  `json:"total_count"`
	MaxImages  int                  `json:"max_images"`
	Accept     string               `json:"accept"`
}

func (h *APIHandler) uploadView(v *middleware.Visit) uploadView {
	files := v.Flow.Store.Files()
	staged := make([]stagedFileView, len(files))
	for i, f := range files {
		staged[i] = stagedFileView{
			Index:       i,
			Name:        f.Name(),
			Size:        f.Size(),
			SizeLabel:   validation.FormatFileSize(f.Size()),
			ContentType: f.File.ContentType,
			PreviewURL:  "/api/v1/previews/" + f.PreviewID,
		}
	}
	session := v.Flow.Sessions.State()
	cfg := v.Flow.Store.Config()
	return uploadView{
		Staged:     staged,
		Session:    session,
		TotalCount: len(staged) + len(session.Images),
		MaxImages:  cfg.MaxImages,
		Accept:     validation.AcceptString(cfg),
	}
}

// GetUpload — GET /api/v1/upload?token=.
// Токен в запросе (возврат со следующего шага) становится активным.
func (h *APIHandler) GetUpload(w http.ResponseWriter, r *http.Request) {
	v, ok := h.visit(w, r)
	if !ok {
		return
	}

	if token := r.URL.Query().Get("token"); token != "" && token != v.Flow.Sessions.ActiveToken() {
		if err := v.Flow.Sessions.SetActiveToken(r.Context(), token); errors.Is(err, service.ErrClosed) {
			apierrors.InternalError(w, err.Error())
			return
		}
		v.SyncSession()
		h.saveVisit(w, v)
	}

	writeJSON(w, http.StatusOK, h.uploadView(v))
}

// AddFiles — POST /api/v1/upload/files, multipart-поле images (или images[]).
// Прошедшие проверку файлы добавляются даже при ошибках других файлов;
// 422 — только если не добавлено ни одного файла.
func (h *APIHandler) AddFiles(w http.ResponseWriter, r *http.Request) {
	v, ok := h.visit(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.PayloadTooLarge(w, fmt.Sprintf("Размер запроса превышает %s", validation.FormatFileSize(tooLarge.Limit)))
			return
		}
		apierrors.ValidationError(w, "Некорректная multipart-форма: "+err.Error())
		return
	}

	headers := slices.Concat(r.MultipartForm.File["images"], r.MultipartForm.File["images[]"])
	if len(headers) == 0 {
		apierrors.ValidationError(w, "画像ファイルが選択されていません。")
		return
	}

	limit := v.Flow.Store.Config().MaxFileSizeBytes
	candidates := make([]model.LocalFile, 0, len(headers))
	for _, fh := range headers {
		f, err := readFormFile(fh, limit)
		if err != nil {
			h.logger.Warn("Не удалось прочитать файл формы",
				slog.String("file", fh.Filename),
				slog.String("error", err.Error()),
			)
			apierrors.ValidationError(w, fmt.Sprintf("%sを読み込めませんでした。", fh.Filename))
			return
		}
		candidates = append(candidates, f)
	}

	res := v.Flow.Store.Add(candidates)
	if !res.Valid && len(res.Accepted) == 0 {
		apierrors.Unprocessable(w, res.Errors[0].Message, res.Errors)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Result  validation.Result `json:"result"`
		Summary string            `json:"summary,omitempty"`
		uploadView
	}{res, validation.ErrorSummary(res.Errors), h.uploadView(v)})
}

// RemoveFile — DELETE /api/v1/upload/files/{index}.
func (h *APIHandler) RemoveFile(w http.ResponseWriter, r *http.Request) {
	v, ok := h.visit(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		apierrors.ValidationError(w, "Некорректный индекс файла")
		return
	}
	if _, err := v.Flow.Store.Remove(index); err != nil {
		if errors.Is(err, staging.ErrIndexOutOfRange) {
			apierrors.NotFound(w, err.Error())
			return
		}
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.uploadView(v))
}

// ClearFiles — DELETE /api/v1/upload/files.
func (h *APIHandler) ClearFiles(w http.ResponseWriter, r *http.Request) {
	v, ok := h.visit(w, r)
	if !ok {
		return
	}
	removed := v.Flow.Store.Clear()
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// GetPreview — GET /api/v1/previews/{id}. Доступны только превью своего визарда.
func (h *APIHandler) GetPreview(w http.ResponseWriter, r *http.Request) {
	v, ok := h.visit(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	owned := slices.ContainsFunc(v.Flow.Store.Files(), func(f model.StagedFile) bool {
		return f.PreviewID == id
	})
	if !owned {
		apierrors.NotFound(w, staging.ErrPreviewNotFound.Error())
		return
	}

	f, rc, err := h.previews.Open(id)
	if err != nil {
		if errors.Is(err, staging.ErrPreviewNotFound) {
			apierrors.NotFound(w, err.Error())
			return
		}
		h.logger.Error("Ошибка открытия превью", slog.String("preview_id", id), slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось открыть превью")
		return
	}
	defer rc.Close()

	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

// SubmitUpload — POST /api/v1/upload/submit.
// Загружает подготовленные файлы вместе с активным токеном. При успехе
// хранилище очищается, токен сохраняется в cookie.
func (h *APIHandler) SubmitUpload(w http.ResponseWriter, r *http.Request) {
	v, ok := h.visit(w, r)
	if !ok {
		return
	}

	res := v.Flow.Submit(r.Context(), h.orchestrator)
	if !res.Success {
		apierrors.UploadFailed(w, res.Error)
		return
	}

	v.SyncSession()
	h.saveVisit(w, v)

	writeJSON(w, http.StatusOK, struct {
		model.UploadResult
		Redirect string               `json:"redirect"`
		Session  service.SessionState `json:"session"`
	}{res, flow.CustomerInfoURL(res.Token), v.Flow.Sessions.State()})
}

// readFormFile копирует файл формы в память: временные файлы multipart
// удаляются после ответа, а staging живёт дольше запроса.
// Файлы больше limit не читаются, их отклонит проверка размера.
func readFormFile(fh *multipart.FileHeader, limit int64) (model.LocalFile, error) {
	f := model.LocalFile{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
	}
	if fh.Size > limit {
		return f, nil
	}

	src, err := fh.Open()
	if err != nil {
		return f, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return f, err
	}
	f.Source = model.BytesSource(data)
	return f, nil
}
