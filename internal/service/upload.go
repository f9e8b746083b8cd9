// upload.go — оркестратор загрузки: предварительные проверки и одна
// multipart-отправка локальных файлов вместе с существующим токеном.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/printhome/checkout-web/internal/backend"
	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
	"github.com/bigkaa/printhome/checkout-web/internal/validation"
)

var uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cw_uploads_total",
	Help: "Количество оркестрированных загрузок (по результату).",
}, []string{"result"})

// ImageAPI — эндпоинты изображений backend API.
type ImageAPI interface {
	Upload(ctx context.Context, files []model.LocalFile, existingToken string) (*backend.UploadResponse, error)
	GetSessionImages(ctx context.Context, token string) (*backend.SessionImagesResponse, error)
	DeleteSession(ctx context.Context, token string) (*backend.StatusResponse, error)
	DeleteImage(ctx context.Context, token, filename string) (*backend.StatusResponse, error)
}

// UploadOrchestrator отправляет локальные файлы на бэкенд одним запросом.
// Хранилище staging не изменяет: очистка после успеха — забота вызывающего.
type UploadOrchestrator struct {
	api    ImageAPI
	cfg    validation.Config
	logger *slog.Logger
}

// NewUploadOrchestrator создаёт оркестратор загрузки.
func NewUploadOrchestrator(api ImageAPI, cfg validation.Config, logger *slog.Logger) *UploadOrchestrator {
	return &UploadOrchestrator{
		api:    api,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "upload_orchestrator")),
	}
}

// Submit проверяет файлы и отправляет их вместе с existingToken.
// Любой сбой возвращается как UploadResult{Success: false, Error: ...}.
// Без файлов и с existingToken возвращает успех с этим токеном без сетевого вызова.
func (o *UploadOrchestrator) Submit(ctx context.Context, files []model.LocalFile, existingToken string) (res model.UploadResult) {
	defer func() {
		if p := recover(); p != nil {
			o.logger.Error("Паника при загрузке", slog.Any("panic", p))
			res = failed(fmt.Sprintf("アップロードエラー: %v", p))
		}
		result := "success"
		if !res.Success {
			result = "failure"
		}
		uploadsTotal.WithLabelValues(result).Inc()
	}()

	if len(files) == 0 {
		if existingToken != "" {
			return model.UploadResult{Success: true, Token: existingToken}
		}
		return failed("画像ファイルが選択されていません。")
	}

	if len(files) > o.cfg.MaxImages {
		return failed(fmt.Sprintf("画像は最大%d枚まで選択可能です。", o.cfg.MaxImages))
	}

	var msgs []string
	for _, f := range files {
		if verr := validation.CheckFile(f, o.cfg); verr != nil {
			msgs = append(msgs, verr.Message)
		}
	}
	if len(msgs) > 0 {
		return failed(strings.Join(msgs, " "))
	}

	resp, err := o.api.Upload(ctx, files, existingToken)
	if err != nil {
		o.logger.Warn("Ошибка загрузки изображений",
			slog.Int("files", len(files)),
			slog.String("error", err.Error()),
		)
		return failed("アップロードエラー: " + err.Error())
	}

	if !resp.Success || resp.Token == "" {
		return failed(firstNonEmpty(resp.Message, strings.Join(resp.Errors, ", "), "アップロードに失敗しました。"))
	}

	return model.UploadResult{
		Success:    true,
		Token:      resp.Token,
		ImageCount: len(resp.Images),
	}
}

func failed(msg string) model.UploadResult {
	return model.UploadResult{Success: false, Error: msg}
}
