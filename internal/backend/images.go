// images.go — эндпоинты изображений: загрузка, список сессии, удаление.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
)

// UploadResponse — ответ POST /api/images/upload.
type UploadResponse struct {
	Success bool                 `json:"success"`
	Token   string               `json:"token"`
	Images  []json.RawMessage    `json:"images"`
	Errors  []string             `json:"errors"`
	Message string               `json:"message"`
	Session *model.UploadSession `json:"session"`
}

// SessionImagesResponse — ответ GET /api/images/session/{token}.
// Images содержит готовые к показу изображения с URL.
type SessionImagesResponse struct {
	Success bool
	Session *model.UploadSession
	Images  []model.SessionImage
	// HasImages — в ответе было поле images (пустой список тоже считается)
	HasImages bool
	Error     string
	Message   string
}

// StatusResponse — ответ эндпоинтов удаления.
type StatusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// sessionImagesWire — сырой ответ списка изображений сессии.
type sessionImagesWire struct {
	Success bool                  `json:"success"`
	Session *model.UploadSession  `json:"session"`
	Images  *[]model.SessionImage `json:"images"`
	Error   string                `json:"error"`
	Message string                `json:"message"`
}

// Upload отправляет файлы одним multipart-запросом (поля images[] и
// existing_token). Тело формируется потоково, файлы не буферизуются целиком.
func (c *Client) Upload(ctx context.Context, files []model.LocalFile, existingToken string) (*UploadResponse, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadForm(mw, files, existingToken))
	}()

	var out UploadResponse
	err := c.doJSON(ctx, request{
		operation:   "upload",
		method:      http.MethodPost,
		path:        "/api/images/upload",
		body:        pr,
		contentType: mw.FormDataContentType(),
	}, &out)
	// Разблокирует писателя, если запрос завершился раньше чтения тела.
	pr.CloseWithError(io.ErrClosedPipe)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Изображения загружены",
		slog.String("token", out.Token),
		slog.Int("files", len(files)),
		slog.Int("images", len(out.Images)),
		slog.Bool("existing_token", existingToken != ""),
	)
	return &out, nil
}

// writeUploadForm пишет multipart-форму загрузки и закрывает writer.
func writeUploadForm(mw *multipart.Writer, files []model.LocalFile, existingToken string) error {
	for _, f := range files {
		if err := writeFilePart(mw, f); err != nil {
			return err
		}
	}
	if existingToken != "" {
		if err := mw.WriteField("existing_token", existingToken); err != nil {
			return fmt.Errorf("поле existing_token: %w", err)
		}
	}
	return mw.Close()
}

func writeFilePart(mw *multipart.Writer, f model.LocalFile) error {
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images[]"; filename="%s"`, escapeQuotes(f.Name)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("часть формы %s: %w", f.Name, err)
	}

	if f.Source == nil {
		return fmt.Errorf("у файла %s нет содержимого", f.Name)
	}
	rc, err := f.Source.Open()
	if err != nil {
		return fmt.Errorf("открытие файла %s: %w", f.Name, err)
	}
	defer rc.Close()

	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("копирование файла %s: %w", f.Name, err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// GetSessionImages возвращает изображения upload-сессии с публичными URL.
// URL строится по токену из ответа (session.token), при его отсутствии —
// по запрошенному токену.
func (c *Client) GetSessionImages(ctx context.Context, token string) (*SessionImagesResponse, error) {
	var wire sessionImagesWire
	err := c.doJSON(ctx, request{
		operation: "session_images",
		method:    http.MethodGet,
		path:      "/api/images/session/" + url.PathEscape(token),
	}, &wire)
	if err != nil {
		return nil, err
	}

	out := &SessionImagesResponse{
		Success:   wire.Success,
		Session:   wire.Session,
		HasImages: wire.Images != nil,
		Error:     wire.Error,
		Message:   wire.Message,
	}
	if wire.Images == nil {
		return out, nil
	}

	urlToken := token
	if wire.Session != nil && wire.Session.Token != "" {
		urlToken = wire.Session.Token
	}
	out.Images = make([]model.SessionImage, 0, len(*wire.Images))
	for _, img := range *wire.Images {
		if img.ID == "" {
			img.ID = model.ID(img.StoredFilename)
		}
		img.URL = c.ImageURL(urlToken, img.StoredFilename)
		out.Images = append(out.Images, img)
	}
	return out, nil
}

// DeleteSession удаляет upload-сессию целиком.
func (c *Client) DeleteSession(ctx context.Context, token string) (*StatusResponse, error) {
	var out StatusResponse
	err := c.doJSON(ctx, request{
		operation: "delete_session",
		method:    http.MethodDelete,
		path:      "/api/images/session/" + url.PathEscape(token),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteImage удаляет одно изображение сессии по имени файла или id.
func (c *Client) DeleteImage(ctx context.Context, token, filename string) (*StatusResponse, error) {
	var out StatusResponse
	err := c.doJSON(ctx, request{
		operation: "delete_image",
		method:    http.MethodDelete,
		path:      "/api/images/file/" + url.PathEscape(token) + "/" + url.PathEscape(filename),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
