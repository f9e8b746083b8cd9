// image.go — изображения, сохранённые бэкендом в upload-сессии,
// и результат оркестрированной загрузки.
package model

// SessionImage — изображение, сохранённое на стороне бэкенда под session token.
// Создаётся успешной загрузкой, удаляется явным удалением, иначе неизменяемо.
type SessionImage struct {
	// ID — идентификатор изображения (если бэкенд его не прислал — StoredFilename)
	ID ID `json:"id"`
	// OriginalFilename — имя файла при загрузке
	OriginalFilename string `json:"original_filename,omitempty"`
	// StoredFilename — имя файла в хранилище бэкенда
	StoredFilename string `json:"stored_filename,omitempty"`
	// FileSize — размер в байтах
	FileSize int64 `json:"file_size,omitempty"`
	// Width, Height — размеры изображения, если бэкенд их вычислил
	Width  *int `json:"width,omitempty"`
	Height *int `json:"height,omitempty"`
	// URL — публичный URL для отображения
	URL string `json:"url"`
}

// UploadSession — метаданные upload-сессии бэкенда.
type UploadSession struct {
	ID         ID     `json:"id"`
	Token      string `json:"token"`
	ImageCount int    `json:"image_count"`
	TotalSize  string `json:"total_size,omitempty"`
	ExpiresAt  string `json:"expires_at,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// UploadResult — результат одной оркестрированной загрузки.
// Частичного успеха не бывает: либо Success с Token, либо Error.
type UploadResult struct {
	Success    bool   `json:"success"`
	Token      string `json:"token,omitempty"`
	Error      string `json:"error,omitempty"`
	ImageCount int    `json:"image_count,omitempty"`
}
