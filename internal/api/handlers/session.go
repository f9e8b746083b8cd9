// session.go — изображения, уже загруженные в upload-сессию backend API.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetSessionImages — GET /api/v1/session/images.
// Перечитывает список активной сессии; без сессии — пустое состояние.
func (h *APIHandler) GetSessionImages(w http.ResponseWriter, r *http.Request) {
	v, ok := h.visit(w, r)
	if !ok {
		return
	}

	if err := v.Flow.Sessions.Refresh(r.Context()); err != nil && r.Context().Err() != nil {
		return
	}
	writeJSON(w, http.StatusOK, v.Flow.Sessions.State())
}

// DeleteSessionImage — DELETE /api/v1/session/images/{filename}.
// filename — stored_filename или id изображения.
func (h *APIHandler) DeleteSessionImage(w http.ResponseWriter, r *http.Request) {
	v, ok := h.visit(w, r)
	if !ok {
		return
	}

	if err := v.Flow.Sessions.RemoveOne(r.Context(), chi.URLParam(r, "filename")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v.Flow.Sessions.State())
}

// DeleteSession — DELETE /api/v1/session. Удаляет сессию целиком;
// визард возвращается в состояние без сессии, корзина забывается.
func (h *APIHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	v, ok := h.visit(w, r)
	if !ok {
		return
	}

	if err := v.Flow.Sessions.RemoveAll(r.Context()); err != nil {
		h.writeServiceError(w, err)
		return
	}

	v.SyncSession()
	v.State.CartToken = ""
	h.saveVisit(w, v)
	writeJSON(w, http.StatusOK, v.Flow.Sessions.State())
}
