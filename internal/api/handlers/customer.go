// customer.go — черновик данных покупателя (шаг 2).
package handlers

import (
	"net/http"

	"github.com/bigkaa/printhome/checkout-web/internal/domain/model"
	"github.com/bigkaa/printhome/checkout-web/internal/validation"
)

type customerView struct {
	Customer    model.CustomerData     `json:"customer"`
	Errors      validation.FieldErrors `json:"errors,omitempty"`
	Prefectures []string               `json:"prefectures,omitempty"`
}

// GetCustomer — GET /api/v1/customer.
func (h *APIHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	v, ok := h.visit(w, r)
	if !ok {
		return
	}

	data, err := h.customers.Load(r.Context(), v.State.VisitorID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customerView{Customer: data, Prefectures: validation.Prefectures})
}

// PutCustomer — PUT /api/v1/customer. Черновик сохраняется как есть,
// ошибки полей возвращаются подсказкой и не мешают сохранению.
func (h *APIHandler) PutCustomer(w http.ResponseWriter, r *http.Request) {
	v, ok := h.visit(w, r)
	if !ok {
		return
	}

	var data model.CustomerData
	if !decodeJSON(w, r, &data) {
		return
	}
	if err := h.customers.Save(r.Context(), v.State.VisitorID, data); err != nil {
		h.writeServiceError(w, err)
		return
	}

	view := customerView{Customer: data}
	if errs := validation.ValidateCustomer(data); !errs.Valid() {
		view.Errors = errs
	}
	writeJSON(w, http.StatusOK, view)
}

// DeleteCustomer — DELETE /api/v1/customer.
func (h *APIHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	v, ok := h.visit(w, r)
	if !ok {
		return
	}
	if err := h.customers.Clear(r.Context(), v.State.VisitorID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
