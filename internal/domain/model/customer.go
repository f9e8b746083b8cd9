// customer.go — данные покупателя и адреса (шаг 2 мастера).
package model

// CustomerData — данные покупателя, сохраняемые между шагами как черновик.
type CustomerData struct {
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	PostalCode    string `json:"postal_code"`
	Prefecture    string `json:"prefecture"`
	City          string `json:"city"`
	AddressLine1  string `json:"address_line1"`
	AddressLine2  string `json:"address_line2"`
	Notes         string `json:"notes"`
}

// Address возвращает адресную часть данных покупателя.
func (c CustomerData) Address() AddressData {
	return AddressData{
		PostalCode:   c.PostalCode,
		Prefecture:   c.Prefecture,
		City:         c.City,
		AddressLine1: c.AddressLine1,
		AddressLine2: c.AddressLine2,
	}
}

// AddressData — адрес (покупателя или доставки).
type AddressData struct {
	PostalCode   string `json:"postal_code"`
	Prefecture   string `json:"prefecture"`
	City         string `json:"city"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
}
