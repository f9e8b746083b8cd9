// cart.go — корзина (черновик заказа), checkout-сессия и итоговый заказ.
package model

// Amounts — суммы заказа (в иенах).
type Amounts struct {
	ImageCount           int  `json:"image_count"`
	ItemAmountExTax      Yen  `json:"item_amount_ex_tax"`
	ItemTaxAmount        Yen  `json:"item_tax_amount"`
	ItemAmountIncTax     Yen  `json:"item_amount_inc_tax"`
	ItemTaxRate          Rate `json:"item_tax_rate"`
	ShippingAmountExTax  Yen  `json:"shipping_amount_ex_tax"`
	ShippingTaxAmount    Yen  `json:"shipping_tax_amount"`
	ShippingAmountIncTax Yen  `json:"shipping_amount_inc_tax"`
	ShippingTaxRate      Rate `json:"shipping_tax_rate"`
	TotalAmount          Yen  `json:"total_amount"`
}

// Recipient — получатель и адреса заказа.
type Recipient struct {
	CustomerName         string `json:"customer_name"`
	CustomerEmail        string `json:"customer_email"`
	CustomerPhone        string `json:"customer_phone"`
	PostalCode           string `json:"postal_code"`
	Prefecture           string `json:"prefecture"`
	City                 string `json:"city"`
	AddressLine1         string `json:"address_line1"`
	AddressLine2         string `json:"address_line2,omitempty"`
	UseSameAddress       bool   `json:"use_same_address"`
	DeliveryPostalCode   string `json:"delivery_postal_code,omitempty"`
	DeliveryPrefecture   string `json:"delivery_prefecture,omitempty"`
	DeliveryCity         string `json:"delivery_city,omitempty"`
	DeliveryAddressLine1 string `json:"delivery_address_line1,omitempty"`
	DeliveryAddressLine2 string `json:"delivery_address_line2,omitempty"`
	Notes                string `json:"notes,omitempty"`
}

// Cart — черновик заказа, созданный из upload-сессии и данных покупателя.
type Cart struct {
	ID              ID     `json:"id"`
	CartToken       string `json:"cart_token"`
	UploadSessionID ID     `json:"upload_session_id"`
	Recipient
	Amounts
	UploadSession *CartUploadSession `json:"upload_session,omitempty"`
}

// CartUploadSession — upload-сессия, к которой привязана корзина.
type CartUploadSession struct {
	ID             ID             `json:"id"`
	Token          string         `json:"token"`
	UploadedImages []SessionImage `json:"uploaded_images"`
}

// CheckoutSession — платёжная сессия, созданная бэкендом.
type CheckoutSession struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

// Order — подтверждённый заказ после успешной оплаты.
type Order struct {
	ID              ID     `json:"id"`
	OrderNumber     string `json:"order_number"`
	UploadSessionID ID     `json:"upload_session_id"`
	Recipient
	Amounts
	Status    string `json:"status"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}
