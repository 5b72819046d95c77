package response_models

type CertificateRequestResponse struct {
	ID              uint             `json:"id"`
	ReferenceNumber string           `json:"reference_number"`
	ResidentID      uint             `json:"resident_id"`
	ResidentName    string           `json:"resident_name,omitempty"`
	CertificateType string           `json:"certificate_type"`
	CertificateName string           `json:"certificate_name"`
	Purpose         string           `json:"purpose"`
	AdditionalInfo  map[string]any   `json:"additional_info,omitempty"`
	Status          string           `json:"status"`
	RequestDate     string           `json:"request_date"`
	Remarks         string           `json:"remarks,omitempty"`
	DeliveryMethod  string           `json:"delivery_method,omitempty"`
	Documents       []string         `json:"documents"`
	ActivePayment   *PaymentResponse `json:"active_payment,omitempty"`
}

type PagedResponse[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}
