package response_models

type FeeBreakdownResponse struct {
	ProcessingFee string `json:"processing_fee"`
	ServiceCharge string `json:"service_charge"`
	ShippingFee   string `json:"shipping_fee"`
	Total         string `json:"total"`
}

type PaymentResponse struct {
	ID                   uint                  `json:"id"`
	CertificateRequestID uint                  `json:"certificate_request_id"`
	TransactionReference string                `json:"transaction_reference"`
	Amount               string                `json:"amount"`
	Currency             string                `json:"currency"`
	PaymentMethod        string                `json:"payment_method"`
	PaymentStatus        string                `json:"payment_status"`
	PaymentDate          string                `json:"payment_date,omitempty"`
	IsActive             bool                  `json:"is_active"`
	CheckoutURL          string                `json:"checkout_url,omitempty"`
	Fees                 *FeeBreakdownResponse `json:"fees,omitempty"`
	ProofOfPaymentURL    string                `json:"proof_of_payment_url,omitempty"`
	Notes                string                `json:"notes,omitempty"`
	ReceiptNumber        string                `json:"receipt_number,omitempty"`
	CreatedAt            string                `json:"created_at"`
}

type InitiatePaymentResponse struct {
	CheckoutURL   string `json:"checkoutUrl"`
	TransactionID string `json:"transactionId"`
	Amount        string `json:"amount"`
}

type CancelPaymentResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

type PaymentStatusResponse struct {
	Status        string `json:"status"`
	RequestStatus string `json:"request_status"`
	TransactionID string `json:"transactionId"`
}
