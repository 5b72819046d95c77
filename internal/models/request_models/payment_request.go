package request_models

type InitiatePaymentRequest struct {
	DeliveryMethod string `json:"delivery_method" binding:"required,oneof=pickup delivery"`
}

// ManualPaymentRequest is a multipart form; proof_of_payment is the optional file.
type ManualPaymentRequest struct {
	Amount        string `form:"amount" json:"amount" binding:"required"`
	PaymentMethod string `form:"payment_method" json:"payment_method" binding:"required,oneof=CASH BANK_TRANSFER E_WALLET"`
	PaymentStatus string `form:"payment_status" json:"payment_status" binding:"required,oneof=PENDING SUCCEEDED VERIFIED WAIVED"`
	Notes         string `form:"notes" json:"notes" binding:"max=1000"`
	ReceiptNumber string `form:"receipt_number" json:"receipt_number" binding:"max=64"`
}

type UpdatePaymentStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes" binding:"max=1000"`
}

type ListPaymentsQuery struct {
	Status        string `form:"status"`
	PaymentMethod string `form:"payment_method"`
	From          string `form:"from"`
	To            string `form:"to"`
	Page          int    `form:"page"`
	PageSize      int    `form:"page_size"`
}

type PaymentReturnQuery struct {
	RequestID     uint   `form:"requestId" binding:"required"`
	TransactionID string `form:"transactionId" binding:"required"`
}
