package response_models

type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type PaymentStatusTotal struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
	Amount string `json:"amount"`
}

type TypeCount struct {
	CertificateType string `json:"certificate_type"`
	Count           int64  `json:"count"`
}

type KPIBlock struct {
	TotalResidents     int64  `json:"total_residents"`
	NewRequests        int64  `json:"new_requests"`
	PendingReview      int64  `json:"pending_review"`
	AwaitingPayment    int64  `json:"awaiting_payment"`
	Completed          int64  `json:"completed"`
	Revenue            string `json:"revenue"`
	Currency           string `json:"currency"`
	AverageFee         string `json:"average_fee"`
	SuccessfulPayments int64  `json:"successful_payments"`
}

type RecentPayment struct {
	ID                   uint   `json:"id"`
	TransactionReference string `json:"transaction_reference"`
	ReferenceNumber      string `json:"reference_number"`
	ResidentName         string `json:"resident_name"`
	Amount               string `json:"amount"`
	PaymentMethod        string `json:"payment_method"`
	PaymentStatus        string `json:"payment_status"`
	PaidAt               string `json:"paid_at,omitempty"`
}

type DashboardReport struct {
	Range          TimeRange            `json:"range"`
	KPIs           KPIBlock             `json:"kpis"`
	RequestsBy     []StatusCount        `json:"requests_by_status"`
	RequestTypes   []TypeCount          `json:"requests_by_type"`
	PaymentsBy     []PaymentStatusTotal `json:"payments_by_status"`
	RecentPayments []RecentPayment      `json:"recent_payments"`
}
