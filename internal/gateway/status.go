package gateway

import (
	"strings"

	dbm "barangay/internal/models/db_models"
)

const (
	StatusPaymentSuccess   = "PAYMENT_SUCCESS"
	StatusAuthFailed       = "AUTH_FAILED"
	StatusPaymentFailed    = "PAYMENT_FAILED"
	StatusPaymentExpired   = "PAYMENT_EXPIRED"
	StatusPaymentCancelled = "PAYMENT_CANCELLED"
	StatusRefunded         = "REFUNDED"
	StatusVoided           = "VOIDED"
)

var statusMap = map[string]dbm.PaymentStatus{
	StatusPaymentSuccess:   dbm.PaymentSucceeded,
	StatusAuthFailed:       dbm.PaymentRejected,
	StatusPaymentFailed:    dbm.PaymentRejected,
	StatusPaymentExpired:   dbm.PaymentExpired,
	StatusPaymentCancelled: dbm.PaymentCancelled,
	StatusRefunded:         dbm.PaymentRefunded,
	StatusVoided:           dbm.PaymentVoided,
}

// MapStatus translates a gateway status into the ledger's. Unknown or
// in-flight statuses map to PENDING.
func MapStatus(gatewayStatus string) dbm.PaymentStatus {
	if s, ok := statusMap[strings.ToUpper(strings.TrimSpace(gatewayStatus))]; ok {
		return s
	}
	return dbm.PaymentPending
}
