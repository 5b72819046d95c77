package db_models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const CurrencyPHP = "PHP"

type PaymentMethod string

const (
	PaymentOnline       PaymentMethod = "ONLINE"
	PaymentCash         PaymentMethod = "CASH"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentEWallet      PaymentMethod = "E_WALLET"
)

func (m PaymentMethod) IsManual() bool {
	return m == PaymentCash || m == PaymentBankTransfer || m == PaymentEWallet
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentSucceeded PaymentStatus = "SUCCEEDED"
	PaymentRejected  PaymentStatus = "REJECTED"
	PaymentCancelled PaymentStatus = "CANCELLED"
	PaymentExpired   PaymentStatus = "EXPIRED"
	PaymentVerified  PaymentStatus = "VERIFIED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
	PaymentWaived    PaymentStatus = "WAIVED"
	PaymentVoided    PaymentStatus = "VOIDED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {
		PaymentSucceeded, PaymentRejected, PaymentCancelled, PaymentExpired,
		PaymentVerified, PaymentWaived, PaymentVoided,
	},
	PaymentSucceeded: {PaymentVerified, PaymentRefunded, PaymentVoided},
	PaymentVerified:  {PaymentRefunded, PaymentVoided},
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentSucceeded, PaymentRejected, PaymentCancelled, PaymentExpired,
		PaymentVerified, PaymentRefunded, PaymentWaived, PaymentVoided:
		return true
	}
	return false
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsSuccess reports whether the fee counts as paid.
func (s PaymentStatus) IsSuccess() bool {
	return s == PaymentSucceeded || s == PaymentVerified || s == PaymentWaived
}

const (
	MetadataGateway = "gateway"
	MetadataManual  = "manual"
)

// FeeBreakdown is the fee schedule that produced a payment's amount.
type FeeBreakdown struct {
	ProcessingFee decimal.Decimal `json:"processing_fee"`
	ServiceCharge decimal.Decimal `json:"service_charge"`
	ShippingFee   decimal.Decimal `json:"shipping_fee"`
	Total         decimal.Decimal `json:"total"`
}

type GatewayMetadata struct {
	Provider          string         `json:"provider"`
	CheckoutID        string         `json:"checkout_id"`
	RedirectURL       string         `json:"redirect_url"`
	DeliveryMethod    DeliveryMethod `json:"delivery_method"`
	Fees              FeeBreakdown   `json:"fees"`
	LastGatewayStatus string         `json:"last_gateway_status,omitempty"`
}

type ManualMetadata struct {
	RecordedBy uint   `json:"recorded_by"`
	Method     string `json:"method"`
}

// PaymentMetadata holds exactly one of Gateway or Manual, selected by Kind.
type PaymentMetadata struct {
	Kind    string           `json:"kind"`
	Gateway *GatewayMetadata `json:"gateway,omitempty"`
	Manual  *ManualMetadata  `json:"manual,omitempty"`
}

func NewGatewayMetadata(m GatewayMetadata) PaymentMetadata {
	return PaymentMetadata{Kind: MetadataGateway, Gateway: &m}
}

func NewManualMetadata(m ManualMetadata) PaymentMetadata {
	return PaymentMetadata{Kind: MetadataManual, Manual: &m}
}

type Payment struct {
	BaseModel
	CertificateRequestID uint `gorm:"index;not null"`
	CertificateRequest   *CertificateRequest
	TransactionReference string          `gorm:"size:32;uniqueIndex;not null"`
	Amount               decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency             string          `gorm:"size:3;not null;default:PHP"`
	PaymentMethod        PaymentMethod   `gorm:"size:20;not null"`
	PaymentStatus        PaymentStatus   `gorm:"size:20;index;not null"`
	PaymentDate          *int64
	IsActive             bool    `gorm:"not null;default:false"`
	GatewayReference     *string `gorm:"size:128;index"`
	Metadata             datatypes.JSONType[PaymentMetadata]
	ProofOfPaymentPath   string `gorm:"size:500"`
	Notes                string `gorm:"size:1000"`
	ReceiptNumber        string `gorm:"size:64"`
}

// RedirectURL returns the hosted checkout URL for gateway payments.
func (p *Payment) RedirectURL() string {
	if g := p.Metadata.Data().Gateway; g != nil {
		return g.RedirectURL
	}
	return ""
}

func (p *Payment) IsGateway() bool {
	return p.PaymentMethod == PaymentOnline && p.GatewayReference != nil && *p.GatewayReference != ""
}
