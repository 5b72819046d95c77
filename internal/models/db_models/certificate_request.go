package db_models

import (
	"gorm.io/datatypes"
)

type CertificateType string

const (
	BarangayClearance      CertificateType = "BARANGAY_CLEARANCE"
	CertificateOfResidency CertificateType = "CERTIFICATE_OF_RESIDENCY"
	CertificateOfIndigency CertificateType = "CERTIFICATE_OF_INDIGENCY"
	BusinessClearance      CertificateType = "BUSINESS_CLEARANCE"
	BarangayID             CertificateType = "BARANGAY_ID"
)

var certificateTypes = map[CertificateType]string{
	BarangayClearance:      "Barangay Clearance",
	CertificateOfResidency: "Certificate of Residency",
	CertificateOfIndigency: "Certificate of Indigency",
	BusinessClearance:      "Business Clearance",
	BarangayID:             "Barangay ID",
}

func (t CertificateType) Valid() bool {
	_, ok := certificateTypes[t]
	return ok
}

func (t CertificateType) DisplayName() string {
	if name, ok := certificateTypes[t]; ok {
		return name
	}
	return string(t)
}

type DeliveryMethod string

const (
	DeliveryPickup   DeliveryMethod = "pickup"
	DeliveryShipping DeliveryMethod = "delivery"
)

func (d DeliveryMethod) Valid() bool {
	return d == DeliveryPickup || d == DeliveryShipping
}

type RequestStatus string

const (
	RequestPending         RequestStatus = "PENDING"
	RequestUnderReview     RequestStatus = "UNDER_REVIEW"
	RequestAwaitingPayment RequestStatus = "AWAITING_PAYMENT"
	RequestProcessing      RequestStatus = "PROCESSING"
	RequestReadyForPickup  RequestStatus = "READY_FOR_PICKUP"
	RequestInTransit       RequestStatus = "IN_TRANSIT"
	RequestCompleted       RequestStatus = "COMPLETED"
	RequestRejected        RequestStatus = "REJECTED"
	RequestCancelled       RequestStatus = "CANCELLED"
)

// requestTransitions is the only place the request lifecycle is declared.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending:         {RequestUnderReview, RequestAwaitingPayment, RequestRejected, RequestCancelled},
	RequestUnderReview:     {RequestAwaitingPayment, RequestRejected, RequestCancelled},
	RequestAwaitingPayment: {RequestProcessing, RequestRejected, RequestCancelled},
	RequestProcessing:      {RequestReadyForPickup, RequestInTransit, RequestRejected, RequestCancelled},
	RequestReadyForPickup:  {RequestCompleted, RequestRejected, RequestCancelled},
	RequestInTransit:       {RequestCompleted, RequestRejected, RequestCancelled},
}

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestUnderReview, RequestAwaitingPayment, RequestProcessing,
		RequestReadyForPickup, RequestInTransit, RequestCompleted, RequestRejected, RequestCancelled:
		return true
	}
	return false
}

func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, allowed := range requestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s RequestStatus) IsTerminal() bool {
	return s == RequestCompleted || s == RequestRejected || s == RequestCancelled
}

// InPaymentWorkflow reports whether the request has been approved for
// payment and not yet finished.
func (s RequestStatus) InPaymentWorkflow() bool {
	return !s.IsTerminal() && s != RequestPending && s != RequestUnderReview
}

type CertificateRequest struct {
	BaseModel
	ReferenceNumber string `gorm:"size:32;uniqueIndex;not null"`
	ResidentID      uint   `gorm:"index;not null"`
	Resident        *Resident
	CertificateType CertificateType `gorm:"size:40;not null"`
	Purpose         string          `gorm:"size:500;not null"`
	AdditionalInfo  datatypes.JSONMap
	Status          RequestStatus   `gorm:"size:30;index;not null"`
	RequestDate     int64           `gorm:"not null"`
	Remarks         string          `gorm:"size:1000"`
	DeliveryMethod  *DeliveryMethod `gorm:"size:20"`
	DocumentKeys    TextArray
	Payments        []Payment
}
