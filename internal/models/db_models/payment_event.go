package db_models

import "gorm.io/datatypes"

const (
	EventSourceReconcile = "reconcile"
	EventSourceWebhook   = "webhook"
	EventSourceCancel    = "cancel"
	EventSourceAdmin     = "admin"
	EventSourceInitiate  = "initiate"
)

// PaymentEvent is an append-only record of a payment status change.
type PaymentEvent struct {
	BaseModel
	PaymentID  uint          `gorm:"index;not null"`
	FromStatus PaymentStatus `gorm:"size:20"`
	ToStatus   PaymentStatus `gorm:"size:20;not null"`
	Source     string        `gorm:"size:20;not null"`
	ActorID    *uint
	Payload    datatypes.JSONMap
}
