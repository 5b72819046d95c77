package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	dbm "barangay/internal/models/db_models"
)

type RequestStatusEvent struct {
	RequestID       uint   `json:"request_id"`
	ReferenceNumber string `json:"reference_number"`
	ResidentID      uint   `json:"resident_id"`
	From            string `json:"from"`
	To              string `json:"to"`
	OccurredAt      int64  `json:"occurred_at"`
}

type PaymentStatusEvent struct {
	PaymentID            uint   `json:"payment_id"`
	RequestID            uint   `json:"request_id"`
	TransactionReference string `json:"transaction_reference"`
	From                 string `json:"from"`
	To                   string `json:"to"`
	Source               string `json:"source"`
	Amount               string `json:"amount"`
	OccurredAt           int64  `json:"occurred_at"`
}

// EventPublisher broadcasts committed status changes. Implementations log
// failures instead of returning them.
type EventPublisher interface {
	PublishRequestStatus(ctx context.Context, ev RequestStatusEvent)
	PublishPaymentStatus(ctx context.Context, ev PaymentStatusEvent)
}

type noopEventPublisher struct{}

func NewNoopEventPublisher() EventPublisher { return noopEventPublisher{} }

func (noopEventPublisher) PublishRequestStatus(context.Context, RequestStatusEvent) {}
func (noopEventPublisher) PublishPaymentStatus(context.Context, PaymentStatusEvent) {}

type kafkaEventPublisher struct {
	producer     sarama.SyncProducer
	requestTopic string
	paymentTopic string
	log          *zap.Logger
}

func NewKafkaEventPublisher(producer sarama.SyncProducer, requestTopic, paymentTopic string, log *zap.Logger) EventPublisher {
	return &kafkaEventPublisher{
		producer:     producer,
		requestTopic: requestTopic,
		paymentTopic: paymentTopic,
		log:          log,
	}
}

func (k *kafkaEventPublisher) send(topic, key string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		k.log.Error("marshal event", zap.String("topic", topic), zap.Error(err))
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := k.producer.SendMessage(msg); err != nil {
		k.log.Warn("publish event", zap.String("topic", topic), zap.String("key", key), zap.Error(err))
	}
}

func (k *kafkaEventPublisher) PublishRequestStatus(_ context.Context, ev RequestStatusEvent) {
	k.send(k.requestTopic, ev.ReferenceNumber, ev)
}

func (k *kafkaEventPublisher) PublishPaymentStatus(_ context.Context, ev PaymentStatusEvent) {
	k.send(k.paymentTopic, ev.TransactionReference, ev)
}

// RequestChange describes one committed request transition.
type RequestChange struct {
	Request *dbm.CertificateRequest
	From    dbm.RequestStatus
	To      dbm.RequestStatus
}

type PaymentChange struct {
	Payment *dbm.Payment
	From    dbm.PaymentStatus
	To      dbm.PaymentStatus
	Source  string
}

// Notifier fans committed changes out to the event bus and to resident
// e-mail. Call it only after the transaction has committed.
type Notifier struct {
	publisher EventPublisher
	mail      IMailService
	log       *zap.Logger
	wg        sync.WaitGroup
}

func NewNotifier(publisher EventPublisher, mail IMailService, log *zap.Logger) *Notifier {
	return &Notifier{publisher: publisher, mail: mail, log: log}
}

func (n *Notifier) RequestChanged(ctx context.Context, changes ...*RequestChange) {
	for _, c := range changes {
		if c == nil || c.Request == nil {
			continue
		}
		n.publisher.PublishRequestStatus(ctx, RequestStatusEvent{
			RequestID:       c.Request.ID,
			ReferenceNumber: c.Request.ReferenceNumber,
			ResidentID:      c.Request.ResidentID,
			From:            string(c.From),
			To:              string(c.To),
			OccurredAt:      time.Now().Unix(),
		})

		resident := c.Request.Resident
		if !NotifiableStatus(c.To) || resident == nil || resident.Email == "" {
			continue
		}
		to, name, ref, status, remarks := resident.Email, resident.FirstName, c.Request.ReferenceNumber, c.To, c.Request.Remarks
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := n.mail.SendRequestStatusUpdate(to, name, ref, status, remarks); err != nil {
				n.log.Warn("send status mail", zap.String("reference_number", ref), zap.Error(err))
			}
		}()
	}
}

func (n *Notifier) PaymentChanged(ctx context.Context, changes ...*PaymentChange) {
	for _, c := range changes {
		if c == nil || c.Payment == nil {
			continue
		}
		n.publisher.PublishPaymentStatus(ctx, PaymentStatusEvent{
			PaymentID:            c.Payment.ID,
			RequestID:            c.Payment.CertificateRequestID,
			TransactionReference: c.Payment.TransactionReference,
			From:                 string(c.From),
			To:                   string(c.To),
			Source:               c.Source,
			Amount:               c.Payment.Amount.StringFixed(2),
			OccurredAt:           time.Now().Unix(),
		})
	}
}

// Wait blocks until queued e-mails have been attempted.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
