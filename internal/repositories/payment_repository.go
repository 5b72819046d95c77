package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	dbm "barangay/internal/models/db_models"
	"barangay/pkg/utils"
)

type PaymentFilter struct {
	Status        dbm.PaymentStatus
	PaymentMethod dbm.PaymentMethod
	// From and To bound created_at in unix seconds; zero means open.
	From     int64
	To       int64
	Page     int
	PageSize int
}

type PaymentRepository interface {
	WithTx(tx *gorm.DB) PaymentRepository
	Create(ctx context.Context, payment *dbm.Payment) error
	FindByID(ctx context.Context, id uint) (*dbm.Payment, error)
	FindByRequestAndReference(ctx context.Context, requestID uint, reference string) (*dbm.Payment, error)
	FindByTransactionReference(ctx context.Context, reference string) (*dbm.Payment, error)
	FindByGatewayReference(ctx context.Context, gatewayRef string) (*dbm.Payment, error)
	FindActiveByRequest(ctx context.Context, requestID uint) (*dbm.Payment, error)
	// DeactivateActive clears is_active on every active payment of the request.
	DeactivateActive(ctx context.Context, requestID uint) error
	// UpdateStatus writes fields only if the stored status is still from.
	UpdateStatus(ctx context.Context, id uint, from dbm.PaymentStatus, fields map[string]interface{}) (bool, error)
	ListByRequest(ctx context.Context, requestID uint) ([]dbm.Payment, error)
	// ProofKeys returns the stored proof-of-payment keys of the requests' payments.
	ProofKeys(ctx context.Context, requestIDs ...uint) ([]string, error)
	List(ctx context.Context, filter PaymentFilter) ([]dbm.Payment, int64, error)
	ListAll(ctx context.Context, filter PaymentFilter) ([]dbm.Payment, error)
	AppendEvent(ctx context.Context, event *dbm.PaymentEvent) error
	ListEvents(ctx context.Context, paymentID uint) ([]dbm.PaymentEvent, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) WithTx(tx *gorm.DB) PaymentRepository {
	return &paymentRepository{db: tx}
}

func (r *paymentRepository) Create(ctx context.Context, payment *dbm.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepository) first(ctx context.Context, query string, args ...any) (*dbm.Payment, error) {
	var p dbm.Payment
	err := r.db.WithContext(ctx).Where(query, args...).Order("id DESC").First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) FindByID(ctx context.Context, id uint) (*dbm.Payment, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *paymentRepository) FindByRequestAndReference(ctx context.Context, requestID uint, reference string) (*dbm.Payment, error) {
	return r.first(ctx, "certificate_request_id = ? AND transaction_reference = ?", requestID, reference)
}

func (r *paymentRepository) FindByTransactionReference(ctx context.Context, reference string) (*dbm.Payment, error) {
	return r.first(ctx, "transaction_reference = ?", reference)
}

func (r *paymentRepository) FindByGatewayReference(ctx context.Context, gatewayRef string) (*dbm.Payment, error) {
	return r.first(ctx, "gateway_reference = ?", gatewayRef)
}

func (r *paymentRepository) FindActiveByRequest(ctx context.Context, requestID uint) (*dbm.Payment, error) {
	return r.first(ctx, "certificate_request_id = ? AND is_active = ?", requestID, true)
}

func (r *paymentRepository) DeactivateActive(ctx context.Context, requestID uint) error {
	return r.db.WithContext(ctx).
		Model(&dbm.Payment{}).
		Where("certificate_request_id = ? AND is_active = ?", requestID, true).
		Update("is_active", false).Error
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, id uint, from dbm.PaymentStatus, fields map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&dbm.Payment{}).
		Where("id = ? AND payment_status = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *paymentRepository) ProofKeys(ctx context.Context, requestIDs ...uint) ([]string, error) {
	var keys []string
	if len(requestIDs) == 0 {
		return keys, nil
	}
	err := r.db.WithContext(ctx).
		Model(&dbm.Payment{}).
		Where("certificate_request_id IN ? AND proof_of_payment_path <> ''", requestIDs).
		Pluck("proof_of_payment_path", &keys).Error
	return keys, err
}

func (r *paymentRepository) ListByRequest(ctx context.Context, requestID uint) ([]dbm.Payment, error) {
	var rows []dbm.Payment
	err := r.db.WithContext(ctx).
		Where("certificate_request_id = ?", requestID).
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

func (r *paymentRepository) filtered(ctx context.Context, filter PaymentFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&dbm.Payment{})
	if filter.Status != "" {
		q = q.Where("payment_status = ?", filter.Status)
	}
	if filter.PaymentMethod != "" {
		q = q.Where("payment_method = ?", filter.PaymentMethod)
	}
	if filter.From > 0 {
		q = q.Where("created_at >= ?", filter.From)
	}
	if filter.To > 0 {
		q = q.Where("created_at <= ?", filter.To)
	}
	return q
}

func (r *paymentRepository) List(ctx context.Context, filter PaymentFilter) ([]dbm.Payment, int64, error) {
	page, size, err := utils.NormalizePage(filter.Page, filter.PageSize)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []dbm.Payment
	err = r.filtered(ctx, filter).
		Preload("CertificateRequest.Resident").
		Order("id DESC").
		Offset(utils.Offset(page, size)).
		Limit(size).
		Find(&rows).Error
	return rows, total, err
}

// ListAll is unpaginated, for exports.
func (r *paymentRepository) ListAll(ctx context.Context, filter PaymentFilter) ([]dbm.Payment, error) {
	var rows []dbm.Payment
	err := r.filtered(ctx, filter).
		Preload("CertificateRequest.Resident").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *paymentRepository) AppendEvent(ctx context.Context, event *dbm.PaymentEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *paymentRepository) ListEvents(ctx context.Context, paymentID uint) ([]dbm.PaymentEvent, error) {
	var rows []dbm.PaymentEvent
	err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).Order("id ASC").Find(&rows).Error
	return rows, err
}
