package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbm "barangay/internal/models/db_models"
	"barangay/pkg/utils"
)

type RequestFilter struct {
	Status          dbm.RequestStatus
	CertificateType dbm.CertificateType
	ResidentID      uint
	Page            int
	PageSize        int
}

type CertificateRequestRepository interface {
	WithTx(tx *gorm.DB) CertificateRequestRepository
	Create(ctx context.Context, req *dbm.CertificateRequest) error
	FindByID(ctx context.Context, id uint) (*dbm.CertificateRequest, error)
	// FindByIDForUpdate locks the row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id uint) (*dbm.CertificateRequest, error)
	FindByReference(ctx context.Context, reference string) (*dbm.CertificateRequest, error)
	// UpdateStatus moves the request from -> to and reports false when the
	// stored status was no longer from.
	UpdateStatus(ctx context.Context, id uint, from, to dbm.RequestStatus, remarks *string) (bool, error)
	SetDeliveryMethod(ctx context.Context, id uint, method dbm.DeliveryMethod) error
	List(ctx context.Context, filter RequestFilter) ([]dbm.CertificateRequest, int64, error)
	ListByResident(ctx context.Context, residentID uint) ([]dbm.CertificateRequest, error)
	CountNonTerminalByResident(ctx context.Context, residentID uint) (int64, error)
	Delete(ctx context.Context, id uint) error
	DeleteByResident(ctx context.Context, residentID uint) error
}

type certificateRequestRepository struct {
	db *gorm.DB
}

func NewCertificateRequestRepository(db *gorm.DB) CertificateRequestRepository {
	return &certificateRequestRepository{db: db}
}

func (r *certificateRequestRepository) WithTx(tx *gorm.DB) CertificateRequestRepository {
	return &certificateRequestRepository{db: tx}
}

var terminalRequestStatuses = []dbm.RequestStatus{dbm.RequestCompleted, dbm.RequestRejected, dbm.RequestCancelled}

func (r *certificateRequestRepository) Create(ctx context.Context, req *dbm.CertificateRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *certificateRequestRepository) find(db *gorm.DB, query string, arg any) (*dbm.CertificateRequest, error) {
	var req dbm.CertificateRequest
	err := db.Preload("Resident.Address").Where(query, arg).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

func (r *certificateRequestRepository) FindByID(ctx context.Context, id uint) (*dbm.CertificateRequest, error) {
	return r.find(r.db.WithContext(ctx), "certificate_requests.id = ?", id)
}

func (r *certificateRequestRepository) FindByIDForUpdate(ctx context.Context, id uint) (*dbm.CertificateRequest, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: clause.CurrentTable}}), "certificate_requests.id = ?", id)
}

func (r *certificateRequestRepository) FindByReference(ctx context.Context, reference string) (*dbm.CertificateRequest, error) {
	return r.find(r.db.WithContext(ctx), "reference_number = ?", reference)
}

func (r *certificateRequestRepository) UpdateStatus(ctx context.Context, id uint, from, to dbm.RequestStatus, remarks *string) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if remarks != nil {
		updates["remarks"] = *remarks
	}
	res := r.db.WithContext(ctx).
		Model(&dbm.CertificateRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *certificateRequestRepository) SetDeliveryMethod(ctx context.Context, id uint, method dbm.DeliveryMethod) error {
	return r.db.WithContext(ctx).
		Model(&dbm.CertificateRequest{}).
		Where("id = ?", id).
		Update("delivery_method", method).Error
}

func (r *certificateRequestRepository) List(ctx context.Context, filter RequestFilter) ([]dbm.CertificateRequest, int64, error) {
	page, size, err := utils.NormalizePage(filter.Page, filter.PageSize)
	if err != nil {
		return nil, 0, err
	}

	q := r.db.WithContext(ctx).Model(&dbm.CertificateRequest{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CertificateType != "" {
		q = q.Where("certificate_type = ?", filter.CertificateType)
	}
	if filter.ResidentID != 0 {
		q = q.Where("resident_id = ?", filter.ResidentID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []dbm.CertificateRequest
	err = q.Preload("Resident").
		Order("request_date DESC, id DESC").
		Offset(utils.Offset(page, size)).
		Limit(size).
		Find(&rows).Error
	return rows, total, err
}

func (r *certificateRequestRepository) ListByResident(ctx context.Context, residentID uint) ([]dbm.CertificateRequest, error) {
	var rows []dbm.CertificateRequest
	err := r.db.WithContext(ctx).Where("resident_id = ?", residentID).Find(&rows).Error
	return rows, err
}

func (r *certificateRequestRepository) CountNonTerminalByResident(ctx context.Context, residentID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&dbm.CertificateRequest{}).
		Where("resident_id = ? AND status NOT IN ?", residentID, terminalRequestStatuses).
		Count(&n).Error
	return n, err
}

func (r *certificateRequestRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&dbm.CertificateRequest{}, id).Error
}

func (r *certificateRequestRepository) DeleteByResident(ctx context.Context, residentID uint) error {
	return r.db.WithContext(ctx).Where("resident_id = ?", residentID).Delete(&dbm.CertificateRequest{}).Error
}
