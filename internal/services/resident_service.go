package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	dbm "barangay/internal/models/db_models"
	"barangay/internal/models/request_models"
	resp "barangay/internal/models/response_models"
	"barangay/internal/repositories"
	"barangay/internal/storage"
	"barangay/pkg/utils"
)

type ResidentService interface {
	GetMine(ctx context.Context, s utils.Session) (*resp.ResidentResponse, error)
	UpdateMine(ctx context.Context, s utils.Session, req request_models.UpdateResidentRequest) (*resp.ResidentResponse, error)
	UpdateMyAddress(ctx context.Context, s utils.Session, req request_models.AddressInput) (*resp.ResidentResponse, error)
	GetByID(ctx context.Context, s utils.Session, id uint) (*resp.ResidentResponse, error)
	// Delete soft-deletes the resident with its requests and address. It is
	// refused while any request is still open.
	Delete(ctx context.Context, s utils.Session, id uint) error
}

type residentService struct {
	db        *gorm.DB
	residents repositories.ResidentRepository
	requests  repositories.CertificateRequestRepository
	payments  repositories.PaymentRepository
	store     storage.Storage
	log       *zap.Logger
}

func NewResidentService(
	db *gorm.DB,
	residents repositories.ResidentRepository,
	requests repositories.CertificateRequestRepository,
	payments repositories.PaymentRepository,
	store storage.Storage,
	log *zap.Logger,
) ResidentService {
	return &residentService{db: db, residents: residents, requests: requests, payments: payments, store: store, log: log}
}

func (r *residentService) mine(ctx context.Context, s utils.Session) (*dbm.Resident, error) {
	if !s.IsAuthenticated() {
		return nil, utils.NewUnauthorizedError("Authentication required")
	}
	resident, err := r.residents.FindByAccountID(ctx, s.UserID)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if resident == nil {
		return nil, utils.NewNotFoundError("resident profile not found for this account")
	}
	return resident, nil
}

func (r *residentService) GetMine(ctx context.Context, s utils.Session) (*resp.ResidentResponse, error) {
	resident, err := r.mine(ctx, s)
	if err != nil {
		return nil, err
	}
	return toResidentResponse(resident), nil
}

func (r *residentService) UpdateMine(ctx context.Context, s utils.Session, req request_models.UpdateResidentRequest) (*resp.ResidentResponse, error) {
	resident, err := r.mine(ctx, s)
	if err != nil {
		return nil, err
	}

	resident.FirstName = strings.TrimSpace(req.FirstName)
	resident.MiddleName = strings.TrimSpace(req.MiddleName)
	resident.LastName = strings.TrimSpace(req.LastName)
	resident.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	resident.BirthDate = nil
	if req.BirthDate != "" {
		t, err := time.ParseInLocation("2006-01-02", req.BirthDate, utils.ManilaLocation())
		if err != nil {
			return nil, utils.NewValidationError(map[string]string{"birth_date": "must be YYYY-MM-DD"})
		}
		unix := t.Unix()
		resident.BirthDate = &unix
	}

	if err := r.residents.Update(ctx, resident); err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	return toResidentResponse(resident), nil
}

func (r *residentService) UpdateMyAddress(ctx context.Context, s utils.Session, req request_models.AddressInput) (*resp.ResidentResponse, error) {
	resident, err := r.mine(ctx, s)
	if err != nil {
		return nil, err
	}
	address := addressFromInput(req)
	address.ResidentID = resident.ID
	if err := r.residents.UpsertAddress(ctx, address); err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	resident.Address = address
	return toResidentResponse(resident), nil
}

func (r *residentService) GetByID(ctx context.Context, s utils.Session, id uint) (*resp.ResidentResponse, error) {
	if err := s.RequireAdmin(); err != nil {
		return nil, err
	}
	resident, err := r.residents.FindByID(ctx, id)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if resident == nil {
		return nil, utils.NewNotFoundError("resident %d not found", id)
	}
	return toResidentResponse(resident), nil
}

func (r *residentService) Delete(ctx context.Context, s utils.Session, id uint) error {
	if err := s.RequireAdmin(); err != nil {
		return err
	}

	var keys []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		residents := r.residents.WithTx(tx)
		requests := r.requests.WithTx(tx)

		if err := residents.LockForUpdate(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("resident %d not found", id)
			}
			return utils.NewDatabaseError(err)
		}
		open, err := requests.CountNonTerminalByResident(ctx, id)
		if err != nil {
			return utils.NewDatabaseError(err)
		}
		if open > 0 {
			return utils.NewConflictError("cannot delete resident with %d open certificate request(s)", open)
		}

		rows, err := requests.ListByResident(ctx, id)
		if err != nil {
			return utils.NewDatabaseError(err)
		}
		ids := make([]uint, 0, len(rows))
		for _, row := range rows {
			keys = append(keys, row.DocumentKeys...)
			ids = append(ids, row.ID)
		}
		if len(ids) > 0 {
			proofs, err := r.payments.WithTx(tx).ProofKeys(ctx, ids...)
			if err != nil {
				return utils.NewDatabaseError(err)
			}
			keys = append(keys, proofs...)
		}
		if err := requests.DeleteByResident(ctx, id); err != nil {
			return utils.NewDatabaseError(err)
		}
		if err := residents.Delete(ctx, id); err != nil {
			return utils.NewDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(keys) > 0 {
		if err := r.store.Delete(ctx, keys); err != nil {
			r.log.Warn("remove resident documents", zap.Uint("resident_id", id), zap.Error(err))
		}
	}
	r.log.Info("resident deleted", zap.Uint("resident_id", id), zap.Uint("admin_id", s.UserID))
	return nil
}
