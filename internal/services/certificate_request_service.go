package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"barangay/internal/gateway"
	dbm "barangay/internal/models/db_models"
	"barangay/internal/models/request_models"
	resp "barangay/internal/models/response_models"
	"barangay/internal/repositories"
	"barangay/internal/storage"
	mem "barangay/pkg/memcache"
	"barangay/pkg/utils"
)

// RequestConfig bounds the gateway calls and lock waits of lifecycle changes
// that touch payments.
type RequestConfig struct {
	GatewayTimeout time.Duration
	LockWait       time.Duration
}

// CreateRequestInput is what a resident submits. Documents are the identity
// proofs; they are uploaded before the row is written.
type CreateRequestInput struct {
	ResidentID      uint
	CertificateType string
	Purpose         string
	AdditionalInfo  map[string]any
	Documents       []storage.File
}

type CertificateRequestService interface {
	CreateRequest(ctx context.Context, s utils.Session, in CreateRequestInput) (*resp.CertificateRequestResponse, error)
	ApproveForPayment(ctx context.Context, s utils.Session, id uint) (*resp.CertificateRequestResponse, error)
	MarkUnderReview(ctx context.Context, s utils.Session, id uint) (*resp.CertificateRequestResponse, error)
	MarkReadyForPickup(ctx context.Context, s utils.Session, id uint) (*resp.CertificateRequestResponse, error)
	MarkInTransit(ctx context.Context, s utils.Session, id uint) (*resp.CertificateRequestResponse, error)
	MarkCompleted(ctx context.Context, s utils.Session, id uint) (*resp.CertificateRequestResponse, error)
	Reject(ctx context.Context, s utils.Session, id uint, remarks string) (*resp.CertificateRequestResponse, error)
	Cancel(ctx context.Context, s utils.Session, id uint, remarks string) (*resp.CertificateRequestResponse, error)
	Delete(ctx context.Context, s utils.Session, id uint) error
	GetByID(ctx context.Context, s utils.Session, id uint) (*resp.CertificateRequestResponse, error)
	GetByReference(ctx context.Context, s utils.Session, reference string) (*resp.CertificateRequestResponse, error)
	ListMine(ctx context.Context, s utils.Session, page, pageSize int) (*resp.PagedResponse[resp.CertificateRequestResponse], error)
	ListAll(ctx context.Context, s utils.Session, q request_models.ListRequestsQuery) (*resp.PagedResponse[resp.CertificateRequestResponse], error)

	// MarkProcessing moves AWAITING_PAYMENT to PROCESSING inside tx. It returns
	// nil when the request is already PROCESSING.
	MarkProcessing(ctx context.Context, tx *gorm.DB, id uint) (*RequestChange, error)
	// AdvanceForPayment moves the request as far as a recorded payment allows:
	// PROCESSING when paid, AWAITING_PAYMENT otherwise.
	AdvanceForPayment(ctx context.Context, tx *gorm.DB, id uint, paid bool) ([]*RequestChange, error)
}

type certificateRequestService struct {
	db          *gorm.DB
	requestRepo repositories.CertificateRequestRepository
	residents   repositories.ResidentRepository
	payments    repositories.PaymentRepository
	store       storage.Storage
	gw          gateway.PaymentGateway
	locker      mem.RequestLocker
	notifier    *Notifier
	cfg         RequestConfig
	log         *zap.Logger
	now         func() time.Time
}

func NewCertificateRequestService(
	db *gorm.DB,
	requestRepo repositories.CertificateRequestRepository,
	residents repositories.ResidentRepository,
	payments repositories.PaymentRepository,
	store storage.Storage,
	gw gateway.PaymentGateway,
	locker mem.RequestLocker,
	notifier *Notifier,
	cfg RequestConfig,
	log *zap.Logger,
) CertificateRequestService {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 15 * time.Second
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 10 * time.Second
	}
	return &certificateRequestService{
		db:          db,
		requestRepo: requestRepo,
		residents:   residents,
		payments:    payments,
		store:       store,
		gw:          gw,
		locker:      locker,
		notifier:    notifier,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

func (c *certificateRequestService) CreateRequest(ctx context.Context, s utils.Session, in CreateRequestInput) (*resp.CertificateRequestResponse, error) {
	if !s.IsAuthenticated() {
		return nil, utils.NewUnauthorizedError("Authentication required")
	}

	certType := dbm.CertificateType(strings.ToUpper(strings.TrimSpace(in.CertificateType)))
	fields := map[string]string{}
	if !certType.Valid() {
		fields["certificate_type"] = "unsupported certificate type"
	}
	purpose := strings.TrimSpace(in.Purpose)
	if purpose == "" {
		fields["purpose"] = "is required"
	}
	var info map[string]any
	if certType.Valid() {
		normalized, infoErrs := normalizeAdditionalInfo(certType, in.AdditionalInfo)
		for k, v := range infoErrs {
			fields[k] = v
		}
		info = normalized
	}
	if len(fields) > 0 {
		return nil, utils.NewValidationError(fields)
	}

	resident, err := c.resolveResident(ctx, s, in.ResidentID)
	if err != nil {
		return nil, err
	}

	var keys []string
	if len(in.Documents) > 0 {
		objects, err := c.store.Upload(ctx, storage.FolderDocuments, in.Documents)
		if err != nil {
			if errors.Is(err, storage.ErrUnsupportedFile) {
				return nil, utils.NewValidationError(map[string]string{"documents": err.Error()})
			}
			return nil, fmt.Errorf("upload documents: %w", err)
		}
		for _, o := range objects {
			keys = append(keys, o.Key)
		}
	}

	req := &dbm.CertificateRequest{
		ResidentID:      resident.ID,
		CertificateType: certType,
		Purpose:         purpose,
		AdditionalInfo:  info,
		Status:          dbm.RequestPending,
		RequestDate:     c.now().Unix(),
		DocumentKeys:    keys,
	}
	if err := c.insertWithReference(ctx, req); err != nil {
		if len(keys) > 0 {
			if delErr := c.store.Delete(context.WithoutCancel(ctx), keys); delErr != nil {
				c.log.Warn("remove orphaned documents", zap.Strings("keys", keys), zap.Error(delErr))
			}
		}
		return nil, err
	}

	req.Resident = resident
	c.log.Info("certificate request created",
		zap.String("reference_number", req.ReferenceNumber),
		zap.Uint("resident_id", resident.ID),
		zap.String("certificate_type", string(certType)))
	c.notifier.RequestChanged(ctx, &RequestChange{Request: req, To: dbm.RequestPending})
	return toRequestResponse(req, nil, c.store), nil
}

func (c *certificateRequestService) insertWithReference(ctx context.Context, req *dbm.CertificateRequest) error {
	for attempt := 0; attempt < utils.MaxReferenceAttempts; attempt++ {
		ref, err := utils.GenerateReference(utils.RequestReferencePrefix, c.now())
		if err != nil {
			return err
		}
		req.ID = 0
		req.ReferenceNumber = ref
		err = c.requestRepo.Create(ctx, req)
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.NewDatabaseError(err)
		}
		c.log.Debug("reference collision, regenerating", zap.String("reference_number", ref))
	}
	return utils.NewConflictError("could not allocate a unique reference number")
}

// resolveResident returns the resident a request is filed for. Users may only
// file for their own profile; residentID 0 means "mine".
func (c *certificateRequestService) resolveResident(ctx context.Context, s utils.Session, residentID uint) (*dbm.Resident, error) {
	var (
		resident *dbm.Resident
		err      error
	)
	if residentID == 0 {
		resident, err = c.residents.FindByAccountID(ctx, s.UserID)
	} else {
		resident, err = c.residents.FindByID(ctx, residentID)
	}
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if resident == nil {
		if residentID == 0 {
			return nil, utils.NewNotFoundError("resident profile not found for this account")
		}
		return nil, utils.NewNotFoundError("resident %d not found", residentID)
	}
	if !s.IsAdmin() && (resident.AccountID == nil || *resident.AccountID != s.UserID) {
		return nil, utils.NewForbiddenError("You can only file requests for your own resident profile")
	}
	return resident, nil
}

type transitionHook func(ctx context.Context, tx *gorm.DB, req *dbm.CertificateRequest) error

// transition moves one request along the lifecycle graph under a row lock.
func (c *certificateRequestService) transition(ctx context.Context, id uint, to dbm.RequestStatus, remarks *string, hook transitionHook) (*RequestChange, error) {
	var change *RequestChange
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ch, err := c.transitionTx(ctx, tx, id, to, remarks, hook)
		change = ch
		return err
	})
	if err != nil {
		return nil, err
	}
	c.notifier.RequestChanged(ctx, change)
	return change, nil
}

func (c *certificateRequestService) transitionTx(ctx context.Context, tx *gorm.DB, id uint, to dbm.RequestStatus, remarks *string, hook transitionHook) (*RequestChange, error) {
	repo := c.requestRepo.WithTx(tx)
	req, err := repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if req == nil {
		return nil, utils.NewNotFoundError("certificate request %d not found", id)
	}

	from := req.Status
	if !from.CanTransitionTo(to) {
		return nil, utils.NewConflictError("cannot move request %s from %s to %s", req.ReferenceNumber, from, to)
	}
	if hook != nil {
		if err := hook(ctx, tx, req); err != nil {
			return nil, err
		}
	}

	ok, err := repo.UpdateStatus(ctx, id, from, to, remarks)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if !ok {
		return nil, utils.NewConflictError("request %s was modified by another operation", req.ReferenceNumber)
	}

	req.Status = to
	if remarks != nil {
		req.Remarks = *remarks
	}
	c.log.Info("request status changed",
		zap.String("reference_number", req.ReferenceNumber),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return &RequestChange{Request: req, From: from, To: to}, nil
}

func (c *certificateRequestService) adminTransition(ctx context.Context, s utils.Session, id uint, to dbm.RequestStatus, remarks *string, hook transitionHook) (*resp.CertificateRequestResponse, error) {
	if err := s.RequireAdmin(); err != nil {
		return nil, err
	}
	change, err := c.transition(ctx, id, to, remarks, hook)
	if err != nil {
		return nil, err
	}
	return c.render(ctx, change.Request)
}

func (c *certificateRequestService) ApproveForPayment(ctx context.Context, s utils.Session, id uint) (*resp.CertificateRequestResponse, error) {
	return c.adminTransition(ctx, s, id, dbm.RequestAwaitingPayment, nil, func(ctx context.Context, tx *gorm.DB, req *dbm.CertificateRequest) error {
		active, err := c.payments.WithTx(tx).FindActiveByRequest(ctx, req.ID)
		if err != nil {
			return utils.NewDatabaseError(err)
		}
		if active != nil && active.PaymentStatus != dbm.PaymentPending {
			return utils.NewConflictError("request %s already has an active %s payment", req.ReferenceNumber, active.PaymentStatus)
		}
		return nil
	})
}

func (c *certificateRequestService) MarkUnderReview(ctx context.Context, s utils.Session, id uint) (*resp.CertificateRequestResponse, error) {
	return c.adminTransition(ctx, s, id, dbm.RequestUnderReview, nil, nil)
}

func (c *certificateRequestService) MarkReadyForPickup(ctx context.Context, s utils.Session, id uint) (*resp.CertificateRequestResponse, error) {
	return c.adminTransition(ctx, s, id, dbm.RequestReadyForPickup, nil, nil)
}

func (c *certificateRequestService) MarkInTransit(ctx context.Context, s utils.Session, id uint) (*resp.CertificateRequestResponse, error) {
	return c.adminTransition(ctx, s, id, dbm.RequestInTransit, nil, nil)
}

func (c *certificateRequestService) MarkCompleted(ctx context.Context, s utils.Session, id uint) (*resp.CertificateRequestResponse, error) {
	return c.adminTransition(ctx, s, id, dbm.RequestCompleted, nil, nil)
}

func (c *certificateRequestService) Reject(ctx context.Context, s utils.Session, id uint, remarks string) (*resp.CertificateRequestResponse, error) {
	return c.close(ctx, s, id, dbm.RequestRejected, remarks)
}

func (c *certificateRequestService) Cancel(ctx context.Context, s utils.Session, id uint, remarks string) (*resp.CertificateRequestResponse, error) {
	return c.close(ctx, s, id, dbm.RequestCancelled, remarks)
}

// close ends the request and cancels its pending checkout, if any. It holds
// the request's payment lock so no checkout can be opened concurrently.
func (c *certificateRequestService) close(ctx context.Context, s utils.Session, id uint, to dbm.RequestStatus, remarks string) (*resp.CertificateRequestResponse, error) {
	if err := s.RequireAdmin(); err != nil {
		return nil, err
	}
	remarks = strings.TrimSpace(remarks)

	unlock, err := lockRequest(ctx, c.locker, c.cfg.LockWait, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var cancelled *PaymentChange
	change, err := c.transition(ctx, id, to, &remarks, func(ctx context.Context, tx *gorm.DB, req *dbm.CertificateRequest) error {
		ch, err := cancelPending(ctx, c.payments.WithTx(tx), req.ID, s.UserID, dbm.EventSourceAdmin, map[string]interface{}{"request_status": string(to)})
		cancelled = ch
		return err
	})
	if err != nil {
		return nil, err
	}

	if cancelled != nil {
		c.notifier.PaymentChanged(ctx, cancelled)
		cancelCheckout(ctx, c.gw, c.cfg.GatewayTimeout, c.log, cancelled.Payment)
	}
	return c.render(ctx, change.Request)
}

func (c *certificateRequestService) MarkProcessing(ctx context.Context, tx *gorm.DB, id uint) (*RequestChange, error) {
	req, err := c.requestRepo.WithTx(tx).FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if req == nil {
		return nil, utils.NewNotFoundError("certificate request %d not found", id)
	}
	if req.Status == dbm.RequestProcessing {
		return nil, nil
	}
	return c.transitionTx(ctx, tx, id, dbm.RequestProcessing, nil, nil)
}

func (c *certificateRequestService) AdvanceForPayment(ctx context.Context, tx *gorm.DB, id uint, paid bool) ([]*RequestChange, error) {
	req, err := c.requestRepo.WithTx(tx).FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if req == nil {
		return nil, utils.NewNotFoundError("certificate request %d not found", id)
	}

	var changes []*RequestChange
	if req.Status == dbm.RequestPending || req.Status == dbm.RequestUnderReview {
		ch, err := c.transitionTx(ctx, tx, id, dbm.RequestAwaitingPayment, nil, nil)
		if err != nil {
			return nil, err
		}
		changes = append(changes, ch)
		req.Status = dbm.RequestAwaitingPayment
	}
	if !paid {
		if req.Status != dbm.RequestAwaitingPayment {
			return nil, utils.NewConflictError("request %s is %s and cannot take a pending payment", req.ReferenceNumber, req.Status)
		}
		return changes, nil
	}

	switch req.Status {
	case dbm.RequestAwaitingPayment:
		ch, err := c.transitionTx(ctx, tx, id, dbm.RequestProcessing, nil, nil)
		if err != nil {
			return nil, err
		}
		changes = append(changes, ch)
	case dbm.RequestProcessing, dbm.RequestReadyForPickup, dbm.RequestInTransit, dbm.RequestCompleted:
		// already past payment
	default:
		return nil, utils.NewConflictError("request %s is %s and cannot take a payment", req.ReferenceNumber, req.Status)
	}
	return changes, nil
}

func (c *certificateRequestService) Delete(ctx context.Context, s utils.Session, id uint) error {
	if err := s.RequireAdmin(); err != nil {
		return err
	}

	var keys []string
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := c.requestRepo.WithTx(tx)
		req, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return utils.NewDatabaseError(err)
		}
		if req == nil {
			return utils.NewNotFoundError("certificate request %d not found", id)
		}
		if req.Status.InPaymentWorkflow() {
			return utils.NewConflictError("cannot delete request with pending payment workflow")
		}
		proofs, err := c.payments.WithTx(tx).ProofKeys(ctx, id)
		if err != nil {
			return utils.NewDatabaseError(err)
		}
		if err := repo.Delete(ctx, id); err != nil {
			return utils.NewDatabaseError(err)
		}
		keys = append(keys, req.DocumentKeys...)
		keys = append(keys, proofs...)
		return nil
	})
	if err != nil {
		return err
	}

	if len(keys) > 0 {
		if err := c.store.Delete(ctx, keys); err != nil {
			c.log.Warn("remove request documents", zap.Uint("request_id", id), zap.Error(err))
		}
	}
	c.log.Info("certificate request deleted", zap.Uint("request_id", id), zap.Uint("admin_id", s.UserID))
	return nil
}

func (c *certificateRequestService) GetByID(ctx context.Context, s utils.Session, id uint) (*resp.CertificateRequestResponse, error) {
	req, err := c.requestRepo.FindByID(ctx, id)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if req == nil {
		return nil, utils.NewNotFoundError("certificate request %d not found", id)
	}
	if err := authorizeRequestAccess(s, req); err != nil {
		return nil, err
	}
	return c.render(ctx, req)
}

func (c *certificateRequestService) GetByReference(ctx context.Context, s utils.Session, reference string) (*resp.CertificateRequestResponse, error) {
	req, err := c.requestRepo.FindByReference(ctx, strings.ToUpper(strings.TrimSpace(reference)))
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if req == nil {
		return nil, utils.NewNotFoundError("certificate request %s not found", reference)
	}
	if err := authorizeRequestAccess(s, req); err != nil {
		return nil, err
	}
	return c.render(ctx, req)
}

func (c *certificateRequestService) ListMine(ctx context.Context, s utils.Session, page, pageSize int) (*resp.PagedResponse[resp.CertificateRequestResponse], error) {
	if !s.IsAuthenticated() {
		return nil, utils.NewUnauthorizedError("Authentication required")
	}
	resident, err := c.residents.FindByAccountID(ctx, s.UserID)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if resident == nil {
		page, pageSize, err := utils.NormalizePage(page, pageSize)
		if err != nil {
			return nil, utils.NewValidationError(map[string]string{"page": err.Error()})
		}
		return &resp.PagedResponse[resp.CertificateRequestResponse]{Items: []resp.CertificateRequestResponse{}, Page: page, PageSize: pageSize}, nil
	}
	return c.list(ctx, repositories.RequestFilter{ResidentID: resident.ID, Page: page, PageSize: pageSize})
}

func (c *certificateRequestService) ListAll(ctx context.Context, s utils.Session, q request_models.ListRequestsQuery) (*resp.PagedResponse[resp.CertificateRequestResponse], error) {
	if err := s.RequireAdmin(); err != nil {
		return nil, err
	}
	filter := repositories.RequestFilter{
		ResidentID: q.ResidentID,
		Page:       q.Page,
		PageSize:   q.PageSize,
	}
	if q.Status != "" {
		status := dbm.RequestStatus(strings.ToUpper(q.Status))
		if !status.Valid() {
			return nil, utils.NewValidationError(map[string]string{"status": "unknown request status"})
		}
		filter.Status = status
	}
	if q.CertificateType != "" {
		certType := dbm.CertificateType(strings.ToUpper(q.CertificateType))
		if !certType.Valid() {
			return nil, utils.NewValidationError(map[string]string{"certificate_type": "unsupported certificate type"})
		}
		filter.CertificateType = certType
	}
	return c.list(ctx, filter)
}

func (c *certificateRequestService) list(ctx context.Context, filter repositories.RequestFilter) (*resp.PagedResponse[resp.CertificateRequestResponse], error) {
	page, size, err := utils.NormalizePage(filter.Page, filter.PageSize)
	if err != nil {
		return nil, utils.NewValidationError(map[string]string{"page": err.Error()})
	}
	filter.Page, filter.PageSize = page, size

	rows, total, err := c.requestRepo.List(ctx, filter)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	items := make([]resp.CertificateRequestResponse, 0, len(rows))
	for i := range rows {
		items = append(items, *toRequestResponse(&rows[i], nil, c.store))
	}
	return &resp.PagedResponse[resp.CertificateRequestResponse]{Items: items, Page: page, PageSize: size, Total: total}, nil
}

func (c *certificateRequestService) render(ctx context.Context, req *dbm.CertificateRequest) (*resp.CertificateRequestResponse, error) {
	active, err := c.payments.FindActiveByRequest(ctx, req.ID)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	return toRequestResponse(req, active, c.store), nil
}

func authorizeRequestAccess(s utils.Session, req *dbm.CertificateRequest) error {
	if !s.IsAuthenticated() {
		return utils.NewUnauthorizedError("Authentication required")
	}
	if s.IsAdmin() {
		return nil
	}
	if req.Resident == nil || req.Resident.AccountID == nil || *req.Resident.AccountID != s.UserID {
		return utils.NewForbiddenError("You do not have access to this request")
	}
	return nil
}
