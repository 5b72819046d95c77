package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"barangay/internal/config"
	"barangay/internal/gateway"
	dbm "barangay/internal/models/db_models"
	"barangay/internal/models/request_models"
	resp "barangay/internal/models/response_models"
	"barangay/internal/repositories"
	"barangay/internal/storage"
	mem "barangay/pkg/memcache"
	"barangay/pkg/utils"
)

const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

type PaymentConfig struct {
	Fees           config.FeeConfig
	BaseURL        string
	GatewayTimeout time.Duration
	LockWait       time.Duration
}

// ManualPaymentInput is an admin-recorded payment. Proof is optional.
type ManualPaymentInput struct {
	Amount        string
	PaymentMethod string
	PaymentStatus string
	Notes         string
	ReceiptNumber string
	Proof         *storage.File
}

type PaymentService interface {
	Initiate(ctx context.Context, s utils.Session, requestID uint, deliveryMethod string) (*resp.InitiatePaymentResponse, error)
	Cancel(ctx context.Context, s utils.Session, requestID uint, transactionID string) (*resp.CancelPaymentResponse, error)
	ReconcileStatus(ctx context.Context, s utils.Session, requestID uint, transactionID string) (*resp.PaymentStatusResponse, error)
	ReturnStatus(ctx context.Context, requestID uint, transactionID string) (*resp.PaymentStatusResponse, error)
	HandleWebhook(ctx context.Context, body []byte, header http.Header) error
	CreateManualPayment(ctx context.Context, s utils.Session, requestID uint, in ManualPaymentInput) (*resp.PaymentResponse, error)
	UpdatePaymentStatus(ctx context.Context, s utils.Session, paymentID uint, status, notes string) (*resp.PaymentResponse, error)
	ListForRequest(ctx context.Context, s utils.Session, requestID uint) ([]resp.PaymentResponse, error)
	ListAll(ctx context.Context, s utils.Session, q request_models.ListPaymentsQuery) (*resp.PagedResponse[resp.PaymentResponse], error)
}

type paymentService struct {
	db       *gorm.DB
	requests repositories.CertificateRequestRepository
	payments repositories.PaymentRepository
	workflow CertificateRequestService
	gw       gateway.PaymentGateway
	store    storage.Storage
	locker   mem.RequestLocker
	notifier *Notifier
	cfg      PaymentConfig
	log      *zap.Logger
	now      func() time.Time
}

func NewPaymentService(
	db *gorm.DB,
	requests repositories.CertificateRequestRepository,
	payments repositories.PaymentRepository,
	workflow CertificateRequestService,
	gw gateway.PaymentGateway,
	store storage.Storage,
	locker mem.RequestLocker,
	notifier *Notifier,
	cfg PaymentConfig,
	log *zap.Logger,
) PaymentService {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 15 * time.Second
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 10 * time.Second
	}
	return &paymentService{
		db:       db,
		requests: requests,
		payments: payments,
		workflow: workflow,
		gw:       gw,
		store:    store,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// ReturnURL is where the gateway sends the buyer back after checkout.
func ReturnURL(baseURL, outcome string, requestID uint, transactionID string) string {
	q := url.Values{}
	q.Set("requestId", strconv.FormatUint(uint64(requestID), 10))
	q.Set("transactionId", transactionID)
	return strings.TrimRight(baseURL, "/") + "/payments/return/" + outcome + "?" + q.Encode()
}

// ReturnOutcome is the return page a stored status belongs on. PENDING has
// none yet.
func ReturnOutcome(status dbm.PaymentStatus) string {
	switch {
	case status.IsSuccess():
		return OutcomeSuccess
	case status == dbm.PaymentCancelled:
		return OutcomeCancelled
	case status == dbm.PaymentPending:
		return ""
	default:
		return OutcomeFailed
	}
}

func (p *paymentService) lock(ctx context.Context, requestID uint) (func(), error) {
	return lockRequest(ctx, p.locker, p.cfg.LockWait, requestID)
}

func (p *paymentService) loadRequest(ctx context.Context, s utils.Session, requestID uint) (*dbm.CertificateRequest, error) {
	req, err := p.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if req == nil {
		return nil, utils.NewNotFoundError("certificate request %d not found", requestID)
	}
	if err := authorizeRequestAccess(s, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (p *paymentService) loadPayment(ctx context.Context, requestID uint, transactionID string) (*dbm.Payment, error) {
	payment, err := p.payments.FindByRequestAndReference(ctx, requestID, strings.TrimSpace(transactionID))
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if payment == nil {
		return nil, utils.NewNotFoundError("payment %s not found for request %d", transactionID, requestID)
	}
	return payment, nil
}

func (p *paymentService) Initiate(ctx context.Context, s utils.Session, requestID uint, deliveryMethod string) (*resp.InitiatePaymentResponse, error) {
	method := dbm.DeliveryMethod(strings.ToLower(strings.TrimSpace(deliveryMethod)))
	if !method.Valid() {
		return nil, utils.NewValidationError(map[string]string{"delivery_method": "must be pickup or delivery"})
	}

	unlock, err := p.lock(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, err := p.loadRequest(ctx, s, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != dbm.RequestAwaitingPayment {
		return nil, utils.NewConflictError("request %s is %s, payment is only possible while AWAITING_PAYMENT", req.ReferenceNumber, req.Status)
	}
	if req.Resident == nil {
		return nil, utils.NewPreconditionError("resident profile is missing for request %s", req.ReferenceNumber)
	}
	if req.Resident.Address == nil {
		return nil, utils.NewPreconditionError("resident address is missing, update your address before paying")
	}

	active, err := p.payments.FindActiveByRequest(ctx, req.ID)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if active != nil && active.PaymentStatus == dbm.PaymentPending && active.RedirectURL() != "" {
		p.log.Info("returning existing checkout",
			zap.String("reference_number", req.ReferenceNumber),
			zap.String("transaction_reference", active.TransactionReference))
		return &resp.InitiatePaymentResponse{
			CheckoutURL:   active.RedirectURL(),
			TransactionID: active.TransactionReference,
			Amount:        active.Amount.StringFixed(2),
		}, nil
	}

	fees := ComputeFees(p.cfg.Fees, method)
	txnRef, err := p.newTransactionReference(ctx, utils.GatewayTxnPrefix)
	if err != nil {
		return nil, err
	}

	checkoutReq := p.checkoutRequest(req, txnRef, method, fees)
	gwCtx, cancel := context.WithTimeout(ctx, p.cfg.GatewayTimeout)
	checkout, err := p.gw.CreateCheckout(gwCtx, checkoutReq)
	cancel()
	if err != nil {
		p.log.Error("create checkout",
			zap.String("reference_number", req.ReferenceNumber),
			zap.String("transaction_reference", txnRef),
			zap.Error(err))
		return nil, err
	}

	checkoutID := checkout.CheckoutID
	payment := &dbm.Payment{
		CertificateRequestID: req.ID,
		TransactionReference: txnRef,
		Amount:               fees.Total,
		Currency:             dbm.CurrencyPHP,
		PaymentMethod:        dbm.PaymentOnline,
		PaymentStatus:        dbm.PaymentPending,
		IsActive:             true,
		GatewayReference:     &checkoutID,
		Metadata: datatypes.NewJSONType(dbm.NewGatewayMetadata(dbm.GatewayMetadata{
			Provider:       p.gw.Name(),
			CheckoutID:     checkoutID,
			RedirectURL:    checkout.RedirectURL,
			DeliveryMethod: method,
			Fees:           fees,
		})),
	}

	var superseded *PaymentChange
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requests := p.requests.WithTx(tx)
		current, err := requests.FindByIDForUpdate(ctx, req.ID)
		if err != nil {
			return utils.NewDatabaseError(err)
		}
		if current == nil || current.Status != dbm.RequestAwaitingPayment {
			return utils.NewConflictError("request %s is no longer awaiting payment", req.ReferenceNumber)
		}
		payments := p.payments.WithTx(tx)
		superseded, err = cancelPending(ctx, payments, req.ID, s.UserID, dbm.EventSourceInitiate, map[string]interface{}{"reason": "superseded"})
		if err != nil {
			return err
		}
		if err := payments.Create(ctx, payment); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return utils.NewConflictError("request %s already has an active payment", req.ReferenceNumber)
			}
			return utils.NewDatabaseError(err)
		}
		actor := s.UserID
		if err := payments.AppendEvent(ctx, &dbm.PaymentEvent{
			PaymentID: payment.ID,
			ToStatus:  dbm.PaymentPending,
			Source:    dbm.EventSourceInitiate,
			ActorID:   &actor,
			Payload:   map[string]interface{}{"checkout_id": checkoutID, "delivery_method": string(method)},
		}); err != nil {
			return utils.NewDatabaseError(err)
		}
		if err := requests.SetDeliveryMethod(ctx, req.ID, method); err != nil {
			return utils.NewDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		p.compensateCheckout(ctx, txnRef, checkoutID)
		return nil, err
	}
	if superseded != nil {
		p.notifier.PaymentChanged(ctx, superseded)
		cancelCheckout(ctx, p.gw, p.cfg.GatewayTimeout, p.log, superseded.Payment)
	}

	p.log.Info("payment initiated",
		zap.String("reference_number", req.ReferenceNumber),
		zap.String("transaction_reference", txnRef),
		zap.String("amount", fees.Total.StringFixed(2)),
		zap.String("provider", p.gw.Name()))
	p.notifier.PaymentChanged(ctx, &PaymentChange{Payment: payment, To: dbm.PaymentPending, Source: dbm.EventSourceInitiate})

	return &resp.InitiatePaymentResponse{
		CheckoutURL:   checkout.RedirectURL,
		TransactionID: txnRef,
		Amount:        fees.Total.StringFixed(2),
	}, nil
}

func (p *paymentService) checkoutRequest(req *dbm.CertificateRequest, txnRef string, method dbm.DeliveryMethod, fees dbm.FeeBreakdown) gateway.CheckoutRequest {
	r := req.Resident
	a := r.Address
	items := []gateway.Item{
		{Code: "PROCESSING_FEE", Name: req.CertificateType.DisplayName() + " processing fee", Amount: fees.ProcessingFee},
		{Code: "SERVICE_CHARGE", Name: "Service charge", Amount: fees.ServiceCharge},
	}
	if fees.ShippingFee.IsPositive() {
		items = append(items, gateway.Item{Code: "SHIPPING_FEE", Name: "Shipping fee", Amount: fees.ShippingFee})
	}
	return gateway.CheckoutRequest{
		ReferenceNumber: txnRef,
		Description:     fmt.Sprintf("%s %s", req.CertificateType.DisplayName(), req.ReferenceNumber),
		Buyer: gateway.Buyer{
			FirstName:  r.FirstName,
			MiddleName: r.MiddleName,
			LastName:   r.LastName,
			Email:      r.Email,
			Phone:      r.PhoneNumber,
			Address: gateway.Address{
				Line1:   a.Line1(),
				Line2:   a.Line2(),
				City:    a.City,
				State:   a.Province,
				ZipCode: a.ZipCode,
			},
		},
		Items:    items,
		Total:    fees.Total,
		Currency: dbm.CurrencyPHP,
		Shipping: method == dbm.DeliveryShipping,
		RedirectURLs: gateway.RedirectURLs{
			Success: ReturnURL(p.cfg.BaseURL, OutcomeSuccess, req.ID, txnRef),
			Failure: ReturnURL(p.cfg.BaseURL, OutcomeFailed, req.ID, txnRef),
			Cancel:  ReturnURL(p.cfg.BaseURL, OutcomeCancelled, req.ID, txnRef),
		},
	}
}

// compensateCheckout cancels a checkout whose ledger row never committed.
func (p *paymentService) compensateCheckout(ctx context.Context, txnRef, checkoutID string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.GatewayTimeout)
	defer cancel()
	if err := p.gw.Cancel(cctx, checkoutID); err != nil {
		p.log.Warn("compensating checkout cancel failed",
			zap.String("transaction_reference", txnRef),
			zap.String("checkout_id", checkoutID),
			zap.Error(err))
	}
}

func (p *paymentService) newTransactionReference(ctx context.Context, prefix string) (string, error) {
	for attempt := 0; attempt < utils.MaxReferenceAttempts; attempt++ {
		ref, err := utils.GenerateReference(prefix, p.now())
		if err != nil {
			return "", err
		}
		existing, err := p.payments.FindByTransactionReference(ctx, ref)
		if err != nil {
			return "", utils.NewDatabaseError(err)
		}
		if existing == nil {
			return ref, nil
		}
	}
	return "", utils.NewConflictError("could not allocate a unique transaction reference")
}

func (p *paymentService) Cancel(ctx context.Context, s utils.Session, requestID uint, transactionID string) (*resp.CancelPaymentResponse, error) {
	unlock, err := p.lock(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := p.loadRequest(ctx, s, requestID); err != nil {
		return nil, err
	}
	payment, err := p.loadPayment(ctx, requestID, transactionID)
	if err != nil {
		return nil, err
	}
	if !payment.IsActive || payment.PaymentStatus != dbm.PaymentPending {
		return nil, utils.NewConflictError("payment %s cannot be cancelled, its status is %s", payment.TransactionReference, payment.PaymentStatus)
	}

	if payment.IsGateway() {
		gwCtx, cancel := context.WithTimeout(ctx, p.cfg.GatewayTimeout)
		err := p.gw.Cancel(gwCtx, *payment.GatewayReference)
		cancel()
		if err != nil {
			p.log.Warn("gateway cancel failed, cancelling locally",
				zap.String("transaction_reference", payment.TransactionReference),
				zap.Error(err))
		}
	}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payments := p.payments.WithTx(tx)
		ok, err := payments.UpdateStatus(ctx, payment.ID, dbm.PaymentPending, map[string]interface{}{
			"payment_status": dbm.PaymentCancelled,
			"is_active":      false,
		})
		if err != nil {
			return utils.NewDatabaseError(err)
		}
		if !ok {
			return utils.NewConflictError("payment %s was modified by another operation", payment.TransactionReference)
		}
		actor := s.UserID
		if err := payments.AppendEvent(ctx, &dbm.PaymentEvent{
			PaymentID:  payment.ID,
			FromStatus: dbm.PaymentPending,
			ToStatus:   dbm.PaymentCancelled,
			Source:     dbm.EventSourceCancel,
			ActorID:    &actor,
		}); err != nil {
			return utils.NewDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payment.PaymentStatus = dbm.PaymentCancelled
	payment.IsActive = false
	p.log.Info("payment cancelled", zap.String("transaction_reference", payment.TransactionReference))
	p.notifier.PaymentChanged(ctx, &PaymentChange{Payment: payment, From: dbm.PaymentPending, To: dbm.PaymentCancelled, Source: dbm.EventSourceCancel})
	return &resp.CancelPaymentResponse{Success: true, Status: string(dbm.PaymentCancelled)}, nil
}

func (p *paymentService) ReconcileStatus(ctx context.Context, s utils.Session, requestID uint, transactionID string) (*resp.PaymentStatusResponse, error) {
	unlock, err := p.lock(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := p.loadRequest(ctx, s, requestID); err != nil {
		return nil, err
	}
	return p.reconcileAndReport(ctx, requestID, transactionID)
}

// ReturnStatus backs the public page the gateway sends buyers back to. It
// reconciles like ReconcileStatus without a session.
func (p *paymentService) ReturnStatus(ctx context.Context, requestID uint, transactionID string) (*resp.PaymentStatusResponse, error) {
	unlock, err := p.lock(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, err := p.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if req == nil {
		return nil, utils.NewNotFoundError("certificate request %d not found", requestID)
	}
	return p.reconcileAndReport(ctx, requestID, transactionID)
}

func (p *paymentService) reconcileAndReport(ctx context.Context, requestID uint, transactionID string) (*resp.PaymentStatusResponse, error) {
	payment, err := p.loadPayment(ctx, requestID, transactionID)
	if err != nil {
		return nil, err
	}
	status, err := p.reconcile(ctx, payment, dbm.EventSourceReconcile)
	if err != nil {
		return nil, err
	}

	req, err := p.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	out := &resp.PaymentStatusResponse{Status: string(status), TransactionID: payment.TransactionReference}
	if req != nil {
		out.RequestStatus = string(req.Status)
	}
	return out, nil
}

func (p *paymentService) HandleWebhook(ctx context.Context, body []byte, header http.Header) error {
	ev, err := p.gw.ParseWebhook(ctx, body, header)
	if err != nil {
		p.log.Warn("rejected webhook", zap.String("provider", p.gw.Name()), zap.Error(err))
		return utils.NewValidationError(map[string]string{"body": "notification could not be verified"})
	}

	var payment *dbm.Payment
	if ev.CheckoutID != "" {
		if payment, err = p.payments.FindByGatewayReference(ctx, ev.CheckoutID); err != nil {
			return utils.NewDatabaseError(err)
		}
	}
	if payment == nil && ev.ReferenceNumber != "" {
		if payment, err = p.payments.FindByTransactionReference(ctx, ev.ReferenceNumber); err != nil {
			return utils.NewDatabaseError(err)
		}
	}
	if payment == nil {
		return utils.NewNotFoundError("no payment matches checkout %q", ev.CheckoutID)
	}

	unlock, err := p.lock(ctx, payment.CertificateRequestID)
	if err != nil {
		return err
	}
	defer unlock()

	p.log.Info("webhook received",
		zap.String("transaction_reference", payment.TransactionReference),
		zap.String("claimed_status", ev.Status))
	_, err = p.reconcile(ctx, payment, dbm.EventSourceWebhook)
	return err
}

// reconcile re-reads the gateway status of payment and applies it when it
// differs from the ledger and the payment graph allows the move. Manual
// payments are returned unchanged.
func (p *paymentService) reconcile(ctx context.Context, payment *dbm.Payment, source string) (dbm.PaymentStatus, error) {
	if !payment.IsGateway() {
		return payment.PaymentStatus, nil
	}

	gwCtx, cancel := context.WithTimeout(ctx, p.cfg.GatewayTimeout)
	raw, err := p.gw.GetStatus(gwCtx, *payment.GatewayReference)
	cancel()
	if err != nil {
		return "", err
	}
	truth := gateway.MapStatus(raw)
	if truth == payment.PaymentStatus {
		return truth, nil
	}

	var (
		paymentChange  *PaymentChange
		requestChanges []*RequestChange
		result         = payment.PaymentStatus
	)
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payments := p.payments.WithTx(tx)
		current, err := payments.FindByID(ctx, payment.ID)
		if err != nil {
			return utils.NewDatabaseError(err)
		}
		if current == nil {
			return utils.NewNotFoundError("payment %s not found", payment.TransactionReference)
		}
		result = current.PaymentStatus
		if current.PaymentStatus == truth {
			return nil
		}
		if !current.PaymentStatus.CanTransitionTo(truth) {
			p.log.Warn("ignoring gateway status outside payment graph",
				zap.String("transaction_reference", current.TransactionReference),
				zap.String("stored", string(current.PaymentStatus)),
				zap.String("gateway", raw))
			return nil
		}

		from := current.PaymentStatus
		meta := current.Metadata.Data()
		if meta.Gateway != nil {
			meta.Gateway.LastGatewayStatus = raw
		}
		fields := map[string]interface{}{
			"payment_status": truth,
			"metadata":       datatypes.NewJSONType(meta),
		}
		if truth.IsSuccess() {
			paidAt := p.now().Unix()
			fields["payment_date"] = paidAt
			current.PaymentDate = &paidAt
		}
		if truth != dbm.PaymentPending {
			fields["is_active"] = false
			current.IsActive = false
		}
		ok, err := payments.UpdateStatus(ctx, current.ID, from, fields)
		if err != nil {
			return utils.NewDatabaseError(err)
		}
		if !ok {
			return utils.NewConflictError("payment %s was modified by another operation", current.TransactionReference)
		}
		if err := payments.AppendEvent(ctx, &dbm.PaymentEvent{
			PaymentID:  current.ID,
			FromStatus: from,
			ToStatus:   truth,
			Source:     source,
			Payload:    map[string]interface{}{"gateway_status": raw},
		}); err != nil {
			return utils.NewDatabaseError(err)
		}
		current.PaymentStatus = truth
		result = truth
		paymentChange = &PaymentChange{Payment: current, From: from, To: truth, Source: source}

		if !truth.IsSuccess() {
			return nil
		}
		req, err := p.requests.WithTx(tx).FindByID(ctx, current.CertificateRequestID)
		if err != nil {
			return utils.NewDatabaseError(err)
		}
		if req == nil || (req.Status != dbm.RequestAwaitingPayment && req.Status != dbm.RequestProcessing) {
			p.log.Warn("payment settled for request not awaiting payment",
				zap.String("transaction_reference", current.TransactionReference),
				zap.Uint("request_id", current.CertificateRequestID))
			return nil
		}
		change, err := p.workflow.MarkProcessing(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if change != nil {
			requestChanges = append(requestChanges, change)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if paymentChange != nil {
		p.log.Info("payment reconciled",
			zap.String("transaction_reference", paymentChange.Payment.TransactionReference),
			zap.String("from", string(paymentChange.From)),
			zap.String("to", string(paymentChange.To)),
			zap.String("source", source))
		p.notifier.PaymentChanged(ctx, paymentChange)
	}
	p.notifier.RequestChanged(ctx, requestChanges...)
	return result, nil
}

var manualStatuses = map[dbm.PaymentStatus]bool{
	dbm.PaymentPending:   true,
	dbm.PaymentSucceeded: true,
	dbm.PaymentVerified:  true,
	dbm.PaymentWaived:    true,
}

func (p *paymentService) CreateManualPayment(ctx context.Context, s utils.Session, requestID uint, in ManualPaymentInput) (*resp.PaymentResponse, error) {
	if err := s.RequireAdmin(); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	amount, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	if err != nil {
		fields["amount"] = "must be a decimal number"
	} else if amount.IsNegative() || amount.Exponent() < -2 {
		fields["amount"] = "must be a non-negative amount with at most two decimals"
	}
	method := dbm.PaymentMethod(strings.ToUpper(strings.TrimSpace(in.PaymentMethod)))
	if !method.IsManual() {
		fields["payment_method"] = "must be CASH, BANK_TRANSFER or E_WALLET"
	}
	status := dbm.PaymentStatus(strings.ToUpper(strings.TrimSpace(in.PaymentStatus)))
	if !manualStatuses[status] {
		fields["payment_status"] = "must be PENDING, SUCCEEDED, VERIFIED or WAIVED"
	}
	if len(fields) == 0 && amount.IsZero() && status != dbm.PaymentWaived {
		fields["amount"] = "must be greater than zero unless the fee is waived"
	}
	if len(fields) > 0 {
		return nil, utils.NewValidationError(fields)
	}

	unlock, err := p.lock(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, err := p.loadRequest(ctx, s, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status.IsTerminal() {
		return nil, utils.NewConflictError("request %s is %s and cannot take a payment", req.ReferenceNumber, req.Status)
	}

	var proofKey string
	if in.Proof != nil {
		objects, err := p.store.Upload(ctx, storage.FolderPayments, []storage.File{*in.Proof})
		if err != nil {
			if errors.Is(err, storage.ErrUnsupportedFile) {
				return nil, utils.NewValidationError(map[string]string{"proof_of_payment": err.Error()})
			}
			return nil, fmt.Errorf("upload proof of payment: %w", err)
		}
		proofKey = objects[0].Key
	}

	txnRef, err := p.newTransactionReference(ctx, utils.ManualTxnPrefix)
	if err != nil {
		p.discardUploads(ctx, proofKey)
		return nil, err
	}

	payment := &dbm.Payment{
		CertificateRequestID: req.ID,
		TransactionReference: txnRef,
		Amount:               amount.Round(2),
		Currency:             dbm.CurrencyPHP,
		PaymentMethod:        method,
		PaymentStatus:        status,
		IsActive:             status == dbm.PaymentPending,
		Metadata: datatypes.NewJSONType(dbm.NewManualMetadata(dbm.ManualMetadata{
			RecordedBy: s.UserID,
			Method:     string(method),
		})),
		ProofOfPaymentPath: proofKey,
		Notes:              strings.TrimSpace(in.Notes),
		ReceiptNumber:      strings.TrimSpace(in.ReceiptNumber),
	}
	if status.IsSuccess() {
		paidAt := p.now().Unix()
		payment.PaymentDate = &paidAt
	}

	var (
		requestChanges []*RequestChange
		superseded     *PaymentChange
	)
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payments := p.payments.WithTx(tx)
		prev, err := cancelPending(ctx, payments, req.ID, s.UserID, dbm.EventSourceAdmin, map[string]interface{}{"reason": "superseded"})
		if err != nil {
			return err
		}
		superseded = prev
		if err := payments.Create(ctx, payment); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return utils.NewConflictError("payment %s already exists", txnRef)
			}
			return utils.NewDatabaseError(err)
		}
		actor := s.UserID
		if err := payments.AppendEvent(ctx, &dbm.PaymentEvent{
			PaymentID: payment.ID,
			ToStatus:  status,
			Source:    dbm.EventSourceAdmin,
			ActorID:   &actor,
			Payload:   map[string]interface{}{"method": string(method)},
		}); err != nil {
			return utils.NewDatabaseError(err)
		}
		changes, err := p.workflow.AdvanceForPayment(ctx, tx, req.ID, status.IsSuccess())
		if err != nil {
			return err
		}
		requestChanges = changes
		return nil
	})
	if err != nil {
		p.discardUploads(ctx, proofKey)
		return nil, err
	}

	p.log.Info("manual payment recorded",
		zap.String("reference_number", req.ReferenceNumber),
		zap.String("transaction_reference", txnRef),
		zap.String("status", string(status)),
		zap.Uint("admin_id", s.UserID))
	if superseded != nil {
		p.notifier.PaymentChanged(ctx, superseded)
		cancelCheckout(ctx, p.gw, p.cfg.GatewayTimeout, p.log, superseded.Payment)
	}
	p.notifier.PaymentChanged(ctx, &PaymentChange{Payment: payment, To: status, Source: dbm.EventSourceAdmin})
	p.notifier.RequestChanged(ctx, requestChanges...)
	return toPaymentResponse(payment, p.store), nil
}

func (p *paymentService) discardUploads(ctx context.Context, keys ...string) {
	var live []string
	for _, k := range keys {
		if k != "" {
			live = append(live, k)
		}
	}
	if len(live) == 0 {
		return
	}
	if err := p.store.Delete(context.WithoutCancel(ctx), live); err != nil {
		p.log.Warn("remove orphaned uploads", zap.Strings("keys", live), zap.Error(err))
	}
}

var adminTargets = map[dbm.PaymentStatus]bool{
	dbm.PaymentVerified:  true,
	dbm.PaymentRefunded:  true,
	dbm.PaymentWaived:    true,
	dbm.PaymentVoided:    true,
	dbm.PaymentSucceeded: true,
}

func (p *paymentService) UpdatePaymentStatus(ctx context.Context, s utils.Session, paymentID uint, status, notes string) (*resp.PaymentResponse, error) {
	if err := s.RequireAdmin(); err != nil {
		return nil, err
	}
	target := dbm.PaymentStatus(strings.ToUpper(strings.TrimSpace(status)))
	if !adminTargets[target] {
		return nil, utils.NewValidationError(map[string]string{"status": "must be VERIFIED, REFUNDED, WAIVED, VOIDED or SUCCEEDED"})
	}

	payment, err := p.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if payment == nil {
		return nil, utils.NewNotFoundError("payment %d not found", paymentID)
	}
	if target == dbm.PaymentSucceeded && !payment.PaymentMethod.IsManual() {
		return nil, utils.NewConflictError("gateway payment %s settles through reconciliation only", payment.TransactionReference)
	}

	unlock, err := p.lock(ctx, payment.CertificateRequestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		paymentChange  *PaymentChange
		requestChanges []*RequestChange
	)
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payments := p.payments.WithTx(tx)
		current, err := payments.FindByID(ctx, paymentID)
		if err != nil {
			return utils.NewDatabaseError(err)
		}
		if current == nil {
			return utils.NewNotFoundError("payment %d not found", paymentID)
		}
		from := current.PaymentStatus
		if !from.CanTransitionTo(target) {
			return utils.NewConflictError("cannot move payment %s from %s to %s", current.TransactionReference, from, target)
		}

		fields := map[string]interface{}{
			"payment_status": target,
			"is_active":      false,
		}
		if n := strings.TrimSpace(notes); n != "" {
			fields["notes"] = n
			current.Notes = n
		}
		if target.IsSuccess() && current.PaymentDate == nil {
			paidAt := p.now().Unix()
			fields["payment_date"] = paidAt
			current.PaymentDate = &paidAt
		}
		ok, err := payments.UpdateStatus(ctx, current.ID, from, fields)
		if err != nil {
			return utils.NewDatabaseError(err)
		}
		if !ok {
			return utils.NewConflictError("payment %s was modified by another operation", current.TransactionReference)
		}
		actor := s.UserID
		if err := payments.AppendEvent(ctx, &dbm.PaymentEvent{
			PaymentID:  current.ID,
			FromStatus: from,
			ToStatus:   target,
			Source:     dbm.EventSourceAdmin,
			ActorID:    &actor,
		}); err != nil {
			return utils.NewDatabaseError(err)
		}
		current.PaymentStatus = target
		current.IsActive = false
		paymentChange = &PaymentChange{Payment: current, From: from, To: target, Source: dbm.EventSourceAdmin}

		if target.IsSuccess() && !from.IsSuccess() {
			changes, err := p.workflow.AdvanceForPayment(ctx, tx, current.CertificateRequestID, true)
			if err != nil {
				return err
			}
			requestChanges = changes
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.log.Info("payment status corrected",
		zap.String("transaction_reference", paymentChange.Payment.TransactionReference),
		zap.String("from", string(paymentChange.From)),
		zap.String("to", string(target)),
		zap.Uint("admin_id", s.UserID))
	p.notifier.PaymentChanged(ctx, paymentChange)
	p.notifier.RequestChanged(ctx, requestChanges...)
	return toPaymentResponse(paymentChange.Payment, p.store), nil
}

func (p *paymentService) ListForRequest(ctx context.Context, s utils.Session, requestID uint) ([]resp.PaymentResponse, error) {
	if _, err := p.loadRequest(ctx, s, requestID); err != nil {
		return nil, err
	}
	rows, err := p.payments.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	out := make([]resp.PaymentResponse, 0, len(rows))
	for i := range rows {
		out = append(out, *toPaymentResponse(&rows[i], p.store))
	}
	return out, nil
}

func (p *paymentService) ListAll(ctx context.Context, s utils.Session, q request_models.ListPaymentsQuery) (*resp.PagedResponse[resp.PaymentResponse], error) {
	if err := s.RequireAdmin(); err != nil {
		return nil, err
	}
	filter, err := PaymentFilterFromQuery(q)
	if err != nil {
		return nil, err
	}
	page, size, err := utils.NormalizePage(filter.Page, filter.PageSize)
	if err != nil {
		return nil, utils.NewValidationError(map[string]string{"page": err.Error()})
	}
	filter.Page, filter.PageSize = page, size

	rows, total, err := p.payments.List(ctx, filter)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	items := make([]resp.PaymentResponse, 0, len(rows))
	for i := range rows {
		items = append(items, *toPaymentResponse(&rows[i], p.store))
	}
	return &resp.PagedResponse[resp.PaymentResponse]{Items: items, Page: page, PageSize: size, Total: total}, nil
}

// PaymentFilterFromQuery parses admin list filters. Dates are YYYY-MM-DD in
// Manila time; To is inclusive of the whole day.
func PaymentFilterFromQuery(q request_models.ListPaymentsQuery) (repositories.PaymentFilter, error) {
	filter := repositories.PaymentFilter{Page: q.Page, PageSize: q.PageSize}
	fields := map[string]string{}
	if q.Status != "" {
		st := dbm.PaymentStatus(strings.ToUpper(q.Status))
		if !st.Valid() {
			fields["status"] = "unknown payment status"
		}
		filter.Status = st
	}
	if q.PaymentMethod != "" {
		m := dbm.PaymentMethod(strings.ToUpper(q.PaymentMethod))
		if m != dbm.PaymentOnline && !m.IsManual() {
			fields["payment_method"] = "unknown payment method"
		}
		filter.PaymentMethod = m
	}
	if q.From != "" {
		t, err := time.ParseInLocation("2006-01-02", q.From, utils.ManilaLocation())
		if err != nil {
			fields["from"] = "must be YYYY-MM-DD"
		} else {
			filter.From = t.Unix()
		}
	}
	if q.To != "" {
		t, err := time.ParseInLocation("2006-01-02", q.To, utils.ManilaLocation())
		if err != nil {
			fields["to"] = "must be YYYY-MM-DD"
		} else {
			filter.To = t.AddDate(0, 0, 1).Unix() - 1
		}
	}
	if len(fields) > 0 {
		return filter, utils.NewValidationError(fields)
	}
	return filter, nil
}
