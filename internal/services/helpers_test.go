package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"barangay/internal/config"
	"barangay/internal/gateway"
	"barangay/internal/infra"
	dbm "barangay/internal/models/db_models"
	"barangay/internal/repositories"
	"barangay/internal/storage"
	mem "barangay/pkg/memcache"
	"barangay/pkg/utils"
)

var adminSession = utils.Session{UserID: 9000, Role: utils.RoleAdmin, Email: "admin@barangay.test"}

type fakeGateway struct {
	mu        sync.Mutex
	seq       int
	statuses  map[string]string
	created   []gateway.CheckoutRequest
	cancelled []string
	createErr error
	cancelErr error
	// onCreate runs after a checkout is opened, outside the lock.
	onCreate func()
	// cancelDeadlines records whether each Cancel call carried a deadline.
	cancelDeadlines []bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: map[string]string{}}
}

func (f *fakeGateway) Name() string { return "fake" }

func (f *fakeGateway) CreateCheckout(_ context.Context, req gateway.CheckoutRequest) (*gateway.Checkout, error) {
	f.mu.Lock()
	if f.createErr != nil {
		f.mu.Unlock()
		return nil, f.createErr
	}
	f.seq++
	id := fmt.Sprintf("chk-%d", f.seq)
	f.created = append(f.created, req)
	hook := f.onCreate
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &gateway.Checkout{CheckoutID: id, RedirectURL: "https://pay.test/checkout/" + id}, nil
}

func (f *fakeGateway) Cancel(ctx context.Context, checkoutID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, hasDeadline := ctx.Deadline()
	f.cancelled = append(f.cancelled, checkoutID)
	f.cancelDeadlines = append(f.cancelDeadlines, hasDeadline)
	return f.cancelErr
}

func (f *fakeGateway) cancelledIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelled...)
}

func (f *fakeGateway) GetStatus(_ context.Context, checkoutID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[checkoutID], nil
}

func (f *fakeGateway) ParseWebhook(_ context.Context, body []byte, _ http.Header) (*gateway.WebhookEvent, error) {
	var payload struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.ID == "" {
		return nil, errors.New("bad payload")
	}
	return &gateway.WebhookEvent{CheckoutID: payload.ID, Status: payload.Status}, nil
}

func (f *fakeGateway) setStatus(checkoutID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[checkoutID] = status
}

type recordingPublisher struct {
	mu       sync.Mutex
	requests []RequestStatusEvent
	payments []PaymentStatusEvent
}

func (r *recordingPublisher) PublishRequestStatus(_ context.Context, ev RequestStatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, ev)
}

func (r *recordingPublisher) PublishPaymentStatus(_ context.Context, ev PaymentStatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments = append(r.payments, ev)
}

type harness struct {
	db        *gorm.DB
	gw        *fakeGateway
	store     *storage.LocalStorage
	publisher *recordingPublisher
	requests  CertificateRequestService
	payments  PaymentService
	residents ResidentService
}

func testFees() config.FeeConfig {
	return config.FeeConfig{
		ProcessingFee: decimal.RequireFromString("280.00"),
		ServiceCharge: decimal.RequireFromString("20.00"),
		ShippingFee:   decimal.RequireFromString("100.00"),
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := infra.OpenDialector(sqlite.Open(filepath.Join(t.TempDir(), "barangay.db")), zap.NewNop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := infra.Migrations(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := openTestDB(t)
	store, err := storage.NewLocalStorage(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}

	log := zap.NewNop()
	publisher := &recordingPublisher{}
	notifier := NewNotifier(publisher, NewLogMailService(log), log)
	t.Cleanup(notifier.Wait)

	gw := newFakeGateway()
	requestRepo := repositories.NewCertificateRequestRepository(db)
	residentRepo := repositories.NewResidentRepository(db)
	paymentRepo := repositories.NewPaymentRepository(db)

	locker := mem.NewLocalLocker(mem.DefaultLockTTL)
	requests := NewCertificateRequestService(db, requestRepo, residentRepo, paymentRepo, store, gw, locker, notifier, RequestConfig{
		GatewayTimeout: time.Second,
		LockWait:       time.Second,
	}, log)
	payments := NewPaymentService(db, requestRepo, paymentRepo, requests, gw, store, locker, notifier, PaymentConfig{
		Fees:           testFees(),
		BaseURL:        "https://portal.test",
		GatewayTimeout: time.Second,
		LockWait:       time.Second,
	}, log)
	residents := NewResidentService(db, residentRepo, requestRepo, paymentRepo, store, log)

	return &harness{
		db:        db,
		gw:        gw,
		store:     store,
		publisher: publisher,
		requests:  requests,
		payments:  payments,
		residents: residents,
	}
}

// seedResident creates an account with its resident profile and returns the
// resident and the account's session.
func seedResident(t *testing.T, h *harness, email string, withAddress bool) (*dbm.Resident, utils.Session) {
	t.Helper()
	account := &dbm.Account{Name: "Juan Dela Cruz", Email: email, PasswordHash: "x", Role: utils.RoleUser}
	if err := h.db.Create(account).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
	resident := &dbm.Resident{
		AccountID:   &account.ID,
		FirstName:   "Juan",
		MiddleName:  "Santos",
		LastName:    "Dela Cruz",
		Email:       email,
		PhoneNumber: "09171234567",
	}
	if withAddress {
		resident.Address = &dbm.Address{
			HouseNumber: "12",
			Street:      "Rizal St",
			Purok:       "Purok 3",
			Barangay:    "San Isidro",
			City:        "Quezon City",
			Province:    "Metro Manila",
			ZipCode:     "1100",
		}
	}
	if err := h.db.Create(resident).Error; err != nil {
		t.Fatalf("seed resident: %v", err)
	}
	return resident, utils.Session{UserID: account.ID, Role: utils.RoleUser, Email: email}
}

func clearanceInput(residentID uint) CreateRequestInput {
	return CreateRequestInput{
		ResidentID:      residentID,
		CertificateType: string(dbm.BarangayClearance),
		Purpose:         "Employment",
		AdditionalInfo:  map[string]any{"civil_status": "SINGLE", "citizenship": "Filipino"},
	}
}

// approvedRequest files a clearance request and approves it for payment.
func approvedRequest(t *testing.T, h *harness, withAddress bool) (uint, utils.Session) {
	t.Helper()
	resident, session := seedResident(t, h, fmt.Sprintf("resident%d@barangay.test", time.Now().UnixNano()), withAddress)
	created, err := h.requests.CreateRequest(context.Background(), session, clearanceInput(resident.ID))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := h.requests.ApproveForPayment(context.Background(), adminSession, created.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	return created.ID, session
}

func loadRequest(t *testing.T, h *harness, id uint) *dbm.CertificateRequest {
	t.Helper()
	var req dbm.CertificateRequest
	if err := h.db.First(&req, id).Error; err != nil {
		t.Fatalf("load request %d: %v", id, err)
	}
	return &req
}

func loadPayment(t *testing.T, h *harness, txn string) *dbm.Payment {
	t.Helper()
	var p dbm.Payment
	if err := h.db.Where("transaction_reference = ?", txn).First(&p).Error; err != nil {
		t.Fatalf("load payment %s: %v", txn, err)
	}
	return &p
}

func countRows(t *testing.T, h *harness, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := h.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
