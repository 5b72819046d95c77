package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"barangay/internal/gateway"
	dbm "barangay/internal/models/db_models"
	"barangay/internal/storage"
	"barangay/pkg/utils"
)

func TestInitiatePickupThenSettle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, session := approvedRequest(t, h, true)

	init, err := h.payments.Initiate(ctx, session, id, "pickup")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if init.Amount != "300.00" {
		t.Errorf("amount = %s, want 300.00", init.Amount)
	}
	if !strings.HasPrefix(init.TransactionID, utils.GatewayTxnPrefix+"-") {
		t.Errorf("transaction id %q lacks gateway prefix", init.TransactionID)
	}
	if init.CheckoutURL != "https://pay.test/checkout/chk-1" {
		t.Errorf("checkout url = %s", init.CheckoutURL)
	}

	checkout := h.gw.created[0]
	if len(checkout.Items) != 2 || checkout.Shipping {
		t.Errorf("pickup checkout items = %d shipping = %v", len(checkout.Items), checkout.Shipping)
	}
	if !strings.HasPrefix(checkout.RedirectURLs.Success, "https://portal.test/payments/return/success?") {
		t.Errorf("success url = %s", checkout.RedirectURLs.Success)
	}

	if got := loadRequest(t, h, id).Status; got != dbm.RequestAwaitingPayment {
		t.Errorf("request moved to %s before settlement", got)
	}

	h.gw.setStatus("chk-1", "PAYMENT_SUCCESS")
	status, err := h.payments.ReconcileStatus(ctx, session, id, init.TransactionID)
	if err != nil {
		t.Fatalf("ReconcileStatus: %v", err)
	}
	if status.Status != string(dbm.PaymentSucceeded) || status.RequestStatus != string(dbm.RequestProcessing) {
		t.Errorf("status = %+v", status)
	}

	p := loadPayment(t, h, init.TransactionID)
	if p.IsActive || p.PaymentDate == nil {
		t.Errorf("settled payment active=%v date=%v", p.IsActive, p.PaymentDate)
	}
	if got := p.Metadata.Data().Gateway.LastGatewayStatus; got != "PAYMENT_SUCCESS" {
		t.Errorf("last gateway status = %q", got)
	}
	if got := loadRequest(t, h, id).Status; got != dbm.RequestProcessing {
		t.Errorf("request status = %s, want PROCESSING", got)
	}

	events := countRows(t, h, &dbm.PaymentEvent{}, "payment_id = ?", p.ID)
	if _, err := h.payments.ReconcileStatus(ctx, session, id, init.TransactionID); err != nil {
		t.Fatalf("second ReconcileStatus: %v", err)
	}
	if again := countRows(t, h, &dbm.PaymentEvent{}, "payment_id = ?", p.ID); again != events {
		t.Errorf("repeat reconcile appended events: %d -> %d", events, again)
	}
}

func TestInitiateIsIdempotentWhilePending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, session := approvedRequest(t, h, true)

	first, err := h.payments.Initiate(ctx, session, id, "delivery")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if first.Amount != "400.00" {
		t.Errorf("delivery amount = %s, want 400.00", first.Amount)
	}
	if n := len(h.gw.created[0].Items); n != 3 {
		t.Errorf("delivery checkout has %d items, want 3", n)
	}
	second, err := h.payments.Initiate(ctx, session, id, "delivery")
	if err != nil {
		t.Fatalf("second Initiate: %v", err)
	}
	if second.TransactionID != first.TransactionID || second.CheckoutURL != first.CheckoutURL {
		t.Errorf("second initiate = %+v, want %+v", second, first)
	}
	if len(h.gw.created) != 1 {
		t.Errorf("gateway checkouts = %d, want 1", len(h.gw.created))
	}
	if n := countRows(t, h, &dbm.Payment{}, "certificate_request_id = ? AND is_active = ?", id, true); n != 1 {
		t.Errorf("active payments = %d, want 1", n)
	}

	req := loadRequest(t, h, id)
	if req.DeliveryMethod == nil || *req.DeliveryMethod != dbm.DeliveryShipping {
		t.Errorf("delivery method = %v", req.DeliveryMethod)
	}
}

func TestInitiateRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resident, session := seedResident(t, h, "pending@barangay.test", true)
	pending, err := h.requests.CreateRequest(ctx, session, clearanceInput(resident.ID))
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	noAddress, noAddressSession := approvedRequest(t, h, false)
	approved, approvedSession := approvedRequest(t, h, true)
	_, stranger := seedResident(t, h, "stranger@barangay.test", true)

	tests := []struct {
		name    string
		session utils.Session
		id      uint
		method  string
		want    error
	}{
		{"request still pending", session, pending.ID, "pickup", utils.ErrConflict},
		{"no address on file", noAddressSession, noAddress, "pickup", utils.ErrPrecondition},
		{"bad delivery method", approvedSession, approved, "drone", utils.ErrValidation},
		{"someone else's request", stranger, approved, "pickup", utils.ErrForbidden},
		{"unknown request", approvedSession, 99999, "pickup", utils.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.payments.Initiate(ctx, tt.session, tt.id, tt.method)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if len(h.gw.created) != 0 {
		t.Errorf("gateway called %d times for rejected initiations", len(h.gw.created))
	}
	if n := countRows(t, h, &dbm.Payment{}, ""); n != 0 {
		t.Errorf("rejected initiations wrote %d payments", n)
	}
}

func TestInitiateGatewayFailureWritesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, session := approvedRequest(t, h, true)
	h.gw.createErr = &gateway.Error{Op: "create checkout", Err: errors.New("connection refused")}

	if _, err := h.payments.Initiate(ctx, session, id, "pickup"); !errors.Is(err, utils.ErrGateway) {
		t.Fatalf("err = %v, want gateway error", err)
	}
	if n := countRows(t, h, &dbm.Payment{}, ""); n != 0 {
		t.Errorf("payments = %d, want 0", n)
	}
	if got := loadRequest(t, h, id).Status; got != dbm.RequestAwaitingPayment {
		t.Errorf("request status = %s", got)
	}
}

func TestReconcilePendingMakesNoWrites(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, session := approvedRequest(t, h, true)
	init, err := h.payments.Initiate(ctx, session, id, "pickup")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	before := loadPayment(t, h, init.TransactionID)
	events := countRows(t, h, &dbm.PaymentEvent{}, "payment_id = ?", before.ID)

	out, err := h.payments.ReconcileStatus(ctx, session, id, init.TransactionID)
	if err != nil {
		t.Fatalf("ReconcileStatus: %v", err)
	}
	if out.Status != string(dbm.PaymentPending) {
		t.Errorf("status = %s", out.Status)
	}
	after := loadPayment(t, h, init.TransactionID)
	if after.UpdatedAt != before.UpdatedAt || !after.IsActive {
		t.Errorf("pending reconcile touched the row: %+v", after)
	}
	if n := countRows(t, h, &dbm.PaymentEvent{}, "payment_id = ?", before.ID); n != events {
		t.Errorf("events %d -> %d", events, n)
	}
}

func TestReconcileFailureKeepsRequestAwaitingPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, session := approvedRequest(t, h, true)
	init, err := h.payments.Initiate(ctx, session, id, "pickup")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	h.gw.setStatus("chk-1", "PAYMENT_FAILED")
	out, err := h.payments.ReconcileStatus(ctx, session, id, init.TransactionID)
	if err != nil {
		t.Fatalf("ReconcileStatus: %v", err)
	}
	if out.Status != string(dbm.PaymentRejected) || out.RequestStatus != string(dbm.RequestAwaitingPayment) {
		t.Errorf("status = %+v", out)
	}
	if ReturnOutcome(dbm.PaymentStatus(out.Status)) != OutcomeFailed {
		t.Errorf("rejected payment should return to the failed page")
	}

	retry, err := h.payments.Initiate(ctx, session, id, "pickup")
	if err != nil {
		t.Fatalf("retry Initiate: %v", err)
	}
	if retry.TransactionID == init.TransactionID {
		t.Error("retry reused the failed transaction")
	}
}

func TestCancelPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, session := approvedRequest(t, h, true)
	init, err := h.payments.Initiate(ctx, session, id, "pickup")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	h.gw.cancelErr = errors.New("gateway unavailable")

	out, err := h.payments.Cancel(ctx, session, id, init.TransactionID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !out.Success || out.Status != string(dbm.PaymentCancelled) {
		t.Errorf("cancel = %+v", out)
	}
	p := loadPayment(t, h, init.TransactionID)
	if p.PaymentStatus != dbm.PaymentCancelled || p.IsActive {
		t.Errorf("payment = %s active=%v", p.PaymentStatus, p.IsActive)
	}
	if got := loadRequest(t, h, id).Status; got != dbm.RequestAwaitingPayment {
		t.Errorf("request status = %s", got)
	}

	h.gw.setStatus("chk-1", "PAYMENT_SUCCESS")
	status, err := h.payments.ReconcileStatus(ctx, session, id, init.TransactionID)
	if err != nil {
		t.Fatalf("ReconcileStatus: %v", err)
	}
	if status.Status != string(dbm.PaymentCancelled) {
		t.Errorf("late gateway success overrode cancellation: %s", status.Status)
	}
	if got := loadRequest(t, h, id).Status; got != dbm.RequestAwaitingPayment {
		t.Errorf("request advanced to %s on a cancelled payment", got)
	}
}

func TestCancelSettledPaymentConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, session := approvedRequest(t, h, true)
	init, err := h.payments.Initiate(ctx, session, id, "pickup")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	h.gw.setStatus("chk-1", "PAYMENT_SUCCESS")
	if _, err := h.payments.ReconcileStatus(ctx, session, id, init.TransactionID); err != nil {
		t.Fatalf("ReconcileStatus: %v", err)
	}

	_, err = h.payments.Cancel(ctx, session, id, init.TransactionID)
	if !errors.Is(err, utils.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if !strings.Contains(err.Error(), "SUCCEEDED") {
		t.Errorf("message %q should name the current status", err.Error())
	}
	if _, err := h.payments.Cancel(ctx, session, id, "TXN-00000000-ZZZZZ"); !errors.Is(err, utils.ErrNotFound) {
		t.Errorf("unknown transaction: err = %v, want not found", err)
	}
}

func TestWebhookReconciles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, session := approvedRequest(t, h, true)
	init, err := h.payments.Initiate(ctx, session, id, "pickup")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	h.gw.setStatus("chk-1", "PAYMENT_SUCCESS")
	if err := h.payments.HandleWebhook(ctx, []byte(`{"id":"chk-1","status":"PAYMENT_SUCCESS"}`), nil); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	p := loadPayment(t, h, init.TransactionID)
	if p.PaymentStatus != dbm.PaymentSucceeded {
		t.Errorf("payment status = %s", p.PaymentStatus)
	}
	var ev dbm.PaymentEvent
	if err := h.db.Where("payment_id = ? AND to_status = ?", p.ID, dbm.PaymentSucceeded).First(&ev).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if ev.Source != dbm.EventSourceWebhook {
		t.Errorf("event source = %s", ev.Source)
	}

	if err := h.payments.HandleWebhook(ctx, []byte(`not json`), nil); !errors.Is(err, utils.ErrValidation) {
		t.Errorf("garbage body: err = %v, want validation", err)
	}
	if err := h.payments.HandleWebhook(ctx, []byte(`{"id":"chk-404"}`), nil); !errors.Is(err, utils.ErrNotFound) {
		t.Errorf("unknown checkout: err = %v, want not found", err)
	}
}

func TestWebhookClaimIsNotTrusted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, session := approvedRequest(t, h, true)
	init, err := h.payments.Initiate(ctx, session, id, "pickup")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	// The gateway itself still reports the checkout as in flight.
	if err := h.payments.HandleWebhook(ctx, []byte(`{"id":"chk-1","status":"PAYMENT_SUCCESS"}`), nil); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if got := loadPayment(t, h, init.TransactionID).PaymentStatus; got != dbm.PaymentPending {
		t.Errorf("payment status = %s, want PENDING", got)
	}
}

func TestCreateManualPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	t.Run("settled cash payment advances the request", func(t *testing.T) {
		id, _ := approvedRequest(t, h, true)
		out, err := h.payments.CreateManualPayment(ctx, adminSession, id, ManualPaymentInput{
			Amount:        "300",
			PaymentMethod: "cash",
			PaymentStatus: "SUCCEEDED",
			ReceiptNumber: "OR-1001",
			Proof:         &storage.File{Name: "receipt.jpg", Reader: bytes.NewReader([]byte("jpg"))},
		})
		if err != nil {
			t.Fatalf("CreateManualPayment: %v", err)
		}
		if out.Amount != "300.00" || out.IsActive || out.PaymentDate == "" {
			t.Errorf("payment = %+v", out)
		}
		if !strings.HasPrefix(out.TransactionReference, utils.ManualTxnPrefix+"-") {
			t.Errorf("reference = %s", out.TransactionReference)
		}
		if out.ProofOfPaymentURL == "" {
			t.Error("proof of payment url missing")
		}
		if got := loadRequest(t, h, id).Status; got != dbm.RequestProcessing {
			t.Errorf("request status = %s, want PROCESSING", got)
		}
	})

	t.Run("pending bank transfer stays active", func(t *testing.T) {
		id, _ := approvedRequest(t, h, true)
		out, err := h.payments.CreateManualPayment(ctx, adminSession, id, ManualPaymentInput{
			Amount:        "300.00",
			PaymentMethod: "BANK_TRANSFER",
			PaymentStatus: "PENDING",
		})
		if err != nil {
			t.Fatalf("CreateManualPayment: %v", err)
		}
		if !out.IsActive {
			t.Error("pending manual payment should be active")
		}
		if got := loadRequest(t, h, id).Status; got != dbm.RequestAwaitingPayment {
			t.Errorf("request status = %s, want AWAITING_PAYMENT", got)
		}
	})

	t.Run("waiver on a pending request", func(t *testing.T) {
		resident, session := seedResident(t, h, "waiver@barangay.test", true)
		created, err := h.requests.CreateRequest(ctx, session, clearanceInput(resident.ID))
		if err != nil {
			t.Fatalf("CreateRequest: %v", err)
		}
		if _, err := h.payments.CreateManualPayment(ctx, adminSession, created.ID, ManualPaymentInput{
			Amount:        "0",
			PaymentMethod: "CASH",
			PaymentStatus: "WAIVED",
		}); err != nil {
			t.Fatalf("CreateManualPayment: %v", err)
		}
		if got := loadRequest(t, h, created.ID).Status; got != dbm.RequestProcessing {
			t.Errorf("request status = %s, want PROCESSING", got)
		}
	})

	invalid := []struct {
		name  string
		in    ManualPaymentInput
		field string
	}{
		{"negative amount", ManualPaymentInput{Amount: "-1", PaymentMethod: "CASH", PaymentStatus: "SUCCEEDED"}, "amount"},
		{"three decimals", ManualPaymentInput{Amount: "10.123", PaymentMethod: "CASH", PaymentStatus: "SUCCEEDED"}, "amount"},
		{"zero without waiver", ManualPaymentInput{Amount: "0", PaymentMethod: "CASH", PaymentStatus: "SUCCEEDED"}, "amount"},
		{"online is not manual", ManualPaymentInput{Amount: "300", PaymentMethod: "ONLINE", PaymentStatus: "SUCCEEDED"}, "payment_method"},
		{"refund is not a recording status", ManualPaymentInput{Amount: "300", PaymentMethod: "CASH", PaymentStatus: "REFUNDED"}, "payment_status"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.payments.CreateManualPayment(ctx, adminSession, 1, tt.in)
			if !errors.Is(err, utils.ErrValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
			if _, ok := utils.FieldErrors(err)[tt.field]; !ok {
				t.Errorf("field errors %v missing %q", utils.FieldErrors(err), tt.field)
			}
		})
	}

	t.Run("residents cannot record payments", func(t *testing.T) {
		id, session := approvedRequest(t, h, true)
		_, err := h.payments.CreateManualPayment(ctx, session, id, ManualPaymentInput{Amount: "300", PaymentMethod: "CASH", PaymentStatus: "SUCCEEDED"})
		if !errors.Is(err, utils.ErrForbidden) {
			t.Fatalf("err = %v, want forbidden", err)
		}
	})
}

func TestManualPaymentReplacesPendingCheckout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, session := approvedRequest(t, h, true)
	init, err := h.payments.Initiate(ctx, session, id, "pickup")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if _, err := h.payments.CreateManualPayment(ctx, adminSession, id, ManualPaymentInput{
		Amount: "300", PaymentMethod: "CASH", PaymentStatus: "PENDING",
	}); err != nil {
		t.Fatalf("CreateManualPayment: %v", err)
	}
	if loadPayment(t, h, init.TransactionID).IsActive {
		t.Error("gateway payment still active after manual payment was recorded")
	}
	if n := countRows(t, h, &dbm.Payment{}, "certificate_request_id = ? AND is_active = ?", id, true); n != 1 {
		t.Errorf("active payments = %d, want 1", n)
	}
}

func TestUpdatePaymentStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id, session := approvedRequest(t, h, true)
	manual, err := h.payments.CreateManualPayment(ctx, adminSession, id, ManualPaymentInput{
		Amount: "300", PaymentMethod: "E_WALLET", PaymentStatus: "PENDING",
	})
	if err != nil {
		t.Fatalf("CreateManualPayment: %v", err)
	}

	if _, err := h.payments.UpdatePaymentStatus(ctx, session, manual.ID, "VERIFIED", ""); !errors.Is(err, utils.ErrForbidden) {
		t.Errorf("resident update: err = %v, want forbidden", err)
	}
	if _, err := h.payments.UpdatePaymentStatus(ctx, adminSession, manual.ID, "PENDING", ""); !errors.Is(err, utils.ErrValidation) {
		t.Errorf("PENDING target: err = %v, want validation", err)
	}

	verified, err := h.payments.UpdatePaymentStatus(ctx, adminSession, manual.ID, "verified", "checked against statement")
	if err != nil {
		t.Fatalf("UpdatePaymentStatus: %v", err)
	}
	if verified.PaymentStatus != string(dbm.PaymentVerified) || verified.Notes != "checked against statement" {
		t.Errorf("payment = %+v", verified)
	}
	if got := loadRequest(t, h, id).Status; got != dbm.RequestProcessing {
		t.Errorf("request status = %s, want PROCESSING", got)
	}

	if _, err := h.payments.UpdatePaymentStatus(ctx, adminSession, manual.ID, "WAIVED", ""); !errors.Is(err, utils.ErrConflict) {
		t.Errorf("VERIFIED to WAIVED: err = %v, want conflict", err)
	}
	refunded, err := h.payments.UpdatePaymentStatus(ctx, adminSession, manual.ID, "REFUNDED", "")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refunded.PaymentStatus != string(dbm.PaymentRefunded) {
		t.Errorf("status = %s", refunded.PaymentStatus)
	}
	if got := loadRequest(t, h, id).Status; got != dbm.RequestProcessing {
		t.Errorf("refund changed request status to %s", got)
	}

	gatewayID, gatewaySession := approvedRequest(t, h, true)
	init, err := h.payments.Initiate(ctx, gatewaySession, gatewayID, "pickup")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	p := loadPayment(t, h, init.TransactionID)
	_, err = h.payments.UpdatePaymentStatus(ctx, adminSession, p.ID, "SUCCEEDED", "")
	if !errors.Is(err, utils.ErrConflict) {
		t.Errorf("forcing gateway success: err = %v, want conflict", err)
	}
	if _, err := h.payments.UpdatePaymentStatus(ctx, adminSession, 424242, "VERIFIED", ""); !errors.Is(err, utils.ErrNotFound) {
		t.Errorf("unknown payment: err = %v, want not found", err)
	}
}

func TestReturnURLAndOutcome(t *testing.T) {
	got := ReturnURL("https://portal.test/", OutcomeCancelled, 12, "TXN-20240101-ABCDE")
	want := "https://portal.test/payments/return/cancelled?requestId=12&transactionId=TXN-20240101-ABCDE"
	if got != want {
		t.Errorf("ReturnURL = %s, want %s", got, want)
	}

	tests := []struct {
		status dbm.PaymentStatus
		want   string
	}{
		{dbm.PaymentSucceeded, OutcomeSuccess},
		{dbm.PaymentWaived, OutcomeSuccess},
		{dbm.PaymentCancelled, OutcomeCancelled},
		{dbm.PaymentExpired, OutcomeFailed},
		{dbm.PaymentRejected, OutcomeFailed},
		{dbm.PaymentPending, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := ReturnOutcome(tt.status); got != tt.want {
				t.Errorf("ReturnOutcome(%s) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestSupersededCheckoutCannotSettle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, session := approvedRequest(t, h, true)
	init, err := h.payments.Initiate(ctx, session, id, "pickup")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if _, err := h.payments.CreateManualPayment(ctx, adminSession, id, ManualPaymentInput{
		Amount: "300", PaymentMethod: "CASH", PaymentStatus: "SUCCEEDED", ReceiptNumber: "OR-2001",
	}); err != nil {
		t.Fatalf("CreateManualPayment: %v", err)
	}

	old := loadPayment(t, h, init.TransactionID)
	if old.PaymentStatus != dbm.PaymentCancelled || old.IsActive {
		t.Fatalf("superseded payment = %s active=%v, want CANCELLED inactive", old.PaymentStatus, old.IsActive)
	}
	if got := h.gw.cancelledIDs(); len(got) != 1 || got[0] != *old.GatewayReference {
		t.Errorf("gateway cancels = %v, want [%s]", got, *old.GatewayReference)
	}

	// the buyer completes the abandoned checkout anyway
	h.gw.setStatus(*old.GatewayReference, "PAYMENT_SUCCESS")
	out, err := h.payments.ReconcileStatus(ctx, session, id, init.TransactionID)
	if err != nil {
		t.Fatalf("ReconcileStatus: %v", err)
	}
	if out.Status != string(dbm.PaymentCancelled) {
		t.Errorf("reconciled status = %s, want CANCELLED", out.Status)
	}
	if n := countRows(t, h, &dbm.Payment{}, "certificate_request_id = ? AND payment_status = ?", id, dbm.PaymentSucceeded); n != 1 {
		t.Errorf("succeeded payments = %d, want 1", n)
	}
}

func TestInitiateRechecksRequestBeforeWriting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, session := approvedRequest(t, h, true)

	h.gw.onCreate = func() {
		h.db.Model(&dbm.CertificateRequest{}).Where("id = ?", id).Update("status", dbm.RequestRejected)
	}
	_, err := h.payments.Initiate(ctx, session, id, "pickup")
	if !errors.Is(err, utils.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if n := countRows(t, h, &dbm.Payment{}, "certificate_request_id = ?", id); n != 0 {
		t.Errorf("payments written = %d, want 0", n)
	}
	if got := h.gw.cancelledIDs(); len(got) != 1 || got[0] != "chk-1" {
		t.Errorf("gateway cancels = %v, want [chk-1]", got)
	}
}

func TestRejectWaitsForInFlightInitiate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, session := approvedRequest(t, h, true)

	rejected := make(chan error, 1)
	h.gw.onCreate = func() {
		go func() {
			_, err := h.requests.Reject(ctx, adminSession, id, "duplicate request")
			rejected <- err
		}()
		select {
		case err := <-rejected:
			t.Errorf("Reject finished while the checkout was being opened: %v", err)
			rejected <- err
		case <-time.After(50 * time.Millisecond):
		}
	}

	init, err := h.payments.Initiate(ctx, session, id, "pickup")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if err := <-rejected; err != nil {
		t.Fatalf("Reject: %v", err)
	}

	if got := loadRequest(t, h, id).Status; got != dbm.RequestRejected {
		t.Errorf("request status = %s, want REJECTED", got)
	}
	p := loadPayment(t, h, init.TransactionID)
	if p.PaymentStatus != dbm.PaymentCancelled || p.IsActive {
		t.Errorf("payment = %s active=%v, want CANCELLED inactive", p.PaymentStatus, p.IsActive)
	}
	if got := h.gw.cancelledIDs(); len(got) != 1 || got[0] != "chk-1" {
		t.Errorf("gateway cancels = %v, want [chk-1]", got)
	}
}
