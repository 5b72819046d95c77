package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	dbm "barangay/internal/models/db_models"
	"barangay/internal/models/request_models"
	"barangay/internal/storage"
	"barangay/pkg/utils"
)

func TestResidentProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	resident, session := seedResident(t, h, "profile@barangay.test", false)

	mine, err := h.residents.GetMine(ctx, session)
	if err != nil {
		t.Fatalf("GetMine: %v", err)
	}
	if mine.ID != resident.ID || mine.Address != nil {
		t.Errorf("profile = %+v", mine)
	}

	updated, err := h.residents.UpdateMine(ctx, session, request_models.UpdateResidentRequest{
		FirstName: "Juana",
		LastName:  "Dela Cruz",
		BirthDate: "1990-06-12",
	})
	if err != nil {
		t.Fatalf("UpdateMine: %v", err)
	}
	if updated.FullName != "Juana Dela Cruz" || updated.BirthDate == "" {
		t.Errorf("updated = %+v", updated)
	}

	addr := request_models.AddressInput{Barangay: "San Isidro", City: "Quezon City", Province: "Metro Manila", Street: "Mabini St"}
	if _, err := h.residents.UpdateMyAddress(ctx, session, addr); err != nil {
		t.Fatalf("UpdateMyAddress: %v", err)
	}
	addr.Street = "Luna St"
	if _, err := h.residents.UpdateMyAddress(ctx, session, addr); err != nil {
		t.Fatalf("second UpdateMyAddress: %v", err)
	}
	if n := countRows(t, h, &dbm.Address{}, "resident_id = ?", resident.ID); n != 1 {
		t.Errorf("addresses = %d, want 1", n)
	}
	got, err := h.residents.GetByID(ctx, adminSession, resident.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Address == nil || got.Address.Street != "Luna St" {
		t.Errorf("address = %+v", got.Address)
	}

	if _, err := h.residents.GetByID(ctx, session, resident.ID); !errors.Is(err, utils.ErrForbidden) {
		t.Errorf("resident GetByID: err = %v, want forbidden", err)
	}
	if _, err := h.residents.GetMine(ctx, utils.Session{UserID: 31337, Role: utils.RoleUser}); !errors.Is(err, utils.ErrNotFound) {
		t.Errorf("account without profile: err = %v, want not found", err)
	}
}

func TestDeleteResidentWithOpenRequestConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	resident, session := seedResident(t, h, "open@barangay.test", true)
	created, err := h.requests.CreateRequest(ctx, session, clearanceInput(resident.ID))
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	err = h.residents.Delete(ctx, adminSession, resident.ID)
	if !errors.Is(err, utils.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if n := countRows(t, h, &dbm.Resident{}, "id = ?", resident.ID); n != 1 {
		t.Error("resident removed despite conflict")
	}
	if n := countRows(t, h, &dbm.CertificateRequest{}, "id = ?", created.ID); n != 1 {
		t.Error("request removed despite conflict")
	}
	if n := countRows(t, h, &dbm.Address{}, "resident_id = ?", resident.ID); n != 1 {
		t.Error("address removed despite conflict")
	}
}

func TestDeleteResidentCascades(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	resident, session := seedResident(t, h, "closed@barangay.test", true)

	in := clearanceInput(resident.ID)
	in.Documents = []storage.File{{Name: "id.pdf", Reader: bytes.NewReader([]byte("%PDF"))}}
	created, err := h.requests.CreateRequest(ctx, session, in)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if _, err := h.requests.Cancel(ctx, adminSession, created.ID, "resident moved away"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	key := loadRequest(t, h, created.ID).DocumentKeys[0]

	if err := h.residents.Delete(ctx, adminSession, resident.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n := countRows(t, h, &dbm.Resident{}, "id = ?", resident.ID); n != 0 {
		t.Error("resident still present")
	}
	if n := countRows(t, h, &dbm.CertificateRequest{}, "resident_id = ?", resident.ID); n != 0 {
		t.Error("requests still present")
	}
	if _, err := os.Stat(filepath.Join(h.store.Root(), filepath.FromSlash(key))); !os.IsNotExist(err) {
		t.Errorf("document not removed: %v", err)
	}

	if err := h.residents.Delete(ctx, adminSession, resident.ID); !errors.Is(err, utils.ErrNotFound) {
		t.Errorf("second delete: err = %v, want not found", err)
	}
}

func TestDeleteResidentRemovesPaymentProofs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, _ := approvedRequest(t, h, true)
	req := loadRequest(t, h, id)

	out, err := h.payments.CreateManualPayment(ctx, adminSession, id, ManualPaymentInput{
		Amount:        "300",
		PaymentMethod: "E_WALLET",
		PaymentStatus: "PENDING",
		Proof:         &storage.File{Name: "gcash.jpg", Reader: bytes.NewReader([]byte("jpg"))},
	})
	if err != nil {
		t.Fatalf("CreateManualPayment: %v", err)
	}
	proof := loadPayment(t, h, out.TransactionReference).ProofOfPaymentPath
	if _, err := h.requests.Cancel(ctx, adminSession, id, "resident withdrew"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if err := h.residents.Delete(ctx, adminSession, req.ResidentID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(h.store.Root(), filepath.FromSlash(proof))); !os.IsNotExist(err) {
		t.Errorf("proof of payment not removed: %v", err)
	}
}
