package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"barangay/internal/models/request_models"
	"barangay/internal/repositories"
	"barangay/pkg/utils"
)

func TestExportPayments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, session := approvedRequest(t, h, true)

	init, err := h.payments.Initiate(ctx, session, id, "pickup")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	reports := NewReportService(repositories.NewPaymentRepository(h.db))

	if _, _, err := reports.ExportPayments(ctx, session, request_models.ListPaymentsQuery{}); !errors.Is(err, utils.ErrForbidden) {
		t.Fatalf("resident export err = %v, want forbidden", err)
	}
	if _, _, err := reports.ExportPayments(ctx, adminSession, request_models.ListPaymentsQuery{Status: "paid-ish"}); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("bad filter err = %v, want validation", err)
	}

	buf, name, err := reports.ExportPayments(ctx, adminSession, request_models.ListPaymentsQuery{Status: "pending"})
	if err != nil {
		t.Fatalf("ExportPayments: %v", err)
	}
	if !strings.HasPrefix(name, "payments-") || !strings.HasSuffix(name, ".xlsx") {
		t.Errorf("file name = %q", name)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(paymentsSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	// title, generated, blank, header, then one payment
	if len(rows) != 5 {
		t.Fatalf("rows = %d, want 5: %v", len(rows), rows)
	}
	if rows[3][0] != "Transaction" {
		t.Errorf("header = %v", rows[3])
	}
	got := rows[4]
	if got[0] != init.TransactionID || got[5] != "PENDING" {
		t.Errorf("payment row = %v", got)
	}
	if !strings.Contains(got[2], "Dela Cruz") {
		t.Errorf("resident column = %q", got[2])
	}

	empty, _, err := reports.ExportPayments(ctx, adminSession, request_models.ListPaymentsQuery{Status: "succeeded"})
	if err != nil {
		t.Fatalf("ExportPayments(succeeded): %v", err)
	}
	f2, err := excelize.OpenReader(empty)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f2.Close()
	if rows, _ := f2.GetRows(paymentsSheet); len(rows) != 4 {
		t.Errorf("filtered export rows = %d, want header only", len(rows))
	}
}
