package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"barangay/internal/models/request_models"
	"barangay/internal/repositories"
	"barangay/pkg/utils"
)

const paymentsSheet = "Payments"

var paymentColumns = []struct {
	Label string
	Width float64
}{
	{"Transaction", 24},
	{"Request", 24},
	{"Resident", 28},
	{"Certificate", 26},
	{"Method", 16},
	{"Status", 14},
	{"Amount (PHP)", 14},
	{"Payment date", 22},
	{"Receipt no.", 16},
	{"Created", 22},
}

type ReportService interface {
	// ExportPayments renders the filtered payment ledger as an .xlsx workbook.
	ExportPayments(ctx context.Context, s utils.Session, q request_models.ListPaymentsQuery) (*bytes.Buffer, string, error)
}

type reportService struct {
	payments repositories.PaymentRepository
	now      func() time.Time
}

func NewReportService(payments repositories.PaymentRepository) ReportService {
	return &reportService{payments: payments, now: time.Now}
}

func (r *reportService) ExportPayments(ctx context.Context, s utils.Session, q request_models.ListPaymentsQuery) (*bytes.Buffer, string, error) {
	if err := s.RequireAdmin(); err != nil {
		return nil, "", err
	}
	filter, err := PaymentFilterFromQuery(q)
	if err != nil {
		return nil, "", err
	}
	rows, err := r.payments.ListAll(ctx, filter)
	if err != nil {
		return nil, "", utils.NewDatabaseError(err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", paymentsSheet); err != nil {
		return nil, "", err
	}

	now := r.now()
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	f.SetCellValue(paymentsSheet, "A1", "Certificate payments")
	f.SetCellStyle(paymentsSheet, "A1", "A1", titleStyle)
	f.SetCellValue(paymentsSheet, "A2", "Generated: "+utils.FormatDisplayPH(now))

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F4E79"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	for i, col := range paymentColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 4)
		f.SetCellValue(paymentsSheet, cell, col.Label)
		f.SetCellStyle(paymentsSheet, cell, cell, headerStyle)
		name, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(paymentsSheet, name, name, col.Width)
	}

	moneyStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 4})
	for i, p := range rows {
		row := i + 5
		var reference, resident, certificate string
		if req := p.CertificateRequest; req != nil {
			reference = req.ReferenceNumber
			certificate = req.CertificateType.DisplayName()
			if req.Resident != nil {
				resident = req.Resident.FullName()
			}
		}
		var paidAt string
		if p.PaymentDate != nil {
			paidAt = utils.FormatDisplayPH(utils.FromUnixSecondsPH(*p.PaymentDate))
		}
		amount, _ := p.Amount.Float64()

		values := []interface{}{
			p.TransactionReference,
			reference,
			resident,
			certificate,
			string(p.PaymentMethod),
			string(p.PaymentStatus),
			amount,
			paidAt,
			p.ReceiptNumber,
			utils.FormatDisplayPH(utils.FromUnixSecondsPH(p.CreatedAt)),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(paymentsSheet, start, &values); err != nil {
			return nil, "", err
		}
		amountCell, _ := excelize.CoordinatesToCellName(7, row)
		f.SetCellStyle(paymentsSheet, amountCell, amountCell, moneyStyle)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("write workbook: %w", err)
	}
	return buf, fmt.Sprintf("payments-%s.xlsx", now.In(utils.ManilaLocation()).Format("20060102-150405")), nil
}
