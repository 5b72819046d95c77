package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	dbm "barangay/internal/models/db_models"
	resp "barangay/internal/models/response_models"
	"barangay/internal/repositories"
	"barangay/pkg/utils"
)

const recentPaymentsLimit = 10

type DashboardService interface {
	BuildDashboard(ctx context.Context, s utils.Session, start, end string) (*resp.DashboardReport, error)
}

type dashboardService struct {
	repo repositories.DashboardRepository
	now  func() time.Time
}

func NewDashboardService(repo repositories.DashboardRepository) DashboardService {
	return &dashboardService{repo: repo, now: time.Now}
}

// normalizeRange parses YYYY-MM-DD bounds in Manila time. Defaults to the
// last 30 days; end covers its whole day.
func normalizeRange(start, end string, now time.Time) (time.Time, time.Time, error) {
	loc := utils.ManilaLocation()
	today := time.Date(now.In(loc).Year(), now.In(loc).Month(), now.In(loc).Day(), 0, 0, 0, 0, loc)

	endDay := today
	if end != "" {
		t, err := time.ParseInLocation("2006-01-02", end, loc)
		if err != nil {
			return time.Time{}, time.Time{}, utils.NewValidationError(map[string]string{"end": "must be YYYY-MM-DD"})
		}
		endDay = t
	}
	startDay := endDay.AddDate(0, 0, -29)
	if start != "" {
		t, err := time.ParseInLocation("2006-01-02", start, loc)
		if err != nil {
			return time.Time{}, time.Time{}, utils.NewValidationError(map[string]string{"start": "must be YYYY-MM-DD"})
		}
		startDay = t
	}
	if startDay.After(endDay) {
		startDay, endDay = endDay, startDay
	}
	return startDay, endDay.AddDate(0, 0, 1).Add(-time.Second), nil
}

func (d *dashboardService) BuildDashboard(ctx context.Context, s utils.Session, start, end string) (*resp.DashboardReport, error) {
	if err := s.RequireAdmin(); err != nil {
		return nil, err
	}
	from, to, err := normalizeRange(start, end, d.now())
	if err != nil {
		return nil, err
	}

	// ---------- Core counts ----------
	totalResidents, err := d.repo.CountResidents(ctx)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	newRequests, err := d.repo.CountNewRequests(ctx, from, to)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}

	// ---------- Requests ----------
	statusRows, err := d.repo.RequestsByStatus(ctx)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	byStatus := make(map[dbm.RequestStatus]int64, len(statusRows))
	requestsBy := make([]resp.StatusCount, 0, len(statusRows))
	for _, r := range statusRows {
		byStatus[dbm.RequestStatus(r.Status)] = r.Count
		requestsBy = append(requestsBy, resp.StatusCount{Status: r.Status, Count: r.Count})
	}

	typeRows, err := d.repo.RequestsByType(ctx, from, to)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	requestTypes := make([]resp.TypeCount, 0, len(typeRows))
	for _, r := range typeRows {
		requestTypes = append(requestTypes, resp.TypeCount{CertificateType: r.CertificateType, Count: r.Count})
	}

	// ---------- Payments ----------
	paymentRows, err := d.repo.PaymentsByStatus(ctx, from, to)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	revenue := decimal.Zero
	var paid int64
	paymentsBy := make([]resp.PaymentStatusTotal, 0, len(paymentRows))
	for _, r := range paymentRows {
		paymentsBy = append(paymentsBy, resp.PaymentStatusTotal{
			Status: r.Status,
			Count:  r.Count,
			Amount: r.Amount.StringFixed(2),
		})
		if dbm.PaymentStatus(r.Status).IsSuccess() {
			revenue = revenue.Add(r.Amount)
			paid += r.Count
		}
	}
	average := decimal.Zero
	if paid > 0 {
		average = revenue.Div(decimal.NewFromInt(paid))
	}

	// ---------- Recent payments ----------
	recentRows, err := d.repo.RecentPayments(ctx, recentPaymentsLimit)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	recent := make([]resp.RecentPayment, 0, len(recentRows))
	for _, p := range recentRows {
		item := resp.RecentPayment{
			ID:                   p.ID,
			TransactionReference: p.TransactionReference,
			Amount:               p.Amount.StringFixed(2),
			PaymentMethod:        string(p.PaymentMethod),
			PaymentStatus:        string(p.PaymentStatus),
		}
		if p.CertificateRequest != nil {
			item.ReferenceNumber = p.CertificateRequest.ReferenceNumber
			if p.CertificateRequest.Resident != nil {
				item.ResidentName = p.CertificateRequest.Resident.FullName()
			}
		}
		if p.PaymentDate != nil {
			item.PaidAt = utils.FormatRFC3339PH(utils.FromUnixSecondsPH(*p.PaymentDate))
		}
		recent = append(recent, item)
	}

	return &resp.DashboardReport{
		Range: resp.TimeRange{
			Start: utils.FormatRFC3339PH(from),
			End:   utils.FormatRFC3339PH(to),
		},
		KPIs: resp.KPIBlock{
			TotalResidents:     totalResidents,
			NewRequests:        newRequests,
			PendingReview:      byStatus[dbm.RequestPending] + byStatus[dbm.RequestUnderReview],
			AwaitingPayment:    byStatus[dbm.RequestAwaitingPayment],
			Completed:          byStatus[dbm.RequestCompleted],
			Revenue:            revenue.StringFixed(2),
			Currency:           dbm.CurrencyPHP,
			AverageFee:         average.StringFixed(2),
			SuccessfulPayments: paid,
		},
		RequestsBy:     requestsBy,
		RequestTypes:   requestTypes,
		PaymentsBy:     paymentsBy,
		RecentPayments: recent,
	}, nil
}
