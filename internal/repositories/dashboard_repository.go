package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbm "barangay/internal/models/db_models"
)

type DashboardRepository interface {
	// KPIs / counts
	CountResidents(ctx context.Context) (int64, error)
	CountNewRequests(ctx context.Context, start, end time.Time) (int64, error)

	// Breakdowns
	RequestsByStatus(ctx context.Context) ([]StatusCountRow, error)
	RequestsByType(ctx context.Context, start, end time.Time) ([]TypeCountRow, error)
	PaymentsByStatus(ctx context.Context, start, end time.Time) ([]PaymentTotalRow, error)

	// Recent payments
	RecentPayments(ctx context.Context, limit int) ([]dbm.Payment, error)
}

type dashboardRepository struct {
	db *gorm.DB
}

func NewDashboardRepository(db *gorm.DB) DashboardRepository {
	return &dashboardRepository{db: db}
}

// ---------- Row helpers ----------
type StatusCountRow struct {
	Status string `gorm:"column:status"`
	Count  int64  `gorm:"column:count"`
}

type TypeCountRow struct {
	CertificateType string `gorm:"column:certificate_type"`
	Count           int64  `gorm:"column:count"`
}

type PaymentTotalRow struct {
	Status string          `gorm:"column:payment_status"`
	Count  int64           `gorm:"column:count"`
	Amount decimal.Decimal `gorm:"column:amount"`
}

// ---------- Counts ----------
func (r *dashboardRepository) CountResidents(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&dbm.Resident{}).Count(&n).Error
	return n, err
}

func (r *dashboardRepository) CountNewRequests(ctx context.Context, start, end time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&dbm.CertificateRequest{}).
		Where("request_date BETWEEN ? AND ?", start.Unix(), end.Unix()).
		Count(&n).Error
	return n, err
}

// ---------- Breakdowns ----------
func (r *dashboardRepository) RequestsByStatus(ctx context.Context) ([]StatusCountRow, error) {
	var rows []StatusCountRow
	err := r.db.WithContext(ctx).
		Model(&dbm.CertificateRequest{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status ASC").
		Find(&rows).Error
	return rows, err
}

func (r *dashboardRepository) RequestsByType(ctx context.Context, start, end time.Time) ([]TypeCountRow, error) {
	var rows []TypeCountRow
	err := r.db.WithContext(ctx).
		Model(&dbm.CertificateRequest{}).
		Select("certificate_type, COUNT(*) AS count").
		Where("request_date BETWEEN ? AND ?", start.Unix(), end.Unix()).
		Group("certificate_type").
		Order("count DESC").
		Find(&rows).Error
	return rows, err
}

func (r *dashboardRepository) PaymentsByStatus(ctx context.Context, start, end time.Time) ([]PaymentTotalRow, error) {
	var rows []PaymentTotalRow
	err := r.db.WithContext(ctx).
		Model(&dbm.Payment{}).
		Select("payment_status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Where("created_at BETWEEN ? AND ?", start.Unix(), end.Unix()).
		Group("payment_status").
		Order("payment_status ASC").
		Find(&rows).Error
	return rows, err
}

// ---------- Recent payments ----------
func (r *dashboardRepository) RecentPayments(ctx context.Context, limit int) ([]dbm.Payment, error) {
	var rows []dbm.Payment
	err := r.db.WithContext(ctx).
		Preload("CertificateRequest.Resident").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
