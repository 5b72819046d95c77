package repositories

import (
	"context"

	"gorm.io/gorm"

	dbm "barangay/internal/models/db_models"
)

type FaqRepository interface {
	ListActive(ctx context.Context) ([]dbm.FaqEntry, error)
	List(ctx context.Context) ([]dbm.FaqEntry, error)
	Create(ctx context.Context, faq *dbm.FaqEntry) error
	Delete(ctx context.Context, id uint) (bool, error)
}

type faqRepository struct {
	db *gorm.DB
}

func NewFaqRepository(db *gorm.DB) FaqRepository {
	return &faqRepository{db: db}
}

func (r *faqRepository) ListActive(ctx context.Context) ([]dbm.FaqEntry, error) {
	var rows []dbm.FaqEntry
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *faqRepository) List(ctx context.Context) ([]dbm.FaqEntry, error) {
	var rows []dbm.FaqEntry
	err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *faqRepository) Create(ctx context.Context, faq *dbm.FaqEntry) error {
	return r.db.WithContext(ctx).Create(faq).Error
}

func (r *faqRepository) Delete(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&dbm.FaqEntry{}, id)
	return res.RowsAffected > 0, res.Error
}
