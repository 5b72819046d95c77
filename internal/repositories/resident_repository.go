package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbm "barangay/internal/models/db_models"
)

type ResidentRepository interface {
	WithTx(tx *gorm.DB) ResidentRepository
	Create(ctx context.Context, resident *dbm.Resident) error
	FindByID(ctx context.Context, id uint) (*dbm.Resident, error)
	FindByAccountID(ctx context.Context, accountID uint) (*dbm.Resident, error)
	Update(ctx context.Context, resident *dbm.Resident) error
	UpsertAddress(ctx context.Context, address *dbm.Address) error
	Delete(ctx context.Context, id uint) error
	// LockForUpdate takes a row lock on the resident inside a transaction.
	LockForUpdate(ctx context.Context, id uint) error
}

type residentRepository struct {
	db *gorm.DB
}

func NewResidentRepository(db *gorm.DB) ResidentRepository {
	return &residentRepository{db: db}
}

func (r *residentRepository) WithTx(tx *gorm.DB) ResidentRepository {
	return &residentRepository{db: tx}
}

func (r *residentRepository) Create(ctx context.Context, resident *dbm.Resident) error {
	return r.db.WithContext(ctx).Create(resident).Error
}

func (r *residentRepository) first(ctx context.Context, query string, arg any) (*dbm.Resident, error) {
	var resident dbm.Resident
	err := r.db.WithContext(ctx).Preload("Address").Where(query, arg).First(&resident).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &resident, nil
}

func (r *residentRepository) FindByID(ctx context.Context, id uint) (*dbm.Resident, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *residentRepository) FindByAccountID(ctx context.Context, accountID uint) (*dbm.Resident, error) {
	return r.first(ctx, "account_id = ?", accountID)
}

func (r *residentRepository) Update(ctx context.Context, resident *dbm.Resident) error {
	return r.db.WithContext(ctx).
		Model(resident).
		Select("first_name", "middle_name", "last_name", "phone_number", "birth_date").
		Updates(resident).Error
}

func (r *residentRepository) UpsertAddress(ctx context.Context, address *dbm.Address) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "resident_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"house_number", "street", "purok", "barangay", "city", "province", "zip_code", "updated_at",
		}),
	}).Create(address).Error
}

func (r *residentRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Where("resident_id = ?", id).Delete(&dbm.Address{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&dbm.Resident{}, id).Error
}

func (r *residentRepository) LockForUpdate(ctx context.Context, id uint) error {
	var resident dbm.Resident
	return r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&resident, id).Error
}
