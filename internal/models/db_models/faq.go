package db_models

type FaqEntry struct {
	BaseModel
	Question string `gorm:"size:500;not null"`
	Answer   string `gorm:"type:text;not null"`
	Keywords TextArray
	IsActive bool `gorm:"not null"`
}
