package db_models

type Account struct {
	BaseModel
	Name         string `gorm:"size:150;not null"`
	Email        string `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"size:20;not null;default:USER"`
	Resident     *Resident
}
