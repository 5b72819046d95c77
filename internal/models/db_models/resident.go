package db_models

import "strings"

type Resident struct {
	BaseModel
	AccountID   *uint  `gorm:"uniqueIndex"`
	FirstName   string `gorm:"size:100;not null"`
	MiddleName  string `gorm:"size:100"`
	LastName    string `gorm:"size:100;not null"`
	Email       string `gorm:"size:255"`
	PhoneNumber string `gorm:"size:30"`
	BirthDate   *int64
	Address     *Address
	Requests    []CertificateRequest
}

func (r *Resident) FullName() string {
	parts := []string{r.FirstName}
	if r.MiddleName != "" {
		parts = append(parts, r.MiddleName)
	}
	parts = append(parts, r.LastName)
	return strings.Join(parts, " ")
}

type Address struct {
	BaseModel
	ResidentID  uint   `gorm:"uniqueIndex;not null"`
	HouseNumber string `gorm:"size:50"`
	Street      string `gorm:"size:150"`
	Purok       string `gorm:"size:100"`
	Barangay    string `gorm:"size:100;not null"`
	City        string `gorm:"size:100;not null"`
	Province    string `gorm:"size:100;not null"`
	ZipCode     string `gorm:"size:10"`
}

// Line1 is the street part of the address as a gateway expects it.
func (a *Address) Line1() string {
	var parts []string
	for _, p := range []string{a.HouseNumber, a.Street} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func (a *Address) Line2() string {
	var parts []string
	for _, p := range []string{a.Purok, "Brgy. " + a.Barangay} {
		if p = strings.TrimSpace(p); p != "" && p != "Brgy." {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
