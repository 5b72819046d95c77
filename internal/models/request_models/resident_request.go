package request_models

type AddressInput struct {
	HouseNumber string `json:"house_number" binding:"max=50"`
	Street      string `json:"street" binding:"max=150"`
	Purok       string `json:"purok" binding:"max=100"`
	Barangay    string `json:"barangay" binding:"required,max=100"`
	City        string `json:"city" binding:"required,max=100"`
	Province    string `json:"province" binding:"required,max=100"`
	ZipCode     string `json:"zip_code" binding:"omitempty,numeric,len=4"`
}

type UpdateResidentRequest struct {
	FirstName   string `json:"first_name" binding:"required,max=100"`
	MiddleName  string `json:"middle_name" binding:"max=100"`
	LastName    string `json:"last_name" binding:"required,max=100"`
	PhoneNumber string `json:"phone_number" binding:"omitempty,max=30"`
	BirthDate   string `json:"birth_date" binding:"omitempty,datetime=2006-01-02"`
}
