package response_models

type AccountLoginResponse struct {
	Token     string `json:"token"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expires_at"`
}

type AccountResponse struct {
	ID         uint              `json:"id"`
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Role       string            `json:"role"`
	ResidentID *uint             `json:"resident_id,omitempty"`
	Resident   *ResidentResponse `json:"resident,omitempty"`
}

type AddressResponse struct {
	HouseNumber string `json:"house_number"`
	Street      string `json:"street"`
	Purok       string `json:"purok"`
	Barangay    string `json:"barangay"`
	City        string `json:"city"`
	Province    string `json:"province"`
	ZipCode     string `json:"zip_code"`
}

type ResidentResponse struct {
	ID          uint             `json:"id"`
	AccountID   *uint            `json:"account_id,omitempty"`
	FirstName   string           `json:"first_name"`
	MiddleName  string           `json:"middle_name,omitempty"`
	LastName    string           `json:"last_name"`
	FullName    string           `json:"full_name"`
	Email       string           `json:"email"`
	PhoneNumber string           `json:"phone_number"`
	BirthDate   string           `json:"birth_date,omitempty"`
	Address     *AddressResponse `json:"address,omitempty"`
}
