package request_models

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type SignUpRequest struct {
	Email       string       `json:"email" binding:"required,email"`
	Password    string       `json:"password" binding:"required,min=8,max=72"`
	FirstName   string       `json:"first_name" binding:"required,max=100"`
	MiddleName  string       `json:"middle_name" binding:"max=100"`
	LastName    string       `json:"last_name" binding:"required,max=100"`
	PhoneNumber string       `json:"phone_number" binding:"omitempty,max=30"`
	BirthDate   string       `json:"birth_date" binding:"omitempty,datetime=2006-01-02"`
	Address     AddressInput `json:"address" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=72"`
	Token       string `json:"token" binding:"required"`
}

type RequestForgotPassword struct {
	Email string `json:"email" binding:"required,email"`
}

// CreateAdminRequest is used by the create-admin command.
type CreateAdminRequest struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=72"`
}
