package request_models

// CreateCertificateRequest is bound from JSON or from a multipart form whose
// additional_info field carries a JSON object.
type CreateCertificateRequest struct {
	ResidentID      uint           `json:"resident_id" form:"resident_id"`
	CertificateType string         `json:"certificate_type" form:"certificate_type" binding:"required"`
	Purpose         string         `json:"purpose" form:"purpose" binding:"required,max=500"`
	AdditionalInfo  map[string]any `json:"additional_info" form:"-"`
}

type RemarksRequest struct {
	Remarks string `json:"remarks" binding:"max=1000"`
}

type ListRequestsQuery struct {
	Status          string `form:"status"`
	CertificateType string `form:"certificate_type"`
	ResidentID      uint   `form:"resident_id"`
	Page            int    `form:"page"`
	PageSize        int    `form:"page_size"`
}

// Per-type additional information. Keys are the JSON names residents submit.

type BarangayClearanceInfo struct {
	CivilStatus string `json:"civil_status" validate:"required,oneof=SINGLE MARRIED WIDOWED SEPARATED"`
	Citizenship string `json:"citizenship" validate:"required"`
}

type ResidencyInfo struct {
	YearsOfResidency int `json:"years_of_residency" validate:"required,gte=0,lte=120"`
}

type IndigencyInfo struct {
	MonthlyIncome float64 `json:"monthly_income" validate:"gte=0"`
	HouseholdSize int     `json:"household_size" validate:"required,gte=1"`
}

type BusinessClearanceInfo struct {
	BusinessName    string `json:"business_name" validate:"required"`
	BusinessAddress string `json:"business_address" validate:"required"`
	BusinessType    string `json:"business_type" validate:"required"`
}

type BarangayIDInfo struct {
	EmergencyContactName   string `json:"emergency_contact_name" validate:"required"`
	EmergencyContactNumber string `json:"emergency_contact_number" validate:"required"`
}
