package services

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	dbm "barangay/internal/models/db_models"
	"barangay/internal/models/request_models"
)

var infoValidator = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

func newInfoShape(t dbm.CertificateType) any {
	switch t {
	case dbm.BarangayClearance:
		return &request_models.BarangayClearanceInfo{}
	case dbm.CertificateOfResidency:
		return &request_models.ResidencyInfo{}
	case dbm.CertificateOfIndigency:
		return &request_models.IndigencyInfo{}
	case dbm.BusinessClearance:
		return &request_models.BusinessClearanceInfo{}
	case dbm.BarangayID:
		return &request_models.BarangayIDInfo{}
	}
	return nil
}

// normalizeAdditionalInfo checks the fields required for t and returns the
// info reduced to the known keys. Field errors are keyed additional_info.<name>.
func normalizeAdditionalInfo(t dbm.CertificateType, info map[string]any) (map[string]any, map[string]string) {
	shape := newInfoShape(t)
	if shape == nil {
		return nil, map[string]string{"certificate_type": "unsupported certificate type"}
	}

	fields := map[string]string{}
	raw, err := json.Marshal(info)
	if err != nil {
		return nil, map[string]string{"additional_info": "must be a JSON object"}
	}
	if err := json.Unmarshal(raw, shape); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			fields["additional_info."+typeErr.Field] = "must be a " + typeErr.Type.Kind().String()
			return nil, fields
		}
		return nil, map[string]string{"additional_info": "must be a JSON object"}
	}

	if err := infoValidator.Struct(shape); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, map[string]string{"additional_info": err.Error()}
		}
		for _, fe := range verrs {
			fields["additional_info."+fe.Field()] = describeRule(fe)
		}
		return nil, fields
	}

	normalized := map[string]any{}
	out, _ := json.Marshal(shape)
	_ = json.Unmarshal(out, &normalized)
	return normalized, nil
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}
