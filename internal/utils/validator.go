// internal/utils/validator.go
package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// MinChipIDLength is the shortest accepted chip number after normalization.
var MinChipIDLength = 10

func init() {
	validate = validator.New()
	validate.RegisterValidation("chip_id", validateChipID)
	validate.RegisterValidation("sha256_hex", validateSHA256Hex)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validateChipID(fl validator.FieldLevel) bool {
	return len(NormalizeChipID(fl.Field().String())) >= MinChipIDLength
}

func validateSHA256Hex(fl validator.FieldLevel) bool {
	return IsSHA256Hex(strings.ToLower(fl.Field().String()))
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return e.Field() + " must be at least " + e.Param() + " characters"
	case "max":
		return e.Field() + " must be at most " + e.Param() + " characters"
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	case "gt":
		return e.Field() + " must be greater than " + e.Param()
	case "chip_id":
		return "Chip ID is too short"
	case "sha256_hex":
		return e.Field() + " must be a hex-encoded SHA-256 digest"
	default:
		return e.Field() + " is invalid"
	}
}
