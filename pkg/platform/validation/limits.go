// Package validation holds input limits shared by request types at the
// HTTP trust boundary.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	dErrors "veritas/pkg/domain-errors"
)

// String length limits, counted in characters.
const (
	MaxUsernameLength = 64
	MaxPlatformLength = 50
	MaxReasonLength   = 500
	MaxEvidenceLength = 2000
	MaxSearchLength   = 100
	MaxBioLength      = 1000
	MaxURLLength      = 2048
)

// MaxRiskFactors caps the risk factors kept from a model answer.
const MaxRiskFactors = 20

// CheckRequired fails when value is blank.
func CheckRequired(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s is required", fieldName))
	}
	return nil
}

// CheckStringLength validates that a string does not exceed max characters.
func CheckStringLength(fieldName, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}
