package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kozaktomas/face-attendance/internal/constants"
)

var subjectIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("subject_id", validateSubjectID)
	// Report JSON names so messages match the request fields.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateSubjectID accepts IDs usable as face file names.
func validateSubjectID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	return len(id) <= constants.MaxSubjectIDLength && subjectIDPattern.MatchString(id)
}

// validateStruct returns a client-facing message for the first failed rule, or "".
func validateStruct(payload any) string {
	err := validate.Struct(payload)
	if err == nil {
		return ""
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "subject_id":
		return fmt.Sprintf("%s must be alphanumeric (with . _ -) and at most %d characters", field, constants.MaxSubjectIDLength)
	case "datetime":
		return field + " must be a YYYY-MM-DD date"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
