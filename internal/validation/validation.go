// Package validation wraps go-playground/validator with the tags and error
// wording shared by the reasoning engine and the tool handlers.
package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/scrypster/thinkgraph/pkg/types"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their JSON names so messages match what callers sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("libname", func(fl validator.FieldLevel) bool {
		return types.IsValidName(fl.Field().String())
	})
	_ = v.RegisterValidation("integral", func(fl validator.FieldLevel) bool {
		switch fl.Field().Kind() {
		case reflect.Float32, reflect.Float64:
			f := fl.Field().Float()
			return f == math.Trunc(f) && !math.IsInf(f, 0)
		default:
			return true
		}
	})
	return v
}

// FieldError is a single invalid argument, rendered as "Invalid <field>: <reason>".
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("Invalid %s: %s", e.Field, e.Reason)
}

// Invalid returns a FieldError for field.
func Invalid(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

// Struct validates s and returns the first failure as a *FieldError.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	return &FieldError{Field: fe.Field(), Reason: reason(fe)}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.String {
			return "must be a non-empty string"
		}
		return "is required"
	case "gt", "gte", "integral":
		return "must be a positive integer"
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "libname":
		return "use only letters, numbers, underscores, and hyphens"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return "is invalid"
	}
}
