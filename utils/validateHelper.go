package utils

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the shared validator with the decimal rules registered:
// "fraction" accepts decimals in [0,1], "positive" accepts decimals > 0.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// Struct-typed fields skip tag validation unless mapped to a plain value.
		validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.String()
			}
			return nil
		}, decimal.Decimal{})
		_ = validate.RegisterValidation("fraction", func(fl validator.FieldLevel) bool {
			d, ok := decimalField(fl)
			return !ok || IsFraction(d)
		})
		_ = validate.RegisterValidation("positive", func(fl validator.FieldLevel) bool {
			d, ok := decimalField(fl)
			return !ok || d.IsPositive()
		})
	})
	return validate
}

func decimalField(fl validator.FieldLevel) (decimal.Decimal, bool) {
	if fl.Field().Kind() != reflect.String {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ValidateStruct runs the struct tags and reports failures as ErrValidation.
func ValidateStruct(input interface{}) error {
	err := GetValidator().Struct(input)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return NewValidationError("%v", err)
	}
	fields := ProcessValidationErrors(validationErrors)
	parts := make([]string, 0, len(fields))
	for field, tag := range fields {
		parts = append(parts, fmt.Sprintf("%s (%s)", field, tag))
	}
	sort.Strings(parts)
	return NewValidationError("invalid %s", strings.Join(parts, ", "))
}

func ProcessValidationErrors(validationErrors validator.ValidationErrors) map[string]string {
	errorResponse := make(map[string]string)
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}
