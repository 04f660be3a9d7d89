package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	apperrors "github.com/frahmantamala/spm-sp2d/internal"
	"github.com/go-playground/validator/v10"
)

type ValidatorFunc func(interface{}) *apperrors.AppError

type FieldValidator struct {
	FieldName  string
	Value      interface{}
	Validators []ValidatorFunc
}

type ValidationBuilder struct {
	fields []FieldValidator
}

func NewValidator() *ValidationBuilder {
	return &ValidationBuilder{
		fields: make([]FieldValidator, 0),
	}
}

func (v *ValidationBuilder) Field(name string, value interface{}) *FieldValidator {
	v.fields = append(v.fields, FieldValidator{
		FieldName:  name,
		Value:      value,
		Validators: make([]ValidatorFunc, 0),
	})
	return &v.fields[len(v.fields)-1]
}

func (fv *FieldValidator) Required() *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *apperrors.AppError {
		missing := false
		switch v := value.(type) {
		case string:
			missing = strings.TrimSpace(v) == ""
		case int64:
			missing = v == 0
		case *string:
			missing = v == nil || strings.TrimSpace(*v) == ""
		}
		if missing {
			return apperrors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s is required", fv.FieldName), apperrors.ErrCodeValidationFailed)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MinInt(min int64, code apperrors.ErrorCode) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *apperrors.AppError {
		if v, ok := value.(int64); ok && v < min {
			return apperrors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s must be at least %d", fv.FieldName, min), code)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MaxLength(max int) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *apperrors.AppError {
		if v, ok := value.(string); ok && len(v) > max {
			return apperrors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s must not exceed %d characters", fv.FieldName, max), apperrors.ErrCodeValidationFailed)
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) OneOf(code apperrors.ErrorCode, allowed ...string) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *apperrors.AppError {
		v, ok := value.(string)
		if !ok {
			return nil
		}
		for _, a := range allowed {
			if v == a {
				return nil
			}
		}
		return apperrors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s must be one of %s", fv.FieldName, strings.Join(allowed, ", ")), code)
	})
	return fv
}

func (fv *FieldValidator) Custom(validator func(interface{}) *apperrors.AppError) *FieldValidator {
	fv.Validators = append(fv.Validators, validator)
	return fv
}

// Validate runs every field validator and folds all failures into one AppError.
func (v *ValidationBuilder) Validate() *apperrors.AppError {
	var validationErrors []apperrors.ValidationError

	for _, field := range v.fields {
		for _, validate := range field.Validators {
			appErr := validate(field.Value)
			if appErr == nil {
				continue
			}
			validationErrors = append(validationErrors, flatten(field.FieldName, appErr)...)
		}
	}

	return fold(validationErrors)
}

// Merge combines several validation results, skipping nils.
func Merge(errs ...*apperrors.AppError) *apperrors.AppError {
	var all []apperrors.ValidationError
	for _, e := range errs {
		if e == nil {
			continue
		}
		all = append(all, flatten("", e)...)
	}
	return fold(all)
}

func flatten(field string, appErr *apperrors.AppError) []apperrors.ValidationError {
	if details, ok := appErr.Details.(apperrors.ValidationErrors); ok {
		return details.Errors
	}
	return []apperrors.ValidationError{{
		Field:   field,
		Message: appErr.Message,
		Code:    string(appErr.Code),
	}}
}

func fold(errs []apperrors.ValidationError) *apperrors.AppError {
	if len(errs) == 0 {
		return nil
	}
	return apperrors.NewValidationError("Validation failed", apperrors.ErrCodeValidationFailed).
		WithDetails(apperrors.ValidationErrors{Errors: errs})
}

var (
	structValidator *validator.Validate
	once            sync.Once
)

func instance() *validator.Validate {
	once.Do(func() {
		structValidator = validator.New(validator.WithRequiredStructEnabled())
		structValidator.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return structValidator
}

// Struct validates the `validate` tags of s and reports failures by json field name.
func Struct(s interface{}) *apperrors.AppError {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError(err.Error(), apperrors.ErrCodeValidationFailed)
	}

	out := make([]apperrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apperrors.ValidationError{
			Field:   fe.Field(),
			Message: describe(fe),
			Code:    string(apperrors.ErrCodeValidationFailed),
		})
	}
	return fold(out)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
