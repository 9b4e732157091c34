// Package validation holds the input schemas shared by the console forms:
// registration, login, profile update, checkout and theme authoring.
//
// Every schema reports all failing fields at once as an ordered list of
// FieldError values wrapped in a VALIDATION_ERROR.
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/angelmondragon/eventix-edge/pkg/enums"
	pkgerrors "github.com/angelmondragon/eventix-edge/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	// 01 followed by an operator digit 3-9 and eight digits, with an optional 88 or +88 country prefix.
	bdPhonePattern  = regexp.MustCompile(`^(?:\+?88)?01[3-9]\d{8}$`)
	hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

const daysPerYear = 365

// FieldError is one failed rule on one field. Field uses the JSON path,
// e.g. "items[0].quantity".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type passwordRule struct {
	check   func(string) bool
	message string
}

var passwordRules = []passwordRule{
	{func(s string) bool { return utf8.RuneCountInString(s) >= 8 }, "must be at least 8 characters"},
	{func(s string) bool { return strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") }, "must contain at least one uppercase letter"},
	{func(s string) bool { return strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") }, "must contain at least one lowercase letter"},
	{func(s string) bool { return strings.ContainsAny(s, "0123456789") }, "must contain at least one number"},
}

// Validator wraps a configured go-playground validator.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

type Option func(*Validator)

// WithClock overrides the clock used for age checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// Default is the process-wide validator using the wall clock.
var Default = New()

func New(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	validate.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	mustRegister(validate, "bdphone", func(fl validator.FieldLevel) bool {
		return bdPhonePattern.MatchString(fl.Field().String())
	})
	mustRegister(validate, "strongpassword", func(fl validator.FieldLevel) bool {
		return len(failedPasswordRules(fl.Field().String())) == 0
	})
	mustRegister(validate, "hexcolor36", func(fl validator.FieldLevel) bool {
		return hexColorPattern.MatchString(fl.Field().String())
	})
	mustRegister(validate, "gender", func(fl validator.FieldLevel) bool {
		return enums.Gender(fl.Field().String()).IsValid()
	})
	mustRegister(validate, "themecategory", func(fl validator.FieldLevel) bool {
		return enums.ThemeCategory(fl.Field().String()).IsValid()
	})
	mustRegister(validate, "paymentprovider", func(fl validator.FieldLevel) bool {
		return enums.PaymentProvider(fl.Field().String()).IsValid()
	})
	mustRegister(validate, "birthdate", func(fl validator.FieldLevel) bool {
		_, err := ParseBirthDate(fl.Field().String())
		return err == nil
	})
	mustRegister(validate, "minage", func(fl validator.FieldLevel) bool {
		dob, err := ParseBirthDate(fl.Field().String())
		if err != nil {
			return false
		}
		years, err := strconv.ParseFloat(fl.Param(), 64)
		if err != nil {
			return false
		}
		return AgeInYears(dob, v.now()) >= years
	})

	v.validate = validate
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// ParseBirthDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseBirthDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

// AgeInYears measures elapsed time in 365-day years.
func AgeInYears(dob, now time.Time) float64 {
	return now.Sub(dob).Hours() / 24 / daysPerYear
}

func failedPasswordRules(password string) []string {
	var failed []string
	for _, rule := range passwordRules {
		if !rule.check(password) {
			failed = append(failed, rule.message)
		}
	}
	return failed
}

// Struct validates any tagged struct and returns a VALIDATION_ERROR listing
// every failing field, or nil.
func (v *Validator) Struct(dest any) error {
	err := v.validate.Struct(dest)
	if err == nil {
		return nil
	}
	return formatValidationErrors(err)
}

// Var validates a single value against a tag list.
func (v *Validator) Var(field string, value any, tag string) error {
	err := v.validate.Var(value, tag)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make([]FieldError, 0, len(errs))
	for _, fe := range errs {
		details = append(details, FieldError{Field: field, Message: validationMessage(fe)})
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func formatValidationErrors(err error) *pkgerrors.Error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make([]FieldError, 0, len(errs))
	for _, fe := range errs {
		field := fieldPath(fe)
		if fe.Tag() == "strongpassword" {
			for _, msg := range failedPasswordRules(fmt.Sprint(fe.Value())) {
				details = append(details, FieldError{Field: field, Message: msg})
			}
			continue
		}
		details = append(details, FieldError{Field: field, Message: validationMessage(fe)})
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	kind := fe.Kind()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		switch kind {
		case reflect.String:
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		switch kind {
		case reflect.String:
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("must contain at most %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid URL"
	case "json":
		return "must be valid JSON"
	case "oneof":
		return "must be one of " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "bdphone":
		return "must be a valid Bangladeshi mobile number"
	case "birthdate":
		return "must be a date in YYYY-MM-DD format"
	case "minage":
		return fmt.Sprintf("you must be at least %s years old", fe.Param())
	case "gender":
		return "must be one of MALE, FEMALE, OTHER"
	case "themecategory":
		names := make([]string, 0, len(enums.ThemeCategories))
		for _, c := range enums.ThemeCategories {
			names = append(names, string(c))
		}
		return "must be one of " + strings.Join(names, ", ")
	case "paymentprovider":
		names := make([]string, 0, len(enums.PaymentProviders))
		for _, p := range enums.PaymentProviders {
			names = append(names, string(p))
		}
		return "must be one of " + strings.Join(names, ", ")
	case "hexcolor36":
		return "must be a hex color such as #fff or #ffffff"
	}
	return "is invalid"
}
