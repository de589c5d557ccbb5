// Package validate checks request shapes with go-playground/validator and
// reports failures as *errs.ValidationError keyed by JSON field name.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/and161185/userauth/internal/errs"
)

var std = New()

// Validator wraps a configured *validator.Validate.
type Validator struct{ v *validator.Validate }

// New builds a validator that names fields by their json tag and knows the
// maxbytes rule.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	// bcrypt ignores input past 72 bytes, rune counts are not enough.
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= n
	})
	return &Validator{v: v}
}

var messages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email address",
	"min":      "must be at least %s characters long",
	"max":      "must be no longer than %s characters",
	"maxbytes": "must be no longer than %s bytes",
	"gte":      "must be greater than or equal to %s",
	"lte":      "must be less than or equal to %s",
	"nefield":  "must differ from %s",
}

func message(e validator.FieldError) string {
	msg, ok := messages[e.Tag()]
	if !ok {
		return "is invalid: " + e.Tag()
	}
	if strings.Contains(msg, "%s") {
		return fmt.Sprintf(msg, e.Param())
	}
	return msg
}

// Struct validates s and returns nil or a *errs.ValidationError.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate: %w", err)
	}
	out := &errs.ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, e := range fieldErrs {
		if _, seen := out.Fields[e.Field()]; !seen {
			out.Fields[e.Field()] = message(e)
		}
	}
	return out
}

// Struct validates s with the package default validator.
func Struct(s any) error { return std.Struct(s) }
