// Package validate checks operator-initiated requests before any state is
// touched and reports every failing field.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Brazilian number: 55 + DDD + 8 or 9 digit subscriber number.
var phonePattern = regexp.MustCompile(`^55\d{10,11}$`)

var v = newValidator()

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Error is returned when a request fails validation.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func newValidator() *validator.Validate {
	val := validator.New()
	val.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = val.RegisterValidation("br_phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return val
}

// Struct validates s using its `validate` tags.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

// Phone validates a single phone number, e.g. a URL parameter.
func Phone(field, value string) error {
	if phonePattern.MatchString(value) {
		return nil
	}
	return &Error{Fields: []FieldError{{
		Field:   field,
		Rule:    "br_phone",
		Message: message(nil),
	}}}
}

func message(fe validator.FieldError) string {
	if fe == nil {
		return "Telefone deve estar no formato brasileiro: 55 + DDD + número (ex: 5511999991234)"
	}
	switch fe.Tag() {
	case "required":
		return "campo obrigatório"
	case "br_phone":
		return message(nil)
	case "min":
		return fmt.Sprintf("mínimo de %s caracteres", fe.Param())
	case "max":
		return fmt.Sprintf("máximo de %s caracteres", fe.Param())
	case "oneof":
		return "valor deve ser um de: " + fe.Param()
	default:
		return "valor inválido"
	}
}
