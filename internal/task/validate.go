package task

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslation "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate, translator = newValidator()
}

func newValidator() (*validator.Validate, ut.Translator) {
	v := validator.New()

	enLocale := en.New()
	trans, found := ut.New(enLocale, enLocale).GetTranslator("en")
	if !found {
		panic(fmt.Errorf("en translator was not found"))
	}
	if err := enTranslation.RegisterDefaultTranslations(v, trans); err != nil {
		panic(fmt.Errorf("translator was not registered: %w", err))
	}

	if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		panic(err)
	}
	err := v.RegisterTranslation("notblank", trans,
		func(t ut.Translator) error {
			return t.Add("notblank", "{0} must not be blank", true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T("notblank", fe.Field())
			return msg
		},
	)
	if err != nil {
		panic(err)
	}

	// Use JSON field names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return v, trans
}

// structErrors runs the struct tag rules and converts failures to FieldErrors.
func structErrors(value any) []FieldError {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return []FieldError{{Message: err.Error()}}
	}

	fields := make([]FieldError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Message: fe.Translate(translator),
		})
	}
	return fields
}
