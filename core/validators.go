package core

import (
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	notBlankTag  = "notblank"
	notBlankText = "this field cannot be blank"

	AbsURLTag  = "absurl"
	absURLText = "{0} must be an absolute http(s) URL"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"

	uuidTag  = "uuid"
	uuidText = "{0} must be a valid ID"
)

// Validator bundles the struct validator with its english translator.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewValidator instantiates the validator for use; domain packages register their own rules on top of it.
func NewValidator() *Validator {
	v := &Validator{
		validate:   validator.New(),
		translator: newTranslator(),
	}
	InitValidators(v)
	return v
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func (v *Validator) Engine() *validator.Validate             { return v.validate }
func (v *Validator) Translator() ut.Translator               { return v.translator }
func (v *Validator) Var(field interface{}, tag string) error { return v.validate.Var(field, tag) }

// Struct validates s and returns a *ValidationError listing every failing field, or nil.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	return v.Translate(vErrs)
}

// Translate converts validator errors to a *ValidationError with english messages keyed by JSON field names.
func (v *Validator) Translate(vErrs validator.ValidationErrors) error {
	flds := make([]FieldError, 0, len(vErrs))
	for _, vErr := range vErrs {
		flds = append(flds, FieldError{Field: vErr.Field(), Error: vErr.Translate(v.translator)})
	}
	return NewValidationError(nil, flds...)
}

// InitValidators registers the default translations and the global custom rules.
func InitValidators(v *Validator) {
	_ = en_translations.RegisterDefaultTranslations(v.validate, v.translator)

	// Use JSON tag names for errors instead of Go struct names.
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = v.validate.RegisterValidation(notBlankTag, notBlankValidation)
	v.RegisterCustomTranslation(notBlankTag, notBlankText)

	_ = v.validate.RegisterValidation(AbsURLTag, absURLValidation)
	v.RegisterCustomTranslation(AbsURLTag, absURLText)

	v.RegisterCustomTranslation(requiredTag, requiredText, true)
	v.RegisterCustomTranslation(requiredWithTag, requiredText, true)
	v.RegisterCustomTranslation(uuidTag, uuidText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
// "{0}" in text is replaced by the field name.
func (v *Validator) RegisterCustomTranslation(tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = v.validate.RegisterTranslation(
		tag, v.translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Custom Global Validators

// notBlankValidation rejects strings made only of whitespace.
func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// absURLValidation only allows absolute http(s) URLs with a host.
func absURLValidation(fl validator.FieldLevel) bool {
	return IsAbsURL(fl.Field().String())
}

func IsAbsURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
