package core

import (
	"reflect"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

var (
	// custom validation tags & texts
	notBlankTag  = "notblank"
	notBlankText = "this field cannot be blank"

	taxIDTag  = "taxid"
	taxIDText = "tax id must have 11 (CPF) or 14 (CNPJ) digits"

	phoneTag  = "phone"
	phoneText = "invalid phone number"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// InitValidators instantiates the validator for use.
// phoneRegion is the region numbers without a country code are parsed for (e.g. "BR").
func InitValidators(validate *validator.Validate, translator ut.Translator, phoneRegion string) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// validate money & dates as their primitive values
	validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		if d, ok := v.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		if d, ok := v.Interface().(Date); ok {
			return d.Time()
		}
		return nil
	}, Date{})

	// register custom validators
	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	RegisterCustomTranslation(validate, translator, notBlankTag, notBlankText)

	_ = validate.RegisterValidation(taxIDTag, taxIDValidation)
	RegisterCustomTranslation(validate, translator, taxIDTag, taxIDText)

	_ = validate.RegisterValidation(phoneTag, phoneValidation(phoneRegion))
	RegisterCustomTranslation(validate, translator, phoneTag, phoneText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// IsValidTaxID reports whether `s` holds a CPF (11 digits) or a CNPJ (14 digits), punctuation ignored.
func IsValidTaxID(s string) bool {
	n := len(DigitsOnly(s))
	return n == 11 || n == 14
}

// IsValidPhone reports whether `s` is a valid phone number for `region`.
func IsValidPhone(s, region string) bool {
	num, err := libphonenumber.Parse(s, region)
	if err != nil {
		return false
	}
	return libphonenumber.IsValidNumber(num)
}

// Custom Global Validators

func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func taxIDValidation(fl validator.FieldLevel) bool {
	return IsValidTaxID(fl.Field().String())
}

func phoneValidation(region string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return IsValidPhone(fl.Field().String(), region)
	}
}
