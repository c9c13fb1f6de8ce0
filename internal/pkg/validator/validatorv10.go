package validator

import (
	"encoding/json"
	"errors"
	"regexp"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shandysiswandi/konkurs/internal/pkg/strcase"
)

var (
	// NIST 800-63B length bounds; 72 is the bcrypt input limit.
	rePassword = regexp.MustCompile(`^.{8,72}$`)
	reUzPhone  = regexp.MustCompile(`^\+998\d{9}$`)
	reOTPCode  = regexp.MustCompile(`^\d{4,8}$`)
	reAlphaSp  = regexp.MustCompile(`^[\p{L} ]+$`)
)

var ErrTranslatorNotFound = errors.New("translator not found")

// V10ValidationError maps snake_case field names to messages.
type V10ValidationError map[string]string

func (vs V10ValidationError) Error() string {
	if len(vs) == 0 {
		return "validation error"
	}
	b, _ := json.Marshal(map[string]string(vs))
	return string(b)
}

func (vs V10ValidationError) Values() map[string]string {
	return vs
}

// V10Validator is a Validator on go-playground/validator v10.
type V10Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

type rule struct {
	tag     string
	message string
	fn      validator.Func
}

// rules are the project specific tags. Built-in tags such as eqfield only get
// their message overridden.
var rules = []rule{
	{tag: "password", message: "{0} must be 8-72 characters", fn: matchString(rePassword)},
	{tag: "uzphone", message: "{0} must be a phone number in the form +998XXXXXXXXX", fn: matchString(reUzPhone)},
	{tag: "otpcode", message: "{0} must be a numeric code", fn: matchString(reOTPCode)},
	{tag: "pastdate", message: "{0} must be a past date formatted as YYYY-MM-DD", fn: pastDate},
	{tag: "alphaspace", message: "{0} can contain only letters and spaces", fn: matchString(reAlphaSp)},
	{tag: "eqfield", message: "{0} must match {1}"},
}

func NewV10Validator() (*V10Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	enLang := en.New()
	uni := ut.New(enLang, enLang)
	trans, ok := uni.GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}

	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	for _, r := range rules {
		if r.fn != nil {
			if err := validate.RegisterValidation(r.tag, r.fn); err != nil {
				return nil, err
			}
		}
		if err := validate.RegisterTranslation(r.tag, trans, addMessage(r.tag, r.message), translate); err != nil {
			return nil, err
		}
	}

	return &V10Validator{validate: validate, translator: trans}, nil
}

func (v *V10Validator) Validate(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(V10ValidationError, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[strcase.ToLowerSnake(fe.Field())] = fe.Translate(v.translator)
	}
	return out
}

func matchString(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && re.MatchString(s)
	}
}

func pastDate(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	d, err := time.Parse(time.DateOnly, s)
	return err == nil && d.Before(time.Now())
}

func addMessage(tag, msg string) validator.RegisterTranslationsFunc {
	return func(t ut.Translator) error {
		return t.Add(tag, msg, true)
	}
}

func translate(t ut.Translator, fe validator.FieldError) string {
	msg, err := t.T(fe.Tag(), strcase.ToLowerSnake(fe.Field()), strcase.ToLowerSnake(fe.Param()))
	if err != nil {
		return fe.Error()
	}
	return msg
}
