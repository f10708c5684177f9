// Package validation provides request validation on top of go-playground/validator.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const notBlankTag = "notblank"

var (
	validate   *validator.Validate
	translator ut.Translator
)

// messages overrides translated messages, keyed by "<json field>.<tag>".
var messages = map[string]string{
	"name.required":         "Name is required",
	"name.notblank":         "Name is required",
	"name.min":              "Name must be at least 2 characters",
	"name.max":              "Name cannot be more than 100 characters",
	"email.required":        "Email is required",
	"email.email":           "Invalid email address",
	"password.required":     "Password is required",
	"password.min":          "Password must be at least 6 characters",
	"password.max":          "Password cannot be more than 128 characters",
	"hourlyRate.gt":         "Hourly rate must be greater than 0",
	"bio.max":               "Bio cannot be more than 500 characters",
	"subjects.max":          "Subjects cannot be more than 500 characters",
	"title.required":        "Title is required",
	"title.notblank":        "Title is required",
	"title.max":             "Title cannot be more than 100 characters",
	"description.max":       "Description cannot be more than 500 characters",
	"videoUrl.required":     "Video URL is required",
	"videoUrl.notblank":     "Video URL is required",
	"videoUrl.max":          "Video URL is too long",
	"thumbnailUrl.required": "Thumbnail URL is required",
	"thumbnailUrl.notblank": "Thumbnail URL is required",
	"thumbnailUrl.max":      "Thumbnail URL is too long",
	"text.required":         "Comment is required",
	"text.notblank":         "Comment is required",
	"text.max":              "Comment cannot be more than 500 characters",
	"postId.required":       "Post is required",
	"tutorId.required":      "Tutor is required",
	"rating.required":       "Rating is required",
	"rating.min":            "Rating must be between 1 and 5",
	"rating.max":            "Rating must be between 1 and 5",
	"feedback.max":          "Feedback cannot be more than 500 characters",
	"token.required":        "Reset token is required",
}

func init() {
	validate = validator.New()

	english := en.New()
	uni := ut.New(english, english)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report JSON field names instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		if s, ok := fl.Field().Interface().(string); ok {
			return strings.TrimSpace(s) != ""
		}
		return false
	})
	_ = validate.RegisterTranslation(notBlankTag, translator,
		func(ut.Translator) error { return nil },
		func(_ ut.Translator, fe validator.FieldError) string {
			return fe.Field() + " cannot be blank"
		},
	)
}

// FieldError is the first failing field of a validated struct.
type FieldError struct {
	Field   string
	Tag     string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

// Struct validates s and returns a *FieldError for the first failing field.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	msg, ok := messages[fe.Field()+"."+fe.Tag()]
	if !ok {
		msg = fe.Translate(translator)
	}
	return &FieldError{Field: fe.Field(), Tag: fe.Tag(), Message: msg}
}
