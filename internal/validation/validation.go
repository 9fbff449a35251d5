// Package validation checks, normalises and sanitises request bodies.
//
// Each input type is a schema: Validate trims and case-folds it, runs the
// struct tags, and only when every field passes applies HTML escaping to the
// free-text fields. All failures are reported together in one message.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	sqlKeywordPattern    = regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|EXEC|UNION|FETCH|DECLARE|TRUNCATE)\b`)
	sqlCommentPattern    = regexp.MustCompile(`(--|#|/\*|\*/)`)
	sqlTautologyPattern  = regexp.MustCompile(`(?i)\b(OR|AND)\b\s+\d+\s*=\s*\d+`)
	sqlStackedPattern    = regexp.MustCompile(`(?i)';\s*(DROP|DELETE|INSERT|UPDATE)`)
	courseCodePattern    = regexp.MustCompile(`(?i)^[A-ZƏÜÖŞÇĞIİ0-9\-]+$`)
	cuidPattern          = regexp.MustCompile(`^c[a-z0-9]{24}$`)
	upperPattern         = regexp.MustCompile(`[A-Z]`)
	lowerPattern         = regexp.MustCompile(`[a-z]`)
	digitPattern         = regexp.MustCompile(`[0-9]`)
	specialPattern       = regexp.MustCompile(`[^A-Za-z0-9]`)
	sqlInjectionPatterns = []*regexp.Regexp{sqlKeywordPattern, sqlCommentPattern, sqlTautologyPattern, sqlStackedPattern}
)

// MaxPasswordBytes is the longest password bcrypt accepts
const MaxPasswordBytes = 72

// ContainsSQLInjection reports whether value looks like an SQL fragment
func ContainsSQLInjection(value string) bool {
	for _, p := range sqlInjectionPatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// Sanitize escapes the characters that are significant in HTML
func Sanitize(input string) string {
	return htmlEscaper.Replace(input)
}

// Error carries every validation failure of one request
type Error struct {
	Messages []string
}

func (e *Error) Error() string {
	return strings.Join(e.Messages, ", ")
}

// Schema is implemented by every input type in this package
type Schema interface {
	normalize()
	sanitize()
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		mustRegister(v, "safetext", func(fl validator.FieldLevel) bool {
			return !ContainsSQLInjection(fl.Field().String())
		})
		mustRegister(v, "pwbytes", func(fl validator.FieldLevel) bool {
			return len(fl.Field().String()) <= MaxPasswordBytes
		})
		mustRegister(v, "strongpw", func(fl validator.FieldLevel) bool {
			return len(missingPasswordClasses(fl.Field().String())) == 0
		})
		mustRegister(v, "coursecode", func(fl validator.FieldLevel) bool {
			return courseCodePattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "cuid", func(fl validator.FieldLevel) bool {
			return cuidPattern.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

// Validate normalises s, validates it and, on success, sanitises it in place.
// A failure leaves no field sanitised and returns *Error.
func Validate(s Schema) error {
	s.normalize()

	if err := instance().Struct(s); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			messages := make([]string, 0, len(ve))
			for _, fe := range ve {
				messages = append(messages, formatFieldError(fe))
			}
			return &Error{Messages: messages}
		}
		return &Error{Messages: []string{"invalid request"}}
	}

	s.sanitize()
	return nil
}

func missingPasswordClasses(pw string) []string {
	missing := make([]string, 0, 4)
	if !upperPattern.MatchString(pw) {
		missing = append(missing, "at least one uppercase letter")
	}
	if !lowerPattern.MatchString(pw) {
		missing = append(missing, "at least one lowercase letter")
	}
	if !digitPattern.MatchString(pw) {
		missing = append(missing, "at least one digit")
	}
	if !specialPattern.MatchString(pw) {
		missing = append(missing, "at least one special character")
	}
	return missing
}

// formatFieldError converts a validator FieldError to a user-friendly message
func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()
	isString := fe.Kind() == reflect.String

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "safetext":
		return fmt.Sprintf("%s contains forbidden characters", field)
	case "pwbytes":
		return fmt.Sprintf("%s must be at most %d bytes", field, MaxPasswordBytes)
	case "strongpw":
		pw, _ := fe.Value().(string)
		return fmt.Sprintf("%s must contain %s", field, strings.Join(missingPasswordClasses(pw), ", "))
	case "coursecode":
		return fmt.Sprintf("%s may only contain letters, digits and hyphens", field)
	case "uuid|cuid", "cuid", "uuid":
		return fmt.Sprintf("%s is not a valid id", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
