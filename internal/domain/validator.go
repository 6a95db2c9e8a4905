package domain

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	extensionPattern = regexp.MustCompile(`^\.[a-z0-9]+$`)
	offerIDPattern   = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)
	versionPattern   = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// FieldError identifies a single rejected field by its document path
type FieldError struct {
	Path    string `json:"path"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// EntryValidator validates documents and entries against their field constraints
type EntryValidator struct {
	validate *validator.Validate
}

// NewEntryValidator creates a validator with the extension, offer_id and semver tags registered
func NewEntryValidator() *EntryValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("extension", matchPattern(extensionPattern))
	_ = v.RegisterValidation("offer_id", matchPattern(offerIDPattern))
	_ = v.RegisterValidation("semver", matchPattern(versionPattern))

	return &EntryValidator{validate: v}
}

func matchPattern(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// ValidExtension reports whether ext matches ^\.[a-z0-9]+$
func ValidExtension(ext string) bool {
	return extensionPattern.MatchString(ext)
}

// ValidOfferID reports whether id matches ^[a-z][a-z0-9_-]{0,31}$
func ValidOfferID(id string) bool {
	return offerIDPattern.MatchString(id)
}

// ValidateDefaults checks every entry of a defaults document
func (v *EntryValidator) ValidateDefaults(doc *DefaultsDocument) error {
	return v.check(doc)
}

// ValidateOffers checks every entry of an offers document
func (v *EntryValidator) ValidateOffers(doc *OffersDocument) error {
	return v.check(doc)
}

// ValidateEntry checks a single default entry
func (v *EntryValidator) ValidateEntry(entry *DefaultEntry) error {
	return v.check(entry)
}

// ValidateOffer checks a single offer entry
func (v *EntryValidator) ValidateOffer(offer *OfferEntry) error {
	return v.check(offer)
}

func (v *EntryValidator) check(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return NewAppErrorWithCause(ErrValidationFailed, "Validation could not run", err, nil)
	}

	fields := make([]FieldError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, FieldError{
			Path:    fieldPath(fe.Namespace()),
			Tag:     fe.Tag(),
			Message: describe(fe),
		})
	}

	first := fields[0]
	return NewAppError(
		ErrValidationFailed,
		fmt.Sprintf("%s: %s", first.Path, first.Message),
		map[string]any{"fields": fields},
	)
}

// fieldPath drops the root struct name from a validator namespace
func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return fmt.Sprintf("is required when %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s (got %q)", fe.Param(), fmt.Sprint(fe.Value()))
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "extension":
		return fmt.Sprintf("must match %s (got %q)", extensionPattern.String(), fmt.Sprint(fe.Value()))
	case "offer_id":
		return fmt.Sprintf("must match %s (got %q)", offerIDPattern.String(), fmt.Sprint(fe.Value()))
	case "semver":
		return fmt.Sprintf("must match %s (got %q)", versionPattern.String(), fmt.Sprint(fe.Value()))
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
