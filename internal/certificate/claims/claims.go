// Package claims validates and canonicalizes the field set submitted to
// the external issuer. The issuer rejects whole requests on any bad
// field, so validation enumerates every violation up front instead of
// stopping at the first.
package claims

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	dErrors "staykey/pkg/domain-errors"
)

var (
	nationalIDPattern = regexp.MustCompile(`^[A-Z][12]\d{8}$`)
	namePattern       = regexp.MustCompile(`^[\x{4e00}-\x{9fa5}a-zA-Z0-9_]+$`)
	titlePattern      = regexp.MustCompile(`^[a-zA-Z0-9_]*$`)
	uuidPattern       = regexp.MustCompile(`^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}$`)
)

// ClaimSet is the flat field set sent to the issuer. Field names follow
// the issuer's wire vocabulary.
type ClaimSet struct {
	IDNumber     string `validate:"required,national_id"`
	Name         string `validate:"required,holder_name,max=50"`
	MemberSerial string `validate:"required,alphanum,max=20"`
	CheckinTime  string `validate:"required,stamp"`
	CheckoutTime string `validate:"required,stamp"`
	BookingID    string `validate:"required,uuid_text"`
	RoomNum      string `validate:"required,alphanum,max=10"`
	Nonce        string `validate:"required,alphanum,max=32"`

	// Optional fields. Empty values are passed through untouched.
	Email        string `validate:"omitempty,email,max=100"`
	BookingTitle string `validate:"omitempty,ascii_title,max=50"`
	IssuedDate   string `validate:"omitempty,alphanum,max=20"`
}

var claimValidator = newClaimValidator()

func newClaimValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("national_id", func(fl validator.FieldLevel) bool {
		return nationalIDPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("holder_name", func(fl validator.FieldLevel) bool {
		return namePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("ascii_title", func(fl validator.FieldLevel) bool {
		return titlePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("uuid_text", func(fl validator.FieldLevel) bool {
		return uuidPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("stamp", func(fl validator.FieldLevel) bool {
		return validStamp(fl.Field().String())
	})
	return v
}

// validStamp checks the YYYYMMDDThhmm format including calendar validity.
func validStamp(s string) bool {
	if len(s) != 13 || s[8] != 'T' {
		return false
	}
	_, err := time.Parse("20060102T1504", s)
	return err == nil
}

var fieldReasons = map[string]string{
	"IDNumber":     "id_number must be one uppercase letter, 1 or 2, then 8 digits",
	"Name":         "name may only contain CJK, latin letters, digits and underscore",
	"MemberSerial": "member_serial must be alphanumeric, at most 20 characters",
	"CheckinTime":  "checkin_time must be a valid YYYYMMDDThhmm stamp",
	"CheckoutTime": "checkout_time must be a valid YYYYMMDDThhmm stamp",
	"BookingID":    "booking_id must be canonical UUID text",
	"RoomNum":      "room_num must be alphanumeric, at most 10 characters",
	"Nonce":        "nonce must be alphanumeric, at most 32 characters",
	"Email":        "email must be a valid address",
	"BookingTitle": "booking_title may only contain ASCII letters, digits and underscore",
	"IssuedDate":   "issued_date must be alphanumeric",
}

var wireNames = map[string]string{
	"IDNumber":     "id_number",
	"Name":         "name",
	"MemberSerial": "member_serial",
	"CheckinTime":  "checkin_time",
	"CheckoutTime": "checkout_time",
	"BookingID":    "booking_id",
	"RoomNum":      "room_num",
	"Nonce":        "nonce",
	"Email":        "email",
	"BookingTitle": "booking_title",
	"IssuedDate":   "issued_date",
}

// Validate checks every field and returns a validation error carrying
// one entry per violated field, or nil when the set is acceptable.
func Validate(cs ClaimSet) error {
	err := claimValidator.Struct(cs)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return dErrors.Wrap(err, dErrors.CodeValidation, "claim validation failed")
	}

	fields := make(map[string]string, len(validationErrs))
	for _, fe := range validationErrs {
		name := wireNames[fe.StructField()]
		if name == "" {
			name = fe.StructField()
		}
		reason := fieldReasons[fe.StructField()]
		if fe.ActualTag() == "required" {
			reason = name + " is required"
		}
		if reason == "" {
			reason = name + " is invalid"
		}
		fields[name] = reason
	}
	return dErrors.NewValidation("claim validation failed", fields)
}

// Normalize returns the claim set in the shape the issuer accepts. The
// booking identifier loses its dashes and is truncated to the issuer's
// 30-character field limit. Call after Validate.
func Normalize(cs ClaimSet) ClaimSet {
	out := cs
	compact := strings.ReplaceAll(cs.BookingID, "-", "")
	compact = alnumOnly(compact)
	if len(compact) > 30 {
		compact = compact[:30]
	}
	out.BookingID = compact
	return out
}

func alnumOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}
