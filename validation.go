package tours

import (
	"regexp"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

const (
	PasswordMinLength = 8
	// bcrypt rejects anything past 72 bytes
	PasswordMaxLength = 72
)

// DefaultPhoneRegion is used for numbers without a country prefix
var DefaultPhoneRegion = "US"

var (
	hasLetter = validation.NewStringRule(func(s string) bool {
		return strings.IndexFunc(s, unicode.IsLetter) >= 0
	}, "must contain at least one letter")
	hasDigit = validation.NewStringRule(func(s string) bool {
		return strings.IndexFunc(s, unicode.IsDigit) >= 0
	}, "must contain at least one digit")
	// multi byte characters can pass the rune count and still overflow bcrypt
	fitsBcrypt = validation.NewStringRule(func(s string) bool {
		return len(s) <= PasswordMaxLength
	}, "must be at most 72 bytes long")

	slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// PasswordRules is the password policy
func PasswordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.RuneLength(PasswordMinLength, PasswordMaxLength),
		fitsBcrypt,
		hasLetter,
		hasDigit,
	}
}

// ValidatePasswordPair checks the policy and that confirm matches
func ValidatePasswordPair(password, confirm string) error {
	err := validation.Errors{
		"password":        validation.Validate(password, PasswordRules()...),
		"passwordConfirm": validation.Validate(confirm, validation.Required, validation.In(password).Error("passwords are not the same")),
	}.Filter()
	return asValidationError(err)
}

// NormalizePhone returns the E.164 form of raw, or "" for an empty input
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", NewValidationError("Invalid inputs. phone: must be a valid phone number").
			WithMetadata(map[string]any{"field": "phone"})
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// ValidateUser checks stored user invariants
func ValidateUser(u *User) error {
	err := validation.ValidateStruct(u,
		validation.Field(&u.Name, validation.Required.Error("please tell us your name"), validation.RuneLength(1, 255)),
		validation.Field(&u.Email, validation.Required.Error("please provide your email"), is.EmailFormat),
		validation.Field(&u.Role, validation.Required, validation.In(RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin)),
	)
	return asValidationError(err)
}

// ValidateTour checks tour invariants
func ValidateTour(t *Tour) error {
	err := validation.ValidateStruct(t,
		validation.Field(&t.Name,
			validation.Required.Error("a tour must have a name"),
			validation.RuneLength(10, 40).Error("a tour name must have between 10 and 40 characters"),
		),
		validation.Field(&t.Slug, validation.Required, validation.Match(slugRe)),
		validation.Field(&t.Duration, validation.Required.Error("a tour must have a duration"), validation.Min(1)),
		validation.Field(&t.MaxGroupSize, validation.Required.Error("a tour must have a group size"), validation.Min(1)),
		validation.Field(&t.Difficulty,
			validation.Required.Error("a tour must have a difficulty"),
			validation.In(DifficultyEasy, DifficultyMedium, DifficultyDifficult).Error("difficulty is either: easy, medium, difficult"),
		),
		validation.Field(&t.RatingsAverage, validation.Min(1.0), validation.Max(5.0)),
		validation.Field(&t.RatingsQuantity, validation.Min(0)),
		validation.Field(&t.Price, validation.Required.Error("a tour must have a price"), validation.Min(0.0)),
		validation.Field(&t.PriceDiscount,
			validation.Min(0.0),
			validation.By(func(any) error {
				if t.PriceDiscount > 0 && t.PriceDiscount >= t.Price {
					return validation.NewError("validation_price_discount", "discount price should be below the regular price")
				}
				return nil
			}),
		),
		validation.Field(&t.Summary, validation.Required.Error("a tour must have a summary")),
		validation.Field(&t.ImageCover, validation.Required.Error("a tour must have a cover image")),
		validation.Field(&t.StartLocation, validation.By(validatePoint)),
		validation.Field(&t.Locations, validation.Each(validation.By(validatePoint))),
	)
	return asValidationError(err)
}

// ValidateReview checks review invariants
func ValidateReview(r *Review) error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Review, validation.Required.Error("review can not be empty"), validation.RuneLength(2, 500)),
		validation.Field(&r.Rating, validation.Required, validation.Min(1), validation.Max(5)),
		validation.Field(&r.TourID, validation.Required.Error("review must belong to a tour")),
		validation.Field(&r.AuthorID, validation.Required.Error("review must belong to a user")),
	)
	return asValidationError(err)
}

func validatePoint(value any) error {
	var p GeoPoint
	switch v := value.(type) {
	case GeoPoint:
		p = v
	case *GeoPoint:
		if v == nil {
			return nil
		}
		p = *v
	default:
		return nil
	}
	if len(p.Coordinates) == 0 {
		return nil
	}
	if len(p.Coordinates) != 2 {
		return validation.NewError("validation_point", "coordinates must be [lng, lat]")
	}
	if p.Lng() < -180 || p.Lng() > 180 || p.Lat() < -90 || p.Lat() > 90 {
		return validation.NewError("validation_point", "coordinates out of range")
	}
	return nil
}

// asValidationError converts ozzo errors into a 400 go-errors validation error
func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	var internal validation.InternalError
	if goerrors.As(err, &internal) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "validation failed unexpectedly")
	}
	return goerrors.FromOzzoValidation(err, "Invalid inputs. "+err.Error()).
		WithCode(400)
}
